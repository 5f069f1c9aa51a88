package extension

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hazyhaar/tobe/jsonview"
	"github.com/hazyhaar/tobe/store"
	"github.com/hazyhaar/tobe/timestamp"
)

// treeStateKey is the single document slot of the viewer's saved state.
const treeStateKey = "default"

// Settings reads the settings through the background.
func (e *Extension) Settings(ctx context.Context) (store.Settings, error) {
	var s store.Settings
	if err := e.client.GetSettings(ctx, &s); err != nil {
		return store.Settings{}, err
	}
	return s, nil
}

// UpdateSettings replaces the settings through the background. Empty
// fields take their defaults.
func (e *Extension) UpdateSettings(ctx context.Context, s store.Settings) (store.Settings, error) {
	if err := e.client.UpdateSettings(ctx, s); err != nil {
		return store.Settings{}, err
	}
	return e.Settings(ctx)
}

// FormatJSON pretty-prints text with indent ("-" for compact output).
func (e *Extension) FormatJSON(text, indent string) (string, error) {
	return jsonview.Format(text, indent)
}

// RenderRequest drives one render of the JSON viewer.
type RenderRequest struct {
	Text string `json:"text"`
	// Action is "", "expand_all" or "collapse_all".
	Action string `json:"action,omitempty"`
	// Toggle lists line numbers to toggle after Action, in order.
	Toggle []int `json:"toggle,omitempty"`
	// Restore applies the saved expand/collapse state before Action.
	Restore bool `json:"restore,omitempty"`
}

// Rendered is the viewer output.
type Rendered struct {
	HTML      string         `json:"html"`
	Lines     int            `json:"lines"`
	State     jsonview.State `json:"state"`
	Formatted string         `json:"formatted"`
}

// RenderJSON parses and renders req.Text and saves the resulting tree
// state for the next render.
func (e *Extension) RenderJSON(ctx context.Context, req RenderRequest) (*Rendered, error) {
	tree, err := jsonview.Parse(req.Text)
	if err != nil {
		return nil, err
	}

	if req.Restore {
		raw, err := e.store.LoadTreeState(ctx, treeStateKey)
		if err != nil {
			return nil, fmt.Errorf("extension: load tree state: %w", err)
		}
		if raw != nil {
			var st jsonview.State
			if err := json.Unmarshal(raw, &st); err != nil {
				e.logger.Warn("extension: discard corrupt tree state", "error", err)
			} else {
				tree.RestoreState(st)
			}
		}
	}

	switch req.Action {
	case "":
	case "expand_all":
		tree.ExpandAll()
	case "collapse_all":
		tree.CollapseAll()
	default:
		return nil, fmt.Errorf("extension: unknown render action %q", req.Action)
	}
	for _, line := range req.Toggle {
		tree.Toggle(line)
	}

	st := tree.SaveState()
	raw, err := json.Marshal(st)
	if err != nil {
		return nil, err
	}
	if err := e.store.SaveTreeState(ctx, treeStateKey, raw); err != nil {
		return nil, fmt.Errorf("extension: save tree state: %w", err)
	}

	formatted, err := tree.Marshal(jsonview.DefaultIndent)
	if err != nil {
		return nil, err
	}
	return &Rendered{
		HTML:      jsonview.RenderHTML(tree),
		Lines:     len(tree.Visible()),
		State:     st,
		Formatted: formatted,
	}, nil
}

// PutPendingJSON stores text selected on a page for the formatter to pick up.
func (e *Extension) PutPendingJSON(ctx context.Context, text string) (*store.PendingJSON, error) {
	return e.store.PutPendingJSON(ctx, text, e.now())
}

// TakePendingJSON consumes the pending selection, nil when there is none
// or it has expired.
func (e *Extension) TakePendingJSON(ctx context.Context) (*store.PendingJSON, error) {
	return e.store.TakePendingJSON(ctx, e.now())
}

// TimestampResult answers a timestamp conversion.
type TimestampResult struct {
	Conversion *timestamp.Conversion `json:"conversion,omitempty"`
	Epoch      *timestamp.Epoch      `json:"epoch,omitempty"`
	Now        timestamp.Current     `json:"now"`
}

// Timestamp converts value: a Unix timestamp when it is all digits, a
// free-form date otherwise. The display zone follows the
// timestampFormat setting.
func (e *Extension) Timestamp(ctx context.Context, value string) (*TimestampResult, error) {
	s, err := e.store.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	loc := timestamp.Location(s.TimestampFormat)
	out := &TimestampResult{Now: timestamp.At(e.now(), loc)}

	value = strings.TrimSpace(value)
	if value == "" {
		return out, nil
	}
	if isDigits(strings.TrimPrefix(value, "-")) {
		conv, err := timestamp.Parse(value, loc)
		if err != nil {
			return nil, err
		}
		out.Conversion = &conv
		return out, nil
	}
	ep, err := timestamp.ParseDate(value, loc)
	if err != nil {
		return nil, err
	}
	out.Epoch = &ep
	return out, nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
