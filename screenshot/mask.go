package screenshot

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
)

// Position is the classification of an element for masking.
type Position int

const (
	PositionNormal Position = iota
	PositionFixed
	PositionSticky
)

func (p Position) String() string {
	switch p {
	case PositionFixed:
		return "fixed"
	case PositionSticky:
		return "sticky"
	default:
		return "normal"
	}
}

func parsePosition(s string) Position {
	switch s {
	case "fixed":
		return PositionFixed
	case "sticky":
		return PositionSticky
	}
	return PositionNormal
}

// Classify decides whether an element is pinned to the viewport.
// Selector matches qualify on computed or inline position, or on a "fixed"
// or "sticky" class. Scan matches qualify on inline position only.
func Classify(e ElementStyle) Position {
	if !e.Matched {
		return parsePosition(e.InlinePosition)
	}
	if p := parsePosition(e.ComputedPosition); p != PositionNormal {
		return p
	}
	if p := parsePosition(e.InlinePosition); p != PositionNormal {
		return p
	}
	switch {
	case slices.Contains(e.Classes, "fixed"):
		return PositionFixed
	case slices.Contains(e.Classes, "sticky"):
		return PositionSticky
	}
	return PositionNormal
}

// MaskRecord is the saved inline style of one hidden element.
type MaskRecord struct {
	Ref      string     `json:"ref"`
	Position Position   `json:"position"`
	Original StyleProps `json:"original"`
}

// Mask is one outstanding hide cycle. Its records are written back exactly
// once by Masker.Restore.
type Mask struct {
	Records  []MaskRecord
	restored bool
}

// Restored reports whether the mask has been restored.
func (m *Mask) Restored() bool { return m.restored }

// Masker hides viewport-fixed elements so they do not repeat in every
// stitched segment. At most one Mask is outstanding at a time.
type Masker struct {
	selectors []string
	logger    *slog.Logger

	mu     sync.Mutex
	active *Mask
}

// NewMasker creates a masker using selectors as the heuristic first pass.
func NewMasker(selectors []string, logger *slog.Logger) *Masker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Masker{selectors: slices.Clone(selectors), logger: logger}
}

// Hide records and hides every qualifying element of doc. The returned Mask
// is non-nil unless err is ErrMaskActive. Per-element failures are returned
// joined as *MaskError values and do not stop the remaining elements; an
// element whose hide failed is still recorded so Restore writes it back.
func (m *Masker) Hide(ctx context.Context, doc Document) (*Mask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		return nil, ErrMaskActive
	}
	mask := &Mask{}
	m.active = mask

	elems, err := doc.Elements(ctx, m.selectors)
	if err != nil {
		m.logger.Warn("screenshot: fixed element scan failed", "error", err)
		return mask, &MaskError{Op: "scan", Err: err}
	}

	seen := make(map[string]bool, len(elems))
	var errs []error
	for _, e := range elems {
		if seen[e.Ref] {
			continue
		}
		pos := Classify(e)
		if pos == PositionNormal {
			continue
		}
		seen[e.Ref] = true
		mask.Records = append(mask.Records, MaskRecord{Ref: e.Ref, Position: pos, Original: e.Inline})
		if err := doc.SetStyle(ctx, e.Ref, Hidden); err != nil {
			m.logger.Warn("screenshot: hide element failed", "ref", e.Ref, "error", err)
			errs = append(errs, &MaskError{Op: "hide", Ref: e.Ref, Err: err})
		}
	}
	m.logger.Debug("screenshot: fixed elements hidden", "count", len(mask.Records))
	return mask, errors.Join(errs...)
}

// Restore writes back every record of mask. A mask is restored once;
// later calls and a nil mask are no-ops.
func (m *Masker) Restore(ctx context.Context, doc Document, mask *Mask) error {
	if mask == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if mask.restored {
		return nil
	}
	mask.restored = true
	if m.active == mask {
		m.active = nil
	}

	var errs []error
	for _, r := range mask.Records {
		if err := doc.SetStyle(ctx, r.Ref, r.Original); err != nil {
			m.logger.Warn("screenshot: restore element failed", "ref", r.Ref, "error", err)
			errs = append(errs, &MaskError{Op: "restore", Ref: r.Ref, Err: err})
		}
	}
	m.logger.Debug("screenshot: fixed elements restored", "count", len(mask.Records))
	return errors.Join(errs...)
}
