package extension

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/tobe/kit"
	"github.com/hazyhaar/tobe/screenshot"
	"github.com/hazyhaar/tobe/store"
)

// NewMCPServer creates an MCP server with every tool registered.
func (e *Extension) NewMCPServer(version string) *mcp.Server {
	srv := mcp.NewServer(&mcp.Implementation{Name: "tobe", Version: version}, nil)
	e.RegisterMCP(srv)
	return srv
}

// RegisterMCP registers the toolkit tools on an MCP server.
func (e *Extension) RegisterMCP(srv *mcp.Server) {
	e.registerCaptureTools(srv)
	e.registerLastScreenshotTool(srv)
	e.registerJSONTools(srv)
	e.registerTimestampTool(srv)
	e.registerSettingsTools(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// --- capture ---

type captureArgs struct {
	URL          string  `json:"url"`
	X            float64 `json:"x,omitempty"`
	Y            float64 `json:"y,omitempty"`
	Width        float64 `json:"width,omitempty"`
	Height       float64 `json:"height,omitempty"`
	Save         bool    `json:"save,omitempty"`
	PDF          bool    `json:"pdf,omitempty"`
	IncludeImage bool    `json:"include_image,omitempty"`
}

// CaptureResult describes a capture returned to a tool caller.
type CaptureResult struct {
	*store.Screenshot
	Bytes   int    `json:"bytes"`
	Path    string `json:"path,omitempty"`
	DataURL string `json:"data_url,omitempty"`
}

// captureError keeps the machine code of a failure in the tool error text.
type captureError struct{ err error }

func (c *captureError) Error() string {
	return fmt.Sprintf("%s: %s", screenshot.Code(c.err), screenshot.UserMessage(c.err))
}

func (c *captureError) Unwrap() error { return c.err }

func (e *Extension) captureResult(shot *store.Screenshot, a *captureArgs) (*CaptureResult, error) {
	out := &CaptureResult{Screenshot: shot, Bytes: len(shot.PNG)}
	if a.Save || a.PDF {
		path, err := e.Download(shot, a.PDF)
		if err != nil {
			return nil, err
		}
		out.Path = path
	}
	if a.IncludeImage {
		out.DataURL = DataURL(shot)
	}
	return out, nil
}

func (e *Extension) registerCaptureTools(srv *mcp.Server) {
	common := map[string]any{
		"url":           map[string]any{"type": "string", "description": "http(s) URL of the page to capture"},
		"save":          map[string]any{"type": "boolean", "description": "Write the PNG under the export directory"},
		"pdf":           map[string]any{"type": "boolean", "description": "Write a PDF instead of a PNG"},
		"include_image": map[string]any{"type": "boolean", "description": "Return the image as a PNG data URL"},
	}
	selection := map[string]any{
		"x":      map[string]any{"type": "number", "description": "Left edge in CSS pixels"},
		"y":      map[string]any{"type": "number", "description": "Top edge in CSS pixels"},
		"width":  map[string]any{"type": "number", "description": "Width in CSS pixels"},
		"height": map[string]any{"type": "number", "description": "Height in CSS pixels"},
	}
	for k, v := range common {
		selection[k] = v
	}

	tools := []struct {
		name, desc string
		props      map[string]any
		required   []string
		run        func(context.Context, *captureArgs) (*store.Screenshot, error)
	}{
		{
			name:     "tobe_capture_fullpage",
			desc:     "Capture a whole web page by scrolling and stitching viewport segments. Fixed headers appear once.",
			props:    common,
			required: []string{"url"},
			run: func(ctx context.Context, a *captureArgs) (*store.Screenshot, error) {
				return e.CaptureFullPage(ctx, a.URL)
			},
		},
		{
			name:     "tobe_capture_visible",
			desc:     "Capture the first viewport of a web page.",
			props:    common,
			required: []string{"url"},
			run: func(ctx context.Context, a *captureArgs) (*store.Screenshot, error) {
				return e.CaptureVisible(ctx, a.URL)
			},
		},
		{
			name:     "tobe_capture_selection",
			desc:     "Capture a rectangle of the first viewport of a web page.",
			props:    selection,
			required: []string{"url", "width", "height"},
			run: func(ctx context.Context, a *captureArgs) (*store.Screenshot, error) {
				return e.CaptureSelection(ctx, a.URL, screenshot.Rect{X: a.X, Y: a.Y, Width: a.Width, Height: a.Height})
			},
		},
	}

	for _, t := range tools {
		run := t.run
		tool := &mcp.Tool{Name: t.name, Description: t.desc, InputSchema: inputSchema(t.props, t.required)}
		endpoint := func(ctx context.Context, req any) (any, error) {
			a := req.(*captureArgs)
			shot, err := run(ctx, a)
			if err != nil {
				return nil, &captureError{err: err}
			}
			return e.captureResult(shot, a)
		}
		kit.RegisterMCPTool(srv, tool, endpoint, kit.DecodeArgs[captureArgs])
	}
}

// --- last screenshot ---

type lastScreenshotArgs struct {
	Kind         string `json:"kind,omitempty"`
	IncludeImage bool   `json:"include_image,omitempty"`
}

func (e *Extension) registerLastScreenshotTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tobe_last_screenshot",
		Description: "Return the most recent stored screenshot, optionally of one kind.",
		InputSchema: inputSchema(map[string]any{
			"kind":          map[string]any{"type": "string", "enum": []any{store.KindVisible, store.KindSelection, store.KindFullPage}},
			"include_image": map[string]any{"type": "boolean", "description": "Return the image as a PNG data URL"},
		}, nil),
	}
	endpoint := func(ctx context.Context, req any) (any, error) {
		a := req.(*lastScreenshotArgs)
		shot, err := e.LastScreenshot(ctx, a.Kind)
		if err != nil {
			return nil, err
		}
		if shot == nil {
			return nil, fmt.Errorf("no screenshot stored")
		}
		return e.captureResult(shot, &captureArgs{IncludeImage: a.IncludeImage})
	}
	kit.RegisterMCPTool(srv, tool, endpoint, kit.DecodeArgs[lastScreenshotArgs])
}

// --- json ---

type formatArgs struct {
	Text   string `json:"text"`
	Indent string `json:"indent,omitempty"`
}

func (e *Extension) registerJSONTools(srv *mcp.Server) {
	format := &mcp.Tool{
		Name:        "tobe_json_format",
		Description: "Pretty-print JSON, keeping key order. indent \"-\" gives compact output.",
		InputSchema: inputSchema(map[string]any{
			"text":   map[string]any{"type": "string", "description": "JSON document"},
			"indent": map[string]any{"type": "string", "description": "Indent string (default two spaces)"},
		}, []string{"text"}),
	}
	kit.RegisterMCPTool(srv, format, func(_ context.Context, req any) (any, error) {
		a := req.(*formatArgs)
		out, err := e.FormatJSON(a.Text, a.Indent)
		if err != nil {
			return nil, err
		}
		return map[string]string{"formatted": out}, nil
	}, kit.DecodeArgs[formatArgs])

	render := &mcp.Tool{
		Name:        "tobe_json_render",
		Description: "Render JSON as the collapsible tree viewer's HTML.",
		InputSchema: inputSchema(map[string]any{
			"text":    map[string]any{"type": "string", "description": "JSON document"},
			"action":  map[string]any{"type": "string", "enum": []any{"expand_all", "collapse_all"}},
			"toggle":  map[string]any{"type": "array", "items": map[string]any{"type": "integer"}, "description": "Line numbers to toggle"},
			"restore": map[string]any{"type": "boolean", "description": "Apply the saved expand/collapse state first"},
		}, []string{"text"}),
	}
	kit.RegisterMCPTool(srv, render, func(ctx context.Context, req any) (any, error) {
		return e.RenderJSON(ctx, *req.(*RenderRequest))
	}, kit.DecodeArgs[RenderRequest])
}

// --- timestamp ---

type timestampArgs struct {
	Value string `json:"value"`
}

func (e *Extension) registerTimestampTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "tobe_timestamp",
		Description: "Convert a Unix timestamp (seconds or milliseconds) to a date, or a date to Unix seconds and milliseconds.",
		InputSchema: inputSchema(map[string]any{
			"value": map[string]any{"type": "string", "description": "Timestamp or date; empty returns the current time"},
		}, nil),
	}
	kit.RegisterMCPTool(srv, tool, func(ctx context.Context, req any) (any, error) {
		return e.Timestamp(ctx, req.(*timestampArgs).Value)
	}, kit.DecodeArgs[timestampArgs])
}

// --- settings ---

func (e *Extension) registerSettingsTools(srv *mcp.Server) {
	get := &mcp.Tool{
		Name:        "tobe_get_settings",
		Description: "Return the toolkit settings.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}
	kit.RegisterMCPTool(srv, get, func(ctx context.Context, _ any) (any, error) {
		return e.Settings(ctx)
	}, kit.DecodeArgs[struct{}])

	update := &mcp.Tool{
		Name:        "tobe_update_settings",
		Description: "Replace the toolkit settings. Omitted fields take their defaults.",
		InputSchema: inputSchema(map[string]any{
			"theme":            map[string]any{"type": "string", "enum": []any{"light", "dark"}},
			"autoFormat":       map[string]any{"type": "boolean"},
			"screenshotFormat": map[string]any{"type": "string", "enum": []any{"png"}},
			"timestampFormat":  map[string]any{"type": "string", "enum": []any{"local", "utc"}},
		}, nil),
	}
	kit.RegisterMCPTool(srv, update, func(ctx context.Context, req any) (any, error) {
		return e.UpdateSettings(ctx, *req.(*store.Settings))
	}, kit.DecodeArgs[store.Settings])
}
