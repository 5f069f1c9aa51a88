// Package screenshot implements visible, selection and full-page capture of
// a browser page. A full-page capture scrolls the page in overlapping
// segments, hides viewport-fixed chrome after the first segment, captures
// each viewport through a retrying capturer and stitches the segments onto
// one canvas. Page scroll position and hidden elements are restored on every
// exit path.
package screenshot

import "context"

// Geometry is read once per session and never changes during the run.
type Geometry struct {
	ViewportWidth    int     `json:"viewport_width"`
	ViewportHeight   int     `json:"viewport_height"`
	FullWidth        int     `json:"full_width"`
	FullHeight       int     `json:"full_height"`
	DevicePixelRatio float64 `json:"device_pixel_ratio"`
}

// Pixels is the CSS pixel area of the full document.
func (g Geometry) Pixels() int64 {
	return int64(g.FullWidth) * int64(g.FullHeight)
}

// StyleProps are the inline style properties the masker saves and writes.
// An empty string means the property is not set inline.
type StyleProps struct {
	Display    string `json:"display"`
	Visibility string `json:"visibility"`
	Opacity    string `json:"opacity"`
}

// Hidden is what the masker writes on a qualifying element.
var Hidden = StyleProps{Display: "none", Visibility: "hidden", Opacity: "0"}

// ElementStyle is a resolved style snapshot of one element.
type ElementStyle struct {
	// Ref identifies the element for later SetStyle calls.
	Ref string `json:"ref"`
	// Matched is true when a heuristic selector matched the element; false
	// for elements found by the inline-position document scan.
	Matched          bool       `json:"matched"`
	ComputedPosition string     `json:"computed_position"`
	InlinePosition   string     `json:"inline_position"`
	Classes          []string   `json:"classes"`
	Inline           StyleProps `json:"inline"`
}

// Document is the DOM access the masker needs.
type Document interface {
	// Elements returns the elements matched by selectors, each once, followed
	// by every other element with an inline fixed or sticky position.
	Elements(ctx context.Context, selectors []string) ([]ElementStyle, error)
	// SetStyle writes the three inline properties of the referenced element.
	SetStyle(ctx context.Context, ref string, props StyleProps) error
}

// Page is the scroll and paint control a capture session drives.
type Page interface {
	Document
	Geometry(ctx context.Context) (Geometry, error)
	ScrollPosition(ctx context.Context) (x, y int, err error)
	ScrollTo(ctx context.Context, x, y int) error
	// RequestFrame blocks until the next paint.
	RequestFrame(ctx context.Context) error
}

// CaptureFunc is the privileged "capture visible viewport" primitive. It
// returns an encoded image (PNG, JPEG or WebP).
type CaptureFunc func(ctx context.Context) ([]byte, error)
