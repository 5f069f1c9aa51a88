// Package pagetest provides an in-memory page for capture tests. Its
// viewport captures are solid-colour PNGs whose colour is a function of the
// scroll offset, so stitched output can be checked pixel by pixel.
package pagetest

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"sync"

	"github.com/hazyhaar/tobe/screenshot"
)

// Element is a fake DOM element.
type Element struct {
	Ref string
	// Matched marks elements a heuristic selector would match.
	Matched  bool
	Computed string
	Inline   string
	Classes  []string
	Style    screenshot.StyleProps
}

// Page implements screenshot.Page.
type Page struct {
	mu     sync.Mutex
	geo    screenshot.Geometry
	x, y   int
	elems  []*Element
	events []string
	shots  int

	// ColorAt gives the capture colour for a scroll offset.
	ColorAt func(scrollY int) color.RGBA
	// CaptureErr, when set, may fail the n-th capture call (1-based).
	CaptureErr func(n, scrollY int) error
	// SetStyleErr, when set, may fail a style write.
	SetStyleErr func(ref string, props screenshot.StyleProps) error
	// ElementsErr fails the element scan.
	ElementsErr error
	// OnCapture runs inside every capture call, before the image is built.
	OnCapture func(n int)
}

// New creates a page with geometry g scrolled to the top.
func New(g screenshot.Geometry, elems ...*Element) *Page {
	return &Page{geo: g, elems: elems, ColorAt: DefaultColor}
}

// DefaultColor maps distinct scroll offsets to distinct opaque colours.
func DefaultColor(y int) color.RGBA {
	return color.RGBA{R: uint8(y % 251), G: uint8((y / 251) % 251), B: 200, A: 255}
}

// SetScroll moves the page without recording an event.
func (p *Page) SetScroll(x, y int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.x, p.y = x, y
}

func (p *Page) record(format string, args ...any) {
	p.events = append(p.events, fmt.Sprintf(format, args...))
}

// Events returns the call log, e.g. "scroll(0,540)", "frame", "scan",
// "set(hdr,none)", "capture(540,hidden=1)".
func (p *Page) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

// Count returns how many events start with prefix.
func (p *Page) Count(prefix string) int {
	n := 0
	for _, e := range p.Events() {
		if len(e) >= len(prefix) && e[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

// Style returns the current inline style of ref.
func (p *Page) Style(ref string) screenshot.StyleProps {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.elems {
		if e.Ref == ref {
			return e.Style
		}
	}
	return screenshot.StyleProps{}
}

func (p *Page) Geometry(ctx context.Context) (screenshot.Geometry, error) {
	return p.geo, ctx.Err()
}

func (p *Page) ScrollPosition(ctx context.Context) (int, int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.x, p.y, ctx.Err()
}

// ScrollTo clamps like a browser does.
func (p *Page) ScrollTo(ctx context.Context, x, y int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.x = clamp(x, 0, p.geo.FullWidth-p.geo.ViewportWidth)
	p.y = clamp(y, 0, p.geo.FullHeight-p.geo.ViewportHeight)
	p.record("scroll(%d,%d)", x, y)
	return nil
}

func (p *Page) RequestFrame(ctx context.Context) error {
	p.mu.Lock()
	p.record("frame")
	p.mu.Unlock()
	return ctx.Err()
}

func (p *Page) Elements(ctx context.Context, selectors []string) ([]screenshot.ElementStyle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("scan")
	if p.ElementsErr != nil {
		return nil, p.ElementsErr
	}
	var out []screenshot.ElementStyle
	if len(selectors) > 0 {
		for _, e := range p.elems {
			if e.Matched {
				out = append(out, snapshot(e, true))
			}
		}
	}
	for _, e := range p.elems {
		if e.Matched && len(selectors) > 0 {
			continue
		}
		if e.Inline == "fixed" || e.Inline == "sticky" {
			out = append(out, snapshot(e, false))
		}
	}
	return out, ctx.Err()
}

func snapshot(e *Element, matched bool) screenshot.ElementStyle {
	return screenshot.ElementStyle{
		Ref:              e.Ref,
		Matched:          matched,
		ComputedPosition: e.Computed,
		InlinePosition:   e.Inline,
		Classes:          append([]string(nil), e.Classes...),
		Inline:           e.Style,
	}
}

func (p *Page) SetStyle(ctx context.Context, ref string, props screenshot.StyleProps) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.record("set(%s,%s)", ref, props.Display)
	if p.SetStyleErr != nil {
		if err := p.SetStyleErr(ref, props); err != nil {
			return err
		}
	}
	for _, e := range p.elems {
		if e.Ref == ref {
			e.Style = props
			return nil
		}
	}
	return fmt.Errorf("pagetest: no element %q", ref)
}

// Hidden returns how many elements currently have display none.
func (p *Page) Hidden() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hiddenLocked()
}

func (p *Page) hiddenLocked() int {
	n := 0
	for _, e := range p.elems {
		if e.Style.Display == "none" {
			n++
		}
	}
	return n
}

// Capture is a screenshot.CaptureFunc: the viewport at device resolution,
// filled with ColorAt(current scroll offset).
func (p *Page) Capture(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.shots++
	n, y := p.shots, p.y
	p.record("capture(%d,hidden=%d)", y, p.hiddenLocked())
	hook, fail := p.OnCapture, p.CaptureErr
	p.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	if fail != nil {
		if err := fail(n, y); err != nil {
			return nil, err
		}
	}
	dpr := p.geo.DevicePixelRatio
	if dpr <= 0 {
		dpr = 1
	}
	w := int(float64(p.geo.ViewportWidth) * dpr)
	h := int(float64(p.geo.ViewportHeight) * dpr)
	return SolidPNG(w, h, p.ColorAt(y)), nil
}

// SolidPNG encodes a w x h image filled with c.
func SolidPNG(w, h int, c color.Color) []byte {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	return max(lo, min(v, hi))
}
