package screenshot

import (
	"fmt"
	"math"
)

// Planner defaults.
const (
	DefaultStepRatio       = 0.9
	DefaultMaxPixels int64 = 80_000_000
)

// Segment is one scroll offset of a full-page capture.
type Segment struct {
	Index   int `json:"index"`
	ScrollY int `json:"scroll_y"`
}

// PlanOptions tunes Plan. Zero values select the defaults.
type PlanOptions struct {
	// StepRatio is the fraction of the viewport height scrolled between
	// segments; the remainder is the overlap.
	StepRatio float64
	// MaxPixels is the full-page area ceiling.
	MaxPixels int64
}

func (o PlanOptions) withDefaults() PlanOptions {
	if o.StepRatio <= 0 || o.StepRatio > 1 {
		o.StepRatio = DefaultStepRatio
	}
	if o.MaxPixels <= 0 {
		o.MaxPixels = DefaultMaxPixels
	}
	return o
}

// Step is the scroll distance between consecutive segments.
func (o PlanOptions) Step(viewportHeight int) int {
	o = o.withDefaults()
	step := int(math.Floor(float64(viewportHeight) * o.StepRatio))
	if step < 1 {
		step = 1
	}
	return step
}

// Plan computes the scroll offsets covering the full page height.
//
// Segment i scrolls to min(i*step, FullHeight-ViewportHeight), clamped to 0,
// for ceil(FullHeight/step) segments. When the clamp bites before the last
// index, consecutive segments may share an offset; they are kept so the
// segment count matches the reported metadata.
func Plan(g Geometry, opts PlanOptions) ([]Segment, error) {
	opts = opts.withDefaults()
	if g.ViewportWidth <= 0 || g.ViewportHeight <= 0 || g.FullWidth <= 0 || g.FullHeight <= 0 {
		return nil, fmt.Errorf("%w: viewport %dx%d, page %dx%d", ErrInvalidGeometry,
			g.ViewportWidth, g.ViewportHeight, g.FullWidth, g.FullHeight)
	}
	if g.Pixels() > opts.MaxPixels {
		return nil, &PageTooLargeError{Width: g.FullWidth, Height: g.FullHeight, Limit: opts.MaxPixels}
	}
	if g.FullHeight <= g.ViewportHeight {
		return []Segment{{Index: 0, ScrollY: 0}}, nil
	}

	step := opts.Step(g.ViewportHeight)
	count := (g.FullHeight + step - 1) / step
	maxY := g.FullHeight - g.ViewportHeight

	segs := make([]Segment, count)
	for i := range segs {
		y := min(i*step, maxY)
		segs[i] = Segment{Index: i, ScrollY: max(0, y)}
	}
	return segs, nil
}
