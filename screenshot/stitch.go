package screenshot

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	"image/png"
	"slices"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// Captured is one segment image. It is never mutated after capture.
type Captured struct {
	Segment Segment
	Image   []byte
}

// Composite draws segs onto a FullWidth x FullHeight canvas in ascending
// index order at (0, ScrollY) and encodes it as PNG. Later segments
// overwrite the overlap band of earlier ones. Segment images whose pixel
// size differs from the viewport (device pixel ratio other than 1) are
// scaled to the viewport's CSS size first.
func Composite(g Geometry, segs []Captured) ([]byte, error) {
	canvas, err := CompositeImage(g, segs)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, &StitchError{Segment: -1, Err: err}
	}
	return buf.Bytes(), nil
}

// CompositeImage is Composite without the final encoding.
func CompositeImage(g Geometry, segs []Captured) (*image.RGBA, error) {
	if g.FullWidth <= 0 || g.FullHeight <= 0 {
		return nil, fmt.Errorf("%w: canvas %dx%d", ErrInvalidGeometry, g.FullWidth, g.FullHeight)
	}
	if len(segs) == 0 {
		return nil, &StitchError{Segment: -1, Err: errors.New("no segments")}
	}

	sorted := slices.Clone(segs)
	slices.SortStableFunc(sorted, func(a, b Captured) int {
		return cmp.Compare(a.Segment.Index, b.Segment.Index)
	})

	// Every segment decodes before any is drawn.
	imgs := make([]image.Image, len(sorted))
	for i, s := range sorted {
		img, _, err := image.Decode(bytes.NewReader(s.Image))
		if err != nil {
			return nil, &StitchError{Segment: s.Segment.Index, Err: err}
		}
		imgs[i] = img
	}

	canvas := image.NewRGBA(image.Rect(0, 0, g.FullWidth, g.FullHeight))
	for i, s := range sorted {
		img := imgs[i]
		b := img.Bounds()
		y := s.Segment.ScrollY
		if g.ViewportWidth <= 0 || g.ViewportHeight <= 0 ||
			(b.Dx() == g.ViewportWidth && b.Dy() == g.ViewportHeight) {
			dst := image.Rect(0, y, b.Dx(), y+b.Dy())
			draw.Draw(canvas, dst, img, b.Min, draw.Src)
			continue
		}
		dst := image.Rect(0, y, g.ViewportWidth, y+g.ViewportHeight)
		xdraw.ApproxBiLinear.Scale(canvas, dst, img, b, xdraw.Src, nil)
	}
	return canvas, nil
}
