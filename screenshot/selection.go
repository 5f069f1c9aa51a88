package screenshot

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"math"
)

// Rect is a selection rectangle in CSS pixels relative to the viewport.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Validate reports ErrInvalidRect for non-finite values or an empty area.
func (r Rect) Validate() error {
	for _, v := range []float64{r.X, r.Y, r.Width, r.Height} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite value", ErrInvalidRect)
		}
	}
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("%w: %vx%v", ErrInvalidRect, r.Width, r.Height)
	}
	return nil
}

// Crop cuts r out of an encoded viewport image and returns it as PNG.
// scale converts CSS pixels to image pixels (the device pixel ratio); the
// rectangle is clamped to the image.
func Crop(data []byte, r Rect, scale float64) ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		scale = 1
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("screenshot: decode viewport: %w", err)
	}

	px := image.Rect(
		int(math.Round(r.X*scale)),
		int(math.Round(r.Y*scale)),
		int(math.Round((r.X+r.Width)*scale)),
		int(math.Round((r.Y+r.Height)*scale)),
	).Add(src.Bounds().Min).Intersect(src.Bounds())
	if px.Empty() {
		return nil, fmt.Errorf("%w: outside the captured viewport", ErrInvalidRect)
	}

	out := image.NewRGBA(image.Rect(0, 0, px.Dx(), px.Dy()))
	draw.Draw(out, out.Bounds(), src, px.Min, draw.Src)

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("screenshot: encode selection: %w", err)
	}
	return buf.Bytes(), nil
}
