package screenshot

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"testing"
)

func solid(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// near allows the rounding of the bilinear scaler.
func near(a, b color.RGBA) bool {
	d := func(x, y uint8) bool { return x-y <= 1 || y-x <= 1 }
	return d(a.R, b.R) && d(a.G, b.G) && d(a.B, b.B) && d(a.A, b.A)
}

func TestComposite_HighestIndexOwnsPixel(t *testing.T) {
	red := color.RGBA{255, 0, 0, 255}
	green := color.RGBA{0, 255, 0, 255}
	blue := color.RGBA{0, 0, 255, 255}
	g := Geometry{ViewportWidth: 40, ViewportHeight: 100, FullWidth: 40, FullHeight: 250, DevicePixelRatio: 1}
	segs := []Captured{
		{Segment: Segment{Index: 2, ScrollY: 150}, Image: solid(t, 40, 100, blue)},
		{Segment: Segment{Index: 0, ScrollY: 0}, Image: solid(t, 40, 100, red)},
		{Segment: Segment{Index: 1, ScrollY: 90}, Image: solid(t, 40, 100, green)},
	}
	colors := map[int]color.RGBA{0: red, 1: green, 2: blue}

	out, err := Composite(g, segs)
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 40 || b.Dy() != 250 {
		t.Fatalf("size: got %v, want 40x250", b)
	}

	for y := 0; y < 250; y++ {
		owner := -1
		for _, s := range segs {
			if y >= s.Segment.ScrollY && y < s.Segment.ScrollY+g.ViewportHeight && s.Segment.Index > owner {
				owner = s.Segment.Index
			}
		}
		for _, x := range []int{0, 39} {
			got := color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
			if got != colors[owner] {
				t.Fatalf("pixel (%d,%d): got %v, want segment %d colour %v", x, y, got, owner, colors[owner])
			}
		}
	}
}

func TestComposite_ScalesHighDPI(t *testing.T) {
	g := Geometry{ViewportWidth: 20, ViewportHeight: 10, FullWidth: 20, FullHeight: 15, DevicePixelRatio: 2}
	c0 := color.RGBA{10, 20, 30, 255}
	c1 := color.RGBA{200, 100, 50, 255}
	img, err := CompositeImage(g, []Captured{
		{Segment: Segment{Index: 0, ScrollY: 0}, Image: solid(t, 40, 20, c0)},
		{Segment: Segment{Index: 1, ScrollY: 5}, Image: solid(t, 40, 20, c1)},
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := img.RGBAAt(10, 2); !near(got, c0) {
		t.Fatalf("top: got %v, want %v", got, c0)
	}
	if got := img.RGBAAt(10, 12); !near(got, c1) {
		t.Fatalf("bottom: got %v, want %v", got, c1)
	}
}

func TestComposite_DecodeFailure(t *testing.T) {
	g := Geometry{ViewportWidth: 10, ViewportHeight: 10, FullWidth: 10, FullHeight: 19, DevicePixelRatio: 1}
	out, err := Composite(g, []Captured{
		{Segment: Segment{Index: 0, ScrollY: 0}, Image: solid(t, 10, 10, color.RGBA{A: 255})},
		{Segment: Segment{Index: 1, ScrollY: 9}, Image: []byte("not an image")},
	})
	if out != nil {
		t.Fatal("partial image returned")
	}
	var se *StitchError
	if !errors.As(err, &se) || se.Segment != 1 {
		t.Fatalf("error: got %v, want StitchError for segment 1", err)
	}
	if Code(err) != CodeStitchFailed {
		t.Fatalf("code: got %q", Code(err))
	}
}

func TestCrop(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 100, 80))
	draw.Draw(src, image.Rect(20, 10, 60, 40), &image.Uniform{C: color.RGBA{255, 0, 0, 255}}, image.Point{}, draw.Src)
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatal(err)
	}

	out, err := Crop(buf.Bytes(), Rect{X: 10, Y: 5, Width: 20, Height: 15}, 2)
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 40 || b.Dy() != 30 {
		t.Fatalf("size: got %v, want 40x30", b)
	}
	if got := color.RGBAModel.Convert(img.At(0, 0)).(color.RGBA); got.R != 255 {
		t.Fatalf("pixel: got %v", got)
	}

	// Clamped to the image.
	out, err = Crop(buf.Bytes(), Rect{X: 90, Y: 70, Width: 50, Height: 50}, 1)
	if err != nil {
		t.Fatal(err)
	}
	cfg, _ := png.DecodeConfig(bytes.NewReader(out))
	if cfg.Width != 10 || cfg.Height != 10 {
		t.Fatalf("clamped size: got %dx%d", cfg.Width, cfg.Height)
	}
}

func TestCrop_Invalid(t *testing.T) {
	data := solid(t, 10, 10, color.RGBA{A: 255})
	for _, r := range []Rect{
		{Width: 0, Height: 5},
		{Width: 5, Height: -1},
		{X: 50, Y: 50, Width: 5, Height: 5},
	} {
		if _, err := Crop(data, r, 1); !errors.Is(err, ErrInvalidRect) {
			t.Errorf("Crop(%+v): got %v, want ErrInvalidRect", r, err)
		}
	}
}
