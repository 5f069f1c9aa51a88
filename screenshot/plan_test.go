package screenshot

import (
	"errors"
	"testing"
)

func TestPlan_SinglePage(t *testing.T) {
	for _, fh := range []int{1, 300, 599, 600} {
		segs, err := Plan(Geometry{ViewportWidth: 800, ViewportHeight: 600, FullWidth: 800, FullHeight: fh, DevicePixelRatio: 1}, PlanOptions{})
		if err != nil {
			t.Fatalf("full height %d: %v", fh, err)
		}
		if len(segs) != 1 || segs[0] != (Segment{Index: 0, ScrollY: 0}) {
			t.Fatalf("full height %d: got %v, want one segment at 0", fh, segs)
		}
	}
}

func TestPlan_Example(t *testing.T) {
	segs, err := Plan(Geometry{ViewportWidth: 800, ViewportHeight: 600, FullWidth: 800, FullHeight: 1500, DevicePixelRatio: 1}, PlanOptions{})
	if err != nil {
		t.Fatal(err)
	}
	want := []int{0, 540, 900}
	if len(segs) != len(want) {
		t.Fatalf("segments: got %d, want %d", len(segs), len(want))
	}
	for i, y := range want {
		if segs[i].Index != i || segs[i].ScrollY != y {
			t.Fatalf("segment %d: got %+v, want scrollY %d", i, segs[i], y)
		}
	}
}

func TestPlan_Coverage(t *testing.T) {
	for _, vh := range []int{1, 7, 100, 600, 777, 1080} {
		for _, fh := range []int{vh + 1, vh * 2, vh*3 + 13, 5000, 23456} {
			g := Geometry{ViewportWidth: 100, ViewportHeight: vh, FullWidth: 100, FullHeight: fh, DevicePixelRatio: 1}
			segs, err := Plan(g, PlanOptions{})
			if err != nil {
				t.Fatalf("vh=%d fh=%d: %v", vh, fh, err)
			}
			step := PlanOptions{}.Step(vh)
			maxY := fh - vh

			if segs[0].ScrollY != 0 {
				t.Fatalf("vh=%d fh=%d: first offset %d", vh, fh, segs[0].ScrollY)
			}
			if last := segs[len(segs)-1].ScrollY; last != maxY {
				t.Fatalf("vh=%d fh=%d: last offset got %d, want %d", vh, fh, last, maxY)
			}
			for i := 1; i < len(segs); i++ {
				prev, cur := segs[i-1].ScrollY, segs[i].ScrollY
				if cur < prev {
					t.Fatalf("vh=%d fh=%d: offsets decrease at %d: %d -> %d", vh, fh, i, prev, cur)
				}
				if cur-prev > vh {
					t.Fatalf("vh=%d fh=%d: gap at %d", vh, fh, i)
				}
				// Unclamped pairs overlap by exactly vh - step.
				if cur < maxY {
					if overlap := vh - (cur - prev); overlap != vh-step {
						t.Fatalf("vh=%d fh=%d: overlap at %d got %d, want %d", vh, fh, i, overlap, vh-step)
					}
				}
			}
		}
	}
}

func TestPlan_PageTooLarge(t *testing.T) {
	g := Geometry{ViewportWidth: 1000, ViewportHeight: 800, FullWidth: 1000, FullHeight: 80_001, DevicePixelRatio: 1}
	segs, err := Plan(g, PlanOptions{})
	if len(segs) != 0 {
		t.Fatalf("segments: got %d, want 0", len(segs))
	}
	if !errors.Is(err, ErrPageTooLarge) {
		t.Fatalf("error: got %v, want ErrPageTooLarge", err)
	}
	var tooLarge *PageTooLargeError
	if !errors.As(err, &tooLarge) || tooLarge.Limit != DefaultMaxPixels {
		t.Fatalf("error: got %#v", err)
	}

	// Exactly at the ceiling is allowed.
	g.FullHeight = 80_000
	if _, err := Plan(g, PlanOptions{}); err != nil {
		t.Fatalf("at ceiling: %v", err)
	}
}

func TestPlan_Options(t *testing.T) {
	g := Geometry{ViewportWidth: 100, ViewportHeight: 100, FullWidth: 100, FullHeight: 400, DevicePixelRatio: 1}
	segs, err := Plan(g, PlanOptions{StepRatio: 0.5, MaxPixels: 40_000})
	if err != nil {
		t.Fatal(err)
	}
	if len(segs) != 8 || segs[1].ScrollY != 50 || segs[7].ScrollY != 300 {
		t.Fatalf("got %v", segs)
	}
	if _, err := Plan(g, PlanOptions{MaxPixels: 39_999}); !errors.Is(err, ErrPageTooLarge) {
		t.Fatalf("custom ceiling: got %v", err)
	}
}

func TestPlan_InvalidGeometry(t *testing.T) {
	tests := []Geometry{
		{ViewportWidth: 0, ViewportHeight: 600, FullWidth: 800, FullHeight: 1500},
		{ViewportWidth: 800, ViewportHeight: 0, FullWidth: 800, FullHeight: 1500},
		{ViewportWidth: 800, ViewportHeight: 600, FullWidth: 800, FullHeight: -1},
	}
	for _, g := range tests {
		if _, err := Plan(g, PlanOptions{}); !errors.Is(err, ErrInvalidGeometry) {
			t.Errorf("Plan(%+v): got %v, want ErrInvalidGeometry", g, err)
		}
	}
}
