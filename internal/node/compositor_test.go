package node

import (
	"context"
	"sync"
	"testing"
	"time"

	"videowall/internal/wall"
)

type captureRenderer struct {
	mu    sync.Mutex
	last  *Frame
	calls int
}

func (r *captureRenderer) Render(f *Frame) error {
	r.mu.Lock()
	r.last = f
	r.calls++
	r.mu.Unlock()
	return nil
}

func (r *captureRenderer) Close() error { return nil }

func (r *captureRenderer) frame() *Frame {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// solidFrame builds a w x h frame with every pixel set to the given RGBA value.
func solidFrame(w, h int, rgba [4]byte, ts time.Time) *Frame {
	pix := make([]byte, w*h*4)
	for i := 0; i < len(pix); i += 4 {
		copy(pix[i:i+4], rgba[:])
	}
	return &Frame{Pix: pix, Width: w, Height: h, Timestamp: ts}
}

// latestAdapter builds an adapter that is never started; tests plant its
// published frame directly.
func latestAdapter(f *Frame) *Adapter {
	a := NewAdapter("cam", "rtsp://fake", nil, AdapterConfig{}, nil, testLogger())
	a.latest = f
	return a
}

func pixelAt(f *Frame, x, y int) [4]byte {
	off := (y*f.Width + x) * 4
	var p [4]byte
	copy(p[:], f.Pix[off:off+4])
	return p
}

func TestCompositor_composeTick_draws_fresh_frames(t *testing.T) {
	now := time.Now()
	render := &captureRenderer{}
	comp := NewCompositor(4, 4, 25, time.Second, render, testLogger())

	red := [4]byte{255, 0, 0, 255}
	comp.SetTiles(wall.Layout2x2,
		[]*Adapter{latestAdapter(solidFrame(2, 2, red, now)), nil, nil, nil},
		[]wall.CameraID{"c1", "", "", ""}, "")

	if err := comp.composeTick(now); err != nil {
		t.Fatalf("composeTick: %v", err)
	}
	out := render.frame()
	if out == nil || out.Width != 4 || out.Height != 4 {
		t.Fatalf("output frame = %+v", out)
	}

	// Top-left quadrant carries the camera, the rest stays black.
	if pixelAt(out, 0, 0) != red || pixelAt(out, 1, 1) != red {
		t.Error("top-left quadrant should be red")
	}
	black := [4]byte{}
	if pixelAt(out, 3, 0) != black || pixelAt(out, 0, 3) != black || pixelAt(out, 3, 3) != black {
		t.Error("unassigned quadrants should stay black")
	}
}

func TestCompositor_stale_frame_falls_back_to_last_good(t *testing.T) {
	t0 := time.Now()
	render := &captureRenderer{}
	comp := NewCompositor(2, 2, 25, 100*time.Millisecond, render, testLogger())

	blue := [4]byte{0, 0, 255, 255}
	a := latestAdapter(solidFrame(2, 2, blue, t0))
	comp.SetTiles(wall.Layout1x1, []*Adapter{a}, []wall.CameraID{"c1"}, "")

	// Fresh on the first tick.
	if err := comp.composeTick(t0); err != nil {
		t.Fatalf("composeTick: %v", err)
	}
	if pixelAt(render.frame(), 0, 0) != blue {
		t.Fatal("fresh frame should be drawn")
	}

	// One second later the frame is stale but the tile keeps its last image
	// instead of blanking.
	if err := comp.composeTick(t0.Add(time.Second)); err != nil {
		t.Fatalf("composeTick: %v", err)
	}
	if pixelAt(render.frame(), 0, 0) != blue {
		t.Error("stale tile should keep showing the last good frame")
	}
}

func TestCompositor_placeholder_without_frames(t *testing.T) {
	render := &captureRenderer{}
	comp := NewCompositor(2, 2, 25, time.Second, render, testLogger())
	comp.SetTiles(wall.Layout1x1, []*Adapter{latestAdapter(nil)}, []wall.CameraID{"c1"}, "")

	if err := comp.composeTick(time.Now()); err != nil {
		t.Fatalf("composeTick: %v", err)
	}
	if pixelAt(render.frame(), 0, 0) != [4]byte{} {
		t.Error("tile with no frames should render black")
	}
}

func TestCompositor_wall_crop(t *testing.T) {
	now := time.Now()
	render := &captureRenderer{}
	comp := NewCompositor(2, 2, 25, time.Second, render, testLogger())

	// 4x4 source with a distinct color per quadrant.
	src := solidFrame(4, 4, [4]byte{1, 1, 1, 255}, now)
	colors := map[string][4]byte{
		"top-left":     {1, 1, 1, 255},
		"top-right":    {2, 2, 2, 255},
		"bottom-left":  {3, 3, 3, 255},
		"bottom-right": {4, 4, 4, 255},
	}
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			c := colors["top-left"]
			switch {
			case y < 2 && x >= 2:
				c = colors["top-right"]
			case y >= 2 && x < 2:
				c = colors["bottom-left"]
			case y >= 2 && x >= 2:
				c = colors["bottom-right"]
			}
			copy(src.Pix[(y*4+x)*4:], c[:])
		}
	}

	for crop, want := range colors {
		comp.SetTiles(wall.Layout1x1, []*Adapter{latestAdapter(src)}, []wall.CameraID{"c1"}, crop)
		if err := comp.composeTick(now); err != nil {
			t.Fatalf("composeTick(%s): %v", crop, err)
		}
		out := render.frame()
		if pixelAt(out, 0, 0) != want || pixelAt(out, 1, 1) != want {
			t.Errorf("crop %s: output pixel = %v, want %v", crop, pixelAt(out, 0, 0), want)
		}
	}
}

func TestDrawScaled_upscales(t *testing.T) {
	dst := &Frame{Pix: make([]byte, 4*4*4), Width: 4, Height: 4}
	src := solidFrame(1, 1, [4]byte{9, 9, 9, 255}, time.Now())

	drawScaled(dst, src, 0, 0, 4, 4)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			if pixelAt(dst, x, y) != [4]byte{9, 9, 9, 255} {
				t.Fatalf("pixel (%d,%d) not filled", x, y)
			}
		}
	}
}

func TestCompositor_Run_ticks(t *testing.T) {
	render := &captureRenderer{}
	comp := NewCompositor(2, 2, 100, time.Second, render, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go comp.Run(ctx)

	waitFor(t, "render ticks", func() bool {
		render.mu.Lock()
		defer render.mu.Unlock()
		return render.calls >= 3
	})
	cancel()
}
