package node

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"videowall/internal/wall"
)

// Renderer receives the composed output frame once per tick. The node wires
// a framebuffer or SDL implementation in; tests and headless runs use
// NullRenderer.
type Renderer interface {
	Render(f *Frame) error
	Close() error
}

// NullRenderer discards frames. Used headless and in tests.
type NullRenderer struct{}

func (NullRenderer) Render(*Frame) error { return nil }
func (NullRenderer) Close() error        { return nil }

// tile is one quadrant of the compositor's active configuration.
type tile struct {
	camera  wall.CameraID
	adapter *Adapter

	// lastGood is the most recent frame actually drawn for this tile. Shown
	// again when the adapter has nothing fresh, so a hiccup freezes the tile
	// instead of blanking it.
	lastGood *Frame
}

// Compositor runs the fixed-cadence composition loop: every tick it takes
// the freshest frame from each tile's adapter, scales it into the layout
// grid, and hands the result to the renderer. The tick never waits on a
// source; a slow camera degrades its own tile only.
type Compositor struct {
	width  int
	height int
	fps    int
	maxAge time.Duration
	render Renderer
	log    *slog.Logger

	mu       sync.Mutex
	layout   wall.Layout
	tiles    []*tile
	wallCrop string
	output   *Frame
	seq      uint64
}

// NewCompositor builds a compositor producing width x height output at the
// given frame rate. Frames older than maxAge are not drawn fresh.
func NewCompositor(width, height, fps int, maxAge time.Duration, render Renderer, log *slog.Logger) *Compositor {
	if fps <= 0 {
		fps = 25
	}
	if maxAge <= 0 {
		maxAge = 200 * time.Millisecond
	}
	return &Compositor{
		width:  width,
		height: height,
		fps:    fps,
		maxAge: maxAge,
		render: render,
		log:    log,
		layout: wall.Layout1x1,
		tiles:  []*tile{{}},
	}
}

// SetTiles replaces the active layout and tile set. Adapters are owned by
// the client; the compositor only reads from them.
func (c *Compositor) SetTiles(layout wall.Layout, adapters []*Adapter, cameras []wall.CameraID, wallCrop string) {
	tiles := make([]*tile, layout.Slots())
	for i := range tiles {
		t := &tile{}
		if i < len(adapters) {
			t.adapter = adapters[i]
		}
		if i < len(cameras) {
			t.camera = cameras[i]
		}
		tiles[i] = t
	}

	c.mu.Lock()
	c.layout = layout
	c.tiles = tiles
	c.wallCrop = wallCrop
	c.mu.Unlock()
}

// Run drives the composition loop until the context is cancelled.
func (c *Compositor) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second / time.Duration(c.fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = c.render.Close()
			return
		case <-ticker.C:
			if err := c.composeTick(time.Now()); err != nil {
				c.log.Warn("render failed", slog.String("error", err.Error()))
			}
		}
	}
}

// composeTick builds and renders one output frame.
func (c *Compositor) composeTick(now time.Time) error {
	c.mu.Lock()
	layout := c.layout
	tiles := c.tiles
	crop := c.wallCrop
	c.mu.Unlock()

	out := c.blankFrame(now)
	rows, cols := layout.Grid()
	tileW := c.width / cols
	tileH := c.height / rows

	for i, t := range tiles {
		col := i % cols
		row := i / cols
		f := c.tileFrame(t, now)
		if f == nil {
			continue // placeholder: tile stays black
		}
		if crop != "" && layout == wall.Layout1x1 {
			f = cropQuadrant(f, crop)
		}
		drawScaled(out, f, col*tileW, row*tileH, tileW, tileH)
	}

	return c.render.Render(out)
}

// tileFrame picks what a tile shows this tick: a fresh frame if the adapter
// has one, otherwise the last frame drawn, otherwise nothing.
func (c *Compositor) tileFrame(t *tile, now time.Time) *Frame {
	if t.adapter != nil {
		if f := t.adapter.Latest(); f != nil && f.Age(now) <= c.maxAge {
			t.lastGood = f
			return f
		}
	}
	return t.lastGood
}

func (c *Compositor) blankFrame(now time.Time) *Frame {
	c.seq++
	return &Frame{
		Pix:       make([]byte, c.width*c.height*4),
		Width:     c.width,
		Height:    c.height,
		Timestamp: now,
		Sequence:  c.seq,
	}
}

// drawScaled draws src into dst at (dx, dy) with size dw x dh using
// nearest-neighbor sampling.
func drawScaled(dst, src *Frame, dx, dy, dw, dh int) {
	if src.Width == 0 || src.Height == 0 || dw == 0 || dh == 0 {
		return
	}
	for y := 0; y < dh; y++ {
		sy := y * src.Height / dh
		srcRow := sy * src.Width * 4
		dstRow := ((dy+y)*dst.Width + dx) * 4
		for x := 0; x < dw; x++ {
			sx := x * src.Width / dw
			copy(dst.Pix[dstRow+x*4:dstRow+x*4+4], src.Pix[srcRow+sx*4:srcRow+sx*4+4])
		}
	}
}

// cropQuadrant returns the named quarter of the frame, so four screens in a
// wall group each show their part of one camera.
func cropQuadrant(f *Frame, name string) *Frame {
	halfW := f.Width / 2
	halfH := f.Height / 2

	var ox, oy int
	switch name {
	case "top-left":
	case "top-right":
		ox = halfW
	case "bottom-left":
		oy = halfH
	case "bottom-right":
		ox, oy = halfW, halfH
	default:
		return f
	}

	out := &Frame{
		Pix:       make([]byte, halfW*halfH*4),
		Width:     halfW,
		Height:    halfH,
		Timestamp: f.Timestamp,
		Sequence:  f.Sequence,
	}
	for y := 0; y < halfH; y++ {
		srcOff := ((oy+y)*f.Width + ox) * 4
		copy(out.Pix[y*halfW*4:(y+1)*halfW*4], f.Pix[srcOff:srcOff+halfW*4])
	}
	return out
}
