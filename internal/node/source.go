// Package node implements the display node client: per-camera stream source
// adapters with reconnect state machines, the fixed-cadence composition loop,
// and the WebSocket link back to the orchestration server.
package node

import (
	"context"
	"errors"
	"time"
)

// Frame is one decoded image from a camera stream: raw RGBA pixels plus the
// acquisition timestamp (producer clock) and a per-source sequence counter.
// A frame is owned by its adapter until handed to the composition step and is
// never mutated after publication.
type Frame struct {
	Pix       []byte
	Width     int
	Height    int
	Timestamp time.Time
	Sequence  uint64
}

// Age returns how old the frame is relative to now.
func (f *Frame) Age(now time.Time) time.Duration {
	return now.Sub(f.Timestamp)
}

var (
	// ErrConnect means the source is unreachable. Retried with backoff,
	// never fatal.
	ErrConnect = errors.New("source connect failed")

	// ErrTimeout means no frame was ready by the deadline. Degrades the
	// current tick only.
	ErrTimeout = errors.New("frame not ready by deadline")

	// ErrStreamEnded means the source closed the stream. Treated like
	// ErrConnect for retry purposes.
	ErrStreamEnded = errors.New("stream ended")

	// ErrClosed is returned by a pull in flight when the source is closed.
	ErrClosed = errors.New("source closed")
)

// Source yields decoded frames from one camera stream. Close must release
// the network resource immediately and be safe to call while a NextFrame is
// in flight; that pull returns ErrClosed rather than hanging.
type Source interface {
	// Open establishes the stream. Returns ErrConnect (wrapped) on failure.
	Open(ctx context.Context) error

	// NextFrame returns the next decoded frame, waiting at most deadline.
	NextFrame(ctx context.Context, deadline time.Duration) (*Frame, error)

	// Close releases the stream resource.
	Close() error
}

// SourceFactory builds a Source for a resolved stream URI decoding to the
// given output size. The node wires in the ffmpeg implementation; tests
// substitute scripted fakes.
type SourceFactory func(uri string, width, height int) Source
