package node

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"videowall/internal/wall"
)

// AdapterState is the per-adapter connection state machine:
// disconnected -> connecting -> live -> degraded -> failed -> connecting.
type AdapterState string

const (
	StateDisconnected AdapterState = "disconnected"
	StateConnecting   AdapterState = "connecting"
	StateLive         AdapterState = "live"
	StateDegraded     AdapterState = "degraded"
	StateFailed       AdapterState = "failed"
)

// StateReport is an adapter's connectivity report, relayed to the server so
// the registry can track camera health.
type StateReport struct {
	Camera    wall.CameraID
	State     AdapterState
	Connected bool
	Failures  int
}

// AdapterConfig carries the timing knobs of one stream adapter.
type AdapterConfig struct {
	// ReconnectInterval is the fixed backoff between connect attempts.
	ReconnectInterval time.Duration

	// MaxFrameAge bounds end-to-end latency: frames older than this are
	// discarded rather than delivered (fresh-over-complete).
	MaxFrameAge time.Duration

	// StallTimeout is how long a live stream may deliver nothing before the
	// adapter treats it as ended and reconnects.
	StallTimeout time.Duration

	// DegradedAfter is the consecutive-failure count at which the adapter
	// reports itself degraded.
	DegradedAfter int

	// FailedSilence is how long without a delivered frame before a degraded
	// adapter reports itself failed.
	FailedSilence time.Duration
}

func (c *AdapterConfig) fillDefaults() {
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = 10 * time.Second
	}
	if c.MaxFrameAge <= 0 {
		c.MaxFrameAge = 200 * time.Millisecond
	}
	if c.StallTimeout <= 0 {
		c.StallTimeout = 5 * time.Second
	}
	if c.DegradedAfter <= 0 {
		c.DegradedAfter = 3
	}
	if c.FailedSilence <= 0 {
		c.FailedSilence = 60 * time.Second
	}
}

// Adapter owns one camera stream: it pulls frames on its own cadence, keeps
// only the latest one in a single-slot mailbox, and retries the source
// forever at the configured backoff. Failures are absorbed into state
// reports; they never propagate to the composition loop.
type Adapter struct {
	camera    wall.CameraID
	uri       string
	newSource func() Source
	cfg       AdapterConfig
	report    func(StateReport)
	log       *slog.Logger

	mu     sync.Mutex
	src    Source // current connection attempt, nil between attempts
	latest *Frame
	state  AdapterState

	cancel context.CancelFunc
	done   chan struct{}
}

// NewAdapter builds an adapter for the camera's resolved stream URI. A fresh
// Source is created for every connection attempt; a closed one is never
// reused. report may be nil. Call Start to begin pulling.
func NewAdapter(camera wall.CameraID, uri string, newSource func() Source, cfg AdapterConfig, report func(StateReport), log *slog.Logger) *Adapter {
	cfg.fillDefaults()
	if report == nil {
		report = func(StateReport) {}
	}
	return &Adapter{
		camera:    camera,
		uri:       uri,
		newSource: newSource,
		cfg:       cfg,
		report:    report,
		log:       log,
		state:     StateDisconnected,
		done:      make(chan struct{}),
	}
}

// URI returns the stream URI the adapter was built for, used by the client
// to diff configuration updates.
func (a *Adapter) URI() string { return a.uri }

// Start launches the adapter's pull loop.
func (a *Adapter) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	go a.run(ctx)
}

// Close stops the pull loop and releases the current source immediately.
// Safe to call while a pull is in flight.
func (a *Adapter) Close() {
	if a.cancel == nil {
		return // never started
	}
	a.cancel()
	a.mu.Lock()
	src := a.src
	a.mu.Unlock()
	if src != nil {
		_ = src.Close()
	}
	<-a.done
}

// Latest returns the newest delivered frame, or nil when none is fresh
// enough to have been kept. The caller checks age against its own budget.
func (a *Adapter) Latest() *Frame {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.latest
}

// State returns the adapter's current connection state.
func (a *Adapter) State() AdapterState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Adapter) run(ctx context.Context) {
	defer close(a.done)

	failures := 0
	var lastFrame, firstFailure time.Time

	for {
		if ctx.Err() != nil {
			return
		}

		a.setState(StateConnecting)
		a.report(StateReport{Camera: a.camera, State: StateConnecting, Failures: failures})

		src := a.newSource()
		a.setSource(src)

		if err := src.Open(ctx); err != nil {
			_ = src.Close()
			a.setSource(nil)
			failures++
			if firstFailure.IsZero() {
				firstFailure = time.Now()
			}
			a.onFailure(failures, lastFrame, firstFailure)
			a.log.Warn("stream connect failed",
				slog.String("camera", string(a.camera)),
				slog.Int("failures", failures),
				slog.String("error", err.Error()))
			if !a.sleep(ctx, a.cfg.ReconnectInterval) {
				return
			}
			continue
		}

		stalled := a.pullUntilStall(ctx, src, &failures, &lastFrame, &firstFailure)
		_ = src.Close()
		a.setSource(nil)
		if !stalled {
			return // ctx cancelled
		}

		failures++
		if firstFailure.IsZero() {
			firstFailure = time.Now()
		}
		a.onFailure(failures, lastFrame, firstFailure)
		if !a.sleep(ctx, a.cfg.ReconnectInterval) {
			return
		}
	}
}

// pullUntilStall pulls frames while the stream is healthy. Returns true when
// the stream ended or stalled (caller reconnects), false when the context
// was cancelled.
func (a *Adapter) pullUntilStall(ctx context.Context, src Source, failures *int, lastFrame, firstFailure *time.Time) bool {
	stallDeadline := time.Now().Add(a.cfg.StallTimeout)

	for {
		if ctx.Err() != nil {
			return false
		}

		f, err := src.NextFrame(ctx, a.cfg.MaxFrameAge)
		switch {
		case err == nil:
			// Stale frames are dropped, never delivered: a late frame is
			// worse than no frame for a live wall.
			if f.Age(time.Now()) <= a.cfg.MaxFrameAge {
				a.mu.Lock()
				a.latest = f
				first := a.state != StateLive
				a.state = StateLive
				a.mu.Unlock()

				*lastFrame = f.Timestamp
				if *failures != 0 || first {
					*failures = 0
					*firstFailure = time.Time{}
					a.report(StateReport{Camera: a.camera, State: StateLive, Connected: true})
					a.log.Info("stream live", slog.String("camera", string(a.camera)))
				}
			}
			stallDeadline = time.Now().Add(a.cfg.StallTimeout)

		case errors.Is(err, ErrTimeout):
			// Degrades this pull only, unless the stream has been silent
			// past the stall budget.
			if time.Now().After(stallDeadline) {
				a.log.Warn("stream stalled, reconnecting",
					slog.String("camera", string(a.camera)))
				return true
			}

		case errors.Is(err, ErrClosed):
			return false

		default: // ErrStreamEnded and transport errors
			a.log.Warn("stream ended",
				slog.String("camera", string(a.camera)),
				slog.String("error", err.Error()))
			return true
		}
	}
}

// onFailure derives the reported state from the failure count and the time
// since the last delivered frame. A camera that never delivered measures its
// silence from the first failure instead.
func (a *Adapter) onFailure(failures int, lastFrame, firstFailure time.Time) {
	state := StateConnecting
	if failures >= a.cfg.DegradedAfter {
		state = StateDegraded
		since := lastFrame
		if since.IsZero() {
			since = firstFailure
		}
		if !since.IsZero() && time.Since(since) > a.cfg.FailedSilence {
			state = StateFailed
		}
	}
	a.setState(state)
	a.report(StateReport{Camera: a.camera, State: state, Failures: failures})
}

func (a *Adapter) setState(s AdapterState) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

func (a *Adapter) setSource(src Source) {
	a.mu.Lock()
	a.src = src
	a.mu.Unlock()
}

func (a *Adapter) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
