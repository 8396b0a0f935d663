package wall

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrCameraNotFound is returned when a camera id is not registered.
	ErrCameraNotFound = errors.New("camera not found")

	// ErrCameraInUse is returned when deregistering a camera that is still
	// referenced by a scene or a live assignment.
	ErrCameraInUse = errors.New("camera referenced by a scene or assignment")
)

// Default thresholds for deriving a camera's connectivity state from stream
// adapter reports.
const (
	DefaultDegradedThreshold = 3
	DefaultFailedSilence     = 60 * time.Second
)

// Registry holds camera definitions and tracks live connectivity state per
// camera. State transitions are driven exclusively by stream adapter reports
// relayed through the node protocol; authoring callers may only register and
// deregister.
type Registry struct {
	mu    sync.RWMutex
	store Store

	degradedThreshold int
	failedSilence     time.Duration

	now func() time.Time // stubbed in tests
}

// NewRegistry constructs a camera registry backed by the given store.
func NewRegistry(store Store) *Registry {
	return &Registry{
		store:             store,
		degradedThreshold: DefaultDegradedThreshold,
		failedSilence:     DefaultFailedSilence,
		now:               time.Now,
	}
}

// SetThresholds overrides the consecutive-failure count that marks a camera
// degraded and the silence window after which it is marked failed.
func (r *Registry) SetThresholds(degradedAfter int, failedSilence time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if degradedAfter > 0 {
		r.degradedThreshold = degradedAfter
	}
	if failedSilence > 0 {
		r.failedSilence = failedSilence
	}
}

// Register adds a camera definition. If the camera carries no id, one is
// generated. Registering an existing id overwrites the definition but keeps
// the current connectivity state.
func (r *Registry) Register(c *Camera) CameraID {
	r.mu.Lock()
	defer r.mu.Unlock()

	if c.ID == "" {
		c.ID = CameraID(uuid.NewString())
	}
	if prev, ok := r.store.GetCamera(c.ID); ok {
		c.State = prev.State
		c.ConsecutiveFailures = prev.ConsecutiveFailures
		c.LastSuccess = prev.LastSuccess
	} else if c.State == "" {
		c.State = CameraUnknown
	}
	r.store.SetCamera(c)
	return c.ID
}

// Deregister removes a camera. inUse is consulted first; it reports whether
// any scene or active assignment still references the camera.
func (r *Registry) Deregister(id CameraID, inUse func(CameraID) bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.store.GetCamera(id); !ok {
		return ErrCameraNotFound
	}
	if inUse != nil && inUse(id) {
		return ErrCameraInUse
	}
	r.store.DeleteCamera(id)
	return nil
}

// Get returns a copy of the camera with the given id.
func (r *Registry) Get(id CameraID) (Camera, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.store.GetCamera(id)
	if !ok {
		return Camera{}, ErrCameraNotFound
	}
	return *c, nil
}

// List returns copies of all registered cameras.
func (r *Registry) List() []Camera {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.store.ListCameraIDs()
	out := make([]Camera, 0, len(ids))
	for _, id := range ids {
		if c, ok := r.store.GetCamera(id); ok {
			out = append(out, *c)
		}
	}
	return out
}

// LiveCount returns the number of cameras currently in the live state.
// Used for metrics.
func (r *Registry) LiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, id := range r.store.ListCameraIDs() {
		if c, ok := r.store.GetCamera(id); ok && c.State == CameraLive {
			n++
		}
	}
	return n
}

// ReportStream applies a stream adapter report for the camera and returns the
// resulting state. connected means a frame was delivered since the last
// report; failures is the adapter's consecutive-failure count.
//
// live       <- connected
// connecting <- not connected, below the degraded threshold
// degraded   <- failures >= threshold
// failed     <- degraded and silent longer than the failure window
func (r *Registry) ReportStream(id CameraID, connected bool, failures int) (CameraState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.store.GetCamera(id)
	if !ok {
		return "", ErrCameraNotFound
	}

	if connected {
		c.State = CameraLive
		c.ConsecutiveFailures = 0
		c.LastSuccess = r.now()
		c.FailingSince = time.Time{}
		r.store.SetCamera(c)
		return c.State, nil
	}

	c.ConsecutiveFailures = failures
	if c.FailingSince.IsZero() {
		c.FailingSince = r.now()
	}

	// The silence window runs from the last delivered frame, or from the
	// first failure report for cameras that never connected.
	since := c.LastSuccess
	if since.IsZero() {
		since = c.FailingSince
	}

	switch {
	case failures >= r.degradedThreshold && r.now().Sub(since) > r.failedSilence:
		c.State = CameraFailed
	case failures >= r.degradedThreshold:
		c.State = CameraDegraded
	default:
		c.State = CameraConnecting
	}
	r.store.SetCamera(c)
	return c.State, nil
}
