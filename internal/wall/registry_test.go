package wall

import (
	"errors"
	"testing"
	"time"
)

func newTestRegistry() (*Registry, *time.Time) {
	r := NewRegistry(NewMemoryStore())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }
	return r, &now
}

func TestRegistry_Register_generates_id(t *testing.T) {
	r, _ := newTestRegistry()
	id := r.Register(&Camera{Name: "gate"})
	if id == "" {
		t.Fatal("expected generated camera id")
	}
	c, err := r.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if c.State != CameraUnknown {
		t.Errorf("new camera state = %q, want unknown", c.State)
	}
}

func TestRegistry_Register_overwrite_keeps_state(t *testing.T) {
	r, _ := newTestRegistry()
	id := r.Register(&Camera{ID: "cam1", Name: "gate"})
	if _, err := r.ReportStream(id, true, 0); err != nil {
		t.Fatalf("ReportStream: %v", err)
	}

	r.Register(&Camera{ID: "cam1", Name: "gate renamed", IP: "10.0.0.9"})
	c, _ := r.Get(id)
	if c.State != CameraLive {
		t.Errorf("state after overwrite = %q, want live", c.State)
	}
	if c.Name != "gate renamed" || c.IP != "10.0.0.9" {
		t.Error("definition fields should be replaced on overwrite")
	}
}

func TestRegistry_Deregister(t *testing.T) {
	r, _ := newTestRegistry()
	id := r.Register(&Camera{Name: "gate"})

	t.Run("not found", func(t *testing.T) {
		if err := r.Deregister("missing", nil); !errors.Is(err, ErrCameraNotFound) {
			t.Errorf("expected ErrCameraNotFound, got %v", err)
		}
	})

	t.Run("in use", func(t *testing.T) {
		err := r.Deregister(id, func(CameraID) bool { return true })
		if !errors.Is(err, ErrCameraInUse) {
			t.Errorf("expected ErrCameraInUse, got %v", err)
		}
		if _, err := r.Get(id); err != nil {
			t.Error("camera should survive a refused deregister")
		}
	})

	t.Run("removed", func(t *testing.T) {
		if err := r.Deregister(id, func(CameraID) bool { return false }); err != nil {
			t.Fatalf("Deregister: %v", err)
		}
		if _, err := r.Get(id); !errors.Is(err, ErrCameraNotFound) {
			t.Error("camera should be gone after deregister")
		}
	})
}

func TestRegistry_ReportStream_transitions(t *testing.T) {
	r, now := newTestRegistry()
	id := r.Register(&Camera{ID: "cam1"})

	state, err := r.ReportStream(id, false, 1)
	if err != nil {
		t.Fatalf("ReportStream: %v", err)
	}
	if state != CameraConnecting {
		t.Errorf("1 failure = %q, want connecting", state)
	}

	state, _ = r.ReportStream(id, false, 3)
	if state != CameraDegraded {
		t.Errorf("3 failures = %q, want degraded", state)
	}

	// Still degraded inside the silence window.
	*now = now.Add(30 * time.Second)
	state, _ = r.ReportStream(id, false, 4)
	if state != CameraDegraded {
		t.Errorf("degraded within silence window = %q", state)
	}

	// Past the window (camera never connected, measured from first failure).
	*now = now.Add(45 * time.Second)
	state, _ = r.ReportStream(id, false, 5)
	if state != CameraFailed {
		t.Errorf("silent past window = %q, want failed", state)
	}

	// A delivered frame recovers the camera fully.
	state, _ = r.ReportStream(id, true, 0)
	if state != CameraLive {
		t.Errorf("connected report = %q, want live", state)
	}
	c, _ := r.Get(id)
	if c.ConsecutiveFailures != 0 || c.LastSuccess.IsZero() {
		t.Error("live report should reset failures and set last success")
	}
}

func TestRegistry_ReportStream_failed_measured_from_last_success(t *testing.T) {
	r, now := newTestRegistry()
	id := r.Register(&Camera{ID: "cam1"})
	_, _ = r.ReportStream(id, true, 0)

	*now = now.Add(30 * time.Second)
	state, _ := r.ReportStream(id, false, 3)
	if state != CameraDegraded {
		t.Errorf("30s after success = %q, want degraded", state)
	}

	*now = now.Add(31 * time.Second)
	state, _ = r.ReportStream(id, false, 4)
	if state != CameraFailed {
		t.Errorf("61s after success = %q, want failed", state)
	}
}

func TestRegistry_ReportStream_unknown_camera(t *testing.T) {
	r, _ := newTestRegistry()
	if _, err := r.ReportStream("missing", true, 0); !errors.Is(err, ErrCameraNotFound) {
		t.Errorf("expected ErrCameraNotFound, got %v", err)
	}
}

func TestRegistry_LiveCount(t *testing.T) {
	r, _ := newTestRegistry()
	a := r.Register(&Camera{ID: "a"})
	r.Register(&Camera{ID: "b"})
	_, _ = r.ReportStream(a, true, 0)

	if n := r.LiveCount(); n != 1 {
		t.Errorf("LiveCount = %d, want 1", n)
	}
}
