package wall

import "time"

// CameraID uniquely identifies a registered camera.
type CameraID string

// ScreenID identifies a physical display node.
type ScreenID string

// SceneID identifies a saved scene.
type SceneID string

// CameraState is the last-known connectivity state of a camera. Transitions
// are driven exclusively by stream adapter reports relayed through the node
// boundary; authoring callers never force a state.
type CameraState string

const (
	CameraUnknown    CameraState = "unknown"
	CameraConnecting CameraState = "connecting"
	CameraLive       CameraState = "live"
	CameraDegraded   CameraState = "degraded"
	CameraFailed     CameraState = "failed"
)

// ScreenState is the liveness state of a display node as tracked by the
// orchestration server.
type ScreenState string

const (
	ScreenOffline     ScreenState = "offline"
	ScreenRegistering ScreenState = "registering"
	ScreenOnline      ScreenState = "online"
	ScreenStale       ScreenState = "stale"
)

// Camera holds a camera definition plus its live connectivity state.
// This also matches the JSON shape of entries in the cameras file.
type Camera struct {
	ID    CameraID `json:"id"`
	Name  string   `json:"name"`
	Zone  string   `json:"zone,omitempty"`
	Model string   `json:"model,omitempty"`

	// Connection descriptor. RTSPTemplate uses {placeholder} substitution;
	// when empty the legacy Axis URL format is used.
	IP           string `json:"ip"`
	Port         int    `json:"port,omitempty"`
	Login        string `json:"login,omitempty"`
	Password     string `json:"password,omitempty"`
	RTSPTemplate string `json:"rtsp_template,omitempty"`
	Channel      int    `json:"channel,omitempty"`
	Stream       int    `json:"stream,omitempty"`
	Quality      string `json:"quality,omitempty"`
	FPS          int    `json:"stream_fps,omitempty"`

	// Capability hints used for per-layout stream adaptation.
	Resolution           string            `json:"stream_resolution,omitempty"`
	SupportedResolutions []string          `json:"supported_resolutions,omitempty"`
	LayoutOverrides      map[Layout]Params `json:"layout_config,omitempty"`

	// QuadrantHint places the camera in a 2x2 auto-layout (1..4, row-major).
	// Zero means no hint.
	QuadrantHint int `json:"quadrant_hint,omitempty"`

	// Mutated by adapter state reports only.
	State               CameraState `json:"state"`
	ConsecutiveFailures int         `json:"-"`
	LastSuccess         time.Time   `json:"last_success,omitempty"`
	FailingSince        time.Time   `json:"-"`
}

// Params is a set of stream parameter overrides applied for a specific layout.
type Params struct {
	Channel    int    `json:"channel,omitempty"`
	Stream     int    `json:"stream,omitempty"`
	Quality    string `json:"quality,omitempty"`
	Resolution string `json:"resolution,omitempty"`
	FPS        int    `json:"fps,omitempty"`
}

// Position is the physical location of a screen in the authoring canvas,
// used for wall-group detection.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Screen is the server-side record of a display node.
type Screen struct {
	ID            ScreenID    `json:"id"`
	Name          string      `json:"name"`
	Addr          string      `json:"addr,omitempty"`
	Layout        Layout      `json:"layout"`
	State         ScreenState `json:"state"`
	LastHeartbeat time.Time   `json:"last_heartbeat"`
	Position      *Position   `json:"position,omitempty"`
}

// Assignment binds one quadrant of one screen to a camera. An empty CameraID
// means the quadrant renders a placeholder.
type Assignment struct {
	Screen   ScreenID `json:"screen"`
	Quadrant int      `json:"quadrant"`
	Camera   CameraID `json:"camera,omitempty"`
}

// ScreenConfig is the full replacement configuration snapshot for one screen.
// Version increases monotonically with every mutation that affects the
// screen, making duplicate pushes idempotent on the node side.
type ScreenConfig struct {
	Screen  ScreenID   `json:"screen"`
	Version uint64     `json:"version"`
	Layout  Layout     `json:"layout"`
	Cameras []CameraID `json:"cameras"` // row-major, empty entries for blank quadrants
}

// Scene is a named, persisted snapshot of quadrant-to-camera assignments for
// a set of screens. Immutable once saved except by explicit overwrite.
type Scene struct {
	ID          SceneID                 `json:"id"`
	Name        string                  `json:"name"`
	Description string                  `json:"description,omitempty"`
	CreatedAt   time.Time               `json:"created_at"`
	ModifiedAt  time.Time               `json:"modified_at"`
	Screens     map[ScreenID]SceneEntry `json:"screens"`
}

// SceneEntry captures one screen's layout and row-major camera list inside a
// scene snapshot.
type SceneEntry struct {
	Layout   Layout     `json:"layout"`
	Cameras  []CameraID `json:"cameras"`
	Position *Position  `json:"position,omitempty"`
}

// References reports whether the scene assigns the given camera anywhere.
func (s *Scene) References(id CameraID) bool {
	for _, entry := range s.Screens {
		for _, cam := range entry.Cameras {
			if cam == id {
				return true
			}
		}
	}
	return false
}
