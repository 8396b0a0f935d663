// Package protocol defines the JSON messages exchanged between the
// orchestration server and display node clients over the persistent
// WebSocket channel.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"videowall/internal/wall"
)

// Message types. Node to server: register, heartbeat, camera_state.
// Server to node: config_update, disconnect_notice.
const (
	TypeRegister         = "register"
	TypeHeartbeat        = "heartbeat"
	TypeCameraState      = "camera_state"
	TypeConfigUpdate     = "config_update"
	TypeDisconnectNotice = "disconnect_notice"
)

// Envelope wraps every message on the wire. Payload holds the type-specific
// body.
type Envelope struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Register is sent by a node immediately after connecting. The server replies
// with a ConfigUpdate carrying the screen's current assignment.
type Register struct {
	Screen       wall.ScreenID `json:"screen"`
	Name         string        `json:"name"`
	Layout       wall.Layout   `json:"layout"`
	Capabilities Capabilities  `json:"capabilities"`
}

// Capabilities advertises what a display node can render.
type Capabilities struct {
	Layouts    []wall.Layout `json:"layouts"`
	WallMode   bool          `json:"wall_mode"`
	MaxCameras int           `json:"max_cameras"`
}

// Heartbeat keeps the node's liveness state fresh on the server.
type Heartbeat struct {
	Screen wall.ScreenID `json:"screen"`
	Uptime int64         `json:"uptime_s"`
}

// CameraState relays a stream adapter's connectivity report for one camera.
type CameraState struct {
	Screen    wall.ScreenID `json:"screen"`
	Camera    wall.CameraID `json:"camera"`
	Connected bool          `json:"connected"`
	Failures  int           `json:"failures"`
}

// QuadrantStream is one quadrant's resolved stream source in a ConfigUpdate.
// URI is empty for blank quadrants.
type QuadrantStream struct {
	Camera wall.CameraID `json:"camera,omitempty"`
	URI    string        `json:"uri,omitempty"`
}

// ConfigUpdate is the full replacement configuration for one screen. Nodes
// apply it idempotently: a version at or below the last applied one is
// ignored. WallCrop is set when the screen is one tile of a detected
// multi-screen wall group showing a single camera ("top-left",
// "top-right", "bottom-left", "bottom-right").
type ConfigUpdate struct {
	Screen    wall.ScreenID    `json:"screen"`
	Version   uint64           `json:"version"`
	Layout    wall.Layout      `json:"layout"`
	Quadrants []QuadrantStream `json:"quadrants"`
	WallCrop  string           `json:"wall_crop,omitempty"`
}

// DisconnectNotice tells a node the server is closing the channel on purpose
// (shutdown or superseded registration); the node keeps rendering its
// last-known configuration and re-registers at its reconnect interval.
type DisconnectNotice struct {
	Reason string `json:"reason"`
}

// Encode wraps a typed payload into an Envelope.
func Encode(msgType string, payload any) (Envelope, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s: %w", msgType, err)
	}
	return Envelope{Type: msgType, Timestamp: time.Now().UTC(), Payload: body}, nil
}

// Decode unmarshals the envelope payload into the given typed message.
func Decode[T any](env Envelope) (T, error) {
	var msg T
	if err := json.Unmarshal(env.Payload, &msg); err != nil {
		return msg, fmt.Errorf("decode %s: %w", env.Type, err)
	}
	return msg, nil
}
