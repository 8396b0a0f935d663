// Package server implements the orchestration server: the single authority
// over the camera registry and the wall/scene model, the node protocol
// endpoint, heartbeat tracking, and the REST authoring surface.
package server

import (
	"log/slog"
	"time"

	"videowall/internal/platform/metrics"
	"videowall/internal/protocol"
	"videowall/internal/wall"
)

// DefaultHeartbeatInterval is the cadence nodes must heartbeat at; a node is
// stale after missing 2 intervals and offline after 4.
const DefaultHeartbeatInterval = 30 * time.Second

// Server wires the registry, the wall model, and the node hub together and
// enforces the push protocol: every mutation that affects a screen results in
// a full replacement configuration snapshot for that screen.
type Server struct {
	registry *wall.Registry
	model    *wall.Model
	hub      *Hub
	log      *slog.Logger
	metrics  *metrics.Metrics
	events   Emitter

	heartbeatInterval time.Duration
}

// Options configures a Server.
type Options struct {
	HeartbeatInterval time.Duration
	Metrics           *metrics.Metrics // may be nil (tests)
	Events            Emitter          // may be nil for no event emission
}

// New constructs a Server. The hub is created by the server so sessions can
// dispatch straight into it.
func New(registry *wall.Registry, model *wall.Model, log *slog.Logger, opts Options) *Server {
	s := &Server{
		registry:          registry,
		model:             model,
		log:               log,
		metrics:           opts.Metrics,
		events:            opts.Events,
		heartbeatInterval: opts.HeartbeatInterval,
	}
	if s.heartbeatInterval <= 0 {
		s.heartbeatInterval = DefaultHeartbeatInterval
	}
	if s.events == nil {
		s.events = NopEmitter{}
	}
	s.hub = NewHub(s, log)
	return s
}

// Hub exposes the node protocol endpoint.
func (s *Server) Hub() *Hub { return s.hub }

// Registry exposes the camera registry to the REST layer.
func (s *Server) Registry() *wall.Registry { return s.registry }

// Model exposes the wall/scene model to the REST layer.
func (s *Server) Model() *wall.Model { return s.model }

// NodeRegistered handles a register handshake: the screen record is created
// or refreshed and the current configuration is pushed back immediately.
func (s *Server) NodeRegistered(reg protocol.Register, addr string) {
	s.model.RegisterScreen(reg.Screen, reg.Name, addr, reg.Layout)
	s.events.Emit(EventScreenOnline, map[string]any{"screen": reg.Screen, "name": reg.Name})
	s.PushScreen(reg.Screen)
}

// NodeDisconnected marks the screen offline when its channel drops.
func (s *Server) NodeDisconnected(id wall.ScreenID) {
	s.model.SetScreenOffline(id)
	s.events.Emit(EventScreenOffline, map[string]any{"screen": id})
	s.log.Info("node disconnected", slog.String("screen", string(id)))
}

// NodeHeartbeat refreshes the screen's liveness. A screen recovering from
// stale or offline immediately receives a fresh configuration push.
func (s *Server) NodeHeartbeat(id wall.ScreenID) {
	previous, err := s.model.Heartbeat(id)
	if err != nil {
		s.log.Warn("heartbeat from unknown screen", slog.String("screen", string(id)))
		return
	}
	if s.metrics != nil {
		s.metrics.IncHeartbeats()
	}
	if previous == wall.ScreenStale || previous == wall.ScreenOffline {
		s.log.Info("screen recovered",
			slog.String("screen", string(id)),
			slog.String("previous", string(previous)))
		s.PushScreen(id)
	}
}

// CameraReport relays a node's stream adapter report into the registry.
func (s *Server) CameraReport(cs protocol.CameraState) {
	state, err := s.registry.ReportStream(cs.Camera, cs.Connected, cs.Failures)
	if err != nil {
		s.log.Debug("state report for unknown camera", slog.String("camera", string(cs.Camera)))
		return
	}
	if state == wall.CameraDegraded || state == wall.CameraFailed {
		s.log.Warn("camera unhealthy",
			slog.String("camera", string(cs.Camera)),
			slog.String("state", string(state)),
			slog.Int("failures", cs.Failures))
		s.events.Emit(EventCameraState, map[string]any{"camera": cs.Camera, "state": state})
	}
}

// PushScreen sends the full replacement configuration for one screen to its
// node, if connected. Offline screens keep the server-side state and receive
// it on their next registration.
func (s *Server) PushScreen(id wall.ScreenID) {
	update, err := s.BuildConfigUpdate(id)
	if err != nil {
		s.log.Error("build config failed",
			slog.String("screen", string(id)),
			slog.String("error", err.Error()))
		return
	}
	env, err := protocol.Encode(protocol.TypeConfigUpdate, update)
	if err != nil {
		s.log.Error("encode config failed", slog.String("error", err.Error()))
		return
	}
	if s.hub.Send(id, env) {
		if s.metrics != nil {
			s.metrics.IncConfigPushes()
		}
		s.log.Debug("config pushed",
			slog.String("screen", string(id)),
			slog.Uint64("version", update.Version))
	}
}

// PushScreens pushes full configurations to each listed screen.
func (s *Server) PushScreens(ids []wall.ScreenID) {
	for _, id := range ids {
		s.PushScreen(id)
	}
}

// BuildConfigUpdate resolves a screen's assignment snapshot into wire form:
// per-quadrant camera ids and adapted stream URIs, plus a crop hint when the
// screen is one tile of a detected wall group.
func (s *Server) BuildConfigUpdate(id wall.ScreenID) (protocol.ConfigUpdate, error) {
	cfg, err := s.model.ScreenConfig(id)
	if err != nil {
		return protocol.ConfigUpdate{}, err
	}

	quadrants := make([]protocol.QuadrantStream, len(cfg.Cameras))
	for q, camID := range cfg.Cameras {
		if camID == "" {
			continue
		}
		cam, err := s.registry.Get(camID)
		if err != nil {
			s.log.Warn("assigned camera missing from registry",
				slog.String("screen", string(id)),
				slog.String("camera", string(camID)))
			continue
		}
		quadrants[q] = protocol.QuadrantStream{
			Camera: camID,
			URI:    wall.ResolveStreamURI(&cam, cfg.Layout),
		}
	}

	return protocol.ConfigUpdate{
		Screen:    cfg.Screen,
		Version:   cfg.Version,
		Layout:    cfg.Layout,
		Quadrants: quadrants,
		WallCrop:  s.wallCropFor(id),
	}, nil
}

// RunHeartbeatMonitor sweeps screen liveness on a wall-clock ticker until the
// stop channel closes. Screens that just went stale or offline are logged;
// offline screens are excluded from pushes by virtue of having no session.
func (s *Server) RunHeartbeatMonitor(stop <-chan struct{}) {
	ticker := time.NewTicker(s.heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			for _, id := range s.model.MarkLiveness(s.heartbeatInterval) {
				screen, err := s.model.Screen(id)
				if err != nil {
					continue
				}
				s.log.Warn("screen liveness changed",
					slog.String("screen", string(id)),
					slog.String("state", string(screen.State)))
				if screen.State == wall.ScreenOffline {
					s.events.Emit(EventScreenOffline, map[string]any{"screen": id})
				}
			}
		}
	}
}

// RestoreScene applies a saved scene and pushes the new configuration to
// every affected screen that is currently connected. Offline screens are
// updated server-side only; they receive the restored configuration when
// they re-register.
func (s *Server) RestoreScene(id wall.SceneID) (applied int, err error) {
	before := s.wallCrops()
	affected, err := s.model.RestoreScene(id)
	if err != nil {
		return 0, err
	}
	if s.metrics != nil {
		s.metrics.IncSceneRestores()
	}
	s.events.Emit(EventSceneApplied, map[string]any{"scene": id, "screens": len(affected)})
	for _, sid := range affected {
		if s.hub.Connected(sid) {
			s.PushScreen(sid)
			applied++
		}
	}
	// Screens outside the scene can drop out of (or into) a wall group when
	// the scene changes what the other tiles display.
	s.pushWallChanges(before, affected...)
	return applied, nil
}
