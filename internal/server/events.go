package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Event subjects published when an emitter is configured.
const (
	EventSceneApplied  = "wall.scene.applied"
	EventCameraState   = "wall.camera.state"
	EventScreenOnline  = "wall.screen.online"
	EventScreenOffline = "wall.screen.offline"
)

// Emitter publishes wall lifecycle events for external consumers (dashboards,
// recorders). Emission is best-effort; failures must never affect the
// orchestration path.
type Emitter interface {
	Emit(subject string, payload any)
	Close()
}

// NopEmitter discards all events.
type NopEmitter struct{}

func (NopEmitter) Emit(string, any) {}
func (NopEmitter) Close()           {}

// NATSEmitter publishes events as JSON to a NATS subject per event type.
type NATSEmitter struct {
	nc  *nats.Conn
	log *slog.Logger
}

// NewNATSEmitter connects to the given NATS URL with indefinite reconnects.
func NewNATSEmitter(url string, log *slog.Logger) (*NATSEmitter, error) {
	opts := []nats.Option{
		nats.Name("videowall-server"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", slog.String("error", err.Error()))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return &NATSEmitter{nc: nc, log: log}, nil
}

// Emit implements Emitter. Marshalling or publish errors are logged and
// swallowed.
func (e *NATSEmitter) Emit(subject string, payload any) {
	if e.nc == nil || e.nc.IsClosed() {
		return
	}
	body, err := json.Marshal(map[string]any{
		"event":     subject,
		"timestamp": time.Now().UTC(),
		"data":      payload,
	})
	if err != nil {
		e.log.Error("encode event", slog.String("error", err.Error()))
		return
	}
	if err := e.nc.Publish(subject, body); err != nil {
		e.log.Warn("publish event failed",
			slog.String("subject", subject),
			slog.String("error", err.Error()))
	}
}

// Close drains and closes the connection.
func (e *NATSEmitter) Close() {
	if e.nc == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = e.nc.Drain()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	e.nc.Close()
}
