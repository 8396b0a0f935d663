package node

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"videowall/internal/protocol"
	"videowall/internal/wall"
)

// ClientConfig carries a display node's identity and timing parameters.
type ClientConfig struct {
	ServerURL string // ws://host:port/ws
	Screen    wall.ScreenID
	Name      string
	Layout    wall.Layout

	HeartbeatInterval time.Duration
	ReconnectInterval time.Duration

	// Adapter timing, passed through to every stream adapter.
	Adapter AdapterConfig

	// Sources builds a Source per resolved stream URI. Defaults to the
	// ffmpeg implementation.
	Sources SourceFactory

	// Tile decode size requested from sources.
	TileWidth  int
	TileHeight int
}

func (c *ClientConfig) fillDefaults() {
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.ReconnectInterval <= 0 {
		c.ReconnectInterval = 10 * time.Second
	}
	if c.Layout == "" {
		c.Layout = wall.Layout2x2
	}
	if c.Sources == nil {
		c.Sources = NewFFmpegSource
	}
	if c.TileWidth <= 0 {
		c.TileWidth = 640
	}
	if c.TileHeight <= 0 {
		c.TileHeight = 480
	}
}

// Client maintains the node's connection to the orchestration server:
// register on connect, heartbeat on a ticker, apply configuration updates by
// diffing stream adapters, and reconnect forever at a fixed interval. While
// disconnected the node keeps rendering its last applied configuration.
type Client struct {
	cfg  ClientConfig
	comp *Compositor
	log  *slog.Logger

	started time.Time

	mu       sync.Mutex
	adapters map[wall.CameraID]*Adapter
	version  uint64
	send     chan protocol.Envelope
}

// NewClient wires a client to the compositor it drives.
func NewClient(cfg ClientConfig, comp *Compositor, log *slog.Logger) *Client {
	cfg.fillDefaults()
	return &Client{
		cfg:      cfg,
		comp:     comp,
		log:      log,
		started:  time.Now(),
		adapters: make(map[wall.CameraID]*Adapter),
	}
}

// Run connects and serves until the context is cancelled. Each failed or
// dropped connection is retried after the reconnect interval; stream
// adapters stay up across server outages.
func (c *Client) Run(ctx context.Context) {
	for {
		if err := c.session(ctx); err != nil {
			c.log.Warn("server connection lost",
				slog.String("server", c.cfg.ServerURL),
				slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			c.closeAdapters()
			return
		case <-time.After(c.cfg.ReconnectInterval):
		}
	}
}

// session runs one connection lifetime: dial, register, pump messages.
func (c *Client) session(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.cfg.ServerURL, nil)
	cancel()
	if err != nil {
		return err
	}
	defer conn.Close()

	send := make(chan protocol.Envelope, 16)
	c.beginSession(send)

	reg, err := protocol.Encode(protocol.TypeRegister, protocol.Register{
		Screen: c.cfg.Screen,
		Name:   c.cfg.Name,
		Layout: c.cfg.Layout,
		Capabilities: protocol.Capabilities{
			Layouts:    []wall.Layout{wall.Layout1x1, wall.Layout2x2, wall.Layout3x3},
			WallMode:   true,
			MaxCameras: wall.Layout3x3.Slots(),
		},
	})
	if err != nil {
		return err
	}
	if err := conn.WriteJSON(reg); err != nil {
		return err
	}
	c.log.Info("registered with server", slog.String("screen", string(c.cfg.Screen)))

	sessCtx, stop := context.WithCancel(ctx)
	defer stop()

	// Single writer: heartbeats and camera state reports are funneled
	// through the send channel.
	writeDone := make(chan error, 1)
	go func() {
		writeDone <- c.writePump(sessCtx, conn, send)
	}()

	readDone := make(chan error, 1)
	go func() {
		readDone <- c.readLoop(conn)
	}()

	select {
	case err := <-readDone:
		stop()
		<-writeDone
		return err
	case err := <-writeDone:
		stop()
		conn.Close()
		<-readDone
		return err
	case <-ctx.Done():
		notice := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, notice, time.Now().Add(time.Second))
		stop()
		conn.Close()
		return ctx.Err()
	}
}

func (c *Client) writePump(ctx context.Context, conn *websocket.Conn, send chan protocol.Envelope) error {
	heartbeat := time.NewTicker(c.cfg.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case env := <-send:
			if err := conn.WriteJSON(env); err != nil {
				return err
			}
		case <-heartbeat.C:
			env, err := protocol.Encode(protocol.TypeHeartbeat, protocol.Heartbeat{
				Screen: c.cfg.Screen,
				Uptime: int64(time.Since(c.started).Seconds()),
			})
			if err != nil {
				return err
			}
			if err := conn.WriteJSON(env); err != nil {
				return err
			}
		}
	}
}

func (c *Client) readLoop(conn *websocket.Conn) error {
	for {
		var env protocol.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return err
		}

		switch env.Type {
		case protocol.TypeConfigUpdate:
			update, err := protocol.Decode[protocol.ConfigUpdate](env)
			if err != nil {
				c.log.Warn("bad config update", slog.String("error", err.Error()))
				continue
			}
			c.applyConfig(update)

		case protocol.TypeDisconnectNotice:
			notice, _ := protocol.Decode[protocol.DisconnectNotice](env)
			c.log.Info("server closed channel", slog.String("reason", notice.Reason))
			return nil

		default:
			c.log.Debug("unknown message type", slog.String("type", env.Type))
		}
	}
}

// beginSession installs the session's outbound channel and resets the
// applied configuration version. Versions count per server lifetime: a
// restarted server numbers from 1 again, and its register reply is a full
// replacement snapshot, so comparing across sessions would wrongly discard
// every push from the new server.
func (c *Client) beginSession(send chan protocol.Envelope) {
	c.mu.Lock()
	c.send = send
	c.version = 0
	c.mu.Unlock()
}

// applyConfig diffs the update against the running adapters: adapters whose
// camera and URI are unchanged keep their stream, removed or re-resolved
// ones are closed, new ones are opened. Updates at or below the applied
// version are ignored, making duplicate pushes harmless.
func (c *Client) applyConfig(update protocol.ConfigUpdate) {
	c.mu.Lock()

	if update.Version <= c.version {
		applied := c.version
		c.mu.Unlock()
		c.log.Debug("stale config update ignored",
			slog.Uint64("version", update.Version),
			slog.Uint64("applied", applied))
		return
	}
	c.version = update.Version

	wanted := make(map[wall.CameraID]string, len(update.Quadrants))
	for _, q := range update.Quadrants {
		if q.Camera != "" && q.URI != "" {
			wanted[q.Camera] = q.URI
		}
	}

	// Adapters are closed after the lock is released: their state reports
	// come back through reportState, which needs the same mutex.
	var toClose []*Adapter
	for id, a := range c.adapters {
		if uri, ok := wanted[id]; !ok || uri != a.URI() {
			toClose = append(toClose, a)
			delete(c.adapters, id)
		}
	}
	for id, uri := range wanted {
		if _, ok := c.adapters[id]; ok {
			continue
		}
		newSource := func() Source {
			return c.cfg.Sources(uri, c.cfg.TileWidth, c.cfg.TileHeight)
		}
		a := NewAdapter(id, uri, newSource, c.cfg.Adapter, c.reportState, c.log)
		a.Start()
		c.adapters[id] = a
	}

	ordered := make([]*Adapter, len(update.Quadrants))
	cameras := make([]wall.CameraID, len(update.Quadrants))
	for i, q := range update.Quadrants {
		cameras[i] = q.Camera
		if q.Camera != "" {
			ordered[i] = c.adapters[q.Camera]
		}
	}
	c.mu.Unlock()

	for _, a := range toClose {
		a.Close()
	}
	c.comp.SetTiles(update.Layout, ordered, cameras, update.WallCrop)

	c.log.Info("configuration applied",
		slog.Uint64("version", update.Version),
		slog.String("layout", string(update.Layout)),
		slog.Int("streams", len(wanted)),
		slog.String("wall_crop", update.WallCrop))
}

// reportState forwards an adapter state change to the server. Dropped when
// disconnected or when the channel is full; the next change reports again.
func (c *Client) reportState(r StateReport) {
	env, err := protocol.Encode(protocol.TypeCameraState, protocol.CameraState{
		Screen:    c.cfg.Screen,
		Camera:    r.Camera,
		Connected: r.Connected,
		Failures:  r.Failures,
	})
	if err != nil {
		return
	}

	c.mu.Lock()
	send := c.send
	c.mu.Unlock()
	if send == nil {
		return
	}
	select {
	case send <- env:
	default:
	}
}

func (c *Client) closeAdapters() {
	c.mu.Lock()
	adapters := c.adapters
	c.adapters = make(map[wall.CameraID]*Adapter)
	c.mu.Unlock()
	for _, a := range adapters {
		a.Close()
	}
}
