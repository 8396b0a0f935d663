package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"videowall/internal/protocol"
	"videowall/internal/wall"
)

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 16
)

// session is one connected display node. Writes go through a buffered channel
// drained by a single write pump so config pushes never block the caller.
type session struct {
	screen wall.ScreenID
	conn   *websocket.Conn
	send   chan protocol.Envelope
	done   chan struct{}
	once   sync.Once
}

func (s *session) close() {
	s.once.Do(func() { close(s.done) })
}

// Hub owns all node sessions and serves the WebSocket endpoint of the node
// protocol. Inbound messages are dispatched to the Server; outbound pushes go
// through Send.
type Hub struct {
	srv *Server
	log *slog.Logger

	mu       sync.RWMutex
	sessions map[wall.ScreenID]*session

	upgrader websocket.Upgrader
}

// NewHub creates a hub bound to the given server.
func NewHub(srv *Server, log *slog.Logger) *Hub {
	return &Hub{
		srv:      srv,
		log:      log,
		sessions: make(map[wall.ScreenID]*session),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Nodes are headless processes on the wall network, not browsers.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP makes the hub mountable as the node protocol endpoint.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.HandleWS(w, r)
}

// HandleWS upgrades the connection and runs the session until the node
// disconnects. The first message must be a register.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed",
			slog.String("remote", r.RemoteAddr),
			slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	var env protocol.Envelope
	if err := conn.ReadJSON(&env); err != nil || env.Type != protocol.TypeRegister {
		h.log.Warn("node did not register", slog.String("remote", r.RemoteAddr))
		return
	}
	reg, err := protocol.Decode[protocol.Register](env)
	if err != nil || reg.Screen == "" {
		h.log.Warn("invalid register message", slog.String("remote", r.RemoteAddr))
		return
	}

	sess := &session{
		screen: reg.Screen,
		conn:   conn,
		send:   make(chan protocol.Envelope, sendBufferSize),
		done:   make(chan struct{}),
	}
	h.attach(sess)
	defer h.detach(sess)

	h.log.Info("node registered",
		slog.String("screen", string(reg.Screen)),
		slog.String("name", reg.Name),
		slog.String("layout", string(reg.Layout)),
		slog.String("remote", r.RemoteAddr))

	go sess.writePump(h.log)

	// Registration handshake: reply with the screen's current configuration.
	h.srv.NodeRegistered(reg, r.RemoteAddr)

	h.readLoop(sess)

	// A superseded session must not mark the screen offline behind the back
	// of its replacement.
	if h.isCurrent(sess) {
		h.srv.NodeDisconnected(reg.Screen)
	}
}

func (h *Hub) isCurrent(sess *session) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sessions[sess.screen] == sess
}

// attach installs the session, superseding any previous connection for the
// same screen id.
func (h *Hub) attach(sess *session) {
	h.mu.Lock()
	prev := h.sessions[sess.screen]
	h.sessions[sess.screen] = sess
	h.mu.Unlock()

	if prev != nil {
		notice, err := protocol.Encode(protocol.TypeDisconnectNotice,
			protocol.DisconnectNotice{Reason: "superseded by new registration"})
		if err == nil {
			select {
			case prev.send <- notice:
			default:
			}
		}
		prev.close()
	}
}

func (h *Hub) detach(sess *session) {
	h.mu.Lock()
	if h.sessions[sess.screen] == sess {
		delete(h.sessions, sess.screen)
	}
	h.mu.Unlock()
	sess.close()
}

func (h *Hub) readLoop(sess *session) {
	for {
		var env protocol.Envelope
		if err := sess.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("node read error",
					slog.String("screen", string(sess.screen)),
					slog.String("error", err.Error()))
			}
			return
		}

		switch env.Type {
		case protocol.TypeHeartbeat:
			hb, err := protocol.Decode[protocol.Heartbeat](env)
			if err != nil {
				continue
			}
			h.srv.NodeHeartbeat(hb.Screen)
		case protocol.TypeCameraState:
			cs, err := protocol.Decode[protocol.CameraState](env)
			if err != nil {
				continue
			}
			h.srv.CameraReport(cs)
		default:
			h.log.Debug("unknown message from node",
				slog.String("screen", string(sess.screen)),
				slog.String("type", env.Type))
		}
	}
}

func (s *session) writePump(log *slog.Logger) {
	for {
		select {
		case env := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(env); err != nil {
				log.Warn("node write failed",
					slog.String("screen", string(s.screen)),
					slog.String("error", err.Error()))
				s.close()
				return
			}
		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// Send queues a message for the given screen's session. Returns false when
// the screen has no live connection.
func (h *Hub) Send(screen wall.ScreenID, env protocol.Envelope) bool {
	h.mu.RLock()
	sess, ok := h.sessions[screen]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	select {
	case sess.send <- env:
		return true
	case <-sess.done:
		return false
	}
}

// Connected reports whether a screen has a live session.
func (h *Hub) Connected(screen wall.ScreenID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.sessions[screen]
	return ok
}

// Shutdown notifies every node and closes all sessions.
func (h *Hub) Shutdown() {
	notice, err := protocol.Encode(protocol.TypeDisconnectNotice,
		protocol.DisconnectNotice{Reason: "server shutting down"})

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, sess := range h.sessions {
		if err == nil {
			select {
			case sess.send <- notice:
			default:
			}
		}
		sess.close()
	}
}
