package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"

	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/internal/room"
)

// Server is the socket gateway: it upgrades websockets, tracks per-socket
// sessions and owns the disconnect grace timers that turn a vanished socket
// into a LEAVE after the grace window.
type Server struct {
	addr     string
	upgrader websocket.Upgrader
	rooms    *room.Manager
	logger   *log.Logger
	clock    quartz.Clock
	grace    time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	connections map[*Connection]struct{}
	graceTimers map[string]graceEntry

	listener net.Listener
}

// graceEntry is a pending LEAVE for a disconnected player.
type graceEntry struct {
	timer  *quartz.Timer
	roomID string
}

// NewServer creates the gateway.
func NewServer(addr string, rooms *room.Manager, clock quartz.Clock, grace time.Duration, logger *log.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr: addr,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		rooms:       rooms,
		logger:      logger.WithPrefix("server"),
		clock:       clock,
		grace:       grace,
		ctx:         ctx,
		cancel:      cancel,
		connections: make(map[*Connection]struct{}),
		graceTimers: make(map[string]graceEntry),
	}
}

// Start listens and serves until Stop is called. It blocks.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	s.logger.Info("Starting WebSocket server", "addr", listener.Addr().String())
	err = http.Serve(listener, mux)
	select {
	case <-s.ctx.Done():
		return nil
	default:
		return err
	}
}

// Addr returns the bound address once Start has opened the listener.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

// Stop closes the listener and every connection.
func (s *Server) Stop() {
	s.cancel()

	s.mu.Lock()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	for conn := range s.connections {
		_ = conn.Close()
	}
	for _, entry := range s.graceTimers {
		entry.timer.Stop()
	}
	s.mu.Unlock()
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := NewConnection(conn, s, s.logger)

	s.mu.Lock()
	s.connections[client] = struct{}{}
	total := len(s.connections)
	s.mu.Unlock()
	s.logger.Info("Client connected", "total", total)

	client.Start()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, "OK")
}

// handleDisconnect detaches a vanished socket. The seat survives for the
// grace window keyed by player id; reconnecting with that id cancels the
// pending LEAVE.
func (s *Server) handleDisconnect(c *Connection) {
	s.mu.Lock()
	delete(s.connections, c)
	total := len(s.connections)
	s.mu.Unlock()

	roomID, playerID, actor := c.session()
	if actor != nil {
		actor.Unsubscribe(c)
	}
	if playerID != "" {
		s.armGraceTimer(roomID, playerID)
	}
	s.logger.Info("Client disconnected", "total", total, "player", playerID)
}

// armGraceTimer schedules a LEAVE for the player unless they reconnect
// within the grace window.
func (s *Server) armGraceTimer(roomID, playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.graceTimers[playerID]; ok {
		existing.timer.Stop()
	}
	timer := s.clock.AfterFunc(s.grace, func() {
		s.mu.Lock()
		delete(s.graceTimers, playerID)
		s.mu.Unlock()

		s.logger.Info("Disconnect grace expired, removing player", "room", roomID, "player", playerID)
		if actor, ok := s.rooms.Get(roomID); ok {
			if err := actor.Post(game.Leave{PlayerID: playerID}); err != nil {
				s.logger.Debug("Leave rejected", "player", playerID, "error", err)
			}
		}
	})
	s.graceTimers[playerID] = graceEntry{timer: timer, roomID: roomID}
}

// pendingGraceTimers reports how many disconnected players are inside
// their grace window.
func (s *Server) pendingGraceTimers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.graceTimers)
}

// cancelGraceTimer aborts a pending LEAVE after a successful reattach to
// the same room. A pending leave for a different room stands: switching
// rooms does not rescue the old seat.
func (s *Server) cancelGraceTimer(roomID, playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.graceTimers[playerID]; ok && entry.roomID == roomID {
		entry.timer.Stop()
		delete(s.graceTimers, playerID)
	}
}
