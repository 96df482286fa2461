// Package gateway is the websocket event gateway: it upgrades connections,
// feeds inbound action messages through the session manager and rate
// limiter into the action engine, and fans outbound deltas back out.
package gateway

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pentafront/internal/game"
	"pentafront/internal/protocol"
	"pentafront/internal/session"
	"pentafront/internal/state"
	"pentafront/internal/world"
)

// Server accepts websocket clients and dispatches their messages.
// Engine is assigned after construction (the engine emits through the
// server, the server dispatches into the engine).
type Server struct {
	Engine *game.Engine

	store *state.Store
	mgr   *session.Manager

	upgrader websocket.Upgrader
	started  time.Time

	mu      sync.Mutex
	clients map[*Client]struct{}
	tileSeq map[string]uint64
}

// NewServer builds the gateway over the store and session manager.
func NewServer(store *state.Store, mgr *session.Manager) *Server {
	return &Server{
		store: store,
		mgr:   mgr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		started: time.Now(),
		clients: make(map[*Client]struct{}),
		tileSeq: make(map[string]uint64),
	}
}

// Start begins serving the websocket endpoint and the status API in a
// goroutine.
func (s *Server) Start(port int) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/v1/status", s.handleStatus)

	addr := fmt.Sprintf(":%d", port)
	slog.Info("gateway starting", "addr", addr)
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			slog.Error("gateway server error", "error", err)
		}
	}()
}

// handleStatus reports basic world and connection counts.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	connected := len(s.clients)
	s.mu.Unlock()

	s.store.Lock()
	tiles := len(s.store.World().Tiles)
	factions := len(s.store.World().Factions)
	players := len(s.store.Players())
	board := s.store.Leaderboard()
	s.store.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"tiles":       tiles,
		"factions":    factions,
		"players":     players,
		"connected":   connected,
		"leaderboard": board,
		"uptime_sec":  int(time.Since(s.started).Seconds()),
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	client := &Client{conn: conn, origin: clientOrigin(r)}
	s.mu.Lock()
	s.clients[client] = struct{}{}
	s.mu.Unlock()

	defer func() {
		conn.Close()
		s.mu.Lock()
		delete(s.clients, client)
		s.mu.Unlock()
		if _, bound := s.mgr.Disconnect(client); bound {
			// Everyone else learns the roster changed; the departing
			// client gets nothing.
			s.Broadcast(protocol.NewPlayersOnline(s.mgr.Roster()))
		}
	}()

	// Reader loop. One goroutine per connection: a session's actions are
	// applied in arrival order.
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg protocol.ClientMsg
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		s.dispatch(client, msg)
	}
}

func (s *Server) dispatch(c *Client, msg protocol.ClientMsg) {
	switch msg.Type {
	case protocol.TypeJoin:
		s.handleJoin(c, msg)
	case protocol.TypeResume:
		s.handleResume(c, msg)
	case protocol.TypeCollect, protocol.TypeDeploy, protocol.TypeMove, protocol.TypeAttack:
		s.handleAction(c, msg)
	default:
		// Unknown message types are dropped.
	}
}

func (s *Server) handleJoin(c *Client, msg protocol.ClientMsg) {
	me, capTile, err := s.mgr.Join(msg.Name, msg.FactionID, c.origin, c)
	if err != nil {
		if err == session.ErrOriginBound {
			c.Send(protocol.NewSessionError(err.Error()))
		} else {
			c.Send(protocol.NewErrorMsg(err.Error()))
		}
		return
	}
	c.token = me.Token
	slog.Info("player joined", "id", session.PublicID(me.Token), "name", me.Name, "faction", me.FactionID)

	c.Send(protocol.NewJoined(me))
	c.Send(s.worldSnapshot())
	s.Broadcast(protocol.NewTileUpdate(capTile))
	s.Broadcast(protocol.NewPlayersOnline(s.mgr.Roster()))

	s.store.Lock()
	board := s.store.Leaderboard()
	s.store.Unlock()
	c.Send(protocol.NewLeaderboard(board))
}

func (s *Server) handleResume(c *Client, msg protocol.ClientMsg) {
	me, err := s.mgr.Resume(msg.Token, c.origin, c)
	if err != nil {
		c.Send(protocol.NewSessionError(err.Error()))
		return
	}
	c.token = me.Token
	slog.Info("player resumed", "id", session.PublicID(me.Token), "name", me.Name)

	c.Send(protocol.NewJoined(me))
	c.Send(s.worldSnapshot())
	s.Broadcast(protocol.NewPlayersOnline(s.mgr.Roster()))
}

func (s *Server) handleAction(c *Client, msg protocol.ClientMsg) {
	if c.token == "" {
		// Feedback only where it matters; move and collect stay terse.
		if msg.Type == protocol.TypeDeploy || msg.Type == protocol.TypeAttack {
			c.Send(protocol.NewErrorMsg("no session"))
		}
		return
	}
	if !s.mgr.Allow(c.token) {
		return
	}

	switch msg.Type {
	case protocol.TypeCollect:
		s.Engine.Collect(c.token)
	case protocol.TypeDeploy:
		if err := s.Engine.Deploy(c.token, msg.TargetID, msg.Amount); err != nil {
			c.Send(protocol.NewErrorMsg(err.Error()))
		}
	case protocol.TypeMove:
		// Invalid moves are dropped without feedback.
		s.Engine.Move(c.token, msg.FromID, msg.ToID, msg.Amount)
	case protocol.TypeAttack:
		if err := s.Engine.Attack(c.token, msg.FromID, msg.TargetID, msg.Amount); err != nil {
			c.Send(protocol.NewErrorMsg(err.Error()))
		}
	}
}

// worldSnapshot builds the full-map message sent once per new connection.
func (s *Server) worldSnapshot() protocol.World {
	s.store.Lock()
	defer s.store.Unlock()
	w := s.store.World()
	capitals := make(map[string]string, len(w.Capitals))
	for f, key := range w.Capitals {
		capitals[f] = key
	}
	return protocol.NewWorld(s.store.AllTileViews(), append([]world.Faction(nil), w.Factions...), capitals)
}

// ToPlayer delivers a message to the player's live connection, if any.
func (s *Server) ToPlayer(token string, msg any) {
	if conn, ok := s.mgr.Conn(token); ok {
		conn.Send(msg)
	}
}

// Broadcast marshals once and delivers to every connected client. Tile
// updates are built under the store lock but emitted after it, so two
// actions' deltas for the same tile can arrive here in the opposite order of
// application; the stale one is dropped rather than delivered over the newer
// state.
func (s *Server) Broadcast(msg any) {
	if tu, ok := msg.(protocol.TileUpdate); ok && !s.advanceTileSeq(tu.Tile) {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal broadcast", "error", err)
		return
	}
	s.mu.Lock()
	clients := make([]*Client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()
	for _, c := range clients {
		c.sendRaw(data)
	}
}

// advanceTileSeq records the highest mutation sequence broadcast per tile
// and reports whether the view is newer than anything already sent.
func (s *Server) advanceTileSeq(v state.TileView) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.Seq <= s.tileSeq[v.ID] {
		return false
	}
	s.tileSeq[v.ID] = v.Seq
	return true
}

// clientOrigin extracts the caller's network origin: the first
// X-Forwarded-For entry when proxied, else the remote address without port.
func clientOrigin(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	addr := r.RemoteAddr
	if i := strings.LastIndexByte(addr, ':'); i >= 0 {
		return addr[:i]
	}
	return addr
}
