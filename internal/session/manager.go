// Package session owns the token <-> player <-> connection binding and the
// per-session rate limiting in front of all mutating actions.
package session

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"pentafront/internal/protocol"
	"pentafront/internal/state"
)

var (
	ErrEmptyName      = errors.New("name must not be empty")
	ErrUnknownFaction = errors.New("unknown faction")
	ErrOriginBound    = errors.New("origin already has a live session")
	ErrInvalidToken   = errors.New("invalid or expired session")
)

// Conn is the transport handle the gateway binds to a session. At most one
// live connection per token.
type Conn interface {
	Send(msg any)
	Close()
}

// Config tunes session behavior.
type Config struct {
	OriginLock        bool    // one live session per network origin
	MaxNameLen        int     // display-name cap
	StartingTroops    int     // garrison credited at the capital on join
	RecruitDurationMS int64   // per-player production countdown
	ReserveCap        int     // per-player accumulator cap
	RateCapacity      int     // limiter burst
	RateRefill        float64 // limiter tokens per second
}

// Manager binds tokens to players and live connections. Lock order is
// always manager before store.
type Manager struct {
	mu    sync.Mutex
	store *state.Store
	cfg   Config

	conns    map[string]Conn            // token -> live connection
	origins  map[string]string          // origin -> token (when origin locking)
	limiters map[string]*rate.Limiter   // token -> action gate
}

// NewManager creates a session manager over the given store.
func NewManager(store *state.Store, cfg Config) *Manager {
	return &Manager{
		store:    store,
		cfg:      cfg,
		conns:    make(map[string]Conn),
		origins:  make(map[string]string),
		limiters: make(map[string]*rate.Limiter),
	}
}

// Join mints a fresh session, creates the player with a starting garrison
// at the faction's capital, and binds the connection. Returns the player's
// view and the capital tile view (its public troop aggregate changed, so it
// must be broadcast).
func (m *Manager) Join(name, factionID, origin string, conn Conn) (state.PlayerView, state.TileView, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return state.PlayerView{}, state.TileView{}, ErrEmptyName
	}
	if m.cfg.MaxNameLen > 0 {
		// Truncate on a rune boundary; a byte slice could split a
		// multi-byte character and leave the name invalid UTF-8.
		if r := []rune(name); len(r) > m.cfg.MaxNameLen {
			name = string(r[:m.cfg.MaxNameLen])
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg.OriginLock {
		if tok, ok := m.origins[origin]; ok {
			if _, live := m.conns[tok]; live {
				return state.PlayerView{}, state.TileView{}, ErrOriginBound
			}
		}
	}

	m.store.Lock()
	w := m.store.World()
	if _, ok := w.Faction(factionID); !ok {
		m.store.Unlock()
		return state.PlayerView{}, state.TileView{}, ErrUnknownFaction
	}
	capKey, ok := w.Capitals[factionID]
	if !ok {
		m.store.Unlock()
		return state.PlayerView{}, state.TileView{}, ErrUnknownFaction
	}

	p := &state.Player{
		Token:             uuid.NewString(),
		Name:              name,
		FactionID:         factionID,
		Troops:            make(map[string]int),
		RemainingMS:       m.cfg.RecruitDurationMS,
		RecruitDurationMS: m.cfg.RecruitDurationMS,
		ReserveCap:        m.cfg.ReserveCap,
	}
	m.store.AddPlayer(p)
	if m.cfg.StartingTroops > 0 {
		m.store.SetTroops(p.Token, capKey, m.cfg.StartingTroops)
	}
	me := p.View()
	capTile, _ := m.store.TileView(capKey)
	m.store.Unlock()

	m.conns[p.Token] = conn
	if m.cfg.OriginLock {
		m.origins[origin] = p.Token
	}
	return me, capTile, nil
}

// Resume rebinds a known token to a new connection, forcibly terminating
// any stale connection currently bound to it.
func (m *Manager) Resume(token, origin string, conn Conn) (state.PlayerView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.store.Lock()
	p := m.store.Player(token)
	var me state.PlayerView
	if p != nil {
		me = p.View()
	}
	m.store.Unlock()
	if p == nil {
		return state.PlayerView{}, ErrInvalidToken
	}

	// The origin may already be bound to a different live session; stealing
	// the binding would free that origin for a fresh join while its session
	// stays connected.
	if m.cfg.OriginLock {
		if tok, ok := m.origins[origin]; ok && tok != token {
			if _, live := m.conns[tok]; live {
				return state.PlayerView{}, ErrOriginBound
			}
		}
	}

	if old, ok := m.conns[token]; ok && old != conn {
		old.Close()
	}
	m.conns[token] = conn
	if m.cfg.OriginLock {
		for o, tok := range m.origins {
			if tok == token {
				delete(m.origins, o)
			}
		}
		m.origins[origin] = token
	}
	return me, nil
}

// Disconnect removes the connection binding and origin lock for whatever
// token the connection holds. The player record is never deleted: game
// state stays rejoinable via Resume. Returns the token, if any was bound.
func (m *Manager) Disconnect(conn Conn) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for token, c := range m.conns {
		if c != conn {
			continue
		}
		delete(m.conns, token)
		for o, tok := range m.origins {
			if tok == token {
				delete(m.origins, o)
			}
		}
		return token, true
	}
	return "", false
}

// Allow withdraws one rate-limit token for the session. Insufficient tokens
// means the action is silently dropped by the caller.
func (m *Manager) Allow(token string) bool {
	m.mu.Lock()
	lim, ok := m.limiters[token]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(m.cfg.RateRefill), m.cfg.RateCapacity)
		m.limiters[token] = lim
	}
	m.mu.Unlock()
	return lim.Allow()
}

// Conn returns the live connection for a token, if any.
func (m *Manager) Conn(token string) (Conn, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[token]
	return c, ok
}

// Roster lists the currently connected players. IDs are short public
// identifiers derived from the token, never the token itself.
func (m *Manager) Roster() []protocol.OnlinePlayer {
	m.mu.Lock()
	defer m.mu.Unlock()

	roster := make([]protocol.OnlinePlayer, 0, len(m.conns))
	m.store.Lock()
	for token := range m.conns {
		p := m.store.Player(token)
		if p == nil {
			continue
		}
		roster = append(roster, protocol.OnlinePlayer{
			ID:        PublicID(token),
			Name:      p.Name,
			FactionID: p.FactionID,
		})
	}
	m.store.Unlock()
	return roster
}

// Origins returns a copy of the origin -> token map for snapshotting.
func (m *Manager) Origins() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.origins))
	for o, t := range m.origins {
		out[o] = t
	}
	return out
}

// SetOrigins replaces the origin map wholesale (snapshot restore).
func (m *Manager) SetOrigins(origins map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.origins = make(map[string]string, len(origins))
	for o, t := range origins {
		m.origins[o] = t
	}
}

// PublicID derives the roster-safe identifier from a session token.
func PublicID(token string) string {
	if len(token) > 8 {
		return token[:8]
	}
	return token
}
