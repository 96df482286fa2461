// Package state owns the live mutable world and every player record.
// All mutation flows through the Store, which guards the whole state with a
// single mutex: each inbound action, scheduler tick, and snapshot copy forms
// one critical section, so observers never see a torn view.
package state

import (
	"sort"
	"sync"

	"pentafront/internal/world"
)

// Store is the single source of truth for tiles and players.
//
// The zero-value mutex is embedded: callers take store.Lock() around a full
// validate-then-mutate step. Methods below that read or write state document
// whether they expect the lock to be held.
type Store struct {
	sync.Mutex

	w       *world.World
	players map[string]*Player

	// seq is the mutation counter behind every tile's Version stamp.
	seq uint64
}

// NewStore wraps a generated or restored world.
func NewStore(w *world.World) *Store {
	return &Store{
		w:       w,
		players: make(map[string]*Player),
	}
}

// World returns the underlying world. Caller must hold the lock to touch
// mutable tile state.
func (s *Store) World() *world.World {
	return s.w
}

// Tile returns a tile by id, or nil. Caller must hold the lock.
func (s *Store) Tile(id string) *world.Tile {
	return s.w.Tiles[id]
}

// Player returns a player by token, or nil. Caller must hold the lock.
func (s *Store) Player(token string) *Player {
	return s.players[token]
}

// AddPlayer registers a new player record. Caller must hold the lock.
func (s *Store) AddPlayer(p *Player) {
	s.players[p.Token] = p
}

// Players returns the live player map. Caller must hold the lock and must
// not retain the map across unlock.
func (s *Store) Players() map[string]*Player {
	return s.players
}

// SetTroops sets a player's troop count on a tile, removing the entry when
// it reaches zero, and recomputes the tile's public troop aggregate.
// Caller must hold the lock.
func (s *Store) SetTroops(token, tileID string, n int) {
	p := s.players[token]
	if p == nil {
		return
	}
	if n <= 0 {
		delete(p.Troops, tileID)
	} else {
		p.Troops[tileID] = n
	}
	s.RecomputeTile(tileID)
}

// AdjustTroops adds delta to a player's troop count on a tile.
// Caller must hold the lock.
func (s *Store) AdjustTroops(token, tileID string, delta int) {
	p := s.players[token]
	if p == nil {
		return
	}
	s.SetTroops(token, tileID, p.Troops[tileID]+delta)
}

// RecomputeTile rebuilds a tile's PublicTroops as the sum of every player's
// troop entry for that tile and stamps the tile with the next mutation
// sequence. Must run before any delta for the tile is built, so the view
// carries the sequence of the state it captured. Caller must hold the lock.
func (s *Store) RecomputeTile(tileID string) {
	t := s.w.Tiles[tileID]
	if t == nil {
		return
	}
	sum := 0
	for _, p := range s.players {
		sum += p.Troops[tileID]
	}
	t.PublicTroops = sum
	s.seq++
	t.Version = s.seq
}

// RecomputeAllTiles rebuilds every tile's public troop aggregate. Used after
// a snapshot restore. Caller must hold the lock.
func (s *Store) RecomputeAllTiles() {
	for _, t := range s.w.Tiles {
		t.PublicTroops = 0
	}
	for _, p := range s.players {
		for tileID, n := range p.Troops {
			if t := s.w.Tiles[tileID]; t != nil {
				t.PublicTroops += n
			}
		}
	}
	for _, t := range s.w.Tiles {
		s.seq++
		t.Version = s.seq
	}
}

// TileView is the wire projection of a tile. Seq is the tile's mutation
// stamp: deltas are emitted outside the store lock, so consumers use it to
// discard a view that arrives after a newer one for the same tile.
type TileView struct {
	ID      string `json:"id"`
	Q       int    `json:"q"`
	R       int    `json:"r"`
	Owner   string `json:"owner"`
	Control int    `json:"control"`
	Capital bool   `json:"capital"`
	Troops  int    `json:"troops"`
	Terrain uint8  `json:"terrain"`
	Seq     uint64 `json:"seq"`
}

// TileView builds the wire projection for one tile. Caller must hold the
// lock.
func (s *Store) TileView(id string) (TileView, bool) {
	t := s.w.Tiles[id]
	if t == nil {
		return TileView{}, false
	}
	return TileView{
		ID:      t.Key(),
		Q:       t.Coord.Q,
		R:       t.Coord.R,
		Owner:   t.Owner,
		Control: t.Control,
		Capital: t.Capital,
		Troops:  t.PublicTroops,
		Terrain: uint8(t.Terrain),
		Seq:     t.Version,
	}, true
}

// AllTileViews returns every tile's wire projection, sorted by id for a
// stable payload. Caller must hold the lock.
func (s *Store) AllTileViews() []TileView {
	views := make([]TileView, 0, len(s.w.Tiles))
	for id := range s.w.Tiles {
		v, _ := s.TileView(id)
		views = append(views, v)
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ID < views[j].ID })
	return views
}

// FactionStat is one leaderboard row.
type FactionStat struct {
	FactionID string `json:"factionId"`
	Tiles     int    `json:"tiles"`
	Troops    int    `json:"troops"`
}

// Leaderboard aggregates tile and troop totals per faction, in faction
// order. Caller must hold the lock.
func (s *Store) Leaderboard() []FactionStat {
	byID := make(map[string]*FactionStat, len(s.w.Factions))
	stats := make([]FactionStat, len(s.w.Factions))
	for i, f := range s.w.Factions {
		stats[i] = FactionStat{FactionID: f.ID}
		byID[f.ID] = &stats[i]
	}
	for _, t := range s.w.Tiles {
		if st, ok := byID[t.Owner]; ok {
			st.Tiles++
			st.Troops += t.PublicTroops
		}
	}
	return stats
}
