package state

import "pentafront/internal/world"

// Snapshot is a consistent, fully-copied view of the world and all players,
// safe to serialize after the store lock is released.
type Snapshot struct {
	Radius   int               `json:"radius"`
	Tiles    []TileRecord      `json:"tiles"`
	Factions []world.Faction   `json:"factions"`
	Capitals map[string]string `json:"capitalsByFaction"`
	Players  []Player          `json:"players"`
	Origins  map[string]string `json:"ipToToken"`
}

// TileRecord is the persisted form of a tile.
type TileRecord struct {
	ID           string `json:"id"`
	Q            int    `json:"q"`
	R            int    `json:"r"`
	Owner        string `json:"owner"`
	Control      int    `json:"control"`
	Capital      bool   `json:"capital"`
	PublicTroops int    `json:"publicTroops"`
	Terrain      uint8  `json:"terrain"`
}

// Snapshot deep-copies the full state. It takes and releases the lock
// itself; the caller then serializes and writes without blocking actions.
func (s *Store) Snapshot() Snapshot {
	s.Lock()
	defer s.Unlock()

	snap := Snapshot{
		Radius:   s.w.Radius,
		Tiles:    make([]TileRecord, 0, len(s.w.Tiles)),
		Factions: append([]world.Faction(nil), s.w.Factions...),
		Capitals: make(map[string]string, len(s.w.Capitals)),
		Players:  make([]Player, 0, len(s.players)),
	}
	for _, t := range s.w.Tiles {
		snap.Tiles = append(snap.Tiles, TileRecord{
			ID:           t.Key(),
			Q:            t.Coord.Q,
			R:            t.Coord.R,
			Owner:        t.Owner,
			Control:      t.Control,
			Capital:      t.Capital,
			PublicTroops: t.PublicTroops,
			Terrain:      uint8(t.Terrain),
		})
	}
	for f, key := range s.w.Capitals {
		snap.Capitals[f] = key
	}
	for _, p := range s.players {
		cp := *p
		cp.Troops = make(map[string]int, len(p.Troops))
		for k, v := range p.Troops {
			cp.Troops[k] = v
		}
		snap.Players = append(snap.Players, cp)
	}
	return snap
}

// FromSnapshot rebuilds a store wholesale from a restored snapshot, then
// recomputes every tile's public troop aggregate (older snapshots may carry
// a zero-defaulted value).
func FromSnapshot(snap Snapshot) *Store {
	w := &world.World{
		Tiles:    make(map[string]*world.Tile, len(snap.Tiles)),
		Factions: append([]world.Faction(nil), snap.Factions...),
		Capitals: make(map[string]string, len(snap.Capitals)),
		Radius:   snap.Radius,
	}
	for _, tr := range snap.Tiles {
		w.Tiles[tr.ID] = &world.Tile{
			Coord:        world.HexCoord{Q: tr.Q, R: tr.R},
			Owner:        tr.Owner,
			Control:      tr.Control,
			Capital:      tr.Capital,
			PublicTroops: tr.PublicTroops,
			Terrain:      world.Terrain(tr.Terrain),
		}
	}
	for f, key := range snap.Capitals {
		w.Capitals[f] = key
	}

	s := NewStore(w)
	for i := range snap.Players {
		p := snap.Players[i]
		if p.Troops == nil {
			p.Troops = make(map[string]int)
		}
		s.players[p.Token] = &p
	}
	s.RecomputeAllTiles()
	return s
}
