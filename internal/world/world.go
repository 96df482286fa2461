package world

import "fmt"

// Neutral is the sentinel owner of unclaimed tiles.
const Neutral = "neutral"

// Terrain is a cosmetic tile classification for the client renderer.
// It has no effect on combat, movement, or production.
type Terrain uint8

const (
	TerrainPlains Terrain = iota
	TerrainForest
	TerrainHills
	TerrainMarsh
)

// TerrainName returns a human-readable name for a terrain type.
func TerrainName(t Terrain) string {
	switch t {
	case TerrainPlains:
		return "Plains"
	case TerrainForest:
		return "Forest"
	case TerrainHills:
		return "Hills"
	case TerrainMarsh:
		return "Marsh"
	default:
		return "Unknown"
	}
}

// Faction is immutable after generation.
type Faction struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// DefaultFactions returns the five factions of the standard pentagon map,
// one per pentagon vertex.
func DefaultFactions() []Faction {
	return []Faction{
		{ID: "crimson", Name: "Crimson Pact", Color: "#c0392b"},
		{ID: "azure", Name: "Azure League", Color: "#2980b9"},
		{ID: "verdant", Name: "Verdant Order", Color: "#27ae60"},
		{ID: "gilded", Name: "Gilded Compact", Color: "#d4a017"},
		{ID: "violet", Name: "Violet Accord", Color: "#8e44ad"},
	}
}

// Tile is one cell of the hex grid, the unit of ownership and combat.
type Tile struct {
	Coord HexCoord `json:"coord"`

	// Owner is a faction id, or Neutral for unclaimed tiles. A capital's
	// owner never changes after generation.
	Owner string `json:"owner"`

	// Control is the tile's defender strength, worn down by repelled
	// attacks and reset to 0 on capture.
	Control int `json:"control"`

	// Capital marks a faction's unconquerable home tile. Immutable.
	Capital bool `json:"capital"`

	// PublicTroops is derived: the sum of every player's troop entry for
	// this tile. Recomputed by the state store, never mutated directly.
	PublicTroops int `json:"publicTroops"`

	Terrain Terrain `json:"terrain"`

	// Version is a monotonic mutation stamp maintained by the state store.
	// Not persisted; a restored world is restamped from a fresh counter.
	Version uint64 `json:"-"`
}

// Key returns the tile's identity key.
func (t *Tile) Key() string {
	return t.Coord.Key()
}

// World holds the full tile map, the faction list, and the capital lookup.
// Created once at boot (or restored from a snapshot); mutated only through
// the state store.
type World struct {
	Tiles    map[string]*Tile  `json:"-"`
	Factions []Faction         `json:"factions"`
	Capitals map[string]string `json:"capitalsByFaction"` // faction id -> tile key
	Radius   int               `json:"radius"`
}

// Tile returns the tile with the given key, or nil if it does not exist.
func (w *World) Tile(key string) *Tile {
	return w.Tiles[key]
}

// Faction returns the faction with the given id, or false if unknown.
func (w *World) Faction(id string) (Faction, bool) {
	for _, f := range w.Factions {
		if f.ID == id {
			return f, true
		}
	}
	return Faction{}, false
}

// CapitalTile returns the capital tile of the given faction.
func (w *World) CapitalTile(factionID string) *Tile {
	key, ok := w.Capitals[factionID]
	if !ok {
		return nil
	}
	return w.Tiles[key]
}

// String returns a summary of the world.
func (w *World) String() string {
	return fmt.Sprintf("World(radius=%d, tiles=%d, factions=%d)",
		w.Radius, len(w.Tiles), len(w.Factions))
}
