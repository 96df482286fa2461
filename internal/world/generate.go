// World generation: carve the pentagon continent out of the enumerated
// rhombus, seed one capital per faction at the tile nearest each pentagon
// vertex, then flood-fill starting territory. Deterministic for a fixed
// configuration.
package world

import (
	"fmt"
	"sort"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds world generation parameters.
type GenConfig struct {
	Radius         int   // Hex enumeration radius (rhombus superset)
	Seed           int64 // Terrain noise seed
	ClaimCount     int   // Tiles claimed per faction beyond the capital
	NeutralControl int   // Defender strength of unclaimed tiles
	ClaimedControl int   // Defender strength of flood-filled territory
	CapitalControl int   // Capital control floor
	Factions       []Faction
}

// DefaultGenConfig returns the standard five-faction pentagon map settings.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Radius:         24,
		Seed:           1,
		ClaimCount:     30,
		NeutralControl: 10,
		ClaimedControl: 5,
		CapitalControl: 1000,
		Factions:       DefaultFactions(),
	}
}

// Generate builds a fresh world. It fails only on malformed configuration;
// the partition and seeding steps only ever assign tiles that exist.
func Generate(cfg GenConfig) (*World, error) {
	if cfg.Radius <= 0 {
		return nil, fmt.Errorf("generate: radius must be positive, got %d", cfg.Radius)
	}
	if len(cfg.Factions) == 0 {
		return nil, fmt.Errorf("generate: no factions configured")
	}
	verts := PentagonVertices(cfg.Radius)
	if len(cfg.Factions) > len(verts) {
		return nil, fmt.Errorf("generate: %d factions but only %d pentagon vertices",
			len(cfg.Factions), len(verts))
	}

	w := &World{
		Tiles:    make(map[string]*Tile),
		Factions: cfg.Factions,
		Capitals: make(map[string]string, len(cfg.Factions)),
		Radius:   cfg.Radius,
	}

	noise := opensimplex.NewNormalized(cfg.Seed)

	// Enumerate the rhombus superset and keep tiles inside the pentagon.
	for q := -cfg.Radius; q <= cfg.Radius; q++ {
		for r := -cfg.Radius; r <= cfg.Radius; r++ {
			coord := HexCoord{Q: q, R: r}
			x, y := Pixel(coord)
			if !InPolygon(x, y, verts[:]) {
				continue
			}
			w.Tiles[coord.Key()] = &Tile{
				Coord:   coord,
				Owner:   Neutral,
				Control: cfg.NeutralControl,
				Terrain: deriveTerrain(noise, x, y),
			}
		}
	}

	// Sorted key list gives the nearest-tile search a stable iteration
	// order, so capital placement is reproducible.
	keys := make([]string, 0, len(w.Tiles))
	for k := range w.Tiles {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	// Capitals: one per faction, at the tile nearest its pentagon vertex.
	// Factions are processed in configured order; the first claimant wins
	// a contested tile and later factions fall back to a neighbor.
	for i, f := range cfg.Factions {
		capTile, err := placeCapital(w, keys, verts[i], f.ID, cfg.CapitalControl)
		if err != nil {
			return nil, fmt.Errorf("generate: faction %s: %w", f.ID, err)
		}
		w.Capitals[f.ID] = capTile.Key()
	}

	// Flood-fill starting territory from each capital, again in faction
	// order, restricted to still-neutral tiles.
	for _, f := range cfg.Factions {
		claimTerritory(w, f.ID, cfg.ClaimCount, cfg.ClaimedControl)
	}

	return w, nil
}

// placeCapital finds the unclaimed tile nearest the vertex by squared
// Euclidean distance in pixel space. If the nearest tile is already another
// faction's capital, it falls back to the first unclaimed direct neighbor
// in direction order.
func placeCapital(w *World, keys []string, v Vertex, factionID string, control int) (*Tile, error) {
	var best *Tile
	bestDist := 0.0
	for _, k := range keys {
		t := w.Tiles[k]
		x, y := Pixel(t.Coord)
		dx, dy := x-v.X, y-v.Y
		d := dx*dx + dy*dy
		if best == nil || d < bestDist {
			best = t
			bestDist = d
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no tiles inside pentagon")
	}
	if best.Capital {
		// Vertex collision with an earlier faction's capital.
		found := false
		for _, nc := range best.Coord.Neighbors() {
			n := w.Tiles[nc.Key()]
			if n != nil && !n.Capital {
				best = n
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("no free tile near contested vertex")
		}
	}
	best.Owner = factionID
	best.Capital = true
	best.Control = control
	return best, nil
}

// claimTerritory runs a breadth-first flood fill from the faction's capital
// over neutral tiles, claiming up to claimCount of them.
func claimTerritory(w *World, factionID string, claimCount, claimedControl int) {
	capKey := w.Capitals[factionID]
	queue := []HexCoord{w.Tiles[capKey].Coord}
	seen := map[string]bool{capKey: true}
	claimed := 0

	for len(queue) > 0 && claimed < claimCount {
		cur := queue[0]
		queue = queue[1:]
		for _, nc := range cur.Neighbors() {
			key := nc.Key()
			if seen[key] {
				continue
			}
			seen[key] = true
			t := w.Tiles[key]
			if t == nil || t.Owner != Neutral {
				continue
			}
			t.Owner = factionID
			t.Control = claimedControl
			claimed++
			queue = append(queue, nc)
			if claimed >= claimCount {
				return
			}
		}
	}
}

// deriveTerrain maps a noise sample at the tile's pixel position to a
// cosmetic terrain type.
func deriveTerrain(noise opensimplex.Noise, x, y float64) Terrain {
	n := noise.Eval2(x*0.08, y*0.08)
	switch {
	case n < 0.3:
		return TerrainMarsh
	case n < 0.55:
		return TerrainPlains
	case n < 0.8:
		return TerrainForest
	default:
		return TerrainHills
	}
}

// TerrainCounts returns a summary of terrain type distribution.
func TerrainCounts(w *World) map[Terrain]int {
	counts := make(map[Terrain]int)
	for _, t := range w.Tiles {
		counts[t.Terrain]++
	}
	return counts
}
