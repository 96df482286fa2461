package game

import "pentafront/internal/world"

// CapitalConnected reports whether targetID is reachable from the faction's
// capital through a chain of tiles owned by that faction. The search is
// recomputed per request: ownership changes invalidate any cached answer,
// and the walk is bounded by the faction's owned-tile count.
func CapitalConnected(w *world.World, factionID, targetID string) bool {
	capKey, ok := w.Capitals[factionID]
	if !ok {
		return false
	}
	target := w.Tiles[targetID]
	if target == nil || target.Owner != factionID {
		return false
	}
	if targetID == capKey {
		return true
	}

	queue := []world.HexCoord{w.Tiles[capKey].Coord}
	seen := map[string]bool{capKey: true}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, nc := range cur.Neighbors() {
			key := nc.Key()
			if seen[key] {
				continue
			}
			seen[key] = true
			t := w.Tiles[key]
			if t == nil || t.Owner != factionID {
				continue
			}
			if key == targetID {
				return true
			}
			queue = append(queue, nc)
		}
	}
	return false
}
