// Package world provides the hex grid, the pentagon play-area partition,
// and initial territory generation.
// Uses axial coordinates (q, r) for the hex grid.
package world

import (
	"fmt"
	"strconv"
	"strings"
)

// HexCoord represents a position on the hex grid using axial coordinates.
// The third cube coordinate s is derived: s = -q - r.
type HexCoord struct {
	Q int `json:"q"`
	R int `json:"r"`
}

// S returns the implicit third cube coordinate.
func (h HexCoord) S() int {
	return -h.Q - h.R
}

// Key returns the canonical string identity "q,r" used as tile id.
func (h HexCoord) Key() string {
	return fmt.Sprintf("%d,%d", h.Q, h.R)
}

// ParseKey parses a "q,r" tile id back into a coordinate.
func ParseKey(key string) (HexCoord, error) {
	parts := strings.SplitN(key, ",", 2)
	if len(parts) != 2 {
		return HexCoord{}, fmt.Errorf("bad tile key %q", key)
	}
	q, err := strconv.Atoi(parts[0])
	if err != nil {
		return HexCoord{}, fmt.Errorf("bad tile key %q: %w", key, err)
	}
	r, err := strconv.Atoi(parts[1])
	if err != nil {
		return HexCoord{}, fmt.Errorf("bad tile key %q: %w", key, err)
	}
	return HexCoord{Q: q, R: r}, nil
}

// NeighborDirections defines the six neighbor offsets in axial coordinates.
// The order is fixed: flood fills and fallback searches walk it as-is, which
// keeps generation reproducible for a given configuration.
var NeighborDirections = [6]HexCoord{
	{Q: 1, R: 0},
	{Q: -1, R: 0},
	{Q: 0, R: 1},
	{Q: 0, R: -1},
	{Q: 1, R: -1},
	{Q: -1, R: 1},
}

// Neighbors returns the six adjacent hex coordinates in direction order.
func (h HexCoord) Neighbors() [6]HexCoord {
	var result [6]HexCoord
	for i, dir := range NeighborDirections {
		result[i] = HexCoord{Q: h.Q + dir.Q, R: h.R + dir.R}
	}
	return result
}

// Adjacent reports whether b is one of a's six direct neighbors.
func Adjacent(a, b HexCoord) bool {
	for _, dir := range NeighborDirections {
		if a.Q+dir.Q == b.Q && a.R+dir.R == b.R {
			return true
		}
	}
	return false
}

// Distance returns the hex distance between two coordinates.
func Distance(a, b HexCoord) int {
	dq := abs(a.Q - b.Q)
	dr := abs(a.R - b.R)
	ds := abs(a.S() - b.S())
	max := dq
	if dr > max {
		max = dr
	}
	if ds > max {
		max = ds
	}
	return max
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
