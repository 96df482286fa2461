// Pentagon play-area partition. The rhombus of enumerated axial coordinates
// is carved down to the tiles whose projected pixel position falls inside a
// regular pentagon, giving the map its five-lobed continent shape.
package world

import "math"

// Projection of hex axial coordinates to pixel space (pointy-top, size 1):
// x = sqrt(3) * (q + r/2), y = 1.5 * r.
func Pixel(c HexCoord) (x, y float64) {
	x = math.Sqrt(3) * (float64(c.Q) + float64(c.R)/2)
	y = 1.5 * float64(c.R)
	return x, y
}

// Vertex is a point in projected pixel space.
type Vertex struct {
	X float64
	Y float64
}

// pentagonRadiusFactor scales the pentagon circumradius relative to the hex
// enumeration radius. 1.25 keeps every vertex inside the enumerated rhombus
// so each lobe actually contains tiles.
const pentagonRadiusFactor = 1.25

// PentagonVertices returns the five corners of a regular pentagon centered
// on the origin with one vertex pointing up, sized for a grid of the given
// radius.
func PentagonVertices(radius int) [5]Vertex {
	c := pentagonRadiusFactor * float64(radius)
	var verts [5]Vertex
	for k := 0; k < 5; k++ {
		angle := -math.Pi/2 + 2*math.Pi*float64(k)/5
		verts[k] = Vertex{X: c * math.Cos(angle), Y: c * math.Sin(angle)}
	}
	return verts
}

// InPolygon reports whether the point (x, y) lies inside the polygon using
// the crossing-number test: a ray cast in +x counts edge crossings, odd
// means inside.
func InPolygon(x, y float64, verts []Vertex) bool {
	crossings := 0
	n := len(verts)
	for i := 0; i < n; i++ {
		a := verts[i]
		b := verts[(i+1)%n]
		if (a.Y > y) == (b.Y > y) {
			continue
		}
		// Edge straddles the horizontal through y; find crossing x.
		t := (y - a.Y) / (b.Y - a.Y)
		if a.X+t*(b.X-a.X) > x {
			crossings++
		}
	}
	return crossings%2 == 1
}
