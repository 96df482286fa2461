package world

import "testing"

func TestKeyRoundTrip(t *testing.T) {
	cases := []HexCoord{{0, 0}, {3, -2}, {-15, 7}, {24, 24}}
	for _, c := range cases {
		got, err := ParseKey(c.Key())
		if err != nil {
			t.Fatalf("ParseKey(%q): %v", c.Key(), err)
		}
		if got != c {
			t.Errorf("round trip %v -> %q -> %v", c, c.Key(), got)
		}
	}
}

func TestParseKeyRejectsGarbage(t *testing.T) {
	for _, bad := range []string{"", "1", "1,", "a,b", "1,2,3"} {
		if _, err := ParseKey(bad); err == nil {
			t.Errorf("ParseKey(%q) succeeded, want error", bad)
		}
	}
}

func TestNeighborOrder(t *testing.T) {
	want := [6]HexCoord{{3, 5}, {1, 5}, {2, 6}, {2, 4}, {3, 4}, {1, 6}}
	got := HexCoord{Q: 2, R: 5}.Neighbors()
	if got != want {
		t.Errorf("Neighbors() = %v, want %v", got, want)
	}
}

func TestAdjacent(t *testing.T) {
	center := HexCoord{Q: 0, R: 0}
	for _, n := range center.Neighbors() {
		if !Adjacent(center, n) {
			t.Errorf("Adjacent(%v, %v) = false", center, n)
		}
	}
	for _, far := range []HexCoord{{0, 0}, {2, 0}, {1, 1}, {-2, 1}} {
		if Adjacent(center, far) {
			t.Errorf("Adjacent(%v, %v) = true", center, far)
		}
	}
}

func TestDistance(t *testing.T) {
	cases := []struct {
		a, b HexCoord
		want int
	}{
		{HexCoord{0, 0}, HexCoord{0, 0}, 0},
		{HexCoord{0, 0}, HexCoord{1, 0}, 1},
		{HexCoord{0, 0}, HexCoord{1, -1}, 1},
		{HexCoord{0, 0}, HexCoord{3, 0}, 3},
		{HexCoord{0, 0}, HexCoord{2, 2}, 4},
		{HexCoord{-2, 1}, HexCoord{3, -1}, 5},
	}
	for _, c := range cases {
		if got := Distance(c.a, c.b); got != c.want {
			t.Errorf("Distance(%v, %v) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}
