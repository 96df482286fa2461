package game

import (
	"errors"
	"sync"
	"testing"

	"pentafront/internal/protocol"
	"pentafront/internal/state"
	"pentafront/internal/world"
)

// recordingEmitter captures emitted events for assertions.
type recordingEmitter struct {
	mu        sync.Mutex
	toPlayer  map[string][]any
	broadcast []any
}

func newRecordingEmitter() *recordingEmitter {
	return &recordingEmitter{toPlayer: make(map[string][]any)}
}

func (r *recordingEmitter) ToPlayer(token string, msg any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toPlayer[token] = append(r.toPlayer[token], msg)
}

func (r *recordingEmitter) Broadcast(msg any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcast = append(r.broadcast, msg)
}

func (r *recordingEmitter) tileUpdates(tileID string) []protocol.TileUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []protocol.TileUpdate
	for _, msg := range r.broadcast {
		if tu, ok := msg.(protocol.TileUpdate); ok && tu.Tile.ID == tileID {
			out = append(out, tu)
		}
	}
	return out
}

func (r *recordingEmitter) combatResults() []protocol.CombatResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []protocol.CombatResult
	for _, msg := range r.broadcast {
		if cr, ok := msg.(protocol.CombatResult); ok {
			out = append(out, cr)
		}
	}
	return out
}

// testWorld lays out a strip of tiles on r=0:
//
//	q:      0        1     2        3     4        5
//	owner:  f1(cap)  f1    neutral  f2    f2(cap)  f1 (detached)
//
// Tile 5,0 is f1-owned but not connected to f1's capital (2,0 is neutral,
// and 3,0 / 4,0 belong to f2).
func testWorld() *world.World {
	w := &world.World{
		Tiles: make(map[string]*world.Tile),
		Factions: []world.Faction{
			{ID: "f1", Name: "One", Color: "#111"},
			{ID: "f2", Name: "Two", Color: "#222"},
		},
		Capitals: map[string]string{"f1": "0,0", "f2": "4,0"},
		Radius:   6,
	}
	layout := []struct {
		owner   string
		capital bool
		control int
	}{
		{"f1", true, 1000},
		{"f1", false, 5},
		{world.Neutral, false, 10},
		{"f2", false, 5},
		{"f2", true, 1000},
		{"f1", false, 5},
	}
	for q, l := range layout {
		coord := world.HexCoord{Q: q, R: 0}
		w.Tiles[coord.Key()] = &world.Tile{
			Coord: coord, Owner: l.owner, Capital: l.capital, Control: l.control,
		}
	}
	return w
}

func testEngine() (*Engine, *state.Store, *recordingEmitter) {
	store := state.NewStore(testWorld())
	emit := newRecordingEmitter()
	return NewEngine(store, emit), store, emit
}

func addPlayer(store *state.Store, token, faction string, inventory int) *state.Player {
	p := &state.Player{
		Token:             token,
		Name:              token,
		FactionID:         faction,
		Troops:            make(map[string]int),
		Inventory:         inventory,
		RecruitDurationMS: 60000,
		ReserveCap:        50,
	}
	store.Lock()
	store.AddPlayer(p)
	store.Unlock()
	return p
}

func setTroops(store *state.Store, token, tileID string, n int) {
	store.Lock()
	store.SetTroops(token, tileID, n)
	store.Unlock()
}

func tileState(store *state.Store, id string) world.Tile {
	store.Lock()
	defer store.Unlock()
	return *store.Tile(id)
}

func TestDeploy(t *testing.T) {
	eng, store, _ := testEngine()
	p := addPlayer(store, "alice", "f1", 25)

	if err := eng.Deploy("alice", "1,0", 10); err != nil {
		t.Fatalf("deploy to connected tile: %v", err)
	}
	if p.Inventory != 15 {
		t.Errorf("inventory = %d, want 15", p.Inventory)
	}
	if got := tileState(store, "1,0").PublicTroops; got != 10 {
		t.Errorf("publicTroops = %d, want 10", got)
	}

	if err := eng.Deploy("alice", "1,0", 100); !errors.Is(err, ErrNoInventory) {
		t.Errorf("over-inventory deploy: %v, want ErrNoInventory", err)
	}
	if err := eng.Deploy("alice", "1,0", 0); !errors.Is(err, ErrBadAmount) {
		t.Errorf("zero deploy: %v, want ErrBadAmount", err)
	}
	if err := eng.Deploy("alice", "99,99", 1); !errors.Is(err, ErrUnknownTile) {
		t.Errorf("deploy to missing tile: %v, want ErrUnknownTile", err)
	}
}

func TestDeployRejectsDisconnectedTile(t *testing.T) {
	eng, store, _ := testEngine()
	p := addPlayer(store, "alice", "f1", 1000)

	// 5,0 is f1-owned but cut off from the capital, 2,0 is neutral,
	// 3,0 is enemy territory. All must be rejected regardless of amount.
	for _, target := range []string{"5,0", "2,0", "3,0"} {
		for _, amount := range []int{1, 500} {
			if err := eng.Deploy("alice", target, amount); !errors.Is(err, ErrNotConnected) {
				t.Errorf("deploy %d to %s: %v, want ErrNotConnected", amount, target, err)
			}
		}
	}
	if p.Inventory != 1000 {
		t.Errorf("inventory changed on rejected deploys: %d", p.Inventory)
	}
}

func TestMove(t *testing.T) {
	eng, store, _ := testEngine()
	p := addPlayer(store, "alice", "f1", 0)
	setTroops(store, "alice", "0,0", 30)

	if err := eng.Move("alice", "0,0", "1,0", 12); err != nil {
		t.Fatalf("move: %v", err)
	}
	if p.TroopsAt("0,0") != 18 || p.TroopsAt("1,0") != 12 {
		t.Errorf("troops after move: %v", p.Troops)
	}
	if tileState(store, "0,0").PublicTroops != 18 || tileState(store, "1,0").PublicTroops != 12 {
		t.Error("publicTroops not recomputed on both tiles")
	}

	cases := []struct {
		name     string
		from, to string
		amount   int
		want     error
	}{
		{"not adjacent", "0,0", "2,0", 1, ErrNotAdjacent},
		{"destination not owned", "1,0", "2,0", 1, ErrNotOwned},
		{"missing tile", "0,0", "9,9", 1, ErrUnknownTile},
		{"zero amount", "0,0", "1,0", 0, ErrBadAmount},
		{"too many", "0,0", "1,0", 50, ErrNoTroops},
	}
	for _, c := range cases {
		if err := eng.Move("alice", c.from, c.to, c.amount); !errors.Is(err, c.want) {
			t.Errorf("%s: got %v, want %v", c.name, err, c.want)
		}
	}
}

func TestMoveChainIsBestEffort(t *testing.T) {
	eng, store, _ := testEngine()
	p := addPlayer(store, "alice", "f1", 0)
	setTroops(store, "alice", "0,0", 10)

	// Two-hop chain 0,0 -> 1,0 -> 2,0; the second hop fails because 2,0
	// is neutral. The first hop must stand.
	if err := eng.Move("alice", "0,0", "1,0", 10); err != nil {
		t.Fatalf("first hop: %v", err)
	}
	if err := eng.Move("alice", "1,0", "2,0", 10); err == nil {
		t.Fatal("second hop into neutral tile succeeded")
	}
	if p.TroopsAt("1,0") != 10 {
		t.Errorf("first hop rolled back: troops at 1,0 = %d", p.TroopsAt("1,0"))
	}
}

func TestAttackTieRepels(t *testing.T) {
	eng, store, _ := testEngine()
	p := addPlayer(store, "alice", "f1", 0)
	setTroops(store, "alice", "1,0", 20)

	// 2,0 is neutral with control 10. Attacking with exactly 10 must not
	// flip ownership.
	if err := eng.Attack("alice", "1,0", "2,0", 10); err != nil {
		t.Fatalf("attack: %v", err)
	}
	target := tileState(store, "2,0")
	if target.Owner != world.Neutral {
		t.Errorf("tie flipped ownership to %s", target.Owner)
	}
	if target.Control != 0 {
		t.Errorf("control = %d, want 0 (worn down, not captured)", target.Control)
	}
	if p.TroopsAt("1,0") != 10 {
		t.Errorf("attacker troops = %d, want 10 (full loss of committed force)", p.TroopsAt("1,0"))
	}
}

func TestAttackCaptureWithOneExtra(t *testing.T) {
	eng, store, emit := testEngine()
	p := addPlayer(store, "alice", "f1", 0)
	setTroops(store, "alice", "1,0", 20)

	// control 10, attack with 11: capture with exactly 1 survivor.
	if err := eng.Attack("alice", "1,0", "2,0", 11); err != nil {
		t.Fatalf("attack: %v", err)
	}
	target := tileState(store, "2,0")
	if target.Owner != "f1" {
		t.Errorf("owner = %s, want f1", target.Owner)
	}
	if target.Control != 0 {
		t.Errorf("control = %d, want 0", target.Control)
	}
	if p.TroopsAt("2,0") != 1 {
		t.Errorf("survivors = %d, want 1", p.TroopsAt("2,0"))
	}
	if p.TroopsAt("1,0") != 9 {
		t.Errorf("troops left at source = %d, want 9", p.TroopsAt("1,0"))
	}

	results := emit.combatResults()
	if len(results) != 1 {
		t.Fatalf("combat_result events = %d, want 1", len(results))
	}
	if results[0].Survivors != 1 || results[0].TargetID != "2,0" {
		t.Errorf("combat_result = %+v", results[0])
	}
}

func TestAttackWearsDownThenCaptures(t *testing.T) {
	eng, store, _ := testEngine()
	p := addPlayer(store, "alice", "f1", 0)
	store.Lock()
	store.Tile("2,0").Control = 100
	store.Unlock()
	setTroops(store, "alice", "1,0", 200)

	if err := eng.Attack("alice", "1,0", "2,0", 50); err != nil {
		t.Fatalf("first attack: %v", err)
	}
	target := tileState(store, "2,0")
	if target.Owner != world.Neutral || target.Control != 50 {
		t.Fatalf("after first attack: owner %s control %d, want neutral/50", target.Owner, target.Control)
	}
	if p.TroopsAt("1,0") != 150 {
		t.Fatalf("attacker troops = %d, want 150", p.TroopsAt("1,0"))
	}

	if err := eng.Attack("alice", "1,0", "2,0", 51); err != nil {
		t.Fatalf("second attack: %v", err)
	}
	target = tileState(store, "2,0")
	if target.Owner != "f1" || target.Control != 0 {
		t.Fatalf("after second attack: owner %s control %d, want f1/0", target.Owner, target.Control)
	}
	if p.TroopsAt("2,0") != 1 {
		t.Errorf("survivors = %d, want 1", p.TroopsAt("2,0"))
	}
}

func TestAttackRules(t *testing.T) {
	eng, store, _ := testEngine()
	addPlayer(store, "alice", "f1", 0)
	setTroops(store, "alice", "1,0", 10)
	setTroops(store, "alice", "0,0", 10)

	cases := []struct {
		name         string
		from, target string
		amount       int
		want         error
	}{
		{"capital immune", "5,0", "4,0", 5, ErrCapitalImmune},
		{"not adjacent", "1,0", "3,0", 5, ErrNotAdjacent},
		{"own faction", "0,0", "1,0", 5, ErrFriendlyTarget},
		{"source not owned", "3,0", "2,0", 5, ErrNotOwned},
		{"insufficient troops", "1,0", "2,0", 11, ErrNoTroops},
		{"zero amount", "1,0", "2,0", 0, ErrBadAmount},
		{"missing tile", "1,0", "9,9", 5, ErrUnknownTile},
	}
	for _, c := range cases {
		if err := eng.Attack("alice", c.from, c.target, c.amount); !errors.Is(err, c.want) {
			t.Errorf("%s: got %v, want %v", c.name, err, c.want)
		}
	}
}

func TestCapitalInvariantUnderAttackSequences(t *testing.T) {
	eng, store, _ := testEngine()
	addPlayer(store, "bob", "f2", 0)
	setTroops(store, "bob", "3,0", 5000)

	before := tileState(store, "4,0")
	// Capital immunity is checked before the friendly-target rule, so even
	// an own-faction strike against a capital reports the immunity.
	if err := eng.Attack("bob", "3,0", "4,0", 2000); !errors.Is(err, ErrCapitalImmune) {
		t.Fatalf("capital attack: %v, want ErrCapitalImmune", err)
	}
	after := tileState(store, "4,0")
	if after.Owner != before.Owner || !after.Capital || after.Control != before.Control {
		t.Errorf("capital mutated: before %+v after %+v", before, after)
	}
}

func TestAttackOverrunDestroysGarrisons(t *testing.T) {
	eng, store, _ := testEngine()
	attacker := addPlayer(store, "alice", "f1", 0)
	defender := addPlayer(store, "bob", "f2", 0)
	setTroops(store, "alice", "1,0", 50)
	setTroops(store, "bob", "2,0", 30)
	store.Lock()
	store.Tile("2,0").Owner = "f2"
	store.Tile("2,0").Control = 10
	store.Unlock()

	if err := eng.Attack("alice", "1,0", "2,0", 20); err != nil {
		t.Fatalf("attack: %v", err)
	}
	if defender.TroopsAt("2,0") != 0 {
		t.Errorf("overrun garrison survived: %d", defender.TroopsAt("2,0"))
	}
	if attacker.TroopsAt("2,0") != 10 {
		t.Errorf("survivors = %d, want 10", attacker.TroopsAt("2,0"))
	}
	if got := tileState(store, "2,0").PublicTroops; got != 10 {
		t.Errorf("publicTroops = %d, want 10", got)
	}
}

func TestConcurrentAttacksAreSerialized(t *testing.T) {
	eng, store, _ := testEngine()
	addPlayer(store, "alice", "f1", 0)
	addPlayer(store, "carol", "f1", 0)
	setTroops(store, "alice", "1,0", 60)
	setTroops(store, "carol", "1,0", 60)
	store.Lock()
	store.Tile("2,0").Control = 100
	store.Unlock()

	// Each attack alone fails (60 <= 100) but the second runs against the
	// worn-down control (100-60=40) and must capture with 20 survivors.
	// Serialization means the outcome is never consistent with both
	// attacks hitting control=100.
	var wg sync.WaitGroup
	for _, token := range []string{"alice", "carol"} {
		wg.Add(1)
		go func(tok string) {
			defer wg.Done()
			if err := eng.Attack(tok, "1,0", "2,0", 60); err != nil {
				t.Errorf("attack by %s: %v", tok, err)
			}
		}(token)
	}
	wg.Wait()

	target := tileState(store, "2,0")
	if target.Owner != "f1" || target.Control != 0 {
		t.Fatalf("target = owner %s control %d, want f1/0", target.Owner, target.Control)
	}
	if target.PublicTroops != 20 {
		t.Errorf("survivors on tile = %d, want 20", target.PublicTroops)
	}
}

func TestTileUpdatesCarryMutationOrder(t *testing.T) {
	eng, store, emit := testEngine()
	addPlayer(store, "alice", "f1", 0)
	setTroops(store, "alice", "1,0", 200)
	store.Lock()
	store.Tile("2,0").Control = 100
	store.Unlock()

	// Two serialized attacks on the same tile: a repelled wear-down, then a
	// capture. Their broadcasts leave the engine after the lock is released,
	// so each view's seq is what lets a consumer reject the older one if
	// delivery order flips.
	if err := eng.Attack("alice", "1,0", "2,0", 60); err != nil {
		t.Fatal(err)
	}
	if err := eng.Attack("alice", "1,0", "2,0", 60); err != nil {
		t.Fatal(err)
	}

	updates := emit.tileUpdates("2,0")
	if len(updates) < 2 {
		t.Fatalf("tile_update events for target = %d, want at least 2", len(updates))
	}
	for i := 1; i < len(updates); i++ {
		if updates[i].Tile.Seq <= updates[i-1].Tile.Seq {
			t.Fatalf("seq not strictly increasing: %d then %d",
				updates[i-1].Tile.Seq, updates[i].Tile.Seq)
		}
	}

	last := updates[len(updates)-1].Tile
	authoritative := tileState(store, "2,0")
	if last.Owner != authoritative.Owner || last.Control != authoritative.Control ||
		last.Troops != authoritative.PublicTroops {
		t.Errorf("highest-seq view %+v does not match final state %+v", last, authoritative)
	}
	if last.Owner != "f1" || last.Control != 0 {
		t.Errorf("final view = owner %s control %d, want f1/0", last.Owner, last.Control)
	}
}

func TestCollect(t *testing.T) {
	eng, store, emit := testEngine()
	p := addPlayer(store, "alice", "f1", 5)
	p.ProducedPrecise = 7.9
	p.Produced = 7
	p.RemainingMS = 0

	if err := eng.Collect("alice"); err != nil {
		t.Fatalf("collect: %v", err)
	}
	if p.Inventory != 12 {
		t.Errorf("inventory = %d, want 12", p.Inventory)
	}
	if p.Produced != 0 {
		t.Errorf("produced = %d, want 0", p.Produced)
	}
	if p.ProducedPrecise < 0.89 || p.ProducedPrecise > 0.91 {
		t.Errorf("accumulator = %v, want ~0.9", p.ProducedPrecise)
	}
	if p.RemainingMS != p.RecruitDurationMS {
		t.Errorf("countdown not reset: %d", p.RemainingMS)
	}
	if len(emit.toPlayer["alice"]) != 1 {
		t.Errorf("me_update events = %d, want 1", len(emit.toPlayer["alice"]))
	}

	// Zero-produced collect: silent no-op, no event.
	if err := eng.Collect("alice"); err != nil {
		t.Fatalf("second collect: %v", err)
	}
	if len(emit.toPlayer["alice"]) != 1 {
		t.Error("no-op collect emitted an event")
	}
	if p.Inventory != 12 {
		t.Errorf("no-op collect changed inventory: %d", p.Inventory)
	}
}

func TestCapitalConnected(t *testing.T) {
	w := testWorld()
	cases := []struct {
		faction string
		target  string
		want    bool
	}{
		{"f1", "0,0", true},
		{"f1", "1,0", true},
		{"f1", "2,0", false}, // neutral
		{"f1", "3,0", false}, // enemy
		{"f1", "5,0", false}, // owned but detached
		{"f2", "3,0", true},
		{"f2", "4,0", true},
		{"f1", "9,9", false},
	}
	for _, c := range cases {
		if got := CapitalConnected(w, c.faction, c.target); got != c.want {
			t.Errorf("CapitalConnected(%s, %s) = %v, want %v", c.faction, c.target, got, c.want)
		}
	}
}
