package game

import (
	"testing"

	"pentafront/internal/state"
)

func productionPlayer(durationMS int64, cap int) *state.Player {
	return &state.Player{
		Token:             "p",
		Troops:            make(map[string]int),
		RecruitDurationMS: durationMS,
		ReserveCap:        cap,
		RemainingMS:       durationMS,
	}
}

func TestAdvanceProductionRate(t *testing.T) {
	// cap 50 over 10s -> 5 per second.
	p := productionPlayer(10000, 50)

	AdvanceProduction(p, 1000)
	if p.ProducedPrecise != 5 || p.Produced != 5 {
		t.Errorf("after 1s: precise %v produced %d, want 5/5", p.ProducedPrecise, p.Produced)
	}
	if p.RemainingMS != 9000 {
		t.Errorf("remainingMs = %d, want 9000", p.RemainingMS)
	}

	AdvanceProduction(p, 100)
	if p.ProducedPrecise != 5.5 {
		t.Errorf("after 1.1s: precise = %v, want 5.5", p.ProducedPrecise)
	}
	if p.Produced != 5 {
		t.Errorf("produced = %d, want floor 5", p.Produced)
	}
}

func TestAdvanceProductionCapsAtReserve(t *testing.T) {
	p := productionPlayer(10000, 50)

	// Way more elapsed time than the cycle: accumulator pins at the cap
	// and the countdown pins at zero.
	AdvanceProduction(p, 60000)
	if p.ProducedPrecise != 50 || p.Produced != 50 {
		t.Errorf("precise %v produced %d, want 50/50", p.ProducedPrecise, p.Produced)
	}
	if p.RemainingMS != 0 {
		t.Errorf("remainingMs = %d, want 0", p.RemainingMS)
	}

	// Countdown exhausted: further ticks change nothing.
	AdvanceProduction(p, 5000)
	if p.ProducedPrecise != 50 || p.RemainingMS != 0 {
		t.Errorf("production advanced past expiry: precise %v remaining %d",
			p.ProducedPrecise, p.RemainingMS)
	}
}

func TestAdvanceProductionStopsWhenExpired(t *testing.T) {
	p := productionPlayer(10000, 50)
	p.RemainingMS = 0
	p.ProducedPrecise = 12.7

	AdvanceProduction(p, 1000)
	if p.ProducedPrecise != 12.7 {
		t.Errorf("accumulator moved while expired: %v", p.ProducedPrecise)
	}
	if p.Produced != 12 {
		t.Errorf("produced = %d, want 12", p.Produced)
	}
}

func TestCollectRestartsProduction(t *testing.T) {
	eng, store, _ := testEngine()
	p := addPlayer(store, "alice", "f1", 0)
	p.RecruitDurationMS = 10000
	p.ReserveCap = 50
	p.RemainingMS = 10000

	sched := NewScheduler(store, newRecordingEmitter())
	for i := 0; i < 12; i++ {
		sched.Tick()
	}
	if p.Produced != 50 || p.RemainingMS != 0 {
		t.Fatalf("after 12 ticks: produced %d remaining %d, want 50/0", p.Produced, p.RemainingMS)
	}

	if err := eng.Collect("alice"); err != nil {
		t.Fatal(err)
	}
	if p.Inventory != 50 {
		t.Errorf("inventory = %d, want 50", p.Inventory)
	}
	if p.RemainingMS != 10000 {
		t.Errorf("countdown not restarted: %d", p.RemainingMS)
	}

	// Production resumes after collect.
	sched.Tick()
	if p.Produced != 5 {
		t.Errorf("produced after restart tick = %d, want 5", p.Produced)
	}
}

func TestTickEmitsMeUpdates(t *testing.T) {
	store := state.NewStore(testWorld())
	emit := newRecordingEmitter()
	addPlayer(store, "alice", "f1", 0)
	addPlayer(store, "bob", "f2", 0)

	sched := NewScheduler(store, emit)
	sched.Tick()

	for _, token := range []string{"alice", "bob"} {
		if n := len(emit.toPlayer[token]); n != 1 {
			t.Errorf("me_update for %s = %d events, want 1", token, n)
		}
	}
	if len(emit.broadcast) != 0 {
		t.Errorf("tick broadcast %d events, want 0", len(emit.broadcast))
	}
}
