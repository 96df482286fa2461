package game

import (
	"context"
	"log/slog"
	"math"
	"time"

	"pentafront/internal/protocol"
	"pentafront/internal/state"
)

// Scheduler advances every player's production counter on a fixed period.
// It runs independently of action traffic and does not skip disconnected
// players: offline players keep accumulating.
type Scheduler struct {
	store    *state.Store
	emit     Emitter
	Interval time.Duration
}

// NewScheduler returns a scheduler with the standard one-second period.
func NewScheduler(store *state.Store, emit Emitter) *Scheduler {
	return &Scheduler{store: store, emit: emit, Interval: time.Second}
}

// Run drives the tick loop until the context is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	slog.Info("recruitment scheduler started", "interval", s.Interval)
	for {
		select {
		case <-ctx.Done():
			slog.Info("recruitment scheduler stopped")
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Tick advances production for every player by one period and pushes each
// player's refreshed view to their live connection only.
func (s *Scheduler) Tick() {
	elapsedMS := s.Interval.Milliseconds()

	type update struct {
		token string
		view  state.PlayerView
	}

	s.store.Lock()
	updates := make([]update, 0, len(s.store.Players()))
	for token, p := range s.store.Players() {
		AdvanceProduction(p, elapsedMS)
		updates = append(updates, update{token: token, view: p.View()})
	}
	s.store.Unlock()

	for _, u := range updates {
		s.emit.ToPlayer(u.token, protocol.NewMeUpdate(u.view))
	}
}

// AdvanceProduction applies elapsed time to one player's production state.
// While the countdown runs, the fractional accumulator grows at
// reserveCap / recruitDuration per second, capped at reserveCap; once the
// countdown hits zero the accumulator stays pinned until the player
// collects. The collectible integer is always the floor of the accumulator.
func AdvanceProduction(p *state.Player, elapsedMS int64) {
	if p.RemainingMS > 0 {
		perSecond := float64(p.ReserveCap) / (float64(p.RecruitDurationMS) / 1000)
		p.ProducedPrecise += perSecond * float64(elapsedMS) / 1000
		if p.ProducedPrecise > float64(p.ReserveCap) {
			p.ProducedPrecise = float64(p.ReserveCap)
		}
		p.RemainingMS -= elapsedMS
		if p.RemainingMS < 0 {
			p.RemainingMS = 0
		}
	}
	p.Produced = int(math.Floor(p.ProducedPrecise))
}
