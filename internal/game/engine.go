// Package game implements the action engine and the recruitment scheduler:
// every mutating verb a player can issue, validated and applied against the
// state store as one critical section per action.
package game

import (
	"errors"

	"pentafront/internal/protocol"
	"pentafront/internal/state"
	"pentafront/internal/world"
)

// Rule violations surfaced to clients. The gateway decides per action
// whether a failure is reported or silently dropped.
var (
	ErrNoPlayer       = errors.New("unknown session")
	ErrUnknownTile    = errors.New("unknown tile")
	ErrBadAmount      = errors.New("amount must be a positive integer")
	ErrNoInventory    = errors.New("insufficient inventory")
	ErrNoTroops       = errors.New("insufficient troops")
	ErrNotAdjacent    = errors.New("tiles are not adjacent")
	ErrNotOwned       = errors.New("tile not owned by your faction")
	ErrNotConnected   = errors.New("not connected to capital")
	ErrCapitalImmune  = errors.New("capitals cannot be attacked")
	ErrFriendlyTarget = errors.New("cannot attack your own faction")
)

// Emitter delivers outbound events. The gateway implements it; ToPlayer is
// a no-op for players without a live connection.
type Emitter interface {
	ToPlayer(token string, msg any)
	Broadcast(msg any)
}

// Engine validates and applies player actions.
type Engine struct {
	store *state.Store
	emit  Emitter
}

// NewEngine wires the action engine to the store and the event gateway.
func NewEngine(store *state.Store, emit Emitter) *Engine {
	return &Engine{store: store, emit: emit}
}

// Collect moves the produced integer into inventory and restarts the
// production countdown. A zero-produced collect is a silent no-op.
func (e *Engine) Collect(token string) error {
	e.store.Lock()
	p := e.store.Player(token)
	if p == nil {
		e.store.Unlock()
		return ErrNoPlayer
	}
	amount := p.Produced
	if amount == 0 {
		e.store.Unlock()
		return nil
	}
	p.Inventory += amount
	p.ProducedPrecise -= float64(amount)
	if p.ProducedPrecise < 0 {
		p.ProducedPrecise = 0
	}
	p.Produced = 0
	p.RemainingMS = p.RecruitDurationMS
	view := p.View()
	e.store.Unlock()

	e.emit.ToPlayer(token, protocol.NewMeUpdate(view))
	return nil
}

// Deploy debits inventory and garrisons troops on a tile connected to the
// player's faction capital through faction-owned territory.
func (e *Engine) Deploy(token, targetID string, amount int) error {
	e.store.Lock()
	p := e.store.Player(token)
	if p == nil {
		e.store.Unlock()
		return ErrNoPlayer
	}
	if amount <= 0 {
		e.store.Unlock()
		return ErrBadAmount
	}
	if amount > p.Inventory {
		e.store.Unlock()
		return ErrNoInventory
	}
	if e.store.Tile(targetID) == nil {
		e.store.Unlock()
		return ErrUnknownTile
	}
	if !CapitalConnected(e.store.World(), p.FactionID, targetID) {
		e.store.Unlock()
		return ErrNotConnected
	}

	p.Inventory -= amount
	e.store.AdjustTroops(token, targetID, amount)
	me := p.View()
	tile, _ := e.store.TileView(targetID)
	e.store.Unlock()

	e.emit.ToPlayer(token, protocol.NewMeUpdate(me))
	e.emit.Broadcast(protocol.NewTileUpdate(tile))
	return nil
}

// Move shifts troops one hop between two faction-owned neighbor tiles.
// Multi-hop moves are client-driven chains of single hops; each hop is
// validated on its own and a mid-chain failure never rolls back earlier
// hops.
func (e *Engine) Move(token, fromID, toID string, amount int) error {
	e.store.Lock()
	p := e.store.Player(token)
	if p == nil {
		e.store.Unlock()
		return ErrNoPlayer
	}
	from := e.store.Tile(fromID)
	to := e.store.Tile(toID)
	if from == nil || to == nil {
		e.store.Unlock()
		return ErrUnknownTile
	}
	if !world.Adjacent(from.Coord, to.Coord) {
		e.store.Unlock()
		return ErrNotAdjacent
	}
	if from.Owner != p.FactionID || to.Owner != p.FactionID {
		e.store.Unlock()
		return ErrNotOwned
	}
	if amount <= 0 {
		e.store.Unlock()
		return ErrBadAmount
	}
	if amount > p.TroopsAt(fromID) {
		e.store.Unlock()
		return ErrNoTroops
	}

	e.store.AdjustTroops(token, fromID, -amount)
	e.store.AdjustTroops(token, toID, amount)
	me := p.View()
	fromView, _ := e.store.TileView(fromID)
	toView, _ := e.store.TileView(toID)
	e.store.Unlock()

	e.emit.Broadcast(protocol.NewTileUpdate(fromView))
	e.emit.Broadcast(protocol.NewTileUpdate(toView))
	e.emit.ToPlayer(token, protocol.NewMeUpdate(me))
	return nil
}

// Attack resolves combat from a faction-owned tile against a neighbor.
// Defenders must be strictly outnumbered to lose the tile: a tie repels the
// attack. The full attacking force is spent either way.
func (e *Engine) Attack(token, fromID, targetID string, amount int) error {
	e.store.Lock()
	p := e.store.Player(token)
	if p == nil {
		e.store.Unlock()
		return ErrNoPlayer
	}
	from := e.store.Tile(fromID)
	target := e.store.Tile(targetID)
	if from == nil || target == nil {
		e.store.Unlock()
		return ErrUnknownTile
	}
	if from.Owner != p.FactionID {
		e.store.Unlock()
		return ErrNotOwned
	}
	if !world.Adjacent(from.Coord, target.Coord) {
		e.store.Unlock()
		return ErrNotAdjacent
	}
	if target.Capital {
		e.store.Unlock()
		return ErrCapitalImmune
	}
	if target.Owner == p.FactionID {
		e.store.Unlock()
		return ErrFriendlyTarget
	}
	if amount <= 0 {
		e.store.Unlock()
		return ErrBadAmount
	}
	if amount > p.TroopsAt(fromID) {
		e.store.Unlock()
		return ErrNoTroops
	}

	defenders := target.Control
	e.store.AdjustTroops(token, fromID, -amount)

	captured := amount > defenders
	if captured {
		// Overrun: every garrison on the tile is destroyed before the
		// survivors move in.
		for _, other := range e.store.Players() {
			delete(other.Troops, targetID)
		}
		target.Owner = p.FactionID
		target.Control = 0
		e.store.SetTroops(token, targetID, amount-defenders)
	} else {
		target.Control -= amount
		e.store.RecomputeTile(targetID)
	}

	me := p.View()
	fromView, _ := e.store.TileView(fromID)
	targetView, _ := e.store.TileView(targetID)
	var board []state.FactionStat
	if captured {
		board = e.store.Leaderboard()
	}
	survivors := amount - defenders
	e.store.Unlock()

	if captured {
		e.emit.Broadcast(protocol.NewCombatResult(fromID, targetID, survivors))
	}
	e.emit.Broadcast(protocol.NewTileUpdate(fromView))
	e.emit.Broadcast(protocol.NewTileUpdate(targetView))
	e.emit.ToPlayer(token, protocol.NewMeUpdate(me))
	if captured {
		e.emit.Broadcast(protocol.NewLeaderboard(board))
	}
	return nil
}
