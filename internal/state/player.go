package state

// Player is the durable per-session game record. Identity is the opaque
// session token minted at join. Player records are never expired or deleted
// automatically; a disconnected player's state stays rejoinable.
type Player struct {
	Token     string `json:"token"`
	Name      string `json:"name"`
	FactionID string `json:"factionId"`

	// Troops maps tile id to a positive troop count. Entries that reach
	// zero are removed: absence means zero, never a stored zero.
	Troops map[string]int `json:"troops"`

	// Production state. ProducedPrecise is the fractional accumulator;
	// Produced is its integer floor, what the player may collect.
	ProducedPrecise float64 `json:"producedPrecise"`
	Produced        int     `json:"produced"`

	// Inventory is the collected-but-undeployed troop stock.
	Inventory int `json:"inventory"`

	// RemainingMS counts down to the next production reset.
	RemainingMS int64 `json:"remainingMs"`

	// Per-player production configuration. Currently uniform across
	// players, but carried per record so it can diverge later.
	RecruitDurationMS int64 `json:"recruitDurationMs"`
	ReserveCap        int   `json:"reserveCap"`
}

// TroopsAt returns the player's troop count on a tile (0 if absent).
func (p *Player) TroopsAt(tileID string) int {
	return p.Troops[tileID]
}

// TotalTroops returns the sum of all garrisoned troops.
func (p *Player) TotalTroops() int {
	total := 0
	for _, n := range p.Troops {
		total += n
	}
	return total
}

// PlayerView is the player-facing projection sent in joined and me_update
// events. It never includes another player's token.
type PlayerView struct {
	Token             string         `json:"token"`
	Name              string         `json:"name"`
	FactionID         string         `json:"factionId"`
	Troops            map[string]int `json:"troops"`
	Produced          int            `json:"produced"`
	Inventory         int            `json:"inventory"`
	RemainingMS       int64          `json:"remainingMs"`
	RecruitDurationMS int64          `json:"recruitDurationMs"`
	ReserveCap        int            `json:"reserveCap"`
}

// View builds the player's own projection.
func (p *Player) View() PlayerView {
	troops := make(map[string]int, len(p.Troops))
	for k, v := range p.Troops {
		troops[k] = v
	}
	return PlayerView{
		Token:             p.Token,
		Name:              p.Name,
		FactionID:         p.FactionID,
		Troops:            troops,
		Produced:          p.Produced,
		Inventory:         p.Inventory,
		RemainingMS:       p.RemainingMS,
		RecruitDurationMS: p.RecruitDurationMS,
		ReserveCap:        p.ReserveCap,
	}
}
