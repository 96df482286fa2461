// Package protocol defines the JSON wire messages exchanged with clients.
// Every message carries a "type" discriminator.
package protocol

import (
	"pentafront/internal/state"
	"pentafront/internal/world"
)

// Inbound event identifiers.
const (
	TypeJoin    = "join"
	TypeResume  = "resume"
	TypeCollect = "recruit_collect"
	TypeDeploy  = "deploy"
	TypeMove    = "move"
	TypeAttack  = "attack"
)

// Outbound event identifiers.
const (
	TypeJoined        = "joined"
	TypeWorld         = "world"
	TypeMeUpdate      = "me_update"
	TypeTileUpdate    = "tile_update"
	TypeCombatResult  = "combat_result"
	TypePlayersOnline = "players_online"
	TypeLeaderboard   = "leaderboard"
	TypeErrorMsg      = "error_msg"
	TypeSessionError  = "session_error"
)

// ClientMsg is the flat inbound envelope; which fields matter depends on
// Type. Unknown types are dropped.
type ClientMsg struct {
	Type      string `json:"type"`
	Name      string `json:"name,omitempty"`
	FactionID string `json:"factionId,omitempty"`
	Token     string `json:"token,omitempty"`
	TargetID  string `json:"targetId,omitempty"`
	FromID    string `json:"fromId,omitempty"`
	ToID      string `json:"toId,omitempty"`
	Amount    int    `json:"amount,omitempty"`
}

// Joined acknowledges a successful join or resume.
type Joined struct {
	Type string           `json:"type"`
	Me   state.PlayerView `json:"me"`
}

func NewJoined(me state.PlayerView) Joined {
	return Joined{Type: TypeJoined, Me: me}
}

// World is the full map snapshot sent once per new connection.
type World struct {
	Type     string            `json:"type"`
	Tiles    []state.TileView  `json:"tiles"`
	Factions []world.Faction   `json:"factions"`
	Capitals map[string]string `json:"capitalsByFaction"`
}

func NewWorld(tiles []state.TileView, factions []world.Faction, capitals map[string]string) World {
	return World{Type: TypeWorld, Tiles: tiles, Factions: factions, Capitals: capitals}
}

// MeUpdate carries the acting player's refreshed view.
type MeUpdate struct {
	Type string           `json:"type"`
	Me   state.PlayerView `json:"me"`
}

func NewMeUpdate(me state.PlayerView) MeUpdate {
	return MeUpdate{Type: TypeMeUpdate, Me: me}
}

// TileUpdate broadcasts one tile's new state.
type TileUpdate struct {
	Type string         `json:"type"`
	Tile state.TileView `json:"tile"`
}

func NewTileUpdate(tile state.TileView) TileUpdate {
	return TileUpdate{Type: TypeTileUpdate, Tile: tile}
}

// CombatResult broadcasts a successful capture.
type CombatResult struct {
	Type      string `json:"type"`
	FromID    string `json:"fromId"`
	TargetID  string `json:"targetId"`
	Survivors int    `json:"survivors"`
}

func NewCombatResult(fromID, targetID string, survivors int) CombatResult {
	return CombatResult{Type: TypeCombatResult, FromID: fromID, TargetID: targetID, Survivors: survivors}
}

// OnlinePlayer is one roster entry. ID is a short public identifier, never
// the session token.
type OnlinePlayer struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	FactionID string `json:"factionId"`
}

// PlayersOnline broadcasts the live roster.
type PlayersOnline struct {
	Type    string         `json:"type"`
	Players []OnlinePlayer `json:"players"`
}

func NewPlayersOnline(players []OnlinePlayer) PlayersOnline {
	return PlayersOnline{Type: TypePlayersOnline, Players: players}
}

// Leaderboard broadcasts per-faction tile and troop totals.
type Leaderboard struct {
	Type     string              `json:"type"`
	Factions []state.FactionStat `json:"factions"`
}

func NewLeaderboard(stats []state.FactionStat) Leaderboard {
	return Leaderboard{Type: TypeLeaderboard, Factions: stats}
}

// ErrorMsg surfaces a rule violation or invalid request.
type ErrorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewErrorMsg(message string) ErrorMsg {
	return ErrorMsg{Type: TypeErrorMsg, Message: message}
}

// SessionError surfaces session conflicts and invalid resume tokens.
type SessionError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewSessionError(message string) SessionError {
	return SessionError{Type: TypeSessionError, Message: message}
}
