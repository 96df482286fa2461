// Package persist provides SQLite-based snapshot storage for the world and
// all players. Snapshots are full-replace writes inside a transaction; a
// failed snapshot is logged by the caller and never loses in-memory state.
package persist

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jmoiron/sqlx"
	"lukechampine.com/blake3"
	_ "modernc.org/sqlite"

	"pentafront/internal/state"
)

const schemaVersion = 2

// DB wraps a SQLite connection for snapshot persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path, creating any
// missing parent directory.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create snapshot dir: %w", err)
		}
	}
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tiles (
		id TEXT PRIMARY KEY,
		q INTEGER NOT NULL,
		r INTEGER NOT NULL,
		owner TEXT NOT NULL,
		control INTEGER NOT NULL,
		capital INTEGER NOT NULL,
		public_troops INTEGER NOT NULL DEFAULT 0,
		terrain INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS factions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		color TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS capitals (
		faction_id TEXT PRIMARY KEY,
		tile_id TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS players (
		token TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		faction_id TEXT NOT NULL,
		troops_json TEXT NOT NULL,
		produced_precise REAL NOT NULL,
		produced INTEGER NOT NULL,
		inventory INTEGER NOT NULL,
		remaining_ms INTEGER NOT NULL,
		recruit_duration_ms INTEGER NOT NULL,
		reserve_cap INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS origin_locks (
		origin TEXT PRIMARY KEY,
		token TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := db.conn.Exec(schema); err != nil {
		return err
	}

	// Version-1 databases predate the public_troops and terrain columns.
	// The ALTERs fail harmlessly when the columns already exist; restore
	// recomputes public troop aggregates from players anyway.
	db.conn.Exec(`ALTER TABLE tiles ADD COLUMN public_troops INTEGER NOT NULL DEFAULT 0`)
	db.conn.Exec(`ALTER TABLE tiles ADD COLUMN terrain INTEGER NOT NULL DEFAULT 0`)
	return nil
}

// Save writes a full snapshot, replacing any previous one. The write is a
// single transaction; the snapshot copy was taken under the store lock, so
// nothing here touches live state.
func (db *DB) Save(snap state.Snapshot) error {
	sort.Slice(snap.Tiles, func(i, j int) bool { return snap.Tiles[i].ID < snap.Tiles[j].ID })
	sort.Slice(snap.Players, func(i, j int) bool { return snap.Players[i].Token < snap.Players[j].Token })

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"tiles", "factions", "capitals", "players", "origin_locks"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return err
		}
	}

	stmt, err := tx.Preparex(`INSERT INTO tiles
		(id, q, r, owner, control, capital, public_troops, terrain)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	for _, t := range snap.Tiles {
		capital := 0
		if t.Capital {
			capital = 1
		}
		if _, err := stmt.Exec(t.ID, t.Q, t.R, t.Owner, t.Control, capital, t.PublicTroops, t.Terrain); err != nil {
			stmt.Close()
			return fmt.Errorf("insert tile %s: %w", t.ID, err)
		}
	}
	stmt.Close()

	for _, f := range snap.Factions {
		if _, err := tx.Exec(`INSERT INTO factions (id, name, color) VALUES (?, ?, ?)`,
			f.ID, f.Name, f.Color); err != nil {
			return fmt.Errorf("insert faction %s: %w", f.ID, err)
		}
	}

	for factionID, tileID := range snap.Capitals {
		if _, err := tx.Exec(`INSERT INTO capitals (faction_id, tile_id) VALUES (?, ?)`,
			factionID, tileID); err != nil {
			return fmt.Errorf("insert capital %s: %w", factionID, err)
		}
	}

	for _, p := range snap.Players {
		troopsJSON, err := json.Marshal(p.Troops)
		if err != nil {
			return fmt.Errorf("marshal troops for %s: %w", p.Token, err)
		}
		if _, err := tx.Exec(`INSERT INTO players
			(token, name, faction_id, troops_json, produced_precise, produced,
			 inventory, remaining_ms, recruit_duration_ms, reserve_cap)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.Token, p.Name, p.FactionID, string(troopsJSON), p.ProducedPrecise,
			p.Produced, p.Inventory, p.RemainingMS, p.RecruitDurationMS, p.ReserveCap); err != nil {
			return fmt.Errorf("insert player %s: %w", p.Token, err)
		}
	}

	for origin, token := range snap.Origins {
		if _, err := tx.Exec(`INSERT INTO origin_locks (origin, token) VALUES (?, ?)`,
			origin, token); err != nil {
			return fmt.Errorf("insert origin lock: %w", err)
		}
	}

	meta := map[string]string{
		"schema_version": fmt.Sprintf("%d", schemaVersion),
		"radius":         fmt.Sprintf("%d", snap.Radius),
		"saved_at":       time.Now().UTC().Format(time.RFC3339),
		"checksum":       Checksum(snap),
	}
	for k, v := range meta {
		if _, err := tx.Exec(`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, k, v); err != nil {
			return fmt.Errorf("save meta %s: %w", k, err)
		}
	}

	return tx.Commit()
}

// Load reads the most recent snapshot. The second return is false when no
// snapshot has ever been written.
func (db *DB) Load() (state.Snapshot, bool, error) {
	var snap state.Snapshot

	var savedAt string
	if err := db.conn.Get(&savedAt, `SELECT value FROM meta WHERE key = 'saved_at'`); err != nil {
		return snap, false, nil
	}

	var radiusStr string
	if err := db.conn.Get(&radiusStr, `SELECT value FROM meta WHERE key = 'radius'`); err == nil {
		fmt.Sscanf(radiusStr, "%d", &snap.Radius)
	}

	type tileRow struct {
		ID           string `db:"id"`
		Q            int    `db:"q"`
		R            int    `db:"r"`
		Owner        string `db:"owner"`
		Control      int    `db:"control"`
		Capital      int    `db:"capital"`
		PublicTroops int    `db:"public_troops"`
		Terrain      uint8  `db:"terrain"`
	}
	var tileRows []tileRow
	if err := db.conn.Select(&tileRows, `SELECT * FROM tiles ORDER BY id`); err != nil {
		return snap, false, fmt.Errorf("load tiles: %w", err)
	}
	snap.Tiles = make([]state.TileRecord, 0, len(tileRows))
	for _, tr := range tileRows {
		snap.Tiles = append(snap.Tiles, state.TileRecord{
			ID:           tr.ID,
			Q:            tr.Q,
			R:            tr.R,
			Owner:        tr.Owner,
			Control:      tr.Control,
			Capital:      tr.Capital != 0,
			PublicTroops: tr.PublicTroops,
			Terrain:      tr.Terrain,
		})
	}

	if err := db.conn.Select(&snap.Factions, `SELECT id, name, color FROM factions ORDER BY rowid`); err != nil {
		return snap, false, fmt.Errorf("load factions: %w", err)
	}

	type capRow struct {
		FactionID string `db:"faction_id"`
		TileID    string `db:"tile_id"`
	}
	var capRows []capRow
	if err := db.conn.Select(&capRows, `SELECT faction_id, tile_id FROM capitals`); err != nil {
		return snap, false, fmt.Errorf("load capitals: %w", err)
	}
	snap.Capitals = make(map[string]string, len(capRows))
	for _, c := range capRows {
		snap.Capitals[c.FactionID] = c.TileID
	}

	type playerRow struct {
		Token             string  `db:"token"`
		Name              string  `db:"name"`
		FactionID         string  `db:"faction_id"`
		TroopsJSON        string  `db:"troops_json"`
		ProducedPrecise   float64 `db:"produced_precise"`
		Produced          int     `db:"produced"`
		Inventory         int     `db:"inventory"`
		RemainingMS       int64   `db:"remaining_ms"`
		RecruitDurationMS int64   `db:"recruit_duration_ms"`
		ReserveCap        int     `db:"reserve_cap"`
	}
	var playerRows []playerRow
	if err := db.conn.Select(&playerRows, `SELECT * FROM players ORDER BY token`); err != nil {
		return snap, false, fmt.Errorf("load players: %w", err)
	}
	snap.Players = make([]state.Player, 0, len(playerRows))
	for _, pr := range playerRows {
		troops := make(map[string]int)
		if err := json.Unmarshal([]byte(pr.TroopsJSON), &troops); err != nil {
			return snap, false, fmt.Errorf("decode troops for %s: %w", pr.Token, err)
		}
		snap.Players = append(snap.Players, state.Player{
			Token:             pr.Token,
			Name:              pr.Name,
			FactionID:         pr.FactionID,
			Troops:            troops,
			ProducedPrecise:   pr.ProducedPrecise,
			Produced:          pr.Produced,
			Inventory:         pr.Inventory,
			RemainingMS:       pr.RemainingMS,
			RecruitDurationMS: pr.RecruitDurationMS,
			ReserveCap:        pr.ReserveCap,
		})
	}

	type originRow struct {
		Origin string `db:"origin"`
		Token  string `db:"token"`
	}
	var originRows []originRow
	if err := db.conn.Select(&originRows, `SELECT origin, token FROM origin_locks`); err != nil {
		return snap, false, fmt.Errorf("load origin locks: %w", err)
	}
	snap.Origins = make(map[string]string, len(originRows))
	for _, o := range originRows {
		snap.Origins[o.Origin] = o.Token
	}

	// Integrity check: a mismatch is logged, not fatal — the snapshot may
	// predate the checksum or come from an older schema.
	var stored string
	if err := db.conn.Get(&stored, `SELECT value FROM meta WHERE key = 'checksum'`); err == nil {
		if got := Checksum(snap); got != stored {
			slog.Warn("snapshot checksum mismatch", "stored", stored, "computed", got)
		}
	}

	return snap, true, nil
}

// Checksum computes the blake3 digest of a snapshot's canonical JSON form.
// Tiles and players must be sorted (Save and Load both guarantee this).
func Checksum(snap state.Snapshot) string {
	b, err := json.Marshal(snap)
	if err != nil {
		return ""
	}
	sum := blake3.Sum256(b)
	return hex.EncodeToString(sum[:])
}
