// Command server runs the pentafront territorial-control game server.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pentafront/internal/config"
	"pentafront/internal/game"
	"pentafront/internal/gateway"
	"pentafront/internal/persist"
	"pentafront/internal/session"
	"pentafront/internal/state"
	"pentafront/internal/world"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// ── Persistence ───────────────────────────────────────────────────
	db, err := persist.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	// ── Restore or Generate ───────────────────────────────────────────
	var store *state.Store
	origins := map[string]string{}

	snap, found, err := db.Load()
	if err != nil {
		slog.Error("failed to load snapshot", "error", err)
		os.Exit(1)
	}
	if found {
		store = state.FromSnapshot(snap)
		origins = snap.Origins
		slog.Info("world restored from snapshot",
			"tiles", len(snap.Tiles),
			"players", len(snap.Players),
			"factions", len(snap.Factions),
		)
	} else {
		slog.Info("no snapshot found, generating new world...")
		genCfg := world.GenConfig{
			Radius:         cfg.WorldRadius,
			Seed:           cfg.WorldSeed,
			ClaimCount:     cfg.ClaimCount,
			NeutralControl: cfg.NeutralControl,
			ClaimedControl: cfg.ClaimedControl,
			CapitalControl: cfg.CapitalControl,
			Factions:       world.DefaultFactions(),
		}
		w, err := world.Generate(genCfg)
		if err != nil {
			slog.Error("world generation failed", "error", err)
			os.Exit(1)
		}
		store = state.NewStore(w)
		for terrain, count := range world.TerrainCounts(w) {
			slog.Info("terrain", "type", world.TerrainName(terrain), "count", count)
		}
		slog.Info("world generated", "world", w.String())
	}

	// ── Sessions, Gateway, Engine ─────────────────────────────────────
	mgr := session.NewManager(store, session.Config{
		OriginLock:        !cfg.DisableOriginLock,
		MaxNameLen:        cfg.MaxNameLen,
		StartingTroops:    cfg.StartingTroops,
		RecruitDurationMS: cfg.RecruitDurationMS,
		ReserveCap:        cfg.ReserveCap,
		RateCapacity:      cfg.RateCapacity,
		RateRefill:        cfg.RateRefill,
	})
	mgr.SetOrigins(origins)

	srv := gateway.NewServer(store, mgr)
	srv.Engine = game.NewEngine(store, srv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Recruitment tick ──────────────────────────────────────────────
	scheduler := game.NewScheduler(store, srv)
	go scheduler.Run(ctx)

	// ── Snapshot tick ─────────────────────────────────────────────────
	save := func() {
		snap := store.Snapshot()
		snap.Origins = mgr.Origins()
		if err := db.Save(snap); err != nil {
			slog.Error("snapshot failed", "error", err)
		}
	}
	go func() {
		ticker := time.NewTicker(time.Duration(cfg.SnapshotIntervalMS) * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				save()
			}
		}
	}()

	srv.Start(cfg.Port)
	slog.Info("pentafront ready", "port", cfg.Port)

	// ── Shutdown ──────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("received signal, shutting down", "signal", sig)
	cancel()

	slog.Info("final save...")
	save()
	slog.Info("server stopped")
}
