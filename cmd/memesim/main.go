// Command memesim runs the MEME market day-settlement daemon: one human
// player, a crowd of bots, one AMM, one treasury, one settled day at a time.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/google/uuid"

	"github.com/talgya/meme-market/internal/amm"
	"github.com/talgya/meme-market/internal/api"
	"github.com/talgya/meme-market/internal/config"
	"github.com/talgya/meme-market/internal/ledger"
	"github.com/talgya/meme-market/internal/llm"
	"github.com/talgya/meme-market/internal/persistence"
	"github.com/talgya/meme-market/internal/provider"
	"github.com/talgya/meme-market/internal/scheduler"
	"github.com/talgya/meme-market/internal/settle"
	"github.com/talgya/meme-market/internal/spawner"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	configPath := "config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// ── Database ──────────────────────────────────────────────────────
	if err := os.MkdirAll(filepath.Dir(cfg.Database.SQLitePath), 0755); err != nil {
		slog.Error("failed to create data directory", "path", filepath.Dir(cfg.Database.SQLitePath), "error", err)
		os.Exit(1)
	}
	db, err := persistence.Open(cfg.Database.SQLitePath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.Database.SQLitePath)

	// ── Load or Spawn World State ─────────────────────────────────────
	led, err := db.LoadState()
	if err != nil {
		slog.Error("failed to load ledger", "error", err)
		os.Exit(1)
	}
	if led == nil {
		agents := spawner.Spawn(spawner.Config{
			Bots:        cfg.Sim.Bots,
			Seed:        cfg.Sim.Seed,
			PlayerBase:  cfg.Balances.PlayerBase,
			PlayerToken: cfg.Balances.PlayerToken,
			BotBase:     cfg.Balances.BotBase,
			BotToken:    cfg.Balances.BotToken,
		})
		led = ledger.New(agents)
		slog.Info("fresh population spawned", "agents", len(agents), "seed", cfg.Sim.Seed)
	}

	var pool *amm.Pool
	if rt, rb, ok, err := db.LoadPool(); err == nil && ok {
		pool = amm.NewPool(rt, rb)
	} else {
		pool = amm.NewPool(cfg.AMM.ReserveToken, cfg.AMM.ReserveBase)
	}
	slog.Info("amm pool ready", "reserve_token", pool.ReserveToken, "reserve_base", pool.ReserveBase, "price", pool.Price())

	// ── Decision Provider ─────────────────────────────────────────────
	var prov provider.Provider
	if cfg.LLM.APIKey != "" {
		prov = provider.NewOracle(llm.NewClient(cfg.LLM.APIKey, cfg.LLM.Model))
		slog.Info("decision provider: llm oracle", "model", cfg.LLM.Model)
	} else {
		prov = provider.NewHeuristic(cfg.Economy)
		slog.Info("decision provider: scripted heuristic")
	}

	// ── Settlement Engine ─────────────────────────────────────────────
	engine := settle.New(led, pool, cfg.Economy, cfg.Buyback, prov, db, cfg.Sim.Seed)
	runID, err := db.EnsureRun(engine.RunID.String())
	if err != nil {
		slog.Error("failed to restore run id", "error", err)
		os.Exit(1)
	}
	if id, err := uuid.Parse(runID); err == nil {
		engine.RunID = id
	}

	if last, err := db.LastDayLog(); err == nil && last != nil {
		streak := 0
		if v, err := db.GetMeta("up_streak"); err == nil && v != "" {
			streak, _ = strconv.Atoi(v)
		}
		engine.RestoreLog(last, streak)
		slog.Info("previous day restored", "day", last.Day, "price", last.Price)
	}

	metrics := api.NewMetrics()
	engine.OnCommit = func(log *settle.DayLog, l *ledger.Ledger) {
		metrics.Observe(log, l)
		if err := db.SaveState(l); err != nil {
			slog.Error("failed to save ledger", "error", err)
		}
		_, p, _ := engine.Snapshot()
		if err := db.SavePool(p.ReserveToken, p.ReserveBase); err != nil {
			slog.Error("failed to save pool", "error", err)
		}
		if err := db.SetMeta("up_streak", strconv.Itoa(engine.UpStreak())); err != nil {
			slog.Error("failed to save streak", "error", err)
		}
	}

	// ── Scheduler ─────────────────────────────────────────────────────
	var sched *scheduler.Scheduler
	if cfg.Sim.AutoAdvanceCron != "" {
		sched = scheduler.New(engine)
		if err := sched.Register(cfg.Sim.AutoAdvanceCron); err != nil {
			slog.Error("failed to register scheduler", "error", err)
			os.Exit(1)
		}
		sched.Start()
		defer sched.Stop()
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	server := &api.Server{
		Engine:   engine,
		DB:       db,
		Sched:    sched,
		Metrics:  metrics,
		Port:     cfg.Server.Port,
		AdminKey: cfg.Server.AdminKey,
	}
	server.Start()

	fmt.Println("meme-market daemon running, ctrl-c to stop")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	// Final snapshot so a restart resumes exactly where we stopped.
	l, p, _ := engine.Snapshot()
	if err := db.SaveState(l); err != nil {
		slog.Error("final ledger save failed", "error", err)
	}
	if err := db.SavePool(p.ReserveToken, p.ReserveBase); err != nil {
		slog.Error("final pool save failed", "error", err)
	}
	slog.Info("shutdown complete", "day", l.Day)
}
