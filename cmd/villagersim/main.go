// Command villagersim runs the autonomous villager simulation.
package main

import (
	"context"
	"flag"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/talgya/villagers/internal/agents"
	"github.com/talgya/villagers/internal/api"
	"github.com/talgya/villagers/internal/config"
	"github.com/talgya/villagers/internal/engine"
	"github.com/talgya/villagers/internal/llm"
	"github.com/talgya/villagers/internal/persistence"
	"github.com/talgya/villagers/internal/world"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	configPath := flag.String("config", "", "path to tuning YAML (defaults apply when empty)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			slog.Error("failed to load config", "path", *configPath, "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	cfg.AdminKey = os.Getenv("VILLAGERS_ADMIN_KEY")

	slog.Info("Villagers: Autonomous Village Simulation",
		"seed", cfg.Seed,
		"villagers", cfg.VillagerCount,
		"think_interval", cfg.ThinkInterval(),
	)

	// ── Database ──────────────────────────────────────────────────────
	os.MkdirAll("data", 0755)
	db, err := persistence.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	// ── Seed or Resume ────────────────────────────────────────────────
	count, err := db.CountAgents()
	if err != nil {
		slog.Error("failed to inspect database", "error", err)
		os.Exit(1)
	}

	if count == 0 {
		slog.Info("no saved village found, seeding a new one...")
		if err := seedVillage(db, cfg); err != nil {
			slog.Error("failed to seed village", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Info("village restored", "villagers", count)
	}

	// ── Inference ─────────────────────────────────────────────────────
	llmCfg := inferConfig(cfg, os.Getenv("VILLAGERS_LLM_KEY"))
	client := llm.NewClient(llmCfg)
	if client.Enabled() {
		slog.Info("AI decisions enabled", "model", llmCfg.Model)
	} else {
		slog.Info("AI decisions disabled (no VILLAGERS_LLM_KEY), rule engine only")
	}

	// ── Engine ────────────────────────────────────────────────────────
	eng := engine.New(db, client, cfg)

	server := &api.Server{
		Eng:      eng,
		Port:     cfg.Port,
		AdminKey: cfg.AdminKey,
	}
	server.Start()

	// ── Decision Loop ─────────────────────────────────────────────────
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.ThinkInterval())
	defer ticker.Stop()

	slog.Info("simulation running", "port", cfg.Port)
	for {
		select {
		case <-ticker.C:
			batch, err := eng.DecideAll(ctx)
			if err != nil {
				slog.Error("decision batch failed", "error", err)
				continue
			}
			for id, msg := range batch.Failures {
				slog.Warn("villager cycle failed", "agent", id, "error", msg)
			}
		case sig := <-sigCh:
			slog.Info("shutting down", "signal", sig.String())
			cancel()
			return
		}
	}
}

// inferConfig lays the tuning file's inference settings over the stock
// defaults. Zero values in the file leave the default in place.
func inferConfig(cfg config.Tuning, apiKey string) llm.Config {
	c := llm.DefaultConfig(apiKey)
	if cfg.Infer.BaseURL != "" {
		c.BaseURL = cfg.Infer.BaseURL
	}
	if cfg.Infer.Model != "" {
		c.Model = cfg.Infer.Model
	}
	if cfg.Infer.Temperature > 0 {
		c.Temperature = cfg.Infer.Temperature
	}
	if cfg.Infer.TopP > 0 {
		c.TopP = cfg.Infer.TopP
	}
	if cfg.Infer.MaxTokens > 0 {
		c.MaxTokens = cfg.Infer.MaxTokens
	}
	if cfg.Infer.TimeoutMs > 0 {
		c.Timeout = cfg.InferTimeout()
	}
	return c
}

// seedVillage populates a fresh database with resource nodes and villagers.
func seedVillage(db *persistence.DB, cfg config.Tuning) error {
	now := time.Now()
	rng := rand.New(rand.NewSource(cfg.Seed))

	nodes := world.SeedLayout(now)
	if cfg.World.Scatter {
		sc := world.DefaultScatterConfig(cfg.Seed)
		if cfg.World.Size > 0 {
			sc.Size = cfg.World.Size
		}
		if cfg.World.NodesPerKind > 0 {
			sc.NodesPerKind = cfg.World.NodesPerKind
		}
		nodes = append(nodes, world.Scatter(sc, now)...)
	}
	for _, n := range nodes {
		if err := db.SaveNode(n); err != nil {
			return err
		}
	}

	center := world.Position{X: 10, Y: 10}
	villagers := agents.SpawnVillage(cfg.VillagerCount, center, rng, now)
	for _, a := range villagers {
		if err := db.SaveAgent(a); err != nil {
			return err
		}
		slog.Info("villager spawned",
			"name", a.Name,
			"archetype", a.Personality.Archetype,
			"pos_x", a.Pos.X,
			"pos_y", a.Pos.Y,
		)
	}

	slog.Info("village seeded", "nodes", len(nodes), "villagers", len(villagers))
	return nil
}
