// Package config loads the simulation tuning file. All numeric policy the
// engine treats as configurable (fairness bounds, trade window, inference
// timeout, concurrency) lives here with working defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Tuning holds all runtime knobs.
type Tuning struct {
	Seed          int64 `yaml:"seed"`
	VillagerCount int   `yaml:"villager_count"`

	ThinkIntervalMs int `yaml:"think_interval_ms"`
	MaxConcurrent   int `yaml:"max_concurrent_decisions"`

	Trading TradeTuning `yaml:"trading"`
	Infer   InferTuning `yaml:"inference"`
	World   WorldTuning `yaml:"world"`

	BuildingMinDistance int `yaml:"building_min_distance"`

	Port     int    `yaml:"port"`
	DBPath   string `yaml:"db_path"`
	AdminKey string `yaml:"-"` // from env, never from file
}

// TradeTuning controls the fairness policy and offer lifetime.
type TradeTuning struct {
	FairnessMin   float64 `yaml:"fairness_min"`
	FairnessMax   float64 `yaml:"fairness_max"`
	WindowSeconds int     `yaml:"window_seconds"`
}

// InferTuning controls the inference backend.
type InferTuning struct {
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	TopP        float64 `yaml:"top_p"`
	MaxTokens   int     `yaml:"max_tokens"`
	TimeoutMs   int     `yaml:"timeout_ms"`
}

// WorldTuning controls the generated layout.
type WorldTuning struct {
	Scatter      bool `yaml:"scatter"`
	Size         int  `yaml:"size"`
	NodesPerKind int  `yaml:"nodes_per_kind"`
}

// Default returns the stock tuning.
func Default() Tuning {
	return Tuning{
		Seed:            42,
		VillagerCount:   10,
		ThinkIntervalMs: 30000,
		MaxConcurrent:   4,
		Trading: TradeTuning{
			FairnessMin:   0.6,
			FairnessMax:   1.7,
			WindowSeconds: 300,
		},
		Infer: InferTuning{
			BaseURL:     "https://ark.cn-beijing.volces.com/api/v3",
			Model:       "doubao-seed-1-8-251228",
			Temperature: 0.8,
			TopP:        0.9,
			MaxTokens:   1500,
			TimeoutMs:   15000,
		},
		World: WorldTuning{
			Scatter:      false,
			Size:         64,
			NodesPerKind: 4,
		},
		BuildingMinDistance: 3,
		Port:                8080,
		DBPath:              "data/villagers.db",
	}
}

// Load reads a tuning file, applying defaults underneath it.
func Load(path string) (Tuning, error) {
	t := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning file %s: %w", path, err)
	}
	return t, nil
}

// ThinkInterval returns the decision cadence as a duration.
func (t Tuning) ThinkInterval() time.Duration {
	return time.Duration(t.ThinkIntervalMs) * time.Millisecond
}

// TradeWindow returns the offer lifetime as a duration.
func (t Tuning) TradeWindow() time.Duration {
	return time.Duration(t.Trading.WindowSeconds) * time.Second
}

// InferTimeout returns the inference deadline as a duration.
func (t Tuning) InferTimeout() time.Duration {
	return time.Duration(t.Infer.TimeoutMs) * time.Millisecond
}
