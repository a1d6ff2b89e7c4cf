// World layout: the fixed starter deposits plus an optional noise-scattered
// expansion for larger maps.
package world

import (
	"fmt"
	"time"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/villagers/internal/economy"
)

// nodeProfile describes one commodity's deposit profile.
type nodeProfile struct {
	kind      economy.Kind
	maxAmount float64
	regenRate float64 // units per minute
}

var profiles = map[economy.Kind]nodeProfile{
	economy.Wood:  {economy.Wood, 10, 0.1},
	economy.Stone: {economy.Stone, 15, 0.05},
	economy.Food:  {economy.Food, 20, 0.2},
	economy.Gold:  {economy.Gold, 5, 0.02},
}

// SeedLayout returns the fixed starter layout: a wood grove, two quarries,
// two fields, and a single gold vein. Every node starts full.
func SeedLayout(now time.Time) []*ResourceNode {
	place := []struct {
		kind economy.Kind
		pos  Position
	}{
		{economy.Wood, Position{10, 15}},
		{economy.Wood, Position{12, 16}},
		{economy.Wood, Position{14, 14}},
		{economy.Stone, Position{25, 8}},
		{economy.Stone, Position{27, 10}},
		{economy.Food, Position{5, 25}},
		{economy.Food, Position{8, 27}},
		{economy.Gold, Position{30, 30}},
	}

	nodes := make([]*ResourceNode, 0, len(place))
	for i, p := range place {
		prof := profiles[p.kind]
		nodes = append(nodes, &ResourceNode{
			ID:        fmt.Sprintf("node-%s-%d", p.kind, i),
			Kind:      p.kind,
			Pos:       p.pos,
			Amount:    prof.maxAmount,
			MaxAmount: prof.maxAmount,
			RegenRate: prof.regenRate,
			LastRegen: now,
		})
	}
	return nodes
}

// ScatterConfig controls the noise-driven expansion layout.
type ScatterConfig struct {
	Seed         int64
	Size         int // square world edge length
	NodesPerKind int
}

// DefaultScatterConfig returns a modest layout for a 64x64 world.
func DefaultScatterConfig(seed int64) ScatterConfig {
	return ScatterConfig{Seed: seed, Size: 64, NodesPerKind: 4}
}

// Scatter generates additional deposits deterministically from the seed.
// A simplex field jitters candidate positions so clusters of the same kind
// drift apart instead of landing on a grid.
func Scatter(cfg ScatterConfig, now time.Time) []*ResourceNode {
	noise := opensimplex.NewNormalized(cfg.Seed)

	var nodes []*ResourceNode
	for ki, kind := range economy.Kinds {
		prof := profiles[kind]
		for i := 0; i < cfg.NodesPerKind; i++ {
			// Stride candidates across the map, then push each by the
			// noise field so layouts differ per seed.
			base := float64(i+1) / float64(cfg.NodesPerKind+1)
			jx := noise.Eval2(base*7.13, float64(ki)*3.7)
			jy := noise.Eval2(float64(ki)*5.31, base*9.02)
			x := int(base*float64(cfg.Size)+jx*8) % cfg.Size
			y := int((1-base)*float64(cfg.Size)+jy*8) % cfg.Size
			if x < 0 {
				x += cfg.Size
			}
			if y < 0 {
				y += cfg.Size
			}
			nodes = append(nodes, &ResourceNode{
				ID:        fmt.Sprintf("node-%s-s%d", kind, i),
				Kind:      kind,
				Pos:       Position{x, y},
				Amount:    prof.maxAmount,
				MaxAmount: prof.maxAmount,
				RegenRate: prof.regenRate,
				LastRegen: now,
			})
		}
	}
	return nodes
}
