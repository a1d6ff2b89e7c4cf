// Package engine orchestrates villager decision cycles: the AI-primary,
// rule-fallback decision policy, the action executor, and the trade surface.
// Decisions are computed against read-only snapshots; every mutation is
// serialized per entity through the lock table.
package engine

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/talgya/villagers/internal/agents"
	"github.com/talgya/villagers/internal/config"
	"github.com/talgya/villagers/internal/construction"
	"github.com/talgya/villagers/internal/trade"
	"github.com/talgya/villagers/internal/world"
)

// Store is the persistence boundary. Single-entity writes need no
// transactional guarantees beyond what the engine serializes itself;
// settlement is the one multi-row write and gets its own verb.
type Store interface {
	Agent(id string) (*agents.Agent, error)
	Agents() ([]*agents.Agent, error)
	SaveAgent(a *agents.Agent) error

	Nodes() ([]*world.ResourceNode, error)
	Node(id string) (*world.ResourceNode, error)
	SaveNode(n *world.ResourceNode) error

	Buildings() ([]*construction.Building, error)
	BuildingsByOwner(ownerID string) ([]*construction.Building, error)
	SaveBuilding(b *construction.Building) error

	Trade(id string) (*trade.Offer, error)
	SaveTrade(o *trade.Offer) error
	// SettleTrade persists both settled inventories and the resolved offer
	// together; a partial write must never survive.
	SettleTrade(from, to *agents.Agent, o *trade.Offer) error
	PendingTrades() ([]*trade.Offer, error)
	TradesFor(agentID string) ([]*trade.Offer, error)
}

// Inferer is the external inference capability. Any error is a fallback
// trigger, never a fatal failure.
type Inferer interface {
	Infer(ctx context.Context, system, user string) (string, error)
	Enabled() bool
}

// Engine runs decision cycles over a store.
type Engine struct {
	Store Store
	LLM   Inferer // nil disables the AI path

	Cfg config.Tuning

	// Now and Rng are explicit so tests control time and randomness.
	Now func() time.Time

	// Placement optionally vetoes building positions (spacing policy).
	Placement construction.PlacementRule

	rngMu sync.Mutex
	rng   *rand.Rand

	locks lockTable
}

// New creates an engine with the given store and tuning.
func New(store Store, inferer Inferer, cfg config.Tuning) *Engine {
	e := &Engine{
		Store: store,
		LLM:   inferer,
		Cfg:   cfg,
		Now:   time.Now,
		rng:   rand.New(rand.NewSource(cfg.Seed)),
	}
	if cfg.BuildingMinDistance > 0 {
		e.Placement = construction.MinDistanceRule(cfg.BuildingMinDistance)
	}
	return e
}

// SetRand replaces the injected random source (tests).
func (e *Engine) SetRand(rng *rand.Rand) {
	e.rngMu.Lock()
	e.rng = rng
	e.rngMu.Unlock()
}

func (e *Engine) randIntn(n int) int {
	e.rngMu.Lock()
	defer e.rngMu.Unlock()
	return e.rng.Intn(n)
}

func (e *Engine) bounds() trade.Bounds {
	b := trade.Bounds{Min: e.Cfg.Trading.FairnessMin, Max: e.Cfg.Trading.FairnessMax}
	if b.Min == 0 && b.Max == 0 {
		return trade.DefaultBounds
	}
	return b
}
