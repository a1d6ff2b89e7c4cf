// Rule-engine fallback: deterministic per-archetype decision rules used
// whenever AI-backed inference is unavailable or unusable. Every rule ends
// in a well-formed decision; wait is the universal safe default.
package agents

import (
	"fmt"
	"math/rand"

	"github.com/talgya/villagers/internal/construction"
	"github.com/talgya/villagers/internal/economy"
	"github.com/talgya/villagers/internal/goals"
)

// ruleFunc decides for one archetype against a world snapshot. Randomness
// comes only from the injected source.
type ruleFunc func(a *Agent, snap *Snapshot, rng *rand.Rand) Decision

// fallbackRules is the strategy table keyed by archetype. New archetypes
// register here rather than growing a central conditional.
var fallbackRules = map[Archetype]ruleFunc{
	Gatherer: decideGatherer,
	Builder:  decideBuilder,
	Trader:   decideTrader,
	Explorer: decideExplorer,
	Guardian: decideGuardian,
}

// RuleDecide runs the deterministic fallback for the agent's archetype.
// Unknown archetypes behave as gatherers.
func RuleDecide(a *Agent, snap *Snapshot, rng *rand.Rand) Decision {
	rule, ok := fallbackRules[a.Personality.Archetype]
	if !ok {
		rule = decideGatherer
	}
	return rule(a, snap, rng)
}

func decideGatherer(a *Agent, snap *Snapshot, rng *rand.Rand) Decision {
	// Prefer whatever an active goal still needs.
	if kind := wantedResource(a); kind != "" {
		if n := snap.FirstNode(kind); n != nil {
			return Decision{
				Action: ActionGather,
				Target: string(n.Kind),
				NodeID: n.ID,
				Reason: fmt.Sprintf("gathering %s toward a goal", n.Kind),
			}
		}
	}
	if n := snap.FirstNode(""); n != nil {
		return Decision{
			Action: ActionGather,
			Target: string(n.Kind),
			NodeID: n.ID,
			Reason: fmt.Sprintf("gathering %s", n.Kind),
		}
	}
	return Decision{Action: ActionWait, Reason: "no resources within reach"}
}

func decideBuilder(a *Agent, snap *Snapshot, rng *rand.Rand) Decision {
	if kind := construction.CheapestAffordable(a.Inventory); kind != "" {
		return Decision{
			Action: ActionBuild,
			Target: kind,
			Reason: fmt.Sprintf("building a %s", kind),
		}
	}
	// Gather toward the cheapest recipe's first shortfall.
	cheapest := construction.CheapestRecipe()
	missing := a.Inventory.Missing(construction.Recipes[cheapest].Cost)
	for _, k := range economy.Kinds {
		if missing.Get(k) <= 0 {
			continue
		}
		if n := snap.FirstNode(string(k)); n != nil {
			return Decision{
				Action: ActionGather,
				Target: string(n.Kind),
				NodeID: n.ID,
				Reason: fmt.Sprintf("gathering %s for a %s", n.Kind, cheapest),
			}
		}
	}
	return Decision{Action: ActionWait, Reason: "short on materials, waiting"}
}

func decideTrader(a *Agent, snap *Snapshot, rng *rand.Rand) Decision {
	// Seek a counterpart holding the commodity this villager is shortest on.
	scarce := scarcestKind(a)
	for _, other := range snap.Agents {
		if other.ID == a.ID || other.Inventory.Get(scarce) <= 0 {
			continue
		}
		return Decision{
			Action: ActionTrade,
			Target: other.ID,
			Reason: fmt.Sprintf("seeking %s from %s", scarce, other.Name),
		}
	}
	if n := snap.FirstNode(""); n != nil {
		return Decision{
			Action: ActionGather,
			Target: string(n.Kind),
			NodeID: n.ID,
			Reason: fmt.Sprintf("gathering %s to trade with later", n.Kind),
		}
	}
	return Decision{Action: ActionWait, Reason: "waiting for a trading partner"}
}

func decideExplorer(a *Agent, snap *Snapshot, rng *rand.Rand) Decision {
	// Opportunistic gather roughly half the time; otherwise roam.
	if n := snap.FirstNode(""); n != nil && rng.Float64() > 0.5 {
		return Decision{
			Action: ActionGather,
			Target: string(n.Kind),
			NodeID: n.ID,
			Reason: fmt.Sprintf("gathering %s along the way", n.Kind),
		}
	}
	return Decision{Action: ActionExplore, Reason: "scouting new ground"}
}

func decideGuardian(a *Agent, snap *Snapshot, rng *rand.Rand) Decision {
	if owned := snap.OwnedBuildings(a.ID); len(owned) > 0 {
		return Decision{
			Action: ActionWait,
			Target: owned[0].Kind,
			Reason: fmt.Sprintf("guarding the %s", owned[0].Kind),
		}
	}
	if ok, _, err := construction.CanAfford(a.Inventory, construction.Tower); err == nil && ok {
		return Decision{
			Action: ActionBuild,
			Target: construction.Tower,
			Reason: "raising a watchtower",
		}
	}
	if n := snap.FirstNode(""); n != nil {
		return Decision{
			Action: ActionGather,
			Target: string(n.Kind),
			NodeID: n.ID,
			Reason: fmt.Sprintf("gathering %s to fortify with", n.Kind),
		}
	}
	return Decision{Action: ActionWait, Reason: "standing watch"}
}

// wantedResource returns the commodity the highest-priority active goal
// still needs, or "" when no resource requirement is open.
func wantedResource(a *Agent) string {
	for _, g := range goals.Active(a.Goals) {
		if req := g.NextUnmetRequirement(); req != nil && req.Kind == goals.ReqResource {
			return req.Target
		}
	}
	return ""
}

// scarcestKind returns the commodity the villager holds the least value of.
func scarcestKind(a *Agent) economy.Kind {
	best := economy.Kinds[0]
	bestHeld := a.Inventory.Get(best)
	for _, k := range economy.Kinds[1:] {
		if held := a.Inventory.Get(k); held < bestHeld {
			best, bestHeld = k, held
		}
	}
	return best
}
