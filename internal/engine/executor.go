package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/talgya/villagers/internal/agents"
	"github.com/talgya/villagers/internal/construction"
	"github.com/talgya/villagers/internal/economy"
	"github.com/talgya/villagers/internal/goals"
	"github.com/talgya/villagers/internal/world"
)

// Outcome kinds. Success kinds name what happened; failure kinds name why
// the action could not be applied. Failures are data, not errors, so a bad
// decision never takes down a cycle.
const (
	OutGathered = "gathered"
	OutBuilt    = "built"
	OutMoved    = "moved"
	OutTrading  = "trade_intent"
	OutWaited   = "waited"

	OutNoTarget     = "no_target"
	OutDepleted     = "resource_depleted"
	OutInsufficient = "insufficient_resources"
	OutUnknownKind  = "unknown_building"
	OutBlocked      = "placement_blocked"
	OutUnknownAct   = "unknown_action"
	OutStoreError   = "storage_error"
)

// Outcome is the executor's report on a single decision.
type Outcome struct {
	OK       bool                   `json:"ok"`
	Kind     string                 `json:"kind"`
	Message  string                 `json:"message,omitempty"`
	Gathered float64                `json:"gathered,omitempty"`
	Resource economy.Kind           `json:"resource,omitempty"`
	Building *construction.Building `json:"building,omitempty"`
	Missing  *economy.Inventory     `json:"missing,omitempty"`
}

func fail(kind, msg string) Outcome {
	return Outcome{Kind: kind, Message: msg}
}

func succeed(kind, msg string) Outcome {
	return Outcome{OK: true, Kind: kind, Message: msg}
}

// Execute applies a validated decision to the world. All mutations happen
// under the per-entity lock table; state is re-read from the store inside
// the critical section so the snapshot can stay lock-free.
func (e *Engine) Execute(a *agents.Agent, d agents.Decision, snap *agents.Snapshot) Outcome {
	switch d.Action {
	case agents.ActionGather:
		return e.execGather(a, d, snap)
	case agents.ActionBuild:
		return e.execBuild(a, d, snap)
	case agents.ActionTrade:
		return succeed(OutTrading, "seeking a trade partner")
	case agents.ActionExplore:
		return e.execExplore(a)
	case agents.ActionWait:
		return succeed(OutWaited, firstNonEmpty(d.Reason, "resting"))
	default:
		return fail(OutUnknownAct, fmt.Sprintf("unknown action %q", d.Action))
	}
}

func (e *Engine) execGather(a *agents.Agent, d agents.Decision, snap *agents.Snapshot) Outcome {
	nodeID := d.NodeID
	if nodeID == "" {
		n := snap.FirstNode(d.Target)
		if n == nil {
			return fail(OutNoTarget, "no matching resource node available")
		}
		nodeID = n.ID
	}

	unlock := e.locks.lock(a.ID, nodeID)
	defer unlock()

	node, err := e.Store.Node(nodeID)
	if err != nil {
		return fail(OutStoreError, err.Error())
	}

	now := e.Now()
	taken := node.Gather(economy.GatherYield(node.Kind), now)
	if taken == 0 {
		return fail(OutDepleted, fmt.Sprintf("%s node is depleted", node.Kind))
	}

	agent, err := e.Store.Agent(a.ID)
	if err != nil {
		return fail(OutStoreError, err.Error())
	}
	agent.Inventory.Add(node.Kind, taken)
	agent.Stats.ResourcesGathered += taken
	agent.GainExperience(agents.XPGather)
	e.advanceGoals(agent, goals.ReqResource, string(node.Kind), taken, now)

	if err := e.Store.SaveNode(node); err != nil {
		return fail(OutStoreError, err.Error())
	}
	if err := e.Store.SaveAgent(agent); err != nil {
		return fail(OutStoreError, err.Error())
	}
	copyBack(a, agent)

	out := succeed(OutGathered, fmt.Sprintf("gathered %.1f %s", taken, node.Kind))
	out.Gathered = taken
	out.Resource = node.Kind
	return out
}

func (e *Engine) execBuild(a *agents.Agent, d agents.Decision, snap *agents.Snapshot) Outcome {
	kind := d.Target
	if kind == "" {
		kind = construction.CheapestAffordable(a.Inventory)
	}
	if kind == "" {
		kind = construction.CheapestRecipe()
	}
	if _, ok := construction.Recipes[kind]; !ok {
		return fail(OutUnknownKind, fmt.Sprintf("no recipe for %q", kind))
	}

	unlock := e.locks.lock(a.ID)
	defer unlock()

	agent, err := e.Store.Agent(a.ID)
	if err != nil {
		return fail(OutStoreError, err.Error())
	}

	ok, missing, err := construction.CanAfford(agent.Inventory, kind)
	if err != nil {
		return fail(OutUnknownKind, err.Error())
	}
	if !ok {
		out := fail(OutInsufficient, fmt.Sprintf("cannot afford %s, missing %s", kind, missing))
		out.Missing = &missing
		return out
	}

	pos, ok := e.placeNear(agent.Pos, snap.Buildings)
	if !ok {
		return fail(OutBlocked, "no valid site near the villager")
	}

	now := e.Now()
	b, remaining, err := construction.Build(agent.Inventory, kind, pos, agent.ID, now)
	if err != nil {
		var ie *construction.InsufficientError
		if errors.As(err, &ie) {
			out := fail(OutInsufficient, err.Error())
			out.Missing = &ie.Missing
			return out
		}
		return fail(OutUnknownKind, err.Error())
	}

	agent.Inventory = remaining
	agent.Stats.BuildingsBuilt++
	agent.GainExperience(agents.XPBuild)
	e.advanceGoals(agent, goals.ReqBuilding, kind, 1, now)

	if err := e.Store.SaveBuilding(b); err != nil {
		return fail(OutStoreError, err.Error())
	}
	if err := e.Store.SaveAgent(agent); err != nil {
		return fail(OutStoreError, err.Error())
	}
	copyBack(a, agent)

	out := succeed(OutBuilt, fmt.Sprintf("built a %s at (%d,%d)", kind, pos.X, pos.Y))
	out.Building = b
	return out
}

func (e *Engine) execExplore(a *agents.Agent) Outcome {
	unlock := e.locks.lock(a.ID)
	defer unlock()

	agent, err := e.Store.Agent(a.ID)
	if err != nil {
		return fail(OutStoreError, err.Error())
	}

	dx := e.randIntn(11) - 5
	dy := e.randIntn(11) - 5
	agent.Pos = world.Position{X: agent.Pos.X + dx, Y: agent.Pos.Y + dy}
	agent.Stats.LocationsVisited++
	agent.GainExperience(agents.XPExplore)
	e.advanceGoals(agent, goals.ReqSocial, "locations_visited", 1, e.Now())

	if err := e.Store.SaveAgent(agent); err != nil {
		return fail(OutStoreError, err.Error())
	}
	copyBack(a, agent)

	return succeed(OutMoved, fmt.Sprintf("wandered to (%d,%d)", agent.Pos.X, agent.Pos.Y))
}

// placeNear probes offsets around the villager until one passes the
// placement rule. A handful of attempts is enough on any non-degenerate
// map; callers treat exhaustion as a blocked site.
func (e *Engine) placeNear(origin world.Position, existing []*construction.Building) (world.Position, bool) {
	for attempt := 0; attempt < 8; attempt++ {
		pos := world.Position{
			X: origin.X + e.randIntn(9) - 4,
			Y: origin.Y + e.randIntn(9) - 4,
		}
		if e.Placement == nil {
			return pos, true
		}
		if err := e.Placement(pos, existing); err == nil {
			return pos, true
		}
	}
	return world.Position{}, false
}

// copyBack refreshes the caller's view of a villager after the persisted
// copy was mutated inside a critical section.
func copyBack(dst, src *agents.Agent) {
	dst.Pos = src.Pos
	dst.Inventory = src.Inventory
	dst.Goals = src.Goals
	dst.Stats = src.Stats
	dst.Level = src.Level
	dst.Experience = src.Experience
}

// advanceGoals pushes progress into every active goal matching the
// requirement, applying rewards on completion.
func (e *Engine) advanceGoals(a *agents.Agent, reqKind, target string, delta float64, now time.Time) {
	for i := range a.Goals {
		g := &a.Goals[i]
		if !goals.Advance(g, reqKind, target, delta, now) {
			continue
		}
		a.Stats.GoalsCompleted++
		a.Stats.Prestige += g.Rewards.Prestige
		a.GainExperience(g.Rewards.Experience)
		a.Inventory = a.Inventory.Plus(g.Rewards.Resources)
		slog.Info("goal completed",
			"agent", a.Name,
			"goal", g.Title,
			"prestige", g.Rewards.Prestige,
			"level", a.Level,
		)
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
