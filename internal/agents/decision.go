package agents

import (
	"github.com/talgya/villagers/internal/construction"
	"github.com/talgya/villagers/internal/world"
)

// Action enumerates what a villager can decide to do.
const (
	ActionGather  = "gather"
	ActionBuild   = "build"
	ActionTrade   = "trade"
	ActionExplore = "explore"
	ActionWait    = "wait"
)

// ValidAction reports whether name is one of the five decision actions.
func ValidAction(name string) bool {
	switch name {
	case ActionGather, ActionBuild, ActionTrade, ActionExplore, ActionWait:
		return true
	}
	return false
}

// Decision is the ephemeral outcome of one decision cycle. It is consumed
// immediately by the executor and never persisted.
type Decision struct {
	Action string `json:"action"`
	Target string `json:"target,omitempty"` // resource kind, building type, or agent id
	NodeID string `json:"node_id,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Snapshot is the read-only view of the nearby world a decision is made
// against. Callers supply nodes in a stable, deterministic order (ascending
// distance from the deciding agent); rule selection takes the first match,
// so that ordering is part of the contract.
type Snapshot struct {
	Nodes     []*world.ResourceNode
	Buildings []*construction.Building
	Agents    []*Agent
}

// FirstNode returns the first non-depleted node, optionally filtered by
// kind ("" matches any).
func (s *Snapshot) FirstNode(kind string) *world.ResourceNode {
	for _, n := range s.Nodes {
		if n.Depleted() {
			continue
		}
		if kind == "" || string(n.Kind) == kind {
			return n
		}
	}
	return nil
}

// OwnedBuildings returns the buildings in the snapshot owned by agentID.
func (s *Snapshot) OwnedBuildings(agentID string) []*construction.Building {
	var out []*construction.Building
	for _, b := range s.Buildings {
		if b.OwnerID == agentID {
			out = append(out, b)
		}
	}
	return out
}
