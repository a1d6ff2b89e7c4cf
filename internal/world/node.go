// Package world owns resource-node state: placement, gathering, and
// time-proportional regeneration.
package world

import (
	"time"

	"github.com/talgya/villagers/internal/economy"
)

// Position is a grid coordinate.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Distance returns the Chebyshev distance between two positions. Gathering
// range and node ordering both use it.
func Distance(a, b Position) int {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dy := a.Y - b.Y
	if dy < 0 {
		dy = -dy
	}
	if dx > dy {
		return dx
	}
	return dy
}

// ResourceNode is a finite, regenerating deposit of one commodity.
// Invariant: 0 <= Amount <= MaxAmount.
type ResourceNode struct {
	ID        string       `json:"id"`
	Kind      economy.Kind `json:"kind"`
	Pos       Position     `json:"position"`
	Amount    float64      `json:"amount"`
	MaxAmount float64      `json:"max_amount"`
	RegenRate float64      `json:"regenerate_rate"` // units per minute
	LastRegen time.Time    `json:"last_regenerate"`
}

// Regenerate accrues elapsed-time regrowth up to now, capped at MaxAmount.
// Calling it repeatedly with the same now accrues nothing extra, and the
// amount never decreases.
func (n *ResourceNode) Regenerate(now time.Time) {
	elapsed := now.Sub(n.LastRegen)
	if elapsed <= 0 {
		return
	}
	n.LastRegen = now
	if n.Amount >= n.MaxAmount {
		return
	}
	grown := elapsed.Minutes() * n.RegenRate
	if grown > n.MaxAmount-n.Amount {
		grown = n.MaxAmount - n.Amount
	}
	n.Amount += grown
}

// Gather regenerates the node up to now, then removes up to cap units and
// returns how much was taken. A depleted node yields zero; callers report
// that as an outcome, not a failure.
func (n *ResourceNode) Gather(cap float64, now time.Time) float64 {
	n.Regenerate(now)
	if n.Amount <= 0 || cap <= 0 {
		return 0
	}
	taken := cap
	if taken > n.Amount {
		taken = n.Amount
	}
	n.Amount -= taken
	return taken
}

// Depleted reports whether the node currently has nothing to gather.
func (n *ResourceNode) Depleted() bool {
	return n.Amount <= 0
}
