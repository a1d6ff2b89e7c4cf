// Package goals maintains per-villager goal objects with typed requirements
// and priority ordering.
package goals

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/villagers/internal/economy"
)

// Priority orders goals. Critical outranks high outranks medium outranks low.
type Priority string

const (
	Low      Priority = "low"
	Medium   Priority = "medium"
	High     Priority = "high"
	Critical Priority = "critical"
)

var priorityRank = map[Priority]int{Low: 1, Medium: 2, High: 3, Critical: 4}

// Requirement kinds.
const (
	ReqResource = "resource"
	ReqBuilding = "building"
	ReqTrade    = "trade"
	ReqSocial   = "social"
)

// Requirement is one typed condition a goal tracks.
type Requirement struct {
	Kind        string  `json:"kind"`
	Target      string  `json:"target"`
	Current     float64 `json:"current"`
	Required    float64 `json:"required"`
	Description string  `json:"description"`
}

// Met reports whether the requirement is satisfied.
func (r Requirement) Met() bool {
	return r.Current >= r.Required
}

// Reward is granted exactly once, when a goal completes.
type Reward struct {
	Prestige    int               `json:"prestige"`
	Experience  int               `json:"experience"`
	Title       string            `json:"title,omitempty"`
	Resources   economy.Inventory `json:"resources,omitempty"`
	Description string            `json:"description"`
}

// Goal is a villager ambition with typed requirements.
// CompletedAt is set exactly once, at the transition into completion, and
// never cleared.
type Goal struct {
	ID           string        `json:"id"`
	Type         string        `json:"type"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	Priority     Priority      `json:"priority"`
	Requirements []Requirement `json:"requirements"`
	Rewards      Reward        `json:"rewards"`
	Progress     float64       `json:"progress"`
	CreatedAt    time.Time     `json:"created_at"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
}

// Complete reports whether every requirement is met.
func (g *Goal) Complete() bool {
	for _, r := range g.Requirements {
		if !r.Met() {
			return false
		}
	}
	return true
}

// NextUnmetRequirement returns the first requirement, in declaration order,
// still short of its target, or nil when the goal is complete.
func (g *Goal) NextUnmetRequirement() *Requirement {
	for i := range g.Requirements {
		if !g.Requirements[i].Met() {
			return &g.Requirements[i]
		}
	}
	return nil
}

// Prioritize sorts goals by priority descending. The sort is stable so
// equal-priority goals keep their declaration order.
func Prioritize(gs []Goal) {
	sort.SliceStable(gs, func(i, j int) bool {
		return priorityRank[gs[i].Priority] > priorityRank[gs[j].Priority]
	})
}

// Active returns the incomplete goals, prioritized.
func Active(gs []Goal) []Goal {
	var out []Goal
	for _, g := range gs {
		if g.CompletedAt == nil {
			out = append(out, g)
		}
	}
	Prioritize(out)
	return out
}

// Advance increments the named requirement by delta, clamped at its target,
// and recomputes overall progress. When the last requirement crosses its
// target the goal completes: CompletedAt is stamped with now and Advance
// reports true so the caller applies rewards exactly once. Advancing a
// completed goal is a no-op.
func Advance(g *Goal, reqKind, target string, delta float64, now time.Time) bool {
	if g.CompletedAt != nil {
		return false
	}
	for i := range g.Requirements {
		r := &g.Requirements[i]
		if r.Kind != reqKind || r.Target != target {
			continue
		}
		r.Current += delta
		if r.Current > r.Required {
			r.Current = r.Required
		}
	}
	g.Progress = progress(g)
	if g.Complete() {
		t := now
		g.CompletedAt = &t
		return true
	}
	return false
}

func progress(g *Goal) float64 {
	if len(g.Requirements) == 0 {
		return 1
	}
	var sum float64
	for _, r := range g.Requirements {
		if r.Required <= 0 {
			sum++
			continue
		}
		sum += r.Current / r.Required
	}
	return sum / float64(len(g.Requirements))
}

func newID() string {
	return uuid.NewString()
}
