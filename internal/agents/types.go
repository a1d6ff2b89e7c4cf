// Package agents provides the villager data model, personality archetypes,
// and the deterministic rule-engine fallback.
package agents

import (
	"time"

	"github.com/google/uuid"

	"github.com/talgya/villagers/internal/economy"
	"github.com/talgya/villagers/internal/goals"
	"github.com/talgya/villagers/internal/world"
)

// Archetype names a personality category. It drives both prompt framing and
// the rule-engine fallback.
type Archetype string

const (
	Gatherer Archetype = "gatherer"
	Builder  Archetype = "builder"
	Trader   Archetype = "trader"
	Explorer Archetype = "explorer"
	Guardian Archetype = "guardian"
)

// Archetypes lists all archetypes in canonical order.
var Archetypes = []Archetype{Gatherer, Builder, Trader, Explorer, Guardian}

// Personality is the tagged personality structure. It is resolved once when
// an agent is created and immutable afterwards.
type Personality struct {
	Archetype      Archetype `json:"archetype"`
	Traits         []string  `json:"traits"`
	PreferredGoals []string  `json:"preferred_goals"`
	RiskTolerance  float64   `json:"risk_tolerance"` // 0..1
	Sociability    float64   `json:"sociability"`    // 0..1
}

// personalityTemplates maps archetype to its base personality.
var personalityTemplates = map[Archetype]Personality{
	Gatherer: {
		Archetype:      Gatherer,
		Traits:         []string{"industrious", "frugal", "methodical"},
		PreferredGoals: []string{goals.CollectResources, goals.AccumulateWealth, goals.BuildStructure},
		RiskTolerance:  0.3,
		Sociability:    0.4,
	},
	Builder: {
		Archetype:      Builder,
		Traits:         []string{"industrious", "visionary", "focused"},
		PreferredGoals: []string{goals.BuildStructure, goals.CollectResources, goals.AccumulateWealth},
		RiskTolerance:  0.4,
		Sociability:    0.5,
	},
	Trader: {
		Archetype:      Trader,
		Traits:         []string{"shrewd", "sociable", "adventurous"},
		PreferredGoals: []string{goals.BecomeTrader, goals.AccumulateWealth, goals.HelpCommunity},
		RiskTolerance:  0.7,
		Sociability:    0.8,
	},
	Explorer: {
		Archetype:      Explorer,
		Traits:         []string{"curious", "brave", "independent"},
		PreferredGoals: []string{goals.ExploreWorld, goals.CollectResources, goals.HelpCommunity},
		RiskTolerance:  0.8,
		Sociability:    0.6,
	},
	Guardian: {
		Archetype:      Guardian,
		Traits:         []string{"loyal", "vigilant", "steadfast"},
		PreferredGoals: []string{goals.BuildStructure, goals.HelpCommunity, goals.CollectResources},
		RiskTolerance:  0.4,
		Sociability:    0.5,
	},
}

// NewPersonality returns the base personality for an archetype. Unknown
// archetypes resolve to gatherer so callers never branch on raw payloads.
func NewPersonality(a Archetype) Personality {
	if p, ok := personalityTemplates[a]; ok {
		return p
	}
	return personalityTemplates[Gatherer]
}

// Experience awards per accomplishment. Goal completions carry their own
// award in the goal's reward.
const (
	XPGather  = 2
	XPBuild   = 50
	XPTrade   = 10
	XPExplore = 5
)

// Stats tracks a villager's lifetime accomplishments.
type Stats struct {
	ResourcesGathered float64 `json:"resources_gathered"`
	BuildingsBuilt    int     `json:"buildings_built"`
	TradesCompleted   int     `json:"trades_completed"`
	GoalsCompleted    int     `json:"goals_completed"`
	Prestige          int     `json:"prestige"`
	LocationsVisited  int     `json:"locations_visited"`
}

// Agent is one villager. The engine reads personality, inventory, and
// position, and applies inventory, goal-progress, and stat mutations; it
// never creates or deletes agents on its own.
type Agent struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Personality Personality       `json:"personality"`
	Inventory   economy.Inventory `json:"inventory"`
	Pos         world.Position    `json:"position"`
	Goals       []goals.Goal      `json:"goals"`
	Stats       Stats             `json:"stats"`
	Level       int               `json:"level"`
	Experience  int               `json:"experience"`
}

// GainExperience credits xp and recomputes the level. A villager gains a
// level for every 100 points of lifetime experience.
func (a *Agent) GainExperience(xp int) {
	a.Experience += xp
	a.Level = a.Experience/100 + 1
}

// NewAgent creates a villager with the starting inventory and the goals the
// personality prefers.
func NewAgent(name string, p Personality, pos world.Position, now time.Time) *Agent {
	return &Agent{
		ID:          uuid.NewString(),
		Name:        name,
		Personality: p,
		Inventory:   economy.StartingInventory(),
		Pos:         pos,
		Goals:       goals.ForPreferences(p.PreferredGoals, now),
		Level:       1,
	}
}
