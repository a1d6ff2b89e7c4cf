// Goal templates, keyed by goal type. Instantiated per villager from their
// personality's preferred goals.
package goals

import "time"

// Goal types.
const (
	CollectResources = "collect_resources"
	BuildStructure   = "build_structure"
	AccumulateWealth = "accumulate_wealth"
	BecomeTrader     = "become_trader"
	ExploreWorld     = "explore_world"
	HelpCommunity    = "help_community"
)

var templates = map[string]Goal{
	CollectResources: {
		Type:        CollectResources,
		Title:       "Resource Collector",
		Description: "Stockpile the basic materials",
		Priority:    Medium,
		Requirements: []Requirement{
			{Kind: ReqResource, Target: "wood", Required: 50, Description: "Gather 50 wood"},
			{Kind: ReqResource, Target: "stone", Required: 30, Description: "Gather 30 stone"},
		},
		Rewards: Reward{Prestige: 20, Experience: 100, Title: "Diligent Collector", Description: "+20 prestige"},
	},
	BuildStructure: {
		Type:        BuildStructure,
		Title:       "Master Builder",
		Description: "Raise a variety of buildings",
		Priority:    High,
		Requirements: []Requirement{
			{Kind: ReqBuilding, Target: "house", Required: 1, Description: "Build a house"},
			{Kind: ReqBuilding, Target: "workshop", Required: 1, Description: "Build a workshop"},
		},
		Rewards: Reward{Prestige: 50, Experience: 150, Title: "Master Builder", Description: "+50 prestige and 5 gold"},
	},
	AccumulateWealth: {
		Type:        AccumulateWealth,
		Title:       "Wealth Builder",
		Description: "Amass a gold reserve",
		Priority:    High,
		Requirements: []Requirement{
			{Kind: ReqResource, Target: "gold", Required: 20, Description: "Accumulate 20 gold"},
		},
		Rewards: Reward{Prestige: 30, Experience: 100, Title: "Wealthy Merchant", Description: "+30 prestige"},
	},
	BecomeTrader: {
		Type:        BecomeTrader,
		Title:       "Trade Expert",
		Description: "Close repeated deals",
		Priority:    Medium,
		Requirements: []Requirement{
			{Kind: ReqTrade, Target: "completed", Required: 10, Description: "Complete 10 trades"},
		},
		Rewards: Reward{Prestige: 25, Experience: 120, Title: "Trade Expert", Description: "+25 prestige and 3 gold"},
	},
	ExploreWorld: {
		Type:        ExploreWorld,
		Title:       "Explorer",
		Description: "See the wider world",
		Priority:    Low,
		Requirements: []Requirement{
			{Kind: ReqSocial, Target: "locations_visited", Required: 15, Description: "Visit 15 distinct places"},
		},
		Rewards: Reward{Prestige: 15, Experience: 80, Title: "Explorer", Description: "+15 prestige"},
	},
	HelpCommunity: {
		Type:        HelpCommunity,
		Title:       "Community Helper",
		Description: "Support the other villagers",
		Priority:    Medium,
		Requirements: []Requirement{
			{Kind: ReqSocial, Target: "gifts_given", Required: 5, Description: "Gift resources 5 times"},
			{Kind: ReqTrade, Target: "fair_trades", Required: 5, Description: "Close 5 fair trades"},
		},
		Rewards: Reward{Prestige: 40, Experience: 120, Title: "Community Star", Description: "+40 prestige"},
	},
}

func init() {
	// Reward resources the templates grant on completion.
	g := templates[BuildStructure]
	g.Rewards.Resources.Gold = 5
	templates[BuildStructure] = g
	g = templates[BecomeTrader]
	g.Rewards.Resources.Gold = 3
	templates[BecomeTrader] = g
}

// FromTemplate instantiates a fresh goal of the given type, or false when
// the type is unknown.
func FromTemplate(goalType string, now time.Time) (Goal, bool) {
	tmpl, ok := templates[goalType]
	if !ok {
		return Goal{}, false
	}
	g := tmpl
	g.ID = newID()
	g.CreatedAt = now
	g.Requirements = make([]Requirement, len(tmpl.Requirements))
	copy(g.Requirements, tmpl.Requirements)
	return g, true
}

// ForPreferences instantiates up to three goals from a preference list,
// skipping unknown types.
func ForPreferences(preferred []string, now time.Time) []Goal {
	var out []Goal
	for _, t := range preferred {
		if len(out) == 3 {
			break
		}
		if g, ok := FromTemplate(t, now); ok {
			out = append(out, g)
		}
	}
	return out
}
