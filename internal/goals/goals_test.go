package goals

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var goalTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestPrioritizeIsStableByPriority(t *testing.T) {
	gs := []Goal{
		{ID: "a", Priority: Low},
		{ID: "b", Priority: High},
		{ID: "c", Priority: Medium},
		{ID: "d", Priority: High},
	}
	Prioritize(gs)

	assert.Equal(t, "b", gs[0].ID)
	assert.Equal(t, "d", gs[1].ID) // same priority keeps original order
	assert.Equal(t, "c", gs[2].ID)
	assert.Equal(t, "a", gs[3].ID)
}

func TestAdvanceClampsAndCompletesOnce(t *testing.T) {
	g, ok := FromTemplate(AccumulateWealth, goalTime)
	require.True(t, ok)

	done := Advance(&g, ReqResource, "gold", 15, goalTime)
	assert.False(t, done)
	assert.InDelta(t, 0.75, g.Progress, 1e-9)
	assert.Nil(t, g.CompletedAt)

	// Overshoot clamps at the requirement and completes exactly once.
	later := goalTime.Add(time.Minute)
	done = Advance(&g, ReqResource, "gold", 50, later)
	assert.True(t, done)
	assert.Equal(t, 20.0, g.Requirements[0].Current)
	require.NotNil(t, g.CompletedAt)
	assert.Equal(t, later, *g.CompletedAt)

	// A completed goal never re-fires.
	stamp := *g.CompletedAt
	done = Advance(&g, ReqResource, "gold", 100, later.Add(time.Hour))
	assert.False(t, done)
	assert.Equal(t, stamp, *g.CompletedAt)
}

func TestAdvanceIgnoresNonMatchingRequirements(t *testing.T) {
	g, ok := FromTemplate(CollectResources, goalTime)
	require.True(t, ok)

	Advance(&g, ReqResource, "gold", 10, goalTime)
	assert.Equal(t, 0.0, g.Requirements[0].Current)
	assert.Equal(t, 0.0, g.Requirements[1].Current)
}

func TestMultiRequirementCompletion(t *testing.T) {
	g, ok := FromTemplate(BuildStructure, goalTime)
	require.True(t, ok)

	done := Advance(&g, ReqBuilding, "house", 1, goalTime)
	assert.False(t, done)
	assert.InDelta(t, 0.5, g.Progress, 1e-9)

	done = Advance(&g, ReqBuilding, "workshop", 1, goalTime)
	assert.True(t, done)
	assert.Equal(t, 5.0, g.Rewards.Resources.Gold)
	assert.Equal(t, 150, g.Rewards.Experience)
}

func TestNextUnmetRequirement(t *testing.T) {
	g, ok := FromTemplate(CollectResources, goalTime)
	require.True(t, ok)

	r := g.NextUnmetRequirement()
	require.NotNil(t, r)
	assert.Equal(t, "wood", r.Target)

	Advance(&g, ReqResource, "wood", 50, goalTime)
	r = g.NextUnmetRequirement()
	require.NotNil(t, r)
	assert.Equal(t, "stone", r.Target)
}

func TestFromTemplateCopiesRequirements(t *testing.T) {
	a, _ := FromTemplate(CollectResources, goalTime)
	b, _ := FromTemplate(CollectResources, goalTime)

	Advance(&a, ReqResource, "wood", 10, goalTime)
	assert.Equal(t, 0.0, b.Requirements[0].Current)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestForPreferencesCapsAtThree(t *testing.T) {
	prefs := []string{CollectResources, BuildStructure, AccumulateWealth, BecomeTrader}
	gs := ForPreferences(prefs, goalTime)
	assert.Len(t, gs, 3)

	gs = ForPreferences([]string{"unknown", ExploreWorld}, goalTime)
	require.Len(t, gs, 1)
	assert.Equal(t, ExploreWorld, gs[0].Type)
}

func TestActiveFiltersCompleted(t *testing.T) {
	done, _ := FromTemplate(AccumulateWealth, goalTime)
	Advance(&done, ReqResource, "gold", 20, goalTime)
	open, _ := FromTemplate(ExploreWorld, goalTime)

	active := Active([]Goal{done, open})
	require.Len(t, active, 1)
	assert.Equal(t, ExploreWorld, active[0].Type)
}
