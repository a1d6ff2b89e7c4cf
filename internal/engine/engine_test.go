package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/villagers/internal/agents"
	"github.com/talgya/villagers/internal/config"
	"github.com/talgya/villagers/internal/construction"
	"github.com/talgya/villagers/internal/economy"
	"github.com/talgya/villagers/internal/goals"
	"github.com/talgya/villagers/internal/trade"
	"github.com/talgya/villagers/internal/world"
)

var engineTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

// memStore is an in-memory Store for engine tests.
type memStore struct {
	mu        sync.Mutex
	agents    map[string]*agents.Agent
	nodes     map[string]*world.ResourceNode
	buildings map[string]*construction.Building
	trades    map[string]*trade.Offer
}

func newMemStore() *memStore {
	return &memStore{
		agents:    map[string]*agents.Agent{},
		nodes:     map[string]*world.ResourceNode{},
		buildings: map[string]*construction.Building{},
		trades:    map[string]*trade.Offer{},
	}
}

func (s *memStore) Agent(id string) (*agents.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return nil, fmt.Errorf("agent %s not found", id)
	}
	return a, nil
}

func (s *memStore) Agents() ([]*agents.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*agents.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		out = append(out, a)
	}
	return out, nil
}

func (s *memStore) SaveAgent(a *agents.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[a.ID] = a
	return nil
}

func (s *memStore) Node(id string) (*world.ResourceNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("node %s not found", id)
	}
	return n, nil
}

func (s *memStore) Nodes() ([]*world.ResourceNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*world.ResourceNode, 0, len(s.nodes))
	for _, n := range s.nodes {
		out = append(out, n)
	}
	return out, nil
}

func (s *memStore) SaveNode(n *world.ResourceNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[n.ID] = n
	return nil
}

func (s *memStore) Buildings() ([]*construction.Building, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*construction.Building, 0, len(s.buildings))
	for _, b := range s.buildings {
		out = append(out, b)
	}
	return out, nil
}

func (s *memStore) BuildingsByOwner(ownerID string) ([]*construction.Building, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*construction.Building
	for _, b := range s.buildings {
		if b.OwnerID == ownerID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *memStore) SaveBuilding(b *construction.Building) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buildings[b.ID] = b
	return nil
}

func (s *memStore) Trade(id string) (*trade.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.trades[id]
	if !ok {
		return nil, fmt.Errorf("offer %s not found", id)
	}
	return o, nil
}

func (s *memStore) SaveTrade(o *trade.Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades[o.ID] = o
	return nil
}

func (s *memStore) SettleTrade(from, to *agents.Agent, o *trade.Offer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents[from.ID] = from
	s.agents[to.ID] = to
	s.trades[o.ID] = o
	return nil
}

func (s *memStore) PendingTrades() ([]*trade.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*trade.Offer
	for _, o := range s.trades {
		if o.Status == trade.Pending {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *memStore) TradesFor(agentID string) ([]*trade.Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*trade.Offer
	for _, o := range s.trades {
		if o.FromAgentID == agentID || o.ToAgentID == agentID {
			out = append(out, o)
		}
	}
	return out, nil
}

// fakeInferer returns a canned response or error.
type fakeInferer struct {
	resp string
	err  error
}

func (f *fakeInferer) Infer(ctx context.Context, system, user string) (string, error) {
	return f.resp, f.err
}

func (f *fakeInferer) Enabled() bool { return true }

func newTestEngine(store Store, inferer Inferer) *Engine {
	e := New(store, inferer, config.Default())
	e.Now = func() time.Time { return engineTime }
	return e
}

func seedAgent(s *memStore, id string, arch agents.Archetype) *agents.Agent {
	a := agents.NewAgent(id, agents.NewPersonality(arch), world.Position{X: 5, Y: 5}, engineTime)
	a.ID = id
	s.agents[id] = a
	return a
}

func seedNode(s *memStore, id string, kind economy.Kind, amount float64) *world.ResourceNode {
	n := &world.ResourceNode{
		ID: id, Kind: kind,
		Pos:    world.Position{X: 6, Y: 6},
		Amount: amount, MaxAmount: amount,
		LastRegen: engineTime,
	}
	s.nodes[id] = n
	return n
}

func TestDecideUsesAIDecision(t *testing.T) {
	store := newMemStore()
	seedAgent(store, "a1", agents.Gatherer)
	seedNode(store, "n1", economy.Wood, 10)

	e := newTestEngine(store, &fakeInferer{
		resp: `{"action": "gather", "target": "wood", "reason": "stockpiling"}`,
	})

	res, err := e.Decide(context.Background(), "a1")
	require.NoError(t, err)
	assert.True(t, res.UsedAI)
	assert.Equal(t, agents.ActionGather, res.Decision.Action)
	assert.True(t, res.Outcome.OK)
	assert.Equal(t, OutGathered, res.Outcome.Kind)
	assert.Equal(t, 1.0, res.Outcome.Gathered)
	assert.Empty(t, res.Diagnostics)
}

func TestDecideFallsBackOnInferenceError(t *testing.T) {
	store := newMemStore()
	seedAgent(store, "a1", agents.Gatherer)
	seedNode(store, "n1", economy.Wood, 10)

	e := newTestEngine(store, &fakeInferer{err: errors.New("backend down")})

	res, err := e.Decide(context.Background(), "a1")
	require.NoError(t, err)
	assert.False(t, res.UsedAI)
	require.NotEmpty(t, res.Diagnostics)
	assert.Contains(t, res.Diagnostics[0], "backend down")
	// The rule engine still produced a working decision.
	assert.True(t, res.Outcome.OK)
}

func TestBuilderFallbackPicksAffordableBuilding(t *testing.T) {
	store := newMemStore()
	a := seedAgent(store, "a1", agents.Builder)
	a.Inventory = economy.Inventory{Wood: 35, Stone: 25, Gold: 10}

	e := newTestEngine(store, &fakeInferer{err: errors.New("always down")})

	res, err := e.Decide(context.Background(), "a1")
	require.NoError(t, err)
	assert.False(t, res.UsedAI)
	assert.Equal(t, agents.ActionBuild, res.Decision.Action)

	ok, _, afErr := construction.CanAfford(economy.Inventory{Wood: 35, Stone: 25, Gold: 10}, res.Decision.Target)
	require.NoError(t, afErr)
	assert.True(t, ok)
	assert.True(t, res.Outcome.OK)
}

func TestDecideFallsBackOnGarbageResponse(t *testing.T) {
	store := newMemStore()
	seedAgent(store, "a1", agents.Gatherer)
	seedNode(store, "n1", economy.Wood, 10)

	e := newTestEngine(store, &fakeInferer{resp: "I cannot decide."})

	res, err := e.Decide(context.Background(), "a1")
	require.NoError(t, err)
	assert.False(t, res.UsedAI)
	assert.NotEmpty(t, res.Diagnostics)
}

func TestDecideMissingAgentIsFatal(t *testing.T) {
	e := newTestEngine(newMemStore(), nil)
	_, err := e.Decide(context.Background(), "nobody")
	assert.Error(t, err)
}

func TestExecuteGatherUpdatesEverything(t *testing.T) {
	store := newMemStore()
	a := seedAgent(store, "a1", agents.Gatherer)
	seedNode(store, "n1", economy.Wood, 10)
	startWood := a.Inventory.Wood

	e := newTestEngine(store, nil)
	out := e.Execute(a, agents.Decision{Action: agents.ActionGather, NodeID: "n1"}, snapOf(store))
	require.True(t, out.OK)

	stored, _ := store.Agent("a1")
	assert.Equal(t, startWood+1, stored.Inventory.Wood)
	assert.Equal(t, 1.0, stored.Stats.ResourcesGathered)
	assert.Equal(t, agents.XPGather, stored.Experience)

	node, _ := store.Node("n1")
	assert.Equal(t, 9.0, node.Amount)

	// Goal progress advanced for the gathered commodity.
	var woodProgress float64
	for _, g := range stored.Goals {
		for _, r := range g.Requirements {
			if r.Kind == goals.ReqResource && r.Target == "wood" {
				woodProgress = r.Current
			}
		}
	}
	assert.Equal(t, 1.0, woodProgress)
}

func TestExecuteGatherDepletedNode(t *testing.T) {
	store := newMemStore()
	a := seedAgent(store, "a1", agents.Gatherer)
	n := seedNode(store, "n1", economy.Stone, 5)
	n.Amount = 0

	e := newTestEngine(store, nil)
	out := e.Execute(a, agents.Decision{Action: agents.ActionGather, NodeID: "n1"}, snapOf(store))
	assert.False(t, out.OK)
	assert.Equal(t, OutDepleted, out.Kind)
}

func TestExecuteGatherNoTarget(t *testing.T) {
	store := newMemStore()
	a := seedAgent(store, "a1", agents.Gatherer)

	e := newTestEngine(store, nil)
	out := e.Execute(a, agents.Decision{Action: agents.ActionGather, Target: "gold"}, snapOf(store))
	assert.False(t, out.OK)
	assert.Equal(t, OutNoTarget, out.Kind)
}

func TestExecuteBuildDeductsAndRecords(t *testing.T) {
	store := newMemStore()
	a := seedAgent(store, "a1", agents.Builder)
	a.Inventory = economy.Inventory{Wood: 15, Stone: 10}

	e := newTestEngine(store, nil)
	out := e.Execute(a, agents.Decision{Action: agents.ActionBuild, Target: construction.House}, snapOf(store))
	require.True(t, out.OK, out.Message)
	require.NotNil(t, out.Building)
	assert.Equal(t, construction.House, out.Building.Kind)
	assert.Equal(t, "a1", out.Building.OwnerID)

	stored, _ := store.Agent("a1")
	assert.Equal(t, 5.0, stored.Inventory.Wood)
	assert.Equal(t, 5.0, stored.Inventory.Stone)
	assert.Equal(t, 1, stored.Stats.BuildingsBuilt)
	assert.Equal(t, agents.XPBuild, stored.Experience)

	all, _ := store.Buildings()
	assert.Len(t, all, 1)
}

func TestExecuteBuildInsufficient(t *testing.T) {
	store := newMemStore()
	a := seedAgent(store, "a1", agents.Builder)
	a.Inventory = economy.Inventory{}

	e := newTestEngine(store, nil)
	out := e.Execute(a, agents.Decision{Action: agents.ActionBuild, Target: construction.Tower}, snapOf(store))
	assert.False(t, out.OK)
	assert.Equal(t, OutInsufficient, out.Kind)
	require.NotNil(t, out.Missing)
	assert.Equal(t, 30.0, out.Missing.Wood)
}

func TestExecuteBuildUnknownKind(t *testing.T) {
	store := newMemStore()
	a := seedAgent(store, "a1", agents.Builder)

	e := newTestEngine(store, nil)
	out := e.Execute(a, agents.Decision{Action: agents.ActionBuild, Target: "palace"}, snapOf(store))
	assert.False(t, out.OK)
	assert.Equal(t, OutUnknownKind, out.Kind)
}

func TestExecuteUnknownAction(t *testing.T) {
	store := newMemStore()
	a := seedAgent(store, "a1", agents.Gatherer)

	e := newTestEngine(store, nil)
	out := e.Execute(a, agents.Decision{Action: "teleport"}, snapOf(store))
	assert.False(t, out.OK)
	assert.Equal(t, OutUnknownAct, out.Kind)
}

func TestExecuteExploreMovesAgent(t *testing.T) {
	store := newMemStore()
	a := seedAgent(store, "a1", agents.Explorer)

	e := newTestEngine(store, nil)
	out := e.Execute(a, agents.Decision{Action: agents.ActionExplore}, snapOf(store))
	require.True(t, out.OK)

	stored, _ := store.Agent("a1")
	assert.Equal(t, 1, stored.Stats.LocationsVisited)
	assert.Equal(t, agents.XPExplore, stored.Experience)
}

func TestDecideAllRunsEveryVillager(t *testing.T) {
	store := newMemStore()
	seedAgent(store, "a1", agents.Gatherer)
	seedAgent(store, "a2", agents.Explorer)
	seedNode(store, "n1", economy.Wood, 10)

	e := newTestEngine(store, nil)

	batch, err := e.DecideAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, batch.Total)
	assert.Equal(t, 2, batch.Succeeded)
	assert.Equal(t, 0, batch.AIUsed)
	assert.Empty(t, batch.Failures)
	require.Len(t, batch.Results, 2)
	// Stable ordering by agent id.
	assert.Equal(t, "a1", batch.Results[0].AgentID)
	assert.Equal(t, "a2", batch.Results[1].AgentID)
}

func TestTradeLifecycle(t *testing.T) {
	store := newMemStore()
	from := seedAgent(store, "a1", agents.Trader)
	to := seedAgent(store, "a2", agents.Gatherer)
	from.Inventory = economy.Inventory{Wood: 25}
	to.Inventory = economy.Inventory{Gold: 8}

	e := newTestEngine(store, nil)

	o, err := e.ProposeTrade("a1", "a2",
		economy.Inventory{Wood: 20}, economy.Inventory{Gold: 5}, "lumber for coin")
	require.NoError(t, err)
	assert.Equal(t, trade.Pending, o.Status)

	pending, err := e.PendingTrades()
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	settled, err := e.AcceptTrade(o.ID)
	require.NoError(t, err)
	assert.Equal(t, trade.Completed, settled.Status)

	fromAfter, _ := store.Agent("a1")
	toAfter, _ := store.Agent("a2")
	assert.Equal(t, 5.0, fromAfter.Inventory.Wood)
	assert.Equal(t, 5.0, fromAfter.Inventory.Gold)
	assert.Equal(t, 20.0, toAfter.Inventory.Wood)
	assert.Equal(t, 3.0, toAfter.Inventory.Gold)
	assert.Equal(t, agents.XPTrade, fromAfter.Experience)
	assert.Equal(t, agents.XPTrade, toAfter.Experience)

	// Trade goals advanced on both sides where present.
	for _, g := range fromAfter.Goals {
		for _, r := range g.Requirements {
			if r.Kind == goals.ReqTrade && r.Target == "completed" {
				assert.Equal(t, 1.0, r.Current)
			}
		}
	}

	// Settling twice fails and moves nothing.
	_, err = e.AcceptTrade(o.ID)
	assert.ErrorIs(t, err, trade.ErrAlreadyResolved)
	fromAgain, _ := store.Agent("a1")
	assert.Equal(t, 5.0, fromAgain.Inventory.Wood)
}

func TestProposeTradeRejectsUnfair(t *testing.T) {
	store := newMemStore()
	from := seedAgent(store, "a1", agents.Trader)
	seedAgent(store, "a2", agents.Gatherer)
	from.Inventory = economy.Inventory{Gold: 5}

	e := newTestEngine(store, nil)
	_, err := e.ProposeTrade("a1", "a2", economy.Inventory{Gold: 5}, economy.Inventory{Wood: 1}, "")
	var ie *trade.InvalidError
	assert.True(t, errors.As(err, &ie))

	// Nothing was persisted.
	pending, _ := e.PendingTrades()
	assert.Empty(t, pending)
}

func TestProposeTradeRejectsSelf(t *testing.T) {
	store := newMemStore()
	seedAgent(store, "a1", agents.Trader)

	e := newTestEngine(store, nil)
	_, err := e.ProposeTrade("a1", "a1", economy.Inventory{Wood: 5}, economy.Inventory{Food: 5}, "")
	assert.Error(t, err)
}

func TestPendingTradesExpireLazily(t *testing.T) {
	store := newMemStore()
	from := seedAgent(store, "a1", agents.Trader)
	to := seedAgent(store, "a2", agents.Gatherer)
	from.Inventory = economy.Inventory{Wood: 25}
	to.Inventory = economy.Inventory{Gold: 8}

	e := newTestEngine(store, nil)
	o, err := e.ProposeTrade("a1", "a2",
		economy.Inventory{Wood: 20}, economy.Inventory{Gold: 5}, "")
	require.NoError(t, err)

	// Move the clock past the window.
	e.Now = func() time.Time { return engineTime.Add(time.Hour) }

	pending, err := e.PendingTrades()
	require.NoError(t, err)
	assert.Empty(t, pending)

	stored, _ := store.Trade(o.ID)
	assert.Equal(t, trade.Expired, stored.Status)
}

func TestRejectTrade(t *testing.T) {
	store := newMemStore()
	from := seedAgent(store, "a1", agents.Trader)
	to := seedAgent(store, "a2", agents.Gatherer)
	from.Inventory = economy.Inventory{Wood: 25}
	to.Inventory = economy.Inventory{Gold: 8}

	e := newTestEngine(store, nil)
	o, err := e.ProposeTrade("a1", "a2",
		economy.Inventory{Wood: 20}, economy.Inventory{Gold: 5}, "")
	require.NoError(t, err)

	rejected, err := e.RejectTrade(o.ID)
	require.NoError(t, err)
	assert.Equal(t, trade.Rejected, rejected.Status)

	// Inventories untouched.
	fromAfter, _ := store.Agent("a1")
	assert.Equal(t, 25.0, fromAfter.Inventory.Wood)
}

// copyStore returns independent copies from agent and trade reads, the way
// a row-backed store does. Writes still land in the shared maps.
type copyStore struct {
	*memStore
}

func (s *copyStore) Agent(id string) (*agents.Agent, error) {
	a, err := s.memStore.Agent(id)
	if err != nil {
		return nil, err
	}
	c := *a
	return &c, nil
}

func (s *copyStore) Trade(id string) (*trade.Offer, error) {
	o, err := s.memStore.Trade(id)
	if err != nil {
		return nil, err
	}
	c := *o
	return &c, nil
}

func TestConcurrentAcceptsSettleOnce(t *testing.T) {
	base := newMemStore()
	from := seedAgent(base, "a1", agents.Trader)
	to := seedAgent(base, "a2", agents.Gatherer)
	from.Inventory = economy.Inventory{Wood: 40}
	to.Inventory = economy.Inventory{Gold: 10}

	e := newTestEngine(&copyStore{memStore: base}, nil)
	o, err := e.ProposeTrade("a1", "a2",
		economy.Inventory{Wood: 20}, economy.Inventory{Gold: 5}, "")
	require.NoError(t, err)

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, err := e.AcceptTrade(o.ID)
			errs <- err
		}()
	}

	var settled, resolved int
	for i := 0; i < 2; i++ {
		switch err := <-errs; {
		case err == nil:
			settled++
		case errors.Is(err, trade.ErrAlreadyResolved):
			resolved++
		default:
			t.Fatalf("unexpected accept error: %v", err)
		}
	}
	assert.Equal(t, 1, settled)
	assert.Equal(t, 1, resolved)

	// The offering moved exactly once.
	fromAfter, _ := base.Agent("a1")
	toAfter, _ := base.Agent("a2")
	assert.Equal(t, 20.0, fromAfter.Inventory.Wood)
	assert.Equal(t, 5.0, fromAfter.Inventory.Gold)
	assert.Equal(t, 20.0, toAfter.Inventory.Wood)
	assert.Equal(t, 5.0, toAfter.Inventory.Gold)
	assert.Equal(t, 1, fromAfter.Stats.TradesCompleted)
	assert.Equal(t, 1, toAfter.Stats.TradesCompleted)
}

// failSettleStore simulates a storage failure at settlement time.
type failSettleStore struct {
	*copyStore
}

func (s *failSettleStore) SettleTrade(from, to *agents.Agent, o *trade.Offer) error {
	return errors.New("disk full")
}

func TestSettlePersistFailureChangesNothing(t *testing.T) {
	base := newMemStore()
	from := seedAgent(base, "a1", agents.Trader)
	to := seedAgent(base, "a2", agents.Gatherer)
	from.Inventory = economy.Inventory{Wood: 25}
	to.Inventory = economy.Inventory{Gold: 8}

	e := newTestEngine(&failSettleStore{copyStore: &copyStore{memStore: base}}, nil)
	o, err := e.ProposeTrade("a1", "a2",
		economy.Inventory{Wood: 20}, economy.Inventory{Gold: 5}, "")
	require.NoError(t, err)

	_, err = e.AcceptTrade(o.ID)
	require.Error(t, err)

	// Nothing stuck: the offer is still pending and no side was debited.
	stored, _ := base.Trade(o.ID)
	assert.Equal(t, trade.Pending, stored.Status)
	fromAfter, _ := base.Agent("a1")
	toAfter, _ := base.Agent("a2")
	assert.Equal(t, 25.0, fromAfter.Inventory.Wood)
	assert.Equal(t, 8.0, toAfter.Inventory.Gold)
}

func snapOf(s *memStore) *agents.Snapshot {
	nodes, _ := s.Nodes()
	buildings, _ := s.Buildings()
	all, _ := s.Agents()
	return &agents.Snapshot{Nodes: nodes, Buildings: buildings, Agents: all}
}
