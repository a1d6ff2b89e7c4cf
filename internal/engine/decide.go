// The decision policy: try the AI-backed path first, fall back to the
// deterministic rule engine on any failure, and always hand the executor a
// well-formed decision.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/talgya/villagers/internal/agents"
	"github.com/talgya/villagers/internal/llm"
	"github.com/talgya/villagers/internal/world"
)

// DecisionResult is what the caller receives per agent per cycle. Degraded
// (rule-fallback) operation is visible through UsedAI but never blocks the
// simulation.
type DecisionResult struct {
	AgentID     string          `json:"agent_id"`
	AgentName   string          `json:"agent_name"`
	UsedAI      bool            `json:"used_ai"`
	Decision    agents.Decision `json:"decision"`
	Outcome     Outcome         `json:"outcome"`
	Diagnostics []string        `json:"diagnostics,omitempty"`
}

// Decide runs one full decision cycle for the agent: snapshot, policy,
// execution. The only fatal condition is a missing agent; everything else
// is reported inside the result.
func (e *Engine) Decide(ctx context.Context, agentID string) (*DecisionResult, error) {
	a, err := e.Store.Agent(agentID)
	if err != nil {
		return nil, fmt.Errorf("load agent %s: %w", agentID, err)
	}

	snap, err := e.snapshotFor(a)
	if err != nil {
		return nil, fmt.Errorf("snapshot for %s: %w", agentID, err)
	}

	res := &DecisionResult{AgentID: a.ID, AgentName: a.Name}

	if e.LLM != nil && e.LLM.Enabled() {
		if d, err := e.attemptAI(ctx, a, snap); err == nil {
			res.Decision = d
			res.UsedAI = true
		} else {
			// Inference failure is a fallback trigger, captured for
			// observability only.
			res.Diagnostics = append(res.Diagnostics, err.Error())
			slog.Debug("ai decision failed, using rule engine",
				"agent", a.Name, "error", err)
		}
	}

	if !res.UsedAI {
		e.rngMu.Lock()
		res.Decision = agents.RuleDecide(a, snap, e.rng)
		e.rngMu.Unlock()
	}

	res.Outcome = e.Execute(a, res.Decision, snap)

	slog.Debug("decision cycle",
		"agent", a.Name,
		"used_ai", res.UsedAI,
		"action", res.Decision.Action,
		"ok", res.Outcome.OK,
	)
	return res, nil
}

// attemptAI builds the prompt, calls the inference backend under its
// timeout, and validates whatever comes back. Timeouts, transport errors,
// and unusable payloads are all equivalent here.
func (e *Engine) attemptAI(ctx context.Context, a *agents.Agent, snap *agents.Snapshot) (agents.Decision, error) {
	system, user := llm.BuildDecisionPrompt(llm.PromptContext{
		Agent:     a,
		Snapshot:  snap,
		Neighbors: 3,
	})

	raw, err := e.LLM.Infer(ctx, system, user)
	if err != nil {
		return agents.Decision{}, fmt.Errorf("inference: %w", err)
	}

	d, err := llm.ParseDecision(raw)
	if err != nil {
		return agents.Decision{}, err
	}
	if !agents.ValidAction(d.Action) {
		return agents.Decision{}, fmt.Errorf("%w: action %q", llm.ErrUnparseable, d.Action)
	}
	return d, nil
}

// snapshotFor assembles the read-only world view. Nodes are sorted by
// ascending distance from the agent (ties by ID) so rule selection is
// reproducible; the ordering is part of the decision contract.
func (e *Engine) snapshotFor(a *agents.Agent) (*agents.Snapshot, error) {
	nodes, err := e.Store.Nodes()
	if err != nil {
		return nil, err
	}
	now := e.Now()
	for _, n := range nodes {
		// Regenerate the view first so decisions never see stale amounts.
		n.Regenerate(now)
	}
	sort.SliceStable(nodes, func(i, j int) bool {
		di := world.Distance(a.Pos, nodes[i].Pos)
		dj := world.Distance(a.Pos, nodes[j].Pos)
		if di != dj {
			return di < dj
		}
		return nodes[i].ID < nodes[j].ID
	})

	buildings, err := e.Store.Buildings()
	if err != nil {
		return nil, err
	}
	others, err := e.Store.Agents()
	if err != nil {
		return nil, err
	}
	return &agents.Snapshot{Nodes: nodes, Buildings: buildings, Agents: others}, nil
}

// BatchResult summarizes a full-population decision run.
type BatchResult struct {
	Total     int               `json:"total"`
	Succeeded int               `json:"succeeded"`
	AIUsed    int               `json:"ai_used"`
	Results   []*DecisionResult `json:"results"`
	Failures  map[string]string `json:"failures,omitempty"` // agent id -> error
}

// DecideAll runs a decision cycle for every villager with bounded
// concurrency. One villager's failure never aborts the batch; failures are
// collected per agent.
func (e *Engine) DecideAll(ctx context.Context) (*BatchResult, error) {
	all, err := e.Store.Agents()
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}

	limit := e.Cfg.MaxConcurrent
	if limit <= 0 {
		limit = 4
	}
	sem := semaphore.NewWeighted(int64(limit))

	var mu sync.Mutex
	batch := &BatchResult{Total: len(all), Failures: map[string]string{}}

	g, gctx := errgroup.WithContext(ctx)
	for _, a := range all {
		a := a
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			res, err := e.Decide(gctx, a.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				batch.Failures[a.ID] = err.Error()
				return nil
			}
			batch.Succeeded++
			if res.UsedAI {
				batch.AIUsed++
			}
			batch.Results = append(batch.Results, res)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return batch, err
	}

	// Stable output order regardless of goroutine completion order.
	sort.Slice(batch.Results, func(i, j int) bool {
		return batch.Results[i].AgentID < batch.Results[j].AgentID
	})

	slog.Info("decision batch complete",
		"total", batch.Total,
		"succeeded", batch.Succeeded,
		"ai_used", batch.AIUsed,
	)
	return batch, nil
}
