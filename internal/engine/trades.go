package engine

import (
	"fmt"
	"log/slog"

	"github.com/talgya/villagers/internal/agents"
	"github.com/talgya/villagers/internal/economy"
	"github.com/talgya/villagers/internal/goals"
	"github.com/talgya/villagers/internal/trade"
)

// ProposeTrade validates fairness and funds, then records a pending offer.
// The proposer's inventory is checked but not escrowed; settlement
// re-validates both sides.
func (e *Engine) ProposeTrade(fromID, toID string, offering, requesting economy.Inventory, message string) (*trade.Offer, error) {
	if fromID == toID {
		return nil, fmt.Errorf("agent %s cannot trade with itself", fromID)
	}

	unlock := e.locks.lock(fromID, toID)
	defer unlock()

	from, err := e.Store.Agent(fromID)
	if err != nil {
		return nil, fmt.Errorf("load proposer: %w", err)
	}
	to, err := e.Store.Agent(toID)
	if err != nil {
		return nil, fmt.Errorf("load recipient: %w", err)
	}

	o, err := trade.Propose(from, to, offering, requesting, message, e.bounds(), e.Cfg.TradeWindow(), e.Now())
	if err != nil {
		return nil, err
	}
	if err := e.Store.SaveTrade(o); err != nil {
		return nil, fmt.Errorf("save offer: %w", err)
	}

	slog.Info("trade proposed",
		"offer", o.ID,
		"from", from.Name,
		"to", toID,
		"offering", offering.String(),
		"requesting", requesting.String(),
	)
	return o, nil
}

// AcceptTrade settles a pending offer. The offer is locked alongside both
// participants and re-read inside the critical section, so concurrent
// accepts serialize and the loser sees a resolved status. Both inventories
// are re-checked at settlement time; insolvency leaves the offer pending
// within its window, while expiry flips it.
func (e *Engine) AcceptTrade(offerID string) (*trade.Offer, error) {
	o, unlock, err := e.lockOffer(offerID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	from, err := e.Store.Agent(o.FromAgentID)
	if err != nil {
		return nil, fmt.Errorf("load proposer: %w", err)
	}
	to, err := e.Store.Agent(o.ToAgentID)
	if err != nil {
		return nil, fmt.Errorf("load recipient: %w", err)
	}

	if err := trade.Settle(o, from, to, e.Now()); err != nil {
		if o.Status != trade.Pending {
			// Expiry flipped the offer's status; persist that.
			if saveErr := e.Store.SaveTrade(o); saveErr != nil {
				slog.Warn("persist failed offer status", "offer", o.ID, "error", saveErr)
			}
		}
		return nil, err
	}

	now := e.Now()
	for _, a := range []*agents.Agent{from, to} {
		a.GainExperience(agents.XPTrade)
		e.advanceGoals(a, goals.ReqTrade, "completed", 1, now)
		e.advanceGoals(a, goals.ReqTrade, "fair_trades", 1, now)
	}

	if err := e.Store.SettleTrade(from, to, o); err != nil {
		return nil, fmt.Errorf("persist settlement: %w", err)
	}

	slog.Info("trade settled", "offer", o.ID, "from", from.Name, "to", to.Name)
	return o, nil
}

// RejectTrade declines a pending offer.
func (e *Engine) RejectTrade(offerID string) (*trade.Offer, error) {
	o, unlock, err := e.lockOffer(offerID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := trade.Reject(o); err != nil {
		return nil, err
	}
	if err := e.Store.SaveTrade(o); err != nil {
		return nil, fmt.Errorf("save offer: %w", err)
	}
	return o, nil
}

// lockOffer locks the offer together with both participants and returns a
// fresh read taken inside the critical section, so a concurrent resolution
// between the first read and the lock is visible to the caller. The caller
// owns the unlock on a nil error.
func (e *Engine) lockOffer(offerID string) (*trade.Offer, func(), error) {
	o, err := e.Store.Trade(offerID)
	if err != nil {
		return nil, nil, fmt.Errorf("load offer: %w", err)
	}

	unlock := e.locks.lock(o.ID, o.FromAgentID, o.ToAgentID)
	o, err = e.Store.Trade(offerID)
	if err != nil {
		unlock()
		return nil, nil, fmt.Errorf("load offer: %w", err)
	}
	return o, unlock, nil
}

// PendingTrades lists open offers, lazily expiring any past their window.
func (e *Engine) PendingTrades() ([]*trade.Offer, error) {
	all, err := e.Store.PendingTrades()
	if err != nil {
		return nil, err
	}
	now := e.Now()
	open := all[:0]
	for _, o := range all {
		if trade.ExpireIfPast(o, now) {
			if err := e.Store.SaveTrade(o); err != nil {
				slog.Warn("persist expired offer", "offer", o.ID, "error", err)
			}
			continue
		}
		open = append(open, o)
	}
	return open, nil
}

// TradesFor returns every offer involving the agent, newest first per the
// store's ordering.
func (e *Engine) TradesFor(agentID string) ([]*trade.Offer, error) {
	return e.Store.TradesFor(agentID)
}
