// Package trade implements bilateral trade offers: value-weighted fairness,
// proposal, lazy expiry, and transactional settlement.
package trade

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/villagers/internal/agents"
	"github.com/talgya/villagers/internal/economy"
)

// Status is the trade offer lifecycle state. Once an offer reaches
// completed, rejected, or expired it never transitions again.
type Status string

const (
	Pending   Status = "pending"
	Accepted  Status = "accepted"
	Rejected  Status = "rejected"
	Expired   Status = "expired"
	Completed Status = "completed"
)

// resolved reports whether the status is terminal.
func (s Status) resolved() bool {
	return s == Completed || s == Rejected || s == Expired
}

// Offer is one bilateral trade proposal.
type Offer struct {
	ID          string            `json:"id"`
	FromAgentID string            `json:"from_agent_id"`
	ToAgentID   string            `json:"to_agent_id"`
	Offering    economy.Inventory `json:"offering"`
	Requesting  economy.Inventory `json:"requesting"`
	Status      Status            `json:"status"`
	Message     string            `json:"message,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	ExpiresAt   time.Time         `json:"expires_at"`
}

// Bounds are the fairness ratio limits. They are policy knobs, not hard
// laws; callers may tune them in configuration.
type Bounds struct {
	Min float64
	Max float64
}

// DefaultBounds admits offers worth between 60% and 170% of the request.
var DefaultBounds = Bounds{Min: 0.6, Max: 1.7}

// DefaultWindow is how long a proposal stays open.
const DefaultWindow = 5 * time.Minute

// Fairness is the verdict on an offering/requesting pair.
type Fairness struct {
	Fair   bool    `json:"fair"`
	Ratio  float64 `json:"ratio"`
	Reason string  `json:"reason,omitempty"`
}

// IsFair computes the value ratio of offering to requesting. Either side
// valuating to zero is invalid outright; otherwise the ratio must fall inside
// the bounds. The upper bound guards against degenerate over-generous offers
// as much as the lower guards against lowballing.
func IsFair(offering, requesting economy.Inventory, b Bounds) Fairness {
	reqValue := economy.Valuate(requesting)
	if reqValue == 0 || economy.Valuate(offering) == 0 {
		return Fairness{Fair: false, Ratio: 0, Reason: "invalid trade"}
	}
	ratio := economy.Valuate(offering) / reqValue
	switch {
	case ratio < b.Min:
		return Fairness{Fair: false, Ratio: ratio, Reason: "offer too low"}
	case ratio > b.Max:
		return Fairness{Fair: false, Ratio: ratio, Reason: "offer too generous"}
	}
	return Fairness{Fair: true, Ratio: ratio}
}

// Trade errors.
var (
	ErrAlreadyResolved = errors.New("trade already resolved")
	ErrExpired         = errors.New("trade expired")
)

// InvalidError reports a proposal rejected for fairness or zero value.
// Invalid proposals are never persisted.
type InvalidError struct {
	Fairness Fairness
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("invalid trade: %s (ratio %.2f)", e.Fairness.Reason, e.Fairness.Ratio)
}

// FundsError reports a party unable to cover its side of a trade.
type FundsError struct {
	AgentID string
	Missing economy.Inventory
}

func (e *FundsError) Error() string {
	return fmt.Sprintf("agent %s cannot cover trade: missing %s", e.AgentID, e.Missing)
}

// Propose creates a pending offer from one villager to another. The offer
// must be fair, and the proposer must hold the offered goods in their live
// inventory right now; proposal-time validation never substitutes for the
// re-check at settlement.
func Propose(from, to *agents.Agent, offering, requesting economy.Inventory, message string, b Bounds, window time.Duration, now time.Time) (*Offer, error) {
	f := IsFair(offering, requesting, b)
	if !f.Fair {
		return nil, &InvalidError{Fairness: f}
	}
	if !from.Inventory.Covers(offering) {
		return nil, &FundsError{AgentID: from.ID, Missing: from.Inventory.Missing(offering)}
	}
	return &Offer{
		ID:          uuid.NewString(),
		FromAgentID: from.ID,
		ToAgentID:   to.ID,
		Offering:    offering,
		Requesting:  requesting,
		Status:      Pending,
		Message:     message,
		CreatedAt:   now,
		ExpiresAt:   now.Add(window),
	}, nil
}

// ExpireIfPast lazily transitions a pending offer to expired when accessed
// past its deadline, and reports whether it did.
func ExpireIfPast(o *Offer, now time.Time) bool {
	if o.Status == Pending && now.After(o.ExpiresAt) {
		o.Status = Expired
		return true
	}
	return false
}

// Settle executes a pending offer. Both inventories are re-checked against
// their current contents, since balances may have changed since the proposal,
// and both transfers apply together or not at all. On success the offer is
// completed; settling it again fails with ErrAlreadyResolved and moves
// nothing.
func Settle(o *Offer, from, to *agents.Agent, now time.Time) error {
	if ExpireIfPast(o, now) {
		return ErrExpired
	}
	if o.Status != Pending {
		return fmt.Errorf("%w: status %s", ErrAlreadyResolved, o.Status)
	}
	if !from.Inventory.Covers(o.Offering) {
		return &FundsError{AgentID: from.ID, Missing: from.Inventory.Missing(o.Offering)}
	}
	if !to.Inventory.Covers(o.Requesting) {
		return &FundsError{AgentID: to.ID, Missing: to.Inventory.Missing(o.Requesting)}
	}

	// Compute both sides before assigning either.
	newFrom, _ := from.Inventory.Deduct(o.Offering)
	newFrom = newFrom.Plus(o.Requesting)
	newTo, _ := to.Inventory.Deduct(o.Requesting)
	newTo = newTo.Plus(o.Offering)

	from.Inventory = newFrom
	to.Inventory = newTo
	from.Stats.TradesCompleted++
	to.Stats.TradesCompleted++
	o.Status = Completed
	return nil
}

// Reject declines a pending offer. Only legal from pending.
func Reject(o *Offer) error {
	if o.Status != Pending {
		return fmt.Errorf("%w: status %s", ErrAlreadyResolved, o.Status)
	}
	o.Status = Rejected
	return nil
}
