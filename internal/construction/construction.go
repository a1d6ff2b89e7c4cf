// Package construction validates building affordability against the recipe
// table and commits building records with their cost deducted atomically.
package construction

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/villagers/internal/economy"
	"github.com/talgya/villagers/internal/world"
)

// Building types.
const (
	House    = "house"
	Workshop = "workshop"
	Storage  = "storage"
	Market   = "market"
	Tower    = "tower"
)

// Building is a committed, owned structure.
// Health and Progress stay within [0,100].
type Building struct {
	ID       string         `json:"id"`
	Kind     string         `json:"kind"`
	Pos      world.Position `json:"position"`
	OwnerID  string         `json:"owner_id"`
	Level    int            `json:"level"`
	Health   float64        `json:"health"`
	Progress float64        `json:"construction_progress"`
	BuiltAt  time.Time      `json:"built_at"`
}

// Recipe is the immutable cost sheet for one building type.
type Recipe struct {
	Cost      economy.Inventory
	BuildTime time.Duration // advisory only; construction commits instantly
	MaxLevel  int
}

// Recipes is the static recipe table.
var Recipes = map[string]Recipe{
	House:    {Cost: economy.Inventory{Wood: 10, Stone: 5}, BuildTime: 10 * time.Second, MaxLevel: 3},
	Workshop: {Cost: economy.Inventory{Wood: 15, Stone: 10, Gold: 2}, BuildTime: 15 * time.Second, MaxLevel: 5},
	Storage:  {Cost: economy.Inventory{Wood: 20, Stone: 15}, BuildTime: 12 * time.Second, MaxLevel: 3},
	Market:   {Cost: economy.Inventory{Wood: 25, Stone: 20, Gold: 5}, BuildTime: 20 * time.Second, MaxLevel: 2},
	Tower:    {Cost: economy.Inventory{Wood: 30, Stone: 40, Gold: 10}, BuildTime: 30 * time.Second, MaxLevel: 3},
}

// ErrUnknownBuilding reports a building type missing from the recipe table.
var ErrUnknownBuilding = errors.New("unknown building type")

// InsufficientError carries the per-commodity shortfall of a failed build.
type InsufficientError struct {
	Missing economy.Inventory
}

func (e *InsufficientError) Error() string {
	return fmt.Sprintf("insufficient resources: missing %s", e.Missing)
}

// CanAfford reports whether inv covers the recipe for kind, and the
// shortfall when it does not.
func CanAfford(inv economy.Inventory, kind string) (bool, economy.Inventory, error) {
	recipe, ok := Recipes[kind]
	if !ok {
		return false, economy.Inventory{}, fmt.Errorf("%w: %q", ErrUnknownBuilding, kind)
	}
	missing := inv.Missing(recipe.Cost)
	return missing.IsZero(), missing, nil
}

// Build deducts the recipe cost from a copy of inv and returns the committed
// building alongside the reduced inventory. The caller's inventory is
// untouched on failure: either both the building and the deduction happen,
// or neither does.
func Build(inv economy.Inventory, kind string, pos world.Position, ownerID string, now time.Time) (*Building, economy.Inventory, error) {
	ok, missing, err := CanAfford(inv, kind)
	if err != nil {
		return nil, inv, err
	}
	if !ok {
		return nil, inv, &InsufficientError{Missing: missing}
	}

	reduced, _ := inv.Deduct(Recipes[kind].Cost)
	b := &Building{
		ID:       uuid.NewString(),
		Kind:     kind,
		Pos:      pos,
		OwnerID:  ownerID,
		Level:    1,
		Health:   100,
		Progress: 100,
		BuiltAt:  now,
	}
	return b, reduced, nil
}

// PlacementRule optionally vetoes a building position. Spacing policy lives
// outside the core engine, so callers plug one in when they want it.
type PlacementRule func(pos world.Position, existing []*Building) error

// MinDistanceRule rejects positions closer than minDist to any existing
// building.
func MinDistanceRule(minDist int) PlacementRule {
	return func(pos world.Position, existing []*Building) error {
		for _, b := range existing {
			if world.Distance(pos, b.Pos) < minDist {
				return fmt.Errorf("too close to %s at (%d,%d)", b.Kind, b.Pos.X, b.Pos.Y)
			}
		}
		return nil
	}
}

// CheapestAffordable returns the lowest-value recipe inv can cover, or ""
// when nothing is affordable. CheapestRecipe returns the lowest-value recipe
// overall. Both walk the table in a fixed order so ties resolve
// deterministically.
func CheapestAffordable(inv economy.Inventory) string {
	best := ""
	bestValue := 0.0
	for _, kind := range kindOrder {
		recipe := Recipes[kind]
		if !inv.Covers(recipe.Cost) {
			continue
		}
		v := economy.Valuate(recipe.Cost)
		if best == "" || v < bestValue {
			best, bestValue = kind, v
		}
	}
	return best
}

// CheapestRecipe returns the building type with the lowest total cost value.
func CheapestRecipe() string {
	best := ""
	bestValue := 0.0
	for _, kind := range kindOrder {
		v := economy.Valuate(Recipes[kind].Cost)
		if best == "" || v < bestValue {
			best, bestValue = kind, v
		}
	}
	return best
}

var kindOrder = []string{House, Workshop, Storage, Market, Tower}
