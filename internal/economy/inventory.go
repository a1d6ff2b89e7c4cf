// Package economy provides the four-commodity inventory type, the resource
// value table, and the affordability rules shared by construction and trade.
package economy

import "fmt"

// Kind identifies one of the four tradeable commodities.
type Kind string

const (
	Wood  Kind = "wood"
	Stone Kind = "stone"
	Food  Kind = "food"
	Gold  Kind = "gold"
)

// Kinds lists all commodities in canonical order.
var Kinds = []Kind{Wood, Stone, Food, Gold}

// Valid reports whether k names a known commodity.
func Valid(k Kind) bool {
	switch k {
	case Wood, Stone, Food, Gold:
		return true
	}
	return false
}

// Inventory holds commodity quantities. The zero value is an empty inventory.
// Quantities must never go negative; every deduction goes through Deduct,
// which refuses rather than underflows. Value semantics keep callers'
// inventories untouched until they assign the returned copy.
type Inventory struct {
	Wood  float64 `json:"wood"`
	Stone float64 `json:"stone"`
	Food  float64 `json:"food"`
	Gold  float64 `json:"gold"`
}

// Get returns the quantity held of kind k.
func (inv Inventory) Get(k Kind) float64 {
	switch k {
	case Wood:
		return inv.Wood
	case Stone:
		return inv.Stone
	case Food:
		return inv.Food
	case Gold:
		return inv.Gold
	}
	return 0
}

// Add increases the quantity of kind k by n.
func (inv *Inventory) Add(k Kind, n float64) {
	switch k {
	case Wood:
		inv.Wood += n
	case Stone:
		inv.Stone += n
	case Food:
		inv.Food += n
	case Gold:
		inv.Gold += n
	}
}

// Covers reports whether every quantity in cost is held.
func (inv Inventory) Covers(cost Inventory) bool {
	for _, k := range Kinds {
		if inv.Get(k) < cost.Get(k) {
			return false
		}
	}
	return true
}

// Missing returns, per commodity, max(0, cost-held). A zero result means the
// cost is affordable.
func (inv Inventory) Missing(cost Inventory) Inventory {
	var m Inventory
	for _, k := range Kinds {
		if short := cost.Get(k) - inv.Get(k); short > 0 {
			m.Add(k, short)
		}
	}
	return m
}

// Deduct returns a copy of inv with cost removed. It reports false and
// returns inv unchanged when the cost is not covered.
func (inv Inventory) Deduct(cost Inventory) (Inventory, bool) {
	if !inv.Covers(cost) {
		return inv, false
	}
	out := inv
	for _, k := range Kinds {
		out.Add(k, -cost.Get(k))
	}
	return out, true
}

// Plus returns a copy of inv with b added.
func (inv Inventory) Plus(b Inventory) Inventory {
	out := inv
	for _, k := range Kinds {
		out.Add(k, b.Get(k))
	}
	return out
}

// IsZero reports whether every quantity is zero.
func (inv Inventory) IsZero() bool {
	return inv == Inventory{}
}

func (inv Inventory) String() string {
	return fmt.Sprintf("wood:%g stone:%g food:%g gold:%g", inv.Wood, inv.Stone, inv.Food, inv.Gold)
}
