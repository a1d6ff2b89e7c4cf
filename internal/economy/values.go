package economy

// values is the fixed commodity value table used for trade fairness.
// Gold is the scarce store of value; food is plentiful and cheap.
var values = map[Kind]float64{
	Wood:  1,
	Stone: 1.5,
	Food:  0.8,
	Gold:  5,
}

// Value returns the unit value of kind k.
func Value(k Kind) float64 {
	return values[k]
}

// Valuate sums amount * unit value over a commodity bundle.
func Valuate(b Inventory) float64 {
	var total float64
	for _, k := range Kinds {
		total += b.Get(k) * Value(k)
	}
	return total
}

// gatherYields is the per-action harvest for each commodity. Food comes in
// twos; everything else one unit per gather.
var gatherYields = map[Kind]float64{
	Wood:  1,
	Stone: 1,
	Food:  2,
	Gold:  1,
}

// GatherYield returns how many units a single gather action can take from a
// node of kind k.
func GatherYield(k Kind) float64 {
	return gatherYields[k]
}

// StartingInventory is what a freshly spawned villager carries.
func StartingInventory() Inventory {
	return Inventory{Wood: 10, Stone: 10, Food: 20, Gold: 5}
}
