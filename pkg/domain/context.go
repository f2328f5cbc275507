package domain

// TotalSlot is the reserved slot key holding a category's aggregate count.
// All other slot keys are item identifiers.
const TotalSlot = "total"

// StatContext describes a single tracked statistic mutation: which type and
// category it belongs to, how much to add or remove, and optionally which
// item it concerns.
//
// Examples:
//   - {Type: "recycling", Category: "common", Amount: 5, Item: "bamboo"}
//   - {Type: "competition", Category: "top_one", Amount: 1}
type StatContext struct {
	Type     string
	Category string
	Item     string
	Amount   int
}

// HasItem returns true if the context targets a specific item in addition
// to the category total.
func (c StatContext) HasItem() bool {
	return c.Item != ""
}

// WithAmount returns a copy of the context with a different amount.
// Used when a removal is clamped to the currently stored count.
func (c StatContext) WithAmount(amount int) StatContext {
	c.Amount = amount
	return c
}
