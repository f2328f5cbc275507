package domain

import (
	"github.com/google/uuid"
)

// PlayerRecord holds one player's tracked statistics as a nested
// type -> category -> slot -> count structure. The TotalSlot key inside a
// category carries the category aggregate; every other slot is a per-item
// count.
//
// Example:
//
//	"recycling" -> {"legendary" -> {"total": 150, "ancient_sword": 50, "divine_rod": 100}}
//	"competition" -> {"suma_total" -> {"total": 500}}
//
// A PlayerRecord is not safe for concurrent use by itself; the tiered store
// serializes all access to records it owns.
type PlayerRecord struct {
	ID       uuid.UUID
	Name     string
	Contexts map[string]map[string]map[string]int
}

// NewPlayerRecord creates an empty record for the given player.
func NewPlayerRecord(id uuid.UUID, name string) *PlayerRecord {
	return &PlayerRecord{
		ID:       id,
		Name:     name,
		Contexts: make(map[string]map[string]map[string]int),
	}
}

// AddStats applies an increment described by the context: the category total
// always grows by Amount, and the item slot grows too when an item is set.
func (r *PlayerRecord) AddStats(c StatContext) {
	typeData, ok := r.Contexts[c.Type]
	if !ok {
		typeData = make(map[string]map[string]int)
		r.Contexts[c.Type] = typeData
	}
	categoryData, ok := typeData[c.Category]
	if !ok {
		categoryData = make(map[string]int)
		typeData[c.Category] = categoryData
	}

	categoryData[TotalSlot] += c.Amount
	if c.HasItem() {
		categoryData[c.Item] += c.Amount
	}
}

// RemoveStats applies a decrement described by the context. Slots are clamped
// at zero and removed when they reach it; a category that ends up empty is
// pruned, and a type whose last category is pruned is removed entirely.
func (r *PlayerRecord) RemoveStats(c StatContext) {
	typeData, ok := r.Contexts[c.Type]
	if !ok {
		return
	}
	categoryData, ok := typeData[c.Category]
	if !ok {
		return
	}

	decrementSlot(categoryData, TotalSlot, c.Amount)
	if c.HasItem() {
		decrementSlot(categoryData, c.Item, c.Amount)
	}

	if len(categoryData) == 0 {
		delete(typeData, c.Category)
	}
	if len(typeData) == 0 {
		delete(r.Contexts, c.Type)
	}
}

// decrementSlot subtracts amount from a slot, clamping at zero. Zero-valued
// slots are deleted so no zero leaves persist.
func decrementSlot(categoryData map[string]int, slot string, amount int) {
	next := categoryData[slot] - amount
	if next > 0 {
		categoryData[slot] = next
	} else {
		delete(categoryData, slot)
	}
}

// CategoryTotal returns the aggregate count for a type/category pair, or 0.
func (r *PlayerRecord) CategoryTotal(statType, category string) int {
	if categoryData, ok := r.Contexts[statType][category]; ok {
		return categoryData[TotalSlot]
	}
	return 0
}

// ItemAmount returns the count for a specific item in a type/category pair.
func (r *PlayerRecord) ItemAmount(statType, category, itemID string) int {
	if categoryData, ok := r.Contexts[statType][category]; ok {
		return categoryData[itemID]
	}
	return 0
}

// TypeTotal sums the category totals of every category under a type.
func (r *PlayerRecord) TypeTotal(statType string) int {
	total := 0
	for _, categoryData := range r.Contexts[statType] {
		total += categoryData[TotalSlot]
	}
	return total
}

// CategoriesOf returns the category names present under a type.
func (r *PlayerRecord) CategoriesOf(statType string) []string {
	typeData := r.Contexts[statType]
	categories := make([]string, 0, len(typeData))
	for category := range typeData {
		categories = append(categories, category)
	}
	return categories
}

// Types returns all statistic types present in the record.
func (r *PlayerRecord) Types() []string {
	types := make([]string, 0, len(r.Contexts))
	for statType := range r.Contexts {
		types = append(types, statType)
	}
	return types
}

// IsEmpty returns true when the record holds no counters at all.
func (r *PlayerRecord) IsEmpty() bool {
	return len(r.Contexts) == 0
}

// Clone returns a deep copy of the record. The tiered store hands out clones
// so callers never observe a record while another goroutine mutates it.
func (r *PlayerRecord) Clone() *PlayerRecord {
	clone := NewPlayerRecord(r.ID, r.Name)
	for statType, typeData := range r.Contexts {
		typeCopy := make(map[string]map[string]int, len(typeData))
		for category, categoryData := range typeData {
			categoryCopy := make(map[string]int, len(categoryData))
			for slot, count := range categoryData {
				categoryCopy[slot] = count
			}
			typeCopy[category] = categoryCopy
		}
		clone.Contexts[statType] = typeCopy
	}
	return clone
}
