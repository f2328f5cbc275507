// Package globalstats maintains the server-wide aggregate counters: the same
// type -> category -> slot structure as a player record, summed across every
// player that ever contributed.
package globalstats

import (
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/CesarCosmico/fishing-stats/pkg/domain"
	"github.com/CesarCosmico/fishing-stats/pkg/errors"
)

type globalFile struct {
	Contexts map[string]map[string]categoryFile `yaml:"contexts"`
}

type categoryFile struct {
	Total int            `yaml:"total"`
	Items map[string]int `yaml:"items,omitempty"`
}

// Store is the server-wide aggregate counter store. All methods are safe for
// concurrent use. Mutations mark the store dirty; FlushIfDirty persists only
// when something actually changed since the last flush.
type Store struct {
	path   string
	logger *slog.Logger

	mu    sync.RWMutex
	stats map[string]map[string]map[string]int
	dirty bool
}

// NewStore creates an empty aggregate store persisted at path.
func NewStore(path string, logger *slog.Logger) *Store {
	return &Store{
		path:   path,
		logger: logger,
		stats:  make(map[string]map[string]map[string]int),
	}
}

// Load reads the persisted aggregates, replacing the in-memory state. Two
// file shapes are accepted: the current nested "contexts" document, and the
// legacy flat document whose top-level keys are "type:category" pairs mapped
// to a bare total. A legacy file marks the store dirty so the next flush
// rewrites it in the current shape.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.ErrLoadFailed("global stats", err)
	}

	var file globalFile
	if err := yaml.Unmarshal(data, &file); err == nil && file.Contexts != nil {
		s.mu.Lock()
		s.stats = make(map[string]map[string]map[string]int, len(file.Contexts))
		for statType, categories := range file.Contexts {
			typeData := make(map[string]map[string]int, len(categories))
			for category, cat := range categories {
				categoryData := make(map[string]int, len(cat.Items)+1)
				categoryData[domain.TotalSlot] = cat.Total
				for itemID, count := range cat.Items {
					categoryData[itemID] = count
				}
				typeData[category] = categoryData
			}
			s.stats[statType] = typeData
		}
		s.dirty = false
		s.mu.Unlock()
		return nil
	}

	var legacy map[string]int
	if err := yaml.Unmarshal(data, &legacy); err != nil {
		return errors.ErrLoadFailed("global stats", err)
	}

	s.mu.Lock()
	s.stats = make(map[string]map[string]map[string]int)
	for key, total := range legacy {
		statType, category, ok := strings.Cut(key, ":")
		if !ok || total == 0 {
			continue
		}
		typeData, present := s.stats[statType]
		if !present {
			typeData = make(map[string]map[string]int)
			s.stats[statType] = typeData
		}
		typeData[category] = map[string]int{domain.TotalSlot: total}
	}
	s.dirty = true
	s.mu.Unlock()

	s.logger.Info("Upgraded legacy global stats format", "entries", len(legacy))
	return nil
}

// Increment applies the context's addition to the server-wide aggregates.
func (s *Store) Increment(c domain.StatContext) {
	s.mu.Lock()
	defer s.mu.Unlock()

	typeData, ok := s.stats[c.Type]
	if !ok {
		typeData = make(map[string]map[string]int)
		s.stats[c.Type] = typeData
	}
	categoryData, ok := typeData[c.Category]
	if !ok {
		categoryData = make(map[string]int)
		typeData[c.Category] = categoryData
	}

	categoryData[domain.TotalSlot] += c.Amount
	if c.HasItem() {
		categoryData[c.Item] += c.Amount
	}
	s.dirty = true
}

// Decrement applies the context's removal to the server-wide aggregates,
// clamping at zero and pruning slots, categories and types that reach it.
func (s *Store) Decrement(c domain.StatContext) {
	s.mu.Lock()
	defer s.mu.Unlock()

	typeData, ok := s.stats[c.Type]
	if !ok {
		return
	}
	categoryData, ok := typeData[c.Category]
	if !ok {
		return
	}

	decrementSlot(categoryData, domain.TotalSlot, c.Amount)
	if c.HasItem() {
		decrementSlot(categoryData, c.Item, c.Amount)
	}

	if len(categoryData) == 0 {
		delete(typeData, c.Category)
	}
	if len(typeData) == 0 {
		delete(s.stats, c.Type)
	}
	s.dirty = true
}

func decrementSlot(categoryData map[string]int, slot string, amount int) {
	next := categoryData[slot] - amount
	if next > 0 {
		categoryData[slot] = next
	} else {
		delete(categoryData, slot)
	}
}

// RemoveCategory drops an entire type/category aggregate, e.g. when an admin
// wipes a competition season.
func (s *Store) RemoveCategory(statType, category string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	typeData, ok := s.stats[statType]
	if !ok {
		return
	}
	if _, ok := typeData[category]; !ok {
		return
	}
	delete(typeData, category)
	if len(typeData) == 0 {
		delete(s.stats, statType)
	}
	s.dirty = true
}

// CategoryTotal returns the server-wide total for a type/category pair.
func (s *Store) CategoryTotal(statType, category string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if categoryData, ok := s.stats[statType][category]; ok {
		return categoryData[domain.TotalSlot]
	}
	return 0
}

// CategoryItems returns a copy of the per-item counts for a type/category
// pair, excluding the total slot.
func (s *Store) CategoryItems(statType, category string) map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	categoryData, ok := s.stats[statType][category]
	if !ok {
		return nil
	}
	items := make(map[string]int, len(categoryData))
	for slot, count := range categoryData {
		if slot == domain.TotalSlot {
			continue
		}
		items[slot] = count
	}
	return items
}

// TypeTotal sums the category totals of every category under a type.
func (s *Store) TypeTotal(statType string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, categoryData := range s.stats[statType] {
		total += categoryData[domain.TotalSlot]
	}
	return total
}

// CategoriesOf returns the category names present under a type.
func (s *Store) CategoriesOf(statType string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	typeData := s.stats[statType]
	categories := make([]string, 0, len(typeData))
	for category := range typeData {
		categories = append(categories, category)
	}
	return categories
}

// AllTypes returns every statistic type with at least one aggregate.
func (s *Store) AllTypes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	types := make([]string, 0, len(s.stats))
	for statType := range s.stats {
		types = append(types, statType)
	}
	return types
}

// Save persists the aggregates unconditionally. Empty categories are omitted
// from the file.
func (s *Store) Save() error {
	s.mu.Lock()
	data, err := s.marshalLocked()
	s.dirty = false
	s.mu.Unlock()
	if err != nil {
		return errors.ErrSaveFailed("global stats", err)
	}

	if err := s.writeFile(data); err != nil {
		s.mu.Lock()
		s.dirty = true
		s.mu.Unlock()
		return err
	}
	return nil
}

// FlushIfDirty persists the aggregates only when a mutation happened since
// the last flush. Returns true when a write was performed.
func (s *Store) FlushIfDirty() (bool, error) {
	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return false, nil
	}
	data, err := s.marshalLocked()
	s.dirty = false
	s.mu.Unlock()
	if err != nil {
		return false, errors.ErrSaveFailed("global stats", err)
	}

	if err := s.writeFile(data); err != nil {
		// Keep the dirty flag so the next flush retries.
		s.mu.Lock()
		s.dirty = true
		s.mu.Unlock()
		return false, err
	}
	return true, nil
}

func (s *Store) marshalLocked() ([]byte, error) {
	file := globalFile{Contexts: make(map[string]map[string]categoryFile)}
	for statType, typeData := range s.stats {
		categories := make(map[string]categoryFile, len(typeData))
		for category, categoryData := range typeData {
			cat := categoryFile{Total: categoryData[domain.TotalSlot]}
			for slot, count := range categoryData {
				if slot == domain.TotalSlot {
					continue
				}
				if cat.Items == nil {
					cat.Items = make(map[string]int)
				}
				cat.Items[slot] = count
			}
			if cat.Total == 0 && len(cat.Items) == 0 {
				continue
			}
			categories[category] = cat
		}
		if len(categories) > 0 {
			file.Contexts[statType] = categories
		}
	}
	return yaml.Marshal(&file)
}

func (s *Store) writeFile(data []byte) error {
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.ErrSaveFailed("global stats", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return errors.ErrSaveFailed("global stats", err)
	}
	return nil
}
