package collection

import (
	"log/slog"
	"sync"

	"github.com/CesarCosmico/fishing-stats/pkg/config"
)

// CategoryCache provides O(1) in-memory lookups for the fixed item
// collections that back progress leaderboards ("how many members of this
// category has the player ever obtained").
// The member lists are built from configuration and treated as immutable
// between reloads.
type CategoryCache struct {
	membersByCategory map[string][]string
	mu                sync.RWMutex
	logger            *slog.Logger
}

// NewCategoryCache creates a cache from the validated configuration.
// The cache is immediately built and ready for lookups.
func NewCategoryCache(cfg *config.Config, logger *slog.Logger) *CategoryCache {
	c := &CategoryCache{
		membersByCategory: make(map[string][]string),
		logger:            logger,
	}
	c.build(cfg)
	return c
}

// build constructs the member index from the configuration, replacing any
// existing data. Member slices are copied so later config mutation cannot
// leak into the cache.
func (c *CategoryCache) build(cfg *config.Config) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.membersByCategory = make(map[string][]string, len(cfg.Collections))
	totalMembers := 0
	for category, members := range cfg.Collections {
		copied := make([]string, len(members))
		copy(copied, members)
		c.membersByCategory[category] = copied
		totalMembers += len(copied)
	}

	c.logger.Info("Category cache built",
		"categories", len(c.membersByCategory),
		"members", totalMembers,
	)
}

// Members returns the member item IDs of a category, or an empty slice if
// the category has no configured collection.
// Time complexity: O(1)
func (c *CategoryCache) Members(category string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	members := c.membersByCategory[category]
	if members == nil {
		return []string{}
	}
	// Safe to return directly - member lists are immutable between reloads.
	return members
}

// AllCategories returns the names of every configured collection.
func (c *CategoryCache) AllCategories() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	categories := make([]string, 0, len(c.membersByCategory))
	for category := range c.membersByCategory {
		categories = append(categories, category)
	}
	return categories
}

// IsValidCategory reports whether a collection is configured for the
// category.
func (c *CategoryCache) IsValidCategory(category string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.membersByCategory[category]
	return ok
}

// Reload rebuilds the cache from a freshly loaded configuration.
func (c *CategoryCache) Reload(cfg *config.Config) {
	c.build(cfg)
	c.logger.Info("Category cache reloaded")
}
