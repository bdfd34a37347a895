package cache

import (
	"context"
	"sync"
	"time"

	"github.com/mikey/inbox-intel/internal/core"
	"go.uber.org/zap"
)

// MemoryCache is an in-memory implementation of the IntelligenceCache
// interface. Reads self-heal: a present-but-expired entry is treated as a
// miss and deleted on the spot, so the background sweep is an optimization,
// not a correctness requirement.
type MemoryCache struct {
	entries     map[string]*core.CacheEntry
	mu          sync.Mutex
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
	now         func() time.Time
}

// NewMemoryCache creates a new in-memory cache. A cleanupFreq of zero
// disables the background sweep.
func NewMemoryCache(logger *zap.Logger, cleanupFreq time.Duration) *MemoryCache {
	cache := &MemoryCache{
		entries:     make(map[string]*core.CacheEntry),
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
		now:         time.Now,
	}

	if cleanupFreq > 0 {
		go cache.startCleanupTask()
	}

	return cache
}

// Get retrieves a cached result for a user. Expired entries are deleted and
// reported as a miss.
func (c *MemoryCache) Get(ctx context.Context, userEmail string) (*core.IntelligenceResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[userEmail]
	if !ok {
		return nil, false
	}
	if entry.Expired(c.now()) {
		delete(c.entries, userEmail)
		return nil, false
	}
	return entry.Result, true
}

// Set stores a result with the given TTL, replacing any prior entry
// wholesale
func (c *MemoryCache) Set(ctx context.Context, userEmail string, result *core.IntelligenceResult, ttl time.Duration) {
	now := c.now()
	entry := &core.CacheEntry{
		UserEmail: userEmail,
		Result:    result,
		CachedAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[userEmail] = entry
}

// Invalidate removes a user's entry, reporting whether one existed
func (c *MemoryCache) Invalidate(ctx context.Context, userEmail string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, existed := c.entries[userEmail]
	delete(c.entries, userEmail)
	return existed
}

// CleanupExpired removes expired entries and returns how many were dropped
func (c *MemoryCache) CleanupExpired(ctx context.Context) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	expiredCount := 0
	for key, entry := range c.entries {
		if entry.Expired(now) {
			delete(c.entries, key)
			expiredCount++
		}
	}

	if expiredCount > 0 {
		c.logger.Debug("Cleaned up expired cache entries", zap.Int("expired_count", expiredCount))
	}
	return expiredCount
}

// startCleanupTask starts a background task to clean up expired entries
func (c *MemoryCache) startCleanupTask() {
	ticker := time.NewTicker(c.cleanupFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.CleanupExpired(context.Background())
		case <-c.stopCh:
			return
		}
	}
}

// Stop stops the background cleanup task
func (c *MemoryCache) Stop() {
	close(c.stopCh)
}
