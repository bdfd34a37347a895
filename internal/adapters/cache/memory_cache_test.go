package cache

import (
	"context"
	"testing"
	"time"

	"github.com/mikey/inbox-intel/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCache(now *time.Time) *MemoryCache {
	c := NewMemoryCache(zap.NewNop(), 0)
	c.now = func() time.Time { return *now }
	return c
}

func testResult(email string) *core.IntelligenceResult {
	return &core.IntelligenceResult{
		UserEmail:   email,
		GeneratedAt: time.Now(),
	}
}

func TestCacheRoundTrip(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCache(&now)
	ctx := context.Background()

	_, ok := c.Get(ctx, "a@example.com")
	assert.False(t, ok)

	c.Set(ctx, "a@example.com", testResult("a@example.com"), 30*time.Minute)

	got, ok := c.Get(ctx, "a@example.com")
	require.True(t, ok)
	assert.Equal(t, "a@example.com", got.UserEmail)
}

func TestCacheExpiredEntryIsAMissAndSelfHeals(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCache(&now)
	ctx := context.Background()

	c.Set(ctx, "a@example.com", testResult("a@example.com"), 30*time.Minute)

	now = now.Add(31 * time.Minute)
	_, ok := c.Get(ctx, "a@example.com")
	assert.False(t, ok)

	// The expired entry was removed on read, so a sweep finds nothing.
	assert.Zero(t, c.CleanupExpired(ctx))
}

func TestCacheSetReplacesWholesale(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCache(&now)
	ctx := context.Background()

	first := testResult("a@example.com")
	c.Set(ctx, "a@example.com", first, time.Minute)

	second := testResult("a@example.com")
	second.Contexts = []core.BusinessContext{{Name: "new"}}
	c.Set(ctx, "a@example.com", second, time.Hour)

	got, ok := c.Get(ctx, "a@example.com")
	require.True(t, ok)
	assert.Len(t, got.Contexts, 1)
}

func TestCacheInvalidate(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCache(&now)
	ctx := context.Background()

	assert.False(t, c.Invalidate(ctx, "a@example.com"))

	c.Set(ctx, "a@example.com", testResult("a@example.com"), time.Hour)
	assert.True(t, c.Invalidate(ctx, "a@example.com"))

	_, ok := c.Get(ctx, "a@example.com")
	assert.False(t, ok)
}

func TestCleanupExpiredCountsOnlyExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := newTestCache(&now)
	ctx := context.Background()

	c.Set(ctx, "short@example.com", testResult("short@example.com"), time.Minute)
	c.Set(ctx, "long@example.com", testResult("long@example.com"), time.Hour)

	now = now.Add(10 * time.Minute)
	assert.Equal(t, 1, c.CleanupExpired(ctx))

	_, ok := c.Get(ctx, "long@example.com")
	assert.True(t, ok)
}
