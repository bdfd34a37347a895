package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikey/inbox-intel/internal/core"
	"go.uber.org/zap"
)

// SQLiteCache is a SQLite implementation of the IntelligenceCache interface,
// for deployments that want cached briefs to survive restarts. The result
// bundle is stored as a JSON blob keyed by user.
type SQLiteCache struct {
	db          *sql.DB
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
}

// NewSQLiteCache creates a new SQLite cache
func NewSQLiteCache(dbPath string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS intel_cache (
			user_email TEXT PRIMARY KEY,
			result_json TEXT,
			cached_at TIMESTAMP,
			expires_at TIMESTAMP
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_intel_expires_at ON intel_cache(expires_at)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	cache := &SQLiteCache{
		db:          db,
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}

	if cleanupFreq > 0 {
		go cache.startCleanupTask()
	}

	return cache, nil
}

// Get retrieves a cached result for a user; an expired row is deleted and
// reported as a miss
func (c *SQLiteCache) Get(ctx context.Context, userEmail string) (*core.IntelligenceResult, bool) {
	var resultJSON, expiresAt string

	err := c.db.QueryRowContext(ctx, `
		SELECT result_json, expires_at
		FROM intel_cache
		WHERE user_email = ?
	`, userEmail).Scan(&resultJSON, &expiresAt)
	if err != nil {
		if err != sql.ErrNoRows {
			c.logger.Error("Failed to query cache", zap.Error(err), zap.String("user", userEmail))
		}
		return nil, false
	}

	expiry, err := time.Parse(time.RFC3339, expiresAt)
	if err != nil || time.Now().After(expiry) {
		if _, err := c.db.ExecContext(ctx, `DELETE FROM intel_cache WHERE user_email = ?`, userEmail); err != nil {
			c.logger.Error("Failed to delete expired cache row", zap.Error(err))
		}
		return nil, false
	}

	var result core.IntelligenceResult
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		c.logger.Error("Failed to decode cached result", zap.Error(err), zap.String("user", userEmail))
		return nil, false
	}
	return &result, true
}

// Set stores a result with the given TTL, replacing any prior row
func (c *SQLiteCache) Set(ctx context.Context, userEmail string, result *core.IntelligenceResult, ttl time.Duration) {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		c.logger.Error("Failed to encode result for cache", zap.Error(err), zap.String("user", userEmail))
		return
	}

	now := time.Now()
	_, err = c.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO intel_cache (user_email, result_json, cached_at, expires_at)
		VALUES (?, ?, ?, ?)
	`, userEmail, string(resultJSON), now.Format(time.RFC3339), now.Add(ttl).Format(time.RFC3339))
	if err != nil {
		c.logger.Error("Failed to insert cache row", zap.Error(err), zap.String("user", userEmail))
	}
}

// Invalidate removes a user's row, reporting whether one existed
func (c *SQLiteCache) Invalidate(ctx context.Context, userEmail string) bool {
	res, err := c.db.ExecContext(ctx, `
		DELETE FROM intel_cache
		WHERE user_email = ?
	`, userEmail)
	if err != nil {
		c.logger.Error("Failed to invalidate cache row", zap.Error(err), zap.String("user", userEmail))
		return false
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false
	}
	return affected > 0
}

// CleanupExpired removes expired rows and returns how many were dropped
func (c *SQLiteCache) CleanupExpired(ctx context.Context) int {
	res, err := c.db.ExecContext(ctx, `
		DELETE FROM intel_cache
		WHERE expires_at <= ?
	`, time.Now().Format(time.RFC3339))
	if err != nil {
		c.logger.Error("Failed to clean up cache", zap.Error(err))
		return 0
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	if affected > 0 {
		c.logger.Debug("Cleaned up expired cache rows", zap.Int64("expired_count", affected))
	}
	return int(affected)
}

func (c *SQLiteCache) startCleanupTask() {
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
func (c *SQLiteCache) Stop() {
	close(c.stopCh)
}

// Close closes the underlying database
func (c *SQLiteCache) Close() error {
	return c.db.Close()
}
