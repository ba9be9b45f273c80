package redis

import (
	"context"
	"fmt"
	"time"

	"wallet-service/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// LedgerCache implements ports.LedgerCache. Entries are markers only; the
// applied_transactions table stays the source of truth.
type LedgerCache struct {
	client *goredis.Client
	prefix string
}

// NewLedgerCache creates a new Redis-backed ledger cache.
func NewLedgerCache(client *goredis.Client) *LedgerCache {
	return &LedgerCache{
		client: client,
		prefix: "wallet:",
	}
}

// IsApplied reports whether transactionID was marked applied and has not expired.
func (c *LedgerCache) IsApplied(ctx context.Context, transactionID string) (bool, error) {
	n, err := c.client.Exists(ctx, c.key(transactionID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis ledger exists: %w", err)
	}
	return n == 1, nil
}

// MarkApplied records transactionID for ttl.
func (c *LedgerCache) MarkApplied(ctx context.Context, transactionID string, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.key(transactionID), 1, ttl).Err(); err != nil {
		return fmt.Errorf("redis ledger set: %w", err)
	}
	return nil
}

func (c *LedgerCache) key(transactionID string) string {
	return c.prefix + domain.BuildLedgerKey(transactionID)
}
