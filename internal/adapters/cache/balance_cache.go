package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// balanceTTL is how long a wallet snapshot may serve reads before falling
// back to the database. Every ledger mutation invalidates early.
const balanceTTL = 300 * time.Second

type balanceSnapshot struct {
	Balance   float64 `json:"balance"`
	Available float64 `json:"available"`
	Frozen    float64 `json:"frozen"`
}

// BalanceCache stores short-TTL wallet balance snapshots in Redis under
// wallet:{walletId}.
type BalanceCache struct {
	client *redis.Client
	logger zerolog.Logger
}

type BalanceCacheParams struct {
	RedisClient *redis.Client
	Logger      zerolog.Logger
}

// NewBalanceCache creates a new balance cache
func NewBalanceCache(params BalanceCacheParams) *BalanceCache {
	return &BalanceCache{
		client: params.RedisClient,
		logger: params.Logger.With().Str("component", "balance_cache").Logger(),
	}
}

func balanceKey(walletID uuid.UUID) string {
	return fmt.Sprintf("wallet:%s", walletID)
}

// Get returns a cached balance snapshot if one is fresh
func (c *BalanceCache) Get(ctx context.Context, walletID uuid.UUID) (balance, available, frozen float64, ok bool) {
	raw, err := c.client.Get(ctx, balanceKey(walletID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Error().Err(err).Str("wallet_id", walletID.String()).Msg("Failed to read balance cache")
		}
		return 0, 0, 0, false
	}

	var snap balanceSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		c.logger.Error().Err(err).Str("wallet_id", walletID.String()).Msg("Corrupt balance snapshot, dropping")
		c.client.Del(ctx, balanceKey(walletID))
		return 0, 0, 0, false
	}
	return snap.Balance, snap.Available, snap.Frozen, true
}

// Set stores a balance snapshot with the standard TTL
func (c *BalanceCache) Set(ctx context.Context, walletID uuid.UUID, balance, available, frozen float64) error {
	raw, err := json.Marshal(balanceSnapshot{Balance: balance, Available: available, Frozen: frozen})
	if err != nil {
		return fmt.Errorf("failed to marshal balance snapshot: %w", err)
	}
	return c.client.Set(ctx, balanceKey(walletID), raw, balanceTTL).Err()
}

// Invalidate drops the snapshot after a ledger mutation
func (c *BalanceCache) Invalidate(ctx context.Context, walletID uuid.UUID) error {
	return c.client.Del(ctx, balanceKey(walletID)).Err()
}
