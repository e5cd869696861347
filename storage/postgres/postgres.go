// Package postgres provides a PostgreSQL implementation of the quota.Storage
// interface using a pgx connection pool.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/revlinehq/scotty/pkg/quota"
)

// Storage implements quota.Storage using PostgreSQL.
type Storage struct {
	pool   *pgxpool.Pool
	config Config
}

// Config holds PostgreSQL storage configuration.
type Config struct {
	// ConnectionString is the PostgreSQL connection string
	ConnectionString string

	// Pool configuration
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}
}

// New creates a new PostgreSQL storage adapter.
func New(ctx context.Context, config Config) (*Storage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required")
	}

	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	if config.MaxConns > 0 {
		poolConfig.MaxConns = config.MaxConns
	}
	if config.MinConns > 0 {
		poolConfig.MinConns = config.MinConns
	}
	if config.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = config.MaxConnLifetime
	}
	if config.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = config.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Storage{pool: pool, config: config}, nil
}

// Close closes the PostgreSQL connection pool.
func (s *Storage) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks the PostgreSQL connection.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// GetUsage implements quota.Storage.
func (s *Storage) GetUsage(ctx context.Context, userID string, feature quota.Feature) (*quota.Usage, error) {
	var usage quota.Usage
	var feat string

	err := s.pool.QueryRow(ctx,
		`SELECT user_id, feature, period_key, count, updated_at
			FROM usage_counters WHERE user_id = $1 AND feature = $2`,
		userID, string(feature)).Scan(
		&usage.UserID,
		&feat,
		&usage.PeriodKey,
		&usage.Count,
		&usage.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, quota.ErrUsageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get usage: %w", err)
	}

	usage.Feature = quota.Feature(feat)
	return &usage, nil
}

// PutUsage implements quota.Storage. The upsert overwrites the stored
// count and period key; callers own the read-modify-write cycle.
func (s *Storage) PutUsage(ctx context.Context, usage *quota.Usage) error {
	if usage == nil || usage.UserID == "" {
		return fmt.Errorf("invalid usage record")
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO usage_counters (user_id, feature, period_key, count, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (user_id, feature) DO UPDATE SET
				period_key = EXCLUDED.period_key,
				count = EXCLUDED.count,
				updated_at = EXCLUDED.updated_at`,
		usage.UserID, string(usage.Feature), usage.PeriodKey, usage.Count, usage.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to put usage: %w", err)
	}
	return nil
}

// GetEntitlement implements quota.Storage.
func (s *Storage) GetEntitlement(ctx context.Context, userID string) (*quota.Entitlement, error) {
	var ent quota.Entitlement
	var tier string
	var expiresAt *time.Time

	err := s.pool.QueryRow(ctx,
		`SELECT user_id, tier, expires_at, updated_at
			FROM entitlements WHERE user_id = $1`,
		userID).Scan(
		&ent.UserID,
		&tier,
		&expiresAt,
		&ent.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, quota.ErrEntitlementNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entitlement: %w", err)
	}

	ent.Tier = quota.ParseTier(tier)
	ent.ExpiresAt = expiresAt
	return &ent, nil
}

// SetEntitlement implements quota.Storage.
func (s *Storage) SetEntitlement(ctx context.Context, ent *quota.Entitlement) error {
	if ent == nil || ent.UserID == "" {
		return fmt.Errorf("invalid entitlement")
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO entitlements (user_id, tier, expires_at, updated_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_id) DO UPDATE SET
				tier = EXCLUDED.tier,
				expires_at = EXCLUDED.expires_at,
				updated_at = EXCLUDED.updated_at`,
		ent.UserID, string(ent.Tier), ent.ExpiresAt, ent.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to set entitlement: %w", err)
	}
	return nil
}
