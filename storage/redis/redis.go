// Package redis provides a Redis implementation of the quota.Storage
// interface.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/revlinehq/scotty/pkg/quota"
)

// Storage implements quota.Storage using Redis.
type Storage struct {
	client redis.UniversalClient
	config Config
}

// Config holds Redis storage configuration.
type Config struct {
	// KeyPrefix is prepended to all Redis keys (default: "scotty:")
	KeyPrefix string

	// EntitlementTTL is the TTL for entitlement keys (0 = no expiration)
	EntitlementTTL time.Duration

	// UsageTTL is the TTL for usage keys (0 = no expiration)
	UsageTTL time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		KeyPrefix:      "scotty:",
		EntitlementTTL: 24 * time.Hour,
		UsageTTL:       0, // counters carry their own period keys
	}
}

// New creates a new Redis storage adapter.
// The client can be *redis.Client, *redis.ClusterClient, or *redis.Ring.
func New(client redis.UniversalClient, config Config) (*Storage, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "scotty:"
	}
	return &Storage{client: client, config: config}, nil
}

type usageRecord struct {
	PeriodKey string    `json:"periodKey"`
	Count     int       `json:"count"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type entitlementRecord struct {
	Tier      string     `json:"tier"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// GetUsage implements quota.Storage.
func (s *Storage) GetUsage(ctx context.Context, userID string, feature quota.Feature) (*quota.Usage, error) {
	raw, err := s.client.Get(ctx, s.usageKey(userID, feature)).Result()
	if err == redis.Nil {
		return nil, quota.ErrUsageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get usage: %w", err)
	}

	var rec usageRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("failed to decode usage: %w", err)
	}

	return &quota.Usage{
		UserID:    userID,
		Feature:   feature,
		PeriodKey: rec.PeriodKey,
		Count:     rec.Count,
		UpdatedAt: rec.UpdatedAt,
	}, nil
}

// PutUsage implements quota.Storage.
func (s *Storage) PutUsage(ctx context.Context, usage *quota.Usage) error {
	if usage == nil || usage.UserID == "" {
		return fmt.Errorf("invalid usage record")
	}

	raw, err := json.Marshal(usageRecord{
		PeriodKey: usage.PeriodKey,
		Count:     usage.Count,
		UpdatedAt: usage.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode usage: %w", err)
	}

	if err := s.client.Set(ctx, s.usageKey(usage.UserID, usage.Feature), raw, s.config.UsageTTL).Err(); err != nil {
		return fmt.Errorf("failed to put usage: %w", err)
	}
	return nil
}

// GetEntitlement implements quota.Storage.
func (s *Storage) GetEntitlement(ctx context.Context, userID string) (*quota.Entitlement, error) {
	raw, err := s.client.Get(ctx, s.entitlementKey(userID)).Result()
	if err == redis.Nil {
		return nil, quota.ErrEntitlementNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get entitlement: %w", err)
	}

	var rec entitlementRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("failed to decode entitlement: %w", err)
	}

	return &quota.Entitlement{
		UserID:    userID,
		Tier:      quota.ParseTier(rec.Tier),
		ExpiresAt: rec.ExpiresAt,
		UpdatedAt: rec.UpdatedAt,
	}, nil
}

// SetEntitlement implements quota.Storage.
func (s *Storage) SetEntitlement(ctx context.Context, ent *quota.Entitlement) error {
	if ent == nil || ent.UserID == "" {
		return fmt.Errorf("invalid entitlement")
	}

	raw, err := json.Marshal(entitlementRecord{
		Tier:      string(ent.Tier),
		ExpiresAt: ent.ExpiresAt,
		UpdatedAt: ent.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode entitlement: %w", err)
	}

	if err := s.client.Set(ctx, s.entitlementKey(ent.UserID), raw, s.config.EntitlementTTL).Err(); err != nil {
		return fmt.Errorf("failed to set entitlement: %w", err)
	}
	return nil
}

func (s *Storage) usageKey(userID string, feature quota.Feature) string {
	return s.config.KeyPrefix + "usage:" + userID + ":" + string(feature)
}

func (s *Storage) entitlementKey(userID string) string {
	return s.config.KeyPrefix + "entitlement:" + userID
}
