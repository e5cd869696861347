package quota

import (
	"context"
	"time"
)

// Manager tracks per-feature usage counters and gates feature access
// against the policy table.
//
// Check and Increment are deliberately separate, non-atomic operations:
// callers check first and increment only after a successful use. Two
// concurrent requests from the same user can each pass the gate before
// either increment lands. That race is an accepted property of the
// design (approximate fair-use limiting, not hard billing enforcement).
type Manager struct {
	storage Storage
	config  Config
	now     func() time.Time
}

// Config holds quota manager configuration.
type Config struct {
	// Policy is the tier/feature limit table (default: DefaultPolicy)
	Policy PolicyTable

	// Logger is used for structured logging (default: NoopLogger)
	Logger Logger

	// Metrics is used for tracking quota operations (default: NoopMetrics)
	Metrics Metrics

	// Now overrides the wall clock, for tests (default: time.Now)
	Now func() time.Time
}

// NewManager creates a new quota manager with the given storage and configuration.
func NewManager(storage Storage, config Config) (*Manager, error) {
	if storage == nil {
		return nil, ErrStorageUnavailable
	}
	if config.Policy == nil {
		config.Policy = DefaultPolicy()
	}
	if config.Logger == nil {
		config.Logger = &NoopLogger{}
	}
	if config.Metrics == nil {
		config.Metrics = &NoopMetrics{}
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{storage: storage, config: config, now: now}, nil
}

// Policy returns the manager's policy table.
func (m *Manager) Policy() PolicyTable {
	return m.config.Policy
}

// Check decides whether a user may use a feature at the given tier.
// It never mutates usage state. Storage read failures fail open: the
// user is assumed to have zero usage rather than being denied.
func (m *Manager) Check(ctx context.Context, userID string, feature Feature, tier Tier) Decision {
	limit := m.config.Policy.LimitFor(tier, feature)
	used := m.effectiveCount(ctx, userID, feature, tier)

	allowed := limit.IsUnlimited() || used < int(limit)
	m.config.Metrics.RecordCheck(feature, tier, allowed)
	if !allowed {
		m.config.Logger.Debug("quota denied",
			Field{Key: "user_id", Value: userID},
			Field{Key: "feature", Value: feature},
			Field{Key: "tier", Value: tier},
			Field{Key: "used", Value: used},
			Field{Key: "limit", Value: int(limit)},
		)
	}

	return Decision{
		Allowed: allowed,
		Feature: feature,
		Used:    used,
		Limit:   limit,
	}
}

// Increment bumps the counter for a user/feature pair and returns the new
// count. The stored period key is always rewritten to the current period,
// so a stale counter resets to 1 here rather than at read time.
//
// This is a read-then-write, not a transaction. Concurrent increments from
// two devices can under-count; see the type comment.
func (m *Manager) Increment(ctx context.Context, userID string, feature Feature, tier Tier) (int, error) {
	if userID == "" {
		return 0, ErrInvalidUser
	}

	key := PeriodKey(PeriodFor(tier, feature), m.now())
	count := m.effectiveCount(ctx, userID, feature, tier) + 1

	usage := &Usage{
		UserID:    userID,
		Feature:   feature,
		PeriodKey: key,
		Count:     count,
		UpdatedAt: m.now().UTC(),
	}

	start := m.now()
	err := m.storage.PutUsage(ctx, usage)
	m.config.Metrics.RecordStorageOperation("put_usage", m.now().Sub(start), err)
	if err != nil {
		return 0, err
	}

	m.config.Metrics.RecordIncrement(feature, tier)
	return count, nil
}

// UsageFor returns the effective usage for a user/feature pair, with the
// limit filled in from the policy table. Stale-period counters read as zero.
func (m *Manager) UsageFor(ctx context.Context, userID string, feature Feature, tier Tier) Decision {
	return m.Check(ctx, userID, feature, tier)
}

// Tier resolves a user's tier from the stored entitlement, defaulting to
// TierFree when none exists or the entitlement has expired.
func (m *Manager) Tier(ctx context.Context, userID string) Tier {
	ent, err := m.storage.GetEntitlement(ctx, userID)
	if err != nil {
		if err != ErrEntitlementNotFound {
			m.config.Logger.Warn("entitlement read failed, assuming free tier",
				Field{Key: "user_id", Value: userID},
				Field{Key: "error", Value: err.Error()},
			)
		}
		return TierFree
	}
	if ent.ExpiresAt != nil && ent.ExpiresAt.Before(m.now()) {
		return TierFree
	}
	return ent.Tier
}

// SetEntitlement stores a user's resolved entitlement.
func (m *Manager) SetEntitlement(ctx context.Context, ent *Entitlement) error {
	return m.storage.SetEntitlement(ctx, ent)
}

// effectiveCount reads the stored counter and applies the lazy reset: a
// record whose period key does not match the current period counts as zero.
// Storage errors also count as zero (fail-open, availability over strict
// enforcement).
func (m *Manager) effectiveCount(ctx context.Context, userID string, feature Feature, tier Tier) int {
	start := m.now()
	usage, err := m.storage.GetUsage(ctx, userID, feature)
	m.config.Metrics.RecordStorageOperation("get_usage", m.now().Sub(start), err)

	if err != nil {
		if err != ErrUsageNotFound {
			m.config.Logger.Warn("usage read failed, assuming zero usage",
				Field{Key: "user_id", Value: userID},
				Field{Key: "feature", Value: feature},
				Field{Key: "error", Value: err.Error()},
			)
			m.config.Metrics.RecordFailOpen(feature)
		}
		return 0
	}

	current := PeriodKey(PeriodFor(tier, feature), m.now())
	if usage.PeriodKey != current {
		return 0
	}
	return usage.Count
}
