package quota

import "context"

// Storage defines the interface for counter and entitlement persistence.
// All methods use concrete types from this package to avoid import cycles.
//
// Implementations do not need transactions: PutUsage is a plain overwrite
// and callers accept the read-then-write race (see Manager.Increment).
type Storage interface {
	// GetUsage retrieves the stored counter for a user/feature pair.
	// Returns ErrUsageNotFound when no counter exists yet.
	GetUsage(ctx context.Context, userID string, feature Feature) (*Usage, error)

	// PutUsage overwrites the stored counter for a user/feature pair.
	PutUsage(ctx context.Context, usage *Usage) error

	// GetEntitlement retrieves the stored entitlement for a user.
	// Returns ErrEntitlementNotFound when none exists.
	GetEntitlement(ctx context.Context, userID string) (*Entitlement, error)

	// SetEntitlement stores a user's entitlement.
	SetEntitlement(ctx context.Context, ent *Entitlement) error
}
