// Package billing resolves subscription entitlements to quota tiers.
package billing

import (
	"context"
	"net/http"

	"github.com/revlinehq/scotty/pkg/quota"
)

// Provider is the generic interface that any billing backend must
// implement. This allows swapping RevenueCat (app-store purchases) for
// Stripe (web purchases) with zero logic changes.
type Provider interface {
	// Name returns the provider name (e.g., "revenuecat", "stripe")
	Name() string

	// ResolveTier resolves the user's current tier from the provider,
	// persisting it via the quota manager. Never fails closed: on
	// provider errors the last stored tier (or FREE) is returned.
	ResolveTier(ctx context.Context, userID string) (quota.Tier, error)

	// WebhookHandler returns the HTTP handler that processes real-time
	// subscription events from the provider.
	WebhookHandler() http.Handler

	// Packages lists the purchasable packages, used by the paywall to
	// pick the feature bullets to display.
	Packages(ctx context.Context) ([]Package, error)
}

// Package is a purchasable subscription package.
type Package struct {
	ID   string
	Tier quota.Tier
}
