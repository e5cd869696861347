package billing

import (
	"net/http"

	"github.com/revlinehq/scotty/pkg/quota"
)

// Config defines the standard configuration all providers accept.
type Config struct {
	// Manager is the quota manager that resolved entitlements are
	// persisted through (required)
	Manager *quota.Manager

	// TierMapping maps provider entitlement/price IDs to tiers.
	// For example: map[string]quota.Tier{"plus": quota.TierPlus}.
	// Reserved keys "*" and "default" map unknown IDs.
	TierMapping map[string]quota.Tier

	// WebhookSecret verifies incoming webhook requests (Bearer token
	// for RevenueCat, signing secret for Stripe).
	WebhookSecret string

	// APIKey is used for outbound API calls to the billing provider.
	APIKey string

	// HTTPClient is an optional HTTP client for API calls.
	// If nil, a default client with a 10s timeout is used.
	HTTPClient *http.Client

	// Logger is used for structured logging (default: NoopLogger)
	Logger quota.Logger
}
