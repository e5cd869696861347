// Package stripe implements the billing.Provider interface for Stripe,
// the entitlement source for web-purchased subscriptions.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v83"

	"github.com/revlinehq/scotty/pkg/billing"
	"github.com/revlinehq/scotty/pkg/billing/internal"
	"github.com/revlinehq/scotty/pkg/quota"
)

const (
	providerName             = "stripe"
	defaultRateLimitWindow   = time.Minute
	defaultRateLimitRequests = 100
	maxWebhookBody           = 256 * 1024
	subscriptionStatusActive = "active"
)

// Config extends billing.Config with Stripe-specific options.
type Config struct {
	billing.Config

	// StripeAPIKey is the secret API key for outbound calls (required)
	StripeAPIKey string

	// StripeWebhookSecret is the webhook signing secret (whsec_...)
	StripeWebhookSecret string

	// CustomerIDResolver maps an app user ID to a Stripe customer ID.
	// Required for ResolveTier; webhooks work without it.
	CustomerIDResolver func(context.Context, string) (string, error)
}

// Provider implements the billing.Provider interface for Stripe.
type Provider struct {
	manager            *quota.Manager
	stripeClient       *stripe.Client
	rateLimiter        *internal.RateLimiter
	tierMapping        map[string]quota.Tier // price/product ID -> tier
	webhookSecret      string
	customerIDResolver func(context.Context, string) (string, error)
	logger             quota.Logger
}

// NewProvider creates a new Stripe billing provider.
func NewProvider(config Config) (*Provider, error) {
	if config.Manager == nil {
		return nil, billing.ErrProviderNotConfigured
	}

	apiKey := strings.TrimSpace(config.StripeAPIKey)
	if apiKey == "" {
		return nil, billing.ErrProviderNotConfigured
	}

	tierMapping := make(map[string]quota.Tier)
	for k, v := range config.TierMapping {
		tierMapping[strings.ToLower(k)] = v
	}

	logger := config.Logger
	if logger == nil {
		logger = &quota.NoopLogger{}
	}

	return &Provider{
		manager:            config.Manager,
		stripeClient:       stripe.NewClient(apiKey),
		rateLimiter:        internal.NewRateLimiter(defaultRateLimitRequests, defaultRateLimitWindow),
		tierMapping:        tierMapping,
		webhookSecret:      strings.TrimSpace(config.StripeWebhookSecret),
		customerIDResolver: config.CustomerIDResolver,
		logger:             logger,
	}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return providerName
}

// MapPriceToTier maps a Stripe price or product ID to a tier, defaulting
// to the free tier for unknown IDs.
func (p *Provider) MapPriceToTier(priceID string) quota.Tier {
	if tier, ok := p.tierMapping[strings.ToLower(strings.TrimSpace(priceID))]; ok {
		return tier
	}
	return quota.TierFree
}

// ResolveTier implements billing.Provider. The user's active
// subscriptions are listed and the highest mapped tier wins. Provider
// errors fall back to the last stored tier.
func (p *Provider) ResolveTier(ctx context.Context, userID string) (quota.Tier, error) {
	if p.customerIDResolver == nil {
		return p.manager.Tier(ctx, userID), nil
	}

	customerID, err := p.customerIDResolver(ctx, userID)
	if err != nil || customerID == "" {
		return p.manager.Tier(ctx, userID), nil
	}

	params := &stripe.SubscriptionListParams{}
	params.Customer = stripe.String(customerID)
	params.Status = stripe.String(subscriptionStatusActive)

	best := quota.TierFree
	for sub, err := range p.stripeClient.V1Subscriptions.List(ctx, params) {
		if err != nil {
			p.logger.Warn("stripe subscription list failed, using stored tier",
				quota.Field{Key: "user_id", Value: userID},
				quota.Field{Key: "error", Value: err.Error()},
			)
			return p.manager.Tier(ctx, userID), nil
		}
		if string(sub.Status) != subscriptionStatusActive {
			continue
		}
		for _, item := range sub.Items.Data {
			if item.Price == nil {
				continue
			}
			if tier := p.MapPriceToTier(item.Price.ID); tierRank(tier) > tierRank(best) {
				best = tier
			}
		}
	}

	// Expiry is refreshed by webhook events; sync stores the tier only.
	ent := &quota.Entitlement{
		UserID:    userID,
		Tier:      best,
		UpdatedAt: time.Now().UTC(),
	}
	if err := p.manager.SetEntitlement(ctx, ent); err != nil {
		return best, fmt.Errorf("persist entitlement: %w", err)
	}
	return best, nil
}

// Packages implements billing.Provider.
func (p *Provider) Packages(ctx context.Context) ([]billing.Package, error) {
	seen := make(map[quota.Tier]bool)
	var out []billing.Package
	for id, tier := range p.tierMapping {
		if seen[tier] {
			continue
		}
		seen[tier] = true
		out = append(out, billing.Package{ID: id, Tier: tier})
	}
	return out, nil
}

// WebhookHandler returns the HTTP handler for Stripe webhooks, wrapped
// with per-IP rate limiting.
func (p *Provider) WebhookHandler() http.Handler {
	return p.rateLimiter.Middleware(http.HandlerFunc(p.handleWebhook))
}

func (p *Provider) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if p.webhookSecret == "" {
		http.Error(w, "webhook not configured", http.StatusServiceUnavailable)
		return
	}

	body, err := internal.ReadBodyStrict(w, r, maxWebhookBody)
	if err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	sig := r.Header.Get("Stripe-Signature")
	if sig == "" {
		sig = r.Header.Get("stripe-signature")
	}

	event, err := stripe.ConstructEvent(body, sig, p.webhookSecret)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	switch event.Type {
	case "customer.subscription.created",
		"customer.subscription.updated",
		"customer.subscription.deleted":
		if err := p.handleSubscriptionEvent(r.Context(), &event); err != nil {
			p.logger.Error("webhook subscription update failed",
				quota.Field{Key: "event", Value: string(event.Type)},
				quota.Field{Key: "error", Value: err.Error()},
			)
			http.Error(w, "failed to process webhook", http.StatusInternalServerError)
			return
		}
	default:
		// Unhandled event types are acknowledged so Stripe stops retrying.
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (p *Provider) handleSubscriptionEvent(ctx context.Context, event *stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return billing.ErrInvalidWebhookPayload
	}

	userID := sub.Metadata["app_user_id"]
	if userID == "" {
		// Subscriptions created outside the app carry no user mapping.
		return nil
	}

	tier := quota.TierFree
	if event.Type != "customer.subscription.deleted" && string(sub.Status) == subscriptionStatusActive {
		for _, item := range sub.Items.Data {
			if item.Price == nil {
				continue
			}
			if t := p.MapPriceToTier(item.Price.ID); tierRank(t) > tierRank(tier) {
				tier = t
			}
		}
	}

	return p.manager.SetEntitlement(ctx, &quota.Entitlement{
		UserID:    userID,
		Tier:      tier,
		UpdatedAt: time.Unix(event.Created, 0).UTC(),
	})
}

func tierRank(t quota.Tier) int {
	switch t {
	case quota.TierClub:
		return 3
	case quota.TierTrackMode:
		return 2
	case quota.TierPlus:
		return 1
	default:
		return 0
	}
}
