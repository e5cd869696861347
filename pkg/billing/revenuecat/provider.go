// Package revenuecat implements the billing.Provider interface against
// the RevenueCat REST API, the entitlement source for app-store purchases.
package revenuecat

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/revlinehq/scotty/pkg/billing"
	"github.com/revlinehq/scotty/pkg/billing/internal"
	"github.com/revlinehq/scotty/pkg/quota"
)

const (
	providerName             = "revenuecat"
	revenueCatAPIBaseURL     = "https://api.revenuecat.com/v1"
	defaultHTTPTimeout       = 10 * time.Second
	defaultRateLimitWindow   = time.Minute
	defaultRateLimitRequests = 100
	maxWebhookBody           = 1 << 20
	defaultTierKeyWildcard   = "*"
	defaultTierKeyDefault    = "default"
)

// Provider implements the billing.Provider interface for RevenueCat.
type Provider struct {
	manager       *quota.Manager
	baseURL       string
	httpClient    *http.Client
	rateLimiter   *internal.RateLimiter
	tierMapping   map[string]quota.Tier
	defaultTier   quota.Tier
	webhookSecret []byte
	apiKey        string
	logger        quota.Logger
	group         singleflight.Group
}

// NewProvider creates a new RevenueCat billing provider.
func NewProvider(config billing.Config) (*Provider, error) {
	if config.Manager == nil {
		return nil, billing.ErrProviderNotConfigured
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	apiKey := strings.TrimSpace(config.APIKey)
	if strings.HasPrefix(strings.ToLower(apiKey), "bearer ") {
		apiKey = strings.TrimSpace(apiKey[len("bearer "):])
	}

	webhookSecret := strings.TrimSpace(config.WebhookSecret)
	if strings.HasPrefix(strings.ToLower(webhookSecret), "bearer ") {
		webhookSecret = strings.TrimSpace(webhookSecret[len("bearer "):])
	}

	tierMapping := make(map[string]quota.Tier)
	for k, v := range config.TierMapping {
		tierMapping[strings.ToLower(k)] = v
	}
	if len(tierMapping) == 0 {
		tierMapping = defaultTierMapping()
	}

	defaultTier := quota.TierFree
	if t, ok := tierMapping[defaultTierKeyWildcard]; ok {
		defaultTier = t
	} else if t, ok := tierMapping[defaultTierKeyDefault]; ok {
		defaultTier = t
	}

	logger := config.Logger
	if logger == nil {
		logger = &quota.NoopLogger{}
	}

	return &Provider{
		manager:       config.Manager,
		baseURL:       revenueCatAPIBaseURL,
		httpClient:    httpClient,
		rateLimiter:   internal.NewRateLimiter(defaultRateLimitRequests, defaultRateLimitWindow),
		tierMapping:   tierMapping,
		defaultTier:   defaultTier,
		webhookSecret: []byte(webhookSecret),
		apiKey:        apiKey,
		logger:        logger,
	}, nil
}

func defaultTierMapping() map[string]quota.Tier {
	return map[string]quota.Tier{
		"plus":       quota.TierPlus,
		"track_mode": quota.TierTrackMode,
		"club":       quota.TierClub,
	}
}

// Name returns the provider name.
func (p *Provider) Name() string {
	return providerName
}

// SetBaseURL overrides the API endpoint. Intended for tests and proxies.
func (p *Provider) SetBaseURL(url string) {
	p.baseURL = strings.TrimRight(url, "/")
}

// MapEntitlementToTier maps a RevenueCat entitlement ID to a tier,
// defaulting to the free tier for unknown or absent entitlements.
func (p *Provider) MapEntitlementToTier(entitlementID string) quota.Tier {
	if entitlementID == "" {
		return p.defaultTier
	}
	key := strings.ToLower(strings.TrimSpace(entitlementID))
	if tier, ok := p.tierMapping[key]; ok {
		return tier
	}
	return p.defaultTier
}

// ResolveTier implements billing.Provider. Concurrent resolutions for the
// same user are coalesced; API failures fall back to the last stored tier.
func (p *Provider) ResolveTier(ctx context.Context, userID string) (quota.Tier, error) {
	v, err, _ := p.group.Do(userID, func() (interface{}, error) {
		return p.syncUserFromAPI(ctx, userID)
	})
	if err != nil {
		p.logger.Warn("revenuecat sync failed, using stored tier",
			quota.Field{Key: "user_id", Value: userID},
			quota.Field{Key: "error", Value: err.Error()},
		)
		return p.manager.Tier(ctx, userID), nil
	}
	return v.(quota.Tier), nil
}

// Packages implements billing.Provider. RevenueCat package identifiers
// are static per app configuration.
func (p *Provider) Packages(ctx context.Context) ([]billing.Package, error) {
	return []billing.Package{
		{ID: "plus_monthly", Tier: quota.TierPlus},
		{ID: "track_mode_monthly", Tier: quota.TierTrackMode},
		{ID: "club_monthly", Tier: quota.TierClub},
	}, nil
}

type subscriberResponse struct {
	Subscriber struct {
		Entitlements map[string]subscriberEntitlement `json:"entitlements"`
	} `json:"subscriber"`
}

type subscriberEntitlement struct {
	ExpiresDate       *string `json:"expires_date"`
	ProductIdentifier string  `json:"product_identifier"`
}

// syncUserFromAPI fetches the subscriber from RevenueCat and persists the
// resolved entitlement through the quota manager.
func (p *Provider) syncUserFromAPI(ctx context.Context, userID string) (quota.Tier, error) {
	if p.apiKey == "" {
		return p.defaultTier, billing.ErrProviderNotConfigured
	}

	url := fmt.Sprintf("%s/subscribers/%s", p.baseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return p.defaultTier, err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Accept", "application/json")

	res, err := p.httpClient.Do(req)
	if err != nil {
		return p.defaultTier, fmt.Errorf("fetch subscriber: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxWebhookBody))
	if err != nil {
		return p.defaultTier, fmt.Errorf("read response: %w", err)
	}

	if res.StatusCode == http.StatusNotFound {
		// Unknown to RevenueCat: free tier
		return p.persistTier(ctx, userID, p.defaultTier, nil)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return p.defaultTier, fmt.Errorf("%w: status %d", billing.ErrProviderAPIError, res.StatusCode)
	}

	var payload subscriberResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return p.defaultTier, fmt.Errorf("parse response: %w", err)
	}

	tier, expiresAt := p.bestActiveEntitlement(payload.Subscriber.Entitlements)
	return p.persistTier(ctx, userID, tier, expiresAt)
}

// bestActiveEntitlement picks the highest-value unexpired entitlement.
func (p *Provider) bestActiveEntitlement(ents map[string]subscriberEntitlement) (quota.Tier, *time.Time) {
	best := p.defaultTier
	var bestExpiry *time.Time
	now := time.Now()

	for id, ent := range ents {
		var expiresAt *time.Time
		if ent.ExpiresDate != nil {
			t, err := time.Parse(time.RFC3339, *ent.ExpiresDate)
			if err != nil {
				continue
			}
			if t.Before(now) {
				continue
			}
			expiresAt = &t
		}
		tier := p.MapEntitlementToTier(id)
		if tierRank(tier) > tierRank(best) {
			best = tier
			bestExpiry = expiresAt
		}
	}
	return best, bestExpiry
}

func (p *Provider) persistTier(ctx context.Context, userID string, tier quota.Tier, expiresAt *time.Time) (quota.Tier, error) {
	ent := &quota.Entitlement{
		UserID:    userID,
		Tier:      tier,
		ExpiresAt: expiresAt,
		UpdatedAt: time.Now().UTC(),
	}
	if err := p.manager.SetEntitlement(ctx, ent); err != nil {
		return tier, fmt.Errorf("persist entitlement: %w", err)
	}
	return tier, nil
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

// WebhookHandler returns the HTTP handler for RevenueCat webhooks,
// wrapped with per-IP rate limiting.
func (p *Provider) WebhookHandler() http.Handler {
	return p.rateLimiter.Middleware(http.HandlerFunc(p.handleWebhook))
}

type webhookPayload struct {
	Event struct {
		Type            string   `json:"type"`
		AppUserID       string   `json:"app_user_id"`
		EntitlementIDs  []string `json:"entitlement_ids"`
		ExpirationAtMs  int64    `json:"expiration_at_ms"`
		EventTimestampM int64    `json:"event_timestamp_ms"`
	} `json:"event"`
}

func (p *Provider) handleWebhook(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if len(p.webhookSecret) == 0 {
		http.Error(w, "webhook not configured", http.StatusServiceUnavailable)
		return
	}

	token := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		token = strings.TrimSpace(token[len("bearer "):])
	}
	if subtle.ConstantTimeCompare([]byte(token), p.webhookSecret) != 1 {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	body, err := internal.ReadBodyStrict(w, r, maxWebhookBody)
	if err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	userID := strings.TrimSpace(payload.Event.AppUserID)
	if userID == "" {
		http.Error(w, "missing user id", http.StatusBadRequest)
		return
	}

	if strings.EqualFold(payload.Event.Type, "TEST") {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
		return
	}

	tier := p.defaultTier
	for _, id := range payload.Event.EntitlementIDs {
		if t := p.MapEntitlementToTier(id); tierRank(t) > tierRank(tier) {
			tier = t
		}
	}

	var expiresAt *time.Time
	if payload.Event.ExpirationAtMs > 0 {
		t := time.UnixMilli(payload.Event.ExpirationAtMs).UTC()
		expiresAt = &t
		if t.Before(time.Now()) {
			tier = p.defaultTier
		}
	}

	if _, err := p.persistTier(r.Context(), userID, tier, expiresAt); err != nil {
		p.logger.Error("webhook entitlement update failed",
			quota.Field{Key: "user_id", Value: userID},
			quota.Field{Key: "error", Value: err.Error()},
		)
		http.Error(w, "failed to process webhook", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
