package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	httpmiddleware "github.com/revlinehq/scotty/middleware/http"
	"github.com/revlinehq/scotty/pkg/quota"
	"github.com/revlinehq/scotty/storage/memory"
)

func newGatedHandler(t *testing.T, config httpmiddleware.Config, inner http.HandlerFunc) (http.Handler, *quota.Manager) {
	t.Helper()

	if config.Manager == nil {
		manager, err := quota.NewManager(memory.New(), quota.Config{})
		if err != nil {
			t.Fatalf("NewManager failed: %v", err)
		}
		config.Manager = manager
	}
	if config.GetUserID == nil {
		config.GetUserID = func(r *http.Request) string {
			return r.Header.Get("X-User-ID")
		}
	}
	if config.GetFeature == nil {
		config.GetFeature = func(*http.Request) quota.Feature {
			return quota.FeatureImages
		}
	}
	if config.GetTier == nil {
		config.GetTier = func(*http.Request) quota.Tier {
			return quota.TierPlus
		}
	}

	mw, err := httpmiddleware.Middleware(config)
	if err != nil {
		t.Fatalf("Middleware failed: %v", err)
	}
	return mw(inner), config.Manager
}

func doRequest(handler http.Handler, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/analyze", nil)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_Validation(t *testing.T) {
	_, err := httpmiddleware.Middleware(httpmiddleware.Config{})
	if err == nil {
		t.Error("Expected error for empty config")
	}
}

func TestMiddleware_AllowsAndIncrements(t *testing.T) {
	handler, manager := newGatedHandler(t, httpmiddleware.Config{}, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for i := 0; i < 3; i++ {
		if rec := doRequest(handler, "user1"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, rec.Code)
		}
	}

	d := manager.Check(context.Background(), "user1", quota.FeatureImages, quota.TierPlus)
	if d.Used != 3 {
		t.Errorf("used = %d, want 3", d.Used)
	}
}

func TestMiddleware_NoIncrementOnHandlerError(t *testing.T) {
	handler, manager := newGatedHandler(t, httpmiddleware.Config{}, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	doRequest(handler, "user1")

	d := manager.Check(context.Background(), "user1", quota.FeatureImages, quota.TierPlus)
	if d.Used != 0 {
		t.Errorf("Failed handler still charged: used = %d", d.Used)
	}
}

func TestMiddleware_DeniesWithPaywall(t *testing.T) {
	handler, manager := newGatedHandler(t, httpmiddleware.Config{}, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	ctx := context.Background()
	for i := 0; i < 20; i++ {
		if _, err := manager.Increment(ctx, "user1", quota.FeatureImages, quota.TierPlus); err != nil {
			t.Fatalf("Increment failed: %v", err)
		}
	}

	rec := doRequest(handler, "user1")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Allowed bool `json:"allowed"`
		Paywall struct {
			Title          string   `json:"Title"`
			FeatureBullets []string `json:"FeatureBullets"`
		} `json:"paywall"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Allowed {
		t.Error("allowed = true in a denial body")
	}
	if body.Paywall.Title == "" || len(body.Paywall.FeatureBullets) == 0 {
		t.Errorf("paywall content incomplete: %+v", body.Paywall)
	}
}

func TestMiddleware_Unauthorized(t *testing.T) {
	handler, _ := newGatedHandler(t, httpmiddleware.Config{}, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	if rec := doRequest(handler, ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestMiddleware_CustomHooks(t *testing.T) {
	deniedCalled := false
	unauthCalled := false

	config := httpmiddleware.Config{
		GetFeature: func(*http.Request) quota.Feature { return quota.FeatureImages },
		GetTier:    func(*http.Request) quota.Tier { return quota.TierFree }, // zero image limit
		OnDenied: func(w http.ResponseWriter, r *http.Request, d quota.Decision) {
			deniedCalled = true
			w.WriteHeader(http.StatusPaymentRequired)
		},
		OnUnauthorized: func(w http.ResponseWriter, r *http.Request) {
			unauthCalled = true
			w.WriteHeader(http.StatusForbidden)
		},
	}
	handler, _ := newGatedHandler(t, config, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	if rec := doRequest(handler, "user1"); rec.Code != http.StatusPaymentRequired || !deniedCalled {
		t.Errorf("OnDenied not used: status = %d", rec.Code)
	}
	if rec := doRequest(handler, ""); rec.Code != http.StatusForbidden || !unauthCalled {
		t.Errorf("OnUnauthorized not used: status = %d", rec.Code)
	}
}

func TestMiddleware_TierFromEntitlement(t *testing.T) {
	manager, err := quota.NewManager(memory.New(), quota.Config{})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	_ = manager.SetEntitlement(context.Background(), &quota.Entitlement{
		UserID: "user1",
		Tier:   quota.TierClub,
	})

	// GetTier nil resolves from storage; free users have zero images
	config := httpmiddleware.Config{
		Manager: manager,
		GetUserID: func(r *http.Request) string {
			return r.Header.Get("X-User-ID")
		},
		GetFeature: func(*http.Request) quota.Feature { return quota.FeatureImages },
	}
	mw, err := httpmiddleware.Middleware(config)
	if err != nil {
		t.Fatalf("Middleware failed: %v", err)
	}
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	if rec := doRequest(handler, "user1"); rec.Code != http.StatusOK {
		t.Errorf("club user denied: status = %d", rec.Code)
	}
	if rec := doRequest(handler, "freeloader"); rec.Code != http.StatusTooManyRequests {
		t.Errorf("free user allowed zero-limit feature: status = %d", rec.Code)
	}
}
