package echo_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	echomiddleware "github.com/revlinehq/scotty/middleware/echo"
	"github.com/revlinehq/scotty/pkg/quota"
	"github.com/revlinehq/scotty/storage/memory"
)

func newTestApp(t *testing.T) (*echo.Echo, *quota.Manager) {
	t.Helper()

	manager, err := quota.NewManager(memory.New(), quota.Config{})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	e := echo.New()
	e.Use(echomiddleware.Middleware(echomiddleware.Config{
		Manager: manager,
		GetUserID: func(c echo.Context) string {
			return c.Request().Header.Get("X-User-ID")
		},
		GetFeature: func(echo.Context) quota.Feature {
			return quota.FeatureImages
		},
		GetTier: func(echo.Context) quota.Tier {
			return quota.TierPlus
		},
	}))
	e.POST("/analyze", func(c echo.Context) error {
		return c.String(http.StatusOK, "analyzed")
	})
	return e, manager
}

func doRequest(e *echo.Echo, userID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/analyze", nil)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_AllowsAndIncrements(t *testing.T) {
	e, manager := newTestApp(t)

	for i := 0; i < 3; i++ {
		if rec := doRequest(e, "user1"); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, rec.Code)
		}
	}

	d := manager.Check(context.Background(), "user1", quota.FeatureImages, quota.TierPlus)
	if d.Used != 3 {
		t.Errorf("used = %d, want 3", d.Used)
	}
}

func TestMiddleware_DeniesAtLimit(t *testing.T) {
	e, manager := newTestApp(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		if _, err := manager.Increment(ctx, "user1", quota.FeatureImages, quota.TierPlus); err != nil {
			t.Fatalf("Increment failed: %v", err)
		}
	}

	if rec := doRequest(e, "user1"); rec.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestMiddleware_Unauthorized(t *testing.T) {
	e, _ := newTestApp(t)

	if rec := doRequest(e, ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestMiddleware_NoIncrementOnHandlerError(t *testing.T) {
	manager, err := quota.NewManager(memory.New(), quota.Config{})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	e := echo.New()
	e.Use(echomiddleware.Middleware(echomiddleware.Config{
		Manager: manager,
		GetUserID: func(c echo.Context) string {
			return c.Request().Header.Get("X-User-ID")
		},
		GetFeature: func(echo.Context) quota.Feature { return quota.FeatureImages },
		GetTier:    func(echo.Context) quota.Tier { return quota.TierPlus },
	}))
	e.POST("/analyze", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusInternalServerError, "boom")
	})

	doRequest(e, "user1")

	d := manager.Check(context.Background(), "user1", quota.FeatureImages, quota.TierPlus)
	if d.Used != 0 {
		t.Errorf("failed handler still charged: used = %d", d.Used)
	}
}
