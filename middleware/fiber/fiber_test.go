package fiber_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	fibermiddleware "github.com/revlinehq/scotty/middleware/fiber"
	"github.com/revlinehq/scotty/pkg/quota"
	"github.com/revlinehq/scotty/storage/memory"
)

func newTestApp(t *testing.T) (*fiber.App, *quota.Manager) {
	t.Helper()

	manager, err := quota.NewManager(memory.New(), quota.Config{})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	app := fiber.New()
	app.Use(fibermiddleware.Middleware(fibermiddleware.Config{
		Manager: manager,
		GetUserID: func(c *fiber.Ctx) string {
			return c.Get("X-User-ID")
		},
		GetFeature: func(*fiber.Ctx) quota.Feature {
			return quota.FeatureImages
		},
		GetTier: func(*fiber.Ctx) quota.Tier {
			return quota.TierPlus
		},
	}))
	app.Post("/analyze", func(c *fiber.Ctx) error {
		return c.SendString("analyzed")
	})
	return app, manager
}

func doRequest(t *testing.T, app *fiber.App, userID string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/analyze", nil)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	return resp
}

func TestMiddleware_AllowsAndIncrements(t *testing.T) {
	app, manager := newTestApp(t)

	for i := 0; i < 3; i++ {
		resp := doRequest(t, app, "user1")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, resp.StatusCode)
		}
	}

	d := manager.Check(context.Background(), "user1", quota.FeatureImages, quota.TierPlus)
	if d.Used != 3 {
		t.Errorf("used = %d, want 3", d.Used)
	}
}

func TestMiddleware_DeniesAtLimit(t *testing.T) {
	app, manager := newTestApp(t)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		if _, err := manager.Increment(ctx, "user1", quota.FeatureImages, quota.TierPlus); err != nil {
			t.Fatalf("Increment failed: %v", err)
		}
	}

	resp := doRequest(t, app, "user1")
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestMiddleware_Unauthorized(t *testing.T) {
	app, _ := newTestApp(t)

	resp := doRequest(t, app, "")
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestMiddleware_NoIncrementOnErrorStatus(t *testing.T) {
	manager, err := quota.NewManager(memory.New(), quota.Config{})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	app := fiber.New()
	app.Use(fibermiddleware.Middleware(fibermiddleware.Config{
		Manager: manager,
		GetUserID: func(c *fiber.Ctx) string {
			return c.Get("X-User-ID")
		},
		GetFeature: func(*fiber.Ctx) quota.Feature { return quota.FeatureImages },
		GetTier:    func(*fiber.Ctx) quota.Tier { return quota.TierPlus },
	}))
	app.Post("/analyze", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusInternalServerError)
	})

	req := httptest.NewRequest(http.MethodPost, "/analyze", nil)
	req.Header.Set("X-User-ID", "user1")
	if _, err := app.Test(req); err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}

	d := manager.Check(context.Background(), "user1", quota.FeatureImages, quota.TierPlus)
	if d.Used != 0 {
		t.Errorf("error status still charged: used = %d", d.Used)
	}
}
