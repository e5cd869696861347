// Package fiber provides Fiber middleware for quota gating.
package fiber

import (
	"github.com/gofiber/fiber/v2"

	"github.com/revlinehq/scotty/pkg/paywall"
	"github.com/revlinehq/scotty/pkg/quota"
)

// UserIDExtractor extracts the user ID from a Fiber context.
// Return empty string if the user is not authenticated.
type UserIDExtractor func(c *fiber.Ctx) string

// FeatureExtractor extracts the gated feature from a Fiber context.
type FeatureExtractor func(c *fiber.Ctx) quota.Feature

// TierExtractor extracts the caller's tier from a Fiber context.
type TierExtractor func(c *fiber.Ctx) quota.Tier

// Config holds middleware configuration.
type Config struct {
	// Manager is the quota manager instance (required)
	Manager *quota.Manager

	// GetUserID extracts user ID from the context (required)
	GetUserID UserIDExtractor

	// GetFeature extracts the feature from the context (required)
	GetFeature FeatureExtractor

	// GetTier extracts the tier from the context. If nil, the tier is
	// resolved from the stored entitlement.
	GetTier TierExtractor
}

// Middleware gates a request on the configured feature and increments
// the counter after the handler returns without error.
func Middleware(config Config) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if config.Manager == nil || config.GetUserID == nil || config.GetFeature == nil {
			return fiber.NewError(fiber.StatusInternalServerError, "quota middleware misconfigured")
		}

		userID := config.GetUserID(c)
		if userID == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
		}

		feature := config.GetFeature(c)
		tier := quota.TierFree
		if config.GetTier != nil {
			tier = config.GetTier(c)
		} else {
			tier = config.Manager.Tier(c.UserContext(), userID)
		}

		decision := config.Manager.Check(c.UserContext(), userID, feature, tier)
		if !decision.Allowed {
			content := paywall.Present(paywall.ReasonFor(string(feature)), decision.Used, int(decision.Limit))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"allowed": false,
				"used":    decision.Used,
				"limit":   int(decision.Limit),
				"paywall": content,
			})
		}

		if err := c.Next(); err != nil {
			return err
		}

		if c.Response().StatusCode() < fiber.StatusBadRequest {
			_, _ = config.Manager.Increment(c.UserContext(), userID, feature, tier)
		}
		return nil
	}
}
