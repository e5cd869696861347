// Package echo provides Echo middleware for quota gating.
package echo

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/revlinehq/scotty/pkg/paywall"
	"github.com/revlinehq/scotty/pkg/quota"
)

// UserIDExtractor extracts the user ID from an Echo context.
// Return empty string if the user is not authenticated.
type UserIDExtractor func(c echo.Context) string

// FeatureExtractor extracts the gated feature from an Echo context.
type FeatureExtractor func(c echo.Context) quota.Feature

// TierExtractor extracts the caller's tier from an Echo context.
type TierExtractor func(c echo.Context) quota.Tier

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
func Middleware(config Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if config.Manager == nil || config.GetUserID == nil || config.GetFeature == nil {
				return echo.NewHTTPError(http.StatusInternalServerError, "quota middleware misconfigured")
			}

			userID := config.GetUserID(c)
			if userID == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
			}

			feature := config.GetFeature(c)
			tier := quota.TierFree
			if config.GetTier != nil {
				tier = config.GetTier(c)
			} else {
				tier = config.Manager.Tier(c.Request().Context(), userID)
			}

			decision := config.Manager.Check(c.Request().Context(), userID, feature, tier)
			if !decision.Allowed {
				content := paywall.Present(paywall.ReasonFor(string(feature)), decision.Used, int(decision.Limit))
				return c.JSON(http.StatusTooManyRequests, map[string]interface{}{
					"allowed": false,
					"used":    decision.Used,
					"limit":   int(decision.Limit),
					"paywall": content,
				})
			}

			if err := next(c); err != nil {
				return err
			}

			_, _ = config.Manager.Increment(c.Request().Context(), userID, feature, tier)
			return nil
		}
	}
}
