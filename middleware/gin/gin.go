// Package gin provides Gin middleware for quota gating.
package gin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/revlinehq/scotty/pkg/paywall"
	"github.com/revlinehq/scotty/pkg/quota"
)

// UserIDExtractor extracts the user ID from a Gin context.
// Return empty string if the user is not authenticated.
type UserIDExtractor func(c *gin.Context) string

// FeatureExtractor extracts the gated feature from a Gin context.
type FeatureExtractor func(c *gin.Context) quota.Feature

// TierExtractor extracts the caller's tier from a Gin context.
type TierExtractor func(c *gin.Context) quota.Tier

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
// the counter after the handler chain completes successfully.
func Middleware(config Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if config.Manager == nil || config.GetUserID == nil || config.GetFeature == nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "quota middleware misconfigured"})
			return
		}

		userID := config.GetUserID(c)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		feature := config.GetFeature(c)
		tier := quota.TierFree
		if config.GetTier != nil {
			tier = config.GetTier(c)
		} else {
			tier = config.Manager.Tier(c.Request.Context(), userID)
		}

		decision := config.Manager.Check(c.Request.Context(), userID, feature, tier)
		if !decision.Allowed {
			content := paywall.Present(paywall.ReasonFor(string(feature)), decision.Used, int(decision.Limit))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"allowed": false,
				"used":    decision.Used,
				"limit":   int(decision.Limit),
				"paywall": content,
			})
			return
		}

		c.Next()

		if c.Writer.Status() < http.StatusBadRequest {
			_, _ = config.Manager.Increment(c.Request.Context(), userID, feature, tier)
		}
	}
}
