// Package http provides net/http middleware for quota gating.
package http

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/revlinehq/scotty/pkg/paywall"
	"github.com/revlinehq/scotty/pkg/quota"
)

// UserIDExtractor extracts the user ID from an HTTP request.
// Return empty string if the user is not authenticated.
type UserIDExtractor func(r *http.Request) string

// FeatureExtractor extracts the gated feature from an HTTP request.
type FeatureExtractor func(r *http.Request) quota.Feature

// TierExtractor extracts the caller's tier from an HTTP request.
type TierExtractor func(r *http.Request) quota.Tier

// Config holds middleware configuration.
type Config struct {
	// Manager is the quota manager instance (required)
	Manager *quota.Manager

	// GetUserID extracts user ID from the request (required)
	GetUserID UserIDExtractor

	// GetFeature extracts the feature from the request (required)
	GetFeature FeatureExtractor

	// GetTier extracts the tier from the request. If nil, the tier is
	// resolved from the stored entitlement.
	GetTier TierExtractor

	// OnDenied is called when the gate denies the request.
	// If nil, responds 429 with a paywall JSON body.
	OnDenied func(w http.ResponseWriter, r *http.Request, d quota.Decision)

	// OnUnauthorized is called when the user is not authenticated.
	// If nil, responds 401.
	OnUnauthorized func(w http.ResponseWriter, r *http.Request)
}

// Middleware gates a request on the configured feature and increments
// the counter after the handler completes successfully (status < 400).
// The check and the increment are separate, non-atomic steps by design.
func Middleware(config Config) (func(http.Handler) http.Handler, error) {
	if config.Manager == nil || config.GetUserID == nil || config.GetFeature == nil {
		return nil, fmt.Errorf("middleware: manager, getUserID and getFeature are required")
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := config.GetUserID(r)
			if userID == "" {
				if config.OnUnauthorized != nil {
					config.OnUnauthorized(w, r)
					return
				}
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			feature := config.GetFeature(r)
			tier := quota.TierFree
			if config.GetTier != nil {
				tier = config.GetTier(r)
			} else {
				tier = config.Manager.Tier(r.Context(), userID)
			}

			decision := config.Manager.Check(r.Context(), userID, feature, tier)
			if !decision.Allowed {
				if config.OnDenied != nil {
					config.OnDenied(w, r, decision)
					return
				}
				writeDenial(w, decision)
				return
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.status < http.StatusBadRequest {
				// Best-effort: increment failures never fail the request.
				_, _ = config.Manager.Increment(r.Context(), userID, feature, tier)
			}
		})
	}, nil
}

func writeDenial(w http.ResponseWriter, d quota.Decision) {
	content := paywall.Present(paywall.ReasonFor(string(d.Feature)), d.Used, int(d.Limit))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"allowed": false,
		"used":    d.Used,
		"limit":   int(d.Limit),
		"paywall": content,
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.wroteHeader = true
	}
	return r.ResponseWriter.Write(b)
}
