// Package server exposes the chat, sound-diagnosis and upload-metering
// endpoints over HTTP, reproducing the cloud-function surface the mobile
// app calls.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/revlinehq/scotty/pkg/chat"
	"github.com/revlinehq/scotty/pkg/pipeline"
	"github.com/revlinehq/scotty/pkg/quota"
)

const maxRequestBody = 1 << 20

// Config holds server configuration.
type Config struct {
	// Pipeline handles chat and sound requests (required)
	Pipeline *pipeline.Pipeline

	// Quotas meters the upload counter and serves usage summaries (required)
	Quotas *quota.Manager

	// GetUserID extracts the caller identity from the request (required).
	// Return empty string for unauthenticated callers.
	GetUserID func(*http.Request) string

	// Logger is used for structured logging (default: NoopLogger)
	Logger quota.Logger
}

// Validate checks that the configuration is complete.
func (c *Config) Validate() error {
	if c.Pipeline == nil {
		return fmt.Errorf("pipeline is required")
	}
	if c.Quotas == nil {
		return fmt.Errorf("quotas is required")
	}
	if c.GetUserID == nil {
		return fmt.Errorf("getUserID is required")
	}
	return nil
}

// Handler serves the HTTP endpoints.
type Handler struct {
	config Config
}

// NewHandler creates a new handler with the given configuration.
func NewHandler(config Config) (*Handler, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if config.Logger == nil {
		config.Logger = &quota.NoopLogger{}
	}
	return &Handler{config: config}, nil
}

// Router builds the chi router with all endpoints mounted.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(2 * time.Minute))

	r.Post("/v1/chat", h.Chat)
	r.Post("/v1/sound", h.Sound)
	r.Post("/v1/uploads/increment", h.IncrementUploads)
	r.Get("/v1/usage", h.Usage)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

type chatRequest struct {
	Messages []chat.Message `json:"messages"`
	ImageURL string         `json:"imageUrl,omitempty"`
	UserTier string         `json:"userTier,omitempty"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

// Chat handles POST /v1/chat.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, pipeline.ErrInvalidArgument)
		return
	}
	if len(req.Messages) == 0 {
		h.writeError(w, pipeline.ErrInvalidArgument)
		return
	}

	reply, err := h.config.Pipeline.Chat(r.Context(), pipeline.ChatRequest{
		Messages: req.Messages,
		ImageURL: req.ImageURL,
		UserTier: quota.ParseTier(req.UserTier),
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{Reply: reply.Reply})
}

type soundRequest struct {
	AudioURL string            `json:"audioUrl"`
	CarInfo  *pipeline.CarInfo `json:"carInfo,omitempty"`
}

type soundResponse struct {
	Success   bool   `json:"success"`
	Diagnosis string `json:"diagnosis"`
}

// Sound handles POST /v1/sound.
func (h *Handler) Sound(w http.ResponseWriter, r *http.Request) {
	if h.config.GetUserID(r) == "" {
		h.writeError(w, pipeline.ErrUnauthenticated)
		return
	}

	var req soundRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, pipeline.ErrInvalidArgument)
		return
	}

	diag, err := h.config.Pipeline.DiagnoseSound(r.Context(), pipeline.SoundRequest{
		AudioURL: req.AudioURL,
		CarInfo:  req.CarInfo,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, soundResponse{Success: diag.Success, Diagnosis: diag.Diagnosis})
}

type uploadsRequest struct {
	HasPro bool `json:"hasPro"`
}

type uploadsResponse struct {
	Allowed   bool `json:"allowed"`
	Remaining int  `json:"remaining"`
}

// IncrementUploads handles POST /v1/uploads/increment: a daily upload
// counter with a fixed free limit, bypassed for pro subscribers.
func (h *Handler) IncrementUploads(w http.ResponseWriter, r *http.Request) {
	userID := h.config.GetUserID(r)
	if userID == "" {
		h.writeError(w, pipeline.ErrUnauthenticated)
		return
	}

	var req uploadsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.writeError(w, pipeline.ErrInvalidArgument)
		return
	}

	tier := quota.TierFree
	if req.HasPro {
		tier = quota.TierPlus
	}

	decision := h.config.Quotas.Check(r.Context(), userID, quota.FeatureUploads, tier)
	if !decision.Allowed {
		writeJSON(w, http.StatusOK, uploadsResponse{Allowed: false, Remaining: 0})
		return
	}

	if _, err := h.config.Quotas.Increment(r.Context(), userID, quota.FeatureUploads, tier); err != nil {
		h.config.Logger.Warn("upload counter increment failed",
			quota.Field{Key: "user_id", Value: userID},
			quota.Field{Key: "error", Value: err.Error()},
		)
	}

	remaining := decision.Remaining()
	if !decision.Limit.IsUnlimited() {
		remaining--
		if remaining < 0 {
			remaining = 0
		}
	}
	writeJSON(w, http.StatusOK, uploadsResponse{Allowed: true, Remaining: remaining})
}

type usageEntry struct {
	Used      int `json:"used"`
	Limit     int `json:"limit"`     // -1 for unlimited
	Remaining int `json:"remaining"` // -1 for unlimited
}

type usageResponse struct {
	UserID   string                `json:"user_id"`
	Tier     string                `json:"tier"`
	Features map[string]usageEntry `json:"features"`
}

// Usage handles GET /v1/usage: a per-feature summary of the caller's
// current quota standing.
func (h *Handler) Usage(w http.ResponseWriter, r *http.Request) {
	userID := h.config.GetUserID(r)
	if userID == "" {
		h.writeError(w, pipeline.ErrUnauthenticated)
		return
	}

	ctx := r.Context()
	tier := h.config.Quotas.Tier(ctx, userID)

	features := []quota.Feature{
		quota.FeatureMessages,
		quota.FeatureImages,
		quota.FeatureSounds,
		quota.FeatureVINs,
		quota.FeatureUploads,
	}

	resp := usageResponse{
		UserID:   userID,
		Tier:     string(tier),
		Features: make(map[string]usageEntry, len(features)),
	}
	for _, f := range features {
		d := h.config.Quotas.UsageFor(ctx, userID, f, tier)
		resp.Features[string(f)] = usageEntry{
			Used:      d.Used,
			Limit:     int(d.Limit),
			Remaining: d.Remaining(),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status, code := statusFor(err)
	writeJSON(w, status, errorBody{Code: code, Message: err.Error()})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
