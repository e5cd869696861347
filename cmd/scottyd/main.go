// Command scottyd runs the Scotty assistant backend: the chat, sound
// diagnosis and upload metering endpoints plus billing webhooks.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	firestoreapi "cloud.google.com/go/firestore"
	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/revlinehq/scotty/pkg/ai"
	"github.com/revlinehq/scotty/pkg/billing"
	"github.com/revlinehq/scotty/pkg/billing/revenuecat"
	stripebilling "github.com/revlinehq/scotty/pkg/billing/stripe"
	"github.com/revlinehq/scotty/pkg/pipeline"
	"github.com/revlinehq/scotty/pkg/quota"
	quotazerolog "github.com/revlinehq/scotty/pkg/quota/logger/zerolog"
	prommetrics "github.com/revlinehq/scotty/pkg/quota/metrics/prometheus"
	"github.com/revlinehq/scotty/server"
	fsstorage "github.com/revlinehq/scotty/storage/firestore"
	"github.com/revlinehq/scotty/storage/memory"
	pgstorage "github.com/revlinehq/scotty/storage/postgres"
	redisstorage "github.com/revlinehq/scotty/storage/redis"
)

func main() {
	if err := godotenv.Load(); err != nil {
		// .env is optional in production; environment variables win
		_ = err
	}

	zl := zerolog.New(os.Stderr).With().Timestamp().Logger()
	logger := quotazerolog.NewLogger(zl)

	ctx := context.Background()

	storage, cleanup, err := buildStorage(ctx, zl)
	if err != nil {
		zl.Fatal().Err(err).Msg("storage init failed")
	}
	defer cleanup()

	registry := prometheus.NewRegistry()
	metrics := prommetrics.NewMetrics(registry, "scotty")

	quotas, err := quota.NewManager(storage, quota.Config{
		Policy:  quota.DefaultPolicy(),
		Logger:  logger,
		Metrics: metrics,
	})
	if err != nil {
		zl.Fatal().Err(err).Msg("quota manager init failed")
	}

	aiClient, err := ai.NewOpenAIClient(ai.OpenAIConfig{
		APIKey: os.Getenv("OPENAI_API_KEY"),
	})
	if err != nil {
		zl.Fatal().Err(err).Msg("ai client init failed")
	}

	pipe, err := pipeline.New(aiClient, logger)
	if err != nil {
		zl.Fatal().Err(err).Msg("pipeline init failed")
	}

	handler, err := server.NewHandler(server.Config{
		Pipeline:  pipe,
		Quotas:    quotas,
		GetUserID: userIDFromHeader,
		Logger:    logger,
	})
	if err != nil {
		zl.Fatal().Err(err).Msg("server init failed")
	}

	router := handler.Router()
	mountBilling(router, quotas, logger, zl)

	addr := ":" + envOr("PORT", "8080")
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zl.Info().Str("addr", addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zl.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error().Err(err).Msg("shutdown error")
	}
}

// buildStorage selects the quota storage backend from STORAGE_BACKEND:
// memory (default), firestore, redis or postgres.
func buildStorage(ctx context.Context, zl zerolog.Logger) (quota.Storage, func(), error) {
	noop := func() {}

	switch strings.ToLower(envOr("STORAGE_BACKEND", "memory")) {
	case "firestore":
		client, err := firestoreapi.NewClient(ctx, os.Getenv("GOOGLE_CLOUD_PROJECT"))
		if err != nil {
			return nil, noop, err
		}
		s, err := fsstorage.New(client, fsstorage.Config{})
		if err != nil {
			return nil, noop, err
		}
		return s, func() { _ = client.Close() }, nil

	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr: envOr("REDIS_ADDR", "localhost:6379"),
		})
		s, err := redisstorage.New(client, redisstorage.DefaultConfig())
		if err != nil {
			return nil, noop, err
		}
		return s, func() { _ = client.Close() }, nil

	case "postgres":
		config := pgstorage.DefaultConfig()
		config.ConnectionString = os.Getenv("DATABASE_URL")
		s, err := pgstorage.New(ctx, config)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil

	default:
		zl.Info().Msg("using in-memory storage")
		return memory.New(), noop, nil
	}
}

// mountBilling wires the configured billing webhooks under /webhooks.
func mountBilling(router chi.Router, quotas *quota.Manager, logger quota.Logger, zl zerolog.Logger) {
	if secret := os.Getenv("REVENUECAT_WEBHOOK_SECRET"); secret != "" {
		provider, err := revenuecat.NewProvider(billing.Config{
			Manager:       quotas,
			WebhookSecret: secret,
			APIKey:        os.Getenv("REVENUECAT_API_KEY"),
			Logger:        logger,
		})
		if err != nil {
			zl.Fatal().Err(err).Msg("revenuecat init failed")
		}
		router.Handle("/webhooks/revenuecat", provider.WebhookHandler())
	}

	if secret := os.Getenv("STRIPE_WEBHOOK_SECRET"); secret != "" {
		provider, err := stripebilling.NewProvider(stripebilling.Config{
			Config: billing.Config{
				Manager: quotas,
				Logger:  logger,
			},
			StripeAPIKey:        os.Getenv("STRIPE_API_KEY"),
			StripeWebhookSecret: secret,
		})
		if err != nil {
			zl.Fatal().Err(err).Msg("stripe init failed")
		}
		router.Handle("/webhooks/stripe", provider.WebhookHandler())
	}
}

func userIDFromHeader(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
