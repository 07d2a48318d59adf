// Package router assembles the HTTP surface: the Twilio webhooks, the
// health probe, and the metrics endpoint.
package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/citycare/clinic-assistant/internal/http/middleware"
	"github.com/citycare/clinic-assistant/internal/webhooks"
	"github.com/citycare/clinic-assistant/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger   *logging.Logger
	Webhooks *webhooks.Handler

	// TwilioAuthToken enables webhook signature validation when set.
	TwilioAuthToken string

	// MetricsHandler serves GET /metrics when set.
	MetricsHandler http.Handler

	// WebhookRateLimit caps webhook requests per second per IP. Zero
	// disables limiting.
	WebhookRateLimit float64
	WebhookBurst     int
}

// New creates a chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", healthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/webhooks", func(hooks chi.Router) {
		hooks.Use(webhooks.RequireSignature(cfg.TwilioAuthToken))
		if cfg.WebhookRateLimit > 0 {
			hooks.Use(httpmiddleware.RateLimit(cfg.WebhookRateLimit, cfg.WebhookBurst))
		}
		hooks.Post("/voice", cfg.Webhooks.Voice)
		hooks.Post("/sms", cfg.Webhooks.SMS)
	})

	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
