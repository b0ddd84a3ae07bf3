package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/glidebook/glidebook/internal/http/middleware"
	"github.com/glidebook/glidebook/internal/payments"
	"github.com/glidebook/glidebook/internal/reservations"
	"github.com/glidebook/glidebook/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	ReservationsHandler *reservations.Handler
	ActivitiesHandler   http.Handler
	GatewayWebhook      *payments.WebhookHandler
	OrgChecker          httpmiddleware.OrgChecker
	MetricsHandler      http.Handler
	CORSAllowedOrigins  []string
	WebhookRatePerSec   float64
	WebhookBurst        int
	WebhookTimeout      time.Duration
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (webhooks, health checks)
	r.Group(func(public chi.Router) {
		public.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		if cfg.GatewayWebhook != nil {
			rate := cfg.WebhookRatePerSec
			burst := cfg.WebhookBurst
			if rate <= 0 {
				rate = 25
			}
			if burst <= 0 {
				burst = 50
			}
			timeout := cfg.WebhookTimeout
			if timeout <= 0 {
				timeout = 10 * time.Second
			}
			public.With(middleware.Timeout(timeout), httpmiddleware.RateLimit(rate, burst)).
				Post("/webhooks/gateway", cfg.GatewayWebhook.Handle)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Tenant API (org-scoped, X-Org-Id enforced)
	r.Group(func(api chi.Router) {
		api.Use(httpmiddleware.RequireOrg(cfg.OrgChecker))

		if cfg.ReservationsHandler != nil {
			api.Route("/reservations", func(r chi.Router) {
				r.Post("/", cfg.ReservationsHandler.Create)
				r.Route("/{reservationID}", func(r chi.Router) {
					r.Get("/", cfg.ReservationsHandler.Get)
					r.Post("/schedule", cfg.ReservationsHandler.Schedule)
					r.Post("/complete", cfg.ReservationsHandler.Complete)
					r.Post("/cancel", cfg.ReservationsHandler.Cancel)
				})
			})
		}
		if cfg.ActivitiesHandler != nil {
			api.Mount("/activities", cfg.ActivitiesHandler)
		}
	})

	return r
}
