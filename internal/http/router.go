// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, idempotency, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/ayan319/slack-summary-scribe/internal/ai"
	"github.com/ayan319/slack-summary-scribe/internal/catalog"
	"github.com/ayan319/slack-summary-scribe/internal/config"
	"github.com/ayan319/slack-summary-scribe/internal/domain"
	"github.com/ayan319/slack-summary-scribe/internal/entitlement"
	"github.com/ayan319/slack-summary-scribe/internal/http/handlers"
	"github.com/ayan319/slack-summary-scribe/internal/http/middleware"
	"github.com/ayan319/slack-summary-scribe/internal/ratelimit"
	"github.com/ayan319/slack-summary-scribe/internal/repo"
	"github.com/ayan319/slack-summary-scribe/internal/services"
	"github.com/ayan319/slack-summary-scribe/internal/textprep"
	"github.com/ayan319/slack-summary-scribe/internal/usage"
)

// usageStoreShim adapts the repository free functions to the usage.Store
// interface expected by the meter. This keeps the metering package decoupled
// from the concrete repo package while reusing existing functions.
type usageStoreShim struct {
	db *gorm.DB
}

// InsertUsage proxies repo.InsertUsage.
func (s usageStoreShim) InsertUsage(ctx context.Context, rec *domain.UsageRecord) error {
	return repo.InsertUsage(ctx, s.db, rec)
}

// idemStoreShim adapts the idempotency repository functions to the
// handlers.IdempotencyStore interface.
type idemStoreShim struct {
	db *gorm.DB
}

// Find proxies repo.GetIdempotency.
func (s idemStoreShim) Find(ctx context.Context, userID, scope, key string, now time.Time) (*domain.Idempotency, error) {
	return repo.GetIdempotency(ctx, s.db, userID, scope, key, now)
}

// Save proxies repo.CreateIdempotency.
func (s idemStoreShim) Save(ctx context.Context, userID, scope, key, summaryID string, status int, ttl time.Duration) error {
	_, err := repo.CreateIdempotency(ctx, s.db, userID, scope, key, summaryID, status, ttl)
	return err
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), idempotency and rate
// limiting, CORS and security headers, health and metrics endpoints, and then
// mounts the versioned public API under /api/v*.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Gzip compression
//  7. Metrics
//  8. Idempotency validator (before rate limiter to allow bypass on replay)
//  9. Rate limiter (per user/IP, bypass on replay)
//  10. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{
			"X-API-Key",
		},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB); transcripts are text, not uploads
	r.Use(limitBody(1 << 20))

	// 6) Compress summary/tag payloads
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 7) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 8) Idempotency validation (before rate limiting)
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{
			Scope:  "summarize",
			MaxLen: 200,
		},
		func(ctx context.Context, userID, scope, key string, now time.Time) (bool, error) {
			rec, err := repo.GetIdempotency(ctx, db, userID, scope, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 9) Token-bucket rate limiter per user/IP (burst protection in front of
	// the per-operation quotas enforced inside the services)
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	rl.OnLimit = handlers.FailRateLimited
	r.Use(rl.Handler())

	// 10) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID", middleware.HeaderIdempotencyKey},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Dependency injection: catalog → backends → services ← repo/db
	cat := catalog.MustDefault()
	backends := map[string]ai.Backend{
		catalog.ProviderAnthropic: ai.NewAnthropicBackend(cfg.AI.AnthropicAPIKey, int64(cfg.AI.MaxTokens)),
		catalog.ProviderLegacy:    ai.NewLegacyBackend(cfg.AI.LegacyBaseURL, cfg.AI.LegacyAPIKey, cfg.AI.MaxTokens, nil),
	}
	invoker := ai.NewInvoker(cat, backends)
	meter := usage.NewMeter(cat, usageStoreShim{db: db})
	plans := entitlement.NewResolver(&repo.SubscriptionStore{DB: db})

	sumSvc := &services.SummaryService{
		DB:           db,
		Limiter:      ratelimit.New(cfg.SummarizeQuota.Limit, cfg.SummarizeQuota.Window),
		Plans:        plans,
		Selector:     catalog.NewSelector(cat),
		Invoker:      invoker,
		Meter:        meter,
		MaxTextRunes: cfg.AI.MaxTextRunes,
		InvokeTO:     cfg.AI.InvokeTimeout,
		TitleGen:     textprep.Titler{Locale: language.English},
	}
	tagSvc := &services.TaggingService{
		DB:      db,
		Limiter: ratelimit.New(cfg.TaggingQuota.Limit, cfg.TaggingQuota.Window),
		Plans:   plans,
		Catalog: cat,
		Invoker: invoker,
		Meter:   meter,
	}
	h := handlers.New(sumSvc, tagSvc).
		WithIdempotency(idemStoreShim{db: db}, cfg.IdempotencyTTL)

	// Public API
	apiBase := cfg.APIBasePath // e.g. "/api/v1"
	api := groupWithPrefix(r, apiBase)
	{
		// Summaries
		api.POST("/summarize", h.Summarize)
		api.GET("/summaries", h.ListSummaries)
		api.GET("/summaries/:id", h.GetSummary)

		// Tags
		api.POST("/summaries/:id/tags", h.ExtractTags)
		api.GET("/summaries/:id/tags", h.GetTags)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
