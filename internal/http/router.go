// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, the websocket gateway, and route handlers. It centralizes
// cross-cutting concerns such as tracing, correlation IDs, logging, panic
// recovery, metrics, compression, CORS, security headers, authentication,
// and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Authentication before any store access
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
	"gorm.io/gorm"

	"github.com/templatehub/chat-backend/internal/config"
	"github.com/templatehub/chat-backend/internal/domain"
	"github.com/templatehub/chat-backend/internal/gateway"
	"github.com/templatehub/chat-backend/internal/http/handlers"
	"github.com/templatehub/chat-backend/internal/http/middleware"
	"github.com/templatehub/chat-backend/internal/repo"
	"github.com/templatehub/chat-backend/internal/services"
)

// conversationRepoShim adapts the repository free functions to the
// services.ConversationRepo interface. This keeps services decoupled from
// the concrete repo package while reusing existing functions.
type conversationRepoShim struct{}

// FindOrCreate proxies repo.FindOrCreateConversation.
func (conversationRepoShim) FindOrCreate(ctx context.Context, db *gorm.DB, userX, userY string) (*domain.Conversation, error) {
	return repo.FindOrCreateConversation(ctx, db, userX, userY)
}

// Get proxies repo.GetConversation.
func (conversationRepoShim) Get(ctx context.Context, db *gorm.DB, id string) (*domain.Conversation, error) {
	return repo.GetConversation(ctx, db, id)
}

// ListForUser proxies repo.ListConversationsForUser.
func (conversationRepoShim) ListForUser(ctx context.Context, db *gorm.DB, userID string) ([]domain.Conversation, error) {
	return repo.ListConversationsForUser(ctx, db, userID)
}

// Touch proxies repo.TouchConversation.
func (conversationRepoShim) Touch(ctx context.Context, db *gorm.DB, id, preview string, at time.Time) error {
	return repo.TouchConversation(ctx, db, id, preview, at)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine: observability (tracing, metrics), authentication, rate limiting,
// CORS and security headers, health and metrics endpoints, the websocket
// upgrade, and the REST API under the configured base path.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured access logs
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Auth (before any store access)
//  8. Rate limiter (per user/IP; auth ran first so buckets are per-user)
//  9. CORS and security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, hub *gateway.Hub, dir services.UserDirectory, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging
	r.Use(middleware.Logger())

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (12 MiB; attachment uploads are the largest
	// legitimate bodies and the upload handler enforces its own 10 MiB cap)
	r.Use(limitBody(12 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Bearer authentication (also covers the websocket handshake)
	auth := middleware.Auth(middleware.AuthOptions{Secret: cfg.JWTSecret})

	// 8) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())

	// 9) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
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
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag"},
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

	// Uploaded attachments are served as static content.
	r.Static("/uploads", cfg.UploadDir)

	// Dependency injection: services ← repo/db/hub
	convSvc := services.NewConversationService(db, conversationRepoShim{}, dir)
	msgSvc := &services.MessageService{
		DB:              db,
		MaxContentRunes: cfg.MaxMessageRunes,
		ResponseWindow:  cfg.ResponseWindow,
	}
	statsSvc := services.NewStatsService(db)
	h := handlers.New(convSvc, msgSvc, statsSvc, cfg.UploadDir)

	gateway.NewDispatcher(hub, convSvc, msgSvc, cfg.WSCommandTimeout)

	// Websocket upgrade. No gzip here: hijacked connections cannot go
	// through the compressing response writer.
	r.GET("/ws", auth, rl.Handler(), gateway.ServeWS(hub))

	// Public REST API
	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(auth, rl.Handler(), gzip.Gzip(gzip.DefaultCompression))
	{
		// Conversations
		api.POST("/conversations", h.StartConversation)
		api.GET("/conversations", h.ListConversations)

		// Messages
		api.GET("/messages/:conversationId", h.ListMessages)
		api.POST("/messages", h.PostMessage)
		api.POST("/messages/:conversationId/read", h.MarkMessagesRead)
		api.DELETE("/messages/:conversationId", h.PurgeConversation)

		// Attachments
		api.POST("/upload", h.Upload)

		// Stats
		api.GET("/stats/response", h.ResponseStats)
		api.GET("/stats/response/detailed", h.DetailedResponseStats)
		api.GET("/stats/response/:userId", h.ResponseStatsFor)
	}
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the
// cap will cause downstream body reads to error.
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
