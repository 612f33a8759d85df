// Package server exposes the gateway over HTTP.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/eion/tenantgate/internal/auth"
	"github.com/eion/tenantgate/internal/chat"
	"github.com/eion/tenantgate/internal/health"
	"github.com/eion/tenantgate/internal/knowledge"
)

// Headers an upstream gateway uses to pass an already verified identity.
const (
	AuthorizerTenantHeader = "X-Authorizer-Tenant-Id"
	AuthorizerUserHeader   = "X-Authorizer-User-Id"
)

// ChatHandler answers one chat completion event.
type ChatHandler interface {
	Handle(ctx context.Context, ev chat.Event) chat.Response
}

// Options are the HTTP settings of the router.
type Options struct {
	AllowedOrigins []string
	MaxRequestSize int64
	APIKeyHeader   string

	// TrustUpstreamAuthorizer turns the authorizer headers into an identity source.
	TrustUpstreamAuthorizer bool
}

// Dependencies are the services behind the routes. Knowledge and Health are optional.
type Dependencies struct {
	Chat      ChatHandler
	Resolver  chat.Authenticator
	Knowledge *knowledge.Handlers
	Health    *health.Manager
	Logger    *zap.Logger
}

// NewRouter builds the gin engine with every route mounted.
func NewRouter(opts Options, deps Dependencies) *gin.Engine {
	router := gin.New()

	router.Use(cors.New(corsConfig(opts)))
	router.Use(RequestID())
	router.Use(AccessLog(deps.Logger))
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		deps.Logger.Error("Recovered from panic in handler",
			zap.Any("panic", recovered),
			zap.String("path", c.Request.URL.Path))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}))

	router.GET("/health", healthHandler(deps.Health))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	v1.Use(MaxBodySize(opts.MaxRequestSize))
	v1.POST("/chat/completions", chatHandler(deps.Chat, opts.TrustUpstreamAuthorizer))

	if deps.Knowledge != nil {
		spaces := v1.Group("")
		spaces.Use(Authenticate(deps.Resolver, opts.TrustUpstreamAuthorizer))
		deps.Knowledge.RegisterRoutes(spaces)
	}

	return router
}

func corsConfig(opts Options) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", RequestIDHeader}
	if opts.APIKeyHeader != "" {
		cfg.AllowHeaders = append(cfg.AllowHeaders, opts.APIKeyHeader)
	}
	cfg.ExposeHeaders = []string{RequestIDHeader}

	origins := opts.AllowedOrigins
	if len(origins) == 0 || contains(origins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

func healthHandler(manager *health.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if manager == nil {
			c.JSON(http.StatusOK, health.Report{Healthy: true, Components: map[string]health.ComponentStatus{}})
			return
		}

		report := manager.RuntimeHealthCheck(c.Request.Context())
		status := http.StatusOK
		if !report.Healthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, report)
	}
}

// chatHandler converts the gin request into a transport-neutral event.
func chatHandler(handler ChatHandler, trustAuthorizer bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
			return
		}

		resp := handler.Handle(c.Request.Context(), chat.Event{
			RequestID:  GetRequestID(c),
			Path:       c.Request.URL.Path,
			Method:     c.Request.Method,
			Headers:    flattenHeaders(c.Request.Header),
			Body:       body,
			Authorizer: upstreamAuthorizer(c, trustAuthorizer),
		})
		c.Data(resp.StatusCode, "application/json; charset=utf-8", resp.Body)
	}
}

func authRequest(c *gin.Context, trustAuthorizer bool) *auth.Request {
	return &auth.Request{
		RequestID:  GetRequestID(c),
		Path:       c.Request.URL.Path,
		Method:     c.Request.Method,
		Headers:    flattenHeaders(c.Request.Header),
		Authorizer: upstreamAuthorizer(c, trustAuthorizer),
	}
}

// flattenHeaders keeps the first value of each header.
func flattenHeaders(h http.Header) auth.Headers {
	headers := make(auth.Headers, len(h))
	for name, values := range h {
		if len(values) > 0 {
			headers[name] = values[0]
		}
	}
	return headers
}

func upstreamAuthorizer(c *gin.Context, trusted bool) *auth.Authorizer {
	if !trusted {
		return nil
	}
	tenantID := c.GetHeader(AuthorizerTenantHeader)
	userID := c.GetHeader(AuthorizerUserHeader)
	if tenantID == "" && userID == "" {
		return nil
	}
	return &auth.Authorizer{TenantID: tenantID, UserID: userID}
}
