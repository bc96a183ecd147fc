package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"identity-service/internal/auth"
	"identity-service/internal/metrics"
	"identity-service/internal/service"
)

// DefaultMaxAvatarBytes bounds avatar uploads when no limit is configured.
const DefaultMaxAvatarBytes int64 = 5 << 20

const healthTimeout = 2 * time.Second

// Pinger reports whether the record store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators served by the HTTP surface.
type Deps struct {
	Auth    service.AuthService
	Reset   service.ResetService
	Users   service.UserService
	Tokens  *auth.TokenCodec
	Health  Pinger
	Metrics *metrics.Metrics
	Logger  logrus.FieldLogger

	MaxAvatarBytes int64
}

// Handler wires HTTP routes to domain services.
type Handler struct {
	auth           service.AuthService
	reset          service.ResetService
	users          service.UserService
	tokens         *auth.TokenCodec
	health         Pinger
	metrics        *metrics.Metrics
	logger         logrus.FieldLogger
	maxAvatarBytes int64
}

func NewHandler(deps Deps) *Handler {
	h := &Handler{
		auth:           deps.Auth,
		reset:          deps.Reset,
		users:          deps.Users,
		tokens:         deps.Tokens,
		health:         deps.Health,
		metrics:        deps.Metrics,
		logger:         deps.Logger,
		maxAvatarBytes: deps.MaxAvatarBytes,
	}
	if h.logger == nil {
		h.logger = logrus.StandardLogger()
	}
	if h.maxAvatarBytes <= 0 {
		h.maxAvatarBytes = DefaultMaxAvatarBytes
	}
	return h
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(requestIDMiddleware(), accessLogMiddleware(h.logger))
	if h.metrics != nil {
		router.Use(metricsMiddleware(h.metrics))
		router.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}
	router.Use(corsMiddleware())

	router.GET("/health", h.healthCheck)

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", h.register)
		authGroup.POST("/login", h.login)
		authGroup.POST("/refresh", h.refresh)
		authGroup.POST("/validate", h.validate)
		authGroup.POST("/request-password-reset", h.requestPasswordReset)
		authGroup.POST("/reset-password", h.resetPassword)
	}

	users := router.Group("/users/:id", h.requireAuth(), requireOwner())
	{
		users.GET("", h.getUser)
		users.PUT("/profile", h.updateProfile)
		users.PUT("/preferences", h.updatePreferences)
		users.PUT("/avatar", h.uploadAvatar)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (h *Handler) healthCheck(c *gin.Context) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()
		if err := h.health.Ping(ctx); err != nil {
			h.logger.WithField("error", err).Warn("health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
