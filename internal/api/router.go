// Package api assembles the HTTP surface: carrier-facing voicebot and
// webhook endpoints, the operator API and the dashboard socket.
package api

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/troikatech/collections-agent/internal/api/handlers"
	"github.com/troikatech/collections-agent/pkg/auth"
	"github.com/troikatech/collections-agent/pkg/env"
	"github.com/troikatech/collections-agent/pkg/middleware"
	"github.com/troikatech/collections-agent/pkg/otel"
	"github.com/troikatech/collections-agent/pkg/webhook"
)

// NewRouter registers every route. A nil redisClient disables rate
// limiting and idempotency replay.
func NewRouter(cfg *env.Config, h *handlers.Handler, redisClient redis.Cmdable, logger *zap.Logger) *gin.Engine {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.TraceMiddleware())
	if cfg.OTELEnabled {
		router.Use(otel.GinMiddleware())
	}
	router.Use(middleware.AccessLog(logger))

	corsConfig := cors.DefaultConfig()
	if cfg.CORSAllowedOrigins == "" || cfg.CORSAllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		for _, o := range strings.Split(cfg.CORSAllowedOrigins, ",") {
			corsConfig.AllowOrigins = append(corsConfig.AllowOrigins, strings.TrimSpace(o))
		}
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "Idempotency-Key"}
	router.Use(cors.New(corsConfig))

	router.GET("/health", h.HealthCheck)
	router.GET("/metrics", h.GetPrometheusMetrics())

	// Carrier-facing; the websocket does its own token check
	voicebot := router.Group("/voicebot")
	{
		voicebot.GET("/init", h.ExotelVoicebotEndpoint)
		voicebot.POST("/init", h.ExotelVoicebotEndpoint)
		voicebot.GET("/ws", h.VoicebotWebSocket)
	}
	router.POST("/webhooks/exotel/status", webhook.RequireExotelSignature(cfg.ExotelWebhookSecret), h.ExotelStatusWebhook)

	authGroup := router.Group("/auth")
	if redisClient != nil {
		authGroup.Use(middleware.NewAuthRateLimiter(redisClient, 5, 15*time.Minute, 30*time.Minute).Middleware())
	}
	{
		authGroup.POST("/token", h.Login)
		authGroup.POST("/refresh", h.Refresh)
	}

	requireAuth := middleware.AuthMiddleware(cfg.JWTSecret, cfg.JWTIssuer)
	router.GET("/dashboard/ws", requireAuth, h.DashboardWebSocket)

	api := router.Group("/api")
	api.Use(requireAuth)
	if redisClient != nil {
		api.Use(middleware.NewRateLimiter(redisClient, cfg.APIRateLimitRPM, logger).Middleware())
		api.Use(middleware.IdempotencyMiddleware(redisClient))
	}
	{
		calls := api.Group("/calls")
		{
			calls.POST("", middleware.RoleMiddleware(auth.RoleOperator), h.CreateCall)
			calls.GET("/live", h.ListLiveCalls)
			calls.GET("/outcomes", h.GetCallOutcomes)
			calls.POST("/:call_id/hangup", middleware.RoleMiddleware(auth.RoleOperator), h.HangupCall)
		}
		api.GET("/audit", middleware.RoleMiddleware(auth.RoleOperator), h.ListAuditLogs)
		api.POST("/dialogue/preview", middleware.RoleMiddleware(auth.RoleOperator), h.PreviewDialogue)

		speech := api.Group("/speech")
		{
			speech.POST("/preview", h.PreviewSpeech)
			speech.POST("/transcribe", h.TranscribeSpeech)
		}
	}

	return router
}
