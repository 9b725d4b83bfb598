package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/jahboukie/ndarite/internal/api/handlers"
	"github.com/jahboukie/ndarite/internal/api/middleware"
	"github.com/jahboukie/ndarite/internal/config"
	"github.com/jahboukie/ndarite/internal/db/models"
	"github.com/jahboukie/ndarite/internal/services"
	"github.com/jahboukie/ndarite/pkg/metrics"
)

type Router struct {
	engine  *gin.Engine
	cfg     *config.Configuration
	logger  *zap.Logger
	metrics *metrics.Collector
	db      *gorm.DB

	authHandler         *handlers.AuthHandler
	userHandler         *handlers.UserHandler
	templateHandler     *handlers.TemplateHandler
	documentHandler     *handlers.DocumentHandler
	subscriptionHandler *handlers.SubscriptionHandler
	webhookHandler      *handlers.WebhookHandler
	apiKeyHandler       *handlers.APIKeyHandler
	adminHandler        *handlers.AdminHandler

	authMiddleware      *middleware.AuthMiddleware
	reqMiddleware       *middleware.RequestMiddleware
	rateLimitMiddleware *middleware.RateLimitMiddleware
}

type Services struct {
	Accounts  *services.AccountService
	Tokens    *services.TokenService
	Documents *services.DocumentService
	Billing   *services.BillingService
	APIKeys   *services.APIKeyService
	Usage     *services.UsageService
	Cache     *services.Cache
}

func NewRouter(
	cfg *config.Configuration,
	logger *zap.Logger,
	collector *metrics.Collector,
	svc *Services,
	db *gorm.DB,
) *Router {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()

	reqMiddleware := middleware.NewRequestMiddleware(logger, collector, cfg.Server.AllowedOrigins)
	authMiddleware := middleware.NewAuthMiddleware(svc.Tokens, svc.APIKeys, db, logger)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(svc.Cache, logger)

	engine.Use(reqMiddleware.RecoverPanic())
	engine.Use(reqMiddleware.ProcessRequest())
	engine.Use(reqMiddleware.SecurityHeaders())
	engine.Use(reqMiddleware.CORS())

	return &Router{
		engine:  engine,
		cfg:     cfg,
		logger:  logger,
		metrics: collector,
		db:      db,

		authHandler:         handlers.NewAuthHandler(svc.Accounts, svc.Tokens, logger),
		userHandler:         handlers.NewUserHandler(svc.Accounts, svc.Usage, cfg.Tiers, db, logger),
		templateHandler:     handlers.NewTemplateHandler(db, svc.Usage, logger),
		documentHandler:     handlers.NewDocumentHandler(svc.Documents, svc.Usage, db, logger),
		subscriptionHandler: handlers.NewSubscriptionHandler(svc.Billing, svc.Usage, cfg.Tiers, logger),
		webhookHandler:      handlers.NewWebhookHandler(svc.Billing, svc.Documents, cfg.Billing.StripeWebhookSecret, cfg.ESign.WebhookSecret, logger),
		apiKeyHandler:       handlers.NewAPIKeyHandler(svc.APIKeys, logger),
		adminHandler:        handlers.NewAdminHandler(db, collector, logger),

		authMiddleware:      authMiddleware,
		reqMiddleware:       reqMiddleware,
		rateLimitMiddleware: rateLimitMiddleware,
	}
}

func (r *Router) SetupRoutes() {
	r.engine.GET("/", r.banner)
	r.engine.GET("/health", r.healthCheck)

	limit := r.rateLimitMiddleware.Limit("api", r.cfg.Security.RateLimitPerMinute)
	strictLimit := r.rateLimitMiddleware.Limit("auth", r.cfg.Security.StrictRateLimit)

	v1 := r.engine.Group("/api/v1")

	auth := v1.Group("/auth", strictLimit)
	{
		auth.POST("/register", r.authHandler.Register)
		auth.POST("/login", r.authHandler.Login)
		auth.POST("/refresh", r.authHandler.Refresh)
		auth.POST("/logout", r.authHandler.Logout)
		auth.POST("/forgot-password", r.authHandler.ForgotPassword)
		auth.POST("/reset-password", r.authHandler.ResetPassword)
		auth.POST("/verify-email", r.authHandler.VerifyEmail)
	}

	users := v1.Group("/users", limit, r.authMiddleware.RequireAuth())
	{
		users.GET("/me", r.userHandler.Profile)
		users.PUT("/me", r.userHandler.UpdateProfile)
		users.DELETE("/me", r.userHandler.Deactivate)
		users.POST("/me/change-password", r.userHandler.ChangePassword)
		users.GET("/me/stats", r.userHandler.Stats)
	}

	templates := v1.Group("/templates", limit, r.authMiddleware.OptionalAuth())
	{
		templates.GET("", r.templateHandler.List)
		templates.GET("/categories", r.templateHandler.ListCategories)
		templates.GET("/:id", r.templateHandler.Get)
	}

	documents := v1.Group("/documents", limit, r.authMiddleware.RequireAuth())
	{
		documents.POST("/generate", r.documentHandler.Generate)
		documents.GET("", r.documentHandler.List)
		documents.GET("/:id", r.documentHandler.Get)
		documents.PUT("/:id", r.documentHandler.Update)
		documents.DELETE("/:id", r.documentHandler.Delete)
		documents.GET("/:id/download", r.documentHandler.Download)

		signature := documents.Group("", r.authMiddleware.RequireTier(models.TierProfessional))
		{
			signature.POST("/:id/signature", r.documentHandler.SendSignature)
		}
		documents.GET("/:id/signature", r.documentHandler.SignatureStatus)
	}

	subscriptions := v1.Group("/subscriptions", limit)
	{
		subscriptions.GET("/plans", r.subscriptionHandler.Plans)

		authed := subscriptions.Group("", r.authMiddleware.RequireAuth())
		{
			authed.GET("/current", r.subscriptionHandler.Current)
			authed.POST("/upgrade", r.subscriptionHandler.Upgrade)
			authed.POST("/cancel", r.subscriptionHandler.Cancel)
			authed.GET("/usage", r.subscriptionHandler.Usage)
		}
	}

	apiKeys := v1.Group("/apikeys", limit, r.authMiddleware.RequireAuth())
	{
		apiKeys.POST("", r.apiKeyHandler.Create)
		apiKeys.GET("", r.apiKeyHandler.List)
		apiKeys.DELETE("/:id", r.apiKeyHandler.Revoke)
	}

	webhooks := v1.Group("/webhooks")
	{
		webhooks.POST("/stripe", r.webhookHandler.Stripe)
		webhooks.POST("/esign", r.webhookHandler.ESign)
	}

	admin := v1.Group("/admin", limit, r.authMiddleware.RequireAuth(), r.authMiddleware.RequireAdmin())
	{
		admin.GET("/overview", r.adminHandler.Overview)
		admin.GET("/users", r.userHandler.ListUsers)
		admin.PUT("/users/:id/activate", r.userHandler.SetUserActive(true))
		admin.PUT("/users/:id/deactivate", r.userHandler.SetUserActive(false))
		admin.GET("/audit-logs", r.adminHandler.AuditLogs)
		admin.GET("/usage-report", r.adminHandler.UsageReport)
		admin.GET("/metrics", r.adminHandler.Metrics)
		admin.POST("/templates", r.templateHandler.Create)
		admin.PUT("/templates/:id", r.templateHandler.Update)
		admin.DELETE("/templates/:id", r.templateHandler.Deactivate)
	}
}

func (r *Router) banner(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "ndarite-api",
		"version": "v1",
	})
}

func (r *Router) healthCheck(c *gin.Context) {
	sqlDB, err := r.db.DB()
	if err != nil || sqlDB.Ping() != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": "down"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Engine exposes the underlying gin engine, mainly for tests.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}
