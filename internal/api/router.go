package api

import (
	"context"
	"net/http"
	"time"

	"kitchen-bot/internal/api/handlers"
	"kitchen-bot/internal/api/handlers/health"
	recipeHandler "kitchen-bot/internal/api/handlers/recipe"
	"kitchen-bot/internal/api/middleware"
	"kitchen-bot/internal/core/session"
	"kitchen-bot/internal/infrastructure/config"
	"kitchen-bot/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	// 超時設置
	timeoutDuration = 120 * time.Second
	// 預設請求體大小限制 (1MB)
	defaultMaxBodySize = 1 << 20
	// WebhookPath Telegram webhook 路徑
	WebhookPath = "/telegram/webhook"
)

// Deps 路由需要的服務
type Deps struct {
	Store    session.Store
	Culinary recipeHandler.Culinary
	Queue    health.QueueStatus
	// Webhook 為 nil 時不註冊 webhook 路由（長輪詢模式）
	Webhook func(r *http.Request) error
}

// SetupRouter 設置路由
func SetupRouter(cfg *config.Config, deps Deps) *gin.Engine {
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.NoRoute(func(c *gin.Context) { handlers.RespondError(c, common.ErrNotFound) })
	router.NoMethod(func(c *gin.Context) { handlers.RespondError(c, common.ErrMethodNotAllowed) })
	router.Use(middleware.Recovery())
	router.Use(requestid.New())
	router.Use(middleware.Logger())

	maxBodySize := cfg.Server.MaxBodyBytes
	if maxBodySize <= 0 {
		maxBodySize = defaultMaxBodySize
	}

	healthHandler := health.NewHandler(cfg.App.Version, deps.Store, deps.Queue)
	router.GET("/health", healthHandler.HealthCheck)
	router.GET("/ready", healthHandler.ReadinessCheck)
	router.GET("/live", healthHandler.LivenessCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if deps.Webhook != nil {
		hook := router.Group(WebhookPath)
		hook.Use(middleware.BodySizeLimit(maxBodySize))
		if cfg.RateLimit.Enabled {
			hook.Use(middleware.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window))
		}
		hook.Use(middleware.Deduplication(cfg.DedupWindow))
		hook.POST("", func(c *gin.Context) {
			if err := deps.Webhook(c.Request); err != nil {
				common.LogWarn("無法解析 webhook 更新", zap.Error(err))
				c.AbortWithStatus(http.StatusBadRequest)
				return
			}
			c.Status(http.StatusOK)
		})
	}

	api := router.Group("/api/v1")
	api.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}))
	api.Use(middleware.BodySizeLimit(maxBodySize))
	if cfg.RateLimit.Enabled {
		api.Use(middleware.RateLimit(cfg.RateLimit.Requests, cfg.RateLimit.Window))
	}
	api.Use(requestTimeout(timeoutDuration))
	{
		sessions := handlers.NewSessionHandler(deps.Store)
		api.GET("/sessions/:user_id", sessions.Get)
		api.DELETE("/sessions/:user_id", sessions.Delete)
		api.GET("/sessions/:user_id/recipes", sessions.Recipes)

		if deps.Culinary != nil {
			recipes := recipeHandler.NewHandler(deps.Culinary, common.Language(cfg.Culinary.DefaultLanguage))
			api.POST("/recipes", recipes.HandleRecipe)
			api.POST("/menu", recipes.HandleMenu)
		}
	}

	common.LogInfo("Router setup completed successfully",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.Bool("webhook", deps.Webhook != nil),
		zap.Bool("rate_limit", cfg.RateLimit.Enabled),
		zap.Int64("max_body_size", maxBodySize),
	)

	return router
}

// requestTimeout 為請求設定逾時，逾時後回傳 504
func requestTimeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if ctx.Err() == context.DeadlineExceeded && !c.Writer.Written() {
			common.LogError("Request timeout",
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", requestid.Get(c)),
				zap.Duration("timeout", timeout),
			)
			c.AbortWithStatusJSON(http.StatusGatewayTimeout, common.ErrorResponse{
				Code:    common.ErrCodeGatewayTimeout,
				Message: common.ErrGatewayTimeout.Message,
			})
		}
	}
}
