package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kitchen-bot/internal/api"
	"kitchen-bot/internal/channel/telegram"
	"kitchen-bot/internal/core/ai/cache"
	"kitchen-bot/internal/core/ai/groq"
	"kitchen-bot/internal/core/ai/service"
	"kitchen-bot/internal/core/dialogue"
	"kitchen-bot/internal/core/image"
	"kitchen-bot/internal/core/queue"
	"kitchen-bot/internal/core/recipe"
	"kitchen-bot/internal/core/session"
	"kitchen-bot/internal/core/voice"
	"kitchen-bot/internal/infrastructure/config"
	"kitchen-bot/internal/infrastructure/persistence"
	"kitchen-bot/internal/pkg/common"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

func main() {
	// 載入設定（.env 由 LoadConfig 讀取）
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := common.InitLogger(cfg.LogLevel); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	if err := run(cfg); err != nil {
		common.LogFatal("Bot exited with error", zap.Error(err))
	}
	common.LogInfo("Bot exited")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	common.LogInfo("載入設定",
		zap.String("model", cfg.Completion.Model),
		zap.String("store", cfg.Store.Driver),
		zap.String("telegram_mode", cfg.Telegram.Mode),
		zap.Bool("cache_enabled", cfg.Cache.Enabled),
	)

	// Redis 連線：會話或快取任一使用 redis 時建立
	var rdb *redis.Client
	if cfg.Store.Driver == "redis" || (cfg.Cache.Enabled && cfg.Cache.Backend == "redis") {
		client, err := persistence.NewRedisClient(ctx, cfg.Store)
		if err != nil {
			return err
		}
		rdb = client
		// redis 會話儲存關閉時會一併關閉 client
		if cfg.Store.Driver != "redis" {
			defer rdb.Close()
		}
	}

	store, err := persistence.Open(ctx, cfg, rdb)
	if err != nil {
		return fmt.Errorf("open session store: %w", err)
	}
	defer store.Close()

	completionCache, err := newCompletionCache(cfg, rdb)
	if err != nil {
		return err
	}
	if completionCache != nil {
		defer completionCache.Close()
	}

	client := groq.NewClient(cfg.Completion)
	defer client.Close()
	gateway := service.NewGateway(client, completionCache, service.Options{
		Timeout: cfg.Completion.Timeout,
		Retries: cfg.Completion.Retries,
	})

	culinary := recipe.NewService(gateway, recipe.Options{
		MixMinIngredients:  cfg.Culinary.MixMinIngredients,
		ValidationFailOpen: cfg.Culinary.ValidationFailOpen,
		RecipeMaxTokens:    cfg.Completion.RecipeMaxTokens,
	})

	bot, err := telegram.New(cfg.Telegram)
	if err != nil {
		return err
	}

	deps := dialogue.Deps{
		Store:    store,
		Culinary: culinary,
		Channel:  bot,
	}
	if v := voice.NewService(cfg.Transcriber); v.Enabled() {
		deps.Transcriber = v
	}
	if cfg.Image.Enabled && cfg.Image.AccessKey != "" {
		deps.Images = image.NewService(cfg.Image)
	}

	controller := dialogue.NewController(deps, dialogue.Options{
		DefaultLanguage: common.Language(cfg.Culinary.DefaultLanguage),
		DedupWindow:     cfg.DedupWindow,
	})
	defer controller.Close()

	events := queue.NewManager(cfg.Queue, controller)
	events.Start(ctx)
	defer events.Close()

	go session.NewReaper(store, cfg.Session.MaxAge, cfg.Session.ReapInterval).Run(ctx)

	routerDeps := api.Deps{
		Store:    store,
		Culinary: culinary,
		Queue:    events,
	}
	if cfg.Telegram.Mode == "webhook" {
		routerDeps.Webhook = func(r *http.Request) error {
			return bot.HandleWebhook(r, events)
		}
		if err := bot.RegisterWebhook(); err != nil {
			return err
		}
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.SetupRouter(cfg, routerDeps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		common.LogInfo("啟動應用",
			zap.String("version", cfg.App.Version),
			zap.String("env", cfg.App.Env),
			zap.Int("port", cfg.Server.Port),
			zap.String("bot", bot.Username()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	if cfg.Telegram.Mode != "webhook" {
		go func() {
			if err := bot.Poll(ctx, events); err != nil {
				common.LogError("長輪詢中止", zap.Error(err))
				stop()
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	common.LogInfo("Shutting down bot...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		common.LogError("Server forced to shutdown", zap.Error(err))
	}
	return nil
}

// newCompletionCache 依設定建立模型回應快取；停用時回傳 nil
func newCompletionCache(cfg *config.Config, rdb *redis.Client) (cache.Store, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	if cfg.Cache.Backend == "redis" {
		if rdb == nil {
			return nil, errors.New("redis client is required for redis cache")
		}
		return cache.NewRedisStore(rdb, cfg.Cache.TTL), nil
	}
	return cache.NewManager(cfg.Cache), nil
}
