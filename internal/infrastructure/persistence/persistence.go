// Package persistence 依設定選擇會話儲存後端
package persistence

import (
	"context"
	"fmt"
	"strings"

	"kitchen-bot/internal/core/session"
	"kitchen-bot/internal/infrastructure/config"
	"kitchen-bot/internal/infrastructure/persistence/gormstore"
	"kitchen-bot/internal/infrastructure/persistence/redisstore"
	"kitchen-bot/internal/pkg/common"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewRedisClient 建立並測試 Redis 連線
func NewRedisClient(ctx context.Context, cfg config.StoreConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// Open 依 store.driver 建立會話儲存；redis 後端使用傳入的 client
func Open(ctx context.Context, cfg *config.Config, rdb *redis.Client) (session.Store, error) {
	switch cfg.Store.Driver {
	case "memory":
		common.LogInfo("使用記憶體會話儲存")
		return session.NewMemoryStore(), nil
	case "redis":
		if rdb == nil {
			return nil, fmt.Errorf("redis client is required for redis store")
		}
		common.LogInfo("使用 Redis 會話儲存", zap.String("addr", cfg.Store.RedisAddr))
		return redisstore.New(rdb, cfg.Session.MaxAge), nil
	case "postgres", "sqlite":
		db, err := openGorm(cfg)
		if err != nil {
			return nil, err
		}
		common.LogInfo("使用 SQL 會話儲存", zap.String("driver", cfg.Store.Driver))
		return gormstore.New(db)
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.Store.Driver)
	}
}

func openGorm(cfg *config.Config) (*gorm.DB, error) {
	level := logger.Silent
	if cfg.App.Debug {
		level = logger.Warn
	}
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(level)}

	var dialector gorm.Dialector
	if cfg.Store.Driver == "postgres" {
		dialector = postgres.Open(cfg.Store.DSN)
	} else {
		dialector = sqlite.Open(cfg.Store.DSN)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	if cfg.Store.Driver == "sqlite" && strings.Contains(cfg.Store.DSN, ":memory:") {
		// 每條連線都是獨立的記憶體資料庫
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.Store.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.Store.MaxIdleConns)
	}
	return db, nil
}
