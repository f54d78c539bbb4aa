package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 應用配置
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	Telegram    TelegramConfig    `mapstructure:"telegram"`
	Completion  CompletionConfig  `mapstructure:"completion"`
	Transcriber TranscriberConfig `mapstructure:"transcriber"`
	Image       ImageConfig       `mapstructure:"image"`
	Store       StoreConfig       `mapstructure:"store"`
	Session     SessionConfig     `mapstructure:"session"`
	Culinary    CulinaryConfig    `mapstructure:"culinary"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Queue       QueueConfig       `mapstructure:"queue"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	DedupWindow time.Duration     `mapstructure:"dedup_window"`
	LogLevel    string            `mapstructure:"log_level"`
}

// AppConfig 應用程式設定
type AppConfig struct {
	Env     string `mapstructure:"env"`
	Debug   bool   `mapstructure:"debug"`
	Version string `mapstructure:"version"`
	Name    string `mapstructure:"name"`
}

// ServerConfig 服務器配置
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
}

// TelegramConfig Telegram 機器人設定
type TelegramConfig struct {
	Token       string `mapstructure:"token"`
	Mode        string `mapstructure:"mode"` // polling | webhook
	WebhookURL  string `mapstructure:"webhook_url"`
	PollTimeout int    `mapstructure:"poll_timeout"`
	Debug       bool   `mapstructure:"debug"`
}

// CompletionConfig 語言模型設定（OpenAI 相容 API）
type CompletionConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	Model           string        `mapstructure:"model"`
	Timeout         time.Duration `mapstructure:"timeout"`
	Retries         int           `mapstructure:"retries"`
	RecipeMaxTokens int           `mapstructure:"recipe_max_tokens"`
}

// TranscriberConfig 語音轉文字設定
type TranscriberConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	APIKey       string        `mapstructure:"api_key"`
	BaseURL      string        `mapstructure:"base_url"`
	Model        string        `mapstructure:"model"`
	Language     string        `mapstructure:"language"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxSizeBytes int64         `mapstructure:"max_size_bytes"`
}

// ImageConfig 菜餚圖片設定
type ImageConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	AccessKey string        `mapstructure:"access_key"`
	BaseURL   string        `mapstructure:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// StoreConfig 會話儲存設定
type StoreConfig struct {
	Driver        string `mapstructure:"driver"` // memory | postgres | sqlite | redis
	DSN           string `mapstructure:"dsn"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	MaxOpenConns  int    `mapstructure:"max_open_conns"`
	MaxIdleConns  int    `mapstructure:"max_idle_conns"`
}

// SessionConfig 會話生命週期設定
type SessionConfig struct {
	MaxAge       time.Duration `mapstructure:"max_age"`
	ReapInterval time.Duration `mapstructure:"reap_interval"`
}

// CulinaryConfig 領域規則設定
type CulinaryConfig struct {
	MixMinIngredients  int    `mapstructure:"mix_min_ingredients"`
	ValidationFailOpen bool   `mapstructure:"validation_fail_open"`
	DefaultLanguage    string `mapstructure:"default_language"`
}

// CacheConfig 緩存配置
type CacheConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Backend         string        `mapstructure:"backend"` // memory | redis
	MaxSize         int           `mapstructure:"max_size"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// QueueConfig 事件隊列設定
type QueueConfig struct {
	Workers int `mapstructure:"workers"`
	MaxSize int `mapstructure:"max_size"`
}

// RateLimitConfig 速率限制配置
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// LoadConfig 載入設定
func LoadConfig() (*Config, error) {
	// 加載 .env 文件，不存在時直接使用環境變數
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()

	// 設定預設值
	setDefaults(v)

	// 設定環境變數前綴
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 綁定環境變量
	bindEnv(v)

	// 添加調試日誌（logger 尚未初始化，改用 fmt.Println）
	fmt.Println("Loading configuration",
		"telegram_token:", maskAPIKey(v.GetString("telegram.token")),
		"completion_api_key:", maskAPIKey(v.GetString("completion.api_key")),
		"completion_model:", v.GetString("completion.model"),
		"store_driver:", v.GetString("store.driver"))

	// 解析設定
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 語音轉文字預設沿用模型 API Key
	if config.Transcriber.APIKey == "" {
		config.Transcriber.APIKey = config.Completion.APIKey
	}

	// 驗證必要設定
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

func bindEnv(v *viper.Viper) {
	_ = v.BindEnv("telegram.token", "TELEGRAM_TOKEN")
	_ = v.BindEnv("telegram.mode", "TELEGRAM_MODE")
	_ = v.BindEnv("telegram.webhook_url", "TELEGRAM_WEBHOOK_URL")
	_ = v.BindEnv("completion.api_key", "GROQ_API_KEY")
	_ = v.BindEnv("completion.base_url", "COMPLETION_BASE_URL")
	_ = v.BindEnv("completion.model", "GROQ_MODEL")
	_ = v.BindEnv("completion.recipe_max_tokens", "GROQ_MAX_TOKENS")
	_ = v.BindEnv("transcriber.language", "SPEECH_LANGUAGE")
	_ = v.BindEnv("image.access_key", "UNSPLASH_ACCESS_KEY")
	_ = v.BindEnv("store.driver", "STORE_DRIVER")
	_ = v.BindEnv("store.dsn", "DATABASE_URL")
	_ = v.BindEnv("store.redis_addr", "REDIS_ADDR")
	_ = v.BindEnv("store.redis_password", "REDIS_PASSWORD")
	_ = v.BindEnv("culinary.mix_min_ingredients", "COMPLEX_MEAL_MIN_INGREDIENTS")
	_ = v.BindEnv("culinary.default_language", "DEFAULT_LANGUAGE")
	_ = v.BindEnv("cache.enabled", "CACHE_ENABLED")
	_ = v.BindEnv("rate_limit.enabled", "RATE_LIMIT_ENABLED")
	_ = v.BindEnv("rate_limit.requests", "RATE_LIMIT_REQUESTS")
	_ = v.BindEnv("rate_limit.window", "RATE_LIMIT_WINDOW")
	_ = v.BindEnv("dedup_window", "DEDUP_WINDOW")
	_ = v.BindEnv("log_level", "LOG_LEVEL")
}

// maskAPIKey 遮罩 API Key，只顯示前後各 4 個字符
func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// setDefaults 設定預設值
func setDefaults(v *viper.Viper) {
	// 應用程式設定
	v.SetDefault("app.env", "development")
	v.SetDefault("app.debug", false)
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.name", "kitchen-bot")

	// 伺服器設定
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.max_body_bytes", 1<<20) // 1MB

	// Telegram 設定
	v.SetDefault("telegram.mode", "polling")
	v.SetDefault("telegram.poll_timeout", 30)
	v.SetDefault("telegram.debug", false)

	// 模型設定
	v.SetDefault("completion.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("completion.model", "llama-3.3-70b-versatile")
	v.SetDefault("completion.timeout", "30s")
	v.SetDefault("completion.retries", 1)
	v.SetDefault("completion.recipe_max_tokens", 2000)

	// 語音設定
	v.SetDefault("transcriber.enabled", true)
	v.SetDefault("transcriber.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("transcriber.model", "whisper-large-v3")
	v.SetDefault("transcriber.language", "ru")
	v.SetDefault("transcriber.timeout", "60s")
	v.SetDefault("transcriber.max_size_bytes", 20*1024*1024) // 20MB

	// 圖片設定
	v.SetDefault("image.enabled", true)
	v.SetDefault("image.base_url", "https://api.unsplash.com")
	v.SetDefault("image.timeout", "10s")

	// 儲存設定
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.redis_db", 0)
	v.SetDefault("store.max_open_conns", 10)
	v.SetDefault("store.max_idle_conns", 5)

	// 會話設定
	v.SetDefault("session.max_age", "72h")
	v.SetDefault("session.reap_interval", "1h")

	// 領域規則
	v.SetDefault("culinary.mix_min_ingredients", 5)
	v.SetDefault("culinary.validation_fail_open", true)
	v.SetDefault("culinary.default_language", "ru")

	// 快取設定
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.max_size", 1000)
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.cleanup_interval", "10m")

	// 隊列設定
	v.SetDefault("queue.workers", 5)
	v.SetDefault("queue.max_size", 100)

	// 限流設定
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests", 100)
	v.SetDefault("rate_limit.window", "1m")

	v.SetDefault("dedup_window", "2s")
	v.SetDefault("log_level", "info")
}

// validateConfig 驗證設定
func validateConfig(config *Config) error {
	if config.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}
	if config.Completion.APIKey == "" {
		return fmt.Errorf("completion api key is required")
	}

	switch config.Telegram.Mode {
	case "polling":
	case "webhook":
		if config.Telegram.WebhookURL == "" {
			return fmt.Errorf("webhook url is required in webhook mode")
		}
	default:
		return fmt.Errorf("unsupported telegram mode %q", config.Telegram.Mode)
	}

	// 驗證伺服器設定
	if config.Server.Port == 0 {
		return fmt.Errorf("server port is required")
	}

	// 驗證儲存設定
	switch config.Store.Driver {
	case "memory":
	case "postgres", "sqlite":
		if config.Store.DSN == "" {
			return fmt.Errorf("store dsn is required for driver %s", config.Store.Driver)
		}
	case "redis":
		if config.Store.RedisAddr == "" {
			return fmt.Errorf("redis address is required for redis store")
		}
	default:
		return fmt.Errorf("unsupported store driver %q", config.Store.Driver)
	}

	if config.Completion.Timeout <= 0 {
		return fmt.Errorf("invalid completion timeout")
	}
	if config.Completion.Retries < 0 {
		return fmt.Errorf("invalid completion retries")
	}

	if config.Culinary.MixMinIngredients < 1 {
		return fmt.Errorf("mix_min_ingredients must be at least 1")
	}
	switch config.Culinary.DefaultLanguage {
	case "ru", "en":
	default:
		return fmt.Errorf("unsupported default language %q", config.Culinary.DefaultLanguage)
	}

	// 驗證快取設定
	if config.Cache.Enabled {
		if config.Cache.MaxSize <= 0 {
			return fmt.Errorf("invalid cache max size")
		}
		if config.Cache.TTL <= 0 {
			return fmt.Errorf("invalid cache ttl")
		}
		if config.Cache.CleanupInterval <= 0 {
			return fmt.Errorf("invalid cache cleanup interval")
		}
		if config.Cache.Backend == "redis" && config.Store.RedisAddr == "" {
			return fmt.Errorf("redis address is required for redis cache")
		}
	}

	// 驗證隊列設定
	if config.Queue.Workers <= 0 {
		return fmt.Errorf("invalid queue workers")
	}
	if config.Queue.MaxSize <= 0 {
		return fmt.Errorf("invalid queue max size")
	}

	return nil
}
