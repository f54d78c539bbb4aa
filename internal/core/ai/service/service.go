package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kitchen-bot/internal/core/ai/cache"
	"kitchen-bot/internal/core/ai/provider"
	"kitchen-bot/internal/core/prompts"
	"kitchen-bot/internal/pkg/common"
	"kitchen-bot/internal/pkg/metrics"

	"go.uber.org/zap"
)

// DefaultTimeout 單次請求的等待上限
const DefaultTimeout = 30 * time.Second

// Options Gateway 參數
type Options struct {
	Timeout time.Duration // 每次嘗試的逾時
	Retries int           // 失敗後以溫度 0 重試的次數
}

// Gateway 包裝對模型的單次請求：逾時、重試與失敗收斂為空字串
type Gateway struct {
	provider provider.Provider
	cache    cache.Store
	opts     Options
}

// NewGateway 創建 Gateway；store 為 nil 時不使用快取
func NewGateway(p provider.Provider, store cache.Store, opts Options) *Gateway {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	return &Gateway{
		provider: p,
		cache:    store,
		opts:     opts,
	}
}

// Complete 執行提示詞；任何失敗都回傳 ""，呼叫者必須自行提供預設值
func (g *Gateway) Complete(ctx context.Context, p prompts.Prompt) string {
	task := string(p.Task)
	start := time.Now()

	var key string
	if p.Cacheable && g.cache != nil {
		key = cache.Key(task, p.Temperature, p.System, p.User)
		if val, ok := g.cache.Get(ctx, key); ok && val != "" {
			metrics.RecordCompletion(task, metrics.OutcomeCacheHit, 0)
			return val
		}
	}

	temperature := p.Temperature
	for attempt := 1; attempt <= g.opts.Retries+1; attempt++ {
		if ctx.Err() != nil {
			break
		}

		content, err := g.attempt(ctx, p, temperature)
		common.LogCompletion(task, attempt, time.Since(start), err)
		if err == nil {
			metrics.RecordCompletion(task, metrics.OutcomeSuccess, time.Since(start))
			if key != "" {
				if err := g.cache.Set(ctx, key, content); err != nil {
					common.LogWarn("寫入快取失敗", zap.String("task", task), zap.Error(err))
				}
			}
			return content
		}

		// 重試時降低隨機性
		temperature = 0
	}

	metrics.RecordCompletion(task, metrics.OutcomeFailure, time.Since(start))
	common.LogWarn("模型請求全部失敗，回傳空結果",
		zap.String("task", task),
		zap.Int("attempts", g.opts.Retries+1),
	)
	return ""
}

func (g *Gateway) attempt(ctx context.Context, p prompts.Prompt, temperature float64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	resp, err := g.provider.Generate(ctx, provider.NewRequest(p.System, p.User, temperature, p.MaxTokens))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("timeout after %s: %w", g.opts.Timeout, err)
		}
		return "", err
	}
	content := strings.TrimSpace(resp.Content)
	if content == "" {
		return "", provider.ErrEmptyContent
	}
	return content, nil
}
