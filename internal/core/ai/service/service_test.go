package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"kitchen-bot/internal/core/ai/cache"
	"kitchen-bot/internal/core/ai/provider"
	"kitchen-bot/internal/core/prompts"
	"kitchen-bot/internal/infrastructure/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider 依序回傳預設結果並記錄每次請求的溫度
type fakeProvider struct {
	mu      sync.Mutex
	replies []reply
	temps   []float64
	delay   time.Duration
}

type reply struct {
	content string
	err     error
}

func (f *fakeProvider) Generate(ctx context.Context, req *provider.Request) (*provider.Response, error) {
	f.mu.Lock()
	f.temps = append(f.temps, req.Temperature)
	idx := len(f.temps) - 1
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if idx >= len(f.replies) {
		return nil, errors.New("no more replies")
	}
	r := f.replies[idx]
	if r.err != nil {
		return nil, r.err
	}
	return &provider.Response{Content: r.content}, nil
}

func (f *fakeProvider) GetModel() string { return "fake" }
func (f *fakeProvider) Close() error     { return nil }

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.temps)
}

func TestComplete_FirstAttemptSucceeds(t *testing.T) {
	p := &fakeProvider{replies: []reply{{content: " ok "}}}
	g := NewGateway(p, nil, Options{Retries: 1})

	out := g.Complete(context.Background(), prompts.Prompt{Task: prompts.TaskRecipe, Temperature: 0.6})
	assert.Equal(t, "ok", out)
	assert.Equal(t, []float64{0.6}, p.temps)
}

func TestComplete_RetryUsesZeroTemperature(t *testing.T) {
	p := &fakeProvider{replies: []reply{{err: errors.New("boom")}, {content: "second"}}}
	g := NewGateway(p, nil, Options{Retries: 1})

	out := g.Complete(context.Background(), prompts.Prompt{Task: prompts.TaskDishes, Temperature: 0.9})
	assert.Equal(t, "second", out)
	assert.Equal(t, []float64{0.9, 0}, p.temps)
}

func TestComplete_EmptyContentCountsAsFailure(t *testing.T) {
	p := &fakeProvider{replies: []reply{{content: "   "}, {content: ""}}}
	g := NewGateway(p, nil, Options{Retries: 1})

	assert.Equal(t, "", g.Complete(context.Background(), prompts.Prompt{Task: prompts.TaskIntent}))
	assert.Equal(t, 2, p.calls())
}

func TestComplete_TotalFailureCollapsesToEmpty(t *testing.T) {
	p := &fakeProvider{replies: []reply{{err: errors.New("a")}, {err: errors.New("b")}, {err: errors.New("c")}}}
	g := NewGateway(p, nil, Options{Retries: 2})

	assert.NotPanics(t, func() {
		assert.Equal(t, "", g.Complete(context.Background(), prompts.Prompt{Task: prompts.TaskRecipe}))
	})
	assert.Equal(t, 3, p.calls())
}

func TestComplete_PerAttemptTimeout(t *testing.T) {
	p := &fakeProvider{delay: 200 * time.Millisecond, replies: []reply{{content: "late"}, {content: "late"}}}
	g := NewGateway(p, nil, Options{Timeout: 20 * time.Millisecond, Retries: 1})

	start := time.Now()
	out := g.Complete(context.Background(), prompts.Prompt{Task: prompts.TaskRecipe})
	assert.Equal(t, "", out)
	assert.Equal(t, 2, p.calls())
	assert.Less(t, time.Since(start), 150*time.Millisecond)
}

func TestComplete_CancelledContextStopsRetries(t *testing.T) {
	p := &fakeProvider{replies: []reply{{err: errors.New("a")}, {content: "never"}}}
	g := NewGateway(p, nil, Options{Retries: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, "", g.Complete(ctx, prompts.Prompt{Task: prompts.TaskRecipe}))
	assert.Equal(t, 0, p.calls())
}

func TestComplete_CachesOnlyCacheablePrompts(t *testing.T) {
	store := cache.NewManager(config.CacheConfig{MaxSize: 10, TTL: time.Minute})
	defer store.Close()

	p := &fakeProvider{replies: []reply{{content: `["soup"]`}, {content: "recipe one"}, {content: "recipe two"}}}
	g := NewGateway(p, store, Options{})

	cacheable := prompts.Categories("картофель", 1, 5)
	require.Equal(t, `["soup"]`, g.Complete(context.Background(), cacheable))
	require.Equal(t, `["soup"]`, g.Complete(context.Background(), cacheable))
	assert.Equal(t, 1, p.calls())

	recipe := prompts.Prompt{Task: prompts.TaskRecipe, System: "s", User: "u"}
	assert.Equal(t, "recipe one", g.Complete(context.Background(), recipe))
	assert.Equal(t, "recipe two", g.Complete(context.Background(), recipe))
	assert.Equal(t, 3, p.calls())
}
