// Package queue 以固定數量的 worker 處理聊天事件
package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"kitchen-bot/internal/core/dialogue"
	"kitchen-bot/internal/infrastructure/config"
	"kitchen-bot/internal/pkg/common"
	"kitchen-bot/internal/pkg/metrics"

	"go.uber.org/zap"
)

var (
	// ErrQueueFull 隊列已滿，事件被丟棄
	ErrQueueFull = errors.New("queue is full")
	// ErrClosed 隊列已關閉
	ErrClosed = errors.New("queue manager is closed")
)

// Handler 處理單一事件
type Handler interface {
	Handle(ctx context.Context, ev dialogue.Event) error
}

// Status 隊列狀態
type Status struct {
	QueueLength    int   `json:"queue_length"`
	ProcessedCount int64 `json:"processed_count"`
	DroppedCount   int64 `json:"dropped_count"`
	MaxQueueSize   int   `json:"max_queue_size"`
	Workers        int   `json:"workers"`
}

// Manager 隊列管理器
type Manager struct {
	cfg       config.QueueConfig
	handler   Handler
	queue     chan dialogue.Event
	wg        sync.WaitGroup
	processed int64
	dropped   int64
	depth     int64
	mu        sync.RWMutex
	closed    bool
}

// NewManager 創建新的隊列管理器
func NewManager(cfg config.QueueConfig, handler Handler) *Manager {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxSize <= 0 {
		cfg.MaxSize = cfg.Workers
	}
	return &Manager{
		cfg:     cfg,
		handler: handler,
		queue:   make(chan dialogue.Event, cfg.MaxSize),
	}
}

// Start 啟動 worker。ctx 取消不會中斷已排入的事件，worker 在 Close 排空隊列後停止
func (m *Manager) Start(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for i := 0; i < m.cfg.Workers; i++ {
		m.wg.Add(1)
		go m.worker(ctx, i)
	}
	common.LogInfo("事件隊列已啟動",
		zap.Int("workers", m.cfg.Workers),
		zap.Int("max_queue_size", m.cfg.MaxSize),
	)
}

// Enqueue 將事件加入隊列；滿時立即回傳 ErrQueueFull
func (m *Manager) Enqueue(ev dialogue.Event) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}

	select {
	case m.queue <- ev:
		metrics.SetQueueDepth(int(atomic.AddInt64(&m.depth, 1)))
		return nil
	default:
		atomic.AddInt64(&m.dropped, 1)
		common.LogWarn("隊列已滿，丟棄事件",
			zap.Int64("user_id", ev.UserID),
			zap.String("kind", string(ev.Kind)),
		)
		return ErrQueueFull
	}
}

func (m *Manager) worker(ctx context.Context, id int) {
	defer m.wg.Done()
	for ev := range m.queue {
		metrics.SetQueueDepth(int(atomic.AddInt64(&m.depth, -1)))
		m.process(ctx, id, ev)
	}
}

func (m *Manager) process(ctx context.Context, id int, ev dialogue.Event) {
	defer func() {
		if r := recover(); r != nil {
			common.LogError("事件處理發生 panic",
				zap.Int("worker", id),
				zap.Int64("user_id", ev.UserID),
				zap.Any("panic", r),
			)
		}
	}()

	if err := m.handler.Handle(ctx, ev); err != nil {
		common.LogError("事件處理失敗",
			zap.Int("worker", id),
			zap.Int64("user_id", ev.UserID),
			zap.String("kind", string(ev.Kind)),
			zap.Error(err),
		)
	}
	atomic.AddInt64(&m.processed, 1)
}

// GetQueueStatus 獲取隊列狀態
func (m *Manager) GetQueueStatus() *Status {
	return &Status{
		QueueLength:    int(atomic.LoadInt64(&m.depth)),
		ProcessedCount: atomic.LoadInt64(&m.processed),
		DroppedCount:   atomic.LoadInt64(&m.dropped),
		MaxQueueSize:   m.cfg.MaxSize,
		Workers:        m.cfg.Workers,
	}
}

// Close 停止接收新事件，處理完已排入的事件後返回
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.queue)
	m.mu.Unlock()
	m.wg.Wait()
}
