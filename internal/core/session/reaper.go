package session

import (
	"context"
	"time"

	"kitchen-bot/internal/pkg/common"
	"kitchen-bot/internal/pkg/metrics"

	"go.uber.org/zap"
)

// Reaper 定期刪除過久未使用的會話
type Reaper struct {
	store    Store
	maxAge   time.Duration
	interval time.Duration
}

// NewReaper 建立 Reaper
func NewReaper(store Store, maxAge, interval time.Duration) *Reaper {
	return &Reaper{store: store, maxAge: maxAge, interval: interval}
}

// Run 阻塞直到 ctx 結束
func (r *Reaper) Run(ctx context.Context) {
	if r.maxAge <= 0 || r.interval <= 0 {
		return
	}
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.ReapOnce(ctx)
		}
	}
}

// ReapOnce 執行一次清理
func (r *Reaper) ReapOnce(ctx context.Context) int64 {
	n, err := r.store.Reap(ctx, time.Now().UTC().Add(-r.maxAge))
	if err != nil {
		common.LogError("清理會話失敗", zap.Error(err))
		return 0
	}
	if n > 0 {
		metrics.RecordReaped(n)
		common.LogInfo("已清理過期會話", zap.Int64("count", n))
	}
	return n
}
