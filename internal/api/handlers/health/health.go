package health

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"kitchen-bot/internal/core/queue"
	"kitchen-bot/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// readyTimeout 就緒檢查的儲存連線逾時
const readyTimeout = 2 * time.Second

// HealthResponse 健康檢查響應
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime"`
	Queue     *queue.Status          `json:"queue,omitempty"`
}

// Checker 可回報健康狀態的依賴（會話儲存）
type Checker interface {
	HealthCheck(ctx context.Context) bool
}

// QueueStatus 提供隊列狀態
type QueueStatus interface {
	GetQueueStatus() *queue.Status
}

// Handler 健康檢查處理器
type Handler struct {
	version string
	store   Checker
	queue   QueueStatus
}

// NewHandler 創建健康檢查處理器；queue 可為 nil
func NewHandler(version string, store Checker, q QueueStatus) *Handler {
	return &Handler{version: version, store: store, queue: q}
}

// HealthCheck 健康檢查處理器
func (h *Handler) HealthCheck(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   h.version,
		Runtime: map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]interface{}{
				"alloc":       m.Alloc,
				"total_alloc": m.TotalAlloc,
				"sys":         m.Sys,
				"num_gc":      m.NumGC,
			},
		},
	}
	if h.queue != nil {
		response.Queue = h.queue.GetQueueStatus()
	}

	common.LogDebug("Health check request",
		zap.String("client_ip", c.ClientIP()),
		zap.String("path", c.Request.URL.Path),
	)

	c.JSON(http.StatusOK, response)
}

// ReadinessCheck 就緒檢查：會話儲存必須可用
func (h *Handler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
	defer cancel()

	if h.store != nil && !h.store.HealthCheck(ctx) {
		common.LogWarn("會話儲存無法連線")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"store":  "down",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
	})
}

// LivenessCheck 存活檢查處理器
func (h *Handler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}
