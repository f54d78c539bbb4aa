package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"kitchen-bot/internal/pkg/common"
)

// requestCache 請求指紋與最後出現時間
type requestCache struct {
	sync.Mutex
	window   time.Duration
	requests map[string]time.Time
	last     time.Time
}

// seen 在視窗內出現過時回傳 true；順便清除過期項目
func (rc *requestCache) seen(fingerprint string, now time.Time) bool {
	rc.Lock()
	defer rc.Unlock()

	if now.Sub(rc.last) > 10*rc.window {
		for k, t := range rc.requests {
			if now.Sub(t) > rc.window {
				delete(rc.requests, k)
			}
		}
		rc.last = now
	}

	if t, ok := rc.requests[fingerprint]; ok && now.Sub(t) <= rc.window {
		return true
	}
	rc.requests[fingerprint] = now
	return false
}

// Deduplication 丟棄視窗內內容相同的 POST（Telegram 重送的 webhook）。
// 重複請求回 200，避免對方繼續重試。
func Deduplication(window time.Duration) gin.HandlerFunc {
	if window <= 0 {
		window = time.Second
	}
	cache := &requestCache{window: window, requests: make(map[string]time.Time)}

	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost || c.Request.Body == nil {
			c.Next()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			common.LogError("Failed to read request body", zap.Error(err))
			c.AbortWithStatus(http.StatusRequestEntityTooLarge)
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewBuffer(body))

		hash := sha256.Sum256(body)
		fingerprint := c.Request.URL.Path + ":" + hex.EncodeToString(hash[:])

		if cache.seen(fingerprint, time.Now()) {
			common.LogInfo("忽略重複請求", zap.String("path", c.Request.URL.Path))
			c.AbortWithStatus(http.StatusOK)
			return
		}

		c.Next()
	}
}
