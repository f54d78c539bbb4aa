package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Store 模型回應快取
type Store interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string) error
	Close() error
}

// Key 以任務、溫度與提示詞內容計算快取鍵
func Key(task string, temperature float64, system, user string) string {
	hash := sha256.Sum256([]byte(fmt.Sprintf("%s\x00%.2f\x00%s\x00%s", task, temperature, system, user)))
	return fmt.Sprintf("completion:%s:%s", task, hex.EncodeToString(hash[:]))
}
