package common

import (
	"strings"

	"github.com/google/uuid"
)

// NewListToken 生成菜單按鈕用的短識別碼（Telegram callback data 上限 64 bytes）
func NewListToken() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}

// Truncate 依 rune 截斷字串
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 1 {
		return string(runes[:max])
	}
	return string(runes[:max-1]) + "…"
}
