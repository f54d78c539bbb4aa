// Package recipe 實作與會話狀態無關的烹飪意圖解析：驗證食材、推斷類別、列出菜餚與產生食譜
package recipe

import (
	"context"

	"kitchen-bot/internal/core/prompts"
)

// DefaultMixMinIngredients mix 類別所需的最少食材數
const DefaultMixMinIngredients = 5

// Completer 模型請求閘道；失敗時回傳空字串
type Completer interface {
	Complete(ctx context.Context, p prompts.Prompt) string
}

// Options 領域規則
type Options struct {
	MixMinIngredients  int
	ValidationFailOpen bool
	RecipeMaxTokens    int
}

// Service 食譜服務
type Service struct {
	gateway Completer
	opts    Options
}

// NewService 創建新的食譜服務
func NewService(gateway Completer, opts Options) *Service {
	if opts.MixMinIngredients <= 0 {
		opts.MixMinIngredients = DefaultMixMinIngredients
	}
	return &Service{
		gateway: gateway,
		opts:    opts,
	}
}
