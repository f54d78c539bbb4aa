package recipe

import (
	"context"

	"kitchen-bot/internal/core/prompts"
	"kitchen-bot/internal/pkg/common"

	"go.uber.org/zap"
)

// ResolveCategories 推斷可做的類別；mix 門檻由此處強制執行，不依賴模型
func (s *Service) ResolveCategories(ctx context.Context, text string, itemCount int) []common.Category {
	out := s.gateway.Complete(ctx, prompts.Categories(text, itemCount, s.opts.MixMinIngredients))

	categories := s.filterCategories(parseCategoryKeys(out), itemCount)
	if len(categories) == 0 {
		common.LogWarn("類別分析無可用結果，使用預設類別",
			zap.String("reply", common.Truncate(out, 80)),
		)
		return []common.Category{common.CategoryMain}
	}
	return categories
}

// filterCategories 只保留詞彙內的鍵，去重、限制數量並移除不合格的 mix
func (s *Service) filterCategories(keys []string, itemCount int) []common.Category {
	seen := make(map[common.Category]struct{})
	out := make([]common.Category, 0, prompts.MaxCategories)
	for _, raw := range keys {
		c, ok := common.ParseCategory(raw)
		if !ok {
			continue
		}
		if c == common.CategoryMix && itemCount < s.opts.MixMinIngredients {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
		if len(out) == prompts.MaxCategories {
			break
		}
	}
	return out
}

// parseCategoryKeys 接受 ["soup", ...] 或 {"categories": [...]}
func parseCategoryKeys(out string) []string {
	v, ok := common.ExtractStructured(out)
	if !ok {
		return nil
	}
	if obj, isObj := v.(map[string]any); isObj {
		v = obj["categories"]
	}
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	keys := make([]string, 0, len(arr))
	for _, item := range arr {
		if key, ok := item.(string); ok {
			keys = append(keys, key)
		}
	}
	return keys
}
