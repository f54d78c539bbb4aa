package recipe

import (
	"context"
	"strings"

	"kitchen-bot/internal/core/prompts"
	"kitchen-bot/internal/pkg/common"

	"go.uber.org/zap"
)

// ListDishes 列出菜餚候選；完全失敗時回傳空清單
func (s *Service) ListDishes(ctx context.Context, text string, category common.Category, style prompts.Style, lang common.Language, exclude []string) []common.Dish {
	out := s.gateway.Complete(ctx, prompts.DishList(text, category, style, lang, exclude))
	if out == "" {
		return []common.Dish{}
	}

	dishes := parseDishes(out)
	if len(dishes) == 0 {
		common.LogWarn("菜餚清單無法解析",
			zap.String("category", string(category)),
			zap.String("reply", common.Truncate(out, 80)),
		)
	}
	return dishes
}

// parseDishes 接受陣列或 {"dishes": [...]}，去除無名稱項目並限制數量
func parseDishes(out string) []common.Dish {
	var list []common.Dish
	if !common.ExtractInto(out, &list) {
		var wrapped struct {
			Dishes []common.Dish `json:"dishes"`
		}
		if !common.ExtractInto(out, &wrapped) {
			return []common.Dish{}
		}
		list = wrapped.Dishes
	}

	dishes := make([]common.Dish, 0, prompts.MaxDishes)
	seen := make(map[string]struct{})
	for _, d := range list {
		d.Name = strings.TrimSpace(d.Name)
		d.DisplayName = strings.TrimSpace(d.DisplayName)
		d.Description = strings.TrimSpace(d.Description)
		if d.Name == "" {
			continue
		}
		key := strings.ToLower(d.Name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if d.DisplayName == "" {
			d.DisplayName = d.Name
		}
		dishes = append(dishes, d)
		if len(dishes) == prompts.MaxDishes {
			break
		}
	}
	return dishes
}
