package recipe

import (
	"context"
	"strings"

	"kitchen-bot/internal/core/prompts"
	"kitchen-bot/internal/pkg/common"
	"kitchen-bot/internal/pkg/locales"

	"go.uber.org/zap"
)

// refusalMarkers 模型拒絕回答的標記
var refusalMarkers = []string{
	prompts.RefusalSentinel,
	"i can't",
	"i cannot",
	"i'm sorry, but",
	"i won't",
	"не могу",
	"извините, но",
}

// BuildRecipe 產生食譜；拒絕時原樣回傳，否則附上結尾問候
func (s *Service) BuildRecipe(ctx context.Context, dish, text string, lang common.Language) (Recipe, error) {
	dish = strings.TrimSpace(dish)
	out := s.gateway.Complete(ctx, prompts.Recipe(dish, text, lang, s.opts.RecipeMaxTokens))
	if out == "" {
		return Recipe{}, common.ErrNoResult
	}

	if IsRefusal(out) {
		common.LogInfo("模型拒絕產生食譜", zap.String("dish", dish))
		return Recipe{Dish: dish, Text: out, Refused: true}, nil
	}

	return Recipe{
		Dish: dish,
		Text: out + "\n\n" + locales.T(lang, "pleasantry"),
	}, nil
}

// IsRefusal 判斷回覆開頭是否為拒絕
func IsRefusal(text string) bool {
	head := strings.ToLower(common.Truncate(strings.TrimSpace(text), 120))
	for _, marker := range refusalMarkers {
		if strings.Contains(head, marker) {
			return true
		}
	}
	return false
}
