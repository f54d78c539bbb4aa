package recipe

import (
	"context"
	"slices"
	"strings"
	"unicode/utf8"

	"kitchen-bot/internal/core/prompts"
	"kitchen-bot/internal/pkg/common"
	"kitchen-bot/internal/pkg/locales"
)

// DetectIntent 判斷訊息是提供食材、選擇類別還是要求特定食譜
func (s *Service) DetectIntent(ctx context.Context, text string, offered []common.Category) Intent {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < MinInputRunes {
		return Intent{Kind: IntentUnclear}
	}

	if c, ok := locales.MatchCategory(text); ok && slices.Contains(offered, c) {
		return Intent{Kind: IntentCategory, Category: c}
	}

	out := s.gateway.Complete(ctx, prompts.Intent(text))
	var reply struct {
		Intent string `json:"intent"`
		Dish   string `json:"dish"`
	}
	if out == "" || !common.ExtractInto(out, &reply) {
		return Intent{Kind: IntentIngredients}
	}

	dish := strings.TrimSpace(reply.Dish)
	if strings.EqualFold(reply.Intent, string(IntentRecipe)) && dish != "" {
		return Intent{Kind: IntentRecipe, Dish: dish}
	}
	return Intent{Kind: IntentIngredients}
}
