package recipe

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"kitchen-bot/internal/core/prompts"
	"kitchen-bot/internal/pkg/common"

	"go.uber.org/zap"
)

var ingredientSeparators = regexp.MustCompile(`(?i)[,;\n+]|\s+(?:и|and)\s+`)

// validationVerdict 驗證回覆
type validationVerdict struct {
	Valid  *bool  `json:"valid"`
	Reason string `json:"reason"`
}

// ValidateIngredients 判斷輸入是否為食材清單；只有模型明確回覆 valid=false 才拒絕
func (s *Service) ValidateIngredients(ctx context.Context, text string) bool {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) < MinInputRunes {
		return false
	}

	out := s.gateway.Complete(ctx, prompts.ValidateIngredients(text))
	if out == "" {
		common.LogWarn("食材驗證無回應，套用預設策略", zap.Bool("fail_open", s.opts.ValidationFailOpen))
		return s.opts.ValidationFailOpen
	}

	var verdict validationVerdict
	if !common.ExtractInto(out, &verdict) || verdict.Valid == nil {
		common.LogWarn("食材驗證回覆無法解析", zap.String("reply", common.Truncate(out, 80)))
		return s.opts.ValidationFailOpen
	}

	if !*verdict.Valid {
		common.LogInfo("食材驗證未通過", zap.String("reason", verdict.Reason))
	}
	return *verdict.Valid
}

// SplitIngredients 依分隔符號拆分食材，忽略大小寫去重並保留順序
func SplitIngredients(text string) []string {
	seen := make(map[string]struct{})
	items := make([]string, 0)
	for _, part := range ingredientSeparators.Split(text, -1) {
		item := strings.Trim(strings.TrimSpace(part), ".!?")
		if item == "" {
			continue
		}
		key := strings.ToLower(item)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		items = append(items, item)
	}
	return items
}

// CountIngredients 不重複的食材數量
func CountIngredients(text string) int {
	return len(SplitIngredients(text))
}
