// Package locales 提供介面文字（ru / en）
package locales

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"kitchen-bot/internal/pkg/common"
)

//go:embed ru.json en.json
var files embed.FS

var catalog = mustLoad()

func mustLoad() map[common.Language]map[string]string {
	out := make(map[common.Language]map[string]string)
	for _, lang := range []common.Language{common.LanguageRussian, common.LanguageEnglish} {
		data, err := files.ReadFile(string(lang) + ".json")
		if err != nil {
			panic(fmt.Sprintf("locale %s missing: %v", lang, err))
		}
		texts := make(map[string]string)
		if err := json.Unmarshal(data, &texts); err != nil {
			panic(fmt.Sprintf("locale %s invalid: %v", lang, err))
		}
		out[lang] = texts
	}
	return out
}

// T 取得翻譯文字；找不到時退回俄文，再退回鍵名
func T(lang common.Language, key string, args ...any) string {
	text, ok := catalog[lang][key]
	if !ok {
		if text, ok = catalog[common.LanguageRussian][key]; !ok {
			return key
		}
	}
	if len(args) > 0 {
		return fmt.Sprintf(text, args...)
	}
	return text
}

// CategoryLabel 類別按鈕文字
func CategoryLabel(lang common.Language, c common.Category) string {
	return T(lang, "category."+string(c))
}

// MatchCategory 將使用者輸入的類別名稱（任何語言，忽略表情符號）對應回類別鍵
func MatchCategory(text string) (common.Category, bool) {
	needle := normalizeLabel(text)
	if needle == "" {
		return "", false
	}
	if c, ok := common.ParseCategory(needle); ok {
		return c, true
	}
	for _, texts := range catalog {
		for _, c := range common.Categories {
			if normalizeLabel(texts["category."+string(c)]) == needle {
				return c, true
			}
		}
	}
	return "", false
}

func normalizeLabel(s string) string {
	s = strings.ToLower(s)
	s = strings.Map(func(r rune) rune {
		if r < 128 || (r >= 'а' && r <= 'я') || r == 'ё' {
			return r
		}
		return -1
	}, s)
	return strings.TrimSpace(s)
}
