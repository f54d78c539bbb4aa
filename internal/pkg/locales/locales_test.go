package locales

import (
	"testing"

	"kitchen-bot/internal/pkg/common"

	"github.com/stretchr/testify/assert"
)

func TestCatalogsHaveSameKeys(t *testing.T) {
	ru := catalog[common.LanguageRussian]
	en := catalog[common.LanguageEnglish]
	assert.Equal(t, len(ru), len(en))
	for key := range ru {
		_, ok := en[key]
		assert.True(t, ok, key)
	}
	for _, c := range common.Categories {
		assert.NotEqual(t, "category."+string(c), CategoryLabel(common.LanguageEnglish, c))
	}
}

func TestT(t *testing.T) {
	assert.Equal(t, "Enjoy your meal! 🍽", T(common.LanguageEnglish, "pleasantry"))
	assert.Contains(t, T(common.LanguageRussian, "welcome", "Анна"), "Анна")
	assert.Equal(t, "missing.key", T(common.LanguageEnglish, "missing.key"))
	assert.Equal(t, T(common.LanguageRussian, "help"), T(common.Language("de"), "help"))
}

func TestMatchCategory(t *testing.T) {
	c, ok := MatchCategory("🍲 Супы")
	assert.True(t, ok)
	assert.Equal(t, common.CategorySoup, c)

	c, ok = MatchCategory("Salads")
	assert.True(t, ok)
	assert.Equal(t, common.CategorySalad, c)

	c, ok = MatchCategory("Salad")
	assert.True(t, ok)
	assert.Equal(t, common.CategorySalad, c)

	_, ok = MatchCategory("картофель")
	assert.False(t, ok)
}
