package recipe

import (
	"context"
	"strings"
	"sync"
	"testing"

	"kitchen-bot/internal/core/prompts"
	"kitchen-bot/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// scriptedGateway 依任務回傳預設回覆
type scriptedGateway struct {
	mu      sync.Mutex
	replies map[prompts.Task]string
	seen    []prompts.Prompt
}

func (g *scriptedGateway) Complete(ctx context.Context, p prompts.Prompt) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seen = append(g.seen, p)
	return g.replies[p.Task]
}

type ResolverSuite struct {
	suite.Suite
	gw  *scriptedGateway
	svc *Service
}

func (s *ResolverSuite) SetupTest() {
	s.gw = &scriptedGateway{replies: map[prompts.Task]string{}}
	s.svc = NewService(s.gw, Options{MixMinIngredients: 5, ValidationFailOpen: true})
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) TestValidate_RejectsGibberishWhenModelSaysSo() {
	s.gw.replies[prompts.TaskValidate] = `{"valid": false, "reason": "gibberish"}`
	s.False(s.svc.ValidateIngredients(context.Background(), "asdfgh"))
}

func (s *ResolverSuite) TestValidate_FailOpenOnGatewayFailure() {
	s.True(s.svc.ValidateIngredients(context.Background(), "asdfgh"))
}

func (s *ResolverSuite) TestValidate_FailClosedWhenConfigured() {
	svc := NewService(s.gw, Options{ValidationFailOpen: false})
	s.False(svc.ValidateIngredients(context.Background(), "asdfgh"))
}

func (s *ResolverSuite) TestValidate_UnparsableReplyUsesPolicy() {
	s.gw.replies[prompts.TaskValidate] = "Sure, looks like food to me!"
	s.True(s.svc.ValidateIngredients(context.Background(), "картофель"))
}

func (s *ResolverSuite) TestValidate_TooShortSkipsModel() {
	s.False(s.svc.ValidateIngredients(context.Background(), " ab "))
	s.Empty(s.gw.seen)
}

func (s *ResolverSuite) TestValidate_Accepts() {
	s.gw.replies[prompts.TaskValidate] = "```json\n{\"valid\": true}\n```"
	s.True(s.svc.ValidateIngredients(context.Background(), "картофель, лук, морковь"))
}

func (s *ResolverSuite) TestResolveCategories_NeverMixBelowThreshold() {
	replies := []string{
		`["mix"]`,
		`["soup", "mix", "main"]`,
		`{"categories": ["mix", "salad"]}`,
		`Here: ["MIX", "mix", "mix"]`,
	}
	for _, reply := range replies {
		s.gw.replies[prompts.TaskCategories] = reply
		for count := 0; count < 5; count++ {
			got := s.svc.ResolveCategories(context.Background(), "x", count)
			s.NotContains(got, common.CategoryMix, reply)
			s.NotEmpty(got)
		}
	}
}

func (s *ResolverSuite) TestResolveCategories_MixAllowedAtThreshold() {
	s.gw.replies[prompts.TaskCategories] = `["soup", "main", "mix"]`
	got := s.svc.ResolveCategories(context.Background(), "a, b, c, d, e", 5)
	s.Equal([]common.Category{common.CategorySoup, common.CategoryMain, common.CategoryMix}, got)
}

func (s *ResolverSuite) TestResolveCategories_FiltersAndCaps() {
	s.gw.replies[prompts.TaskCategories] = `["pasta", "soup", "soup", "Main", "salad", "snack", "drink", 42]`
	got := s.svc.ResolveCategories(context.Background(), "x", 9)
	s.Equal([]common.Category{common.CategorySoup, common.CategoryMain, common.CategorySalad, common.CategorySnack}, got)
}

func (s *ResolverSuite) TestResolveCategories_FallbackToMain() {
	for _, reply := range []string{"", "no json here", `["pasta"]`, `{"foo": 1}`} {
		s.gw.replies[prompts.TaskCategories] = reply
		s.Equal([]common.Category{common.CategoryMain}, s.svc.ResolveCategories(context.Background(), "x", 3))
	}
}

func (s *ResolverSuite) TestListDishes() {
	s.gw.replies[prompts.TaskDishes] = `Конечно! [
		{"name": "Борщ", "display_name": "Борщ", "description": "Свекольный суп"},
		{"name": "", "description": "без имени"},
		{"name": "Minestrone", "description": "Итальянский овощной суп"},
		{"name": "борщ", "description": "дубль"},
	]`
	got := s.svc.ListDishes(context.Background(), "свекла", common.CategorySoup, prompts.StyleHome, common.LanguageRussian, nil)
	s.Require().Len(got, 2)
	s.Equal("Борщ", got[0].Name)
	s.Equal("Minestrone", got[1].DisplayName)
}

func (s *ResolverSuite) TestListDishes_WrappedObjectAndCap() {
	var b strings.Builder
	b.WriteString(`{"dishes": [`)
	for i := 0; i < 10; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(`{"name": "Dish ` + string(rune('A'+i)) + `", "description": "d"}`)
	}
	b.WriteString(`]}`)
	s.gw.replies[prompts.TaskDishes] = b.String()

	got := s.svc.ListDishes(context.Background(), "x", common.CategoryMain, prompts.StyleCreative, common.LanguageEnglish, []string{"Old"})
	s.Len(got, prompts.MaxDishes)
}

func (s *ResolverSuite) TestListDishes_EmptyOnFailure() {
	got := s.svc.ListDishes(context.Background(), "x", common.CategoryMain, prompts.StyleHome, common.LanguageEnglish, nil)
	s.NotNil(got)
	s.Empty(got)

	s.gw.replies[prompts.TaskDishes] = "I have no idea"
	s.Empty(s.svc.ListDishes(context.Background(), "x", common.CategoryMain, prompts.StyleHome, common.LanguageEnglish, nil))
}

func (s *ResolverSuite) TestBuildRecipe_AppendsPleasantry() {
	s.gw.replies[prompts.TaskRecipe] = "🍲 Борщ\n..."
	r, err := s.svc.BuildRecipe(context.Background(), "Борщ", "свекла", common.LanguageRussian)
	s.Require().NoError(err)
	s.False(r.Refused)
	s.True(strings.HasSuffix(r.Text, "Приятного аппетита! 🍽"))

	r, err = s.svc.BuildRecipe(context.Background(), "Borscht", "beet", common.LanguageEnglish)
	s.Require().NoError(err)
	s.True(strings.HasSuffix(r.Text, "Enjoy your meal! 🍽"))
}

func (s *ResolverSuite) TestBuildRecipe_RefusalUnembellished() {
	for _, refusal := range []string{"⛔ This is not food.", "I'm sorry, but I can't help with that.", "Извините, но я не могу"} {
		s.gw.replies[prompts.TaskRecipe] = refusal
		r, err := s.svc.BuildRecipe(context.Background(), "bomb", "", common.LanguageRussian)
		s.Require().NoError(err)
		s.True(r.Refused)
		s.Equal(refusal, r.Text)
	}
}

func (s *ResolverSuite) TestBuildRecipe_NoResult() {
	_, err := s.svc.BuildRecipe(context.Background(), "Борщ", "", common.LanguageRussian)
	s.ErrorIs(err, common.ErrNoResult)
}

func (s *ResolverSuite) TestDetectIntent() {
	ctx := context.Background()
	s.Equal(IntentUnclear, s.svc.DetectIntent(ctx, "hi", nil).Kind)

	offered := []common.Category{common.CategorySoup}
	got := s.svc.DetectIntent(ctx, "🍲 Супы", offered)
	s.Equal(Intent{Kind: IntentCategory, Category: common.CategorySoup}, got)

	s.gw.replies[prompts.TaskIntent] = `{"intent": "recipe", "dish": "борщ"}`
	s.Equal(Intent{Kind: IntentRecipe, Dish: "борщ"}, s.svc.DetectIntent(ctx, "дай рецепт борща", offered))

	s.gw.replies[prompts.TaskIntent] = `{"intent": "recipe", "dish": ""}`
	s.Equal(IntentIngredients, s.svc.DetectIntent(ctx, "рецепт", offered).Kind)

	s.gw.replies[prompts.TaskIntent] = ""
	s.Equal(IntentIngredients, s.svc.DetectIntent(ctx, "картофель, лук", offered).Kind)
}

func TestSplitIngredients(t *testing.T) {
	got := SplitIngredients("Картофель, лук; морковь\nсвекла и капуста + Лук.")
	assert.Equal(t, []string{"Картофель", "лук", "морковь", "свекла", "капуста"}, got)
	assert.Equal(t, 3, CountIngredients("eggs and milk, flour"))
	assert.Equal(t, 0, CountIngredients("  , ; "))
}

func TestIsRefusal(t *testing.T) {
	require.True(t, IsRefusal("  ⛔ Не могу помочь"))
	require.False(t, IsRefusal("🍳 Omelette\nIngredients: ..."))
}
