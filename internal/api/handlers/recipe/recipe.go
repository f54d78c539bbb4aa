// Package recipe 直接呼叫烹飪解析的 HTTP API
package recipe

import (
	"context"
	"errors"
	"net/http"
	"slices"

	"kitchen-bot/internal/api/handlers"
	"kitchen-bot/internal/core/prompts"
	recipeService "kitchen-bot/internal/core/recipe"
	"kitchen-bot/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Culinary 處理器需要的烹飪能力
type Culinary interface {
	ValidateIngredients(ctx context.Context, text string) bool
	ResolveCategories(ctx context.Context, text string, itemCount int) []common.Category
	ListDishes(ctx context.Context, text string, category common.Category, style prompts.Style, lang common.Language, exclude []string) []common.Dish
	BuildRecipe(ctx context.Context, dish, text string, lang common.Language) (recipeService.Recipe, error)
}

// RecipeRequest 依菜名產生食譜
type RecipeRequest struct {
	Dish        string `json:"dish" binding:"required"`
	Ingredients string `json:"ingredients"` // 可用食材，可省略
	Language    string `json:"language"`    // ru 或 en，預設 ru
}

// RecipeResponse 食譜結果
type RecipeResponse struct {
	Dish    string `json:"dish"`
	Text    string `json:"text"`
	Refused bool   `json:"refused"`
}

// MenuRequest 依食材推導類別與菜單
type MenuRequest struct {
	Ingredients string `json:"ingredients" binding:"required"`
	Category    string `json:"category"` // 省略時使用第一個推導出的類別
	Language    string `json:"language"`
	Creative    bool   `json:"creative"`
}

// MenuResponse 類別與菜單
type MenuResponse struct {
	Categories []common.Category `json:"categories"`
	Category   common.Category   `json:"category"`
	Dishes     []common.Dish     `json:"dishes"`
}

// Handler 食譜處理程序
type Handler struct {
	culinary    Culinary
	defaultLang common.Language
}

// NewHandler 創建新的食譜處理程序
func NewHandler(culinary Culinary, defaultLang common.Language) *Handler {
	if defaultLang == "" {
		defaultLang = common.LanguageRussian
	}
	return &Handler{culinary: culinary, defaultLang: defaultLang}
}

func (h *Handler) language(raw string) common.Language {
	if lang, ok := common.ParseLanguage(raw); ok {
		return lang
	}
	return h.defaultLang
}

// HandleRecipe 產生單一食譜
func (h *Handler) HandleRecipe(c *gin.Context) {
	var req RecipeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlers.RespondError(c, common.ErrInvalidRequest.Wrap(err))
		return
	}

	common.LogInfo("開始處理食譜生成請求",
		zap.String("request_id", requestid.Get(c)),
		zap.String("dish", req.Dish),
	)

	r, err := h.culinary.BuildRecipe(c.Request.Context(), req.Dish, req.Ingredients, h.language(req.Language))
	if err != nil {
		if errors.Is(err, common.ErrNoResult) {
			err = common.ErrAIServiceError.Wrap(err)
		}
		handlers.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, RecipeResponse{Dish: r.Dish, Text: r.Text, Refused: r.Refused})
}

// HandleMenu 驗證食材並回傳類別與菜單
func (h *Handler) HandleMenu(c *gin.Context) {
	var req MenuRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlers.RespondError(c, common.ErrInvalidRequest.Wrap(err))
		return
	}

	ctx := c.Request.Context()
	if !h.culinary.ValidateIngredients(ctx, req.Ingredients) {
		handlers.RespondError(c, common.NewError(common.ErrCodeInvalidRequest, "無法辨識的食材清單", http.StatusUnprocessableEntity, nil))
		return
	}

	count := recipeService.CountIngredients(req.Ingredients)
	categories := h.culinary.ResolveCategories(ctx, req.Ingredients, count)

	if len(categories) == 0 {
		categories = []common.Category{common.CategoryMain}
	}
	category := categories[0]
	if req.Category != "" {
		parsed, ok := common.ParseCategory(req.Category)
		if !ok {
			handlers.RespondError(c, common.NewValidationError("未知的類別: "+req.Category))
			return
		}
		// 只能打開由食材推導出的類別，mix 的門檻因此也適用
		if !slices.Contains(categories, parsed) {
			handlers.RespondError(c, common.NewValidationError("此食材清單不提供類別: "+req.Category))
			return
		}
		category = parsed
	}

	style := prompts.StyleHome
	if req.Creative {
		style = prompts.StyleCreative
	}
	dishes := h.culinary.ListDishes(ctx, req.Ingredients, category, style, h.language(req.Language), nil)

	common.LogInfo("菜單生成完成",
		zap.String("request_id", requestid.Get(c)),
		zap.String("category", string(category)),
		zap.Int("dishes", len(dishes)),
	)

	c.JSON(http.StatusOK, MenuResponse{
		Categories: categories,
		Category:   category,
		Dishes:     dishes,
	})
}
