// Package session 定義每位使用者的對話狀態與合法的狀態轉換
package session

import (
	"errors"
	"slices"
	"strings"
	"time"

	"kitchen-bot/internal/pkg/common"
)

// Phase 對話階段
type Phase string

const (
	PhaseEmpty          Phase = "EMPTY"
	PhaseCollecting     Phase = "COLLECTING"
	PhaseCategorized    Phase = "CATEGORIZED"
	PhaseBrowsingDishes Phase = "BROWSING_DISHES"
	PhaseRecipeShown    Phase = "RECIPE_SHOWN"
)

var (
	// ErrStaleReference 按鈕引用的清單或類別已不是目前顯示的內容
	ErrStaleReference = errors.New("stale reference")
	// ErrInvalidTransition 目前階段不允許此操作
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrEmptyIngredients 沒有食材時不能離開初始階段
	ErrEmptyIngredients = errors.New("empty ingredients")
)

// Session 使用者的對話狀態
type Session struct {
	UserID          int64             `json:"user_id"`
	IngredientText  string            `json:"ingredient_text"`
	Phase           Phase             `json:"phase"`
	Categories      []common.Category `json:"categories"`
	CandidateDishes []common.Dish     `json:"candidate_dishes"`
	DishListID      string            `json:"dish_list_id"`
	CurrentCategory common.Category   `json:"current_category"`
	CurrentDish     string            `json:"current_dish"`
	RecipeID        string            `json:"recipe_id"`
	Language        common.Language   `json:"language"`
	Revision        int64             `json:"revision"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// New 建立初始會話
func New(userID int64, lang common.Language) *Session {
	now := time.Now().UTC()
	return &Session{
		UserID:    userID,
		Phase:     PhaseEmpty,
		Language:  lang,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone 深拷貝
func (s *Session) Clone() *Session {
	c := *s
	c.Categories = slices.Clone(s.Categories)
	c.CandidateDishes = slices.Clone(s.CandidateDishes)
	return &c
}

// HasIngredients 是否已有食材
func (s *Session) HasIngredients() bool {
	return strings.TrimSpace(s.IngredientText) != ""
}

// clearDerived 清除由食材推導出的欄位
func (s *Session) clearDerived() {
	s.Categories = nil
	s.CandidateDishes = nil
	s.DishListID = ""
	s.CurrentCategory = ""
}

// AppendIngredients 追加食材；任何階段皆可，並使先前的類別與菜單失效
func (s *Session) AppendIngredients(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyIngredients
	}
	if s.HasIngredients() {
		s.IngredientText = s.IngredientText + ", " + text
	} else {
		s.IngredientText = text
	}
	s.clearDerived()
	s.Phase = PhaseCollecting
	return nil
}

// SetCategories 寫入推導出的類別
func (s *Session) SetCategories(categories []common.Category) error {
	if !s.HasIngredients() {
		return ErrEmptyIngredients
	}
	if s.Phase != PhaseCollecting && s.Phase != PhaseEmpty {
		return ErrInvalidTransition
	}
	if len(categories) == 0 {
		return ErrInvalidTransition
	}
	s.clearDerived()
	s.Categories = slices.Clone(categories)
	s.Phase = PhaseCategorized
	return nil
}

// OpenCategory 打開類別並替換整份菜單
func (s *Session) OpenCategory(category common.Category, dishes []common.Dish, listID string) error {
	switch s.Phase {
	case PhaseCategorized, PhaseBrowsingDishes, PhaseRecipeShown:
	default:
		return ErrStaleReference
	}
	if !slices.Contains(s.Categories, category) {
		return ErrStaleReference
	}
	s.CurrentCategory = category
	s.CandidateDishes = slices.Clone(dishes)
	s.DishListID = listID
	s.Phase = PhaseBrowsingDishes
	return nil
}

// DishAt 依按鈕引用取出菜餚，不改變狀態
func (s *Session) DishAt(listID string, index int) (common.Dish, error) {
	if listID == "" || listID != s.DishListID {
		return common.Dish{}, ErrStaleReference
	}
	if index < 0 || index >= len(s.CandidateDishes) {
		return common.Dish{}, ErrStaleReference
	}
	switch s.Phase {
	case PhaseBrowsingDishes, PhaseRecipeShown:
	default:
		return common.Dish{}, ErrStaleReference
	}
	return s.CandidateDishes[index], nil
}

// SelectDish 選擇菜餚並進入 RECIPE_SHOWN
func (s *Session) SelectDish(listID string, index int) (common.Dish, error) {
	dish, err := s.DishAt(listID, index)
	if err != nil {
		return common.Dish{}, err
	}
	s.CurrentDish = dish.Name
	s.RecipeID = common.NewListToken()
	s.Phase = PhaseRecipeShown
	return dish, nil
}

// ShowRecipe 直接要求某道菜的食譜；沒有食材時維持 EMPTY
func (s *Session) ShowRecipe(dish string) error {
	dish = strings.TrimSpace(dish)
	if dish == "" {
		return ErrInvalidTransition
	}
	s.CurrentDish = dish
	s.RecipeID = common.NewListToken()
	if s.HasIngredients() {
		s.Phase = PhaseRecipeShown
	}
	return nil
}

// CheckList 確認按鈕引用的是目前的菜單
func (s *Session) CheckList(listID string) error {
	if listID == "" || listID != s.DishListID || s.CurrentCategory == "" {
		return ErrStaleReference
	}
	switch s.Phase {
	case PhaseBrowsingDishes, PhaseRecipeShown:
		return nil
	}
	return ErrStaleReference
}

// CheckRecipe 確認按鈕引用的是最後交付的食譜
func (s *Session) CheckRecipe(recipeID string) error {
	if recipeID == "" || recipeID != s.RecipeID || s.CurrentDish == "" {
		return ErrStaleReference
	}
	return nil
}

// Back 返回上一層
func (s *Session) Back() error {
	switch s.Phase {
	case PhaseBrowsingDishes:
		s.CandidateDishes = nil
		s.DishListID = ""
		s.CurrentCategory = ""
		s.Phase = PhaseCategorized
	case PhaseRecipeShown:
		if len(s.CandidateDishes) > 0 {
			s.Phase = PhaseBrowsingDishes
		} else if len(s.Categories) > 0 {
			s.Phase = PhaseCategorized
		} else {
			return ErrInvalidTransition
		}
	default:
		return ErrInvalidTransition
	}
	return nil
}

// HardReset 清除全部內容，包含食材
func (s *Session) HardReset() {
	s.IngredientText = ""
	s.clearDerived()
	s.CurrentDish = ""
	s.RecipeID = ""
	s.Phase = PhaseEmpty
}

// SoftReset 只清除推導欄位，保留食材
func (s *Session) SoftReset() {
	s.clearDerived()
	s.CurrentDish = ""
	s.RecipeID = ""
	s.Phase = PhaseEmpty
}
