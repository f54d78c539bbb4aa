package recipe

import "kitchen-bot/internal/pkg/common"

// IntentKind 使用者訊息的意圖
type IntentKind string

const (
	IntentIngredients IntentKind = "ingredients"
	IntentRecipe      IntentKind = "recipe"
	IntentCategory    IntentKind = "category"
	IntentUnclear     IntentKind = "unclear"
)

// Intent 意圖判斷結果
type Intent struct {
	Kind     IntentKind
	Dish     string          // IntentRecipe 時的菜名
	Category common.Category // IntentCategory 時的類別
}

// Recipe 產生的食譜
type Recipe struct {
	Dish    string `json:"dish"`
	Text    string `json:"text"`
	Refused bool   `json:"refused"`
}

// MinInputRunes 少於此長度的輸入直接視為無效
const MinInputRunes = 3
