package common

import "strings"

// Category 菜餚類別鍵
type Category string

// 封閉的類別詞彙
const (
	CategorySoup      Category = "soup"
	CategoryMain      Category = "main"
	CategorySalad     Category = "salad"
	CategoryBreakfast Category = "breakfast"
	CategoryDessert   Category = "dessert"
	CategoryDrink     Category = "drink"
	CategorySnack     Category = "snack"
	CategoryMix       Category = "mix" // 多道菜組合
)

// Categories 依顯示順序排列的全部類別
var Categories = []Category{
	CategorySoup, CategoryMain, CategorySalad, CategoryBreakfast,
	CategoryDessert, CategoryDrink, CategorySnack, CategoryMix,
}

// ParseCategory 正規化並驗證類別鍵
func ParseCategory(raw string) (Category, bool) {
	key := Category(strings.ToLower(strings.TrimSpace(raw)))
	for _, c := range Categories {
		if c == key {
			return c, true
		}
	}
	return "", false
}

// Dish 菜餚候選
type Dish struct {
	Name        string `json:"name"`         // 原文菜名，後續請求食譜時使用
	DisplayName string `json:"display_name"` // 顯示給使用者的名稱
	Description string `json:"description"`  // 以使用者語言撰寫的簡介
}

// Label 按鈕上顯示的名稱
func (d Dish) Label() string {
	if d.DisplayName != "" {
		return d.DisplayName
	}
	return d.Name
}

// Language 介面與內容語言
type Language string

// 支援的語言
const (
	LanguageRussian Language = "ru"
	LanguageEnglish Language = "en"
)

// ParseLanguage 取 locale 前兩碼，不支援時回傳 false
func ParseLanguage(locale string) (Language, bool) {
	code := strings.ToLower(strings.TrimSpace(locale))
	if len(code) > 2 {
		code = code[:2]
	}
	switch Language(code) {
	case LanguageRussian, LanguageEnglish:
		return Language(code), true
	}
	return "", false
}

// EnglishName 提示詞中使用的語言名稱
func (l Language) EnglishName() string {
	switch l {
	case LanguageEnglish:
		return "English"
	default:
		return "Russian"
	}
}
