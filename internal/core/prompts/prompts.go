// Package prompts 集中定義每一種模型任務的提示詞與輸出格式約定
package prompts

import (
	"fmt"
	"strings"

	"kitchen-bot/internal/pkg/common"
)

// Task 模型任務名稱，亦作為快取與指標標籤
type Task string

const (
	TaskIntent     Task = "intent"
	TaskValidate   Task = "validate"
	TaskCategories Task = "categories"
	TaskDishes     Task = "dishes"
	TaskRecipe     Task = "recipe"
)

// Style 菜單風格
type Style string

const (
	StyleHome     Style = "home"
	StyleCreative Style = "creative"
)

// RefusalSentinel 模型拒絕時必須使用的開頭字元
const RefusalSentinel = "⛔"

// Prompt 一次模型請求的完整參數
type Prompt struct {
	Task        Task
	System      string
	User        string
	Temperature float64
	MaxTokens   int
	Cacheable   bool // 只有確定性的低溫任務可以快取
}

// 菜單數量限制
const (
	MinDishes           = 4
	MaxDishes           = 7
	MaxCategories       = 4
	MinMixCourses       = 2
	MaxMixCourses       = 4
	DefaultRecipeTokens = 2000
)

// NutritionFields 每份營養資訊必須包含的欄位
var NutritionFields = []string{"energy (kcal)", "protein (g)", "fat (g)", "carbohydrate (g)"}

// RecipeSections 食譜文字的固定段落順序
var RecipeSections = []string{
	"title",
	"ingredients with exact quantities",
	"nutrition per serving: " + strings.Join(NutritionFields, ", "),
	"time, difficulty and servings",
	"numbered preparation steps",
	"balance tip",
}

// categoryHints 類別鍵的英文說明，寫入提示詞
var categoryHints = map[common.Category]string{
	common.CategorySoup:      "soups and broths",
	common.CategoryMain:      "main courses",
	common.CategorySalad:     "salads",
	common.CategoryBreakfast: "breakfast dishes",
	common.CategoryDessert:   "desserts and baking",
	common.CategoryDrink:     "drinks",
	common.CategorySnack:     "snacks and appetizers",
	common.CategoryMix:       "a multi-course set meal",
}

// Intent 判斷使用者是在提供食材還是要求特定菜餚的食譜
func Intent(text string) Prompt {
	return Prompt{
		Task: TaskIntent,
		System: "You classify messages sent to a cooking assistant.\n" +
			"If the user lists food products they have, the intent is \"ingredients\".\n" +
			"If the user asks for a recipe of one specific named dish (for example \"give me a recipe for borscht\"), " +
			"the intent is \"recipe\" and \"dish\" holds the dish name exactly as the user wrote it.\n" +
			"Answer ONLY with JSON: {\"intent\": \"ingredients\" | \"recipe\", \"dish\": string}. No other text.",
		User:        text,
		Temperature: 0.1,
		MaxTokens:   150,
		Cacheable:   true,
	}
}

// ValidateIngredients 檢查輸入是否為可用的食材清單
func ValidateIngredients(text string) Prompt {
	return Prompt{
		Task: TaskValidate,
		System: "You check whether a message is a usable list of food ingredients.\n" +
			"Reject (valid=false): things that are not food, profanity, random characters or gibberish, " +
			"greetings or small talk without products, input shorter than 3 characters.\n" +
			"Accept (valid=true): real food products even with minor typos, and generic groups such as \"herbs\", \"spices\" or \"vegetables\".\n" +
			"Answer ONLY with JSON: {\"valid\": true | false, \"reason\": string}.",
		User:        text,
		Temperature: 0.0,
		MaxTokens:   120,
		Cacheable:   true,
	}
}

// Categories 依食材推斷可做的菜餚類別；mix 只在食材數量達標時提供給模型
func Categories(ingredients string, itemCount, mixMin int) Prompt {
	keys := make([]string, 0, len(common.Categories))
	lines := make([]string, 0, len(common.Categories))
	for _, c := range common.Categories {
		if c == common.CategoryMix && itemCount < mixMin {
			continue
		}
		keys = append(keys, fmt.Sprintf("%q", string(c)))
		lines = append(lines, fmt.Sprintf("- %s: %s", c, categoryHints[c]))
	}

	system := "You are a culinary analyst. Analyze the ingredients.\n" +
		"Always assume the user also has basic products: water, salt, oil, sugar, pepper.\n" +
		"If the ingredients allow a liquid dish made with water, always include \"soup\".\n" +
		"Possible keys:\n" + strings.Join(lines, "\n") + "\n" +
		fmt.Sprintf("Return ONLY a JSON array of 1 to %d applicable keys chosen from [%s], most suitable first. ",
			MaxCategories, strings.Join(keys, ", ")) +
		"If there are very few ingredients, return only the single most suitable key."

	return Prompt{
		Task:        TaskCategories,
		System:      system,
		User:        ingredients,
		Temperature: 0.2,
		MaxTokens:   120,
		Cacheable:   true,
	}
}

// DishList 依食材、類別、風格與語言產生 4–7 個菜餚候選
func DishList(ingredients string, category common.Category, style Style, lang common.Language, exclude []string) Prompt {
	language := lang.EnglishName()

	var b strings.Builder
	b.WriteString("You are a professional chef.\n")
	if category == common.CategoryMix {
		fmt.Fprintf(&b, "Suggest %d to %d complete set meals. Each set combines %d to %d courses (for example soup + main + drink) "+
			"cooked only from the given ingredients and basic pantry products.\n",
			MinDishes, MaxDishes, MinMixCourses, MaxMixCourses)
		b.WriteString("For a set, \"name\" lists the native names of its courses joined with \" + \".\n")
	} else {
		fmt.Fprintf(&b, "Suggest %d to %d dishes of the category %q (%s) that can be cooked from the given ingredients "+
			"and basic pantry products (water, salt, oil, sugar, pepper).\n",
			MinDishes, MaxDishes, string(category), categoryHints[category])
	}
	switch style {
	case StyleCreative:
		b.WriteString("Be creative: unusual pairings, dishes from different world cuisines, modern techniques.\n")
	default:
		b.WriteString("Prefer familiar home-style dishes that are easy to cook.\n")
	}
	if len(exclude) > 0 {
		fmt.Fprintf(&b, "Do NOT repeat these dishes: %s.\n", strings.Join(exclude, "; "))
	}
	b.WriteString("Naming rules:\n")
	b.WriteString("- \"name\": the dish name in the language of its cuisine of origin.\n")
	fmt.Fprintf(&b, "- \"display_name\": the name in %s; if it differs from \"name\", append the native name in parentheses.\n", language)
	fmt.Fprintf(&b, "- \"description\": one short sentence in %s.\n", language)
	b.WriteString("Answer ONLY with a JSON array: [{\"name\": string, \"display_name\": string, \"description\": string}].")

	temperature := 0.7
	if style == StyleCreative {
		temperature = 0.9
	}
	return Prompt{
		Task:        TaskDishes,
		System:      b.String(),
		User:        ingredients,
		Temperature: temperature,
		MaxTokens:   1500,
	}
}

// Recipe 產生固定段落順序的食譜文字
func Recipe(dish, ingredients string, lang common.Language, maxTokens int) Prompt {
	if maxTokens <= 0 {
		maxTokens = DefaultRecipeTokens
	}
	language := lang.EnglishName()

	var b strings.Builder
	fmt.Fprintf(&b, "You are a professional chef. Write a recipe for the dish the user names, entirely in %s.\n", language)
	b.WriteString("Use the user's ingredients where they fit; you may add basic pantry products (water, salt, oil, sugar, pepper).\n")
	b.WriteString("Follow exactly this section order:\n")
	for i, section := range RecipeSections {
		fmt.Fprintf(&b, "%d. %s\n", i+1, section)
	}
	b.WriteString("Nutrition must give a number for each of: " + strings.Join(NutritionFields, ", ") + ".\n")
	b.WriteString("The balance tip names exactly ONE missing flavour or texture element (for example acidity, crunch, freshness) " +
		"and how to add it.\n")
	b.WriteString("Plain text with emoji section headers; no markdown tables; no closing remarks.\n")
	fmt.Fprintf(&b, "If the request is not a food dish or is harmful, answer with one line starting with %q and explain briefly.",
		RefusalSentinel)

	user := "Dish: " + dish
	if strings.TrimSpace(ingredients) != "" {
		user += "\nAvailable ingredients: " + ingredients
	}
	return Prompt{
		Task:        TaskRecipe,
		System:      b.String(),
		User:        user,
		Temperature: 0.6,
		MaxTokens:   maxTokens,
	}
}
