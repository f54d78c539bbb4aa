package dialogue

import (
	"context"

	"kitchen-bot/internal/core/prompts"
	"kitchen-bot/internal/core/recipe"
	"kitchen-bot/internal/pkg/common"
)

// EventKind 事件種類
type EventKind string

const (
	EventText   EventKind = "text"
	EventVoice  EventKind = "voice"
	EventButton EventKind = "button"
)

// Event 來自聊天頻道的事件
type Event struct {
	UserID      int64
	ChatID      int64
	Kind        EventKind
	Text        string // 文字內容
	VoiceFileID string // 語音檔識別碼
	Data        string // 按鈕 payload
	Locale      string
	MessageID   int
	CallbackID  string
	Username    string
	FullName    string
}

// Button 行內按鈕
type Button struct {
	Text string
	Data string
}

// Reply 外送訊息
type Reply struct {
	Text     string
	Buttons  [][]Button
	ImageURL string // 不為空時以圖片訊息送出，Text 作為說明
}

// Channel 聊天頻道
type Channel interface {
	Send(ctx context.Context, chatID int64, r Reply) (int, error)
	Edit(ctx context.Context, chatID int64, messageID int, r Reply) error
	Delete(ctx context.Context, chatID int64, messageID int) error
	Typing(ctx context.Context, chatID int64) error
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// Culinary 烹飪意圖解析
type Culinary interface {
	DetectIntent(ctx context.Context, text string, offered []common.Category) recipe.Intent
	ValidateIngredients(ctx context.Context, text string) bool
	ResolveCategories(ctx context.Context, text string, itemCount int) []common.Category
	ListDishes(ctx context.Context, text string, category common.Category, style prompts.Style, lang common.Language, exclude []string) []common.Dish
	BuildRecipe(ctx context.Context, dish, text string, lang common.Language) (recipe.Recipe, error)
}

// Transcriber 語音轉文字
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// ImageFinder 菜餚圖片搜尋
type ImageFinder interface {
	FindImage(ctx context.Context, dish string) (string, bool)
}
