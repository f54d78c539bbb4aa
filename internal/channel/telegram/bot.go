// Package telegram 以 Telegram Bot API 實作聊天頻道
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"

	"kitchen-bot/internal/core/dialogue"
	"kitchen-bot/internal/infrastructure/config"
	"kitchen-bot/internal/pkg/common"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	// MaxMessageRunes Telegram 單則訊息上限
	MaxMessageRunes = 4096
	// MaxCaptionRunes 圖片說明上限
	MaxCaptionRunes = 1024
)

// Sink 接收轉換後的事件
type Sink interface {
	Enqueue(ev dialogue.Event) error
}

// Bot Telegram 頻道
type Bot struct {
	api  *tgbotapi.BotAPI
	http *resty.Client
	cfg  config.TelegramConfig
}

// New 連線 Telegram 並驗證 token
func New(cfg config.TelegramConfig) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return newBot(api, cfg), nil
}

// NewWithEndpoint 使用自訂 API 位址，供測試或自架 Bot API server
func NewWithEndpoint(cfg config.TelegramConfig, endpoint string, client *http.Client) (*Bot, error) {
	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return newBot(api, cfg), nil
}

func newBot(api *tgbotapi.BotAPI, cfg config.TelegramConfig) *Bot {
	api.Debug = cfg.Debug
	common.LogInfo("Telegram 已授權", zap.String("username", api.Self.UserName))
	return &Bot{
		api:  api,
		http: resty.New(),
		cfg:  cfg,
	}
}

// Username bot 帳號名稱
func (b *Bot) Username() string {
	return b.api.Self.UserName
}

// Send 傳送訊息；過長的文字依換行切成多則，按鈕只附在最後一則
func (b *Bot) Send(ctx context.Context, chatID int64, r dialogue.Reply) (int, error) {
	if r.ImageURL != "" {
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(r.ImageURL))
		photo.Caption = common.Truncate(r.Text, MaxCaptionRunes)
		if kb := keyboard(r.Buttons); kb != nil {
			photo.ReplyMarkup = *kb
		}
		msg, err := b.api.Send(photo)
		if err != nil {
			return 0, fmt.Errorf("send photo: %w", err)
		}
		return msg.MessageID, nil
	}

	chunks := SplitText(r.Text, MaxMessageRunes)
	var lastID int
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return lastID, err
		}
		msg := tgbotapi.NewMessage(chatID, chunk)
		if i == len(chunks)-1 {
			if kb := keyboard(r.Buttons); kb != nil {
				msg.ReplyMarkup = *kb
			}
		}
		sent, err := b.api.Send(msg)
		if err != nil {
			return lastID, fmt.Errorf("send message: %w", err)
		}
		lastID = sent.MessageID
	}
	return lastID, nil
}

// Edit 修改既有訊息的文字與按鈕
func (b *Bot) Edit(ctx context.Context, chatID int64, messageID int, r dialogue.Reply) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, common.Truncate(r.Text, MaxMessageRunes))
	edit.ReplyMarkup = keyboard(r.Buttons)
	if _, err := b.api.Send(edit); err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	return nil
}

// Delete 刪除訊息
func (b *Bot) Delete(ctx context.Context, chatID int64, messageID int) error {
	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// Typing 顯示「輸入中」
func (b *Bot) Typing(ctx context.Context, chatID int64) error {
	_, err := b.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping))
	return err
}

// AnswerCallback 結束按鈕的載入狀態
func (b *Bot) AnswerCallback(ctx context.Context, callbackID, text string) error {
	_, err := b.api.Request(tgbotapi.NewCallback(callbackID, text))
	return err
}

// DownloadFile 下載使用者上傳的檔案（語音）
func (b *Bot) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file url: %w", err)
	}

	resp, err := b.http.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode())
	}
	return resp.Body(), nil
}

// Poll 以長輪詢接收更新直到 ctx 結束
func (b *Bot) Poll(ctx context.Context, sink Sink) error {
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		common.LogWarn("刪除 webhook 失敗", zap.Error(err))
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.PollTimeout
	if u.Timeout <= 0 {
		u.Timeout = 60
	}
	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	common.LogInfo("開始長輪詢", zap.Int("timeout", u.Timeout))
	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.dispatch(update, sink)
		}
	}
}

// RegisterWebhook 向 Telegram 註冊 webhook 位址
func (b *Bot) RegisterWebhook() error {
	wh, err := tgbotapi.NewWebhook(b.cfg.WebhookURL)
	if err != nil {
		return fmt.Errorf("build webhook: %w", err)
	}
	if _, err := b.api.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	common.LogInfo("Webhook 已註冊", zap.String("url", b.cfg.WebhookURL))
	return nil
}

// HandleWebhook 解析 webhook 請求並交給 sink
func (b *Bot) HandleWebhook(r *http.Request, sink Sink) error {
	update, err := b.api.HandleUpdate(r)
	if err != nil {
		return fmt.Errorf("decode update: %w", err)
	}
	b.dispatch(*update, sink)
	return nil
}

func (b *Bot) dispatch(update tgbotapi.Update, sink Sink) {
	ev, ok := ToEvent(update)
	if !ok {
		return
	}
	if err := sink.Enqueue(ev); err != nil {
		common.LogWarn("事件未排入隊列",
			zap.Int64("user_id", ev.UserID),
			zap.Error(err),
		)
	}
}

// ToEvent 將 Telegram 更新轉成對話事件；不支援的類型回傳 false
func ToEvent(update tgbotapi.Update) (dialogue.Event, bool) {
	if cb := update.CallbackQuery; cb != nil && cb.From != nil {
		ev := dialogue.Event{
			Kind:       dialogue.EventButton,
			UserID:     cb.From.ID,
			ChatID:     cb.From.ID,
			Data:       cb.Data,
			CallbackID: cb.ID,
		}
		fillUser(&ev, cb.From)
		if cb.Message != nil && cb.Message.Chat != nil {
			ev.ChatID = cb.Message.Chat.ID
			ev.MessageID = cb.Message.MessageID
		}
		return ev, true
	}

	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return dialogue.Event{}, false
	}
	ev := dialogue.Event{
		UserID:    msg.From.ID,
		ChatID:    msg.Chat.ID,
		MessageID: msg.MessageID,
	}
	fillUser(&ev, msg.From)

	switch {
	case msg.Voice != nil:
		ev.Kind = dialogue.EventVoice
		ev.VoiceFileID = msg.Voice.FileID
	case msg.Audio != nil:
		ev.Kind = dialogue.EventVoice
		ev.VoiceFileID = msg.Audio.FileID
	case strings.TrimSpace(msg.Text) != "":
		ev.Kind = dialogue.EventText
		ev.Text = msg.Text
	default:
		return dialogue.Event{}, false
	}
	return ev, true
}

func fillUser(ev *dialogue.Event, u *tgbotapi.User) {
	ev.Locale = u.LanguageCode
	ev.Username = u.UserName
	ev.FullName = strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func keyboard(rows [][]dialogue.Button) *tgbotapi.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	markup := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(btn.Text, btn.Data))
		}
		markup = append(markup, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(markup...)
	return &kb
}

// SplitText 依 limit 字元切割文字，優先在換行處切
func SplitText(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var chunks []string
	runes := []rune(text)
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, strings.TrimRight(string(runes[:cut]), "\n"))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}
