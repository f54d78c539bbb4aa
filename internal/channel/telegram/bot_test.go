package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"kitchen-bot/internal/core/dialogue"
	"kitchen-bot/internal/infrastructure/config"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToEvent(t *testing.T) {
	user := &tgbotapi.User{ID: 5, FirstName: "Ivan", LastName: "Petrov", UserName: "ivan", LanguageCode: "ru"}

	ev, ok := ToEvent(tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 9, From: user, Chat: &tgbotapi.Chat{ID: 50}, Text: "картошка, лук",
	}})
	require.True(t, ok)
	assert.Equal(t, dialogue.EventText, ev.Kind)
	assert.Equal(t, int64(5), ev.UserID)
	assert.Equal(t, int64(50), ev.ChatID)
	assert.Equal(t, "Ivan Petrov", ev.FullName)
	assert.Equal(t, "ru", ev.Locale)

	ev, ok = ToEvent(tgbotapi.Update{Message: &tgbotapi.Message{
		From: user, Chat: &tgbotapi.Chat{ID: 50}, Voice: &tgbotapi.Voice{FileID: "voice-file"},
	}})
	require.True(t, ok)
	assert.Equal(t, dialogue.EventVoice, ev.Kind)
	assert.Equal(t, "voice-file", ev.VoiceFileID)

	ev, ok = ToEvent(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID: "cb-1", From: user, Data: "cat:soup",
		Message: &tgbotapi.Message{MessageID: 3, Chat: &tgbotapi.Chat{ID: 50}},
	}})
	require.True(t, ok)
	assert.Equal(t, dialogue.EventButton, ev.Kind)
	assert.Equal(t, "cat:soup", ev.Data)
	assert.Equal(t, "cb-1", ev.CallbackID)
	assert.Equal(t, 3, ev.MessageID)

	_, ok = ToEvent(tgbotapi.Update{Message: &tgbotapi.Message{From: user, Chat: &tgbotapi.Chat{ID: 50}}})
	assert.False(t, ok, "sticker or empty message")
	_, ok = ToEvent(tgbotapi.Update{})
	assert.False(t, ok)
}

func TestSplitText(t *testing.T) {
	assert.Equal(t, []string{"short"}, SplitText("short", 10))

	text := strings.Repeat("a", 6) + "\n" + strings.Repeat("b", 6)
	assert.Equal(t, []string{"aaaaaa", "bbbbbb"}, SplitText(text, 10))

	long := strings.Repeat("щ", 25)
	chunks := SplitText(long, 10)
	require.Len(t, chunks, 3)
	assert.Equal(t, strings.Repeat("щ", 10), chunks[0])
	assert.Equal(t, strings.Repeat("щ", 5), chunks[2])
}

// fakeTelegram 模擬 Bot API 的最小子集
type fakeTelegram struct {
	mu      sync.Mutex
	methods []string
	markups int
}

func (f *fakeTelegram) handler(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	_ = r.ParseForm()

	f.mu.Lock()
	f.methods = append(f.methods, method)
	if r.Form.Get("reply_markup") != "" {
		f.markups++
	}
	f.mu.Unlock()

	var result any
	switch method {
	case "getMe":
		result = map[string]any{"id": 1, "is_bot": true, "first_name": "Kitchen", "username": "kitchen_bot"}
	case "sendMessage", "sendPhoto":
		result = map[string]any{"message_id": len(f.methods), "chat": map[string]any{"id": 50}}
	default:
		result = true
	}
	raw, _ := json.Marshal(result)
	_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": json.RawMessage(raw)})
}

func newTestBot(t *testing.T) (*Bot, *fakeTelegram) {
	fake := &fakeTelegram{}
	srv := httptest.NewServer(http.HandlerFunc(fake.handler))
	t.Cleanup(srv.Close)

	bot, err := NewWithEndpoint(config.TelegramConfig{Token: "123:abc"}, srv.URL+"/bot%s/%s", srv.Client())
	require.NoError(t, err)
	return bot, fake
}

func TestBot_SendSplitsLongText(t *testing.T) {
	bot, fake := newTestBot(t)
	assert.Equal(t, "kitchen_bot", bot.Username())

	text := strings.Repeat("x", MaxMessageRunes) + "\n" + "tail"
	id, err := bot.Send(context.Background(), 50, dialogue.Reply{
		Text:    text,
		Buttons: [][]dialogue.Button{{{Text: "Back", Data: "back"}}},
	})
	require.NoError(t, err)
	assert.NotZero(t, id)
	assert.Equal(t, []string{"getMe", "sendMessage", "sendMessage"}, fake.methods)
	assert.Equal(t, 1, fake.markups, "keyboard only on the last chunk")
}

func TestBot_SendPhotoAndCallbacks(t *testing.T) {
	bot, fake := newTestBot(t)
	ctx := context.Background()

	_, err := bot.Send(ctx, 50, dialogue.Reply{ImageURL: "https://images.example/borscht.jpg", Text: "Borscht"})
	require.NoError(t, err)
	require.NoError(t, bot.Typing(ctx, 50))
	require.NoError(t, bot.AnswerCallback(ctx, "cb", ""))
	require.NoError(t, bot.Delete(ctx, 50, 7))

	assert.Equal(t, []string{"getMe", "sendPhoto", "sendChatAction", "answerCallbackQuery", "deleteMessage"}, fake.methods)
}

type collectingSink struct{ events []dialogue.Event }

func (c *collectingSink) Enqueue(ev dialogue.Event) error {
	c.events = append(c.events, ev)
	return nil
}

func TestBot_HandleWebhook(t *testing.T) {
	bot, _ := newTestBot(t)
	sink := &collectingSink{}

	body := `{"update_id":1,"message":{"message_id":2,"from":{"id":5,"is_bot":false,"first_name":"Ivan","language_code":"en"},"chat":{"id":5,"type":"private"},"date":0,"text":"eggs, milk"}}`
	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", strings.NewReader(body))
	require.NoError(t, bot.HandleWebhook(req, sink))

	require.Len(t, sink.events, 1)
	assert.Equal(t, "eggs, milk", sink.events[0].Text)
	assert.Equal(t, "en", sink.events[0].Locale)
}
