// Package dialogue 將聊天事件轉成會話狀態轉換與外送訊息
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kitchen-bot/internal/core/prompts"
	"kitchen-bot/internal/core/recipe"
	"kitchen-bot/internal/core/session"
	"kitchen-bot/internal/pkg/common"
	"kitchen-bot/internal/pkg/locales"
	"kitchen-bot/internal/pkg/metrics"

	"go.uber.org/zap"
)

// errStale 模型回覆期間會話已被其他事件更新
var errStale = errors.New("session changed during completion")

// Deps 控制器依賴；Transcriber 與 Images 可為 nil
type Deps struct {
	Store       session.Store
	Culinary    Culinary
	Channel     Channel
	Transcriber Transcriber
	Images      ImageFinder
}

// Options 控制器參數
type Options struct {
	DefaultLanguage common.Language
	DedupWindow     time.Duration
}

// Controller 對話控制器
type Controller struct {
	store       session.Store
	history     session.History
	culinary    Culinary
	channel     Channel
	transcriber Transcriber
	images      ImageFinder
	dedup       *Deduper
	opts        Options
}

// NewController 建立控制器
func NewController(deps Deps, opts Options) *Controller {
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = common.LanguageRussian
	}
	c := &Controller{
		store:       deps.Store,
		culinary:    deps.Culinary,
		channel:     deps.Channel,
		transcriber: deps.Transcriber,
		images:      deps.Images,
		dedup:       NewDeduper(opts.DedupWindow),
		opts:        opts,
	}
	if h, ok := deps.Store.(session.History); ok {
		c.history = h
	}
	return c
}

// Close 釋放背景資源
func (c *Controller) Close() {
	c.dedup.Close()
}

// Handle 處理單一事件；回傳的錯誤只代表頻道或儲存失敗
func (c *Controller) Handle(ctx context.Context, ev Event) error {
	metrics.RecordEvent(string(ev.Kind))

	if ev.Kind == EventButton {
		if ev.CallbackID != "" {
			if err := c.channel.AnswerCallback(ctx, ev.CallbackID, ""); err != nil {
				common.LogDebug("回應按鈕失敗", zap.Error(err))
			}
		}
		if c.dedup.Duplicate(ev.UserID, ev.MessageID, ev.Data) {
			common.LogInfo("忽略重複按鈕", zap.Int64("user_id", ev.UserID), zap.String("data", ev.Data))
			return nil
		}
	}

	s, err := c.load(ctx, ev)
	if err != nil {
		return err
	}
	c.touchUser(ctx, ev, s)

	switch ev.Kind {
	case EventText:
		text := strings.TrimSpace(ev.Text)
		if strings.HasPrefix(text, "/") {
			return c.handleCommand(ctx, ev, s, text)
		}
		return c.handleText(ctx, ev, s, text)
	case EventVoice:
		return c.handleVoice(ctx, ev, s)
	case EventButton:
		return c.handleButton(ctx, ev, s)
	default:
		return fmt.Errorf("unknown event kind %q", ev.Kind)
	}
}

// load 讀取會話，不存在時建立（尚未寫入）
func (c *Controller) load(ctx context.Context, ev Event) (*session.Session, error) {
	s, err := c.store.Get(ctx, ev.UserID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if s == nil {
		s = session.New(ev.UserID, c.languageFor(ev.Locale))
	}
	if s.Language == "" {
		s.Language = c.languageFor(ev.Locale)
	}
	return s, nil
}

func (c *Controller) languageFor(locale string) common.Language {
	if lang, ok := common.ParseLanguage(locale); ok {
		return lang
	}
	return c.opts.DefaultLanguage
}

func (c *Controller) touchUser(ctx context.Context, ev Event, s *session.Session) {
	if c.history == nil {
		return
	}
	err := c.history.TouchUser(ctx, session.Profile{
		UserID:   ev.UserID,
		Username: ev.Username,
		FullName: ev.FullName,
		Language: string(s.Language),
	})
	if err != nil {
		common.LogWarn("更新使用者資料失敗", zap.Int64("user_id", ev.UserID), zap.Error(err))
	}
}

// ensureFresh 模型呼叫後重新讀取會話，版本不同則放棄本次結果
func (c *Controller) ensureFresh(ctx context.Context, s *session.Session) error {
	current, err := c.store.Get(ctx, s.UserID)
	if err != nil {
		return fmt.Errorf("reload session: %w", err)
	}
	var rev int64
	if current != nil {
		rev = current.Revision
	}
	if rev != s.Revision {
		metrics.RecordStale()
		common.LogInfo("會話已更新，捨棄過期的模型結果",
			zap.Int64("user_id", s.UserID),
			zap.Int64("snapshot", s.Revision),
			zap.Int64("current", rev),
		)
		return errStale
	}
	return nil
}

func (c *Controller) save(ctx context.Context, s *session.Session) error {
	if err := c.store.Upsert(ctx, s); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (c *Controller) send(ctx context.Context, chatID int64, r Reply) error {
	if _, err := c.channel.Send(ctx, chatID, r); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	return nil
}

func (c *Controller) sendText(ctx context.Context, ev Event, s *session.Session, key string, args ...any) error {
	return c.send(ctx, ev.ChatID, Reply{Text: locales.T(s.Language, key, args...)})
}

func (c *Controller) sendExpired(ctx context.Context, ev Event, s *session.Session) error {
	metrics.RecordStale()
	return c.send(ctx, ev.ChatID, Reply{
		Text:    locales.T(s.Language, "expired"),
		Buttons: singleButton(s.Language, "button.restart", payloadRestart),
	})
}

// progress 顯示進度訊息，回傳清除函式
func (c *Controller) progress(ctx context.Context, ev Event, s *session.Session, key string, args ...any) func() {
	_ = c.channel.Typing(ctx, ev.ChatID)
	id, err := c.channel.Send(ctx, ev.ChatID, Reply{Text: locales.T(s.Language, key, args...)})
	if err != nil || id == 0 {
		return func() {}
	}
	return func() {
		if err := c.channel.Delete(ctx, ev.ChatID, id); err != nil {
			common.LogDebug("刪除進度訊息失敗", zap.Error(err))
		}
	}
}

// handleCommand /start、/help、/reset
func (c *Controller) handleCommand(ctx context.Context, ev Event, s *session.Session, text string) error {
	command := strings.ToLower(strings.Fields(text)[0])
	if at := strings.IndexByte(command, '@'); at > 0 {
		command = command[:at]
	}

	switch command {
	case "/start":
		s.HardReset()
		if lang, ok := common.ParseLanguage(ev.Locale); ok {
			s.Language = lang
		}
		if err := c.save(ctx, s); err != nil {
			return err
		}
		name := ev.FullName
		if name == "" {
			name = ev.Username
		}
		return c.sendText(ctx, ev, s, "welcome", name)
	case "/reset":
		s.SoftReset()
		if err := c.save(ctx, s); err != nil {
			return err
		}
		if !s.HasIngredients() {
			return c.sendText(ctx, ev, s, "reset_empty")
		}
		return c.send(ctx, ev.ChatID, Reply{
			Text:    locales.T(s.Language, "reset_done", s.IngredientText),
			Buttons: singleButton(s.Language, "button.menu", payloadMenu),
		})
	default:
		return c.sendText(ctx, ev, s, "help")
	}
}

// handleVoice 下載並轉錄語音，之後與文字相同處理
func (c *Controller) handleVoice(ctx context.Context, ev Event, s *session.Session) error {
	if c.transcriber == nil {
		return c.sendText(ctx, ev, s, "voice_disabled")
	}

	_ = c.channel.Typing(ctx, ev.ChatID)
	audio, err := c.channel.DownloadFile(ctx, ev.VoiceFileID)
	if err != nil {
		common.LogWarn("下載語音失敗", zap.Int64("user_id", ev.UserID), zap.Error(err))
		return c.sendText(ctx, ev, s, "voice_failed")
	}

	text, err := c.transcriber.Transcribe(ctx, audio, "voice.ogg")
	if err != nil {
		common.LogWarn("語音辨識失敗", zap.Int64("user_id", ev.UserID), zap.Error(err))
		return c.sendText(ctx, ev, s, "voice_failed")
	}

	if err := c.sendText(ctx, ev, s, "voice_heard", text); err != nil {
		return err
	}
	return c.handleText(ctx, ev, s, text)
}

// handleText 依意圖分派自由文字
func (c *Controller) handleText(ctx context.Context, ev Event, s *session.Session, text string) error {
	intent := c.culinary.DetectIntent(ctx, text, s.Categories)

	switch intent.Kind {
	case recipe.IntentUnclear:
		return c.sendText(ctx, ev, s, "unclear")
	case recipe.IntentCategory:
		return c.openCategory(ctx, ev, s, intent.Category, prompts.StyleHome)
	case recipe.IntentRecipe:
		return c.directRecipe(ctx, ev, s, intent.Dish)
	default:
		return c.addIngredients(ctx, ev, s, text)
	}
}

// addIngredients 驗證、追加食材並重新推導類別
func (c *Controller) addIngredients(ctx context.Context, ev Event, s *session.Session, text string) error {
	_ = c.channel.Typing(ctx, ev.ChatID)
	if !c.culinary.ValidateIngredients(ctx, text) {
		return c.sendText(ctx, ev, s, "invalid_ingredients")
	}
	if err := c.ensureFresh(ctx, s); err != nil {
		return ignoreStale(err)
	}

	if err := s.AppendIngredients(text); err != nil {
		return c.sendText(ctx, ev, s, "invalid_ingredients")
	}
	// 先寫入使舊的類別與菜單按鈕失效
	if err := c.save(ctx, s); err != nil {
		return err
	}

	return c.categorize(ctx, ev, s)
}

// categorize 由目前食材推導類別並顯示類別按鈕
func (c *Controller) categorize(ctx context.Context, ev Event, s *session.Session) error {
	done := c.progress(ctx, ev, s, "analyzing")
	count := recipe.CountIngredients(s.IngredientText)
	categories := c.culinary.ResolveCategories(ctx, s.IngredientText, count)
	done()

	if err := c.ensureFresh(ctx, s); err != nil {
		return ignoreStale(err)
	}
	if err := s.SetCategories(categories); err != nil {
		common.LogWarn("無法寫入類別", zap.Int64("user_id", s.UserID), zap.Error(err))
		return c.sendExpired(ctx, ev, s)
	}
	if err := c.save(ctx, s); err != nil {
		return err
	}

	return c.showCategories(ctx, ev, s)
}

func categoriesReply(s *session.Session) Reply {
	return Reply{
		Text:    locales.T(s.Language, "choose_category", s.IngredientText),
		Buttons: categoryKeyboard(s.Language, s.Categories),
	}
}

func dishesReply(s *session.Session) Reply {
	return Reply{
		Text:    locales.T(s.Language, "choose_dish", locales.CategoryLabel(s.Language, s.CurrentCategory)),
		Buttons: dishKeyboard(s),
	}
}

func (c *Controller) showCategories(ctx context.Context, ev Event, s *session.Session) error {
	return c.send(ctx, ev.ChatID, categoriesReply(s))
}

func (c *Controller) showDishes(ctx context.Context, ev Event, s *session.Session) error {
	return c.send(ctx, ev.ChatID, dishesReply(s))
}

// replace 以按鈕所在的訊息顯示新內容，無法修改時改為傳送新訊息
func (c *Controller) replace(ctx context.Context, ev Event, r Reply) error {
	if ev.MessageID != 0 {
		err := c.channel.Edit(ctx, ev.ChatID, ev.MessageID, r)
		if err == nil {
			return nil
		}
		common.LogDebug("修改訊息失敗，改為傳送", zap.Error(err))
	}
	return c.send(ctx, ev.ChatID, r)
}

// openCategory 為類別產生新的菜單並替換舊清單
func (c *Controller) openCategory(ctx context.Context, ev Event, s *session.Session, category common.Category, style prompts.Style) error {
	// 先以副本確認類別仍有效，避免浪費模型請求
	if err := s.Clone().OpenCategory(category, nil, ""); err != nil {
		return c.sendExpired(ctx, ev, s)
	}

	var exclude []string
	if style == prompts.StyleCreative {
		for _, d := range s.CandidateDishes {
			exclude = append(exclude, d.Name)
		}
	}

	done := c.progress(ctx, ev, s, "generating_dishes")
	dishes := c.culinary.ListDishes(ctx, s.IngredientText, category, style, s.Language, exclude)
	done()

	if err := c.ensureFresh(ctx, s); err != nil {
		return ignoreStale(err)
	}

	if len(dishes) == 0 {
		return c.send(ctx, ev.ChatID, Reply{
			Text:    locales.T(s.Language, "no_dishes"),
			Buttons: categoryKeyboard(s.Language, s.Categories),
		})
	}

	if err := s.OpenCategory(category, dishes, common.NewListToken()); err != nil {
		return c.sendExpired(ctx, ev, s)
	}
	if err := c.save(ctx, s); err != nil {
		return err
	}
	return c.showDishes(ctx, ev, s)
}

// directRecipe 使用者直接指定菜名
func (c *Controller) directRecipe(ctx context.Context, ev Event, s *session.Session, dish string) error {
	r, err := c.buildRecipe(ctx, ev, s, dish)
	if err != nil {
		return err
	}
	if r == nil {
		return nil
	}
	if !r.Refused {
		if err := s.ShowRecipe(dish); err != nil {
			return c.sendExpired(ctx, ev, s)
		}
		if err := c.save(ctx, s); err != nil {
			return err
		}
	}
	return c.deliverRecipe(ctx, ev, s, *r)
}

// buildRecipe 產生食譜並確認會話未被更新；回傳 nil 代表已處理（失敗訊息或捨棄）
func (c *Controller) buildRecipe(ctx context.Context, ev Event, s *session.Session, dish string) (*recipe.Recipe, error) {
	done := c.progress(ctx, ev, s, "generating_recipe", dish)
	r, err := c.culinary.BuildRecipe(ctx, dish, s.IngredientText, s.Language)
	done()

	if err := c.ensureFresh(ctx, s); err != nil {
		return nil, ignoreStale(err)
	}
	if err != nil {
		common.LogWarn("食譜產生失敗", zap.String("dish", dish), zap.Error(err))
		return nil, c.sendText(ctx, ev, s, "recipe_failed")
	}
	return &r, nil
}

// deliverRecipe 圖片、食譜文字與按鈕，並存入歷史
func (c *Controller) deliverRecipe(ctx context.Context, ev Event, s *session.Session, r recipe.Recipe) error {
	if r.Refused {
		return c.send(ctx, ev.ChatID, Reply{Text: r.Text})
	}

	if c.images != nil {
		if url, ok := c.images.FindImage(ctx, r.Dish); ok {
			if _, err := c.channel.Send(ctx, ev.ChatID, Reply{ImageURL: url, Text: r.Dish}); err != nil {
				common.LogWarn("傳送圖片失敗", zap.String("dish", r.Dish), zap.Error(err))
			}
		}
	}

	if err := c.send(ctx, ev.ChatID, Reply{Text: r.Text, Buttons: recipeKeyboard(s)}); err != nil {
		return err
	}

	if c.history != nil {
		err := c.history.SaveRecipe(ctx, session.ArchivedRecipe{
			UserID:      s.UserID,
			Dish:        r.Dish,
			Ingredients: s.IngredientText,
			Language:    string(s.Language),
			Text:        r.Text,
		})
		if err != nil {
			common.LogWarn("保存食譜失敗", zap.String("dish", r.Dish), zap.Error(err))
		}
	}
	return nil
}

// handleButton 行內按鈕
func (c *Controller) handleButton(ctx context.Context, ev Event, s *session.Session) error {
	act, ok := parsePayload(ev.Data)
	if !ok {
		return c.sendExpired(ctx, ev, s)
	}

	switch act.kind {
	case payloadCategoryPrefix:
		return c.openCategory(ctx, ev, s, act.category, prompts.StyleHome)

	case payloadMore:
		if err := s.CheckList(act.listID); err != nil {
			return c.sendExpired(ctx, ev, s)
		}
		return c.openCategory(ctx, ev, s, s.CurrentCategory, prompts.StyleCreative)

	case payloadDishPrefix:
		dish, err := s.DishAt(act.listID, act.index)
		if err != nil {
			return c.sendExpired(ctx, ev, s)
		}
		r, err := c.buildRecipe(ctx, ev, s, dish.Name)
		if err != nil || r == nil {
			return err
		}
		if !r.Refused {
			if _, err := s.SelectDish(act.listID, act.index); err != nil {
				return c.sendExpired(ctx, ev, s)
			}
			if err := c.save(ctx, s); err != nil {
				return err
			}
		}
		return c.deliverRecipe(ctx, ev, s, *r)

	case payloadRepeat:
		if err := s.CheckRecipe(act.recipeID); err != nil {
			return c.sendExpired(ctx, ev, s)
		}
		r, err := c.buildRecipe(ctx, ev, s, s.CurrentDish)
		if err != nil || r == nil {
			return err
		}
		return c.deliverRecipe(ctx, ev, s, *r)

	case payloadBack:
		if err := s.Back(); err != nil {
			return c.sendExpired(ctx, ev, s)
		}
		if err := c.save(ctx, s); err != nil {
			return err
		}
		// 食譜訊息保留在對話中，菜單清單則原地換成分類
		if s.Phase == session.PhaseBrowsingDishes {
			return c.showDishes(ctx, ev, s)
		}
		return c.replace(ctx, ev, categoriesReply(s))

	case payloadMenu:
		if !s.HasIngredients() {
			return c.sendText(ctx, ev, s, "reset_empty")
		}
		if len(s.Categories) > 0 {
			return c.showCategories(ctx, ev, s)
		}
		return c.categorize(ctx, ev, s)

	case payloadDone:
		s.HardReset()
		if err := c.save(ctx, s); err != nil {
			return err
		}
		return c.sendText(ctx, ev, s, "farewell")

	case payloadRestart:
		s.HardReset()
		if err := c.save(ctx, s); err != nil {
			return err
		}
		return c.sendText(ctx, ev, s, "reset_empty")
	}

	return c.sendExpired(ctx, ev, s)
}

// ignoreStale 捨棄過期結果不是錯誤
func ignoreStale(err error) error {
	if errors.Is(err, errStale) {
		return nil
	}
	return err
}
