package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"kitchen-bot/internal/core/prompts"
	"kitchen-bot/internal/core/recipe"
	"kitchen-bot/internal/core/session"
	"kitchen-bot/internal/infrastructure/config"
	"kitchen-bot/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCulinary struct {
	valid     bool
	recipeErr error
}

func (s stubCulinary) ValidateIngredients(ctx context.Context, text string) bool { return s.valid }

func (s stubCulinary) ResolveCategories(ctx context.Context, text string, itemCount int) []common.Category {
	return []common.Category{common.CategorySalad, common.CategoryMain}
}

func (s stubCulinary) ListDishes(ctx context.Context, text string, category common.Category, style prompts.Style, lang common.Language, exclude []string) []common.Dish {
	return []common.Dish{{Name: string(category) + " one"}, {Name: string(category) + " two"}}
}

func (s stubCulinary) BuildRecipe(ctx context.Context, dish, text string, lang common.Language) (recipe.Recipe, error) {
	if s.recipeErr != nil {
		return recipe.Recipe{}, s.recipeErr
	}
	return recipe.Recipe{Dish: dish, Text: "Recipe for " + dish + " in " + string(lang)}, nil
}

type downStore struct{ *session.MemoryStore }

func (downStore) HealthCheck(ctx context.Context) bool { return false }

func testConfig() *config.Config {
	return &config.Config{
		App:         config.AppConfig{Version: "test"},
		Culinary:    config.CulinaryConfig{DefaultLanguage: "ru"},
		RateLimit:   config.RateLimitConfig{Enabled: false},
		DedupWindow: time.Second,
	}
}

func do(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRouter_Health(t *testing.T) {
	router := SetupRouter(testConfig(), Deps{Store: session.NewMemoryStore(), Culinary: stubCulinary{valid: true}})

	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/live", "").Code)
	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/ready", "").Code)

	w := do(router, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")

	down := SetupRouter(testConfig(), Deps{Store: downStore{session.NewMemoryStore()}})
	assert.Equal(t, http.StatusServiceUnavailable, do(down, http.MethodGet, "/ready", "").Code)
}

func TestRouter_UnknownRoutes(t *testing.T) {
	router := SetupRouter(testConfig(), Deps{Store: session.NewMemoryStore()})

	w := do(router, http.MethodGet, "/api/v1/nothing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "NOT_FOUND")

	w = do(router, http.MethodPost, "/health", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Contains(t, w.Body.String(), "METHOD_NOT_ALLOWED")
}

func TestRouter_Sessions(t *testing.T) {
	store := session.NewMemoryStore()
	s := session.New(77, common.LanguageEnglish)
	require.NoError(t, s.AppendIngredients("eggs, milk"))
	require.NoError(t, store.Upsert(context.Background(), s))

	router := SetupRouter(testConfig(), Deps{Store: store})

	w := do(router, http.MethodGet, "/api/v1/sessions/77", "")
	require.Equal(t, http.StatusOK, w.Code)
	var got session.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "eggs, milk", got.IngredientText)
	assert.Equal(t, session.PhaseCollecting, got.Phase)

	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodGet, "/api/v1/sessions/abc", "").Code)
	assert.Equal(t, http.StatusNoContent, do(router, http.MethodDelete, "/api/v1/sessions/77", "").Code)

	w = do(router, http.MethodGet, "/api/v1/sessions/77", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "SESSION_NOT_FOUND")
}

type archiveStore struct {
	*session.MemoryStore
	recipes []session.ArchivedRecipe
}

func (a archiveStore) RecentRecipes(ctx context.Context, userID int64, limit int) ([]session.ArchivedRecipe, error) {
	if limit > len(a.recipes) {
		limit = len(a.recipes)
	}
	return a.recipes[:limit], nil
}

func TestRouter_RecipeHistory(t *testing.T) {
	plain := SetupRouter(testConfig(), Deps{Store: session.NewMemoryStore()})
	assert.Equal(t, http.StatusNotImplemented, do(plain, http.MethodGet, "/api/v1/sessions/5/recipes", "").Code)

	store := archiveStore{
		MemoryStore: session.NewMemoryStore(),
		recipes:     []session.ArchivedRecipe{{UserID: 5, Dish: "Pancakes"}, {UserID: 5, Dish: "Omelette"}},
	}
	router := SetupRouter(testConfig(), Deps{Store: store})

	w := do(router, http.MethodGet, "/api/v1/sessions/5/recipes?limit=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Recipes []session.ArchivedRecipe `json:"recipes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Recipes, 1)
	assert.Equal(t, "Pancakes", body.Recipes[0].Dish)

	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodGet, "/api/v1/sessions/5/recipes?limit=500", "").Code)
}

func TestRouter_Recipes(t *testing.T) {
	router := SetupRouter(testConfig(), Deps{Store: session.NewMemoryStore(), Culinary: stubCulinary{valid: true}})

	w := do(router, http.MethodPost, "/api/v1/recipes", `{"dish":"borscht","language":"en"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Recipe for borscht in en")

	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodPost, "/api/v1/recipes", `{}`).Code)

	failing := SetupRouter(testConfig(), Deps{Store: session.NewMemoryStore(), Culinary: stubCulinary{recipeErr: common.ErrNoResult}})
	w = do(failing, http.MethodPost, "/api/v1/recipes", `{"dish":"borscht"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "AI_SERVICE_ERROR")
}

func TestRouter_Menu(t *testing.T) {
	router := SetupRouter(testConfig(), Deps{Store: session.NewMemoryStore(), Culinary: stubCulinary{valid: true}})

	w := do(router, http.MethodPost, "/api/v1/menu", `{"ingredients":"cucumber, tomato"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var menu struct {
		Categories []string `json:"categories"`
		Category   string   `json:"category"`
		Dishes     []struct {
			Name string `json:"name"`
		} `json:"dishes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &menu))
	assert.Equal(t, []string{"salad", "main"}, menu.Categories)
	assert.Equal(t, "salad", menu.Category)
	assert.Equal(t, "salad one", menu.Dishes[0].Name)

	w = do(router, http.MethodPost, "/api/v1/menu", `{"ingredients":"cucumber","category":"main"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "main one")

	assert.Equal(t, http.StatusBadRequest, do(router, http.MethodPost, "/api/v1/menu", `{"ingredients":"x","category":"pizza"}`).Code)

	invalid := SetupRouter(testConfig(), Deps{Store: session.NewMemoryStore(), Culinary: stubCulinary{valid: false}})
	assert.Equal(t, http.StatusUnprocessableEntity, do(invalid, http.MethodPost, "/api/v1/menu", `{"ingredients":"asdfgh"}`).Code)
}

// taskCompleter 依任務回傳固定的模型回覆
type taskCompleter map[prompts.Task]string

func (c taskCompleter) Complete(ctx context.Context, p prompts.Prompt) string { return c[p.Task] }

func TestRouter_MenuOnlyOpensDerivedCategories(t *testing.T) {
	culinary := recipe.NewService(taskCompleter{
		prompts.TaskValidate:   `{"valid": true}`,
		prompts.TaskCategories: `["mix", "main"]`,
		prompts.TaskDishes:     `[{"name": "Set A"}]`,
	}, recipe.Options{MixMinIngredients: 5})
	router := SetupRouter(testConfig(), Deps{Store: session.NewMemoryStore(), Culinary: culinary})

	w := do(router, http.MethodPost, "/api/v1/menu", `{"ingredients":"cucumber, tomato","category":"mix"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotContains(t, w.Body.String(), "Set A")

	w = do(router, http.MethodPost, "/api/v1/menu", `{"ingredients":"cucumber, tomato","category":"dessert"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(router, http.MethodPost, "/api/v1/menu", `{"ingredients":"cucumber, tomato"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"categories":["main"]`)

	w = do(router, http.MethodPost, "/api/v1/menu", `{"ingredients":"cucumber, tomato, eggs, rice, cheese","category":"mix"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Set A")
}

func TestRouter_Webhook(t *testing.T) {
	var calls int
	webhook := func(r *http.Request) error {
		calls++
		if strings.Contains(r.Header.Get("X-Test"), "bad") {
			return errors.New("bad update")
		}
		return nil
	}

	noHook := SetupRouter(testConfig(), Deps{Store: session.NewMemoryStore()})
	assert.Equal(t, http.StatusNotFound, do(noHook, http.MethodPost, WebhookPath, `{"update_id":1}`).Code)

	router := SetupRouter(testConfig(), Deps{Store: session.NewMemoryStore(), Webhook: webhook})
	assert.Equal(t, http.StatusOK, do(router, http.MethodPost, WebhookPath, `{"update_id":1}`).Code)
	assert.Equal(t, http.StatusOK, do(router, http.MethodPost, WebhookPath, `{"update_id":1}`).Code, "redelivery")
	assert.Equal(t, 1, calls)

	req := httptest.NewRequest(http.MethodPost, WebhookPath, strings.NewReader(`{"update_id":2}`))
	req.Header.Set("X-Test", "bad")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
