package handlers

import (
	"net/http"
	"strconv"

	"kitchen-bot/internal/core/session"
	"kitchen-bot/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SessionHandler 會話查詢與重設
type SessionHandler struct {
	store session.Store
}

// NewSessionHandler 創建會話處理器
func NewSessionHandler(store session.Store) *SessionHandler {
	return &SessionHandler{store: store}
}

func userIDParam(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		return 0, common.NewValidationError("user_id 必須是整數")
	}
	return id, nil
}

// Get 回傳使用者目前的會話
func (h *SessionHandler) Get(c *gin.Context) {
	userID, err := userIDParam(c)
	if err != nil {
		RespondError(c, err)
		return
	}

	s, err := h.store.Get(c.Request.Context(), userID)
	if err != nil {
		RespondError(c, common.ErrServiceUnavailable.Wrap(err))
		return
	}
	if s == nil {
		RespondError(c, common.ErrSessionMissing)
		return
	}
	c.JSON(http.StatusOK, s)
}

const (
	defaultRecipeLimit = 10
	maxRecipeLimit     = 50
)

// Recipes 回傳使用者最近的食譜，需要後端支援歷史紀錄
func (h *SessionHandler) Recipes(c *gin.Context) {
	userID, err := userIDParam(c)
	if err != nil {
		RespondError(c, err)
		return
	}
	archive, ok := h.store.(session.RecipeArchive)
	if !ok {
		RespondError(c, common.ErrNotImplemented)
		return
	}

	limit := defaultRecipeLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxRecipeLimit {
			RespondError(c, common.NewValidationError("limit 必須介於 1 與 50 之間"))
			return
		}
		limit = n
	}

	recipes, err := archive.RecentRecipes(c.Request.Context(), userID, limit)
	if err != nil {
		RespondError(c, common.ErrServiceUnavailable.Wrap(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "recipes": recipes})
}

// Delete 刪除會話，等同使用者的完全重設
func (h *SessionHandler) Delete(c *gin.Context) {
	userID, err := userIDParam(c)
	if err != nil {
		RespondError(c, err)
		return
	}

	if err := h.store.Delete(c.Request.Context(), userID); err != nil {
		RespondError(c, common.ErrServiceUnavailable.Wrap(err))
		return
	}
	common.LogInfo("會話已由管理介面刪除",
		zap.Int64("user_id", userID),
		zap.String("request_id", requestid.Get(c)),
	)
	c.Status(http.StatusNoContent)
}
