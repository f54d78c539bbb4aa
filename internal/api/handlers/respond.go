// Package handlers 營運用 HTTP API
package handlers

import (
	"errors"
	"net/http"

	"kitchen-bot/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RespondError 以 ErrorResponse 格式回傳錯誤
func RespondError(c *gin.Context, err error) {
	resp := common.ErrorResponse{
		Code:    common.ErrCodeInternalError,
		Message: common.ErrInternalError.Message,
	}
	status := common.StatusOf(err)
	var ce *common.CustomError
	switch {
	case errors.As(err, &ce):
		resp.Code = ce.Code
		resp.Message = ce.Message
	case common.IsValidationError(err):
		resp.Code = common.ErrCodeInvalidRequest
		resp.Message = err.Error()
		status = http.StatusBadRequest
	}
	if gin.Mode() == gin.DebugMode && err != nil {
		resp.Details = err.Error()
	}

	if status >= 500 {
		common.LogError("API 錯誤",
			zap.String("request_id", requestid.Get(c)),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
	}
	c.AbortWithStatusJSON(status, resp)
}
