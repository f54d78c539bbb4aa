// Package image 依菜名搜尋菜餚圖片（Unsplash）
package image

import (
	"context"
	"strings"

	"kitchen-bot/internal/infrastructure/config"
	"kitchen-bot/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// searchResponse Unsplash 搜尋結果
type searchResponse struct {
	Results []struct {
		URLs struct {
			Regular string `json:"regular"`
			Small   string `json:"small"`
		} `json:"urls"`
	} `json:"results"`
}

// Service 圖片搜尋服務
type Service struct {
	client  *resty.Client
	enabled bool
}

// NewService 創建圖片服務；沒有 access key 時停用
func NewService(cfg config.ImageConfig) *Service {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept-Version", "v1").
		SetHeader("Authorization", "Client-ID "+cfg.AccessKey)

	return &Service{
		client:  client,
		enabled: cfg.Enabled && cfg.AccessKey != "",
	}
}

// FindImage 回傳第一張橫向圖片的網址；任何失敗都回傳 ("", false)
func (s *Service) FindImage(ctx context.Context, dish string) (string, bool) {
	dish = strings.TrimSpace(dish)
	if !s.enabled || dish == "" {
		return "", false
	}

	var result searchResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"query":       dish + " food",
			"per_page":    "1",
			"orientation": "landscape",
		}).
		SetResult(&result).
		Get("/search/photos")
	if err != nil {
		common.LogWarn("圖片搜尋失敗", zap.String("dish", dish), zap.Error(err))
		return "", false
	}
	if resp.IsError() {
		common.LogWarn("圖片搜尋回傳錯誤狀態",
			zap.String("dish", dish),
			zap.Int("status_code", resp.StatusCode()),
		)
		return "", false
	}

	if len(result.Results) == 0 {
		return "", false
	}
	url := result.Results[0].URLs.Regular
	if url == "" {
		url = result.Results[0].URLs.Small
	}
	return url, url != ""
}
