// Package voice 將語音訊息轉成文字（Whisper 相容 API）
package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"kitchen-bot/internal/infrastructure/config"
	"kitchen-bot/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

var (
	// ErrDisabled 未啟用語音辨識
	ErrDisabled = errors.New("transcriber disabled")
	// ErrTooLarge 音訊超過大小限制
	ErrTooLarge = errors.New("audio too large")
	// ErrEmptyTranscript 辨識結果為空
	ErrEmptyTranscript = errors.New("empty transcript")
)

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Service 語音轉文字服務
type Service struct {
	client *resty.Client
	cfg    config.TranscriberConfig
}

// NewService 創建語音服務
func NewService(cfg config.TranscriberConfig) *Service {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetAuthToken(cfg.APIKey).
		SetTimeout(cfg.Timeout)

	return &Service{client: client, cfg: cfg}
}

// Enabled 是否可用
func (s *Service) Enabled() bool {
	return s.cfg.Enabled && s.cfg.APIKey != ""
}

// Transcribe 上傳音訊並回傳文字
func (s *Service) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if !s.Enabled() {
		return "", ErrDisabled
	}
	if s.cfg.MaxSizeBytes > 0 && int64(len(audio)) > s.cfg.MaxSizeBytes {
		return "", ErrTooLarge
	}
	if filename == "" {
		filename = "voice.ogg"
	}

	var result transcriptionResponse
	resp, err := s.client.R().
		SetContext(ctx).
		SetFileReader("file", filename, bytes.NewReader(audio)).
		SetFormData(map[string]string{
			"model":           s.cfg.Model,
			"language":        languageCode(s.cfg.Language),
			"response_format": "json",
		}).
		SetResult(&result).
		Post("/audio/transcriptions")
	if err != nil {
		return "", fmt.Errorf("failed to send audio: %w", err)
	}
	if resp.IsError() {
		common.LogWarn("語音辨識回傳錯誤狀態", zap.Int("status_code", resp.StatusCode()))
		return "", fmt.Errorf("transcription API error (status %d)", resp.StatusCode())
	}

	text := strings.TrimSpace(result.Text)
	if text == "" {
		return "", ErrEmptyTranscript
	}
	return text, nil
}

// languageCode 將 ru-RU 轉成 ISO-639-1
func languageCode(lang string) string {
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		return strings.ToLower(lang[:i])
	}
	return strings.ToLower(lang)
}
