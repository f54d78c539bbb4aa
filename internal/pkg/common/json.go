package common

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// maxScanStarts 逐位掃描時最多嘗試的起始括號數
const maxScanStarts = 64

var (
	unquotedKeyPattern  = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)
	trailingCommaRegexp = regexp.MustCompile(`,\s*([}\]])`)
	widestObjectPattern = regexp.MustCompile(`(?s)\{.*\}`)
	widestArrayPattern  = regexp.MustCompile(`(?s)\[.*\]`)
)

// ExtractStructured 從模型回覆的自由文字中擷取 JSON 物件或陣列
// 找不到可解析的結構時回傳 (nil, false)，永不 panic
func ExtractStructured(text string) (any, bool) {
	raw, ok := locateJSON(text)
	if !ok {
		return nil, false
	}
	var v any
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	return v, true
}

// ExtractInto 擷取 JSON 並解析到指定結構，成功回傳 true
func ExtractInto(text string, v any) bool {
	raw, ok := locateJSON(text)
	if !ok {
		return false
	}
	return json.Unmarshal([]byte(raw), v) == nil
}

// locateJSON 依序嘗試：最左括號到最右對應括號、最寬正則範圍、逐位解碼
func locateJSON(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", false
	}

	if candidate, ok := bracketSpan(text); ok {
		if raw, ok := validOrRepaired(candidate); ok {
			return raw, true
		}
	}

	for _, pattern := range []*regexp.Regexp{widestObjectPattern, widestArrayPattern} {
		if candidate := pattern.FindString(text); candidate != "" {
			if raw, ok := validOrRepaired(candidate); ok {
				return raw, true
			}
		}
	}

	return scanFirstValue(text)
}

// bracketSpan 取最左的 { 或 [，以及同類型最右的閉括號
func bracketSpan(text string) (string, bool) {
	start := strings.IndexAny(text, "{[")
	if start == -1 {
		return "", false
	}
	closing := byte('}')
	if text[start] == '[' {
		closing = ']'
	}
	end := strings.LastIndexByte(text, closing)
	if end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// scanFirstValue 從每個開括號起嘗試解碼第一個完整的 JSON 值
func scanFirstValue(text string) (string, bool) {
	tried := 0
	for i := 0; i < len(text) && tried < maxScanStarts; i++ {
		if text[i] != '{' && text[i] != '[' {
			continue
		}
		tried++
		var raw json.RawMessage
		dec := json.NewDecoder(strings.NewReader(text[i:]))
		if err := dec.Decode(&raw); err == nil {
			return string(raw), true
		}
	}
	return "", false
}

// validOrRepaired 原樣可解析即回傳；否則補引號、去除尾逗號後再試
func validOrRepaired(candidate string) (string, bool) {
	if json.Valid([]byte(candidate)) {
		return candidate, true
	}
	repaired := trailingCommaRegexp.ReplaceAllString(QuoteJSONKeys(candidate), "$1")
	if json.Valid([]byte(repaired)) {
		return repaired, true
	}
	return "", false
}

// QuoteJSONKeys 將未加雙引號的鍵補上雙引號
func QuoteJSONKeys(raw string) string {
	return unquotedKeyPattern.ReplaceAllString(raw, `$1"$2":`)
}

// ParseJSONBytes 解析 JSON 位元組切片到結構體
func ParseJSONBytes(data []byte, v interface{}) error {
	return decodeJSON(bytes.NewReader(data), v)
}

func decodeJSON(r io.Reader, v interface{}) error {
	dec := json.NewDecoder(r)
	if err := dec.Decode(v); err != nil {
		return err
	}

	// 確保沒有多餘資料
	if _, err := dec.Token(); err != io.EOF {
		return fmt.Errorf("unexpected extra JSON data")
	}
	return nil
}
