package dialogue

import (
	"fmt"
	"strconv"
	"strings"

	"kitchen-bot/internal/core/session"
	"kitchen-bot/internal/pkg/common"
	"kitchen-bot/internal/pkg/locales"
)

// 按鈕 payload；more 與 repeat 後接 ":<token>"
const (
	payloadCategoryPrefix = "cat:"
	payloadDishPrefix     = "dish:"
	payloadMore           = "more"
	payloadBack           = "back"
	payloadRepeat         = "repeat"
	payloadDone           = "done"
	payloadMenu           = "menu"
	payloadRestart        = "restart"
)

// action 解析後的按鈕
type action struct {
	kind     string
	category common.Category
	listID   string
	recipeID string
	index    int
}

// parsePayload 解析按鈕資料；無法辨識時 ok 為 false
func parsePayload(data string) (action, bool) {
	switch data {
	case payloadBack, payloadDone, payloadMenu, payloadRestart:
		return action{kind: data}, true
	}

	if kind, token, found := strings.Cut(data, ":"); found && token != "" {
		switch kind {
		case payloadMore:
			return action{kind: payloadMore, listID: token}, true
		case payloadRepeat:
			return action{kind: payloadRepeat, recipeID: token}, true
		}
	}

	if key, found := strings.CutPrefix(data, payloadCategoryPrefix); found {
		c, ok := common.ParseCategory(key)
		if !ok {
			return action{}, false
		}
		return action{kind: payloadCategoryPrefix, category: c}, true
	}

	if rest, found := strings.CutPrefix(data, payloadDishPrefix); found {
		listID, idx, ok := strings.Cut(rest, ":")
		if !ok || listID == "" {
			return action{}, false
		}
		index, err := strconv.Atoi(idx)
		if err != nil {
			return action{}, false
		}
		return action{kind: payloadDishPrefix, listID: listID, index: index}, true
	}

	return action{}, false
}

func dishPayload(listID string, index int) string {
	return fmt.Sprintf("%s%s:%d", payloadDishPrefix, listID, index)
}

func morePayload(listID string) string {
	return payloadMore + ":" + listID
}

func repeatPayload(recipeID string) string {
	return payloadRepeat + ":" + recipeID
}

// categoryKeyboard 每列兩個類別按鈕
func categoryKeyboard(lang common.Language, categories []common.Category) [][]Button {
	rows := make([][]Button, 0, (len(categories)+1)/2)
	for i := 0; i < len(categories); i += 2 {
		row := []Button{{Text: locales.CategoryLabel(lang, categories[i]), Data: payloadCategoryPrefix + string(categories[i])}}
		if i+1 < len(categories) {
			row = append(row, Button{Text: locales.CategoryLabel(lang, categories[i+1]), Data: payloadCategoryPrefix + string(categories[i+1])})
		}
		rows = append(rows, row)
	}
	return rows
}

// dishKeyboard 每道菜一列，最後是「其他選項」與「返回」
func dishKeyboard(s *session.Session) [][]Button {
	rows := make([][]Button, 0, len(s.CandidateDishes)+2)
	for i, d := range s.CandidateDishes {
		rows = append(rows, []Button{{Text: common.Truncate(d.Label(), 60), Data: dishPayload(s.DishListID, i)}})
	}
	rows = append(rows,
		[]Button{{Text: locales.T(s.Language, "button.more"), Data: morePayload(s.DishListID)}},
		[]Button{{Text: locales.T(s.Language, "button.back"), Data: payloadBack}},
	)
	return rows
}

// recipeKeyboard 食譜下方的按鈕
func recipeKeyboard(s *session.Session) [][]Button {
	rows := [][]Button{{{Text: locales.T(s.Language, "button.repeat"), Data: repeatPayload(s.RecipeID)}}}
	last := []Button{}
	if len(s.CandidateDishes) > 0 || len(s.Categories) > 0 {
		last = append(last, Button{Text: locales.T(s.Language, "button.back"), Data: payloadBack})
	}
	last = append(last, Button{Text: locales.T(s.Language, "button.done"), Data: payloadDone})
	return append(rows, last)
}

func singleButton(lang common.Language, key, payload string) [][]Button {
	return [][]Button{{{Text: locales.T(lang, key), Data: payload}}}
}
