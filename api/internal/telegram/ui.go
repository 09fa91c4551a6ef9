package telegram

import (
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram caps a message at 4096 UTF-16 units; stay well below it.
const maxMessageRunes = 3900

var examples = []string{
	"소상공인 정책자금 신청 조건이 궁금해요",
	"창업 3년 이내 받을 수 있는 지원금은?",
	"운전자금과 시설자금 차이가 뭔가요?",
}

const examplePrefix = "ex:"

func makeExamplesKeyboard() tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(examples))
	for i, q := range examples {
		btn := tgbotapi.NewInlineKeyboardButtonData(q, examplePrefix+strconv.Itoa(i))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(btn))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func exampleByData(data string) (string, bool) {
	n, err := strconv.Atoi(strings.TrimPrefix(data, examplePrefix))
	if !strings.HasPrefix(data, examplePrefix) || err != nil || n < 0 || n >= len(examples) {
		return "", false
	}
	return examples[n], true
}

// splitMessage cuts text into parts of at most limit runes, preferring to cut
// after a newline.
func splitMessage(text string, limit int) []string {
	rs := []rune(text)
	var parts []string
	for len(rs) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if rs[i-1] == '\n' {
				cut = i
				break
			}
		}
		parts = append(parts, strings.TrimRight(string(rs[:cut]), "\n"))
		rs = rs[cut:]
	}
	if len(rs) > 0 {
		parts = append(parts, string(rs))
	}
	return parts
}
