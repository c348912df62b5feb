package utils

import (
	"strings"
	"unicode/utf8"
)

// runesPerToken approximates LLM tokenizers on Latin-script text.
const runesPerToken = 4

// EstimateTokens approximates the number of tokens in text. Any non-empty
// text counts as at least one token.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	if t := n / runesPerToken; t > 0 {
		return t
	}
	return 1
}

// ClipToTokens shortens text to roughly limit tokens, preferring to cut at
// the last space inside the budget. It reports whether text was shortened.
func ClipToTokens(text string, limit int) (string, bool) {
	if limit <= 0 {
		return "", text != ""
	}
	if EstimateTokens(text) <= limit {
		return text, false
	}
	cut := string([]rune(text)[:limit*runesPerToken])
	if i := strings.LastIndexAny(cut, " \t\n"); i > len(cut)/2 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut), true
}
