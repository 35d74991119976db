package constraints

import (
	"strings"
	"unicode"
)

// Ellipsis is appended to every truncated field
const Ellipsis = "…"

// wordCutThreshold is the fraction of the limit past which a whitespace boundary is
// preferred over a hard cut
const wordCutThreshold = 0.5

// Length returns the character count used for every limit comparison
func Length(text string) int {
	return len([]rune(text))
}

// TruncateAtWord shortens text to at most limit characters, preferring to cut at a
// word boundary and ending with a single ellipsis. Text within the limit is returned
// unchanged. Limits below 1 are treated as 1, so non-empty input never becomes empty.
func TruncateAtWord(text string, limit int) string {
	if limit < 1 {
		limit = 1
	}

	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}

	prefix := runes[:limit-1]

	lastSpace := -1
	for i := len(prefix) - 1; i >= 0; i-- {
		if unicode.IsSpace(prefix[i]) {
			lastSpace = i
			break
		}
	}

	cut := prefix
	if lastSpace >= 0 && float64(lastSpace) > float64(limit)*wordCutThreshold {
		cut = prefix[:lastSpace]
	}

	return strings.TrimRightFunc(string(cut), unicode.IsSpace) + Ellipsis
}
