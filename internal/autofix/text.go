package autofix

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	repeatedBlanks   = regexp.MustCompile(`[ \t]{2,}`)
	blankBeforePunct = regexp.MustCompile(`[ \t]+([,.;:!?])`)
	doubledComma     = regexp.MustCompile(`,\s*,`)
	leadingPunct     = regexp.MustCompile(`^[\s,;:.!?]+`)
)

// matchCase carries the casing of the replaced text onto its replacement: an
// all-caps match yields an all-caps replacement, a capitalised one a capitalised
// replacement.
func matchCase(replacement, matched string) string {
	if replacement == "" || matched == "" {
		return replacement
	}
	if isShouting(matched) {
		return strings.ToUpper(replacement)
	}
	first, _ := utf8.DecodeRuneInString(matched)
	if unicode.IsUpper(first) {
		r, size := utf8.DecodeRuneInString(replacement)
		return string(unicode.ToUpper(r)) + replacement[size:]
	}
	return replacement
}

func isShouting(s string) bool {
	letters := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			letters++
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return letters > 1
}

// splice replaces text[start:end] with replacement
func splice(text string, start, end int, replacement string) string {
	return text[:start] + replacement + text[end:]
}

// tidy cleans the gap a removed phrase leaves behind
func tidy(text string) string {
	text = repeatedBlanks.ReplaceAllString(text, " ")
	text = blankBeforePunct.ReplaceAllString(text, "$1")
	text = doubledComma.ReplaceAllString(text, ",")
	text = leadingPunct.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// appendDisclosure adds the disclosure as a trailing sentence
func appendDisclosure(text, disclosure string) string {
	trimmed := strings.TrimRightFunc(text, unicode.IsSpace)
	if trimmed == "" {
		return disclosure
	}
	return trimmed + " " + disclosure
}

// indexFold returns the byte span of the first case-insensitive occurrence of sub
func indexFold(text, sub string) (int, int, bool) {
	if sub == "" {
		return 0, 0, false
	}
	re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(sub))
	if err != nil {
		return 0, 0, false
	}
	loc := re.FindStringIndex(text)
	if loc == nil {
		return 0, 0, false
	}
	return loc[0], loc[1], true
}
