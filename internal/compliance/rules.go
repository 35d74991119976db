package compliance

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/jonathan/listing-copy-guard/internal/types"
)

// Match is one rule hit inside a text. Start and End are byte offsets into the text
// that was matched.
type Match struct {
	RuleID string
	Text   string
	Start  int
	End    int
}

type rule struct {
	term types.ProhibitedTerm
	re   *regexp.Regexp
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// compileRule builds the matcher for one prohibited term. Literal terms match
// case-insensitively, tolerate any whitespace between words and are anchored on word
// boundaries wherever the term starts or ends with a word character.
func compileRule(term types.ProhibitedTerm) (*rule, error) {
	var expr string
	if term.Term != "" {
		literal := strings.TrimSpace(term.Term)
		words := whitespaceRun.Split(literal, -1)
		for i, w := range words {
			words[i] = regexp.QuoteMeta(w)
		}
		expr = strings.Join(words, `\s+`)

		first, _ := utf8.DecodeRuneInString(literal)
		last, _ := utf8.DecodeLastRuneInString(literal)
		if isWordRune(first) {
			expr = `\b` + expr
		}
		if isWordRune(last) {
			expr += `\b`
		}
	} else {
		expr = term.Pattern
	}

	re, err := regexp.Compile("(?i)" + expr)
	if err != nil {
		return nil, fmt.Errorf("rule %s: invalid pattern: %w", term.ID, err)
	}
	return &rule{term: term, re: re}, nil
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func (r *rule) find(text string) []Match {
	locs := r.re.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}
	matches := make([]Match, 0, len(locs))
	for _, loc := range locs {
		if loc[0] == loc[1] {
			continue
		}
		matches = append(matches, Match{
			RuleID: r.term.ID,
			Text:   text[loc[0]:loc[1]],
			Start:  loc[0],
			End:    loc[1],
		})
	}
	return matches
}

// sortMatches orders matches by position; matches at the same offset keep rule order
func sortMatches(matches []Match) {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Start < matches[j].Start
	})
}

// contextWindow returns up to radius runes either side of the byte range [start, end)
func contextWindow(text string, start, end, radius int) string {
	if end > len(text) {
		end = len(text)
	}
	if start > end {
		start = end
	}
	runes := []rune(text)
	runeStart := utf8.RuneCountInString(text[:start])
	runeEnd := runeStart + utf8.RuneCountInString(text[start:end])

	from := runeStart - radius
	if from < 0 {
		from = 0
	}
	to := runeEnd + radius
	if to > len(runes) {
		to = len(runes)
	}
	return strings.TrimSpace(string(runes[from:to]))
}
