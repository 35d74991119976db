package revert

import (
	"fmt"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/jonathan/listing-copy-guard/internal/types"
)

// FieldDiff is a word-level unified diff of one changed field
type FieldDiff struct {
	FieldPath types.FieldPath `json:"field_path"`
	Before    string          `json:"before"`
	After     string          `json:"after"`
	Unified   string          `json:"unified"`
}

// Diff compares raw and final field by field, in final's order followed by any
// fields only raw has. Unchanged fields are omitted.
func Diff(raw, final *types.Document) ([]FieldDiff, error) {
	var diffs []FieldDiff

	paths := final.Paths()
	for _, p := range raw.Paths() {
		if !final.Has(p) {
			paths = append(paths, p)
		}
	}

	for _, path := range paths {
		before, _ := raw.Get(path)
		after, _ := final.Get(path)
		if before == after {
			continue
		}
		unified, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        wordLines(before),
			B:        wordLines(after),
			FromFile: "raw/" + path.String(),
			ToFile:   "final/" + path.String(),
			Context:  3,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to diff %s: %w", path, err)
		}
		diffs = append(diffs, FieldDiff{FieldPath: path, Before: before, After: after, Unified: unified})
	}
	return diffs, nil
}

// wordLines splits text into one diff line per word
func wordLines(text string) []string {
	words := strings.Fields(text)
	lines := make([]string, len(words))
	for i, w := range words {
		lines[i] = w + "\n"
	}
	return lines
}
