// Package revert reconstructs pre-fix copy from a final document and its recorded
// auto-fixes, and produces per-field audit diffs.
package revert

import (
	"fmt"
	"strings"

	"github.com/jonathan/listing-copy-guard/internal/types"
)

// SkipReason explains why a fix could not be undone
const SkipReason = "after_text no longer present; field changed after the fix"

// SkippedFix is a fix Revert could not locate in the final document
type SkippedFix struct {
	FixID     string          `json:"fix_id"`
	FieldPath types.FieldPath `json:"field_path"`
	Reason    string          `json:"reason"`
}

// Report lists which fixes Revert undid and which it skipped
type Report struct {
	Reverted []string     `json:"reverted"`
	Skipped  []SkippedFix `json:"skipped"`
}

// MissingFieldError indicates a fix naming a field the document does not have
type MissingFieldError struct {
	FixID     string
	FieldPath types.FieldPath
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("fix %s names field %s, which is not in the document", e.FixID, e.FieldPath)
}

// Mismatch is one field that did not survive a revert/reapply round trip
type Mismatch struct {
	FieldPath types.FieldPath
	Want      string
	Got       string
}

// RoundTripError reports every field whose reapplied value differs from the final one
type RoundTripError struct {
	Mismatches []Mismatch
}

func (e *RoundTripError) Error() string {
	paths := make([]string, len(e.Mismatches))
	for i, m := range e.Mismatches {
		paths[i] = m.FieldPath.String()
	}
	return fmt.Sprintf("round trip mismatch in %d field(s): %s", len(e.Mismatches), strings.Join(paths, ", "))
}

// Revert undoes compliance fixes, newest first, so fixes must be passed in the
// order they were applied. Inside each fix's field the whole
// value is restored when it still equals the fix's AfterText; otherwise every
// occurrence of AfterText is replaced with BeforeText. Fixes whose AfterText is gone
// are skipped and reported. The final document is not modified.
func Revert(final *types.Document, fixes []types.AutoFix) (*types.Document, *Report, error) {
	raw := final.Clone()
	report := &Report{Reverted: []string{}, Skipped: []SkippedFix{}}

	for i := len(fixes) - 1; i >= 0; i-- {
		fix := fixes[i]
		current, ok := raw.Get(fix.FieldPath)
		if !ok {
			return nil, nil, &MissingFieldError{FixID: fix.ID, FieldPath: fix.FieldPath}
		}

		switch {
		case current == fix.AfterText:
			raw.Set(fix.FieldPath, fix.BeforeText)
		case fix.AfterText != "" && strings.Contains(current, fix.AfterText):
			raw.Set(fix.FieldPath, strings.ReplaceAll(current, fix.AfterText, fix.BeforeText))
		default:
			report.Skipped = append(report.Skipped, SkippedFix{FixID: fix.ID, FieldPath: fix.FieldPath, Reason: SkipReason})
			continue
		}
		report.Reverted = append(report.Reverted, fix.ID)
	}
	return raw, report, nil
}

// Reapply replays fixes oldest first, turning BeforeText into AfterText. Fixes whose
// BeforeText is not found leave the field unchanged.
func Reapply(raw *types.Document, fixes []types.AutoFix) (*types.Document, error) {
	out := raw.Clone()
	for _, fix := range fixes {
		current, ok := out.Get(fix.FieldPath)
		if !ok {
			return nil, &MissingFieldError{FixID: fix.ID, FieldPath: fix.FieldPath}
		}
		switch {
		case current == fix.BeforeText:
			out.Set(fix.FieldPath, fix.AfterText)
		case fix.BeforeText != "" && strings.Contains(current, fix.BeforeText):
			out.Set(fix.FieldPath, strings.ReplaceAll(current, fix.BeforeText, fix.AfterText))
		}
	}
	return out, nil
}

// VerifyRoundTrip checks that reapplying the reverted fixes reproduces final exactly
func VerifyRoundTrip(final *types.Document, fixes []types.AutoFix) error {
	raw, report, err := Revert(final, fixes)
	if err != nil {
		return err
	}

	skipped := make(map[string]bool, len(report.Skipped))
	for _, s := range report.Skipped {
		skipped[s.FixID] = true
	}
	replay := make([]types.AutoFix, 0, len(fixes))
	for _, f := range fixes {
		if !skipped[f.ID] {
			replay = append(replay, f)
		}
	}

	again, err := Reapply(raw, replay)
	if err != nil {
		return err
	}

	var mismatches []Mismatch
	for _, path := range final.Paths() {
		want, _ := final.Get(path)
		got, _ := again.Get(path)
		if want != got {
			mismatches = append(mismatches, Mismatch{FieldPath: path, Want: want, Got: got})
		}
	}
	if len(mismatches) > 0 {
		return &RoundTripError{Mismatches: mismatches}
	}
	return nil
}
