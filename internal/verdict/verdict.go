// Package verdict reduces violations, fixes and failures into per-field and
// campaign-level compliance verdicts.
package verdict

import (
	"github.com/jonathan/listing-copy-guard/internal/types"
)

// Campaign returns compliant when nothing was ever flagged, non-compliant when a hard
// violation remains unresolved, and needs-review otherwise.
func Campaign(violations []types.Violation, unresolved []string) types.CampaignVerdict {
	if len(violations) == 0 {
		return types.VerdictCompliant
	}
	open := toSet(unresolved)
	for _, v := range violations {
		if v.IsHard() && open[v.ID] {
			return types.VerdictNonCompliant
		}
	}
	return types.VerdictNeedsReview
}

// FieldVerdicts returns one verdict per field in document order. A field fails only
// while an unresolved hard violation remains in it.
func FieldVerdicts(doc *types.Document, violations []types.Violation, fixes []types.AutoFix, unresolved []string, failures []types.FieldFailure) []types.FieldVerdict {
	open := toSet(unresolved)
	index := make(map[types.FieldPath]int, doc.Len())
	verdicts := make([]types.FieldVerdict, 0, doc.Len())
	for i, path := range doc.Paths() {
		index[path] = i
		verdicts = append(verdicts, types.FieldVerdict{FieldPath: path, Pass: true})
	}

	for _, v := range violations {
		i, ok := index[v.FieldPath]
		if !ok {
			continue
		}
		verdicts[i].ViolationCount++
		if open[v.ID] {
			verdicts[i].UnresolvedCount++
			if v.IsHard() {
				verdicts[i].Pass = false
			}
		}
	}
	for _, f := range fixes {
		if i, ok := index[f.FieldPath]; ok {
			verdicts[i].AutoFixCount++
		}
	}
	for _, f := range failures {
		if i, ok := index[f.FieldPath]; ok {
			verdicts[i].Partial = true
		}
	}
	return verdicts
}

// Aggregate assembles the compliance audit record
func Aggregate(jurisdiction string, doc *types.Document, violations []types.Violation, fixes []types.AutoFix, unresolved []string, failures []types.FieldFailure) *types.ComplianceResult {
	result := &types.ComplianceResult{
		Jurisdiction:  jurisdiction,
		Violations:    nonNilViolations(violations),
		AutoFixes:     nonNilFixes(fixes),
		Unresolved:    nonNilStrings(unresolved),
		FieldVerdicts: FieldVerdicts(doc, violations, fixes, unresolved, failures),
		Verdict:       Campaign(violations, unresolved),
		Failures:      failures,
	}
	return result
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

func nonNilViolations(v []types.Violation) []types.Violation {
	if v == nil {
		return []types.Violation{}
	}
	return v
}

func nonNilFixes(f []types.AutoFix) []types.AutoFix {
	if f == nil {
		return []types.AutoFix{}
	}
	return f
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
