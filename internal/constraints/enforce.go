// Package constraints enforces hard per-channel character limits on finished copy.
package constraints

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/listing-copy-guard/internal/types"
)

// Enforce truncates every field that exceeds its policy limit. It returns a new
// Document and one ConstraintViolation per truncated field; fields within their limit
// or without a limit produce no record. The input document is not modified.
func Enforce(doc *types.Document, policy *types.PolicyConfig) (*types.Document, []types.ConstraintViolation) {
	result := doc.Clone()
	violations := make([]types.ConstraintViolation, 0)

	for _, path := range doc.Paths() {
		limit, ok := policy.LimitFor(path)
		if !ok {
			continue
		}

		text, _ := doc.Get(path)
		length := Length(text)
		if length <= limit {
			continue
		}

		truncated := TruncateAtWord(text, limit)
		result.Set(path, truncated)

		violations = append(violations, types.ConstraintViolation{
			ID:          uuid.NewString(),
			FieldPath:   path,
			Kind:        types.ConstraintKindCharacterLimit,
			Severity:    types.ConstraintSeverityCritical,
			Issue:       fmt.Sprintf("Field %s has %d characters, maximum is %d", path, length, limit),
			CurrentText: text,
			Limit:       limit,
			AutoFixed:   true,
			FixedText:   &truncated,
		})
	}

	return result, violations
}
