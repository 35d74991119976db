// Package policy loads and validates jurisdiction policy configuration: prohibited-term
// rules, required disclosures and hard length limits.
package policy

import (
	"fmt"
	"strings"
)

// LoadError represents a failure to read or decode a policy payload
type LoadError struct {
	Message string
	Cause   error
}

func (e *LoadError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("policy load error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("policy load error: %s", e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// ValidationError lists every problem found in a decoded policy
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("policy validation failed:\n")
	for i, problem := range e.Problems {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, problem))
	}
	return sb.String()
}

// NotFoundError indicates no built-in rule set exists for a jurisdiction
type NotFoundError struct {
	Jurisdiction string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no built-in policy for jurisdiction %q", e.Jurisdiction)
}
