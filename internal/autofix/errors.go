package autofix

import "fmt"

// CollaboratorError represents a failed call to the rewriter
type CollaboratorError struct {
	Collaborator string
	Message      string
	Cause        error
}

func (e *CollaboratorError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Collaborator, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s error: %s", e.Collaborator, e.Message)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Cause
}

// IrreconcilableFixError explains why a candidate replacement was rejected. It is
// logged and the violation is left unresolved; Apply never returns it.
type IrreconcilableFixError struct {
	ViolationID string
	RuleID      string
	Reason      string
}

func (e *IrreconcilableFixError) Error() string {
	return fmt.Sprintf("irreconcilable fix for violation %s (rule %s): %s", e.ViolationID, e.RuleID, e.Reason)
}
