package compliance

import "fmt"

// ConfigError represents a policy the scanner cannot compile
type ConfigError struct {
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("scanner config error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("scanner config error: %s", e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// CollaboratorError represents a failed call to the contextual judge
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
