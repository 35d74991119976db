package pipeline

import "fmt"

// ConfigError represents a missing or unusable policy
type ConfigError struct {
	Message string
	Cause   error
}

func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("pipeline config error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("pipeline config error: %s", e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// DocumentError represents an input document the pipeline cannot process
type DocumentError struct {
	Message string
	Cause   error
}

func (e *DocumentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("document error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("document error: %s", e.Message)
}

func (e *DocumentError) Unwrap() error {
	return e.Cause
}
