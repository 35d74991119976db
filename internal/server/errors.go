// Package server provides the HTTP API for running listing copy through the
// compliance pipeline and reading back its audit trail.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/jonathan/listing-copy-guard/internal/compliance"
	"github.com/jonathan/listing-copy-guard/internal/document"
	"github.com/jonathan/listing-copy-guard/internal/pipeline"
	"github.com/jonathan/listing-copy-guard/internal/policy"
	"github.com/jonathan/listing-copy-guard/internal/revert"
	"github.com/jonathan/listing-copy-guard/internal/schemas"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrNotFound indicates a missing run or artifact
type ErrNotFound struct {
	Kind string
	ID   string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// ErrStoreUnavailable indicates an audit endpoint was called on a server without a database
type ErrStoreUnavailable struct{}

func (e *ErrStoreUnavailable) Error() string {
	return "audit store is not configured"
}

// validationFromTags converts the first validator failure into an ErrValidation
func validationFromTags(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	fe := fieldErrs[0]
	return &ErrValidation{Field: fe.Field(), Message: fmt.Sprintf("failed on '%s'", fe.Tag())}
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		validationErr *ErrValidation
		notFoundErr   *ErrNotFound
		storeErr      *ErrStoreUnavailable
		configErr     *pipeline.ConfigError
		documentErr   *pipeline.DocumentError
		malformedErr  *document.MalformedError
		schemaErr     *schemas.ValidationError
		loadErr       *policy.LoadError
		policyErr     *policy.ValidationError
		missingErr    *policy.NotFoundError
		scannerErr    *compliance.ConfigError
		fieldErr      *revert.MissingFieldError
		roundTripErr  *revert.RoundTripError
	)

	switch {
	case errors.As(err, &validationErr), errors.As(err, &configErr), errors.As(err, &documentErr),
		errors.As(err, &malformedErr), errors.As(err, &schemaErr), errors.As(err, &loadErr),
		errors.As(err, &policyErr), errors.As(err, &missingErr), errors.As(err, &scannerErr):
		return http.StatusBadRequest
	case errors.As(err, &notFoundErr):
		return http.StatusNotFound
	case errors.As(err, &fieldErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &roundTripErr):
		return http.StatusConflict
	case errors.As(err, &storeErr):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
