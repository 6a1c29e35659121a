package apperrors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jinzhu/inflection"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrValidation          = errors.New("validation failed")
	ErrInvalidField        = errors.New("invalid field")
	ErrNotReady            = errors.New("not ready")
	ErrExtractionFailed    = errors.New("extraction failed")
	ErrDraftingFailed      = errors.New("drafting failed")
	ErrRenderFailed        = errors.New("render failed")
	ErrInvalidModel        = errors.New("invalid term model")
	ErrUnsupportedDocument = errors.New("unsupported document type")
	ErrDocumentTooLarge    = errors.New("document too large")
)

// FieldError describes one rejected value in a submitted payload.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every field violation found in a payload.
// It matches ErrValidation via errors.Is.
type ValidationError struct {
	Fields []FieldError
}

// NewValidationError creates a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// Add appends a field violation.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// HasErrors reports whether any violation was recorded.
func (e *ValidationError) HasErrors() bool {
	return e != nil && len(e.Fields) > 0
}

// OrNil returns the error when violations were recorded, nil otherwise.
func (e *ValidationError) OrNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return fmt.Sprintf("%s: %s", ErrValidation.Error(), strings.Join(parts, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// InvalidFieldError is returned when a field name is not part of the term model.
type InvalidFieldError struct {
	Field string
}

func (e *InvalidFieldError) Error() string {
	return fmt.Sprintf("%s: unknown field %q", ErrInvalidField.Error(), e.Field)
}

func (e *InvalidFieldError) Is(target error) bool {
	return target == ErrInvalidField
}

// NotReadyError lists the preconditions a deal has not met for the requested step.
type NotReadyError struct {
	Unmet    []string
	Messages []string
}

func (e *NotReadyError) Error() string {
	noun := "condition"
	if len(e.Unmet) != 1 {
		noun = inflection.Plural(noun)
	}
	return fmt.Sprintf("%s: %d unmet %s (%s)", ErrNotReady.Error(), len(e.Unmet), noun, strings.Join(e.Unmet, ", "))
}

func (e *NotReadyError) Is(target error) bool {
	return target == ErrNotReady
}

// InvalidModelError signals a structurally malformed term model reaching the analysis engine.
type InvalidModelError struct {
	Reason string
}

func (e *InvalidModelError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidModel.Error(), e.Reason)
}

func (e *InvalidModelError) Is(target error) bool {
	return target == ErrInvalidModel
}
