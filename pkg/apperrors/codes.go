package apperrors

import "errors"

// Stable machine-readable codes for domain errors, shared by the HTTP API
// and the MCP tools.
const (
	CodeNotFound            = "not_found"
	CodeValidation          = "validation_error"
	CodeInvalidField        = "invalid_field"
	CodeNotReady            = "not_ready"
	CodeConflict            = "conflict"
	CodeExtractionFailed    = "extraction_failed"
	CodeDraftingFailed      = "drafting_failed"
	CodeRenderFailed        = "render_failed"
	CodeUnsupportedDocument = "unsupported_document"
	CodeDocumentTooLarge    = "document_too_large"
)

var codes = []struct {
	sentinel error
	code     string
}{
	{ErrNotFound, CodeNotFound},
	{ErrValidation, CodeValidation},
	{ErrInvalidField, CodeInvalidField},
	{ErrNotReady, CodeNotReady},
	{ErrConflict, CodeConflict},
	{ErrExtractionFailed, CodeExtractionFailed},
	{ErrDraftingFailed, CodeDraftingFailed},
	{ErrRenderFailed, CodeRenderFailed},
	{ErrUnsupportedDocument, CodeUnsupportedDocument},
	{ErrDocumentTooLarge, CodeDocumentTooLarge},
}

// Classify returns the code and structured details of a domain error.
// ok is false for system errors, including InvalidModelError, which callers
// must treat as internal failures.
func Classify(err error) (code string, details any, ok bool) {
	if err == nil {
		return "", nil, false
	}
	for _, c := range codes {
		if errors.Is(err, c.sentinel) {
			return c.code, detailsOf(err), true
		}
	}
	return "", nil, false
}

func detailsOf(err error) any {
	var notReady *NotReadyError
	if errors.As(err, &notReady) {
		return map[string]any{"unmet": notReady.Unmet, "messages": notReady.Messages}
	}
	var validation *ValidationError
	if errors.As(err, &validation) {
		return map[string]any{"fields": validation.Fields}
	}
	var invalidField *InvalidFieldError
	if errors.As(err, &invalidField) {
		return map[string]any{"field": invalidField.Field}
	}
	return nil
}
