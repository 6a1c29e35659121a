package models

import (
	"time"

	"github.com/google/uuid"
)

// Status values for LLM runs.
const (
	LLMRunStatusSuccess = "success"
	LLMRunStatusError   = "error"
)

// LLMRun records one model call made on behalf of a deal. The prompt itself
// is not kept; InputHash is the SHA-256 of the redacted prompt.
type LLMRun struct {
	ID               uuid.UUID `json:"id"`
	DealID           uuid.UUID `json:"deal_id"`
	PromptName       string    `json:"prompt_name"`
	PromptVersion    string    `json:"prompt_version"`
	Model            string    `json:"model"`
	Temperature      float64   `json:"temperature"`
	InputHash        string    `json:"input_hash"`
	Status           string    `json:"status"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	PromptTokens     *int      `json:"prompt_tokens,omitempty"`
	CompletionTokens *int      `json:"completion_tokens,omitempty"`
	DurationMs       int       `json:"duration_ms"`
	CreatedAt        time.Time `json:"created_at"`
}
