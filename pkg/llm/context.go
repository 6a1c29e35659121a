package llm

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	runContextKey contextKey = "llm_run_context"
)

// RunContext identifies what an LLM call is for, so recorded runs can be
// traced back to a deal and the prompt version that produced them.
type RunContext struct {
	DealID        uuid.UUID
	PromptName    string
	PromptVersion string
}

// WithRunContext returns a context carrying run attribution.
func WithRunContext(ctx context.Context, rc RunContext) context.Context {
	return context.WithValue(ctx, runContextKey, rc)
}

// GetRunContext retrieves run attribution, if present.
func GetRunContext(ctx context.Context) (RunContext, bool) {
	rc, ok := ctx.Value(runContextKey).(RunContext)
	return rc, ok
}
