package llm

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestRunContext(t *testing.T) {
	if _, ok := GetRunContext(context.Background()); ok {
		t.Error("expected no run context on a bare context")
	}

	dealID := uuid.New()
	ctx := WithRunContext(context.Background(), RunContext{DealID: dealID, PromptName: "extract_terms", PromptVersion: "v1"})

	rc, ok := GetRunContext(ctx)
	if !ok {
		t.Fatal("expected run context")
	}
	if rc.DealID != dealID || rc.PromptName != "extract_terms" || rc.PromptVersion != "v1" {
		t.Errorf("unexpected run context: %+v", rc)
	}
}
