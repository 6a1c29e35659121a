package prompts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ekaya-inc/deal-triage/pkg/models"
)

// ICDraftSystemMessage is the system message for IC drafting.
const ICDraftSystemMessage = `You write concise investment committee summaries for private credit deals. ` +
	`Use only the terms and analysis provided; do not recompute metrics or change the triage verdict. ` + JSONOnlySystemMessage

type draftInput struct {
	Terms    *models.ExtractedTerms `json:"terms"`
	Analysis draftAnalysis          `json:"analysis"`
}

type draftAnalysis struct {
	Metrics            map[string]*float64 `json:"metrics"`
	OverallTriage      models.Verdict      `json:"overall_triage"`
	RiskFlags          []models.RiskFlag   `json:"risk_flags"`
	DiligenceQuestions []string            `json:"diligence_questions"`
}

// BuildICDraftPrompt creates the drafting prompt from the confirmed terms and
// the analysis they produced.
func BuildICDraftPrompt(terms *models.ExtractedTerms, analysis *models.Analysis) (string, error) {
	if terms == nil || analysis == nil {
		return "", fmt.Errorf("terms and analysis are required")
	}

	input, err := json.MarshalIndent(draftInput{
		Terms: terms,
		Analysis: draftAnalysis{
			Metrics:            analysis.Metrics,
			OverallTriage:      analysis.OverallTriage,
			RiskFlags:          analysis.RiskFlags,
			DiligenceQuestions: analysis.DiligenceQuestions,
		},
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal draft input: %w", err)
	}

	var prompt strings.Builder

	prompt.WriteString("# Investment Committee Draft\n\n")
	prompt.WriteString("Write an IC draft for the deal below.\n\n")

	prompt.WriteString("## Input\n\n")
	prompt.WriteString("```json\n")
	prompt.Write(input)
	prompt.WriteString("\n```\n\n")

	prompt.WriteString("## Rules\n\n")
	prompt.WriteString("- `ic_summary_3_lines`: exactly three lines separated by newlines, stating the ask, the security and the verdict\n")
	prompt.WriteString(fmt.Sprintf("- `top_risks_ranked`: at most %d risks, most severe first, grounded in `risk_flags`\n", models.MaxDraftRisks))
	prompt.WriteString(fmt.Sprintf("- `mitigants_or_conditions`: at most %d items\n", models.MaxDraftMitigants))
	prompt.WriteString("- `diligence_questions`: start from the analysis questions; add only what the terms leave open\n")
	prompt.WriteString("- `what_changes_my_mind`: one sentence naming the evidence that would move the verdict\n\n")

	prompt.WriteString("## Output Format\n\n")
	prompt.WriteString("```json\n")
	prompt.WriteString(`{
  "banner": "` + models.DefaultDraftBanner + `",
  "ic_summary_3_lines": "...\n...\n...",
  "top_risks_ranked": ["..."],
  "mitigants_or_conditions": ["..."],
  "diligence_questions": ["..."],
  "what_changes_my_mind": "..."
}
`)
	prompt.WriteString("```\n\n")
	prompt.WriteString("Return ONLY the JSON, no additional text.\n")

	return prompt.String(), nil
}
