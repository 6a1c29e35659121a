package prompts

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/deal-triage/pkg/models"
)

// ExtractTermsSystemMessage is the system message for term extraction.
const ExtractTermsSystemMessage = `You are a credit analyst extracting loan terms from deal documents. ` +
	`You never guess: a value that is not stated in the documents is null. ` + JSONOnlySystemMessage

var fieldHints = map[string]string{
	models.FieldLoanAmount:                "facility or principal amount, number without currency symbols",
	models.FieldCurrency:                  "ISO 4217 code, e.g. AUD",
	models.FieldTermMonths:                "loan term in whole months",
	models.FieldInterestRatePct:           "annual interest or coupon rate in percent, e.g. 9.5",
	models.FieldFees:                      `list of {"type": string, "pct_or_amount": string}`,
	models.FieldCollateralType:            "short description of the security, or \"unknown\"",
	models.FieldCollateralValueAppraised:  "appraised (on completion) value",
	models.FieldCollateralValueAsIs:       "as-is value",
	models.FieldCollateralValueStressed:   "stressed or forced-sale value",
	models.FieldLienPosition:              "",
	models.FieldJurisdiction:              "governing jurisdiction",
	models.FieldEnforcementTimelineMonths: "expected months to enforce security",
	models.FieldRepaymentSource:           "how the loan will be repaid, e.g. sale of units or refinance",
	models.FieldRepaymentTimelineMonths:   "months until the repayment source is expected",
	models.FieldKeyConditions:             "list of conditions precedent or covenants",
	models.FieldNotes:                     "anything else material, or null",
}

// BuildExtractTermsPrompt creates the extraction prompt for the combined,
// already redacted document text of one deal.
func BuildExtractTermsPrompt(dealText string) string {
	var prompt strings.Builder

	prompt.WriteString("# Loan Term Extraction\n\n")
	prompt.WriteString("Extract the loan terms below from the deal documents. Each document starts with a `--- filename ---` line.\n\n")

	prompt.WriteString("## Fields\n\n")
	for _, f := range models.TermFields() {
		hint := fieldHints[f.Name]
		if f.Name == models.FieldLienPosition {
			hint = "one of " + lienPositions()
		}
		prompt.WriteString(fmt.Sprintf("- `%s` (%s): %s\n", f.Name, f.Kind, hint))
	}

	prompt.WriteString("\n## Citations\n\n")
	prompt.WriteString("For every field you populate, add an entry to `citations` keyed by the field name whose value is a list of short verbatim excerpts (under 200 characters) that support it. ")
	prompt.WriteString("Use null for fields with no supporting excerpt.\n\n")

	prompt.WriteString("## Output Format\n\n")
	prompt.WriteString("```json\n")
	prompt.WriteString(`{
  "loan_amount": 1000000,
  "currency": "AUD",
  "term_months": 18,
  "lien_position": "first",
  "repayment_source": "Sale of completed units",
  "key_conditions": ["Independent valuation before drawdown"],
  "citations": {
    "loan_amount": ["Facility limit: $1,000,000"],
    "term_months": ["Term: 18 months from first drawdown"],
    "jurisdiction": null
  }
}
`)
	prompt.WriteString("```\n\n")
	prompt.WriteString("Include every field listed above. Return ONLY the JSON, no additional text.\n\n")

	prompt.WriteString("## Deal Documents\n\n")
	prompt.WriteString(dealText)
	prompt.WriteString("\n")

	return prompt.String()
}

func lienPositions() string {
	parts := make([]string, len(models.ValidLienPositions))
	for i, p := range models.ValidLienPositions {
		parts[i] = fmt.Sprintf("%q", p)
	}
	return strings.Join(parts, ", ")
}
