package extraction

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/deal-triage/pkg/models"
)

// snippetContext is how many characters either side of a match a stub citation keeps.
const snippetContext = 80

var (
	labelledAmountPattern = regexp.MustCompile(`(?i)(?:loan amount|facility amount|facility limit|principal)[^\n\r]*?(\$?\s*[0-9][0-9,.]*)(?:\s*(AUD|USD|NZD))?`)
	bareAmountPattern     = regexp.MustCompile(`\$\s*([0-9][0-9,.]+)`)
	interestPattern       = regexp.MustCompile(`(?i)\b(?:interest|coupon)(?:\s+rate)?\s*[:=]?\s*([0-9]+(?:\.[0-9]+)?)\s*%`)
	termPattern           = regexp.MustCompile(`(?i)\bterm\s*[:=]?\s*([0-9]{1,3})\s*(?:months|month|mos|mo)\b`)
	collateralPattern     = regexp.MustCompile(`(?i)\bcollateral\s*[:=]?\s*([A-Za-z /-]{3,60})`)
)

type stubExtractor struct {
	docs   DocumentSource
	logger *zap.Logger
}

// NewStubExtractor creates an extractor that reads a handful of obvious terms
// with regular expressions. It needs no external service, so the whole
// workflow can run locally.
func NewStubExtractor(docs DocumentSource, logger *zap.Logger) Extractor {
	return &stubExtractor{
		docs:   docs,
		logger: logger.Named("extraction-stub"),
	}
}

var _ Extractor = (*stubExtractor)(nil)

func (e *stubExtractor) Extract(ctx context.Context, dealID uuid.UUID) (*models.ExtractedTerms, error) {
	text, err := loadDealText(ctx, e.docs, dealID)
	if err != nil {
		return nil, err
	}

	terms := ExtractHeuristic(text)
	e.logger.Debug("Heuristic extraction finished",
		zap.String("deal_id", dealID.String()),
		zap.Strings("found", foundFields(terms)))
	return terms, nil
}

// ExtractHeuristic reads loan amount, interest rate, term and collateral type
// from text. Every field without evidence carries a "none" citation.
func ExtractHeuristic(text string) *models.ExtractedTerms {
	terms := &models.ExtractedTerms{Citations: make(models.Citations)}
	for _, name := range models.TermFieldNames() {
		terms.Citations[name] = models.NoCitations()
	}

	cite := func(field string, loc []int) {
		if s, ok := cleanSnippet(contextSnippet(text, loc[0], loc[1], snippetContext)); ok {
			terms.Citations[field] = models.NewFoundCitations(s)
		}
	}

	if m := labelledAmountPattern.FindStringSubmatchIndex(text); m != nil {
		if v, ok := parseAmount(text[m[2]:m[3]]); ok {
			terms.LoanAmount = &v
			if m[4] >= 0 {
				terms.Currency = strings.ToUpper(text[m[4]:m[5]])
			}
			cite(models.FieldLoanAmount, m)
		}
	}
	if terms.LoanAmount == nil {
		if m := bareAmountPattern.FindStringSubmatchIndex(text); m != nil {
			if v, ok := parseAmount(text[m[2]:m[3]]); ok {
				terms.LoanAmount = &v
				cite(models.FieldLoanAmount, m)
			}
		}
	}

	if m := interestPattern.FindStringSubmatchIndex(text); m != nil {
		if v, err := strconv.ParseFloat(text[m[2]:m[3]], 64); err == nil {
			terms.InterestRatePct = &v
			cite(models.FieldInterestRatePct, m)
		}
	}

	if m := termPattern.FindStringSubmatchIndex(text); m != nil {
		if v, err := strconv.Atoi(text[m[2]:m[3]]); err == nil {
			terms.TermMonths = &v
			cite(models.FieldTermMonths, m)
		}
	}

	if m := collateralPattern.FindStringSubmatchIndex(text); m != nil {
		terms.CollateralType = strings.TrimSpace(text[m[2]:m[3]])
		cite(models.FieldCollateralType, m)
	}

	terms.Normalize()
	return terms
}

func parseAmount(raw string) (float64, bool) {
	s := strings.NewReplacer("$", "", ",", "", " ", "").Replace(raw)
	s = strings.TrimRight(s, ".")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func foundFields(t *models.ExtractedTerms) []string {
	var out []string
	for _, name := range models.TermFieldNames() {
		if t.Citations.Get(name).Status == models.CitationFound {
			out = append(out, name)
		}
	}
	return out
}
