package extraction

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/ekaya-inc/deal-triage/pkg/jsonutil"
	"github.com/ekaya-inc/deal-triage/pkg/llm"
	"github.com/ekaya-inc/deal-triage/pkg/models"
)

var currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

var lienAliases = map[string]models.LienPosition{
	"1st":             models.LienFirst,
	"first mortgage":  models.LienFirst,
	"senior":          models.LienFirst,
	"2nd":             models.LienSecond,
	"second mortgage": models.LienSecond,
	"subordinated":    models.LienSecond,
	"none":            models.LienUnsecured,
}

// DecodeTerms reads a model response into a normalized term candidate. It is
// lenient about value types (numbers as text, whole numbers as floats) and
// drops values it cannot interpret rather than failing the extraction.
// Every field's citation is explicit: excerpts become "found", anything else "none".
func DecodeTerms(response string) (*models.ExtractedTerms, error) {
	obj, err := llm.ExtractJSONObject(response)
	if err != nil {
		return nil, err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return nil, llm.NewError(llm.ErrorTypeResponse, "response is not a JSON object", false, err)
	}

	var rawCitations map[string]json.RawMessage
	if c, ok := raw["citations"]; ok {
		// A malformed citations block loses the evidence, not the terms.
		_ = json.Unmarshal(c, &rawCitations)
	}

	canonical := make(map[string]any, len(raw)+1)
	citations := make(map[string][]string)
	for _, f := range models.TermFields() {
		if value, ok := raw[f.Name]; ok {
			canonical[f.Name] = lenientValue(f, value)
		}
		citations[f.Name] = cleanSnippets(jsonutil.FlexibleStringList(rawCitations[f.Name]))
	}
	canonical["citations"] = citations

	data, err := json.Marshal(canonical)
	if err != nil {
		return nil, llm.NewError(llm.ErrorTypeResponse, "failed to re-encode terms", false, err)
	}
	terms, err := models.ParseTerms(data)
	if err != nil {
		return nil, llm.NewError(llm.ErrorTypeResponse, "terms failed validation", false, err)
	}
	return terms, nil
}

func lenientValue(f models.TermField, raw json.RawMessage) any {
	switch f.Kind {
	case models.FieldKindNumber:
		v := jsonutil.FlexibleFloat(raw)
		if v == nil || *v < 0 {
			return nil
		}
		return *v
	case models.FieldKindInteger:
		v := jsonutil.FlexibleInt(raw)
		if v == nil || *v < 0 {
			return nil
		}
		return *v
	case models.FieldKindEnum:
		return lenientLien(jsonutil.FlexibleStringValue(raw))
	case models.FieldKindFeeList:
		return lenientFees(raw)
	case models.FieldKindTextList:
		return jsonutil.FlexibleStringList(raw)
	default:
		s := strings.TrimSpace(jsonutil.FlexibleStringValue(raw))
		if f.Name == models.FieldCurrency {
			s = strings.ToUpper(s)
			if !currencyCode.MatchString(s) {
				return nil
			}
		}
		if s == "" {
			return nil
		}
		return s
	}
}

func lenientLien(s string) models.LienPosition {
	s = strings.ToLower(strings.TrimSpace(s))
	if p := models.LienPosition(s); models.IsValidLienPosition(p) {
		return p
	}
	if p, ok := lienAliases[s]; ok {
		return p
	}
	return models.LienUnknown
}

func lenientFees(raw json.RawMessage) []models.Fee {
	fees := make([]models.Fee, 0)

	var items []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return fees
	}
	for _, item := range items {
		feeType := strings.TrimSpace(jsonutil.FlexibleStringValue(item["type"]))
		if feeType == "" {
			continue
		}
		fees = append(fees, models.Fee{
			Type:        feeType,
			PctOrAmount: strings.TrimSpace(jsonutil.FlexibleStringValue(item["pct_or_amount"])),
		})
	}
	return fees
}
