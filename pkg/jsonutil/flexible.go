// Package jsonutil decodes loosely typed JSON values produced by LLMs.
package jsonutil

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

func isNull(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}

// FlexibleStringValue converts a json.RawMessage to a string, handling cases where
// LLMs return numbers or booleans instead of strings. Returns empty string for null/empty.
func FlexibleStringValue(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}

	var strVal string
	if err := json.Unmarshal(raw, &strVal); err == nil {
		return strVal
	}

	var numVal float64
	if err := json.Unmarshal(raw, &numVal); err == nil {
		if numVal == float64(int64(numVal)) {
			return fmt.Sprintf("%d", int64(numVal))
		}
		return fmt.Sprintf("%g", numVal)
	}

	var boolVal bool
	if err := json.Unmarshal(raw, &boolVal); err == nil {
		return fmt.Sprintf("%t", boolVal)
	}

	return string(raw)
}

var leadingNumber = regexp.MustCompile(`^-?\d+(?:\.\d+)?`)

var magnitudes = map[string]float64{
	"k":        1e3,
	"thousand": 1e3,
	"m":        1e6,
	"mm":       1e6,
	"million":  1e6,
	"bn":       1e9,
	"b":        1e9,
	"billion":  1e9,
}

// FlexibleFloat reads a number that may arrive as a JSON number or as text such
// as "$1,250,000", "AUD 1.2m" or "9.5%". Null, unparseable and non-finite
// values return nil.
func FlexibleFloat(raw json.RawMessage) *float64 {
	if isNull(raw) {
		return nil
	}

	var num float64
	if err := json.Unmarshal(raw, &num); err == nil {
		return finite(num)
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	return parseNumberText(s)
}

func parseNumberText(s string) *float64 {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, code := range []string{"aud", "usd", "nzd", "eur", "gbp"} {
		s = strings.TrimPrefix(s, code)
		s = strings.TrimSuffix(s, code)
	}
	s = strings.NewReplacer("$", "", ",", "", "%", "", "_", "").Replace(s)
	s = strings.TrimSpace(s)

	m := leadingNumber.FindString(s)
	if m == "" {
		return nil
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return nil
	}

	suffix := strings.TrimSpace(s[len(m):])
	if word, _, _ := strings.Cut(suffix, " "); word != "" {
		if mult, ok := magnitudes[word]; ok {
			v *= mult
		}
	}
	return finite(v)
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// FlexibleInt reads a whole number that may arrive as a float (24.0) or as
// text ("24 months"). Fractional values round to the nearest integer.
func FlexibleInt(raw json.RawMessage) *int {
	f := FlexibleFloat(raw)
	if f == nil || math.Abs(*f) > math.MaxInt32 {
		return nil
	}
	v := int(math.Round(*f))
	return &v
}

// FlexibleStringList reads a list of strings. A single string becomes a one
// element list; non-string elements are converted with FlexibleStringValue and
// blank entries are dropped. The result is never nil.
func FlexibleStringList(raw json.RawMessage) []string {
	out := make([]string, 0)
	if isNull(raw) {
		return out
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		if s := strings.TrimSpace(FlexibleStringValue(raw)); s != "" {
			out = append(out, s)
		}
		return out
	}

	for _, item := range items {
		if s := strings.TrimSpace(FlexibleStringValue(item)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
