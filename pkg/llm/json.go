package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// thinkTagPattern matches a leading <think>...</think> block some models emit.
var thinkTagPattern = regexp.MustCompile(`(?s)^\s*<think>.*?</think>\s*`)

// ExtractJSONObject returns the first balanced JSON object in a model response,
// skipping reasoning blocks, markdown fences and surrounding prose.
func ExtractJSONObject(response string) (string, error) {
	cleaned := thinkTagPattern.ReplaceAllString(response, "")

	for offset := 0; offset < len(cleaned); {
		start := strings.IndexByte(cleaned[offset:], '{')
		if start < 0 {
			break
		}
		start += offset

		candidate, ok := balancedObject(cleaned[start:])
		if !ok {
			break
		}
		if json.Valid([]byte(candidate)) {
			return candidate, nil
		}
		offset = start + 1
	}

	return "", NewError(ErrorTypeResponse, "no valid JSON object found in response", false, nil)
}

// balancedObject returns the prefix of s (which starts with '{') up to its
// matching close brace, honouring string literals and escapes.
func balancedObject(s string) (string, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]

		if escaped {
			escaped = false
			continue
		}
		if c == '\\' && inString {
			escaped = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}

	return "", false
}

// ParseJSONResponse extracts the JSON object from a response and unmarshals it into T.
func ParseJSONResponse[T any](response string) (T, error) {
	var result T

	jsonStr, err := ExtractJSONObject(response)
	if err != nil {
		return result, err
	}

	if err := json.Unmarshal([]byte(jsonStr), &result); err != nil {
		return result, NewError(ErrorTypeResponse, "response JSON does not match the expected shape", false, fmt.Errorf("unmarshal JSON: %w", err))
	}

	return result, nil
}
