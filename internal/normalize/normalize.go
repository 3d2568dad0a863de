// Package normalize coerces raw tool output into structured values.
//
// The data-access subprocess does not guarantee one serialization dialect:
// depending on the tool and the shape of the result, replies arrive as
// strict JSON, as Python-literal notation (single quotes, True/False/None),
// or as a mix of the two. Normalize tries an ordered chain of parsers and
// always terminates with a usable value.
package normalize

import (
	"encoding/json"
	"strings"
)

const (
	// RawTextKey marks a value that could not be parsed; its entry holds
	// the original text.
	RawTextKey = "raw_text"
	// ParseErrorKey is present alongside RawTextKey when every parser
	// strategy failed (it is absent for empty input).
	ParseErrorKey = "parsing_error"

	parseErrorMessage = "could not parse as JSON or Python literal"
)

// A parser is one strategy in the chain: it either produces a structured
// value for the whole input or reports why it could not.
type parser func(text string) (any, error)

var parsers = []parser{
	parseStrictJSON,
	parsePythonLiteral,
	parseRewrittenJSON,
}

// Normalize parses raw tool output into a structured value. Parsed numbers
// are always float64 and booleans/nulls follow encoding/json conventions,
// regardless of which strategy succeeded. When no strategy succeeds the
// original text is returned wrapped under RawTextKey with ParseErrorKey
// set; callers must check IsParseFailure before treating the result as
// structured data. Normalize never panics and never returns an error.
func Normalize(raw string) any {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{RawTextKey: raw}
	}

	for _, parse := range parsers {
		if v, err := parse(raw); err == nil {
			return v
		}
	}

	return map[string]any{
		RawTextKey:    raw,
		ParseErrorKey: parseErrorMessage,
	}
}

// IsParseFailure reports whether v is the wrapper Normalize returns when
// the input could not be parsed (including the empty-input wrapper).
func IsParseFailure(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	_, ok = m[RawTextKey]
	return ok
}

// parseStrictJSON accepts proper JSON only: double-quoted strings and
// lowercase true/false/null.
func parseStrictJSON(text string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, err
	}
	return v, nil
}

// parseRewrittenJSON converts single quotes to double quotes and Python
// boolean/null spellings to their JSON forms, then retries strict JSON.
// It is a blunt textual rewrite and is deliberately last in the chain:
// it mangles strings that themselves contain quotes, but it recovers the
// common case of Python-style output with no nested quoting.
func parseRewrittenJSON(text string) (any, error) {
	rewritten := strings.ReplaceAll(text, "'", `"`)
	rewritten = strings.ReplaceAll(rewritten, "True", "true")
	rewritten = strings.ReplaceAll(rewritten, "False", "false")
	rewritten = strings.ReplaceAll(rewritten, "None", "null")
	return parseStrictJSON(rewritten)
}
