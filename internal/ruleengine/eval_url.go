package ruleengine

import (
	"regexp"
	"strings"
)

// URLEvaluator answers pattern conditions against the request path. The path
// has its query string stripped before matching.
type URLEvaluator struct{}

func (e *URLEvaluator) Type() string { return "url" }

func (e *URLEvaluator) Operators() map[string]string {
	return map[string]string{
		"contains":     "contains",
		"not_contains": "does not contain",
		"starts_with":  "starts with",
		"ends_with":    "ends with",
		"equals":       "equals",
		"regex":        "matches regex",
	}
}

func (e *URLEvaluator) ValueKind() ValueKind { return ValueKindText }

func (e *URLEvaluator) ValueOptions() map[string]string { return nil }

func (e *URLEvaluator) Evaluate(operator, value string, req *RequestContext) bool {
	path := req.Path
	if path == "" {
		path = "/"
	}

	switch operator {
	case "contains":
		return strings.Contains(path, value)
	case "not_contains":
		return !strings.Contains(path, value)
	case "starts_with":
		return strings.HasPrefix(path, value)
	case "ends_with":
		return strings.HasSuffix(path, value)
	case "equals":
		return path == value
	case "regex":
		return matchRegex(path, value)
	default:
		return false
	}
}

// matchRegex compiles the pattern on every call; rule sets are small and the
// pattern comes from admin-authored storage, not the hot path. A malformed
// pattern is treated as non-matching, never raised.
func matchRegex(path, pattern string) bool {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(path)
}

// splitList splits a comma-separated value into trimmed, non-empty items.
// Shared by the evaluators that accept list values.
func splitList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
