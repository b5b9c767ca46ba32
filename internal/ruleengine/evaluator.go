package ruleengine

// ValueKind describes how an admin surface should render the value input for
// a condition type.
type ValueKind string

const (
	// ValueKindText is a free-form text input (URL patterns, country lists).
	ValueKindText ValueKind = "text"
	// ValueKindSelect is a fixed option set (page types, device classes).
	ValueKindSelect ValueKind = "select"
)

// Evaluator answers one condition family. Implementations must treat an
// unrecognized operator as "does not match" and must never panic: a stale or
// misconfigured rule cannot be allowed to break a page render.
type Evaluator interface {
	// Type returns the condition type key this evaluator is registered under.
	Type() string

	// Operators returns the supported operator codes mapped to display labels.
	// Every code returned here must be handled by Evaluate.
	Operators() map[string]string

	// ValueKind reports the value input style for this condition type.
	ValueKind() ValueKind

	// ValueOptions returns the fixed option set for select-kind evaluators,
	// or nil for free-form text values.
	ValueOptions() map[string]string

	// Evaluate answers whether the request satisfies (operator, value).
	Evaluate(operator, value string, req *RequestContext) bool
}
