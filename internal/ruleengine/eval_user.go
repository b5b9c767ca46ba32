package ruleengine

import "slices"

// UserEvaluator answers conditions about the visitor's login state.
type UserEvaluator struct{}

func (e *UserEvaluator) Type() string { return "user_type" }

func (e *UserEvaluator) Operators() map[string]string {
	return map[string]string{
		"is":     "is",
		"is_not": "is not",
	}
}

func (e *UserEvaluator) ValueKind() ValueKind { return ValueKindSelect }

func (e *UserEvaluator) ValueOptions() map[string]string {
	return map[string]string{
		"logged_in": "Logged-in user",
		"guest":     "Guest",
	}
}

func (e *UserEvaluator) Evaluate(operator, value string, req *RequestContext) bool {
	var match bool
	switch value {
	case "logged_in":
		match = req.LoggedIn
	case "guest":
		match = !req.LoggedIn
	}

	switch operator {
	case "is":
		return match
	case "is_not":
		return !match
	default:
		return false
	}
}

// UserRoleEvaluator answers conditions about the visitor's role keys.
// A guest has no role: "is <role>" is always false for a guest, and
// "is_not <role>" is always true.
type UserRoleEvaluator struct{}

func (e *UserRoleEvaluator) Type() string { return "user_role" }

func (e *UserRoleEvaluator) Operators() map[string]string {
	return map[string]string{
		"is":     "is",
		"is_not": "is not",
		"in":     "in list",
	}
}

func (e *UserRoleEvaluator) ValueKind() ValueKind { return ValueKindText }

func (e *UserRoleEvaluator) ValueOptions() map[string]string { return nil }

func (e *UserRoleEvaluator) Evaluate(operator, value string, req *RequestContext) bool {
	wanted := splitList(value)

	match := false
	for _, role := range req.Roles {
		if slices.Contains(wanted, role) {
			match = true
			break
		}
	}

	switch operator {
	case "is", "in":
		return match
	case "is_not":
		return !match
	default:
		return false
	}
}
