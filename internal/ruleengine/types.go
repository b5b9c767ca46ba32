// Package ruleengine implements the conditional consent rule engine.
// Heterogeneous condition types (page kind, login state, role, device, URL,
// geography) are evaluated uniformly through a type-keyed evaluator registry,
// combined per group with AND/OR semantics, and reduced to a single
// show/hide decision under priority ordering.
package ruleengine

// Combinator joins the rules of a group.
type Combinator string

const (
	// CombinatorAnd requires every rule in the group to match.
	CombinatorAnd Combinator = "AND"
	// CombinatorOr requires at least one rule in the group to match.
	CombinatorOr Combinator = "OR"
)

// Action is the outcome a matching group imposes on the banner.
type Action string

const (
	// ActionShow renders the consent banner.
	ActionShow Action = "show"
	// ActionHide suppresses the consent banner.
	ActionHide Action = "hide"
)

// Rule is one atomic condition: a type resolved through the registry, an
// evaluator-specific operator, and an evaluator-interpreted value (a literal,
// a comma-joined list, or an enum key).
type Rule struct {
	ID        int64  `json:"id"`
	GroupID   int64  `json:"group_id"`
	Type      string `json:"rule_type"`
	Operator  string `json:"operator"`
	Value     string `json:"value"`
	SortOrder int    `json:"sort_order"`
	Active    bool   `json:"is_active"`
}

// RuleGroup is a named, prioritized collection of rules joined by a single
// combinator. A rule has no lifecycle of its own: it is owned by exactly one
// group and created/deleted with it.
type RuleGroup struct {
	ID       int64      `json:"id"`
	Name     string     `json:"name"`
	Operator Combinator `json:"operator"`
	Action   Action     `json:"action"`
	Priority int        `json:"priority"`
	Active   bool       `json:"is_active"`
	Rules    []Rule     `json:"rules"`
}

// Decision is the result of a resolution pass. MatchedGroupID is zero when no
// group matched and the default applied.
type Decision struct {
	Action         Action `json:"action"`
	MatchedGroupID int64  `json:"matched_group_id,omitempty"`
}

// RequestContext carries everything the built-in evaluators can ask about the
// inbound request. It is built once per request and read-only during a
// resolution pass.
type RequestContext struct {
	// PageType is the resolved page classification (front_page, single,
	// archive, ...). Empty when the caller supplied no hint.
	PageType string

	// LoggedIn reports whether the visitor has an authenticated session.
	LoggedIn bool

	// Roles holds the visitor's role keys. Empty for guests.
	Roles []string

	// UserAgent is the raw User-Agent header.
	UserAgent string

	// Path is the request path with the query string stripped.
	Path string

	// Country is the visitor's two-letter country code, upper-cased, or
	// empty when the location could not be determined.
	Country string
}
