// Package api implements the consent REST surface. It handles HTTP routing,
// request decoding, validation, and response formatting.
package api

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/mediciweb/consentd/internal/consent"
	"github.com/mediciweb/consentd/internal/ruleengine"
)

// consentIDRegex keeps consent ids to the uuid alphabet. Anything else is
// rejected rather than sanitized: the id is client-supplied.
var consentIDRegex = regexp.MustCompile(`^[a-fA-F0-9-]{1,64}$`)

// SaveConsentRequest defines the payload for recording a consent decision.
type SaveConsentRequest struct {
	// ConsentID is the stable visitor identifier. Empty means the server
	// mints a fresh one.
	ConsentID string `json:"consent_id"`

	// Categories maps category keys to granted/denied.
	Categories map[string]bool `json:"categories"`

	// Status is the decision kind: accepted, rejected or custom.
	Status string `json:"status"`

	// PageURL is the page the decision was made on. Optional.
	PageURL string `json:"page_url,omitempty"`
}

// Sanitize cleans up input data so "dirty" values never reach the domain
// logic.
func (r *SaveConsentRequest) Sanitize() {
	r.ConsentID = strings.TrimSpace(r.ConsentID)
	r.Status = strings.ToLower(strings.TrimSpace(r.Status))
	r.PageURL = strings.TrimSpace(r.PageURL)
}

// Validate checks the request against business rules. It returns a
// structured *ErrorResponse if validation fails, or nil if valid.
func (r *SaveConsentRequest) Validate() *ErrorResponse {
	if r.ConsentID != "" && !consentIDRegex.MatchString(r.ConsentID) {
		return &ErrorResponse{
			Code:    "ERR_INVALID_INPUT",
			Message: "consent_id must be a hexadecimal identifier",
		}
	}

	switch consent.Status(r.Status) {
	case consent.StatusAccepted, consent.StatusRejected, consent.StatusCustom:
	default:
		return &ErrorResponse{
			Code:    "ERR_INVALID_INPUT",
			Message: "status must be one of: accepted, rejected, custom",
		}
	}

	if len(r.Categories) == 0 {
		return &ErrorResponse{
			Code:    "ERR_INVALID_INPUT",
			Message: "categories cannot be empty",
		}
	}

	return nil
}

// SaveConsentResponse is returned after a decision is recorded.
type SaveConsentResponse struct {
	Success    bool            `json:"success"`
	ConsentID  string          `json:"consent_id"`
	Categories map[string]bool `json:"categories"`
	Status     string          `json:"status"`
	Message    string          `json:"message,omitempty"`
}

// ConsentRecordResponse is the stored consent state for a lookup.
type ConsentRecordResponse struct {
	ConsentID  string          `json:"consent_id"`
	Categories map[string]bool `json:"categories"`
	Status     string          `json:"status"`
	GeoCountry string          `json:"geo_country,omitempty"`
	CreatedAt  string          `json:"created_at"`
}

// DecisionResponse is the banner display verdict for a request.
type DecisionResponse struct {
	Action         string `json:"action"`
	MatchedGroupID int64  `json:"matched_group_id,omitempty"`
}

// RuleGroupRequest defines the payload for creating or replacing a rule
// group.
type RuleGroupRequest struct {
	Name     string        `json:"name"`
	Operator string        `json:"operator"`
	Action   string        `json:"action"`
	Priority int           `json:"priority"`
	Active   bool          `json:"is_active"`
	Rules    []RuleRequest `json:"rules"`
}

// RuleRequest is one condition inside a group payload.
type RuleRequest struct {
	Type      string `json:"rule_type"`
	Operator  string `json:"operator"`
	Value     string `json:"value"`
	Active    bool   `json:"is_active"`
	SortOrder int    `json:"sort_order"`
}

// Sanitize normalizes the combinator and action casing and trims free-text
// fields.
func (r *RuleGroupRequest) Sanitize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Operator = strings.ToUpper(strings.TrimSpace(r.Operator))
	r.Action = strings.ToLower(strings.TrimSpace(r.Action))
	for i := range r.Rules {
		r.Rules[i].Type = strings.TrimSpace(r.Rules[i].Type)
		r.Rules[i].Operator = strings.TrimSpace(r.Rules[i].Operator)
		r.Rules[i].Value = strings.TrimSpace(r.Rules[i].Value)
	}
}

// Validate checks the group payload. Unknown rule types are accepted here:
// the engine treats them as non-matching, and rejecting them at write time
// would break forward compatibility with newer condition types.
func (r *RuleGroupRequest) Validate() *ErrorResponse {
	if r.Name == "" {
		return &ErrorResponse{
			Code:    "ERR_INVALID_INPUT",
			Message: "name is required",
		}
	}
	if len(r.Name) > 255 {
		return &ErrorResponse{
			Code:    "ERR_INVALID_INPUT",
			Message: "name must be less than 255 characters",
		}
	}

	switch ruleengine.Combinator(r.Operator) {
	case ruleengine.CombinatorAnd, ruleengine.CombinatorOr:
	default:
		return &ErrorResponse{
			Code:    "ERR_INVALID_INPUT",
			Message: "operator must be AND or OR",
		}
	}

	switch ruleengine.Action(r.Action) {
	case ruleengine.ActionShow, ruleengine.ActionHide:
	default:
		return &ErrorResponse{
			Code:    "ERR_INVALID_INPUT",
			Message: "action must be show or hide",
		}
	}

	for i, rule := range r.Rules {
		if rule.Type == "" || rule.Operator == "" {
			return &ErrorResponse{
				Code:    "ERR_INVALID_INPUT",
				Message: "every rule needs a rule_type and an operator",
				Details: []ErrorDetail{{Field: "rules", Issue: indexIssue(i)}},
			}
		}
	}

	return nil
}

// ToRuleGroup maps the payload onto the domain model.
func (r *RuleGroupRequest) ToRuleGroup() *ruleengine.RuleGroup {
	g := &ruleengine.RuleGroup{
		Name:     r.Name,
		Operator: ruleengine.Combinator(r.Operator),
		Action:   ruleengine.Action(r.Action),
		Priority: r.Priority,
		Active:   r.Active,
	}
	for _, rule := range r.Rules {
		g.Rules = append(g.Rules, ruleengine.Rule{
			Type:      rule.Type,
			Operator:  rule.Operator,
			Value:     rule.Value,
			Active:    rule.Active,
			SortOrder: rule.SortOrder,
		})
	}
	return g
}

func indexIssue(i int) string {
	return "rule at index " + strconv.Itoa(i) + " is incomplete"
}

// ErrorResponse represents a standard structured API error.
type ErrorResponse struct {
	// Code is a machine-readable error code (e.g., "ERR_INVALID_INPUT").
	Code string `json:"code"`

	// Message is a human-readable description of the error.
	Message string `json:"message"`

	// Details provides optional granular validation errors.
	Details []ErrorDetail `json:"details,omitempty"`
}

// ErrorDetail provides context about specific field validation failures.
type ErrorDetail struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}
