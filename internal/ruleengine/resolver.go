package ruleengine

import (
	"log/slog"
	"sort"
)

// Resolver evaluates the active rule groups against a request and reduces
// them to one show/hide decision.
//
// Policy: groups are consulted ascending by priority (ties broken by id for
// determinism); the first matching group wins and its action is final; when
// no group matches the default is show — groups are an override mechanism
// layered on top of the ordinary banner behavior, not a replacement for it.
type Resolver struct {
	registry *Registry
	logger   *slog.Logger
}

// NewResolver creates a Resolver. If logger is nil, it defaults to slog.Default().
func NewResolver(registry *Registry, logger *slog.Logger) *Resolver {
	if registry == nil {
		panic("ruleengine: registry cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{registry: registry, logger: logger}
}

// Resolve runs the decision procedure over the provided groups.
func (r *Resolver) Resolve(groups []RuleGroup, req *RequestContext) Decision {
	active := make([]RuleGroup, 0, len(groups))
	for _, g := range groups {
		if g.Active {
			active = append(active, g)
		}
	}

	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Priority != active[j].Priority {
			return active[i].Priority < active[j].Priority
		}
		return active[i].ID < active[j].ID
	})

	for _, g := range active {
		if r.groupMatches(&g, req) {
			r.logger.Debug("rule group matched",
				slog.Int64("group_id", g.ID),
				slog.String("group_name", g.Name),
				slog.String("action", string(g.Action)),
			)
			return Decision{Action: g.Action, MatchedGroupID: g.ID}
		}
	}

	return Decision{Action: ActionShow}
}

// groupMatches combines the group's rule results under its combinator.
// Inactive rules are skipped. An effectively empty rule list is vacuously
// true under AND and vacuously false under OR; the resolver tests pin this
// down as deliberate policy.
func (r *Resolver) groupMatches(g *RuleGroup, req *RequestContext) bool {
	if g.Operator == CombinatorOr {
		for i := range g.Rules {
			if !g.Rules[i].Active {
				continue
			}
			if r.evaluateRule(&g.Rules[i], req) {
				return true
			}
		}
		return false
	}

	// AND is the default combinator, matching the storage schema.
	for i := range g.Rules {
		if !g.Rules[i].Active {
			continue
		}
		if !r.evaluateRule(&g.Rules[i], req) {
			return false
		}
	}
	return true
}

// evaluateRule dispatches one rule through the registry. A rule whose type
// has no registered evaluator never matches; it must not abort evaluation of
// the rest of the group.
func (r *Resolver) evaluateRule(rule *Rule, req *RequestContext) bool {
	evaluator, ok := r.registry.Get(rule.Type)
	if !ok {
		r.logger.Warn("skipping rule with unknown condition type",
			slog.Int64("rule_id", rule.ID),
			slog.String("rule_type", rule.Type),
		)
		return false
	}
	return evaluator.Evaluate(rule.Operator, rule.Value, req)
}
