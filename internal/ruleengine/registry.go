package ruleengine

// Registry is a type-keyed lookup from condition-type name to Evaluator.
// The resolver dispatches through it instead of switching on the type string,
// so adding a condition family means registering one more implementation.
//
// Registration happens at construction time; lookups afterwards are
// read-only, so no locking is needed.
type Registry struct {
	evaluators map[string]Evaluator
}

// NewRegistry creates a registry pre-populated with the built-in evaluators.
func NewRegistry() *Registry {
	r := &Registry{evaluators: make(map[string]Evaluator)}

	r.Register(&PageEvaluator{})
	r.Register(&UserEvaluator{})
	r.Register(&UserRoleEvaluator{})
	r.Register(&DeviceEvaluator{})
	r.Register(&URLEvaluator{})
	r.Register(NewGeoEvaluator())

	return r
}

// NewEmptyRegistry creates a registry with no evaluators. Tests use it to
// exercise unknown-type behavior.
func NewEmptyRegistry() *Registry {
	return &Registry{evaluators: make(map[string]Evaluator)}
}

// Register adds or replaces the evaluator for its declared type.
func (r *Registry) Register(e Evaluator) {
	r.evaluators[e.Type()] = e
}

// Get returns the evaluator for the given condition type.
func (r *Registry) Get(conditionType string) (Evaluator, bool) {
	e, ok := r.evaluators[conditionType]
	return e, ok
}

// Types returns the registered condition type keys. Used by the admin
// surface to describe the available condition families.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.evaluators))
	for t := range r.evaluators {
		types = append(types, t)
	}
	return types
}
