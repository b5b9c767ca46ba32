package observability

import "context"

// Checker is a dependency that can report whether it is usable right now.
// The readiness probe fans out over every registered checker; implementations
// must honor the context deadline and be safe for concurrent use.
type Checker interface {
	// Name identifies the dependency in probe output ("postgres", "redis").
	Name() string
	// Check returns nil when the dependency is reachable and serving.
	Check(ctx context.Context) error
}
