// Package gate holds third-party resources back until the visitor's consent
// record permits them, and activates them exactly once when it does.
package gate

import "sync"

// Kind is the flavor of gated resource.
type Kind string

const (
	KindScript Kind = "script"
	KindIframe Kind = "iframe"
)

type resourceState uint8

const (
	stateBlocked resourceState = iota
	stateActive
)

// Resource describes one blocked script or iframe awaiting consent.
// External resources carry Source; inline scripts carry Inline instead.
type Resource struct {
	Kind     Kind
	Category string
	Source   string
	Inline   string

	state resourceState
}

// Promote moves the resource from blocked to active. It reports whether the
// transition happened: promoting an already-active resource is a no-op, so a
// gated script can never run twice.
func (r *Resource) Promote() bool {
	if r.state == stateActive {
		return false
	}
	r.state = stateActive
	return true
}

// Active reports whether the resource has been activated.
func (r *Resource) Active() bool { return r.state == stateActive }

// ResourceSet is storage for gated resource descriptors. The gate only ever
// promotes through the set so implementations can apply side effects, like
// rewriting the HTML node a descriptor was lifted from.
type ResourceSet interface {
	// Blocked returns the descriptors still awaiting consent.
	Blocked() []*Resource
	// Promote activates a resource. It reports whether the resource
	// actually changed state.
	Promote(r *Resource) bool
}

// MemorySet is the in-memory ResourceSet. It is safe for concurrent use.
type MemorySet struct {
	mu        sync.Mutex
	resources []*Resource
}

func NewMemorySet(resources ...*Resource) *MemorySet {
	return &MemorySet{resources: resources}
}

// Add registers a resource with the set.
func (s *MemorySet) Add(r *Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources = append(s.resources, r)
}

func (s *MemorySet) Blocked() []*Resource {
	s.mu.Lock()
	defer s.mu.Unlock()

	var blocked []*Resource
	for _, r := range s.resources {
		if !r.Active() {
			blocked = append(blocked, r)
		}
	}
	return blocked
}

func (s *MemorySet) Promote(r *Resource) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return r.Promote()
}

// Resources returns every descriptor, active or not.
func (s *MemorySet) Resources() []*Resource {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Resource, len(s.resources))
	copy(out, s.resources)
	return out
}

var _ ResourceSet = (*MemorySet)(nil)
