package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mediciweb/consentd/internal/ruleengine"
)

var _ RuleRepository = (*MemoryRuleStore)(nil)

// MemoryRuleStore is the in-process RuleRepository for tests and single-node
// deployments that run without PostgreSQL. It honors the same contract as
// the Postgres store, including cascade deletes and the active-ordered
// projection.
type MemoryRuleStore struct {
	mu     sync.RWMutex
	groups map[int64]*ruleengine.RuleGroup
	nextID int64
}

func NewMemoryRuleStore() *MemoryRuleStore {
	return &MemoryRuleStore{
		groups: make(map[int64]*ruleengine.RuleGroup),
		nextID: 1,
	}
}

func (s *MemoryRuleStore) CreateGroup(_ context.Context, g *ruleengine.RuleGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	g.ID = s.nextID
	s.nextID++
	for i := range g.Rules {
		g.Rules[i].ID = s.nextID
		g.Rules[i].GroupID = g.ID
		s.nextID++
	}

	s.groups[g.ID] = cloneGroup(g)
	return nil
}

func (s *MemoryRuleStore) GetGroup(_ context.Context, id int64) (*ruleengine.RuleGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneGroup(g), nil
}

func (s *MemoryRuleStore) ListGroups(_ context.Context) ([]*ruleengine.RuleGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot(false), nil
}

func (s *MemoryRuleStore) ListActiveGroups(_ context.Context) ([]*ruleengine.RuleGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot(true), nil
}

func (s *MemoryRuleStore) UpdateGroup(_ context.Context, g *ruleengine.RuleGroup) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.groups[g.ID]; !ok {
		return ErrNotFound
	}

	for i := range g.Rules {
		g.Rules[i].GroupID = g.ID
		if g.Rules[i].ID == 0 {
			g.Rules[i].ID = s.nextID
			s.nextID++
		}
	}

	s.groups[g.ID] = cloneGroup(g)
	return nil
}

func (s *MemoryRuleStore) DeleteGroup(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.groups[id]; !ok {
		return ErrNotFound
	}
	delete(s.groups, id)
	return nil
}

// snapshot returns cloned groups in priority order. With activeOnly set it
// matches the Postgres projection: inactive groups are dropped entirely and
// active groups carry only their active rules.
func (s *MemoryRuleStore) snapshot(activeOnly bool) []*ruleengine.RuleGroup {
	out := make([]*ruleengine.RuleGroup, 0, len(s.groups))
	for _, g := range s.groups {
		if activeOnly && !g.Active {
			continue
		}
		clone := cloneGroup(g)
		if activeOnly {
			active := clone.Rules[:0]
			for _, r := range clone.Rules {
				if r.Active {
					active = append(active, r)
				}
			}
			clone.Rules = active
		}
		out = append(out, clone)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func cloneGroup(g *ruleengine.RuleGroup) *ruleengine.RuleGroup {
	clone := *g
	clone.Rules = make([]ruleengine.Rule, len(g.Rules))
	copy(clone.Rules, g.Rules)
	sort.SliceStable(clone.Rules, func(i, j int) bool {
		return clone.Rules[i].SortOrder < clone.Rules[j].SortOrder
	})
	return &clone
}

var _ ConsentLogRepository = (*MemoryConsentLogStore)(nil)

// MemoryConsentLogStore is the in-process ConsentLogRepository counterpart
// of MemoryRuleStore. Entries live only as long as the process does.
type MemoryConsentLogStore struct {
	mu      sync.Mutex
	entries []*LogEntry
	nextID  int64
}

func NewMemoryConsentLogStore() *MemoryConsentLogStore {
	return &MemoryConsentLogStore{}
}

func (s *MemoryConsentLogStore) SaveLog(_ context.Context, e *LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	e.ID = s.nextID
	e.CreatedAt = time.Now()

	clone := *e
	s.entries = append(s.entries, &clone)
	return nil
}

func (s *MemoryConsentLogStore) LatestByConsentID(_ context.Context, consentID string) (*LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].ConsentID == consentID {
			clone := *s.entries[i]
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryConsentLogStore) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	var removed int64
	for _, e := range s.entries {
		if e.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return removed, nil
}
