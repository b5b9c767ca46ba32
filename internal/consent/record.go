// Package consent implements the visitor consent record and the state
// machine that is its sole writer. The machine persists decisions to a
// client-held store, mirrors them to the server log without blocking, and
// drives the resource gate and consent-mode bridge.
package consent

import (
	"time"

	"github.com/google/uuid"
)

// Status is the decision kind carried by a persisted record.
type Status string

const (
	// StatusAccepted means "accept all": every known category granted.
	StatusAccepted Status = "accepted"
	// StatusRejected means "reject all": everything denied except necessary.
	StatusRejected Status = "rejected"
	// StatusCustom means per-category preferences were saved.
	StatusCustom Status = "custom"
)

// KeyNecessary is the category that can never be revoked. It is pinned true
// in every record a writer produces.
const KeyNecessary = "necessary"

// Record is the visitor-held consent state. It is created client-side on the
// first decision, superseded (not merged) by any later decision, and removed
// from the client store by an explicit revoke.
type Record struct {
	ID         string          `json:"id"`
	Categories map[string]bool `json:"categories"`
	Status     Status          `json:"status"`
	Timestamp  int64           `json:"timestamp"` // Unix milliseconds
}

// NewRecord builds a record with a fresh opaque id and the given decision.
func NewRecord(categories map[string]bool, status Status, now time.Time) *Record {
	return &Record{
		ID:         uuid.NewString(),
		Categories: categories,
		Status:     status,
		Timestamp:  now.UnixMilli(),
	}
}

// Valid reports whether the record is well-formed. Readers treat an invalid
// record exactly like an absent one.
func (r *Record) Valid() bool {
	if r == nil || r.ID == "" || r.Categories == nil {
		return false
	}
	switch r.Status {
	case StatusAccepted, StatusRejected, StatusCustom:
		return true
	default:
		return false
	}
}

// Permits reports whether the given category is granted. A nil record
// permits nothing.
func (r *Record) Permits(category string) bool {
	if r == nil {
		return false
	}
	return r.Categories[category]
}

// Clone returns a deep copy so callers can mutate selections without
// aliasing the stored record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	categories := make(map[string]bool, len(r.Categories))
	for k, v := range r.Categories {
		categories[k] = v
	}
	return &Record{ID: r.ID, Categories: categories, Status: r.Status, Timestamp: r.Timestamp}
}
