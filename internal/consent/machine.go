package consent

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// State is the machine's position in the consent lifecycle.
type State string

const (
	// StateUnset: no record exists, or the stored one was malformed.
	StateUnset State = "unset"
	// StatePresented: the banner is live and no decision has been made yet.
	StatePresented State = "presented"
	// StateAccepted, StateRejected, StateCustomized are the terminal-ish
	// decision states; any of them can be superseded by a new decision.
	StateAccepted   State = "accepted"
	StateRejected   State = "rejected"
	StateCustomized State = "customized"
)

// ErrInvalidTransition is returned when an operation is not legal from the
// machine's current state.
var ErrInvalidTransition = errors.New("consent: invalid state transition")

// Store is the client-side persistence for the consent record. The HTTP
// cookie implementation lives in the api package; tests use an in-memory one.
type Store interface {
	// Load returns the stored record, or nil when absent/malformed.
	Load() *Record
	// Save persists the record with the given time-to-live.
	Save(rec *Record, ttl time.Duration) error
	// Clear removes the record from the client store.
	Clear() error
}

// Syncer mirrors a decision to the server-side log. Implementations must not
// block the caller; loss is acceptable.
type Syncer interface {
	SendAsync(ctx context.Context, consentID string, categories map[string]bool, status Status)
}

// Gate activates blocked resources permitted by a record.
type Gate interface {
	Activate(rec *Record)
	ActivateCategory(rec *Record, category string)
}

// Bridge publishes consent-mode signals downstream.
type Bridge interface {
	Publish(categories map[string]bool)
}

// Machine governs the legal transitions of a visitor's consent state and is
// the sole writer of the consent record.
//
// Every transition into a decision state runs, in order: persist the record,
// fire the syncer without awaiting it, run the resource gate, run the
// bridge. Gating never waits on sync.
type Machine struct {
	catalog *Catalog
	store   Store
	syncer  Syncer
	gate    Gate
	bridge  Bridge
	logger  *slog.Logger
	now     func() time.Time

	acceptTTL time.Duration
	rejectTTL time.Duration

	state  State
	record *Record
}

// MachineOptions bundles the machine's dependencies. Syncer, Gate and Bridge
// are optional; a nil one is a silent no-op.
type MachineOptions struct {
	Catalog   *Catalog
	Store     Store
	Syncer    Syncer
	Gate      Gate
	Bridge    Bridge
	Logger    *slog.Logger
	AcceptTTL time.Duration
	RejectTTL time.Duration
	Now       func() time.Time
}

// NewMachine constructs a machine and replays the stored record to seed the
// starting state: a valid record lands in its decision state, anything else
// is Unset.
func NewMachine(opts MachineOptions) *Machine {
	if opts.Catalog == nil {
		panic("consent: catalog cannot be nil")
	}
	if opts.Store == nil {
		panic("consent: store cannot be nil")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	m := &Machine{
		catalog:   opts.Catalog,
		store:     opts.Store,
		syncer:    opts.Syncer,
		gate:      opts.Gate,
		bridge:    opts.Bridge,
		logger:    opts.Logger,
		now:       opts.Now,
		acceptTTL: opts.AcceptTTL,
		rejectTTL: opts.RejectTTL,
		state:     StateUnset,
	}

	if rec := opts.Store.Load(); rec.Valid() {
		m.record = rec
		m.state = stateForStatus(rec.Status)
	}

	return m
}

// State returns the machine's current state.
func (m *Machine) State() State { return m.state }

// Record returns the active record, or nil in Unset/Presented.
func (m *Machine) Record() *Record { return m.record }

// Present moves Unset to Presented: the resolver said "show" and no valid
// record exists, so the banner goes live.
func (m *Machine) Present() error {
	if m.state != StateUnset {
		return ErrInvalidTransition
	}
	m.state = StatePresented
	return nil
}

// AcceptAll grants every known category, including non-required ones.
func (m *Machine) AcceptAll(ctx context.Context) (*Record, error) {
	return m.decide(ctx, m.catalog.AllGranted(), StatusAccepted)
}

// RejectAll denies every category except necessary, which stays true.
func (m *Machine) RejectAll(ctx context.Context) (*Record, error) {
	return m.decide(ctx, m.catalog.AllDenied(), StatusRejected)
}

// Customize saves per-category preferences. The necessary category is forced
// true regardless of what the toggles said.
func (m *Machine) Customize(ctx context.Context, selections map[string]bool) (*Record, error) {
	return m.decide(ctx, m.catalog.Apply(selections), StatusCustom)
}

// AcceptCategory grants a single category without a full re-decision. It
// mutates the existing record in place (or synthesizes an all-false base
// when none exists) and re-enters the decision state it came from; it never
// revisits Presented.
func (m *Machine) AcceptCategory(ctx context.Context, category string) (*Record, error) {
	if !m.catalog.Knows(category) {
		// Fail closed: an unknown category tag grants nothing.
		m.logger.Warn("ignoring grant for unknown category", slog.String("category", category))
		return m.record, nil
	}

	var categories map[string]bool
	status := StatusCustom
	if m.record.Valid() {
		next := m.record.Clone()
		next.Categories[category] = true
		categories = next.Categories
		status = m.record.Status
	} else {
		categories = m.catalog.AllDenied()
		categories[category] = true
	}

	return m.transition(ctx, categories, status, func(rec *Record) {
		m.gate.ActivateCategory(rec, category)
	})
}

// Revoke clears the active record from the client store and re-enters
// Presented. The server-side log is deliberately untouched.
func (m *Machine) Revoke() error {
	switch m.state {
	case StateAccepted, StateRejected, StateCustomized:
	default:
		return ErrInvalidTransition
	}

	if err := m.store.Clear(); err != nil {
		return err
	}

	m.record = nil
	m.state = StatePresented
	return nil
}

// decide supersedes the current record with a new decision and runs the
// transition side effects in their contractual order, with a full gate pass.
func (m *Machine) decide(ctx context.Context, categories map[string]bool, status Status) (*Record, error) {
	return m.transition(ctx, categories, status, func(rec *Record) {
		m.gate.Activate(rec)
	})
}

// transition is the shared tail of every decision: persist, sync, gate,
// bridge — in that order.
func (m *Machine) transition(ctx context.Context, categories map[string]bool, status Status, activate func(*Record)) (*Record, error) {
	// Necessary consent cannot be revoked, whatever the path here was.
	if _, ok := categories[KeyNecessary]; ok {
		categories[KeyNecessary] = true
	}

	rec := NewRecord(categories, status, m.now())
	if m.record.Valid() {
		// Supersede: the id is stable across re-decisions of one visitor.
		rec.ID = m.record.ID
	}

	// 1. Persist. A store failure aborts the transition: the record is the
	// authoritative state and must not diverge from what we act on.
	ttl := m.acceptTTL
	if status == StatusRejected {
		ttl = m.rejectTTL
	}
	if err := m.store.Save(rec, ttl); err != nil {
		return nil, err
	}

	m.record = rec
	m.state = stateForStatus(status)

	// 2. Mirror server-side, fire-and-forget.
	if m.syncer != nil {
		m.syncer.SendAsync(ctx, rec.ID, rec.Categories, rec.Status)
	}

	// 3. Unblock permitted resources.
	if m.gate != nil {
		activate(rec)
	}

	// 4. Push consent-mode signals.
	if m.bridge != nil {
		m.bridge.Publish(rec.Categories)
	}

	return rec, nil
}

func stateForStatus(s Status) State {
	switch s {
	case StatusAccepted:
		return StateAccepted
	case StatusRejected:
		return StateRejected
	default:
		return StateCustomized
	}
}
