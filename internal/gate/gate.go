package gate

import (
	"log/slog"

	"github.com/mediciweb/consentd/internal/consent"
	"github.com/mediciweb/consentd/internal/observability"
)

// Gate activates the blocked resources a consent record permits. Resources
// whose category the record does not grant, including categories the record
// has never heard of, stay blocked.
type Gate struct {
	set    ResourceSet
	logger *slog.Logger
}

func New(set ResourceSet, logger *slog.Logger) *Gate {
	if set == nil {
		panic("gate: resource set cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Gate{
		set:    set,
		logger: logger,
	}
}

// Activate promotes every blocked resource whose category the record grants.
func (g *Gate) Activate(rec *consent.Record) {
	g.activate(rec, func(string) bool { return true })
}

// ActivateCategory promotes only the blocked resources of a single category,
// still subject to the record granting it. The result is identical to a full
// Activate restricted to that category.
func (g *Gate) ActivateCategory(rec *consent.Record, category string) {
	g.activate(rec, func(c string) bool { return c == category })
}

func (g *Gate) activate(rec *consent.Record, wanted func(category string) bool) {
	if rec == nil {
		return
	}

	promoted := 0
	for _, r := range g.set.Blocked() {
		if !wanted(r.Category) || !rec.Permits(r.Category) {
			continue
		}
		if g.set.Promote(r) {
			promoted++
			observability.GateActivationsTotal.WithLabelValues(string(r.Kind)).Inc()
		}
	}

	if promoted > 0 {
		g.logger.Debug("activated gated resources",
			slog.Int("count", promoted),
			slog.String("consent_id", rec.ID),
		)
	}
}
