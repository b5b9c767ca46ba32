// Package bridge translates consent decisions into the consent-mode signal
// vocabulary downstream tag managers understand.
package bridge

import "log/slog"

// Signal is the state of a single consent-mode signal.
type Signal string

const (
	SignalGranted Signal = "granted"
	SignalDenied  Signal = "denied"
)

// Consent-mode signal names.
const (
	SignalAdStorage              = "ad_storage"
	SignalAdUserData             = "ad_user_data"
	SignalAdPersonalization      = "ad_personalization"
	SignalAnalyticsStorage       = "analytics_storage"
	SignalFunctionalityStorage   = "functionality_storage"
	SignalPersonalizationStorage = "personalization_storage"
)

// MapSignals projects granted categories onto the consent-mode signals.
// Every signal is always present in the result so a "consent update" never
// leaves a signal in its previous state by omission. Categories absent from
// the map count as denied.
func MapSignals(categories map[string]bool) map[string]Signal {
	marketing := toSignal(categories["marketing"])
	analytics := toSignal(categories["analytics"])
	preferences := toSignal(categories["preferences"])

	return map[string]Signal{
		SignalAdStorage:              marketing,
		SignalAdUserData:             marketing,
		SignalAdPersonalization:      marketing,
		SignalAnalyticsStorage:       analytics,
		SignalFunctionalityStorage:   preferences,
		SignalPersonalizationStorage: preferences,
	}
}

func toSignal(granted bool) Signal {
	if granted {
		return SignalGranted
	}
	return SignalDenied
}

// SignalSink receives consent-mode updates. Implementations deliver them to
// the page, a tag manager endpoint, or a test recorder.
type SignalSink interface {
	Update(signals map[string]Signal)
}

// Bridge publishes category decisions to a sink. A nil sink makes Publish a
// silent no-op, so hosts that disable consent mode wire nothing.
type Bridge struct {
	sink   SignalSink
	logger *slog.Logger
}

func New(sink SignalSink, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{sink: sink, logger: logger}
}

// Publish maps the categories and hands the full signal set to the sink.
func (b *Bridge) Publish(categories map[string]bool) {
	if b.sink == nil {
		return
	}

	signals := MapSignals(categories)
	b.sink.Update(signals)

	b.logger.Debug("published consent-mode signals",
		slog.String(SignalAdStorage, string(signals[SignalAdStorage])),
		slog.String(SignalAnalyticsStorage, string(signals[SignalAnalyticsStorage])),
		slog.String(SignalFunctionalityStorage, string(signals[SignalFunctionalityStorage])),
	)
}
