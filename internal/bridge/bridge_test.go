package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapSignals(t *testing.T) {
	tests := []struct {
		name       string
		categories map[string]bool
		want       map[string]Signal
	}{
		{
			name: "all granted",
			categories: map[string]bool{
				"necessary": true, "analytics": true, "marketing": true, "preferences": true,
			},
			want: map[string]Signal{
				SignalAdStorage:              SignalGranted,
				SignalAdUserData:             SignalGranted,
				SignalAdPersonalization:      SignalGranted,
				SignalAnalyticsStorage:       SignalGranted,
				SignalFunctionalityStorage:   SignalGranted,
				SignalPersonalizationStorage: SignalGranted,
			},
		},
		{
			name: "all denied",
			categories: map[string]bool{
				"necessary": true, "analytics": false, "marketing": false, "preferences": false,
			},
			want: map[string]Signal{
				SignalAdStorage:              SignalDenied,
				SignalAdUserData:             SignalDenied,
				SignalAdPersonalization:      SignalDenied,
				SignalAnalyticsStorage:       SignalDenied,
				SignalFunctionalityStorage:   SignalDenied,
				SignalPersonalizationStorage: SignalDenied,
			},
		},
		{
			name:       "marketing only drives the three ad signals",
			categories: map[string]bool{"marketing": true},
			want: map[string]Signal{
				SignalAdStorage:              SignalGranted,
				SignalAdUserData:             SignalGranted,
				SignalAdPersonalization:      SignalGranted,
				SignalAnalyticsStorage:       SignalDenied,
				SignalFunctionalityStorage:   SignalDenied,
				SignalPersonalizationStorage: SignalDenied,
			},
		},
		{
			name:       "missing categories count as denied",
			categories: map[string]bool{"analytics": true},
			want: map[string]Signal{
				SignalAdStorage:              SignalDenied,
				SignalAdUserData:             SignalDenied,
				SignalAdPersonalization:      SignalDenied,
				SignalAnalyticsStorage:       SignalGranted,
				SignalFunctionalityStorage:   SignalDenied,
				SignalPersonalizationStorage: SignalDenied,
			},
		},
		{
			name:       "nil map is a full denial",
			categories: nil,
			want: map[string]Signal{
				SignalAdStorage:              SignalDenied,
				SignalAdUserData:             SignalDenied,
				SignalAdPersonalization:      SignalDenied,
				SignalAnalyticsStorage:       SignalDenied,
				SignalFunctionalityStorage:   SignalDenied,
				SignalPersonalizationStorage: SignalDenied,
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, MapSignals(tc.categories))
		})
	}
}

func TestMapSignals_Deterministic(t *testing.T) {
	in := map[string]bool{"analytics": true, "marketing": false}
	assert.Equal(t, MapSignals(in), MapSignals(in))
}

type recordingSink struct {
	updates []map[string]Signal
}

func (s *recordingSink) Update(signals map[string]Signal) {
	s.updates = append(s.updates, signals)
}

func TestBridge_Publish(t *testing.T) {
	sink := &recordingSink{}
	b := New(sink, nil)

	b.Publish(map[string]bool{"marketing": true})

	require.Len(t, sink.updates, 1)
	assert.Equal(t, SignalGranted, sink.updates[0][SignalAdStorage])
	assert.Equal(t, SignalDenied, sink.updates[0][SignalAnalyticsStorage])
}

func TestBridge_NilSinkIsNoOp(t *testing.T) {
	b := New(nil, nil)
	assert.NotPanics(t, func() {
		b.Publish(map[string]bool{"marketing": true})
	})
}
