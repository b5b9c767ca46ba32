package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConsentConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		want    func(t *testing.T, cfg *Config)
		wantErr bool
	}{
		{
			name: "Should accept a custom category list with its required subset",
			envVars: map[string]string{
				"CONSENTD_CONSENT_CATEGORIES":          "necessary,analytics",
				"CONSENTD_CONSENT_REQUIRED_CATEGORIES": "necessary",
			},
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, []string{"necessary", "analytics"}, cfg.Consent.Categories)
			},
			wantErr: false,
		},
		{
			name: "Should fail validation when a required category is not in the list",
			envVars: map[string]string{
				"CONSENTD_CONSENT_CATEGORIES":          "necessary,analytics",
				"CONSENTD_CONSENT_REQUIRED_CATEGORIES": "tracking",
			},
			wantErr: true,
		},
		{
			name:    "Should fail validation on empty cookie name",
			envVars: map[string]string{"CONSENTD_CONSENT_COOKIE_NAME": ""},
			wantErr: true,
		},
		{
			name:    "Should fail validation on cookie name with whitespace",
			envVars: map[string]string{"CONSENTD_CONSENT_COOKIE_NAME": "my cookie"},
			wantErr: true,
		},
		{
			name:    "Should fail validation on non-positive cookie TTL",
			envVars: map[string]string{"CONSENTD_CONSENT_COOKIE_TTL": "0s"},
			wantErr: true,
		},
		{
			name:    "Should fail validation on non-positive rejected cookie TTL",
			envVars: map[string]string{"CONSENTD_CONSENT_COOKIE_TTL_REJECTED": "-1h"},
			wantErr: true,
		},
		{
			name:    "Should fail validation on non-positive log retention",
			envVars: map[string]string{"CONSENTD_CONSENT_LOG_RETENTION": "0s"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			cfg, err := Load()

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			if tt.want != nil {
				tt.want(t, cfg)
			}
		})
	}
}

func TestSyncConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		want    func(t *testing.T, cfg *Config)
		wantErr bool
	}{
		{
			name:    "Should pass with no sync endpoints configured",
			envVars: nil,
			want: func(t *testing.T, cfg *Config) {
				assert.Empty(t, cfg.Sync.PrimaryURL)
				assert.Empty(t, cfg.Sync.FallbackURL)
				assert.Equal(t, 5*time.Second, cfg.Sync.Timeout)
			},
			wantErr: false,
		},
		{
			name: "Should pass with valid primary and fallback URLs",
			envVars: map[string]string{
				"CONSENTD_SYNC_PRIMARY_URL":  "https://consent.example.com/api/v1/consent",
				"CONSENTD_SYNC_FALLBACK_URL": "https://consent.example.com/consent",
			},
			want: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "https://consent.example.com/api/v1/consent", cfg.Sync.PrimaryURL)
			},
			wantErr: false,
		},
		{
			name:    "Should fail validation on a non-HTTP primary URL",
			envVars: map[string]string{"CONSENTD_SYNC_PRIMARY_URL": "ftp://consent.example.com/save"},
			wantErr: true,
		},
		{
			name:    "Should fail validation on a fallback URL without a host",
			envVars: map[string]string{"CONSENTD_SYNC_FALLBACK_URL": "https:///consent"},
			wantErr: true,
		},
		{
			name:    "Should fail validation on non-positive sync timeout",
			envVars: map[string]string{"CONSENTD_SYNC_TIMEOUT": "0s"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			cfg, err := Load()

			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			if tt.want != nil {
				tt.want(t, cfg)
			}
		})
	}
}
