package config

import (
	"fmt"
	"strings"
	"time"
)

// ConsentConfig controls the consent cookie and the category set the service
// recognizes.
type ConsentConfig struct {
	// CookieName is the client-side cookie holding the serialized consent record.
	CookieName string `envconfig:"COOKIE_NAME" default:"mcn_consent"`

	// CookieTTL applies to accepted and customized decisions.
	CookieTTL time.Duration `envconfig:"COOKIE_TTL" default:"8760h"` // 365 days

	// CookieTTLRejected applies to rejected decisions. Deliberately shorter so
	// visitors who rejected are re-asked sooner.
	CookieTTLRejected time.Duration `envconfig:"COOKIE_TTL_REJECTED" default:"720h"` // 30 days

	// Categories is the ordered list of category keys the banner offers.
	Categories []string `envconfig:"CATEGORIES" default:"necessary,analytics,marketing,preferences"`

	// RequiredCategories are pinned true regardless of user action.
	RequiredCategories []string `envconfig:"REQUIRED_CATEGORIES" default:"necessary"`

	// DebugForceShow renders the banner even when a valid record exists.
	DebugForceShow bool `envconfig:"DEBUG_FORCE_SHOW" default:"false"`

	// LogRetention is how long audit log entries are kept before the
	// cleanup job removes them.
	LogRetention time.Duration `envconfig:"LOG_RETENTION" default:"8760h"` // 365 days
}

// Validate checks the consent configuration for consistency.
func (c *ConsentConfig) Validate() error {
	if c.CookieName == "" {
		return fmt.Errorf("consent cookie name cannot be empty")
	}
	if strings.TrimSpace(c.CookieName) != c.CookieName {
		return fmt.Errorf("consent cookie name cannot contain whitespace")
	}
	if len(c.Categories) == 0 {
		return fmt.Errorf("at least one consent category must be configured")
	}
	if c.CookieTTL <= 0 || c.CookieTTLRejected <= 0 {
		return fmt.Errorf("consent cookie TTLs must be positive")
	}
	if c.LogRetention <= 0 {
		return fmt.Errorf("consent log retention must be positive")
	}

	// Every required category must be a known category.
	known := make(map[string]struct{}, len(c.Categories))
	for _, key := range c.Categories {
		known[key] = struct{}{}
	}
	for _, key := range c.RequiredCategories {
		if _, ok := known[key]; !ok {
			return fmt.Errorf("required category %q is not in the configured category list", key)
		}
	}

	return nil
}

// SyncConfig configures the best-effort consent sync client.
type SyncConfig struct {
	// PrimaryURL is the JSON endpoint tried first.
	PrimaryURL string `envconfig:"PRIMARY_URL"`

	// FallbackURL is the form-encoded endpoint tried once after a primary
	// transport failure.
	FallbackURL string `envconfig:"FALLBACK_URL"`

	// Timeout bounds each transport attempt.
	Timeout time.Duration `envconfig:"TIMEOUT" default:"5s"`

	// NonceSecret signs the anti-forgery token on form-encoded saves. The
	// same secret must be shared by every replica verifying tokens.
	NonceSecret string `envconfig:"NONCE_SECRET"`
}

// Validate checks the sync endpoints when they are set. Both are optional:
// an unset URL disables that transport.
func (c *SyncConfig) Validate() error {
	for name, raw := range map[string]string{"primary": c.PrimaryURL, "fallback": c.FallbackURL} {
		if raw == "" {
			continue
		}
		if _, err := parseAndValidateURL(raw, []string{"http", "https"}); err != nil {
			return fmt.Errorf("invalid sync %s URL: %w", name, err)
		}
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("sync timeout must be positive")
	}
	return nil
}

// RateLimitConfig configures the per-IP save limiter.
type RateLimitConfig struct {
	// MaxPerWindow caps consent saves per client IP per window.
	MaxPerWindow int `envconfig:"MAX_PER_WINDOW" default:"5" validate:"min=1"`

	// Window is the fixed counting window.
	Window time.Duration `envconfig:"WINDOW" default:"1m" validate:"min=1s"`
}

// GeoConfig configures the injected country lookup.
type GeoConfig struct {
	// CountryHeader is the trusted edge header carrying the visitor's
	// two-letter country code (e.g. CF-IPCountry behind Cloudflare).
	CountryHeader string `envconfig:"COUNTRY_HEADER" default:"CF-IPCountry"`

	// CacheSize bounds the per-IP lookup cache.
	CacheSize int `envconfig:"CACHE_SIZE" default:"10000" validate:"min=1"`

	// CacheTTL is how long a resolved country is remembered per IP.
	CacheTTL time.Duration `envconfig:"CACHE_TTL" default:"24h"`
}
