// Package syncer mirrors consent decisions to the server-side consent log.
// The mirror is best-effort: the cookie record is the source of truth and a
// lost sync is acceptable.
package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mediciweb/consentd/internal/consent"
	"github.com/mediciweb/consentd/internal/observability"
)

// formAction identifies the save operation on the form-encoded endpoint.
const formAction = "consent_save"

// ErrRateLimited is returned when the log endpoint answered 429. It is a
// final verdict: retrying on the fallback would just double the load the
// limiter exists to shed.
var ErrRateLimited = errors.New("syncer: rate limited")

// NonceFunc supplies the anti-forgery token attached to fallback form posts.
type NonceFunc func() string

// Config holds the sync endpoints and the per-attempt timeout.
type Config struct {
	// PrimaryURL receives JSON posts. Required.
	PrimaryURL string
	// FallbackURL receives one form-encoded retry after a primary
	// failure. Empty disables the fallback.
	FallbackURL string
	// Timeout bounds each HTTP attempt.
	Timeout time.Duration
}

// Client posts consent decisions to the log endpoint: JSON to the primary,
// and on failure at most one form-encoded retry against the fallback.
type Client struct {
	httpClient *http.Client
	config     Config
	nonce      NonceFunc
	logger     *slog.Logger
}

func New(cfg Config, nonce NonceFunc, logger *slog.Logger) *Client {
	if cfg.PrimaryURL == "" {
		panic("syncer: primary URL cannot be empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if nonce == nil {
		nonce = func() string { return "" }
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
		nonce:      nonce,
		logger:     logger,
	}
}

type savePayload struct {
	ConsentID  string          `json:"consent_id"`
	Categories map[string]bool `json:"categories"`
	Status     consent.Status  `json:"status"`
}

// Send posts the decision to the primary endpoint and, when that fails for
// any reason other than rate limiting, makes exactly one fallback attempt.
func (c *Client) Send(ctx context.Context, consentID string, categories map[string]bool, status consent.Status) error {
	err := c.sendJSON(ctx, savePayload{
		ConsentID:  consentID,
		Categories: categories,
		Status:     status,
	})
	observability.SyncTotal.WithLabelValues("primary", outcomeLabel(err)).Inc()
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrRateLimited) {
		// The server said stop; a fallback would be a retry in disguise.
		return err
	}
	if c.config.FallbackURL == "" {
		return err
	}

	c.logger.Warn("primary consent sync failed, trying form fallback",
		slog.String("consent_id", consentID),
		slog.String("error", err.Error()),
	)

	fbErr := c.sendForm(ctx, consentID, categories, status)
	observability.SyncTotal.WithLabelValues("fallback", outcomeLabel(fbErr)).Inc()
	if fbErr != nil {
		return fmt.Errorf("primary: %w; fallback: %v", err, fbErr)
	}
	return nil
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	default:
		return "fail"
	}
}

// SendAsync runs Send on its own goroutine, detached from the caller's
// cancellation. Failures are logged and dropped.
func (c *Client) SendAsync(ctx context.Context, consentID string, categories map[string]bool, status consent.Status) {
	detached := context.WithoutCancel(ctx)

	go func() {
		sendCtx, cancel := context.WithTimeout(detached, 2*c.config.Timeout)
		defer cancel()

		if err := c.Send(sendCtx, consentID, categories, status); err != nil {
			c.logger.Warn("consent sync dropped",
				slog.String("consent_id", consentID),
				slog.String("error", err.Error()),
			)
		}
	}()
}

func (c *Client) sendJSON(ctx context.Context, payload savePayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.PrimaryURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req)
}

func (c *Client) sendForm(ctx context.Context, consentID string, categories map[string]bool, status consent.Status) error {
	form := url.Values{}
	form.Set("action", formAction)
	form.Set("nonce", c.nonce())
	form.Set("consent_id", consentID)
	form.Set("status", string(status))
	for key, granted := range categories {
		val := "0"
		if granted {
			val = "1"
		}
		form.Set(fmt.Sprintf("categories[%s]", key), val)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.FallbackURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return c.do(req)
}

func (c *Client) do(req *http.Request) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("syncer: endpoint returned %d", resp.StatusCode)
	}
	return nil
}
