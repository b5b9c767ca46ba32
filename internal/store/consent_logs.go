// Package store provides the Data Access Layer (Repository) for the consentd
// application. It handles all direct interactions with the PostgreSQL
// database using the pgx driver.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mediciweb/consentd/internal/consent"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("store: not found")

// Compile-time check to verify that PostgresConsentLogStore implements
// ConsentLogRepository.
var _ ConsentLogRepository = (*PostgresConsentLogStore)(nil)

// LogEntry is one server-side consent log row. The cookie record stays the
// source of truth; the log exists for compliance audits and analytics.
type LogEntry struct {
	ID         int64           `db:"id"`
	ConsentID  string          `db:"consent_id"`
	Categories map[string]bool `db:"categories"`
	Status     consent.Status  `db:"status"`
	PageURL    string          `db:"page_url"`
	IPAddress  string          `db:"ip_address"`
	UserAgent  string          `db:"user_agent"`
	GeoCountry string          `db:"geo_country"`
	CreatedAt  time.Time       `db:"created_at"`
}

// ConsentLogRepository defines the interface for consent log persistence.
type ConsentLogRepository interface {
	// SaveLog appends an entry and populates its ID and CreatedAt.
	SaveLog(ctx context.Context, e *LogEntry) error

	// LatestByConsentID returns the newest entry for a consent id, or
	// ErrNotFound.
	LatestByConsentID(ctx context.Context, consentID string) (*LogEntry, error)

	// DeleteOlderThan removes entries created before the cutoff and
	// returns how many rows went away. Retention cleanup runs this
	// periodically.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// PostgresConsentLogStore is the ConsentLogRepository backed by PostgreSQL.
type PostgresConsentLogStore struct {
	db *pgxpool.Pool
}

func NewPostgresConsentLogStore(db *pgxpool.Pool) *PostgresConsentLogStore {
	if db == nil {
		panic("store: database pool cannot be nil")
	}
	return &PostgresConsentLogStore{db: db}
}

func (s *PostgresConsentLogStore) SaveLog(ctx context.Context, e *LogEntry) error {
	query := `
		INSERT INTO consent_logs (consent_id, categories, status, page_url, ip_address, user_agent, geo_country)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	err := s.db.QueryRow(ctx, query,
		e.ConsentID,
		e.Categories,
		e.Status,
		e.PageURL,
		e.IPAddress,
		e.UserAgent,
		e.GeoCountry,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert consent log: %w", err)
	}

	return nil
}

func (s *PostgresConsentLogStore) LatestByConsentID(ctx context.Context, consentID string) (*LogEntry, error) {
	query := `
		SELECT id, consent_id, categories, status, page_url, ip_address, user_agent, geo_country, created_at
		FROM consent_logs
		WHERE consent_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	var e LogEntry
	err := s.db.QueryRow(ctx, query, consentID).Scan(
		&e.ID,
		&e.ConsentID,
		&e.Categories,
		&e.Status,
		&e.PageURL,
		&e.IPAddress,
		&e.UserAgent,
		&e.GeoCountry,
		&e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query consent log: %w", err)
	}

	return &e, nil
}

func (s *PostgresConsentLogStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM consent_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired consent logs: %w", err)
	}
	return tag.RowsAffected(), nil
}
