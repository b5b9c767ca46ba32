package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mediciweb/consentd/internal/ruleengine"
)

// Compile-time check to verify that PostgresRuleStore implements
// RuleRepository.
var _ RuleRepository = (*PostgresRuleStore)(nil)

// RuleRepository defines the interface for rule group persistence. A rule has
// no lifecycle of its own: groups are written and deleted whole, rules
// included.
type RuleRepository interface {
	// CreateGroup inserts the group and its rules, populating all IDs.
	CreateGroup(ctx context.Context, g *ruleengine.RuleGroup) error

	// GetGroup returns one group with its rules, or ErrNotFound.
	GetGroup(ctx context.Context, id int64) (*ruleengine.RuleGroup, error)

	// ListGroups returns every group ordered by priority, rules included.
	ListGroups(ctx context.Context) ([]*ruleengine.RuleGroup, error)

	// ListActiveGroups returns the projection the engine resolves against:
	// active groups in priority order, carrying only their active rules in
	// sort order.
	ListActiveGroups(ctx context.Context) ([]*ruleengine.RuleGroup, error)

	// UpdateGroup replaces the group's fields and its full rule set.
	UpdateGroup(ctx context.Context, g *ruleengine.RuleGroup) error

	// DeleteGroup removes the group; its rules cascade with it.
	DeleteGroup(ctx context.Context, id int64) error
}

// PostgresRuleStore is the RuleRepository backed by PostgreSQL.
type PostgresRuleStore struct {
	db *pgxpool.Pool
}

func NewPostgresRuleStore(db *pgxpool.Pool) *PostgresRuleStore {
	if db == nil {
		panic("store: database pool cannot be nil")
	}
	return &PostgresRuleStore{db: db}
}

func (s *PostgresRuleStore) CreateGroup(ctx context.Context, g *ruleengine.RuleGroup) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO rule_groups (name, operator, action, priority, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	if err := tx.QueryRow(ctx, query,
		g.Name, g.Operator, g.Action, g.Priority, g.Active,
	).Scan(&g.ID); err != nil {
		return fmt.Errorf("failed to insert rule group: %w", err)
	}

	if err := insertRules(ctx, tx, g.ID, g.Rules); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *PostgresRuleStore) GetGroup(ctx context.Context, id int64) (*ruleengine.RuleGroup, error) {
	query := `
		SELECT id, name, operator, action, priority, is_active
		FROM rule_groups
		WHERE id = $1
	`

	var g ruleengine.RuleGroup
	err := s.db.QueryRow(ctx, query, id).Scan(
		&g.ID, &g.Name, &g.Operator, &g.Action, &g.Priority, &g.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to query rule group: %w", err)
	}

	rules, err := s.rulesForGroups(ctx, []int64{g.ID}, false)
	if err != nil {
		return nil, err
	}
	g.Rules = rules[g.ID]

	return &g, nil
}

func (s *PostgresRuleStore) ListGroups(ctx context.Context) ([]*ruleengine.RuleGroup, error) {
	return s.listGroups(ctx, false)
}

func (s *PostgresRuleStore) ListActiveGroups(ctx context.Context) ([]*ruleengine.RuleGroup, error) {
	return s.listGroups(ctx, true)
}

func (s *PostgresRuleStore) listGroups(ctx context.Context, activeOnly bool) ([]*ruleengine.RuleGroup, error) {
	query := `
		SELECT id, name, operator, action, priority, is_active
		FROM rule_groups
	`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY priority ASC, id ASC`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list rule groups: %w", err)
	}
	defer rows.Close()

	var groups []*ruleengine.RuleGroup
	var ids []int64
	for rows.Next() {
		var g ruleengine.RuleGroup
		if err := rows.Scan(&g.ID, &g.Name, &g.Operator, &g.Action, &g.Priority, &g.Active); err != nil {
			return nil, fmt.Errorf("failed to scan rule group row: %w", err)
		}
		groups = append(groups, &g)
		ids = append(ids, g.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	if len(groups) == 0 {
		return []*ruleengine.RuleGroup{}, nil
	}

	rulesByGroup, err := s.rulesForGroups(ctx, ids, activeOnly)
	if err != nil {
		return nil, err
	}
	for _, g := range groups {
		g.Rules = rulesByGroup[g.ID]
	}

	return groups, nil
}

func (s *PostgresRuleStore) UpdateGroup(ctx context.Context, g *ruleengine.RuleGroup) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE rule_groups
		SET name = $2, operator = $3, action = $4, priority = $5, is_active = $6, updated_at = now()
		WHERE id = $1
	`
	tag, err := tx.Exec(ctx, query, g.ID, g.Name, g.Operator, g.Action, g.Priority, g.Active)
	if err != nil {
		return fmt.Errorf("failed to update rule group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	// Replace the rule set wholesale; rules have no identity of their own.
	if _, err := tx.Exec(ctx, `DELETE FROM rules WHERE group_id = $1`, g.ID); err != nil {
		return fmt.Errorf("failed to clear group rules: %w", err)
	}
	if err := insertRules(ctx, tx, g.ID, g.Rules); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (s *PostgresRuleStore) DeleteGroup(ctx context.Context, id int64) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM rule_groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rule group: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func insertRules(ctx context.Context, tx pgx.Tx, groupID int64, rules []ruleengine.Rule) error {
	query := `
		INSERT INTO rules (group_id, rule_type, operator, value, is_active, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	for i := range rules {
		r := &rules[i]
		r.GroupID = groupID
		if err := tx.QueryRow(ctx, query,
			groupID, r.Type, r.Operator, r.Value, r.Active, r.SortOrder,
		).Scan(&r.ID); err != nil {
			return fmt.Errorf("failed to insert rule: %w", err)
		}
	}
	return nil
}

func (s *PostgresRuleStore) rulesForGroups(ctx context.Context, groupIDs []int64, activeOnly bool) (map[int64][]ruleengine.Rule, error) {
	query := `
		SELECT id, group_id, rule_type, operator, value, is_active, sort_order
		FROM rules
		WHERE group_id = ANY($1)
	`
	if activeOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY group_id ASC, sort_order ASC, id ASC`

	rows, err := s.db.Query(ctx, query, groupIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	byGroup := make(map[int64][]ruleengine.Rule, len(groupIDs))
	for rows.Next() {
		var r ruleengine.Rule
		if err := rows.Scan(&r.ID, &r.GroupID, &r.Type, &r.Operator, &r.Value, &r.Active, &r.SortOrder); err != nil {
			return nil, fmt.Errorf("failed to scan rule row: %w", err)
		}
		byGroup[r.GroupID] = append(byGroup[r.GroupID], r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return byGroup, nil
}
