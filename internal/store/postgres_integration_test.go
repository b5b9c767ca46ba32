//go:build integration

// Package store_test contains integration tests for the Data Access Layer.
// We use the '_test' suffix to enforce black-box testing, ensuring we only
// access the exported API of the store package.
package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mediciweb/consentd/internal/consent"
	"github.com/mediciweb/consentd/internal/ruleengine"
	"github.com/mediciweb/consentd/internal/store"
	"github.com/mediciweb/consentd/internal/testsupport"
)

// TestPostgresStores_Integration spins up a real PostgreSQL container once
// and runs the repository scenarios against it sequentially.
func TestPostgresStores_Integration(t *testing.T) {
	ctx := context.Background()

	pgContainer, err := testsupport.StartPostgresContainer(ctx, "../../migrations")
	require.NoError(t, err, "failed to start postgres container")
	defer func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}()

	logs := store.NewPostgresConsentLogStore(pgContainer.DB)
	rules := store.NewPostgresRuleStore(pgContainer.DB)

	t.Run("SaveLog_And_LatestByConsentID", func(t *testing.T) {
		entry := &store.LogEntry{
			ConsentID:  "11111111-aaaa-bbbb-cccc-000000000001",
			Categories: map[string]bool{"necessary": true, "analytics": false},
			Status:     consent.StatusRejected,
			PageURL:    "https://example.com/blog/post",
			IPAddress:  "203.0.113.7",
			UserAgent:  "Mozilla/5.0",
			GeoCountry: "DE",
		}

		require.NoError(t, logs.SaveLog(ctx, entry))
		assert.NotZero(t, entry.ID)
		assert.False(t, entry.CreatedAt.IsZero())

		// A newer decision for the same id supersedes the old one.
		require.NoError(t, logs.SaveLog(ctx, &store.LogEntry{
			ConsentID:  entry.ConsentID,
			Categories: map[string]bool{"necessary": true, "analytics": true},
			Status:     consent.StatusAccepted,
		}))

		got, err := logs.LatestByConsentID(ctx, entry.ConsentID)
		require.NoError(t, err)
		assert.Equal(t, consent.StatusAccepted, got.Status)
		assert.True(t, got.Categories["analytics"])
	})

	t.Run("LatestByConsentID_NotFound", func(t *testing.T) {
		_, err := logs.LatestByConsentID(ctx, "no-such-id")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("DeleteOlderThan_Retention", func(t *testing.T) {
		require.NoError(t, logs.SaveLog(ctx, &store.LogEntry{
			ConsentID:  "retention-check",
			Categories: map[string]bool{"necessary": true},
			Status:     consent.StatusAccepted,
		}))

		// Nothing is older than a cutoff in the past.
		deleted, err := logs.DeleteOlderThan(ctx, time.Now().Add(-time.Hour))
		require.NoError(t, err)
		assert.Zero(t, deleted)

		// Everything is older than a cutoff in the future.
		deleted, err = logs.DeleteOlderThan(ctx, time.Now().Add(time.Hour))
		require.NoError(t, err)
		assert.Greater(t, deleted, int64(0))

		_, err = logs.LatestByConsentID(ctx, "retention-check")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("RuleGroup_CRUD", func(t *testing.T) {
		g := &ruleengine.RuleGroup{
			Name:     "hide for mobile blog readers",
			Operator: ruleengine.CombinatorAnd,
			Action:   ruleengine.ActionHide,
			Priority: 10,
			Active:   true,
			Rules: []ruleengine.Rule{
				{Type: "device", Operator: "is", Value: "mobile", Active: true, SortOrder: 0},
				{Type: "url", Operator: "starts_with", Value: "/blog", Active: true, SortOrder: 1},
			},
		}

		require.NoError(t, rules.CreateGroup(ctx, g))
		assert.NotZero(t, g.ID)
		for _, r := range g.Rules {
			assert.NotZero(t, r.ID)
			assert.Equal(t, g.ID, r.GroupID)
		}

		got, err := rules.GetGroup(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, g.Name, got.Name)
		require.Len(t, got.Rules, 2)
		assert.Equal(t, "device", got.Rules[0].Type)

		got.Name = "hide for eu mobile readers"
		got.Rules = []ruleengine.Rule{
			{Type: "geo", Operator: "is", Value: "EU", Active: true, SortOrder: 0},
		}
		require.NoError(t, rules.UpdateGroup(ctx, got))

		updated, err := rules.GetGroup(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, "hide for eu mobile readers", updated.Name)
		require.Len(t, updated.Rules, 1)
		assert.Equal(t, "geo", updated.Rules[0].Type)

		require.NoError(t, rules.DeleteGroup(ctx, g.ID))
		_, err = rules.GetGroup(ctx, g.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("ListActiveGroups_Projection", func(t *testing.T) {
		active := &ruleengine.RuleGroup{
			Name: "active", Operator: ruleengine.CombinatorOr,
			Action: ruleengine.ActionShow, Priority: 5, Active: true,
			Rules: []ruleengine.Rule{
				{Type: "geo", Operator: "is", Value: "EU", Active: true, SortOrder: 1},
				{Type: "device", Operator: "is", Value: "desktop", Active: false, SortOrder: 0},
			},
		}
		inactive := &ruleengine.RuleGroup{
			Name: "inactive", Operator: ruleengine.CombinatorAnd,
			Action: ruleengine.ActionHide, Priority: 1, Active: false,
		}
		require.NoError(t, rules.CreateGroup(ctx, active))
		require.NoError(t, rules.CreateGroup(ctx, inactive))
		defer func() {
			_ = rules.DeleteGroup(ctx, active.ID)
			_ = rules.DeleteGroup(ctx, inactive.ID)
		}()

		groups, err := rules.ListActiveGroups(ctx)
		require.NoError(t, err)

		require.Len(t, groups, 1)
		assert.Equal(t, "active", groups[0].Name)
		// Only the active rule survives the engine projection.
		require.Len(t, groups[0].Rules, 1)
		assert.Equal(t, "geo", groups[0].Rules[0].Type)

		all, err := rules.ListGroups(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		// Priority ascending: the inactive group has the lower number.
		assert.Equal(t, "inactive", all[0].Name)
	})

	t.Run("DeleteGroup_CascadesToRules", func(t *testing.T) {
		g := &ruleengine.RuleGroup{
			Name: "cascade", Operator: ruleengine.CombinatorAnd,
			Action: ruleengine.ActionShow, Priority: 10, Active: true,
			Rules: []ruleengine.Rule{
				{Type: "page_type", Operator: "is", Value: "front_page", Active: true},
			},
		}
		require.NoError(t, rules.CreateGroup(ctx, g))
		require.NoError(t, rules.DeleteGroup(ctx, g.ID))

		var count int
		err := pgContainer.DB.QueryRow(ctx,
			`SELECT count(*) FROM rules WHERE group_id = $1`, g.ID).Scan(&count)
		require.NoError(t, err)
		assert.Zero(t, count, "rules must cascade with their group")
	})
}
