package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/droprelay/droprelay/internal/models"
)

// setupTestDatabase creates a PostgreSQL testcontainer and runs migrations
func setupTestDatabase(t *testing.T) *PostgresRepository {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("droprelay_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err, "start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, runMigrations(connStr))

	repo, err := NewPostgresRepository(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	return repo
}

func runMigrations(connStr string) error {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	migrationPath := filepath.Join("..", "..", "migrations", "001_init.up.sql")
	migrationSQL, err := os.ReadFile(migrationPath)
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	if _, err := db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("failed to execute migration: %w", err)
	}
	return nil
}

func TestPostgres_RuleLifecycle(t *testing.T) {
	repo := setupTestDatabase(t)
	ctx := context.Background()

	rule := &models.Rule{
		Name:           "big drops",
		Destination:    "loot-feed",
		Keywords:       []string{"vorkath", "zulrah"},
		MinValue:       1_000_000,
		SpecificLevels: []int{99, 120},
	}
	require.NoError(t, repo.AddRule(ctx, rule))
	assert.NotEmpty(t, rule.ID, "AddRule assigns an ID")

	rules, err := repo.ListRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	got := rules[0]
	assert.Equal(t, rule.ID, got.ID)
	assert.Equal(t, "big drops", got.Name)
	assert.Equal(t, []string{"vorkath", "zulrah"}, got.Keywords)
	assert.Equal(t, int64(1_000_000), got.MinValue)
	assert.Equal(t, []int{99, 120}, got.SpecificLevels)
	assert.False(t, got.CreatedAt.IsZero())

	require.NoError(t, repo.RemoveRule(ctx, "BIG DROPS"))
	assert.ErrorIs(t, repo.RemoveRule(ctx, "big drops"), ErrRuleNotFound)
}

func TestPostgres_NilLevelsRoundTrip(t *testing.T) {
	repo := setupTestDatabase(t)
	ctx := context.Background()

	require.NoError(t, repo.AddRule(ctx, testRule("any level", "dest", "vorkath")))

	rules, err := repo.ListRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	// nil means "any level"; it must not come back as an empty set
	assert.Nil(t, rules[0].SpecificLevels)
}

func TestPostgres_DuplicatePolicy(t *testing.T) {
	repo := setupTestDatabase(t)
	ctx := context.Background()

	require.NoError(t, repo.AddRule(ctx, testRule("one", "dest-a", "vorkath")))

	assert.ErrorIs(t, repo.AddRule(ctx, testRule("ONE", "dest-b", "zulrah")), ErrRuleExists)
	assert.ErrorIs(t, repo.AddRule(ctx, testRule("two", "dest-a", "vorkath")), ErrRuleConflict)
	assert.NoError(t, repo.AddRule(ctx, testRule("three", "dest-b", "vorkath")))
}

func TestPostgres_ListPreservesInsertionOrder(t *testing.T) {
	repo := setupTestDatabase(t)
	ctx := context.Background()

	names := []string{"alpha", "bravo", "charlie", "delta"}
	for i, name := range names {
		require.NoError(t, repo.AddRule(ctx, testRule(name, fmt.Sprintf("dest-%d", i), name)))
	}

	rules, err := repo.ListRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, len(names))
	for i, name := range names {
		assert.Equal(t, name, rules[i].Name)
	}
}

func TestPostgres_Watermark(t *testing.T) {
	repo := setupTestDatabase(t)
	ctx := context.Background()

	id, err := repo.GetWatermark(ctx)
	require.NoError(t, err)
	assert.Zero(t, id)

	require.NoError(t, repo.SetWatermark(ctx, 100))
	require.NoError(t, repo.SetWatermark(ctx, 105))

	id, err = repo.GetWatermark(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(105), id)
}
