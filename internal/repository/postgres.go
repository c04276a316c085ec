package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/droprelay/droprelay/internal/models"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(ctx context.Context, connString string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// AddRule inserts a rule after applying the duplicate-add policy inside a
// transaction so concurrent adds cannot slip past the conflict check.
func (r *PostgresRepository) AddRule(ctx context.Context, rule *models.Rule) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if rule.ID == "" {
		id, _ := uuid.NewV7()
		rule.ID = id.String()
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().UTC()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	existing, err := scanRules(tx.Query(ctx, `
		SELECT id, name, destination, keywords, min_value, specific_levels, created_at
		FROM forwarding_rules
		ORDER BY seq
		FOR UPDATE
	`))
	if err != nil {
		return err
	}
	if err := checkRuleConflicts(existing, rule); err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO forwarding_rules (id, name, destination, keywords, min_value, specific_levels, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rule.ID, rule.Name, rule.Destination, rule.Keywords, rule.MinValue, levelsToInt32(rule.SpecificLevels), rule.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert forwarding rule: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *PostgresRepository) RemoveRule(ctx context.Context, name string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tag, err := r.pool.Exec(ctx, `DELETE FROM forwarding_rules WHERE lower(name) = lower($1)`, name)
	if err != nil {
		return fmt.Errorf("delete forwarding rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

func (r *PostgresRepository) ListRules(ctx context.Context) ([]*models.Rule, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return scanRules(r.pool.Query(ctx, `
		SELECT id, name, destination, keywords, min_value, specific_levels, created_at
		FROM forwarding_rules
		ORDER BY seq
	`))
}

func (r *PostgresRepository) GetWatermark(ctx context.Context) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var value int64
	err := r.pool.QueryRow(ctx, `SELECT value FROM watermark WHERE id = 1`).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("query watermark: %w", err)
	}
	return uint64(value), nil
}

func (r *PostgresRepository) SetWatermark(ctx context.Context, id uint64) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, `
		INSERT INTO watermark (id, value) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET value = EXCLUDED.value
	`, int64(id))
	if err != nil {
		return fmt.Errorf("persist watermark: %w", err)
	}
	return nil
}

func scanRules(rows pgx.Rows, err error) ([]*models.Rule, error) {
	if err != nil {
		return nil, fmt.Errorf("query forwarding rules: %w", err)
	}
	defer rows.Close()

	var out []*models.Rule
	for rows.Next() {
		var rule models.Rule
		var levels []int32
		if err := rows.Scan(&rule.ID, &rule.Name, &rule.Destination, &rule.Keywords, &rule.MinValue, &levels, &rule.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan forwarding rule: %w", err)
		}
		rule.SpecificLevels = levelsFromInt32(levels)
		out = append(out, &rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate forwarding rules: %w", err)
	}
	return out, nil
}

func levelsToInt32(levels []int) []int32 {
	if levels == nil {
		return nil
	}
	out := make([]int32, len(levels))
	for i, l := range levels {
		out[i] = int32(l)
	}
	return out
}

func levelsFromInt32(levels []int32) []int {
	if levels == nil {
		return nil
	}
	out := make([]int, len(levels))
	for i, l := range levels {
		out[i] = int(l)
	}
	return out
}
