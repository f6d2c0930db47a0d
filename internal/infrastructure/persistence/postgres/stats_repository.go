package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yambati03/touille/internal/infrastructure/config"
	"github.com/yambati03/touille/internal/ports/outbound"
)

// StatsRepository serves read-only aggregates over pgx, bypassing the
// ORM for the operator CLI and ops endpoints.
type StatsRepository struct {
	pool *pgxpool.Pool
}

// NewPgxPool opens a pgx connection pool alongside the GORM connection
func NewPgxPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Database,
		cfg.Database.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse pool config: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxOpenConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// NewStatsRepository creates a new stats repository
func NewStatsRepository(pool *pgxpool.Pool) outbound.StatsRepository {
	return &StatsRepository{pool: pool}
}

// CountRecipes returns the total number of stored recipes
func (r *StatsRepository) CountRecipes(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM recipes`).Scan(&count)
	return count, err
}

// CountUsers returns the total number of registered accounts
func (r *StatsRepository) CountUsers(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM "user"`).Scan(&count)
	return count, err
}

// RecipesPerUser returns recipe counts grouped by owner, busiest first
func (r *StatsRepository) RecipesPerUser(ctx context.Context, limit int) ([]outbound.UserRecipeCount, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT user_id, COUNT(*) AS n
		 FROM recipes
		 GROUP BY user_id
		 ORDER BY n DESC
		 LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []outbound.UserRecipeCount
	for rows.Next() {
		var c outbound.UserRecipeCount
		if err := rows.Scan(&c.UserID, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}

	return counts, rows.Err()
}

// RecentRecipes counts recipes created since the given time
func (r *StatsRepository) RecentRecipes(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM recipes WHERE created_at >= $1`, since).Scan(&count)
	return count, err
}
