package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/emsight-ai/emsight-engine/pkg/logging"
	"github.com/emsight-ai/emsight-engine/pkg/models"
	"github.com/emsight-ai/emsight-engine/pkg/sql"
)

// Config holds warehouse connection configuration.
type Config struct {
	URL             string
	MaxConnections  int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	QueryTimeout    time.Duration
}

// DefaultQueryTimeout bounds a single warehouse query.
const DefaultQueryTimeout = 30 * time.Second

// PostgresExecutor runs queries against the warehouse over a pgx pool.
// Every statement passes the read-only guard before it reaches the wire.
type PostgresExecutor struct {
	pool    *pgxpool.Pool
	timeout time.Duration
	logger  *zap.Logger
}

// NewPostgresExecutor creates a connection pool and verifies it with a ping.
func NewPostgresExecutor(ctx context.Context, cfg *Config, logger *zap.Logger) (*PostgresExecutor, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse warehouse URL: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConnections
	if poolConfig.MaxConns == 0 {
		poolConfig.MaxConns = 10
	}

	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	if poolConfig.MaxConnLifetime == 0 {
		poolConfig.MaxConnLifetime = time.Hour
	}

	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	if poolConfig.MaxConnIdleTime == 0 {
		poolConfig.MaxConnIdleTime = time.Minute * 30
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create warehouse pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping warehouse: %w", err)
	}

	timeout := cfg.QueryTimeout
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}

	return &PostgresExecutor{
		pool:    pool,
		timeout: timeout,
		logger:  logger.Named("warehouse"),
	}, nil
}

// Execute runs one read-only statement and materializes the full result.
// Write statements and injection-shaped literals are rejected before any
// connection is used.
func (e *PostgresExecutor) Execute(ctx context.Context, sqlText string) (*models.ExecutionResult, error) {
	if err := sql.EnsureReadOnly(sqlText); err != nil {
		return nil, err
	}

	qctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	rows, err := e.pool.Query(qctx, sqlText)
	if err != nil {
		return nil, fmt.Errorf("warehouse query failed: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, fd := range fields {
		columns[i] = string(fd.Name)
	}

	result := &models.ExecutionResult{Columns: columns}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("warehouse row scan failed: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		result.Rows = append(result.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("warehouse result iteration failed: %w", err)
	}
	result.RowCount = len(result.Rows)

	e.logger.Info("query executed",
		zap.Int("rows", result.RowCount),
		zap.Duration("elapsed", time.Since(start)),
		zap.String("sql", logging.SanitizeQuery(sqlText)))
	return result, nil
}

// Ping verifies warehouse connectivity.
func (e *PostgresExecutor) Ping(ctx context.Context) error {
	return e.pool.Ping(ctx)
}

// Close releases the pool.
func (e *PostgresExecutor) Close() {
	e.pool.Close()
}
