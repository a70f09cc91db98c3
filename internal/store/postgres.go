package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"

	"vehicle-sense/gateway/internal/config"
	"vehicle-sense/gateway/internal/domain"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, cfg *config.Config) (*PostgresStore, error) {
	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?pool_max_conns=%d",
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBName,
		cfg.DBMaxConns,
	)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to create db pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// InitSchema creates the audit table and its query index.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS prediction_audit (
			id         UUID        PRIMARY KEY,
			category   TEXT        NOT NULL,
			input      JSONB       NOT NULL,
			decision   JSONB       NOT NULL,
			raw        JSONB,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_audit_category_time
			ON prediction_audit (category, created_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("init schema failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, rec *domain.AuditRecord) error {
	input, err := json.Marshal(rec.Input)
	if err != nil {
		return fmt.Errorf("marshal input: %w", err)
	}
	decision, err := json.Marshal(rec.Decision)
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO prediction_audit (id, category, input, decision, raw, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rec.ID, string(rec.Category), input, decision, []byte(rec.Raw), rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("audit insert failed: %w", err)
	}
	return nil
}

func (s *PostgresStore) Query(ctx context.Context, q AuditQuery) ([]domain.AuditRecord, error) {
	sql := `SELECT id, category, input, decision, raw, created_at FROM prediction_audit`
	var (
		where []string
		args  []any
	)
	if q.Category != "" {
		args = append(args, string(q.Category))
		where = append(where, "category = $"+strconv.Itoa(len(args)))
	}
	if !q.Since.IsZero() {
		args = append(args, q.Since)
		where = append(where, "created_at >= $"+strconv.Itoa(len(args)))
	}
	if !q.Until.IsZero() {
		args = append(args, q.Until)
		where = append(where, "created_at <= $"+strconv.Itoa(len(args)))
	}
	for i, w := range where {
		if i == 0 {
			sql += " WHERE " + w
		} else {
			sql += " AND " + w
		}
	}
	args = append(args, q.limit())
	sql += " ORDER BY created_at DESC LIMIT $" + strconv.Itoa(len(args))

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("audit query failed: %w", err)
	}
	defer rows.Close()

	var records []domain.AuditRecord
	for rows.Next() {
		var (
			rec      domain.AuditRecord
			category string
			input    []byte
			decision []byte
			raw      []byte
		)
		if err := rows.Scan(&rec.ID, &category, &input, &decision, &raw, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("audit scan failed: %w", err)
		}
		rec.Category = domain.Category(category)
		if err := json.Unmarshal(input, &rec.Input); err != nil {
			return nil, fmt.Errorf("audit input decode failed: %w", err)
		}
		if err := json.Unmarshal(decision, &rec.Decision); err != nil {
			return nil, fmt.Errorf("audit decision decode failed: %w", err)
		}
		rec.Raw = raw
		records = append(records, rec)
	}
	return records, rows.Err()
}
