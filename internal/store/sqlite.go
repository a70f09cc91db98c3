package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"vehicle-sense/gateway/internal/domain"
)

// Fixed-width timestamp layout: created_at is TEXT, so range filters rely
// on lexicographic order matching chronological order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore is the audit store for single-node deployments where running
// Postgres is not worth it. Schema is created on open.
type SQLiteStore struct {
	conn *sql.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL", path)

	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single writer
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	s := &SQLiteStore{conn: conn}
	if err := s.initialize(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS prediction_audit (
		id         TEXT PRIMARY KEY,
		category   TEXT NOT NULL,
		input      TEXT NOT NULL,
		decision   TEXT NOT NULL,
		raw        TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_audit_category ON prediction_audit(category);
	CREATE INDEX IF NOT EXISTS idx_audit_created_at ON prediction_audit(created_at);
	`
	_, err := s.conn.Exec(schema)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.conn.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.conn.PingContext(ctx)
}

func (s *SQLiteStore) Append(ctx context.Context, rec *domain.AuditRecord) error {
	input, err := json.Marshal(rec.Input)
	if err != nil {
		return fmt.Errorf("marshal input: %w", err)
	}
	decision, err := json.Marshal(rec.Decision)
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}

	_, err = s.conn.ExecContext(ctx, `
		INSERT INTO prediction_audit (id, category, input, decision, raw, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.ID, string(rec.Category), string(input), string(decision), string(rec.Raw),
		rec.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("audit insert failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Query(ctx context.Context, q AuditQuery) ([]domain.AuditRecord, error) {
	query := `SELECT id, category, input, decision, raw, created_at FROM prediction_audit`
	var (
		where []string
		args  []any
	)
	if q.Category != "" {
		where = append(where, "category = ?")
		args = append(args, string(q.Category))
	}
	if !q.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, q.Since.UTC().Format(timeLayout))
	}
	if !q.Until.IsZero() {
		where = append(where, "created_at <= ?")
		args = append(args, q.Until.UTC().Format(timeLayout))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	args = append(args, q.limit())

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("audit query failed: %w", err)
	}
	defer rows.Close()

	var records []domain.AuditRecord
	for rows.Next() {
		var (
			rec       domain.AuditRecord
			category  string
			input     string
			decision  string
			raw       sql.NullString
			createdAt string
		)
		if err := rows.Scan(&rec.ID, &category, &input, &decision, &raw, &createdAt); err != nil {
			return nil, fmt.Errorf("audit scan failed: %w", err)
		}
		rec.Category = domain.Category(category)
		if err := json.Unmarshal([]byte(input), &rec.Input); err != nil {
			return nil, fmt.Errorf("audit input decode failed: %w", err)
		}
		if err := json.Unmarshal([]byte(decision), &rec.Decision); err != nil {
			return nil, fmt.Errorf("audit decision decode failed: %w", err)
		}
		if raw.Valid {
			rec.Raw = json.RawMessage(raw.String)
		}
		if rec.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, fmt.Errorf("audit timestamp decode failed: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
