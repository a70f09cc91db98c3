package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found — using system environment variables")
	}

	connStr := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		dbGetEnv("DB_USER", "gateway_user"),
		dbGetEnv("DB_PASSWORD", "gateway_password"),
		dbGetEnv("DB_HOST", "localhost"),
		dbGetEnv("DB_PORT", "5432"),
		dbGetEnv("DB_NAME", "vehicle_sense"),
	)

	ctx := context.Background()

	fmt.Println("Connecting to Postgres...")
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		log.Fatalf("Connection failed: %v\n\nMake sure Postgres is running:\n  docker-compose up -d postgres", err)
	}
	defer conn.Close(ctx)
	fmt.Println("✓ Connected")

	step1_audit_table(ctx, conn)
	step2_indexes(ctx, conn)
	step3_verify(ctx, conn)

	fmt.Println("\n✅ Database initialised successfully")
	fmt.Println("   Run next: go run ./cmd/gateway serve")
}

// ─────────────────────────────────────────────────────────────
// Step 1 — prediction_audit table
// ─────────────────────────────────────────────────────────────
func step1_audit_table(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 1: prediction_audit table ──────────────")

	execOrFatal(ctx, conn, `
		CREATE TABLE IF NOT EXISTS prediction_audit (

			-- One row per completed inference call; rows are never updated
			id          UUID         PRIMARY KEY,

			-- accident | maintenance | battery
			category    TEXT         NOT NULL,

			-- The validated reading that was sent to the predictor
			input       JSONB        NOT NULL,

			-- Decision extracted from the predictor response (bool or number)
			decision    JSONB        NOT NULL,

			-- Full predictor response body, kept for audit replay
			raw         JSONB,

			-- Gateway clock at record creation, always UTC
			created_at  TIMESTAMPTZ  NOT NULL,

			CONSTRAINT chk_category CHECK (
				category IN ('accident', 'maintenance', 'battery')
			)
		);
	`, "prediction_audit table created")
}

// ─────────────────────────────────────────────────────────────
// Step 2 — Indexes
// ─────────────────────────────────────────────────────────────
func step2_indexes(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 2: Indexes ─────────────────────────────")

	indexes := []struct {
		name string
		sql  string
		why  string
	}{
		{
			name: "idx_audit_category_time",
			sql: `CREATE INDEX IF NOT EXISTS idx_audit_category_time
				  ON prediction_audit (category, created_at DESC);`,
			why: "query: audit records for one category in a time range",
		},
		{
			name: "idx_audit_time",
			sql: `CREATE INDEX IF NOT EXISTS idx_audit_time
				  ON prediction_audit (created_at DESC);`,
			why: "query: all recent audit records",
		},
	}

	for _, idx := range indexes {
		execOrFatal(ctx, conn, idx.sql,
			fmt.Sprintf("%-30s ← %s", idx.name, idx.why),
		)
	}
}

// ─────────────────────────────────────────────────────────────
// Step 3 — Verify everything was created
// ─────────────────────────────────────────────────────────────
func step3_verify(ctx context.Context, conn *pgx.Conn) {
	fmt.Println("\n── Step 3: Verification ────────────────────────")

	var exists bool
	err := conn.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_name = 'prediction_audit'
		)
	`).Scan(&exists)
	if err != nil || !exists {
		log.Fatalf("Table prediction_audit was not created: %v", err)
	}
	fmt.Println("  ✓ table: prediction_audit")

	var indexCount int
	err = conn.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM pg_indexes
		WHERE tablename = 'prediction_audit'
		AND indexname LIKE 'idx_%'
	`).Scan(&indexCount)
	if err != nil {
		log.Fatalf("Index check failed: %v", err)
	}
	fmt.Printf("  ✓ indexes created: %d\n", indexCount)
}

// ─────────────────────────────────────────────────────────────
// Helpers
// ─────────────────────────────────────────────────────────────

// execOrFatal runs a SQL statement and prints result or exits on error
func execOrFatal(ctx context.Context, conn *pgx.Conn, sql, label string) {
	_, err := conn.Exec(ctx, sql)
	if err != nil {
		log.Fatalf("FAILED — %s\nError: %v\nSQL: %s", label, err, sql)
	}
	fmt.Printf("  ✓ %s\n", label)
}

func dbGetEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
