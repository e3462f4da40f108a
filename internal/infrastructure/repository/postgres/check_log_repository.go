package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/cosyhq/regcheck/internal/core/domain"
)

type CheckLogRepository struct {
	db *sql.DB
}

func NewCheckLogRepository(db *sql.DB) *CheckLogRepository {
	return &CheckLogRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *CheckLogRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS check_logs (
	id TEXT PRIMARY KEY,
	market TEXT NOT NULL,
	domain TEXT NOT NULL,
	overall_risk TEXT NOT NULL,
	finding_count INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_check_logs_created_at ON check_logs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_check_logs_market_domain ON check_logs(market, domain);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *CheckLogRepository) Create(ctx context.Context, record *domain.CheckRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO check_logs (id, market, domain, overall_risk, finding_count, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO NOTHING
`, record.ID, record.Market, record.Domain, string(record.OverallRisk), record.FindingCount, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert check log: %w", err)
	}
	return nil
}

func (r *CheckLogRepository) ListRecent(ctx context.Context, limit int) ([]domain.CheckRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT id, market, domain, overall_risk, finding_count, created_at
FROM check_logs
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list check logs: %w", err)
	}
	defer rows.Close()

	out := make([]domain.CheckRecord, 0)
	for rows.Next() {
		var record domain.CheckRecord
		var risk string
		if err := rows.Scan(
			&record.ID,
			&record.Market,
			&record.Domain,
			&risk,
			&record.FindingCount,
			&record.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan check log: %w", err)
		}
		record.OverallRisk = domain.RiskLevel(risk)
		out = append(out, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate check logs: %w", err)
	}
	return out, nil
}
