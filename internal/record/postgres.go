package record

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/zombor/reimbursement-tracker/internal/expense"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
	id TEXT PRIMARY KEY,
	invoice_number TEXT NOT NULL DEFAULT '',
	merchant TEXT NOT NULL DEFAULT '',
	amount NUMERIC(14,2) NOT NULL,
	issue_date DATE,
	cost_center TEXT NOT NULL,
	file_name TEXT NOT NULL DEFAULT '',
	receipt_key TEXT NOT NULL DEFAULT '',
	content_type TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_created_at ON records(created_at);`

const selectColumns = `id, invoice_number, merchant, amount::text, issue_date, cost_center,
	file_name, receipt_key, content_type, created_at, updated_at`

var _ DB = (*PostgresDB)(nil)

// PostgresDB implements the DB interface on a pgx connection pool
type PostgresDB struct {
	pool *pgxpool.Pool
}

// NewPostgresDB connects to Postgres and ensures the schema exists
func NewPostgresDB(ctx context.Context, dsn string) (*PostgresDB, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parsing dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}
	return &PostgresDB{pool: pool}, nil
}

// SaveEntry upserts an entry
func (p *PostgresDB) SaveEntry(ctx context.Context, entry *Entry) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO records (id, invoice_number, merchant, amount, issue_date, cost_center,
			file_name, receipt_key, content_type, created_at, updated_at)
		VALUES ($1,$2,$3,$4::numeric,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO UPDATE SET
			invoice_number = EXCLUDED.invoice_number,
			merchant = EXCLUDED.merchant,
			amount = EXCLUDED.amount,
			issue_date = EXCLUDED.issue_date,
			cost_center = EXCLUDED.cost_center,
			file_name = EXCLUDED.file_name,
			receipt_key = EXCLUDED.receipt_key,
			content_type = EXCLUDED.content_type,
			updated_at = EXCLUDED.updated_at
	`, entryArgs(entry)...)
	if err != nil {
		return fmt.Errorf("upserting record: %w", err)
	}
	return nil
}

// entryArgs lists the column values of entry in selectColumns order
func entryArgs(entry *Entry) []any {
	var issueDate *time.Time
	if !entry.IssueDate.IsZero() {
		issueDate = &entry.IssueDate.Time
	}
	return []any{entry.ID, entry.InvoiceNumber, entry.Merchant, entry.Amount.String(), issueDate,
		string(entry.CostCenter), entry.FileName, entry.ReceiptKey, entry.ContentType,
		entry.CreatedAt, entry.UpdatedAt}
}

// GetEntry retrieves an entry by ID
func (p *PostgresDB) GetEntry(ctx context.Context, id string) (*Entry, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+selectColumns+` FROM records WHERE id=$1`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("selecting record: %w", err)
	}
	return entry, nil
}

// ListEntries returns all entries
func (p *PostgresDB) ListEntries(ctx context.Context) ([]*Entry, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+selectColumns+` FROM records ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	defer rows.Close()

	entries := make([]*Entry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	return entries, nil
}

// DeleteEntry removes an entry
func (p *PostgresDB) DeleteEntry(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM records WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("deleting record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Close closes the pool
func (p *PostgresDB) Close() error {
	p.pool.Close()
	return nil
}

func scanEntry(row pgx.Row) (*Entry, error) {
	var (
		entry      Entry
		amount     string
		issueDate  *time.Time
		costCenter string
	)
	err := row.Scan(&entry.ID, &entry.InvoiceNumber, &entry.Merchant, &amount, &issueDate, &costCenter,
		&entry.FileName, &entry.ReceiptKey, &entry.ContentType, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return nil, err
	}
	entry.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parsing amount %q: %w", amount, err)
	}
	if issueDate != nil {
		entry.IssueDate = expense.DateOf(*issueDate)
	}
	entry.CostCenter = expense.CostCenter(costCenter)
	return &entry, nil
}
