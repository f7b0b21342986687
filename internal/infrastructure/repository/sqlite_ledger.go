package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"bazaar.com/internal/domain/entity"
	"bazaar.com/internal/domain/port"
	"bazaar.com/internal/infrastructure/logger"

	_ "modernc.org/sqlite"
)

const (
	defaultSQLiteFile = "bazaar.db"
	maxBusyTimeoutMs  = 5000
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS listings (
	contract TEXT NOT NULL,
	token_id TEXT NOT NULL,
	price TEXT NOT NULL,
	seller TEXT NOT NULL,
	PRIMARY KEY (contract, token_id)
);
CREATE TABLE IF NOT EXISTS proceeds (
	seller TEXT PRIMARY KEY,
	amount TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS ledger_events (
	sequence INTEGER PRIMARY KEY AUTOINCREMENT,
	event_id TEXT NOT NULL UNIQUE,
	event_type TEXT NOT NULL,
	account TEXT NOT NULL,
	contract TEXT NOT NULL,
	token_id TEXT NOT NULL,
	price TEXT NOT NULL,
	correlation_id TEXT NOT NULL DEFAULT '',
	occurred_at TEXT NOT NULL,
	published INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS ledger_events_pending ON ledger_events (published, sequence);
`

// SQLiteLedger implements the LedgerStore port on an embedded SQLite file.
type SQLiteLedger struct {
	db     *sql.DB
	file   string
	logger logger.Logger
}

// NewSQLiteLedger opens (creating if needed) the database file and its schema.
func NewSQLiteLedger(ctx context.Context, filePath string, log logger.Logger) (*SQLiteLedger, error) {
	if filePath == "" {
		filePath = defaultSQLiteFile
	}

	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("resolve db path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)",
		filepath.Clean(absPath), maxBusyTimeoutMs)
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	l := &SQLiteLedger{db: db, file: absPath, logger: log}
	if err := l.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

// Migrate creates the ledger tables if they do not exist.
func (l *SQLiteLedger) Migrate(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("create ledger schema: %w", err)
	}
	return nil
}

// Close releases the underlying database connection.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

// WithinTx runs fn inside a database transaction.
func (l *SQLiteLedger) WithinTx(ctx context.Context, fn func(ctx context.Context, tx port.LedgerTx) error) error {
	sqlTx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if err := fn(ctx, &sqliteTx{tx: sqlTx}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			l.logger.LogError(ctx, "Rollback failed", rbErr, "db", l.file)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (l *SQLiteLedger) GetListing(ctx context.Context, key entity.AssetKey) (entity.Listing, error) {
	return queryListing(ctx, l.db, key)
}

func (l *SQLiteLedger) GetProceeds(ctx context.Context, seller string) (decimal.Decimal, error) {
	return queryProceeds(ctx, l.db, seller)
}

func (l *SQLiteLedger) ListEvents(ctx context.Context, afterSequence int64, limit int) ([]entity.Event, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := l.db.QueryContext(ctx, `SELECT sequence, event_id, event_type, account, contract, token_id,
		price, correlation_id, occurred_at FROM ledger_events WHERE sequence > ? ORDER BY sequence LIMIT ?`,
		afterSequence, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	return scanEvents(rows)
}

func (l *SQLiteLedger) PendingEvents(ctx context.Context, limit int) ([]entity.Event, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := l.db.QueryContext(ctx, `SELECT sequence, event_id, event_type, account, contract, token_id,
		price, correlation_id, occurred_at FROM ledger_events WHERE published = 0 ORDER BY sequence LIMIT ?`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("query pending events: %w", err)
	}
	return scanEvents(rows)
}

func (l *SQLiteLedger) MarkPublished(ctx context.Context, sequences []int64) error {
	if len(sequences) == 0 {
		return nil
	}
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `UPDATE ledger_events SET published = 1 WHERE sequence = ?`)
	if err != nil {
		return fmt.Errorf("prepare mark published: %w", err)
	}
	defer stmt.Close()

	for _, seq := range sequences {
		if _, err := stmt.ExecContext(ctx, seq); err != nil {
			return fmt.Errorf("mark event %d published: %w", seq, err)
		}
	}
	return tx.Commit()
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryListing(ctx context.Context, q queryer, key entity.AssetKey) (entity.Listing, error) {
	var listing entity.Listing
	err := q.QueryRowContext(ctx, `SELECT price, seller FROM listings WHERE contract = ? AND token_id = ?`,
		key.Contract, key.TokenID).Scan(&listing.Price, &listing.Seller)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.Listing{}, nil
	}
	if err != nil {
		return entity.Listing{}, fmt.Errorf("query listing %s: %w", key, err)
	}
	return listing, nil
}

func queryProceeds(ctx context.Context, q queryer, seller string) (decimal.Decimal, error) {
	var amount decimal.Decimal
	err := q.QueryRowContext(ctx, `SELECT amount FROM proceeds WHERE seller = ?`, seller).Scan(&amount)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("query proceeds %s: %w", seller, err)
	}
	return amount, nil
}

func scanEvents(rows *sql.Rows) ([]entity.Event, error) {
	defer rows.Close()

	events := make([]entity.Event, 0)
	for rows.Next() {
		var (
			event      entity.Event
			eventType  string
			occurredAt string
		)
		if err := rows.Scan(&event.Sequence, &event.ID, &eventType, &event.Account,
			&event.Asset.Contract, &event.Asset.TokenID, &event.Price,
			&event.CorrelationID, &occurredAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		event.Type = entity.EventType(eventType)
		ts, err := time.Parse(time.RFC3339Nano, occurredAt)
		if err != nil {
			return nil, fmt.Errorf("parse event time %q: %w", occurredAt, err)
		}
		event.OccurredAt = ts
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) Listing(ctx context.Context, key entity.AssetKey) (entity.Listing, error) {
	return queryListing(ctx, t.tx, key)
}

func (t *sqliteTx) PutListing(ctx context.Context, key entity.AssetKey, listing entity.Listing) error {
	_, err := t.tx.ExecContext(ctx, `INSERT INTO listings (contract, token_id, price, seller) VALUES (?, ?, ?, ?)
		ON CONFLICT (contract, token_id) DO UPDATE SET price = excluded.price, seller = excluded.seller`,
		key.Contract, key.TokenID, listing.Price.String(), listing.Seller)
	if err != nil {
		return fmt.Errorf("upsert listing %s: %w", key, err)
	}
	return nil
}

func (t *sqliteTx) DeleteListing(ctx context.Context, key entity.AssetKey) error {
	_, err := t.tx.ExecContext(ctx, `DELETE FROM listings WHERE contract = ? AND token_id = ?`,
		key.Contract, key.TokenID)
	if err != nil {
		return fmt.Errorf("delete listing %s: %w", key, err)
	}
	return nil
}

func (t *sqliteTx) Proceeds(ctx context.Context, seller string) (decimal.Decimal, error) {
	return queryProceeds(ctx, t.tx, seller)
}

func (t *sqliteTx) SetProceeds(ctx context.Context, seller string, amount decimal.Decimal) error {
	_, err := t.tx.ExecContext(ctx, `INSERT INTO proceeds (seller, amount) VALUES (?, ?)
		ON CONFLICT (seller) DO UPDATE SET amount = excluded.amount`,
		seller, amount.String())
	if err != nil {
		return fmt.Errorf("upsert proceeds %s: %w", seller, err)
	}
	return nil
}

func (t *sqliteTx) AppendEvent(ctx context.Context, event entity.Event) error {
	_, err := t.tx.ExecContext(ctx, `INSERT INTO ledger_events (event_id, event_type, account, contract,
		token_id, price, correlation_id, occurred_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, string(event.Type), event.Account, event.Asset.Contract, event.Asset.TokenID,
		event.Price.String(), event.CorrelationID, event.OccurredAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("append event %s: %w", event.ID, err)
	}
	return nil
}
