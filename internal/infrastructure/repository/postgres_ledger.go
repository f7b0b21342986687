package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"bazaar.com/internal/domain/entity"
	"bazaar.com/internal/domain/port"
	"bazaar.com/internal/infrastructure/logger"
)

// ErrDuplicateEvent is returned when an event id is appended twice.
var ErrDuplicateEvent = errors.New("duplicate ledger event")

// PostgresLedger implements the LedgerStore port on PostgreSQL through gorm.
type PostgresLedger struct {
	db     *gorm.DB
	logger logger.Logger
}

// NewPostgresLedger connects to the database and verifies the connection.
func NewPostgresLedger(ctx context.Context, dsn string, log logger.Logger) (*PostgresLedger, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("resolve postgres sql db handle: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresLedger{db: db, logger: log}, nil
}

// Migrate creates or updates the ledger tables.
func (p *PostgresLedger) Migrate(ctx context.Context) error {
	if err := p.db.WithContext(ctx).AutoMigrate(&listingModel{}, &proceedsModel{}, &eventModel{}); err != nil {
		return fmt.Errorf("migrate ledger schema: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (p *PostgresLedger) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithinTx runs fn inside a gorm transaction; a returned error rolls it back.
func (p *PostgresLedger) WithinTx(ctx context.Context, fn func(ctx context.Context, tx port.LedgerTx) error) error {
	return p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, &postgresTx{db: tx})
	})
}

func (p *PostgresLedger) GetListing(ctx context.Context, key entity.AssetKey) (entity.Listing, error) {
	return findListing(p.db.WithContext(ctx), key)
}

func (p *PostgresLedger) GetProceeds(ctx context.Context, seller string) (decimal.Decimal, error) {
	return findProceeds(p.db.WithContext(ctx), seller)
}

func (p *PostgresLedger) ListEvents(ctx context.Context, afterSequence int64, limit int) ([]entity.Event, error) {
	tx := p.db.WithContext(ctx).
		Where("sequence > ?", afterSequence).
		Order("sequence ASC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}

	var rows []eventModel
	if err := tx.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	return eventsFromRows(rows), nil
}

func (p *PostgresLedger) PendingEvents(ctx context.Context, limit int) ([]entity.Event, error) {
	tx := p.db.WithContext(ctx).
		Where("published = ?", false).
		Order("sequence ASC")
	if limit > 0 {
		tx = tx.Limit(limit)
	}

	var rows []eventModel
	if err := tx.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("query pending events: %w", err)
	}
	return eventsFromRows(rows), nil
}

func (p *PostgresLedger) MarkPublished(ctx context.Context, sequences []int64) error {
	if len(sequences) == 0 {
		return nil
	}
	err := p.db.WithContext(ctx).
		Model(&eventModel{}).
		Where("sequence IN ?", sequences).
		Update("published", true).
		Error
	if err != nil {
		return fmt.Errorf("mark events published: %w", err)
	}
	return nil
}

func findListing(db *gorm.DB, key entity.AssetKey) (entity.Listing, error) {
	var row listingModel
	err := db.
		Where("contract = ? AND token_id = ?", key.Contract, key.TokenID).
		First(&row).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entity.Listing{}, nil
	}
	if err != nil {
		return entity.Listing{}, fmt.Errorf("query listing %s: %w", key, err)
	}
	return entity.Listing{Price: row.Price, Seller: row.Seller}, nil
}

func findProceeds(db *gorm.DB, seller string) (decimal.Decimal, error) {
	var row proceedsModel
	err := db.
		Where("seller = ?", seller).
		First(&row).
		Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("query proceeds %s: %w", seller, err)
	}
	return row.Amount, nil
}

type postgresTx struct {
	db *gorm.DB
}

func (t *postgresTx) Listing(ctx context.Context, key entity.AssetKey) (entity.Listing, error) {
	return findListing(t.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), key)
}

func (t *postgresTx) PutListing(ctx context.Context, key entity.AssetKey, listing entity.Listing) error {
	row := listingModel{
		Contract: key.Contract,
		TokenID:  key.TokenID,
		Price:    listing.Price,
		Seller:   listing.Seller,
	}
	err := t.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "contract"}, {Name: "token_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"price", "seller"}),
		}).
		Create(&row).
		Error
	if err != nil {
		return fmt.Errorf("upsert listing %s: %w", key, err)
	}
	return nil
}

func (t *postgresTx) DeleteListing(ctx context.Context, key entity.AssetKey) error {
	err := t.db.WithContext(ctx).
		Where("contract = ? AND token_id = ?", key.Contract, key.TokenID).
		Delete(&listingModel{}).
		Error
	if err != nil {
		return fmt.Errorf("delete listing %s: %w", key, err)
	}
	return nil
}

func (t *postgresTx) Proceeds(ctx context.Context, seller string) (decimal.Decimal, error) {
	return findProceeds(t.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), seller)
}

func (t *postgresTx) SetProceeds(ctx context.Context, seller string, amount decimal.Decimal) error {
	row := proceedsModel{Seller: seller, Amount: amount}
	err := t.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "seller"}},
			DoUpdates: clause.AssignmentColumns([]string{"amount"}),
		}).
		Create(&row).
		Error
	if err != nil {
		return fmt.Errorf("upsert proceeds %s: %w", seller, err)
	}
	return nil
}

func (t *postgresTx) AppendEvent(ctx context.Context, event entity.Event) error {
	row := eventModelFromEntity(event)
	if err := t.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateEvent, event.ID)
		}
		return fmt.Errorf("append event %s: %w", event.ID, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type listingModel struct {
	Contract string          `gorm:"column:contract;primaryKey"`
	TokenID  string          `gorm:"column:token_id;primaryKey"`
	Price    decimal.Decimal `gorm:"column:price;type:numeric(78,0);not null"`
	Seller   string          `gorm:"column:seller;not null"`
}

func (listingModel) TableName() string {
	return "listings"
}

type proceedsModel struct {
	Seller string          `gorm:"column:seller;primaryKey"`
	Amount decimal.Decimal `gorm:"column:amount;type:numeric(78,0);not null"`
}

func (proceedsModel) TableName() string {
	return "proceeds"
}

type eventModel struct {
	Sequence      int64           `gorm:"column:sequence;primaryKey;autoIncrement"`
	EventID       string          `gorm:"column:event_id;uniqueIndex;not null"`
	EventType     string          `gorm:"column:event_type;not null"`
	Account       string          `gorm:"column:account;not null"`
	Contract      string          `gorm:"column:contract;not null"`
	TokenID       string          `gorm:"column:token_id;not null"`
	Price         decimal.Decimal `gorm:"column:price;type:numeric(78,0);not null"`
	CorrelationID string          `gorm:"column:correlation_id"`
	OccurredAt    time.Time       `gorm:"column:occurred_at;not null"`
	Published     bool            `gorm:"column:published;not null;default:false;index"`
}

func (eventModel) TableName() string {
	return "ledger_events"
}

func eventModelFromEntity(event entity.Event) eventModel {
	return eventModel{
		EventID:       event.ID,
		EventType:     string(event.Type),
		Account:       event.Account,
		Contract:      event.Asset.Contract,
		TokenID:       event.Asset.TokenID,
		Price:         event.Price,
		CorrelationID: event.CorrelationID,
		OccurredAt:    event.OccurredAt.UTC(),
	}
}

func (m eventModel) toEntity() entity.Event {
	return entity.Event{
		Sequence:      m.Sequence,
		ID:            m.EventID,
		Type:          entity.EventType(m.EventType),
		Account:       m.Account,
		Asset:         entity.AssetKey{Contract: m.Contract, TokenID: m.TokenID},
		Price:         m.Price,
		CorrelationID: m.CorrelationID,
		OccurredAt:    m.OccurredAt.UTC(),
	}
}

func eventsFromRows(rows []eventModel) []entity.Event {
	events := make([]entity.Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, row.toEntity())
	}
	return events
}
