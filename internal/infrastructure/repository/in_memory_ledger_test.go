package repository

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bazaar.com/internal/domain/entity"
	"bazaar.com/internal/domain/port"
	"bazaar.com/internal/infrastructure/logger"
)

var testAsset = entity.AssetKey{Contract: "0xnft", TokenID: "1"}

func testEvent(eventType entity.EventType, account string) entity.Event {
	return entity.Event{
		ID:         fmt.Sprintf("%s-%s-%d", eventType, account, time.Now().UnixNano()),
		Type:       eventType,
		Account:    account,
		Asset:      testAsset,
		Price:      decimal.NewFromInt(100),
		OccurredAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

// storeFactories lists every LedgerStore implementation under test.
func storeFactories(t *testing.T) map[string]func(t *testing.T) port.LedgerStore {
	t.Helper()
	factories := map[string]func(t *testing.T) port.LedgerStore{
		"memory": func(t *testing.T) port.LedgerStore {
			return NewInMemoryLedger(logger.NewLogger())
		},
		"sqlite": func(t *testing.T) port.LedgerStore {
			store, err := NewSQLiteLedger(context.Background(), filepath.Join(t.TempDir(), "ledger.db"), logger.NewLogger())
			if err != nil {
				t.Fatalf("NewSQLiteLedger() error = %v", err)
			}
			t.Cleanup(func() { store.Close() })
			return store
		},
	}
	if dsn := os.Getenv("BAZAAR_TEST_POSTGRES_DSN"); dsn != "" {
		factories["postgres"] = func(t *testing.T) port.LedgerStore {
			ctx := context.Background()
			store, err := NewPostgresLedger(ctx, dsn, logger.NewLogger())
			if err != nil {
				t.Fatalf("NewPostgresLedger() error = %v", err)
			}
			if err := store.Migrate(ctx); err != nil {
				t.Fatalf("Migrate() error = %v", err)
			}
			store.db.Exec("TRUNCATE listings, proceeds, ledger_events RESTART IDENTITY")
			t.Cleanup(func() { store.Close() })
			return store
		}
	}
	return factories
}

func TestLedgerStore_CommitAppliesWrites(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()

			err := store.WithinTx(ctx, func(ctx context.Context, tx port.LedgerTx) error {
				if err := tx.PutListing(ctx, testAsset, entity.Listing{Price: decimal.NewFromInt(100), Seller: "alice"}); err != nil {
					return err
				}
				// Reads inside the transaction see staged writes
				got, err := tx.Listing(ctx, testAsset)
				if err != nil {
					return err
				}
				if !got.Price.Equal(decimal.NewFromInt(100)) {
					t.Errorf("staged listing price = %v, want 100", got.Price)
				}
				if err := tx.SetProceeds(ctx, "alice", decimal.NewFromInt(150)); err != nil {
					return err
				}
				return tx.AppendEvent(ctx, testEvent(entity.EventListed, "alice"))
			})
			if err != nil {
				t.Fatalf("WithinTx() error = %v", err)
			}

			listing, err := store.GetListing(ctx, testAsset)
			if err != nil {
				t.Fatalf("GetListing() error = %v", err)
			}
			if listing.Seller != "alice" || !listing.Price.Equal(decimal.NewFromInt(100)) {
				t.Errorf("listing = %+v, want alice@100", listing)
			}

			proceeds, err := store.GetProceeds(ctx, "alice")
			if err != nil {
				t.Fatalf("GetProceeds() error = %v", err)
			}
			if !proceeds.Equal(decimal.NewFromInt(150)) {
				t.Errorf("proceeds = %v, want 150", proceeds)
			}

			events, err := store.ListEvents(ctx, 0, 10)
			if err != nil {
				t.Fatalf("ListEvents() error = %v", err)
			}
			if len(events) != 1 || events[0].Sequence != 1 || events[0].Type != entity.EventListed {
				t.Errorf("events = %+v, want one Listed event with sequence 1", events)
			}
		})
	}
}

func TestLedgerStore_ErrorRollsBack(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()

			seed := func(ctx context.Context, tx port.LedgerTx) error {
				if err := tx.PutListing(ctx, testAsset, entity.Listing{Price: decimal.NewFromInt(100), Seller: "alice"}); err != nil {
					return err
				}
				return tx.SetProceeds(ctx, "alice", decimal.NewFromInt(40))
			}
			if err := store.WithinTx(ctx, seed); err != nil {
				t.Fatalf("seed WithinTx() error = %v", err)
			}

			boom := errors.New("transfer rejected")
			err := store.WithinTx(ctx, func(ctx context.Context, tx port.LedgerTx) error {
				if err := tx.DeleteListing(ctx, testAsset); err != nil {
					return err
				}
				if err := tx.SetProceeds(ctx, "alice", decimal.NewFromInt(140)); err != nil {
					return err
				}
				if err := tx.AppendEvent(ctx, testEvent(entity.EventBought, "bob")); err != nil {
					return err
				}
				return boom
			})
			if !errors.Is(err, boom) {
				t.Fatalf("WithinTx() error = %v, want %v", err, boom)
			}

			listing, _ := store.GetListing(ctx, testAsset)
			if !listing.Active() || listing.Seller != "alice" {
				t.Errorf("listing after rollback = %+v, want alice@100", listing)
			}
			proceeds, _ := store.GetProceeds(ctx, "alice")
			if !proceeds.Equal(decimal.NewFromInt(40)) {
				t.Errorf("proceeds after rollback = %v, want 40", proceeds)
			}
			events, _ := store.ListEvents(ctx, 0, 0)
			if len(events) != 0 {
				t.Errorf("events after rollback = %d, want 0", len(events))
			}
		})
	}
}

func TestLedgerStore_AbsentValues(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()

			listing, err := store.GetListing(ctx, entity.AssetKey{Contract: "0xnone", TokenID: "9"})
			if err != nil {
				t.Fatalf("GetListing() error = %v", err)
			}
			if listing.Active() || listing.Seller != "" {
				t.Errorf("GetListing() = %+v, want zero listing", listing)
			}

			proceeds, err := store.GetProceeds(ctx, "nobody")
			if err != nil {
				t.Fatalf("GetProceeds() error = %v", err)
			}
			if !proceeds.IsZero() {
				t.Errorf("GetProceeds() = %v, want 0", proceeds)
			}
		})
	}
}

func TestLedgerStore_EventOutbox(t *testing.T) {
	for name, newStore := range storeFactories(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()

			for _, account := range []string{"alice", "bob", "carol"} {
				account := account
				err := store.WithinTx(ctx, func(ctx context.Context, tx port.LedgerTx) error {
					return tx.AppendEvent(ctx, testEvent(entity.EventListed, account))
				})
				if err != nil {
					t.Fatalf("WithinTx() error = %v", err)
				}
			}

			page, err := store.ListEvents(ctx, 1, 1)
			if err != nil {
				t.Fatalf("ListEvents() error = %v", err)
			}
			if len(page) != 1 || page[0].Sequence != 2 || page[0].Account != "bob" {
				t.Errorf("ListEvents(after=1, limit=1) = %+v, want bob at sequence 2", page)
			}
			if !page[0].OccurredAt.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)) {
				t.Errorf("OccurredAt = %v", page[0].OccurredAt)
			}

			pending, err := store.PendingEvents(ctx, 2)
			if err != nil {
				t.Fatalf("PendingEvents() error = %v", err)
			}
			if len(pending) != 2 {
				t.Fatalf("PendingEvents(limit=2) = %d events, want 2", len(pending))
			}
			if err := store.MarkPublished(ctx, []int64{pending[0].Sequence, pending[1].Sequence}); err != nil {
				t.Fatalf("MarkPublished() error = %v", err)
			}

			pending, err = store.PendingEvents(ctx, 10)
			if err != nil {
				t.Fatalf("PendingEvents() error = %v", err)
			}
			if len(pending) != 1 || pending[0].Account != "carol" {
				t.Errorf("PendingEvents() after publish = %+v, want only carol", pending)
			}

			// Publishing does not remove events from the log
			all, _ := store.ListEvents(ctx, 0, 0)
			if len(all) != 3 {
				t.Errorf("ListEvents() = %d events, want 3", len(all))
			}
		})
	}
}

func TestInMemoryLedger_ConcurrentAccess(t *testing.T) {
	ledger := NewInMemoryLedger(logger.NewLogger()).(*InMemoryLedger)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ledger.WithinTx(ctx, func(ctx context.Context, tx port.LedgerTx) error {
				current, err := tx.Proceeds(ctx, "alice")
				if err != nil {
					return err
				}
				return tx.SetProceeds(ctx, "alice", current.Add(decimal.NewFromInt(1)))
			})
		}()
	}
	wg.Wait()

	balance, err := ledger.GetProceeds(ctx, "alice")
	if err != nil {
		t.Fatalf("GetProceeds() error = %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Proceeds = %v, want 10", balance)
	}
}

func TestInMemoryLedger_UncommittedWritesInvisible(t *testing.T) {
	ledger := NewInMemoryLedger(logger.NewLogger())
	ctx := context.Background()

	err := ledger.WithinTx(ctx, func(ctx context.Context, tx port.LedgerTx) error {
		if err := tx.PutListing(ctx, testAsset, entity.Listing{Price: decimal.NewFromInt(5), Seller: "alice"}); err != nil {
			return err
		}
		outside, err := ledger.GetListing(ctx, testAsset)
		if err != nil {
			return err
		}
		if outside.Active() {
			t.Error("uncommitted listing visible outside the transaction")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithinTx() error = %v", err)
	}
}
