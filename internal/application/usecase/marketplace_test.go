package usecase

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bazaar.com/internal/domain/entity"
	"bazaar.com/internal/domain/port"
	"bazaar.com/internal/infrastructure/logger"
	"bazaar.com/internal/infrastructure/repository"
)

const operator = "marketplace"

var (
	asset     = entity.AssetKey{Contract: "0xnft", TokenID: "1"}
	fixedTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
)

func price(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// mockRegistry is a mock implementation of AssetRegistry
type mockRegistry struct {
	ownerOfFunc    func(ctx context.Context, key entity.AssetKey) (string, error)
	isApprovedFunc func(ctx context.Context, key entity.AssetKey, operator string) (bool, error)
	transferFunc   func(ctx context.Context, key entity.AssetKey, from, to string) error
}

func (m *mockRegistry) OwnerOf(ctx context.Context, key entity.AssetKey) (string, error) {
	if m.ownerOfFunc != nil {
		return m.ownerOfFunc(ctx, key)
	}
	return "alice", nil
}

func (m *mockRegistry) IsApprovedForTransfer(ctx context.Context, key entity.AssetKey, operator string) (bool, error) {
	if m.isApprovedFunc != nil {
		return m.isApprovedFunc(ctx, key, operator)
	}
	return true, nil
}

func (m *mockRegistry) Transfer(ctx context.Context, key entity.AssetKey, from, to string) error {
	if m.transferFunc != nil {
		return m.transferFunc(ctx, key, from, to)
	}
	return nil
}

// mockPayments is a mock implementation of PaymentGateway
type mockPayments struct {
	collectFunc func(ctx context.Context, payer string, amount decimal.Decimal) (port.PaymentReceipt, error)
	refundFunc  func(ctx context.Context, receipt port.PaymentReceipt) error
	payoutFunc  func(ctx context.Context, payee string, amount decimal.Decimal) error
}

func (m *mockPayments) Collect(ctx context.Context, payer string, amount decimal.Decimal) (port.PaymentReceipt, error) {
	if m.collectFunc != nil {
		return m.collectFunc(ctx, payer, amount)
	}
	return port.PaymentReceipt{ID: "receipt-1", Payer: payer, Amount: amount}, nil
}

func (m *mockPayments) Refund(ctx context.Context, receipt port.PaymentReceipt) error {
	if m.refundFunc != nil {
		return m.refundFunc(ctx, receipt)
	}
	return nil
}

func (m *mockPayments) Payout(ctx context.Context, payee string, amount decimal.Decimal) error {
	if m.payoutFunc != nil {
		return m.payoutFunc(ctx, payee, amount)
	}
	return nil
}

func quietLogger() logger.Logger {
	return logger.New(io.Discard, "error")
}

func newTestMarketplace(registry port.AssetRegistry, payments port.PaymentGateway) (*Marketplace, port.LedgerStore) {
	store := repository.NewInMemoryLedger(quietLogger())
	m := NewMarketplace(store, registry, payments, MarketplaceConfig{
		Operator: operator,
		LockWait: 50 * time.Millisecond,
		Clock:    func() time.Time { return fixedTime },
	}, quietLogger())
	return m, store
}

// seedListing writes a listing directly, bypassing the marketplace checks.
func seedListing(t *testing.T, store port.LedgerStore, key entity.AssetKey, listing entity.Listing) {
	t.Helper()
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx port.LedgerTx) error {
		return tx.PutListing(ctx, key, listing)
	})
	if err != nil {
		t.Fatalf("seed listing: %v", err)
	}
}

func seedProceeds(t *testing.T, store port.LedgerStore, seller string, amount decimal.Decimal) {
	t.Helper()
	err := store.WithinTx(context.Background(), func(ctx context.Context, tx port.LedgerTx) error {
		return tx.SetProceeds(ctx, seller, amount)
	})
	if err != nil {
		t.Fatalf("seed proceeds: %v", err)
	}
}

func mustEvents(t *testing.T, store port.LedgerStore) []entity.Event {
	t.Helper()
	events, err := store.ListEvents(context.Background(), 0, 0)
	if err != nil {
		t.Fatalf("ListEvents() error = %v", err)
	}
	return events
}

func TestMarketplace_ListItem(t *testing.T) {
	registryDown := errors.New("registry unavailable")

	tests := []struct {
		name     string
		request  entity.ListItemRequest
		existing *entity.Listing
		owner    string
		ownerErr error
		approved bool
		wantErr  error
	}{
		{
			name:     "lists owned and approved asset",
			request:  entity.ListItemRequest{Caller: "alice", Asset: asset, Price: price(100)},
			owner:    "alice",
			approved: true,
		},
		{
			name:     "already listed wins over every other check",
			request:  entity.ListItemRequest{Caller: "mallory", Asset: asset, Price: price(0)},
			existing: &entity.Listing{Price: price(100), Seller: "alice"},
			owner:    "alice",
			approved: false,
			wantErr:  entity.ErrAlreadyListed,
		},
		{
			name:     "not owner wins over zero price",
			request:  entity.ListItemRequest{Caller: "mallory", Asset: asset, Price: price(0)},
			owner:    "alice",
			approved: false,
			wantErr:  entity.ErrNotOwner,
		},
		{
			name:     "already listed wins over negative price",
			request:  entity.ListItemRequest{Caller: "alice", Asset: asset, Price: price(-5)},
			existing: &entity.Listing{Price: price(100), Seller: "alice"},
			owner:    "alice",
			approved: true,
			wantErr:  entity.ErrAlreadyListed,
		},
		{
			name:     "not owner wins over negative price",
			request:  entity.ListItemRequest{Caller: "mallory", Asset: asset, Price: price(-5)},
			owner:    "alice",
			approved: true,
			wantErr:  entity.ErrNotOwner,
		},
		{
			name:     "negative price on a fresh asset",
			request:  entity.ListItemRequest{Caller: "alice", Asset: asset, Price: price(-5)},
			owner:    "alice",
			approved: true,
			wantErr:  entity.ErrPriceMustBeAboveZero,
		},
		{
			name:     "zero price wins over missing approval",
			request:  entity.ListItemRequest{Caller: "alice", Asset: asset, Price: price(0)},
			owner:    "alice",
			approved: false,
			wantErr:  entity.ErrPriceMustBeAboveZero,
		},
		{
			name:     "marketplace not approved",
			request:  entity.ListItemRequest{Caller: "alice", Asset: asset, Price: price(100)},
			owner:    "alice",
			approved: false,
			wantErr:  entity.ErrNotApprovedForMarketplace,
		},
		{
			name:     "zero priced record counts as absent",
			request:  entity.ListItemRequest{Caller: "alice", Asset: asset, Price: price(5)},
			existing: &entity.Listing{Price: price(0), Seller: "alice"},
			owner:    "alice",
			approved: true,
		},
		{
			name:     "registry failure propagates",
			request:  entity.ListItemRequest{Caller: "alice", Asset: asset, Price: price(100)},
			ownerErr: registryDown,
			wantErr:  registryDown,
		},
		{
			name:    "missing caller",
			request: entity.ListItemRequest{Asset: asset, Price: price(100)},
			wantErr: entity.ErrMissingCaller,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var askedOperator string
			registry := &mockRegistry{
				ownerOfFunc: func(ctx context.Context, key entity.AssetKey) (string, error) {
					return tt.owner, tt.ownerErr
				},
				isApprovedFunc: func(ctx context.Context, key entity.AssetKey, op string) (bool, error) {
					askedOperator = op
					return tt.approved, nil
				},
			}
			m, store := newTestMarketplace(registry, &mockPayments{})
			if tt.existing != nil {
				seedListing(t, store, asset, *tt.existing)
			}

			err := m.ListItem(context.Background(), tt.request)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ListItem() error = %v, want %v", err, tt.wantErr)
				}
				if len(mustEvents(t, store)) != 0 {
					t.Error("rejected ListItem() emitted an event")
				}
				return
			}
			if err != nil {
				t.Fatalf("ListItem() unexpected error = %v", err)
			}

			if askedOperator != operator {
				t.Errorf("approval checked for %q, want %q", askedOperator, operator)
			}
			got, _ := store.GetListing(context.Background(), asset)
			if !got.Price.Equal(tt.request.Price) || got.Seller != tt.request.Caller {
				t.Errorf("listing = %+v, want %s@%s", got, tt.request.Caller, tt.request.Price)
			}
			events := mustEvents(t, store)
			if len(events) != 1 {
				t.Fatalf("events = %d, want 1", len(events))
			}
			if events[0].Type != entity.EventListed || events[0].Account != "alice" || !events[0].Price.Equal(tt.request.Price) {
				t.Errorf("event = %+v", events[0])
			}
			if !events[0].OccurredAt.Equal(fixedTime) {
				t.Errorf("event time = %v, want %v", events[0].OccurredAt, fixedTime)
			}
		})
	}
}

func TestMarketplace_BuyItem(t *testing.T) {
	collectErr := errors.New("card declined")
	transferErr := errors.New("custody rejected")
	refundErr := errors.New("refund rejected")

	tests := []struct {
		name         string
		listing      *entity.Listing
		payment      decimal.Decimal
		collectErr   error
		transferErr  error
		refundErr    error
		wantErr      error
		wantRefund   bool
		wantProceeds decimal.Decimal
	}{
		{
			name:         "pays exact price",
			listing:      &entity.Listing{Price: price(100), Seller: "alice"},
			payment:      price(100),
			wantProceeds: price(100),
		},
		{
			name:         "overpayment is credited in full",
			listing:      &entity.Listing{Price: price(100), Seller: "alice"},
			payment:      price(150),
			wantProceeds: price(150),
		},
		{
			name:    "not listed",
			payment: price(100),
			wantErr: entity.ErrNotListed,
		},
		{
			name:    "payment below price",
			listing: &entity.Listing{Price: price(100), Seller: "alice"},
			payment: price(99),
			wantErr: entity.ErrNotEnoughFunds,
		},
		{
			name:       "payment collection fails",
			listing:    &entity.Listing{Price: price(100), Seller: "alice"},
			payment:    price(100),
			collectErr: collectErr,
			wantErr:    entity.ErrTransferFailed,
		},
		{
			name:        "asset transfer fails and payment is refunded",
			listing:     &entity.Listing{Price: price(100), Seller: "alice"},
			payment:     price(100),
			transferErr: transferErr,
			wantErr:     transferErr,
			wantRefund:  true,
		},
		{
			name:        "refund failure is reported with the transfer failure",
			listing:     &entity.Listing{Price: price(100), Seller: "alice"},
			payment:     price(100),
			transferErr: transferErr,
			refundErr:   refundErr,
			wantErr:     refundErr,
			wantRefund:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				transferredTo string
				refunded      bool
			)
			registry := &mockRegistry{
				transferFunc: func(ctx context.Context, key entity.AssetKey, from, to string) error {
					if from != "alice" {
						t.Errorf("transfer from %q, want alice", from)
					}
					transferredTo = to
					return tt.transferErr
				},
			}
			payments := &mockPayments{
				collectFunc: func(ctx context.Context, payer string, amount decimal.Decimal) (port.PaymentReceipt, error) {
					if tt.collectErr != nil {
						return port.PaymentReceipt{}, tt.collectErr
					}
					return port.PaymentReceipt{ID: "r-1", Payer: payer, Amount: amount}, nil
				},
				refundFunc: func(ctx context.Context, receipt port.PaymentReceipt) error {
					refunded = true
					if receipt.ID != "r-1" {
						t.Errorf("refunded receipt %q, want r-1", receipt.ID)
					}
					return tt.refundErr
				},
			}
			m, store := newTestMarketplace(registry, payments)
			if tt.listing != nil {
				seedListing(t, store, asset, *tt.listing)
			}

			sold, err := m.BuyItem(context.Background(), entity.BuyItemRequest{Caller: "bob", Asset: asset, Payment: tt.payment})
			if refunded != tt.wantRefund {
				t.Errorf("refunded = %v, want %v", refunded, tt.wantRefund)
			}

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("BuyItem() error = %v, want %v", err, tt.wantErr)
				}
				if tt.transferErr != nil && !errors.Is(err, entity.ErrTransferFailed) {
					t.Errorf("BuyItem() error = %v, want kind %v", err, entity.ErrTransferFailed)
				}
				// Nothing observable changes on failure
				got, _ := store.GetListing(context.Background(), asset)
				if tt.listing != nil && (!got.Price.Equal(tt.listing.Price) || got.Seller != tt.listing.Seller) {
					t.Errorf("listing after failure = %+v, want %+v", got, *tt.listing)
				}
				proceeds, _ := store.GetProceeds(context.Background(), "alice")
				if !proceeds.IsZero() {
					t.Errorf("proceeds after failure = %v, want 0", proceeds)
				}
				if len(mustEvents(t, store)) != 0 {
					t.Error("failed BuyItem() emitted an event")
				}
				return
			}
			if err != nil {
				t.Fatalf("BuyItem() unexpected error = %v", err)
			}

			if sold.Seller != "alice" || !sold.Price.Equal(tt.listing.Price) {
				t.Errorf("sold = %+v, want the original listing", sold)
			}
			if transferredTo != "bob" {
				t.Errorf("asset transferred to %q, want bob", transferredTo)
			}
			got, _ := store.GetListing(context.Background(), asset)
			if got.Active() {
				t.Errorf("listing still active after sale: %+v", got)
			}
			proceeds, _ := store.GetProceeds(context.Background(), "alice")
			if !proceeds.Equal(tt.wantProceeds) {
				t.Errorf("proceeds = %v, want %v", proceeds, tt.wantProceeds)
			}
			events := mustEvents(t, store)
			if len(events) != 1 || events[0].Type != entity.EventBought || events[0].Account != "bob" || !events[0].Price.Equal(tt.listing.Price) {
				t.Errorf("events = %+v, want one Bought by bob at listing price", events)
			}
		})
	}
}

func TestMarketplace_BuyItemAccumulatesProceeds(t *testing.T) {
	m, store := newTestMarketplace(&mockRegistry{}, &mockPayments{})
	seedProceeds(t, store, "alice", price(40))
	seedListing(t, store, asset, entity.Listing{Price: price(100), Seller: "alice"})

	if _, err := m.BuyItem(context.Background(), entity.BuyItemRequest{Caller: "bob", Asset: asset, Payment: price(100)}); err != nil {
		t.Fatalf("BuyItem() error = %v", err)
	}
	proceeds, _ := store.GetProceeds(context.Background(), "alice")
	if !proceeds.Equal(price(140)) {
		t.Errorf("proceeds = %v, want 140", proceeds)
	}
}

func TestMarketplace_CancelListing(t *testing.T) {
	tests := []struct {
		name    string
		listed  bool
		caller  string
		wantErr error
	}{
		{name: "seller cancels", listed: true, caller: "alice"},
		{name: "not listed", listed: false, caller: "alice", wantErr: entity.ErrNotListed},
		{name: "not owner", listed: true, caller: "mallory", wantErr: entity.ErrNotOwner},
		{name: "missing caller", listed: true, caller: "", wantErr: entity.ErrMissingCaller},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, store := newTestMarketplace(&mockRegistry{}, &mockPayments{})
			if tt.listed {
				seedListing(t, store, asset, entity.Listing{Price: price(100), Seller: "alice"})
			}

			err := m.CancelListing(context.Background(), entity.CancelListingRequest{Caller: tt.caller, Asset: asset})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("CancelListing() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("CancelListing() unexpected error = %v", err)
			}

			got, _ := store.GetListing(context.Background(), asset)
			if got.Active() {
				t.Errorf("listing still active: %+v", got)
			}
			events := mustEvents(t, store)
			if len(events) != 1 || events[0].Type != entity.EventCancelled || events[0].Account != "alice" {
				t.Errorf("events = %+v, want one Cancelled by alice", events)
			}

			// A second cancel finds nothing to remove
			err = m.CancelListing(context.Background(), entity.CancelListingRequest{Caller: "alice", Asset: asset})
			if !errors.Is(err, entity.ErrNotListed) {
				t.Errorf("second CancelListing() error = %v, want %v", err, entity.ErrNotListed)
			}
		})
	}
}

func TestMarketplace_UpdateListing(t *testing.T) {
	tests := []struct {
		name     string
		listed   bool
		caller   string
		newPrice decimal.Decimal
		wantErr  error
	}{
		{name: "seller reprices", listed: true, caller: "alice", newPrice: price(250)},
		{name: "zero price delists", listed: true, caller: "alice", newPrice: price(0)},
		{name: "not listed", listed: false, caller: "alice", newPrice: price(250), wantErr: entity.ErrNotListed},
		{name: "not owner", listed: true, caller: "mallory", newPrice: price(250), wantErr: entity.ErrNotOwner},
		{name: "negative price", listed: true, caller: "alice", newPrice: price(-1), wantErr: entity.ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, store := newTestMarketplace(&mockRegistry{}, &mockPayments{})
			if tt.listed {
				seedListing(t, store, asset, entity.Listing{Price: price(100), Seller: "alice"})
			}

			err := m.UpdateListing(context.Background(), entity.UpdateListingRequest{Caller: tt.caller, Asset: asset, NewPrice: tt.newPrice})
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("UpdateListing() error = %v, want %v", err, tt.wantErr)
				}
				got, _ := store.GetListing(context.Background(), asset)
				if tt.listed && !got.Price.Equal(price(100)) {
					t.Errorf("price changed on failure: %v", got.Price)
				}
				return
			}
			if err != nil {
				t.Fatalf("UpdateListing() unexpected error = %v", err)
			}

			got, _ := store.GetListing(context.Background(), asset)
			if !got.Price.Equal(tt.newPrice) || got.Seller != "alice" {
				t.Errorf("listing = %+v, want alice@%s", got, tt.newPrice)
			}
			if got.Active() != tt.newPrice.IsPositive() {
				t.Errorf("Active() = %v for price %s", got.Active(), tt.newPrice)
			}
			events := mustEvents(t, store)
			if len(events) != 1 || events[0].Type != entity.EventListed || !events[0].Price.Equal(tt.newPrice) {
				t.Errorf("events = %+v, want one Listed at the new price", events)
			}
		})
	}
}

func TestMarketplace_WithdrawProceeds(t *testing.T) {
	payoutErr := errors.New("bank offline")

	tests := []struct {
		name      string
		balance   decimal.Decimal
		caller    string
		payoutErr error
		wantErr   error
	}{
		{name: "withdraws full balance", balance: price(150), caller: "alice"},
		{name: "nothing owed", balance: price(0), caller: "alice", wantErr: entity.ErrNoProceeds},
		{name: "payout fails and balance is restored", balance: price(150), caller: "alice", payoutErr: payoutErr, wantErr: entity.ErrTransferFailed},
		{name: "missing caller", balance: price(150), caller: "", wantErr: entity.ErrMissingCaller},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var paidOut decimal.Decimal
			payments := &mockPayments{
				payoutFunc: func(ctx context.Context, payee string, amount decimal.Decimal) error {
					if tt.payoutErr != nil {
						return tt.payoutErr
					}
					paidOut = amount
					return nil
				},
			}
			m, store := newTestMarketplace(&mockRegistry{}, payments)
			if tt.balance.IsPositive() {
				seedProceeds(t, store, "alice", tt.balance)
			}

			paid, err := m.WithdrawProceeds(context.Background(), tt.caller)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("WithdrawProceeds() error = %v, want %v", err, tt.wantErr)
				}
				if tt.payoutErr != nil && !errors.Is(err, tt.payoutErr) {
					t.Errorf("WithdrawProceeds() error = %v, want cause %v", err, tt.payoutErr)
				}
				proceeds, _ := store.GetProceeds(context.Background(), "alice")
				if !proceeds.Equal(tt.balance) {
					t.Errorf("proceeds after failure = %v, want %v", proceeds, tt.balance)
				}
				return
			}
			if err != nil {
				t.Fatalf("WithdrawProceeds() unexpected error = %v", err)
			}

			if !paid.Equal(tt.balance) || !paidOut.Equal(tt.balance) {
				t.Errorf("paid = %v, payout = %v, want %v", paid, paidOut, tt.balance)
			}
			proceeds, _ := store.GetProceeds(context.Background(), "alice")
			if !proceeds.IsZero() {
				t.Errorf("proceeds after withdraw = %v, want 0", proceeds)
			}

			_, err = m.WithdrawProceeds(context.Background(), "alice")
			if !errors.Is(err, entity.ErrNoProceeds) {
				t.Errorf("second WithdrawProceeds() error = %v, want %v", err, entity.ErrNoProceeds)
			}
		})
	}
}

func TestMarketplace_Queries(t *testing.T) {
	m, store := newTestMarketplace(&mockRegistry{}, &mockPayments{})
	seedListing(t, store, asset, entity.Listing{Price: price(100), Seller: "alice"})
	seedProceeds(t, store, "alice", price(7))

	listing, err := m.GetListing(context.Background(), asset)
	if err != nil {
		t.Fatalf("GetListing() error = %v", err)
	}
	if !listing.Active || listing.Seller != "alice" || listing.AssetKey != asset {
		t.Errorf("GetListing() = %+v", listing)
	}

	absent, err := m.GetListing(context.Background(), entity.AssetKey{Contract: "0xnft", TokenID: "2"})
	if err != nil {
		t.Fatalf("GetListing() error = %v", err)
	}
	if absent.Active || !absent.Price.IsZero() || absent.Seller != "" {
		t.Errorf("GetListing(absent) = %+v, want zero listing", absent)
	}

	proceeds, err := m.GetProceeds(context.Background(), "alice")
	if err != nil || !proceeds.Proceeds.Equal(price(7)) {
		t.Errorf("GetProceeds(alice) = %+v, %v; want 7", proceeds, err)
	}
	none, err := m.GetProceeds(context.Background(), "bob")
	if err != nil || !none.Proceeds.IsZero() {
		t.Errorf("GetProceeds(bob) = %+v, %v; want 0", none, err)
	}
}

func TestMarketplace_CorrelationIDOnEvents(t *testing.T) {
	m, store := newTestMarketplace(&mockRegistry{}, &mockPayments{})
	ctx := WithCorrelationID(context.Background(), "req-42")

	if err := m.ListItem(ctx, entity.ListItemRequest{Caller: "alice", Asset: asset, Price: price(10)}); err != nil {
		t.Fatalf("ListItem() error = %v", err)
	}
	events := mustEvents(t, store)
	if len(events) != 1 || events[0].CorrelationID != "req-42" || events[0].ID == "" {
		t.Errorf("events = %+v, want correlation id req-42 and a generated id", events)
	}
}
