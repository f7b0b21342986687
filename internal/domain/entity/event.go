package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// EventType names a ledger notification.
type EventType string

const (
	EventListed    EventType = "Listed"
	EventBought    EventType = "Bought"
	EventCancelled EventType = "Cancelled"
)

// Event is an append-only notification emitted by a committed ledger operation.
// Account is the seller for Listed and Cancelled and the buyer for Bought.
// Price is zero for Cancelled.
type Event struct {
	Sequence      int64           `json:"sequence"`
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	Account       string          `json:"account"`
	Asset         AssetKey        `json:"asset"`
	Price         decimal.Decimal `json:"price"`
	CorrelationID string          `json:"correlationId,omitempty"`
	OccurredAt    time.Time       `json:"occurredAt"`
}
