package usecase

import (
	"context"

	"bazaar.com/internal/domain/entity"
	"bazaar.com/internal/domain/port"
)

const (
	DefaultEventPageSize = 100
	MaxEventPageSize     = 1000
)

// ListEventsUseCase pages through the committed notification log
type ListEventsUseCase struct {
	events port.EventLog
}

// NewListEventsUseCase creates a new ListEventsUseCase
func NewListEventsUseCase(events port.EventLog) *ListEventsUseCase {
	return &ListEventsUseCase{events: events}
}

// ListEventsRequest selects events with a sequence above After
type ListEventsRequest struct {
	After int64
	Limit int
}

// ListEventsResponse is one page of the log. Next is the cursor for the following page.
type ListEventsResponse struct {
	Events []entity.Event `json:"events"`
	Next   int64          `json:"next"`
}

// Execute returns the next page of events
func (uc *ListEventsUseCase) Execute(ctx context.Context, req ListEventsRequest) (*ListEventsResponse, error) {
	if req.After < 0 {
		req.After = 0
	}
	switch {
	case req.Limit <= 0:
		req.Limit = DefaultEventPageSize
	case req.Limit > MaxEventPageSize:
		req.Limit = MaxEventPageSize
	}

	events, err := uc.events.ListEvents(ctx, req.After, req.Limit)
	if err != nil {
		return nil, err
	}

	next := req.After
	if len(events) > 0 {
		next = events[len(events)-1].Sequence
	}
	return &ListEventsResponse{Events: events, Next: next}, nil
}
