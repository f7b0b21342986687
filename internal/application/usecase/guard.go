package usecase

import (
	"context"
	"time"

	"bazaar.com/internal/domain/entity"
)

// reentrancyGuard is the ledger-wide critical section for mutating operations.
// The context returned by enter is marked, so a collaborator that calls back into
// the ledger with it is rejected instead of waiting on itself.
//
// A callback that re-enters through the HTTP API arrives on a fresh context and
// cannot be told apart from a concurrent caller. It waits up to wait and then
// gets ErrLedgerBusy, unless failFast is set, in which case every caller that
// finds the ledger held is turned away at once.
type reentrancyGuard struct {
	sem      chan struct{}
	wait     time.Duration
	failFast bool
}

type guardKey struct {
	g *reentrancyGuard
}

func newReentrancyGuard(wait time.Duration) *reentrancyGuard {
	return &reentrancyGuard{
		sem:  make(chan struct{}, 1),
		wait: wait,
	}
}

func (g *reentrancyGuard) inFlight(ctx context.Context) bool {
	return ctx.Value(guardKey{g: g}) != nil
}

// enter acquires the critical section. The returned release func must be called
// on every exit path.
func (g *reentrancyGuard) enter(ctx context.Context) (context.Context, func(), error) {
	if g.inFlight(ctx) {
		return ctx, nil, entity.ErrReentrantCall
	}

	if g.failFast {
		select {
		case g.sem <- struct{}{}:
			return g.acquired(ctx)
		default:
			return ctx, nil, entity.ErrLedgerBusy
		}
	}

	waitCtx := ctx
	if g.wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, g.wait)
		defer cancel()
	}

	select {
	case g.sem <- struct{}{}:
	case <-waitCtx.Done():
		if err := ctx.Err(); err != nil {
			return ctx, nil, err
		}
		return ctx, nil, entity.ErrLedgerBusy
	}
	return g.acquired(ctx)
}

func (g *reentrancyGuard) acquired(ctx context.Context) (context.Context, func(), error) {
	released := false
	release := func() {
		if released {
			return
		}
		released = true
		<-g.sem
	}
	return context.WithValue(ctx, guardKey{g: g}, struct{}{}), release, nil
}

type correlationKey struct{}

// WithCorrelationID attaches the id that is recorded on emitted events.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the id attached by WithCorrelationID, if any.
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}
