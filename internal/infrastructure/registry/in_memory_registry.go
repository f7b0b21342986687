package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"bazaar.com/internal/domain/entity"
	"bazaar.com/internal/infrastructure/logger"
)

var (
	ErrUnknownAsset  = errors.New("asset does not exist")
	ErrNotTokenOwner = errors.New("transfer from account that does not own the asset")
)

// TransferHook runs after an asset changes hands, in the caller's context.
// A returned error reverts the transfer.
type TransferHook func(ctx context.Context, key entity.AssetKey, from, to string) error

// InMemoryRegistry simulates an ERC-721 style ownership registry
type InMemoryRegistry struct {
	mu        sync.RWMutex
	owners    map[entity.AssetKey]string
	approvals map[entity.AssetKey]string
	operators map[string]map[string]bool // owner -> operator -> approved

	hook        TransferHook
	transferErr error
	logger      logger.Logger
}

// NewInMemoryRegistry creates an empty registry
func NewInMemoryRegistry(log logger.Logger) *InMemoryRegistry {
	return &InMemoryRegistry{
		owners:    make(map[entity.AssetKey]string),
		approvals: make(map[entity.AssetKey]string),
		operators: make(map[string]map[string]bool),
		logger:    log,
	}
}

// Mint creates the asset, or reassigns it, with the given owner
func (r *InMemoryRegistry) Mint(key entity.AssetKey, owner string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.owners[key] = owner
	delete(r.approvals, key)
}

// Approve lets operator move a single asset. An empty operator clears it.
func (r *InMemoryRegistry) Approve(key entity.AssetKey, operator string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if operator == "" {
		delete(r.approvals, key)
		return
	}
	r.approvals[key] = operator
}

// SetApprovalForAll lets operator move every asset of owner
func (r *InMemoryRegistry) SetApprovalForAll(owner, operator string, approved bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.operators[owner] == nil {
		r.operators[owner] = make(map[string]bool)
	}
	r.operators[owner][operator] = approved
}

// SetTransferHook installs a callback invoked on every successful transfer
func (r *InMemoryRegistry) SetTransferHook(hook TransferHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hook = hook
}

// FailTransfers makes every subsequent Transfer return err. nil restores normal behaviour.
func (r *InMemoryRegistry) FailTransfers(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transferErr = err
}

func (r *InMemoryRegistry) OwnerOf(ctx context.Context, key entity.AssetKey) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	owner, ok := r.owners[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownAsset, key)
	}
	return owner, nil
}

func (r *InMemoryRegistry) IsApprovedForTransfer(ctx context.Context, key entity.AssetKey, operator string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	owner, ok := r.owners[key]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownAsset, key)
	}
	if approved, ok := r.approvals[key]; ok && approved == operator {
		return true, nil
	}
	return r.operators[owner][operator], nil
}

// Transfer moves the asset from one account to another and clears its single-asset approval.
func (r *InMemoryRegistry) Transfer(ctx context.Context, key entity.AssetKey, from, to string) error {
	r.mu.Lock()
	if r.transferErr != nil {
		err := r.transferErr
		r.mu.Unlock()
		return err
	}
	owner, ok := r.owners[key]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownAsset, key)
	}
	if owner != from {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s owned by %s", ErrNotTokenOwner, key, owner)
	}
	approved, hadApproval := r.approvals[key]
	r.owners[key] = to
	delete(r.approvals, key)
	hook := r.hook
	r.mu.Unlock()

	if hook == nil {
		return nil
	}
	// The hook runs unlocked so it may call back into the registry
	if err := hook(ctx, key, from, to); err != nil {
		r.mu.Lock()
		r.owners[key] = from
		if hadApproval {
			r.approvals[key] = approved
		}
		r.mu.Unlock()
		r.logger.LogWarning(ctx, "Transfer reverted by receiver hook",
			"asset", key.String(),
			"from", from,
			"to", to,
			"reason", err.Error())
		return fmt.Errorf("transfer hook: %w", err)
	}
	return nil
}
