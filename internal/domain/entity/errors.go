package entity

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Ledger error kinds. Every failed ledger operation wraps exactly one of these.
var (
	ErrPriceMustBeAboveZero      = errors.New("price must be above zero")
	ErrNotApprovedForMarketplace = errors.New("not approved for marketplace")
	ErrAlreadyListed             = errors.New("already listed")
	ErrNotOwner                  = errors.New("not owner")
	ErrNotListed                 = errors.New("not listed")
	ErrNotEnoughFunds            = errors.New("not enough funds")
	ErrNoProceeds                = errors.New("no proceeds")
	ErrTransferFailed            = errors.New("transfer failed")

	ErrReentrantCall = errors.New("reentrant call")
	ErrLedgerBusy    = errors.New("ledger busy")
)

// Request validation errors.
var (
	ErrMissingCaller   = errors.New("missing required field: caller")
	ErrMissingContract = errors.New("missing required field: contract")
	ErrMissingTokenID  = errors.New("missing required field: tokenId")
	ErrInvalidAmount   = errors.New("invalid amount")
)

// LedgerError carries the identifiers of a failed ledger operation.
type LedgerError struct {
	Err     error
	Asset   AssetKey
	Price   decimal.Decimal
	Account string
	Cause   error
}

func (e *LedgerError) Error() string {
	msg := e.Err.Error()
	if !e.Asset.IsZero() {
		msg = fmt.Sprintf("%s: %s", msg, e.Asset)
	}
	if !e.Price.IsZero() {
		msg = fmt.Sprintf("%s (price %s)", msg, e.Price)
	}
	if e.Account != "" {
		msg = fmt.Sprintf("%s (account %s)", msg, e.Account)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap exposes both the kind and the underlying cause to errors.Is / errors.As.
func (e *LedgerError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}

func NewAlreadyListedError(key AssetKey) error {
	return &LedgerError{Err: ErrAlreadyListed, Asset: key}
}

func NewNotListedError(key AssetKey) error {
	return &LedgerError{Err: ErrNotListed, Asset: key}
}

func NewNotOwnerError(key AssetKey, caller string) error {
	return &LedgerError{Err: ErrNotOwner, Asset: key, Account: caller}
}

func NewPriceMustBeAboveZeroError(key AssetKey) error {
	return &LedgerError{Err: ErrPriceMustBeAboveZero, Asset: key}
}

func NewNotApprovedError(key AssetKey) error {
	return &LedgerError{Err: ErrNotApprovedForMarketplace, Asset: key}
}

func NewNotEnoughFundsError(key AssetKey, price decimal.Decimal) error {
	return &LedgerError{Err: ErrNotEnoughFunds, Asset: key, Price: price}
}

func NewNoProceedsError(account string) error {
	return &LedgerError{Err: ErrNoProceeds, Account: account}
}

func NewTransferFailedError(account string, cause error) error {
	return &LedgerError{Err: ErrTransferFailed, Account: account, Cause: cause}
}

func NewAssetTransferFailedError(key AssetKey, to string, cause error) error {
	return &LedgerError{Err: ErrTransferFailed, Asset: key, Account: to, Cause: cause}
}
