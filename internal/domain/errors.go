package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrInvalidRequest    = errors.New("invalid request parameters")
	ErrUnknownPool       = errors.New("unknown pool")
	ErrStakeNotActive    = errors.New("stake is not active")
	ErrUnstakeInFlight   = errors.New("unstake already in progress for this stake")
	ErrNoRewards         = errors.New("no rewards available to claim")
	ErrLedgerUnavailable = errors.New("ledger unavailable")
	ErrSigningFailed     = errors.New("signing failed")
	ErrTxRejected        = errors.New("transaction rejected by ledger")
	ErrWSDisconnect      = errors.New("websocket disconnected")
	ErrLockHeld          = errors.New("lock already held")
)
