package domain

import "time"

// PositionStatus tracks where a stake position is in its lifecycle.
type PositionStatus string

const (
	// PositionStatusPendingSignature marks a stake intent that has been
	// handed back to the user for signing but not yet observed on the
	// ledger. It exists only in the local bookkeeping view; the ledger
	// view only ever has active (inferred) or absent (closed).
	PositionStatusPendingSignature PositionStatus = "pending_signature"

	PositionStatusActive PositionStatus = "active"
	PositionStatusClosed PositionStatus = "closed"
)

// StakePosition is one fixed-amount, fixed-term stake. The ledger is the
// source of truth for its existence: a position is active iff an open event
// for its ID exists on the ledger and no close event references that ID.
type StakePosition struct {
	ID             string         `json:"id"`
	Owner          string         `json:"owner"`
	PoolID         string         `json:"poolId"`
	PoolName       string         `json:"poolName,omitempty"`
	Amount         float64        `json:"amount"` // XRP
	LockPeriodDays int            `json:"lockPeriod"`
	APY            float64        `json:"apy"` // percent, fixed at open time
	StartDate      time.Time      `json:"startDate"`
	EndDate        time.Time      `json:"endDate"`
	Status         PositionStatus `json:"status"`
	SourceTxHash   string         `json:"txHash"`
	LedgerIndex    uint32         `json:"ledgerIndex,omitempty"`
}

// IsActive reports whether the position contributes to reward accrual.
func (p StakePosition) IsActive() bool {
	return p.Status == PositionStatusActive
}

// Elapsed returns the number of seconds of the lock term that have passed
// at the given instant, clamped to [0, total term].
func (p StakePosition) Elapsed(now time.Time) time.Duration {
	if now.Before(p.StartDate) {
		return 0
	}
	if now.After(p.EndDate) {
		return p.EndDate.Sub(p.StartDate)
	}
	return now.Sub(p.StartDate)
}

// CloseEvent records a payout from the pool wallet that closed a position,
// either user-initiated or issued by the automatic unstake processor.
type CloseEvent struct {
	PositionID     string    `json:"positionId"`
	OriginalAmount float64   `json:"originalAmount"`
	ReturnedAmount float64   `json:"returnedAmount"`
	PenaltyApplied bool      `json:"penaltyApplied"`
	Timestamp      time.Time `json:"timestamp"`
	SourceTxHash   string    `json:"txHash"`
}
