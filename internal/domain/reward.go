package domain

import "time"

// ClaimStatus is the terminal state of a single reward claim.
type ClaimStatus string

const (
	ClaimStatusConfirmed ClaimStatus = "confirmed"
	ClaimStatusFailed    ClaimStatus = "failed"
)

// ClaimRecord is one entry in an owner's claim history. Records are
// append-only; the newest record is first.
type ClaimRecord struct {
	ID            string      `json:"id"`
	Amount        float64     `json:"amount"` // FLR
	Timestamp     time.Time   `json:"timestamp"`
	TxHash        string      `json:"txHash"`
	Status        ClaimStatus `json:"status"`
	Error         string      `json:"error,omitempty"`
	PayoutAddress string      `json:"payoutAddress"`
}

// RewardLedgerEntry is the per-owner reward bookkeeping. Available and
// Pending are recomputed figures; Claimed and History only ever grow.
type RewardLedgerEntry struct {
	Owner     string        `json:"owner"`
	Available float64       `json:"available"` // claimable now, FLR
	Pending   float64       `json:"pending"`   // projected at term, net of lifetime claims
	Claimed   float64       `json:"claimed"`   // lifetime total
	History   []ClaimRecord `json:"history"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// RewardFigures is the pure output of one accrual computation.
type RewardFigures struct {
	Available float64
	Pending   float64
}
