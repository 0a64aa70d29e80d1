package domain

import "time"

// UnstakeStatus is the state of an unstake request. Terminal states are
// never revived; a failed request requires a new client-issued request.
type UnstakeStatus string

const (
	UnstakeStatusProcessing UnstakeStatus = "processing"
	UnstakeStatusCompleted  UnstakeStatus = "completed"
	UnstakeStatusFailed     UnstakeStatus = "failed"
)

// UnstakeResult carries the payout details of a processed unstake.
type UnstakeResult struct {
	TxHash            string  `json:"txHash"`
	OriginalAmount    float64 `json:"originalAmount"`
	AmountReturned    float64 `json:"amountReturned"`
	PenaltyApplied    bool    `json:"penaltyApplied"`
	PenaltyPercentage float64 `json:"penaltyPercentage"`
	PenaltyAmount     float64 `json:"penaltyAmount"`
	IsEarlyUnstake    bool    `json:"isEarlyUnstake"`
	Message           string  `json:"message"`
}

// UnstakeRequest tracks one withdrawal request through the processor state
// machine: processing -> completed | failed.
type UnstakeRequest struct {
	RequestID string         `json:"requestId"`
	StakeID   string         `json:"stakeId"`
	Owner     string         `json:"owner"`
	Amount    float64        `json:"amount"` // original staked amount, XRP
	Status    UnstakeStatus  `json:"status"`
	TxHash    string         `json:"txHash,omitempty"`
	Result    *UnstakeResult `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Terminal reports whether the request has reached a final state.
func (r UnstakeRequest) Terminal() bool {
	return r.Status == UnstakeStatusCompleted || r.Status == UnstakeStatusFailed
}
