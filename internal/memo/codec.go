// Package memo encodes and decodes the staking protocol carried in XRPL
// payment memos. Every staking event the system knows about travels inside
// an ordinary payment: an open event rides a payment to the pool address, a
// close event rides the payout from it. Anything that does not parse as a
// staking memo is simply not a staking event.
package memo

import (
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/flarexfi/flarestake/internal/domain"
	"github.com/flarexfi/flarestake/internal/platform/xrpl"
)

// Memo type identifiers, hex-encoded into the MemoType field.
const (
	TypeStaking     = "XrpFlrStaking"
	TypeUnstaking   = "XrpFlrUnstaking"
	TypeAutoUnstake = "XrpFlrAutoUnstake"
)

// Format is the MemoFormat value for every staking memo.
const Format = "application/json"

// Actions carried in the JSON payload.
const (
	ActionOpenPosition     = "open_position"
	ActionClosePosition    = "close_position"
	ActionUnstakeProcessed = "unstake_processed"
)

// OpenPayload is the JSON body of an open_position memo.
type OpenPayload struct {
	Action     string  `json:"action"`
	PositionID string  `json:"positionId"`
	PoolID     string  `json:"poolId"`
	PoolName   string  `json:"poolName,omitempty"`
	Amount     float64 `json:"amount"`
	LockPeriod int     `json:"lockPeriod"`
	APY        float64 `json:"apy"`
	// RewardRate mirrors APY for compatibility with payloads written by
	// earlier clients that used the rewardRate key.
	RewardRate float64 `json:"rewardRate,omitempty"`
	StartDate  string  `json:"startDate"`
	EndDate    string  `json:"endDate"`
	Version    string  `json:"version,omitempty"`
}

// ClosePayload is the JSON body of a close_position / unstake_processed memo.
type ClosePayload struct {
	Action            string  `json:"action"`
	PositionID        string  `json:"positionId"`
	OriginalAmount    float64 `json:"originalAmount"`
	ReturnedAmount    float64 `json:"returnedAmount,omitempty"`
	PenaltyApplied    bool    `json:"penaltyApplied"`
	PenaltyPercentage float64 `json:"penaltyPercentage"`
	PenaltyAmount     float64 `json:"penaltyAmount"`
	IsEarlyUnstake    bool    `json:"isEarlyUnstake"`
	StakeEndDate      string  `json:"stakeEndDate,omitempty"`
	Timestamp         int64   `json:"timestamp"` // unix milliseconds
	Version           string  `json:"version,omitempty"`
}

// Encode hex-encodes a staking memo for attachment to a payment.
func Encode(memoType string, payload any) (xrpl.Memo, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return xrpl.Memo{}, err
	}
	return xrpl.Memo{
		MemoType:   hexUpper(memoType),
		MemoData:   strings.ToUpper(hex.EncodeToString(data)),
		MemoFormat: hexUpper(Format),
	}, nil
}

// DecodeOpen extracts a stake position from an open_position memo on a
// payment to the pool address. It returns ok=false for transactions that
// are not staking events: missing memos, foreign memo types, unparseable
// JSON, or a payload without a position ID. Decode failures are a filter,
// never an error.
//
// Position amount comes from the payment's delivered drops, not the memo,
// so a memo cannot claim more than was actually paid. When more than one
// staking memo is attached, the first decodable one wins.
func DecodeOpen(tx xrpl.Transaction) (domain.StakePosition, bool) {
	for _, w := range tx.Memos {
		if decodeHex(w.Memo.MemoType) != TypeStaking {
			continue
		}
		var p OpenPayload
		if !unmarshalMemoData(w.Memo.MemoData, &p) {
			continue
		}
		if p.Action != ActionOpenPosition || p.PositionID == "" {
			continue
		}
		// Issued-currency payments decode to a zero delivered amount; a
		// stake that paid nothing in XRP is not an open event.
		if tx.AmountXRP() <= 0 {
			continue
		}

		start := tx.Timestamp()
		poolID := p.PoolID
		if poolID == "" {
			poolID = "default"
		}
		lockPeriod := p.LockPeriod
		if lockPeriod == 0 {
			lockPeriod = 30
		}
		apy := p.APY
		if apy == 0 {
			apy = p.RewardRate
		}
		if apy == 0 {
			apy = 12
		}

		return domain.StakePosition{
			ID:             p.PositionID,
			Owner:          tx.Account,
			PoolID:         poolID,
			PoolName:       p.PoolName,
			Amount:         tx.AmountXRP(),
			LockPeriodDays: lockPeriod,
			APY:            apy,
			StartDate:      start,
			EndDate:        start.Add(time.Duration(lockPeriod) * 24 * time.Hour),
			Status:         domain.PositionStatusActive,
			SourceTxHash:   tx.Hash,
			LedgerIndex:    tx.LedgerIndex,
		}, true
	}
	return domain.StakePosition{}, false
}

// DecodeClose extracts a close event from a close_position or
// unstake_processed memo on a payout from the pool address. Same filter
// semantics as DecodeOpen.
func DecodeClose(tx xrpl.Transaction) (domain.CloseEvent, bool) {
	for _, w := range tx.Memos {
		mt := decodeHex(w.Memo.MemoType)
		if mt != TypeUnstaking && mt != TypeAutoUnstake {
			continue
		}
		var p ClosePayload
		if !unmarshalMemoData(w.Memo.MemoData, &p) {
			continue
		}
		if (p.Action != ActionClosePosition && p.Action != ActionUnstakeProcessed) || p.PositionID == "" {
			continue
		}

		original := p.OriginalAmount
		if original == 0 {
			original = tx.AmountXRP()
		}
		returned := p.ReturnedAmount
		if returned == 0 {
			returned = tx.AmountXRP()
		}

		return domain.CloseEvent{
			PositionID:     p.PositionID,
			OriginalAmount: original,
			ReturnedAmount: returned,
			PenaltyApplied: p.PenaltyApplied,
			Timestamp:      tx.Timestamp(),
			SourceTxHash:   tx.Hash,
		}, true
	}
	return domain.CloseEvent{}, false
}

func hexUpper(s string) string {
	return strings.ToUpper(hex.EncodeToString([]byte(s)))
}

// decodeHex returns the UTF-8 decoding of a hex memo field, or "" when the
// field is not valid hex.
func decodeHex(h string) string {
	b, err := hex.DecodeString(h)
	if err != nil {
		return ""
	}
	return string(b)
}

func unmarshalMemoData(memoData string, v any) bool {
	raw, err := hex.DecodeString(memoData)
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, v) == nil
}
