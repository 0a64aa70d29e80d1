package memo

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flarexfi/flarestake/internal/platform/xrpl"
)

func paymentWithMemo(t *testing.T, memoType string, payload any) xrpl.Transaction {
	t.Helper()
	m, err := Encode(memoType, payload)
	require.NoError(t, err)
	return xrpl.Transaction{
		TransactionType: "Payment",
		Account:         "rUserAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
		Destination:     "rPoolBBBBBBBBBBBBBBBBBBBBBBBBBBBB",
		Amount:          "250000000", // 250 XRP
		Memos:           []xrpl.MemoWrapper{{Memo: m}},
		Date:            800000000,
		Hash:            "ABCDEF0123456789",
		LedgerIndex:     1234,
	}
}

func TestDecodeOpen(t *testing.T) {
	tx := paymentWithMemo(t, TypeStaking, OpenPayload{
		Action:     ActionOpenPosition,
		PositionID: "stake-1",
		PoolID:     "pool2",
		PoolName:   "120-Day Lock",
		Amount:     999999, // memo cannot inflate the staked amount
		LockPeriod: 120,
		APY:        15.6,
		StartDate:  "2026-01-01T00:00:00Z",
		EndDate:    "2026-05-01T00:00:00Z",
	})

	pos, ok := DecodeOpen(tx)
	require.True(t, ok)
	assert.Equal(t, "stake-1", pos.ID)
	assert.Equal(t, tx.Account, pos.Owner)
	assert.Equal(t, "pool2", pos.PoolID)
	assert.Equal(t, "120-Day Lock", pos.PoolName)
	assert.Equal(t, 250.0, pos.Amount, "amount must come from delivered drops, not the memo")
	assert.Equal(t, 120, pos.LockPeriodDays)
	assert.Equal(t, 15.6, pos.APY)
	assert.Equal(t, tx.Timestamp(), pos.StartDate)
	assert.Equal(t, tx.Timestamp().Add(120*24*time.Hour), pos.EndDate)
	assert.Equal(t, tx.Hash, pos.SourceTxHash)
	assert.Equal(t, uint32(1234), pos.LedgerIndex)
}

func TestDecodeOpenDefaults(t *testing.T) {
	tx := paymentWithMemo(t, TypeStaking, OpenPayload{
		Action:     ActionOpenPosition,
		PositionID: "stake-2",
	})

	pos, ok := DecodeOpen(tx)
	require.True(t, ok)
	assert.Equal(t, "default", pos.PoolID)
	assert.Equal(t, 30, pos.LockPeriodDays)
	assert.Equal(t, 12.0, pos.APY)
}

func TestDecodeOpenRewardRateFallback(t *testing.T) {
	tx := paymentWithMemo(t, TypeStaking, OpenPayload{
		Action:     ActionOpenPosition,
		PositionID: "stake-3",
		RewardRate: 9.5,
	})

	pos, ok := DecodeOpen(tx)
	require.True(t, ok)
	assert.Equal(t, 9.5, pos.APY)
}

func TestDecodeOpenFilters(t *testing.T) {
	t.Run("foreign memo type", func(t *testing.T) {
		tx := paymentWithMemo(t, "SomethingElse", OpenPayload{
			Action:     ActionOpenPosition,
			PositionID: "stake-4",
		})
		_, ok := DecodeOpen(tx)
		assert.False(t, ok)
	})

	t.Run("wrong action", func(t *testing.T) {
		tx := paymentWithMemo(t, TypeStaking, OpenPayload{
			Action:     "something_else",
			PositionID: "stake-5",
		})
		_, ok := DecodeOpen(tx)
		assert.False(t, ok)
	})

	t.Run("missing position id", func(t *testing.T) {
		tx := paymentWithMemo(t, TypeStaking, OpenPayload{
			Action: ActionOpenPosition,
		})
		_, ok := DecodeOpen(tx)
		assert.False(t, ok)
	})

	t.Run("zero delivered amount", func(t *testing.T) {
		// An issued-currency payment carries an amount object, which the
		// string Amount field decodes as empty.
		tx := paymentWithMemo(t, TypeStaking, OpenPayload{
			Action:     ActionOpenPosition,
			PositionID: "stake-zero",
		})
		tx.Amount = ""
		_, ok := DecodeOpen(tx)
		assert.False(t, ok)
	})

	t.Run("no memos", func(t *testing.T) {
		tx := xrpl.Transaction{TransactionType: "Payment", Amount: "1000000"}
		_, ok := DecodeOpen(tx)
		assert.False(t, ok)
	})

	t.Run("unparseable payload", func(t *testing.T) {
		tx := xrpl.Transaction{
			TransactionType: "Payment",
			Amount:          "1000000",
			Memos: []xrpl.MemoWrapper{{Memo: xrpl.Memo{
				MemoType: hexUpper(TypeStaking),
				MemoData: "6E6F74206A736F6E", // "not json"
			}}},
		}
		_, ok := DecodeOpen(tx)
		assert.False(t, ok)
	})
}

func TestDecodeOpenFirstDecodableMemoWins(t *testing.T) {
	first, err := Encode(TypeStaking, OpenPayload{Action: ActionOpenPosition, PositionID: "winner"})
	require.NoError(t, err)
	second, err := Encode(TypeStaking, OpenPayload{Action: ActionOpenPosition, PositionID: "loser"})
	require.NoError(t, err)

	tx := xrpl.Transaction{
		TransactionType: "Payment",
		Account:         "rUser",
		Amount:          "1000000",
		Memos: []xrpl.MemoWrapper{
			{Memo: xrpl.Memo{MemoType: "ZZ"}}, // not even hex
			{Memo: first},
			{Memo: second},
		},
	}

	pos, ok := DecodeOpen(tx)
	require.True(t, ok)
	assert.Equal(t, "winner", pos.ID)
}

func TestDecodeClose(t *testing.T) {
	tx := paymentWithMemo(t, TypeUnstaking, ClosePayload{
		Action:         ActionUnstakeProcessed,
		PositionID:     "stake-1",
		OriginalAmount: 250,
		ReturnedAmount: 237.5,
		PenaltyApplied: true,
		IsEarlyUnstake: true,
	})

	ev, ok := DecodeClose(tx)
	require.True(t, ok)
	assert.Equal(t, "stake-1", ev.PositionID)
	assert.Equal(t, 250.0, ev.OriginalAmount)
	assert.Equal(t, 237.5, ev.ReturnedAmount)
	assert.True(t, ev.PenaltyApplied)
	assert.Equal(t, tx.Hash, ev.SourceTxHash)
}

func TestDecodeCloseAutoUnstake(t *testing.T) {
	tx := paymentWithMemo(t, TypeAutoUnstake, ClosePayload{
		Action:     ActionClosePosition,
		PositionID: "stake-9",
	})

	ev, ok := DecodeClose(tx)
	require.True(t, ok)
	assert.Equal(t, "stake-9", ev.PositionID)
	// Amounts fall back to the delivered payment amount.
	assert.Equal(t, 250.0, ev.OriginalAmount)
	assert.Equal(t, 250.0, ev.ReturnedAmount)
}

func TestDecodeCloseIgnoresOpenMemos(t *testing.T) {
	tx := paymentWithMemo(t, TypeStaking, OpenPayload{
		Action:     ActionOpenPosition,
		PositionID: "stake-1",
	})
	_, ok := DecodeClose(tx)
	assert.False(t, ok)
}

func TestEncodeFieldsAreUppercaseHex(t *testing.T) {
	m, err := Encode(TypeStaking, OpenPayload{Action: ActionOpenPosition, PositionID: "x"})
	require.NoError(t, err)

	typ, err := hex.DecodeString(m.MemoType)
	require.NoError(t, err)
	assert.Equal(t, TypeStaking, string(typ))

	format, err := hex.DecodeString(m.MemoFormat)
	require.NoError(t, err)
	assert.Equal(t, Format, string(format))
}
