package xrpl

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flarexfi/flarestake/internal/crypto"
)

const testAccount = "rHb9CJAWyB4rj91VRWn96DkukG4bwdtyTh"

func testDestination(t *testing.T) string {
	t.Helper()
	id := bytes.Repeat([]byte{0xAB}, 20)
	return crypto.EncodeAccountID(id)
}

func testPayment(t *testing.T) Payment {
	t.Helper()
	return Payment{
		Account:            testAccount,
		Destination:        testDestination(t),
		AmountDrops:        237_500_000,
		FeeDrops:           12,
		Sequence:           7,
		LastLedgerSequence: 1000,
		SigningPubKey:      bytes.Repeat([]byte{0x02}, 33),
	}
}

func TestSigningDataLayout(t *testing.T) {
	p := testPayment(t)
	data, err := p.SigningData()
	require.NoError(t, err)

	// Signing prefix, then the canonical field sequence.
	require.True(t, bytes.HasPrefix(data, []byte("STX\x00")))
	body := data[4:]

	// TransactionType = Payment (0).
	assert.Equal(t, []byte{0x12, 0x00, 0x00}, body[:3])

	// Flags = tfFullyCanonicalSig.
	assert.Equal(t, byte(0x22), body[3])
	assert.Equal(t, uint32(0x80000000), binary.BigEndian.Uint32(body[4:8]))

	// Sequence.
	assert.Equal(t, byte(0x24), body[8])
	assert.Equal(t, uint32(7), binary.BigEndian.Uint32(body[9:13]))

	// LastLedgerSequence uses the two-byte header.
	assert.Equal(t, []byte{0x20, 0x1B}, body[13:15])
	assert.Equal(t, uint32(1000), binary.BigEndian.Uint32(body[15:19]))

	// Amount with the native-positive marker bit.
	assert.Equal(t, byte(0x61), body[19])
	assert.Equal(t, uint64(237_500_000)|0x4000000000000000, binary.BigEndian.Uint64(body[20:28]))

	// Fee.
	assert.Equal(t, byte(0x68), body[28])
	assert.Equal(t, uint64(12)|0x4000000000000000, binary.BigEndian.Uint64(body[29:37]))

	// SigningPubKey as a 33-byte VL blob.
	assert.Equal(t, byte(0x73), body[37])
	assert.Equal(t, byte(33), body[38])

	// Account and Destination as 20-byte VL account IDs; no signature field
	// in signing data.
	rest := body[39+33:]
	assert.Equal(t, byte(0x81), rest[0])
	assert.Equal(t, byte(20), rest[1])
	assert.Equal(t, byte(0x83), rest[22])
	assert.Equal(t, byte(20), rest[23])
	assert.Len(t, rest, 2+20+2+20)
	assert.NotContains(t, string(body), string(byte(0x74)))
}

func TestSigningDataOmitsZeroLastLedgerSequence(t *testing.T) {
	p := testPayment(t)
	p.LastLedgerSequence = 0
	data, err := p.SigningData()
	require.NoError(t, err)
	assert.NotContains(t, string(data), string([]byte{0x20, 0x1B}))
}

func TestBlobRequiresSignature(t *testing.T) {
	p := testPayment(t)
	_, err := p.Blob()
	assert.Error(t, err)
}

func TestBlobIncludesSignature(t *testing.T) {
	p := testPayment(t)
	p.TxnSignature = bytes.Repeat([]byte{0x30}, 71)

	blob, err := p.Blob()
	require.NoError(t, err)

	signing, err := p.SigningData()
	require.NoError(t, err)

	// The blob is the signing body plus the TxnSignature field (header,
	// length prefix, 71 bytes).
	assert.Equal(t, len(signing)-4+1+1+71, len(blob))
	assert.True(t, bytes.Contains(blob, append([]byte{0x74, 71}, p.TxnSignature...)))
}

func TestBlobMemoFraming(t *testing.T) {
	p := testPayment(t)
	p.TxnSignature = []byte{0x30, 0x01}
	p.Memos = []Memo{{
		MemoType:   strings.ToUpper(hex.EncodeToString([]byte("XrpFlrUnstaking"))),
		MemoData:   strings.ToUpper(hex.EncodeToString([]byte(`{"action":"unstake_processed"}`))),
		MemoFormat: strings.ToUpper(hex.EncodeToString([]byte("application/json"))),
	}}

	blob, err := p.Blob()
	require.NoError(t, err)

	// Array open, object open, three inner blobs, object close, array close.
	// The account ID can contain 0xF9, so take the last occurrence; memo
	// content itself is ASCII.
	arrStart := bytes.LastIndexByte(blob, 0xF9)
	require.GreaterOrEqual(t, arrStart, 0)
	tail := blob[arrStart:]
	assert.Equal(t, byte(0xEA), tail[1])
	assert.Equal(t, byte(0x7C), tail[2])
	assert.Contains(t, string(tail), "XrpFlrUnstaking")
	assert.Equal(t, byte(0xF1), tail[len(tail)-1])
	assert.Equal(t, byte(0xE1), tail[len(tail)-2])
}

func TestBlobEmptyMemoFieldSkipped(t *testing.T) {
	p := testPayment(t)
	p.TxnSignature = []byte{0x30}
	p.Memos = []Memo{{
		MemoType: strings.ToUpper(hex.EncodeToString([]byte("XrpFlrUnstaking"))),
		// MemoData and MemoFormat intentionally empty.
	}}

	blob, err := p.Blob()
	require.NoError(t, err)
	assert.NotContains(t, string(blob), string(byte(0x7D)))
}

func TestHashIsUppercaseSha512Half(t *testing.T) {
	p := testPayment(t)
	p.TxnSignature = []byte{0x30, 0x44}

	hash, err := p.Hash()
	require.NoError(t, err)
	require.Len(t, hash, 64)
	assert.Equal(t, strings.ToUpper(hash), hash)

	blob, err := p.Blob()
	require.NoError(t, err)
	want := strings.ToUpper(hex.EncodeToString(crypto.Sha512Half(append([]byte("TXN\x00"), blob...))))
	assert.Equal(t, want, hash)
}

func TestAppendVLBoundaries(t *testing.T) {
	cases := []struct {
		n      int
		prefix []byte
	}{
		{0, []byte{0}},
		{1, []byte{1}},
		{192, []byte{192}},
		{193, []byte{193, 0}},
		{12480, []byte{240, 255}},
		{12481, []byte{241, 0, 0}},
	}
	for _, tc := range cases {
		data := make([]byte, tc.n)
		out := appendVL(nil, data)
		require.Len(t, out, len(tc.prefix)+tc.n, "n=%d", tc.n)
		assert.Equal(t, tc.prefix, out[:len(tc.prefix)], "n=%d", tc.n)
	}
}

func TestNewUnsignedPayment(t *testing.T) {
	m := Memo{MemoType: "AB", MemoData: "CD"}
	up := NewUnsignedPayment(testAccount, 250.5, m)
	assert.Equal(t, "Payment", up.TransactionType)
	assert.Equal(t, testAccount, up.Destination)
	assert.Equal(t, "250500000", up.Amount)
	require.Len(t, up.Memos, 1)
	assert.Equal(t, m, up.Memos[0].Memo)
}

func TestDropsConversions(t *testing.T) {
	assert.Equal(t, 1.5, DropsToXRP("1500000"))
	assert.Equal(t, 0.0, DropsToXRP("not-a-number"))
	assert.Equal(t, "1500000", XRPToDrops(1.5))
}
