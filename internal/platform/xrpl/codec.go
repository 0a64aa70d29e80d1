package xrpl

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/flarexfi/flarestake/internal/crypto"
)

// Hash prefixes from the ledger's canonical binary format.
var (
	prefixTxSign = []byte{0x53, 0x54, 0x58, 0x00} // "STX\0", single-signer signing data
	prefixTxID   = []byte{0x54, 0x58, 0x4E, 0x00} // "TXN\0", transaction hash
)

// tfFullyCanonicalSig requires the ledger to reject malleable signatures.
const tfFullyCanonicalSig uint32 = 0x80000000

// paymentTxType is the TransactionType code for a Payment.
const paymentTxType uint16 = 0

// Payment is the one transaction shape this system ever signs: a payout
// from the pool wallet. Amounts are drops.
type Payment struct {
	Account            string
	Destination        string
	AmountDrops        int64
	FeeDrops           int64
	Sequence           uint32
	LastLedgerSequence uint32
	Memos              []Memo
	SigningPubKey      []byte
	TxnSignature       []byte
}

// field identifiers, listed in canonical (type code, field code) order for
// the fields a Payment carries. Serialization must emit fields in exactly
// this order or validators reject the blob.
const (
	fieldTransactionType    = 0x12 // UInt16 2
	fieldFlags              = 0x22 // UInt32 2
	fieldSequence           = 0x24 // UInt32 4
	fieldAmount             = 0x61 // Amount 1
	fieldFee                = 0x68 // Amount 8
	fieldSigningPubKey      = 0x73 // Blob 3
	fieldTxnSignature       = 0x74 // Blob 4
	fieldMemoType           = 0x7C // Blob 12
	fieldMemoData           = 0x7D // Blob 13
	fieldMemoFormat         = 0x7E // Blob 14
	fieldAccount            = 0x81 // AccountID 1
	fieldDestination        = 0x83 // AccountID 3
	fieldMemoObject         = 0xEA // STObject 10
	fieldObjectEnd          = 0xE1 // STObject 1
	fieldMemosArray         = 0xF9 // STArray 9
	fieldArrayEnd           = 0xF1 // STArray 1
)

// lastLedgerSequenceHeader is the two-byte header for LastLedgerSequence
// (UInt32, field code 27 does not fit the one-byte form).
var lastLedgerSequenceHeader = []byte{0x20, 0x1B}

// SigningData serializes the payment without its signature and prepends the
// signing prefix. Feeding this to the wallet's signer yields TxnSignature.
func (p Payment) SigningData() ([]byte, error) {
	body, err := p.serialize(false)
	if err != nil {
		return nil, err
	}
	return append(append([]byte{}, prefixTxSign...), body...), nil
}

// Blob serializes the fully signed transaction for submission.
func (p Payment) Blob() ([]byte, error) {
	if len(p.TxnSignature) == 0 {
		return nil, fmt.Errorf("xrpl: cannot build blob of unsigned payment")
	}
	return p.serialize(true)
}

// Hash computes the canonical transaction ID of the signed blob.
func (p Payment) Hash() (string, error) {
	blob, err := p.Blob()
	if err != nil {
		return "", err
	}
	digest := crypto.Sha512Half(append(append([]byte{}, prefixTxID...), blob...))
	return strings.ToUpper(hex.EncodeToString(digest)), nil
}

func (p Payment) serialize(withSignature bool) ([]byte, error) {
	account, err := crypto.DecodeAccountID(p.Account)
	if err != nil {
		return nil, err
	}
	destination, err := crypto.DecodeAccountID(p.Destination)
	if err != nil {
		return nil, err
	}

	var out []byte

	out = append(out, fieldTransactionType)
	out = binary.BigEndian.AppendUint16(out, paymentTxType)

	out = append(out, fieldFlags)
	out = binary.BigEndian.AppendUint32(out, tfFullyCanonicalSig)

	out = append(out, fieldSequence)
	out = binary.BigEndian.AppendUint32(out, p.Sequence)

	if p.LastLedgerSequence > 0 {
		out = append(out, lastLedgerSequenceHeader...)
		out = binary.BigEndian.AppendUint32(out, p.LastLedgerSequence)
	}

	out = append(out, fieldAmount)
	out = appendXRPAmount(out, p.AmountDrops)

	out = append(out, fieldFee)
	out = appendXRPAmount(out, p.FeeDrops)

	out = append(out, fieldSigningPubKey)
	out = appendVL(out, p.SigningPubKey)

	if withSignature {
		out = append(out, fieldTxnSignature)
		out = appendVL(out, p.TxnSignature)
	}

	out = append(out, fieldAccount)
	out = appendVL(out, account)

	out = append(out, fieldDestination)
	out = appendVL(out, destination)

	if len(p.Memos) > 0 {
		out = append(out, fieldMemosArray)
		for _, m := range p.Memos {
			out = append(out, fieldMemoObject)
			if out, err = appendHexBlob(out, fieldMemoType, m.MemoType); err != nil {
				return nil, err
			}
			if out, err = appendHexBlob(out, fieldMemoData, m.MemoData); err != nil {
				return nil, err
			}
			if out, err = appendHexBlob(out, fieldMemoFormat, m.MemoFormat); err != nil {
				return nil, err
			}
			out = append(out, fieldObjectEnd)
		}
		out = append(out, fieldArrayEnd)
	}

	return out, nil
}

// appendXRPAmount encodes a native amount: 62 bits of drops with the
// "not an issued currency, positive" marker bit set.
func appendXRPAmount(out []byte, drops int64) []byte {
	return binary.BigEndian.AppendUint64(out, uint64(drops)|0x4000000000000000)
}

// appendVL writes a variable-length prefix followed by the data. Lengths up
// to 192 use one byte; up to 12480 two bytes; anything larger three.
func appendVL(out, data []byte) []byte {
	n := len(data)
	switch {
	case n <= 192:
		out = append(out, byte(n))
	case n <= 12480:
		n -= 193
		out = append(out, byte(193+(n>>8)), byte(n&0xFF))
	default:
		n -= 12481
		out = append(out, byte(241+(n>>16)), byte((n>>8)&0xFF), byte(n&0xFF))
	}
	return append(out, data...)
}

func appendHexBlob(out []byte, header byte, hexData string) ([]byte, error) {
	if hexData == "" {
		return out, nil
	}
	raw, err := hex.DecodeString(hexData)
	if err != nil {
		return nil, fmt.Errorf("xrpl: memo field is not valid hex: %w", err)
	}
	out = append(out, header)
	return appendVL(out, raw), nil
}

// UnsignedPayment is the JSON shape handed back to a client for signing in
// its own wallet (the stake flow: the user pays the pool, we never hold
// their key).
type UnsignedPayment struct {
	TransactionType string        `json:"TransactionType"`
	Destination     string        `json:"Destination"`
	Amount          string        `json:"Amount"` // drops
	Memos           []MemoWrapper `json:"Memos"`
}

// NewUnsignedPayment builds a client-signable payment of the given XRP
// amount to the destination, carrying the supplied memo.
func NewUnsignedPayment(destination string, amountXRP float64, m Memo) UnsignedPayment {
	return UnsignedPayment{
		TransactionType: "Payment",
		Destination:     destination,
		Amount:          strconv.FormatInt(int64(amountXRP*DropsPerXRP), 10),
		Memos:           []MemoWrapper{{Memo: m}},
	}
}
