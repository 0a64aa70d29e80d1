package xrpl

import (
	"encoding/json"
	"strconv"
	"time"
)

// rippleEpochOffset converts XRPL ledger time (seconds since 2000-01-01) to
// Unix time.
const rippleEpochOffset = 946684800

// DropsPerXRP is the number of drops in one XRP.
const DropsPerXRP = 1_000_000

// Memo is the three-field memo attached to a payment. All fields are
// hex-encoded UTF-8 on the wire.
type Memo struct {
	MemoType   string `json:"MemoType,omitempty"`
	MemoData   string `json:"MemoData,omitempty"`
	MemoFormat string `json:"MemoFormat,omitempty"`
}

// MemoWrapper matches the {"Memo": {...}} nesting of the XRPL JSON format.
type MemoWrapper struct {
	Memo Memo `json:"Memo"`
}

// Transaction is the subset of an XRPL transaction that the staking system
// reads. Amount is a string in drops for XRP payments (issued-currency
// amounts arrive as objects and are ignored via custom decoding).
type Transaction struct {
	TransactionType string        `json:"TransactionType"`
	Account         string        `json:"Account"`
	Destination     string        `json:"Destination"`
	Amount          string        `json:"Amount"`
	Memos           []MemoWrapper `json:"Memos"`
	Date            int64         `json:"date"`
	Hash            string        `json:"hash"`
	LedgerIndex     uint32        `json:"ledger_index"`
	Sequence        uint32        `json:"Sequence"`
	Fee             string        `json:"Fee"`
}

// UnmarshalJSON tolerates issued-currency Amount objects by leaving Amount
// empty when it is not a plain drops string.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	type alias Transaction
	aux := struct {
		Amount json.RawMessage `json:"Amount"`
		*alias
	}{alias: (*alias)(t)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.Amount) > 0 && aux.Amount[0] == '"' {
		var s string
		if err := json.Unmarshal(aux.Amount, &s); err != nil {
			return err
		}
		t.Amount = s
	}
	return nil
}

// IsPayment reports whether the transaction is a Payment.
func (t Transaction) IsPayment() bool {
	return t.TransactionType == "Payment"
}

// AmountXRP returns the delivered amount in XRP, or 0 when the amount is
// absent or not an XRP amount.
func (t Transaction) AmountXRP() float64 {
	return DropsToXRP(t.Amount)
}

// Timestamp converts the ledger close time to Unix time.
func (t Transaction) Timestamp() time.Time {
	return time.Unix(t.Date+rippleEpochOffset, 0).UTC()
}

// DropsToXRP parses a drops string into XRP. Malformed input yields 0.
func DropsToXRP(drops string) float64 {
	n, err := strconv.ParseInt(drops, 10, 64)
	if err != nil {
		return 0
	}
	return float64(n) / DropsPerXRP
}

// XRPToDrops converts an XRP amount to a drops string, truncating below
// one drop.
func XRPToDrops(xrp float64) string {
	return strconv.FormatInt(int64(xrp*DropsPerXRP), 10)
}

// TxEntry is one element of an account_tx response.
type TxEntry struct {
	Tx        Transaction     `json:"tx"`
	Meta      json.RawMessage `json:"meta"`
	Validated bool            `json:"validated"`
}

// accountTxResult is the result payload of the account_tx command.
type accountTxResult struct {
	Account      string    `json:"account"`
	Transactions []TxEntry `json:"transactions"`
	Marker       any       `json:"marker,omitempty"`
}

// accountInfoResult is the result payload of the account_info command.
type accountInfoResult struct {
	AccountData struct {
		Account  string `json:"Account"`
		Balance  string `json:"Balance"`
		Sequence uint32 `json:"Sequence"`
	} `json:"account_data"`
	LedgerCurrentIndex uint32 `json:"ledger_current_index"`
}

// feeResult is the result payload of the fee command.
type feeResult struct {
	Drops struct {
		BaseFee       string `json:"base_fee"`
		MinimumFee    string `json:"minimum_fee"`
		OpenLedgerFee string `json:"open_ledger_fee"`
	} `json:"drops"`
	LedgerCurrentIndex uint32 `json:"ledger_current_index"`
}

// submitResult is the result payload of the submit command.
type submitResult struct {
	EngineResult        string `json:"engine_result"`
	EngineResultCode    int    `json:"engine_result_code"`
	EngineResultMessage string `json:"engine_result_message"`
	Accepted            bool   `json:"accepted"`
	TxJSON              struct {
		Hash string `json:"hash"`
	} `json:"tx_json"`
}

// txResult is the result payload of the tx command.
type txResult struct {
	Hash        string `json:"hash"`
	LedgerIndex uint32 `json:"ledger_index"`
	Validated   bool   `json:"validated"`
	Meta        struct {
		TransactionResult string `json:"TransactionResult"`
	} `json:"meta"`
}

// ledgerResult is the result payload of the ledger_current command.
type ledgerResult struct {
	LedgerCurrentIndex uint32 `json:"ledger_current_index"`
}
