package xrpl

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/flarexfi/flarestake/internal/domain"
)

const (
	dialTimeout    = 10 * time.Second
	requestTimeout = 20 * time.Second
	writeTimeout   = 10 * time.Second
)

// Client speaks the ledger's WebSocket JSON-RPC protocol. One goroutine owns
// the read side and routes responses to waiting callers by request ID; the
// connection is re-dialed lazily after a failure.
type Client struct {
	url    string
	logger *slog.Logger

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[uint64]chan json.RawMessage

	nextID atomic.Uint64
}

// NewClient returns a client for the given WebSocket endpoint. No connection
// is made until the first request.
func NewClient(url string, logger *slog.Logger) *Client {
	return &Client{
		url:     url,
		logger:  logger.With("component", "xrpl"),
		pending: make(map[uint64]chan json.RawMessage),
	}
}

// Close tears down the connection if one is open.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) ensureConn(ctx context.Context) (*websocket.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn, nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("xrpl: dial %s: %w", c.url, err)
	}
	c.conn = conn
	go c.readLoop(conn)
	c.logger.InfoContext(ctx, "connected", "url", c.url)
	return conn, nil
}

// readLoop routes every inbound frame to the caller waiting on its ID.
// Exits when the connection dies, failing all in-flight requests.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.failAll(conn, err)
			return
		}
		var envelope struct {
			ID uint64 `json:"id"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			continue
		}
		c.mu.Lock()
		ch, ok := c.pending[envelope.ID]
		if ok {
			delete(c.pending, envelope.ID)
		}
		c.mu.Unlock()
		if ok {
			ch <- json.RawMessage(data)
		}
	}
}

func (c *Client) failAll(conn *websocket.Conn, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == conn {
		c.conn.Close()
		c.conn = nil
	}
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	c.logger.Warn("connection lost", "error", err)
}

// call performs one command round-trip and decodes the result payload
// into out.
func (c *Client) call(ctx context.Context, command string, params map[string]any, out any) error {
	conn, err := c.ensureConn(ctx)
	if err != nil {
		return err
	}

	id := c.nextID.Add(1)
	req := map[string]any{"id": id, "command": command}
	for k, v := range params {
		req[k] = v
	}

	ch := make(chan json.RawMessage, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()

	c.mu.Lock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	writeErr := conn.WriteJSON(req)
	c.mu.Unlock()
	if writeErr != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		c.failAll(conn, writeErr)
		return fmt.Errorf("xrpl: %s: write: %w", command, writeErr)
	}

	timer := time.NewTimer(requestTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return fmt.Errorf("xrpl: %s: %w", command, ctx.Err())
	case <-timer.C:
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return fmt.Errorf("xrpl: %s: timed out", command)
	case raw, ok := <-ch:
		if !ok {
			return fmt.Errorf("xrpl: %s: %w", command, domain.ErrWSDisconnect)
		}
		var envelope struct {
			Status string          `json:"status"`
			Error  string          `json:"error"`
			Result json.RawMessage `json:"result"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return fmt.Errorf("xrpl: %s: decode envelope: %w", command, err)
		}
		if envelope.Status == "error" {
			return fmt.Errorf("xrpl: %s: server error %q: %w", command, envelope.Error, domain.ErrLedgerUnavailable)
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("xrpl: %s: decode result: %w", command, err)
		}
		return nil
	}
}

// AccountTx fetches the full transaction history of an account, oldest
// bounds unlimited, newest first.
func (c *Client) AccountTx(ctx context.Context, account string, limit int) ([]TxEntry, error) {
	var result accountTxResult
	err := c.call(ctx, "account_tx", map[string]any{
		"account":          account,
		"ledger_index_min": -1,
		"ledger_index_max": -1,
		"limit":            limit,
		"forward":          false,
	}, &result)
	if err != nil {
		return nil, err
	}
	return result.Transactions, nil
}

// AccountInfo returns the current sequence and balance of an account.
func (c *Client) AccountInfo(ctx context.Context, account string) (AccountInfo, error) {
	var result accountInfoResult
	err := c.call(ctx, "account_info", map[string]any{
		"account":      account,
		"ledger_index": "current",
	}, &result)
	if err != nil {
		return AccountInfo{}, err
	}
	balance, _ := strconv.ParseInt(result.AccountData.Balance, 10, 64)
	return AccountInfo{
		Sequence:     result.AccountData.Sequence,
		BalanceDrops: balance,
	}, nil
}

// FeeDrops returns the open-ledger base fee in drops.
func (c *Client) FeeDrops(ctx context.Context) (int64, error) {
	var result feeResult
	if err := c.call(ctx, "fee", nil, &result); err != nil {
		return 0, err
	}
	fee, err := strconv.ParseInt(result.Drops.OpenLedgerFee, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("xrpl: fee: parse %q: %w", result.Drops.OpenLedgerFee, err)
	}
	return fee, nil
}

// LedgerCurrent returns the in-progress ledger index.
func (c *Client) LedgerCurrent(ctx context.Context) (uint32, error) {
	var result ledgerResult
	if err := c.call(ctx, "ledger_current", nil, &result); err != nil {
		return 0, err
	}
	return result.LedgerCurrentIndex, nil
}

// Submit pushes a signed blob to the open ledger. A non-tes preliminary
// result code is returned as ErrTxRejected.
func (c *Client) Submit(ctx context.Context, blob []byte) (string, error) {
	var result submitResult
	err := c.call(ctx, "submit", map[string]any{
		"tx_blob": strings.ToUpper(hex.EncodeToString(blob)),
	}, &result)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(result.EngineResult, "tes") && result.EngineResult != "terQUEUED" {
		return result.EngineResult, fmt.Errorf("xrpl: submit: %s (%s): %w",
			result.EngineResult, result.EngineResultMessage, domain.ErrTxRejected)
	}
	return result.EngineResult, nil
}

// Tx looks up a transaction by hash. validated reports whether it is in a
// closed ledger.
func (c *Client) Tx(ctx context.Context, hash string) (validated bool, resultCode string, err error) {
	var result txResult
	if err := c.call(ctx, "tx", map[string]any{"transaction": hash}, &result); err != nil {
		return false, "", err
	}
	return result.Validated, result.Meta.TransactionResult, nil
}

// SubmitAndWait submits the blob and polls until the transaction lands in a
// validated ledger or the ledger index passes lastLedgerSequence, after
// which the transaction can never be included.
func (c *Client) SubmitAndWait(ctx context.Context, blob []byte, hash string, lastLedgerSequence uint32) error {
	if _, err := c.Submit(ctx, blob); err != nil {
		return err
	}

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("xrpl: confirm %s: %w", hash, ctx.Err())
		case <-ticker.C:
		}

		validated, code, err := c.Tx(ctx, hash)
		if err == nil && validated {
			if !strings.HasPrefix(code, "tes") {
				return fmt.Errorf("xrpl: tx %s failed with %s: %w", hash, code, domain.ErrTxRejected)
			}
			return nil
		}

		current, idxErr := c.LedgerCurrent(ctx)
		if idxErr == nil && current > lastLedgerSequence {
			return fmt.Errorf("xrpl: tx %s expired past ledger %d: %w", hash, lastLedgerSequence, domain.ErrTxRejected)
		}
	}
}

// AccountInfo is the subset of account state the payout path needs.
type AccountInfo struct {
	Sequence     uint32
	BalanceDrops int64
}
