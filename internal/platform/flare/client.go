// Package flare sends reward payouts as native FLR transfers on the Flare
// network.
package flare

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// weiPerFLR scales a whole-token amount to wei.
var weiPerFLR = big.NewInt(1e18)

const (
	transferGasLimit = 21000
	receiptInterval  = 3 * time.Second
	receiptTimeout   = 2 * time.Minute
)

// Client holds the RPC connection and the admin key that funds payouts.
type Client struct {
	eth     *ethclient.Client
	chainID *big.Int
	key     *ecdsa.PrivateKey
	from    common.Address
	logger  *slog.Logger
}

// NewClient dials the RPC endpoint and loads the admin key from its hex
// form.
func NewClient(ctx context.Context, rpcURL string, chainID int64, adminKeyHex string, logger *slog.Logger) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("flare: dial %s: %w", rpcURL, err)
	}
	key, err := ethcrypto.HexToECDSA(adminKeyHex)
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("flare: parse admin key: %w", err)
	}
	return &Client{
		eth:     eth,
		chainID: big.NewInt(chainID),
		key:     key,
		from:    ethcrypto.PubkeyToAddress(key.PublicKey),
		logger:  logger.With("component", "flare"),
	}, nil
}

// Close releases the RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}

// AdminAddress returns the payout wallet address.
func (c *Client) AdminAddress() string {
	return c.from.Hex()
}

// Balance returns the payout wallet balance in FLR.
func (c *Client) Balance(ctx context.Context) (float64, error) {
	wei, err := c.eth.BalanceAt(ctx, c.from, nil)
	if err != nil {
		return 0, fmt.Errorf("flare: balance: %w", err)
	}
	flr, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), new(big.Float).SetInt(weiPerFLR)).Float64()
	return flr, nil
}

// SendReward transfers amount FLR to the recipient and waits for the
// receipt. Returns the transaction hash.
func (c *Client) SendReward(ctx context.Context, recipient string, amount float64) (string, error) {
	if !common.IsHexAddress(recipient) {
		return "", fmt.Errorf("flare: invalid recipient address %q", recipient)
	}
	to := common.HexToAddress(recipient)

	nonce, err := c.eth.PendingNonceAt(ctx, c.from)
	if err != nil {
		return "", fmt.Errorf("flare: nonce: %w", err)
	}
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("flare: gas price: %w", err)
	}

	wei, _ := new(big.Float).Mul(big.NewFloat(amount), new(big.Float).SetInt(weiPerFLR)).Int(nil)

	tx := types.NewTransaction(nonce, to, wei, transferGasLimit, gasPrice, nil)
	signed, err := types.SignTx(tx, types.NewEIP155Signer(c.chainID), c.key)
	if err != nil {
		return "", fmt.Errorf("flare: sign: %w", err)
	}

	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("flare: send: %w", err)
	}
	hash := signed.Hash().Hex()
	c.logger.InfoContext(ctx, "payout submitted", "tx", hash, "recipient", recipient, "amount", amount)

	if err := c.waitMined(ctx, signed.Hash()); err != nil {
		return hash, err
	}
	return hash, nil
}

func (c *Client) waitMined(ctx context.Context, hash common.Hash) error {
	deadline := time.Now().Add(receiptTimeout)
	ticker := time.NewTicker(receiptInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.eth.TransactionReceipt(ctx, hash)
		if err == nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return fmt.Errorf("flare: tx %s reverted", hash.Hex())
			}
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("flare: tx %s not mined within %s", hash.Hex(), receiptTimeout)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("flare: wait for %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}
