// Package ledger is the generic read/write RPC wrapper for every on-chain
// interaction: it encodes contract calls, optionally applies the encryption
// transform, submits transactions and tracks receipts.
package ledger

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"dex_gateway/internal/config"
	"dex_gateway/internal/domain/entity"
	"dex_gateway/internal/metrics"
	"dex_gateway/internal/port"
	"dex_gateway/internal/registry"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// ErrWriteUnavailable is returned when a write is attempted without a
// configured signing key.
var ErrWriteUnavailable = errors.New("ledger: write capability not available")

type chainConn struct {
	eth *ethclient.Client
	def entity.ChainDefinition
}

// Client implements port.Ledger across all configured chains.
type Client struct {
	logger    *zap.Logger
	cfg       config.RpcClientConfig
	chains    map[int64]*chainConn
	encryptor Encryptor
	key       *ecdsa.PrivateKey
	account   common.Address
}

// NewClient dials every configured chain (walking the fallback RPC list the
// way the balance reads do) and loads the signing key from the environment
// variable named in the wallet config. A missing key leaves the client
// read-only.
func NewClient(reg *registry.Registry, rpcCfg config.RpcClientConfig, walletCfg config.WalletConfig, encryptor Encryptor, logger *zap.Logger) (*Client, error) {
	c := &Client{
		logger:    logger.Named("LedgerClient"),
		cfg:       rpcCfg,
		chains:    make(map[int64]*chainConn),
		encryptor: encryptor,
	}

	connectTimeout := time.Duration(rpcCfg.ConnectTimeoutMs) * time.Millisecond
	for _, def := range reg.Chains() {
		conn, err := dialChain(def, connectTimeout)
		if err != nil {
			return nil, err
		}
		c.chains[def.ChainID] = conn
		c.logger.Info("Connected to chain RPC",
			zap.Int64("chainId", def.ChainID),
			zap.String("chain", def.DisplayName))
	}

	if walletCfg.PrivateKeyEnv != "" {
		if raw := os.Getenv(walletCfg.PrivateKeyEnv); raw != "" {
			key, err := crypto.HexToECDSA(strings.TrimPrefix(raw, "0x"))
			if err != nil {
				return nil, fmt.Errorf("invalid private key in %s: %w", walletCfg.PrivateKeyEnv, err)
			}
			c.key = key
			c.account = crypto.PubkeyToAddress(key.PublicKey)
		}
	}
	if c.key == nil {
		if walletCfg.Address != "" {
			if !common.IsHexAddress(walletCfg.Address) {
				return nil, fmt.Errorf("invalid wallet address %q", walletCfg.Address)
			}
			c.account = common.HexToAddress(walletCfg.Address)
		}
		c.logger.Warn("No signing key configured, running with read capability only")
	}

	return c, nil
}

func dialChain(def entity.ChainDefinition, connectTimeout time.Duration) (*chainConn, error) {
	rpcURLs := append([]string{def.PrimaryRPCURL}, def.FallbackRPCURLs...)
	var lastErr error

	for _, rpcURL := range rpcURLs {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		ethClient, err := ethclient.DialContext(ctx, rpcURL)
		cancel()
		if err == nil {
			return &chainConn{eth: ethClient, def: def}, nil
		}
		lastErr = fmt.Errorf("failed to connect to RPC %s: %w", rpcURL, err)
	}
	return nil, fmt.Errorf("all RPC connection attempts failed for chain %s: %w", def.Name, lastErr)
}

// CanWrite reports whether the write capability is present.
func (c *Client) CanWrite() bool {
	return c.key != nil
}

// Account returns the address the gateway operates for.
func (c *Client) Account() common.Address {
	return c.account
}

func (c *Client) conn(chainID int64) (*chainConn, error) {
	conn, ok := c.chains[chainID]
	if !ok {
		return nil, fmt.Errorf("unsupported chain %d", chainID)
	}
	return conn, nil
}

// Read performs a single eth_call against the contract and unpacks the
// outputs. No retry happens here; the caller owns how failure degrades.
func (c *Client) Read(ctx context.Context, chainID int64, req port.ReadRequest) ([]interface{}, error) {
	conn, err := c.conn(chainID)
	if err != nil {
		return nil, err
	}

	callData, err := req.ABI.Pack(req.Function, req.Args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s call: %w", req.Function, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.CallTimeoutMs)*time.Millisecond)
	defer cancel()

	raw, err := conn.eth.CallContract(callCtx, ethereum.CallMsg{To: &req.Contract, Data: callData}, nil)
	if err != nil {
		metrics.LedgerReads.WithLabelValues(req.Function, "error").Inc()
		return nil, fmt.Errorf("contract read %s on chain %d failed: %w", req.Function, chainID, err)
	}

	outputs, err := req.ABI.Unpack(req.Function, raw)
	if err != nil {
		metrics.LedgerReads.WithLabelValues(req.Function, "error").Inc()
		return nil, fmt.Errorf("failed to unpack %s result: %w", req.Function, err)
	}

	metrics.LedgerReads.WithLabelValues(req.Function, "ok").Inc()
	return outputs, nil
}

// Write encodes the call, builds the base transaction, applies the
// encryption transform when requested, then signs and submits exactly once.
// The attached native value is never part of the encrypted payload.
func (c *Client) Write(ctx context.Context, chainID int64, req port.WriteRequest) (common.Hash, error) {
	if !c.CanWrite() {
		return common.Hash{}, ErrWriteUnavailable
	}
	conn, err := c.conn(chainID)
	if err != nil {
		return common.Hash{}, err
	}

	callData, err := req.ABI.Pack(req.Function, req.Args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack %s call: %w", req.Function, err)
	}

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}

	callCtx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.CallTimeoutMs)*time.Millisecond)
	defer cancel()

	payload := TxPayload{To: req.Contract, Data: callData, Gas: c.cfg.DefaultGasLimit}
	estimated, err := conn.eth.EstimateGas(callCtx, ethereum.CallMsg{
		From:  c.account,
		To:    &req.Contract,
		Data:  callData,
		Value: value,
	})
	if err == nil {
		payload.Gas = estimated * 120 / 100
	} else {
		c.logger.Debug("Gas estimation failed, using default limit",
			zap.String("function", req.Function), zap.Error(err))
	}

	if req.Encrypt {
		payload, err = c.encryptor.EncryptTransaction(ctx, conn.def.PrimaryRPCURL, payload)
		if err != nil {
			// abort before anything reaches the network
			return common.Hash{}, fmt.Errorf("encryption transform failed for %s: %w", req.Function, err)
		}
	}

	nonce, err := conn.eth.PendingNonceAt(callCtx, c.account)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get nonce: %w", err)
	}
	gasPrice, err := conn.eth.SuggestGasPrice(callCtx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get gas price: %w", err)
	}

	tx := types.NewTransaction(nonce, payload.To, value, payload.Gas, gasPrice, payload.Data)
	signedTx, err := types.SignTx(tx, types.NewEIP155Signer(big.NewInt(chainID)), c.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := conn.eth.SendTransaction(callCtx, signedTx); err != nil {
		return common.Hash{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	c.logger.Info("Transaction submitted",
		zap.Int64("chainId", chainID),
		zap.String("function", req.Function),
		zap.String("hash", signedTx.Hash().Hex()),
		zap.Bool("encrypted", req.Encrypt))
	return signedTx.Hash(), nil
}

// WaitForReceipt polls for the receipt of hash. The wait is bounded by the
// configured confirmation timeout; expiry reports TxStuck rather than
// blocking forever.
func (c *Client) WaitForReceipt(ctx context.Context, chainID int64, hash common.Hash) (entity.TxOutcome, error) {
	conn, err := c.conn(chainID)
	if err != nil {
		return entity.TxFailed, err
	}

	waitCtx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.ConfirmTimeoutSec)*time.Second)
	defer cancel()

	ticker := time.NewTicker(time.Duration(c.cfg.ConfirmPollIntervalMs) * time.Millisecond)
	defer ticker.Stop()

	for {
		receipt, err := conn.eth.TransactionReceipt(waitCtx, hash)
		if err == nil && receipt != nil {
			if receipt.Status == types.ReceiptStatusSuccessful {
				return entity.TxConfirmed, nil
			}
			return entity.TxFailed, nil
		}

		select {
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return entity.TxStuck, ctx.Err()
			}
			c.logger.Warn("Confirmation wait timed out",
				zap.Int64("chainId", chainID),
				zap.String("hash", hash.Hex()))
			return entity.TxStuck, nil
		case <-ticker.C:
		}
	}
}

// Close releases every chain connection.
func (c *Client) Close() {
	for _, conn := range c.chains {
		conn.eth.Close()
	}
}
