package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"dex_gateway/internal/config"
	"dex_gateway/internal/domain/entity"
	"dex_gateway/internal/port"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// stubEncryptor lets tests control the transform outcome and observe whether
// it ran at all.
type stubEncryptor struct {
	mu      sync.Mutex
	calls   int
	err     error
	rewrite *TxPayload
}

func (s *stubEncryptor) EncryptTransaction(_ context.Context, _ string, payload TxPayload) (TxPayload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return TxPayload{}, s.err
	}
	if s.rewrite != nil {
		return *s.rewrite, nil
	}
	return payload, nil
}

func (s *stubEncryptor) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// rpcRecorder captures every JSON-RPC method the client sends so tests can
// assert what did and did not reach the network.
type rpcRecorder struct {
	mu      sync.Mutex
	methods []string
	rawTxs  []string
}

func (r *rpcRecorder) saw(method string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.methods {
		if m == method {
			return true
		}
	}
	return false
}

func (r *rpcRecorder) lastRawTx(t *testing.T) string {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.rawTxs) == 0 {
		t.Fatal("no raw transaction was submitted")
	}
	return r.rawTxs[len(r.rawTxs)-1]
}

func newEthRPCServer(t *testing.T, rec *rpcRecorder) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		body, err := io.ReadAll(req.Body)
		assert.NoError(t, err)

		var call struct {
			ID     interface{}   `json:"id"`
			Method string        `json:"method"`
			Params []interface{} `json:"params"`
		}
		assert.NoError(t, json.Unmarshal(body, &call))

		rec.mu.Lock()
		rec.methods = append(rec.methods, call.Method)
		if call.Method == "eth_sendRawTransaction" && len(call.Params) == 1 {
			if raw, ok := call.Params[0].(string); ok {
				rec.rawTxs = append(rec.rawTxs, raw)
			}
		}
		rec.mu.Unlock()

		result := "0x1"
		switch call.Method {
		case "eth_estimateGas":
			result = "0x5208"
		case "eth_getTransactionCount":
			result = "0x1"
		case "eth_gasPrice":
			result = "0x3b9aca00"
		case "eth_sendRawTransaction":
			result = "0x1111111111111111111111111111111111111111111111111111111111111111"
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":%v,"result":%q}`, call.ID, result)
	}))
}

func newClientUnderTest(t *testing.T, enc Encryptor) (*Client, *rpcRecorder) {
	t.Helper()
	rec := &rpcRecorder{}
	server := newEthRPCServer(t, rec)
	t.Cleanup(server.Close)

	eth, err := ethclient.DialContext(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("ethclient dial: %v", err)
	}
	t.Cleanup(eth.Close)

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	def := entity.ChainDefinition{ChainID: 10174, Name: "bite-testnet", PrimaryRPCURL: server.URL}
	c := &Client{
		logger:    zap.NewNop(),
		cfg:       config.RpcClientConfig{CallTimeoutMs: 2000, ConfirmTimeoutSec: 1, ConfirmPollIntervalMs: 50, DefaultGasLimit: 300000},
		chains:    map[int64]*chainConn{10174: {eth: eth, def: def}},
		encryptor: enc,
		key:       key,
		account:   crypto.PubkeyToAddress(key.PublicKey),
	}
	return c, rec
}

func approveRequest(encrypt bool) port.WriteRequest {
	return port.WriteRequest{
		ABI:      ERC20ABI(),
		Contract: plainTo,
		Function: "approve",
		Args:     []interface{}{committeeTo, big.NewInt(1)},
		Encrypt:  encrypt,
	}
}

func TestWriteAbortsWhenEncryptionFails(t *testing.T) {
	enc := &stubEncryptor{err: errors.New("committee unavailable")}
	c, rec := newClientUnderTest(t, enc)

	_, err := c.Write(context.Background(), 10174, approveRequest(true))
	assert.ErrorContains(t, err, "committee unavailable")
	assert.Equal(t, 1, enc.callCount())

	// the failed transform must stop the pipeline before anything is
	// signed or broadcast
	assert.False(t, rec.saw("eth_sendRawTransaction"))
	assert.False(t, rec.saw("eth_getTransactionCount"))
}

func TestWriteSubmitsEncryptedPayload(t *testing.T) {
	enc := &stubEncryptor{rewrite: &TxPayload{
		To:   committeeTo,
		Data: hexutil.MustDecode("0xdeadbeef"),
		Gas:  400000,
	}}
	c, rec := newClientUnderTest(t, enc)

	req := approveRequest(true)
	req.Value = big.NewInt(5)
	hash, err := c.Write(context.Background(), 10174, req)
	assert.NoError(t, err)
	assert.NotEqual(t, common.Hash{}, hash)
	assert.True(t, rec.saw("eth_sendRawTransaction"))

	// the broadcast transaction carries the rewritten routing fields while
	// the attached value stays outside the transform
	var tx types.Transaction
	assert.NoError(t, tx.UnmarshalBinary(hexutil.MustDecode(rec.lastRawTx(t))))
	assert.Equal(t, committeeTo, *tx.To())
	assert.Equal(t, hexutil.MustDecode("0xdeadbeef"), tx.Data())
	assert.Equal(t, uint64(400000), tx.Gas())
	assert.Equal(t, int64(5), tx.Value().Int64())
}

func TestWriteSkipsEncryptorWhenDisabled(t *testing.T) {
	enc := &stubEncryptor{}
	c, rec := newClientUnderTest(t, enc)

	_, err := c.Write(context.Background(), 10174, approveRequest(false))
	assert.NoError(t, err)
	assert.Equal(t, 0, enc.callCount())
	assert.True(t, rec.saw("eth_sendRawTransaction"))
}

func TestWriteRequiresSigningKey(t *testing.T) {
	c, rec := newClientUnderTest(t, &stubEncryptor{})
	c.key = nil

	_, err := c.Write(context.Background(), 10174, approveRequest(true))
	assert.ErrorIs(t, err, ErrWriteUnavailable)
	assert.False(t, rec.saw("eth_sendRawTransaction"))
}
