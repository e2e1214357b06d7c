package ledger

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var (
	plainTo     = common.HexToAddress("0x2222222222222222222222222222222222222222")
	committeeTo = common.HexToAddress("0x9999999999999999999999999999999999999999")
)

func testPayload() TxPayload {
	return TxPayload{To: plainTo, Data: []byte{0x01, 0x02, 0x03}, Gas: 300000}
}

func encryptServer(t *testing.T, responseBody string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)

		var req encryptRPCRequest
		assert.NoError(t, json.Unmarshal(body, &req))
		assert.Equal(t, "bite_encryptTransaction", req.Method)
		if assert.Len(t, req.Params, 1) {
			assert.Equal(t, plainTo.Hex(), req.Params[0].To)
			assert.Equal(t, "0x010203", req.Params[0].Data)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(responseBody))
	}))
}

func TestEncryptTransactionRewritesPayload(t *testing.T) {
	server := encryptServer(t, `{"jsonrpc":"2.0","id":1,"result":{"to":"0x9999999999999999999999999999999999999999","data":"0xdeadbeef","gasLimit":"0x7a120"}}`)
	defer server.Close()

	e := NewBiteEncryptor(2*time.Second, zap.NewNop())
	out, err := e.EncryptTransaction(context.Background(), server.URL, testPayload())
	assert.NoError(t, err)
	assert.Equal(t, committeeTo, out.To)
	assert.Equal(t, hexutil.MustDecode("0xdeadbeef"), out.Data)
	assert.Equal(t, uint64(500000), out.Gas)
}

func TestEncryptTransactionKeepsGasWhenOmitted(t *testing.T) {
	server := encryptServer(t, `{"jsonrpc":"2.0","id":1,"result":{"to":"0x9999999999999999999999999999999999999999","data":"0xdeadbeef"}}`)
	defer server.Close()

	e := NewBiteEncryptor(2*time.Second, zap.NewNop())
	out, err := e.EncryptTransaction(context.Background(), server.URL, testPayload())
	assert.NoError(t, err)
	assert.Equal(t, uint64(300000), out.Gas)
}

func TestEncryptTransactionRPCError(t *testing.T) {
	server := encryptServer(t, `{"jsonrpc":"2.0","id":1,"error":{"code":-32000,"message":"committee unavailable"}}`)
	defer server.Close()

	e := NewBiteEncryptor(2*time.Second, zap.NewNop())
	_, err := e.EncryptTransaction(context.Background(), server.URL, testPayload())
	assert.ErrorContains(t, err, "committee unavailable")
}

func TestEncryptTransactionEmptyResult(t *testing.T) {
	server := encryptServer(t, `{"jsonrpc":"2.0","id":1,"result":null}`)
	defer server.Close()

	e := NewBiteEncryptor(2*time.Second, zap.NewNop())
	_, err := e.EncryptTransaction(context.Background(), server.URL, testPayload())
	assert.Error(t, err)
}

func TestEncryptTransactionInvalidToAddress(t *testing.T) {
	server := encryptServer(t, `{"jsonrpc":"2.0","id":1,"result":{"to":"not-an-address","data":"0xdeadbeef"}}`)
	defer server.Close()

	e := NewBiteEncryptor(2*time.Second, zap.NewNop())
	_, err := e.EncryptTransaction(context.Background(), server.URL, testPayload())
	assert.Error(t, err)
}

func TestEncryptTransactionInvalidData(t *testing.T) {
	server := encryptServer(t, `{"jsonrpc":"2.0","id":1,"result":{"to":"0x9999999999999999999999999999999999999999","data":"zzzz"}}`)
	defer server.Close()

	e := NewBiteEncryptor(2*time.Second, zap.NewNop())
	_, err := e.EncryptTransaction(context.Background(), server.URL, testPayload())
	assert.Error(t, err)
}

func TestEncryptTransactionServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "committee down", http.StatusBadGateway)
	}))
	defer server.Close()

	e := NewBiteEncryptor(2*time.Second, zap.NewNop())
	_, err := e.EncryptTransaction(context.Background(), server.URL, testPayload())
	assert.Error(t, err)
}

func TestEncryptTransactionEmptyEndpoint(t *testing.T) {
	e := NewBiteEncryptor(time.Second, zap.NewNop())
	_, err := e.EncryptTransaction(context.Background(), "", testPayload())
	assert.Error(t, err)
}
