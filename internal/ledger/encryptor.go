package ledger

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// TxPayload is the portion of a transaction the encryption transform may
// rewrite. Attached native value is deliberately outside the payload; only
// the routing fields and calldata are transformed.
type TxPayload struct {
	To   common.Address
	Data []byte
	Gas  uint64
}

// Encryptor transforms a fully encoded transaction payload before broadcast.
// The rest of the pipeline is agnostic to how the transform works; it only
// guarantees the transform runs on the final encoded call and that a
// transform failure aborts before any network send.
type Encryptor interface {
	EncryptTransaction(ctx context.Context, rpcURL string, payload TxPayload) (TxPayload, error)
}

// biteEncryptor asks the chain's threshold-encryption endpoint to wrap the
// payload. The committee rewrites to/data and may raise the gas limit.
type biteEncryptor struct {
	client  *fasthttp.Client
	timeout time.Duration
	logger  *zap.Logger
}

// NewBiteEncryptor creates the default encryption transform.
func NewBiteEncryptor(timeout time.Duration, logger *zap.Logger) Encryptor {
	return &biteEncryptor{
		client:  &fasthttp.Client{},
		timeout: timeout,
		logger:  logger.Named("BiteEncryptor"),
	}
}

type encryptRPCRequest struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      int              `json:"id"`
	Method  string           `json:"method"`
	Params  []encryptTxParam `json:"params"`
}

type encryptTxParam struct {
	To       string `json:"to"`
	Data     string `json:"data"`
	GasLimit string `json:"gasLimit,omitempty"`
}

type encryptRPCResponse struct {
	Result *encryptTxParam `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// EncryptTransaction implements the Encryptor interface.
func (e *biteEncryptor) EncryptTransaction(ctx context.Context, rpcURL string, payload TxPayload) (TxPayload, error) {
	if rpcURL == "" {
		return TxPayload{}, fmt.Errorf("no RPC endpoint for encryption transform")
	}

	reqBody := encryptRPCRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "bite_encryptTransaction",
		Params: []encryptTxParam{{
			To:       payload.To.Hex(),
			Data:     hexutil.Encode(payload.Data),
			GasLimit: hexutil.EncodeUint64(payload.Gas),
		}},
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return TxPayload{}, fmt.Errorf("failed to marshal encryption request: %w", err)
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(rpcURL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentTypeBytes([]byte("application/json"))
	req.SetBody(body)

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	deadline, ok := ctx.Deadline()
	if ok {
		err = e.client.DoDeadline(req, resp, deadline)
	} else {
		err = e.client.DoTimeout(req, resp, e.timeout)
	}
	if err != nil {
		e.logger.Error("Encryption transform request failed", zap.String("url", rpcURL), zap.Error(err))
		return TxPayload{}, fmt.Errorf("encryption transform request failed: %w", err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return TxPayload{}, fmt.Errorf("encryption transform returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}

	var rpcResp encryptRPCResponse
	if err := json.Unmarshal(resp.Body(), &rpcResp); err != nil {
		return TxPayload{}, fmt.Errorf("failed to unmarshal encryption response: %w", err)
	}
	if rpcResp.Error != nil {
		return TxPayload{}, fmt.Errorf("encryption transform rejected payload: %s (code %d)", rpcResp.Error.Message, rpcResp.Error.Code)
	}
	if rpcResp.Result == nil {
		return TxPayload{}, fmt.Errorf("encryption transform returned empty result")
	}

	if !common.IsHexAddress(rpcResp.Result.To) {
		return TxPayload{}, fmt.Errorf("encryption transform returned invalid to address %q", rpcResp.Result.To)
	}
	data, err := hexutil.Decode(rpcResp.Result.Data)
	if err != nil {
		return TxPayload{}, fmt.Errorf("encryption transform returned invalid data: %w", err)
	}

	out := TxPayload{
		To:   common.HexToAddress(rpcResp.Result.To),
		Data: data,
		Gas:  payload.Gas,
	}
	if rpcResp.Result.GasLimit != "" {
		gas, err := hexutil.DecodeUint64(rpcResp.Result.GasLimit)
		if err != nil {
			return TxPayload{}, fmt.Errorf("encryption transform returned invalid gas limit: %w", err)
		}
		out.Gas = gas
	}

	e.logger.Debug("Transaction payload encrypted",
		zap.String("committeeTo", out.To.Hex()),
		zap.Uint64("gas", out.Gas))
	return out, nil
}
