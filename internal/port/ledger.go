package port

import (
	"context"
	"math/big"

	"dex_gateway/internal/domain/entity"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ReadRequest describes a contract read: the parsed ABI, the target contract
// and the function with its arguments.
type ReadRequest struct {
	ABI      *abi.ABI
	Contract common.Address
	Function string
	Args     []interface{}
}

// WriteRequest describes a state-changing contract call. When Encrypt is set
// the encoded transaction is passed through the encryption transform before
// broadcast. Value carries native currency attached to the call and is nil
// for plain ERC-20 interactions.
type WriteRequest struct {
	ABI      *abi.ABI
	Contract common.Address
	Function string
	Args     []interface{}
	Encrypt  bool
	Value    *big.Int
}

// LedgerReader is the read capability against a chain, always present.
type LedgerReader interface {
	// Read performs a single eth_call-equivalent and unpacks the outputs.
	// There is no retry; a failure means "value unknown", never zero.
	Read(ctx context.Context, chainID int64, req ReadRequest) ([]interface{}, error)
}

// LedgerWriter is the write capability, present only when a signing key is
// configured. Exactly one network submission happens per Write invocation.
type LedgerWriter interface {
	Write(ctx context.Context, chainID int64, req WriteRequest) (common.Hash, error)

	// WaitForReceipt polls for the receipt of hash until the configured
	// confirmation bound elapses.
	WaitForReceipt(ctx context.Context, chainID int64, hash common.Hash) (entity.TxOutcome, error)

	// Account returns the address transactions are signed with.
	Account() common.Address
}

// Ledger combines the always-present read capability with an optionally
// usable write capability. Callers must check CanWrite before enabling
// submission actions.
type Ledger interface {
	LedgerReader
	LedgerWriter
	CanWrite() bool
}
