package entity

import "github.com/ethereum/go-ethereum/common"

// TxKind classifies a submitted transaction within a flow.
type TxKind string

const (
	TxApprove         TxKind = "approve"
	TxSwap            TxKind = "swap"
	TxAddLiquidity    TxKind = "addLiquidity"
	TxRemoveLiquidity TxKind = "removeLiquidity"
)

// TxOutcome is the terminal state of a pending transaction.
type TxOutcome string

const (
	// TxConfirmed means a receipt with success status was observed.
	TxConfirmed TxOutcome = "confirmed"
	// TxFailed means the receipt reported a revert or the submission errored.
	TxFailed TxOutcome = "failed"
	// TxStuck means no receipt arrived within the bounded confirmation wait.
	TxStuck TxOutcome = "stuck"
)

// PendingTransaction tracks the single in-flight submission a flow permits.
type PendingTransaction struct {
	Hash         common.Hash `json:"hash"`
	Kind         TxKind      `json:"kind"`
	IsConfirming bool        `json:"isConfirming"`
}
