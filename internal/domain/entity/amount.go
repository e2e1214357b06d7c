package entity

import "math/big"

// AmountStatus distinguishes a genuinely fetched quantity from one that could
// not be determined. A failed balance or allowance read must never collapse
// into "zero".
type AmountStatus string

const (
	// AmountOK means the value was fetched from the chain.
	AmountOK AmountStatus = "ok"
	// AmountUnknown means the read failed or has not happened yet.
	AmountUnknown AmountStatus = "unknown"
)

// AmountResult is the tri-state result of a balance or allowance read.
type AmountResult struct {
	Status AmountStatus `json:"status"`
	Value  *big.Int     `json:"value,omitempty"`
}

// UnknownAmount returns an AmountResult for a read that failed or is pending.
func UnknownAmount() AmountResult {
	return AmountResult{Status: AmountUnknown}
}

// KnownAmount returns an AmountResult carrying a fetched value.
func KnownAmount(v *big.Int) AmountResult {
	if v == nil {
		v = new(big.Int)
	}
	return AmountResult{Status: AmountOK, Value: v}
}

// ValueOrZero returns the fetched value, or zero when the amount is unknown.
// Callers that need to distinguish the two cases must check Status first.
func (a AmountResult) ValueOrZero() *big.Int {
	if a.Status != AmountOK || a.Value == nil {
		return new(big.Int)
	}
	return a.Value
}
