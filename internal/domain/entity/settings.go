package entity

const (
	// AutoSlippagePercent is the effective slippage while auto mode is on.
	AutoSlippagePercent = 0.5
	// MaxSlippagePercent caps custom slippage.
	MaxSlippagePercent = 50.0
	// MinDeadlineMinutes and MaxDeadlineMinutes bound the transaction
	// deadline. 4320 minutes is three days; the narrower 60-minute clamp
	// seen in one flow variant is treated as a defect.
	MinDeadlineMinutes = 1
	MaxDeadlineMinutes = 4320
	// DefaultDeadlineMinutes applies when no stored value exists.
	DefaultDeadlineMinutes = 20
)

// Slippage is the user's tolerance for adverse price movement between quote
// and execution.
type Slippage struct {
	IsAuto bool    `json:"isAuto"`
	Value  float64 `json:"value"`
}

// TransactionSettings is the per-flow user-adjustable record persisted to
// durable local storage. One instance exists per flow (swap, pool).
type TransactionSettings struct {
	Slippage          Slippage `json:"slippage"`
	DeadlineMinutes   int      `json:"deadline"`
	EncryptionEnabled bool     `json:"encryption"`
}

// DefaultTransactionSettings returns the record used when nothing is stored
// or the stored value cannot be parsed.
func DefaultTransactionSettings() TransactionSettings {
	return TransactionSettings{
		Slippage:          Slippage{IsAuto: true, Value: AutoSlippagePercent},
		DeadlineMinutes:   DefaultDeadlineMinutes,
		EncryptionEnabled: true,
	}
}

// EffectiveSlippagePercent resolves the slippage that actually applies:
// the auto default while auto is on, otherwise the clamped custom value.
func (s TransactionSettings) EffectiveSlippagePercent() float64 {
	if s.Slippage.IsAuto {
		return AutoSlippagePercent
	}
	v := s.Slippage.Value
	if v < 0 {
		return 0
	}
	if v > MaxSlippagePercent {
		return MaxSlippagePercent
	}
	return v
}

// ClampDeadlineMinutes forces minutes into the supported range.
func ClampDeadlineMinutes(minutes int) int {
	if minutes < MinDeadlineMinutes {
		return MinDeadlineMinutes
	}
	if minutes > MaxDeadlineMinutes {
		return MaxDeadlineMinutes
	}
	return minutes
}
