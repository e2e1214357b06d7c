package port

import (
	"context"

	"dex_gateway/internal/domain/entity"
)

// PriceService resolves USD prices for token symbols. Symbols without feed
// support yield a PriceUnsupported status; feed failures yield
// PriceUnavailable. Neither is ever reported as a zero price.
type PriceService interface {
	FetchPrice(ctx context.Context, symbol string) entity.TokenPrice
	CalculateUSDValue(amount string, price entity.TokenPrice) float64
	HasPriceSupport(symbol string) bool
}

// SettingsStore holds one persisted TransactionSettings record per flow.
// Writes are synchronous and serialized.
type SettingsStore interface {
	Get() entity.TransactionSettings
	SetSlippage(isAuto bool, value float64) entity.TransactionSettings
	SetDeadline(minutes int) entity.TransactionSettings
	ToggleEncryption() entity.TransactionSettings
}
