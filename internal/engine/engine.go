// Package engine computes expected outputs, slippage-bounded minimums and
// approval sufficiency for the swap and liquidity flows.
package engine

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"time"

	"dex_gateway/internal/domain/entity"
	"dex_gateway/internal/ledger"
	"dex_gateway/internal/metrics"
	"dex_gateway/internal/pkg/utils"
	"dex_gateway/internal/port"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Engine derives quotes and approval decisions from on-chain reads. It holds
// no state of its own.
type Engine struct {
	reader port.LedgerReader
	logger *zap.Logger
}

// NewEngine creates a new Engine.
func NewEngine(reader port.LedgerReader, logger *zap.Logger) *Engine {
	return &Engine{reader: reader, logger: logger.Named("QuoteEngine")}
}

// ApplySlippage returns amount reduced by slippagePercent, floored to the
// integer base unit. Percent is resolved to parts-per-million and the
// tolerance rounds up, so the derived minimum can only under-estimate and
// equals amount only at zero slippage.
func ApplySlippage(amount *big.Int, slippagePercent float64) *big.Int {
	if amount == nil {
		return new(big.Int)
	}
	// the epsilon keeps exactly-representable percents from ceiling past
	// their ppm value
	ppm := int64(math.Ceil(slippagePercent*10000 - 1e-9))
	if ppm < 0 {
		ppm = 0
	}
	if ppm > 1000000 {
		ppm = 1000000
	}
	out := new(big.Int).Mul(amount, big.NewInt(1000000-ppm))
	return out.Quo(out, big.NewInt(1000000))
}

// RequiredAmount parses a user-entered display amount into base units for
// the token. The second return is false for empty, unparseable or
// non-positive input, which callers must treat as "not ready", never as an
// approved zero.
func (e *Engine) RequiredAmount(input string, decimals uint8) (*big.Int, bool) {
	value, err := utils.ParseBigInt(input, decimals)
	if err != nil || value.Sign() <= 0 {
		return nil, false
	}
	return value, true
}

// NeedsApproval reports whether an approve transaction must precede the
// operation. Wrapped-native tokens never need approval (they are supplied as
// attached value). An unknown allowance counts as insufficient; the contract
// re-checks either way.
func (e *Engine) NeedsApproval(isWrappedNative bool, allowance entity.AmountResult, required *big.Int) bool {
	if isWrappedNative || required == nil {
		return false
	}
	if allowance.Status != entity.AmountOK {
		return true
	}
	return allowance.Value.Cmp(required) < 0
}

// Balance fetches the token balance of owner, degrading to unknown on read
// failure instead of a silent zero.
func (e *Engine) Balance(ctx context.Context, chainID int64, token, owner common.Address) entity.AmountResult {
	return e.readAmount(ctx, chainID, port.ReadRequest{
		ABI:      ledger.ERC20ABI(),
		Contract: token,
		Function: "balanceOf",
		Args:     []interface{}{owner},
	})
}

// Allowance fetches the router allowance owner has granted, degrading to
// unknown on read failure.
func (e *Engine) Allowance(ctx context.Context, chainID int64, token, owner, spender common.Address) entity.AmountResult {
	return e.readAmount(ctx, chainID, port.ReadRequest{
		ABI:      ledger.ERC20ABI(),
		Contract: token,
		Function: "allowance",
		Args:     []interface{}{owner, spender},
	})
}

func (e *Engine) readAmount(ctx context.Context, chainID int64, req port.ReadRequest) entity.AmountResult {
	outputs, err := e.reader.Read(ctx, chainID, req)
	if err != nil {
		e.logger.Warn("Amount read failed", zap.String("function", req.Function), zap.Error(err))
		return entity.UnknownAmount()
	}
	if len(outputs) == 0 {
		return entity.UnknownAmount()
	}
	value, ok := outputs[0].(*big.Int)
	if !ok {
		e.logger.Warn("Amount read returned unexpected type",
			zap.String("function", req.Function), zap.Any("value", outputs[0]))
		return entity.UnknownAmount()
	}
	return entity.KnownAmount(value)
}

// SwapQuote asks the router for the expected output over the direct
// [from, to] path and applies the slippage bound.
func (e *Engine) SwapQuote(ctx context.Context, chainID int64, router common.Address, amountIn string, from, to entity.Token, slippagePercent float64) (*entity.SwapQuote, error) {
	amountInBase, ok := e.RequiredAmount(amountIn, from.Decimals)
	if !ok {
		return nil, fmt.Errorf("invalid input amount %q", amountIn)
	}

	start := time.Now()
	outputs, err := e.reader.Read(ctx, chainID, port.ReadRequest{
		ABI:      ledger.RouterABI(),
		Contract: router,
		Function: "getAmountsOut",
		Args:     []interface{}{amountInBase, []common.Address{from.Address, to.Address}},
	})
	metrics.QuoteDuration.WithLabelValues("swap").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("router quote failed: %w", err)
	}
	if len(outputs) == 0 {
		return nil, fmt.Errorf("router quote returned no amounts")
	}
	amounts, ok := outputs[0].([]*big.Int)
	if !ok || len(amounts) < 2 {
		return nil, fmt.Errorf("router quote returned unexpected shape")
	}

	amountOut := amounts[len(amounts)-1]
	return &entity.SwapQuote{
		AmountIn:         amountInBase,
		AmountOut:        amountOut,
		MinimumAmountOut: ApplySlippage(amountOut, slippagePercent),
	}, nil
}

// PoolQuote derives the two-sided deposit quote: both desired amounts in
// base units, their slippage-bounded minimums, and the router's liquidity
// estimate for the pair ratio.
func (e *Engine) PoolQuote(ctx context.Context, chainID int64, router common.Address, amountA, amountB string, tokenA, tokenB entity.Token, slippagePercent float64) (*entity.PoolQuote, error) {
	amountABase, okA := e.RequiredAmount(amountA, tokenA.Decimals)
	amountBBase, okB := e.RequiredAmount(amountB, tokenB.Decimals)
	if !okA || !okB {
		return nil, fmt.Errorf("both deposit amounts must be positive")
	}

	quote := &entity.PoolQuote{
		AmountA:    amountABase,
		AmountB:    amountBBase,
		AmountAMin: ApplySlippage(amountABase, slippagePercent),
		AmountBMin: ApplySlippage(amountBBase, slippagePercent),
		ShareBps:   10000,
	}

	start := time.Now()
	outputs, err := e.reader.Read(ctx, chainID, port.ReadRequest{
		ABI:      ledger.RouterABI(),
		Contract: router,
		Function: "quote",
		Args:     []interface{}{amountABase, amountABase, amountBBase},
	})
	metrics.QuoteDuration.WithLabelValues("pool").Observe(time.Since(start).Seconds())
	if err != nil {
		// The deposit can proceed on desired amounts; only the estimate is lost.
		e.logger.Debug("Router liquidity estimate unavailable", zap.Error(err))
		quote.LiquidityEstimate = new(big.Int).Add(amountABase, amountBBase)
		return quote, nil
	}
	if len(outputs) > 0 {
		if est, ok := outputs[0].(*big.Int); ok {
			quote.LiquidityEstimate = new(big.Int).Add(amountABase, est)
			return quote, nil
		}
	}
	quote.LiquidityEstimate = new(big.Int).Add(amountABase, amountBBase)
	return quote, nil
}
