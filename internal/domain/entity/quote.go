package entity

import "math/big"

// SwapQuote is the router's estimate for a single-pair exchange together with
// the slippage-bounded minimum. It is recomputed whenever amount, token or
// chain changes and must never be reused across a submission boundary.
type SwapQuote struct {
	AmountIn         *big.Int `json:"amountIn"`
	AmountOut        *big.Int `json:"amountOut"`
	MinimumAmountOut *big.Int `json:"minimumAmountOut"`
}

// PoolQuote is the two-sided analogue of SwapQuote for a liquidity deposit.
type PoolQuote struct {
	AmountA           *big.Int `json:"amountA"`
	AmountB           *big.Int `json:"amountB"`
	AmountAMin        *big.Int `json:"amountAMin"`
	AmountBMin        *big.Int `json:"amountBMin"`
	LiquidityEstimate *big.Int `json:"liquidityEstimate"`
	ShareBps          int64    `json:"shareBps"`
}
