// Package restapi exposes the gateway's flows over HTTP: chain and token
// discovery, prices, the swap and pool state machines and the per-flow
// settings records.
package restapi

import (
	"errors"
	"net/http"
	"strconv"

	"dex_gateway/internal/domain/entity"
	"dex_gateway/internal/ledger"
	"dex_gateway/internal/orchestrator"
	"dex_gateway/internal/port"
	"dex_gateway/internal/registry"
	"dex_gateway/internal/settings"

	"github.com/gin-gonic/gin"
)

// GatewayHandler carries every dependency the HTTP surface needs.
type GatewayHandler struct {
	reg          *registry.Registry
	prices       port.PriceService
	swaps        map[int64]*orchestrator.SwapOrchestrator
	pools        map[int64]*orchestrator.PoolOrchestrator
	swapSettings port.SettingsStore
	poolSettings port.SettingsStore
	prefs        *settings.Preferences
}

// NewGatewayHandler creates the handler set for the configured chains.
func NewGatewayHandler(
	reg *registry.Registry,
	prices port.PriceService,
	swaps map[int64]*orchestrator.SwapOrchestrator,
	pools map[int64]*orchestrator.PoolOrchestrator,
	swapSettings, poolSettings port.SettingsStore,
	prefs *settings.Preferences,
) *GatewayHandler {
	return &GatewayHandler{
		reg:          reg,
		prices:       prices,
		swaps:        swaps,
		pools:        pools,
		swapSettings: swapSettings,
		poolSettings: poolSettings,
		prefs:        prefs,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeFlowError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, orchestrator.ErrSubmissionInFlight):
		status = http.StatusConflict
	case errors.Is(err, orchestrator.ErrNotReady):
		status = http.StatusConflict
	case errors.Is(err, orchestrator.ErrUnknownToken):
		status = http.StatusNotFound
	case errors.Is(err, orchestrator.ErrUnsupportedChain):
		status = http.StatusBadRequest
	case errors.Is(err, ledger.ErrWriteUnavailable):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, errorResponse{Error: err.Error()})
}

func (h *GatewayHandler) chainID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("chainId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid chain id"})
		return 0, false
	}
	return id, true
}

func (h *GatewayHandler) swapFor(c *gin.Context) (*orchestrator.SwapOrchestrator, bool) {
	id, ok := h.chainID(c)
	if !ok {
		return nil, false
	}
	o, ok := h.swaps[id]
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{Error: "unknown chain"})
		return nil, false
	}
	return o, true
}

func (h *GatewayHandler) poolFor(c *gin.Context) (*orchestrator.PoolOrchestrator, bool) {
	id, ok := h.chainID(c)
	if !ok {
		return nil, false
	}
	o, ok := h.pools[id]
	if !ok {
		c.JSON(http.StatusNotFound, errorResponse{Error: "unknown chain"})
		return nil, false
	}
	return o, true
}

// GetChainsHandler lists the configured chain definitions.
func (h *GatewayHandler) GetChainsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"chains": h.reg.Chains()})
}

// GetTokensHandler lists every configured token tagged with its chain.
func (h *GatewayHandler) GetTokensHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tokens": h.reg.AllTokensWithChain()})
}

type priceResponse struct {
	Price    entity.TokenPrice `json:"price"`
	USDValue *float64          `json:"usdValue,omitempty"`
}

// GetPriceHandler resolves the USD price for a symbol. An optional amount
// query parameter also yields the USD value of that amount.
func (h *GatewayHandler) GetPriceHandler(c *gin.Context) {
	symbol := c.Param("symbol")
	price := h.prices.FetchPrice(c.Request.Context(), symbol)

	resp := priceResponse{Price: price}
	if amount := c.Query("amount"); amount != "" {
		usd := h.prices.CalculateUSDValue(amount, price)
		resp.USDValue = &usd
	}
	c.JSON(http.StatusOK, resp)
}

// --- swap flow ---

type tokenRequest struct {
	Symbol string `json:"symbol" binding:"required"`
}

type amountRequest struct {
	Amount string `json:"amount"`
}

// GetSwapHandler returns the swap flow snapshot for a chain.
func (h *GatewayHandler) GetSwapHandler(c *gin.Context) {
	o, ok := h.swapFor(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, o.Snapshot())
}

// SelectSwapFromTokenHandler switches the source token.
func (h *GatewayHandler) SelectSwapFromTokenHandler(c *gin.Context) {
	o, ok := h.swapFor(c)
	if !ok {
		return
	}
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := o.SelectFromToken(c.Request.Context(), req.Symbol); err != nil {
		writeFlowError(c, err)
		return
	}
	c.JSON(http.StatusOK, o.Snapshot())
}

// SelectSwapToTokenHandler switches the destination token.
func (h *GatewayHandler) SelectSwapToTokenHandler(c *gin.Context) {
	o, ok := h.swapFor(c)
	if !ok {
		return
	}
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := o.SelectToToken(c.Request.Context(), req.Symbol); err != nil {
		writeFlowError(c, err)
		return
	}
	c.JSON(http.StatusOK, o.Snapshot())
}

// SetSwapAmountHandler updates the input amount and requotes.
func (h *GatewayHandler) SetSwapAmountHandler(c *gin.Context) {
	o, ok := h.swapFor(c)
	if !ok {
		return
	}
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := o.SetFromAmount(c.Request.Context(), req.Amount); err != nil {
		writeFlowError(c, err)
		return
	}
	c.JSON(http.StatusOK, o.Snapshot())
}

// SetSwapMaxAmountHandler sets the input to the full source balance.
func (h *GatewayHandler) SetSwapMaxAmountHandler(c *gin.Context) {
	o, ok := h.swapFor(c)
	if !ok {
		return
	}
	if err := o.SetMaxFromAmount(c.Request.Context()); err != nil {
		writeFlowError(c, err)
		return
	}
	c.JSON(http.StatusOK, o.Snapshot())
}

// SwitchSwapTokensHandler flips the trade direction.
func (h *GatewayHandler) SwitchSwapTokensHandler(c *gin.Context) {
	o, ok := h.swapFor(c)
	if !ok {
		return
	}
	if err := o.SwitchTokens(c.Request.Context()); err != nil {
		writeFlowError(c, err)
		return
	}
	c.JSON(http.StatusOK, o.Snapshot())
}

// RefreshSwapHandler forces a balance and quote refresh.
func (h *GatewayHandler) RefreshSwapHandler(c *gin.Context) {
	o, ok := h.swapFor(c)
	if !ok {
		return
	}
	o.RefreshBalances(c.Request.Context())
	c.JSON(http.StatusOK, o.Snapshot())
}

// ApproveSwapHandler submits the source-token approval.
func (h *GatewayHandler) ApproveSwapHandler(c *gin.Context) {
	o, ok := h.swapFor(c)
	if !ok {
		return
	}
	if err := o.Approve(c.Request.Context()); err != nil {
		writeFlowError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, o.Snapshot())
}

// ExecuteSwapHandler submits the exchange transaction.
func (h *GatewayHandler) ExecuteSwapHandler(c *gin.Context) {
	o, ok := h.swapFor(c)
	if !ok {
		return
	}
	if err := o.ExecuteSwap(c.Request.Context()); err != nil {
		writeFlowError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, o.Snapshot())
}

// --- pool flow ---

type legRequest struct {
	Leg string `json:"leg" binding:"required"`
}

type liquidityRequest struct {
	Liquidity string `json:"liquidity" binding:"required"`
}

func parseLeg(raw string) (orchestrator.PoolLeg, bool) {
	switch orchestrator.PoolLeg(raw) {
	case orchestrator.PoolLegA:
		return orchestrator.PoolLegA, true
	case orchestrator.PoolLegB:
		return orchestrator.PoolLegB, true
	}
	return "", false
}

// GetPoolHandler returns the liquidity flow snapshot for a chain.
func (h *GatewayHandler) GetPoolHandler(c *gin.Context) {
	o, ok := h.poolFor(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, o.Snapshot())
}

// SelectPoolTokenAHandler chooses the first leg of the pair.
func (h *GatewayHandler) SelectPoolTokenAHandler(c *gin.Context) {
	h.selectPoolToken(c, orchestrator.PoolLegA)
}

// SelectPoolTokenBHandler chooses the second leg of the pair.
func (h *GatewayHandler) SelectPoolTokenBHandler(c *gin.Context) {
	h.selectPoolToken(c, orchestrator.PoolLegB)
}

func (h *GatewayHandler) selectPoolToken(c *gin.Context, leg orchestrator.PoolLeg) {
	o, ok := h.poolFor(c)
	if !ok {
		return
	}
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	var err error
	if leg == orchestrator.PoolLegA {
		err = o.SelectTokenA(req.Symbol)
	} else {
		err = o.SelectTokenB(req.Symbol)
	}
	if err != nil {
		writeFlowError(c, err)
		return
	}
	c.JSON(http.StatusOK, o.Snapshot())
}

// ConfirmPoolPairHandler advances from pair selection to amount entry.
func (h *GatewayHandler) ConfirmPoolPairHandler(c *gin.Context) {
	o, ok := h.poolFor(c)
	if !ok {
		return
	}
	if err := o.ConfirmPair(c.Request.Context()); err != nil {
		writeFlowError(c, err)
		return
	}
	c.JSON(http.StatusOK, o.Snapshot())
}

// BackToPoolPairHandler returns to pair selection.
func (h *GatewayHandler) BackToPoolPairHandler(c *gin.Context) {
	o, ok := h.poolFor(c)
	if !ok {
		return
	}
	if err := o.BackToPairSelection(); err != nil {
		writeFlowError(c, err)
		return
	}
	c.JSON(http.StatusOK, o.Snapshot())
}

// SetPoolAmountAHandler updates the first leg's desired deposit.
func (h *GatewayHandler) SetPoolAmountAHandler(c *gin.Context) {
	h.setPoolAmount(c, orchestrator.PoolLegA)
}

// SetPoolAmountBHandler updates the second leg's desired deposit.
func (h *GatewayHandler) SetPoolAmountBHandler(c *gin.Context) {
	h.setPoolAmount(c, orchestrator.PoolLegB)
}

func (h *GatewayHandler) setPoolAmount(c *gin.Context, leg orchestrator.PoolLeg) {
	o, ok := h.poolFor(c)
	if !ok {
		return
	}
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	var err error
	if leg == orchestrator.PoolLegA {
		err = o.SetAmountA(c.Request.Context(), req.Amount)
	} else {
		err = o.SetAmountB(c.Request.Context(), req.Amount)
	}
	if err != nil {
		writeFlowError(c, err)
		return
	}
	c.JSON(http.StatusOK, o.Snapshot())
}

// SetPoolMaxAmountHandler sets one leg to its full balance.
func (h *GatewayHandler) SetPoolMaxAmountHandler(c *gin.Context) {
	o, ok := h.poolFor(c)
	if !ok {
		return
	}
	var req legRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	leg, valid := parseLeg(req.Leg)
	if !valid {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "leg must be A or B"})
		return
	}
	if err := o.SetMaxAmount(c.Request.Context(), leg); err != nil {
		writeFlowError(c, err)
		return
	}
	c.JSON(http.StatusOK, o.Snapshot())
}

// ApprovePoolLegHandler submits the approval for one leg.
func (h *GatewayHandler) ApprovePoolLegHandler(c *gin.Context) {
	o, ok := h.poolFor(c)
	if !ok {
		return
	}
	var req legRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	leg, valid := parseLeg(req.Leg)
	if !valid {
		c.JSON(http.StatusBadRequest, errorResponse{Error: "leg must be A or B"})
		return
	}
	if err := o.Approve(c.Request.Context(), leg); err != nil {
		writeFlowError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, o.Snapshot())
}

// AddLiquidityHandler submits the deposit transaction.
func (h *GatewayHandler) AddLiquidityHandler(c *gin.Context) {
	o, ok := h.poolFor(c)
	if !ok {
		return
	}
	if err := o.AddLiquidity(c.Request.Context()); err != nil {
		writeFlowError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, o.Snapshot())
}

// RemoveLiquidityHandler submits the withdrawal transaction.
func (h *GatewayHandler) RemoveLiquidityHandler(c *gin.Context) {
	o, ok := h.poolFor(c)
	if !ok {
		return
	}
	var req liquidityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := o.RemoveLiquidity(c.Request.Context(), req.Liquidity); err != nil {
		writeFlowError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, o.Snapshot())
}

// --- settings ---

func (h *GatewayHandler) settingsFor(c *gin.Context) (port.SettingsStore, bool) {
	switch c.Param("flow") {
	case "swap":
		return h.swapSettings, true
	case "pool":
		return h.poolSettings, true
	}
	c.JSON(http.StatusNotFound, errorResponse{Error: "unknown flow, expected swap or pool"})
	return nil, false
}

// GetSettingsHandler returns the persisted record for a flow.
func (h *GatewayHandler) GetSettingsHandler(c *gin.Context) {
	store, ok := h.settingsFor(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, store.Get())
}

type slippageRequest struct {
	IsAuto bool    `json:"isAuto"`
	Value  float64 `json:"value"`
}

// SetSlippageHandler updates slippage mode and value for a flow.
func (h *GatewayHandler) SetSlippageHandler(c *gin.Context) {
	store, ok := h.settingsFor(c)
	if !ok {
		return
	}
	var req slippageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, store.SetSlippage(req.IsAuto, req.Value))
}

type deadlineRequest struct {
	Minutes int `json:"minutes" binding:"required"`
}

// SetDeadlineHandler updates the transaction deadline for a flow.
func (h *GatewayHandler) SetDeadlineHandler(c *gin.Context) {
	store, ok := h.settingsFor(c)
	if !ok {
		return
	}
	var req deadlineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, store.SetDeadline(req.Minutes))
}

// ToggleEncryptionHandler flips the encryption transform toggle for a flow.
func (h *GatewayHandler) ToggleEncryptionHandler(c *gin.Context) {
	store, ok := h.settingsFor(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, store.ToggleEncryption())
}

// --- preferences ---

type themeRequest struct {
	Theme string `json:"theme" binding:"required"`
}

// GetThemeHandler returns the stored theme preference.
func (h *GatewayHandler) GetThemeHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"theme": h.prefs.Theme()})
}

// SetThemeHandler stores a new theme preference.
func (h *GatewayHandler) SetThemeHandler(c *gin.Context) {
	var req themeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	h.prefs.SetTheme(req.Theme)
	c.JSON(http.StatusOK, gin.H{"theme": h.prefs.Theme()})
}
