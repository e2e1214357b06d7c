// Package orchestrator drives the swap and liquidity state machines: balance
// and allowance refresh, quoting, approval, submission and confirmation
// tracking. Each orchestrator instance permits one in-flight submission at a
// time; nothing is queued.
package orchestrator

import (
	"context"
	"errors"
	"math/big"
	"sort"
	"sync"
	"time"

	"dex_gateway/internal/domain/entity"
	"dex_gateway/internal/engine"
	"dex_gateway/internal/ledger"
	"dex_gateway/internal/metrics"
	"dex_gateway/internal/pkg/utils"
	"dex_gateway/internal/port"
	"dex_gateway/internal/registry"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrSubmissionInFlight rejects a second submission while one is pending.
	ErrSubmissionInFlight = errors.New("a submission is already in flight")
	// ErrNotReady means the flow's preconditions for the action are not met.
	ErrNotReady = errors.New("flow is not ready for this action")
	// ErrUnsupportedChain means the configured chain has no router or tokens.
	ErrUnsupportedChain = errors.New("unsupported chain")
	// ErrUnknownToken means the symbol is not configured on the chain.
	ErrUnknownToken = errors.New("unknown token")
)

// SwapState enumerates the swap flow's states.
type SwapState string

const (
	SwapStateIdle          SwapState = "idle"
	SwapStateQuoting       SwapState = "quoting"
	SwapStateNeedsApproval SwapState = "needsApproval"
	SwapStateReady         SwapState = "readyToSwap"
	SwapStateSubmitting    SwapState = "submitting"
	SwapStateConfirming    SwapState = "confirming"
	SwapStateConfirmed     SwapState = "confirmed"
	SwapStateFailed        SwapState = "failed"
	SwapStateStuck         SwapState = "stuck"
)

// SwapSnapshot is the read model the presentation layer consumes.
type SwapSnapshot struct {
	ChainID       int64                      `json:"chainId"`
	State         SwapState                  `json:"state"`
	FromToken     *entity.Token              `json:"fromToken,omitempty"`
	ToToken       *entity.Token              `json:"toToken,omitempty"`
	FromAmount    string                     `json:"fromAmount"`
	ToAmount      string                     `json:"toAmount"`
	BalanceFrom   entity.AmountResult        `json:"balanceFrom"`
	BalanceTo     entity.AmountResult        `json:"balanceTo"`
	Allowance     entity.AmountResult        `json:"allowance"`
	Quote         *entity.SwapQuote          `json:"quote,omitempty"`
	NeedsApproval bool                       `json:"needsApproval"`
	CanSubmit     bool                       `json:"canSubmit"`
	Pending       *entity.PendingTransaction `json:"pending,omitempty"`
	LastError     string                     `json:"lastError,omitempty"`
}

// SwapOrchestrator drives a single-asset-pair exchange for one chain and one
// account.
type SwapOrchestrator struct {
	logger   *zap.Logger
	reg      *registry.Registry
	ledger   port.Ledger
	engine   *engine.Engine
	settings port.SettingsStore
	chainID  int64

	mu          sync.Mutex
	fromToken   *entity.Token
	toToken     *entity.Token
	fromAmount  string
	toAmount    string
	balanceFrom entity.AmountResult
	balanceTo   entity.AmountResult
	allowance   entity.AmountResult
	quote       *entity.SwapQuote
	state       SwapState
	pending     *entity.PendingTransaction
	lastError   string
	quoteSeq    uint64
	fetchSeq    uint64
}

// NewSwapOrchestrator builds the swap flow for a chain, preselecting the
// first two configured tokens the way the original selector does.
func NewSwapOrchestrator(reg *registry.Registry, led port.Ledger, eng *engine.Engine, store port.SettingsStore, chainID int64, logger *zap.Logger) *SwapOrchestrator {
	o := &SwapOrchestrator{
		logger:      logger.Named("SwapOrchestrator").With(zap.Int64("chainId", chainID)),
		reg:         reg,
		ledger:      led,
		engine:      eng,
		settings:    store,
		chainID:     chainID,
		state:       SwapStateIdle,
		balanceFrom: entity.UnknownAmount(),
		balanceTo:   entity.UnknownAmount(),
		allowance:   entity.UnknownAmount(),
	}

	tokens := reg.Tokens(chainID)
	if len(tokens) >= 2 {
		symbols := make([]string, 0, len(tokens))
		for symbol := range tokens {
			symbols = append(symbols, symbol)
		}
		sort.Strings(symbols)
		first, second := tokens[symbols[0]], tokens[symbols[1]]
		o.fromToken, o.toToken = &first, &second
	}
	return o
}

// Snapshot returns the current flow state for rendering.
func (o *SwapOrchestrator) Snapshot() SwapSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return SwapSnapshot{
		ChainID:       o.chainID,
		State:         o.state,
		FromToken:     o.fromToken,
		ToToken:       o.toToken,
		FromAmount:    o.fromAmount,
		ToAmount:      o.toAmount,
		BalanceFrom:   o.balanceFrom,
		BalanceTo:     o.balanceTo,
		Allowance:     o.allowance,
		Quote:         o.quote,
		NeedsApproval: o.state == SwapStateNeedsApproval,
		CanSubmit:     o.state == SwapStateReady && o.ledger.CanWrite(),
		Pending:       o.pending,
		LastError:     o.lastError,
	}
}

// SelectFromToken switches the source token and invalidates the quote.
func (o *SwapOrchestrator) SelectFromToken(ctx context.Context, symbol string) error {
	return o.selectToken(ctx, symbol, true)
}

// SelectToToken switches the destination token and invalidates the quote.
func (o *SwapOrchestrator) SelectToToken(ctx context.Context, symbol string) error {
	return o.selectToken(ctx, symbol, false)
}

func (o *SwapOrchestrator) selectToken(ctx context.Context, symbol string, isFrom bool) error {
	token, ok := o.reg.Token(o.chainID, symbol)
	if !ok {
		return ErrUnknownToken
	}

	o.mu.Lock()
	if o.submissionInFlightLocked() {
		o.mu.Unlock()
		return ErrSubmissionInFlight
	}
	if isFrom {
		o.fromToken = &token
		o.allowance = entity.UnknownAmount()
		o.balanceFrom = entity.UnknownAmount()
	} else {
		o.toToken = &token
		o.balanceTo = entity.UnknownAmount()
	}
	o.invalidateQuoteLocked()
	o.mu.Unlock()

	o.RefreshBalances(ctx)
	o.refreshQuote(ctx)
	return nil
}

// SetFromAmount updates the input amount and forces a requote.
func (o *SwapOrchestrator) SetFromAmount(ctx context.Context, amount string) error {
	o.mu.Lock()
	if o.submissionInFlightLocked() {
		o.mu.Unlock()
		return ErrSubmissionInFlight
	}
	o.fromAmount = amount
	o.invalidateQuoteLocked()
	o.mu.Unlock()

	o.refreshQuote(ctx)
	return nil
}

// SetMaxFromAmount sets the input to the full fetched source balance.
func (o *SwapOrchestrator) SetMaxFromAmount(ctx context.Context) error {
	o.mu.Lock()
	if o.submissionInFlightLocked() {
		o.mu.Unlock()
		return ErrSubmissionInFlight
	}
	if o.fromToken == nil || o.balanceFrom.Status != entity.AmountOK {
		o.mu.Unlock()
		return ErrNotReady
	}
	formatted, err := utils.FormatBigInt(o.balanceFrom.Value, o.fromToken.Decimals)
	if err != nil {
		o.mu.Unlock()
		return err
	}
	o.fromAmount = formatted
	o.invalidateQuoteLocked()
	o.mu.Unlock()

	o.refreshQuote(ctx)
	return nil
}

// SwitchTokens flips the direction. Token, amount and balance state move
// together under the lock, so no reader observes a half-flipped pair.
func (o *SwapOrchestrator) SwitchTokens(ctx context.Context) error {
	o.mu.Lock()
	if o.submissionInFlightLocked() {
		o.mu.Unlock()
		return ErrSubmissionInFlight
	}
	o.fromToken, o.toToken = o.toToken, o.fromToken
	o.balanceFrom, o.balanceTo = o.balanceTo, o.balanceFrom
	o.fromAmount = o.toAmount
	o.toAmount = ""
	o.allowance = entity.UnknownAmount()
	o.invalidateQuoteLocked()
	o.mu.Unlock()

	o.RefreshBalances(ctx)
	o.refreshQuote(ctx)
	return nil
}

// invalidateQuoteLocked drops any derived state that the edit made stale.
func (o *SwapOrchestrator) invalidateQuoteLocked() {
	o.quote = nil
	o.toAmount = ""
	o.lastError = ""
	o.quoteSeq++
	o.state = SwapStateQuoting
}

func (o *SwapOrchestrator) submissionInFlightLocked() bool {
	return o.state == SwapStateSubmitting || o.state == SwapStateConfirming
}

// RefreshBalances fetches the two balances and the source allowance
// concurrently; the fetches are independent reads.
func (o *SwapOrchestrator) RefreshBalances(ctx context.Context) {
	o.mu.Lock()
	from, to := o.fromToken, o.toToken
	o.fetchSeq++
	seq := o.fetchSeq
	o.mu.Unlock()

	account := o.ledger.Account()
	router, hasRouter := o.reg.Router(o.chainID)

	var balanceFrom, balanceTo, allowance entity.AmountResult
	balanceFrom, balanceTo, allowance = entity.UnknownAmount(), entity.UnknownAmount(), entity.UnknownAmount()

	g, gctx := errgroup.WithContext(ctx)
	if from != nil {
		fromAddr := from.Address
		g.Go(func() error {
			balanceFrom = o.engine.Balance(gctx, o.chainID, fromAddr, account)
			return nil
		})
		if hasRouter {
			g.Go(func() error {
				allowance = o.engine.Allowance(gctx, o.chainID, fromAddr, account, router)
				return nil
			})
		}
	}
	if to != nil {
		toAddr := to.Address
		g.Go(func() error {
			balanceTo = o.engine.Balance(gctx, o.chainID, toAddr, account)
			return nil
		})
	}
	_ = g.Wait()

	o.mu.Lock()
	defer o.mu.Unlock()
	if seq != o.fetchSeq {
		// the pair changed while we were fetching
		return
	}
	o.balanceFrom = balanceFrom
	o.balanceTo = balanceTo
	o.allowance = allowance
}

// refreshQuote recomputes the quote for the current input snapshot. A
// response that arrives after a newer edit is discarded, not displayed.
func (o *SwapOrchestrator) refreshQuote(ctx context.Context) {
	o.mu.Lock()
	if o.fromToken == nil || o.toToken == nil {
		o.state = SwapStateIdle
		o.mu.Unlock()
		return
	}
	router, hasRouter := o.reg.Router(o.chainID)
	if !hasRouter {
		o.state = SwapStateIdle
		o.lastError = "unsupported chain: no router configured"
		o.mu.Unlock()
		return
	}
	amount := o.fromAmount
	from, to := *o.fromToken, *o.toToken
	if _, ok := o.engine.RequiredAmount(amount, from.Decimals); !ok {
		// empty or unparseable input: nothing to quote, nothing to approve
		o.quote = nil
		o.toAmount = ""
		o.state = SwapStateIdle
		o.mu.Unlock()
		return
	}
	o.state = SwapStateQuoting
	seq := o.quoteSeq
	o.mu.Unlock()

	slippage := o.settings.Get().EffectiveSlippagePercent()
	quote, err := o.engine.SwapQuote(ctx, o.chainID, router, amount, from, to, slippage)

	o.mu.Lock()
	defer o.mu.Unlock()
	if seq != o.quoteSeq {
		metrics.QuotesSuperseded.Inc()
		return
	}
	if err != nil {
		o.quote = nil
		o.toAmount = ""
		o.lastError = err.Error()
		o.state = SwapStateIdle
		return
	}

	o.quote = quote
	if formatted, fmtErr := utils.FormatBigInt(quote.AmountOut, to.Decimals); fmtErr == nil {
		o.toAmount = formatted
	}
	o.resolveApprovalLocked(quote.AmountIn)
}

// resolveApprovalLocked moves Quoting to NeedsApproval or ReadyToSwap based
// on the wrapped-native exemption and the current allowance.
func (o *SwapOrchestrator) resolveApprovalLocked(required *big.Int) {
	isWrapped := o.fromToken != nil && o.reg.IsNativeWrappedToken(o.fromToken.Symbol)
	if o.engine.NeedsApproval(isWrapped, o.allowance, required) {
		o.state = SwapStateNeedsApproval
	} else {
		o.state = SwapStateReady
	}
}

// Approve submits the ERC-20 approval for the source token. On receipt the
// flow re-enters Quoting, not ReadyToSwap, because the quote may have gone
// stale while confirming.
func (o *SwapOrchestrator) Approve(ctx context.Context) error {
	if !o.ledger.CanWrite() {
		return ledger.ErrWriteUnavailable
	}

	o.mu.Lock()
	if o.submissionInFlightLocked() {
		o.mu.Unlock()
		return ErrSubmissionInFlight
	}
	if o.state != SwapStateNeedsApproval || o.fromToken == nil {
		o.mu.Unlock()
		return ErrNotReady
	}
	router, hasRouter := o.reg.Router(o.chainID)
	required, ok := o.engine.RequiredAmount(o.fromAmount, o.fromToken.Decimals)
	if !hasRouter || !ok {
		o.mu.Unlock()
		return ErrNotReady
	}
	token := o.fromToken.Address
	prev := o.state
	o.state = SwapStateSubmitting
	o.lastError = ""
	o.mu.Unlock()

	encrypt := o.settings.Get().EncryptionEnabled
	hash, err := o.ledger.Write(ctx, o.chainID, port.WriteRequest{
		ABI:      ledger.ERC20ABI(),
		Contract: token,
		Function: "approve",
		Args:     []interface{}{router, required},
		Encrypt:  encrypt,
	})

	o.mu.Lock()
	if err != nil {
		o.state = prev
		o.lastError = err.Error()
		o.mu.Unlock()
		metrics.SubmissionsTotal.WithLabelValues(string(entity.TxApprove), "rejected").Inc()
		return err
	}
	o.pending = &entity.PendingTransaction{Hash: hash, Kind: entity.TxApprove, IsConfirming: true}
	o.state = SwapStateConfirming
	o.mu.Unlock()

	go o.trackConfirmation(entity.TxApprove, hash)
	return nil
}

// ExecuteSwap submits the exchange using the current quote's minimum. The
// deadline is computed here, at submission time; a deadline derived at quote
// time must never be reused.
func (o *SwapOrchestrator) ExecuteSwap(ctx context.Context) error {
	if !o.ledger.CanWrite() {
		return ledger.ErrWriteUnavailable
	}

	o.mu.Lock()
	if o.submissionInFlightLocked() {
		o.mu.Unlock()
		return ErrSubmissionInFlight
	}
	if o.state != SwapStateReady || o.quote == nil || o.fromToken == nil || o.toToken == nil {
		o.mu.Unlock()
		return ErrNotReady
	}
	router, hasRouter := o.reg.Router(o.chainID)
	if !hasRouter {
		o.mu.Unlock()
		return ErrUnsupportedChain
	}
	quote := *o.quote
	path := []common.Address{o.fromToken.Address, o.toToken.Address}
	prev := o.state
	o.state = SwapStateSubmitting
	o.lastError = ""
	o.mu.Unlock()

	settings := o.settings.Get()
	deadline := big.NewInt(time.Now().Unix() + int64(settings.DeadlineMinutes)*60)

	hash, err := o.ledger.Write(ctx, o.chainID, port.WriteRequest{
		ABI:      ledger.RouterABI(),
		Contract: router,
		Function: "swapExactTokensForTokens",
		Args:     []interface{}{quote.AmountIn, quote.MinimumAmountOut, path, o.ledger.Account(), deadline},
		Encrypt:  settings.EncryptionEnabled,
	})

	o.mu.Lock()
	if err != nil {
		o.state = prev
		o.lastError = err.Error()
		o.mu.Unlock()
		metrics.SubmissionsTotal.WithLabelValues(string(entity.TxSwap), "rejected").Inc()
		return err
	}
	o.pending = &entity.PendingTransaction{Hash: hash, Kind: entity.TxSwap, IsConfirming: true}
	o.state = SwapStateConfirming
	o.mu.Unlock()

	go o.trackConfirmation(entity.TxSwap, hash)
	return nil
}

// trackConfirmation waits (bounded) for the receipt and applies the terminal
// transition. Confirmed approvals re-enter Quoting after a refresh; a
// confirmed swap lands in Confirmed until the next edit.
func (o *SwapOrchestrator) trackConfirmation(kind entity.TxKind, hash common.Hash) {
	ctx := context.Background()
	outcome, err := o.ledger.WaitForReceipt(ctx, o.chainID, hash)
	if err != nil {
		outcome = entity.TxStuck
	}
	metrics.SubmissionsTotal.WithLabelValues(string(kind), string(outcome)).Inc()

	o.mu.Lock()
	o.pending = nil
	switch outcome {
	case entity.TxConfirmed:
		if kind == entity.TxApprove {
			o.invalidateQuoteLocked()
		} else {
			o.state = SwapStateConfirmed
			o.fromAmount = ""
			o.toAmount = ""
			o.quote = nil
		}
	case entity.TxFailed:
		o.state = SwapStateFailed
		o.lastError = "transaction reverted"
	case entity.TxStuck:
		o.state = SwapStateStuck
		o.lastError = "confirmation wait timed out; transaction may still land"
	}
	o.mu.Unlock()

	// allowance and balances changed on-chain; refresh either way
	o.RefreshBalances(ctx)
	if kind == entity.TxApprove && outcome == entity.TxConfirmed {
		o.refreshQuote(ctx)
	}
}
