package orchestrator

import (
	"context"
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

// PoolStep is the wizard position of the liquidity flow: first the pair is
// chosen, then amounts are entered.
type PoolStep int

const (
	PoolStepSelectPair PoolStep = 1
	PoolStepAmounts    PoolStep = 2
)

// PoolState enumerates the liquidity flow's states.
type PoolState string

const (
	PoolStateIdle       PoolState = "idle"
	PoolStateQuoting    PoolState = "quoting"
	PoolStateApprovals  PoolState = "needsApproval"
	PoolStateReady      PoolState = "ready"
	PoolStateSubmitting PoolState = "submitting"
	PoolStateConfirming PoolState = "confirming"
	PoolStateConfirmed  PoolState = "confirmed"
	PoolStateFailed     PoolState = "failed"
	PoolStateStuck      PoolState = "stuck"
)

// PoolLeg names one side of the pair for approval targeting.
type PoolLeg string

const (
	PoolLegA PoolLeg = "A"
	PoolLegB PoolLeg = "B"
)

// PoolSnapshot is the read model the presentation layer consumes.
type PoolSnapshot struct {
	ChainID        int64                      `json:"chainId"`
	Step           PoolStep                   `json:"step"`
	State          PoolState                  `json:"state"`
	TokenA         *entity.Token              `json:"tokenA,omitempty"`
	TokenB         *entity.Token              `json:"tokenB,omitempty"`
	AmountA        string                     `json:"amountA"`
	AmountB        string                     `json:"amountB"`
	BalanceA       entity.AmountResult        `json:"balanceA"`
	BalanceB       entity.AmountResult        `json:"balanceB"`
	AllowanceA     entity.AmountResult        `json:"allowanceA"`
	AllowanceB     entity.AmountResult        `json:"allowanceB"`
	Quote          *entity.PoolQuote          `json:"quote,omitempty"`
	NeedsApprovalA bool                       `json:"needsApprovalA"`
	NeedsApprovalB bool                       `json:"needsApprovalB"`
	CanCreate      bool                       `json:"canCreate"`
	Pending        *entity.PendingTransaction `json:"pending,omitempty"`
	LastError      string                     `json:"lastError,omitempty"`
}

// PoolOrchestrator drives liquidity provisioning for one chain and one
// account: pair selection, two-sided amounts, per-leg approvals, deposit and
// withdrawal.
type PoolOrchestrator struct {
	logger   *zap.Logger
	reg      *registry.Registry
	ledger   port.Ledger
	engine   *engine.Engine
	settings port.SettingsStore
	chainID  int64

	mu         sync.Mutex
	step       PoolStep
	tokenA     *entity.Token
	tokenB     *entity.Token
	amountA    string
	amountB    string
	balanceA   entity.AmountResult
	balanceB   entity.AmountResult
	allowanceA entity.AmountResult
	allowanceB entity.AmountResult
	quote      *entity.PoolQuote
	state      PoolState
	pending    *entity.PendingTransaction
	lastError  string
	quoteSeq   uint64
	fetchSeq   uint64
}

// NewPoolOrchestrator builds the liquidity flow for a chain, preselecting the
// first two configured tokens.
func NewPoolOrchestrator(reg *registry.Registry, led port.Ledger, eng *engine.Engine, store port.SettingsStore, chainID int64, logger *zap.Logger) *PoolOrchestrator {
	o := &PoolOrchestrator{
		logger:     logger.Named("PoolOrchestrator").With(zap.Int64("chainId", chainID)),
		reg:        reg,
		ledger:     led,
		engine:     eng,
		settings:   store,
		chainID:    chainID,
		step:       PoolStepSelectPair,
		state:      PoolStateIdle,
		balanceA:   entity.UnknownAmount(),
		balanceB:   entity.UnknownAmount(),
		allowanceA: entity.UnknownAmount(),
		allowanceB: entity.UnknownAmount(),
	}

	tokens := reg.Tokens(chainID)
	if len(tokens) >= 2 {
		symbols := make([]string, 0, len(tokens))
		for symbol := range tokens {
			symbols = append(symbols, symbol)
		}
		sort.Strings(symbols)
		first, second := tokens[symbols[0]], tokens[symbols[1]]
		o.tokenA, o.tokenB = &first, &second
	}
	return o
}

// Snapshot returns the current flow state for rendering.
func (o *PoolOrchestrator) Snapshot() PoolSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	needsA, needsB := o.approvalsNeededLocked()
	return PoolSnapshot{
		ChainID:        o.chainID,
		Step:           o.step,
		State:          o.state,
		TokenA:         o.tokenA,
		TokenB:         o.tokenB,
		AmountA:        o.amountA,
		AmountB:        o.amountB,
		BalanceA:       o.balanceA,
		BalanceB:       o.balanceB,
		AllowanceA:     o.allowanceA,
		AllowanceB:     o.allowanceB,
		Quote:          o.quote,
		NeedsApprovalA: needsA,
		NeedsApprovalB: needsB,
		CanCreate:      o.state == PoolStateReady && o.ledger.CanWrite(),
		Pending:        o.pending,
		LastError:      o.lastError,
	}
}

// SelectTokenA chooses the first leg of the pair during step one.
func (o *PoolOrchestrator) SelectTokenA(symbol string) error {
	return o.selectLeg(symbol, PoolLegA)
}

// SelectTokenB chooses the second leg of the pair during step one.
func (o *PoolOrchestrator) SelectTokenB(symbol string) error {
	return o.selectLeg(symbol, PoolLegB)
}

func (o *PoolOrchestrator) selectLeg(symbol string, leg PoolLeg) error {
	token, ok := o.reg.Token(o.chainID, symbol)
	if !ok {
		return ErrUnknownToken
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.submissionInFlightLocked() {
		return ErrSubmissionInFlight
	}
	if leg == PoolLegA {
		o.tokenA = &token
		o.balanceA = entity.UnknownAmount()
		o.allowanceA = entity.UnknownAmount()
	} else {
		o.tokenB = &token
		o.balanceB = entity.UnknownAmount()
		o.allowanceB = entity.UnknownAmount()
	}
	o.invalidateQuoteLocked()
	return nil
}

// ConfirmPair advances from pair selection to amount entry. Both legs must be
// chosen and distinct.
func (o *PoolOrchestrator) ConfirmPair(ctx context.Context) error {
	o.mu.Lock()
	if o.submissionInFlightLocked() {
		o.mu.Unlock()
		return ErrSubmissionInFlight
	}
	if o.tokenA == nil || o.tokenB == nil || o.tokenA.SameAsset(*o.tokenB) {
		o.mu.Unlock()
		return ErrNotReady
	}
	o.step = PoolStepAmounts
	o.mu.Unlock()

	o.RefreshBalances(ctx)
	return nil
}

// BackToPairSelection returns to step one, discarding entered amounts.
func (o *PoolOrchestrator) BackToPairSelection() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.submissionInFlightLocked() {
		return ErrSubmissionInFlight
	}
	o.step = PoolStepSelectPair
	o.amountA = ""
	o.amountB = ""
	o.invalidateQuoteLocked()
	o.state = PoolStateIdle
	return nil
}

// SetAmountA updates the first leg's desired deposit and requotes.
func (o *PoolOrchestrator) SetAmountA(ctx context.Context, amount string) error {
	return o.setAmount(ctx, amount, PoolLegA)
}

// SetAmountB updates the second leg's desired deposit and requotes.
func (o *PoolOrchestrator) SetAmountB(ctx context.Context, amount string) error {
	return o.setAmount(ctx, amount, PoolLegB)
}

func (o *PoolOrchestrator) setAmount(ctx context.Context, amount string, leg PoolLeg) error {
	o.mu.Lock()
	if o.submissionInFlightLocked() {
		o.mu.Unlock()
		return ErrSubmissionInFlight
	}
	if o.step != PoolStepAmounts {
		o.mu.Unlock()
		return ErrNotReady
	}
	if leg == PoolLegA {
		o.amountA = amount
	} else {
		o.amountB = amount
	}
	o.invalidateQuoteLocked()
	o.mu.Unlock()

	o.refreshQuote(ctx)
	return nil
}

// SetMaxAmount sets a leg's amount to its full fetched balance.
func (o *PoolOrchestrator) SetMaxAmount(ctx context.Context, leg PoolLeg) error {
	o.mu.Lock()
	if o.submissionInFlightLocked() {
		o.mu.Unlock()
		return ErrSubmissionInFlight
	}
	token, balance := o.tokenA, o.balanceA
	if leg == PoolLegB {
		token, balance = o.tokenB, o.balanceB
	}
	if token == nil || balance.Status != entity.AmountOK {
		o.mu.Unlock()
		return ErrNotReady
	}
	formatted, err := utils.FormatBigInt(balance.Value, token.Decimals)
	if err != nil {
		o.mu.Unlock()
		return err
	}
	if leg == PoolLegA {
		o.amountA = formatted
	} else {
		o.amountB = formatted
	}
	o.invalidateQuoteLocked()
	o.mu.Unlock()

	o.refreshQuote(ctx)
	return nil
}

func (o *PoolOrchestrator) invalidateQuoteLocked() {
	o.quote = nil
	o.lastError = ""
	o.quoteSeq++
	if o.step == PoolStepAmounts {
		o.state = PoolStateQuoting
	}
}

func (o *PoolOrchestrator) submissionInFlightLocked() bool {
	return o.state == PoolStateSubmitting || o.state == PoolStateConfirming
}

// approvalsNeededLocked evaluates both legs against the current quote. A
// wrapped-native leg never needs approval: it rides as attached value.
func (o *PoolOrchestrator) approvalsNeededLocked() (bool, bool) {
	if o.quote == nil || o.tokenA == nil || o.tokenB == nil {
		return false, false
	}
	wrappedA := o.reg.IsNativeWrappedToken(o.tokenA.Symbol)
	wrappedB := o.reg.IsNativeWrappedToken(o.tokenB.Symbol)
	needsA := o.engine.NeedsApproval(wrappedA, o.allowanceA, o.quote.AmountA)
	needsB := o.engine.NeedsApproval(wrappedB, o.allowanceB, o.quote.AmountB)
	return needsA, needsB
}

// RefreshBalances fetches both balances and both router allowances
// concurrently.
func (o *PoolOrchestrator) RefreshBalances(ctx context.Context) {
	o.mu.Lock()
	tokenA, tokenB := o.tokenA, o.tokenB
	o.fetchSeq++
	seq := o.fetchSeq
	o.mu.Unlock()

	account := o.ledger.Account()
	router, hasRouter := o.reg.Router(o.chainID)

	balanceA := entity.UnknownAmount()
	balanceB := entity.UnknownAmount()
	allowanceA := entity.UnknownAmount()
	allowanceB := entity.UnknownAmount()

	g, gctx := errgroup.WithContext(ctx)
	if tokenA != nil {
		addr := tokenA.Address
		g.Go(func() error {
			balanceA = o.engine.Balance(gctx, o.chainID, addr, account)
			return nil
		})
		if hasRouter {
			g.Go(func() error {
				allowanceA = o.engine.Allowance(gctx, o.chainID, addr, account, router)
				return nil
			})
		}
	}
	if tokenB != nil {
		addr := tokenB.Address
		g.Go(func() error {
			balanceB = o.engine.Balance(gctx, o.chainID, addr, account)
			return nil
		})
		if hasRouter {
			g.Go(func() error {
				allowanceB = o.engine.Allowance(gctx, o.chainID, addr, account, router)
				return nil
			})
		}
	}
	_ = g.Wait()

	o.mu.Lock()
	defer o.mu.Unlock()
	if seq != o.fetchSeq {
		return
	}
	o.balanceA = balanceA
	o.balanceB = balanceB
	o.allowanceA = allowanceA
	o.allowanceB = allowanceB
}

// refreshQuote recomputes the deposit quote for the current amounts. Responses
// arriving after a newer edit are discarded.
func (o *PoolOrchestrator) refreshQuote(ctx context.Context) {
	o.mu.Lock()
	if o.step != PoolStepAmounts || o.tokenA == nil || o.tokenB == nil {
		o.mu.Unlock()
		return
	}
	router, hasRouter := o.reg.Router(o.chainID)
	if !hasRouter {
		o.state = PoolStateIdle
		o.lastError = "unsupported chain: no router configured"
		o.mu.Unlock()
		return
	}
	amountA, amountB := o.amountA, o.amountB
	tokenA, tokenB := *o.tokenA, *o.tokenB
	_, okA := o.engine.RequiredAmount(amountA, tokenA.Decimals)
	_, okB := o.engine.RequiredAmount(amountB, tokenB.Decimals)
	if !okA || !okB {
		// one side is still empty; wait for both before quoting
		o.quote = nil
		o.state = PoolStateIdle
		o.mu.Unlock()
		return
	}
	o.state = PoolStateQuoting
	seq := o.quoteSeq
	o.mu.Unlock()

	slippage := o.settings.Get().EffectiveSlippagePercent()
	quote, err := o.engine.PoolQuote(ctx, o.chainID, router, amountA, amountB, tokenA, tokenB, slippage)

	o.mu.Lock()
	defer o.mu.Unlock()
	if seq != o.quoteSeq {
		metrics.QuotesSuperseded.Inc()
		return
	}
	if err != nil {
		o.quote = nil
		o.lastError = err.Error()
		o.state = PoolStateIdle
		return
	}

	o.quote = quote
	o.resolveApprovalsLocked()
}

func (o *PoolOrchestrator) resolveApprovalsLocked() {
	needsA, needsB := o.approvalsNeededLocked()
	if needsA || needsB {
		o.state = PoolStateApprovals
	} else {
		o.state = PoolStateReady
	}
}

// Approve submits the ERC-20 approval for one leg. Each leg is approved
// separately; a confirmed approval re-evaluates the whole flow.
func (o *PoolOrchestrator) Approve(ctx context.Context, leg PoolLeg) error {
	if !o.ledger.CanWrite() {
		return ledger.ErrWriteUnavailable
	}

	o.mu.Lock()
	if o.submissionInFlightLocked() {
		o.mu.Unlock()
		return ErrSubmissionInFlight
	}
	if o.state != PoolStateApprovals || o.quote == nil {
		o.mu.Unlock()
		return ErrNotReady
	}
	needsA, needsB := o.approvalsNeededLocked()
	var token *entity.Token
	var required *big.Int
	switch leg {
	case PoolLegA:
		if !needsA {
			o.mu.Unlock()
			return ErrNotReady
		}
		token, required = o.tokenA, o.quote.AmountA
	case PoolLegB:
		if !needsB {
			o.mu.Unlock()
			return ErrNotReady
		}
		token, required = o.tokenB, o.quote.AmountB
	default:
		o.mu.Unlock()
		return ErrNotReady
	}
	router, hasRouter := o.reg.Router(o.chainID)
	if !hasRouter || token == nil {
		o.mu.Unlock()
		return ErrNotReady
	}
	tokenAddr := token.Address
	prev := o.state
	o.state = PoolStateSubmitting
	o.lastError = ""
	o.mu.Unlock()

	encrypt := o.settings.Get().EncryptionEnabled
	hash, err := o.ledger.Write(ctx, o.chainID, port.WriteRequest{
		ABI:      ledger.ERC20ABI(),
		Contract: tokenAddr,
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
	o.state = PoolStateConfirming
	o.mu.Unlock()

	go o.trackConfirmation(entity.TxApprove, hash)
	return nil
}

// AddLiquidity submits the deposit. A wrapped-native leg switches to the
// payable entry point: the native amount rides as attached value and the
// remaining token is passed by address.
func (o *PoolOrchestrator) AddLiquidity(ctx context.Context) error {
	if !o.ledger.CanWrite() {
		return ledger.ErrWriteUnavailable
	}

	o.mu.Lock()
	if o.submissionInFlightLocked() {
		o.mu.Unlock()
		return ErrSubmissionInFlight
	}
	if o.state != PoolStateReady || o.quote == nil || o.tokenA == nil || o.tokenB == nil {
		o.mu.Unlock()
		return ErrNotReady
	}
	router, hasRouter := o.reg.Router(o.chainID)
	if !hasRouter {
		o.mu.Unlock()
		return ErrUnsupportedChain
	}
	quote := *o.quote
	tokenA, tokenB := *o.tokenA, *o.tokenB
	prev := o.state
	o.state = PoolStateSubmitting
	o.lastError = ""
	o.mu.Unlock()

	settings := o.settings.Get()
	deadline := big.NewInt(time.Now().Unix() + int64(settings.DeadlineMinutes)*60)
	account := o.ledger.Account()

	req := port.WriteRequest{
		ABI:      ledger.RouterABI(),
		Contract: router,
		Encrypt:  settings.EncryptionEnabled,
	}
	wrappedA := o.reg.IsNativeWrappedToken(tokenA.Symbol)
	wrappedB := o.reg.IsNativeWrappedToken(tokenB.Symbol)
	switch {
	case wrappedA:
		req.Function = "addLiquidityETH"
		req.Args = []interface{}{tokenB.Address, quote.AmountB, quote.AmountBMin, quote.AmountAMin, account, deadline}
		req.Value = quote.AmountA
	case wrappedB:
		req.Function = "addLiquidityETH"
		req.Args = []interface{}{tokenA.Address, quote.AmountA, quote.AmountAMin, quote.AmountBMin, account, deadline}
		req.Value = quote.AmountB
	default:
		req.Function = "addLiquidity"
		req.Args = []interface{}{tokenA.Address, tokenB.Address, quote.AmountA, quote.AmountB, quote.AmountAMin, quote.AmountBMin, account, deadline}
	}

	hash, err := o.ledger.Write(ctx, o.chainID, req)

	o.mu.Lock()
	if err != nil {
		o.state = prev
		o.lastError = err.Error()
		o.mu.Unlock()
		metrics.SubmissionsTotal.WithLabelValues(string(entity.TxAddLiquidity), "rejected").Inc()
		return err
	}
	o.pending = &entity.PendingTransaction{Hash: hash, Kind: entity.TxAddLiquidity, IsConfirming: true}
	o.state = PoolStateConfirming
	o.mu.Unlock()

	go o.trackConfirmation(entity.TxAddLiquidity, hash)
	return nil
}

// RemoveLiquidity burns LP tokens for the current pair. No withdrawal
// minimums are derivable without reserve reads, so both floors are zero and
// the deadline still bounds execution.
func (o *PoolOrchestrator) RemoveLiquidity(ctx context.Context, liquidity string) error {
	if !o.ledger.CanWrite() {
		return ledger.ErrWriteUnavailable
	}

	o.mu.Lock()
	if o.submissionInFlightLocked() {
		o.mu.Unlock()
		return ErrSubmissionInFlight
	}
	if o.tokenA == nil || o.tokenB == nil {
		o.mu.Unlock()
		return ErrNotReady
	}
	router, hasRouter := o.reg.Router(o.chainID)
	if !hasRouter {
		o.mu.Unlock()
		return ErrUnsupportedChain
	}
	// LP tokens use 18 decimals on every pair
	amount, ok := o.engine.RequiredAmount(liquidity, 18)
	if !ok {
		o.mu.Unlock()
		return ErrNotReady
	}
	tokenA, tokenB := *o.tokenA, *o.tokenB
	prev := o.state
	o.state = PoolStateSubmitting
	o.lastError = ""
	o.mu.Unlock()

	settings := o.settings.Get()
	deadline := big.NewInt(time.Now().Unix() + int64(settings.DeadlineMinutes)*60)

	hash, err := o.ledger.Write(ctx, o.chainID, port.WriteRequest{
		ABI:      ledger.RouterABI(),
		Contract: router,
		Function: "removeLiquidity",
		Args: []interface{}{
			tokenA.Address, tokenB.Address, amount,
			new(big.Int), new(big.Int), o.ledger.Account(), deadline,
		},
		Encrypt: settings.EncryptionEnabled,
	})

	o.mu.Lock()
	if err != nil {
		o.state = prev
		o.lastError = err.Error()
		o.mu.Unlock()
		metrics.SubmissionsTotal.WithLabelValues(string(entity.TxRemoveLiquidity), "rejected").Inc()
		return err
	}
	o.pending = &entity.PendingTransaction{Hash: hash, Kind: entity.TxRemoveLiquidity, IsConfirming: true}
	o.state = PoolStateConfirming
	o.mu.Unlock()

	go o.trackConfirmation(entity.TxRemoveLiquidity, hash)
	return nil
}

func (o *PoolOrchestrator) trackConfirmation(kind entity.TxKind, hash common.Hash) {
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
			o.state = PoolStateConfirmed
			o.amountA = ""
			o.amountB = ""
			o.quote = nil
		}
	case entity.TxFailed:
		o.state = PoolStateFailed
		o.lastError = "transaction reverted"
	case entity.TxStuck:
		o.state = PoolStateStuck
		o.lastError = "confirmation wait timed out; transaction may still land"
	}
	o.mu.Unlock()

	o.RefreshBalances(ctx)
	if kind == entity.TxApprove && outcome == entity.TxConfirmed {
		o.refreshQuote(ctx)
	}
}
