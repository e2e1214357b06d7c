// Package registry resolves static chain configuration: router addresses,
// token lists and wrapped-native detection. It performs no I/O after
// construction; an unknown chain id degrades to an empty token list and a
// missing router, never an error.
package registry

import (
	"fmt"
	"sort"
	"strings"

	"dex_gateway/internal/config"
	"dex_gateway/internal/domain/entity"

	"github.com/ethereum/go-ethereum/common"
)

// Registry is a pure lookup over the configured chains.
type Registry struct {
	chains map[int64]entity.ChainDefinition
	// wrapped-native symbols across all chains, e.g. "WBITE", "WFAIR"
	wrappedNative map[string]struct{}
	order         []int64
}

// New validates the configured chains and builds the registry. Every chain
// must carry at least two tokens including exactly one wrapped-native token
// named "W" + native symbol.
func New(nodes []config.ChainNode) (*Registry, error) {
	r := &Registry{
		chains:        make(map[int64]entity.ChainDefinition, len(nodes)),
		wrappedNative: make(map[string]struct{}),
	}

	for _, node := range nodes {
		if _, exists := r.chains[node.ChainID]; exists {
			return nil, fmt.Errorf("duplicate chain id %d", node.ChainID)
		}

		def := entity.ChainDefinition{
			ChainID:          node.ChainID,
			Name:             node.Name,
			DisplayName:      node.DisplayName,
			NativeSymbol:     node.NativeSymbol,
			NativeDecimals:   node.NativeDecimals,
			PrimaryRPCURL:    node.Endpoint,
			FallbackRPCURLs:  node.FallbackRPCURLs,
			BlockExplorerURL: node.BlockExplorerURL,
			Tokens:           make(map[string]entity.Token, len(node.Tokens)),
		}
		if node.Router != "" {
			if !common.IsHexAddress(node.Router) {
				return nil, fmt.Errorf("chain %d: invalid router address %q", node.ChainID, node.Router)
			}
			def.Router = common.HexToAddress(node.Router)
		}

		wrappedCount := 0
		for symbol, tok := range node.Tokens {
			if !common.IsHexAddress(tok.Address) {
				return nil, fmt.Errorf("chain %d: token %s has invalid address %q", node.ChainID, symbol, tok.Address)
			}
			token := entity.Token{
				Address:  common.HexToAddress(tok.Address),
				Decimals: tok.Decimals,
				Symbol:   tok.Symbol,
				Name:     tok.Name,
				IconName: tok.IconName,
				ChainID:  node.ChainID,
			}
			if token.Symbol == "" {
				token.Symbol = symbol
			}
			if token.IconName == "" {
				token.IconName = strings.ToLower(token.Symbol)
			}
			def.Tokens[symbol] = token
			if symbol == def.WrappedNativeSymbol() {
				wrappedCount++
			}
		}

		if len(def.Tokens) < 2 {
			return nil, fmt.Errorf("chain %d: needs at least two tokens, got %d", node.ChainID, len(def.Tokens))
		}
		if wrappedCount != 1 {
			return nil, fmt.Errorf("chain %d: expected exactly one wrapped-native token %q, got %d",
				node.ChainID, def.WrappedNativeSymbol(), wrappedCount)
		}

		r.wrappedNative[def.WrappedNativeSymbol()] = struct{}{}
		r.chains[node.ChainID] = def
		r.order = append(r.order, node.ChainID)
	}

	sort.Slice(r.order, func(i, j int) bool { return r.order[i] < r.order[j] })
	return r, nil
}

// Chain returns the full definition for a chain id.
func (r *Registry) Chain(chainID int64) (entity.ChainDefinition, bool) {
	def, ok := r.chains[chainID]
	return def, ok
}

// Chains returns all configured chain definitions in chain-id order.
func (r *Registry) Chains() []entity.ChainDefinition {
	out := make([]entity.ChainDefinition, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.chains[id])
	}
	return out
}

// Tokens returns the symbol-keyed token map for a chain. Unknown chain ids
// yield an empty map.
func (r *Registry) Tokens(chainID int64) map[string]entity.Token {
	def, ok := r.chains[chainID]
	if !ok {
		return map[string]entity.Token{}
	}
	out := make(map[string]entity.Token, len(def.Tokens))
	for symbol, token := range def.Tokens {
		out[symbol] = token
	}
	return out
}

// Token resolves a single token by chain and symbol.
func (r *Registry) Token(chainID int64, symbol string) (entity.Token, bool) {
	def, ok := r.chains[chainID]
	if !ok {
		return entity.Token{}, false
	}
	token, ok := def.Tokens[symbol]
	return token, ok
}

// Router returns the AMM router address for a chain. The second return is
// false for unknown chains and chains configured without a router.
func (r *Registry) Router(chainID int64) (common.Address, bool) {
	def, ok := r.chains[chainID]
	if !ok || def.Router == (common.Address{}) {
		return common.Address{}, false
	}
	return def.Router, true
}

// IsNativeWrappedToken reports whether the symbol is the wrapped-native
// token of any configured chain.
func (r *Registry) IsNativeWrappedToken(symbol string) bool {
	_, ok := r.wrappedNative[symbol]
	return ok
}

// AllTokensWithChain lists every configured token tagged with its chain, for
// cross-chain selection. Chains come in id order, tokens in symbol order.
func (r *Registry) AllTokensWithChain() []entity.ChainToken {
	var out []entity.ChainToken
	for _, id := range r.order {
		def := r.chains[id]
		symbols := make([]string, 0, len(def.Tokens))
		for symbol := range def.Tokens {
			symbols = append(symbols, symbol)
		}
		sort.Strings(symbols)
		for _, symbol := range symbols {
			out = append(out, entity.ChainToken{
				Token:            def.Tokens[symbol],
				ChainID:          id,
				ChainDisplayName: def.DisplayName,
			})
		}
	}
	return out
}
