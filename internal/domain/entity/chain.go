package entity

import "github.com/ethereum/go-ethereum/common"

// ChainDefinition holds the configuration for a specific blockchain network.
// It is loaded once at startup from static configuration and never mutated
// at runtime.
type ChainDefinition struct {
	ChainID          int64            `json:"chainId"`
	Name             string           `json:"name"`
	DisplayName      string           `json:"displayName"`
	NativeSymbol     string           `json:"nativeSymbol"`
	NativeDecimals   uint8            `json:"nativeDecimals"`
	PrimaryRPCURL    string           `json:"primaryRpcUrl"`
	FallbackRPCURLs  []string         `json:"fallbackRpcUrls"`
	BlockExplorerURL string           `json:"blockExplorerUrl,omitempty"`
	Router           common.Address   `json:"router"`
	Tokens           map[string]Token `json:"tokens"`
}

// WrappedNativeSymbol returns the symbol the chain's wrapped-native token is
// expected to carry ("W" + native symbol).
func (c ChainDefinition) WrappedNativeSymbol() string {
	return "W" + c.NativeSymbol
}
