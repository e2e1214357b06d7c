package entity

import "github.com/ethereum/go-ethereum/common"

// Token holds the details of a specific ERC-20 token as configured for a chain.
// Identity is (ChainID, Address); two tokens count as the same asset for
// swap-direction purposes iff symbol and chain match.
type Token struct {
	Address  common.Address `json:"address"`
	Decimals uint8          `json:"decimals"`
	Symbol   string         `json:"symbol"`
	Name     string         `json:"name"`
	IconName string         `json:"iconName,omitempty"`
	ChainID  int64          `json:"chainId,omitempty"`
}

// SameAsset reports whether two tokens represent the same asset for
// swap-direction purposes.
func (t Token) SameAsset(other Token) bool {
	return t.Symbol == other.Symbol && t.ChainID == other.ChainID
}

// ChainToken is a token annotated with the chain it belongs to, used for
// cross-chain selection listings.
type ChainToken struct {
	Token            Token  `json:"token"`
	ChainID          int64  `json:"chainId"`
	ChainDisplayName string `json:"chainDisplayName"`
}
