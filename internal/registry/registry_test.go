package registry

import (
	"testing"

	"dex_gateway/internal/config"
)

func testChainNodes() []config.ChainNode {
	return []config.ChainNode{
		{
			ChainID:      10174,
			Name:         "bite-testnet",
			DisplayName:  "BITE Testnet",
			NativeSymbol: "BITE",
			Endpoint:     "https://rpc.example.org",
			Router:       "0x6e9ac096d9357bd1fea7d4a9d9bdca2c9d9f6a4b",
			Tokens: map[string]config.TokenNode{
				"WBITE": {Address: "0x1111111111111111111111111111111111111111", Decimals: 18, Symbol: "WBITE"},
				"SKL":   {Address: "0x2222222222222222222222222222222222222222", Decimals: 18, Symbol: "SKL"},
				"USDC":  {Address: "0x3333333333333333333333333333333333333333", Decimals: 6, Symbol: "USDC"},
			},
		},
		{
			ChainID:      9035,
			Name:         "fair-testnet",
			DisplayName:  "FAIR Testnet",
			NativeSymbol: "FAIR",
			Endpoint:     "https://rpc2.example.org",
			Router:       "0x7f8b3c2d1e0a9b8c7d6e5f4a3b2c1d0e9f8a7b6c",
			Tokens: map[string]config.TokenNode{
				"WFAIR": {Address: "0x4444444444444444444444444444444444444444", Decimals: 18, Symbol: "WFAIR"},
				"USDC":  {Address: "0x5555555555555555555555555555555555555555", Decimals: 6, Symbol: "USDC"},
			},
		},
	}
}

func TestNewValidConfig(t *testing.T) {
	reg, err := New(testChainNodes())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if len(reg.Chains()) != 2 {
		t.Fatalf("expected 2 chains, got %d", len(reg.Chains()))
	}

	token, ok := reg.Token(10174, "USDC")
	if !ok {
		t.Fatal("expected USDC on chain 10174")
	}
	if token.Decimals != 6 {
		t.Errorf("USDC decimals = %d, want 6", token.Decimals)
	}
	if token.ChainID != 10174 {
		t.Errorf("USDC chainID = %d, want 10174", token.ChainID)
	}
	if token.IconName != "usdc" {
		t.Errorf("USDC icon name = %q, want lowercase symbol default", token.IconName)
	}
}

func TestNewRejectsMissingWrappedNative(t *testing.T) {
	nodes := testChainNodes()
	delete(nodes[0].Tokens, "WBITE")
	if _, err := New(nodes); err == nil {
		t.Fatal("expected error for chain without wrapped-native token")
	}
}

func TestNewRejectsSingleToken(t *testing.T) {
	nodes := testChainNodes()
	nodes[1].Tokens = map[string]config.TokenNode{
		"WFAIR": {Address: "0x4444444444444444444444444444444444444444", Decimals: 18, Symbol: "WFAIR"},
	}
	if _, err := New(nodes); err == nil {
		t.Fatal("expected error for chain with fewer than two tokens")
	}
}

func TestNewRejectsInvalidAddress(t *testing.T) {
	nodes := testChainNodes()
	nodes[0].Tokens["SKL"] = config.TokenNode{Address: "not-an-address", Decimals: 18, Symbol: "SKL"}
	if _, err := New(nodes); err == nil {
		t.Fatal("expected error for invalid token address")
	}
}

func TestNewRejectsDuplicateChain(t *testing.T) {
	nodes := testChainNodes()
	nodes[1].ChainID = nodes[0].ChainID
	nodes[1].NativeSymbol = nodes[0].NativeSymbol
	nodes[1].Tokens = nodes[0].Tokens
	if _, err := New(nodes); err == nil {
		t.Fatal("expected error for duplicate chain id")
	}
}

func TestUnknownChainDegrades(t *testing.T) {
	reg, err := New(testChainNodes())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if tokens := reg.Tokens(999); len(tokens) != 0 {
		t.Errorf("unknown chain returned %d tokens, want 0", len(tokens))
	}
	if _, ok := reg.Router(999); ok {
		t.Error("unknown chain reported a router")
	}
	if _, ok := reg.Token(999, "USDC"); ok {
		t.Error("unknown chain resolved a token")
	}
}

func TestIsNativeWrappedToken(t *testing.T) {
	reg, err := New(testChainNodes())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for _, symbol := range []string{"WBITE", "WFAIR"} {
		if !reg.IsNativeWrappedToken(symbol) {
			t.Errorf("%s should be wrapped-native", symbol)
		}
	}
	for _, symbol := range []string{"SKL", "USDC", "BITE"} {
		if reg.IsNativeWrappedToken(symbol) {
			t.Errorf("%s should not be wrapped-native", symbol)
		}
	}
}

func TestAllTokensWithChainOrdering(t *testing.T) {
	reg, err := New(testChainNodes())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	all := reg.AllTokensWithChain()
	if len(all) != 5 {
		t.Fatalf("expected 5 tokens, got %d", len(all))
	}
	// chain 9035 sorts before 10174, tokens alphabetical within a chain
	if all[0].ChainID != 9035 || all[0].Token.Symbol != "USDC" {
		t.Errorf("first entry = chain %d %s, want chain 9035 USDC", all[0].ChainID, all[0].Token.Symbol)
	}
	if all[2].ChainID != 10174 || all[2].Token.Symbol != "SKL" {
		t.Errorf("third entry = chain %d %s, want chain 10174 SKL", all[2].ChainID, all[2].Token.Symbol)
	}
}
