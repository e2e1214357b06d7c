package utils

import (
	"fmt"
	"math/big"
	"strings"
)

// FormatBigInt converts a big.Int value to a human-readable string,
// considering the given number of decimals.
// Example: amount=1234500000000000000, decimals=18 => "1.2345"
func FormatBigInt(amount *big.Int, decimals uint8) (string, error) {
	if amount == nil {
		return "0", nil
	}
	if decimals == 0 {
		return amount.String(), nil
	}

	sign := ""
	abs := new(big.Int).Abs(amount)
	if amount.Sign() < 0 {
		sign = "-"
	}

	divisor := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(abs, divisor, new(big.Int))

	fracStr := strings.TrimRight(fmt.Sprintf("%0*s", decimals, frac.String()), "0")
	if fracStr == "" {
		return sign + whole.String(), nil
	}
	return sign + whole.String() + "." + fracStr, nil
}

// ParseBigInt converts a user-entered decimal string into integer base units
// for a token with the given decimals. Excess fractional digits are
// truncated, never rounded up.
// Example: input="1.2345", decimals=6 => 1234500
func ParseBigInt(input string, decimals uint8) (*big.Int, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}

	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	if strings.HasPrefix(s, "+") {
		s = s[1:]
	}

	parts := strings.SplitN(s, ".", 2)
	wholeStr := parts[0]
	fracStr := ""
	if len(parts) == 2 {
		fracStr = parts[1]
	}
	if wholeStr == "" && fracStr == "" {
		return nil, fmt.Errorf("invalid amount %q", input)
	}
	if wholeStr == "" {
		wholeStr = "0"
	}

	if len(fracStr) > int(decimals) {
		fracStr = fracStr[:decimals]
	}
	fracStr += strings.Repeat("0", int(decimals)-len(fracStr))

	combined := wholeStr + fracStr
	value, ok := new(big.Int).SetString(combined, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", input)
	}
	if neg {
		value.Neg(value)
	}
	return value, nil
}
