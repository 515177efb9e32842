package entity

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// TokenDecimals is the fixed precision of all POKT token variants handled by
// the bridge. Raw amounts are smallest-unit integers with this many decimals.
const TokenDecimals = 6

var ErrInvalidAmount = errors.New("invalid amount")

var unitMultiplier = new(big.Int).Exp(big.NewInt(10), big.NewInt(TokenDecimals), nil)

// ParseAmount converts a user-facing decimal string into raw smallest units.
func ParseAmount(amount string) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("empty amount: %w", ErrInvalidAmount)
	}
	parts := strings.SplitN(amount, ".", 2)
	whole := parts[0]
	frac := ""
	if len(parts) == 2 {
		frac = parts[1]
	}
	if whole == "" && frac == "" {
		return nil, fmt.Errorf("%q: %w", amount, ErrInvalidAmount)
	}
	if strings.Contains(frac, ".") {
		return nil, fmt.Errorf("%q: %w", amount, ErrInvalidAmount)
	}
	if len(frac) > TokenDecimals {
		return nil, fmt.Errorf("maximum %d decimal places: %w", TokenDecimals, ErrInvalidAmount)
	}
	if whole == "" {
		whole = "0"
	}
	wholeInt, ok := new(big.Int).SetString(whole, 10)
	if !ok || wholeInt.Sign() < 0 {
		return nil, fmt.Errorf("%q: %w", amount, ErrInvalidAmount)
	}
	raw := new(big.Int).Mul(wholeInt, unitMultiplier)
	if frac != "" {
		fracPadded := frac + strings.Repeat("0", TokenDecimals-len(frac))
		fracInt, ok2 := new(big.Int).SetString(fracPadded, 10)
		if !ok2 || fracInt.Sign() < 0 {
			return nil, fmt.Errorf("%q: %w", amount, ErrInvalidAmount)
		}
		raw.Add(raw, fracInt)
	}
	return raw, nil
}

// FormatAmount converts raw smallest units back into a decimal string,
// trimming trailing fractional zeros.
func FormatAmount(raw *big.Int) string {
	if raw == nil {
		return "0"
	}
	whole := new(big.Int)
	frac := new(big.Int)
	whole.QuoRem(raw, unitMultiplier, frac)
	if frac.Sign() == 0 {
		return whole.String()
	}
	fracStr := fmt.Sprintf("%0*d", TokenDecimals, frac)
	fracStr = strings.TrimRight(fracStr, "0")
	return whole.String() + "." + fracStr
}
