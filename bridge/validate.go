package bridge

import (
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/pokt-network/bridge-core/entity"
)

var (
	amountRe     = regexp.MustCompile(`^\d*\.?\d*$`)
	evmAddressRe = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
	base58Re     = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]{32,44}$`)
)

// ValidateAmount checks a user-facing decimal amount against the fixed token
// precision and a live balance, and returns the raw smallest-unit value.
func ValidateAmount(amount string, balance *big.Int) (*big.Int, error) {
	trimmed := strings.TrimSpace(amount)
	if trimmed == "" {
		return nil, fmt.Errorf("empty amount: %w", ErrValidation)
	}
	if !amountRe.MatchString(trimmed) {
		return nil, fmt.Errorf("amount %q is not numeric: %w", amount, ErrValidation)
	}
	raw, err := entity.ParseAmount(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrValidation)
	}
	if raw.Sign() == 0 {
		return nil, fmt.Errorf("amount must be greater than zero: %w", ErrValidation)
	}
	if balance != nil && raw.Cmp(balance) > 0 {
		return nil, fmt.Errorf("insufficient balance: %w", ErrValidation)
	}
	return raw, nil
}

// SanitizeAmountInput strips everything except digits and a single decimal
// point, and caps the fractional part at the token precision.
func SanitizeAmountInput(input string) string {
	var b strings.Builder
	seenDot := false
	for _, r := range input {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' && !seenDot:
			seenDot = true
			b.WriteRune(r)
		}
	}
	sanitized := b.String()
	if i := strings.IndexByte(sanitized, '.'); i >= 0 {
		frac := sanitized[i+1:]
		if len(frac) > entity.TokenDecimals {
			sanitized = sanitized[:i+1] + frac[:entity.TokenDecimals]
		}
	}
	return sanitized
}

func ValidateEVMAddress(address string) error {
	if !evmAddressRe.MatchString(address) {
		return fmt.Errorf("invalid EVM address %q: %w", address, ErrValidation)
	}
	return nil
}

func ValidateAltChainAddress(address string) error {
	if !base58Re.MatchString(address) {
		return fmt.Errorf("invalid alt-chain address %q: %w", address, ErrValidation)
	}
	return nil
}
