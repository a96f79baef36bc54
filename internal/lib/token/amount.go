package token

import (
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

var ErrInvalidAmount = errors.New("invalid amount")

// Units returns 10^decimals - the number of base units in one whole token.
func Units(decimals uint8) *uint256.Int {
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(decimals)))
}

// Tokens converts a whole-token count to base units at DefaultDecimals precision.
func Tokens(whole uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(whole), Units(DefaultDecimals))
}

// ParseAmount converts a decimal token amount such as "100" or "0.25" into base units.
func ParseAmount(amount string, decimals uint8) (*uint256.Int, error) {
	amount = strings.TrimSpace(amount)
	whole, frac, hasFrac := strings.Cut(amount, ".")
	if whole == "" && (!hasFrac || frac == "") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	if len(frac) > int(decimals) {
		return nil, fmt.Errorf("%w: %q has more than %d decimal places", ErrInvalidAmount, amount, decimals)
	}
	if whole == "" {
		whole = "0"
	}
	digits := whole + frac + strings.Repeat("0", int(decimals)-len(frac))
	for _, c := range digits {
		if c < '0' || c > '9' {
			return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
		}
	}
	digits = strings.TrimLeft(digits, "0")
	if digits == "" {
		return new(uint256.Int), nil
	}
	value, err := uint256.FromDecimal(digits)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, amount, err)
	}
	return value, nil
}

// FormatAmount renders base units as a decimal token amount, chopping trailing zeros
// (and the decimal point if nothing is left after it).
func FormatAmount(amount *uint256.Int, decimals uint8) string {
	if amount == nil {
		return "0"
	}
	digits := amount.Dec()
	if decimals == 0 {
		return digits
	}
	if len(digits) <= int(decimals) {
		digits = strings.Repeat("0", int(decimals)-len(digits)+1) + digits
	}
	whole, frac := digits[:len(digits)-int(decimals)], digits[len(digits)-int(decimals):]
	frac = strings.TrimRight(frac, "0")
	if frac == "" {
		return whole
	}
	return whole + "." + frac
}
