package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Decimal places of on-chain amounts.
const (
	CATDecimals = 3
	XCHDecimals = 12
)

// ErrAmountUnits is returned for amounts without a decimal point, which are
// ambiguous between whole units and base units.
var ErrAmountUnits = errors.New("amounts are in XCH/CAT units, not mojos; include a '.' in the amount to confirm")

// ParseAmount parses a decimal amount of a token with the given number of
// decimal places, returning it in base units.
func ParseAmount(s string, decimals int) (uint64, error) {
	whole, frac, ok := strings.Cut(s, ".")
	if !ok {
		return 0, ErrAmountUnits
	} else if whole == "" && frac == "" {
		return 0, fmt.Errorf("invalid amount %q", s)
	} else if len(frac) > decimals {
		return 0, fmt.Errorf("invalid amount %q: more than %d decimal places", s, decimals)
	}
	if whole == "" {
		whole = "0"
	}
	digits := whole + frac + strings.Repeat("0", decimals-len(frac))
	if strings.ContainsAny(digits, "+-") {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	n, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return n, nil
}

// FormatAmount formats a quantity of base units as a decimal amount.
func FormatAmount(n uint64, decimals int) string {
	s := strconv.FormatUint(n, 10)
	if len(s) <= decimals {
		s = strings.Repeat("0", decimals-len(s)+1) + s
	}
	return s[:len(s)-decimals] + "." + s[len(s)-decimals:]
}
