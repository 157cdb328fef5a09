// Package units converts between human-facing decimal amounts ("0.1") and
// the integer base units the ledger stores.
package units

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Decimals is the number of base-unit digits in one unit.
const Decimals = 9

// BaseUnitsPerUnit is 10^Decimals.
const BaseUnitsPerUnit uint64 = 1_000_000_000

// ParseAmount parses a non-negative decimal unit amount into base units.
func ParseAmount(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.Sign() < 0 {
		return 0, fmt.Errorf("amount %q is negative", s)
	}
	scaled := d.Shift(Decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, fmt.Errorf("amount %q has more than %d decimal places", s, Decimals)
	}
	bi := scaled.BigInt()
	if !bi.IsUint64() {
		return 0, fmt.Errorf("amount %q overflows uint64 base units", s)
	}
	return bi.Uint64(), nil
}

// FormatAmount renders base units as a decimal unit amount.
func FormatAmount(base uint64) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(base), -Decimals).String()
}
