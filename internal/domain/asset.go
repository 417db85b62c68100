// Package domain holds the tagged records shared by every subsystem of the
// arbitrage engine: assets, quotes, probe results, and iteration outcomes.
package domain

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Asset identifies a token the aggregator can route through. Equality is by
// Address; Symbol and Decimals are display metadata.
type Asset struct {
	Address  string
	Symbol   string
	Decimals int
}

// Equal compares assets by address only; symbol and decimals are metadata.
func (a Asset) Equal(other Asset) bool {
	return a.Address == other.Address
}

func (a Asset) String() string {
	return a.Symbol
}

// RawAmount is an integer amount in an asset's smallest unit. All internal
// amount arithmetic happens on *big.Int to avoid floating-point rounding;
// decimal.Decimal is used only for display and USD-denominated math.
type RawAmount = big.Int

// ToDecimal renders a raw amount as a decimal.Decimal in native units,
// e.g. 1_000_000 raw with 6 decimals becomes 1.000000.
func ToDecimal(raw *RawAmount, decimals int) decimal.Decimal {
	return decimal.NewFromBigInt(raw, -int32(decimals))
}

// FromDecimal converts a native-unit decimal amount into a raw integer
// amount for the given asset precision, rounding down to whole raw units.
func FromDecimal(amount decimal.Decimal, decimals int) *RawAmount {
	scaled := amount.Shift(int32(decimals))
	return scaled.Truncate(0).BigInt()
}

// ParseNative parses a decimal string expressed in native units (e.g. the
// config's "0.1" trade-size values) into a raw amount.
func ParseNative(s string, decimals int) (*RawAmount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("parse native amount %q: %w", s, err)
	}
	return FromDecimal(d, decimals), nil
}
