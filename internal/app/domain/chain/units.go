package chain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// BasisPointsDenominator is 100%.
const BasisPointsDenominator = 10000

var bpDenominator = big.NewInt(BasisPointsDenominator)

// ShareOf returns floor(amount * bp / 10000). amount must be non-negative.
func ShareOf(amount *big.Int, bp uint32) *big.Int {
	if amount == nil || bp == 0 {
		return new(big.Int)
	}
	out := new(big.Int).Mul(amount, new(big.Int).SetUint64(uint64(bp)))
	return out.Quo(out, bpDenominator)
}

// FormatUnits renders amount as a decimal with the given number of
// fractional digits, for example 25000000000000000 with 18 decimals
// becomes "0.025".
func FormatUnits(amount *big.Int, decimals int32) string {
	if amount == nil {
		return "0"
	}
	return decimal.NewFromBigInt(amount, -decimals).String()
}

// ParseUnits converts a decimal string into base units. Digits beyond
// decimals are truncated.
func ParseUnits(s string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, err
	}
	return d.Mul(decimal.New(1, decimals)).Truncate(0).BigInt(), nil
}
