// Package chain holds the primitive value types shared by the registry and
// exchange: addresses, the native-currency sentinel and basis-point math.
package chain

import (
	"math/big"
	"strings"
)

// Address identifies an account, contract or collection.
type Address string

const (
	// ZeroAddress is the null address. The empty string is treated the same.
	ZeroAddress Address = "0x0000000000000000000000000000000000000000"

	// NativeCurrency is the reserved denomination selecting native value
	// transfer instead of a token transfer.
	NativeCurrency Address = "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"

	// BurnAddress receives amounts whose fee entry carries the burn flag.
	BurnAddress Address = "0x000000000000000000000000000000000000dEaD"
)

// IsZero reports whether a is empty or the all-zero address.
func (a Address) IsZero() bool {
	s := strings.TrimSpace(string(a))
	if s == "" {
		return true
	}
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	return strings.Trim(s, "0") == ""
}

// IsNative reports whether a is the native-currency sentinel.
func (a Address) IsNative() bool {
	return strings.EqualFold(string(a), string(NativeCurrency))
}

func (a Address) String() string { return string(a) }

// Amount returns a copy of v, or zero when v is nil.
func Amount(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}

// IsPositive reports whether v is non-nil and greater than zero.
func IsPositive(v *big.Int) bool {
	return v != nil && v.Sign() > 0
}

// IsZeroAmount reports whether v is nil or zero.
func IsZeroAmount(v *big.Int) bool {
	return v == nil || v.Sign() == 0
}
