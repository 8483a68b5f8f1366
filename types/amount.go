// Package types provides common types used across Drip.
package types

import (
	"encoding/json"
	"errors"
	"math/bits"

	"github.com/shopspring/decimal"
)

// AssetDecimals is the number of decimal places of the pegged asset's major
// unit. Amounts are always held in the smallest unit (satoshi equivalent).
const AssetDecimals = 8

// AssetSymbol is the display symbol of the pegged asset.
const AssetSymbol = "BTC"

// ErrAmountOverflow is returned when an arithmetic result does not fit in an Amount.
var ErrAmountOverflow = errors.New("amount: overflow")

// Amount represents a quantity of the pegged asset in its smallest unit.
// All arithmetic is unsigned integer-only with no floating point.
type Amount uint64

// Add returns a+b, or ErrAmountOverflow.
func (a Amount) Add(b Amount) (Amount, error) {
	sum, carry := bits.Add64(uint64(a), uint64(b), 0)
	if carry != 0 {
		return 0, ErrAmountOverflow
	}
	return Amount(sum), nil
}

// Sub returns a-b, saturating at zero.
func (a Amount) Sub(b Amount) Amount {
	if b >= a {
		return 0
	}
	return a - b
}

// Mul returns a*n, saturating at the maximum Amount.
func (a Amount) Mul(n uint64) Amount {
	hi, lo := bits.Mul64(uint64(a), n)
	if hi != 0 {
		return Amount(^uint64(0))
	}
	return Amount(lo)
}

// MulDiv returns floor(a*num/den) using a 128-bit intermediate.
// It panics if den is zero.
func (a Amount) MulDiv(num, den uint64) Amount {
	if den == 0 {
		panic("amount: division by zero")
	}
	hi, lo := bits.Mul64(uint64(a), num)
	if hi >= den {
		return Amount(^uint64(0))
	}
	q, _ := bits.Div64(hi, lo, den)
	return Amount(q)
}

// Div returns floor(a/n). It panics if n is zero.
func (a Amount) Div(n uint64) Amount {
	if n == 0 {
		panic("amount: division by zero")
	}
	return Amount(uint64(a) / n)
}

// Min returns the smaller of a and b.
func (a Amount) Min(b Amount) Amount {
	if a < b {
		return a
	}
	return b
}

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool { return a == 0 }

// Decimal returns the amount expressed in major units.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.NewFromUint64(uint64(a)).Shift(-AssetDecimals)
}

// FormatMajor returns the major unit string without symbol, e.g. "0.00000990".
func (a Amount) FormatMajor() string {
	return a.Decimal().StringFixed(AssetDecimals)
}

// String returns a human-readable string, e.g. "0.00000990 BTC".
func (a Amount) String() string {
	return a.FormatMajor() + " " + AssetSymbol
}

// MarshalJSON implements json.Marshaler. The raw integer is authoritative;
// display is informational.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(uint64(a))
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var v uint64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*a = Amount(v)
	return nil
}

// Sum adds all values, or returns ErrAmountOverflow.
func Sum(values ...Amount) (Amount, error) {
	var total Amount
	for _, v := range values {
		var err error
		if total, err = total.Add(v); err != nil {
			return 0, err
		}
	}
	return total, nil
}
