// Package money represents TON amounts as integer nano-TON. Arithmetic on
// ledger fields never touches floating point; decimal TON appears only at the
// API and display edges.
package money

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Amount is a monetary value in nano-TON.
type Amount int64

const NanoPerTON = 1_000_000_000

// FromTON converts a decimal TON value to nano-TON, rounding half away
// from zero.
func FromTON(ton float64) Amount {
	return Amount(math.Round(ton * NanoPerTON))
}

// TON returns the decimal TON value. For display and JSON responses only.
func (a Amount) TON() float64 {
	return float64(a) / NanoPerTON
}

// String formats the amount as a decimal TON string with trailing zeros
// trimmed, e.g. 1000000 -> "0.001".
func (a Amount) String() string {
	neg := a < 0
	v := int64(a)
	if neg {
		v = -v
	}
	whole := v / NanoPerTON
	frac := v % NanoPerTON

	out := strconv.FormatInt(whole, 10)
	if frac > 0 {
		f := strings.TrimRight(fmt.Sprintf("%09d", frac), "0")
		out += "." + f
	}
	if neg {
		out = "-" + out
	}
	return out
}

// Percent returns pct percent of the amount, truncated toward zero.
func (a Amount) Percent(pct int) Amount {
	return a * Amount(pct) / 100
}

// SafeNumber coerces a loosely typed numeric value to a float64, mapping
// nil, NaN and unparseable input to 0. Ledger fields must never end up NaN.
func SafeNumber(v interface{}) float64 {
	switch n := v.(type) {
	case nil:
		return 0
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0
		}
		return n
	case float32:
		return SafeNumber(float64(n))
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return SafeNumber(f)
	case interface{ Float64() (float64, error) }: // json.Number
		f, err := n.Float64()
		if err != nil {
			return 0
		}
		return SafeNumber(f)
	default:
		return 0
	}
}
