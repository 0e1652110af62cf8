package ledger

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ToFloat converts an integer amount in the smallest unit into a display value
// by shifting it decimals places. It returns false for malformed or negative input.
func ToFloat(value string, decimals int) (float64, bool) {
	if value == "" || strings.ContainsAny(value, ".eE") {
		return 0, false
	}
	d, err := decimal.NewFromString(value)
	if err != nil || d.IsNegative() {
		return 0, false
	}
	f, _ := d.Shift(-int32(decimals)).Float64()
	return f, true
}

// isZero reports whether value is the integer zero ("0", "000")
func isZero(value string) bool {
	return strings.Trim(value, "0") == "" && value != ""
}
