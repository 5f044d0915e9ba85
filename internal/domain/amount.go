package domain

import (
	"strconv"
	"strings"
)

// MaxDecimals bounds the fixed-point scale of a unit
const MaxDecimals = 18

// ParseAmount converts a decimal string such as "12.5" into fixed-point base
// units at the given scale. Signs, exponents, excess precision and values that
// overflow int64 are rejected.
func ParseAmount(raw string, decimals uint8) (int64, error) {
	if decimals > MaxDecimals {
		return 0, ErrInvalidAmount.Withf("unsupported decimal scale %d", decimals)
	}
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, ErrInvalidAmount.Withf("amount is required")
	}

	whole, frac, hasPoint := strings.Cut(s, ".")
	if whole == "" || (hasPoint && frac == "") {
		return 0, ErrInvalidAmount.Withf("malformed amount %q", raw)
	}
	if !isDigits(whole) || !isDigits(frac) {
		return 0, ErrInvalidAmount.Withf("malformed amount %q", raw)
	}
	if len(frac) > int(decimals) {
		return 0, ErrInvalidAmount.Withf("amount %q has more than %d decimal places", raw, decimals)
	}

	digits := whole + frac + strings.Repeat("0", int(decimals)-len(frac))
	value, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, ErrInvalidAmount.Withf("amount %q is out of range", raw)
	}
	if value <= 0 {
		return 0, ErrInvalidAmount.Withf("amount must be positive")
	}
	return value, nil
}

// FormatAmount renders fixed-point base units as a decimal string, trimming
// trailing zeros of the fractional part
func FormatAmount(value int64, decimals uint8) string {
	neg := value < 0
	digits := strconv.FormatUint(absUint(value), 10)
	if decimals > 0 {
		if len(digits) <= int(decimals) {
			digits = strings.Repeat("0", int(decimals)-len(digits)+1) + digits
		}
		cut := len(digits) - int(decimals)
		whole, frac := digits[:cut], strings.TrimRight(digits[cut:], "0")
		digits = whole
		if frac != "" {
			digits += "." + frac
		}
	}
	if neg {
		return "-" + digits
	}
	return digits
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func absUint(v int64) uint64 {
	if v < 0 {
		return uint64(-(v + 1)) + 1
	}
	return uint64(v)
}
