package chart

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatPrice renders a price for axis labels. Prices with three or more
// leading fractional zeros are compressed into 0.0(N)X notation, where N is
// the number of leading zeros and X is the first significantDigits digits
// after them: 0.00000001234 → "0.0(7)12". Other prices render normally.
func FormatPrice(v float64, significantDigits int) string {
	if significantDigits < 1 {
		significantDigits = 1
	}
	if v == 0 {
		return "0"
	}

	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}

	// Shortest round-trip formatting avoids float artifacts like
	// 0.00240000000000000001.
	plain := strconv.FormatFloat(v, 'f', -1, 64)
	intPart, fracPart, _ := strings.Cut(plain, ".")
	fracPart = strings.TrimRight(fracPart, "0")
	if fracPart == "" {
		return sign + intPart
	}

	zeros := leadingZeros(fracPart)
	if zeros < 3 {
		return sign + intPart + "." + fracPart
	}

	digits := fracPart[zeros:]
	rounded, carried := roundHalfUp(digits, significantDigits)
	if carried {
		// 0.0(z)99… rounded up to 0.0(z-1)10…; one zero fewer remains.
		zeros--
		if zeros < 3 {
			return sign + "0." + strings.Repeat("0", zeros) + trimSignificant(rounded)
		}
	}

	return fmt.Sprintf("%s0.0(%d)%s", sign, zeros, trimSignificant(rounded))
}

func leadingZeros(s string) int {
	n := 0
	for n < len(s) && s[n] == '0' {
		n++
	}
	return n
}

// roundHalfUp rounds a digit string to keep digits, half away from zero.
// The second return is true when rounding carried past the leading digit
// ("99" → "10", one decimal place shorter).
func roundHalfUp(digits string, keep int) (string, bool) {
	if len(digits) <= keep {
		return digits, false
	}
	kept := []byte(digits[:keep])
	if digits[keep] < '5' {
		return string(kept), false
	}
	for i := keep - 1; i >= 0; i-- {
		if kept[i] < '9' {
			kept[i]++
			return string(kept), false
		}
		kept[i] = '0'
	}
	// All nines: 10^keep, represented as "1" followed by keep-1 zeros one
	// decimal place up.
	return "1" + strings.Repeat("0", keep-1), true
}

func trimSignificant(s string) string {
	s = strings.TrimRight(s, "0")
	if s == "" {
		return "0"
	}
	return s
}
