package domain

import (
	"math/big"
	"strings"
)

const DefaultDecimals = 18

// FormatUnits renders a raw amount with the given number of decimals,
// trimming trailing zeros but keeping at least one fractional digit.
func FormatUnits(v *big.Int, decimals int) string {
	if v == nil {
		v = new(big.Int)
	}
	neg := v.Sign() < 0
	abs := new(big.Int).Abs(v)
	s := abs.String()
	if decimals > 0 {
		if len(s) <= decimals {
			s = strings.Repeat("0", decimals-len(s)+1) + s
		}
		whole, frac := s[:len(s)-decimals], strings.TrimRight(s[len(s)-decimals:], "0")
		if frac == "" {
			frac = "0"
		}
		s = whole + "." + frac
	}
	if neg {
		return "-" + s
	}
	return s
}

// ParseUnits converts a non-negative decimal string to its raw integer
// amount. More fractional digits than decimals is an InputError.
func ParseUnits(s string, decimals int) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, NewInputError("amount", "empty amount")
	}
	whole, frac, hasFrac := strings.Cut(s, ".")
	if hasFrac && frac == "" {
		return nil, NewInputError("amount", "%q has an empty fraction", s)
	}
	if whole == "" {
		whole = "0"
	}
	if len(frac) > decimals {
		return nil, NewInputError("amount", "%q has more than %d decimals", s, decimals)
	}
	if !isDigits(whole) || !isDigits(frac) {
		return nil, NewInputError("amount", "%q is not a decimal number", s)
	}
	digits := whole + frac + strings.Repeat("0", decimals-len(frac))
	out, ok := new(big.Int).SetString(digits, 10)
	if !ok {
		return nil, NewInputError("amount", "%q is not a decimal number", s)
	}
	return out, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
