package booking

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// minorPerMajor is the number of minor units (paise, cents) in one major unit.
const minorPerMajor = 100

// maxMajorUnits leaves room for the fractional part and its rounding carry.
const maxMajorUnits = (math.MaxInt64 - minorPerMajor) / minorPerMajor

// ErrAmountOutOfRange is returned for amounts that do not fit in int64 minor units.
var ErrAmountOutOfRange = errors.New("amount out of range")

// ToMinorUnits converts a major-unit amount to minor units, rounding half
// away from zero. The float is formatted to its shortest decimal form first
// so values such as 1.005 round on their written digits. NaN, infinities and
// out-of-range values yield 0.
func ToMinorUnits(major float64) int64 {
	minor, err := MinorUnitsFromFloat(major)
	if err != nil {
		return 0
	}
	return minor
}

// MinorUnitsFromFloat is ToMinorUnits with the conversion error kept.
func MinorUnitsFromFloat(major float64) (int64, error) {
	if math.IsNaN(major) || math.IsInf(major, 0) {
		return 0, ErrAmountOutOfRange
	}
	return ParseMinorUnits(strconv.FormatFloat(major, 'f', -1, 64))
}

// ParseMinorUnits parses a decimal string such as "12.345" into minor units.
func ParseMinorUnits(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if !digitsOnly(whole) || !digitsOnly(frac) {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	units, err := strconv.ParseInt(whole, 10, 64)
	if errors.Is(err, strconv.ErrRange) || units > maxMajorUnits {
		return 0, fmt.Errorf("%q: %w", s, ErrAmountOutOfRange)
	}
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}

	frac += "000"
	cents, _ := strconv.ParseInt(frac[:2], 10, 64)
	minor := units*minorPerMajor + cents
	if frac[2] >= '5' {
		minor++
	}
	if neg {
		minor = -minor
	}
	return minor, nil
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// FormatMinorUnits renders minor units as a major-unit string for logs and pushes.
func FormatMinorUnits(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/minorPerMajor, minor%minorPerMajor)
}
