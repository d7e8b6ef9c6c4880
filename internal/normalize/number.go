package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var leadingNumber = regexp.MustCompile(`^[-+]?(?:\d+\.?\d*|\.\d+)`)

// Decimal parses the leading number of s. A decimal comma is accepted in
// place of the decimal point, so "45,20 L" yields 45.2.
func Decimal(s string) (decimal.Decimal, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	num := leadingNumber.FindString(s)
	if num == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(num)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Float is Decimal as a nullable float64.
func Float(s string) *float64 {
	d, ok := Decimal(s)
	if !ok {
		return nil
	}
	f := d.InexactFloat64()
	return &f
}

// Odometer keeps only the digits of s and parses them as an integer.
func Odometer(s string) *int64 {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
	if digits == "" {
		return nil
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

// Round rounds v half away from zero to the given number of decimal places.
func Round(v float64, places int32) float64 {
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}

// FormatFloat renders v without trailing zeros.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
