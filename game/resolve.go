package game

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Resolve picks the winning side by comparing the observed price against the
// prediction. Equality resolves to Lower; that tie-break is part of the
// contract, not an accident.
func Resolve(current, predicted decimal.Decimal) Side {
	if current.GreaterThan(predicted) {
		return SideHigher
	}
	return SideLower
}

var priceRe = regexp.MustCompile(`-?\d[\d,]*(?:\.\d+)?`)

// ParsePrice extracts a decimal price from an oracle text payload. The router
// oracle answers in prose ("The current price of BTC is $64,123.50"), so we
// take the first number-looking token and strip thousands separators. A
// payload with no number yields ErrPriceParse.
func ParsePrice(text string) (decimal.Decimal, error) {
	m := priceRe.FindString(text)
	if m == "" {
		return decimal.Decimal{}, fmt.Errorf("%w: no number in %q", ErrPriceParse, text)
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(m, ",", ""))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q: %v", ErrPriceParse, m, err)
	}
	return d, nil
}
