package pricing

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var oneHundred = decimal.NewFromInt(100)

// Apply computes the listing price after an admin-selected percentage
// increment, rounded to 2 decimal places. Always computed from the declared
// price, never from a previous result, so repeated select/go-back cycles
// cannot compound.
func Apply(declared, percent decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Add(percent.Div(oneHundred))
	return declared.Mul(factor).Round(2)
}

// ParseMenu parses the configured increment menu, a comma-separated list of
// percentages ("5,7.5,10,15,20"). Fractional values are allowed; negatives
// and duplicates are not.
func ParseMenu(raw string) ([]decimal.Decimal, error) {
	var menu []decimal.Decimal
	seen := make(map[string]bool)
	for _, field := range strings.Split(raw, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		pct, err := decimal.NewFromString(field)
		if err != nil {
			return nil, fmt.Errorf("increment %q: %w", field, err)
		}
		if pct.IsNegative() {
			return nil, fmt.Errorf("increment %q: must not be negative", field)
		}
		key := pct.String()
		if seen[key] {
			return nil, fmt.Errorf("increment %q: duplicate", field)
		}
		seen[key] = true
		menu = append(menu, pct)
	}
	if len(menu) == 0 {
		return nil, fmt.Errorf("increment menu is empty")
	}
	return menu, nil
}

// InMenu reports whether a percentage is one of the configured candidates.
func InMenu(menu []decimal.Decimal, percent decimal.Decimal) bool {
	for _, p := range menu {
		if p.Equal(percent) {
			return true
		}
	}
	return false
}
