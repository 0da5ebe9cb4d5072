package service

import "github.com/shopspring/decimal"

type Totals struct {
	Subtotal int64
	Tax      int64
	Total    int64
}

// ComputeTotals is the only place an order total is rounded:
// total = round_half_up(subtotal * (1 + taxRate)), tax = total - subtotal.
func ComputeTotals(subtotal int64, taxRate decimal.Decimal) Totals {
	gross := decimal.NewFromInt(subtotal).Mul(decimal.NewFromInt(1).Add(taxRate))
	// amounts are never negative, so Round's half-away-from-zero is half-up
	total := gross.Round(0).IntPart()

	return Totals{
		Subtotal: subtotal,
		Tax:      total - subtotal,
		Total:    total,
	}
}

// EstimateTax is the unrounded display figure shown on the cart.
func EstimateTax(subtotal int64, taxRate decimal.Decimal) decimal.Decimal {
	return decimal.NewFromInt(subtotal).Mul(taxRate)
}

// MajorUnits renders minor units as a 2-decimal string, e.g. 2360 -> "23.60".
func MajorUnits(amount int64) string {
	return decimal.New(amount, -2).StringFixed(2)
}
