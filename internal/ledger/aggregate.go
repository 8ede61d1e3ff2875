package ledger

// LineAmounts is the view of one order item the aggregator needs.
type LineAmounts struct {
	Price    Money
	Quantity int64
	Advance  Money
}

// Totals is the derived monetary state of an order. Remaining keeps its
// sign: a negative value means the order is overpaid and Overpaid is set
// rather than silently clamping in storage.
type Totals struct {
	Subtotal  Money
	Total     Money
	Remaining Money
	Overpaid  bool
}

// DisplayRemaining returns the remaining amount floored at zero for UI use.
func (t Totals) DisplayRemaining() Money {
	return t.Remaining.ClampNonNegative()
}

// Aggregate derives subtotal, total and remaining from the current item
// set. COD amounts are collected on delivery and deliberately excluded
// from the total owed. Side-effect free; callers persist the result.
func Aggregate(lines []LineAmounts, deliveryCharges Money) Totals {
	subtotal := Zero()
	advance := Zero()
	for _, line := range lines {
		subtotal = subtotal.Add(line.Price.MulQty(line.Quantity))
		advance = advance.Add(line.Advance)
	}
	total := subtotal.Add(deliveryCharges)
	remaining := total.Sub(advance)
	return Totals{
		Subtotal:  subtotal,
		Total:     total,
		Remaining: remaining,
		Overpaid:  remaining.Decimal.IsNegative(),
	}
}

// AdvanceTotal sums the advance recorded across all items.
func AdvanceTotal(lines []LineAmounts) Money {
	sum := Zero()
	for _, line := range lines {
		sum = sum.Add(line.Advance)
	}
	return sum
}
