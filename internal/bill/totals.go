package bill

// RecomputeTotal sums every item's total price and every tax amount. Plain
// float64 arithmetic, no rounding; display rounding belongs to the
// presentation layer. Every editor mutation stores this result into
// Summary.TotalAmount before returning.
func RecomputeTotal(b Bill) float64 {
	var total float64
	for _, item := range b.Items {
		total += item.TotalPrice
	}
	for _, tax := range b.Summary.Tax {
		total += tax.Amount
	}
	return total
}
