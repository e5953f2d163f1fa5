package payment

import "github.com/shopspring/decimal"

// Split is the clearing split of a payment amount: the advancement
// portion routed through the clearing account immediately and the
// pending remainder settled on final confirmation.
type Split struct {
	Advancement decimal.Decimal
	Pending     decimal.Decimal
}

// ClearingSplit computes the clearing split of an amount under a
// journal's clearing configuration. The second return is false when the
// journal has no clearing account, in which case the payment settles in
// a single leg and the split is undefined.
//
// Pending is computed as amount minus advancement rather than
// amount x (1 - percent) so the two portions always recompose the input
// exactly, whatever the percent's precision.
func ClearingSplit(amount decimal.Decimal, journal *Journal) (Split, bool) {
	if journal == nil || !journal.HasClearing() {
		return Split{}, false
	}
	advancement := amount.Mul(journal.Percent())
	return Split{
		Advancement: advancement,
		Pending:     amount.Sub(advancement),
	}, true
}
