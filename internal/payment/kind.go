package payment

import "github.com/shopspring/decimal"

// Obligation kinds. A positive observed amount is money coming in,
// settling a receivable; a negative one is money going out, settling a
// payable.
const (
	KindReceivable = "RECEIVABLE"
	KindPayable    = "PAYABLE"
)

// ClassifyAmount derives the obligation kind from a signed amount. The
// second return is false for a zero amount, which has no kind.
func ClassifyAmount(amount decimal.Decimal) (string, bool) {
	switch amount.Sign() {
	case 1:
		return KindReceivable, true
	case -1:
		return KindPayable, true
	default:
		return "", false
	}
}

// SignForKind returns the sign convention multiplier for a kind: +1 for
// receivable, -1 for payable.
func SignForKind(kind string) decimal.Decimal {
	if kind == KindPayable {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}
