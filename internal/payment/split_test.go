package payment_test

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reconloop/recon-api/internal/payment"
)

func clearingJournal(percent string) *payment.Journal {
	clearing := "ACC_clearing"
	p := decimal.RequireFromString(percent)
	return &payment.Journal{
		JournalID:         "JRN_test",
		Currency:          "EUR",
		BankAccountID:     "ACC_bank",
		ClearingAccountID: &clearing,
		ClearingPercent:   &p,
	}
}

func TestClearingSplitNoClearingAccount(t *testing.T) {
	journal := &payment.Journal{JournalID: "JRN_plain", Currency: "EUR"}

	_, ok := payment.ClearingSplit(decimal.RequireFromString("100.00"), journal)
	assert.False(t, ok, "split should be undefined without a clearing account")

	_, ok = payment.ClearingSplit(decimal.RequireFromString("100.00"), nil)
	assert.False(t, ok)
}

func TestClearingSplitHalf(t *testing.T) {
	split, ok := payment.ClearingSplit(decimal.RequireFromString("100.00"), clearingJournal("0.5"))
	require.True(t, ok)
	assert.True(t, split.Advancement.Equal(decimal.RequireFromString("50")), "advancement = %s", split.Advancement)
	assert.True(t, split.Pending.Equal(decimal.RequireFromString("50")), "pending = %s", split.Pending)
}

func TestClearingSplitFullPercent(t *testing.T) {
	split, ok := payment.ClearingSplit(decimal.RequireFromString("123.45"), clearingJournal("1"))
	require.True(t, ok)
	assert.True(t, split.Advancement.Equal(decimal.RequireFromString("123.45")))
	assert.True(t, split.Pending.IsZero(), "pending must be zero when the full amount clears")
}

func TestClearingSplitDefaultPercent(t *testing.T) {
	// A clearing journal without an explicit percent clears in full.
	clearing := "ACC_clearing"
	journal := &payment.Journal{
		JournalID:         "JRN_test",
		Currency:          "EUR",
		ClearingAccountID: &clearing,
	}
	split, ok := payment.ClearingSplit(decimal.RequireFromString("10.00"), journal)
	require.True(t, ok)
	assert.True(t, split.Advancement.Equal(decimal.RequireFromString("10.00")))
	assert.True(t, split.Pending.IsZero())
}

// TestClearingSplitConservation checks that advancement + pending
// recomposes the amount exactly for randomized sub-cent amounts and
// percents, with no rounding drift.
func TestClearingSplitConservation(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 500; i++ {
		// Amounts with up to 4 decimal places, percents up to 4 places
		// in (0, 1].
		amount := decimal.New(rng.Int63n(10_000_000_00)+1, -4)
		percent := decimal.New(rng.Int63n(10_000)+1, -4)

		journal := clearingJournal(percent.String())
		split, ok := payment.ClearingSplit(amount, journal)
		require.True(t, ok)

		recomposed := split.Advancement.Add(split.Pending)
		assert.True(t, recomposed.Equal(amount),
			"advancement %s + pending %s != amount %s (percent %s)",
			split.Advancement, split.Pending, amount, percent)
	}
}

func TestClearingSplitSignedAmounts(t *testing.T) {
	// Payable payments carry a flipped sign through the split.
	for _, amount := range []string{"-100.00", "-0.01", "-33.335"} {
		t.Run(fmt.Sprintf("amount %s", amount), func(t *testing.T) {
			value := decimal.RequireFromString(amount)
			split, ok := payment.ClearingSplit(value, clearingJournal("0.3"))
			require.True(t, ok)
			assert.True(t, split.Advancement.Add(split.Pending).Equal(value))
			assert.True(t, split.Advancement.Sign() <= 0)
		})
	}
}
