package settlement_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dukabooks/settlement-engine/settlement"
)

// =============================================================================
// DEBT TRANSITIONS
// =============================================================================

func TestDebtState_Apply_PartialPayment(t *testing.T) {
	// GIVEN: 50000 owed
	// WHEN: applying a 10000 debt-service amount
	// THEN: remaining drops to 40000; nothing new is incurred

	state := settlement.DebtState{TotalDebt: d("80000"), RemainingDebt: d("50000")}

	next, payment := state.Apply(d("10000"))

	assertDecimalEqual(t, "80000", next.TotalDebt)
	assertDecimalEqual(t, "40000.00", next.RemainingDebt)
	assertDecimalEqual(t, "10000.00", payment.Paid)
	assert.True(t, payment.NewDebt.IsZero())
	assert.False(t, payment.Settled)
}

func TestDebtState_Apply_OverpaymentCapped(t *testing.T) {
	// GIVEN: only 4000 owed
	// WHEN: applying 10000 of debt service
	// THEN: the payment is capped at what is owed and the debt settles

	state := settlement.DebtState{TotalDebt: d("80000"), RemainingDebt: d("4000")}

	next, payment := state.Apply(d("10000"))

	assert.True(t, next.RemainingDebt.IsZero())
	assertDecimalEqual(t, "4000.00", payment.Paid)
	assert.True(t, payment.Settled)
}

func TestDebtState_Apply_NoDebt_IncursNew(t *testing.T) {
	// GIVEN: nothing owed
	// WHEN: applying 10000 of debt service
	// THEN: 10000 becomes new debt on both totals

	next, payment := settlement.DebtState{}.Apply(d("10000"))

	assertDecimalEqual(t, "10000.00", next.TotalDebt)
	assertDecimalEqual(t, "10000.00", next.RemainingDebt)
	assert.True(t, payment.Paid.IsZero())
	assertDecimalEqual(t, "10000.00", payment.NewDebt)
}

func TestDebtState_Invariant_RemainingNeverExceedsTotal(t *testing.T) {
	state := settlement.DebtState{}

	// Incur, partially repay, incur again.
	state, _ = state.Apply(d("10000"))
	state, _ = state.Apply(d("6000"))
	state, _ = state.Apply(d("4000"))
	state, _ = state.Apply(d("2500"))

	assert.False(t, state.RemainingDebt.IsNegative())
	assert.True(t, state.RemainingDebt.LessThanOrEqual(state.TotalDebt))
}

func TestDebtState_Reverse_RestoresRemaining(t *testing.T) {
	// GIVEN: a settlement paid 6000 off the debt
	// WHEN: that settlement is deleted
	// THEN: the 6000 is owed again

	state := settlement.DebtState{TotalDebt: d("20000"), RemainingDebt: d("4000")}

	next := state.Reverse(d("6000"))

	assertDecimalEqual(t, "10000.00", next.RemainingDebt)
	assertDecimalEqual(t, "20000", next.TotalDebt)
}

func TestDebtState_Reverse_RaisesTotalWhenExceeded(t *testing.T) {
	// GIVEN: the reversed amount had been incurred as new debt and the
	//        total has since been reduced
	// WHEN: reversing pushes remaining above total
	// THEN: total is raised to keep 0 <= remaining <= total

	state := settlement.DebtState{TotalDebt: d("5000"), RemainingDebt: d("5000")}

	next := state.Reverse(d("3000"))

	assertDecimalEqual(t, "8000.00", next.RemainingDebt)
	assertDecimalEqual(t, "8000.00", next.TotalDebt)
}

func TestDebtState_Progress(t *testing.T) {
	state := settlement.DebtState{TotalDebt: d("10000"), RemainingDebt: d("2500")}

	assertDecimalEqual(t, "7500", state.Paid())
	assertDecimalEqual(t, "75.00", state.Progress())

	assert.True(t, settlement.DebtState{}.Progress().IsZero())
}
