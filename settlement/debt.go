package settlement

import "github.com/shopspring/decimal"

// =============================================================================
// DEBT LEDGER - Small state transition applied after each settlement
// =============================================================================

// DebtState tracks the group's running debt. Invariant:
// 0 <= RemainingDebt <= TotalDebt. The calculator only computes the weekly
// debt-service amount; applying it to the ledger happens here, at
// persistence time.
type DebtState struct {
	TotalDebt     decimal.Decimal
	RemainingDebt decimal.Decimal
}

// DebtPayment describes what one application of debt service did.
type DebtPayment struct {
	// Paid is how much of the due amount reduced the remaining debt.
	Paid decimal.Decimal
	// NewDebt is how much was incurred as fresh debt (only when nothing
	// was owed going in).
	NewDebt decimal.Decimal
	// Settled is true when this payment cleared the remaining debt.
	Settled bool
}

// Apply consumes a settlement's debt-service amount.
//
// With debt outstanding the payment reduces RemainingDebt, capped at what
// is owed. With no debt outstanding the amount is incurred as new debt,
// raising both totals.
func (d DebtState) Apply(debtDue decimal.Decimal) (DebtState, DebtPayment) {
	if d.RemainingDebt.IsPositive() {
		paid := decimal.Min(debtDue, d.RemainingDebt)
		next := DebtState{
			TotalDebt:     d.TotalDebt,
			RemainingDebt: Quantize(d.RemainingDebt.Sub(paid)),
		}
		return next, DebtPayment{
			Paid:    Quantize(paid),
			NewDebt: decimal.Zero,
			Settled: next.RemainingDebt.IsZero(),
		}
	}

	next := DebtState{
		TotalDebt:     Quantize(d.TotalDebt.Add(debtDue)),
		RemainingDebt: Quantize(d.RemainingDebt.Add(debtDue)),
	}
	return next, DebtPayment{Paid: decimal.Zero, NewDebt: Quantize(debtDue)}
}

// Reverse undoes a previously applied debt-service amount, used when a
// settlement is deleted. The remaining debt grows back; if it overtakes
// the recorded total (the payment had incurred new debt since), the total
// is raised to keep the invariant.
func (d DebtState) Reverse(debtDue decimal.Decimal) DebtState {
	next := DebtState{
		TotalDebt:     d.TotalDebt,
		RemainingDebt: Quantize(d.RemainingDebt.Add(debtDue)),
	}
	if next.RemainingDebt.GreaterThan(next.TotalDebt) {
		next.TotalDebt = next.RemainingDebt
	}
	return next
}

// Paid returns how much of the total debt has been repaid.
func (d DebtState) Paid() decimal.Decimal {
	return d.TotalDebt.Sub(d.RemainingDebt)
}

// Progress returns repayment progress as a percentage of total debt,
// zero when no debt was ever incurred.
func (d DebtState) Progress() decimal.Decimal {
	if d.TotalDebt.IsZero() {
		return decimal.Zero
	}
	return Quantize(d.Paid().Div(d.TotalDebt).Mul(decimal.NewFromInt(100)))
}
