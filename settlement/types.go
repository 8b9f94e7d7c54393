/*
Package settlement computes the weekly distribution of net income among
the members of a small business group.

PURPOSE:
  One admin action per week turns raw totals (income, expenses, advances
  already drawn by members) into final per-member payouts. The math lives
  here and nowhere else: the calculator is a pure function of its inputs
  and a fixed configuration, performs no I/O, and is safe to call
  concurrently with different inputs.

KEY CONCEPTS IN THIS FILE (types.go):
  - Config:      Immutable share table, salary, rent/milk and debt constants
  - WeeklyInput: One week's raw figures as supplied by the caller
  - Result:      Every intermediate deduction plus the final payouts
  - Quantize:    The single rounding rule for all money in the system

MONEY:
  All currency figures are decimal.Decimal and are quantized to 2 decimal
  places with round-half-up before being combined or stored. Never use
  float64 for money.

SEE ALSO:
  - calc.go: The settlement algorithm
  - week.go: Week boundary and month-end helpers
  - debt.go: The debt ledger state transition
*/
package settlement

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// QUANTIZATION - The one rounding rule
// =============================================================================

// Quantize rounds a monetary value to exactly 2 decimal places using
// round-half-up (not banker's rounding). Every figure that leaves the
// calculator has passed through here, so totals are reproducible
// regardless of how the inputs were produced.
func Quantize(d decimal.Decimal) decimal.Decimal {
	// decimal.Round rounds half away from zero, which is round-half-up
	// for the non-negative amounts handled here.
	return d.Round(2)
}

// =============================================================================
// CONFIGURATION - Fixed per deployment, passed explicitly
// =============================================================================

// Config holds the deployment constants for settlement computation.
// It is treated as immutable for the lifetime of a computation. Shares are
// expected (but not required) to sum to 1.0.
type Config struct {
	// Shares maps member name to fractional ownership of the weekly net.
	Shares map[string]decimal.Decimal

	// SalaryMember names the member whose labor is compensated with a
	// fixed weekly salary on top of their ownership share.
	SalaryMember string

	// DailyRate is the salary member's daily rate. Weekly salary is
	// DailyRate x 7.
	DailyRate decimal.Decimal

	// Rent and Milk are monthly bills, deducted once per month on the
	// week that contains month-end.
	Rent decimal.Decimal
	Milk decimal.Decimal

	// DebtPercent is the fraction of weekly income reserved for debt
	// service (repayment, or new debt when none is owed).
	DebtPercent decimal.Decimal
}

// WeekDays is the number of days the weekly salary covers.
const WeekDays = 7

// WeeklySalary returns the salary member's full weekly salary, quantized.
func (c Config) WeeklySalary() decimal.Decimal {
	return Quantize(c.DailyRate.Mul(decimal.NewFromInt(WeekDays)))
}

// Validate checks that the configuration can support a computation.
// A bad configuration is fatal: no settlement may proceed against it.
func (c Config) Validate() error {
	if len(c.Shares) == 0 {
		return &ConfigError{Field: "shares", Reason: "no members configured"}
	}
	for name, ratio := range c.Shares {
		if name == "" {
			return &ConfigError{Field: "shares", Reason: "empty member name"}
		}
		if ratio.IsNegative() {
			return &ConfigError{Field: "shares", Reason: "negative share for " + name}
		}
	}
	if c.SalaryMember != "" {
		if _, ok := c.Shares[c.SalaryMember]; !ok {
			return &ConfigError{Field: "salary_member", Reason: "not in share table: " + c.SalaryMember}
		}
	}
	if c.DailyRate.IsNegative() {
		return &ConfigError{Field: "daily_rate", Reason: "negative"}
	}
	if c.Rent.IsNegative() || c.Milk.IsNegative() {
		return &ConfigError{Field: "rent/milk", Reason: "negative"}
	}
	if c.DebtPercent.IsNegative() || c.DebtPercent.GreaterThan(decimal.NewFromInt(1)) {
		return &ConfigError{Field: "debt_percent", Reason: "must be within [0, 1]"}
	}
	return nil
}

// Members returns the configured member names in stable (sorted) order.
func (c Config) Members() []string {
	names := make([]string, 0, len(c.Shares))
	for name := range c.Shares {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// =============================================================================
// WEEKLY INPUT - One week's raw figures
// =============================================================================

// WeeklyInput is everything the caller supplies for one settlement.
type WeeklyInput struct {
	Income   decimal.Decimal
	Expenses decimal.Decimal

	// Advances maps member name to the total advance already drawn this
	// week. Members absent from the map have drawn nothing.
	Advances map[string]decimal.Decimal

	// WeekStart/WeekEnd are the Monday and Sunday bounding the week.
	WeekStart time.Time
	WeekEnd   time.Time

	// OperatorSubstitute is true when a stand-in performed the salary
	// member's duties this week. The salary is then withheld.
	OperatorSubstitute bool
}

// Validate rejects inputs the calculator must not touch.
func (in WeeklyInput) Validate() error {
	switch {
	case in.Income.IsNegative():
		return &InvalidInputError{Field: "income", Reason: "negative"}
	case in.Expenses.IsNegative():
		return &InvalidInputError{Field: "expenses", Reason: "negative"}
	case in.Income.LessThan(in.Expenses):
		return &InvalidInputError{Field: "income", Reason: "below expenses"}
	}
	for name, amount := range in.Advances {
		if amount.IsNegative() {
			return &InvalidInputError{Field: "advances", Reason: "negative advance for " + name}
		}
	}
	if in.WeekEnd.Before(in.WeekStart) {
		return &InvalidInputError{Field: "week", Reason: "end before start"}
	}
	return nil
}

// =============================================================================
// RESULT - Everything the caller persists and displays
// =============================================================================

// Result is the full outcome of one settlement computation: every
// deduction component, the distributable net, and both the gross
// (pre-advance) and final per-member figures.
type Result struct {
	WeekStart time.Time
	WeekEnd   time.Time

	Income   decimal.Decimal
	Expenses decimal.Decimal

	// Deductions taken off the top before distribution.
	Salary  decimal.Decimal // zero when OperatorSubstitute was set
	DebtDue decimal.Decimal // income x debt percent; ledger applies it, see debt.go
	Rent    decimal.Decimal // zero unless the week spans month-end
	Milk    decimal.Decimal // zero unless the week spans month-end

	TotalAdvances    decimal.Decimal
	NetDistributable decimal.Decimal // never negative

	// GrossShares is each member's share of the net before advances,
	// kept for display.
	GrossShares map[string]decimal.Decimal

	// NetPayouts is what each member actually receives: gross share minus
	// advance, after over-advance redistribution and the salary top-up.
	// Never negative.
	NetPayouts map[string]decimal.Decimal

	// Shortfall records any amount clamped from a member whose payout
	// would otherwise have gone negative. Empty in normal operation.
	Shortfall map[string]decimal.Decimal

	OperatorSubstitute bool
}

// TotalPayout returns the sum of all final payouts.
func (r Result) TotalPayout() decimal.Decimal {
	total := decimal.Zero
	for _, p := range r.NetPayouts {
		total = total.Add(p)
	}
	return total
}
