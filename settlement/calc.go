/*
calc.go - The settlement algorithm

PURPOSE:
  Converts one week's raw income/expenses and per-member advances into
  final payouts. Deterministic, no hidden state: identical inputs always
  produce an identical Result.

ALGORITHM:
  1. Quantize income and expenses
  2. Salary: daily rate x 7, withheld entirely when a substitute worked
  3. Debt service: income x debt percent
  4. Rent + milk: only on the week spanning month-end
  5. Net distributable = income - all deductions, floored at zero
  6. Gross share per member = net x share ratio
  7. Subtract each member's advance
  8. Members driven negative by their advance are zeroed; the excess is
     pooled and redistributed across the remaining members in proportion
     to their share ratios (over-advanced members excluded from the base)
  9. Salary top-up for the salary member (unless substituted)

OVER-ADVANCE POLICY:
  A member who drew more than their share gets nothing this week; the
  outstanding difference stays on their advance balance (external
  bookkeeping, not mutated here). Should any payout still end up negative
  after redistribution, it is clamped to zero and the clamped amount is
  reported in Result.Shortfall rather than silently discarded.
*/
package settlement

import "github.com/shopspring/decimal"

// Compute runs the weekly settlement. cfg must pass Validate; in must
// pass Validate. The returned Result carries every intermediate figure
// so the caller can persist and display them without recomputation.
func Compute(cfg Config, in WeeklyInput) (Result, error) {
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}
	if err := in.Validate(); err != nil {
		return Result{}, err
	}

	income := Quantize(in.Income)
	expenses := Quantize(in.Expenses)

	salary := decimal.Zero
	if !in.OperatorSubstitute && cfg.SalaryMember != "" {
		salary = cfg.WeeklySalary()
	}

	debtDue := Quantize(income.Mul(cfg.DebtPercent))

	rent, milk := decimal.Zero, decimal.Zero
	if SpansMonthEnd(in.WeekStart, in.WeekEnd) {
		rent = cfg.Rent
		milk = cfg.Milk
	}

	totalAdvances := decimal.Zero
	for _, a := range in.Advances {
		totalAdvances = totalAdvances.Add(a)
	}
	totalAdvances = Quantize(totalAdvances)

	// Net distributable, floored at zero. A week can run at a loss after
	// deductions; the shortfall is absorbed, not distributed.
	net := income.Sub(expenses.Add(salary).Add(debtDue).Add(rent).Add(milk))
	if net.IsNegative() {
		net = decimal.Zero
	}
	net = Quantize(net)

	// First pass: gross shares minus advances. Anyone driven negative is
	// zeroed and their excess pooled for redistribution.
	gross := make(map[string]decimal.Decimal, len(cfg.Shares))
	payouts := make(map[string]decimal.Decimal, len(cfg.Shares))
	overAdvanced := make(map[string]bool)
	totalOverAdvance := decimal.Zero

	for name, ratio := range cfg.Shares {
		share := Quantize(net.Mul(ratio))
		gross[name] = share

		advance := Quantize(in.Advances[name]) // zero value for absent members
		payout := share.Sub(advance)
		if payout.IsNegative() {
			overAdvanced[name] = true
			totalOverAdvance = totalOverAdvance.Add(payout.Neg())
			payouts[name] = decimal.Zero
		} else {
			payouts[name] = payout
		}
	}

	// Redistribute the pooled excess across members who did not
	// over-advance, proportional to their share of the remaining ratio
	// base.
	if totalOverAdvance.IsPositive() {
		base := decimal.Zero
		for name, ratio := range cfg.Shares {
			if !overAdvanced[name] {
				base = base.Add(ratio)
			}
		}
		if base.IsPositive() {
			for name, ratio := range cfg.Shares {
				if overAdvanced[name] {
					continue
				}
				extra := Quantize(totalOverAdvance.Mul(ratio.Div(base)))
				payouts[name] = payouts[name].Add(extra)
			}
		}
	}

	// Clamp guard: no negative payout leaves the calculator.
	shortfall := make(map[string]decimal.Decimal)
	for name, p := range payouts {
		if p.IsNegative() {
			shortfall[name] = p.Neg()
			payouts[name] = decimal.Zero
		}
	}

	// Salary top-up goes to the salary member only, and only when they
	// actually worked the week.
	if !in.OperatorSubstitute && cfg.SalaryMember != "" {
		if _, ok := payouts[cfg.SalaryMember]; ok {
			payouts[cfg.SalaryMember] = payouts[cfg.SalaryMember].Add(salary)
		}
	}

	return Result{
		WeekStart:          in.WeekStart,
		WeekEnd:            in.WeekEnd,
		Income:             income,
		Expenses:           expenses,
		Salary:             salary,
		DebtDue:            debtDue,
		Rent:               rent,
		Milk:               milk,
		TotalAdvances:      totalAdvances,
		NetDistributable:   net,
		GrossShares:        gross,
		NetPayouts:         payouts,
		Shortfall:          shortfall,
		OperatorSubstitute: in.OperatorSubstitute,
	}, nil
}
