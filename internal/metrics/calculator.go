// Package metrics turns raw budget and transaction records into derived
// progress values: spend velocity, projected overspend date and
// period-over-period comparison. Everything here is pure; time comes in
// as an argument.
package metrics

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-alerts/internal/domain"
)

// comparisonEpsilon floors the prior-period denominator so a silent
// prior period yields a large finite delta instead of a division by zero.
const comparisonEpsilon = 0.01

// Compute derives BudgetProgress for one budget over its current window.
// current holds the transactions dated within [w.Start, w.End); prior
// holds the transactions of the immediately preceding window of the same
// recurrence. Both sets may contain non-expense rows; they are ignored.
func Compute(b domain.Budget, w domain.Window, current, prior []domain.Transaction, now time.Time) domain.BudgetProgress {
	spent := sumExpenses(b, current, w.End)

	end := w.End
	if now.Before(end) {
		end = now
	}
	elapsedDays := domain.DaysBetween(w.Start, end)
	if elapsedDays < 1 {
		elapsedDays = 1
	}

	daysRemaining := domain.DaysBetween(now, w.End)
	if daysRemaining < 0 {
		daysRemaining = 0
	}

	progress := domain.BudgetProgress{
		BudgetID:      b.ID,
		Spent:         spent,
		Remaining:     b.Amount.Sub(spent),
		DaysRemaining: daysRemaining,
		PeriodStart:   w.Start,
		PeriodEnd:     w.End,
	}

	spentF, _ := spent.Float64()
	progress.SpendingVelocity = spentF / float64(elapsedDays)

	if b.Amount.Sign() <= 0 {
		progress.Misconfigured = true
		return progress
	}

	progress.Percentage = round2(spent.Div(b.Amount).InexactFloat64() * 100)
	progress.IsOverBudget = spent.GreaterThan(b.Amount)

	if !progress.IsOverBudget && progress.SpendingVelocity > 0 {
		remainingF, _ := progress.Remaining.Float64()
		daysToOverspend := remainingF / progress.SpendingVelocity
		if daysToOverspend <= float64(daysRemaining) {
			at := now.Add(time.Duration(daysToOverspend * 24 * float64(time.Hour)))
			progress.ProjectedOverspendDate = &at
		}
	}

	progress.PeriodComparison = comparePeriod(b, w, prior, spentF, elapsedDays)

	return progress
}

// comparePeriod computes the signed percentage delta between the current
// spend and the prior period's spend at the same number of elapsed days.
// Returns nil when the prior period has no matching expense data at all.
func comparePeriod(b domain.Budget, w domain.Window, prior []domain.Transaction, spentF float64, elapsedDays int) *float64 {
	if !hasExpenseData(b, prior) {
		return nil
	}

	priorStart := b.PreviousWindow(w).Start
	cutoff := priorStart.AddDate(0, 0, elapsedDays)
	priorSpent := sumExpenses(b, prior, cutoff)

	priorF, _ := priorSpent.Float64()
	delta := round2((spentF - priorF) / math.Max(priorF, comparisonEpsilon) * 100)
	return &delta
}

// sumExpenses totals the absolute amounts of expense transactions under
// the budget's category filter, dated strictly before the cutoff.
func sumExpenses(b domain.Budget, txs []domain.Transaction, before time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, t := range txs {
		if !t.IsExpense() || !b.Matches(t) {
			continue
		}
		if !t.Date.Before(before) {
			continue
		}
		total = total.Add(t.AbsAmount())
	}
	return total
}

func hasExpenseData(b domain.Budget, txs []domain.Transaction) bool {
	for _, t := range txs {
		if t.IsExpense() && b.Matches(t) {
			return true
		}
	}
	return false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
