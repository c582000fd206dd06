package metrics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-alerts/internal/domain"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func expense(amount int64, at time.Time) domain.Transaction {
	return domain.Transaction{
		ID:     "tx",
		Type:   domain.TransactionExpense,
		Amount: decimal.NewFromInt(amount),
		Date:   at,
	}
}

func monthlyBudget(amount int64) domain.Budget {
	return domain.Budget{
		ID:        "b1",
		UserID:    "u1",
		Amount:    decimal.NewFromInt(amount),
		Period:    domain.PeriodMonthly,
		StartDate: date(2026, 6, 1),
	}
}

var june = domain.Window{Start: date(2026, 6, 1), End: date(2026, 7, 1)}

func TestComputeOnPaceBudget(t *testing.T) {
	b := monthlyBudget(500)
	now := date(2026, 6, 16)
	current := []domain.Transaction{
		expense(120, date(2026, 6, 3)),
		expense(180, date(2026, 6, 10)),
		{Type: domain.TransactionIncome, Amount: decimal.NewFromInt(1000), Date: date(2026, 6, 5)},
	}

	p := Compute(b, june, current, nil, now)

	if !p.Spent.Equal(decimal.NewFromInt(300)) {
		t.Errorf("Spent = %s, want 300", p.Spent)
	}
	if !p.Remaining.Equal(decimal.NewFromInt(200)) {
		t.Errorf("Remaining = %s, want 200", p.Remaining)
	}
	if p.Percentage != 60 {
		t.Errorf("Percentage = %g, want 60", p.Percentage)
	}
	if p.IsOverBudget {
		t.Error("IsOverBudget = true, want false")
	}
	if p.SpendingVelocity != 20 {
		t.Errorf("SpendingVelocity = %g, want 20 (300 over 15 days)", p.SpendingVelocity)
	}
	if p.DaysRemaining != 15 {
		t.Errorf("DaysRemaining = %d, want 15", p.DaysRemaining)
	}
	// 200 remaining at 20/day is breached in 10 days, inside the period.
	if p.ProjectedOverspendDate == nil {
		t.Fatal("ProjectedOverspendDate = nil, want projection")
	}
	if want := date(2026, 6, 26); !p.ProjectedOverspendDate.Equal(want) {
		t.Errorf("ProjectedOverspendDate = %v, want %v", p.ProjectedOverspendDate, want)
	}
	if p.PeriodComparison != nil {
		t.Errorf("PeriodComparison = %v, want nil without prior data", *p.PeriodComparison)
	}
}

func TestComputeOverBudget(t *testing.T) {
	b := monthlyBudget(200)
	now := date(2026, 6, 16)
	current := []domain.Transaction{expense(250, date(2026, 6, 5))}

	p := Compute(b, june, current, nil, now)

	if !p.IsOverBudget {
		t.Error("IsOverBudget = false, want true")
	}
	if !p.Remaining.Equal(decimal.NewFromInt(-50)) {
		t.Errorf("Remaining = %s, want -50", p.Remaining)
	}
	if p.Percentage != 125 {
		t.Errorf("Percentage = %g, want 125", p.Percentage)
	}
	if p.ProjectedOverspendDate != nil {
		t.Errorf("ProjectedOverspendDate = %v, want nil once over budget", p.ProjectedOverspendDate)
	}
}

func TestComputeAfterPeriodEnd(t *testing.T) {
	b := monthlyBudget(500)
	now := date(2026, 7, 10)
	current := []domain.Transaction{expense(100, date(2026, 6, 5))}

	p := Compute(b, june, current, nil, now)

	if p.DaysRemaining != 0 {
		t.Errorf("DaysRemaining = %d, want 0 after period end", p.DaysRemaining)
	}
}

func TestComputeZeroAmountIsMisconfigured(t *testing.T) {
	b := monthlyBudget(0)
	now := date(2026, 6, 16)

	p := Compute(b, june, []domain.Transaction{expense(50, date(2026, 6, 5))}, nil, now)

	if !p.Misconfigured {
		t.Error("Misconfigured = false, want true for zero amount")
	}
	if p.Percentage != 0 {
		t.Errorf("Percentage = %g, want 0 when ratio math is skipped", p.Percentage)
	}
}

func TestComputeZeroSpendHasNoProjection(t *testing.T) {
	b := monthlyBudget(500)
	p := Compute(b, june, nil, nil, date(2026, 6, 16))

	if p.SpendingVelocity != 0 {
		t.Errorf("SpendingVelocity = %g, want 0", p.SpendingVelocity)
	}
	if p.ProjectedOverspendDate != nil {
		t.Errorf("ProjectedOverspendDate = %v, want nil at zero velocity", p.ProjectedOverspendDate)
	}
}

func TestComputePeriodComparison(t *testing.T) {
	b := monthlyBudget(500)
	now := date(2026, 6, 16)
	current := []domain.Transaction{expense(300, date(2026, 6, 10))}

	t.Run("delta against prior spend at same elapsed point", func(t *testing.T) {
		// 100 spent by day 15 of May versus 300 now: up 200%.
		prior := []domain.Transaction{expense(100, date(2026, 5, 5))}
		p := Compute(b, june, current, prior, now)
		if p.PeriodComparison == nil {
			t.Fatal("PeriodComparison = nil, want delta")
		}
		if *p.PeriodComparison != 200 {
			t.Errorf("PeriodComparison = %g, want 200", *p.PeriodComparison)
		}
	})

	t.Run("prior spend after the cutoff does not count", func(t *testing.T) {
		// The prior period had expense data but none inside the first 15
		// days, so the comparison runs against the epsilon floor.
		prior := []domain.Transaction{expense(100, date(2026, 5, 20))}
		p := Compute(b, june, current, prior, now)
		if p.PeriodComparison == nil {
			t.Fatal("PeriodComparison = nil, want delta")
		}
		if *p.PeriodComparison <= 0 {
			t.Errorf("PeriodComparison = %g, want large positive delta", *p.PeriodComparison)
		}
	})

	t.Run("nil without any prior expense data", func(t *testing.T) {
		prior := []domain.Transaction{{Type: domain.TransactionIncome, Amount: decimal.NewFromInt(500), Date: date(2026, 5, 5)}}
		p := Compute(b, june, current, prior, now)
		if p.PeriodComparison != nil {
			t.Errorf("PeriodComparison = %g, want nil", *p.PeriodComparison)
		}
	})
}

func TestComputeCategoryFilter(t *testing.T) {
	b := monthlyBudget(500)
	b.CategoryID = "groceries"
	now := date(2026, 6, 16)

	grocery := expense(100, date(2026, 6, 5))
	grocery.CategoryID = "groceries"
	travel := expense(400, date(2026, 6, 6))
	travel.CategoryID = "travel"

	p := Compute(b, june, []domain.Transaction{grocery, travel}, nil, now)

	if !p.Spent.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Spent = %s, want 100 (travel spend filtered out)", p.Spent)
	}
}
