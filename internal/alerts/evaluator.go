package alerts

import (
	"fmt"
	"sort"
	"time"

	"github.com/dvloznov/finance-alerts/internal/domain"
)

// Evaluator applies the alerting rules. It is stateless: prior
// notification state and the current time are supplied by the caller,
// and identical inputs always yield identical intents.
type Evaluator struct {
	// Thresholds are the budget percentage levels, ascending.
	Thresholds []float64

	// GoalLookahead is how far before a goal's target date reminders
	// start firing.
	GoalLookahead time.Duration

	// AnomalyMultiplier and AnomalyMinHistory parameterize the
	// transaction anomaly rule.
	AnomalyMultiplier float64
	AnomalyMinHistory int
}

// BudgetAlerts fires one intent per threshold newly crossed by the
// budget's percentage. lastPercent is the highest percentage already
// notified for this budget+period (0 when none); a threshold at or below
// it never re-fires within the period.
func (e Evaluator) BudgetAlerts(b domain.Budget, p domain.BudgetProgress, prefs domain.NotificationPreferences, lastPercent float64) []AlertIntent {
	if !prefs.BudgetAlerts || p.Misconfigured {
		return nil
	}

	var intents []AlertIntent
	for _, threshold := range e.Thresholds {
		if lastPercent >= threshold || p.Percentage < threshold {
			continue
		}
		expires := p.PeriodEnd
		intents = append(intents, AlertIntent{
			Type:      domain.NotificationBudgetAlert,
			SubjectID: budgetSubject(b.ID, threshold),
			PeriodKey: domain.Window{Start: p.PeriodStart, End: p.PeriodEnd}.Key(),
			Title:     budgetTitle(threshold),
			Message: fmt.Sprintf("You have spent %s of your %s budget (%.2f%%).",
				p.Spent.StringFixed(2), b.Amount.StringFixed(2), p.Percentage),
			Payload: map[string]string{
				"budget_id":  b.ID,
				"threshold":  fmt.Sprintf("%g", threshold),
				"percentage": fmt.Sprintf("%.2f", p.Percentage),
				"spent":      p.Spent.StringFixed(2),
			},
			ExpiresAt: &expires,
		})
	}
	return intents
}

// budgetSubject keys budget alerts per threshold so the 80% and 100%
// alerts of one period are distinct notifications.
func budgetSubject(budgetID string, threshold float64) string {
	return fmt.Sprintf("%s:%g", budgetID, threshold)
}

func budgetTitle(threshold float64) string {
	if threshold >= 100 {
		return "Budget exceeded"
	}
	return fmt.Sprintf("Budget at %g%%", threshold)
}

// GoalReminder fires when the goal's target date is within the lookahead
// window and the goal is unmet, at most once per 24 hours. lastReminder
// is the creation time of the most recent unexpired reminder for this
// goal, nil when none exists.
func (e Evaluator) GoalReminder(g domain.Goal, prefs domain.NotificationPreferences, lastReminder *time.Time, now time.Time) []AlertIntent {
	if !prefs.GoalReminders {
		return nil
	}
	if g.TargetDate == nil || g.Reached() {
		return nil
	}
	if g.TargetDate.After(now.Add(e.GoalLookahead)) {
		return nil
	}
	if lastReminder != nil && now.Sub(*lastReminder) < 24*time.Hour {
		return nil
	}

	days := domain.DaysBetween(now, *g.TargetDate)
	message := fmt.Sprintf("Your goal %q is due in %d days and is at %s of %s.",
		g.Name, days, g.CurrentAmount.StringFixed(2), g.TargetAmount.StringFixed(2))
	if days < 0 {
		message = fmt.Sprintf("Your goal %q is past its target date and is at %s of %s.",
			g.Name, g.CurrentAmount.StringFixed(2), g.TargetAmount.StringFixed(2))
	}

	return []AlertIntent{{
		Type:      domain.NotificationGoalReminder,
		SubjectID: g.ID,
		PeriodKey: now.Format("2006-01-02"),
		Title:     "Goal deadline approaching",
		Message:   message,
		Payload: map[string]string{
			"goal_id":        g.ID,
			"target_amount":  g.TargetAmount.StringFixed(2),
			"current_amount": g.CurrentAmount.StringFixed(2),
			"target_date":    g.TargetDate.Format("2006-01-02"),
		},
	}}
}

// TransactionAlerts fires for each newly observed expense whose absolute
// amount exceeds AnomalyMultiplier times the median absolute expense in
// history. The rule stays silent until history holds at least
// AnomalyMinHistory expenses; a handful of rows does not make a baseline.
func (e Evaluator) TransactionAlerts(recent, history []domain.Transaction, prefs domain.NotificationPreferences) []AlertIntent {
	if !prefs.TransactionAlerts {
		return nil
	}

	baseline := medianExpense(history)
	if baseline.count < e.AnomalyMinHistory || baseline.median <= 0 {
		return nil
	}
	limit := baseline.median * e.AnomalyMultiplier

	var intents []AlertIntent
	for _, t := range recent {
		if !t.IsExpense() {
			continue
		}
		amount := t.AbsAmount().InexactFloat64()
		if amount <= limit {
			continue
		}
		intents = append(intents, AlertIntent{
			Type:      domain.NotificationTransactionAlert,
			SubjectID: t.ID,
			PeriodKey: t.Date.Format("2006-01-02"),
			Title:     "Unusually large transaction",
			Message: fmt.Sprintf("A %s expense %q is well above your typical spending of %.2f.",
				t.AbsAmount().StringFixed(2), t.Description, baseline.median),
			Payload: map[string]string{
				"transaction_id": t.ID,
				"amount":         t.AbsAmount().StringFixed(2),
				"median":         fmt.Sprintf("%.2f", baseline.median),
			},
		})
	}
	return intents
}

type expenseBaseline struct {
	median float64
	count  int
}

func medianExpense(history []domain.Transaction) expenseBaseline {
	var amounts []float64
	for _, t := range history {
		if t.IsExpense() {
			amounts = append(amounts, t.AbsAmount().InexactFloat64())
		}
	}
	if len(amounts) == 0 {
		return expenseBaseline{}
	}
	sort.Float64s(amounts)
	mid := len(amounts) / 2
	median := amounts[mid]
	if len(amounts)%2 == 0 {
		median = (amounts[mid-1] + amounts[mid]) / 2
	}
	return expenseBaseline{median: median, count: len(amounts)}
}
