package job

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-alerts/internal/alerts"
	"github.com/dvloznov/finance-alerts/internal/domain"
	"github.com/dvloznov/finance-alerts/internal/metrics"
	"github.com/dvloznov/finance-alerts/internal/repository"
)

// userResult carries the per-user notification counts up to the report.
type userResult struct {
	created int
	skipped int
}

// readRetry runs an idempotent repository read, retrying once on
// failure. Writes never go through here.
func readRetry(ctx context.Context, op func() error) error {
	err := op()
	if err == nil || ctx.Err() != nil {
		return err
	}
	return op()
}

// processUser runs the full read -> calculate -> evaluate -> dispatch
// sequence for one user. Malformed records are logged and skipped;
// repository failures end the user's attempt with an error.
func (o *Orchestrator) processUser(ctx context.Context, userID string) (userResult, error) {
	var result userResult
	now := o.clk.Now()
	log := o.log.With().Str("user_id", userID).Logger()

	var prefs domain.NotificationPreferences
	if err := readRetry(ctx, func() error {
		var err error
		prefs, err = o.repo.GetNotificationPreferences(ctx, userID)
		return err
	}); err != nil {
		return result, fmt.Errorf("processUser: preferences: %w", err)
	}

	if !prefs.BudgetAlerts && !prefs.GoalReminders && !prefs.TransactionAlerts {
		log.Debug().Msg("All alert preferences disabled, nothing to evaluate")
		return result, nil
	}

	var intents []alerts.AlertIntent

	if prefs.BudgetAlerts {
		budgetIntents, err := o.evaluateBudgets(ctx, userID, prefs, now, log)
		if err != nil {
			return result, err
		}
		intents = append(intents, budgetIntents...)
	}

	if prefs.GoalReminders {
		goalIntents, err := o.evaluateGoals(ctx, userID, prefs, now, log)
		if err != nil {
			return result, err
		}
		intents = append(intents, goalIntents...)
	}

	if prefs.TransactionAlerts {
		txIntents, err := o.evaluateTransactions(ctx, userID, prefs, now)
		if err != nil {
			return result, err
		}
		intents = append(intents, txIntents...)
	}

	outcome := o.disp.Dispatch(ctx, userID, intents, now)
	result.created = outcome.Created
	result.skipped = outcome.Skipped

	if outcome.Failed() {
		for _, f := range outcome.Failures {
			log.Error().Err(f.Err).
				Str("type", string(f.Intent.Type)).
				Str("subject_id", f.Intent.SubjectID).
				Msg("Failed to dispatch alert")
		}
		return result, fmt.Errorf("processUser: %d of %d intents failed to dispatch",
			len(outcome.Failures), len(intents))
	}
	return result, nil
}

func (o *Orchestrator) evaluateBudgets(ctx context.Context, userID string, prefs domain.NotificationPreferences, now time.Time, log zerolog.Logger) ([]alerts.AlertIntent, error) {
	var budgets []domain.Budget
	if err := readRetry(ctx, func() error {
		var err error
		budgets, err = o.repo.GetBudgets(ctx, userID)
		return err
	}); err != nil {
		return nil, fmt.Errorf("evaluateBudgets: budgets: %w", err)
	}

	var intents []alerts.AlertIntent
	for _, b := range budgets {
		if err := b.Validate(); err != nil {
			// ConfigError and ValidationError both mean this budget is
			// unusable; the rest of the user's budgets still run.
			log.Warn().Err(err).Str("budget_id", b.ID).Msg("Skipping budget")
			continue
		}

		w := b.CurrentWindow(now)
		prior := b.PreviousWindow(w)

		var current, previous []domain.Transaction
		if err := readRetry(ctx, func() error {
			var err error
			current, err = o.repo.GetTransactions(ctx, userID, w.Start, w.End, b.CategoryID)
			return err
		}); err != nil {
			return nil, fmt.Errorf("evaluateBudgets: transactions for budget %s: %w", b.ID, err)
		}
		if err := readRetry(ctx, func() error {
			var err error
			previous, err = o.repo.GetTransactions(ctx, userID, prior.Start, prior.End, b.CategoryID)
			return err
		}); err != nil {
			return nil, fmt.Errorf("evaluateBudgets: prior transactions for budget %s: %w", b.ID, err)
		}

		progress := metrics.Compute(b, w, current, previous, now)
		if progress.Misconfigured {
			log.Warn().Str("budget_id", b.ID).Msg("Budget amount unusable, progress flagged misconfigured")
			continue
		}

		lastPercent, err := o.notifiedThreshold(ctx, userID, b.ID, w.Key(), now)
		if err != nil {
			return nil, fmt.Errorf("evaluateBudgets: threshold state for budget %s: %w", b.ID, err)
		}

		intents = append(intents, o.eval.BudgetAlerts(b, progress, prefs, lastPercent)...)
	}
	return intents, nil
}

// notifiedThreshold reconstructs the last-known notified percentage for
// a budget+period as the highest configured threshold that already has
// an unexpired notification. No stored state beyond the notifications
// themselves is needed.
func (o *Orchestrator) notifiedThreshold(ctx context.Context, userID, budgetID, periodKey string, now time.Time) (float64, error) {
	var last float64
	for _, threshold := range o.eval.Thresholds {
		key := domain.NotificationKey{
			UserID:    userID,
			Type:      domain.NotificationBudgetAlert,
			SubjectID: fmt.Sprintf("%s:%g", budgetID, threshold),
			PeriodKey: periodKey,
		}
		lookup := o.repo.FindNotification(ctx, key, now)
		if lookup.State == repository.LookupStoreError {
			lookup = o.repo.FindNotification(ctx, key, now)
		}
		switch lookup.State {
		case repository.LookupFound:
			last = threshold
		case repository.LookupStoreError:
			return 0, fmt.Errorf("notifiedThreshold: %w", lookup.Err)
		}
	}
	return last, nil
}

func (o *Orchestrator) evaluateGoals(ctx context.Context, userID string, prefs domain.NotificationPreferences, now time.Time, log zerolog.Logger) ([]alerts.AlertIntent, error) {
	var goals []domain.Goal
	if err := readRetry(ctx, func() error {
		var err error
		goals, err = o.repo.GetGoals(ctx, userID)
		return err
	}); err != nil {
		return nil, fmt.Errorf("evaluateGoals: goals: %w", err)
	}

	var intents []alerts.AlertIntent
	for _, g := range goals {
		if err := g.Validate(); err != nil {
			log.Warn().Err(err).Str("goal_id", g.ID).Msg("Skipping goal")
			continue
		}

		lastReminder, err := o.lastGoalReminder(ctx, userID, g.ID, now)
		if err != nil {
			return nil, fmt.Errorf("evaluateGoals: reminder state for goal %s: %w", g.ID, err)
		}

		intents = append(intents, o.eval.GoalReminder(g, prefs, lastReminder, now)...)
	}
	return intents, nil
}

// lastGoalReminder finds the creation time of the most recent reminder
// for the goal. Reminders are keyed by day, so both today's and
// yesterday's keys are checked; a reminder sent at 23:00 still counts
// against a run shortly after midnight.
func (o *Orchestrator) lastGoalReminder(ctx context.Context, userID, goalID string, now time.Time) (*time.Time, error) {
	var latest *time.Time
	for _, day := range []time.Time{now, now.AddDate(0, 0, -1)} {
		key := domain.NotificationKey{
			UserID:    userID,
			Type:      domain.NotificationGoalReminder,
			SubjectID: goalID,
			PeriodKey: day.Format("2006-01-02"),
		}
		lookup := o.repo.FindNotification(ctx, key, now)
		if lookup.State == repository.LookupStoreError {
			lookup = o.repo.FindNotification(ctx, key, now)
		}
		switch lookup.State {
		case repository.LookupFound:
			created := lookup.Notification.CreatedAt
			if latest == nil || created.After(*latest) {
				latest = &created
			}
		case repository.LookupStoreError:
			return nil, fmt.Errorf("lastGoalReminder: %w", lookup.Err)
		}
	}
	return latest, nil
}

func (o *Orchestrator) evaluateTransactions(ctx context.Context, userID string, prefs domain.NotificationPreferences, now time.Time) ([]alerts.AlertIntent, error) {
	var history []domain.Transaction
	if err := readRetry(ctx, func() error {
		var err error
		history, err = o.repo.GetTransactions(ctx, userID, now.Add(-o.historyWindow), now, "")
		return err
	}); err != nil {
		return nil, fmt.Errorf("evaluateTransactions: history: %w", err)
	}

	cutoff := now.Add(-o.recentWindow)
	var recent []domain.Transaction
	for _, t := range history {
		if !t.Date.Before(cutoff) {
			recent = append(recent, t)
		}
	}

	return o.eval.TransactionAlerts(recent, history, prefs), nil
}
