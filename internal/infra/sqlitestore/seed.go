package sqlitestore

import (
	"context"
	"fmt"

	"github.com/dvloznov/finance-alerts/internal/domain"
)

// The Save* methods exist for local seeding and tests; the production
// write path for these records is the CRUD service, not this engine.

// SaveUser inserts or replaces a user row.
func (s *Store) SaveUser(ctx context.Context, userID string, active bool) error {
	activeInt := 0
	if active {
		activeInt = 1
	}
	if _, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO users (user_id, active) VALUES (?, ?)",
		userID, activeInt); err != nil {
		return fmt.Errorf("SaveUser: %w", err)
	}
	return nil
}

// SaveBudget inserts or replaces a budget row.
func (s *Store) SaveBudget(ctx context.Context, b domain.Budget) error {
	if _, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO budgets
		(budget_id, user_id, category_id, amount, period, start_date, end_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		b.ID, b.UserID, b.CategoryID, b.Amount.String(), string(b.Period),
		formatTime(b.StartDate), nullTime(b.EndDate)); err != nil {
		return fmt.Errorf("SaveBudget: %w", err)
	}
	return nil
}

// SaveTransaction inserts or replaces a transaction row.
func (s *Store) SaveTransaction(ctx context.Context, t domain.Transaction) error {
	if _, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO transactions
		(transaction_id, user_id, account_id, category_id, tx_type, amount, tx_date, description)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.AccountID, t.CategoryID, string(t.Type),
		t.Amount.String(), formatTime(t.Date), t.Description); err != nil {
		return fmt.Errorf("SaveTransaction: %w", err)
	}
	return nil
}

// SaveGoal inserts or replaces a goal row.
func (s *Store) SaveGoal(ctx context.Context, g domain.Goal) error {
	if _, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO goals
		(goal_id, user_id, name, target_amount, current_amount, target_date)
		VALUES (?, ?, ?, ?, ?, ?)`,
		g.ID, g.UserID, g.Name, g.TargetAmount.String(), g.CurrentAmount.String(),
		nullTime(g.TargetDate)); err != nil {
		return fmt.Errorf("SaveGoal: %w", err)
	}
	return nil
}

// SavePreferences inserts or replaces a preference row.
func (s *Store) SavePreferences(ctx context.Context, p domain.NotificationPreferences) error {
	toInt := func(b bool) int {
		if b {
			return 1
		}
		return 0
	}
	if _, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO notification_preferences
		(user_id, budget_alerts, goal_reminders, transaction_alerts, email_notifications)
		VALUES (?, ?, ?, ?, ?)`,
		p.UserID, toInt(p.BudgetAlerts), toInt(p.GoalReminders),
		toInt(p.TransactionAlerts), toInt(p.EmailNotifications)); err != nil {
		return fmt.Errorf("SavePreferences: %w", err)
	}
	return nil
}
