// Package sqlitestore is the SQLite-backed repository implementation
// used for local development and tests.
package sqlitestore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dvloznov/finance-alerts/internal/domain"
	"github.com/dvloznov/finance-alerts/internal/repository"

	_ "modernc.org/sqlite" // register sqlite driver
)

// Store implements repository.Store on a local SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at the given path.
func Open(dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("Open: creating db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=synchronous(normal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("Open: opening db: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("Open: creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// ListActiveUsers implements repository.UserSource.
func (s *Store) ListActiveUsers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT user_id FROM users WHERE active = 1 ORDER BY user_id")
	if err != nil {
		return nil, fmt.Errorf("ListActiveUsers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ListActiveUsers: scan: %w", err)
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

// GetBudgets implements repository.BudgetReader.
func (s *Store) GetBudgets(ctx context.Context, userID string) ([]domain.Budget, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT budget_id, user_id, category_id, amount, period, start_date, end_date
		FROM budgets WHERE user_id = ? ORDER BY budget_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("GetBudgets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var budgets []domain.Budget
	for rows.Next() {
		var b domain.Budget
		var category, amount, start sql.NullString
		var end sql.NullString
		if err := rows.Scan(&b.ID, &b.UserID, &category, &amount, &b.Period, &start, &end); err != nil {
			return nil, fmt.Errorf("GetBudgets: scan: %w", err)
		}
		b.CategoryID = category.String
		if b.Amount, err = parseAmount(amount.String); err != nil {
			return nil, fmt.Errorf("GetBudgets: budget %s: %w", b.ID, err)
		}
		if b.StartDate, err = parseTime(start.String); err != nil {
			return nil, fmt.Errorf("GetBudgets: budget %s: %w", b.ID, err)
		}
		if end.Valid && end.String != "" {
			t, err := parseTime(end.String)
			if err != nil {
				return nil, fmt.Errorf("GetBudgets: budget %s: %w", b.ID, err)
			}
			b.EndDate = &t
		}
		budgets = append(budgets, b)
	}
	return budgets, rows.Err()
}

// GetTransactions implements repository.TransactionReader. The range is
// half-open: [from, to).
func (s *Store) GetTransactions(ctx context.Context, userID string, from, to time.Time, categoryID string) ([]domain.Transaction, error) {
	query := `SELECT transaction_id, user_id, account_id, category_id, tx_type, amount, tx_date, description
		FROM transactions WHERE user_id = ? AND tx_date >= ? AND tx_date < ?`
	args := []interface{}{userID, formatTime(from), formatTime(to)}
	if categoryID != "" {
		query += " AND category_id = ?"
		args = append(args, categoryID)
	}
	query += " ORDER BY tx_date, transaction_id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("GetTransactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var txs []domain.Transaction
	for rows.Next() {
		var t domain.Transaction
		var category, description sql.NullString
		var amount, date string
		if err := rows.Scan(&t.ID, &t.UserID, &t.AccountID, &category, &t.Type, &amount, &date, &description); err != nil {
			return nil, fmt.Errorf("GetTransactions: scan: %w", err)
		}
		t.CategoryID = category.String
		t.Description = description.String
		if t.Amount, err = parseAmount(amount); err != nil {
			return nil, fmt.Errorf("GetTransactions: transaction %s: %w", t.ID, err)
		}
		if t.Date, err = parseTime(date); err != nil {
			return nil, fmt.Errorf("GetTransactions: transaction %s: %w", t.ID, err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

// GetGoals implements repository.GoalReader.
func (s *Store) GetGoals(ctx context.Context, userID string) ([]domain.Goal, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT goal_id, user_id, name, target_amount, current_amount, target_date
		FROM goals WHERE user_id = ? ORDER BY goal_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("GetGoals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var goals []domain.Goal
	for rows.Next() {
		var g domain.Goal
		var target, current string
		var targetDate sql.NullString
		if err := rows.Scan(&g.ID, &g.UserID, &g.Name, &target, &current, &targetDate); err != nil {
			return nil, fmt.Errorf("GetGoals: scan: %w", err)
		}
		if g.TargetAmount, err = parseAmount(target); err != nil {
			return nil, fmt.Errorf("GetGoals: goal %s: %w", g.ID, err)
		}
		if g.CurrentAmount, err = parseAmount(current); err != nil {
			return nil, fmt.Errorf("GetGoals: goal %s: %w", g.ID, err)
		}
		if targetDate.Valid && targetDate.String != "" {
			t, err := parseTime(targetDate.String)
			if err != nil {
				return nil, fmt.Errorf("GetGoals: goal %s: %w", g.ID, err)
			}
			g.TargetDate = &t
		}
		goals = append(goals, g)
	}
	return goals, rows.Err()
}

// GetNotificationPreferences implements repository.PreferenceReader.
// Users without a stored row get the defaults.
func (s *Store) GetNotificationPreferences(ctx context.Context, userID string) (domain.NotificationPreferences, error) {
	row := s.db.QueryRowContext(ctx, `SELECT budget_alerts, goal_reminders, transaction_alerts, email_notifications
		FROM notification_preferences WHERE user_id = ?`, userID)

	var budget, goal, tx, email int
	err := row.Scan(&budget, &goal, &tx, &email)
	if err == sql.ErrNoRows {
		return domain.DefaultPreferences(userID), nil
	}
	if err != nil {
		return domain.NotificationPreferences{}, fmt.Errorf("GetNotificationPreferences: %w", err)
	}

	return domain.NotificationPreferences{
		UserID:             userID,
		BudgetAlerts:       budget == 1,
		GoalReminders:      goal == 1,
		TransactionAlerts:  tx == 1,
		EmailNotifications: email == 1,
	}, nil
}

// FindNotification implements repository.NotificationStore.
func (s *Store) FindNotification(ctx context.Context, key domain.NotificationKey, now time.Time) repository.Lookup {
	row := s.db.QueryRowContext(ctx, `SELECT notification_id, user_id, notification_type, subject_id, period_key,
			title, message, payload, created_at, read_at, action_ref, expires_at
		FROM notifications
		WHERE user_id = ? AND notification_type = ? AND subject_id = ? AND period_key = ?
		  AND (expires_at IS NULL OR expires_at > ?)
		ORDER BY created_at DESC LIMIT 1`,
		key.UserID, string(key.Type), key.SubjectID, key.PeriodKey, formatTime(now))

	n, err := scanNotification(row)
	if err == sql.ErrNoRows {
		return repository.NotFound()
	}
	if err != nil {
		return repository.StoreFailure(fmt.Errorf("FindNotification: %w", err))
	}
	return repository.Found(n)
}

// CreateNotification implements repository.NotificationStore.
func (s *Store) CreateNotification(ctx context.Context, n *domain.Notification) error {
	payload, err := marshalPayload(n.Payload)
	if err != nil {
		return fmt.Errorf("CreateNotification: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO notifications
		(notification_id, user_id, notification_type, subject_id, period_key,
		 title, message, payload, created_at, read_at, action_ref, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.UserID, string(n.Type), n.SubjectID, n.PeriodKey,
		n.Title, n.Message, payload, formatTime(n.CreatedAt),
		nullTime(n.ReadAt), n.ActionRef, nullTime(n.ExpiresAt))
	if err != nil {
		return fmt.Errorf("CreateNotification: %w", err)
	}
	return nil
}

// ListNotifications implements repository.NotificationStore.
func (s *Store) ListNotifications(ctx context.Context, userID string, unreadOnly bool, now time.Time) ([]*domain.Notification, error) {
	query := `SELECT notification_id, user_id, notification_type, subject_id, period_key,
			title, message, payload, created_at, read_at, action_ref, expires_at
		FROM notifications
		WHERE user_id = ? AND (expires_at IS NULL OR expires_at > ?)`
	args := []interface{}{userID, formatTime(now)}
	if unreadOnly {
		query += " AND read_at IS NULL"
	}
	query += " ORDER BY created_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ListNotifications: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var notifications []*domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("ListNotifications: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// UpdateNotification implements repository.NotificationStore.
func (s *Store) UpdateNotification(ctx context.Context, userID, notificationID string, patch repository.NotificationPatch) (bool, error) {
	query := "UPDATE notifications SET notification_id = notification_id"
	var args []interface{}
	if patch.ReadAt != nil {
		query += ", read_at = ?"
		args = append(args, formatTime(*patch.ReadAt))
	}
	if patch.Title != nil {
		query += ", title = ?"
		args = append(args, *patch.Title)
	}
	if patch.Message != nil {
		query += ", message = ?"
		args = append(args, *patch.Message)
	}
	query += " WHERE user_id = ? AND notification_id = ?"
	args = append(args, userID, notificationID)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("UpdateNotification: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("UpdateNotification: rows affected: %w", err)
	}
	return affected > 0, nil
}

// DeleteNotification implements repository.NotificationStore.
func (s *Store) DeleteNotification(ctx context.Context, userID, notificationID string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM notifications WHERE user_id = ? AND notification_id = ?",
		userID, notificationID); err != nil {
		return fmt.Errorf("DeleteNotification: %w", err)
	}
	return nil
}

// DeleteAllNotifications implements repository.NotificationStore.
func (s *Store) DeleteAllNotifications(ctx context.Context, userID string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM notifications WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("DeleteAllNotifications: %w", err)
	}
	return nil
}

// MarkAllNotificationsRead implements repository.NotificationStore.
func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string, readAt time.Time) error {
	if _, err := s.db.ExecContext(ctx,
		"UPDATE notifications SET read_at = ? WHERE user_id = ? AND read_at IS NULL",
		formatTime(readAt), userID); err != nil {
		return fmt.Errorf("MarkAllNotificationsRead: %w", err)
	}
	return nil
}

var _ repository.Store = (*Store)(nil)
