// Package bigquery is the production repository implementation backed
// by BigQuery.
package bigquery

import (
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-alerts/internal/domain"
)

// BudgetRow represents a budget record in the budgets table.
type BudgetRow struct {
	BudgetID   string                 `bigquery:"budget_id"`
	UserID     string                 `bigquery:"user_id"`
	CategoryID bigquery.NullString    `bigquery:"category_id"`
	Amount     float64                `bigquery:"amount"`
	Period     string                 `bigquery:"period"`
	StartDate  time.Time              `bigquery:"start_date"`
	EndDate    bigquery.NullTimestamp `bigquery:"end_date"`
}

// ToDomain converts the row to the domain model.
func (r *BudgetRow) ToDomain() domain.Budget {
	b := domain.Budget{
		ID:         r.BudgetID,
		UserID:     r.UserID,
		CategoryID: r.CategoryID.StringVal,
		Amount:     decimal.NewFromFloat(r.Amount),
		Period:     domain.Period(r.Period),
		StartDate:  r.StartDate,
	}
	if r.EndDate.Valid {
		end := r.EndDate.Timestamp
		b.EndDate = &end
	}
	return b
}

// TransactionRow represents a transaction record in the transactions table.
type TransactionRow struct {
	TransactionID string              `bigquery:"transaction_id"`
	UserID        string              `bigquery:"user_id"`
	AccountID     string              `bigquery:"account_id"`
	CategoryID    bigquery.NullString `bigquery:"category_id"`
	TxType        string              `bigquery:"tx_type"`
	Amount        float64             `bigquery:"amount"`
	TxDate        time.Time           `bigquery:"tx_date"`
	Description   bigquery.NullString `bigquery:"description"`
}

// ToDomain converts the row to the domain model.
func (r *TransactionRow) ToDomain() domain.Transaction {
	return domain.Transaction{
		ID:          r.TransactionID,
		UserID:      r.UserID,
		AccountID:   r.AccountID,
		CategoryID:  r.CategoryID.StringVal,
		Type:        domain.TransactionType(r.TxType),
		Amount:      decimal.NewFromFloat(r.Amount),
		Date:        r.TxDate,
		Description: r.Description.StringVal,
	}
}

// GoalRow represents a goal record in the goals table.
type GoalRow struct {
	GoalID        string                 `bigquery:"goal_id"`
	UserID        string                 `bigquery:"user_id"`
	Name          string                 `bigquery:"name"`
	TargetAmount  float64                `bigquery:"target_amount"`
	CurrentAmount float64                `bigquery:"current_amount"`
	TargetDate    bigquery.NullTimestamp `bigquery:"target_date"`
}

// ToDomain converts the row to the domain model.
func (r *GoalRow) ToDomain() domain.Goal {
	g := domain.Goal{
		ID:            r.GoalID,
		UserID:        r.UserID,
		Name:          r.Name,
		TargetAmount:  decimal.NewFromFloat(r.TargetAmount),
		CurrentAmount: decimal.NewFromFloat(r.CurrentAmount),
	}
	if r.TargetDate.Valid {
		t := r.TargetDate.Timestamp
		g.TargetDate = &t
	}
	return g
}

// PreferenceRow represents a notification_preferences record.
type PreferenceRow struct {
	UserID             string `bigquery:"user_id"`
	BudgetAlerts       bool   `bigquery:"budget_alerts"`
	GoalReminders      bool   `bigquery:"goal_reminders"`
	TransactionAlerts  bool   `bigquery:"transaction_alerts"`
	EmailNotifications bool   `bigquery:"email_notifications"`
}

// ToDomain converts the row to the domain model.
func (r *PreferenceRow) ToDomain() domain.NotificationPreferences {
	return domain.NotificationPreferences{
		UserID:             r.UserID,
		BudgetAlerts:       r.BudgetAlerts,
		GoalReminders:      r.GoalReminders,
		TransactionAlerts:  r.TransactionAlerts,
		EmailNotifications: r.EmailNotifications,
	}
}

// NotificationRow represents a notification record. The payload is a
// JSON-encoded string column.
type NotificationRow struct {
	NotificationID string                 `bigquery:"notification_id"`
	UserID         string                 `bigquery:"user_id"`
	Type           string                 `bigquery:"notification_type"`
	SubjectID      string                 `bigquery:"subject_id"`
	PeriodKey      string                 `bigquery:"period_key"`
	Title          string                 `bigquery:"title"`
	Message        string                 `bigquery:"message"`
	Payload        bigquery.NullString    `bigquery:"payload"`
	CreatedAt      time.Time              `bigquery:"created_ts"`
	ReadAt         bigquery.NullTimestamp `bigquery:"read_ts"`
	ActionRef      bigquery.NullString    `bigquery:"action_ref"`
	ExpiresAt      bigquery.NullTimestamp `bigquery:"expires_ts"`
}

// ToDomain converts the row to the domain model.
func (r *NotificationRow) ToDomain() (*domain.Notification, error) {
	n := &domain.Notification{
		ID:        r.NotificationID,
		UserID:    r.UserID,
		Type:      domain.NotificationType(r.Type),
		SubjectID: r.SubjectID,
		PeriodKey: r.PeriodKey,
		Title:     r.Title,
		Message:   r.Message,
		CreatedAt: r.CreatedAt,
		ActionRef: r.ActionRef.StringVal,
	}
	if r.Payload.Valid && r.Payload.StringVal != "" {
		if err := json.Unmarshal([]byte(r.Payload.StringVal), &n.Payload); err != nil {
			return nil, fmt.Errorf("ToDomain: payload: %w", err)
		}
	}
	if r.ReadAt.Valid {
		t := r.ReadAt.Timestamp
		n.ReadAt = &t
	}
	if r.ExpiresAt.Valid {
		t := r.ExpiresAt.Timestamp
		n.ExpiresAt = &t
	}
	return n, nil
}

// notificationRowFromDomain maps a domain notification to its row.
func notificationRowFromDomain(n *domain.Notification) (*NotificationRow, error) {
	row := &NotificationRow{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Type:           string(n.Type),
		SubjectID:      n.SubjectID,
		PeriodKey:      n.PeriodKey,
		Title:          n.Title,
		Message:        n.Message,
		CreatedAt:      n.CreatedAt,
	}
	if len(n.Payload) > 0 {
		data, err := json.Marshal(n.Payload)
		if err != nil {
			return nil, fmt.Errorf("notificationRowFromDomain: payload: %w", err)
		}
		row.Payload = bigquery.NullString{StringVal: string(data), Valid: true}
	}
	if n.ReadAt != nil {
		row.ReadAt = bigquery.NullTimestamp{Timestamp: *n.ReadAt, Valid: true}
	}
	if n.ActionRef != "" {
		row.ActionRef = bigquery.NullString{StringVal: n.ActionRef, Valid: true}
	}
	if n.ExpiresAt != nil {
		row.ExpiresAt = bigquery.NullTimestamp{Timestamp: *n.ExpiresAt, Valid: true}
	}
	return row, nil
}
