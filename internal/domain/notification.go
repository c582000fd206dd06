package domain

import "time"

// NotificationType classifies a notification.
type NotificationType string

const (
	NotificationBudgetAlert      NotificationType = "budget_alert"
	NotificationGoalReminder     NotificationType = "goal_reminder"
	NotificationTransactionAlert NotificationType = "transaction_alert"
	NotificationOther            NotificationType = "other"
)

// Notification is a persisted alert for one user. SubjectID and PeriodKey
// carry the dedup identity alongside the owner and type.
type Notification struct {
	ID        string            `json:"id"`
	UserID    string            `json:"user_id"`
	Type      NotificationType  `json:"type"`
	SubjectID string            `json:"subject_id"`
	PeriodKey string            `json:"period_key"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	Payload   map[string]string `json:"payload,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	ReadAt    *time.Time        `json:"read_at,omitempty"`
	ActionRef string            `json:"action_ref,omitempty"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty"`
}

// Unexpired reports whether the notification still counts for dedup.
func (n *Notification) Unexpired(now time.Time) bool {
	return n.ExpiresAt == nil || n.ExpiresAt.After(now)
}

// NotificationKey is the (owner, type, subject, period) tuple that
// guarantees at-most-one notification per logical event.
type NotificationKey struct {
	UserID    string
	Type      NotificationType
	SubjectID string
	PeriodKey string
}

// Key returns the notification's dedup key.
func (n *Notification) Key() NotificationKey {
	return NotificationKey{
		UserID:    n.UserID,
		Type:      n.Type,
		SubjectID: n.SubjectID,
		PeriodKey: n.PeriodKey,
	}
}

// NotificationPreferences are the per-user alerting toggles. Flags are
// independent; a disabled flag suppresses the corresponding rule before
// any intent is produced.
type NotificationPreferences struct {
	UserID             string `json:"user_id"`
	BudgetAlerts       bool   `json:"budget_alerts"`
	GoalReminders      bool   `json:"goal_reminders"`
	TransactionAlerts  bool   `json:"transaction_alerts"`
	EmailNotifications bool   `json:"email_notifications"`
}

// DefaultPreferences is what a user gets before they ever touch the
// settings page: everything on. Repositories return this when no row
// exists rather than handing back freeform data.
func DefaultPreferences(userID string) NotificationPreferences {
	return NotificationPreferences{
		UserID:             userID,
		BudgetAlerts:       true,
		GoalReminders:      true,
		TransactionAlerts:  true,
		EmailNotifications: true,
	}
}
