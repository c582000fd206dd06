// Package repository defines the capability interfaces the alerting
// engine consumes from the backing data store, plus the tagged lookup
// result used for notification dedup queries.
package repository

import (
	"context"
	"time"

	"github.com/dvloznov/finance-alerts/internal/domain"
)

// UserSource provides the active user population.
type UserSource interface {
	// ListActiveUsers returns the IDs of all users the alerting job
	// should evaluate.
	ListActiveUsers(ctx context.Context) ([]string, error)
}

// BudgetReader provides read access to budgets.
type BudgetReader interface {
	// GetBudgets returns all budgets owned by the user, category filter
	// included.
	GetBudgets(ctx context.Context, userID string) ([]domain.Budget, error)
}

// TransactionReader provides read access to transactions.
type TransactionReader interface {
	// GetTransactions returns the user's transactions with date in
	// [from, to), optionally restricted to one category.
	GetTransactions(ctx context.Context, userID string, from, to time.Time, categoryID string) ([]domain.Transaction, error)
}

// GoalReader provides read access to goals.
type GoalReader interface {
	// GetGoals returns all goals owned by the user.
	GetGoals(ctx context.Context, userID string) ([]domain.Goal, error)
}

// PreferenceReader provides read access to notification preferences.
type PreferenceReader interface {
	// GetNotificationPreferences returns the user's alerting toggles.
	// Implementations return domain.DefaultPreferences when the user has
	// no stored row.
	GetNotificationPreferences(ctx context.Context, userID string) (domain.NotificationPreferences, error)
}

// NotificationStore provides the notification read/write surface.
type NotificationStore interface {
	// FindNotification looks up the unexpired notification matching the
	// dedup key, as of now.
	FindNotification(ctx context.Context, key domain.NotificationKey, now time.Time) Lookup

	// CreateNotification persists a new notification.
	CreateNotification(ctx context.Context, n *domain.Notification) error

	// ListNotifications returns the user's unexpired notifications,
	// newest first. With unreadOnly set, read notifications are omitted.
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, now time.Time) ([]*domain.Notification, error)

	// UpdateNotification applies the patch to the user's notification.
	// Updating an absent notification is a no-op returning NotFound
	// semantics via (false, nil).
	UpdateNotification(ctx context.Context, userID, notificationID string, patch NotificationPatch) (bool, error)

	// DeleteNotification removes one notification owned by the user.
	// Deleting an absent notification is an idempotent no-op.
	DeleteNotification(ctx context.Context, userID, notificationID string) error

	// DeleteAllNotifications removes every notification owned by the user.
	DeleteAllNotifications(ctx context.Context, userID string) error

	// MarkAllNotificationsRead stamps every unread notification owned by
	// the user with readAt.
	MarkAllNotificationsRead(ctx context.Context, userID string, readAt time.Time) error
}

// NotificationPatch is a partial update to a notification. Nil fields
// are left untouched.
type NotificationPatch struct {
	ReadAt  *time.Time
	Title   *string
	Message *string
}

// Store is the full repository contract the engine runs against.
type Store interface {
	UserSource
	BudgetReader
	TransactionReader
	GoalReader
	PreferenceReader
	NotificationStore

	// Close releases the underlying client or connection.
	Close() error
}
