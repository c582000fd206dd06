// Package alerts holds the alerting rule set and the dispatcher that
// turns rule output into persisted notifications.
package alerts

import (
	"time"

	"github.com/dvloznov/finance-alerts/internal/domain"
)

// AlertIntent is a rule's proposal to notify, before idempotency gating
// by the dispatcher. SubjectID and PeriodKey become part of the dedup key.
type AlertIntent struct {
	Type      domain.NotificationType
	SubjectID string
	PeriodKey string
	Title     string
	Message   string
	Payload   map[string]string

	// ExpiresAt bounds how long the resulting notification counts for
	// dedup; nil means it never expires.
	ExpiresAt *time.Time
}

// Key returns the dedup key the dispatcher will enforce for this intent.
func (i AlertIntent) Key(userID string) domain.NotificationKey {
	return domain.NotificationKey{
		UserID:    userID,
		Type:      i.Type,
		SubjectID: i.SubjectID,
		PeriodKey: i.PeriodKey,
	}
}
