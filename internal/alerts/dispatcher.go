package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-alerts/internal/domain"
	"github.com/dvloznov/finance-alerts/internal/repository"
)

// Dispatcher turns intents into persisted notifications, enforcing the
// at-most-once-per-(owner, type, subject, period) invariant via a lookup
// before every write.
type Dispatcher struct {
	store repository.NotificationStore
	log   zerolog.Logger
}

// NewDispatcher creates a dispatcher over the given notification store.
func NewDispatcher(store repository.NotificationStore, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{store: store, log: log}
}

// DispatchFailure records one intent that could not be dispatched.
type DispatchFailure struct {
	Intent AlertIntent
	Err    error
}

// DispatchOutcome summarizes one dispatch call.
type DispatchOutcome struct {
	Created  int
	Skipped  int
	Failures []DispatchFailure
}

// Failed reports whether any intent failed.
func (o DispatchOutcome) Failed() bool {
	return len(o.Failures) > 0
}

// Dispatch processes every intent for the user. A store failure on one
// intent is recorded and does not stop the remaining intents; writes are
// never retried since a notification insert is not idempotent on its own.
func (d *Dispatcher) Dispatch(ctx context.Context, userID string, intents []AlertIntent, now time.Time) DispatchOutcome {
	var outcome DispatchOutcome

	for _, intent := range intents {
		key := intent.Key(userID)

		lookup := d.store.FindNotification(ctx, key, now)
		switch lookup.State {
		case repository.LookupFound:
			outcome.Skipped++
			d.log.Debug().
				Str("user_id", userID).
				Str("type", string(intent.Type)).
				Str("subject_id", intent.SubjectID).
				Str("period_key", intent.PeriodKey).
				Msg("Notification already exists, skipping")
			continue
		case repository.LookupStoreError:
			outcome.Failures = append(outcome.Failures, DispatchFailure{
				Intent: intent,
				Err:    fmt.Errorf("Dispatch: dedup lookup: %w", lookup.Err),
			})
			continue
		}

		n := &domain.Notification{
			ID:        uuid.NewString(),
			UserID:    userID,
			Type:      intent.Type,
			SubjectID: intent.SubjectID,
			PeriodKey: intent.PeriodKey,
			Title:     intent.Title,
			Message:   intent.Message,
			Payload:   intent.Payload,
			CreatedAt: now,
			ExpiresAt: intent.ExpiresAt,
		}

		if err := d.store.CreateNotification(ctx, n); err != nil {
			outcome.Failures = append(outcome.Failures, DispatchFailure{
				Intent: intent,
				Err:    fmt.Errorf("Dispatch: create notification: %w", err),
			})
			continue
		}
		outcome.Created++
	}

	return outcome
}
