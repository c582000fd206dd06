package bigquery

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/finance-alerts/internal/domain"
	"github.com/dvloznov/finance-alerts/internal/repository"
)

// FindNotification looks up an unexpired notification by its dedup key.
func (r *Repository) FindNotification(ctx context.Context, key domain.NotificationKey, now time.Time) repository.Lookup {
	q := r.client.Query(fmt.Sprintf(`
		SELECT notification_id, user_id, notification_type, subject_id, period_key,
		       title, message, payload, created_ts, read_ts, action_ref, expires_ts
		FROM %s
		WHERE user_id = @user_id
		  AND notification_type = @notification_type
		  AND subject_id = @subject_id
		  AND period_key = @period_key
		  AND (expires_ts IS NULL OR expires_ts > @now)
		ORDER BY created_ts DESC
		LIMIT 1
	`, r.table("notifications")))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: key.UserID},
		{Name: "notification_type", Value: string(key.Type)},
		{Name: "subject_id", Value: key.SubjectID},
		{Name: "period_key", Value: key.PeriodKey},
		{Name: "now", Value: now},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return repository.StoreFailure(fmt.Errorf("FindNotification: query read: %w", err))
	}

	var row NotificationRow
	err = it.Next(&row)
	if err == iterator.Done {
		return repository.NotFound()
	}
	if err != nil {
		return repository.StoreFailure(fmt.Errorf("FindNotification: iter next: %w", err))
	}

	n, err := row.ToDomain()
	if err != nil {
		return repository.StoreFailure(fmt.Errorf("FindNotification: %w", err))
	}
	return repository.Found(n)
}

// CreateNotification inserts a notification via the streaming inserter.
func (r *Repository) CreateNotification(ctx context.Context, n *domain.Notification) error {
	row, err := notificationRowFromDomain(n)
	if err != nil {
		return fmt.Errorf("CreateNotification: %w", err)
	}

	inserter := r.client.Dataset(r.dataset).Table("notifications").Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("CreateNotification: inserting row: %w", err)
	}
	return nil
}

// ListNotifications returns a user's unexpired notifications, newest
// first. With unreadOnly set, read notifications are filtered out.
func (r *Repository) ListNotifications(ctx context.Context, userID string, unreadOnly bool, now time.Time) ([]*domain.Notification, error) {
	query := fmt.Sprintf(`
		SELECT notification_id, user_id, notification_type, subject_id, period_key,
		       title, message, payload, created_ts, read_ts, action_ref, expires_ts
		FROM %s
		WHERE user_id = @user_id
		  AND (expires_ts IS NULL OR expires_ts > @now)
	`, r.table("notifications"))
	if unreadOnly {
		query += " AND read_ts IS NULL"
	}
	query += " ORDER BY created_ts DESC"

	q := r.client.Query(query)
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "now", Value: now},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListNotifications: query read: %w", err)
	}

	var notifications []*domain.Notification
	for {
		var row NotificationRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListNotifications: iter next: %w", err)
		}
		n, err := row.ToDomain()
		if err != nil {
			return nil, fmt.Errorf("ListNotifications: %w", err)
		}
		notifications = append(notifications, n)
	}
	return notifications, nil
}

// UpdateNotification applies the patch to a single notification. It
// reports whether the notification existed.
func (r *Repository) UpdateNotification(ctx context.Context, userID, id string, patch repository.NotificationPatch) (bool, error) {
	query := fmt.Sprintf("UPDATE %s SET notification_id = notification_id", r.table("notifications"))
	params := []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "notification_id", Value: id},
	}
	if patch.ReadAt != nil {
		query += ", read_ts = @read_ts"
		params = append(params, bigquery.QueryParameter{Name: "read_ts", Value: *patch.ReadAt})
	}
	if patch.Title != nil {
		query += ", title = @title"
		params = append(params, bigquery.QueryParameter{Name: "title", Value: *patch.Title})
	}
	if patch.Message != nil {
		query += ", message = @message"
		params = append(params, bigquery.QueryParameter{Name: "message", Value: *patch.Message})
	}
	query += " WHERE user_id = @user_id AND notification_id = @notification_id"

	q := r.client.Query(query)
	q.Parameters = params

	job, err := q.Run(ctx)
	if err != nil {
		return false, fmt.Errorf("UpdateNotification: running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return false, fmt.Errorf("UpdateNotification: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return false, fmt.Errorf("UpdateNotification: job failed: %w", err)
	}

	stats, ok := status.Statistics.Details.(*bigquery.QueryStatistics)
	if !ok {
		return false, fmt.Errorf("UpdateNotification: unexpected job statistics")
	}
	return stats.NumDMLAffectedRows > 0, nil
}

// DeleteNotification removes a single notification. Deleting a missing
// notification is not an error.
func (r *Repository) DeleteNotification(ctx context.Context, userID, id string) error {
	q := r.client.Query(fmt.Sprintf(`
		DELETE FROM %s
		WHERE user_id = @user_id AND notification_id = @notification_id
	`, r.table("notifications")))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "notification_id", Value: id},
	}
	if err := r.runDML(ctx, q); err != nil {
		return fmt.Errorf("DeleteNotification: %w", err)
	}
	return nil
}

// DeleteAllNotifications removes every notification for the user.
func (r *Repository) DeleteAllNotifications(ctx context.Context, userID string) error {
	q := r.client.Query(fmt.Sprintf(`
		DELETE FROM %s WHERE user_id = @user_id
	`, r.table("notifications")))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}
	if err := r.runDML(ctx, q); err != nil {
		return fmt.Errorf("DeleteAllNotifications: %w", err)
	}
	return nil
}

// MarkAllNotificationsRead sets the read timestamp on the user's unread
// notifications.
func (r *Repository) MarkAllNotificationsRead(ctx context.Context, userID string, readAt time.Time) error {
	q := r.client.Query(fmt.Sprintf(`
		UPDATE %s SET read_ts = @read_ts
		WHERE user_id = @user_id AND read_ts IS NULL
	`, r.table("notifications")))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "read_ts", Value: readAt},
	}
	if err := r.runDML(ctx, q); err != nil {
		return fmt.Errorf("MarkAllNotificationsRead: %w", err)
	}
	return nil
}

func (r *Repository) runDML(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job failed: %w", err)
	}
	return nil
}
