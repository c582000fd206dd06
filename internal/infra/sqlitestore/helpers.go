package sqlitestore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-alerts/internal/domain"
)

// timeFormat is how all timestamps are stored.
const timeFormat = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parseTime: %w", err)
	}
	return t, nil
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parseAmount: %w", err)
	}
	return d, nil
}

func marshalPayload(payload map[string]string) (string, error) {
	if len(payload) == 0 {
		return "", nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshalPayload: %w", err)
	}
	return string(data), nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanNotification(row scanner) (*domain.Notification, error) {
	var n domain.Notification
	var payload, readAt, actionRef, expiresAt sql.NullString
	var created string

	err := row.Scan(&n.ID, &n.UserID, &n.Type, &n.SubjectID, &n.PeriodKey,
		&n.Title, &n.Message, &payload, &created, &readAt, &actionRef, &expiresAt)
	if err != nil {
		return nil, err
	}

	if n.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if payload.Valid && payload.String != "" {
		if err := json.Unmarshal([]byte(payload.String), &n.Payload); err != nil {
			return nil, fmt.Errorf("scanNotification: payload: %w", err)
		}
	}
	if readAt.Valid && readAt.String != "" {
		t, err := parseTime(readAt.String)
		if err != nil {
			return nil, err
		}
		n.ReadAt = &t
	}
	n.ActionRef = actionRef.String
	if expiresAt.Valid && expiresAt.String != "" {
		t, err := parseTime(expiresAt.String)
		if err != nil {
			return nil, err
		}
		n.ExpiresAt = &t
	}
	return &n, nil
}
