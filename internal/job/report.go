// Package job runs the recurring alerting job: it walks the active user
// population, evaluates every user inside an isolation boundary and
// aggregates a run report.
package job

import "time"

// UserFailure records one user whose evaluation failed.
type UserFailure struct {
	UserID string `json:"user_id"`
	Error  string `json:"error"`
}

// RunReport is the aggregate result of one job invocation. It is the
// only run state that exists; everything needed to resume safely lives
// in the notification dedup keys.
type RunReport struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	TotalUsers  int `json:"total_users"`
	Succeeded   int `json:"succeeded"`
	Failed      int `json:"failed"`
	Unprocessed int `json:"unprocessed"`

	NotificationsCreated int `json:"notifications_created"`
	NotificationsSkipped int `json:"notifications_skipped"`

	Failures []UserFailure `json:"failures,omitempty"`
}
