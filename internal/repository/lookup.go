package repository

import "github.com/dvloznov/finance-alerts/internal/domain"

// LookupState tags the outcome of a notification dedup query.
type LookupState int

const (
	// LookupFound means an unexpired notification exists for the key.
	LookupFound LookupState = iota
	// LookupNotFound means no unexpired notification exists for the key.
	LookupNotFound
	// LookupStoreError means the query itself failed; the caller cannot
	// tell whether the notification exists.
	LookupStoreError
)

// Lookup is the tagged result of FindNotification. It replaces
// error-code sniffing: callers switch on State instead of inspecting
// error strings.
type Lookup struct {
	State        LookupState
	Notification *domain.Notification
	Err          error
}

// Found builds a Lookup for an existing notification.
func Found(n *domain.Notification) Lookup {
	return Lookup{State: LookupFound, Notification: n}
}

// NotFound builds a Lookup for a missing notification.
func NotFound() Lookup {
	return Lookup{State: LookupNotFound}
}

// StoreFailure builds a Lookup for a failed query.
func StoreFailure(err error) Lookup {
	return Lookup{State: LookupStoreError, Err: err}
}
