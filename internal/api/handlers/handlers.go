package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-alerts/internal/api/middleware"
	"github.com/dvloznov/finance-alerts/internal/clock"
	"github.com/dvloznov/finance-alerts/internal/job"
	"github.com/dvloznov/finance-alerts/internal/repository"
)

// JobRunner is the orchestrator surface the trigger endpoint needs.
type JobRunner interface {
	Run(ctx context.Context) (*job.RunReport, error)
}

// AlertJobHandler handles the job-trigger endpoint.
type AlertJobHandler struct {
	runner JobRunner
	secret string
	clk    clock.Clock
	log    zerolog.Logger
}

// NewAlertJobHandler creates the trigger handler. An empty secret
// disables the bearer check.
func NewAlertJobHandler(runner JobRunner, secret string, clk clock.Clock, log zerolog.Logger) *AlertJobHandler {
	return &AlertJobHandler{
		runner: runner,
		secret: secret,
		clk:    clk,
		log:    log,
	}
}

// Trigger handles POST /api/jobs/alerts. It runs the job to completion
// and reports the aggregate outcome; per-user failures are visible only
// in the report, never as an error status.
func (h *AlertJobHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		middleware.WriteError(w, http.StatusUnauthorized, "Invalid or missing trigger secret")
		return
	}

	report, err := h.runner.Run(r.Context())
	if err != nil {
		h.log.Error().Err(err).Msg("Alert run failed")
		middleware.WriteJSON(w, http.StatusInternalServerError, map[string]string{
			"error":     "Alert run failed",
			"timestamp": h.clk.Now().Format(time.RFC3339),
		})
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message":   "Alert run completed",
		"timestamp": h.clk.Now().Format(time.RFC3339),
		"report":    report,
	})
}

// Usage handles GET /api/jobs/alerts. It performs no work.
func (h *AlertJobHandler) Usage(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "POST to this endpoint to run the alerting job. Requires a bearer token when a trigger secret is configured.",
	})
}

func (h *AlertJobHandler) authorized(r *http.Request) bool {
	if h.secret == "" {
		return true
	}
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	return subtle.ConstantTimeCompare([]byte(token), []byte(h.secret)) == 1
}

// NotificationsHandler handles the notification management endpoints
// consumed by the UI.
type NotificationsHandler struct {
	store repository.NotificationStore
	clk   clock.Clock
	log   zerolog.Logger
}

// NewNotificationsHandler creates a new notifications handler.
func NewNotificationsHandler(store repository.NotificationStore, clk clock.Clock, log zerolog.Logger) *NotificationsHandler {
	return &NotificationsHandler{store: store, clk: clk, log: log}
}

// List handles GET /api/notifications
func (h *NotificationsHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserID(ctx)
	unreadOnly := r.URL.Query().Get("unread") == "true"

	notifications, err := h.store.ListNotifications(ctx, userID, unreadOnly, h.clk.Now())
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to list notifications")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list notifications")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": notifications,
		"count":         len(notifications),
	})
}

// Update handles PATCH /api/notifications/{id}. Marking an already-read
// notification read again is a no-op, so repeats are safe.
func (h *NotificationsHandler) Update(w http.ResponseWriter, r *http.Request, notificationID string) {
	ctx := r.Context()
	userID := middleware.UserID(ctx)

	var req struct {
		Read    *bool   `json:"read"`
		Title   *string `json:"title"`
		Message *string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	patch := repository.NotificationPatch{
		Title:   req.Title,
		Message: req.Message,
	}
	if req.Read != nil && *req.Read {
		now := h.clk.Now()
		patch.ReadAt = &now
	}

	found, err := h.store.UpdateNotification(ctx, userID, notificationID, patch)
	if err != nil {
		h.log.Error().Err(err).Str("notification_id", notificationID).Msg("Failed to update notification")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to update notification")
		return
	}
	if !found {
		middleware.WriteError(w, http.StatusNotFound, "Notification not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"notification_id": notificationID,
		"status":          "updated",
	})
}

// Delete handles DELETE /api/notifications/{id}. Deleting an absent
// notification succeeds, so repeats are safe.
func (h *NotificationsHandler) Delete(w http.ResponseWriter, r *http.Request, notificationID string) {
	ctx := r.Context()
	userID := middleware.UserID(ctx)

	if err := h.store.DeleteNotification(ctx, userID, notificationID); err != nil {
		h.log.Error().Err(err).Str("notification_id", notificationID).Msg("Failed to delete notification")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete notification")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteAll handles DELETE /api/notifications
func (h *NotificationsHandler) DeleteAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserID(ctx)

	if err := h.store.DeleteAllNotifications(ctx, userID); err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to delete notifications")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete notifications")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// MarkAllRead handles POST /api/notifications/mark-all-read
func (h *NotificationsHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserID(ctx)

	if err := h.store.MarkAllNotificationsRead(ctx, userID, h.clk.Now()); err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to mark notifications read")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to mark notifications read")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
