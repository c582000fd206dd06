package job

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-alerts/internal/clock"
	"github.com/dvloznov/finance-alerts/internal/config"
	"github.com/dvloznov/finance-alerts/internal/domain"
	"github.com/dvloznov/finance-alerts/internal/repository"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// fakeStore is an in-memory repository.Store with injectable failures.
// Workers hit it concurrently, so every method locks.
type fakeStore struct {
	mu sync.Mutex

	users        []string
	listUsersErr error

	budgets    map[string][]domain.Budget
	goals      map[string][]domain.Goal
	txs        map[string][]domain.Transaction
	prefsErr   map[string]error
	panicUsers map[string]bool

	notifications map[domain.NotificationKey]*domain.Notification
}

func newFakeStore(users ...string) *fakeStore {
	return &fakeStore{
		users:         users,
		budgets:       make(map[string][]domain.Budget),
		goals:         make(map[string][]domain.Goal),
		txs:           make(map[string][]domain.Transaction),
		prefsErr:      make(map[string]error),
		panicUsers:    make(map[string]bool),
		notifications: make(map[domain.NotificationKey]*domain.Notification),
	}
}

func (s *fakeStore) ListActiveUsers(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listUsersErr != nil {
		return nil, s.listUsersErr
	}
	return append([]string(nil), s.users...), nil
}

func (s *fakeStore) GetBudgets(ctx context.Context, userID string) ([]domain.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.panicUsers[userID] {
		panic("budget fetch exploded")
	}
	return s.budgets[userID], nil
}

func (s *fakeStore) GetTransactions(ctx context.Context, userID string, from, to time.Time, categoryID string) ([]domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Transaction
	for _, t := range s.txs[userID] {
		if t.Date.Before(from) || !t.Date.Before(to) {
			continue
		}
		if categoryID != "" && t.CategoryID != categoryID {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *fakeStore) GetGoals(ctx context.Context, userID string) ([]domain.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.goals[userID], nil
}

func (s *fakeStore) GetNotificationPreferences(ctx context.Context, userID string) (domain.NotificationPreferences, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.prefsErr[userID]; err != nil {
		return domain.NotificationPreferences{}, err
	}
	return domain.DefaultPreferences(userID), nil
}

func (s *fakeStore) FindNotification(ctx context.Context, key domain.NotificationKey, now time.Time) repository.Lookup {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notifications[key]
	if !ok || !n.Unexpired(now) {
		return repository.NotFound()
	}
	return repository.Found(n)
}

func (s *fakeStore) CreateNotification(ctx context.Context, n *domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications[n.Key()] = n
	return nil
}

func (s *fakeStore) ListNotifications(ctx context.Context, userID string, unreadOnly bool, now time.Time) ([]*domain.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Notification
	for _, n := range s.notifications {
		if n.UserID == userID && n.Unexpired(now) && (!unreadOnly || n.ReadAt == nil) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *fakeStore) UpdateNotification(ctx context.Context, userID, id string, patch repository.NotificationPatch) (bool, error) {
	return false, nil
}

func (s *fakeStore) DeleteNotification(ctx context.Context, userID, id string) error {
	return nil
}

func (s *fakeStore) DeleteAllNotifications(ctx context.Context, userID string) error {
	return nil
}

func (s *fakeStore) MarkAllNotificationsRead(ctx context.Context, userID string, readAt time.Time) error {
	return nil
}

func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) count(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, notif := range s.notifications {
		if notif.UserID == userID {
			n++
		}
	}
	return n
}

func testOrchestrator(store *fakeStore, now time.Time) *Orchestrator {
	return New(store, config.Default().Engine, clock.At(now), zerolog.Nop())
}

func firingBudget(userID string) (domain.Budget, domain.Transaction) {
	b := domain.Budget{
		ID:        "b-" + userID,
		UserID:    userID,
		Amount:    decimal.NewFromInt(100),
		Period:    domain.PeriodMonthly,
		StartDate: date(2026, 6, 1),
	}
	tx := domain.Transaction{
		ID:     "tx-" + userID,
		UserID: userID,
		Type:   domain.TransactionExpense,
		Amount: decimal.NewFromInt(85),
		Date:   date(2026, 6, 5),
	}
	return b, tx
}

func TestRunIsolatesUserFailures(t *testing.T) {
	store := newFakeStore("u1", "u2", "u3")
	store.prefsErr["u2"] = errors.New("connection reset")

	b, tx := firingBudget("u1")
	store.budgets["u1"] = []domain.Budget{b}
	store.txs["u1"] = []domain.Transaction{tx}

	o := testOrchestrator(store, date(2026, 6, 16))
	report, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if report.TotalUsers != 3 {
		t.Errorf("TotalUsers = %d, want 3", report.TotalUsers)
	}
	if report.Succeeded != 2 || report.Failed != 1 {
		t.Errorf("Succeeded/Failed = %d/%d, want 2/1", report.Succeeded, report.Failed)
	}
	if report.Unprocessed != 0 {
		t.Errorf("Unprocessed = %d, want 0", report.Unprocessed)
	}
	if len(report.Failures) != 1 || report.Failures[0].UserID != "u2" {
		t.Errorf("Failures = %+v, want one failure for u2", report.Failures)
	}
	if report.NotificationsCreated != 1 {
		t.Errorf("NotificationsCreated = %d, want 1 (u1's budget at 85%%)", report.NotificationsCreated)
	}
	if store.count("u1") != 1 {
		t.Errorf("u1 holds %d notifications, want 1", store.count("u1"))
	}
	if report.RunID == "" {
		t.Error("report has no run id")
	}
}

func TestRunIsIdempotentAcrossInvocations(t *testing.T) {
	store := newFakeStore("u1")
	b, tx := firingBudget("u1")
	store.budgets["u1"] = []domain.Budget{b}
	store.txs["u1"] = []domain.Transaction{tx}

	o := testOrchestrator(store, date(2026, 6, 16))
	if _, err := o.Run(context.Background()); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}

	second, err := testOrchestrator(store, date(2026, 6, 17)).Run(context.Background())
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	if second.NotificationsCreated != 0 {
		t.Errorf("second run created %d notifications, want 0", second.NotificationsCreated)
	}
	if store.count("u1") != 1 {
		t.Errorf("u1 holds %d notifications after rerun, want 1", store.count("u1"))
	}
}

func TestRunEscalatesToNextThreshold(t *testing.T) {
	store := newFakeStore("u1")
	b, tx := firingBudget("u1")
	store.budgets["u1"] = []domain.Budget{b}
	store.txs["u1"] = []domain.Transaction{tx}

	if _, err := testOrchestrator(store, date(2026, 6, 16)).Run(context.Background()); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}

	// More spend pushes the budget past 100%; only the 100% alert is new.
	store.mu.Lock()
	store.txs["u1"] = append(store.txs["u1"], domain.Transaction{
		ID: "tx2", UserID: "u1", Type: domain.TransactionExpense,
		Amount: decimal.NewFromInt(20), Date: date(2026, 6, 17),
	})
	store.mu.Unlock()

	report, err := testOrchestrator(store, date(2026, 6, 18)).Run(context.Background())
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if report.NotificationsCreated != 1 {
		t.Errorf("escalation created %d notifications, want 1", report.NotificationsCreated)
	}
	if store.count("u1") != 2 {
		t.Errorf("u1 holds %d notifications, want 2 (80%% and 100%%)", store.count("u1"))
	}
}

func TestRunGoalReminderOncePerDay(t *testing.T) {
	store := newFakeStore("u1")
	target := date(2026, 6, 18)
	store.goals["u1"] = []domain.Goal{{
		ID:            "g1",
		UserID:        "u1",
		Name:          "Holiday",
		TargetAmount:  decimal.NewFromInt(1000),
		CurrentAmount: decimal.NewFromInt(400),
		TargetDate:    &target,
	}}

	// Late-evening run fires the reminder.
	evening := time.Date(2026, 6, 15, 23, 0, 0, 0, time.UTC)
	first, err := testOrchestrator(store, evening).Run(context.Background())
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if first.NotificationsCreated != 1 {
		t.Fatalf("first run created %d notifications, want 1", first.NotificationsCreated)
	}

	// A rerun shortly after midnight lands on a new period key but is
	// still inside the 24h window, so nothing fires.
	midnight := time.Date(2026, 6, 16, 0, 30, 0, 0, time.UTC)
	second, err := testOrchestrator(store, midnight).Run(context.Background())
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if second.NotificationsCreated != 0 {
		t.Errorf("post-midnight rerun created %d notifications, want 0", second.NotificationsCreated)
	}
}

func TestRunRecoversFromPanic(t *testing.T) {
	store := newFakeStore("u1", "u2")
	store.panicUsers["u1"] = true

	report, err := testOrchestrator(store, date(2026, 6, 16)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if report.Failed != 1 || report.Succeeded != 1 {
		t.Fatalf("Failed/Succeeded = %d/%d, want 1/1", report.Failed, report.Succeeded)
	}
	if !strings.Contains(report.Failures[0].Error, "panic") {
		t.Errorf("failure = %q, want the panic surfaced", report.Failures[0].Error)
	}
}

func TestRunFatalWhenUserListUnavailable(t *testing.T) {
	store := newFakeStore("u1")
	store.listUsersErr = errors.New("dataset missing")

	report, err := testOrchestrator(store, date(2026, 6, 16)).Run(context.Background())
	if err == nil {
		t.Fatal("Run() error = nil, want fatal error")
	}
	if report != nil {
		t.Errorf("report = %+v, want nil on fatal error", report)
	}
}

func TestReadRetry(t *testing.T) {
	t.Run("retries once on failure", func(t *testing.T) {
		calls := 0
		err := readRetry(context.Background(), func() error {
			calls++
			if calls == 1 {
				return errors.New("transient")
			}
			return nil
		})
		if err != nil {
			t.Errorf("readRetry() error = %v, want nil after retry", err)
		}
		if calls != 2 {
			t.Errorf("op called %d times, want 2", calls)
		}
	})

	t.Run("gives up after the retry", func(t *testing.T) {
		calls := 0
		err := readRetry(context.Background(), func() error {
			calls++
			return errors.New("persistent")
		})
		if err == nil {
			t.Error("readRetry() error = nil, want error")
		}
		if calls != 2 {
			t.Errorf("op called %d times, want 2", calls)
		}
	})

	t.Run("no retry after cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		calls := 0
		err := readRetry(ctx, func() error {
			calls++
			return errors.New("transient")
		})
		if err == nil {
			t.Error("readRetry() error = nil, want error")
		}
		if calls != 1 {
			t.Errorf("op called %d times, want 1", calls)
		}
	})
}
