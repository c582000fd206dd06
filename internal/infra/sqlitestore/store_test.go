package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/finance-alerts/internal/domain"
	"github.com/dvloznov/finance-alerts/internal/repository"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "alerts.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestListActiveUsers(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, u := range []struct {
		id     string
		active bool
	}{{"u1", true}, {"u2", false}, {"u3", true}} {
		if err := s.SaveUser(ctx, u.id, u.active); err != nil {
			t.Fatal(err)
		}
	}

	users, err := s.ListActiveUsers(ctx)
	if err != nil {
		t.Fatalf("ListActiveUsers() error = %v", err)
	}
	if len(users) != 2 || users[0] != "u1" || users[1] != "u3" {
		t.Errorf("ListActiveUsers() = %v, want [u1 u3]", users)
	}
}

func TestBudgetRoundtrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	end := date(2026, 12, 31)
	in := domain.Budget{
		ID:         "b1",
		UserID:     "u1",
		CategoryID: "groceries",
		Amount:     decimal.RequireFromString("512.34"),
		Period:     domain.PeriodMonthly,
		StartDate:  date(2026, 1, 15),
		EndDate:    &end,
	}
	if err := s.SaveBudget(ctx, in); err != nil {
		t.Fatal(err)
	}

	budgets, err := s.GetBudgets(ctx, "u1")
	if err != nil {
		t.Fatalf("GetBudgets() error = %v", err)
	}
	if len(budgets) != 1 {
		t.Fatalf("got %d budgets, want 1", len(budgets))
	}
	got := budgets[0]
	if !got.Amount.Equal(in.Amount) {
		t.Errorf("Amount = %s, want %s", got.Amount, in.Amount)
	}
	if got.Period != in.Period || got.CategoryID != in.CategoryID {
		t.Errorf("got %+v, want %+v", got, in)
	}
	if !got.StartDate.Equal(in.StartDate) {
		t.Errorf("StartDate = %v, want %v", got.StartDate, in.StartDate)
	}
	if got.EndDate == nil || !got.EndDate.Equal(end) {
		t.Errorf("EndDate = %v, want %v", got.EndDate, end)
	}
}

func TestGetTransactionsHalfOpenRange(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, tx := range []domain.Transaction{
		{ID: "t1", UserID: "u1", AccountID: "a1", Type: domain.TransactionExpense, Amount: decimal.NewFromInt(10), Date: date(2026, 5, 31)},
		{ID: "t2", UserID: "u1", AccountID: "a1", Type: domain.TransactionExpense, Amount: decimal.NewFromInt(20), Date: date(2026, 6, 1)},
		{ID: "t3", UserID: "u1", AccountID: "a1", Type: domain.TransactionExpense, Amount: decimal.NewFromInt(30), Date: date(2026, 6, 30)},
		{ID: "t4", UserID: "u1", AccountID: "a1", Type: domain.TransactionExpense, Amount: decimal.NewFromInt(40), Date: date(2026, 7, 1)},
		{ID: "t5", UserID: "u1", AccountID: "a1", CategoryID: "travel", Type: domain.TransactionExpense, Amount: decimal.NewFromInt(50), Date: date(2026, 6, 15)},
	} {
		if err := s.SaveTransaction(ctx, tx); err != nil {
			t.Fatal(err)
		}
	}

	txs, err := s.GetTransactions(ctx, "u1", date(2026, 6, 1), date(2026, 7, 1), "")
	if err != nil {
		t.Fatalf("GetTransactions() error = %v", err)
	}
	// t1 is before the window, t4 sits exactly on the exclusive end.
	if len(txs) != 3 {
		t.Fatalf("got %d transactions, want 3", len(txs))
	}
	if txs[0].ID != "t2" || txs[2].ID != "t3" {
		t.Errorf("unexpected ordering: %v", []string{txs[0].ID, txs[1].ID, txs[2].ID})
	}

	scoped, err := s.GetTransactions(ctx, "u1", date(2026, 6, 1), date(2026, 7, 1), "travel")
	if err != nil {
		t.Fatalf("GetTransactions(travel) error = %v", err)
	}
	if len(scoped) != 1 || scoped[0].ID != "t5" {
		t.Errorf("category filter returned %v, want [t5]", scoped)
	}
}

func TestGetNotificationPreferencesDefaults(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	prefs, err := s.GetNotificationPreferences(ctx, "unknown")
	if err != nil {
		t.Fatalf("GetNotificationPreferences() error = %v", err)
	}
	if !prefs.BudgetAlerts || !prefs.GoalReminders || !prefs.TransactionAlerts {
		t.Errorf("missing row should yield defaults, got %+v", prefs)
	}

	stored := domain.NotificationPreferences{UserID: "u1", BudgetAlerts: true}
	if err := s.SavePreferences(ctx, stored); err != nil {
		t.Fatal(err)
	}
	prefs, err = s.GetNotificationPreferences(ctx, "u1")
	if err != nil {
		t.Fatalf("GetNotificationPreferences() error = %v", err)
	}
	if !prefs.BudgetAlerts || prefs.GoalReminders {
		t.Errorf("stored row not honored: %+v", prefs)
	}
}

func testNotification(id string) *domain.Notification {
	return &domain.Notification{
		ID:        id,
		UserID:    "u1",
		Type:      domain.NotificationBudgetAlert,
		SubjectID: "b1:80",
		PeriodKey: "2026-06-01",
		Title:     "Budget at 80%",
		Message:   "You have spent 400.00 of your 500.00 budget (80.00%).",
		Payload:   map[string]string{"budget_id": "b1", "threshold": "80"},
		CreatedAt: date(2026, 6, 15),
	}
}

func TestNotificationDedupLookup(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := date(2026, 6, 16)

	n := testNotification("n1")
	key := n.Key()

	if lookup := s.FindNotification(ctx, key, now); lookup.State != repository.LookupNotFound {
		t.Fatalf("lookup before create = %v, want not found", lookup.State)
	}

	if err := s.CreateNotification(ctx, n); err != nil {
		t.Fatalf("CreateNotification() error = %v", err)
	}

	lookup := s.FindNotification(ctx, key, now)
	if lookup.State != repository.LookupFound {
		t.Fatalf("lookup after create = %v, want found", lookup.State)
	}
	if lookup.Notification.ID != "n1" {
		t.Errorf("found %q, want n1", lookup.Notification.ID)
	}
	if lookup.Notification.Payload["budget_id"] != "b1" {
		t.Errorf("payload lost in roundtrip: %v", lookup.Notification.Payload)
	}
}

func TestNotificationExpiryExcludedFromLookup(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	n := testNotification("n1")
	expires := date(2026, 7, 1)
	n.ExpiresAt = &expires
	if err := s.CreateNotification(ctx, n); err != nil {
		t.Fatal(err)
	}

	if lookup := s.FindNotification(ctx, n.Key(), date(2026, 6, 20)); lookup.State != repository.LookupFound {
		t.Errorf("unexpired lookup = %v, want found", lookup.State)
	}
	if lookup := s.FindNotification(ctx, n.Key(), date(2026, 7, 2)); lookup.State != repository.LookupNotFound {
		t.Errorf("expired lookup = %v, want not found", lookup.State)
	}
}

func TestListNotifications(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := date(2026, 6, 16)

	first := testNotification("n1")
	second := testNotification("n2")
	second.SubjectID = "b1:100"
	second.CreatedAt = first.CreatedAt.Add(time.Hour)
	expired := testNotification("n3")
	expired.SubjectID = "b2:80"
	past := date(2026, 6, 10)
	expired.ExpiresAt = &past

	for _, n := range []*domain.Notification{first, second, expired} {
		if err := s.CreateNotification(ctx, n); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.ListNotifications(ctx, "u1", false, now)
	if err != nil {
		t.Fatalf("ListNotifications() error = %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("got %d notifications, want 2 (expired excluded)", len(all))
	}
	if all[0].ID != "n2" {
		t.Errorf("first listed = %q, want newest (n2)", all[0].ID)
	}

	if _, err := s.UpdateNotification(ctx, "u1", "n1", repository.NotificationPatch{ReadAt: &now}); err != nil {
		t.Fatal(err)
	}
	unread, err := s.ListNotifications(ctx, "u1", true, now)
	if err != nil {
		t.Fatalf("ListNotifications(unread) error = %v", err)
	}
	if len(unread) != 1 || unread[0].ID != "n2" {
		t.Errorf("unread = %v, want [n2]", unread)
	}
}

func TestUpdateNotification(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := date(2026, 6, 16)

	if err := s.CreateNotification(ctx, testNotification("n1")); err != nil {
		t.Fatal(err)
	}

	found, err := s.UpdateNotification(ctx, "u1", "n1", repository.NotificationPatch{ReadAt: &now})
	if err != nil {
		t.Fatalf("UpdateNotification() error = %v", err)
	}
	if !found {
		t.Error("found = false, want true")
	}

	found, err = s.UpdateNotification(ctx, "u1", "missing", repository.NotificationPatch{ReadAt: &now})
	if err != nil {
		t.Fatalf("UpdateNotification(missing) error = %v", err)
	}
	if found {
		t.Error("found = true for an absent notification")
	}

	// Another user cannot touch the row.
	found, err = s.UpdateNotification(ctx, "intruder", "n1", repository.NotificationPatch{ReadAt: &now})
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Error("update crossed user boundary")
	}
}

func TestMarkAllAndDeleteAll(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := date(2026, 6, 16)

	first := testNotification("n1")
	second := testNotification("n2")
	second.SubjectID = "b1:100"
	for _, n := range []*domain.Notification{first, second} {
		if err := s.CreateNotification(ctx, n); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.MarkAllNotificationsRead(ctx, "u1", now); err != nil {
		t.Fatalf("MarkAllNotificationsRead() error = %v", err)
	}
	unread, err := s.ListNotifications(ctx, "u1", true, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(unread) != 0 {
		t.Errorf("got %d unread after mark-all, want 0", len(unread))
	}

	if err := s.DeleteAllNotifications(ctx, "u1"); err != nil {
		t.Fatalf("DeleteAllNotifications() error = %v", err)
	}
	all, err := s.ListNotifications(ctx, "u1", false, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 0 {
		t.Errorf("got %d notifications after delete-all, want 0", len(all))
	}
}

func TestDeleteNotificationIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.CreateNotification(ctx, testNotification("n1")); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteNotification(ctx, "u1", "n1"); err != nil {
		t.Fatalf("DeleteNotification() error = %v", err)
	}
	if err := s.DeleteNotification(ctx, "u1", "n1"); err != nil {
		t.Errorf("second DeleteNotification() error = %v, want nil", err)
	}
}

func TestGoalRoundtrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	target := date(2026, 12, 1)
	in := domain.Goal{
		ID:            "g1",
		UserID:        "u1",
		Name:          "Emergency fund",
		TargetAmount:  decimal.NewFromInt(1000),
		CurrentAmount: decimal.RequireFromString("333.33"),
		TargetDate:    &target,
	}
	if err := s.SaveGoal(ctx, in); err != nil {
		t.Fatal(err)
	}

	goals, err := s.GetGoals(ctx, "u1")
	if err != nil {
		t.Fatalf("GetGoals() error = %v", err)
	}
	if len(goals) != 1 {
		t.Fatalf("got %d goals, want 1", len(goals))
	}
	got := goals[0]
	if !got.CurrentAmount.Equal(in.CurrentAmount) || got.Name != in.Name {
		t.Errorf("got %+v, want %+v", got, in)
	}
	if got.TargetDate == nil || !got.TargetDate.Equal(target) {
		t.Errorf("TargetDate = %v, want %v", got.TargetDate, target)
	}
}
