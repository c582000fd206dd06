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

// Repository is the BigQuery-backed implementation of repository.Store.
// It holds a shared client to avoid creating a new connection per
// operation.
type Repository struct {
	client  *bigquery.Client
	dataset string
}

// NewRepository creates a repository against the given project and
// dataset.
func NewRepository(ctx context.Context, projectID, datasetID string) (*Repository, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return &Repository{client: client, dataset: datasetID}, nil
}

// Close closes the BigQuery client connection.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func (r *Repository) table(name string) string {
	return r.dataset + "." + name
}

// ListActiveUsers implements repository.UserSource.
func (r *Repository) ListActiveUsers(ctx context.Context) ([]string, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT user_id
		FROM %s
		WHERE active = TRUE
		ORDER BY user_id
	`, r.table("users")))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("ListActiveUsers: query read: %w", err)
	}

	var users []string
	for {
		var row struct {
			UserID string `bigquery:"user_id"`
		}
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("ListActiveUsers: iter next: %w", err)
		}
		users = append(users, row.UserID)
	}
	return users, nil
}

// GetBudgets implements repository.BudgetReader.
func (r *Repository) GetBudgets(ctx context.Context, userID string) ([]domain.Budget, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT budget_id, user_id, category_id, amount, period, start_date, end_date
		FROM %s
		WHERE user_id = @user_id
		ORDER BY budget_id
	`, r.table("budgets")))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetBudgets: query read: %w", err)
	}

	var budgets []domain.Budget
	for {
		var row BudgetRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("GetBudgets: iter next: %w", err)
		}
		budgets = append(budgets, row.ToDomain())
	}
	return budgets, nil
}

// GetTransactions implements repository.TransactionReader. The range is
// half-open: [from, to).
func (r *Repository) GetTransactions(ctx context.Context, userID string, from, to time.Time, categoryID string) ([]domain.Transaction, error) {
	query := fmt.Sprintf(`
		SELECT transaction_id, user_id, account_id, category_id, tx_type, amount, tx_date, description
		FROM %s
		WHERE user_id = @user_id
		  AND tx_date >= @from_date
		  AND tx_date < @to_date
	`, r.table("transactions"))
	params := []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "from_date", Value: from},
		{Name: "to_date", Value: to},
	}
	if categoryID != "" {
		query += " AND category_id = @category_id"
		params = append(params, bigquery.QueryParameter{Name: "category_id", Value: categoryID})
	}
	query += " ORDER BY tx_date, transaction_id"

	q := r.client.Query(query)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetTransactions: query read: %w", err)
	}

	var txs []domain.Transaction
	for {
		var row TransactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("GetTransactions: iter next: %w", err)
		}
		txs = append(txs, row.ToDomain())
	}
	return txs, nil
}

// GetGoals implements repository.GoalReader.
func (r *Repository) GetGoals(ctx context.Context, userID string) ([]domain.Goal, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT goal_id, user_id, name, target_amount, current_amount, target_date
		FROM %s
		WHERE user_id = @user_id
		ORDER BY goal_id
	`, r.table("goals")))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("GetGoals: query read: %w", err)
	}

	var goals []domain.Goal
	for {
		var row GoalRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("GetGoals: iter next: %w", err)
		}
		goals = append(goals, row.ToDomain())
	}
	return goals, nil
}

// GetNotificationPreferences implements repository.PreferenceReader.
// Users without a stored row get the defaults.
func (r *Repository) GetNotificationPreferences(ctx context.Context, userID string) (domain.NotificationPreferences, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT user_id, budget_alerts, goal_reminders, transaction_alerts, email_notifications
		FROM %s
		WHERE user_id = @user_id
		LIMIT 1
	`, r.table("notification_preferences")))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "user_id", Value: userID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return domain.NotificationPreferences{}, fmt.Errorf("GetNotificationPreferences: query read: %w", err)
	}

	var row PreferenceRow
	err = it.Next(&row)
	if err == iterator.Done {
		return domain.DefaultPreferences(userID), nil
	}
	if err != nil {
		return domain.NotificationPreferences{}, fmt.Errorf("GetNotificationPreferences: iter next: %w", err)
	}
	return row.ToDomain(), nil
}

var _ repository.Store = (*Repository)(nil)
