package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType classifies an account.
type AccountType string

const (
	AccountChecking   AccountType = "checking"
	AccountSavings    AccountType = "savings"
	AccountCredit     AccountType = "credit"
	AccountInvestment AccountType = "investment"
)

// Account is a user-owned money account. Accounts are created and mutated
// through the CRUD service; the alerting engine only reads them.
type Account struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	Name           string          `json:"name"`
	Currency       string          `json:"currency"`
	Type           AccountType     `json:"type"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
}

// TransactionType determines the sign convention of a transaction amount.
type TransactionType string

const (
	TransactionIncome   TransactionType = "income"
	TransactionExpense  TransactionType = "expense"
	TransactionTransfer TransactionType = "transfer"
)

// Transaction is one movement of money on an account.
type Transaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	AccountID   string          `json:"account_id"`
	CategoryID  string          `json:"category_id,omitempty"`
	Type        TransactionType `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
	Description string          `json:"description"`
}

// IsExpense reports whether the transaction counts against a budget.
// Income and transfers never do.
func (t Transaction) IsExpense() bool {
	return t.Type == TransactionExpense
}

// AbsAmount returns the unsigned amount.
func (t Transaction) AbsAmount() decimal.Decimal {
	return t.Amount.Abs()
}

// Budget is a recurring or bounded spending ceiling. An empty CategoryID
// means the budget covers all categories.
type Budget struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	CategoryID string          `json:"category_id,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Period     Period          `json:"period"`
	StartDate  time.Time       `json:"start_date"`
	EndDate    *time.Time      `json:"end_date,omitempty"`
}

// Validate checks the shape of a budget record as read from the store.
// Amount <= 0 is a configuration problem (creation-time validation should
// have rejected it); a zero start date is a malformed row.
func (b Budget) Validate() error {
	if b.ID == "" {
		return &ValidationError{Field: "id", Reason: "empty budget id"}
	}
	if b.StartDate.IsZero() {
		return &ValidationError{Field: "start_date", Reason: "zero start date"}
	}
	if !b.Period.Valid() {
		return &ValidationError{Field: "period", Reason: "unknown period " + string(b.Period)}
	}
	if b.Amount.Sign() <= 0 {
		return &ConfigError{Reason: "budget " + b.ID + " has non-positive amount"}
	}
	return nil
}

// Matches reports whether a transaction falls under this budget's
// category filter.
func (b Budget) Matches(t Transaction) bool {
	return b.CategoryID == "" || b.CategoryID == t.CategoryID
}

// Goal is a savings target.
type Goal struct {
	ID            string          `json:"id"`
	UserID        string          `json:"user_id"`
	Name          string          `json:"name"`
	TargetAmount  decimal.Decimal `json:"target_amount"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
	TargetDate    *time.Time      `json:"target_date,omitempty"`
}

// Validate checks the shape of a goal record as read from the store.
func (g Goal) Validate() error {
	if g.ID == "" {
		return &ValidationError{Field: "id", Reason: "empty goal id"}
	}
	if g.TargetAmount.Sign() <= 0 {
		return &ValidationError{Field: "target_amount", Reason: "goal " + g.ID + " has non-positive target"}
	}
	if g.CurrentAmount.Sign() < 0 {
		return &ValidationError{Field: "current_amount", Reason: "goal " + g.ID + " has negative current amount"}
	}
	return nil
}

// Reached reports whether the goal has already been met.
func (g Goal) Reached() bool {
	return g.CurrentAmount.GreaterThanOrEqual(g.TargetAmount)
}

// BudgetProgress is the derived progress snapshot for one budget in its
// current period. It is recomputed on demand and never persisted.
type BudgetProgress struct {
	BudgetID string `json:"budget_id"`

	Spent     decimal.Decimal `json:"spent"`
	Remaining decimal.Decimal `json:"remaining"`

	// Percentage is spent/amount*100 rounded to 2 decimals; unbounded
	// above 100.
	Percentage   float64 `json:"percentage"`
	IsOverBudget bool    `json:"is_over_budget"`

	// SpendingVelocity is average spend per elapsed day, in currency
	// units per day.
	SpendingVelocity float64 `json:"spending_velocity"`

	// ProjectedOverspendDate is nil when the budget is not on pace to be
	// breached within the period, or when it is already over.
	ProjectedOverspendDate *time.Time `json:"projected_overspend_date,omitempty"`

	// DaysRemaining is clamped to 0 once the period has ended.
	DaysRemaining int `json:"days_remaining"`

	// PeriodComparison is the signed percentage delta versus the spend at
	// the same elapsed point of the previous period; nil when no prior
	// data exists.
	PeriodComparison *float64 `json:"period_comparison,omitempty"`

	// Misconfigured marks a budget whose amount could not be used for
	// ratio math (zero amount). The caller decides whether to surface it.
	Misconfigured bool `json:"misconfigured,omitempty"`

	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
}
