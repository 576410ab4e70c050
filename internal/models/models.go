// package models defines the data model for the offline-first finance sync engine
package models

import (
	"encoding/json"
	"time"
)

// Domain identifies one synchronized data domain.
//
// Every SyncOperation references exactly one entity by domain and ID, and
// each entity store exclusively owns the in-memory slice for its domain.
type Domain string

const (
	DomainTransactions    Domain = "transactions"
	DomainRecurring       Domain = "recurring_transactions"
	DomainBudget          Domain = "budget"
	DomainCategoryBudgets Domain = "category_budgets"
	DomainGoals           Domain = "goals"
	DomainSettings        Domain = "settings"
)

// Domains lists all synchronized domains in a stable order.
func Domains() []Domain {
	return []Domain{
		DomainTransactions,
		DomainRecurring,
		DomainBudget,
		DomainCategoryBudgets,
		DomainGoals,
		DomainSettings,
	}
}

// OpType is the mutation kind carried by a SyncOperation.
type OpType string

const (
	OpCreate OpType = "create"
	OpUpdate OpType = "update"
	OpDelete OpType = "delete"
)

// SyncOperation is one pending mutation on the durable sync queue.
//
// The payload is self-sufficient for replay: it carries the full entity plus
// the user identity, so a queued operation can be delivered long after the
// state that produced it is gone.
type SyncOperation struct {
	ID         string          `json:"id"`
	Type       OpType          `json:"type"`
	Domain     Domain          `json:"domain"`
	UserID     string          `json:"user_id"`
	TargetID   string          `json:"target_id,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	RetryCount int             `json:"retry_count"`
}

// DeadLetterEntry records an operation dropped after exhausting its retries.
//
// Entries are persisted so a dropped mutation stays inspectable and can be
// requeued instead of vanishing into a log line.
type DeadLetterEntry struct {
	Op        SyncOperation `json:"op"`
	DroppedAt time.Time     `json:"dropped_at"`
	Reason    string        `json:"reason"`
}

// SyncStatus is the observable sync state broadcast to subscribers.
//
// IsOnline is owned by the network monitor; the remaining fields are owned by
// the sync engine.
type SyncStatus struct {
	IsOnline          bool       `json:"is_online"`
	IsSyncing         bool       `json:"is_syncing"`
	LastSyncTime      *time.Time `json:"last_sync_time,omitempty"`
	PendingOperations int        `json:"pending_operations"`
	Error             string     `json:"error,omitempty"`
}

// LocalDataSummary counts local-only entities per domain, computed on demand.
type LocalDataSummary struct {
	Transactions    int  `json:"transactions"`
	Recurring       int  `json:"recurring_transactions"`
	CategoryBudgets int  `json:"category_budgets"`
	Goals           int  `json:"goals"`
	HasBudget       bool `json:"has_budget"`
	HasSettings     bool `json:"has_settings"`
}

// Total returns the number of countable local items across all domains.
func (s LocalDataSummary) Total() int {
	total := s.Transactions + s.Recurring + s.CategoryBudgets + s.Goals
	if s.HasBudget {
		total++
	}
	return total
}

// MigrationStatus is the per-user persisted migration-completion flag.
//
// Absent until the first migration decision; set after completion or an
// explicit skip; reset only by debug tooling.
type MigrationStatus struct {
	UserID      string     `json:"user_id"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// TransactionType discriminates income from expense entries.
type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

// Transaction is a single income or expense entry.
type Transaction struct {
	ID          string          `json:"id"`
	Amount      float64         `json:"amount"`
	Category    string          `json:"category"`
	Description string          `json:"description,omitempty"`
	Type        TransactionType `json:"type"`
	Date        time.Time       `json:"date"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Frequency is the recurrence interval of a recurring transaction.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

// RecurringTransaction is a template that materializes transactions on a schedule.
type RecurringTransaction struct {
	ID          string          `json:"id"`
	Amount      float64         `json:"amount"`
	Category    string          `json:"category"`
	Description string          `json:"description,omitempty"`
	Type        TransactionType `json:"type"`
	Frequency   Frequency       `json:"frequency"`
	NextRun     time.Time       `json:"next_run"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Budget is the singleton overall monthly budget.
type Budget struct {
	MonthlyLimit float64   `json:"monthly_limit"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Period is the budgeting window of a category budget.
type Period string

const (
	PeriodMonthly Period = "monthly"
	PeriodWeekly  Period = "weekly"
)

// CategoryBudget caps spending for one category over one period.
//
// Remotely a category budget is identified by its (category, period) tuple,
// not its ID; the migration engine matches on the tuple.
type CategoryBudget struct {
	ID        string    `json:"id"`
	Category  string    `json:"category"`
	Period    Period    `json:"period"`
	Limit     float64   `json:"limit"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Goal is a savings goal with a target amount.
type Goal struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	TargetAmount  float64    `json:"target_amount"`
	CurrentAmount float64    `json:"current_amount"`
	Deadline      *time.Time `json:"deadline,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Settings is the singleton per-device application settings document.
type Settings struct {
	Currency             string    `json:"currency"`
	NotificationsEnabled bool      `json:"notifications_enabled"`
	UpdatedAt            time.Time `json:"updated_at"`
}
