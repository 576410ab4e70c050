package cache

// Cache keys owned by the engine components. The queue is stored as one
// ordered array under a single key; the migration flag is namespaced by user
// identity.
const (
	KeyTransactions    = "transactions"
	KeyRecurring       = "recurring_transactions"
	KeyBudget          = "budget"
	KeyCategoryBudgets = "category_budgets"
	KeyGoals           = "goals"
	KeySettings        = "settings"

	KeySyncQueue    = "sync_queue"
	KeyDeadLetter   = "sync_dead_letter"
	KeyLastSyncTime = "last_sync_time"

	migrationKeyPrefix = "migration_completed_"
)

// MigrationKey returns the per-user migration-completed flag key.
func MigrationKey(userID string) string {
	return migrationKeyPrefix + userID
}
