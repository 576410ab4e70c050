// package migrate implements the one-time local-to-cloud data migration.
//
// The engine reads every domain from the local cache but owns none of them.
// Identity-bearing domains deduplicate against the remote ID set before
// writing; category budgets match on their (category, period) tuple; the
// overall budget is always upserted. A remote "already exists" answer counts
// as a skip, any other failure is recorded and the batch continues.
package migrate

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ledgersync/internal/cache"
	"github.com/desertthunder/ledgersync/internal/models"
	"github.com/desertthunder/ledgersync/internal/services"
	"github.com/desertthunder/ledgersync/internal/shared"
)

// DefaultBatchSize is the number of items written per migration batch.
const DefaultBatchSize = 50

// Decision is the sign-in outcome of CheckMigration.
type Decision string

const (
	// DecisionNone means nothing to migrate; proceed straight to realtime sync.
	DecisionNone Decision = "none"
	// DecisionPrompt means local-only data exists and the user must choose
	// between migrating and skipping.
	DecisionPrompt Decision = "prompt"
)

// Result summarizes one MigrateToCloud run.
type Result struct {
	Success        bool                  `json:"success"`
	MigratedCounts map[models.Domain]int `json:"migrated_counts"`
	SkippedCounts  map[models.Domain]int `json:"skipped_counts"`
	Errors         []string              `json:"errors,omitempty"`
}

// Engine is the migration engine. Construct with New; it is safe to share.
type Engine struct {
	gateway   services.Gateway
	cache     cache.Store
	logger    *log.Logger
	batchSize int
}

// Opts contains configuration options for creating an Engine.
type Opts struct {
	Gateway   services.Gateway
	Cache     cache.Store
	Logger    *log.Logger
	BatchSize int // 0 means DefaultBatchSize
}

// New creates a migration Engine.
func New(opts Opts) *Engine {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	return &Engine{
		gateway:   opts.Gateway,
		cache:     opts.Cache,
		logger:    opts.Logger.With("component", "migrate"),
		batchSize: opts.BatchSize,
	}
}

// localData is the cached state of every migratable domain.
type localData struct {
	transactions    []models.Transaction
	recurring       []models.RecurringTransaction
	goals           []models.Goal
	categoryBudgets []models.CategoryBudget
	budget          *models.Budget
	hasSettings     bool
}

func (e *Engine) loadLocal() (localData, error) {
	var d localData
	if _, err := e.cache.Get(cache.KeyTransactions, &d.transactions); err != nil {
		return d, fmt.Errorf("failed to read local transactions: %w", err)
	}
	if _, err := e.cache.Get(cache.KeyRecurring, &d.recurring); err != nil {
		return d, fmt.Errorf("failed to read local recurring transactions: %w", err)
	}
	if _, err := e.cache.Get(cache.KeyGoals, &d.goals); err != nil {
		return d, fmt.Errorf("failed to read local goals: %w", err)
	}
	if _, err := e.cache.Get(cache.KeyCategoryBudgets, &d.categoryBudgets); err != nil {
		return d, fmt.Errorf("failed to read local category budgets: %w", err)
	}
	var b models.Budget
	if ok, err := e.cache.Get(cache.KeyBudget, &b); err != nil {
		return d, fmt.Errorf("failed to read local budget: %w", err)
	} else if ok && b.MonthlyLimit > 0 {
		d.budget = &b
	}
	var s models.Settings
	if ok, err := e.cache.Get(cache.KeySettings, &s); err != nil {
		return d, fmt.Errorf("failed to read local settings: %w", err)
	} else if ok && s.Currency != "" {
		d.hasSettings = true
	}
	return d, nil
}

// HasLocalData reports whether any domain holds at least one item with
// meaningful content. Key existence alone does not count.
func (e *Engine) HasLocalData() (bool, error) {
	d, err := e.loadLocal()
	if err != nil {
		return false, err
	}
	return len(d.transactions) > 0 || len(d.recurring) > 0 ||
		len(d.goals) > 0 || len(d.categoryBudgets) > 0 || d.budget != nil, nil
}

// GetLocalDataSummary counts local entities per domain.
func (e *Engine) GetLocalDataSummary() (models.LocalDataSummary, error) {
	d, err := e.loadLocal()
	if err != nil {
		return models.LocalDataSummary{}, err
	}
	return models.LocalDataSummary{
		Transactions:    len(d.transactions),
		Recurring:       len(d.recurring),
		CategoryBudgets: len(d.categoryBudgets),
		Goals:           len(d.goals),
		HasBudget:       d.budget != nil,
		HasSettings:     d.hasSettings,
	}, nil
}

// plan is the deduplicated write set produced by diffing local data against
// the remote store. Every planned item results in exactly one remote write.
type plan struct {
	transactions []models.Transaction
	recurring    []models.RecurringTransaction
	goals        []models.Goal
	// category budgets split by whether the (category, period) tuple already
	// exists remotely; updates carry the remote entity's ID.
	cbInserts []models.CategoryBudget
	cbUpdates []models.CategoryBudget
	budget    *models.Budget

	skipped map[models.Domain]int
}

func (p plan) total() int {
	n := len(p.transactions) + len(p.recurring) + len(p.goals) +
		len(p.cbInserts) + len(p.cbUpdates)
	if p.budget != nil {
		n++
	}
	return n
}

func (e *Engine) buildPlan(ctx context.Context, userID string, d localData) (plan, error) {
	p := plan{skipped: make(map[models.Domain]int)}

	remoteTx, err := e.gateway.GetTransactions(ctx, userID)
	if err != nil {
		return p, fmt.Errorf("failed to fetch remote transactions: %w", err)
	}
	txIDs := make(map[string]bool, len(remoteTx))
	for _, tx := range remoteTx {
		txIDs[tx.ID] = true
	}
	for _, tx := range d.transactions {
		if txIDs[tx.ID] {
			p.skipped[models.DomainTransactions]++
			continue
		}
		p.transactions = append(p.transactions, tx)
	}

	remoteRec, err := e.gateway.GetRecurring(ctx, userID)
	if err != nil {
		return p, fmt.Errorf("failed to fetch remote recurring transactions: %w", err)
	}
	recIDs := make(map[string]bool, len(remoteRec))
	for _, rt := range remoteRec {
		recIDs[rt.ID] = true
	}
	for _, rt := range d.recurring {
		if recIDs[rt.ID] {
			p.skipped[models.DomainRecurring]++
			continue
		}
		p.recurring = append(p.recurring, rt)
	}

	remoteGoals, err := e.gateway.GetGoals(ctx, userID)
	if err != nil {
		return p, fmt.Errorf("failed to fetch remote goals: %w", err)
	}
	goalIDs := make(map[string]bool, len(remoteGoals))
	for _, g := range remoteGoals {
		goalIDs[g.ID] = true
	}
	for _, g := range d.goals {
		if goalIDs[g.ID] {
			p.skipped[models.DomainGoals]++
			continue
		}
		p.goals = append(p.goals, g)
	}

	remoteCBs, err := e.gateway.GetCategoryBudgets(ctx, userID)
	if err != nil {
		return p, fmt.Errorf("failed to fetch remote category budgets: %w", err)
	}
	type tuple struct {
		category string
		period   models.Period
	}
	remoteByTuple := make(map[tuple]models.CategoryBudget, len(remoteCBs))
	for _, cb := range remoteCBs {
		remoteByTuple[tuple{cb.Category, cb.Period}] = cb
	}
	for _, cb := range d.categoryBudgets {
		if existing, ok := remoteByTuple[tuple{cb.Category, cb.Period}]; ok {
			cb.ID = existing.ID
			p.cbUpdates = append(p.cbUpdates, cb)
		} else {
			p.cbInserts = append(p.cbInserts, cb)
		}
	}

	p.budget = d.budget
	return p, nil
}

// HasNewLocalData recomputes the migration diff without writing anything and
// reports whether any domain still holds an un-migrated item.
func (e *Engine) HasNewLocalData(ctx context.Context, userID string) (bool, error) {
	d, err := e.loadLocal()
	if err != nil {
		return false, err
	}
	p, err := e.buildPlan(ctx, userID, d)
	if err != nil {
		return false, err
	}
	// A tuple-matched category budget is an update, not new data.
	n := len(p.transactions) + len(p.recurring) + len(p.goals) + len(p.cbInserts)
	if p.budget != nil {
		n++
	}
	return n > 0, nil
}

// MigrateToCloud diffs local data against the remote store and writes the
// remainder in batches, reporting percent progress over the planned writes.
// The per-user completion flag is persisted even when individual items fail;
// the local cache is cleared only when every write succeeded.
func (e *Engine) MigrateToCloud(ctx context.Context, userID string, onProgress func(float64)) (Result, error) {
	res := Result{
		MigratedCounts: make(map[models.Domain]int),
		SkippedCounts:  make(map[models.Domain]int),
	}
	if onProgress == nil {
		onProgress = func(float64) {}
	}

	d, err := e.loadLocal()
	if err != nil {
		return res, err
	}
	p, err := e.buildPlan(ctx, userID, d)
	if err != nil {
		return res, err
	}
	for domain, n := range p.skipped {
		res.SkippedCounts[domain] = n
	}

	total := p.total()
	if total == 0 {
		res.Success = true
		onProgress(100)
		if err := e.markCompleted(userID); err != nil {
			return res, err
		}
		return res, nil
	}

	processed := 0
	step := func() {
		processed++
		onProgress(float64(processed) / float64(total) * 100)
	}
	record := func(domain models.Domain, op string, err error) {
		if err == nil {
			res.MigratedCounts[domain]++
			return
		}
		if services.IsDuplicate(err) {
			res.SkippedCounts[domain]++
			return
		}
		e.logger.Warn("migration write failed", "domain", domain, "op", op, "error", err)
		res.Errors = append(res.Errors, fmt.Sprintf("%s %s: %v", op, domain, err))
	}

	for _, batch := range batches(p.transactions, e.batchSize) {
		for _, tx := range batch {
			_, err := e.gateway.AddTransaction(ctx, userID, tx)
			record(models.DomainTransactions, "create", err)
			step()
		}
	}
	for _, batch := range batches(p.recurring, e.batchSize) {
		for _, rt := range batch {
			_, err := e.gateway.AddRecurring(ctx, userID, rt)
			record(models.DomainRecurring, "create", err)
			step()
		}
	}
	for _, batch := range batches(p.goals, e.batchSize) {
		for _, g := range batch {
			_, err := e.gateway.AddGoal(ctx, userID, g)
			record(models.DomainGoals, "create", err)
			step()
		}
	}
	for _, batch := range batches(p.cbInserts, e.batchSize) {
		for _, cb := range batch {
			_, err := e.gateway.AddCategoryBudget(ctx, userID, cb)
			record(models.DomainCategoryBudgets, "create", err)
			step()
		}
	}
	for _, batch := range batches(p.cbUpdates, e.batchSize) {
		for _, cb := range batch {
			_, err := e.gateway.UpdateCategoryBudget(ctx, userID, cb.ID, cb)
			record(models.DomainCategoryBudgets, "update", err)
			step()
		}
	}
	if p.budget != nil {
		_, err := e.gateway.PutBudget(ctx, userID, *p.budget)
		record(models.DomainBudget, "upsert", err)
		step()
	}

	res.Success = len(res.Errors) == 0
	if err := e.markCompleted(userID); err != nil {
		return res, err
	}
	if res.Success {
		if err := e.ClearLocalDataCache(); err != nil {
			return res, err
		}
		e.logger.Info("migration completed, local cache cleared",
			"user", userID, "migrated", res.MigratedCounts, "skipped", res.SkippedCounts)
	} else {
		e.logger.Warn("migration completed with errors, local cache retained",
			"user", userID, "errors", len(res.Errors))
	}
	return res, nil
}

// CheckMigration decides, at sign-in, whether the caller must prompt the user
// before starting realtime sync.
func (e *Engine) CheckMigration(ctx context.Context, userID string) (Decision, error) {
	hasLocal, err := e.HasLocalData()
	if err != nil {
		return DecisionNone, err
	}
	if !hasLocal {
		// Nothing on the device; the migration question never arises.
		if err := e.markCompleted(userID); err != nil {
			return DecisionNone, err
		}
		return DecisionNone, nil
	}

	completed, err := e.IsMigrationCompleted(userID)
	if err != nil {
		return DecisionNone, err
	}
	if !completed {
		return DecisionPrompt, nil
	}

	hasNew, err := e.HasNewLocalData(ctx, userID)
	if err != nil {
		return DecisionNone, err
	}
	if hasNew {
		return DecisionPrompt, nil
	}
	// Everything local is already remote; drop the stale copy.
	if err := e.ClearLocalDataCache(); err != nil {
		return DecisionNone, err
	}
	return DecisionNone, nil
}

// Skip records the user's choice to keep local data out of the cloud. The
// completion flag stops repeat prompts until new local data appears.
func (e *Engine) Skip(userID string) error {
	return e.markCompleted(userID)
}

// IsMigrationCompleted reads the per-user completion flag.
func (e *Engine) IsMigrationCompleted(userID string) (bool, error) {
	var status models.MigrationStatus
	ok, err := e.cache.Get(cache.MigrationKey(userID), &status)
	if err != nil {
		return false, fmt.Errorf("failed to read migration status: %w", err)
	}
	return ok && status.Completed, nil
}

// GetMigrationStatus returns the persisted status record, if any.
func (e *Engine) GetMigrationStatus(userID string) (models.MigrationStatus, bool, error) {
	var status models.MigrationStatus
	ok, err := e.cache.Get(cache.MigrationKey(userID), &status)
	if err != nil {
		return models.MigrationStatus{}, false, fmt.Errorf("failed to read migration status: %w", err)
	}
	return status, ok, nil
}

// ResetMigrationStatus removes the per-user completion flag. Debug tooling only.
func (e *Engine) ResetMigrationStatus(userID string) error {
	if err := e.cache.Remove(cache.MigrationKey(userID)); err != nil {
		return fmt.Errorf("failed to reset migration status: %w", err)
	}
	e.logger.Info("migration status reset", "user", userID)
	return nil
}

// ClearLocalDataCache removes every domain's cached data, settings included.
func (e *Engine) ClearLocalDataCache() error {
	keys := []string{
		cache.KeyTransactions,
		cache.KeyRecurring,
		cache.KeyBudget,
		cache.KeyCategoryBudgets,
		cache.KeyGoals,
		cache.KeySettings,
	}
	for _, key := range keys {
		if err := e.cache.Remove(key); err != nil {
			return fmt.Errorf("failed to clear %s: %w", key, err)
		}
	}
	return nil
}

func (e *Engine) markCompleted(userID string) error {
	now := time.Now()
	status := models.MigrationStatus{UserID: userID, Completed: true, CompletedAt: &now}
	if err := e.cache.Set(cache.MigrationKey(userID), status); err != nil {
		return fmt.Errorf("failed to persist migration status: %w", err)
	}
	return nil
}

func batches[T any](items []T, size int) [][]T {
	var out [][]T
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}
