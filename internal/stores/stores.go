package stores

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ledgersync/internal/cache"
	"github.com/desertthunder/ledgersync/internal/models"
	"github.com/desertthunder/ledgersync/internal/services"
	"github.com/desertthunder/ledgersync/internal/shared"
)

// Deps holds the collaborators injected into every store. Stores never reach
// into one another; the composition root wires one Deps and hands it out.
type Deps struct {
	Gateway services.Gateway
	Cache   cache.Store
	Queue   OperationQueue
	Online  Connectivity
	Logger  *log.Logger
}

// NewTransactionStore creates the transactions entity store.
func NewTransactionStore(d Deps) *Collection[models.Transaction] {
	return &Collection[models.Transaction]{
		domain:   models.DomainTransactions,
		cacheKey: cache.KeyTransactions,
		validate: models.ValidateTransaction,
		ident:    func(t *models.Transaction) *string { return &t.ID },
		stamp: func(t *models.Transaction, now time.Time, isNew bool) {
			if isNew {
				t.CreatedAt = now
				if t.Date.IsZero() {
					t.Date = now
				}
			}
			t.UpdatedAt = now
		},
		ops: gatewayOps[models.Transaction]{
			add:       d.Gateway.AddTransaction,
			update:    d.Gateway.UpdateTransaction,
			remove:    d.Gateway.DeleteTransaction,
			subscribe: d.Gateway.SubscribeTransactions,
		},
		cache:  d.Cache,
		queue:  d.Queue,
		online: d.Online,
		logger: storeLogger(d.Logger, models.DomainTransactions),
		subs:   make(map[int]func([]models.Transaction)),
	}
}

// NewRecurringStore creates the recurring transactions entity store.
func NewRecurringStore(d Deps) *Collection[models.RecurringTransaction] {
	return &Collection[models.RecurringTransaction]{
		domain:   models.DomainRecurring,
		cacheKey: cache.KeyRecurring,
		validate: models.ValidateRecurring,
		ident:    func(rt *models.RecurringTransaction) *string { return &rt.ID },
		stamp: func(rt *models.RecurringTransaction, now time.Time, isNew bool) {
			if isNew {
				rt.CreatedAt = now
			}
			rt.UpdatedAt = now
		},
		ops: gatewayOps[models.RecurringTransaction]{
			add:       d.Gateway.AddRecurring,
			update:    d.Gateway.UpdateRecurring,
			remove:    d.Gateway.DeleteRecurring,
			subscribe: d.Gateway.SubscribeRecurring,
		},
		cache:  d.Cache,
		queue:  d.Queue,
		online: d.Online,
		logger: storeLogger(d.Logger, models.DomainRecurring),
		subs:   make(map[int]func([]models.RecurringTransaction)),
	}
}

// NewGoalStore creates the goals entity store.
func NewGoalStore(d Deps) *Collection[models.Goal] {
	return &Collection[models.Goal]{
		domain:   models.DomainGoals,
		cacheKey: cache.KeyGoals,
		validate: models.ValidateGoal,
		ident:    func(g *models.Goal) *string { return &g.ID },
		stamp: func(g *models.Goal, now time.Time, isNew bool) {
			if isNew {
				g.CreatedAt = now
			}
			g.UpdatedAt = now
		},
		ops: gatewayOps[models.Goal]{
			add:       d.Gateway.AddGoal,
			update:    d.Gateway.UpdateGoal,
			remove:    d.Gateway.DeleteGoal,
			subscribe: d.Gateway.SubscribeGoals,
		},
		cache:  d.Cache,
		queue:  d.Queue,
		online: d.Online,
		logger: storeLogger(d.Logger, models.DomainGoals),
		subs:   make(map[int]func([]models.Goal)),
	}
}

// NewCategoryBudgetStore creates the category budgets entity store.
func NewCategoryBudgetStore(d Deps) *Collection[models.CategoryBudget] {
	return &Collection[models.CategoryBudget]{
		domain:   models.DomainCategoryBudgets,
		cacheKey: cache.KeyCategoryBudgets,
		validate: models.ValidateCategoryBudget,
		ident:    func(cb *models.CategoryBudget) *string { return &cb.ID },
		stamp: func(cb *models.CategoryBudget, now time.Time, isNew bool) {
			if isNew {
				cb.CreatedAt = now
			}
			cb.UpdatedAt = now
		},
		ops: gatewayOps[models.CategoryBudget]{
			add:       d.Gateway.AddCategoryBudget,
			update:    d.Gateway.UpdateCategoryBudget,
			remove:    d.Gateway.DeleteCategoryBudget,
			subscribe: d.Gateway.SubscribeCategoryBudgets,
		},
		cache:  d.Cache,
		queue:  d.Queue,
		online: d.Online,
		logger: storeLogger(d.Logger, models.DomainCategoryBudgets),
		subs:   make(map[int]func([]models.CategoryBudget)),
	}
}

// NewBudgetStore creates the singleton overall-budget store.
func NewBudgetStore(d Deps) *Singleton[models.Budget] {
	return &Singleton[models.Budget]{
		domain:   models.DomainBudget,
		cacheKey: cache.KeyBudget,
		validate: models.ValidateBudget,
		stamp: func(b *models.Budget, now time.Time, isNew bool) {
			if isNew {
				b.CreatedAt = now
			}
			b.UpdatedAt = now
		},
		ops: singletonOps[models.Budget]{
			put:       d.Gateway.PutBudget,
			subscribe: d.Gateway.SubscribeBudget,
		},
		cache:  d.Cache,
		queue:  d.Queue,
		online: d.Online,
		logger: storeLogger(d.Logger, models.DomainBudget),
		subs:   make(map[int]func(models.Budget, bool)),
	}
}

// NewSettingsStore creates the singleton settings store.
func NewSettingsStore(d Deps) *Singleton[models.Settings] {
	return &Singleton[models.Settings]{
		domain:   models.DomainSettings,
		cacheKey: cache.KeySettings,
		validate: models.ValidateSettings,
		stamp: func(s *models.Settings, now time.Time, isNew bool) {
			s.UpdatedAt = now
		},
		ops: singletonOps[models.Settings]{
			put:       d.Gateway.PutSettings,
			subscribe: d.Gateway.SubscribeSettings,
		},
		cache:  d.Cache,
		queue:  d.Queue,
		online: d.Online,
		logger: storeLogger(d.Logger, models.DomainSettings),
		subs:   make(map[int]func(models.Settings, bool)),
	}
}

func storeLogger(l *log.Logger, domain models.Domain) *log.Logger {
	if l == nil {
		l = shared.NewLogger(nil)
	}
	return l.With("store", string(domain))
}

// Stores bundles every entity store for lifecycle operations that span all
// domains: sign-in, realtime start/stop, and sign-out reset.
type Stores struct {
	Transactions    *Collection[models.Transaction]
	Recurring       *Collection[models.RecurringTransaction]
	Goals           *Collection[models.Goal]
	CategoryBudgets *Collection[models.CategoryBudget]
	Budget          *Singleton[models.Budget]
	Settings        *Singleton[models.Settings]
}

// NewStores constructs all entity stores against one set of dependencies.
func NewStores(d Deps) *Stores {
	return &Stores{
		Transactions:    NewTransactionStore(d),
		Recurring:       NewRecurringStore(d),
		Goals:           NewGoalStore(d),
		CategoryBudgets: NewCategoryBudgetStore(d),
		Budget:          NewBudgetStore(d),
		Settings:        NewSettingsStore(d),
	}
}

// Load restores every store from the local cache.
func (s *Stores) Load() error {
	if err := s.Transactions.Load(); err != nil {
		return err
	}
	if err := s.Recurring.Load(); err != nil {
		return err
	}
	if err := s.Goals.Load(); err != nil {
		return err
	}
	if err := s.CategoryBudgets.Load(); err != nil {
		return err
	}
	if err := s.Budget.Load(); err != nil {
		return err
	}
	return s.Settings.Load()
}

// SetUser propagates the authenticated identity to every store.
func (s *Stores) SetUser(userID string) {
	s.Transactions.SetUser(userID)
	s.Recurring.SetUser(userID)
	s.Goals.SetUser(userID)
	s.CategoryBudgets.SetUser(userID)
	s.Budget.SetUser(userID)
	s.Settings.SetUser(userID)
}

// StartRealtimeSync opens every push subscription. Runs after migration has
// completed so bulk writes never interleave with live snapshots.
func (s *Stores) StartRealtimeSync(ctx context.Context) error {
	if err := s.Transactions.StartRealtimeSync(ctx); err != nil {
		return err
	}
	if err := s.Recurring.StartRealtimeSync(ctx); err != nil {
		return err
	}
	if err := s.Goals.StartRealtimeSync(ctx); err != nil {
		return err
	}
	if err := s.CategoryBudgets.StartRealtimeSync(ctx); err != nil {
		return err
	}
	if err := s.Budget.StartRealtimeSync(ctx); err != nil {
		return err
	}
	return s.Settings.StartRealtimeSync(ctx)
}

// StopRealtimeSync tears down every push subscription.
func (s *Stores) StopRealtimeSync() {
	s.Transactions.StopRealtimeSync()
	s.Recurring.StopRealtimeSync()
	s.Goals.StopRealtimeSync()
	s.CategoryBudgets.StopRealtimeSync()
	s.Budget.StopRealtimeSync()
	s.Settings.StopRealtimeSync()
}

// Reset clears all in-memory state and subscriptions on sign-out, leaving
// the durable cache untouched.
func (s *Stores) Reset() {
	s.Transactions.Reset()
	s.Recurring.Reset()
	s.Goals.Reset()
	s.CategoryBudgets.Reset()
	s.Budget.Reset()
	s.Settings.Reset()
}
