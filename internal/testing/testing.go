// package testing contains shared testing utilities
package testing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/desertthunder/ledgersync/internal/models"
	"github.com/desertthunder/ledgersync/internal/services"
	"github.com/desertthunder/ledgersync/internal/shared"
)

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// StaticOnline is a fixed-answer connectivity probe for store tests.
type StaticOnline bool

func (s StaticOnline) IsOnline() bool { return bool(s) }

// MemoryCache is an in-memory cache.Store for tests that do not need SQLite.
type MemoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{data: map[string][]byte{}}
}

func (m *MemoryCache) Get(key string, v any) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, v)
}

func (m *MemoryCache) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[key] = raw
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Remove(key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Clear() error {
	m.mu.Lock()
	m.data = map[string][]byte{}
	m.mu.Unlock()
	return nil
}

func (m *MemoryCache) Keys() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys, nil
}

// FakeGateway is an in-memory test double for [services.Gateway].
//
// It enforces the backend's duplicate-identity and missing-record semantics
// and can simulate transport failures (FailNetwork) or a scripted number of
// remote errors (FailNextWrites). Calls counts every write attempt.
type FakeGateway struct {
	mu sync.Mutex

	transactions    map[string]map[string]models.Transaction
	recurring       map[string]map[string]models.RecurringTransaction
	goals           map[string]map[string]models.Goal
	categoryBudgets map[string]map[string]models.CategoryBudget
	budgets         map[string]models.Budget
	settings        map[string]models.Settings

	// FailNetwork makes every call fail as if the backend was unreachable.
	FailNetwork bool
	// FailNextWrites makes the next N write calls fail with a remote error.
	FailNextWrites int
	// HealthErr is returned from Health when set.
	HealthErr error
	// Calls counts write attempts (adds, updates, deletes, puts).
	Calls int
}

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		transactions:    map[string]map[string]models.Transaction{},
		recurring:       map[string]map[string]models.RecurringTransaction{},
		goals:           map[string]map[string]models.Goal{},
		categoryBudgets: map[string]map[string]models.CategoryBudget{},
		budgets:         map[string]models.Budget{},
		settings:        map[string]models.Settings{},
	}
}

var _ services.Gateway = (*FakeGateway)(nil)

// checkWrite applies the failure toggles to one write attempt. Callers hold mu.
func (f *FakeGateway) checkWrite() error {
	f.Calls++
	if f.FailNetwork {
		return fmt.Errorf("%w: connection refused", shared.ErrNetwork)
	}
	if f.FailNextWrites > 0 {
		f.FailNextWrites--
		return &services.APIError{StatusCode: 500, Code: services.CodeInternal, Message: "scripted failure"}
	}
	return nil
}

func (f *FakeGateway) checkRead() error {
	if f.FailNetwork {
		return fmt.Errorf("%w: connection refused", shared.ErrNetwork)
	}
	return nil
}

func (f *FakeGateway) Health(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailNetwork {
		return fmt.Errorf("%w: connection refused", shared.ErrNetwork)
	}
	return f.HealthErr
}

func duplicateErr(id string) error {
	return &services.APIError{StatusCode: 409, Code: services.CodeDuplicate, Message: "id " + id + " already exists"}
}

func notFoundErr(id string) error {
	return &services.APIError{StatusCode: 404, Code: services.CodeNotFound, Message: "id " + id + " not found"}
}

func (f *FakeGateway) AddTransaction(ctx context.Context, userID string, tx models.Transaction) (models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkWrite(); err != nil {
		return models.Transaction{}, err
	}
	if f.transactions[userID] == nil {
		f.transactions[userID] = map[string]models.Transaction{}
	}
	if _, exists := f.transactions[userID][tx.ID]; exists {
		return models.Transaction{}, duplicateErr(tx.ID)
	}
	f.transactions[userID][tx.ID] = tx
	return tx, nil
}

func (f *FakeGateway) UpdateTransaction(ctx context.Context, userID, id string, tx models.Transaction) (models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkWrite(); err != nil {
		return models.Transaction{}, err
	}
	if _, exists := f.transactions[userID][id]; !exists {
		return models.Transaction{}, notFoundErr(id)
	}
	tx.ID = id
	f.transactions[userID][id] = tx
	return tx, nil
}

func (f *FakeGateway) DeleteTransaction(ctx context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkWrite(); err != nil {
		return err
	}
	if _, exists := f.transactions[userID][id]; !exists {
		return notFoundErr(id)
	}
	delete(f.transactions[userID], id)
	return nil
}

func (f *FakeGateway) GetTransactions(ctx context.Context, userID string) ([]models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkRead(); err != nil {
		return nil, err
	}
	out := make([]models.Transaction, 0, len(f.transactions[userID]))
	for _, tx := range f.transactions[userID] {
		out = append(out, tx)
	}
	return out, nil
}

func (f *FakeGateway) SubscribeTransactions(ctx context.Context, userID string, cb func([]models.Transaction)) (func(), error) {
	items, err := f.GetTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}
	cb(items)
	return func() {}, nil
}

func (f *FakeGateway) AddRecurring(ctx context.Context, userID string, rt models.RecurringTransaction) (models.RecurringTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkWrite(); err != nil {
		return models.RecurringTransaction{}, err
	}
	if f.recurring[userID] == nil {
		f.recurring[userID] = map[string]models.RecurringTransaction{}
	}
	if _, exists := f.recurring[userID][rt.ID]; exists {
		return models.RecurringTransaction{}, duplicateErr(rt.ID)
	}
	f.recurring[userID][rt.ID] = rt
	return rt, nil
}

func (f *FakeGateway) UpdateRecurring(ctx context.Context, userID, id string, rt models.RecurringTransaction) (models.RecurringTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkWrite(); err != nil {
		return models.RecurringTransaction{}, err
	}
	if _, exists := f.recurring[userID][id]; !exists {
		return models.RecurringTransaction{}, notFoundErr(id)
	}
	rt.ID = id
	f.recurring[userID][id] = rt
	return rt, nil
}

func (f *FakeGateway) DeleteRecurring(ctx context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkWrite(); err != nil {
		return err
	}
	if _, exists := f.recurring[userID][id]; !exists {
		return notFoundErr(id)
	}
	delete(f.recurring[userID], id)
	return nil
}

func (f *FakeGateway) GetRecurring(ctx context.Context, userID string) ([]models.RecurringTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkRead(); err != nil {
		return nil, err
	}
	out := make([]models.RecurringTransaction, 0, len(f.recurring[userID]))
	for _, rt := range f.recurring[userID] {
		out = append(out, rt)
	}
	return out, nil
}

func (f *FakeGateway) SubscribeRecurring(ctx context.Context, userID string, cb func([]models.RecurringTransaction)) (func(), error) {
	items, err := f.GetRecurring(ctx, userID)
	if err != nil {
		return nil, err
	}
	cb(items)
	return func() {}, nil
}

func (f *FakeGateway) AddGoal(ctx context.Context, userID string, g models.Goal) (models.Goal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkWrite(); err != nil {
		return models.Goal{}, err
	}
	if f.goals[userID] == nil {
		f.goals[userID] = map[string]models.Goal{}
	}
	if _, exists := f.goals[userID][g.ID]; exists {
		return models.Goal{}, duplicateErr(g.ID)
	}
	f.goals[userID][g.ID] = g
	return g, nil
}

func (f *FakeGateway) UpdateGoal(ctx context.Context, userID, id string, g models.Goal) (models.Goal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkWrite(); err != nil {
		return models.Goal{}, err
	}
	if _, exists := f.goals[userID][id]; !exists {
		return models.Goal{}, notFoundErr(id)
	}
	g.ID = id
	f.goals[userID][id] = g
	return g, nil
}

func (f *FakeGateway) DeleteGoal(ctx context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkWrite(); err != nil {
		return err
	}
	if _, exists := f.goals[userID][id]; !exists {
		return notFoundErr(id)
	}
	delete(f.goals[userID], id)
	return nil
}

func (f *FakeGateway) GetGoals(ctx context.Context, userID string) ([]models.Goal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkRead(); err != nil {
		return nil, err
	}
	out := make([]models.Goal, 0, len(f.goals[userID]))
	for _, g := range f.goals[userID] {
		out = append(out, g)
	}
	return out, nil
}

func (f *FakeGateway) SubscribeGoals(ctx context.Context, userID string, cb func([]models.Goal)) (func(), error) {
	items, err := f.GetGoals(ctx, userID)
	if err != nil {
		return nil, err
	}
	cb(items)
	return func() {}, nil
}

func (f *FakeGateway) AddCategoryBudget(ctx context.Context, userID string, cb models.CategoryBudget) (models.CategoryBudget, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkWrite(); err != nil {
		return models.CategoryBudget{}, err
	}
	if f.categoryBudgets[userID] == nil {
		f.categoryBudgets[userID] = map[string]models.CategoryBudget{}
	}
	if _, exists := f.categoryBudgets[userID][cb.ID]; exists {
		return models.CategoryBudget{}, duplicateErr(cb.ID)
	}
	f.categoryBudgets[userID][cb.ID] = cb
	return cb, nil
}

func (f *FakeGateway) UpdateCategoryBudget(ctx context.Context, userID, id string, cb models.CategoryBudget) (models.CategoryBudget, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkWrite(); err != nil {
		return models.CategoryBudget{}, err
	}
	if _, exists := f.categoryBudgets[userID][id]; !exists {
		return models.CategoryBudget{}, notFoundErr(id)
	}
	cb.ID = id
	f.categoryBudgets[userID][id] = cb
	return cb, nil
}

func (f *FakeGateway) DeleteCategoryBudget(ctx context.Context, userID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkWrite(); err != nil {
		return err
	}
	if _, exists := f.categoryBudgets[userID][id]; !exists {
		return notFoundErr(id)
	}
	delete(f.categoryBudgets[userID], id)
	return nil
}

func (f *FakeGateway) GetCategoryBudgets(ctx context.Context, userID string) ([]models.CategoryBudget, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkRead(); err != nil {
		return nil, err
	}
	out := make([]models.CategoryBudget, 0, len(f.categoryBudgets[userID]))
	for _, cb := range f.categoryBudgets[userID] {
		out = append(out, cb)
	}
	return out, nil
}

func (f *FakeGateway) SubscribeCategoryBudgets(ctx context.Context, userID string, cb func([]models.CategoryBudget)) (func(), error) {
	items, err := f.GetCategoryBudgets(ctx, userID)
	if err != nil {
		return nil, err
	}
	cb(items)
	return func() {}, nil
}

func (f *FakeGateway) GetBudget(ctx context.Context, userID string) (models.Budget, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkRead(); err != nil {
		return models.Budget{}, err
	}
	b, ok := f.budgets[userID]
	if !ok {
		return models.Budget{}, notFoundErr("budget")
	}
	return b, nil
}

func (f *FakeGateway) PutBudget(ctx context.Context, userID string, b models.Budget) (models.Budget, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkWrite(); err != nil {
		return models.Budget{}, err
	}
	f.budgets[userID] = b
	return b, nil
}

func (f *FakeGateway) SubscribeBudget(ctx context.Context, userID string, cb func(models.Budget)) (func(), error) {
	b, err := f.GetBudget(ctx, userID)
	if err != nil {
		if services.IsNotFound(err) {
			return func() {}, nil
		}
		return nil, err
	}
	cb(b)
	return func() {}, nil
}

func (f *FakeGateway) GetSettings(ctx context.Context, userID string) (models.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkRead(); err != nil {
		return models.Settings{}, err
	}
	s, ok := f.settings[userID]
	if !ok {
		return models.Settings{}, notFoundErr("settings")
	}
	return s, nil
}

func (f *FakeGateway) PutSettings(ctx context.Context, userID string, s models.Settings) (models.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.checkWrite(); err != nil {
		return models.Settings{}, err
	}
	f.settings[userID] = s
	return s, nil
}

func (f *FakeGateway) SubscribeSettings(ctx context.Context, userID string, cb func(models.Settings)) (func(), error) {
	s, err := f.GetSettings(ctx, userID)
	if err != nil {
		if services.IsNotFound(err) {
			return func() {}, nil
		}
		return nil, err
	}
	cb(s)
	return func() {}, nil
}

// SeedTransaction inserts a transaction server-side, bypassing failure toggles.
func (f *FakeGateway) SeedTransaction(userID string, tx models.Transaction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.transactions[userID] == nil {
		f.transactions[userID] = map[string]models.Transaction{}
	}
	f.transactions[userID][tx.ID] = tx
}

// SeedGoal inserts a goal server-side, bypassing failure toggles.
func (f *FakeGateway) SeedGoal(userID string, g models.Goal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.goals[userID] == nil {
		f.goals[userID] = map[string]models.Goal{}
	}
	f.goals[userID][g.ID] = g
}

// SeedCategoryBudget inserts a category budget server-side.
func (f *FakeGateway) SeedCategoryBudget(userID string, cb models.CategoryBudget) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.categoryBudgets[userID] == nil {
		f.categoryBudgets[userID] = map[string]models.CategoryBudget{}
	}
	f.categoryBudgets[userID][cb.ID] = cb
}

// TransactionCount returns the number of stored transactions for userID.
func (f *FakeGateway) TransactionCount(userID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.transactions[userID])
}

// HasTransaction reports whether the transaction exists server-side.
func (f *FakeGateway) HasTransaction(userID, id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.transactions[userID][id]
	return ok
}

// ErrWriteFailed is returned by FWriter.
var ErrWriteFailed = errors.New("write failed")

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, ErrWriteFailed
}
