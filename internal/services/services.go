// package services defines the Gateway contract for the remote finance backend
//
// The backend is consumed, not owned: per-domain CRUD plus a push-style
// subscription per domain. The concrete implementation here speaks REST over
// HTTP; tests use the in-memory fake from internal/testing.
package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/desertthunder/ledgersync/internal/models"
	"github.com/desertthunder/ledgersync/internal/shared"
)

// Gateway defines the interface for the authoritative cloud backend.
//
// Every call takes the user identity explicitly; the gateway holds no session
// state. Subscribe methods deliver full authoritative snapshots and return an
// unsubscribe function.
type Gateway interface {
	// Health probes backend reachability. Used by the network monitor.
	Health(ctx context.Context) error

	AddTransaction(ctx context.Context, userID string, tx models.Transaction) (models.Transaction, error)
	UpdateTransaction(ctx context.Context, userID, id string, tx models.Transaction) (models.Transaction, error)
	DeleteTransaction(ctx context.Context, userID, id string) error
	GetTransactions(ctx context.Context, userID string) ([]models.Transaction, error)
	SubscribeTransactions(ctx context.Context, userID string, cb func([]models.Transaction)) (func(), error)

	AddRecurring(ctx context.Context, userID string, rt models.RecurringTransaction) (models.RecurringTransaction, error)
	UpdateRecurring(ctx context.Context, userID, id string, rt models.RecurringTransaction) (models.RecurringTransaction, error)
	DeleteRecurring(ctx context.Context, userID, id string) error
	GetRecurring(ctx context.Context, userID string) ([]models.RecurringTransaction, error)
	SubscribeRecurring(ctx context.Context, userID string, cb func([]models.RecurringTransaction)) (func(), error)

	AddGoal(ctx context.Context, userID string, g models.Goal) (models.Goal, error)
	UpdateGoal(ctx context.Context, userID, id string, g models.Goal) (models.Goal, error)
	DeleteGoal(ctx context.Context, userID, id string) error
	GetGoals(ctx context.Context, userID string) ([]models.Goal, error)
	SubscribeGoals(ctx context.Context, userID string, cb func([]models.Goal)) (func(), error)

	AddCategoryBudget(ctx context.Context, userID string, cb models.CategoryBudget) (models.CategoryBudget, error)
	UpdateCategoryBudget(ctx context.Context, userID, id string, cb models.CategoryBudget) (models.CategoryBudget, error)
	DeleteCategoryBudget(ctx context.Context, userID, id string) error
	GetCategoryBudgets(ctx context.Context, userID string) ([]models.CategoryBudget, error)
	SubscribeCategoryBudgets(ctx context.Context, userID string, cb func([]models.CategoryBudget)) (func(), error)

	// Budget is a singleton per user; Put upserts.
	GetBudget(ctx context.Context, userID string) (models.Budget, error)
	PutBudget(ctx context.Context, userID string, b models.Budget) (models.Budget, error)
	SubscribeBudget(ctx context.Context, userID string, cb func(models.Budget)) (func(), error)

	// Settings is a singleton per user; Put upserts.
	GetSettings(ctx context.Context, userID string) (models.Settings, error)
	PutSettings(ctx context.Context, userID string, s models.Settings) (models.Settings, error)
	SubscribeSettings(ctx context.Context, userID string, cb func(models.Settings)) (func(), error)
}

// Machine codes carried by APIError. The duplicate code is load-bearing: the
// sync and migration engines treat it as success/skip, never as failure.
const (
	CodeDuplicate = "duplicate"
	CodeNotFound  = "not_found"
	CodeInvalid   = "invalid"
	CodeInternal  = "internal"
)

// APIError is the tagged error type returned by the remote backend.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote error %s (status %d)", e.Code, e.StatusCode)
	}
	return fmt.Sprintf("remote error %s: %s", e.Code, e.Message)
}

// IsDuplicate reports whether err is the backend's duplicate-identity condition.
func IsDuplicate(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == CodeDuplicate || apiErr.StatusCode == 409
	}
	return errors.Is(err, shared.ErrDuplicate)
}

// IsNotFound reports whether err is the backend's missing-record condition.
func IsNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == CodeNotFound || apiErr.StatusCode == 404
	}
	return errors.Is(err, shared.ErrNotFound)
}

// IsNetwork reports whether err is a transport-level failure, meaning the
// backend was never reached and the operation is safe to retry untouched.
func IsNetwork(err error) bool {
	return errors.Is(err, shared.ErrNetwork) || errors.Is(err, shared.ErrOffline)
}
