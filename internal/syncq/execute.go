package syncq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/desertthunder/ledgersync/internal/models"
)

// execute maps one (type, domain) pair onto exactly one gateway call.
// The payload alone must carry enough to replay the mutation.
func (e *Engine) execute(ctx context.Context, op models.SyncOperation) error {
	switch op.Domain {
	case models.DomainTransactions:
		var tx models.Transaction
		if op.Type != models.OpDelete {
			if err := json.Unmarshal(op.Payload, &tx); err != nil {
				return fmt.Errorf("malformed payload for %s: %w", op.ID, err)
			}
		}
		switch op.Type {
		case models.OpCreate:
			_, err := e.gateway.AddTransaction(ctx, op.UserID, tx)
			return err
		case models.OpUpdate:
			_, err := e.gateway.UpdateTransaction(ctx, op.UserID, op.TargetID, tx)
			return err
		case models.OpDelete:
			return e.gateway.DeleteTransaction(ctx, op.UserID, op.TargetID)
		}

	case models.DomainRecurring:
		var rt models.RecurringTransaction
		if op.Type != models.OpDelete {
			if err := json.Unmarshal(op.Payload, &rt); err != nil {
				return fmt.Errorf("malformed payload for %s: %w", op.ID, err)
			}
		}
		switch op.Type {
		case models.OpCreate:
			_, err := e.gateway.AddRecurring(ctx, op.UserID, rt)
			return err
		case models.OpUpdate:
			_, err := e.gateway.UpdateRecurring(ctx, op.UserID, op.TargetID, rt)
			return err
		case models.OpDelete:
			return e.gateway.DeleteRecurring(ctx, op.UserID, op.TargetID)
		}

	case models.DomainGoals:
		var g models.Goal
		if op.Type != models.OpDelete {
			if err := json.Unmarshal(op.Payload, &g); err != nil {
				return fmt.Errorf("malformed payload for %s: %w", op.ID, err)
			}
		}
		switch op.Type {
		case models.OpCreate:
			_, err := e.gateway.AddGoal(ctx, op.UserID, g)
			return err
		case models.OpUpdate:
			_, err := e.gateway.UpdateGoal(ctx, op.UserID, op.TargetID, g)
			return err
		case models.OpDelete:
			return e.gateway.DeleteGoal(ctx, op.UserID, op.TargetID)
		}

	case models.DomainCategoryBudgets:
		var cb models.CategoryBudget
		if op.Type != models.OpDelete {
			if err := json.Unmarshal(op.Payload, &cb); err != nil {
				return fmt.Errorf("malformed payload for %s: %w", op.ID, err)
			}
		}
		switch op.Type {
		case models.OpCreate:
			_, err := e.gateway.AddCategoryBudget(ctx, op.UserID, cb)
			return err
		case models.OpUpdate:
			_, err := e.gateway.UpdateCategoryBudget(ctx, op.UserID, op.TargetID, cb)
			return err
		case models.OpDelete:
			return e.gateway.DeleteCategoryBudget(ctx, op.UserID, op.TargetID)
		}

	case models.DomainBudget:
		// Singleton: create and update both upsert; delete is not a
		// supported mutation for the overall budget.
		var b models.Budget
		if err := json.Unmarshal(op.Payload, &b); err != nil {
			return fmt.Errorf("malformed payload for %s: %w", op.ID, err)
		}
		_, err := e.gateway.PutBudget(ctx, op.UserID, b)
		return err

	case models.DomainSettings:
		var s models.Settings
		if err := json.Unmarshal(op.Payload, &s); err != nil {
			return fmt.Errorf("malformed payload for %s: %w", op.ID, err)
		}
		_, err := e.gateway.PutSettings(ctx, op.UserID, s)
		return err
	}

	return fmt.Errorf("unsupported operation %s on domain %s", op.Type, op.Domain)
}
