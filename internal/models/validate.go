package models

import (
	"fmt"

	"github.com/desertthunder/ledgersync/internal/shared"
)

// ValidateTransaction checks transaction fields before any local or remote write.
//
// A validation failure returns immediately to the caller with no side effects
// on the cache or the sync queue.
func ValidateTransaction(tx Transaction) error {
	if err := validateAmount("amount", tx.Amount); err != nil {
		return err
	}
	if tx.Category == "" {
		return fmt.Errorf("%w: category is required", shared.ErrValidation)
	}
	if tx.Type != TransactionIncome && tx.Type != TransactionExpense {
		return fmt.Errorf("%w: type must be income or expense, got %q", shared.ErrValidation, tx.Type)
	}
	return nil
}

// ValidateRecurring checks recurring transaction fields.
func ValidateRecurring(rt RecurringTransaction) error {
	if err := validateAmount("amount", rt.Amount); err != nil {
		return err
	}
	if rt.Category == "" {
		return fmt.Errorf("%w: category is required", shared.ErrValidation)
	}
	if rt.Type != TransactionIncome && rt.Type != TransactionExpense {
		return fmt.Errorf("%w: type must be income or expense, got %q", shared.ErrValidation, rt.Type)
	}
	switch rt.Frequency {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
	default:
		return fmt.Errorf("%w: unknown frequency %q", shared.ErrValidation, rt.Frequency)
	}
	return nil
}

// ValidateBudget checks the singleton budget document.
func ValidateBudget(b Budget) error {
	return validateAmount("monthly_limit", b.MonthlyLimit)
}

// ValidateCategoryBudget checks category budget fields.
func ValidateCategoryBudget(cb CategoryBudget) error {
	if cb.Category == "" {
		return fmt.Errorf("%w: category is required", shared.ErrValidation)
	}
	if cb.Period != PeriodMonthly && cb.Period != PeriodWeekly {
		return fmt.Errorf("%w: period must be monthly or weekly, got %q", shared.ErrValidation, cb.Period)
	}
	return validateAmount("limit", cb.Limit)
}

// ValidateGoal checks goal fields.
func ValidateGoal(g Goal) error {
	if g.Name == "" {
		return fmt.Errorf("%w: name is required", shared.ErrValidation)
	}
	if err := validateAmount("target_amount", g.TargetAmount); err != nil {
		return err
	}
	if g.CurrentAmount < 0 {
		return fmt.Errorf("%w: current_amount must not be negative", shared.ErrValidation)
	}
	if !shared.HasCentPrecision(g.CurrentAmount) {
		return fmt.Errorf("%w: current_amount must have at most two decimal places", shared.ErrValidation)
	}
	return nil
}

// ValidateSettings checks the settings document.
func ValidateSettings(s Settings) error {
	if len(s.Currency) != 3 {
		return fmt.Errorf("%w: currency must be a 3-letter code, got %q", shared.ErrValidation, s.Currency)
	}
	return nil
}

func validateAmount(field string, amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: %s must be greater than zero", shared.ErrValidation, field)
	}
	if !shared.HasCentPrecision(amount) {
		return fmt.Errorf("%w: %s must have at most two decimal places", shared.ErrValidation, field)
	}
	return nil
}
