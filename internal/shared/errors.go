package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig = fmt.Errorf("configuration not found")
	ErrInvalidConfig = fmt.Errorf("invalid configuration")

	// Validation errors (surfaced synchronously to the caller, never retried)
	ErrValidation = fmt.Errorf("validation failed")

	// Connectivity errors (trigger enqueue, never fatal to the caller)
	ErrOffline = fmt.Errorf("device is offline")
	ErrNetwork = fmt.Errorf("network request failed")

	// Remote errors
	ErrRemote    = fmt.Errorf("remote request failed")
	ErrDuplicate = fmt.Errorf("duplicate identity")
	ErrNotFound  = fmt.Errorf("not found")

	// Sync errors
	ErrDrainInProgress = fmt.Errorf("drain already in progress")

	// Migration errors
	ErrMigrationFatal = fmt.Errorf("migration aborted")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
