package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all backends must use.
var (
	// ErrWorkOrderNotFound indicates no work order exists for the tenant with
	// the given identifier.
	ErrWorkOrderNotFound = errors.New("work order not found")

	// ErrWorkOrderAlreadyExists indicates a work order with the same
	// identifier already exists.
	ErrWorkOrderAlreadyExists = errors.New("work order already exists")

	// ErrConfigNotFound indicates the tenant has no stored workflow
	// configuration.
	ErrConfigNotFound = errors.New("workflow configuration not found")

	// ErrConfigVersionNotFound indicates the requested configuration version
	// does not exist for the tenant.
	ErrConfigVersionNotFound = errors.New("workflow configuration version not found")

	// ErrTransitionConflict indicates the work order's current status changed
	// between read and conditional update; the caller must re-read and
	// resubmit.
	ErrTransitionConflict = errors.New("work order status changed concurrently")

	// ErrDuplicateIdempotencyKey indicates a log entry with the same
	// idempotency key already exists for the work order.
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already used")
)

// WorkOrderError wraps work-order storage errors with operation context.
type WorkOrderError struct {
	Op          string // Operation being performed (e.g. "GetByID", "ApplyTransition")
	TenantID    string
	WorkOrderID string
	Err         error
}

func (e *WorkOrderError) Error() string {
	return fmt.Sprintf("%s failed for work order %s (tenant %s): %v", e.Op, e.WorkOrderID, e.TenantID, e.Err)
}

func (e *WorkOrderError) Unwrap() error {
	return e.Err
}

func (e *WorkOrderError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewWorkOrderError creates a new work-order error with context.
func NewWorkOrderError(op, tenantID, workOrderID string, err error) *WorkOrderError {
	return &WorkOrderError{
		Op:          op,
		TenantID:    tenantID,
		WorkOrderID: workOrderID,
		Err:         err,
	}
}

// ConfigError wraps configuration storage errors with operation context.
type ConfigError struct {
	Op       string
	TenantID string
	Version  int64 // 0 when the operation is not version-specific
	Err      error
}

func (e *ConfigError) Error() string {
	if e.Version > 0 {
		return fmt.Sprintf("%s failed for config version %d (tenant %s): %v", e.Op, e.Version, e.TenantID, e.Err)
	}

	return fmt.Sprintf("%s failed for config (tenant %s): %v", e.Op, e.TenantID, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func (e *ConfigError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewConfigError creates a new configuration error with context.
func NewConfigError(op, tenantID string, version int64, err error) *ConfigError {
	return &ConfigError{
		Op:       op,
		TenantID: tenantID,
		Version:  version,
		Err:      err,
	}
}

// IsWorkOrderNotFound checks if an error indicates a missing work order.
func IsWorkOrderNotFound(err error) bool {
	return errors.Is(err, ErrWorkOrderNotFound)
}

// IsWorkOrderAlreadyExists checks if an error indicates a duplicate work order.
func IsWorkOrderAlreadyExists(err error) bool {
	return errors.Is(err, ErrWorkOrderAlreadyExists)
}

// IsConfigNotFound checks if an error indicates a tenant without stored
// configuration.
func IsConfigNotFound(err error) bool {
	return errors.Is(err, ErrConfigNotFound)
}

// IsConfigVersionNotFound checks if an error indicates a missing configuration
// version.
func IsConfigVersionNotFound(err error) bool {
	return errors.Is(err, ErrConfigVersionNotFound)
}

// IsTransitionConflict checks if an error indicates a lost optimistic
// concurrency race.
func IsTransitionConflict(err error) bool {
	return errors.Is(err, ErrTransitionConflict)
}

// IsDuplicateIdempotencyKey checks if an error indicates idempotency key
// reuse.
func IsDuplicateIdempotencyKey(err error) bool {
	return errors.Is(err, ErrDuplicateIdempotencyKey)
}
