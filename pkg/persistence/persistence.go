// Package persistence provides the data storage abstraction layer for the
// work-order workflow engine.
package persistence

import (
	"context"
	"time"

	"github.com/ccmanuelf/kpi-operations-sub011/pkg/models"
)

// Persistence aggregates the engine's repositories behind a single
// backend-selectable surface.
type Persistence interface {
	WorkOrders() WorkOrderRepository
	Configs() WorkflowConfigRepository
	TransitionLog() TransitionLogRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkOrderRepository stores the engine-owned slice of work orders. Every
// operation is tenant-scoped; a work order is never visible outside its
// tenant.
type WorkOrderRepository interface {
	Create(ctx context.Context, order *models.WorkOrder) error
	GetByID(ctx context.Context, tenantID, id string) (*models.WorkOrder, error)

	// ApplyTransition commits one validated transition atomically: the
	// CAS-guarded status swap, any first-entry lifecycle timestamps, and the
	// log entry. Returns ErrTransitionConflict when the guard does not match,
	// ErrDuplicateIdempotencyKey when the entry's key was already used for
	// this work order.
	ApplyTransition(ctx context.Context, tenantID string, change *TransitionChange) error

	// CountByStatus returns the number of work orders per current status.
	// Orders that never transitioned are not counted.
	CountByStatus(ctx context.Context, tenantID string) (map[models.Status]int64, error)

	// TenantIDs lists every tenant that owns at least one work order.
	TenantIDs(ctx context.Context) ([]string, error)
}

// WorkflowConfigRepository stores versioned tenant workflow configurations.
// Versions are immutable once written; Put always creates the next version.
type WorkflowConfigRepository interface {
	GetActive(ctx context.Context, tenantID string) (*models.WorkflowConfig, error)
	GetVersion(ctx context.Context, tenantID string, version int64) (*models.WorkflowConfig, error)
	Put(ctx context.Context, config *models.WorkflowConfig) (int64, error)
}

// TransitionLogRepository reads the append-only audit trail. Entries are only
// ever written through WorkOrderRepository.ApplyTransition so the status swap
// and its log entry share one transaction; no update or delete surface exists.
type TransitionLogRepository interface {
	// ListForWorkOrder returns the work order's full history in append order.
	ListForWorkOrder(ctx context.Context, tenantID, workOrderID string) ([]*models.TransitionLogEntry, error)

	// LatestForWorkOrder returns the most recent entry, or (nil, nil) when the
	// work order has no history yet.
	LatestForWorkOrder(ctx context.Context, tenantID, workOrderID string) (*models.TransitionLogEntry, error)

	// FindByIdempotencyKey returns the entry previously appended under the
	// given key, or (nil, nil) when the key was never used.
	FindByIdempotencyKey(ctx context.Context, tenantID, workOrderID, key string) (*models.TransitionLogEntry, error)

	// ListByTenant streams a tenant's entries within the time window in
	// occurrence order, without materializing the full range.
	ListByTenant(ctx context.Context, tenantID string, window TimeRange) (TransitionIterator, error)
}

// TransitionIterator is a lazy cursor over transition log entries. Callers
// must Close it and check Err after the loop.
type TransitionIterator interface {
	Next() bool
	Entry() *models.TransitionLogEntry
	Err() error
	Close() error
}

// TimeRange bounds a log scan. A zero From or To leaves that side unbounded;
// From is inclusive, To exclusive.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// TransitionChange carries the full effect of one validated transition. The
// executor computes it; the repository persists it atomically.
type TransitionChange struct {
	WorkOrderID string

	// ExpectedStatus is the optimistic concurrency guard: the update only
	// applies while the stored current_status still equals it. Nil matches a
	// work order that has never transitioned.
	ExpectedStatus *models.Status
	NewStatus      models.Status

	// Lifecycle timestamps to populate on first entry into a tracked phase.
	// Nil leaves the stored value untouched; a set value only lands if the
	// column is still null.
	SetReceivedAt   *time.Time
	SetDispatchedAt *time.Time
	SetShippedAt    *time.Time
	SetClosedAt     *time.Time

	Entry *models.TransitionLogEntry
}
