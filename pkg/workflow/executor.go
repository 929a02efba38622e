// Package workflow implements the configurable work-order state machine:
// transition validation, atomic execution with audit logging, configuration
// graph validation and the built-in default workflow.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ccmanuelf/kpi-operations-sub011/pkg/events"
	"github.com/ccmanuelf/kpi-operations-sub011/pkg/models"
	"github.com/ccmanuelf/kpi-operations-sub011/pkg/persistence"
)

// Publisher delivers domain events after a transition has committed. Delivery
// is best effort: the transition outcome never depends on the publisher.
type Publisher interface {
	Publish(ctx context.Context, tenantID string, event any) error
}

// ExecuteRequest is a single transition request as supplied by the caller.
// Actor identity and trigger source are never inferred here.
type ExecuteRequest struct {
	TenantID       string
	WorkOrderID    string
	TargetStatus   models.Status
	ActorID        string
	Trigger        models.TriggerSource
	Notes          string
	IdempotencyKey string
}

// Result reports a committed (or replayed) transition: the work order's
// post-transition state, the log entry recording it, and the configuration
// version that authorized it. Replayed is true when the idempotency key
// matched an earlier commit and no new transition was executed.
type Result struct {
	WorkOrder     *models.WorkOrder
	Entry         *models.TransitionLogEntry
	ConfigVersion int64
	Replayed      bool
}

// Executor orchestrates transitions: it validates against the tenant's active
// configuration, applies the status change and log append as one atomic unit,
// stamps lifecycle timestamps on first phase entry, and emits a status-changed
// event after commit.
type Executor struct {
	persistence persistence.Persistence
	validator   *Validator
	publisher   Publisher
	logger      *slog.Logger

	// now is swapped out by tests for deterministic elapsed times.
	now func() time.Time
}

func NewExecutor(p persistence.Persistence, publisher Publisher, logger *slog.Logger) *Executor {
	return &Executor{
		persistence: p,
		validator:   NewValidator(),
		publisher:   publisher,
		logger:      logger.With("module", "workflow_executor"),
		now:         time.Now,
	}
}

// Execute runs one transition end to end. Rejections (invalid target, no-op,
// conflict) carry no side effects: the losing request never reaches the log.
func (e *Executor) Execute(ctx context.Context, req ExecuteRequest) (*Result, error) {
	logger := e.logger.With(
		"tenant_id", req.TenantID,
		"work_order_id", req.WorkOrderID,
		"target_status", req.TargetStatus,
	)

	if !req.Trigger.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTriggerSource, req.Trigger)
	}

	target := models.NormalizeStatus(string(req.TargetStatus))

	if req.IdempotencyKey != "" {
		existing, err := e.persistence.TransitionLog().FindByIdempotencyKey(ctx, req.TenantID, req.WorkOrderID, req.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("failed to check idempotency key: %w", err)
		}

		if existing != nil {
			logger.InfoContext(ctx, "Replaying previously committed transition", "idempotency_key", req.IdempotencyKey)

			return e.replayedResult(ctx, req, existing)
		}
	}

	order, err := e.persistence.WorkOrders().GetByID(ctx, req.TenantID, req.WorkOrderID)
	if err != nil {
		return nil, err
	}

	config, err := e.ActiveConfig(ctx, req.TenantID)
	if err != nil {
		return nil, err
	}

	if order.CurrentStatus != nil && *order.CurrentStatus == target {
		return nil, &NoOpTransitionError{Status: target}
	}

	if !e.validator.IsAllowed(config, order.CurrentStatus, target) {
		return nil, &InvalidTransitionError{
			From:    order.CurrentStatus,
			To:      target,
			Allowed: e.validator.AllowedTargets(config, order.CurrentStatus),
		}
	}

	latest, err := e.persistence.TransitionLog().LatestForWorkOrder(ctx, req.TenantID, req.WorkOrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load latest log entry: %w", err)
	}

	now := e.now().UTC()

	entry := &models.TransitionLogEntry{
		ID:             uuid.Must(uuid.NewV7()).String(),
		WorkOrderID:    req.WorkOrderID,
		TenantID:       req.TenantID,
		FromStatus:     order.CurrentStatus,
		ToStatus:       target,
		ActorID:        req.ActorID,
		OccurredAt:     now,
		Trigger:        req.Trigger,
		Notes:          req.Notes,
		ConfigVersion:  config.Version,
		IdempotencyKey: req.IdempotencyKey,
	}

	if latest != nil {
		entry.ElapsedSincePreviousMs = clampMs(now.Sub(latest.OccurredAt))
	}

	change := &persistence.TransitionChange{
		WorkOrderID:    req.WorkOrderID,
		ExpectedStatus: order.CurrentStatus,
		NewStatus:      target,
		Entry:          entry,
	}

	stampPhases(config, order, target, now, change)
	stampClosure(config, order, target, now, change)

	entry.ElapsedSinceReceivedMs = elapsedSinceReceived(order, change, now)

	if err := e.persistence.WorkOrders().ApplyTransition(ctx, req.TenantID, change); err != nil {
		// The pre-check above raced a concurrent commit with the same key.
		if req.IdempotencyKey != "" && persistence.IsDuplicateIdempotencyKey(err) {
			existing, findErr := e.persistence.TransitionLog().FindByIdempotencyKey(ctx, req.TenantID, req.WorkOrderID, req.IdempotencyKey)
			if findErr == nil && existing != nil {
				return e.replayedResult(ctx, req, existing)
			}
		}

		return nil, err
	}

	updated := transitionedCopy(order, target, now, change)

	logger.InfoContext(ctx, "Transition committed",
		"from_status", statusLabel(entry.FromStatus),
		"to_status", target,
		"actor_id", req.ActorID,
		"trigger_source", req.Trigger,
		"config_version", config.Version,
	)

	e.publish(ctx, logger, entry)

	return &Result{
		WorkOrder:     updated,
		Entry:         entry,
		ConfigVersion: config.Version,
	}, nil
}

// ActiveConfig loads the tenant's active configuration, falling back to the
// built-in default when the tenant has not configured a workflow yet. New
// tenants stay usable without a configuration step.
func (e *Executor) ActiveConfig(ctx context.Context, tenantID string) (*models.WorkflowConfig, error) {
	config, err := e.persistence.Configs().GetActive(ctx, tenantID)
	if err != nil {
		if persistence.IsConfigNotFound(err) {
			e.logger.DebugContext(ctx, "No workflow configuration, using built-in default", "tenant_id", tenantID)

			return DefaultConfig(tenantID), nil
		}

		return nil, err
	}

	return config, nil
}

func (e *Executor) replayedResult(ctx context.Context, req ExecuteRequest, entry *models.TransitionLogEntry) (*Result, error) {
	order, err := e.persistence.WorkOrders().GetByID(ctx, req.TenantID, req.WorkOrderID)
	if err != nil {
		return nil, err
	}

	return &Result{
		WorkOrder:     order,
		Entry:         entry,
		ConfigVersion: entry.ConfigVersion,
		Replayed:      true,
	}, nil
}

func (e *Executor) publish(ctx context.Context, logger *slog.Logger, entry *models.TransitionLogEntry) {
	if e.publisher == nil {
		return
	}

	event := events.WorkOrderStatusChanged{
		BaseEvent:              events.NewBaseEvent(events.WorkOrderStatusChangedEvent, entry.TenantID),
		WorkOrderID:            entry.WorkOrderID,
		FromStatus:             entry.FromStatus,
		ToStatus:               entry.ToStatus,
		ActorID:                entry.ActorID,
		OccurredAt:             entry.OccurredAt,
		TriggerSource:          string(entry.Trigger),
		ElapsedSincePreviousMs: entry.ElapsedSincePreviousMs,
		ElapsedSinceReceivedMs: entry.ElapsedSinceReceivedMs,
		ConfigVersion:          entry.ConfigVersion,
	}

	if err := e.publisher.Publish(ctx, entry.TenantID, event); err != nil {
		logger.WarnContext(ctx, "Failed to publish status change event", "error", err)
	}
}

// stampPhases proposes lifecycle timestamps for every tracked phase whose
// marker status is being entered for the first time.
func stampPhases(config *models.WorkflowConfig, order *models.WorkOrder, target models.Status, now time.Time, change *persistence.TransitionChange) {
	for _, phase := range []models.Phase{models.PhaseReceived, models.PhaseDispatched, models.PhaseShipped} {
		marker, ok := config.PhaseStatus(phase)
		if !ok || marker != target || order.PhaseTimestamp(phase) != nil {
			continue
		}

		stamp := now

		switch phase {
		case models.PhaseReceived:
			change.SetReceivedAt = &stamp
		case models.PhaseDispatched:
			change.SetDispatchedAt = &stamp
		case models.PhaseShipped:
			change.SetShippedAt = &stamp
		}
	}
}

// stampClosure sets the closure timestamp when the tenant's closure trigger
// fires. Under MANUAL the engine never sets it.
func stampClosure(config *models.WorkflowConfig, order *models.WorkOrder, target models.Status, now time.Time, change *persistence.TransitionChange) {
	if order.ClosedAt != nil {
		return
	}

	var phase models.Phase

	switch config.ClosureTrigger {
	case models.ClosureAtShipment:
		phase = models.PhaseShipped
	case models.ClosureAtCompletion:
		phase = models.PhaseCompleted
	default:
		return
	}

	marker, ok := config.PhaseStatus(phase)
	if !ok || marker != target {
		return
	}

	stamp := now
	change.SetClosedAt = &stamp
}

// elapsedSinceReceived measures from the work order's received timestamp,
// including the one this very transition is stamping, and is zero when no
// reference point exists.
func elapsedSinceReceived(order *models.WorkOrder, change *persistence.TransitionChange, now time.Time) int64 {
	received := order.ReceivedAt
	if received == nil {
		received = change.SetReceivedAt
	}

	if received == nil {
		return 0
	}

	return clampMs(now.Sub(*received))
}

// transitionedCopy builds the post-commit work order in memory, mirroring
// exactly what ApplyTransition persisted.
func transitionedCopy(order *models.WorkOrder, target models.Status, now time.Time, change *persistence.TransitionChange) *models.WorkOrder {
	updated := *order
	updated.PreviousStatus = order.CurrentStatus
	updated.CurrentStatus = &target
	updated.UpdatedAt = now

	if change.SetReceivedAt != nil {
		updated.ReceivedAt = change.SetReceivedAt
	}

	if change.SetDispatchedAt != nil {
		updated.DispatchedAt = change.SetDispatchedAt
	}

	if change.SetShippedAt != nil {
		updated.ShippedAt = change.SetShippedAt
	}

	if change.SetClosedAt != nil {
		updated.ClosedAt = change.SetClosedAt
	}

	return &updated
}

func clampMs(d time.Duration) int64 {
	ms := d.Milliseconds()
	if ms < 0 {
		return 0
	}

	return ms
}

func statusLabel(s *models.Status) string {
	if s == nil {
		return "(unset)"
	}

	return string(*s)
}
