package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ccmanuelf/kpi-operations-sub011/pkg/models"
	"github.com/ccmanuelf/kpi-operations-sub011/pkg/persistence"
	"github.com/ccmanuelf/kpi-operations-sub011/pkg/workflow"
)

// Transition is the application service in front of the engine: work-order
// registration, transition submission, history and allowed-target lookups.
type Transition struct {
	executor    *workflow.Executor
	persistence persistence.Persistence
	validator   *workflow.Validator
}

func NewTransition(executor *workflow.Executor, p persistence.Persistence) *Transition {
	return &Transition{
		executor:    executor,
		persistence: p,
		validator:   workflow.NewValidator(),
	}
}

// HealthCheck checks the health of the persistence layer.
func (t *Transition) HealthCheck(ctx context.Context) (string, bool) {
	if t.persistence == nil {
		return "Persistence layer not initialized", false
	}

	err := t.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

// RegisterWorkOrderRequest carries the engine-relevant fields of a new work
// order. Everything else belongs to the dashboard's CRUD layer.
type RegisterWorkOrderRequest struct {
	TenantID  string
	Reference string
}

// RegisterWorkOrder creates the row the engine operates on. The work order
// starts without a status; only the executor ever writes status fields.
func (t *Transition) RegisterWorkOrder(ctx context.Context, req RegisterWorkOrderRequest) (*models.WorkOrder, error) {
	tenantID := strings.TrimSpace(req.TenantID)
	if tenantID == "" {
		return nil, ErrEmptyTenantID
	}

	reference := strings.TrimSpace(req.Reference)
	if reference == "" {
		return nil, ErrEmptyReference
	}

	now := time.Now().UTC()
	order := &models.WorkOrder{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Reference: reference,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := t.persistence.WorkOrders().Create(ctx, order); err != nil {
		return nil, err
	}

	return order, nil
}

// ExecuteTransitionRequest is the inbound transition contract. Actor identity
// and trigger source are always caller-supplied, never inferred.
type ExecuteTransitionRequest struct {
	TenantID       string
	WorkOrderID    string
	TargetStatus   string
	ActorID        string
	TriggerSource  string
	Notes          string
	IdempotencyKey string
}

// Execute submits one transition through the engine.
func (t *Transition) Execute(ctx context.Context, req ExecuteTransitionRequest) (*workflow.Result, error) {
	if strings.TrimSpace(req.TenantID) == "" {
		return nil, ErrEmptyTenantID
	}

	if strings.TrimSpace(req.WorkOrderID) == "" {
		return nil, ErrEmptyWorkOrderID
	}

	if strings.TrimSpace(req.TargetStatus) == "" {
		return nil, ErrEmptyTargetStatus
	}

	if strings.TrimSpace(req.ActorID) == "" {
		return nil, ErrEmptyActorID
	}

	return t.executor.Execute(ctx, workflow.ExecuteRequest{
		TenantID:       strings.TrimSpace(req.TenantID),
		WorkOrderID:    strings.TrimSpace(req.WorkOrderID),
		TargetStatus:   models.Status(req.TargetStatus),
		ActorID:        strings.TrimSpace(req.ActorID),
		Trigger:        models.TriggerSource(strings.ToLower(strings.TrimSpace(req.TriggerSource))),
		Notes:          req.Notes,
		IdempotencyKey: strings.TrimSpace(req.IdempotencyKey),
	})
}

// GetWorkOrder fetches one work order within its tenant scope.
func (t *Transition) GetWorkOrder(ctx context.Context, tenantID, workOrderID string) (*models.WorkOrder, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, ErrEmptyTenantID
	}

	if strings.TrimSpace(workOrderID) == "" {
		return nil, ErrEmptyWorkOrderID
	}

	return t.persistence.WorkOrders().GetByID(ctx, tenantID, workOrderID)
}

// AllowedTargets lists the statuses the work order may move to next under the
// tenant's active configuration, for UI dropdowns.
func (t *Transition) AllowedTargets(ctx context.Context, tenantID, workOrderID string) ([]models.Status, error) {
	order, err := t.GetWorkOrder(ctx, tenantID, workOrderID)
	if err != nil {
		return nil, err
	}

	config, err := t.executor.ActiveConfig(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	return t.validator.AllowedTargets(config, order.CurrentStatus), nil
}

// History returns the work order's transition log in append order.
func (t *Transition) History(ctx context.Context, tenantID, workOrderID string) ([]*models.TransitionLogEntry, error) {
	if _, err := t.GetWorkOrder(ctx, tenantID, workOrderID); err != nil {
		return nil, err
	}

	return t.persistence.TransitionLog().ListForWorkOrder(ctx, tenantID, workOrderID)
}
