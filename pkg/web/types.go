// Package web provides HTTP request and response types for the workflow engine API.
package web

import (
	"time"

	"github.com/ccmanuelf/kpi-operations-sub011/pkg/models"
	"github.com/ccmanuelf/kpi-operations-sub011/pkg/workflow"
)

// RegisterWorkOrderRequest represents the request body for registering a work
// order with the engine. The dashboard's CRUD layer owns every other field of
// the entity.
type RegisterWorkOrderRequest struct {
	Reference string `json:"reference" validate:"required,min=1"`
}

// ExecuteTransitionRequest represents the request body for executing a status
// transition. Actor identity and trigger source are always caller-supplied.
type ExecuteTransitionRequest struct {
	TargetStatus   string `json:"target_status"             validate:"required"`
	ActorID        string `json:"actor_id"                  validate:"required"`
	TriggerSource  string `json:"trigger_source"            validate:"required,oneof=manual automatic bulk api import"`
	Notes          string `json:"notes,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// TransitionResponse represents a committed or replayed transition: the work
// order's post-transition state and the audit log entry recording it.
type TransitionResponse struct {
	WorkOrder     *models.WorkOrder          `json:"work_order"`
	Entry         *models.TransitionLogEntry `json:"entry"`
	ConfigVersion int64                      `json:"config_version"`
	Replayed      bool                       `json:"replayed"`
}

// TransformTransitionResponse transforms an engine result into its API response.
func TransformTransitionResponse(result *workflow.Result) TransitionResponse {
	return TransitionResponse{
		WorkOrder:     result.WorkOrder,
		Entry:         result.Entry,
		ConfigVersion: result.ConfigVersion,
		Replayed:      result.Replayed,
	}
}

// Configuration sources reported by ConfigResponse.
const (
	ConfigSourceStored  = "stored"
	ConfigSourceDefault = "default"
)

// ConfigResponse represents a workflow configuration version. Source reports
// whether a tenant-stored version or the built-in default served the request.
type ConfigResponse struct {
	TenantID  string                        `json:"tenant_id"`
	Version   int64                         `json:"version"`
	Source    string                        `json:"source"`
	Config    models.WorkflowConfigDocument `json:"config"`
	CreatedAt *time.Time                    `json:"created_at,omitempty"`
	UpdatedBy string                        `json:"updated_by,omitempty"`
}

// TransformConfigResponse transforms a workflow configuration into its API
// response, marking built-in default fallbacks.
func TransformConfigResponse(config *models.WorkflowConfig, fallback bool) ConfigResponse {
	response := ConfigResponse{
		TenantID:  config.TenantID,
		Version:   config.Version,
		Source:    ConfigSourceStored,
		Config:    config.Document(),
		UpdatedBy: config.UpdatedBy,
	}

	if fallback {
		response.Source = ConfigSourceDefault
	}

	if !config.CreatedAt.IsZero() {
		createdAt := config.CreatedAt
		response.CreatedAt = &createdAt
	}

	return response
}
