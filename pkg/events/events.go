// Package events defines the domain events emitted by the workflow engine.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/ccmanuelf/kpi-operations-sub011/pkg/models"
)

type EventType string

// Topic is the single bus topic every engine event flows through; consumers
// dispatch on the event_type metadata.
const Topic = "workflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	WorkOrderStatusChangedEvent     EventType = "workflow.workorder.status_changed"
	WorkflowConfigUpdatedEvent      EventType = "workflow.config.updated"
	StatusDistributionSnapshotEvent EventType = "workflow.analytics.snapshot"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	TenantID  string         `json:"tenant_id"`
	WorkerID  string         `json:"worker_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// WorkOrderStatusChanged is emitted after every committed transition. It
// carries everything downstream analytics consumers need without a read back
// into the engine.
type WorkOrderStatusChanged struct {
	BaseEvent

	WorkOrderID            string         `json:"work_order_id"`
	FromStatus             *models.Status `json:"from_status,omitempty"`
	ToStatus               models.Status  `json:"to_status"`
	ActorID                string         `json:"actor_id"`
	OccurredAt             time.Time      `json:"occurred_at"`
	TriggerSource          string         `json:"trigger_source"`
	ElapsedSincePreviousMs int64          `json:"elapsed_since_previous_ms"`
	ElapsedSinceReceivedMs int64          `json:"elapsed_since_received_ms"`
	ConfigVersion          int64          `json:"config_version"`
}

func (w WorkOrderStatusChanged) GetType() EventType {
	return WorkOrderStatusChangedEvent
}

// WorkflowConfigUpdated is emitted when a tenant activates a new configuration
// version. Warnings are the validator's advisory findings, already shown to
// the administrator at write time.
type WorkflowConfigUpdated struct {
	BaseEvent

	Version   int64    `json:"version"`
	UpdatedBy string   `json:"updated_by"`
	Statuses  []string `json:"statuses"`
	Warnings  []string `json:"warnings,omitempty"`
}

func (w WorkflowConfigUpdated) GetType() EventType {
	return WorkflowConfigUpdatedEvent
}

// StatusDistributionSnapshot is a periodic count of work orders per status for
// one tenant, published for dashboards that do not want to poll the API.
type StatusDistributionSnapshot struct {
	BaseEvent

	Distribution map[models.Status]int64 `json:"distribution"`
	Total        int64                   `json:"total"`
}

func (s StatusDistributionSnapshot) GetType() EventType {
	return StatusDistributionSnapshotEvent
}

func NewBaseEvent(eventType EventType, tenantID string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		TenantID:  tenantID,
		Metadata:  make(map[string]any),
	}
}
