package models

import "time"

// WorkOrder is the engine's view of a manufacturing work order: identity,
// current position in the tenant's workflow, and the lifecycle timestamps
// derived from transitions. The dashboard's CRUD layer owns every other field.
//
// CurrentStatus is nil until the first transition. The status fields are
// written exclusively by the transition executor; lifecycle timestamps are set
// at most once each.
type WorkOrder struct {
	ID             string     `json:"id"`
	TenantID       string     `json:"tenant_id"`
	Reference      string     `json:"reference"`
	CurrentStatus  *Status    `json:"current_status"`
	PreviousStatus *Status    `json:"previous_status,omitempty"`
	ReceivedAt     *time.Time `json:"received_at,omitempty"`
	DispatchedAt   *time.Time `json:"dispatched_at,omitempty"`
	ShippedAt      *time.Time `json:"shipped_at,omitempty"`
	ClosedAt       *time.Time `json:"closed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// PhaseTimestamp returns the work order's timestamp for a tracked phase.
func (w *WorkOrder) PhaseTimestamp(p Phase) *time.Time {
	switch p {
	case PhaseReceived:
		return w.ReceivedAt
	case PhaseDispatched:
		return w.DispatchedAt
	case PhaseShipped:
		return w.ShippedAt
	case PhaseCompleted:
		return w.ClosedAt
	}

	return nil
}
