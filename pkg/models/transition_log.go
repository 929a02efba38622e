package models

import "time"

// TransitionLogEntry is one row of the append-only audit trail. Entries are
// never updated or deleted; elapsed durations are computed once at write time
// and preserved even if the tenant's workflow configuration changes later.
//
// FromStatus is nil for the entry that places a work order into the workflow
// for the first time. ConfigVersion records which configuration version
// authorized the transition. IdempotencyKey is the caller-supplied replay
// guard, empty when the caller did not send one.
type TransitionLogEntry struct {
	ID          string        `json:"id"`
	WorkOrderID string        `json:"work_order_id"`
	TenantID    string        `json:"tenant_id"`
	FromStatus  *Status       `json:"from_status,omitempty"`
	ToStatus    Status        `json:"to_status"`
	ActorID     string        `json:"actor_id"`
	OccurredAt  time.Time     `json:"occurred_at"`
	Trigger     TriggerSource `json:"trigger_source"`
	Notes       string        `json:"notes,omitempty"`

	// ElapsedSincePreviousMs is the wall-clock distance from the previous
	// entry for the same work order, and ElapsedSinceReceivedMs the distance
	// from the work order's received timestamp. Both are never negative and
	// are zero when no reference point exists yet.
	ElapsedSincePreviousMs int64 `json:"elapsed_since_previous_ms"`
	ElapsedSinceReceivedMs int64 `json:"elapsed_since_received_ms"`

	ConfigVersion  int64  `json:"config_version"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}
