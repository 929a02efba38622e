// Package models defines the core domain models for the work-order workflow engine.
package models

import "strings"

// Status is a tenant-defined work-order status name, case-normalized to upper case.
type Status string

// NormalizeStatus trims surrounding whitespace and upper-cases a raw status name.
// All statuses are stored and compared in normalized form.
func NormalizeStatus(raw string) Status {
	return Status(strings.ToUpper(strings.TrimSpace(raw)))
}

// TriggerSource identifies what kind of caller requested a transition.
type TriggerSource string

const (
	TriggerSourceManual    TriggerSource = "manual"    // Operator acting through the dashboard
	TriggerSourceAutomatic TriggerSource = "automatic" // System-initiated (e.g. closure rules)
	TriggerSourceBulk      TriggerSource = "bulk"      // Bulk UI action over many work orders
	TriggerSourceAPI       TriggerSource = "api"       // External integration via the REST API
	TriggerSourceImport    TriggerSource = "import"    // CSV/backfill ingestion
)

// Valid reports whether the trigger source is one of the known values.
func (t TriggerSource) Valid() bool {
	switch t {
	case TriggerSourceManual, TriggerSourceAutomatic, TriggerSourceBulk, TriggerSourceAPI, TriggerSourceImport:
		return true
	}

	return false
}

// ClosureTrigger determines when a work order's closure date is auto-populated.
type ClosureTrigger string

const (
	ClosureAtShipment   ClosureTrigger = "AT_SHIPMENT"   // Close when the shipped marker status is first entered
	ClosureAtCompletion ClosureTrigger = "AT_COMPLETION" // Close when the completed marker status is first entered
	ClosureManual       ClosureTrigger = "MANUAL"        // The engine never sets the closure date
)

// Valid reports whether the closure trigger is one of the known values.
func (c ClosureTrigger) Valid() bool {
	switch c {
	case ClosureAtShipment, ClosureAtCompletion, ClosureManual:
		return true
	}

	return false
}

// Phase names a tracked lifecycle phase whose first entry stamps a work-order timestamp.
type Phase string

const (
	PhaseReceived   Phase = "received"
	PhaseDispatched Phase = "dispatched"
	PhaseShipped    Phase = "shipped"
	PhaseCompleted  Phase = "completed"
)

// Phases lists all tracked phases in lifecycle order.
func Phases() []Phase {
	return []Phase{PhaseReceived, PhaseDispatched, PhaseShipped, PhaseCompleted}
}
