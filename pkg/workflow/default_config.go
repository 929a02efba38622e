package workflow

import (
	"github.com/ccmanuelf/kpi-operations-sub011/pkg/models"
)

// DefaultConfigVersion marks a configuration as the built-in fallback rather
// than a tenant-authored version. Tenant versions start at 1.
const DefaultConfigVersion int64 = 0

// DefaultConfig returns the built-in workflow used for tenants that have not
// configured one yet. It covers the full conventional lifecycle with hold,
// cancel and reject branches:
//
//	RECEIVED -> DISPATCHED -> IN_PROGRESS -> COMPLETED -> SHIPPED -> CLOSED
//
// ON_HOLD suspends from DISPATCHED or IN_PROGRESS and resumes into
// IN_PROGRESS. REJECTED sends a completed order back to IN_PROGRESS for
// rework. CANCELLED is reachable from every pre-completion status. Orders
// close automatically at shipment.
//
// A fresh value is returned on every call so callers may mutate their copy.
func DefaultConfig(tenantID string) *models.WorkflowConfig {
	return &models.WorkflowConfig{
		TenantID: tenantID,
		Version:  DefaultConfigVersion,
		Statuses: []models.Status{
			"RECEIVED",
			"DISPATCHED",
			"IN_PROGRESS",
			"ON_HOLD",
			"COMPLETED",
			"REJECTED",
			"SHIPPED",
			"CLOSED",
			"CANCELLED",
		},
		Transitions: map[models.Status][]models.Status{
			"DISPATCHED":  {"RECEIVED"},
			"IN_PROGRESS": {"DISPATCHED", "ON_HOLD", "REJECTED"},
			"ON_HOLD":     {"DISPATCHED", "IN_PROGRESS"},
			"COMPLETED":   {"IN_PROGRESS"},
			"REJECTED":    {"COMPLETED"},
			"SHIPPED":     {"COMPLETED"},
			"CLOSED":      {"SHIPPED"},
			"CANCELLED":   {"RECEIVED", "DISPATCHED", "IN_PROGRESS", "ON_HOLD"},
		},
		TerminalStatuses: []models.Status{"CLOSED", "CANCELLED"},
		StartStatus:      "RECEIVED",
		ClosureTrigger:   models.ClosureAtShipment,
	}
}
