package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ccmanuelf/kpi-operations-sub011/pkg/models"
	"github.com/ccmanuelf/kpi-operations-sub011/pkg/persistence"
)

// Analytics computes read-only lifecycle projections. Everything here is
// recomputed on demand from the transition log and work-order timestamps, so
// there is no cached state that could drift from the log.
type Analytics struct {
	persistence persistence.Persistence
	logger      *slog.Logger

	now func() time.Time
}

func NewAnalytics(p persistence.Persistence, logger *slog.Logger) *Analytics {
	return &Analytics{
		persistence: p,
		logger:      logger.With("module", "lifecycle_analytics"),
		now:         time.Now,
	}
}

// LifecycleSummary describes one work order's overall lifecycle so far.
// StartedAt is the received timestamp, falling back to the first log entry
// for orders backfilled without one. For open orders TotalMs runs up to now.
type LifecycleSummary struct {
	WorkOrderID   string         `json:"work_order_id"`
	CurrentStatus *models.Status `json:"current_status"`
	StartedAt     *time.Time     `json:"started_at,omitempty"`
	EndedAt       *time.Time     `json:"ended_at,omitempty"`
	TotalMs       int64          `json:"total_ms"`
	Open          bool           `json:"open"`
	Transitions   int            `json:"transitions"`
}

// FrequencyStats aggregates one transition edge over a time window.
type FrequencyStats struct {
	FromStatus   *models.Status `json:"from_status,omitempty"`
	ToStatus     models.Status  `json:"to_status"`
	Count        int64          `json:"count"`
	AvgElapsedMs int64          `json:"avg_elapsed_ms"`
}

// TotalLifecycleMs measures from the work order's received timestamp (or its
// first transition) to its closure, or to now while it remains open. Returns
// zero for an order that has not started its lifecycle.
func (a *Analytics) TotalLifecycleMs(ctx context.Context, tenantID, workOrderID string) (int64, error) {
	summary, err := a.Lifecycle(ctx, tenantID, workOrderID)
	if err != nil {
		return 0, err
	}

	return summary.TotalMs, nil
}

// Lifecycle builds the full lifecycle summary behind TotalLifecycleMs.
func (a *Analytics) Lifecycle(ctx context.Context, tenantID, workOrderID string) (*LifecycleSummary, error) {
	order, err := a.persistence.WorkOrders().GetByID(ctx, tenantID, workOrderID)
	if err != nil {
		return nil, err
	}

	entries, err := a.persistence.TransitionLog().ListForWorkOrder(ctx, tenantID, workOrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transition log: %w", err)
	}

	summary := &LifecycleSummary{
		WorkOrderID:   workOrderID,
		CurrentStatus: order.CurrentStatus,
		StartedAt:     order.ReceivedAt,
		EndedAt:       order.ClosedAt,
		Open:          order.ClosedAt == nil,
		Transitions:   len(entries),
	}

	if summary.StartedAt == nil && len(entries) > 0 {
		first := entries[0].OccurredAt
		summary.StartedAt = &first
	}

	if summary.StartedAt == nil {
		return summary, nil
	}

	end := a.now().UTC()
	if summary.EndedAt != nil {
		end = *summary.EndedAt
	}

	summary.TotalMs = clampMs(end.Sub(*summary.StartedAt))

	return summary, nil
}

// PhaseElapsedMs measures between two tracked phase entries of one work
// order. Fails with ErrPhaseNotReached when either phase has no timestamp
// yet.
func (a *Analytics) PhaseElapsedMs(ctx context.Context, tenantID, workOrderID string, fromPhase, toPhase models.Phase) (int64, error) {
	if !phaseKnown(fromPhase) {
		return 0, fmt.Errorf("%w: %q", ErrUnknownPhase, fromPhase)
	}

	if !phaseKnown(toPhase) {
		return 0, fmt.Errorf("%w: %q", ErrUnknownPhase, toPhase)
	}

	order, err := a.persistence.WorkOrders().GetByID(ctx, tenantID, workOrderID)
	if err != nil {
		return 0, err
	}

	from := order.PhaseTimestamp(fromPhase)
	if from == nil {
		return 0, fmt.Errorf("%w: %s", ErrPhaseNotReached, fromPhase)
	}

	to := order.PhaseTimestamp(toPhase)
	if to == nil {
		return 0, fmt.Errorf("%w: %s", ErrPhaseNotReached, toPhase)
	}

	return clampMs(to.Sub(*from)), nil
}

// TransitionFrequency counts executions of one edge within the window and
// averages their elapsed-since-previous times. An empty fromStatus selects
// first transitions (those with no prior status).
func (a *Analytics) TransitionFrequency(ctx context.Context, tenantID string, fromStatus, toStatus models.Status, window persistence.TimeRange) (*FrequencyStats, error) {
	from := models.NormalizeStatus(string(fromStatus))
	to := models.NormalizeStatus(string(toStatus))

	stats := &FrequencyStats{ToStatus: to}
	if from != "" {
		stats.FromStatus = &from
	}

	it, err := a.persistence.TransitionLog().ListByTenant(ctx, tenantID, window)
	if err != nil {
		return nil, fmt.Errorf("failed to scan transition log: %w", err)
	}

	defer func() {
		if err := it.Close(); err != nil {
			a.logger.ErrorContext(ctx, "Failed to close transition log iterator", "error", err)
		}
	}()

	var totalElapsed int64

	for it.Next() {
		entry := it.Entry()

		if entry.ToStatus != to || !matchesFrom(entry.FromStatus, stats.FromStatus) {
			continue
		}

		stats.Count++
		totalElapsed += entry.ElapsedSincePreviousMs
	}

	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan transition log: %w", err)
	}

	if stats.Count > 0 {
		stats.AvgElapsedMs = totalElapsed / stats.Count
	}

	return stats, nil
}

// StatusDistribution counts the tenant's work orders per current status.
// Orders that never transitioned carry no status and are not counted.
func (a *Analytics) StatusDistribution(ctx context.Context, tenantID string) (map[models.Status]int64, error) {
	return a.persistence.WorkOrders().CountByStatus(ctx, tenantID)
}

func matchesFrom(entryFrom, wanted *models.Status) bool {
	if wanted == nil {
		return entryFrom == nil
	}

	return entryFrom != nil && *entryFrom == *wanted
}
