package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/ccmanuelf/kpi-operations-sub011/pkg/events"
	"github.com/ccmanuelf/kpi-operations-sub011/pkg/models"
	"github.com/ccmanuelf/kpi-operations-sub011/pkg/persistence"
	"github.com/ccmanuelf/kpi-operations-sub011/pkg/workflow"
)

// Analytics serves the reporting endpoints and the periodic snapshot
// publisher.
type Analytics struct {
	analytics   *workflow.Analytics
	persistence persistence.Persistence
	publisher   workflow.Publisher
	logger      *slog.Logger
}

func NewAnalytics(a *workflow.Analytics, p persistence.Persistence, publisher workflow.Publisher, logger *slog.Logger) *Analytics {
	return &Analytics{
		analytics:   a,
		persistence: p,
		publisher:   publisher,
		logger:      logger.With("module", "analytics_service"),
	}
}

// LifecycleView is the lifecycle summary plus the consecutive phase durations
// that are resolvable from the work order's timestamps so far.
type LifecycleView struct {
	*workflow.LifecycleSummary

	PhaseDurationsMs map[string]int64 `json:"phase_durations_ms,omitempty"`
}

// Lifecycle builds the work order's lifecycle view.
func (s *Analytics) Lifecycle(ctx context.Context, tenantID, workOrderID string) (*LifecycleView, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, ErrEmptyTenantID
	}

	if strings.TrimSpace(workOrderID) == "" {
		return nil, ErrEmptyWorkOrderID
	}

	summary, err := s.analytics.Lifecycle(ctx, tenantID, workOrderID)
	if err != nil {
		return nil, err
	}

	order, err := s.persistence.WorkOrders().GetByID(ctx, tenantID, workOrderID)
	if err != nil {
		return nil, err
	}

	return &LifecycleView{
		LifecycleSummary: summary,
		PhaseDurationsMs: phaseDurations(order),
	}, nil
}

// FrequencyRequest selects one transition edge over an optional time window.
// An empty FromStatus selects first transitions.
type FrequencyRequest struct {
	TenantID   string
	FromStatus string
	ToStatus   string
	From       time.Time
	To         time.Time
}

// Frequency aggregates count and average elapsed time for one edge.
func (s *Analytics) Frequency(ctx context.Context, req FrequencyRequest) (*workflow.FrequencyStats, error) {
	if strings.TrimSpace(req.TenantID) == "" {
		return nil, ErrEmptyTenantID
	}

	if strings.TrimSpace(req.ToStatus) == "" {
		return nil, ErrEmptyTargetStatus
	}

	if !req.From.IsZero() && !req.To.IsZero() && !req.From.Before(req.To) {
		return nil, ErrInvalidTimeRange
	}

	return s.analytics.TransitionFrequency(ctx, req.TenantID,
		models.Status(req.FromStatus), models.Status(req.ToStatus),
		persistence.TimeRange{From: req.From, To: req.To})
}

// Distribution counts the tenant's work orders per current status.
func (s *Analytics) Distribution(ctx context.Context, tenantID string) (map[models.Status]int64, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, ErrEmptyTenantID
	}

	return s.analytics.StatusDistribution(ctx, tenantID)
}

// PublishSnapshots recomputes and publishes the status distribution of every
// tenant with work orders. Per-tenant failures are logged and skipped; the
// count of published snapshots is returned.
func (s *Analytics) PublishSnapshots(ctx context.Context) (int, error) {
	if s.publisher == nil {
		return 0, nil
	}

	tenantIDs, err := s.persistence.WorkOrders().TenantIDs(ctx)
	if err != nil {
		return 0, err
	}

	published := 0

	for _, tenantID := range tenantIDs {
		distribution, err := s.analytics.StatusDistribution(ctx, tenantID)
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to compute status distribution", "tenant_id", tenantID, "error", err)

			continue
		}

		var total int64
		for _, count := range distribution {
			total += count
		}

		event := events.StatusDistributionSnapshot{
			BaseEvent:    events.NewBaseEvent(events.StatusDistributionSnapshotEvent, tenantID),
			Distribution: distribution,
			Total:        total,
		}

		if err := s.publisher.Publish(ctx, tenantID, event); err != nil {
			s.logger.ErrorContext(ctx, "Failed to publish snapshot", "tenant_id", tenantID, "error", err)

			continue
		}

		published++
	}

	return published, nil
}

// phaseDurations measures consecutive tracked phases wherever both ends have
// been stamped.
func phaseDurations(order *models.WorkOrder) map[string]int64 {
	durations := make(map[string]int64)

	pairs := []struct {
		name string
		from *time.Time
		to   *time.Time
	}{
		{"received_to_dispatched", order.ReceivedAt, order.DispatchedAt},
		{"dispatched_to_shipped", order.DispatchedAt, order.ShippedAt},
		{"shipped_to_closed", order.ShippedAt, order.ClosedAt},
	}

	for _, pair := range pairs {
		if pair.from == nil || pair.to == nil {
			continue
		}

		ms := pair.to.Sub(*pair.from).Milliseconds()
		if ms < 0 {
			ms = 0
		}

		durations[pair.name] = ms
	}

	if len(durations) == 0 {
		return nil
	}

	return durations
}
