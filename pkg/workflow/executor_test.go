package workflow

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccmanuelf/kpi-operations-sub011/pkg/events"
	"github.com/ccmanuelf/kpi-operations-sub011/pkg/models"
	"github.com/ccmanuelf/kpi-operations-sub011/pkg/persistence"
	"github.com/ccmanuelf/kpi-operations-sub011/pkg/persistence/sqlite"
)

type capturePublisher struct {
	mu        sync.Mutex
	published []any
}

func (c *capturePublisher) Publish(_ context.Context, _ string, event any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.published = append(c.published, event)

	return nil
}

func (c *capturePublisher) events() []any {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]any(nil), c.published...)
}

func newTestExecutor(t *testing.T) (*Executor, persistence.Persistence, *capturePublisher, context.Context) {
	t.Helper()

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := sqlite.NewPersistence(ctx, logger, ":memory:")
	require.NoError(t, err)

	t.Cleanup(func() {
		err := p.Close(ctx)
		require.NoError(t, err)
	})

	publisher := &capturePublisher{}

	return NewExecutor(p, publisher, logger), p, publisher, ctx
}

// scenarioConfig is the minimal linear graph: RECEIVED -> DISPATCHED ->
// CLOSED, closing at completion.
func scenarioConfig(tenantID string) *models.WorkflowConfig {
	return &models.WorkflowConfig{
		TenantID: tenantID,
		Statuses: []models.Status{"RECEIVED", "DISPATCHED", "CLOSED"},
		Transitions: map[models.Status][]models.Status{
			"DISPATCHED": {"RECEIVED"},
			"CLOSED":     {"DISPATCHED"},
		},
		TerminalStatuses: []models.Status{"CLOSED"},
		StartStatus:      "RECEIVED",
		ClosureTrigger:   models.ClosureAtCompletion,
	}
}

func seedOrder(ctx context.Context, t *testing.T, p persistence.Persistence, tenantID string) *models.WorkOrder {
	t.Helper()

	now := time.Now().UTC()
	order := &models.WorkOrder{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Reference: "WO-" + uuid.New().String()[:8],
		CreatedAt: now,
		UpdatedAt: now,
	}

	require.NoError(t, p.WorkOrders().Create(ctx, order))

	return order
}

func seedConfig(ctx context.Context, t *testing.T, p persistence.Persistence, config *models.WorkflowConfig) {
	t.Helper()

	_, err := p.Configs().Put(ctx, config)
	require.NoError(t, err)
}

func executeRequest(order *models.WorkOrder, target models.Status) ExecuteRequest {
	return ExecuteRequest{
		TenantID:     order.TenantID,
		WorkOrderID:  order.ID,
		TargetStatus: target,
		ActorID:      "operator-1",
		Trigger:      models.TriggerSourceManual,
	}
}

func TestExecutor_FirstTransitionMustEnterStartStatus(t *testing.T) {
	executor, p, publisher, ctx := newTestExecutor(t)
	seedConfig(ctx, t, p, scenarioConfig("tenant-a"))
	order := seedOrder(ctx, t, p, "tenant-a")

	_, err := executor.Execute(ctx, executeRequest(order, "DISPATCHED"))
	require.Error(t, err)
	assert.True(t, IsInvalidTransition(err))

	var rejection *InvalidTransitionError

	require.ErrorAs(t, err, &rejection)
	assert.Nil(t, rejection.From)
	assert.Equal(t, []models.Status{"RECEIVED"}, rejection.Allowed)

	// A rejection has no side effects at all.
	entries, err := p.TransitionLog().ListForWorkOrder(ctx, order.TenantID, order.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)

	loaded, err := p.WorkOrders().GetByID(ctx, order.TenantID, order.ID)
	require.NoError(t, err)
	assert.Nil(t, loaded.CurrentStatus)
	assert.Empty(t, publisher.events())
}

func TestExecutor_FirstTransition(t *testing.T) {
	executor, p, publisher, ctx := newTestExecutor(t)
	seedConfig(ctx, t, p, scenarioConfig("tenant-a"))
	order := seedOrder(ctx, t, p, "tenant-a")

	result, err := executor.Execute(ctx, executeRequest(order, "RECEIVED"))
	require.NoError(t, err)
	assert.False(t, result.Replayed)
	assert.Equal(t, int64(1), result.ConfigVersion)

	require.NotNil(t, result.WorkOrder.CurrentStatus)
	assert.Equal(t, models.Status("RECEIVED"), *result.WorkOrder.CurrentStatus)
	assert.Nil(t, result.WorkOrder.PreviousStatus)
	assert.NotNil(t, result.WorkOrder.ReceivedAt)

	assert.Nil(t, result.Entry.FromStatus)
	assert.Equal(t, models.Status("RECEIVED"), result.Entry.ToStatus)
	assert.Zero(t, result.Entry.ElapsedSincePreviousMs)
	assert.Zero(t, result.Entry.ElapsedSinceReceivedMs)

	entries, err := p.TransitionLog().ListForWorkOrder(ctx, order.TenantID, order.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, result.Entry.ID, entries[0].ID)

	published := publisher.events()
	require.Len(t, published, 1)

	event, ok := published[0].(events.WorkOrderStatusChanged)
	require.True(t, ok)
	assert.Equal(t, events.WorkOrderStatusChangedEvent, event.Type)
	assert.Equal(t, order.ID, event.WorkOrderID)
	assert.Nil(t, event.FromStatus)
	assert.Equal(t, models.Status("RECEIVED"), event.ToStatus)
	assert.Equal(t, "manual", event.TriggerSource)
}

func TestExecutor_RejectsUnreachableTarget(t *testing.T) {
	executor, p, _, ctx := newTestExecutor(t)
	seedConfig(ctx, t, p, scenarioConfig("tenant-a"))
	order := seedOrder(ctx, t, p, "tenant-a")

	_, err := executor.Execute(ctx, executeRequest(order, "RECEIVED"))
	require.NoError(t, err)

	_, err = executor.Execute(ctx, executeRequest(order, "CLOSED"))
	require.Error(t, err)

	var rejection *InvalidTransitionError

	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, []models.Status{"DISPATCHED"}, rejection.Allowed)
}

func TestExecutor_ClosureAtCompletion(t *testing.T) {
	executor, p, _, ctx := newTestExecutor(t)
	seedConfig(ctx, t, p, scenarioConfig("tenant-a"))
	order := seedOrder(ctx, t, p, "tenant-a")

	for _, target := range []models.Status{"RECEIVED", "DISPATCHED", "CLOSED"} {
		_, err := executor.Execute(ctx, executeRequest(order, target))
		require.NoError(t, err)
	}

	loaded, err := p.WorkOrders().GetByID(ctx, order.TenantID, order.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.CurrentStatus)
	assert.Equal(t, models.Status("CLOSED"), *loaded.CurrentStatus)
	assert.NotNil(t, loaded.ReceivedAt)
	assert.NotNil(t, loaded.DispatchedAt)
	require.NotNil(t, loaded.ClosedAt, "AT_COMPLETION must stamp the closure timestamp on entering CLOSED")
	assert.False(t, loaded.ClosedAt.Before(*loaded.DispatchedAt))
}

func TestExecutor_NoOpTransition(t *testing.T) {
	executor, p, _, ctx := newTestExecutor(t)
	seedConfig(ctx, t, p, scenarioConfig("tenant-a"))
	order := seedOrder(ctx, t, p, "tenant-a")

	_, err := executor.Execute(ctx, executeRequest(order, "RECEIVED"))
	require.NoError(t, err)

	_, err = executor.Execute(ctx, executeRequest(order, "RECEIVED"))
	require.Error(t, err)
	assert.True(t, IsNoOpTransition(err))

	entries, err := p.TransitionLog().ListForWorkOrder(ctx, order.TenantID, order.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "a no-op must never be logged")
}

func TestExecutor_ElapsedTimes(t *testing.T) {
	executor, p, _, ctx := newTestExecutor(t)
	seedConfig(ctx, t, p, scenarioConfig("tenant-a"))
	order := seedOrder(ctx, t, p, "tenant-a")

	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	current := base
	executor.now = func() time.Time { return current }

	first, err := executor.Execute(ctx, executeRequest(order, "RECEIVED"))
	require.NoError(t, err)
	assert.Zero(t, first.Entry.ElapsedSincePreviousMs)
	assert.Zero(t, first.Entry.ElapsedSinceReceivedMs)

	current = base.Add(90 * time.Second)

	second, err := executor.Execute(ctx, executeRequest(order, "DISPATCHED"))
	require.NoError(t, err)
	assert.Equal(t, int64(90_000), second.Entry.ElapsedSincePreviousMs)
	assert.Equal(t, int64(90_000), second.Entry.ElapsedSinceReceivedMs)

	current = base.Add(150 * time.Second)

	third, err := executor.Execute(ctx, executeRequest(order, "CLOSED"))
	require.NoError(t, err)
	assert.Equal(t, int64(60_000), third.Entry.ElapsedSincePreviousMs)
	assert.Equal(t, int64(150_000), third.Entry.ElapsedSinceReceivedMs)
}

func TestExecutor_DefaultConfigFallback(t *testing.T) {
	executor, p, _, ctx := newTestExecutor(t)
	order := seedOrder(ctx, t, p, "tenant-without-config")

	_, err := executor.Execute(ctx, executeRequest(order, "DISPATCHED"))
	require.Error(t, err)

	var rejection *InvalidTransitionError

	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, []models.Status{"RECEIVED"}, rejection.Allowed)

	result, err := executor.Execute(ctx, executeRequest(order, "RECEIVED"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfigVersion, result.ConfigVersion)

	result, err = executor.Execute(ctx, executeRequest(order, "DISPATCHED"))
	require.NoError(t, err)
	assert.NotNil(t, result.WorkOrder.DispatchedAt)
}

func TestExecutor_DefaultConfigLoopback(t *testing.T) {
	executor, p, _, ctx := newTestExecutor(t)
	order := seedOrder(ctx, t, p, "tenant-without-config")

	path := []models.Status{"RECEIVED", "DISPATCHED", "IN_PROGRESS", "ON_HOLD", "IN_PROGRESS"}
	for _, target := range path {
		_, err := executor.Execute(ctx, executeRequest(order, target))
		require.NoError(t, err)
	}

	loaded, err := p.WorkOrders().GetByID(ctx, order.TenantID, order.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.CurrentStatus)
	assert.Equal(t, models.Status("IN_PROGRESS"), *loaded.CurrentStatus)
	require.NotNil(t, loaded.PreviousStatus)
	assert.Equal(t, models.Status("ON_HOLD"), *loaded.PreviousStatus)

	entries, err := p.TransitionLog().ListForWorkOrder(ctx, order.TenantID, order.ID)
	require.NoError(t, err)
	assert.Len(t, entries, len(path))
}

func TestExecutor_NormalizesTargetStatus(t *testing.T) {
	executor, p, _, ctx := newTestExecutor(t)
	seedConfig(ctx, t, p, scenarioConfig("tenant-a"))
	order := seedOrder(ctx, t, p, "tenant-a")

	result, err := executor.Execute(ctx, executeRequest(order, "  received "))
	require.NoError(t, err)
	assert.Equal(t, models.Status("RECEIVED"), result.Entry.ToStatus)
}

func TestExecutor_UnknownTriggerSource(t *testing.T) {
	executor, p, _, ctx := newTestExecutor(t)
	order := seedOrder(ctx, t, p, "tenant-a")

	req := executeRequest(order, "RECEIVED")
	req.Trigger = "webhook"

	_, err := executor.Execute(ctx, req)
	require.Error(t, err)
	assert.True(t, IsUnknownTriggerSource(err))
}

func TestExecutor_UnknownWorkOrder(t *testing.T) {
	executor, _, _, ctx := newTestExecutor(t)

	_, err := executor.Execute(ctx, ExecuteRequest{
		TenantID:     "tenant-a",
		WorkOrderID:  uuid.New().String(),
		TargetStatus: "RECEIVED",
		ActorID:      "operator-1",
		Trigger:      models.TriggerSourceManual,
	})
	require.Error(t, err)
	assert.True(t, persistence.IsWorkOrderNotFound(err))
}

func TestExecutor_IdempotentReplay(t *testing.T) {
	executor, p, _, ctx := newTestExecutor(t)
	seedConfig(ctx, t, p, scenarioConfig("tenant-a"))
	order := seedOrder(ctx, t, p, "tenant-a")

	req := executeRequest(order, "RECEIVED")
	req.IdempotencyKey = "req-001"

	first, err := executor.Execute(ctx, req)
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	replayed, err := executor.Execute(ctx, req)
	require.NoError(t, err)
	assert.True(t, replayed.Replayed)
	assert.Equal(t, first.Entry.ID, replayed.Entry.ID)

	entries, err := p.TransitionLog().ListForWorkOrder(ctx, order.TenantID, order.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "a replayed request must not double-log")
}

// hookedPersistence lets a test run arbitrary code between an executor's
// validation read and its commit, to interleave a competing transition
// deterministically.
type hookedPersistence struct {
	persistence.Persistence

	workOrders *hookedWorkOrders
}

func (h *hookedPersistence) WorkOrders() persistence.WorkOrderRepository {
	return h.workOrders
}

type hookedWorkOrders struct {
	persistence.WorkOrderRepository

	beforeApply func()
}

func (h *hookedWorkOrders) ApplyTransition(ctx context.Context, tenantID string, change *persistence.TransitionChange) error {
	if h.beforeApply != nil {
		hook := h.beforeApply
		h.beforeApply = nil
		hook()
	}

	return h.WorkOrderRepository.ApplyTransition(ctx, tenantID, change)
}

func TestExecutor_ConcurrentTransitionConflict(t *testing.T) {
	executor, p, _, ctx := newTestExecutor(t)
	seedConfig(ctx, t, p, scenarioConfig("tenant-a"))
	order := seedOrder(ctx, t, p, "tenant-a")

	_, err := executor.Execute(ctx, executeRequest(order, "RECEIVED"))
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	hooked := &hookedPersistence{
		Persistence: p,
		workOrders:  &hookedWorkOrders{WorkOrderRepository: p.WorkOrders()},
	}
	racer := NewExecutor(hooked, nil, logger)

	// The competitor commits RECEIVED -> DISPATCHED after the racer has
	// validated against RECEIVED but before it writes.
	hooked.workOrders.beforeApply = func() {
		_, err := executor.Execute(ctx, executeRequest(order, "DISPATCHED"))
		require.NoError(t, err)
	}

	_, err = racer.Execute(ctx, executeRequest(order, "DISPATCHED"))
	require.Error(t, err)
	assert.True(t, persistence.IsTransitionConflict(err))

	// Exactly one RECEIVED -> DISPATCHED entry: the loser never reaches the log.
	entries, err := p.TransitionLog().ListForWorkOrder(ctx, order.TenantID, order.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.Status("DISPATCHED"), entries[1].ToStatus)
}
