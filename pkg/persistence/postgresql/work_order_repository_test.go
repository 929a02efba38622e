package postgresql_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccmanuelf/kpi-operations-sub011/pkg/models"
	"github.com/ccmanuelf/kpi-operations-sub011/pkg/persistence"
)

func TestWorkOrderRepository_CreateAndGetByID(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.WorkOrders()

	order := newWorkOrder("tenant-a")
	require.NoError(t, repo.Create(ctx, order))

	loaded, err := repo.GetByID(ctx, "tenant-a", order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, loaded.ID)
	assert.Equal(t, order.Reference, loaded.Reference)
	assert.Nil(t, loaded.CurrentStatus)
	assert.Nil(t, loaded.PreviousStatus)
	assert.Nil(t, loaded.ReceivedAt)
}

func TestWorkOrderRepository_Create_Duplicate(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.WorkOrders()

	order := newWorkOrder("tenant-a")
	require.NoError(t, repo.Create(ctx, order))

	err := repo.Create(ctx, order)
	assert.True(t, persistence.IsWorkOrderAlreadyExists(err))
}

func TestWorkOrderRepository_GetByID_TenantScoping(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.WorkOrders()

	order := newWorkOrder("tenant-a")
	require.NoError(t, repo.Create(ctx, order))

	_, err := repo.GetByID(ctx, "tenant-b", order.ID)
	assert.True(t, persistence.IsWorkOrderNotFound(err), "another tenant must not see the order")
}

func TestWorkOrderRepository_ApplyTransition_FirstEntry(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.WorkOrders()

	order := newWorkOrder("tenant-a")
	require.NoError(t, repo.Create(ctx, order))

	occurredAt := time.Now().UTC().Truncate(time.Microsecond)
	change := newChange(order, nil, "RECEIVED", occurredAt)
	change.SetReceivedAt = &occurredAt

	require.NoError(t, repo.ApplyTransition(ctx, order.TenantID, change))

	loaded, err := repo.GetByID(ctx, order.TenantID, order.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.CurrentStatus)
	assert.Equal(t, models.Status("RECEIVED"), *loaded.CurrentStatus)
	assert.Nil(t, loaded.PreviousStatus)
	require.NotNil(t, loaded.ReceivedAt)
	assert.True(t, loaded.ReceivedAt.Equal(occurredAt))

	entries, err := p.TransitionLog().ListForWorkOrder(ctx, order.TenantID, order.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].FromStatus)
	assert.Equal(t, models.Status("RECEIVED"), entries[0].ToStatus)
}

func TestWorkOrderRepository_ApplyTransition_UpdatesPreviousStatus(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.WorkOrders()

	order := newWorkOrder("tenant-a")
	require.NoError(t, repo.Create(ctx, order))

	base := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, repo.ApplyTransition(ctx, order.TenantID, newChange(order, nil, "RECEIVED", base)))

	change := newChange(order, statusPtr("RECEIVED"), "DISPATCHED", base.Add(time.Minute))
	dispatchedAt := base.Add(time.Minute)
	change.SetDispatchedAt = &dispatchedAt

	require.NoError(t, repo.ApplyTransition(ctx, order.TenantID, change))

	loaded, err := repo.GetByID(ctx, order.TenantID, order.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.CurrentStatus)
	assert.Equal(t, models.Status("DISPATCHED"), *loaded.CurrentStatus)
	require.NotNil(t, loaded.PreviousStatus)
	assert.Equal(t, models.Status("RECEIVED"), *loaded.PreviousStatus)
	require.NotNil(t, loaded.DispatchedAt)
	assert.True(t, loaded.DispatchedAt.Equal(dispatchedAt))
}

func TestWorkOrderRepository_ApplyTransition_Conflict(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.WorkOrders()

	order := newWorkOrder("tenant-a")
	require.NoError(t, repo.Create(ctx, order))

	base := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, repo.ApplyTransition(ctx, order.TenantID, newChange(order, nil, "RECEIVED", base)))

	// Two writers observed RECEIVED; only the first conditional update lands.
	first := newChange(order, statusPtr("RECEIVED"), "DISPATCHED", base.Add(time.Second))
	second := newChange(order, statusPtr("RECEIVED"), "CANCELLED", base.Add(2*time.Second))

	require.NoError(t, repo.ApplyTransition(ctx, order.TenantID, first))

	err := repo.ApplyTransition(ctx, order.TenantID, second)
	assert.True(t, persistence.IsTransitionConflict(err))

	entries, err := p.TransitionLog().ListForWorkOrder(ctx, order.TenantID, order.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "the losing transition must never reach the log")
}

func TestWorkOrderRepository_ApplyTransition_NotFound(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.WorkOrders()

	order := newWorkOrder("tenant-a")

	err := repo.ApplyTransition(ctx, order.TenantID, newChange(order, nil, "RECEIVED", time.Now().UTC()))
	assert.True(t, persistence.IsWorkOrderNotFound(err))
}

func TestWorkOrderRepository_ApplyTransition_DuplicateIdempotencyKey(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.WorkOrders()

	order := newWorkOrder("tenant-a")
	require.NoError(t, repo.Create(ctx, order))

	base := time.Now().UTC().Truncate(time.Microsecond)
	first := newChange(order, nil, "RECEIVED", base)
	first.Entry.IdempotencyKey = "req-42"
	require.NoError(t, repo.ApplyTransition(ctx, order.TenantID, first))

	second := newChange(order, statusPtr("RECEIVED"), "DISPATCHED", base.Add(time.Second))
	second.Entry.IdempotencyKey = "req-42"

	err := repo.ApplyTransition(ctx, order.TenantID, second)
	assert.True(t, persistence.IsDuplicateIdempotencyKey(err))

	// The rejected insert must roll back the status update with it.
	loaded, err := repo.GetByID(ctx, order.TenantID, order.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.CurrentStatus)
	assert.Equal(t, models.Status("RECEIVED"), *loaded.CurrentStatus)

	entries, err := p.TransitionLog().ListForWorkOrder(ctx, order.TenantID, order.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWorkOrderRepository_CountByStatus(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.WorkOrders()

	base := time.Now().UTC().Truncate(time.Microsecond)

	for i, target := range []models.Status{"RECEIVED", "RECEIVED", "DISPATCHED"} {
		order := newWorkOrder("tenant-a")
		require.NoError(t, repo.Create(ctx, order))
		require.NoError(t, repo.ApplyTransition(ctx, order.TenantID,
			newChange(order, nil, target, base.Add(time.Duration(i)*time.Second))))
	}

	// Never transitioned: not part of the distribution.
	require.NoError(t, repo.Create(ctx, newWorkOrder("tenant-a")))

	// Another tenant's orders must not leak in.
	other := newWorkOrder("tenant-b")
	require.NoError(t, repo.Create(ctx, other))
	require.NoError(t, repo.ApplyTransition(ctx, other.TenantID, newChange(other, nil, "RECEIVED", base)))

	distribution, err := repo.CountByStatus(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, map[models.Status]int64{
		"RECEIVED":   2,
		"DISPATCHED": 1,
	}, distribution)
}

func TestWorkOrderRepository_TenantIDs(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.WorkOrders()

	require.NoError(t, repo.Create(ctx, newWorkOrder("tenant-b")))
	require.NoError(t, repo.Create(ctx, newWorkOrder("tenant-a")))
	require.NoError(t, repo.Create(ctx, newWorkOrder("tenant-a")))

	tenants, err := repo.TenantIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"tenant-a", "tenant-b"}, tenants)
}
