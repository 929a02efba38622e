package postgresql_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccmanuelf/kpi-operations-sub011/pkg/models"
	"github.com/ccmanuelf/kpi-operations-sub011/pkg/persistence"
)

// seedHistory walks one work order through received, dispatched, and shipped
// at one-minute intervals and returns the base timestamp.
func seedHistory(ctx context.Context, t *testing.T, p persistence.Persistence, tenantID string) (*models.WorkOrder, time.Time) {
	t.Helper()

	repo := p.WorkOrders()

	order := newWorkOrder(tenantID)
	require.NoError(t, repo.Create(ctx, order))

	base := time.Now().UTC().Truncate(time.Microsecond)

	steps := []struct {
		expected *models.Status
		target   models.Status
		at       time.Time
	}{
		{nil, "RECEIVED", base},
		{statusPtr("RECEIVED"), "DISPATCHED", base.Add(time.Minute)},
		{statusPtr("DISPATCHED"), "SHIPPED", base.Add(2 * time.Minute)},
	}

	for _, step := range steps {
		require.NoError(t, repo.ApplyTransition(ctx, tenantID, newChange(order, step.expected, step.target, step.at)))
	}

	return order, base
}

func TestTransitionLogRepository_ListForWorkOrder_AppendOrder(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	order, _ := seedHistory(ctx, t, p, "tenant-a")

	entries, err := p.TransitionLog().ListForWorkOrder(ctx, order.TenantID, order.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Nil(t, entries[0].FromStatus)
	assert.Equal(t, models.Status("RECEIVED"), entries[0].ToStatus)
	assert.Equal(t, models.Status("DISPATCHED"), entries[1].ToStatus)
	assert.Equal(t, models.Status("SHIPPED"), entries[2].ToStatus)

	for i := 1; i < len(entries); i++ {
		assert.False(t, entries[i].OccurredAt.Before(entries[i-1].OccurredAt))
	}
}

func TestTransitionLogRepository_LatestForWorkOrder(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	order, _ := seedHistory(ctx, t, p, "tenant-a")

	latest, err := p.TransitionLog().LatestForWorkOrder(ctx, order.TenantID, order.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, models.Status("SHIPPED"), latest.ToStatus)

	fresh := newWorkOrder("tenant-a")
	require.NoError(t, p.WorkOrders().Create(ctx, fresh))

	latest, err = p.TransitionLog().LatestForWorkOrder(ctx, fresh.TenantID, fresh.ID)
	require.NoError(t, err)
	assert.Nil(t, latest, "no history yet")
}

func TestTransitionLogRepository_FindByIdempotencyKey(t *testing.T) {
	p, ctx, _ := setupTestDB(t)
	repo := p.WorkOrders()

	order := newWorkOrder("tenant-a")
	require.NoError(t, repo.Create(ctx, order))

	change := newChange(order, nil, "RECEIVED", time.Now().UTC().Truncate(time.Microsecond))
	change.Entry.IdempotencyKey = "import-row-17"
	require.NoError(t, repo.ApplyTransition(ctx, order.TenantID, change))

	found, err := p.TransitionLog().FindByIdempotencyKey(ctx, order.TenantID, order.ID, "import-row-17")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, change.Entry.ID, found.ID)

	missing, err := p.TransitionLog().FindByIdempotencyKey(ctx, order.TenantID, order.ID, "import-row-18")
	require.NoError(t, err)
	assert.Nil(t, missing)

	// Blank keys mark entries without replay protection; they never match.
	blank, err := p.TransitionLog().FindByIdempotencyKey(ctx, order.TenantID, order.ID, "")
	require.NoError(t, err)
	assert.Nil(t, blank)
}

func TestTransitionLogRepository_ListByTenant_Window(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	_, base := seedHistory(ctx, t, p, "tenant-a")
	seedHistory(ctx, t, p, "tenant-b")

	// Window covering only the middle transition.
	window := persistence.TimeRange{
		From: base.Add(30 * time.Second),
		To:   base.Add(90 * time.Second),
	}

	it, err := p.TransitionLog().ListByTenant(ctx, "tenant-a", window)
	require.NoError(t, err)

	defer func() {
		err := it.Close()
		require.NoError(t, err)
	}()

	collected := make([]models.Status, 0)

	for it.Next() {
		entry := it.Entry()
		assert.Equal(t, "tenant-a", entry.TenantID)
		collected = append(collected, entry.ToStatus)
	}

	require.NoError(t, it.Err())
	assert.Equal(t, []models.Status{"DISPATCHED"}, collected)
}

func TestTransitionLogRepository_ListByTenant_Unbounded(t *testing.T) {
	p, ctx, _ := setupTestDB(t)

	seedHistory(ctx, t, p, "tenant-a")

	it, err := p.TransitionLog().ListByTenant(ctx, "tenant-a", persistence.TimeRange{})
	require.NoError(t, err)

	defer func() {
		err := it.Close()
		require.NoError(t, err)
	}()

	count := 0
	for it.Next() {
		count++
	}

	require.NoError(t, it.Err())
	assert.Equal(t, 3, count)
}
