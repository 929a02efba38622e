package services

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ccmanuelf/kpi-operations-sub011/pkg/persistence"
	"github.com/ccmanuelf/kpi-operations-sub011/pkg/persistence/sqlite"
	"github.com/ccmanuelf/kpi-operations-sub011/pkg/workflow"
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

// harness wires all three services over one in-memory backend.
type harness struct {
	ctx         context.Context
	persistence persistence.Persistence
	publisher   *capturePublisher
	executor    *workflow.Executor
	transition  *Transition
	config      *Config
	analytics   *Analytics
	logger      *slog.Logger
}

func newHarness(t *testing.T) *harness {
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
	executor := workflow.NewExecutor(p, publisher, logger)

	return &harness{
		ctx:         ctx,
		persistence: p,
		publisher:   publisher,
		executor:    executor,
		transition:  NewTransition(executor, p),
		config:      NewConfig(p, publisher, logger),
		analytics:   NewAnalytics(workflow.NewAnalytics(p, logger), p, publisher, logger),
		logger:      logger,
	}
}

// qaConfigDocument is a raw administrative document in mixed case, with an
// optional QA step and an explicit bypass edge around it.
func qaConfigDocument() []byte {
	return []byte(`{
		"statuses": ["received", "dispatched", "qa", "shipped", "closed"],
		"transitions": {
			"dispatched": ["received"],
			"qa": ["dispatched"],
			"shipped": ["qa", "dispatched"],
			"closed": ["shipped"]
		},
		"optional_statuses": ["qa"],
		"terminal_statuses": ["closed"],
		"start_status": "received",
		"closure_trigger": "at_shipment"
	}`)
}
