package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ccmanuelf/kpi-operations-sub011/pkg/eventbus"
	"github.com/ccmanuelf/kpi-operations-sub011/pkg/events"
	"github.com/ccmanuelf/kpi-operations-sub011/pkg/otelhelper"
	"github.com/ccmanuelf/kpi-operations-sub011/pkg/queue"
	"github.com/ccmanuelf/kpi-operations-sub011/pkg/services"
)

// Worker drives the asynchronous side of the engine: it drains the intake
// queue into the executor, publishes status distribution snapshots on a
// schedule and tails engine events into the structured audit log.
type Worker struct {
	id          string
	transitions *services.Transition
	analytics   *services.Analytics
	eventBus    eventbus.EventBus
	tracer      trace.Tracer
	logger      *slog.Logger

	redisURL     string
	queueName    string
	snapshotSpec string

	consumer     *queue.Consumer
	cron         *cron.Cron
	restartCount int
}

func NewWorker(
	id string,
	transitions *services.Transition,
	analytics *services.Analytics,
	eventBus eventbus.EventBus,
	tracer trace.Tracer,
	logger *slog.Logger,
	redisURL, queueName, snapshotSpec string,
) *Worker {
	return &Worker{
		id:           id,
		transitions:  transitions,
		analytics:    analytics,
		eventBus:     eventBus,
		tracer:       tracer,
		logger:       logger.With("module", "workflow-worker", "worker_id", id),
		redisURL:     redisURL,
		queueName:    queueName,
		snapshotSpec: snapshotSpec,
	}
}

// Start begins the worker service.
func (w *Worker) Start(ctx context.Context) {
	wCtx, cancel := context.WithCancel(ctx)

	w.logger.Info("Starting intake worker")

	w.handleSignals(wCtx, cancel)
	w.run(wCtx, cancel)
}

// handleSignals sets up signal handling for graceful shutdown and restart.
func (w *Worker) handleSignals(ctx context.Context, cancel context.CancelFunc) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-signals
		w.logger.Info("Received signal", "signal", sig)

		switch sig {
		case syscall.SIGHUP:
			w.logger.Info("Reloading...")
			w.restart(ctx, cancel)
		case syscall.SIGINT, syscall.SIGTERM:
			w.logger.Info("Shutting down gracefully...")
			w.stop(ctx, cancel)
			os.Exit(0)
		default:
			w.logger.Warn("Unhandled signal received", "signal", sig)
		}
	}()
}

// restart handles service restart with backoff.
func (w *Worker) restart(ctx context.Context, cancel context.CancelFunc) {
	w.restartCount++
	newCtx := context.WithoutCancel(ctx)

	w.stop(newCtx, cancel)

	if w.restartCount > 5 {
		w.logger.Error("Restart limit reached, exiting...")
		os.Exit(1)
	}

	backoff := time.Duration(w.restartCount) * time.Second
	w.logger.Info("Restarting intake worker...", "backoff", backoff)
	time.Sleep(backoff)

	w.Start(newCtx)
}

func (w *Worker) run(ctx context.Context, cancel context.CancelFunc) {
	if err := w.startComponents(ctx); err != nil {
		w.logger.Error("Failed to start worker components", "error", err)
		w.restart(ctx, cancel)

		return
	}

	w.logger.Info("Intake worker started successfully")

	<-ctx.Done()
	w.logger.Info("Intake worker stopped")
}

func (w *Worker) startComponents(ctx context.Context) error {
	if err := w.startAuditTail(ctx); err != nil {
		return err
	}

	if err := w.startIntake(ctx); err != nil {
		return err
	}

	return w.startSnapshots(ctx)
}

// startIntake connects the Redis consumer and hands every decoded request to
// the transition service.
func (w *Worker) startIntake(ctx context.Context) error {
	consumer, err := queue.NewConsumer(w.redisURL, w.queueName, w.logger)
	if err != nil {
		return err
	}

	if err := consumer.Start(ctx, w.handleIntakeRequest); err != nil {
		return err
	}

	w.consumer = consumer

	return nil
}

func (w *Worker) handleIntakeRequest(ctx context.Context, req queue.Request) error {
	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "worker.intake execute",
		attribute.String(otelhelper.TenantIDKey, req.TenantID),
		attribute.String(otelhelper.WorkOrderIDKey, req.WorkOrderID),
		attribute.String(otelhelper.ToStatusKey, req.TargetStatus),
		attribute.String(otelhelper.TriggerSourceKey, req.TriggerSource),
		attribute.String(otelhelper.WorkerIDKey, w.id),
	)
	defer span.End()

	logger := w.logger.With(
		"tenant_id", req.TenantID,
		"work_order_id", req.WorkOrderID,
		"target_status", req.TargetStatus,
	)

	result, err := w.transitions.Execute(ctx, services.ExecuteTransitionRequest{
		TenantID:       req.TenantID,
		WorkOrderID:    req.WorkOrderID,
		TargetStatus:   req.TargetStatus,
		ActorID:        req.ActorID,
		TriggerSource:  req.TriggerSource,
		Notes:          req.Notes,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	if result.Replayed {
		logger.InfoContext(ctx, "Intake request already executed, replaying result",
			"idempotency_key", req.IdempotencyKey)

		return nil
	}

	logger.InfoContext(ctx, "Intake transition committed",
		"entry_id", result.Entry.ID,
		"config_version", result.ConfigVersion,
	)

	return nil
}

// startSnapshots schedules the periodic status distribution snapshot publisher.
func (w *Worker) startSnapshots(ctx context.Context) error {
	c := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	_, err := c.AddFunc(w.snapshotSpec, func() {
		w.publishSnapshots(ctx)
	})
	if err != nil {
		return fmt.Errorf("invalid snapshot schedule %q: %w", w.snapshotSpec, err)
	}

	c.Start()
	w.cron = c

	w.logger.Info("Snapshot schedule started", "schedule", w.snapshotSpec)

	return nil
}

func (w *Worker) publishSnapshots(ctx context.Context) {
	ctx, span := otelhelper.StartSpan(ctx, w.tracer, "worker.snapshots publish",
		attribute.String(otelhelper.WorkerIDKey, w.id),
	)
	defer span.End()

	published, err := w.analytics.PublishSnapshots(ctx)
	if err != nil {
		w.logger.ErrorContext(ctx, "Failed to publish status snapshots", "error", err)
		otelhelper.SetError(span, err)

		return
	}

	w.logger.InfoContext(ctx, "Published status snapshots", "tenants", published)
}

// startAuditTail subscribes to engine events and writes one audit log line per
// event.
func (w *Worker) startAuditTail(ctx context.Context) error {
	err := w.eventBus.Handle(events.WorkOrderStatusChangedEvent, w.handleStatusChanged)
	if err != nil {
		return err
	}

	err = w.eventBus.Handle(events.WorkflowConfigUpdatedEvent, w.handleConfigUpdated)
	if err != nil {
		return err
	}

	return w.eventBus.Subscribe(ctx)
}

func (w *Worker) handleStatusChanged(ctx context.Context, event any) error {
	changed, ok := event.(*events.WorkOrderStatusChanged)
	if !ok {
		w.logger.Error("Invalid event payload for work order status change")

		return nil
	}

	fromStatus := ""
	if changed.FromStatus != nil {
		fromStatus = string(*changed.FromStatus)
	}

	w.logger.InfoContext(ctx, "Work order status changed",
		"tenant_id", changed.TenantID,
		"work_order_id", changed.WorkOrderID,
		"from_status", fromStatus,
		"to_status", changed.ToStatus,
		"actor_id", changed.ActorID,
		"trigger_source", changed.TriggerSource,
		"config_version", changed.ConfigVersion,
	)

	return nil
}

func (w *Worker) handleConfigUpdated(ctx context.Context, event any) error {
	updated, ok := event.(*events.WorkflowConfigUpdated)
	if !ok {
		w.logger.Error("Invalid event payload for workflow config update")

		return nil
	}

	w.logger.InfoContext(ctx, "Workflow configuration updated",
		"tenant_id", updated.TenantID,
		"version", updated.Version,
		"updated_by", updated.UpdatedBy,
		"warnings", len(updated.Warnings),
	)

	return nil
}

// stop gracefully shuts down the worker.
func (w *Worker) stop(ctx context.Context, cancel context.CancelFunc) {
	w.logger.Info("Stopping intake worker")

	if w.cron != nil {
		w.cron.Stop()
		w.cron = nil
	}

	if w.consumer != nil {
		if err := w.consumer.Stop(ctx); err != nil {
			w.logger.Error("Failed to stop intake consumer", "error", err)
		}

		w.consumer = nil
	}

	if cancel != nil {
		cancel()
	}
}
