package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/ccmanuelf/kpi-operations-sub011/pkg/cmd"
	"github.com/ccmanuelf/kpi-operations-sub011/pkg/eventbus"
	"github.com/ccmanuelf/kpi-operations-sub011/pkg/log"
	"github.com/ccmanuelf/kpi-operations-sub011/pkg/otelhelper"
	"github.com/ccmanuelf/kpi-operations-sub011/pkg/queue"
	"github.com/ccmanuelf/kpi-operations-sub011/pkg/services"
	"github.com/ccmanuelf/kpi-operations-sub011/pkg/workflow"
)

func main() {
	command := &cli.Command{
		Name:                  "workflow-worker",
		Usage:                 "Start the work-order intake worker",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "redis-url",
				Usage:    "Redis connection URL for the intake queue",
				Required: true,
				Sources:  cli.EnvVars("REDIS_URL"),
			},
			&cli.StringFlag{
				Name:    "queue",
				Usage:   "Intake queue name",
				Value:   queue.DefaultQueue,
				Sources: cli.EnvVars("INTAKE_QUEUE"),
			},
			&cli.StringFlag{
				Name:    "event-bus",
				Usage:   "Event bus provider (gochannel, kafka)",
				Value:   "gochannel",
				Sources: cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "snapshot-schedule",
				Usage:   "Cron schedule for status distribution snapshots",
				Value:   "*/15 * * * *",
				Sources: cli.EnvVars("SNAPSHOT_SCHEDULE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			tracer, err := otelhelper.NewTracer(ctx, "workflow-worker")
			if err != nil {
				return fmt.Errorf("failed to initialize tracer: %w", err)
			}

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
			}

			logger := log.WithModule("workflow-worker").With("worker_id", workerID)

			logger.Info("Initializing intake worker", "worker_id", workerID)

			persistence, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.Error("Failed to close persistence", "error", err)
				}
			}()

			eventBus := cmd.NewEventBus(command.String("event-bus"), logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.Error("Failed to close event bus", "error", err)
				}
			}()

			publisher := eventbus.NewEnginePublisher(eventBus)
			executor := workflow.NewExecutor(persistence, publisher, logger)
			transitionService := services.NewTransition(executor, persistence)
			analyticsService := services.NewAnalytics(
				workflow.NewAnalytics(persistence, logger),
				persistence,
				publisher,
				logger,
			)

			worker := NewWorker(
				workerID,
				transitionService,
				analyticsService,
				eventBus,
				tracer,
				logger,
				command.String("redis-url"),
				command.String("queue"),
				command.String("snapshot-schedule"),
			)

			worker.Start(ctx)

			return nil
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
