// Package postgresql provides the PostgreSQL persistence backend for the
// workflow engine.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/ccmanuelf/kpi-operations-sub011/pkg/persistence"
	"github.com/ccmanuelf/kpi-operations-sub011/pkg/persistence/sqlbase"
	_ "github.com/lib/pq" // PostgreSQL driver
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db            *sql.DB
	logger        *slog.Logger
	workOrderRepo *WorkOrderRepository
	configRepo    *ConfigRepository
	logRepo       *TransitionLogRepository
}

// NewPersistence connects to PostgreSQL, runs migrations, and returns the
// ready persistence layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:            database,
		logger:        logger,
		workOrderRepo: NewWorkOrderRepository(database, logger),
		configRepo:    NewConfigRepository(database, logger),
		logRepo:       NewTransitionLogRepository(database, logger),
	}, nil
}

// WorkOrders returns the work-order repository.
func (p *Persistence) WorkOrders() persistence.WorkOrderRepository {
	return p.workOrderRepo
}

// Configs returns the workflow-configuration repository.
func (p *Persistence) Configs() persistence.WorkflowConfigRepository {
	return p.configRepo
}

// TransitionLog returns the transition-log repository.
func (p *Persistence) TransitionLog() persistence.TransitionLogRepository {
	return p.logRepo
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *Persistence) Close(ctx context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}
