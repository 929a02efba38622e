// Package sqlite provides an embedded SQLite persistence backend for the
// workflow engine. It serves single-site deployments and tests; the schema
// and repository semantics mirror the PostgreSQL backend.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite" // SQLite driver, no cgo

	"github.com/ccmanuelf/kpi-operations-sub011/pkg/persistence"
	"github.com/ccmanuelf/kpi-operations-sub011/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for SQLite.
type Persistence struct {
	db            *sql.DB
	logger        *slog.Logger
	workOrderRepo *WorkOrderRepository
	configRepo    *ConfigRepository
	logRepo       *TransitionLogRepository
}

// NewPersistence opens (or creates) the SQLite database at path, runs
// migrations, and returns the ready persistence layer. Use ":memory:" for an
// ephemeral database.
func NewPersistence(ctx context.Context, logger *slog.Logger, path string) (*Persistence, error) {
	database, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// A single connection serializes writers and keeps an in-memory database
	// alive for the process lifetime.
	database.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}

	for _, pragma := range pragmas {
		_, err = database.ExecContext(ctx, pragma)
		if err != nil {
			_ = database.Close()

			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		_ = database.Close()

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

// HealthCheck verifies the database is reachable.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database.
func (p *Persistence) Close(ctx context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database: %w", err)
		}
	}

	return nil
}
