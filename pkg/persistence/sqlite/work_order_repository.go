package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ccmanuelf/kpi-operations-sub011/pkg/models"
	"github.com/ccmanuelf/kpi-operations-sub011/pkg/persistence"
)

// WorkOrderRepository handles work-order database operations.
type WorkOrderRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkOrderRepository creates a new work-order repository.
func NewWorkOrderRepository(db *sql.DB, logger *slog.Logger) *WorkOrderRepository {
	return &WorkOrderRepository{db: db, logger: logger}
}

// Create inserts a new work order.
func (r *WorkOrderRepository) Create(ctx context.Context, order *models.WorkOrder) error {
	query := `
		INSERT INTO work_orders (
			id, tenant_id, reference, current_status, previous_status,
			received_at, dispatched_at, shipped_at, closed_at, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		order.ID,
		order.TenantID,
		order.Reference,
		statusParam(order.CurrentStatus),
		statusParam(order.PreviousStatus),
		encodeTimePtr(order.ReceivedAt),
		encodeTimePtr(order.DispatchedAt),
		encodeTimePtr(order.ShippedAt),
		encodeTimePtr(order.ClosedAt),
		encodeTime(order.CreatedAt),
		encodeTime(order.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return persistence.NewWorkOrderError("Create", order.TenantID, order.ID, persistence.ErrWorkOrderAlreadyExists)
		}

		return fmt.Errorf("failed to insert work order: %w", err)
	}

	return nil
}

// GetByID returns a work order scoped to its tenant.
func (r *WorkOrderRepository) GetByID(ctx context.Context, tenantID, id string) (*models.WorkOrder, error) {
	query := `
		SELECT
			id
		  , tenant_id
		  , reference
		  , current_status
		  , previous_status
		  , received_at
		  , dispatched_at
		  , shipped_at
		  , closed_at
		  , created_at
		  , updated_at
		FROM work_orders
		WHERE id = ? AND tenant_id = ?
	`

	order, err := scanWorkOrder(r.db.QueryRowContext(ctx, query, id, tenantID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewWorkOrderError("GetByID", tenantID, id, persistence.ErrWorkOrderNotFound)
		}

		return nil, fmt.Errorf("failed to query work order: %w", err)
	}

	return order, nil
}

// ApplyTransition commits one validated transition in a single transaction.
// SQLite's IS operator gives the null-safe status comparison for the guard.
func (r *WorkOrderRepository) ApplyTransition(ctx context.Context, tenantID string, change *persistence.TransitionChange) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	entry := change.Entry

	updateQuery := `
		UPDATE work_orders
		SET previous_status = current_status
		  , current_status = ?
		  , received_at = COALESCE(received_at, ?)
		  , dispatched_at = COALESCE(dispatched_at, ?)
		  , shipped_at = COALESCE(shipped_at, ?)
		  , closed_at = COALESCE(closed_at, ?)
		  , updated_at = ?
		WHERE id = ?
		  AND tenant_id = ?
		  AND current_status IS ?
	`

	result, err := tx.ExecContext(ctx, updateQuery,
		string(change.NewStatus),
		encodeTimePtr(change.SetReceivedAt),
		encodeTimePtr(change.SetDispatchedAt),
		encodeTimePtr(change.SetShippedAt),
		encodeTimePtr(change.SetClosedAt),
		encodeTime(entry.OccurredAt),
		change.WorkOrderID,
		tenantID,
		statusParam(change.ExpectedStatus),
	)
	if err != nil {
		return fmt.Errorf("failed to update work order status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 0 {
		var exists bool

		err = tx.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM work_orders WHERE id = ? AND tenant_id = ?)",
			change.WorkOrderID, tenantID,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check work order existence: %w", err)
		}

		if !exists {
			err = persistence.NewWorkOrderError("ApplyTransition", tenantID, change.WorkOrderID, persistence.ErrWorkOrderNotFound)

			return err
		}

		err = persistence.NewWorkOrderError("ApplyTransition", tenantID, change.WorkOrderID, persistence.ErrTransitionConflict)

		return err
	}

	insertQuery := `
		INSERT INTO transition_log (
			id, work_order_id, tenant_id, from_status, to_status, actor_id,
			occurred_at, trigger_source, notes, elapsed_since_previous_ms,
			elapsed_since_received_ms, config_version, idempotency_key
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = tx.ExecContext(ctx, insertQuery,
		entry.ID,
		entry.WorkOrderID,
		entry.TenantID,
		statusParam(entry.FromStatus),
		string(entry.ToStatus),
		entry.ActorID,
		encodeTime(entry.OccurredAt),
		string(entry.Trigger),
		entry.Notes,
		entry.ElapsedSincePreviousMs,
		entry.ElapsedSinceReceivedMs,
		entry.ConfigVersion,
		entry.IdempotencyKey,
	)
	if err != nil {
		if isUniqueViolation(err) {
			err = persistence.NewWorkOrderError("ApplyTransition", tenantID, change.WorkOrderID, persistence.ErrDuplicateIdempotencyKey)

			return err
		}

		return fmt.Errorf("failed to append transition log entry: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transition: %w", err)
	}

	return nil
}

// CountByStatus returns the number of work orders per current status.
func (r *WorkOrderRepository) CountByStatus(ctx context.Context, tenantID string) (map[models.Status]int64, error) {
	query := `
		SELECT current_status, COUNT(*)
		FROM work_orders
		WHERE tenant_id = ? AND current_status IS NOT NULL
		GROUP BY current_status
	`

	rows, err := r.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query status distribution: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	distribution := make(map[models.Status]int64)

	for rows.Next() {
		var (
			status string
			count  int64
		)

		err = rows.Scan(&status, &count)
		if err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}

		distribution[models.Status(status)] = count
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating status counts: %w", err)
	}

	return distribution, nil
}

// TenantIDs lists every tenant that owns at least one work order.
func (r *WorkOrderRepository) TenantIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT DISTINCT tenant_id FROM work_orders ORDER BY tenant_id")
	if err != nil {
		return nil, fmt.Errorf("failed to query tenants: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	tenants := make([]string, 0)

	for rows.Next() {
		var tenantID string

		err = rows.Scan(&tenantID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tenant id: %w", err)
		}

		tenants = append(tenants, tenantID)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating tenants: %w", err)
	}

	return tenants, nil
}

func scanWorkOrder(row rowScanner) (*models.WorkOrder, error) {
	var (
		order                         models.WorkOrder
		currentStatus, previousStatus sql.NullString
		receivedAt, dispatchedAt      sql.NullString
		shippedAt, closedAt           sql.NullString
		createdAt, updatedAt          string
	)

	err := row.Scan(
		&order.ID,
		&order.TenantID,
		&order.Reference,
		&currentStatus,
		&previousStatus,
		&receivedAt,
		&dispatchedAt,
		&shippedAt,
		&closedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	order.CurrentStatus = statusValue(currentStatus)
	order.PreviousStatus = statusValue(previousStatus)

	order.ReceivedAt, err = decodeTimePtr(receivedAt)
	if err != nil {
		return nil, err
	}

	order.DispatchedAt, err = decodeTimePtr(dispatchedAt)
	if err != nil {
		return nil, err
	}

	order.ShippedAt, err = decodeTimePtr(shippedAt)
	if err != nil {
		return nil, err
	}

	order.ClosedAt, err = decodeTimePtr(closedAt)
	if err != nil {
		return nil, err
	}

	order.CreatedAt, err = decodeTime(createdAt)
	if err != nil {
		return nil, err
	}

	order.UpdatedAt, err = decodeTime(updatedAt)
	if err != nil {
		return nil, err
	}

	return &order, nil
}
