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

// TransitionLogRepository reads the append-only transition audit trail.
type TransitionLogRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewTransitionLogRepository creates a new transition-log repository.
func NewTransitionLogRepository(db *sql.DB, logger *slog.Logger) *TransitionLogRepository {
	return &TransitionLogRepository{db: db, logger: logger}
}

const entryColumns = `
	id
  , work_order_id
  , tenant_id
  , from_status
  , to_status
  , actor_id
  , occurred_at
  , trigger_source
  , notes
  , elapsed_since_previous_ms
  , elapsed_since_received_ms
  , config_version
  , idempotency_key
`

// ListForWorkOrder returns the work order's full history in append order.
func (r *TransitionLogRepository) ListForWorkOrder(ctx context.Context, tenantID, workOrderID string) ([]*models.TransitionLogEntry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM transition_log
		WHERE tenant_id = ? AND work_order_id = ?
		ORDER BY occurred_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, tenantID, workOrderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query transition log: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	entries := make([]*models.TransitionLogEntry, 0)

	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transition log entry: %w", err)
		}

		entries = append(entries, entry)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating transition log: %w", err)
	}

	return entries, nil
}

// LatestForWorkOrder returns the most recent entry, or (nil, nil) when the
// work order has no history yet.
func (r *TransitionLogRepository) LatestForWorkOrder(ctx context.Context, tenantID, workOrderID string) (*models.TransitionLogEntry, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM transition_log
		WHERE tenant_id = ? AND work_order_id = ?
		ORDER BY occurred_at DESC, id DESC
		LIMIT 1
	`

	entry, err := scanEntry(r.db.QueryRowContext(ctx, query, tenantID, workOrderID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to query latest transition: %w", err)
	}

	return entry, nil
}

// FindByIdempotencyKey returns the entry previously appended under the given
// key, or (nil, nil) when the key was never used for this work order.
func (r *TransitionLogRepository) FindByIdempotencyKey(ctx context.Context, tenantID, workOrderID, key string) (*models.TransitionLogEntry, error) {
	if key == "" {
		return nil, nil
	}

	query := `
		SELECT ` + entryColumns + `
		FROM transition_log
		WHERE tenant_id = ? AND work_order_id = ? AND idempotency_key = ?
	`

	entry, err := scanEntry(r.db.QueryRowContext(ctx, query, tenantID, workOrderID, key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to query transition by idempotency key: %w", err)
	}

	return entry, nil
}

// ListByTenant streams a tenant's entries within the time window in
// occurrence order. Timestamp strings are fixed width, so the window bounds
// compare correctly as text.
func (r *TransitionLogRepository) ListByTenant(ctx context.Context, tenantID string, window persistence.TimeRange) (persistence.TransitionIterator, error) {
	query := `
		SELECT ` + entryColumns + `
		FROM transition_log
		WHERE tenant_id = ?
	`
	args := []any{tenantID}

	if !window.From.IsZero() {
		query += " AND occurred_at >= ?"

		args = append(args, encodeTime(window.From))
	}

	if !window.To.IsZero() {
		query += " AND occurred_at < ?"

		args = append(args, encodeTime(window.To))
	}

	query += " ORDER BY occurred_at ASC, id ASC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tenant transition log: %w", err)
	}

	return &transitionIterator{rows: rows}, nil
}

type transitionIterator struct {
	rows  *sql.Rows
	entry *models.TransitionLogEntry
	err   error
}

func (it *transitionIterator) Next() bool {
	if it.err != nil {
		return false
	}

	if !it.rows.Next() {
		it.err = it.rows.Err()

		return false
	}

	entry, err := scanEntry(it.rows)
	if err != nil {
		it.err = fmt.Errorf("failed to scan transition log entry: %w", err)

		return false
	}

	it.entry = entry

	return true
}

func (it *transitionIterator) Entry() *models.TransitionLogEntry {
	return it.entry
}

func (it *transitionIterator) Err() error {
	return it.err
}

func (it *transitionIterator) Close() error {
	return it.rows.Close()
}

func scanEntry(row rowScanner) (*models.TransitionLogEntry, error) {
	var (
		entry      models.TransitionLogEntry
		fromStatus sql.NullString
		toStatus   string
		trigger    string
		occurredAt string
	)

	err := row.Scan(
		&entry.ID,
		&entry.WorkOrderID,
		&entry.TenantID,
		&fromStatus,
		&toStatus,
		&entry.ActorID,
		&occurredAt,
		&trigger,
		&entry.Notes,
		&entry.ElapsedSincePreviousMs,
		&entry.ElapsedSinceReceivedMs,
		&entry.ConfigVersion,
		&entry.IdempotencyKey,
	)
	if err != nil {
		return nil, err
	}

	entry.FromStatus = statusValue(fromStatus)
	entry.ToStatus = models.Status(toStatus)
	entry.Trigger = models.TriggerSource(trigger)

	entry.OccurredAt, err = decodeTime(occurredAt)
	if err != nil {
		return nil, err
	}

	return &entry, nil
}
