package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ccmanuelf/kpi-operations-sub011/pkg/models"
	"github.com/ccmanuelf/kpi-operations-sub011/pkg/persistence"
)

// ConfigRepository handles workflow-configuration database operations.
// Configurations are stored as validated JSON documents, one immutable row
// per version.
type ConfigRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewConfigRepository creates a new configuration repository.
func NewConfigRepository(db *sql.DB, logger *slog.Logger) *ConfigRepository {
	return &ConfigRepository{db: db, logger: logger}
}

// GetActive returns the tenant's highest configuration version.
func (r *ConfigRepository) GetActive(ctx context.Context, tenantID string) (*models.WorkflowConfig, error) {
	query := `
		SELECT version, document, created_at, updated_by
		FROM workflow_configs
		WHERE tenant_id = $1
		ORDER BY version DESC
		LIMIT 1
	`

	config, err := r.scanConfig(r.db.QueryRowContext(ctx, query, tenantID), tenantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewConfigError("GetActive", tenantID, 0, persistence.ErrConfigNotFound)
		}

		return nil, fmt.Errorf("failed to query active config: %w", err)
	}

	return config, nil
}

// GetVersion returns one specific configuration version.
func (r *ConfigRepository) GetVersion(ctx context.Context, tenantID string, version int64) (*models.WorkflowConfig, error) {
	query := `
		SELECT version, document, created_at, updated_by
		FROM workflow_configs
		WHERE tenant_id = $1 AND version = $2
	`

	config, err := r.scanConfig(r.db.QueryRowContext(ctx, query, tenantID, version), tenantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.NewConfigError("GetVersion", tenantID, version, persistence.ErrConfigVersionNotFound)
		}

		return nil, fmt.Errorf("failed to query config version: %w", err)
	}

	return config, nil
}

// Put stores a new configuration version and returns the assigned version
// number. The version is computed and inserted in one statement so concurrent
// writers cannot allocate the same version.
func (r *ConfigRepository) Put(ctx context.Context, config *models.WorkflowConfig) (int64, error) {
	documentJSON, err := json.Marshal(config.Document())
	if err != nil {
		return 0, fmt.Errorf("failed to marshal config document: %w", err)
	}

	if config.CreatedAt.IsZero() {
		config.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO workflow_configs (tenant_id, version, document, created_at, updated_by)
		SELECT $1, COALESCE(MAX(version), 0) + 1, $2, $3, $4
		FROM workflow_configs
		WHERE tenant_id = $1
		RETURNING version
	`

	var version int64

	err = r.db.QueryRowContext(ctx, query,
		config.TenantID,
		documentJSON,
		config.CreatedAt,
		config.UpdatedBy,
	).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to insert config version: %w", err)
	}

	config.Version = version

	return version, nil
}

func (r *ConfigRepository) scanConfig(row rowScanner, tenantID string) (*models.WorkflowConfig, error) {
	var (
		version      int64
		documentJSON []byte
		createdAt    time.Time
		updatedBy    string
	)

	err := row.Scan(&version, &documentJSON, &createdAt, &updatedBy)
	if err != nil {
		return nil, err
	}

	var document models.WorkflowConfigDocument

	err = json.Unmarshal(documentJSON, &document)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config document: %w", err)
	}

	config := models.ConfigFromDocument(tenantID, version, document)
	config.CreatedAt = createdAt.UTC()
	config.UpdatedBy = updatedBy

	return config, nil
}
