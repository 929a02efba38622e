package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/ccmanuelf/kpi-operations-sub011/pkg/events"
	"github.com/ccmanuelf/kpi-operations-sub011/pkg/models"
	"github.com/ccmanuelf/kpi-operations-sub011/pkg/persistence"
	"github.com/ccmanuelf/kpi-operations-sub011/pkg/workflow"
)

// configDocumentSchema gates the raw administrative document before any
// semantic validation. The document is untrusted input.
var configDocumentSchema = map[string]any{
	"type":                 "object",
	"required":             []string{"statuses", "transitions", "closure_trigger"},
	"additionalProperties": false,
	"properties": map[string]any{
		"statuses": map[string]any{
			"type":     "array",
			"minItems": 1,
			"items":    map[string]any{"type": "string"},
		},
		"transitions": map[string]any{
			"type": "object",
			"additionalProperties": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		"optional_statuses": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
		"terminal_statuses": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
		"start_status": map[string]any{"type": "string"},
		"phase_markers": map[string]any{
			"type":                 "object",
			"additionalProperties": map[string]any{"type": "string"},
		},
		"closure_trigger": map[string]any{"type": "string"},
	},
}

// Config administers tenant workflow configurations: schema gating,
// normalization, graph validation, versioned storage and the config-updated
// event.
type Config struct {
	persistence persistence.Persistence
	publisher   workflow.Publisher
	logger      *slog.Logger
}

func NewConfig(p persistence.Persistence, publisher workflow.Publisher, logger *slog.Logger) *Config {
	return &Config{
		persistence: p,
		publisher:   publisher,
		logger:      logger.With("module", "config_service"),
	}
}

// PutConfigResult reports the stored version and the validator's advisory
// warnings.
type PutConfigResult struct {
	Version  int64                        `json:"version"`
	Warnings []workflow.ValidationWarning `json:"warnings,omitempty"`
}

// Put validates and stores a new configuration version from the raw JSON
// document the administrative UI submits. A malformed document fails the
// schema gate; a well-formed document with a broken graph fails
// workflow.ValidateConfig and the tenant's existing config stays active.
func (s *Config) Put(ctx context.Context, tenantID string, raw []byte, updatedBy string) (*PutConfigResult, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, ErrEmptyTenantID
	}

	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(configDocumentSchema), gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, NewValidationError("PutConfig", "MALFORMED_DOCUMENT", err.Error(), ErrMalformedDocument)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return nil, NewValidationError("PutConfig", "MALFORMED_DOCUMENT", strings.Join(details, "; "), ErrMalformedDocument)
	}

	var doc models.WorkflowConfigDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, NewValidationError("PutConfig", "MALFORMED_DOCUMENT", err.Error(), ErrMalformedDocument)
	}

	config := normalizeDocument(tenantID, doc, updatedBy)

	warnings, err := workflow.ValidateConfig(config)
	if err != nil {
		return nil, err
	}

	version, err := s.persistence.Configs().Put(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to store workflow config: %w", err)
	}

	s.logger.InfoContext(ctx, "Workflow configuration updated",
		"tenant_id", tenantID,
		"version", version,
		"updated_by", updatedBy,
		"warnings", len(warnings),
	)

	s.publishUpdated(ctx, config, version, warnings)

	return &PutConfigResult{Version: version, Warnings: warnings}, nil
}

// ActiveConfig returns the tenant's active configuration. The boolean is true
// when the built-in default served the request because the tenant has no
// stored config.
func (s *Config) ActiveConfig(ctx context.Context, tenantID string) (*models.WorkflowConfig, bool, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, false, ErrEmptyTenantID
	}

	config, err := s.persistence.Configs().GetActive(ctx, tenantID)
	if err != nil {
		if persistence.IsConfigNotFound(err) {
			return workflow.DefaultConfig(tenantID), true, nil
		}

		return nil, false, err
	}

	return config, false, nil
}

// ConfigVersion returns one stored version; version 0 resolves to the
// built-in default.
func (s *Config) ConfigVersion(ctx context.Context, tenantID string, version int64) (*models.WorkflowConfig, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, ErrEmptyTenantID
	}

	if version == workflow.DefaultConfigVersion {
		return workflow.DefaultConfig(tenantID), nil
	}

	return s.persistence.Configs().GetVersion(ctx, tenantID, version)
}

func (s *Config) publishUpdated(ctx context.Context, config *models.WorkflowConfig, version int64, warnings []workflow.ValidationWarning) {
	if s.publisher == nil {
		return
	}

	event := events.WorkflowConfigUpdated{
		BaseEvent: events.NewBaseEvent(events.WorkflowConfigUpdatedEvent, config.TenantID),
		Version:   version,
		UpdatedBy: config.UpdatedBy,
	}

	for _, status := range config.Statuses {
		event.Statuses = append(event.Statuses, string(status))
	}

	for _, w := range warnings {
		event.Warnings = append(event.Warnings, w.Rule+": "+w.Detail)
	}

	if err := s.publisher.Publish(ctx, config.TenantID, event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish config updated event", "tenant_id", config.TenantID, "error", err)
	}
}

// normalizeDocument case-normalizes every status reference so the stored
// config compares statuses in one canonical form.
func normalizeDocument(tenantID string, doc models.WorkflowConfigDocument, updatedBy string) *models.WorkflowConfig {
	config := &models.WorkflowConfig{
		TenantID:       tenantID,
		Statuses:       normalizeStatuses(doc.Statuses),
		Transitions:    make(map[models.Status][]models.Status, len(doc.Transitions)),
		StartStatus:    models.NormalizeStatus(doc.StartStatus),
		ClosureTrigger: models.ClosureTrigger(strings.ToUpper(strings.TrimSpace(doc.ClosureTrigger))),
		UpdatedBy:      updatedBy,
	}

	for target, sources := range doc.Transitions {
		config.Transitions[models.NormalizeStatus(target)] = normalizeStatuses(sources)
	}

	config.OptionalStatuses = normalizeStatuses(doc.OptionalStatuses)
	config.TerminalStatuses = normalizeStatuses(doc.TerminalStatuses)

	if len(doc.PhaseMarkers) > 0 {
		config.PhaseMarkers = make(map[models.Phase]models.Status, len(doc.PhaseMarkers))
		for phase, status := range doc.PhaseMarkers {
			key := models.Phase(strings.ToLower(strings.TrimSpace(phase)))
			config.PhaseMarkers[key] = models.NormalizeStatus(status)
		}
	}

	return config
}

func normalizeStatuses(raw []string) []models.Status {
	if raw == nil {
		return nil
	}

	statuses := make([]models.Status, 0, len(raw))
	for _, s := range raw {
		statuses = append(statuses, models.NormalizeStatus(s))
	}

	return statuses
}
