// Package web provides HTTP handlers and REST API endpoints for the work-order
// workflow engine.
package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/ccmanuelf/kpi-operations-sub011/pkg/persistence"
	"github.com/ccmanuelf/kpi-operations-sub011/pkg/services"
	"github.com/ccmanuelf/kpi-operations-sub011/pkg/workflow"
)

type APIHandlers struct {
	transitionService *services.Transition
	configService     *services.Config
	analyticsService  *services.Analytics
	validator         *validator.Validate
}

func NewAPIHandlers(
	transitionService *services.Transition,
	configService *services.Config,
	analyticsService *services.Analytics,
	validator *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		transitionService: transitionService,
		configService:     configService,
		analyticsService:  analyticsService,
		validator:         validator,
	}
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	repositoryCheck, repOk := h.transitionService.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Workflow engine API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if repOk {
		status = "healthy"
		message = "Workflow engine API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"repository": repositoryCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}

func (h *APIHandlers) RegisterWorkOrder(c fiber.Ctx) error {
	tenantID := c.Params("tenantID")
	if tenantID == "" {
		return badRequest(c, "Tenant ID is required")
	}

	var req RegisterWorkOrderRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	order, err := h.transitionService.RegisterWorkOrder(c.Context(), services.RegisterWorkOrderRequest{
		TenantID:  tenantID,
		Reference: req.Reference,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(order)
}

func (h *APIHandlers) GetWorkOrder(c fiber.Ctx) error {
	tenantID := c.Params("tenantID")
	id := c.Params("id")

	if tenantID == "" || id == "" {
		return badRequest(c, "Tenant ID and work order ID are required")
	}

	order, err := h.transitionService.GetWorkOrder(c.Context(), tenantID, id)
	if err != nil {
		if persistence.IsWorkOrderNotFound(err) {
			return notFound(c, "Work order not found")
		}

		return handleServiceError(c, err)
	}

	return c.JSON(order)
}

func (h *APIHandlers) ExecuteTransition(c fiber.Ctx) error {
	tenantID := c.Params("tenantID")
	id := c.Params("id")

	if tenantID == "" || id == "" {
		return badRequest(c, "Tenant ID and work order ID are required")
	}

	var req ExecuteTransitionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.transitionService.Execute(c.Context(), services.ExecuteTransitionRequest{
		TenantID:       tenantID,
		WorkOrderID:    id,
		TargetStatus:   req.TargetStatus,
		ActorID:        req.ActorID,
		TriggerSource:  req.TriggerSource,
		Notes:          req.Notes,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	// Replays return the originally committed transition, not a new one.
	status := fiber.StatusCreated
	if result.Replayed {
		status = fiber.StatusOK
	}

	return c.Status(status).JSON(TransformTransitionResponse(result))
}

func (h *APIHandlers) GetTransitionHistory(c fiber.Ctx) error {
	tenantID := c.Params("tenantID")
	id := c.Params("id")

	if tenantID == "" || id == "" {
		return badRequest(c, "Tenant ID and work order ID are required")
	}

	entries, err := h.transitionService.History(c.Context(), tenantID, id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"work_order_id": id,
		"transitions":   entries,
		"count":         len(entries),
	})
}

func (h *APIHandlers) GetAllowedTargets(c fiber.Ctx) error {
	tenantID := c.Params("tenantID")
	id := c.Params("id")

	if tenantID == "" || id == "" {
		return badRequest(c, "Tenant ID and work order ID are required")
	}

	targets, err := h.transitionService.AllowedTargets(c.Context(), tenantID, id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"work_order_id":   id,
		"allowed_targets": targets,
	})
}

func (h *APIHandlers) GetLifecycle(c fiber.Ctx) error {
	tenantID := c.Params("tenantID")
	id := c.Params("id")

	if tenantID == "" || id == "" {
		return badRequest(c, "Tenant ID and work order ID are required")
	}

	view, err := h.analyticsService.Lifecycle(c.Context(), tenantID, id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(view)
}

// GetWorkflowConfig returns the tenant's active configuration, or the version
// named by the optional `version` query parameter. Version 0 is the built-in
// default.
func (h *APIHandlers) GetWorkflowConfig(c fiber.Ctx) error {
	tenantID := c.Params("tenantID")
	if tenantID == "" {
		return badRequest(c, "Tenant ID is required")
	}

	if versionStr := c.Query("version"); versionStr != "" {
		version, err := strconv.ParseInt(versionStr, 10, 64)
		if err != nil {
			return badRequest(c, "Invalid version: "+err.Error())
		}

		config, err := h.configService.ConfigVersion(c.Context(), tenantID, version)
		if err != nil {
			return handleServiceError(c, err)
		}

		return c.JSON(TransformConfigResponse(config, version == workflow.DefaultConfigVersion))
	}

	config, fallback, err := h.configService.ActiveConfig(c.Context(), tenantID)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(TransformConfigResponse(config, fallback))
}

// PutWorkflowConfig validates and stores a new configuration version. The
// submitting administrator identifies itself through the X-Actor-ID header.
func (h *APIHandlers) PutWorkflowConfig(c fiber.Ctx) error {
	tenantID := c.Params("tenantID")
	if tenantID == "" {
		return badRequest(c, "Tenant ID is required")
	}

	updatedBy := c.Get("X-Actor-ID")
	if updatedBy == "" {
		return badRequest(c, "X-Actor-ID header is required")
	}

	result, err := h.configService.Put(c.Context(), tenantID, c.Body(), updatedBy)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) GetStatusDistribution(c fiber.Ctx) error {
	tenantID := c.Params("tenantID")
	if tenantID == "" {
		return badRequest(c, "Tenant ID is required")
	}

	distribution, err := h.analyticsService.Distribution(c.Context(), tenantID)
	if err != nil {
		return handleServiceError(c, err)
	}

	var total int64
	for _, count := range distribution {
		total += count
	}

	return c.JSON(fiber.Map{
		"tenant_id":    tenantID,
		"distribution": distribution,
		"total":        total,
	})
}

func (h *APIHandlers) GetTransitionFrequency(c fiber.Ctx) error {
	req, err := h.parseFrequencyRequest(c)
	if err != nil {
		return badRequest(c, "Invalid query parameters: "+err.Error())
	}

	stats, err := h.analyticsService.Frequency(c.Context(), *req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(stats)
}

// parseFrequencyRequest parses and validates query parameters for the
// transition-frequency endpoint. An empty from_status selects first
// transitions; from/to bound the window as RFC 3339 timestamps.
func (h *APIHandlers) parseFrequencyRequest(c fiber.Ctx) (*services.FrequencyRequest, error) {
	req := &services.FrequencyRequest{
		TenantID:   c.Params("tenantID"),
		FromStatus: c.Query("from_status"),
		ToStatus:   c.Query("to_status"),
	}

	if fromStr := c.Query("from"); fromStr != "" {
		from, err := time.Parse(time.RFC3339, fromStr)
		if err != nil {
			return nil, err
		}

		req.From = from
	}

	if toStr := c.Query("to"); toStr != "" {
		to, err := time.Parse(time.RFC3339, toStr)
		if err != nil {
			return nil, err
		}

		req.To = to
	}

	return req, nil
}
