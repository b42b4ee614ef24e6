package web

import (
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/finwatch/sentinel/pkg/engine"
	"github.com/finwatch/sentinel/pkg/fraud"
	"github.com/finwatch/sentinel/pkg/models"
	"github.com/finwatch/sentinel/pkg/persistence"
	"github.com/finwatch/sentinel/pkg/registry"
	"github.com/finwatch/sentinel/pkg/services"
)

type APIHandlers struct {
	policyService *services.PolicyService
	engine        *engine.Engine
	pipeline      *fraud.Pipeline
	persist       persistence.Persistence
	validator     *validator.Validate
	registry      *registry.Registry
	logger        *slog.Logger
}

func NewAPIHandlers(
	logger *slog.Logger,
	policyService *services.PolicyService,
	eng *engine.Engine,
	pipeline *fraud.Pipeline,
	persist persistence.Persistence,
	validate *validator.Validate,
	reg *registry.Registry,
) *APIHandlers {
	return &APIHandlers{
		policyService: policyService,
		engine:        eng,
		pipeline:      pipeline,
		persist:       persist,
		validator:     validate,
		registry:      reg,
		logger:        logger.With("module", "web"),
	}
}

func (h *APIHandlers) GetPolicies(c fiber.Ctx) error {
	policies, err := h.policyService.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"policies": policies})
}

func (h *APIHandlers) GetPolicy(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Policy ID is required")
	}

	policy, err := h.policyService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(policy)
}

func (h *APIHandlers) CreatePolicy(c fiber.Ctx) error {
	var req CreatePolicyRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	policy := &models.Policy{
		Name:               req.Name,
		Type:               req.Type,
		WorkflowDefinition: req.Definition,
		ABTestConfig:       req.ABTestConfig,
		Metadata:           req.Metadata,
	}

	warnings, err := h.policyService.Create(c.Context(), policy)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(PolicyResponse{Policy: policy, Warnings: warnings})
}

func (h *APIHandlers) UpdatePolicyDefinition(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Policy ID is required")
	}

	var req UpdateDefinitionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return badRequest(c, err.Error())
	}

	warnings, err := h.policyService.UpdateDefinition(c.Context(), id, req.Definition)
	if err != nil {
		return handleServiceError(c, err)
	}

	policy, err := h.policyService.FetchByID(c.Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(PolicyResponse{Policy: policy, Warnings: warnings})
}

func (h *APIHandlers) ActivatePolicy(c fiber.Ctx) error {
	policy, err := h.policyService.Activate(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(policy)
}

func (h *APIHandlers) PausePolicy(c fiber.Ctx) error {
	policy, err := h.policyService.Pause(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(policy)
}

func (h *APIHandlers) ArchivePolicy(c fiber.Ctx) error {
	policy, err := h.policyService.Archive(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(policy)
}

func (h *APIHandlers) ExecutePolicy(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Policy ID is required")
	}

	var req ExecutePolicyRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	trace, err := h.engine.ExecutePolicy(c.Context(), id, req.InputData)
	if err != nil {
		if persistence.IsPolicyNotFound(err) {
			return notFound(c, "policy not found")
		}

		return badRequest(c, err.Error())
	}

	return c.JSON(trace)
}

func (h *APIHandlers) GetExecution(c fiber.Ctx) error {
	trace, err := h.persist.TraceRepository().TraceByExecutionID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(trace)
}

func (h *APIHandlers) GetPolicyExecutions(c fiber.Ctx) error {
	traces, err := h.persist.TraceRepository().TracesByPolicy(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"executions": traces})
}

// EvaluateTransaction runs the full fraud model catalogue against a
// transaction, referenced by ID or submitted inline.
func (h *APIHandlers) EvaluateTransaction(c fiber.Ctx) error {
	var req EvaluateTransactionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid request body: "+err.Error())
	}

	var tx *models.Transaction

	switch {
	case req.Transaction != nil:
		tx = req.Transaction
		if err := h.validator.Struct(tx); err != nil {
			return badRequest(c, err.Error())
		}

		if tx.Status == "" {
			tx.Status = models.TransactionStatusPending
		}

		if err := h.persist.TransactionRepository().SaveTransaction(c.Context(), tx); err != nil {
			return internalError(c, err)
		}
	case req.TransactionID != "":
		stored, err := h.persist.TransactionRepository().TransactionByID(c.Context(), req.TransactionID)
		if err != nil {
			return handleServiceError(c, err)
		}

		tx = stored
	default:
		return badRequest(c, "transaction_id or transaction is required")
	}

	alerts, err := h.pipeline.Evaluate(c.Context(), tx)
	if err != nil {
		return internalError(c, err)
	}

	if alerts == nil {
		alerts = []*models.FraudAlert{}
	}

	return c.JSON(EvaluateTransactionResponse{
		Success:       true,
		FraudDetected: len(alerts) > 0,
		AlertsCreated: len(alerts),
		Alerts:        alerts,
	})
}

func (h *APIHandlers) GetTransactionAlerts(c fiber.Ctx) error {
	id := c.Params("id")

	if _, err := h.persist.TransactionRepository().TransactionByID(c.Context(), id); err != nil {
		return handleServiceError(c, err)
	}

	alerts, err := h.persist.FraudAlertRepository().AlertsByTransaction(c.Context(), id)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"alerts": alerts})
}

// GetNodeKinds lists registered node kinds with their config schemas for
// the graph editor.
func (h *APIHandlers) GetNodeKinds(c fiber.Ctx) error {
	kinds := h.registry.Kinds()

	response := make([]NodeKindResponse, 0, len(kinds))
	for _, kind := range kinds {
		response = append(response, NodeKindResponse{Kind: kind, Schema: registry.ConfigSchema(kind)})
	}

	return c.JSON(fiber.Map{"kinds": response})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	if err := h.persist.HealthCheck(c.Context()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unhealthy", "error": err.Error()})
	}

	return c.JSON(fiber.Map{"status": "healthy"})
}
