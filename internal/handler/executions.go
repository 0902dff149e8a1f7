package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/observation-tools/observation-tools/internal/service"
	"github.com/observation-tools/observation-tools/model"
)

// ExecutionsHandler serves the execution endpoints.
type ExecutionsHandler struct {
	ingestion *service.Ingestion
	query     *service.Query
	logger    *zap.Logger
}

// NewExecutionsHandler creates an executions handler.
func NewExecutionsHandler(ingestion *service.Ingestion, query *service.Query, logger *zap.Logger) *ExecutionsHandler {
	return &ExecutionsHandler{ingestion: ingestion, query: query, logger: logger}
}

// Create handles POST /api/exe.
func (h *ExecutionsHandler) Create(c *fiber.Ctx) error {
	var req model.CreateExecutionRequest
	if err := c.BodyParser(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "invalid request body: "+err.Error())
	}

	if err := h.ingestion.IngestExecution(&req.Execution); err != nil {
		return respondError(c, h.logger, err)
	}

	h.logger.Debug("execution created",
		zap.String("execution_id", req.Execution.ID.String()),
		zap.String("name", req.Execution.Name))
	return c.JSON(model.CreateExecutionResponse{})
}

// List handles GET /api/exe.
func (h *ExecutionsHandler) List(c *fiber.Ctx) error {
	p := ParsePagination(c)

	executions, hasNextPage, err := h.query.ListExecutions(p.Limit, p.Offset)
	if err != nil {
		return respondError(c, h.logger, err)
	}
	if executions == nil {
		executions = []model.Execution{}
	}

	return c.JSON(model.ListExecutionsResponse{
		Executions:  executions,
		HasNextPage: hasNextPage,
	})
}

// Get handles GET /api/exe/:id.
func (h *ExecutionsHandler) Get(c *fiber.Ctx) error {
	id, err := model.ParseExecutionID(c.Params("id"))
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "invalid execution id")
	}

	execution, err := h.query.GetExecution(id)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(model.GetExecutionResponse{Execution: *execution})
}
