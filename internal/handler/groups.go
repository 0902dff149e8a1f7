package handler

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/observation-tools/observation-tools/internal/service"
	"github.com/observation-tools/observation-tools/model"
)

// GroupsHandler resolves group ids to their observations.
type GroupsHandler struct {
	query  *service.Query
	logger *zap.Logger
}

// NewGroupsHandler creates a groups handler.
func NewGroupsHandler(query *service.Query, logger *zap.Logger) *GroupsHandler {
	return &GroupsHandler{query: query, logger: logger}
}

// Get handles GET /api/groups/:groupId, returning the observation that
// represents the group.
func (h *GroupsHandler) Get(c *fiber.Ctx) error {
	groupID := model.GroupID(c.Params("groupId"))
	if groupID == "" {
		return errorResponse(c, fiber.StatusBadRequest, "group id required")
	}

	observation, err := h.query.GetGroup(groupID)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(model.GetObservationResponse{Observation: *observation})
}
