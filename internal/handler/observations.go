package handler

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/observation-tools/observation-tools/internal/middleware"
	"github.com/observation-tools/observation-tools/internal/service"
	"github.com/observation-tools/observation-tools/internal/storage"
	"github.com/observation-tools/observation-tools/model"
)

// ObservationsHandler serves the observation endpoints.
type ObservationsHandler struct {
	ingestion *service.Ingestion
	query     *service.Query
	logger    *zap.Logger
}

// NewObservationsHandler creates an observations handler.
func NewObservationsHandler(ingestion *service.Ingestion, query *service.Query, logger *zap.Logger) *ObservationsHandler {
	return &ObservationsHandler{ingestion: ingestion, query: query, logger: logger}
}

// Create handles POST /api/exe/:executionId/obs: the multipart batch
// upload. The body is consumed part by part rather than parsed into a
// buffered form.
func (h *ObservationsHandler) Create(c *fiber.Ctx) error {
	executionID, err := model.ParseExecutionID(c.Params("executionId"))
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "invalid execution id")
	}

	form, err := multipartReader(c)
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, err.Error())
	}

	if err := h.ingestion.IngestObservations(c.Context(), executionID, form); err != nil {
		return respondError(c, h.logger, err)
	}

	middleware.ObservationsIngested.WithLabelValues(executionID.String()).Inc()
	return c.JSON(model.CreateObservationsResponse{})
}

// List handles GET /api/exe/:executionId/obs with optional
// observation_type and group filters.
func (h *ObservationsHandler) List(c *fiber.Ctx) error {
	executionID, err := model.ParseExecutionID(c.Params("executionId"))
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "invalid execution id")
	}

	p := ParsePagination(c)
	opts := storage.ListOptions{Limit: p.Limit, Offset: p.Offset}

	if typeParam := c.Query("observation_type"); typeParam != "" {
		switch t := model.ObservationType(typeParam); t {
		case model.TypeLogEntry, model.TypePayload, model.TypeSpan, model.TypeGroup:
			opts.Type = t
		default:
			return errorResponse(c, fiber.StatusBadRequest, "invalid observation_type")
		}
	}

	// group=root lists top-level observations; any other value lists the
	// direct descendants of that group.
	if groupParam := c.Query("group"); groupParam != "" {
		opts.HasGroup = true
		if groupParam != "root" {
			opts.Group = model.GroupID(groupParam)
		}
	}

	observations, hasNextPage, err := h.query.ListObservations(executionID, opts)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(model.ListObservationsResponse{
		Observations: observations,
		HasNextPage:  hasNextPage,
	})
}

// Get handles GET /api/exe/:executionId/obs/:observationId.
func (h *ObservationsHandler) Get(c *fiber.Ctx) error {
	observationID, err := model.ParseObservationID(c.Params("observationId"))
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "invalid observation id")
	}

	observation, err := h.query.GetObservation(observationID)
	if err != nil {
		return respondError(c, h.logger, err)
	}

	return c.JSON(model.GetObservationResponse{Observation: *observation})
}

// GetContent handles GET /api/exe/:executionId/obs/:observationId/content,
// returning the payload bytes from whichever tier holds them. The
// optional payload query parameter selects a named payload; the default
// is the primary one.
func (h *ObservationsHandler) GetContent(c *fiber.Ctx) error {
	observationID, err := model.ParseObservationID(c.Params("observationId"))
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "invalid observation id")
	}

	content, err := h.query.GetContent(c.Context(), observationID, c.Query("payload"))
	if err != nil {
		return respondError(c, h.logger, err)
	}

	c.Set(fiber.HeaderContentType, content.MimeType)
	return c.SendStream(content.Body, int(content.Size))
}

// UploadBlob handles POST /api/exe/:executionId/obs/:observationId/blob:
// out-of-band upload of a large payload's raw bytes.
func (h *ObservationsHandler) UploadBlob(c *fiber.Ctx) error {
	observationID, err := model.ParseObservationID(c.Params("observationId"))
	if err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "invalid observation id")
	}

	var payloadID *model.PayloadID
	if raw := c.Query("payload_id"); raw != "" {
		parsed, err := model.ParsePayloadID(raw)
		if err != nil {
			return errorResponse(c, fiber.StatusBadRequest, "invalid payload id")
		}
		payloadID = &parsed
	}

	body, size := requestBody(c)
	if err := h.ingestion.IngestBlob(c.Context(), observationID, payloadID, body, size); err != nil {
		return respondError(c, h.logger, err)
	}
	if size > 0 {
		middleware.BlobBytesStored.Add(float64(size))
	}

	return c.JSON(fiber.Map{})
}

// multipartReader exposes the request body as a streaming multipart
// reader.
func multipartReader(c *fiber.Ctx) (*multipart.Reader, error) {
	contentType := string(c.Request().Header.ContentType())
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") {
		return nil, fiber.NewError(fiber.StatusBadRequest, "expected multipart form body")
	}
	boundary := params["boundary"]
	if boundary == "" {
		return nil, fiber.NewError(fiber.StatusBadRequest, "multipart boundary missing")
	}

	body, _ := requestBody(c)
	return multipart.NewReader(body, boundary), nil
}

// requestBody returns the request body as a reader plus its size when
// known (-1 for chunked bodies under streaming).
func requestBody(c *fiber.Ctx) (io.Reader, int64) {
	if c.App().Config().StreamRequestBody {
		if stream := c.Context().RequestBodyStream(); stream != nil {
			size := int64(c.Request().Header.ContentLength())
			return stream, size
		}
	}
	body := c.Body()
	return bytes.NewReader(body), int64(len(body))
}
