package http

import (
	"net/http"
	"strconv"

	"rivalwatch/internal/gateway/service"
	"rivalwatch/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RunHandler handles HTTP requests for card-generation runs.
type RunHandler struct {
	runService service.RunService
	logger     *logger.Logger
}

// NewRunHandler creates a new RunHandler.
func NewRunHandler(runService service.RunService, logger *logger.Logger) *RunHandler {
	return &RunHandler{runService: runService, logger: logger}
}

// RegisterRoutes registers the run routes to the Echo group.
func (h *RunHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/:id", h.GetRunByID)
}

// RegisterWatchItemRoutes registers the watch-item-scoped run routes.
func (h *RunHandler) RegisterWatchItemRoutes(g *echo.Group) {
	g.POST("/:id/runs", h.TriggerRun)
	g.GET("/:id/runs", h.GetRunsByWatchItemID)
}

// TriggerRun godoc
// @Summary Trigger a card-generation run
// @Description Enqueue a pipeline run for the watch item and return its handle; requests inside the debounce window return the most recent run instead
// @Tags runs
// @Produce  json
// @Param   id  path    int true    "Watch Item ID"
// @Success 202 {object} dto.TriggerRunResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /watch-items/{id}/runs [post]
func (h *RunHandler) TriggerRun(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid watch item ID"})
	}

	resp, err := h.runService.Trigger(c.Request().Context(), uint(id))
	if err != nil {
		h.logger.Error("Failed to trigger run", logger.ErrorField(err), logger.Field("watch_item_id", id))
		return respondServiceError(c, err)
	}

	return c.JSON(http.StatusAccepted, resp)
}

// GetRunByID godoc
// @Summary Get a run by ID
// @Description Get the status of a single card-generation run
// @Tags runs
// @Produce  json
// @Param   id  path    int true    "Run ID"
// @Success 200 {object} dto.PipelineRunResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /runs/{id} [get]
func (h *RunHandler) GetRunByID(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid run ID"})
	}

	run, err := h.runService.GetByID(c.Request().Context(), uint(id))
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(http.StatusOK, run)
}

// GetRunsByWatchItemID godoc
// @Summary Get runs for a watch item
// @Description Get the most recent card-generation runs for a watch item
// @Tags runs
// @Produce  json
// @Param   id     path    int true    "Watch Item ID"
// @Param   limit  query   int false   "Maximum number of runs to return"
// @Success 200 {array} dto.PipelineRunResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /watch-items/{id}/runs [get]
func (h *RunHandler) GetRunsByWatchItemID(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid watch item ID"})
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	runs, err := h.runService.ListByWatchItem(c.Request().Context(), uint(id), limit)
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(http.StatusOK, runs)
}
