package http

import (
	"net/http"
	"strconv"

	"rivalwatch/internal/gateway/service"
	"rivalwatch/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ResearchHandler handles HTTP requests for deep-research reports.
type ResearchHandler struct {
	researchService service.ResearchService
	logger          *logger.Logger
}

// NewResearchHandler creates a new ResearchHandler.
func NewResearchHandler(researchService service.ResearchService, logger *logger.Logger) *ResearchHandler {
	return &ResearchHandler{researchService: researchService, logger: logger}
}

// RegisterRoutes registers the research report routes to the Echo group.
func (h *ResearchHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/:id", h.GetResearchReportByID)
}

// RegisterCardRoutes registers the card-scoped research routes.
func (h *ResearchHandler) RegisterCardRoutes(g *echo.Group) {
	g.POST("/:id/research", h.RequestResearch)
}

// RequestResearch godoc
// @Summary Request a deep-research report
// @Description Start deep research for an impact card; a report still generating or inside its cache window is returned instead of a new one
// @Tags research
// @Produce  json
// @Param   id  path    int true    "Impact Card ID"
// @Success 202 {object} dto.ResearchReportResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /cards/{id}/research [post]
func (h *ResearchHandler) RequestResearch(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid impact card ID"})
	}

	report, err := h.researchService.Request(c.Request().Context(), uint(id))
	if err != nil {
		h.logger.Error("Failed to request research", logger.ErrorField(err), logger.Field("impact_card_id", id))
		return respondServiceError(c, err)
	}

	return c.JSON(http.StatusAccepted, report)
}

// GetResearchReportByID godoc
// @Summary Get a research report by ID
// @Description Poll a deep-research report; Status moves through pending, running and completed or failed
// @Tags research
// @Produce  json
// @Param   id  path    int true    "Research Report ID"
// @Success 200 {object} dto.ResearchReportResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /research/{id} [get]
func (h *ResearchHandler) GetResearchReportByID(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid research report ID"})
	}

	report, err := h.researchService.GetByID(c.Request().Context(), uint(id))
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(http.StatusOK, report)
}
