package http

import (
	"net/http"
	"strconv"

	"rivalwatch/internal/gateway/dto"
	"rivalwatch/internal/gateway/service"
	"rivalwatch/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ImpactCardHandler handles HTTP requests for impact cards.
type ImpactCardHandler struct {
	cardService service.ImpactCardService
	logger      *logger.Logger
}

// NewImpactCardHandler creates a new ImpactCardHandler.
func NewImpactCardHandler(cardService service.ImpactCardService, logger *logger.Logger) *ImpactCardHandler {
	return &ImpactCardHandler{cardService: cardService, logger: logger}
}

// RegisterRoutes registers the impact card routes to the Echo group.
func (h *ImpactCardHandler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.ListImpactCards)
	g.GET("/:id", h.GetImpactCardByID)
	g.POST("/:id/acknowledge", h.AcknowledgeImpactCard)
}

// ListImpactCards godoc
// @Summary List impact cards
// @Description List assembled impact cards, newest first, with optional filters
// @Tags cards
// @Produce  json
// @Param   watch_item_id  query   int    false   "Filter by watch item"
// @Param   risk_level     query   string false   "Filter by risk level (Critical, High, Medium, Low)"
// @Param   limit          query   int    false   "Maximum number of cards to return"
// @Success 200 {array} dto.ImpactCardResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /cards [get]
func (h *ImpactCardHandler) ListImpactCards(c echo.Context) error {
	query := new(dto.ListImpactCardsQuery)
	if err := c.Bind(query); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid query parameters"})
	}

	cards, err := h.cardService.List(c.Request().Context(), query)
	if err != nil {
		h.logger.Error("Failed to list impact cards", logger.ErrorField(err))
		return respondServiceError(c, err)
	}

	return c.JSON(http.StatusOK, cards)
}

// GetImpactCardByID godoc
// @Summary Get an impact card by ID
// @Description Get a single impact card with its risk breakdown, confidence rationale, actions and sources
// @Tags cards
// @Produce  json
// @Param   id  path    int true    "Impact Card ID"
// @Success 200 {object} dto.ImpactCardResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /cards/{id} [get]
func (h *ImpactCardHandler) GetImpactCardByID(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid impact card ID"})
	}

	card, err := h.cardService.GetByID(c.Request().Context(), uint(id))
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(http.StatusOK, card)
}

// AcknowledgeImpactCard godoc
// @Summary Acknowledge an impact card
// @Description Stamp the card with an acknowledgement timestamp; the analytical content never changes
// @Tags cards
// @Produce  json
// @Param   id  path    int true    "Impact Card ID"
// @Success 200 {object} dto.ImpactCardResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /cards/{id}/acknowledge [post]
func (h *ImpactCardHandler) AcknowledgeImpactCard(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid impact card ID"})
	}

	card, err := h.cardService.Acknowledge(c.Request().Context(), uint(id))
	if err != nil {
		h.logger.Error("Failed to acknowledge impact card", logger.ErrorField(err), logger.Field("impact_card_id", id))
		return respondServiceError(c, err)
	}

	return c.JSON(http.StatusOK, card)
}
