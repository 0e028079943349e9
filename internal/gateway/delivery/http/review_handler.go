package http

import (
	"net/http"
	"strconv"

	"rivalwatch/internal/gateway/service"
	"rivalwatch/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ReviewHandler handles HTTP requests for the manual review queue.
type ReviewHandler struct {
	reviewService service.ReviewService
	logger        *logger.Logger
}

// NewReviewHandler creates a new ReviewHandler.
func NewReviewHandler(reviewService service.ReviewService, logger *logger.Logger) *ReviewHandler {
	return &ReviewHandler{reviewService: reviewService, logger: logger}
}

// RegisterRoutes registers the review queue routes to the Echo group.
func (h *ReviewHandler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.ListReviewItems)
	g.POST("/:id/resolve", h.ResolveReviewItem)
}

// ListReviewItems godoc
// @Summary List review queue items
// @Description List signals queued for manual handling, newest first
// @Tags reviews
// @Produce  json
// @Param   status  query   string false   "Filter by status (open, resolved)"
// @Param   kind    query   string false   "Filter by kind (extraction_failure, verification_review)"
// @Param   limit   query   int    false   "Maximum number of items to return"
// @Success 200 {array} dto.ReviewItemResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /reviews [get]
func (h *ReviewHandler) ListReviewItems(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	items, err := h.reviewService.List(c.Request().Context(), c.QueryParam("status"), c.QueryParam("kind"), limit)
	if err != nil {
		h.logger.Error("Failed to list review items", logger.ErrorField(err))
		return respondServiceError(c, err)
	}

	return c.JSON(http.StatusOK, items)
}

// ResolveReviewItem godoc
// @Summary Resolve a review item
// @Description Close an open review item; resolving twice returns the already resolved item
// @Tags reviews
// @Produce  json
// @Param   id  path    int true    "Review Item ID"
// @Success 200 {object} dto.ReviewItemResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /reviews/{id}/resolve [post]
func (h *ReviewHandler) ResolveReviewItem(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid review item ID"})
	}

	item, err := h.reviewService.Resolve(c.Request().Context(), uint(id))
	if err != nil {
		h.logger.Error("Failed to resolve review item", logger.ErrorField(err), logger.Field("review_item_id", id))
		return respondServiceError(c, err)
	}

	return c.JSON(http.StatusOK, item)
}
