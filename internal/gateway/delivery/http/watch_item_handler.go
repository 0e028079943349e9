package http

import (
	"net/http"
	"strconv"

	"rivalwatch/internal/gateway/dto"
	"rivalwatch/internal/gateway/service"
	"rivalwatch/pkg/logger"

	"github.com/labstack/echo/v4"
)

// WatchItemHandler handles HTTP requests for managing watch items.
type WatchItemHandler struct {
	watchItemService service.WatchItemService
	logger           *logger.Logger
}

// NewWatchItemHandler creates a new WatchItemHandler.
func NewWatchItemHandler(watchItemService service.WatchItemService, logger *logger.Logger) *WatchItemHandler {
	return &WatchItemHandler{watchItemService: watchItemService, logger: logger}
}

// RegisterRoutes registers the watch item routes to the Echo group.
func (h *WatchItemHandler) RegisterRoutes(g *echo.Group) {
	g.POST("", h.CreateWatchItem)
	g.GET("", h.GetAllWatchItems)
	g.GET("/:id", h.GetWatchItemByID)
	g.PUT("/:id", h.UpdateWatchItem)
	g.DELETE("/:id", h.DeleteWatchItem)
}

// CreateWatchItem godoc
// @Summary Create a new watch item
// @Description Register a competitor or market entity to track
// @Tags watch-items
// @Accept  json
// @Produce  json
// @Param   watch_item  body    dto.CreateWatchItemRequest true    "Watch item to create"
// @Success 201 {object} dto.WatchItemResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /watch-items [post]
func (h *WatchItemHandler) CreateWatchItem(c echo.Context) error {
	req := new(dto.CreateWatchItemRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}

	item, err := h.watchItemService.Create(c.Request().Context(), req)
	if err != nil {
		h.logger.Error("Failed to create watch item", logger.ErrorField(err))
		return respondServiceError(c, err)
	}

	return c.JSON(http.StatusCreated, item)
}

// GetAllWatchItems godoc
// @Summary Get all watch items
// @Description Get every registered watch item, including inactive ones
// @Tags watch-items
// @Produce  json
// @Success 200 {array} dto.WatchItemResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /watch-items [get]
func (h *WatchItemHandler) GetAllWatchItems(c echo.Context) error {
	items, err := h.watchItemService.GetAll(c.Request().Context())
	if err != nil {
		h.logger.Error("Failed to get watch items", logger.ErrorField(err))
		return respondServiceError(c, err)
	}
	return c.JSON(http.StatusOK, items)
}

// GetWatchItemByID godoc
// @Summary Get a watch item by ID
// @Description Get a single watch item by its ID
// @Tags watch-items
// @Produce  json
// @Param   id  path    int true    "Watch Item ID"
// @Success 200 {object} dto.WatchItemResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /watch-items/{id} [get]
func (h *WatchItemHandler) GetWatchItemByID(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid watch item ID"})
	}

	item, err := h.watchItemService.GetByID(c.Request().Context(), uint(id))
	if err != nil {
		return respondServiceError(c, err)
	}

	return c.JSON(http.StatusOK, item)
}

// UpdateWatchItem godoc
// @Summary Update a watch item
// @Description Replace the editable fields of an existing watch item
// @Tags watch-items
// @Accept  json
// @Produce  json
// @Param   id          path    int                        true    "Watch Item ID"
// @Param   watch_item  body    dto.UpdateWatchItemRequest true    "Updated watch item"
// @Success 200 {object} dto.WatchItemResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /watch-items/{id} [put]
func (h *WatchItemHandler) UpdateWatchItem(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid watch item ID"})
	}

	req := new(dto.UpdateWatchItemRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid request body"})
	}

	item, err := h.watchItemService.Update(c.Request().Context(), uint(id), req)
	if err != nil {
		h.logger.Error("Failed to update watch item", logger.ErrorField(err), logger.Field("watch_item_id", id))
		return respondServiceError(c, err)
	}

	return c.JSON(http.StatusOK, item)
}

// DeleteWatchItem godoc
// @Summary Delete a watch item
// @Description Soft-delete a watch item; its cards and runs stay readable
// @Tags watch-items
// @Produce  json
// @Param   id  path    int true    "Watch Item ID"
// @Success 204 "No Content"
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /watch-items/{id} [delete]
func (h *WatchItemHandler) DeleteWatchItem(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "Invalid watch item ID"})
	}

	if err := h.watchItemService.Delete(c.Request().Context(), uint(id)); err != nil {
		return respondServiceError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}
