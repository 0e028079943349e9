package http

import (
	"errors"
	"net/http"

	"rivalwatch/internal/gateway/service"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

// respondServiceError maps service errors onto HTTP status codes.
func respondServiceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, service.ErrInvalidInput):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, service.ErrWatchItemInactive):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": err.Error()})
	}
}
