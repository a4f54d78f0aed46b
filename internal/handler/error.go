package handler

import (
	"errors"
	"net/http"

	"shopflow/internal/apperr"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// apperrの分類→HTTPステータスの変換はここだけ
func writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found"})
	case errors.Is(err, apperr.ErrInvalidQuantity):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid quantity"})
	case errors.Is(err, apperr.ErrInvalidState):
		return c.JSON(http.StatusConflict, ErrorResponse{Error: "invalid state"})
	case errors.Is(err, apperr.ErrInvalidSignature):
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid payment signature"})
	case errors.Is(err, apperr.ErrGateway):
		return c.JSON(http.StatusBadGateway, ErrorResponse{Error: "payment gateway error"})
	default:
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

func getUserIDFromContext(c echo.Context) (int64, bool) {
	v := c.Get("user_id")
	id, ok := v.(int64)
	if !ok || id <= 0 {
		return 0, false
	}
	return id, true
}
