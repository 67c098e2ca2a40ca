package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handler registers a group of routes on the server.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}

// APIResponse is the {status,message,data} envelope every /api route answers with.
type APIResponse struct {
	Status  int         `json:"status"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ValidationError describes one rejected request field.
type ValidationError struct {
	Code    string                 `json:"code,omitempty"`
	Field   string                 `json:"field,omitempty"`
	Message string                 `json:"message,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// ListData wraps a collection with its size.
type ListData struct {
	Rows  interface{} `json:"rows"`
	Total int64       `json:"total"`
}

func DataResponse(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, APIResponse{Status: status, Message: http.StatusText(status), Data: data})
}

func ListResponse(c echo.Context, rows interface{}, total int64) error {
	return DataResponse(c, http.StatusOK, &ListData{Rows: rows, Total: total})
}

func SuccessResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusOK, data)
}

func CreatedResponse(c echo.Context, data interface{}) error {
	return DataResponse(c, http.StatusCreated, data)
}

func NoContentResponse(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}

// BadRequestResponse reports field-level validation failures.
func BadRequestResponse(c echo.Context, errs []ValidationError) error {
	return DataResponse(c, http.StatusBadRequest, errs)
}

// AppErrorResponse renders err as an envelope carrying the AppError, or a
// generic 500 when err is not one.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return DataResponse(c, appErr.Status, []*AppError{appErr})
	}
	return DataResponse(c, http.StatusInternalServerError, "Something went wrong")
}
