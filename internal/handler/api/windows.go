package api

import (
	"errors"

	"github.com/labstack/echo/v4"

	"ForexDash/internal/domain/models"
	"ForexDash/internal/pollcache"
	"ForexDash/internal/usecase"
	xhttp "ForexDash/pkg/http"
	xlogger "ForexDash/pkg/logger"
)

// WindowsHandler exposes the poll cache windows over REST and websocket.
type WindowsHandler struct {
	logger  *xlogger.Logger
	windows *usecase.WindowService
}

func NewWindowsHandler(logger *xlogger.Logger, windows *usecase.WindowService) *WindowsHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	return &WindowsHandler{logger: logger, windows: windows}
}

func (h *WindowsHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/windows")
	g.GET("", h.List)
	g.POST("/:symbol", h.Subscribe)
	g.GET("/:symbol", h.Snapshot)
	g.DELETE("/:symbol", h.Unsubscribe)
	g.POST("/:symbol/refresh", h.Refresh)
	g.POST("/:symbol/reset", h.Reset)

	e.GET("/ws/windows/:symbol", h.Stream)
}

func (h *WindowsHandler) List(c echo.Context) error {
	snaps := h.windows.List()
	return xhttp.ListResponse(c, snaps, int64(len(snaps)))
}

func (h *WindowsHandler) Subscribe(c echo.Context) error {
	req := &models.SymbolRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	snap, err := h.windows.Subscribe(req.Symbol)
	if err != nil {
		return h.fail(c, req.Symbol, err)
	}
	return xhttp.CreatedResponse(c, snap)
}

func (h *WindowsHandler) Snapshot(c echo.Context) error {
	req := &models.SymbolRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	snap, err := h.windows.Snapshot(req.Symbol)
	if err != nil {
		return h.fail(c, req.Symbol, err)
	}
	return xhttp.SuccessResponse(c, snap)
}

func (h *WindowsHandler) Unsubscribe(c echo.Context) error {
	req := &models.SymbolRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.windows.Unsubscribe(req.Symbol); err != nil {
		return h.fail(c, req.Symbol, err)
	}
	return xhttp.NoContentResponse(c)
}

func (h *WindowsHandler) Refresh(c echo.Context) error {
	return h.restart(c, h.windows.Refresh)
}

func (h *WindowsHandler) Reset(c echo.Context) error {
	return h.restart(c, h.windows.Reset)
}

func (h *WindowsHandler) restart(c echo.Context, fn func(string) (models.WindowSnapshot, error)) error {
	req := &models.SymbolRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	snap, err := fn(req.Symbol)
	if err != nil {
		return h.fail(c, req.Symbol, err)
	}
	return xhttp.SuccessResponse(c, snap)
}

func (h *WindowsHandler) fail(c echo.Context, symbol string, err error) error {
	switch {
	case errors.Is(err, pollcache.ErrUnknownSymbol):
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("window %s is not subscribed", symbol))
	case errors.Is(err, usecase.ErrTooManyWindows):
		return xhttp.AppErrorResponse(c, xhttp.ConflictError("ERR_WINDOW_LIMIT", "symbol", "window limit reached"))
	default:
		h.logger.Error("window operation failed", xlogger.String("symbol", symbol), xlogger.Error(err))
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
}
