package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"ForexDash/internal/domain/models"
	"ForexDash/internal/domain/repository"
	smetrics "ForexDash/internal/service/metrics"
	"ForexDash/internal/service/ratelimit"
	"ForexDash/internal/simulator"
	xhttp "ForexDash/pkg/http"
	xlogger "ForexDash/pkg/logger"
)

const invalidIntervalMsg = "Invalid interval. Supported intervals: 1m, 5m, 15m, 1hr"

// SimulatorHandler serves datasets in the shapes the upstream clients poll.
// Bodies are written bare, without the {status,message,data} envelope.
type SimulatorHandler struct {
	logger  *xlogger.Logger
	sim     *simulator.Simulator
	limiter *ratelimit.Limiter
}

// NewSimulatorHandler rate limits every route when limiter is not nil.
func NewSimulatorHandler(logger *xlogger.Logger, sim *simulator.Simulator, limiter *ratelimit.Limiter) *SimulatorHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	smetrics.Register()
	return &SimulatorHandler{logger: logger, sim: sim, limiter: limiter}
}

func (h *SimulatorHandler) RegisterRoutes(e *echo.Echo) {
	var mw []echo.MiddlewareFunc
	if h.limiter != nil {
		mw = append(mw, h.limiter.Middleware())
	}
	e.GET("/api/forex-ohlcv/:pair/:timeframe", h.Range, mw...)
	e.GET("/technical/simulate/live/single", h.Next, mw...)
	e.GET("/api/forex/ohlcv", h.Stream, mw...)
}

type simError struct {
	Success bool                    `json:"success"`
	Error   string                  `json:"error"`
	Details []xhttp.ValidationError `json:"details,omitempty"`
}

func (h *SimulatorHandler) Range(c echo.Context) error {
	defer observe("range", time.Now())
	req := &models.RangeRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return c.JSON(http.StatusBadRequest, simError{Error: "invalid range", Details: verr})
	}
	res, err := h.sim.Range(c.Request().Context(), req.Pair, req.Timeframe, req.FromLimit, req.ToLimit)
	if err != nil {
		return h.fail(c, "range", err)
	}
	return c.JSON(http.StatusOK, res)
}

func (h *SimulatorHandler) Next(c echo.Context) error {
	defer observe("cursor", time.Now())
	req := &models.CursorRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return c.JSON(http.StatusBadRequest, simError{Error: invalidIntervalMsg, Details: verr})
	}
	res, err := h.sim.Next(c.Request().Context(), req.Pair, req.Interval, req.Cursor, req.Reset)
	if err != nil {
		return h.fail(c, "cursor", err)
	}
	if !res.HasMore {
		smetrics.SimulatorExhausted.WithLabelValues("cursor").Inc()
	}
	return c.JSON(http.StatusOK, res)
}

func (h *SimulatorHandler) Stream(c echo.Context) error {
	defer observe("stream", time.Now())
	req := &models.StreamRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return c.JSON(http.StatusBadRequest, simError{Error: invalidIntervalMsg, Details: verr})
	}
	res, err := h.sim.Stream(c.Request().Context(), req.Pair, req.Interval, req.Reset)
	if err != nil {
		return h.fail(c, "stream", err)
	}
	if res.Exhausted {
		smetrics.SimulatorExhausted.WithLabelValues("stream").Inc()
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return c.JSON(http.StatusOK, res)
}

func (h *SimulatorHandler) fail(c echo.Context, endpoint string, err error) error {
	smetrics.SimulatorErrors.WithLabelValues(endpoint).Inc()
	switch {
	case errors.Is(err, simulator.ErrInvalidInterval):
		return c.JSON(http.StatusBadRequest, simError{Error: invalidIntervalMsg})
	case errors.Is(err, simulator.ErrInvalidRange):
		return c.JSON(http.StatusBadRequest, simError{Error: err.Error()})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, simError{Error: err.Error()})
	default:
		h.logger.Error("simulator request failed", xlogger.String("endpoint", endpoint), xlogger.Error(err))
		return c.JSON(http.StatusInternalServerError, simError{Error: "Failed to fetch OHLCV data"})
	}
}

func observe(endpoint string, start time.Time) {
	smetrics.SimulatorLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}
