package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"ForexDash/internal/domain/models"
	xhttp "ForexDash/pkg/http"
	xlogger "ForexDash/pkg/logger"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// controlMsg is what a websocket client may send: {"action":"refresh"} or {"action":"reset"}.
type controlMsg struct {
	Action string `json:"action"`
}

// Stream pushes a snapshot of the window every time it changes.
// The first frame is the current snapshot.
func (h *WindowsHandler) Stream(c echo.Context) error {
	req := &models.SymbolRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	snap, err := h.windows.Snapshot(req.Symbol)
	if err != nil {
		return h.fail(c, req.Symbol, err)
	}
	updates, stop, err := h.windows.Watch(req.Symbol)
	if err != nil {
		return h.fail(c, req.Symbol, err)
	}
	defer stop()

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the error response
		h.logger.Debug("websocket upgrade failed", xlogger.Error(err))
		return nil
	}
	defer conn.Close()
	h.logger.Debug("websocket opened", xlogger.String("symbol", req.Symbol))

	done := make(chan struct{})
	go h.readControl(conn, req.Symbol, done)

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	if err := writeJSON(conn, snap); err != nil {
		return nil
	}
	for {
		select {
		case s, ok := <-updates:
			if !ok {
				return nil
			}
			if err := writeJSON(conn, s); err != nil {
				return nil
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		case <-done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(wsWriteWait))
			return nil
		}
	}
}

func writeJSON(conn *websocket.Conn, v interface{}) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(v)
}

// readControl handles client messages until the connection fails, then closes done.
func (h *WindowsHandler) readControl(conn *websocket.Conn, symbol string, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		var ctrl controlMsg
		if err := json.Unmarshal(data, &ctrl); err != nil {
			continue
		}
		switch strings.ToLower(ctrl.Action) {
		case "refresh":
			_, err = h.windows.Refresh(symbol)
		case "reset":
			_, err = h.windows.Reset(symbol)
		default:
			continue
		}
		if err != nil {
			h.logger.Warn("websocket control failed",
				xlogger.String("symbol", symbol),
				xlogger.String("action", ctrl.Action),
				xlogger.Error(err))
		}
	}
}
