package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"printer_monitor/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Send/receive timing configuration and message size limits.
const (
	writeWait     = 10 * time.Second
	pongWait      = 60 * time.Second
	pingPeriod    = (pongWait * 9) / 10
	maxMsgSize    = 1 << 12 // 4 KB
	defaultBuffer = 64
	maxBuffer     = 1024

	envelopeSnapshot = "snapshot"
	envelopeEvent    = "event"
	envelopeError    = "error"
)

type wsEnvelope struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// @Summary      Live event stream
// @Description  Sends a snapshot of printer states, then every state event as it happens.
// @Tags         stream
// @Param        device  query  string  false  "Only stream events of this printer"
// @Param        buffer  query  int     false  "Per-connection event buffer (1..1024)"
// @Router       /ws [get]
func (h *Handler) wsConnect(c *gin.Context) {
	deviceID := c.Query("device")
	buffer := parseBuffer(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()

	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	done := make(chan struct{})
	go h.startReader(conn, done)

	// subscribe before the snapshot so no event falls between them
	events, cancel := h.events.Subscribe(buffer)
	defer cancel()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	if err := h.sendSnapshot(c.Request.Context(), conn, deviceID); err != nil {
		if h.log != nil {
			h.log.Infow("ws_write_failed_initial", "device_id", deviceID, "err", err)
		}
		return
	}

	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if h.log != nil {
					h.log.Infow("ws_ping_failed", "err", err)
				}
				return
			}
		case ev, ok := <-events:
			if !ok {
				// hub closed on shutdown
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeWait))
				return
			}
			if deviceID != "" && ev.DeviceID != deviceID {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(wsEnvelope{Type: envelopeEvent, Data: ev}); err != nil {
				if h.log != nil {
					h.log.Infow("ws_write_failed", "err", err)
				}
				return
			}
		}
	}
}

// parseBuffer reads ?buffer=N with bounds.
func parseBuffer(c *gin.Context) int {
	if s := c.Query("buffer"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 && v <= maxBuffer {
			return v
		}
	}
	return defaultBuffer
}

// startReader drains incoming messages to handle control frames and detect closure.
func (h *Handler) startReader(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if h.log != nil {
				h.log.Debugw("ws_read_closed", "err", err)
			}
			return
		}
	}
}

// sendSnapshot writes the current states, or a single state when deviceID is set.
// An unknown device is reported to the client before the connection closes.
func (h *Handler) sendSnapshot(ctx context.Context, conn *websocket.Conn, deviceID string) error {
	var (
		states []models.DeviceState
		err    error
	)
	if deviceID == "" {
		states, err = h.services.Monitoring.ListStates(ctx)
	} else {
		var st models.DeviceState
		st, err = h.services.Monitoring.GetState(ctx, deviceID)
		states = []models.DeviceState{st}
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err != nil {
		_ = conn.WriteJSON(wsEnvelope{Type: envelopeError, Error: err.Error()})
		return err
	}
	return conn.WriteJSON(wsEnvelope{Type: envelopeSnapshot, Data: states})
}
