package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/anstrom/netport/internal/api/middleware"
	"github.com/anstrom/netport/internal/jobs"
	"github.com/anstrom/netport/internal/logging"
)

const (
	writeWait      = 10 * time.Second  // Time allowed to write a message to the peer
	pongWait       = 60 * time.Second  // Time to read next pong message from peer
	pingPeriod     = pongWait * 9 / 10 // Send pings to peer (must be < pongWait)
	maxMessageSize = 512               // Maximum message size allowed from peer
	closeGrace     = 2 * time.Second   // Time the peer gets to acknowledge a close
)

// Message types sent over the scan progress stream.
const (
	MessageProgress = "progress"
	MessageComplete = "complete"
	MessageError    = "error"
)

// WebSocketMessage represents a WebSocket message structure.
type WebSocketMessage struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id,omitempty"`
}

// WebSocketHandler streams job progress to WebSocket clients.
type WebSocketHandler struct {
	jobs     JobService
	logger   *logging.Logger
	upgrader websocket.Upgrader
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(jobService JobService, logger *logging.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		jobs:   jobService,
		logger: logger.WithComponent("websocket"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// ScanWebSocket sends one message per job update until the job finishes,
// then closes the connection normally.
//
// @Summary Stream scan progress
// @Description Upgrades to a WebSocket and sends a WebSocketMessage (type progress, complete or error) per job update.
// @Tags Scans
// @Security ApiKeyAuth
// @Param id path string true "Job ID"
// @Success 101 {object} WebSocketMessage
// @Failure 404 {object} ErrorResponse
// @Router /scans/{id}/ws [get]
// @ID streamScan
func (h *WebSocketHandler) ScanWebSocket(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	requestID := middleware.GetRequestID(r)

	updates, cancel, err := h.jobs.Subscribe(id)
	if err != nil {
		writeError(w, r, statusForError(err), err)
		return
	}
	defer cancel()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", "request_id", requestID, "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	h.logger.Debug("WebSocket client subscribed", "request_id", requestID, "job_id", id)

	closed := make(chan struct{})
	go h.readPump(conn, closed)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case job, ok := <-updates:
			if !ok {
				h.closeNormally(conn)
				return
			}
			msg := WebSocketMessage{
				Type:      messageType(job.Status),
				Timestamp: time.Now().UTC(),
				Data:      job,
				RequestID: requestID,
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				h.logger.Debug("Write failed, closing connection", "request_id", requestID, "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.logger.Debug("Ping failed, closing connection", "request_id", requestID, "error", err)
				return
			}
		}
	}
}

// readPump discards client messages and signals when the peer goes away.
func (h *WebSocketHandler) readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket unexpected close", "error", err)
			}
			return
		}
	}
}

func (h *WebSocketHandler) closeNormally(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "scan finished")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
}

func messageType(status jobs.Status) string {
	switch status {
	case jobs.StatusComplete:
		return MessageComplete
	case jobs.StatusError:
		return MessageError
	default:
		return MessageProgress
	}
}
