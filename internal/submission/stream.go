package submission

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ojcore/internal/auth"
	"ojcore/internal/judge"
	"ojcore/pkg/utils/logger"
	"ojcore/pkg/utils/response"

	appErr "ojcore/pkg/errors"
)

const (
	streamWriteWait = 10 * time.Second
	streamPingEvery = 30 * time.Second
)

// StreamHandler pushes live judge status snapshots over a websocket.
// The connection closes once a terminal snapshot is delivered.
type StreamHandler struct {
	service  *Service
	status   *judge.StatusStore
	upgrader websocket.Upgrader
}

// NewStreamHandler creates the websocket status handler.
func NewStreamHandler(service *Service, status *judge.StatusStore) *StreamHandler {
	return &StreamHandler{
		service: service,
		status:  status,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Serve handles GET /submissions/:id/stream.
func (h *StreamHandler) Serve(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, appErr.ValidationError("id", "must be a positive integer"))
		return
	}
	// Reuses the detail visibility rule: owner or privileged only.
	detail, err := h.service.Get(c.Request.Context(), auth.CurrentUser(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()

	send := func(snap judge.Snapshot) bool {
		conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteJSON(snap); err != nil {
			return false
		}
		return true
	}

	// Current state first, so late subscribers are not left waiting for
	// the next transition.
	snap, ok, err := h.status.Get(ctx, id)
	if err != nil {
		logger.Warn(ctx, "status snapshot read failed", zap.Int64("submission_id", id), zap.Error(err))
	}
	if !ok {
		snap = judge.Snapshot{
			SubmissionID: id,
			Status:       detail.Status,
			Score:        detail.Score,
			ExecTimeMs:   detail.ExecTimeMs,
			MemoryKB:     detail.MemoryKB,
			ErrorMessage: detail.ErrorMessage,
			UpdatedAt:    time.Now(),
		}
	}
	if !send(snap) || snap.Status.IsTerminal() {
		return
	}

	updates, cancel, err := h.status.Watch(ctx, id)
	if err != nil {
		logger.Warn(ctx, "status watch failed", zap.Int64("submission_id", id), zap.Error(err))
		return
	}
	defer cancel()

	// Drain client frames so close handshakes are noticed.
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamPingEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-clientGone:
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case snap, open := <-updates:
			if !open {
				return
			}
			if !send(snap) {
				return
			}
			if snap.Status.IsTerminal() {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
		}
	}
}
