package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/contrib/websocket"
	"github.com/tubesum/backend/internal/core/ports"
	"github.com/tubesum/backend/internal/domain"
	"github.com/tubesum/backend/internal/infrastructure/logger"
	"github.com/tubesum/backend/internal/transport/http/dto"
)

// StreamHandler pushes task events over a websocket.
type StreamHandler struct {
	service ports.TaskService
	logger  *logger.Logger
}

func NewStreamHandler(service ports.TaskService, logger *logger.Logger) *StreamHandler {
	return &StreamHandler{service: service, logger: logger}
}

// Send reads one TaskSendParams frame, starts the task and streams its
// events until the final one.
func (h *StreamHandler) Send(c *websocket.Conn) {
	defer c.Close()

	var params domain.TaskSendParams
	if err := c.ReadJSON(&params); err != nil {
		h.logger.Warnw("stream_send_read_failed", "error", err)
		h.writeError(c, errors.New("invalid task frame"))
		return
	}

	h.logger.Infow("stream_send_request", "id", params.ID)
	sub, err := h.service.SendTaskSubscribe(context.Background(), params)
	if err != nil {
		h.logger.Warnw("stream_send_rejected", "id", params.ID, "error", err)
		h.writeError(c, err)
		return
	}
	h.forward(c, params.ID, sub)
}

// Resubscribe streams the events of an existing task.
func (h *StreamHandler) Resubscribe(c *websocket.Conn) {
	defer c.Close()

	id := c.Params("id")
	h.logger.Infow("stream_resubscribe_request", "id", id)
	sub, err := h.service.Resubscribe(context.Background(), domain.TaskQueryParams{ID: id})
	if err != nil {
		h.logger.Warnw("stream_resubscribe_rejected", "id", id, "error", err)
		h.writeError(c, err)
		return
	}
	h.forward(c, id, sub)
}

func (h *StreamHandler) forward(c *websocket.Conn, id string, sub ports.Subscription) {
	defer sub.Close()
	for ev := range sub.Events() {
		if err := c.WriteJSON(dto.EventToFrame(ev)); err != nil {
			h.logger.Infow("stream_client_gone", "id", id, "error", err)
			return
		}
		if ev.IsFinal() {
			break
		}
	}
	h.logger.Infow("stream_finished", "id", id)
}

func (h *StreamHandler) writeError(c *websocket.Conn, err error) {
	if werr := c.WriteJSON(dto.ErrorFrame(err)); werr != nil {
		h.logger.Warnw("stream_write_error_failed", "error", werr)
	}
}
