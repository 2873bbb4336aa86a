package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/tubesum/backend/internal/core/ports"
	"github.com/tubesum/backend/internal/domain"
	"github.com/tubesum/backend/internal/infrastructure/logger"
	"github.com/tubesum/backend/internal/transport/http/dto"
)

// TaskHandler exposes task records to operators over plain REST.
type TaskHandler struct {
	service ports.TaskService
	logger  *logger.Logger
}

func NewTaskHandler(service ports.TaskService, logger *logger.Logger) *TaskHandler {
	return &TaskHandler{service: service, logger: logger}
}

func (h *TaskHandler) GetTask(c *fiber.Ctx) error {
	params := domain.TaskQueryParams{ID: c.Params("id")}
	if raw := c.Query("history_length"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.logger.Warnw("task_get_invalid_history_length", "value", raw)
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: "history_length must be a non-negative integer",
			})
		}
		params.HistoryLength = &n
	}

	h.logger.Infow("task_get_request", "id", params.ID)
	task, err := h.service.GetTask(c.UserContext(), params)
	if err != nil {
		if errors.Is(err, domain.ErrTaskNotFound) {
			h.logger.Warnw("task_get_not_found", "id", params.ID)
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: "task not found",
			})
		}
		h.logger.Errorw("task_get_failed", "id", params.ID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			Error: err.Error(),
		})
	}

	return c.JSON(task)
}
