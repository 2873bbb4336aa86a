package handlers

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/tubesum/backend/internal/core/ports"
	"github.com/tubesum/backend/internal/core/services"
	"github.com/tubesum/backend/internal/domain"
	"github.com/tubesum/backend/internal/infrastructure/logger"
)

// A2AHandler serves the JSON-RPC task methods on a single endpoint.
type A2AHandler struct {
	service ports.TaskService
	logger  *logger.Logger
}

func NewA2AHandler(service ports.TaskService, logger *logger.Logger) *A2AHandler {
	return &A2AHandler{service: service, logger: logger}
}

func (h *A2AHandler) Handle(c *fiber.Ctx) error {
	var req domain.JSONRPCRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		h.logger.Warnw("a2a_request_parse_failed", "error", err)
		return h.reject(c, nil, domain.NewJSONRPCError(domain.CodeParseError, "Invalid JSON payload"))
	}
	if req.JSONRPC != domain.JSONRPCVersion || req.Method == "" {
		h.logger.Warnw("a2a_request_invalid", "jsonrpc", req.JSONRPC, "method", req.Method)
		return h.reject(c, req.ID, domain.NewJSONRPCError(domain.CodeInvalidRequest, "Request payload validation error"))
	}

	h.logger.Infow("a2a_request", "method", req.Method, "rpc_id", req.ID)
	switch req.Method {
	case domain.MethodSendTask:
		var params domain.TaskSendParams
		if err := decodeParams(req.Params, &params); err != nil {
			return h.respondError(c, req.ID, err)
		}
		task, err := h.service.SendTask(c.UserContext(), params)
		if err != nil {
			return h.respondError(c, req.ID, err)
		}
		return c.JSON(domain.NewResult(req.ID, task))

	case domain.MethodSendTaskSubscribe:
		var params domain.TaskSendParams
		if err := decodeParams(req.Params, &params); err != nil {
			return h.respondError(c, req.ID, err)
		}
		sub, err := h.service.SendTaskSubscribe(c.UserContext(), params)
		if err != nil {
			return h.respondError(c, req.ID, err)
		}
		return h.stream(c, req.ID, sub)

	case domain.MethodResubscribe:
		var params domain.TaskQueryParams
		if err := decodeParams(req.Params, &params); err != nil {
			return h.respondError(c, req.ID, err)
		}
		sub, err := h.service.Resubscribe(c.UserContext(), params)
		if err != nil {
			return h.respondError(c, req.ID, err)
		}
		return h.stream(c, req.ID, sub)

	case domain.MethodGetTask:
		var params domain.TaskQueryParams
		if err := decodeParams(req.Params, &params); err != nil {
			return h.respondError(c, req.ID, err)
		}
		task, err := h.service.GetTask(c.UserContext(), params)
		if err != nil {
			return h.respondError(c, req.ID, err)
		}
		return c.JSON(domain.NewResult(req.ID, task))

	case domain.MethodCancelTask:
		var params domain.TaskIDParams
		if err := decodeParams(req.Params, &params); err != nil {
			return h.respondError(c, req.ID, err)
		}
		task, err := h.service.CancelTask(c.UserContext(), params)
		if err != nil {
			return h.respondError(c, req.ID, err)
		}
		return c.JSON(domain.NewResult(req.ID, task))

	case domain.MethodSetPushConfig, domain.MethodGetPushConfig:
		return c.JSON(domain.NewErrorResponse(req.ID, domain.NewJSONRPCError(domain.CodePushNotSupported, "Push Notification is not supported")))

	default:
		h.logger.Warnw("a2a_method_not_found", "method", req.Method)
		return h.reject(c, req.ID, domain.NewJSONRPCError(domain.CodeMethodNotFound, "Method not found"))
	}
}

// stream writes every event of sub as an SSE data line until the final one.
func (h *A2AHandler) stream(c *fiber.Ctx, id any, sub ports.Subscription) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer sub.Close()
		for ev := range sub.Events() {
			payload, err := json.Marshal(domain.NewResult(id, ev))
			if err != nil {
				h.logger.Errorw("a2a_stream_encode_failed", "task_id", ev.TaskID(), "error", err)
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			if err := w.Flush(); err != nil {
				h.logger.Infow("a2a_stream_client_gone", "task_id", ev.TaskID())
				return
			}
			if ev.IsFinal() {
				return
			}
		}
	})
	return nil
}

func (h *A2AHandler) respondError(c *fiber.Ctx, id any, err error) error {
	rpcErr := toRPCError(err)
	if rpcErr.Code == domain.CodeInternalError {
		h.logger.Errorw("a2a_request_failed", "rpc_id", id, "error", err)
	} else {
		h.logger.Warnw("a2a_request_rejected", "rpc_id", id, "code", rpcErr.Code, "error", err)
	}
	return c.JSON(domain.NewErrorResponse(id, rpcErr))
}

// reject answers malformed envelopes with 400.
func (h *A2AHandler) reject(c *fiber.Ctx, id any, rpcErr *domain.JSONRPCError) error {
	return c.Status(fiber.StatusBadRequest).JSON(domain.NewErrorResponse(id, rpcErr))
}

func decodeParams(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: missing params", services.ErrInvalidParams)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", services.ErrInvalidParams, err)
	}
	return nil
}

func toRPCError(err error) *domain.JSONRPCError {
	var rpcErr *domain.JSONRPCError
	switch {
	case errors.As(err, &rpcErr):
		return rpcErr
	case errors.Is(err, domain.ErrTaskNotFound):
		return domain.NewJSONRPCError(domain.CodeTaskNotFound, "Task not found")
	case errors.Is(err, services.ErrTaskNotCancelable):
		return domain.NewJSONRPCError(domain.CodeTaskNotCancelable, "Task cannot be canceled")
	case errors.Is(err, services.ErrContentTypeNotSupported):
		return domain.NewJSONRPCError(domain.CodeContentTypeNotSupported, "Incompatible content types")
	case errors.Is(err, services.ErrInvalidParams):
		return domain.NewJSONRPCError(domain.CodeInvalidParams, err.Error())
	default:
		return domain.NewJSONRPCError(domain.CodeInternalError, "Internal error")
	}
}
