package services

import (
	"context"
	"errors"

	"github.com/tubesum/backend/internal/domain"
)

// Task errors
var (
	ErrInvalidParams           = errors.New("task: invalid params")
	ErrContentTypeNotSupported = errors.New("task: incompatible content types")
	ErrTaskNotCancelable       = errors.New("task: cannot be canceled")
)

// Tool errors
var (
	ErrToolNotConfigured = errors.New("tool: endpoint not configured")
)

const (
	reasonUnexpectedFormat = "unexpected result format"
	reasonNoParsableResult = "no parsable result"
	reasonUnknown          = "unknown reason"
)

// failureKind reduces a call error to the short reason carried by a Failure.
func failureKind(err error) string {
	var rpcErr *domain.JSONRPCError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, ErrToolNotConfigured):
		return "tool not configured"
	case errors.As(err, &rpcErr):
		return "peer error: " + rpcErr.Message
	case errors.Is(err, domain.ErrInvalidResponse):
		return "invalid response"
	case errors.Is(err, domain.ErrConnection):
		return "connection error"
	default:
		return "transport error"
	}
}
