package domain

import (
	"encoding/json"
	"fmt"
)

const JSONRPCVersion = "2.0"

const (
	MethodSendTask          = "tasks/send"
	MethodSendTaskSubscribe = "tasks/sendSubscribe"
	MethodGetTask           = "tasks/get"
	MethodCancelTask        = "tasks/cancel"
	MethodResubscribe       = "tasks/resubscribe"
	MethodSetPushConfig     = "tasks/pushNotification/set"
	MethodGetPushConfig     = "tasks/pushNotification/get"
)

const (
	CodeParseError              = -32700
	CodeInvalidRequest          = -32600
	CodeMethodNotFound          = -32601
	CodeInvalidParams           = -32602
	CodeInternalError           = -32603
	CodeTaskNotFound            = -32001
	CodeTaskNotCancelable       = -32002
	CodePushNotSupported        = -32003
	CodeUnsupportedOperation    = -32004
	CodeContentTypeNotSupported = -32005
)

type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type JSONRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      any           `json:"id"`
	Result  any           `json:"result,omitempty"`
	Error   *JSONRPCError `json:"error,omitempty"`
}

type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func NewJSONRPCError(code int, message string) *JSONRPCError {
	return &JSONRPCError{Code: code, Message: message}
}

func (e *JSONRPCError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

func NewResult(id any, result any) JSONRPCResponse {
	return JSONRPCResponse{JSONRPC: JSONRPCVersion, ID: id, Result: result}
}

func NewErrorResponse(id any, err *JSONRPCError) JSONRPCResponse {
	return JSONRPCResponse{JSONRPC: JSONRPCVersion, ID: id, Error: err}
}
