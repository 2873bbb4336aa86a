package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tubesum/backend/internal/domain"
	"github.com/tubesum/backend/internal/infrastructure/logger"
)

const maxResponseBytes = 8 << 20

type A2AClientConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
	Logger  *logger.Logger
}

// A2AClient submits tasks to a peer agent over JSON-RPC.
type A2AClient struct {
	url        string
	apiKey     string
	httpClient *http.Client
	logger     *logger.Logger
}

func NewA2AClient(cfg A2AClientConfig) *A2AClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}

	return &A2AClient{
		url:    cfg.URL,
		apiKey: cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: log,
	}
}

type sendTaskResponse struct {
	JSONRPC string               `json:"jsonrpc"`
	ID      any                  `json:"id"`
	Result  *domain.Task         `json:"result"`
	Error   *domain.JSONRPCError `json:"error"`
}

// SendTask issues tasks/send and returns the peer's task record. Peer-side
// JSON-RPC errors come back as *domain.JSONRPCError.
func (c *A2AClient) SendTask(ctx context.Context, params domain.TaskSendParams) (*domain.Task, error) {
	start := time.Now()

	rawParams, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal params: %w", err)
	}
	body, err := json.Marshal(domain.JSONRPCRequest{
		JSONRPC: domain.JSONRPCVersion,
		ID:      uuid.New().String(),
		Method:  domain.MethodSendTask,
		Params:  rawParams,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.logger.Infow("a2a_send_task_request", "url", c.url, "task_id", params.ID, "payload_bytes", len(body))
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warnw("a2a_send_task_network_error", "task_id", params.ID, "error", err)
		return nil, fmt.Errorf("%w: %w", domain.ErrConnection, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %w", domain.ErrConnection, err)
	}

	c.logger.Infow("a2a_send_task_response",
		"task_id", params.ID,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
		"bytes", len(respBody),
	)

	// Envelope errors arrive with a non-200 status and a JSON-RPC error body.
	var rpcResp sendTaskResponse
	decodeErr := json.Unmarshal(respBody, &rpcResp)
	if decodeErr == nil && rpcResp.Error != nil {
		return nil, rpcResp.Error
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", domain.ErrInvalidResponse, resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidResponse, decodeErr)
	}
	if rpcResp.Result == nil {
		return nil, fmt.Errorf("%w: missing result", domain.ErrInvalidResponse)
	}
	return rpcResp.Result, nil
}
