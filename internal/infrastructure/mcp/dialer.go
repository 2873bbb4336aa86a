package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/google/shlex"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/tubesum/backend/internal/core/ports"
	"github.com/tubesum/backend/internal/infrastructure/logger"
)

const (
	TransportSSE        = "sse"
	TransportStreamable = "streamable"
)

var ErrInvalidCommand = errors.New("mcp: invalid command endpoint")

type DialerConfig struct {
	ClientName    string
	ClientVersion string
	// HTTPTransport picks the protocol for http(s) endpoints: sse or streamable.
	HTTPTransport string
	// AuthToken is sent as a bearer token to http(s) endpoints when set.
	AuthToken string
	Logger    *logger.Logger
}

// SDKDialer connects to MCP servers with the official go-sdk. URLs are
// remote servers; anything else is a command line for a stdio server.
type SDKDialer struct {
	impl          *mcpsdk.Implementation
	httpTransport string
	httpClient    *http.Client
	logger        *logger.Logger
}

func NewDialer(cfg DialerConfig) *SDKDialer {
	name := cfg.ClientName
	if name == "" {
		name = "tubesum"
	}
	version := cfg.ClientVersion
	if version == "" {
		version = "1.0.0"
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}

	client := http.DefaultClient
	if cfg.AuthToken != "" {
		client = &http.Client{Transport: &bearerTransport{token: cfg.AuthToken, next: http.DefaultTransport}}
	}

	return &SDKDialer{
		impl:          &mcpsdk.Implementation{Name: name, Version: version},
		httpTransport: cfg.HTTPTransport,
		httpClient:    client,
		logger:        log,
	}
}

func (d *SDKDialer) Dial(ctx context.Context, endpoint string) (ports.Session, error) {
	transport, err := d.transport(endpoint)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	d.logger.Infow("mcp_connect_request", "endpoint", endpoint)
	s, err := connect(ctx, d.impl, transport)
	if err != nil {
		d.logger.Warnw("mcp_connect_failed", "endpoint", endpoint, "error", err)
		return nil, err
	}
	d.logger.Infow("mcp_connect_success", "endpoint", endpoint, "duration_ms", time.Since(start).Milliseconds())
	return s, nil
}

func (d *SDKDialer) transport(endpoint string) (mcpsdk.Transport, error) {
	if IsURL(endpoint) {
		if d.httpTransport == TransportStreamable {
			return mcpsdk.NewStreamableClientTransport(endpoint, &mcpsdk.StreamableClientTransportOptions{
				HTTPClient: d.httpClient,
			}), nil
		}
		return mcpsdk.NewSSEClientTransport(endpoint, &mcpsdk.SSEClientTransportOptions{
			HTTPClient: d.httpClient,
		}), nil
	}

	args, err := shlex.Split(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	if len(args) == 0 {
		return nil, ErrInvalidCommand
	}

	// The process must outlive the request that first dialed it.
	cmd := exec.Command(args[0], args[1:]...)
	cmd.Env = os.Environ()
	cmd.Stderr = os.Stderr
	return mcpsdk.NewCommandTransport(cmd), nil
}

// IsURL reports whether endpoint names a remote http(s) server.
func IsURL(endpoint string) bool {
	e := strings.ToLower(strings.TrimSpace(endpoint))
	return strings.HasPrefix(e, "http://") || strings.HasPrefix(e, "https://")
}

type bearerTransport struct {
	token string
	next  http.RoundTripper
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.token)
	return t.next.RoundTrip(req)
}
