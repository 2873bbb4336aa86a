package mcp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tubesum/backend/internal/core/ports"
	"github.com/tubesum/backend/internal/domain"
	"github.com/tubesum/backend/internal/infrastructure/logger"
	"go.uber.org/multierr"
)

// Closed and torn-down pools report as connection failures.
var (
	ErrPoolClosed    = fmt.Errorf("%w: pool closed", domain.ErrConnection)
	ErrTornDown      = fmt.Errorf("%w: endpoint torn down", domain.ErrConnection)
	ErrEmptyEndpoint = errors.New("pool: empty endpoint")
)

// Dialer establishes one session to an endpoint. The context passed to Dial
// lives as long as the registry, so transports may bind long-lived streams
// to it.
type Dialer interface {
	Dial(ctx context.Context, endpoint string) (ports.Session, error)
}

type DialFunc func(ctx context.Context, endpoint string) (ports.Session, error)

func (f DialFunc) Dial(ctx context.Context, endpoint string) (ports.Session, error) {
	return f(ctx, endpoint)
}

type RegistryConfig struct {
	Dialer Dialer
	// Size caps the sessions per endpoint. Values below 1 mean 1.
	Size   int
	Logger *logger.Logger
}

// Registry owns the session pools of every endpoint the process talks to.
// Create one at startup and Close it on shutdown.
type Registry struct {
	dialer Dialer
	size   int
	logger *logger.Logger

	base   context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	pools  map[string]*endpointPool
	closed bool
}

type endpointPool struct {
	endpoint string

	// ready is closed once the first session is established or failed.
	ready   chan struct{}
	initErr error

	idle chan ports.Session
	done chan struct{}

	mu       sync.Mutex
	sessions map[ports.Session]struct{}
	dialing  int
	torn     bool
}

func NewRegistry(cfg RegistryConfig) *Registry {
	size := cfg.Size
	if size < 1 {
		size = 1
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	base, cancel := context.WithCancel(context.Background())
	return &Registry{
		dialer: cfg.Dialer,
		size:   size,
		logger: log,
		base:   base,
		cancel: cancel,
		pools:  make(map[string]*endpointPool),
	}
}

// Acquire lends a session for endpoint, creating the endpoint's pool on first
// use. It blocks until a session is idle, ctx is done or the endpoint is torn
// down.
func (r *Registry) Acquire(ctx context.Context, endpoint string) (ports.Session, error) {
	if endpoint == "" {
		return nil, ErrEmptyEndpoint
	}

	p, err := r.lookup(endpoint)
	if err != nil {
		return nil, err
	}

	select {
	case <-p.ready:
	case <-p.done:
		return nil, ErrTornDown
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if p.initErr != nil {
		return nil, p.initErr
	}

	for {
		select {
		case <-p.done:
			return nil, ErrTornDown
		default:
		}

		select {
		case s := <-p.idle:
			return s, nil
		default:
		}

		if s, grew, err := r.grow(p); grew {
			return s, err
		}

		select {
		case s := <-p.idle:
			return s, nil
		case <-p.done:
			return nil, ErrTornDown
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Release hands a session back. Sessions that no longer belong to a live
// pool are closed instead.
func (r *Registry) Release(endpoint string, session ports.Session) {
	if session == nil {
		return
	}

	r.mu.Lock()
	p := r.pools[endpoint]
	r.mu.Unlock()

	if p != nil {
		p.mu.Lock()
		_, owned := p.sessions[session]
		if owned && !p.torn {
			select {
			case p.idle <- session:
				p.mu.Unlock()
				return
			default:
			}
		}
		p.mu.Unlock()
	}

	r.logger.Debugw("mcp_session_release_orphan", "endpoint", endpoint)
	if err := session.Close(); err != nil {
		r.logger.Warnw("mcp_session_close_failed", "endpoint", endpoint, "error", err)
	}
}

// With runs fn with a session from endpoint and always releases it.
func (r *Registry) With(ctx context.Context, endpoint string, fn func(ports.Session) error) error {
	s, err := r.Acquire(ctx, endpoint)
	if err != nil {
		return err
	}
	defer r.Release(endpoint, s)
	return fn(s)
}

// Teardown closes every session of endpoint and forgets the endpoint.
// Calling it for an unknown endpoint is a no-op.
func (r *Registry) Teardown(endpoint string) error {
	r.mu.Lock()
	p := r.pools[endpoint]
	delete(r.pools, endpoint)
	r.mu.Unlock()

	if p == nil {
		return nil
	}
	r.logger.Infow("mcp_pool_teardown", "endpoint", endpoint)
	return p.shutdown()
}

// Close tears down all endpoints. Acquire fails with ErrPoolClosed afterwards.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	pools := r.pools
	r.pools = make(map[string]*endpointPool)
	r.mu.Unlock()

	var err error
	for endpoint, p := range pools {
		if cerr := p.shutdown(); cerr != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", endpoint, cerr))
		}
	}
	r.cancel()
	r.logger.Infow("mcp_registry_closed", "endpoints", len(pools))
	return err
}

// Stats reports the open and idle session counts of endpoint.
func (r *Registry) Stats(endpoint string) (open, idle int) {
	r.mu.Lock()
	p := r.pools[endpoint]
	r.mu.Unlock()
	if p == nil {
		return 0, 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions), len(p.idle)
}

func (r *Registry) lookup(endpoint string) (*endpointPool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrPoolClosed
	}
	if p, ok := r.pools[endpoint]; ok {
		return p, nil
	}

	p := &endpointPool{
		endpoint: endpoint,
		ready:    make(chan struct{}),
		idle:     make(chan ports.Session, r.size),
		done:     make(chan struct{}),
		sessions: make(map[ports.Session]struct{}),
	}
	r.pools[endpoint] = p
	go r.initialize(p)
	return p, nil
}

// initialize establishes the first session. On failure the pool is removed
// so a later Acquire starts over.
func (r *Registry) initialize(p *endpointPool) {
	defer close(p.ready)

	start := time.Now()
	s, err := r.dial(p.endpoint)
	if err != nil {
		r.mu.Lock()
		if r.pools[p.endpoint] == p {
			delete(r.pools, p.endpoint)
		}
		r.mu.Unlock()
		p.initErr = err
		r.logger.Warnw("mcp_pool_init_failed", "endpoint", p.endpoint, "error", err)
		return
	}

	p.mu.Lock()
	if p.torn {
		p.mu.Unlock()
		_ = s.Close()
		p.initErr = ErrTornDown
		return
	}
	p.sessions[s] = struct{}{}
	p.idle <- s
	p.mu.Unlock()

	r.logger.Infow("mcp_pool_ready", "endpoint", p.endpoint, "duration_ms", time.Since(start).Milliseconds())
}

// grow dials an extra session when every open one is lent out and the pool
// has room. grew is false when no dial was attempted.
func (r *Registry) grow(p *endpointPool) (s ports.Session, grew bool, err error) {
	p.mu.Lock()
	if p.torn || len(p.sessions)+p.dialing >= r.size {
		p.mu.Unlock()
		return nil, false, nil
	}
	p.dialing++
	p.mu.Unlock()

	s, err = r.dial(p.endpoint)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.dialing--
	if err != nil {
		r.logger.Warnw("mcp_pool_grow_failed", "endpoint", p.endpoint, "error", err)
		return nil, true, err
	}
	if p.torn {
		_ = s.Close()
		return nil, true, ErrTornDown
	}
	p.sessions[s] = struct{}{}
	r.logger.Debugw("mcp_pool_grow", "endpoint", p.endpoint, "open", len(p.sessions))
	return s, true, nil
}

func (r *Registry) dial(endpoint string) (ports.Session, error) {
	s, err := r.dialer.Dial(r.base, endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrConnection, endpoint, err)
	}
	return s, nil
}

func (p *endpointPool) shutdown() error {
	p.mu.Lock()
	if p.torn {
		p.mu.Unlock()
		return nil
	}
	p.torn = true
	sessions := make([]ports.Session, 0, len(p.sessions))
	for s := range p.sessions {
		sessions = append(sessions, s)
	}
	p.sessions = make(map[ports.Session]struct{})
	p.mu.Unlock()

	close(p.done)

	var err error
	for _, s := range sessions {
		err = multierr.Append(err, s.Close())
	}
	return err
}
