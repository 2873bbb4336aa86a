package services

import (
	"context"
	"sync"

	"github.com/tubesum/backend/internal/core/ports"
	"github.com/tubesum/backend/internal/domain"
)

// stubSession answers every call through fn.
type stubSession struct {
	fn func(ctx context.Context, name string, args map[string]any) (any, error)
}

func (s *stubSession) CallTool(ctx context.Context, name string, args map[string]any) (any, error) {
	return s.fn(ctx, name, args)
}

func (s *stubSession) Close() error { return nil }

type callRecord struct {
	Endpoint string
	Tool     string
	Args     map[string]any
}

// stubPool hands out one shared stubSession and tracks outstanding loans.
type stubPool struct {
	mu          sync.Mutex
	acquireErr  error
	outstanding int
	released    int
	calls       []callRecord
	respond     func(ctx context.Context, endpoint, name string, args map[string]any) (any, error)
}

func (p *stubPool) Acquire(ctx context.Context, endpoint string) (ports.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.acquireErr != nil {
		return nil, p.acquireErr
	}
	p.outstanding++
	return &stubSession{fn: func(ctx context.Context, name string, args map[string]any) (any, error) {
		p.mu.Lock()
		p.calls = append(p.calls, callRecord{Endpoint: endpoint, Tool: name, Args: args})
		respond := p.respond
		p.mu.Unlock()
		return respond(ctx, endpoint, name, args)
	}}, nil
}

func (p *stubPool) Release(endpoint string, session ports.Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outstanding--
	p.released++
}

func (p *stubPool) Calls() []callRecord {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]callRecord(nil), p.calls...)
}

// stubSender returns a canned task or error for every SendTask.
type stubSender struct {
	mu     sync.Mutex
	task   *domain.Task
	err    error
	params []domain.TaskSendParams
}

func (s *stubSender) SendTask(ctx context.Context, params domain.TaskSendParams) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = append(s.params, params)
	return s.task, s.err
}

type stubDelegate struct {
	result domain.Result[[]string]
	calls  int
}

func (d *stubDelegate) FindItems(ctx context.Context, query, sessionID string) domain.Result[[]string] {
	d.calls++
	return d.result
}

// stubSummaryTools summarizes from a lookup table and records combine input.
type stubSummaryTools struct {
	mu        sync.Mutex
	summaries map[string]domain.Result[string]
	combine   domain.Result[string]
	combined  [][]string
	order     []string
}

func (t *stubSummaryTools) SummarizeItem(ctx context.Context, videoURL string) domain.Result[string] {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.order = append(t.order, videoURL)
	if res, ok := t.summaries[videoURL]; ok {
		return res
	}
	return domain.Failure[string]("no summary")
}

func (t *stubSummaryTools) Combine(ctx context.Context, summaries []string) domain.Result[string] {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.combined = append(t.combined, append([]string(nil), summaries...))
	return t.combine
}

func (t *stubSummaryTools) SummarizeCalls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.order)
}

type stubListingTools struct {
	mu      sync.Mutex
	result  domain.Result[[]string]
	queries []domain.ItemQuery
}

func (t *stubListingTools) ListItems(ctx context.Context, query domain.ItemQuery) domain.Result[[]string] {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.queries = append(t.queries, query)
	return t.result
}

// scriptedAgent replays a fixed list of updates. When gate is set it waits
// for it before each update after the first. done, when set, is closed once
// every update has been delivered.
type scriptedAgent struct {
	updates []domain.AgentUpdate
	types   []string
	gate    chan struct{}
	done    chan struct{}
}

func (a *scriptedAgent) SupportedContentTypes() []string {
	if a.types == nil {
		return []string{"text", "text/plain"}
	}
	return a.types
}

func (a *scriptedAgent) Stream(ctx context.Context, req ports.AgentRequest) <-chan domain.AgentUpdate {
	out := make(chan domain.AgentUpdate)
	go func() {
		defer close(out)
		for i, u := range a.updates {
			if i > 0 && a.gate != nil {
				<-a.gate
			}
			select {
			case out <- u:
			case <-ctx.Done():
				return
			}
		}
		if a.done != nil {
			close(a.done)
		}
	}()
	return out
}

func collectUpdates(ch <-chan domain.AgentUpdate) []domain.AgentUpdate {
	var out []domain.AgentUpdate
	for u := range ch {
		out = append(out, u)
	}
	return out
}

func collectEvents(sub ports.Subscription) []domain.TaskEvent {
	var out []domain.TaskEvent
	for ev := range sub.Events() {
		out = append(out, ev)
	}
	return out
}
