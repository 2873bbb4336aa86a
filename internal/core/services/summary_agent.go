package services

import (
	"context"
	"fmt"

	"github.com/tubesum/backend/internal/core/ports"
	"github.com/tubesum/backend/internal/domain"
	"github.com/tubesum/backend/internal/infrastructure/logger"
	"golang.org/x/sync/errgroup"
)

type SummaryAgentConfig struct {
	Delegate ports.Delegate
	Tools    ports.SummaryTools
	// ItemConcurrency bounds concurrent summarize calls within one task.
	ItemConcurrency int
	Logger          *logger.Logger
}

// SummaryAgent discovers videos through the delegate, summarizes each one
// and combines the successful summaries.
type SummaryAgent struct {
	delegate    ports.Delegate
	tools       ports.SummaryTools
	concurrency int
	logger      *logger.Logger
}

func NewSummaryAgent(cfg SummaryAgentConfig) *SummaryAgent {
	concurrency := cfg.ItemConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &SummaryAgent{
		delegate:    cfg.Delegate,
		tools:       cfg.Tools,
		concurrency: concurrency,
		logger:      log,
	}
}

func (a *SummaryAgent) SupportedContentTypes() []string {
	return []string{"text", "text/plain"}
}

func (a *SummaryAgent) Stream(ctx context.Context, req ports.AgentRequest) <-chan domain.AgentUpdate {
	out := make(chan domain.AgentUpdate, 8)
	go func() {
		defer close(out)
		a.run(ctx, req, &updateSink{ctx: ctx, out: out})
	}()
	return out
}

// run sequences discover, summarize each, judge and combine. Progress text
// must stay free of failure wording so it is never mistaken for an outcome.
func (a *SummaryAgent) run(ctx context.Context, req ports.AgentRequest, sink *updateSink) {
	if !sink.send(domain.Progress("Looking up videos for the request")) {
		return
	}

	found := a.delegate.FindItems(ctx, req.Query, req.SessionID)
	if !found.Ok() {
		a.logger.Warnw("summary_discover_failed", "task_id", req.TaskID, "reason", found.Reason())
		sink.send(domain.Failed("Error: could not find videos: " + found.Reason()))
		return
	}
	videos := found.Value()
	if len(videos) == 0 {
		a.logger.Infow("summary_discover_empty", "task_id", req.TaskID)
		sink.send(domain.Failed("Error: no videos matched the request"))
		return
	}

	a.logger.Infow("summary_discover_success", "task_id", req.TaskID, "count", len(videos))
	if !sink.send(domain.Progress(fmt.Sprintf("Found %d videos, summarizing", len(videos)))) {
		return
	}

	results := a.summarizeAll(ctx, req.TaskID, videos, sink)

	var summaries []string
	var lastReason string
	for i, res := range results {
		if res.Ok() {
			summaries = append(summaries, res.Value())
			continue
		}
		lastReason = res.Reason()
		a.logger.Warnw("summary_item_skipped", "task_id", req.TaskID, "video", videos[i], "reason", res.Reason())
	}
	skipped := len(videos) - len(summaries)

	if len(summaries) == 0 {
		sink.send(domain.Failed(fmt.Sprintf("Error: all %d videos could not be summarized (last reason: %s)", len(videos), lastReason)))
		return
	}

	if !sink.send(domain.Progress(fmt.Sprintf("Combining %d summaries", len(summaries)))) {
		return
	}

	combined := a.tools.Combine(ctx, summaries)
	if !combined.Ok() {
		a.logger.Warnw("summary_combine_failed", "task_id", req.TaskID, "reason", combined.Reason())
		sink.send(domain.Failed("Error: could not combine summaries: " + combined.Reason()))
		return
	}

	text := combined.Value()
	if skipped > 0 {
		text += fmt.Sprintf("\n\n(%d of %d videos skipped)", skipped, len(videos))
	}
	a.logger.Infow("summary_complete", "task_id", req.TaskID, "summarized", len(summaries), "skipped", skipped)
	sink.send(domain.Completed(text, nil))
}

// summarizeAll summarizes every video, never stopping early. Results keep the
// delegate's order whatever the completion order.
func (a *SummaryAgent) summarizeAll(ctx context.Context, taskID string, videos []string, sink *updateSink) []domain.Result[string] {
	results := make([]domain.Result[string], len(videos))

	var g errgroup.Group
	g.SetLimit(a.concurrency)
	for i, video := range videos {
		g.Go(func() error {
			results[i] = a.tools.SummarizeItem(ctx, video)
			note := "done"
			if !results[i].Ok() {
				note = "skipped"
			}
			sink.send(domain.Progress(fmt.Sprintf("Video %d of %d %s", i+1, len(videos), note)))
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// updateSink delivers updates unless the run's context ends first.
type updateSink struct {
	ctx context.Context
	out chan<- domain.AgentUpdate
}

func (s *updateSink) send(u domain.AgentUpdate) bool {
	select {
	case s.out <- u:
		return true
	case <-s.ctx.Done():
		return false
	}
}
