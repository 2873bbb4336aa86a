package services

import (
	"context"
	"fmt"

	"github.com/tubesum/backend/internal/core/ports"
	"github.com/tubesum/backend/internal/domain"
	"github.com/tubesum/backend/internal/infrastructure/logger"
)

type FinderAgentConfig struct {
	Tools  ports.ListingTools
	Logger *logger.Logger
}

// FinderAgent answers channel/date and playlist queries with a list of
// video URLs.
type FinderAgent struct {
	tools  ports.ListingTools
	logger *logger.Logger
}

func NewFinderAgent(cfg FinderAgentConfig) *FinderAgent {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &FinderAgent{tools: cfg.Tools, logger: log}
}

func (a *FinderAgent) SupportedContentTypes() []string {
	return []string{"text", "text/plain", "application/json"}
}

func (a *FinderAgent) Stream(ctx context.Context, req ports.AgentRequest) <-chan domain.AgentUpdate {
	out := make(chan domain.AgentUpdate, 2)
	go func() {
		defer close(out)
		sink := &updateSink{ctx: ctx, out: out}

		query, err := domain.ParseItemQuery(req.Query)
		if err != nil {
			a.logger.Warnw("finder_query_invalid", "task_id", req.TaskID, "error", err)
			sink.send(domain.Failed(ErrorMarker + " " + err.Error()))
			return
		}

		// Progress text never echoes the query: ids are user input.
		lookup := "Looking up channel videos"
		if query.IsPlaylist() {
			lookup = "Looking up playlist videos"
		}
		if !sink.send(domain.Progress(lookup)) {
			return
		}

		res := a.tools.ListItems(ctx, query)
		if !res.Ok() {
			a.logger.Warnw("finder_list_failed", "task_id", req.TaskID, "query", query.String(), "reason", res.Reason())
			sink.send(domain.Failed(ErrorMarker + " " + res.Reason()))
			return
		}

		videos := res.Value()
		a.logger.Infow("finder_list_success", "task_id", req.TaskID, "query", query.String(), "count", len(videos))
		sink.send(domain.Completed(fmt.Sprintf("Found %d videos", len(videos)), videos))
	}()
	return out
}
