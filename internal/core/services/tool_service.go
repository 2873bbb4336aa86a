package services

import (
	"context"
	"fmt"
	"time"

	"github.com/tubesum/backend/internal/core/ports"
	"github.com/tubesum/backend/internal/domain"
	"github.com/tubesum/backend/internal/infrastructure/logger"
)

// Remote tool names and the keys their results are read from.
const (
	ToolSummarize      = "get_youtube_video_summary"
	ToolCombine        = "generate_final_summary"
	ToolChannelVideos  = "get_youtube_videos_for_channel_date"
	ToolPlaylistVideos = "get_playlist_videos"
	keySummary         = "summary"
	keyFinalSummary    = "final_summary"
	keyVideoURLs       = "video_urls"
	keyError           = "error"
)

type ToolServiceConfig struct {
	Pool              ports.SessionPool
	SummarizeEndpoint string
	CombineEndpoint   string
	ChannelEndpoint   string
	PlaylistEndpoint  string
	// CallTimeout bounds acquire plus call. Zero means no limit.
	CallTimeout time.Duration
	Logger      *logger.Logger
}

// ToolService calls the remote MCP tools and normalizes what they return.
// It never returns an error: every outcome is a domain.Result.
type ToolService struct {
	pool              ports.SessionPool
	summarizeEndpoint string
	combineEndpoint   string
	channelEndpoint   string
	playlistEndpoint  string
	callTimeout       time.Duration
	logger            *logger.Logger
}

func NewToolService(cfg ToolServiceConfig) *ToolService {
	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &ToolService{
		pool:              cfg.Pool,
		summarizeEndpoint: cfg.SummarizeEndpoint,
		combineEndpoint:   cfg.CombineEndpoint,
		channelEndpoint:   cfg.ChannelEndpoint,
		playlistEndpoint:  cfg.PlaylistEndpoint,
		callTimeout:       cfg.CallTimeout,
		logger:            log,
	}
}

func (s *ToolService) SummarizeItem(ctx context.Context, videoURL string) domain.Result[string] {
	raw, err := s.call(ctx, s.summarizeEndpoint, ToolSummarize, map[string]any{"video_url": videoURL})
	if err != nil {
		return domain.Failure[string](failureKind(err))
	}
	return normalizeText(raw, keySummary)
}

func (s *ToolService) Combine(ctx context.Context, summaries []string) domain.Result[string] {
	if len(summaries) == 0 {
		return domain.Failure[string]("nothing to combine")
	}
	raw, err := s.call(ctx, s.combineEndpoint, ToolCombine, map[string]any{"summaries": summaries})
	if err != nil {
		return domain.Failure[string](failureKind(err))
	}
	return normalizeText(raw, keyFinalSummary)
}

func (s *ToolService) ListItems(ctx context.Context, query domain.ItemQuery) domain.Result[[]string] {
	endpoint, tool := s.channelEndpoint, ToolChannelVideos
	args := map[string]any{"channel_id": query.ChannelID, "date": query.Date}
	if query.IsPlaylist() {
		endpoint, tool = s.playlistEndpoint, ToolPlaylistVideos
		args = map[string]any{"playlist_id": query.PlaylistID}
	}

	raw, err := s.call(ctx, endpoint, tool, args)
	if err != nil {
		return domain.Failure[[]string](failureKind(err))
	}
	return normalizeList(raw, keyVideoURLs)
}

// call borrows a session, makes exactly one call and always gives it back.
func (s *ToolService) call(ctx context.Context, endpoint, tool string, args map[string]any) (any, error) {
	if endpoint == "" {
		s.logger.Errorw("tool_call_unconfigured", "tool", tool)
		return nil, ErrToolNotConfigured
	}
	if s.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.callTimeout)
		defer cancel()
	}

	start := time.Now()
	session, err := s.pool.Acquire(ctx, endpoint)
	if err != nil {
		s.logger.Warnw("tool_session_acquire_failed", "tool", tool, "endpoint", endpoint, "error", err)
		return nil, err
	}
	defer s.pool.Release(endpoint, session)

	s.logger.Infow("tool_call_request", "tool", tool, "endpoint", endpoint)
	raw, err := session.CallTool(ctx, tool, args)
	if err != nil {
		s.logger.Warnw("tool_call_failed", "tool", tool, "error", err, "duration_ms", time.Since(start).Milliseconds())
		return nil, err
	}
	s.logger.Infow("tool_call_success", "tool", tool, "duration_ms", time.Since(start).Milliseconds())
	return raw, nil
}

// normalizeText maps a raw tool result onto Result[string]: the success key
// wins, then the error key; bare scalars are coerced to text.
func normalizeText(raw any, key string) domain.Result[string] {
	switch v := raw.(type) {
	case map[string]any:
		if val, ok := v[key]; ok {
			if text, ok := scalarText(val); ok {
				return domain.Success(text)
			}
			return domain.Failure[string](reasonUnexpectedFormat)
		}
		if msg, ok := v[keyError]; ok {
			return domain.Failure[string](errorText(msg))
		}
		return domain.Failure[string](reasonUnexpectedFormat)
	default:
		if text, ok := scalarText(v); ok {
			return domain.Success(text)
		}
		return domain.Failure[string](reasonUnexpectedFormat)
	}
}

// normalizeList maps a raw tool result onto Result[[]string]. A bare list is
// taken as is, nil is an empty list and a scalar is a one-element list.
func normalizeList(raw any, key string) domain.Result[[]string] {
	switch v := raw.(type) {
	case nil:
		return domain.Success([]string{})
	case map[string]any:
		if val, ok := v[key]; ok {
			return listOf(val)
		}
		if msg, ok := v[keyError]; ok {
			return domain.Failure[[]string](errorText(msg))
		}
		return domain.Failure[[]string](reasonUnexpectedFormat)
	default:
		return listOf(v)
	}
}

func listOf(raw any) domain.Result[[]string] {
	switch v := raw.(type) {
	case nil:
		return domain.Success([]string{})
	case []string:
		return domain.Success(append([]string{}, v...))
	case []any:
		items := make([]string, 0, len(v))
		for _, e := range v {
			text, ok := scalarText(e)
			if !ok {
				return domain.Failure[[]string](reasonUnexpectedFormat)
			}
			items = append(items, text)
		}
		return domain.Success(items)
	default:
		if text, ok := scalarText(v); ok {
			return domain.Success([]string{text})
		}
		return domain.Failure[[]string](reasonUnexpectedFormat)
	}
}

func scalarText(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case bool, float64, float32, int, int64, int32:
		return fmt.Sprint(t), true
	}
	return "", false
}

func errorText(v any) string {
	if text, ok := scalarText(v); ok && text != "" {
		return text
	}
	return reasonUnknown
}
