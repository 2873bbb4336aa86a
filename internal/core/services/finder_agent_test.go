package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tubesum/backend/internal/core/ports"
	"github.com/tubesum/backend/internal/domain"
)

func TestFinderAgent_ChannelQuery(t *testing.T) {
	tools := &stubListingTools{result: domain.Success([]string{"u1", "u2"})}
	agent := NewFinderAgent(FinderAgentConfig{Tools: tools})

	updates := collectUpdates(agent.Stream(context.Background(), ports.AgentRequest{TaskID: "t1", Query: "channel_id=UC1 date=2024-05-01"}))
	require.Len(t, updates, 2)
	assert.False(t, updates[0].Final)

	last := updates[1]
	assert.True(t, last.Final)
	assert.False(t, last.Failed)
	assert.Equal(t, []string{"u1", "u2"}, last.Data)
	assert.Equal(t, "Found 2 videos", last.Content)

	require.Len(t, tools.queries, 1)
	assert.Equal(t, domain.ItemQuery{ChannelID: "UC1", Date: "2024-05-01"}, tools.queries[0])
}

func TestFinderAgent_PlaylistQuery(t *testing.T) {
	tools := &stubListingTools{result: domain.Success([]string{})}
	agent := NewFinderAgent(FinderAgentConfig{Tools: tools})

	updates := collectUpdates(agent.Stream(context.Background(), ports.AgentRequest{TaskID: "t1", Query: "playlist PL123"}))
	last := updates[len(updates)-1]

	assert.False(t, last.Failed)
	assert.Equal(t, []string{}, last.Data)
	require.Len(t, tools.queries, 1)
	assert.True(t, tools.queries[0].IsPlaylist())
}

func TestFinderAgent_ProgressOmitsQueryText(t *testing.T) {
	tools := &stubListingTools{result: domain.Success([]string{"u1"})}
	agent := NewFinderAgent(FinderAgentConfig{Tools: tools})

	updates := collectUpdates(agent.Stream(context.Background(), ports.AgentRequest{TaskID: "t1", Query: "channel=UCfailedtech, date=2024-10-26"}))
	require.Len(t, updates, 2)
	assert.Equal(t, "Looking up channel videos", updates[0].Content)
	assert.False(t, LooksLikeFailure(updates[0].Content))
	assert.NotContains(t, updates[0].Content, "UCfailedtech")
	assert.Equal(t, domain.ItemQuery{ChannelID: "UCfailedtech", Date: "2024-10-26"}, tools.queries[0])
}

func TestFinderAgent_InvalidQuery(t *testing.T) {
	tools := &stubListingTools{}
	agent := NewFinderAgent(FinderAgentConfig{Tools: tools})

	updates := collectUpdates(agent.Stream(context.Background(), ports.AgentRequest{TaskID: "t1", Query: "something vague"}))
	require.Len(t, updates, 1)
	assert.True(t, updates[0].Failed)
	assert.True(t, strings.HasPrefix(updates[0].Content, "Error:"))
	assert.Empty(t, tools.queries)
}

func TestFinderAgent_ToolFailure(t *testing.T) {
	tools := &stubListingTools{result: domain.Failure[[]string]("channel not found")}
	agent := NewFinderAgent(FinderAgentConfig{Tools: tools})

	updates := collectUpdates(agent.Stream(context.Background(), ports.AgentRequest{TaskID: "t1", Query: "channel UC1 date 2024-05-01"}))
	last := updates[len(updates)-1]

	assert.True(t, last.Failed)
	assert.Equal(t, "Error: channel not found", last.Content)
}
