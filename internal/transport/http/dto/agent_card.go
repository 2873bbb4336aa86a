package dto

import (
	"fmt"

	"github.com/tubesum/backend/internal/config"
	"github.com/tubesum/backend/internal/domain"
)

var defaultInputModes = []string{"text", "text/plain"}

// NewAgentCard describes the agent served under cfg.Role.
func NewAgentCard(cfg *config.Config) domain.AgentCard {
	url := cfg.Agent.PublicURL
	if url == "" {
		url = fmt.Sprintf("http://%s/", cfg.Server.Address())
	}

	card := domain.AgentCard{
		Name:    cfg.Agent.Name,
		URL:     url,
		Version: cfg.Agent.Version,
		Capabilities: domain.AgentCapabilities{
			Streaming: true,
		},
		DefaultInputModes: defaultInputModes,
	}

	switch cfg.Role {
	case config.RoleFinder:
		if card.Name == "" {
			card.Name = "YouTube Finder Agent"
		}
		card.Description = "Lists the videos a YouTube channel published on a date, or the videos of a playlist."
		card.DefaultOutputModes = []string{"application/json", "text/plain"}
		card.Skills = []domain.AgentSkill{
			{
				ID:          "get_channel_videos",
				Name:        "Channel videos by date",
				Description: "Returns the video URLs a channel published on one day.",
				Tags:        []string{"youtube", "channel", "videos"},
				Examples:    []string{"channel=UC_x5XG1OV2P6uZZ5FSM9Ttw, date=2024-10-26"},
			},
			{
				ID:          "get_playlist_videos",
				Name:        "Playlist videos",
				Description: "Returns the video URLs of a playlist.",
				Tags:        []string{"youtube", "playlist", "videos"},
				Examples:    []string{"playlist=PLBCF2DAC6FFB574DE"},
			},
		}
	default:
		if card.Name == "" {
			card.Name = "YouTube Summary Agent"
		}
		card.Description = "Summarizes the videos of a YouTube channel on a date, or of a playlist, into one digest."
		card.DefaultOutputModes = []string{"text/plain"}
		card.Skills = []domain.AgentSkill{
			{
				ID:          "summarize_youtube",
				Name:        "Summarize YouTube videos",
				Description: "Finds the requested videos, summarizes each one and combines the summaries.",
				Tags:        []string{"youtube", "summary"},
				Examples:    []string{"Summarize channel=UC_x5XG1OV2P6uZZ5FSM9Ttw, date=2024-10-26"},
			},
		}
	}
	return card
}
