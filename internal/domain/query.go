package domain

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const DateLayout = "2006-01-02"

var (
	ErrQueryUnrecognized = errors.New("query: expected 'channel=<id>, date=YYYY-MM-DD' or 'playlist=<id>'")
	ErrQueryMissingDate  = errors.New("query: channel lookups need a date (YYYY-MM-DD)")
	ErrQueryInvalidDate  = errors.New("query: date must be formatted YYYY-MM-DD")
	ErrQueryAmbiguous    = errors.New("query: give either a channel or a playlist, not both")
)

var (
	queryFieldPattern = regexp.MustCompile(`(?i)\b(channel_id|channel|playlist_id|playlist|date)\b\s*(?:[=:]\s*|\s+)['"]?([^\s,;'"]+)['"]?`)
	queryDatePattern  = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b`)
)

// ItemQuery selects the videos to list: a channel on a date, or a playlist.
type ItemQuery struct {
	ChannelID  string
	Date       string
	PlaylistID string
}

func (q ItemQuery) IsPlaylist() bool {
	return q.PlaylistID != ""
}

func (q ItemQuery) String() string {
	if q.IsPlaylist() {
		return "playlist=" + q.PlaylistID
	}
	return fmt.Sprintf("channel=%s, date=%s", q.ChannelID, q.Date)
}

// ParseItemQuery reads "channel=<id>, date=YYYY-MM-DD" or "playlist=<id>".
// Keys are case-insensitive and may be separated by commas, semicolons or
// whitespace; a bare YYYY-MM-DD anywhere in the text counts as the date.
func ParseItemQuery(text string) (ItemQuery, error) {
	var q ItemQuery
	for _, m := range queryFieldPattern.FindAllStringSubmatch(text, -1) {
		value := m[2]
		switch strings.ToLower(m[1]) {
		case "channel", "channel_id":
			q.ChannelID = value
		case "playlist", "playlist_id":
			q.PlaylistID = value
		case "date":
			q.Date = value
		}
	}

	if q.ChannelID != "" && q.PlaylistID != "" {
		return ItemQuery{}, ErrQueryAmbiguous
	}
	if q.PlaylistID != "" {
		return ItemQuery{PlaylistID: q.PlaylistID}, nil
	}
	if q.ChannelID == "" {
		return ItemQuery{}, ErrQueryUnrecognized
	}

	if q.Date == "" {
		q.Date = queryDatePattern.FindString(text)
	}
	if q.Date == "" {
		return ItemQuery{}, ErrQueryMissingDate
	}
	if _, err := time.Parse(DateLayout, q.Date); err != nil {
		return ItemQuery{}, ErrQueryInvalidDate
	}
	return q, nil
}
