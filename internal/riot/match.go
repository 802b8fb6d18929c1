package riot

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// MaxPageSize is the provider's cap on match ids per listing call
const MaxPageSize = 100

// Match represents match data from the Match-V5 API
type Match struct {
	Metadata MatchMetadata `json:"metadata"`
	Info     MatchInfo     `json:"info"`
}

// MatchMetadata contains match metadata
type MatchMetadata struct {
	MatchID      string   `json:"matchId"`
	Participants []string `json:"participants"` // PUUIDs
}

// MatchInfo contains detailed match information
type MatchInfo struct {
	GameCreation       int64         `json:"gameCreation"`       // Unix timestamp in ms
	GameStartTimestamp int64         `json:"gameStartTimestamp"` // Unix timestamp in ms
	GameEndTimestamp   int64         `json:"gameEndTimestamp"`   // Unix timestamp in ms
	GameDuration       int64         `json:"gameDuration"`
	GameMode           string        `json:"gameMode"`
	GameType           string        `json:"gameType"`
	MapID              int           `json:"mapId"`
	QueueID            int           `json:"queueId"`
	Participants       []Participant `json:"participants"`
}

// Participant represents a player in the match
type Participant struct {
	PUUID                       string `json:"puuid"`
	SummonerID                  string `json:"summonerId"`
	SummonerName                string `json:"summonerName"`
	RiotIdGameName              string `json:"riotIdGameName"`
	RiotIdTagline               string `json:"riotIdTagline"`
	ChampionName                string `json:"championName"`
	ChampionID                  int    `json:"championId"`
	TeamID                      int    `json:"teamId"`
	Win                         bool   `json:"win"`
	Kills                       int    `json:"kills"`
	Deaths                      int    `json:"deaths"`
	Assists                     int    `json:"assists"`
	TotalMinionsKilled          int    `json:"totalMinionsKilled"`
	NeutralMinionsKilled        int    `json:"neutralMinionsKilled"`
	GoldEarned                  int    `json:"goldEarned"`
	TotalDamageDealtToChampions int    `json:"totalDamageDealtToChampions"`
	VisionScore                 int    `json:"visionScore"`
}

// DisplayName prefers the Riot ID and falls back to the legacy summoner name
func (p *Participant) DisplayName() string {
	if p.RiotIdGameName != "" {
		return p.RiotIdGameName
	}
	return p.SummonerName
}

// StartTime returns the game start, falling back to creation time for old payloads
func (m *Match) StartTime() time.Time {
	ms := m.Info.GameStartTimestamp
	if ms == 0 {
		ms = m.Info.GameCreation
	}
	return time.UnixMilli(ms).UTC()
}

// Duration normalises gameDuration, which is in milliseconds for games
// recorded before gameEndTimestamp was introduced and in seconds after
func (m *Match) Duration() time.Duration {
	if m.Info.GameEndTimestamp == 0 {
		return time.Duration(m.Info.GameDuration) * time.Millisecond
	}
	return time.Duration(m.Info.GameDuration) * time.Second
}

// ParseMatch decodes a stored or fetched match document
func ParseMatch(raw []byte) (*Match, error) {
	var match Match
	if err := json.Unmarshal(raw, &match); err != nil {
		return nil, fmt.Errorf("failed to decode match: %w", err)
	}
	if match.Info.GameStartTimestamp == 0 && match.Info.GameCreation == 0 {
		return nil, fmt.Errorf("match %q has no start timestamp", match.Metadata.MatchID)
	}
	return &match, nil
}

// MatchListOptions narrows a match id listing. Zero values are omitted.
type MatchListOptions struct {
	StartTime time.Time
	EndTime   time.Time
	Queue     int
	Type      string
	Start     int
	Count     int
}

func (o MatchListOptions) query() url.Values {
	q := url.Values{}
	if !o.StartTime.IsZero() {
		// startTime is inclusive on whole seconds; flooring never skips a match
		q.Set("startTime", strconv.FormatInt(o.StartTime.Unix(), 10))
	}
	if !o.EndTime.IsZero() {
		// round up so a match that began inside the bound's second is not skipped
		end := o.EndTime.Unix()
		if o.EndTime.Nanosecond() > 0 {
			end++
		}
		q.Set("endTime", strconv.FormatInt(end, 10))
	}
	if o.Queue > 0 {
		q.Set("queue", strconv.Itoa(o.Queue))
	}
	if o.Type != "" {
		q.Set("type", o.Type)
	}
	if o.Start > 0 {
		q.Set("start", strconv.Itoa(o.Start))
	}
	count := o.Count
	if count <= 0 || count > MaxPageSize {
		count = MaxPageSize
	}
	q.Set("count", strconv.Itoa(count))
	return q
}

// ListMatches retrieves match ids for a player, newest first
func (c *Client) ListMatches(ctx context.Context, puuid string, opts MatchListOptions) ([]string, error) {
	endpoint := fmt.Sprintf("%s/lol/match/v5/matches/by-puuid/%s/ids",
		c.regionalBase, url.PathEscape(puuid))

	var matchIDs []string
	if err := c.get(ctx, "match-ids", endpoint, opts.query(), &matchIDs); err != nil {
		return nil, fmt.Errorf("failed to get match IDs: %w", err)
	}

	return matchIDs, nil
}

// GetMatchRaw retrieves the full match document without interpreting it
func (c *Client) GetMatchRaw(ctx context.Context, matchID string) (json.RawMessage, error) {
	endpoint := fmt.Sprintf("%s/lol/match/v5/matches/%s", c.regionalBase, url.PathEscape(matchID))

	body, err := c.getRaw(ctx, "match", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}

	return json.RawMessage(body), nil
}
