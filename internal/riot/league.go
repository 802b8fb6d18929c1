package riot

import (
	"context"
	"fmt"
	"net/url"
)

// Ranked queue types as reported by League-V4
const (
	QueueSolo = "RANKED_SOLO_5x5"
	QueueFlex = "RANKED_FLEX_SR"
)

// LeagueEntry is one ranked queue standing for a player
type LeagueEntry struct {
	QueueType    string `json:"queueType"`
	Tier         string `json:"tier"`
	Rank         string `json:"rank"`
	LeaguePoints int    `json:"leaguePoints"`
	Wins         int    `json:"wins"`
	Losses       int    `json:"losses"`
	HotStreak    bool   `json:"hotStreak"`
	Veteran      bool   `json:"veteran"`
	FreshBlood   bool   `json:"freshBlood"`
	Inactive     bool   `json:"inactive"`
}

// GetLeagueEntries retrieves every ranked queue standing for a player
func (c *Client) GetLeagueEntries(ctx context.Context, puuid string) ([]LeagueEntry, error) {
	endpoint := fmt.Sprintf("%s/lol/league/v4/entries/by-puuid/%s",
		c.platformBase, url.PathEscape(puuid))

	var entries []LeagueEntry
	if err := c.get(ctx, "league-entries", endpoint, nil, &entries); err != nil {
		return nil, fmt.Errorf("failed to get league entries: %w", err)
	}

	return entries, nil
}

// RankedQueueFor picks the ranked ladder that best describes a match's queue
func RankedQueueFor(queueID int) string {
	if queueID == 440 {
		return QueueFlex
	}
	return QueueSolo
}
