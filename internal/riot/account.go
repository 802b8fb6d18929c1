package riot

import (
	"context"
	"fmt"
	"net/url"
)

// Account represents a Riot account from the Account-V1 API
type Account struct {
	PUUID    string `json:"puuid"`
	GameName string `json:"gameName"`
	TagLine  string `json:"tagLine"`
}

// Summoner represents a League profile from the Summoner-V4 API
type Summoner struct {
	PUUID         string `json:"puuid"`
	ProfileIconID int    `json:"profileIconId"`
	RevisionDate  int64  `json:"revisionDate"`
	SummonerLevel int64  `json:"summonerLevel"`
}

// AccountInfo is the combined result of a player lookup
type AccountInfo struct {
	PUUID         string
	GameName      string
	TagLine       string
	Level         int64
	ProfileIconID int
}

// DisplayName renders the Riot ID as GameName#TagLine
func (a *AccountInfo) DisplayName() string {
	return fmt.Sprintf("%s#%s", a.GameName, a.TagLine)
}

// GetAccountByRiotID retrieves account information by Riot ID
func (c *Client) GetAccountByRiotID(ctx context.Context, gameName, tagLine string) (*Account, error) {
	endpoint := fmt.Sprintf("%s/riot/account/v1/accounts/by-riot-id/%s/%s",
		c.regionalBase, url.PathEscape(gameName), url.PathEscape(tagLine))

	var account Account
	if err := c.get(ctx, "account-by-riot-id", endpoint, nil, &account); err != nil {
		return nil, fmt.Errorf("failed to get account by Riot ID: %w", err)
	}

	return &account, nil
}

// GetSummonerByPUUID retrieves the League profile for a PUUID
func (c *Client) GetSummonerByPUUID(ctx context.Context, puuid string) (*Summoner, error) {
	endpoint := fmt.Sprintf("%s/lol/summoner/v4/summoners/by-puuid/%s",
		c.platformBase, url.PathEscape(puuid))

	var summoner Summoner
	if err := c.get(ctx, "summoner-by-puuid", endpoint, nil, &summoner); err != nil {
		return nil, fmt.Errorf("failed to get summoner: %w", err)
	}

	return &summoner, nil
}

// LookupAccount resolves a Riot ID into a player id plus profile details
func (c *Client) LookupAccount(ctx context.Context, gameName, tagLine string) (*AccountInfo, error) {
	account, err := c.GetAccountByRiotID(ctx, gameName, tagLine)
	if err != nil {
		return nil, err
	}

	summoner, err := c.GetSummonerByPUUID(ctx, account.PUUID)
	if err != nil {
		return nil, err
	}

	return &AccountInfo{
		PUUID:         account.PUUID,
		GameName:      account.GameName,
		TagLine:       account.TagLine,
		Level:         summoner.SummonerLevel,
		ProfileIconID: summoner.ProfileIconID,
	}, nil
}
