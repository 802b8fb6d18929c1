package announce

import (
	"bytes"
	"image/png"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/flor3z/matchlog/internal/riot"
	"github.com/flor3z/matchlog/internal/storage"
)

func sampleMatch() *riot.Match {
	start := time.Date(2024, 3, 9, 2, 15, 0, 0, time.UTC)
	return &riot.Match{
		Metadata: riot.MatchMetadata{MatchID: "NA1_777", Participants: []string{"red-1", "blue-1", "blue-2"}},
		Info: riot.MatchInfo{
			GameStartTimestamp: start.UnixMilli(),
			GameEndTimestamp:   start.Add(31 * time.Minute).UnixMilli(),
			GameDuration:       31*60 + 20,
			QueueID:            420,
			Participants: []riot.Participant{
				{PUUID: "red-1", RiotIdGameName: "Crimson", ChampionName: "Zed", TeamID: 200, Win: false, Kills: 3, Deaths: 7, Assists: 2},
				{PUUID: "blue-1", RiotIdGameName: "Azure", ChampionName: "Ahri", TeamID: 100, Win: true, Kills: 9, Deaths: 1, Assists: 4},
				{PUUID: "blue-2", SummonerName: "OldName", ChampionName: "Lux", TeamID: 100, Win: true, Kills: 1, Deaths: 2, Assists: 15},
			},
		},
	}
}

func TestRenderFeaturedOnly(t *testing.T) {
	chicago, err := time.LoadLocation("America/Chicago")
	gt.NoError(t, err).Required()

	msg := Render(Summary{
		Match:    sampleMatch(),
		Mentions: map[string]string{"blue-1": "1111"},
		Ranks: map[string]*storage.RankSnapshot{
			"blue-1": {Tier: "GOLD", Rank: "IV"},
		},
		Location: chicago,
	})

	gt.Value(t, msg.Title).Equal("MATCH UPDATE!")
	gt.Value(t, msg.Body).Equal("Start: March 08, 2024 at 08:15:00 PM CST\nDuration: 0:31:20")
	gt.Value(t, msg.Color).Equal(colorWin)
	gt.Value(t, msg.Footer).Equal("Match ID: NA1_777")
	gt.Array(t, msg.Fields).Length(3).Required()
	gt.Value(t, msg.Fields[0]).Equal(Field{Name: "Summoner's Rift", Value: "5v5 Ranked Solo/Duo", Inline: true})
	gt.Value(t, msg.Fields[1].Name).Equal("Blue (WINNER)")
	gt.Value(t, msg.Fields[2].Value).Equal("Azure (<@1111>) - Gold 4\nAhri - 9/1/4")
}

func TestRenderEveryoneWhenNobodyIsAssociated(t *testing.T) {
	msg := Render(Summary{Match: sampleMatch()})

	gt.Value(t, msg.Color).Equal(colorLoss)
	var names []string
	for _, f := range msg.Fields[1:] {
		names = append(names, f.Name)
	}
	gt.Value(t, names).Equal([]string{"Blue (WINNER)", "", "", "Red (LOSER)", ""})
	gt.Value(t, msg.Fields[3].Value).Equal("OldName\nLux - 1/2/15")
	gt.Value(t, msg.Fields[5].Value).Equal("Crimson\nZed - 3/7/2")
}

func TestRenderLossColor(t *testing.T) {
	msg := Render(Summary{
		Match:    sampleMatch(),
		Mentions: map[string]string{"blue-1": "1", "red-1": "2"},
		Ranks:    map[string]*storage.RankSnapshot{"red-1": {Tier: storage.Unranked}},
	})
	gt.Value(t, msg.Color).Equal(colorLoss)
	gt.Value(t, msg.Fields[len(msg.Fields)-1].Value).Equal("Crimson (<@2>) - Unranked\nZed - 3/7/2")
}

func TestFormatRank(t *testing.T) {
	cases := []struct {
		tier, rank, want string
	}{
		{"DIAMOND", "II", "Diamond 2"},
		{"SILVER", "IV", "Silver 4"},
		{"MASTER", "I", "Master 1"},
		{"GOLD", "", "Gold"},
		{storage.Unranked, "", "Unranked"},
		{"", "", "Unranked"},
	}
	for _, tc := range cases {
		t.Run(tc.tier+tc.rank, func(t *testing.T) {
			gt.Value(t, formatRank(&storage.RankSnapshot{Tier: tc.tier, Rank: tc.rank})).Equal(tc.want)
		})
	}
}

func TestFormatDuration(t *testing.T) {
	gt.Value(t, formatDuration(31*time.Minute+20*time.Second)).Equal("0:31:20")
	gt.Value(t, formatDuration(time.Hour+5*time.Second)).Equal("1:00:05")
}

func TestRenderScoreboard(t *testing.T) {
	data, err := RenderScoreboard(sampleMatch())
	gt.NoError(t, err).Required()

	img, err := png.Decode(bytes.NewReader(data))
	gt.NoError(t, err).Required()
	gt.Value(t, img.Bounds().Dx()).Equal(boardWidth)

	_, err = RenderScoreboard(&riot.Match{})
	gt.Error(t, err)
}
