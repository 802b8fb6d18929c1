package bot

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/m-mizutani/gt"

	"github.com/flor3z/matchlog/internal/announce"
	"github.com/flor3z/matchlog/internal/riot"
	"github.com/flor3z/matchlog/internal/roster"
	"github.com/flor3z/matchlog/internal/storage"
)

func TestMessageSend(t *testing.T) {
	send := messageSend(&announce.Message{
		Title:  "MATCH UPDATE!",
		Body:   "Start: now",
		Color:  0xFF0000,
		Footer: "Match ID: NA1_1",
		Fields: []announce.Field{
			{Name: "Summoner's Rift", Value: "5v5 Draft Pick", Inline: true},
			{Value: "Azure\nAhri - 1/2/3"},
		},
		Image: &announce.Attachment{Name: announce.ScoreboardName, ContentType: "image/png", Data: []byte{1, 2, 3}},
	})

	gt.Array(t, send.Embeds).Length(1).Required()
	embed := send.Embeds[0]
	gt.Value(t, embed.Title).Equal("MATCH UPDATE!")
	gt.Value(t, embed.Color).Equal(0xFF0000)
	gt.Value(t, embed.Footer.Text).Equal("Match ID: NA1_1")
	gt.Array(t, embed.Fields).Length(2).Required()
	gt.Bool(t, embed.Fields[0].Inline).True()
	gt.Value(t, embed.Fields[1].Name).Equal(blankFieldName)
	gt.Value(t, embed.Image.URL).Equal("attachment://scoreboard.png")

	gt.Array(t, send.Files).Length(1).Required()
	gt.Value(t, send.Files[0].Name).Equal("scoreboard.png")
	gt.Value(t, send.Files[0].ContentType).Equal("image/png")
}

func TestMessageSendWithoutImage(t *testing.T) {
	send := messageSend(&announce.Message{Title: "MATCH UPDATE!"})
	gt.Value(t, send.Embeds[0].Image).Nil()
	gt.Array(t, send.Files).Length(0)
	gt.Value(t, send.Embeds[0].Footer).Nil()
}

func TestFormatRoster(t *testing.T) {
	gt.String(t, formatRoster(nil)).Contains("No players are being tracked")

	out := formatRoster([]roster.Entry{
		{Account: &storage.Account{DisplayName: "Faker#KR1", LastSynced: time.Unix(0, 0)}, ChatUserID: "42"},
		{Account: &storage.Account{DisplayName: "Doublelift#NA1"}},
	})
	gt.Value(t, out).Equal("**Tracked Players:**\n\n1. `Faker#KR1` (<@42>)\n2. `Doublelift#NA1`\n")
}

func TestLookupFailureMessage(t *testing.T) {
	gt.String(t, lookupFailureMessage("Nobody", "", fmt.Errorf("lookup: %w", riot.ErrNotFound))).
		Contains("`Nobody#NA1`")
	gt.String(t, lookupFailureMessage("x", "y", &riot.APIError{StatusCode: 429})).
		Contains("busy")
	gt.String(t, lookupFailureMessage("", "", roster.ErrInvalidRiotID)).
		Contains("Invalid Riot ID")
	gt.String(t, lookupFailureMessage("Faker", "KR1", fmt.Errorf("%w: Faker#KR1", roster.ErrNotTracked))).
		Contains("not being tracked")
	gt.String(t, lookupFailureMessage("a", "b", errors.New("disk full"))).
		Contains("Something went wrong")
}

func TestRiotIDFromOptions(t *testing.T) {
	opts := optionMap([]*discordgo.ApplicationCommandInteractionDataOption{
		{Name: "name", Type: discordgo.ApplicationCommandOptionString, Value: "Faker#KR1"},
	})
	name, tag := riotIDFromOptions(opts)
	gt.Value(t, name).Equal("Faker")
	gt.Value(t, tag).Equal("KR1")

	opts = optionMap([]*discordgo.ApplicationCommandInteractionDataOption{
		{Name: "name", Type: discordgo.ApplicationCommandOptionString, Value: "Doublelift"},
		{Name: "tag", Type: discordgo.ApplicationCommandOptionString, Value: "NA2"},
	})
	name, tag = riotIDFromOptions(opts)
	gt.Value(t, name).Equal("Doublelift")
	gt.Value(t, tag).Equal("NA2")
}

func TestCommandDefinitions(t *testing.T) {
	defs := commandDefinitions()
	names := make([]string, len(defs))
	for i, d := range defs {
		names[i] = d.Name
	}
	gt.Value(t, names).Equal([]string{"register", "deregister", "list"})
	gt.Array(t, defs[0].Options).Length(3)
	gt.Array(t, defs[1].Options).Length(2)
}
