package bot

import (
	"bytes"
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/flor3z/matchlog/internal/announce"
)

// blankFieldName stands in for empty field names, which Discord rejects
const blankFieldName = "\u200b"

// Notifier posts announcements to one Discord channel
type Notifier struct {
	session   *discordgo.Session
	channelID string
}

// NewNotifier creates a notifier for channelID
func NewNotifier(session *discordgo.Session, channelID string) *Notifier {
	return &Notifier{session: session, channelID: channelID}
}

// Send implements announce.Notifier
func (n *Notifier) Send(ctx context.Context, msg *announce.Message) error {
	if _, err := n.session.ChannelMessageSendComplex(n.channelID, messageSend(msg), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to post to channel %s: %w", n.channelID, err)
	}
	return nil
}

// messageSend converts an announcement into a single-embed Discord message
func messageSend(msg *announce.Message) *discordgo.MessageSend {
	embed := &discordgo.MessageEmbed{
		Title:       msg.Title,
		Description: msg.Body,
		Color:       msg.Color,
	}
	for _, f := range msg.Fields {
		name := f.Name
		if name == "" {
			name = blankFieldName
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   name,
			Value:  f.Value,
			Inline: f.Inline,
		})
	}
	if msg.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: msg.Footer}
	}

	send := &discordgo.MessageSend{Embeds: []*discordgo.MessageEmbed{embed}}
	if msg.Image != nil {
		embed.Image = &discordgo.MessageEmbedImage{URL: "attachment://" + msg.Image.Name}
		send.Files = []*discordgo.File{{
			Name:        msg.Image.Name,
			ContentType: msg.Image.ContentType,
			Reader:      bytes.NewReader(msg.Image.Data),
		}}
	}
	return send
}

var _ announce.Notifier = (*Notifier)(nil)
