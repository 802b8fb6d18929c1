package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/flor3z/matchlog/internal/riot"
	"github.com/flor3z/matchlog/internal/roster"
)

const lookupTimeout = 10 * time.Second

// Slash command definitions
func commandDefinitions() []*discordgo.ApplicationCommand {
	riotIDOptions := []*discordgo.ApplicationCommandOption{
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "name",
			Description: "Riot game name (e.g., Doublelift)",
			Required:    true,
		},
		{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        "tag",
			Description: "Riot tag line (default " + roster.DefaultTagLine + ")",
		},
	}

	return []*discordgo.ApplicationCommand{
		{
			Name:        "register",
			Description: "Track a player's matches and announce them here",
			Options: append(riotIDOptions, &discordgo.ApplicationCommandOption{
				Type:        discordgo.ApplicationCommandOptionUser,
				Name:        "user",
				Description: "Discord user to mention in announcements (default: you)",
			}),
		},
		{
			Name:        "deregister",
			Description: "Stop tracking a player",
			Options:     riotIDOptions,
		},
		{
			Name:        "list",
			Description: "List all tracked players",
		},
	}
}

// registerCommands registers all slash commands with Discord
func (b *Bot) registerCommands() error {
	slog.Info("Registering slash commands", "guild", b.guildID)

	definitions := commandDefinitions()
	registered, err := b.session.ApplicationCommandBulkOverwrite(b.session.State.User.ID, b.guildID, definitions)
	if err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	slog.Info("Slash commands registered", "count", len(registered))
	return nil
}

// handleRegister handles the /register command
func (b *Bot) handleRegister(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i.ApplicationCommandData().Options)
	name, tag := riotIDFromOptions(opts)

	chatUserID := invokerID(i)
	if opt, ok := opts["user"]; ok {
		if u := opt.UserValue(nil); u != nil {
			chatUserID = u.ID
		}
	}

	// Respond immediately to avoid timeout
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}); err != nil {
		slog.Error("Failed to defer response", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	info, err := b.roster.Register(ctx, name, tag, chatUserID)
	if err != nil {
		slog.Error("Failed to register player", "name", name, "tag", tag, "error", err)
		editResponse(s, i, lookupFailureMessage(name, tag, err))
		return
	}

	msg := fmt.Sprintf("Registered `%s`", info.DisplayName())
	if chatUserID != "" {
		msg += fmt.Sprintf(" for <@%s>", chatUserID)
	}
	editResponse(s, i, msg+". Their matches will be announced here.")
}

// handleDeregister handles the /deregister command
func (b *Bot) handleDeregister(s *discordgo.Session, i *discordgo.InteractionCreate) {
	opts := optionMap(i.ApplicationCommandData().Options)
	name, tag := riotIDFromOptions(opts)

	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}); err != nil {
		slog.Error("Failed to defer response", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	info, err := b.roster.Deregister(ctx, name, tag)
	if err != nil {
		slog.Error("Failed to deregister player", "name", name, "tag", tag, "error", err)
		editResponse(s, i, lookupFailureMessage(name, tag, err))
		return
	}

	editResponse(s, i, fmt.Sprintf("Stopped tracking `%s`.", info.DisplayName()))
}

// handleList handles the /list command
func (b *Bot) handleList(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	entries, err := b.roster.List(ctx)
	if err != nil {
		slog.Error("Failed to list players", "error", err)
		respondWithMessage(s, i, "Failed to retrieve player list.")
		return
	}

	respondWithMessage(s, i, formatRoster(entries))
}

func formatRoster(entries []roster.Entry) string {
	if len(entries) == 0 {
		return "No players are being tracked.\nUse `/register` to add one!"
	}

	var sb strings.Builder
	sb.WriteString("**Tracked Players:**\n\n")
	for idx, e := range entries {
		fmt.Fprintf(&sb, "%d. `%s`", idx+1, e.Account.DisplayName)
		if e.ChatUserID != "" {
			fmt.Fprintf(&sb, " (<@%s>)", e.ChatUserID)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// lookupFailureMessage turns a roster error into the reply shown to the user
func lookupFailureMessage(name, tag string, err error) string {
	if tag == "" {
		tag = roster.DefaultTagLine
	}
	switch {
	case errors.Is(err, roster.ErrInvalidRiotID):
		return fmt.Sprintf("Invalid Riot ID: %s", err.Error())
	case errors.Is(err, roster.ErrNotTracked):
		return fmt.Sprintf("`%s#%s` is not being tracked.", name, tag)
	case errors.Is(err, riot.ErrNotFound):
		return fmt.Sprintf("Could not find player `%s#%s`. Please check the ID and try again.", name, tag)
	case errors.Is(err, riot.ErrRateLimited), errors.Is(err, riot.ErrTransient):
		return "The Riot API is busy right now. Please try again in a minute."
	default:
		return "Something went wrong. Please try again."
	}
}

// Helper functions

func optionMap(options []*discordgo.ApplicationCommandInteractionDataOption) map[string]*discordgo.ApplicationCommandInteractionDataOption {
	m := make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(options))
	for _, opt := range options {
		m[opt.Name] = opt
	}
	return m
}

// riotIDFromOptions accepts either name + tag or a single "Name#Tag" name
func riotIDFromOptions(opts map[string]*discordgo.ApplicationCommandInteractionDataOption) (string, string) {
	var name, tag string
	if opt, ok := opts["name"]; ok {
		name = strings.TrimSpace(opt.StringValue())
	}
	if opt, ok := opts["tag"]; ok {
		tag = strings.TrimSpace(opt.StringValue())
	}
	if tag == "" && strings.Contains(name, "#") {
		if n, t, err := roster.ParseRiotID(name); err == nil {
			return n, t
		}
	}
	return name, tag
}

func invokerID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

func respondWithMessage(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
		},
	}); err != nil {
		slog.Error("Failed to respond to interaction", "error", err)
	}
}

func editResponse(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content: &content,
	}); err != nil {
		slog.Error("Failed to edit interaction response", "error", err)
	}
}
