package bot

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/flor3z/matchlog/internal/roster"
)

// Bot represents the Discord bot instance
type Bot struct {
	session *discordgo.Session
	roster  *roster.Roster
	guildID string
}

// New creates a new Bot. An empty guildID registers commands globally.
func New(token, guildID string, r *roster.Roster) (*Bot, error) {
	// Create Discord session
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}

	// Set intents
	session.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages

	b := &Bot{
		session: session,
		roster:  r,
		guildID: guildID,
	}

	// Register command handlers
	b.registerHandlers()

	return b, nil
}

// Session exposes the underlying session for the announcement notifier
func (b *Bot) Session() *discordgo.Session {
	return b.session
}

// Start opens the Discord connection and registers slash commands
func (b *Bot) Start(ctx context.Context) error {
	// Open Discord connection
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("failed to open Discord connection: %w", err)
	}

	slog.Info("Connected to Discord", "user", b.session.State.User.Username)

	// Register slash commands
	if err := b.registerCommands(); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	return nil
}

// Stop closes the Discord connection. Registered commands are kept.
func (b *Bot) Stop() error {
	if b.session != nil {
		return b.session.Close()
	}
	return nil
}

// Serve implements suture.Service: connect, wait for shutdown, disconnect
func (b *Bot) Serve(ctx context.Context) error {
	if err := b.Start(ctx); err != nil {
		// a half-open session must not leak into the restart
		_ = b.Stop()
		return err
	}

	<-ctx.Done()

	slog.Info("Disconnecting from Discord")
	if err := b.Stop(); err != nil {
		return fmt.Errorf("failed to close Discord session: %w", err)
	}
	return ctx.Err()
}

func (b *Bot) String() string {
	return "discord-bot"
}

// registerHandlers sets up Discord event handlers
func (b *Bot) registerHandlers() {
	b.session.AddHandler(b.handleInteraction)
	b.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		slog.Info("Bot is ready", "guilds", len(r.Guilds))
	})
}

// handleInteraction processes slash command interactions
func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	data := i.ApplicationCommandData()
	slog.Debug("Received command", "command", data.Name, "guild", i.GuildID)

	switch data.Name {
	case "register":
		b.handleRegister(s, i)
	case "deregister":
		b.handleDeregister(s, i)
	case "list":
		b.handleList(s, i)
	default:
		slog.Warn("Unknown command", "command", data.Name)
	}
}
