package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/flor3z/matchlog/internal/announce"
	"github.com/flor3z/matchlog/internal/bot"
	"github.com/flor3z/matchlog/internal/config"
	"github.com/flor3z/matchlog/internal/metrics"
	"github.com/flor3z/matchlog/internal/roster"
	"github.com/flor3z/matchlog/internal/scheduler"
)

func run(ctx context.Context, args []string) error {
	var cfg *config.Config

	app := &cli.Command{
		Name:  "matchlog",
		Usage: "Mirror League of Legends match history and announce new games on Discord",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "debug, info, warn or error",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			loaded, err := config.Load()
			if err != nil {
				return ctx, fmt.Errorf("failed to load configuration: %w", err)
			}
			if lvl := c.String("log-level"); lvl != "" {
				loaded.LogLevel = lvl
			}
			cfg = loaded
			setupLogging(cfg.LogLevel)
			return ctx, nil
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return serve(ctx, cfg)
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Run the Discord bot and the sync pipeline",
				Action: func(ctx context.Context, c *cli.Command) error {
					return serve(ctx, cfg)
				},
			},
			{
				Name:      "register",
				Usage:     "Track a player",
				ArgsUsage: "<name> [tag] [chat-user]",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "user", Usage: "Discord user id to mention in announcements"},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					return registerPlayer(ctx, cfg, c.Args().Get(0), c.Args().Get(1),
						chatUser(c.String("user"), c.Args().Get(2)))
				},
			},
			{
				Name:      "deregister",
				Usage:     "Stop tracking a player",
				ArgsUsage: "<name> [tag]",
				Action: func(ctx context.Context, c *cli.Command) error {
					return deregisterPlayer(ctx, cfg, c.Args().Get(0), c.Args().Get(1))
				},
			},
			{
				Name:  "tracked",
				Usage: "List tracked players",
				Action: func(ctx context.Context, c *cli.Command) error {
					return listTracked(ctx, cfg)
				},
			},
			{
				Name:      "run",
				Usage:     "Run one cycle of a pipeline task and exit",
				ArgsUsage: "<" + strings.Join(taskNames, "|") + ">",
				Action: func(ctx context.Context, c *cli.Command) error {
					return runTask(ctx, cfg, c.Args().First())
				},
			},
		},
	}

	return app.Run(ctx, args)
}

func serve(ctx context.Context, cfg *config.Config) error {
	if err := cfg.ValidateDiscord(); err != nil {
		return err
	}

	slog.Info("Starting LoL Match Tracker Bot")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p, err := openPipeline(cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	b, err := bot.New(cfg.DiscordToken, cfg.DiscordGuildID, roster.New(p.repo, p.client))
	if err != nil {
		return err
	}

	dispatcher, err := p.dispatcher(cfg, bot.NewNotifier(b.Session(), cfg.GameLogChannelID))
	if err != nil {
		return err
	}

	sched := scheduler.New("matchlog", slog.Default())
	sched.AddService(b)
	for _, t := range p.tasks(cfg, dispatcher) {
		if err := sched.Add(t); err != nil {
			return err
		}
	}
	if cfg.MetricsAddr != "" {
		sched.AddService(metrics.NewServer(cfg.MetricsAddr, p.repo.Ping))
	}

	slog.Info("Bot is running. Press Ctrl+C to stop.", "tasks", sched.Tasks())
	if err := sched.Serve(ctx); err != nil {
		return err
	}

	slog.Info("Bot stopped")
	return nil
}

func registerPlayer(ctx context.Context, cfg *config.Config, name, tag, chatUserID string) error {
	name, tag, err := riotID(name, tag)
	if err != nil {
		return err
	}

	p, err := openPipeline(cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	info, err := roster.New(p.repo, p.client).Register(ctx, name, tag, chatUserID)
	if err != nil {
		return err
	}
	fmt.Printf("Registered %s (%s)\n", info.DisplayName(), info.PUUID)
	return nil
}

func deregisterPlayer(ctx context.Context, cfg *config.Config, name, tag string) error {
	name, tag, err := riotID(name, tag)
	if err != nil {
		return err
	}

	p, err := openPipeline(cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	info, err := roster.New(p.repo, p.client).Deregister(ctx, name, tag)
	if err != nil {
		return err
	}
	fmt.Printf("Stopped tracking %s\n", info.DisplayName())
	return nil
}

func listTracked(ctx context.Context, cfg *config.Config) error {
	p, err := openPipeline(cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	entries, err := roster.New(p.repo, p.client).List(ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		synced := "never"
		if e.Account.LastSynced.Unix() > 0 {
			synced = e.Account.LastSynced.Format(time.RFC3339)
		}
		fmt.Printf("%s\t%s\tchat=%s\tbackfilled=%s\n", e.Account.DisplayName, e.Account.PlayerID, e.ChatUserID, synced)
	}
	return nil
}

// runTask runs a single cycle through the scheduler so it honours the same
// single-flight guard as the periodic loop
func runTask(ctx context.Context, cfg *config.Config, name string) error {
	p, err := openPipeline(cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	var dispatcher *announce.Dispatcher
	if name == taskDispatch {
		if err := cfg.ValidateDiscord(); err != nil {
			return err
		}
		b, err := bot.New(cfg.DiscordToken, cfg.DiscordGuildID, nil)
		if err != nil {
			return err
		}
		if dispatcher, err = p.dispatcher(cfg, bot.NewNotifier(b.Session(), cfg.GameLogChannelID)); err != nil {
			return err
		}
	}

	sched := scheduler.New("matchlog", slog.Default())
	for _, t := range p.tasks(cfg, dispatcher) {
		if err := sched.Add(t); err != nil {
			return err
		}
	}
	return sched.RunOnce(ctx, name)
}

// chatUser prefers the --user flag over the positional chat-user argument
func chatUser(flag, positional string) string {
	if flag != "" {
		return flag
	}
	return positional
}

// riotID accepts "Name#Tag" in the name argument when no tag is given
func riotID(name, tag string) (string, string, error) {
	if tag != "" {
		return name, tag, nil
	}
	return roster.ParseRiotID(name)
}
