package main

import (
	"context"
	"fmt"
	"time"

	"github.com/flor3z/matchlog/internal/announce"
	"github.com/flor3z/matchlog/internal/config"
	"github.com/flor3z/matchlog/internal/metrics"
	"github.com/flor3z/matchlog/internal/poller"
	"github.com/flor3z/matchlog/internal/rank"
	"github.com/flor3z/matchlog/internal/riot"
	"github.com/flor3z/matchlog/internal/scheduler"
	"github.com/flor3z/matchlog/internal/storage"
)

const (
	taskForwardfill = "forwardfill"
	taskBackfill    = "backfill"
	taskDetails     = "details"
	taskDispatch    = "dispatch"
	taskStats       = "stats"
)

var taskNames = []string{taskForwardfill, taskBackfill, taskDetails, taskDispatch, taskStats}

// pipeline holds the components shared by every subcommand
type pipeline struct {
	repo   *storage.Repository
	client *riot.Client
	ranks  *rank.Cache
}

func openPipeline(cfg *config.Config) (*pipeline, error) {
	repo, err := storage.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	client := riot.NewClient(riot.Options{
		APIKey:                cfg.RiotAPIKey,
		Region:                cfg.RiotRegion,
		Platform:              cfg.RiotPlatform,
		RequestsPerSecond:     cfg.RiotRequestsPerSecond,
		RequestsPerTwoMinutes: cfg.RiotRequestsPerTwoMins,
		Timeout:               cfg.RiotTimeout,
	})

	return &pipeline{
		repo:   repo,
		client: client,
		ranks:  rank.NewCache(repo, client, cfg.RankFreshness),
	}, nil
}

func (p *pipeline) Close() error {
	return p.repo.Close()
}

func (p *pipeline) dispatcher(cfg *config.Config, notifier announce.Notifier) (*announce.Dispatcher, error) {
	loc, err := time.LoadLocation(cfg.AnnounceTimezone)
	if err != nil {
		return nil, fmt.Errorf("invalid ANNOUNCE_TIMEZONE %q: %w", cfg.AnnounceTimezone, err)
	}
	return announce.NewDispatcher(p.repo, p.ranks, notifier, announce.Options{
		Window:     cfg.AnnounceWindow,
		Location:   loc,
		Scoreboard: true,
	}), nil
}

// tasks builds the periodic tasks; dispatch is left out when dispatcher is nil
func (p *pipeline) tasks(cfg *config.Config, dispatcher *announce.Dispatcher) []scheduler.Task {
	fetcher := poller.NewFetcher(p.repo, p.client)

	tasks := []scheduler.Task{
		{Name: taskForwardfill, Interval: cfg.ForwardfillInterval, Run: poller.NewForward(p.repo, p.client, cfg.ForwardOverlap).Run},
		{Name: taskBackfill, Interval: cfg.BackfillInterval, Run: poller.NewBackfill(p.repo, p.client, fetcher).Run},
		{Name: taskDetails, Interval: cfg.DetailsInterval, Run: fetcher.Run},
		{Name: taskStats, Interval: cfg.StatsInterval, Run: p.recordMatchStates},
	}
	if dispatcher != nil {
		tasks = append(tasks, scheduler.Task{Name: taskDispatch, Interval: cfg.DispatchInterval, Run: dispatcher.Run})
	}
	return tasks
}

// recordMatchStates publishes the per-state row counts as a gauge
func (p *pipeline) recordMatchStates(ctx context.Context) error {
	counts, err := p.repo.CountMatches(ctx)
	if err != nil {
		return err
	}
	for _, state := range []storage.MatchState{
		storage.StateDiscovered, storage.StateResolved, storage.StateAnnounced, storage.StateUnresolvable,
	} {
		metrics.MatchesByState.WithLabelValues(state.String()).Set(float64(counts[state]))
	}
	return nil
}
