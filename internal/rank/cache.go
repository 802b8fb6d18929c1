// Package rank keeps a time-windowed view of players' ranked standings on top
// of the append-only rank_snapshot table.
package rank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/flor3z/matchlog/internal/metrics"
	"github.com/flor3z/matchlog/internal/riot"
	"github.com/flor3z/matchlog/internal/storage"
)

// DefaultFreshness is how long a stored snapshot is served without asking the provider
const DefaultFreshness = 60 * time.Second

// Provider returns every ranked queue standing for a player
type Provider interface {
	GetLeagueEntries(ctx context.Context, puuid string) ([]riot.LeagueEntry, error)
}

// Store persists and reads rank snapshots
type Store interface {
	LatestRankSnapshot(ctx context.Context, playerID, queue string) (*storage.RankSnapshot, error)
	InsertRankSnapshots(ctx context.Context, snapshots []storage.RankSnapshot) error
}

// Cache serves rank lookups from the store while they are fresh
type Cache struct {
	store     Store
	provider  Provider
	freshness time.Duration
	now       func() time.Time

	group singleflight.Group
}

// Option configures a Cache
type Option func(*Cache)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// NewCache creates a cache; a non-positive freshness selects DefaultFreshness
func NewCache(store Store, provider Provider, freshness time.Duration, opts ...Option) *Cache {
	if freshness <= 0 {
		freshness = DefaultFreshness
	}
	c := &Cache{
		store:     store,
		provider:  provider,
		freshness: freshness,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the player's standing in queue. A snapshot younger than the
// freshness window is returned as stored; otherwise the provider is asked and
// every queue it reports is recorded. Players without a standing in queue get
// an UNRANKED snapshot.
func (c *Cache) Get(ctx context.Context, playerID, queue string) (*storage.RankSnapshot, error) {
	snap, err := c.store.LatestRankSnapshot(ctx, playerID, queue)
	switch {
	case err == nil:
		if c.now().Sub(snap.Timestamp) < c.freshness {
			metrics.RankLookups.WithLabelValues("store").Inc()
			return snap, nil
		}
	case !errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("failed to read rank snapshot: %w", err)
	}

	v, err, _ := c.group.Do(playerID+"\x00"+queue, func() (any, error) {
		return c.refresh(ctx, playerID, queue)
	})
	if err != nil {
		return nil, err
	}
	// each caller gets its own copy
	out := *v.(*storage.RankSnapshot)
	return &out, nil
}

func (c *Cache) refresh(ctx context.Context, playerID, queue string) (*storage.RankSnapshot, error) {
	entries, err := c.provider.GetLeagueEntries(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch ranks for %s: %w", playerID, err)
	}
	metrics.RankLookups.WithLabelValues("provider").Inc()

	ts := c.now().UTC().Truncate(time.Second)
	snapshots := make([]storage.RankSnapshot, 0, len(entries)+1)
	var requested *storage.RankSnapshot
	for _, e := range entries {
		snapshots = append(snapshots, storage.RankSnapshot{
			Timestamp:    ts,
			PlayerID:     playerID,
			Queue:        e.QueueType,
			Tier:         e.Tier,
			Rank:         e.Rank,
			LeaguePoints: e.LeaguePoints,
			Wins:         e.Wins,
			Losses:       e.Losses,
		})
		if e.QueueType == queue {
			requested = &snapshots[len(snapshots)-1]
		}
	}
	if requested == nil {
		snapshots = append(snapshots, storage.RankSnapshot{
			Timestamp: ts,
			PlayerID:  playerID,
			Queue:     queue,
			Tier:      storage.Unranked,
		})
		requested = &snapshots[len(snapshots)-1]
	}

	// a lost write only costs an extra provider call later
	if err := c.store.InsertRankSnapshots(ctx, snapshots); err != nil {
		slog.Warn("Failed to persist rank snapshots", "player", playerID, "error", err)
	}

	slog.Debug("Refreshed rank", "player", playerID, "queue", queue, "tier", requested.Tier, "rank", requested.Rank)
	return requested, nil
}
