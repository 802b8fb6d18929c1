package announce

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/flor3z/matchlog/internal/metrics"
	"github.com/flor3z/matchlog/internal/riot"
	"github.com/flor3z/matchlog/internal/storage"
)

// DefaultWindow bounds how old a match may be and still be announced
const DefaultWindow = 6 * 24 * time.Hour

// Store is the subset of the repository the dispatcher uses
type Store interface {
	ListAnnounceable(ctx context.Context, since time.Time) ([]*storage.Match, error)
	MarkAnnounced(ctx context.Context, matchID string) (bool, error)
	IdentitiesFor(ctx context.Context, playerIDs []string) (map[string]string, error)
}

// RankLookup returns a player's standing in a ranked queue
type RankLookup interface {
	Get(ctx context.Context, playerID, queue string) (*storage.RankSnapshot, error)
}

// Options configures a Dispatcher
type Options struct {
	// Window defaults to DefaultWindow
	Window time.Duration
	// Location for start times; UTC when nil
	Location *time.Location
	// Scoreboard attaches a rendered scoreboard image to each announcement
	Scoreboard bool
	Now        func() time.Time
}

// Dispatcher announces resolved matches in id order
type Dispatcher struct {
	mu sync.Mutex

	store    Store
	ranks    RankLookup
	notifier Notifier

	window     time.Duration
	location   *time.Location
	now        func() time.Time
	scoreboard func(*riot.Match) ([]byte, error)
}

// NewDispatcher creates a dispatcher. ranks may be nil to skip rank lines.
func NewDispatcher(store Store, ranks RankLookup, notifier Notifier, opts Options) *Dispatcher {
	d := &Dispatcher{
		store:    store,
		ranks:    ranks,
		notifier: notifier,
		window:   opts.Window,
		location: opts.Location,
		now:      opts.Now,
	}
	if d.window <= 0 {
		d.window = DefaultWindow
	}
	if d.location == nil {
		d.location = time.UTC
	}
	if d.now == nil {
		d.now = time.Now
	}
	if opts.Scoreboard {
		d.scoreboard = RenderScoreboard
	}
	return d
}

// Run announces every pending match
func (d *Dispatcher) Run(ctx context.Context) error {
	_, err := d.Dispatch(ctx)
	return err
}

// Dispatch announces pending matches and reports how many were marked
// announced. Runs are serialized so a run started while another is in flight
// sees the first run's marks. A match whose delivery fails stays pending.
func (d *Dispatcher) Dispatch(ctx context.Context) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	matches, err := d.store.ListAnnounceable(ctx, d.now().Add(-d.window))
	if err != nil {
		return 0, err
	}
	if len(matches) == 0 {
		return 0, nil
	}
	slog.Info("Found matches to announce", "count", len(matches))

	announced := 0
	for _, m := range matches {
		if ctx.Err() != nil {
			return announced, ctx.Err()
		}

		ok, err := d.announce(ctx, m)
		if err != nil {
			slog.Error("Failed to announce match", "matchID", m.MatchID, "error", err)
			continue
		}
		if ok {
			announced++
		}
	}

	return announced, nil
}

func (d *Dispatcher) announce(ctx context.Context, m *storage.Match) (bool, error) {
	match, err := riot.ParseMatch(m.Detail)
	if err != nil {
		metrics.Announcements.WithLabelValues("invalid").Inc()
		return false, err
	}

	msg := Render(d.enrich(ctx, match))

	if d.scoreboard != nil {
		data, err := d.scoreboard(match)
		if err != nil {
			slog.Warn("Failed to render scoreboard", "matchID", m.MatchID, "error", err)
		} else {
			msg.Image = &Attachment{Name: ScoreboardName, ContentType: "image/png", Data: data}
		}
	}

	if err := d.notifier.Send(ctx, msg); err != nil {
		metrics.Announcements.WithLabelValues("failed").Inc()
		return false, fmt.Errorf("failed to send announcement: %w", err)
	}

	ok, err := d.store.MarkAnnounced(ctx, m.MatchID)
	if err != nil {
		// delivered but not marked: the next run sends it again
		metrics.Announcements.WithLabelValues("unmarked").Inc()
		return false, fmt.Errorf("failed to mark match announced: %w", err)
	}
	if !ok {
		slog.Warn("Match was already announced", "matchID", m.MatchID)
		return false, nil
	}

	metrics.Announcements.WithLabelValues("sent").Inc()
	slog.Info("Announced match", "matchID", m.MatchID, "start", match.StartTime())
	return true, nil
}

// enrich gathers mentions and ranks. Lookups that fail are logged and left out.
func (d *Dispatcher) enrich(ctx context.Context, match *riot.Match) Summary {
	s := Summary{
		Match:    match,
		Ranks:    map[string]*storage.RankSnapshot{},
		Location: d.location,
	}

	ids := make([]string, 0, len(match.Info.Participants))
	for _, p := range match.Info.Participants {
		ids = append(ids, p.PUUID)
	}
	mentions, err := d.store.IdentitiesFor(ctx, ids)
	if err != nil {
		slog.Warn("Failed to load chat associations", "matchID", match.Metadata.MatchID, "error", err)
		mentions = map[string]string{}
	}
	s.Mentions = mentions

	if d.ranks == nil {
		return s
	}
	queue := riot.RankedQueueFor(match.Info.QueueID)
	for _, p := range Featured(match, mentions) {
		rank, err := d.ranks.Get(ctx, p.PUUID, queue)
		if err != nil {
			slog.Warn("Failed to look up rank", "matchID", match.Metadata.MatchID, "player", p.PUUID, "error", err)
			continue
		}
		s.Ranks[p.PUUID] = rank
	}
	return s
}
