package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/flor3z/matchlog/internal/metrics"
	"github.com/flor3z/matchlog/internal/riot"
	"github.com/flor3z/matchlog/internal/storage"
)

// Outcome describes what one resolution attempt did to a match row
type Outcome int

const (
	// OutcomeNone means there was nothing to resolve or another writer got there first
	OutcomeNone Outcome = iota
	OutcomeResolved
	OutcomeUnresolvable
)

func (o Outcome) String() string {
	switch o {
	case OutcomeResolved:
		return "resolved"
	case OutcomeUnresolvable:
		return "unresolvable"
	}
	return "none"
}

// Fetcher turns bare match ids into stored match documents
type Fetcher struct {
	store    Store
	provider Provider
}

// NewFetcher creates a detail fetcher
func NewFetcher(store Store, provider Provider) *Fetcher {
	return &Fetcher{store: store, provider: provider}
}

// Run resolves the unresolved match with the highest id. Rate limits and other
// transient failures leave the row untouched for the next cycle.
func (f *Fetcher) Run(ctx context.Context) error {
	m, err := f.store.NextUnresolvedMatch(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		slog.Debug("No unresolved matches")
		return nil
	}
	if err != nil {
		return err
	}

	outcome, err := f.Resolve(ctx, m.MatchID)
	if err != nil {
		return err
	}
	slog.Info("Fetched match detail", "matchID", m.MatchID, "outcome", outcome)
	return nil
}

// Resolve fetches and stores one match. A permanent provider miss stores the
// unresolvable sentinel, which also retires the match from announcement.
func (f *Fetcher) Resolve(ctx context.Context, matchID string) (Outcome, error) {
	raw, err := f.provider.GetMatchRaw(ctx, matchID)
	if errors.Is(err, riot.ErrNotFound) {
		return f.markUnresolvable(ctx, matchID, err)
	}
	if err != nil {
		outcome := "error"
		if errors.Is(err, riot.ErrRateLimited) {
			outcome = "rate_limited"
			slog.Warn("Rate limited fetching match", "matchID", matchID, "retryAfter", riot.RetryAfter(err))
		} else if errors.Is(err, riot.ErrTransient) {
			outcome = "transient"
		}
		metrics.DetailsResolved.WithLabelValues(outcome).Inc()
		return OutcomeNone, fmt.Errorf("failed to fetch match %s: %w", matchID, err)
	}

	match, err := riot.ParseMatch(raw)
	if err != nil {
		// a document without a start time will never become usable
		return f.markUnresolvable(ctx, matchID, err)
	}

	changed, err := f.store.SaveMatchDetail(ctx, matchID, raw, match.StartTime())
	if err != nil {
		return OutcomeNone, err
	}
	if !changed {
		return OutcomeNone, nil
	}
	metrics.DetailsResolved.WithLabelValues("resolved").Inc()
	return OutcomeResolved, nil
}

func (f *Fetcher) markUnresolvable(ctx context.Context, matchID string, cause error) (Outcome, error) {
	changed, err := f.store.MarkUnresolvable(ctx, matchID)
	if err != nil {
		return OutcomeNone, err
	}
	if !changed {
		return OutcomeNone, nil
	}
	slog.Warn("Match is unresolvable", "matchID", matchID, "error", cause)
	metrics.DetailsResolved.WithLabelValues("unresolvable").Inc()
	return OutcomeUnresolvable, nil
}
