package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flor3z/matchlog/internal/metrics"
	"github.com/flor3z/matchlog/internal/riot"
)

// Forward lists matches newer than each tracked player's latest stored match
type Forward struct {
	store    Store
	provider Provider
	overlap  time.Duration
}

// NewForward creates a forward walker; a negative overlap selects DefaultForwardOverlap
func NewForward(store Store, provider Provider, overlap time.Duration) *Forward {
	if overlap < 0 {
		overlap = DefaultForwardOverlap
	}
	return &Forward{store: store, provider: provider, overlap: overlap}
}

// Run visits every tracked player once. A rate limit ends the cycle early;
// other per-player failures are collected and the walk continues.
func (f *Forward) Run(ctx context.Context) error {
	accounts, err := f.store.ListTrackedAccounts(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for _, account := range accounts {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, err := f.Forward(ctx, account.PlayerID)
		if errors.Is(err, riot.ErrRateLimited) {
			slog.Warn("Rate limited, ending forward fill cycle",
				"player", account.PlayerID, "retryAfter", riot.RetryAfter(err))
			return err
		}
		if err != nil {
			slog.Warn("Forward fill failed", "player", account.PlayerID, "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Forward lists matches that started after the player's latest stored match,
// less the overlap. Players with nothing stored yet are left to backfill.
func (f *Forward) Forward(ctx context.Context, playerID string) (int, error) {
	latest, ok, err := f.store.LatestMatchStart(ctx, playerID)
	if err != nil {
		return 0, err
	}
	if !ok {
		slog.Debug("No stored matches yet, skipping forward fill", "player", playerID)
		return 0, nil
	}

	ids, err := f.provider.ListMatches(ctx, playerID, riot.MatchListOptions{
		StartTime: latest.Add(-f.overlap),
		Count:     riot.MaxPageSize,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list matches for %s: %w", playerID, err)
	}

	inserted, err := f.store.InsertMatchIDs(ctx, ids)
	if err != nil {
		return 0, err
	}
	metrics.MatchesDiscovered.WithLabelValues("forward").Add(float64(inserted))

	if inserted > 0 {
		slog.Info("Found new matches", "player", playerID, "new", inserted)
	}
	return inserted, nil
}
