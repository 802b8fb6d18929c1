package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flor3z/matchlog/internal/metrics"
	"github.com/flor3z/matchlog/internal/riot"
	"github.com/flor3z/matchlog/internal/storage"
)

// maxBoundProbes caps how many ids from the tail of a batch are tried when
// looking for a start time to page further back from
const maxBoundProbes = 5

// Backfill walks tracked players' histories backwards, one provider page per cycle
type Backfill struct {
	store    Store
	provider Provider
	fetcher  *Fetcher
	now      func() time.Time
}

// NewBackfill creates a backfill walker that resolves batch boundaries through fetcher
func NewBackfill(store Store, provider Provider, fetcher *Fetcher) *Backfill {
	return &Backfill{
		store:    store,
		provider: provider,
		fetcher:  fetcher,
		now:      time.Now,
	}
}

// Run backfills the tracked player that was synced longest ago
func (b *Backfill) Run(ctx context.Context) error {
	account, err := b.store.NextBackfillAccount(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		slog.Debug("No tracked accounts to backfill")
		return nil
	}
	if err != nil {
		return err
	}

	_, err = b.Backfill(ctx, account.PlayerID, time.Time{})
	return err
}

// Backfill lists one page of matches older than endTime, or older than the
// player's oldest stored match when endTime is zero, and stores the ids. The
// oldest id of the page is resolved so the stored boundary moves back and the
// next call continues from there. It returns the number of new ids.
func (b *Backfill) Backfill(ctx context.Context, playerID string, endTime time.Time) (int, error) {
	if endTime.IsZero() {
		oldest, ok, err := b.store.OldestMatchStart(ctx, playerID)
		if err != nil {
			return 0, err
		}
		if ok {
			endTime = oldest
		}
	}

	ids, err := b.provider.ListMatches(ctx, playerID, riot.MatchListOptions{
		EndTime: endTime,
		Count:   riot.MaxPageSize,
	})
	if err != nil {
		if errors.Is(err, riot.ErrRateLimited) {
			slog.Warn("Rate limited, backfill position kept", "player", playerID, "retryAfter", riot.RetryAfter(err))
		} else if !errors.Is(err, riot.ErrTransient) {
			// non-retryable failures still move the player to the back of the rotation
			if touchErr := b.store.TouchSynced(ctx, playerID, b.now()); touchErr != nil {
				err = errors.Join(err, touchErr)
			}
		}
		return 0, fmt.Errorf("failed to list matches for %s: %w", playerID, err)
	}

	inserted, err := b.store.InsertMatchIDs(ctx, ids)
	if err != nil {
		return 0, err
	}
	metrics.MatchesDiscovered.WithLabelValues("backfill").Add(float64(inserted))

	if err := b.store.TouchSynced(ctx, playerID, b.now()); err != nil {
		return inserted, err
	}

	slog.Info("Backfilled matches",
		"player", playerID,
		"endTime", endTime,
		"listed", len(ids),
		"new", inserted,
	)

	if len(ids) > 0 {
		if err := b.advanceBound(ctx, ids); err != nil {
			// ids are stored; the bound moves on a later cycle
			slog.Warn("Failed to resolve backfill boundary", "player", playerID, "error", err)
		}
	}

	return inserted, nil
}

// advanceBound makes sure the oldest usable match of a newest-first batch has
// a stored start time
func (b *Backfill) advanceBound(ctx context.Context, ids []string) error {
	probes := 0
	for i := len(ids) - 1; i >= 0 && probes < maxBoundProbes; i-- {
		m, err := b.store.GetMatch(ctx, ids[i])
		if err != nil {
			return err
		}
		switch m.State() {
		case storage.StateResolved, storage.StateAnnounced:
			return nil
		case storage.StateUnresolvable:
			continue
		}

		probes++
		outcome, err := b.fetcher.Resolve(ctx, m.MatchID)
		if err != nil {
			return err
		}
		if outcome != OutcomeUnresolvable {
			return nil
		}
	}
	return nil
}
