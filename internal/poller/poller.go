// Package poller discovers match ids for tracked players and resolves them
// into full match documents. Every step reads its position from the store, so
// cycles can be interrupted or restarted at any point.
package poller

import (
	"context"
	"time"

	"github.com/goccy/go-json"

	"github.com/flor3z/matchlog/internal/riot"
	"github.com/flor3z/matchlog/internal/storage"
)

// DefaultForwardOverlap re-lists a short stretch before the newest stored match
// to pick up games the provider recorded late
const DefaultForwardOverlap = 5 * time.Minute

// Provider is the subset of the Riot client the walkers and fetcher use
type Provider interface {
	ListMatches(ctx context.Context, puuid string, opts riot.MatchListOptions) ([]string, error)
	GetMatchRaw(ctx context.Context, matchID string) (json.RawMessage, error)
}

// Store is the subset of the repository the walkers and fetcher use
type Store interface {
	InsertMatchIDs(ctx context.Context, matchIDs []string) (int, error)
	GetMatch(ctx context.Context, matchID string) (*storage.Match, error)
	NextUnresolvedMatch(ctx context.Context) (*storage.Match, error)
	SaveMatchDetail(ctx context.Context, matchID string, detail json.RawMessage, gameStart time.Time) (bool, error)
	MarkUnresolvable(ctx context.Context, matchID string) (bool, error)
	OldestMatchStart(ctx context.Context, playerID string) (time.Time, bool, error)
	LatestMatchStart(ctx context.Context, playerID string) (time.Time, bool, error)
	NextBackfillAccount(ctx context.Context) (*storage.Account, error)
	ListTrackedAccounts(ctx context.Context) ([]*storage.Account, error)
	TouchSynced(ctx context.Context, playerID string, at time.Time) error
}

var _ Store = (*storage.Repository)(nil)
var _ Provider = (*riot.Client)(nil)
