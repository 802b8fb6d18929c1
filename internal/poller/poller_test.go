package poller

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/m-mizutani/gt"
	"golang.org/x/sync/errgroup"

	"github.com/flor3z/matchlog/internal/riot"
	"github.com/flor3z/matchlog/internal/storage"
)

type fakeMatch struct {
	id      string
	start   time.Time
	players []string
}

// fakeProvider serves a fixed match history the way the match-v5 listing
// does: newest first, whole seconds, endTime exclusive, startTime inclusive.
// Bounds are converted to seconds the way riot.Client sends them.
type fakeProvider struct {
	mu        sync.Mutex
	history   []fakeMatch
	errs      map[string]error
	listErr   error
	listErrs  map[string]error
	listCalls int
	lastList  riot.MatchListOptions
	getCalls  map[string]int
}

func newFakeProvider(history ...fakeMatch) *fakeProvider {
	p := &fakeProvider{errs: map[string]error{}, listErrs: map[string]error{}, getCalls: map[string]int{}}
	p.add(history...)
	return p
}

func (p *fakeProvider) add(ms ...fakeMatch) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.history = append(p.history, ms...)
	sort.Slice(p.history, func(i, j int) bool { return p.history[i].start.After(p.history[j].start) })
}

func (p *fakeProvider) ListMatches(_ context.Context, puuid string, opts riot.MatchListOptions) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.listCalls++
	p.lastList = opts
	if p.listErr != nil {
		return nil, p.listErr
	}
	if err := p.listErrs[puuid]; err != nil {
		return nil, err
	}

	ids := []string{}
	for _, m := range p.history {
		if !contains(m.players, puuid) {
			continue
		}
		if !opts.EndTime.IsZero() && m.start.Unix() >= endSeconds(opts.EndTime) {
			continue
		}
		if !opts.StartTime.IsZero() && m.start.Unix() < opts.StartTime.Unix() {
			continue
		}
		ids = append(ids, m.id)
		if len(ids) == opts.Count {
			break
		}
	}
	return ids, nil
}

// endSeconds rounds up like the client's endTime parameter
func endSeconds(t time.Time) int64 {
	end := t.Unix()
	if t.Nanosecond() > 0 {
		end++
	}
	return end
}

func (p *fakeProvider) GetMatchRaw(_ context.Context, matchID string) (json.RawMessage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.getCalls[matchID]++
	if err := p.errs[matchID]; err != nil {
		return nil, err
	}
	for _, m := range p.history {
		if m.id == matchID {
			return matchDocument(m), nil
		}
	}
	return nil, fmt.Errorf("%w: no such match", riot.ErrNotFound)
}

func (p *fakeProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.listCalls
}

func matchDocument(m fakeMatch) json.RawMessage {
	var participants []map[string]any
	for _, id := range m.players {
		participants = append(participants, map[string]any{"puuid": id, "championName": "Ahri"})
	}
	doc, _ := json.Marshal(map[string]any{
		"metadata": map[string]any{"matchId": m.id, "participants": m.players},
		"info": map[string]any{
			"gameStartTimestamp": m.start.UnixMilli(),
			"gameEndTimestamp":   m.start.Add(30 * time.Minute).UnixMilli(),
			"gameDuration":       1800,
			"queueId":            420,
			"participants":       participants,
		},
	})
	return doc
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// history builds n matches for player, newest first, one hour apart
func history(player string, newest time.Time, n int) []fakeMatch {
	out := make([]fakeMatch, n)
	for i := range out {
		out[i] = fakeMatch{
			id:      fmt.Sprintf("NA1_%d", 5000-i),
			start:   newest.Add(-time.Duration(i) * time.Hour),
			players: []string{player},
		}
	}
	return out
}

func newRepo(t *testing.T) *storage.Repository {
	t.Helper()
	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "poller.db"))
	gt.NoError(t, err).Required()
	t.Cleanup(func() { repo.Close() })
	return repo
}

func totalMatches(t *testing.T, repo *storage.Repository) int {
	t.Helper()
	counts, err := repo.CountMatches(context.Background())
	gt.NoError(t, err).Required()
	total := 0
	for _, n := range counts {
		total += n
	}
	return total
}

var newest = time.Date(2024, 5, 20, 20, 0, 0, 0, time.UTC)

func TestBackfillColdStart(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	provider := newFakeProvider(history("p1", newest, 237)...)
	gt.NoError(t, repo.RegisterAccount(ctx, "p1", "One#NA1", "")).Required()

	walker := NewBackfill(repo, provider, NewFetcher(repo, provider))

	for cycle, want := range []int{100, 200, 237, 237} {
		gt.NoError(t, walker.Run(ctx)).Required()
		gt.Value(t, provider.calls()).Equal(cycle + 1)
		gt.Value(t, totalMatches(t, repo)).Equal(want)
	}

	oldest, ok, err := repo.OldestMatchStart(ctx, "p1")
	gt.NoError(t, err).Required()
	gt.Bool(t, ok).True()
	gt.Bool(t, oldest.Equal(newest.Add(-236*time.Hour))).True()

	a, err := repo.GetAccount(ctx, "p1")
	gt.NoError(t, err).Required()
	gt.Bool(t, a.LastSynced.After(time.Unix(0, 0))).True()
}

func TestBackfillExplicitEndTime(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	provider := newFakeProvider(history("p1", newest, 10)...)

	end := newest.Add(-5 * time.Hour)
	n, err := NewBackfill(repo, provider, NewFetcher(repo, provider)).Backfill(ctx, "p1", end)
	gt.NoError(t, err).Required()
	gt.Value(t, n).Equal(4)
	gt.Bool(t, provider.lastList.EndTime.Equal(end)).True()

	// the match starting exactly at the bound is not older than it
	_, err = repo.GetMatch(ctx, "NA1_4994")
	gt.NoError(t, err).Required()
	_, err = repo.GetMatch(ctx, "NA1_4995")
	gt.Bool(t, errors.Is(err, storage.ErrNotFound)).True()
}

func TestBackfillSkipsUnresolvableBoundary(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	provider := newFakeProvider(history("p1", newest, 3)...)
	provider.errs["NA1_4998"] = riot.ErrNotFound

	_, err := NewBackfill(repo, provider, NewFetcher(repo, provider)).Backfill(ctx, "p1", time.Time{})
	gt.NoError(t, err).Required()

	m, err := repo.GetMatch(ctx, "NA1_4998")
	gt.NoError(t, err).Required()
	gt.Value(t, m.State()).Equal(storage.StateUnresolvable)

	m, err = repo.GetMatch(ctx, "NA1_4999")
	gt.NoError(t, err).Required()
	gt.Value(t, m.State()).Equal(storage.StateResolved)
}

func TestBackfillRotatesPlayers(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	provider := newFakeProvider()
	gt.NoError(t, repo.RegisterAccount(ctx, "a", "A#NA1", "")).Required()
	gt.NoError(t, repo.RegisterAccount(ctx, "b", "B#NA1", "")).Required()

	walker := NewBackfill(repo, provider, NewFetcher(repo, provider))
	clock := newest
	walker.now = func() time.Time { clock = clock.Add(time.Second); return clock }

	var seen []string
	for range 4 {
		next, err := repo.NextBackfillAccount(ctx)
		gt.NoError(t, err).Required()
		seen = append(seen, next.PlayerID)
		gt.NoError(t, walker.Run(ctx)).Required()
	}
	gt.Value(t, seen).Equal([]string{"a", "b", "a", "b"})
}

func TestBackfillRateLimitedKeepsPosition(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	provider := newFakeProvider()
	provider.listErr = fmt.Errorf("%w: slow down", riot.ErrRateLimited)
	gt.NoError(t, repo.RegisterAccount(ctx, "p1", "One#NA1", "")).Required()

	err := NewBackfill(repo, provider, NewFetcher(repo, provider)).Run(ctx)
	gt.Error(t, err).Is(riot.ErrRateLimited)

	a, err := repo.GetAccount(ctx, "p1")
	gt.NoError(t, err).Required()
	gt.Bool(t, a.LastSynced.Equal(time.Unix(0, 0))).True()
}

func TestBackfillRelistsBoundarySecond(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	provider := newFakeProvider(
		fakeMatch{id: "NA1_2", start: newest.Add(500 * time.Millisecond), players: []string{"p1"}},
		fakeMatch{id: "NA1_1", start: newest.Add(200 * time.Millisecond), players: []string{"p1"}},
	)
	gt.NoError(t, repo.RegisterAccount(ctx, "p1", "One#NA1", "")).Required()

	_, err := repo.InsertMatchIDs(ctx, []string{"NA1_2"})
	gt.NoError(t, err).Required()
	_, err = NewFetcher(repo, provider).Resolve(ctx, "NA1_2")
	gt.NoError(t, err).Required()

	// the bound is rounded up to the next second, so the stored boundary
	// match is listed again and only its same-second neighbour is new
	n, err := NewBackfill(repo, provider, NewFetcher(repo, provider)).Backfill(ctx, "p1", time.Time{})
	gt.NoError(t, err).Required()
	gt.Value(t, n).Equal(1)
	gt.Value(t, totalMatches(t, repo)).Equal(2)
}

func TestBackfillPermanentFailureRotates(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	provider := newFakeProvider(history("b", newest, 20)...)
	provider.listErrs["a"] = &riot.APIError{StatusCode: 400, Body: "Exception decrypting"}
	gt.NoError(t, repo.RegisterAccount(ctx, "a", "A#NA1", "")).Required()
	gt.NoError(t, repo.RegisterAccount(ctx, "b", "B#NA1", "")).Required()

	walker := NewBackfill(repo, provider, NewFetcher(repo, provider))
	clock := newest
	walker.now = func() time.Time { clock = clock.Add(time.Second); return clock }

	err := walker.Run(ctx)
	gt.Error(t, err).Is(riot.ErrNotFound)

	next, err := repo.NextBackfillAccount(ctx)
	gt.NoError(t, err).Required()
	gt.Value(t, next.PlayerID).Equal("b")

	gt.NoError(t, walker.Run(ctx)).Required()
	gt.Value(t, totalMatches(t, repo)).Equal(20)
}

func TestForwardFill(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	provider := newFakeProvider(history("p1", newest, 3)...)
	gt.NoError(t, repo.RegisterAccount(ctx, "p1", "One#NA1", "")).Required()
	forward := NewForward(repo, provider, DefaultForwardOverlap)

	// nothing stored yet: backfill owns cold start
	gt.NoError(t, forward.Run(ctx)).Required()
	gt.Value(t, provider.calls()).Equal(0)

	fetcher := NewFetcher(repo, provider)
	_, err := repo.InsertMatchIDs(ctx, []string{"NA1_5000"})
	gt.NoError(t, err).Required()
	_, err = fetcher.Resolve(ctx, "NA1_5000")
	gt.NoError(t, err).Required()

	provider.add(
		fakeMatch{id: "NA1_5001", start: newest.Add(40 * time.Minute), players: []string{"p1"}},
		fakeMatch{id: "NA1_5002", start: newest.Add(80 * time.Minute), players: []string{"p1"}},
	)

	n, err := forward.Forward(ctx, "p1")
	gt.NoError(t, err).Required()
	gt.Value(t, n).Equal(2)
	gt.Bool(t, provider.lastList.StartTime.Equal(newest.Add(-5*time.Minute))).True()
	gt.Bool(t, provider.lastList.EndTime.IsZero()).True()

	// rediscovery is a no-op
	n, err = forward.Forward(ctx, "p1")
	gt.NoError(t, err).Required()
	gt.Value(t, n).Equal(0)
	gt.Value(t, totalMatches(t, repo)).Equal(3)
}

func TestFetcherUnresolvableMatch(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	provider := newFakeProvider()
	provider.errs["NA1_123"] = &riot.APIError{StatusCode: 404}

	_, err := repo.InsertMatchIDs(ctx, []string{"NA1_123"})
	gt.NoError(t, err).Required()

	gt.NoError(t, NewFetcher(repo, provider).Run(ctx)).Required()

	m, err := repo.GetMatch(ctx, "NA1_123")
	gt.NoError(t, err).Required()
	gt.Value(t, string(m.Detail)).Equal(`{"error":"unresolvable"}`)
	gt.Bool(t, m.Announced).True()

	pending, err := repo.ListAnnounceable(ctx, time.Time{})
	gt.NoError(t, err).Required()
	gt.Array(t, pending).Length(0)

	_, err = repo.NextUnresolvedMatch(ctx)
	gt.Bool(t, errors.Is(err, storage.ErrNotFound)).True()
}

func TestFetcherRateLimitedLeavesRow(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	provider := newFakeProvider(fakeMatch{id: "NA1_456", start: newest, players: []string{"p1"}})
	provider.errs["NA1_456"] = &riot.APIError{StatusCode: 429, RetryAfter: 10 * time.Second}
	fetcher := NewFetcher(repo, provider)

	_, err := repo.InsertMatchIDs(ctx, []string{"NA1_456"})
	gt.NoError(t, err).Required()

	err = fetcher.Run(ctx)
	gt.Error(t, err).Is(riot.ErrRateLimited)

	m, err := repo.GetMatch(ctx, "NA1_456")
	gt.NoError(t, err).Required()
	gt.Value(t, m.State()).Equal(storage.StateDiscovered)
	gt.Bool(t, m.Announced).False()

	// next cycle picks the same row
	delete(provider.errs, "NA1_456")
	gt.NoError(t, fetcher.Run(ctx)).Required()
	gt.Value(t, provider.getCalls["NA1_456"]).Equal(2)

	m, err = repo.GetMatch(ctx, "NA1_456")
	gt.NoError(t, err).Required()
	gt.Value(t, m.State()).Equal(storage.StateResolved)
	gt.Bool(t, m.GameStart.Equal(newest)).True()
}

func TestFetcherResolvesNewestFirst(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	provider := newFakeProvider(history("p1", newest, 3)...)

	_, err := repo.InsertMatchIDs(ctx, []string{"NA1_4998", "NA1_5000", "NA1_4999"})
	gt.NoError(t, err).Required()

	gt.NoError(t, NewFetcher(repo, provider).Run(ctx)).Required()
	m, err := repo.GetMatch(ctx, "NA1_5000")
	gt.NoError(t, err).Required()
	gt.Value(t, m.State()).Equal(storage.StateResolved)
}

func TestBackfillAndForwardConcurrently(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)
	provider := newFakeProvider(history("p1", newest, 150)...)
	gt.NoError(t, repo.RegisterAccount(ctx, "p1", "One#NA1", "")).Required()

	fetcher := NewFetcher(repo, provider)
	_, err := repo.InsertMatchIDs(ctx, []string{"NA1_5000"})
	gt.NoError(t, err).Required()
	_, err = fetcher.Resolve(ctx, "NA1_5000")
	gt.NoError(t, err).Required()

	backfill := NewBackfill(repo, provider, fetcher)
	forward := NewForward(repo, provider, DefaultForwardOverlap)

	var g errgroup.Group
	g.Go(func() error {
		for range 4 {
			if err := backfill.Run(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	g.Go(func() error {
		for range 4 {
			if err := forward.Run(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	g.Go(func() error {
		for range 4 {
			if err := fetcher.Run(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	gt.NoError(t, g.Wait()).Required()

	gt.Value(t, totalMatches(t, repo)).Equal(150)

	latest, _, err := repo.LatestMatchStart(ctx, "p1")
	gt.NoError(t, err).Required()
	gt.Bool(t, latest.Equal(newest)).True()
}
