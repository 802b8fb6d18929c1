package roster

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/flor3z/matchlog/internal/riot"
	"github.com/flor3z/matchlog/internal/storage"
)

type fakeProvider struct {
	accounts map[string]*riot.AccountInfo
}

func (p *fakeProvider) LookupAccount(_ context.Context, gameName, tagLine string) (*riot.AccountInfo, error) {
	if a, ok := p.accounts[gameName+"#"+tagLine]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("%w: unknown account", riot.ErrNotFound)
}

func setup(t *testing.T) (*Roster, *storage.Repository) {
	t.Helper()
	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "roster.db"))
	gt.NoError(t, err).Required()
	t.Cleanup(func() { repo.Close() })

	p := &fakeProvider{accounts: map[string]*riot.AccountInfo{
		"Faker#KR1":      {PUUID: "puuid-faker", GameName: "Faker", TagLine: "KR1", Level: 700},
		"Doublelift#NA1": {PUUID: "puuid-dl", GameName: "Doublelift", TagLine: "NA1", Level: 500},
	}}
	return New(repo, p), repo
}

func TestParseRiotID(t *testing.T) {
	cases := []struct {
		input, name, tag string
		valid            bool
	}{
		{"Faker#KR1", "Faker", "KR1", true},
		{" Hide on bush # KR1 ", "Hide on bush", "KR1", true},
		{"Doublelift", "Doublelift", "NA1", true},
		{"#NA1", "", "", false},
		{"Name#", "", "", false},
		{"a#b#c", "", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			name, tag, err := ParseRiotID(tc.input)
			if !tc.valid {
				gt.Error(t, err).Is(ErrInvalidRiotID)
				return
			}
			gt.NoError(t, err).Required()
			gt.Value(t, name).Equal(tc.name)
			gt.Value(t, tag).Equal(tc.tag)
		})
	}
}

func TestRegisterAndList(t *testing.T) {
	ctx := context.Background()
	r, repo := setup(t)

	info, err := r.Register(ctx, "Faker", "KR1", "1234")
	gt.NoError(t, err).Required()
	gt.Value(t, info.PUUID).Equal("puuid-faker")

	_, err = r.Register(ctx, "Doublelift", "", "")
	gt.NoError(t, err).Required()

	entries, err := r.List(ctx)
	gt.NoError(t, err).Required()
	gt.Array(t, entries).Length(2).Required()
	gt.Value(t, entries[0].Account.DisplayName).Equal("Doublelift#NA1")
	gt.Value(t, entries[0].ChatUserID).Equal("")
	gt.Value(t, entries[1].Account.DisplayName).Equal("Faker#KR1")
	gt.Value(t, entries[1].ChatUserID).Equal("1234")

	a, err := repo.GetAccount(ctx, "puuid-faker")
	gt.NoError(t, err).Required()
	gt.Bool(t, a.Tracked).True()
}

func TestRegisterUnknownPlayer(t *testing.T) {
	ctx := context.Background()
	r, repo := setup(t)

	_, err := r.Register(ctx, "Nobody", "NA1", "1")
	gt.Error(t, err).Is(riot.ErrNotFound)

	accounts, err := repo.ListTrackedAccounts(ctx)
	gt.NoError(t, err).Required()
	gt.Array(t, accounts).Length(0)
}

func TestDeregister(t *testing.T) {
	ctx := context.Background()
	r, repo := setup(t)

	_, err := r.Register(ctx, "Faker", "KR1", "1234")
	gt.NoError(t, err).Required()

	_, err = r.Deregister(ctx, "Faker", "KR1")
	gt.NoError(t, err).Required()

	entries, err := r.List(ctx)
	gt.NoError(t, err).Required()
	gt.Array(t, entries).Length(0)

	ids, err := repo.IdentitiesFor(ctx, []string{"puuid-faker"})
	gt.NoError(t, err).Required()
	gt.Value(t, len(ids)).Equal(0)

	a, err := repo.GetAccount(ctx, "puuid-faker")
	gt.NoError(t, err).Required()
	gt.Bool(t, a.Tracked).False()

	// a second deregister finds nothing to stop
	_, err = r.Deregister(ctx, "Faker", "KR1")
	gt.Error(t, err).Is(ErrNotTracked)
}

func TestDeregisterRefreshesName(t *testing.T) {
	ctx := context.Background()
	r, repo := setup(t)

	_, err := r.Register(ctx, "Faker", "KR1", "")
	gt.NoError(t, err).Required()

	r.provider.(*fakeProvider).accounts["Faker#KR1"].GameName = "Hide on bush"
	_, err = r.Deregister(ctx, "Faker", "KR1")
	gt.NoError(t, err).Required()

	a, err := repo.GetAccount(ctx, "puuid-faker")
	gt.NoError(t, err).Required()
	gt.Value(t, a.DisplayName).Equal("Hide on bush#KR1")
	gt.Bool(t, a.Tracked).False()
}

func TestDeregisterUnknownAccountIsRecorded(t *testing.T) {
	ctx := context.Background()
	r, repo := setup(t)

	_, err := r.Deregister(ctx, "Doublelift", "NA1")
	gt.Error(t, err).Is(ErrNotTracked)

	a, err := repo.GetAccount(ctx, "puuid-dl")
	gt.NoError(t, err).Required()
	gt.Value(t, a.DisplayName).Equal("Doublelift#NA1")
	gt.Bool(t, a.Tracked).False()
}
