// Package roster manages which players are tracked and who they belong to in chat.
package roster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/flor3z/matchlog/internal/riot"
	"github.com/flor3z/matchlog/internal/storage"
)

// DefaultTagLine is assumed when a Riot ID is given without one
const DefaultTagLine = "NA1"

var (
	// ErrInvalidRiotID is returned for input that is not GameName or GameName#TagLine
	ErrInvalidRiotID = errors.New("invalid Riot ID")
	// ErrNotTracked is returned when deregistering a player nobody registered
	ErrNotTracked = errors.New("player is not tracked")
)

// Provider resolves Riot IDs
type Provider interface {
	LookupAccount(ctx context.Context, gameName, tagLine string) (*riot.AccountInfo, error)
}

// Store is the subset of the repository the roster uses
type Store interface {
	RegisterAccount(ctx context.Context, playerID, displayName, chatUserID string) error
	GetAccount(ctx context.Context, playerID string) (*storage.Account, error)
	DeregisterAccount(ctx context.Context, playerID, displayName string) error
	ListTrackedAccounts(ctx context.Context) ([]*storage.Account, error)
	IdentitiesFor(ctx context.Context, playerIDs []string) (map[string]string, error)
}

// Entry is one tracked player
type Entry struct {
	Account    *storage.Account
	ChatUserID string
}

// Roster registers and deregisters tracked players
type Roster struct {
	store    Store
	provider Provider
}

// New creates a roster
func New(store Store, provider Provider) *Roster {
	return &Roster{store: store, provider: provider}
}

// ParseRiotID splits "GameName#TagLine". A missing tag line becomes DefaultTagLine.
func ParseRiotID(input string) (gameName, tagLine string, err error) {
	parts := strings.Split(strings.TrimSpace(input), "#")
	if len(parts) > 2 {
		return "", "", fmt.Errorf("%w: must be GameName#TagLine (e.g., Faker#KR1)", ErrInvalidRiotID)
	}

	gameName = strings.TrimSpace(parts[0])
	tagLine = DefaultTagLine
	if len(parts) == 2 {
		tagLine = strings.TrimSpace(parts[1])
	}
	if gameName == "" || tagLine == "" {
		return "", "", fmt.Errorf("%w: game name and tag line cannot be empty", ErrInvalidRiotID)
	}
	return gameName, tagLine, nil
}

// Register looks the player up and starts tracking them. A non-empty
// chatUserID also links the player to that chat user.
func (r *Roster) Register(ctx context.Context, gameName, tagLine, chatUserID string) (*riot.AccountInfo, error) {
	info, err := r.lookup(ctx, gameName, tagLine)
	if err != nil {
		return nil, err
	}

	if err := r.store.RegisterAccount(ctx, info.PUUID, info.DisplayName(), chatUserID); err != nil {
		return nil, fmt.Errorf("failed to register %s: %w", info.DisplayName(), err)
	}

	slog.Info("Registered player", "player", info.DisplayName(), "puuid", info.PUUID, "level", info.Level, "chatUser", chatUserID)
	return info, nil
}

// Deregister stops tracking the player and drops their chat link. The
// stored display name is refreshed even when the player was not tracked.
func (r *Roster) Deregister(ctx context.Context, gameName, tagLine string) (*riot.AccountInfo, error) {
	info, err := r.lookup(ctx, gameName, tagLine)
	if err != nil {
		return nil, err
	}

	tracked := false
	account, err := r.store.GetAccount(ctx, info.PUUID)
	switch {
	case err == nil:
		tracked = account.Tracked
	case !errors.Is(err, storage.ErrNotFound):
		return nil, err
	}

	if err := r.store.DeregisterAccount(ctx, info.PUUID, info.DisplayName()); err != nil {
		return nil, fmt.Errorf("failed to deregister %s: %w", info.DisplayName(), err)
	}
	if !tracked {
		return nil, fmt.Errorf("%w: %s", ErrNotTracked, info.DisplayName())
	}

	slog.Info("Deregistered player", "player", info.DisplayName(), "puuid", info.PUUID)
	return info, nil
}

// List returns every tracked player with their chat user, if any
func (r *Roster) List(ctx context.Context) ([]Entry, error) {
	accounts, err := r.store.ListTrackedAccounts(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(accounts))
	for i, a := range accounts {
		ids[i] = a.PlayerID
	}
	users, err := r.store.IdentitiesFor(ctx, ids)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, len(accounts))
	for i, a := range accounts {
		entries[i] = Entry{Account: a, ChatUserID: users[a.PlayerID]}
	}
	return entries, nil
}

func (r *Roster) lookup(ctx context.Context, gameName, tagLine string) (*riot.AccountInfo, error) {
	if tagLine == "" {
		tagLine = DefaultTagLine
	}
	if strings.TrimSpace(gameName) == "" {
		return nil, fmt.Errorf("%w: game name cannot be empty", ErrInvalidRiotID)
	}

	info, err := r.provider.LookupAccount(ctx, gameName, tagLine)
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s#%s: %w", gameName, tagLine, err)
	}
	return info, nil
}
