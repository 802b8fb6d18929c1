package storage

import (
	"bytes"
	"errors"
	"time"

	"github.com/goccy/go-json"
)

// ErrNotFound is returned when a lookup matches no row
var ErrNotFound = errors.New("storage: not found")

// UnresolvableDetail is stored in place of a match document the provider will never return
var UnresolvableDetail = json.RawMessage(`{"error":"unresolvable"}`)

// Unranked is the tier recorded when a player has no standing in a queue
const Unranked = "UNRANKED"

// Account represents a player the pipeline knows about
type Account struct {
	PlayerID    string
	DisplayName string
	Tracked     bool
	LastSynced  time.Time
}

// MatchState is the lifecycle position of a match row
type MatchState int

const (
	StateDiscovered MatchState = iota
	StateResolved
	StateAnnounced
	StateUnresolvable
)

func (s MatchState) String() string {
	switch s {
	case StateDiscovered:
		return "discovered"
	case StateResolved:
		return "resolved"
	case StateAnnounced:
		return "announced"
	case StateUnresolvable:
		return "unresolvable"
	}
	return "unknown"
}

// Match is one row of the match table. Detail is nil until resolved and
// GameStart is zero until a real document has been stored.
type Match struct {
	MatchID   string
	Detail    json.RawMessage
	GameStart time.Time
	Announced bool
}

// IsUnresolvable reports whether the detail is the error sentinel
func (m *Match) IsUnresolvable() bool {
	if m.Detail == nil {
		return false
	}
	if bytes.Equal(m.Detail, UnresolvableDetail) {
		return true
	}
	var probe struct {
		Error *string `json:"error"`
	}
	return json.Unmarshal(m.Detail, &probe) == nil && probe.Error != nil
}

// State derives the lifecycle position from the stored columns
func (m *Match) State() MatchState {
	switch {
	case m.Detail == nil:
		return StateDiscovered
	case m.IsUnresolvable():
		return StateUnresolvable
	case m.Announced:
		return StateAnnounced
	default:
		return StateResolved
	}
}

// RankSnapshot is a point-in-time ranked standing for one player in one queue
type RankSnapshot struct {
	Timestamp    time.Time
	PlayerID     string
	Queue        string
	Tier         string
	Rank         string
	LeaguePoints int
	Wins         int
	Losses       int
}

// Ranked reports whether the snapshot carries an actual tier
func (r *RankSnapshot) Ranked() bool {
	return r.Tier != "" && r.Tier != Unranked
}

// IdentityAssociation links a player to a chat user
type IdentityAssociation struct {
	PlayerID   string
	ChatUserID string
}
