package announce

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/flor3z/matchlog/internal/riot"
	"github.com/flor3z/matchlog/internal/storage"
)

const (
	colorWin  = 0x00FF00
	colorLoss = 0xFF0000

	teamBlue = 100
	teamRed  = 200

	startLayout = "January 02, 2006 at 03:04:05 PM MST"
)

// Summary is everything needed to render one announcement
type Summary struct {
	Match *riot.Match
	// Mentions maps player id to chat user id
	Mentions map[string]string
	// Ranks maps player id to the standing shown next to the name; players
	// missing here are rendered without a rank
	Ranks    map[string]*storage.RankSnapshot
	Location *time.Location
}

// Featured returns the participants an announcement is about: those with a
// chat association, or everybody when nobody in the match has one. The result
// is grouped blue side first and otherwise keeps the document's order.
func Featured(match *riot.Match, mentions map[string]string) []*riot.Participant {
	var out []*riot.Participant
	for i := range match.Info.Participants {
		p := &match.Info.Participants[i]
		if _, ok := mentions[p.PUUID]; ok {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		for i := range match.Info.Participants {
			out = append(out, &match.Info.Participants[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TeamID < out[j].TeamID })
	return out
}

// Render builds the announcement message
func Render(s Summary) *Message {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	match := s.Match
	queue := riot.LookupQueue(match.Info.QueueID)

	msg := &Message{
		Title: "MATCH UPDATE!",
		Body: fmt.Sprintf("Start: %s\nDuration: %s",
			match.StartTime().In(loc).Format(startLayout),
			formatDuration(match.Duration())),
		Color:  colorWin,
		Footer: fmt.Sprintf("Match ID: %s", match.Metadata.MatchID),
		Fields: []Field{{Name: queue.Map, Value: queue.Description, Inline: true}},
	}

	prevTeam := -1
	for _, p := range Featured(match, s.Mentions) {
		if !p.Win {
			msg.Color = colorLoss
		}
		if p.TeamID != prevTeam {
			msg.Fields = append(msg.Fields, Field{Name: teamHeader(p), Value: "------------------"})
			prevTeam = p.TeamID
		}
		msg.Fields = append(msg.Fields, Field{Value: participantLine(p, s.Mentions[p.PUUID], s.Ranks[p.PUUID])})
	}

	return msg
}

func teamHeader(p *riot.Participant) string {
	var side string
	switch p.TeamID {
	case teamBlue:
		side = "Blue"
	case teamRed:
		side = "Red"
	default:
		side = fmt.Sprintf("Team %d", p.TeamID)
	}
	if p.Win {
		return side + " (WINNER)"
	}
	return side + " (LOSER)"
}

func participantLine(p *riot.Participant, chatUserID string, rank *storage.RankSnapshot) string {
	var sb strings.Builder
	sb.WriteString(p.DisplayName())
	if chatUserID != "" {
		fmt.Fprintf(&sb, " (<@%s>)", chatUserID)
	}
	if rank != nil {
		sb.WriteString(" - ")
		sb.WriteString(formatRank(rank))
	}
	fmt.Fprintf(&sb, "\n%s - %d/%d/%d", p.ChampionName, p.Kills, p.Deaths, p.Assists)
	return sb.String()
}

// formatRank renders "Gold 2" style standings
func formatRank(s *storage.RankSnapshot) string {
	if !s.Ranked() {
		return "Unranked"
	}
	tier := strings.ToUpper(s.Tier[:1]) + strings.ToLower(s.Tier[1:])
	if n := romanToInt(s.Rank); n > 0 {
		return fmt.Sprintf("%s %d", tier, n)
	}
	return tier
}

func romanToInt(s string) int {
	values := map[byte]int{'I': 1, 'V': 5, 'X': 10, 'L': 50, 'C': 100, 'D': 500, 'M': 1000}
	total := 0
	for i := 0; i < len(s); i++ {
		v, ok := values[s[i]]
		if !ok {
			return 0
		}
		if i+1 < len(s) && v < values[s[i+1]] {
			total -= v
		} else {
			total += v
		}
	}
	return total
}

// formatDuration renders h:mm:ss
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}
