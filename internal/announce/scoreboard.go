package announce

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/flor3z/matchlog/internal/riot"
)

// ScoreboardName is the attachment name the announcement image is sent under
const ScoreboardName = "scoreboard.png"

const (
	boardWidth   = 560
	boardPadding = 12
	lineHeight   = 18
)

var (
	boardBackground = color.RGBA{0x1e, 0x23, 0x28, 0xff}
	boardText       = color.RGBA{0xe6, 0xe6, 0xe6, 0xff}
	boardBlue       = color.RGBA{0x4a, 0x90, 0xe2, 0xff}
	boardRed        = color.RGBA{0xe2, 0x4a, 0x4a, 0xff}
)

// RenderScoreboard draws every participant's name, champion and K/D/A, one
// block per team, as a PNG
func RenderScoreboard(match *riot.Match) ([]byte, error) {
	if len(match.Info.Participants) == 0 {
		return nil, fmt.Errorf("match %s has no participants", match.Metadata.MatchID)
	}

	teams := map[int][]*riot.Participant{}
	var order []int
	for i := range match.Info.Participants {
		p := &match.Info.Participants[i]
		if _, ok := teams[p.TeamID]; !ok {
			order = append(order, p.TeamID)
		}
		teams[p.TeamID] = append(teams[p.TeamID], p)
	}

	lines := 1 + len(order) + len(match.Info.Participants)
	height := 2*boardPadding + lines*lineHeight + (len(order)-1)*lineHeight/2
	img := image.NewRGBA(image.Rect(0, 0, boardWidth, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: boardBackground}, image.Point{}, draw.Src)

	d := &font.Drawer{Dst: img, Src: image.NewUniform(boardText), Face: basicfont.Face7x13}
	y := boardPadding + lineHeight
	text := func(x int, c color.Color, s string) {
		d.Src = image.NewUniform(c)
		d.Dot = fixed.P(x, y)
		d.DrawString(s)
	}

	queue := riot.LookupQueue(match.Info.QueueID)
	text(boardPadding, boardText, fmt.Sprintf("%s - %s - %s",
		match.Metadata.MatchID, queue.Description, formatDuration(match.Duration())))
	y += lineHeight

	for n, teamID := range order {
		if n > 0 {
			y += lineHeight / 2
		}
		members := teams[teamID]
		header := teamHeader(members[0])
		headerColor := boardBlue
		if teamID == teamRed {
			headerColor = boardRed
		}
		text(boardPadding, headerColor, header)
		y += lineHeight

		for _, p := range members {
			text(boardPadding, boardText, truncate(p.DisplayName(), 22))
			text(boardPadding+190, boardText, truncate(p.ChampionName, 16))
			text(boardPadding+330, boardText, fmt.Sprintf("%d/%d/%d", p.Kills, p.Deaths, p.Assists))
			text(boardPadding+430, boardText, fmt.Sprintf("%d CS", p.TotalMinionsKilled+p.NeutralMinionsKilled))
			y += lineHeight
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode scoreboard: %w", err)
	}
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "~"
}
