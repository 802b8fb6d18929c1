package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

const matchColumns = `match_id, detail, game_start_ts, announced`

func scanMatch(row interface{ Scan(...any) error }) (*Match, error) {
	var (
		m      Match
		detail sql.NullString
		start  sql.NullTime
	)
	if err := row.Scan(&m.MatchID, &detail, &start, &m.Announced); err != nil {
		return nil, err
	}
	if detail.Valid {
		m.Detail = json.RawMessage(detail.String)
	}
	if start.Valid {
		m.GameStart = start.Time.UTC()
	}
	return &m, nil
}

// InsertMatchIDs stores bare match ids, skipping ids already present.
// It returns how many rows were new.
func (r *Repository) InsertMatchIDs(ctx context.Context, matchIDs []string) (int, error) {
	if len(matchIDs) == 0 {
		return 0, nil
	}

	inserted := 0
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, r.q(
			`INSERT INTO "match" (match_id) VALUES (?) ON CONFLICT (match_id) DO NOTHING`))
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, id := range matchIDs {
			res, err := stmt.ExecContext(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to insert match %s: %w", id, err)
			}
			n, _ := res.RowsAffected()
			inserted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}

// GetMatch finds a match by id
func (r *Repository) GetMatch(ctx context.Context, matchID string) (*Match, error) {
	m, err := scanMatch(r.db.QueryRowContext(ctx, r.q(
		`SELECT `+matchColumns+` FROM "match" WHERE match_id = ?`), matchID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return m, nil
}

// NextUnresolvedMatch picks the match with the highest id among those without detail,
// so recent games are resolved ahead of a long backfill queue
func (r *Repository) NextUnresolvedMatch(ctx context.Context) (*Match, error) {
	m, err := scanMatch(r.db.QueryRowContext(ctx,
		`SELECT `+matchColumns+` FROM "match"
		 WHERE detail IS NULL
		 ORDER BY match_id DESC
		 LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select unresolved match: %w", err)
	}
	return m, nil
}

// SaveMatchDetail stores a resolved document and indexes its participants.
// Rows already announced are left as they are; the return value reports
// whether the row changed.
func (r *Repository) SaveMatchDetail(ctx context.Context, matchID string, detail json.RawMessage, gameStart time.Time) (bool, error) {
	var doc struct {
		Metadata struct {
			Participants []string `json:"participants"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(detail, &doc); err != nil {
		return false, fmt.Errorf("failed to read match participants: %w", err)
	}

	changed := false
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, r.q(
			`INSERT INTO "match" (match_id, detail, game_start_ts, announced) VALUES (?, ?, ?, FALSE)
			 ON CONFLICT (match_id) DO UPDATE SET
				detail = excluded.detail,
				game_start_ts = excluded.game_start_ts
			 WHERE "match".announced = FALSE`),
			matchID, string(detail), utc(gameStart),
		)
		if err != nil {
			return fmt.Errorf("failed to save match detail: %w", err)
		}
		n, _ := res.RowsAffected()
		if n == 0 {
			return nil
		}
		changed = true

		for _, playerID := range doc.Metadata.Participants {
			if _, err := tx.ExecContext(ctx, r.q(
				`INSERT INTO match_participant (player_id, match_id, game_start_ts) VALUES (?, ?, ?)
				 ON CONFLICT (player_id, match_id) DO UPDATE SET game_start_ts = excluded.game_start_ts`),
				playerID, matchID, utc(gameStart),
			); err != nil {
				return fmt.Errorf("failed to index participant %s: %w", playerID, err)
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}

// MarkUnresolvable stores the error sentinel and retires the match from announcement.
// Only rows still without detail are touched.
func (r *Repository) MarkUnresolvable(ctx context.Context, matchID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.q(
		`INSERT INTO "match" (match_id, detail, announced) VALUES (?, ?, TRUE)
		 ON CONFLICT (match_id) DO UPDATE SET
			detail = excluded.detail,
			announced = TRUE
		 WHERE "match".detail IS NULL`),
		matchID, string(UnresolvableDetail),
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark match unresolvable: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListAnnounceable returns resolved, unannounced matches that started after since,
// in ascending id order
func (r *Repository) ListAnnounceable(ctx context.Context, since time.Time) ([]*Match, error) {
	rows, err := r.db.QueryContext(ctx, r.q(
		`SELECT `+matchColumns+` FROM "match"
		 WHERE detail IS NOT NULL
			AND announced = FALSE
			AND game_start_ts IS NOT NULL
			AND game_start_ts > ?
		 ORDER BY match_id ASC`), utc(since))
	if err != nil {
		return nil, fmt.Errorf("failed to list announceable matches: %w", err)
	}
	defer rows.Close()

	var matches []*Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		if m.IsUnresolvable() {
			continue
		}
		matches = append(matches, m)
	}

	return matches, rows.Err()
}

// MarkAnnounced flips announced for a resolved match. It returns false when
// the match was already announced or has no detail.
func (r *Repository) MarkAnnounced(ctx context.Context, matchID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, r.q(
		`UPDATE "match" SET announced = TRUE
		 WHERE match_id = ? AND announced = FALSE AND detail IS NOT NULL`), matchID)
	if err != nil {
		return false, fmt.Errorf("failed to mark match announced: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// OldestMatchStart returns the earliest stored game start among matches the player took part in
func (r *Repository) OldestMatchStart(ctx context.Context, playerID string) (time.Time, bool, error) {
	return r.boundaryMatchStart(ctx, playerID, "ASC")
}

// LatestMatchStart returns the most recent stored game start among matches the player took part in
func (r *Repository) LatestMatchStart(ctx context.Context, playerID string) (time.Time, bool, error) {
	return r.boundaryMatchStart(ctx, playerID, "DESC")
}

func (r *Repository) boundaryMatchStart(ctx context.Context, playerID, order string) (time.Time, bool, error) {
	var start time.Time
	err := r.db.QueryRowContext(ctx, r.q(
		`SELECT game_start_ts FROM match_participant
		 WHERE player_id = ?
		 ORDER BY game_start_ts `+order+`
		 LIMIT 1`), playerID).Scan(&start)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("failed to find match boundary: %w", err)
	}
	return start.UTC(), true, nil
}

// CountMatches returns the number of rows in each lifecycle state. A row with
// detail but no start time can only hold the unresolvable sentinel.
func (r *Repository) CountMatches(ctx context.Context) (map[MatchState]int, error) {
	var discovered, resolved, announced, unresolvable sql.NullInt64
	err := r.db.QueryRowContext(ctx,
		`SELECT
			SUM(CASE WHEN detail IS NULL THEN 1 ELSE 0 END),
			SUM(CASE WHEN detail IS NOT NULL AND game_start_ts IS NOT NULL AND announced = FALSE THEN 1 ELSE 0 END),
			SUM(CASE WHEN detail IS NOT NULL AND game_start_ts IS NOT NULL AND announced = TRUE THEN 1 ELSE 0 END),
			SUM(CASE WHEN detail IS NOT NULL AND game_start_ts IS NULL THEN 1 ELSE 0 END)
		 FROM "match"`,
	).Scan(&discovered, &resolved, &announced, &unresolvable)
	if err != nil {
		return nil, fmt.Errorf("failed to count matches: %w", err)
	}

	return map[MatchState]int{
		StateDiscovered:   int(discovered.Int64),
		StateResolved:     int(resolved.Int64),
		StateAnnounced:    int(announced.Int64),
		StateUnresolvable: int(unresolvable.Int64),
	}, nil
}
