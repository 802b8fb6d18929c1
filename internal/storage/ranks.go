package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// InsertRankSnapshots appends snapshots; a snapshot already recorded for the
// same (timestamp, player, queue) is kept as is
func (r *Repository) InsertRankSnapshots(ctx context.Context, snapshots []RankSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	return r.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, r.q(
			`INSERT INTO rank_snapshot (ts, player_id, queue, tier, rank, lp, wins, losses)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (ts, player_id, queue) DO NOTHING`))
		if err != nil {
			return fmt.Errorf("failed to prepare snapshot insert: %w", err)
		}
		defer stmt.Close()

		for _, s := range snapshots {
			if _, err := stmt.ExecContext(ctx,
				utc(s.Timestamp), s.PlayerID, s.Queue, s.Tier, s.Rank, s.LeaguePoints, s.Wins, s.Losses,
			); err != nil {
				return fmt.Errorf("failed to insert snapshot: %w", err)
			}
		}
		return nil
	})
}

// LatestRankSnapshot returns the newest snapshot for a player and queue
func (r *Repository) LatestRankSnapshot(ctx context.Context, playerID, queue string) (*RankSnapshot, error) {
	s := &RankSnapshot{}
	err := r.db.QueryRowContext(ctx, r.q(
		`SELECT ts, player_id, queue, tier, rank, lp, wins, losses FROM rank_snapshot
		 WHERE player_id = ? AND queue = ?
		 ORDER BY ts DESC
		 LIMIT 1`), playerID, queue,
	).Scan(&s.Timestamp, &s.PlayerID, &s.Queue, &s.Tier, &s.Rank, &s.LeaguePoints, &s.Wins, &s.Losses)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rank snapshot: %w", err)
	}
	s.Timestamp = s.Timestamp.UTC()
	return s, nil
}
