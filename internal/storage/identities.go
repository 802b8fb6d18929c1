package storage

import (
	"context"
	"fmt"
)

// setIdentity associates a player with a chat user, replacing any previous association
func setIdentity(ctx context.Context, ex execer, r *Repository, playerID, chatUserID string) error {
	_, err := ex.ExecContext(ctx, r.q(
		`INSERT INTO identity_association (player_id, chat_user_id) VALUES (?, ?)
		 ON CONFLICT (player_id) DO UPDATE SET chat_user_id = excluded.chat_user_id`),
		playerID, chatUserID,
	)
	if err != nil {
		return fmt.Errorf("failed to set identity: %w", err)
	}
	return nil
}

// IdentitiesFor maps each associated player id among playerIDs to its chat user
func (r *Repository) IdentitiesFor(ctx context.Context, playerIDs []string) (map[string]string, error) {
	out := make(map[string]string)
	if len(playerIDs) == 0 {
		return out, nil
	}

	args := make([]any, len(playerIDs))
	for i, id := range playerIDs {
		args[i] = id
	}

	rows, err := r.db.QueryContext(ctx, r.q(
		`SELECT player_id, chat_user_id FROM identity_association
		 WHERE player_id IN (`+placeholders(len(playerIDs))+`)`), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query identities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var playerID, chatUserID string
		if err := rows.Scan(&playerID, &chatUserID); err != nil {
			return nil, fmt.Errorf("failed to scan identity: %w", err)
		}
		out[playerID] = chatUserID
	}

	return out, rows.Err()
}
