package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// neverSynced sorts new accounts ahead of everything in the backfill rotation
var neverSynced = time.Unix(0, 0).UTC()

const accountColumns = `player_id, display_name, tracked, last_synced`

func scanAccount(row interface{ Scan(...any) error }) (*Account, error) {
	a := &Account{}
	if err := row.Scan(&a.PlayerID, &a.DisplayName, &a.Tracked, &a.LastSynced); err != nil {
		return nil, err
	}
	a.LastSynced = a.LastSynced.UTC()
	return a, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// upsertAccount records a provider lookup. New rows start unsynced; existing
// rows keep their sync position and take the new name and tracked flag.
func upsertAccount(ctx context.Context, ex execer, r *Repository, playerID, displayName string, tracked bool) error {
	_, err := ex.ExecContext(ctx, r.q(
		`INSERT INTO account (player_id, display_name, tracked, last_synced) VALUES (?, ?, ?, ?)
		 ON CONFLICT (player_id) DO UPDATE SET
			display_name = excluded.display_name,
			tracked = excluded.tracked`),
		playerID, displayName, tracked, neverSynced,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert account: %w", err)
	}
	return nil
}

// GetAccount finds an account by player id
func (r *Repository) GetAccount(ctx context.Context, playerID string) (*Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx, r.q(
		`SELECT `+accountColumns+` FROM account WHERE player_id = ?`), playerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return a, nil
}

// ListTrackedAccounts returns every tracked account ordered by display name
func (r *Repository) ListTrackedAccounts(ctx context.Context) ([]*Account, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM account WHERE tracked = TRUE ORDER BY display_name, player_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}

	return accounts, rows.Err()
}

// NextBackfillAccount returns the tracked account synced longest ago
func (r *Repository) NextBackfillAccount(ctx context.Context) (*Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM account
		 WHERE tracked = TRUE
		 ORDER BY last_synced ASC, player_id ASC
		 LIMIT 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select backfill account: %w", err)
	}
	return a, nil
}

// TouchSynced moves an account to the back of the backfill rotation
func (r *Repository) TouchSynced(ctx context.Context, playerID string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, r.q(`UPDATE account SET last_synced = ? WHERE player_id = ?`),
		utc(at), playerID)
	if err != nil {
		return fmt.Errorf("failed to update last_synced: %w", err)
	}
	return nil
}

// RegisterAccount marks an account tracked and, when chatUserID is set,
// associates it with a chat user, as one unit
func (r *Repository) RegisterAccount(ctx context.Context, playerID, displayName, chatUserID string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if err := upsertAccount(ctx, tx, r, playerID, displayName, true); err != nil {
			return err
		}
		if chatUserID == "" {
			return nil
		}
		return setIdentity(ctx, tx, r, playerID, chatUserID)
	})
}

// DeregisterAccount records the lookup with tracking off and drops the chat
// association. Match data is left untouched.
func (r *Repository) DeregisterAccount(ctx context.Context, playerID, displayName string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, r.q(`DELETE FROM identity_association WHERE player_id = ?`), playerID); err != nil {
			return fmt.Errorf("failed to delete association: %w", err)
		}
		return upsertAccount(ctx, tx, r, playerID, displayName, false)
	})
}
