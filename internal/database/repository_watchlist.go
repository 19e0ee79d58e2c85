package database

import (
	"context"
	"fmt"
)

// ListWatchlist returns the user's watchlist in insertion order
func (r *Repository) ListWatchlist(ctx context.Context, userID string) ([]*WatchlistItem, error) {
	query := `
		SELECT id, user_id, symbol, COALESCE(note, ''), created_at
		FROM watchlist_items
		WHERE user_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query watchlist: %w", err)
	}
	defer rows.Close()

	var items []*WatchlistItem
	for rows.Next() {
		item := &WatchlistItem{}
		if err := rows.Scan(&item.ID, &item.UserID, &item.Symbol, &item.Note, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan watchlist item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read watchlist rows: %w", err)
	}

	return items, nil
}

// AddWatchlistItem adds a symbol to the user's watchlist. Re-adding an
// existing symbol updates its note.
func (r *Repository) AddWatchlistItem(ctx context.Context, item *WatchlistItem) error {
	query := `
		INSERT INTO watchlist_items (user_id, symbol, note)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, symbol) DO UPDATE SET note = EXCLUDED.note
		RETURNING id, created_at
	`

	err := r.db.Pool.QueryRow(ctx, query,
		item.UserID,
		item.Symbol,
		item.Note,
	).Scan(&item.ID, &item.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to add watchlist item: %w", err)
	}

	return nil
}

// RemoveWatchlistItem deletes one symbol from the user's watchlist and
// reports whether a row was removed
func (r *Repository) RemoveWatchlistItem(ctx context.Context, userID, symbol string) (bool, error) {
	query := `DELETE FROM watchlist_items WHERE user_id = $1 AND symbol = $2`
	tag, err := r.db.Pool.Exec(ctx, query, userID, symbol)
	if err != nil {
		return false, fmt.Errorf("failed to remove watchlist item: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// AllWatchedSymbols returns the distinct symbols across every watchlist,
// which is the scanner's working set
func (r *Repository) AllWatchedSymbols(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT symbol FROM watchlist_items ORDER BY symbol`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query watched symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, symbol)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read symbol rows: %w", err)
	}

	return symbols, nil
}

// WatchersOf returns the IDs of users watching a symbol, used to scope
// websocket notifications
func (r *Repository) WatchersOf(ctx context.Context, symbol string) ([]string, error) {
	query := `SELECT user_id FROM watchlist_items WHERE symbol = $1`

	rows, err := r.db.Pool.Query(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to query watchers: %w", err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan watcher: %w", err)
		}
		userIDs = append(userIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read watcher rows: %w", err)
	}

	return userIDs, nil
}
