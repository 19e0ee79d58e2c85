package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// CreatePortfolio stores a shared portfolio and its positions atomically
func (r *Repository) CreatePortfolio(ctx context.Context, p *Portfolio) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO portfolios (id, owner_id, name, description)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at
	`

	err = tx.QueryRow(ctx, query,
		p.ID,
		p.OwnerID,
		p.Name,
		p.Description,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create portfolio: %w", err)
	}

	posQuery := `
		INSERT INTO portfolio_positions (portfolio_id, symbol, weight_pct, note)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	for i := range p.Positions {
		pos := &p.Positions[i]
		pos.PortfolioID = p.ID
		err = tx.QueryRow(ctx, posQuery,
			pos.PortfolioID,
			pos.Symbol,
			pos.WeightPct,
			pos.Note,
		).Scan(&pos.ID, &pos.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to create portfolio position: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit portfolio: %w", err)
	}

	return nil
}

// GetPortfolio retrieves one portfolio with its positions
func (r *Repository) GetPortfolio(ctx context.Context, portfolioID string) (*Portfolio, error) {
	query := `
		SELECT id, owner_id, name, COALESCE(description, ''), created_at, updated_at
		FROM portfolios WHERE id = $1
	`

	p := &Portfolio{}
	err := r.db.Pool.QueryRow(ctx, query, portfolioID).Scan(
		&p.ID, &p.OwnerID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio: %w", err)
	}

	if p.Positions, err = r.loadPositions(ctx, p.ID); err != nil {
		return nil, err
	}

	return p, nil
}

// ListPortfolios returns all shared portfolios, newest first
func (r *Repository) ListPortfolios(ctx context.Context) ([]*Portfolio, error) {
	query := `
		SELECT id, owner_id, name, COALESCE(description, ''), created_at, updated_at
		FROM portfolios
		ORDER BY created_at DESC
	`

	rows, err := r.db.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolios: %w", err)
	}
	defer rows.Close()

	var portfolios []*Portfolio
	for rows.Next() {
		p := &Portfolio{}
		if err := rows.Scan(&p.ID, &p.OwnerID, &p.Name, &p.Description, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio: %w", err)
		}
		portfolios = append(portfolios, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read portfolio rows: %w", err)
	}

	for _, p := range portfolios {
		if p.Positions, err = r.loadPositions(ctx, p.ID); err != nil {
			return nil, err
		}
	}

	return portfolios, nil
}

// DeletePortfolio removes a portfolio and, via cascade, its positions.
// Reports whether a row was deleted.
func (r *Repository) DeletePortfolio(ctx context.Context, portfolioID string) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM portfolios WHERE id = $1`, portfolioID)
	if err != nil {
		return false, fmt.Errorf("failed to delete portfolio: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *Repository) loadPositions(ctx context.Context, portfolioID string) ([]PortfolioPosition, error) {
	query := `
		SELECT id, portfolio_id, symbol, weight_pct, COALESCE(note, ''), created_at
		FROM portfolio_positions
		WHERE portfolio_id = $1
		ORDER BY id
	`

	rows, err := r.db.Pool.Query(ctx, query, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	positions := []PortfolioPosition{}
	for rows.Next() {
		var pos PortfolioPosition
		if err := rows.Scan(&pos.ID, &pos.PortfolioID, &pos.Symbol, &pos.WeightPct, &pos.Note, &pos.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read position rows: %w", err)
	}

	return positions, nil
}
