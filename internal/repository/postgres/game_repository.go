package postgres

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/openplay/roster-service/internal/errors"
	"github.com/openplay/roster-service/internal/models"
)

// GetGame reads scheduling metadata for a game. The games table is owned by
// the scheduling domain; the roster service never writes it.
func (s *Store) GetGame(ctx context.Context, gameID string) (*models.Game, error) {
	var g models.Game
	err := s.db.QueryRow(ctx,
		`SELECT id, capacity, start_time, status FROM games WHERE id = $1`,
		gameID,
	).Scan(&g.ID, &g.Capacity, &g.StartTime, &g.Status)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.ErrGameNotFound
		}
		s.l.Errorf(ctx, "postgres.Store.GetGame: %v", err)
		return nil, fmt.Errorf("get game: %w", err)
	}
	return &g, nil
}
