// Package postgres implements the engine's RosterStore on pgx. Every
// Update runs in one transaction that locks the game row FOR UPDATE, so
// capacity and promotion decisions are computed against a consistent
// snapshot even when several service replicas share the database.
package postgres

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/openplay/roster-service/internal/engine"
	"github.com/openplay/roster-service/internal/errors"
	"github.com/openplay/roster-service/internal/models"
	"github.com/openplay/roster-service/pkg/logger"
)

type Store struct {
	db *pgxpool.Pool
	l  logger.Logger
}

func NewStore(db *pgxpool.Pool, l logger.Logger) *Store {
	return &Store{db: db, l: l}
}

func (s *Store) View(ctx context.Context, gameID string) (*models.RosterView, error) {
	g, err := s.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(ctx,
		`SELECT id, game_id, profile_id, status, COALESCE(queue_position, 0),
		        joined_at, confirmed_at, dropped_at, updated_at
		 FROM roster_entries
		 WHERE game_id = $1 AND status IN ('confirmed', 'waitlisted')
		 ORDER BY queue_position NULLS FIRST, joined_at`,
		gameID,
	)
	if err != nil {
		return nil, fmt.Errorf("query roster: %w", err)
	}
	defer rows.Close()

	view := &models.RosterView{GameID: gameID, Capacity: g.Capacity}
	for rows.Next() {
		var e models.RosterEntry
		if err := rows.Scan(&e.ID, &e.GameID, &e.ProfileID, &e.Status, &e.QueuePosition,
			&e.JoinedAt, &e.ConfirmedAt, &e.DroppedAt, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan roster entry: %w", err)
		}
		if e.Status == models.EntryStatusConfirmed {
			view.Confirmed = append(view.Confirmed, e)
		} else {
			view.Waitlist = append(view.Waitlist, e)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	view.Occupancy = len(view.Confirmed)
	return view, nil
}

func (s *Store) Update(ctx context.Context, gameID string, fn func(tx engine.RosterTx) error) (err error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	// Serialize concurrent mutations of this game across replicas.
	var locked string
	err = tx.QueryRow(ctx, `SELECT id FROM games WHERE id = $1 FOR UPDATE`, gameID).Scan(&locked)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return errors.ErrGameNotFound
		}
		return fmt.Errorf("lock game row: %w", err)
	}

	if err = fn(&pgTx{ctx: ctx, tx: tx, gameID: gameID}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		if isSerializationFailure(err) {
			return errors.ErrConflict
		}
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// isSerializationFailure matches serialization_failure and deadlock_detected,
// both of which are safe to retry from scratch.
func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

type pgTx struct {
	ctx    context.Context
	tx     pgx.Tx
	gameID string
}

func (t *pgTx) LiveEntry(profileID string) (*models.RosterEntry, error) {
	var e models.RosterEntry
	err := t.tx.QueryRow(t.ctx,
		`SELECT id, game_id, profile_id, status, COALESCE(queue_position, 0),
		        joined_at, confirmed_at, dropped_at, updated_at
		 FROM roster_entries
		 WHERE game_id = $1 AND profile_id = $2 AND status IN ('confirmed', 'waitlisted')`,
		t.gameID, profileID,
	).Scan(&e.ID, &e.GameID, &e.ProfileID, &e.Status, &e.QueuePosition,
		&e.JoinedAt, &e.ConfirmedAt, &e.DroppedAt, &e.UpdatedAt)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.ErrEntryNotFound
		}
		return nil, fmt.Errorf("get live entry: %w", err)
	}
	return &e, nil
}

func (t *pgTx) ConfirmedCount() (int, error) {
	var n int
	err := t.tx.QueryRow(t.ctx,
		`SELECT COUNT(*) FROM roster_entries WHERE game_id = $1 AND status = 'confirmed'`,
		t.gameID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count confirmed: %w", err)
	}
	return n, nil
}

func (t *pgTx) WaitlistHead() (*models.RosterEntry, error) {
	var e models.RosterEntry
	err := t.tx.QueryRow(t.ctx,
		`SELECT id, game_id, profile_id, status, COALESCE(queue_position, 0),
		        joined_at, confirmed_at, dropped_at, updated_at
		 FROM roster_entries
		 WHERE game_id = $1 AND status = 'waitlisted'
		 ORDER BY queue_position
		 LIMIT 1`,
		t.gameID,
	).Scan(&e.ID, &e.GameID, &e.ProfileID, &e.Status, &e.QueuePosition,
		&e.JoinedAt, &e.ConfirmedAt, &e.DroppedAt, &e.UpdatedAt)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.ErrEntryNotFound
		}
		return nil, fmt.Errorf("get waitlist head: %w", err)
	}
	return &e, nil
}

func (t *pgTx) NextQueuePosition() (int64, error) {
	// The counter only ever advances, so spent positions are never reused.
	var pos int64
	err := t.tx.QueryRow(t.ctx,
		`INSERT INTO roster_counters (game_id, next_position)
		 VALUES ($1, 1)
		 ON CONFLICT (game_id)
		 DO UPDATE SET next_position = roster_counters.next_position + 1
		 RETURNING next_position`,
		t.gameID,
	).Scan(&pos)
	if err != nil {
		return 0, fmt.Errorf("advance position counter: %w", err)
	}
	return pos, nil
}

func (t *pgTx) InsertEntry(e *models.RosterEntry) error {
	_, err := t.tx.Exec(t.ctx,
		`INSERT INTO roster_entries
		   (id, game_id, profile_id, status, queue_position, joined_at, confirmed_at, dropped_at, updated_at)
		 VALUES ($1, $2, $3, $4, NULLIF($5, 0), $6, $7, $8, $9)`,
		e.ID, e.GameID, e.ProfileID, e.Status, e.QueuePosition,
		e.JoinedAt, e.ConfirmedAt, e.DroppedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert roster entry: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateEntry(e *models.RosterEntry) error {
	tag, err := t.tx.Exec(t.ctx,
		`UPDATE roster_entries
		 SET status = $2, queue_position = NULLIF($3, 0), confirmed_at = $4,
		     dropped_at = $5, updated_at = $6
		 WHERE id = $1`,
		e.ID, e.Status, e.QueuePosition, e.ConfirmedAt, e.DroppedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update roster entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return errors.ErrEntryNotFound
	}
	return nil
}
