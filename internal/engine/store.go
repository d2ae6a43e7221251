package engine

import (
	"context"

	"github.com/openplay/roster-service/internal/models"
)

// RosterStore is the durable state collaborator for one game's roster and
// waitlist. Roster rows are mutated only through Update, and only by the
// admission engine.
type RosterStore interface {
	// GetGame returns the game's scheduling metadata. The engine never
	// writes games. Returns errors.ErrGameNotFound for unknown ids.
	GetGame(ctx context.Context, gameID string) (*models.Game, error)

	// View returns the authoritative read model for a game.
	View(ctx context.Context, gameID string) (*models.RosterView, error)

	// Update runs fn against a consistent snapshot of the game's roster.
	// All writes made through the RosterTx become visible atomically when
	// Update returns nil; none of them are visible if fn or the commit
	// fails. Implementations report commit-time contention with
	// errors.ErrConflict so the engine can retry.
	Update(ctx context.Context, gameID string, fn func(tx RosterTx) error) error
}

// RosterTx is the transactional view handed to an Update callback.
type RosterTx interface {
	// LiveEntry returns the profile's confirmed or waitlisted entry, or
	// errors.ErrEntryNotFound.
	LiveEntry(profileID string) (*models.RosterEntry, error)

	// ConfirmedCount returns the number of confirmed entries.
	ConfirmedCount() (int, error)

	// WaitlistHead returns the waitlisted entry with the smallest queue
	// position, or errors.ErrEntryNotFound if the waitlist is empty.
	WaitlistHead() (*models.RosterEntry, error)

	// NextQueuePosition advances the game's monotonic position counter.
	// Spent positions are never reused, even after the waitlist empties.
	NextQueuePosition() (int64, error)

	InsertEntry(e *models.RosterEntry) error
	UpdateEntry(e *models.RosterEntry) error
}
