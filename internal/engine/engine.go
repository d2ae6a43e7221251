package engine

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/openplay/roster-service/internal/errors"
	"github.com/openplay/roster-service/internal/models"
	"github.com/openplay/roster-service/pkg/logger"
)

// Notifier receives one change notification per committed mutation. A
// notifier failure never rolls the mutation back; it only degrades observer
// freshness.
type Notifier interface {
	RosterChanged(ctx context.Context, ev models.RosterChangeEvent) error
	ProfileChanged(ctx context.Context, ev models.ProfileChangeEvent) error
}

type AdmissionEngine interface {
	Join(ctx context.Context, gameID, profileID string) (*models.RosterEntry, error)
	Leave(ctx context.Context, gameID, profileID string) (*LeaveResult, error)
	ConfirmAttendance(ctx context.Context, gameID, profileID string) (*models.RosterEntry, error)
	Roster(ctx context.Context, gameID string) (*models.RosterView, error)
}

// LeaveResult reports what a leave did. Promoted is the waitlist head that
// backfilled the vacated confirmed slot, if any.
type LeaveResult struct {
	PreviousStatus models.EntryStatus
	Entry          *models.RosterEntry
	Promoted       *models.RosterEntry
}

// maxConflictRetries bounds the optimistic retry loop on store commit
// conflicts before the contention is surfaced to the caller.
const maxConflictRetries = 3

type admissionEngine struct {
	store RosterStore
	notif Notifier
	locks *gameLocks
	l     logger.Logger
	now   func() time.Time
}

func NewAdmissionEngine(store RosterStore, notif Notifier, l logger.Logger) AdmissionEngine {
	return &admissionEngine{
		store: store,
		notif: notif,
		locks: newGameLocks(),
		l:     l,
		now:   time.Now,
	}
}

func (e *admissionEngine) Join(ctx context.Context, gameID, profileID string) (*models.RosterEntry, error) {
	g, err := e.store.GetGame(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if !g.Joinable(e.now()) {
		return nil, errors.ErrGameNotJoinable
	}

	release, err := e.locks.acquire(ctx, gameID)
	if err != nil {
		return nil, err
	}
	defer release()

	var (
		entry     *models.RosterEntry
		occupancy int
		applied   bool
	)
	err = e.withConflictRetry(ctx, func() error {
		entry, occupancy, applied = nil, 0, false
		return e.store.Update(ctx, gameID, func(tx RosterTx) error {
			if existing, err := tx.LiveEntry(profileID); err == nil {
				// Repeated join without an intervening leave is a no-op.
				entry = existing
				return nil
			} else if !stderrors.Is(err, errors.ErrEntryNotFound) {
				return err
			}

			count, err := tx.ConfirmedCount()
			if err != nil {
				return err
			}

			now := e.now()
			entry = &models.RosterEntry{
				ID:        uuid.New().String(),
				GameID:    gameID,
				ProfileID: profileID,
				JoinedAt:  now,
				UpdatedAt: now,
			}
			if count < g.Capacity {
				entry.Status = models.EntryStatusConfirmed
				occupancy = count + 1
			} else {
				pos, err := tx.NextQueuePosition()
				if err != nil {
					return err
				}
				entry.Status = models.EntryStatusWaitlisted
				entry.QueuePosition = pos
				occupancy = count
			}
			if err := tx.InsertEntry(entry); err != nil {
				return err
			}
			applied = true
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to join game: %w", err)
	}

	if applied {
		e.publishRoster(ctx, models.RosterChangeEvent{
			GameID:             gameID,
			ChangeType:         models.ChangeTypeJoined,
			AffectedProfileIDs: []string{profileID},
			Occupancy:          occupancy,
		})
		e.publishProfile(ctx, models.ProfileChangeEvent{
			ProfileID: profileID,
			GameID:    gameID,
			Status:    entry.Status,
		})

		e.l.Infof(ctx, "Profile joined game - game_id: %s, profile_id: %s, status: %s",
			gameID, profileID, entry.Status)
	}

	return entry, nil
}

func (e *admissionEngine) Leave(ctx context.Context, gameID, profileID string) (*LeaveResult, error) {
	if _, err := e.store.GetGame(ctx, gameID); err != nil {
		return nil, err
	}

	release, err := e.locks.acquire(ctx, gameID)
	if err != nil {
		return nil, err
	}
	defer release()

	var (
		res       LeaveResult
		occupancy int
		applied   bool
	)
	err = e.withConflictRetry(ctx, func() error {
		res, occupancy, applied = LeaveResult{}, 0, false
		return e.store.Update(ctx, gameID, func(tx RosterTx) error {
			entry, err := tx.LiveEntry(profileID)
			if stderrors.Is(err, errors.ErrEntryNotFound) {
				// Repeated leave, or a profile that never joined. No-op.
				res.PreviousStatus = models.EntryStatusDropped
				return nil
			}
			if err != nil {
				return err
			}

			now := e.now()
			res.PreviousStatus = entry.Status
			entry.Status = models.EntryStatusDropped
			entry.DroppedAt = &now
			entry.UpdatedAt = now
			if err := tx.UpdateEntry(entry); err != nil {
				return err
			}
			res.Entry = entry

			// A vacated confirmed slot is backfilled in the same
			// transaction: no caller may observe the slot empty while a
			// waitlisted entry exists.
			if res.PreviousStatus == models.EntryStatusConfirmed {
				head, err := tx.WaitlistHead()
				if err != nil && !stderrors.Is(err, errors.ErrEntryNotFound) {
					return err
				}
				if head != nil {
					head.Status = models.EntryStatusConfirmed
					head.QueuePosition = 0
					head.UpdatedAt = now
					if err := tx.UpdateEntry(head); err != nil {
						return err
					}
					res.Promoted = head
				}
			}

			occupancy, err = tx.ConfirmedCount()
			if err != nil {
				return err
			}
			applied = true
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to leave game: %w", err)
	}

	if applied {
		e.publishRoster(ctx, models.RosterChangeEvent{
			GameID:             gameID,
			ChangeType:         models.ChangeTypeLeft,
			AffectedProfileIDs: []string{profileID},
			Occupancy:          occupancy,
		})
		e.publishProfile(ctx, models.ProfileChangeEvent{
			ProfileID: profileID,
			GameID:    gameID,
			Status:    models.EntryStatusDropped,
		})

		if res.Promoted != nil {
			e.publishRoster(ctx, models.RosterChangeEvent{
				GameID:             gameID,
				ChangeType:         models.ChangeTypePromoted,
				AffectedProfileIDs: []string{res.Promoted.ProfileID},
				Occupancy:          occupancy,
			})
			e.publishProfile(ctx, models.ProfileChangeEvent{
				ProfileID: res.Promoted.ProfileID,
				GameID:    gameID,
				Status:    models.EntryStatusConfirmed,
			})
		}

		e.l.Infof(ctx, "Profile left game - game_id: %s, profile_id: %s, previous_status: %s, promoted: %v",
			gameID, profileID, res.PreviousStatus, res.Promoted != nil)
	}

	return &res, nil
}

func (e *admissionEngine) ConfirmAttendance(ctx context.Context, gameID, profileID string) (*models.RosterEntry, error) {
	if _, err := e.store.GetGame(ctx, gameID); err != nil {
		return nil, err
	}

	release, err := e.locks.acquire(ctx, gameID)
	if err != nil {
		return nil, err
	}
	defer release()

	var (
		entry     *models.RosterEntry
		occupancy int
		applied   bool
	)
	err = e.withConflictRetry(ctx, func() error {
		entry, occupancy, applied = nil, 0, false
		return e.store.Update(ctx, gameID, func(tx RosterTx) error {
			existing, err := tx.LiveEntry(profileID)
			if stderrors.Is(err, errors.ErrEntryNotFound) {
				return errors.ErrNotConfirmedMember
			}
			if err != nil {
				return err
			}
			if existing.Status != models.EntryStatusConfirmed {
				return errors.ErrNotConfirmedMember
			}

			entry = existing
			if existing.ConfirmedAt != nil {
				// Already confirmed, nothing to write.
				return nil
			}

			now := e.now()
			existing.ConfirmedAt = &now
			existing.UpdatedAt = now
			if err := tx.UpdateEntry(existing); err != nil {
				return err
			}
			occupancy, err = tx.ConfirmedCount()
			if err != nil {
				return err
			}
			applied = true
			return nil
		})
	})
	if err != nil {
		if stderrors.Is(err, errors.ErrNotConfirmedMember) {
			return nil, errors.ErrNotConfirmedMember
		}
		return nil, fmt.Errorf("failed to confirm attendance: %w", err)
	}

	if applied {
		e.publishRoster(ctx, models.RosterChangeEvent{
			GameID:             gameID,
			ChangeType:         models.ChangeTypeConfirmed,
			AffectedProfileIDs: []string{profileID},
			Occupancy:          occupancy,
		})

		e.l.Infof(ctx, "Attendance confirmed - game_id: %s, profile_id: %s", gameID, profileID)
	}

	return entry, nil
}

func (e *admissionEngine) Roster(ctx context.Context, gameID string) (*models.RosterView, error) {
	return e.store.View(ctx, gameID)
}

func (e *admissionEngine) withConflictRetry(ctx context.Context, op func() error) error {
	var lastErr error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if err := op(); err != nil {
			if stderrors.Is(err, errors.ErrConflict) {
				lastErr = err
				e.l.Warnf(ctx, "Roster update conflicted, retrying - attempt: %d", attempt+1)
				continue
			}
			return err
		}
		return nil
	}
	return lastErr
}

func (e *admissionEngine) publishRoster(ctx context.Context, ev models.RosterChangeEvent) {
	ev.Timestamp = e.now()
	if err := e.notif.RosterChanged(ctx, ev); err != nil {
		e.l.Errorf(ctx, "Failed to publish roster change - game_id: %s, change: %s, error: %v",
			ev.GameID, ev.ChangeType, err)
	}
}

func (e *admissionEngine) publishProfile(ctx context.Context, ev models.ProfileChangeEvent) {
	ev.Timestamp = e.now()
	if err := e.notif.ProfileChanged(ctx, ev); err != nil {
		e.l.Errorf(ctx, "Failed to publish profile change - profile_id: %s, error: %v",
			ev.ProfileID, err)
	}
}
