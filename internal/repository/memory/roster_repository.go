// Package memory implements the engine's RosterStore contract on in-process
// maps. It backs unit tests and local single-node runs; deployments use the
// postgres implementation.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/openplay/roster-service/internal/engine"
	"github.com/openplay/roster-service/internal/errors"
	"github.com/openplay/roster-service/internal/models"
)

type Store struct {
	mu       sync.Mutex
	games    map[string]models.Game
	entries  map[string][]models.RosterEntry // by game id, insertion order
	counters map[string]int64
}

func NewStore() *Store {
	return &Store{
		games:    make(map[string]models.Game),
		entries:  make(map[string][]models.RosterEntry),
		counters: make(map[string]int64),
	}
}

// PutGame registers game metadata. The engine itself never writes games;
// this is the scheduling collaborator's side of the contract.
func (s *Store) PutGame(g models.Game) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[g.ID] = g
}

func (s *Store) GetGame(ctx context.Context, gameID string) (*models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[gameID]
	if !ok {
		return nil, errors.ErrGameNotFound
	}
	return &g, nil
}

func (s *Store) View(ctx context.Context, gameID string) (*models.RosterView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.games[gameID]
	if !ok {
		return nil, errors.ErrGameNotFound
	}

	view := &models.RosterView{GameID: gameID, Capacity: g.Capacity}
	for _, e := range s.entries[gameID] {
		switch e.Status {
		case models.EntryStatusConfirmed:
			view.Confirmed = append(view.Confirmed, e)
		case models.EntryStatusWaitlisted:
			view.Waitlist = append(view.Waitlist, e)
		}
	}
	sort.Slice(view.Waitlist, func(i, j int) bool {
		return view.Waitlist[i].QueuePosition < view.Waitlist[j].QueuePosition
	})
	view.Occupancy = len(view.Confirmed)
	return view, nil
}

func (s *Store) Update(ctx context.Context, gameID string, fn func(tx engine.RosterTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.games[gameID]; !ok {
		return errors.ErrGameNotFound
	}

	// Work on a copy so a failed callback leaves the roster untouched.
	tx := &memTx{
		entries: append([]models.RosterEntry(nil), s.entries[gameID]...),
		counter: s.counters[gameID],
	}
	if err := fn(tx); err != nil {
		return err
	}

	s.entries[gameID] = tx.entries
	s.counters[gameID] = tx.counter
	return nil
}

type memTx struct {
	entries []models.RosterEntry
	counter int64
}

func (t *memTx) LiveEntry(profileID string) (*models.RosterEntry, error) {
	for i := range t.entries {
		e := t.entries[i]
		if e.ProfileID == profileID && e.IsLive() {
			cp := e
			return &cp, nil
		}
	}
	return nil, errors.ErrEntryNotFound
}

func (t *memTx) ConfirmedCount() (int, error) {
	n := 0
	for i := range t.entries {
		if t.entries[i].Status == models.EntryStatusConfirmed {
			n++
		}
	}
	return n, nil
}

func (t *memTx) WaitlistHead() (*models.RosterEntry, error) {
	var head *models.RosterEntry
	for i := range t.entries {
		e := t.entries[i]
		if e.Status != models.EntryStatusWaitlisted {
			continue
		}
		if head == nil || e.QueuePosition < head.QueuePosition {
			cp := e
			head = &cp
		}
	}
	if head == nil {
		return nil, errors.ErrEntryNotFound
	}
	return head, nil
}

func (t *memTx) NextQueuePosition() (int64, error) {
	t.counter++
	return t.counter, nil
}

func (t *memTx) InsertEntry(e *models.RosterEntry) error {
	t.entries = append(t.entries, *e)
	return nil
}

func (t *memTx) UpdateEntry(e *models.RosterEntry) error {
	for i := range t.entries {
		if t.entries[i].ID == e.ID {
			t.entries[i] = *e
			return nil
		}
	}
	return errors.ErrEntryNotFound
}
