package errors

import "errors"

var (
	ErrGameNotFound       = errors.New("game not found")
	ErrGameNotJoinable    = errors.New("game is not joinable")
	ErrNotConfirmedMember = errors.New("profile is not a confirmed member of this game")

	// ErrConflict is returned after the engine exhausted its optimistic
	// retry budget on a contended game. The caller may simply try again.
	ErrConflict = errors.New("roster update conflicted, try again")

	ErrEntryNotFound = errors.New("roster entry not found")
)
