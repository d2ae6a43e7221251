package service

import "errors"

var (
	// ErrConfirmedSlotNotReleased is returned when a confirmed member
	// tries to leave without acknowledging that the freed slot will be
	// promoted away irreversibly.
	ErrConfirmedSlotNotReleased = errors.New("leaving releases a confirmed slot, acknowledgement required")
)
