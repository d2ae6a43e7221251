package service

import (
	"time"

	"github.com/openplay/roster-service/internal/models"
)

type JoinGameInput struct {
	GameID    string `json:"game_id" validate:"required"`
	ProfileID string `json:"profile_id" validate:"required"`
}

type JoinGameOutput struct {
	GameID        string             `json:"game_id"`
	ProfileID     string             `json:"profile_id"`
	Status        models.EntryStatus `json:"status"`
	QueuePosition int64              `json:"queue_position,omitempty"`
	JoinedAt      time.Time          `json:"joined_at"`
}

type LeaveGameInput struct {
	GameID    string `json:"game_id" validate:"required"`
	ProfileID string `json:"profile_id" validate:"required"`

	// ReleaseConfirmedSlot acknowledges that leaving as a confirmed member
	// is irreversible once the waitlist head is promoted.
	ReleaseConfirmedSlot bool `json:"release_confirmed_slot"`
}

type LeaveGameOutput struct {
	GameID         string             `json:"game_id"`
	ProfileID      string             `json:"profile_id"`
	PreviousStatus models.EntryStatus `json:"previous_status"`
}

type ConfirmAttendanceOutput struct {
	GameID      string    `json:"game_id"`
	ProfileID   string    `json:"profile_id"`
	ConfirmedAt time.Time `json:"confirmed_at"`
}
