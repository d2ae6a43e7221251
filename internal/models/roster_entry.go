package models

import "time"

type EntryStatus string

const (
	EntryStatusConfirmed  EntryStatus = "confirmed"
	EntryStatusWaitlisted EntryStatus = "waitlisted"
	EntryStatusDropped    EntryStatus = "dropped"
)

// RosterEntry is one profile's membership in one game's roster. A profile
// holds at most one live (confirmed or waitlisted) entry per game; dropped
// entries are terminal and kept for history.
type RosterEntry struct {
	ID            string      `json:"id"`
	GameID        string      `json:"game_id"`
	ProfileID     string      `json:"profile_id"`
	Status        EntryStatus `json:"status"`
	QueuePosition int64       `json:"queue_position,omitempty"` // waitlisted entries only
	JoinedAt      time.Time   `json:"joined_at"`
	ConfirmedAt   *time.Time  `json:"confirmed_at,omitempty"`
	DroppedAt     *time.Time  `json:"dropped_at,omitempty"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

func (e *RosterEntry) IsLive() bool {
	return e.Status == EntryStatusConfirmed || e.Status == EntryStatusWaitlisted
}

// RosterView is the authoritative read model observers re-fetch after a
// change notification.
type RosterView struct {
	GameID    string        `json:"game_id"`
	Capacity  int           `json:"capacity"`
	Occupancy int           `json:"occupancy"`
	Confirmed []RosterEntry `json:"confirmed"`
	Waitlist  []RosterEntry `json:"waitlist"` // ascending queue position
}
