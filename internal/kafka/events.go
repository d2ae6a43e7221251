package kafka

import "time"

// Integration events published for the wider platform (notification
// service, analytics). These are distinct from the realtime change topics:
// they carry full payloads and are keyed by game id so one game's events
// stay on a single partition. Publication happens outside the engine's
// per-game lock, so consumers needing strict ordering must reconcile
// against authoritative state rather than replay events.

type RosterJoinedEvent struct {
	GameID        string    `json:"game_id"`
	ProfileID     string    `json:"profile_id"`
	Status        string    `json:"status"` // confirmed or waitlisted
	QueuePosition int64     `json:"queue_position,omitempty"`
	Occupancy     int       `json:"occupancy"`
	JoinedAt      time.Time `json:"joined_at"`
	Timestamp     time.Time `json:"timestamp"`
}

type RosterLeftEvent struct {
	GameID         string    `json:"game_id"`
	ProfileID      string    `json:"profile_id"`
	PreviousStatus string    `json:"previous_status"`
	Occupancy      int       `json:"occupancy"`
	LeftAt         time.Time `json:"left_at"`
	Timestamp      time.Time `json:"timestamp"`
}

type RosterPromotedEvent struct {
	GameID     string    `json:"game_id"`
	ProfileID  string    `json:"profile_id"`
	PromotedAt time.Time `json:"promoted_at"`
	Timestamp  time.Time `json:"timestamp"`
}

type AttendanceConfirmedEvent struct {
	GameID      string    `json:"game_id"`
	ProfileID   string    `json:"profile_id"`
	ConfirmedAt time.Time `json:"confirmed_at"`
	Timestamp   time.Time `json:"timestamp"`
}

const (
	TopicRosterJoined        = "ROSTER_JOINED"
	TopicRosterLeft          = "ROSTER_LEFT"
	TopicRosterPromoted      = "ROSTER_PROMOTED"
	TopicAttendanceConfirmed = "ATTENDANCE_CONFIRMED"
)
