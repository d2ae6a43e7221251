package models

import (
	"fmt"
	"time"
)

type ChangeType string

const (
	ChangeTypeJoined    ChangeType = "joined"
	ChangeTypeLeft      ChangeType = "left"
	ChangeTypePromoted  ChangeType = "promoted"
	ChangeTypeConfirmed ChangeType = "attendance_confirmed"
)

// RosterChangeEvent is published on the roster:<gameId> topic after every
// committed mutation of that game's roster.
type RosterChangeEvent struct {
	GameID             string     `json:"game_id"`
	ChangeType         ChangeType `json:"change_type"`
	AffectedProfileIDs []string   `json:"affected_profile_ids,omitempty"`
	Occupancy          int        `json:"occupancy"`
	Timestamp          time.Time  `json:"timestamp"`
}

// ProfileChangeEvent is published on profile:<profileId> when a mutation
// changed that specific profile's membership status.
type ProfileChangeEvent struct {
	ProfileID string      `json:"profile_id"`
	GameID    string      `json:"game_id"`
	Status    EntryStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
}

func RosterTopic(gameID string) string {
	return fmt.Sprintf("roster:%s", gameID)
}

func ProfileTopic(profileID string) string {
	return fmt.Sprintf("profile:%s", profileID)
}
