package models

import "time"

type GameStatus string

const (
	GameStatusScheduled  GameStatus = "scheduled"
	GameStatusInProgress GameStatus = "in_progress"
	GameStatusCompleted  GameStatus = "completed"
	GameStatusCancelled  GameStatus = "cancelled"
)

// Game is owned by the scheduling domain. The roster service only ever
// reads capacity, start time and status.
type Game struct {
	ID        string     `json:"id"`
	Capacity  int        `json:"capacity"`
	StartTime time.Time  `json:"start_time"`
	Status    GameStatus `json:"status"`
}

// Joinable reports whether new members may be admitted to the game.
func (g *Game) Joinable(now time.Time) bool {
	return g.Status == GameStatusScheduled && now.Before(g.StartTime)
}
