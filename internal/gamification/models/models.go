// Package models defines gamification awards and progress.
package models

import "time"

// Award is one grant of points. The (user, action, reference) triple is
// unique; replaying the same grant is a no-op.
type Award struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Action    string    `json:"action"`
	Reference string    `json:"reference"`
	Points    int       `json:"points"`
	CreatedAt time.Time `json:"created_at"`
}

type Progress struct {
	Points    int      `json:"points"`
	Level     int      `json:"level"`
	NextLevel int      `json:"next_level_points"`
	Badges    []string `json:"badges"`
}
