package models

import "time"

// DeskState is the single-row running/stopped switch for a desk.
type DeskState struct {
	ID        uint   `gorm:"primaryKey"`
	Status    string `gorm:"size:16;default:running"`
	UpdatedAt time.Time
}

// Desk statuses.
const (
	DeskRunning = "running"
	DeskStopped = "stopped"
)
