package models

import "time"

// LineRequest is an operator's request to swap their current line for a
// new one, pending an administrator's decision.
type LineRequest struct {
	ID             uint   `gorm:"primaryKey;autoIncrement"`
	OperatorID     string `gorm:"size:64;not null;index"`
	Username       string `gorm:"size:255"`
	PreviousNumber string `gorm:"size:255"`
	Reason         string `gorm:"size:100"`
	Status         string `gorm:"size:16;default:pending;index"`
	RequestedAt    time.Time
	ProcessedAt    *time.Time
}

// LineRequest statuses.
const (
	RequestPending  = "pending"
	RequestApproved = "approved"
	RequestDeclined = "declined"
)
