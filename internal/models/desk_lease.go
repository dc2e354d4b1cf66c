package models

import "time"

// DeskLease records which process currently runs the desk bot. There is at
// most one row (ID 1); a lease whose heartbeat has gone stale may be taken
// over by another process.
type DeskLease struct {
	ID         uint   `gorm:"primaryKey"`
	Holder     string `gorm:"size:255;not null"`
	AcquiredAt time.Time
	Heartbeat  time.Time `gorm:"index"`
}
