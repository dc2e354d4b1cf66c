package models

import "time"

// WorkItem is one distributable line: a phone number plus optional contact
// fields, its allocation to an operator and its disposition.
type WorkItem struct {
	ID      uint   `gorm:"primaryKey;autoIncrement"`
	Number  string `gorm:"size:255;not null"`
	Name    string `gorm:"size:255"`
	Address string `gorm:"type:text"`
	Email   string `gorm:"size:255"`

	Claimed       bool   `gorm:"default:false;index"`
	ClaimedBy     string `gorm:"size:64;index"`
	ClaimedByName string `gorm:"size:255"`
	ClaimedAt     *time.Time

	// ActiveClaim holds the claiming operator while the item is claimed and
	// not completed, and is NULL otherwise. The unique index caps every
	// operator at one active item.
	ActiveClaim *string `gorm:"size:64;uniqueIndex"`

	Completed   bool `gorm:"default:false;index"`
	CompletedAt *time.Time

	Status    string `gorm:"size:50"`
	Summary   string `gorm:"type:text"`
	SummaryAt *time.Time

	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

// Disposition tags stored in WorkItem.Status.
const (
	StatusOTP       = "OTP"
	StatusNoAnswer  = "No Answer"
	StatusNeedPass  = "Need Pass"
	StatusNeedEmail = "Need Email"
	StatusFinishing = "Finishing"
	StatusCallback  = "Callback"
	StatusCallEnded = "Call Ended"
)
