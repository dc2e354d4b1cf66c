package models

import "time"

// NoAnswerRecord is an immutable snapshot of a work item taken when its
// operator reported that nobody picked up.
type NoAnswerRecord struct {
	ID         uint      `gorm:"primaryKey;autoIncrement"`
	WorkItemID uint      `gorm:"index"`
	OperatorID string    `gorm:"size:64;not null;index"`
	Username   string    `gorm:"size:255"`
	AgentName  string    `gorm:"size:255"`
	Reference  string    `gorm:"size:50"`
	Number     string    `gorm:"size:255"`
	Name       string    `gorm:"size:255"`
	Address    string    `gorm:"type:text"`
	Email      string    `gorm:"size:255"`
	CreatedAt  time.Time `gorm:"index"`
}
