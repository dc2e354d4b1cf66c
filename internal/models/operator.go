package models

import "time"

// Operator is a chat identity that works lines, with its agent name.
type Operator struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	OperatorID string `gorm:"size:64;not null;uniqueIndex"`
	AgentName  string `gorm:"size:255"`
	Reference  string `gorm:"size:50"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// AdminGrant delegates administrative permission to an operator identity.
type AdminGrant struct {
	ID         uint   `gorm:"primaryKey;autoIncrement"`
	OperatorID string `gorm:"size:64;not null;uniqueIndex"`
	Username   string `gorm:"size:255"`
	AddedBy    string `gorm:"size:64;not null"`
	CreatedAt  time.Time
}
