package queue

import (
	"fmt"
	"time"

	"github.com/zulandar/switchboard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// deskStateID is the primary key of the singleton desk status row.
const deskStateID = 1

// DeskStatus returns the desk's running/stopped status. A missing row reads
// as running.
func DeskStatus(gdb *gorm.DB) (string, error) {
	var st models.DeskState
	result := gdb.Limit(1).Find(&st, deskStateID)
	if result.Error != nil {
		return "", fmt.Errorf("queue: load desk status: %w", result.Error)
	}
	if result.RowsAffected == 0 || st.Status == "" {
		return models.DeskRunning, nil
	}
	return st.Status, nil
}

// SetDeskStatus stores the desk status, creating the row if needed.
func SetDeskStatus(gdb *gorm.DB, status string) error {
	switch status {
	case models.DeskRunning, models.DeskStopped:
	default:
		return fmt.Errorf("queue: invalid desk status %q", status)
	}
	st := models.DeskState{ID: deskStateID, Status: status, UpdatedAt: time.Now()}
	result := gdb.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
	}).Create(&st)
	if result.Error != nil {
		return fmt.Errorf("queue: set desk status: %w", result.Error)
	}
	return nil
}

// IsRunning reports whether the desk accepts allocation requests.
func IsRunning(gdb *gorm.DB) (bool, error) {
	status, err := DeskStatus(gdb)
	if err != nil {
		return false, err
	}
	return status == models.DeskRunning, nil
}
