// Package archive drains finished work out of a desk database. Destructive
// exports read and delete inside one transaction so nothing is purged that
// was not returned.
package archive

import (
	"fmt"

	"github.com/zulandar/switchboard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// deleteBatchSize bounds the id list of one DELETE ... WHERE id IN (...).
const deleteBatchSize = 500

// ExportCompleted returns every completed item ordered by claim time and
// deletes them. Unclaimed and in-progress items are never touched. It
// returns nil, 0, nil when nothing is completed.
func ExportCompleted(db *gorm.DB) ([]models.WorkItem, int64, error) {
	var items []models.WorkItem
	var purged int64
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("completed = ?", true).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Order("claimed_at ASC, id ASC").
			Find(&items).Error; err != nil {
			return fmt.Errorf("archive: read completed: %w", err)
		}
		ids := make([]uint, len(items))
		for i := range items {
			ids[i] = items[i].ID
		}
		var err error
		purged, err = deleteByID(tx, &models.WorkItem{}, ids)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	if len(items) == 0 {
		return nil, 0, nil
	}
	return items, purged, nil
}

// ExportUnclaimed returns every unclaimed, non-completed item in queue
// order. Nothing is deleted.
func ExportUnclaimed(db *gorm.DB) ([]models.WorkItem, error) {
	var items []models.WorkItem
	if err := db.Where("claimed = ? AND completed = ?", false, false).
		Order("id ASC").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("archive: read unclaimed: %w", err)
	}
	if len(items) == 0 {
		return nil, nil
	}
	return items, nil
}

// ExportNoAnswerLog returns the whole no-answer log newest first and
// purges it.
func ExportNoAnswerLog(db *gorm.DB) ([]models.NoAnswerRecord, int64, error) {
	var recs []models.NoAnswerRecord
	var purged int64
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Order("created_at DESC, id DESC").
			Find(&recs).Error; err != nil {
			return fmt.Errorf("archive: read no-answer log: %w", err)
		}
		ids := make([]uint, len(recs))
		for i := range recs {
			ids[i] = recs[i].ID
		}
		var err error
		purged, err = deleteByID(tx, &models.NoAnswerRecord{}, ids)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	if len(recs) == 0 {
		return nil, 0, nil
	}
	return recs, purged, nil
}

// ExportAll returns every item in queue order and empties the table,
// including claimed lines that are still being worked.
func ExportAll(db *gorm.DB) ([]models.WorkItem, int64, error) {
	var items []models.WorkItem
	var purged int64
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Order("id ASC").
			Find(&items).Error; err != nil {
			return fmt.Errorf("archive: read all: %w", err)
		}
		ids := make([]uint, len(items))
		for i := range items {
			ids[i] = items[i].ID
		}
		var err error
		purged, err = deleteByID(tx, &models.WorkItem{}, ids)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	if len(items) == 0 {
		return nil, 0, nil
	}
	return items, purged, nil
}

func deleteByID(tx *gorm.DB, model interface{}, ids []uint) (int64, error) {
	var total int64
	for start := 0; start < len(ids); start += deleteBatchSize {
		end := start + deleteBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		result := tx.Where("id IN ?", ids[start:end]).Delete(model)
		if result.Error != nil {
			return 0, fmt.Errorf("archive: purge: %w", result.Error)
		}
		total += result.RowsAffected
	}
	return total, nil
}
