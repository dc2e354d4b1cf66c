package queue

import (
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/switchboard/internal/db"
	"github.com/zulandar/switchboard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// maxClaimAttempts bounds how many candidates one allocation tries after
// losing the conditional update to a concurrent claimer.
const maxClaimAttempts = 16

// Allocate atomically claims the lowest-id unclaimed, non-completed item for
// the operator. It returns ErrAlreadyActive when the operator already holds
// an active item and ErrNoneAvailable when the pool is empty.
func Allocate(gdb *gorm.DB, operatorID, displayName string) (*models.WorkItem, error) {
	if operatorID == "" {
		return nil, fmt.Errorf("queue: operatorID is required")
	}

	var claimed *models.WorkItem
	err := gdb.Transaction(func(tx *gorm.DB) error {
		var err error
		claimed, err = claimNext(tx, operatorID, displayName, 0)
		return err
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// Supersede releases the operator's active item back to the pool and claims
// the next item other than the one released, in one transaction. If no other
// item is available nothing changes and ErrNoneAvailable is returned. An
// operator with no active item simply gets a fresh allocation.
func Supersede(gdb *gorm.DB, operatorID, displayName string) (*models.WorkItem, error) {
	if operatorID == "" {
		return nil, fmt.Errorf("queue: operatorID is required")
	}

	var claimed *models.WorkItem
	err := gdb.Transaction(func(tx *gorm.DB) error {
		var err error
		claimed, err = supersede(tx, operatorID, displayName)
		return err
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// Release returns the operator's active item to the pool, clearing its claim,
// status and summary.
func Release(gdb *gorm.DB, operatorID string) (*models.WorkItem, error) {
	var released models.WorkItem
	err := gdb.Transaction(func(tx *gorm.DB) error {
		item, err := lockActive(tx, operatorID)
		if err != nil {
			return err
		}
		if err := tx.Model(&models.WorkItem{}).Where("id = ?", item.ID).Updates(releaseFields()).Error; err != nil {
			return fmt.Errorf("queue: release line %d: %w", item.ID, err)
		}
		released = *item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &released, nil
}

// ActiveItem returns the operator's claimed, non-completed item.
func ActiveItem(gdb *gorm.DB, operatorID string) (*models.WorkItem, error) {
	var item models.WorkItem
	err := gdb.Where("active_claim = ?", operatorID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoActiveItem
	}
	if err != nil {
		return nil, fmt.Errorf("queue: load active line for %s: %w", operatorID, err)
	}
	return &item, nil
}

func supersede(tx *gorm.DB, operatorID, displayName string) (*models.WorkItem, error) {
	var excludeID uint
	prior, err := lockActive(tx, operatorID)
	switch {
	case errors.Is(err, ErrNoActiveItem):
	case err != nil:
		return nil, err
	default:
		if err := tx.Model(&models.WorkItem{}).Where("id = ?", prior.ID).Updates(releaseFields()).Error; err != nil {
			return nil, fmt.Errorf("queue: release line %d: %w", prior.ID, err)
		}
		excludeID = prior.ID
	}
	return claimNext(tx, operatorID, displayName, excludeID)
}

// claimNext runs inside a transaction. It checks the operator holds nothing,
// then locks the first free candidate and claims it with a conditional
// update. A zero-row update means another transaction won the row, so the
// next candidate is tried.
func claimNext(tx *gorm.DB, operatorID, displayName string, excludeID uint) (*models.WorkItem, error) {
	var active int64
	if err := tx.Model(&models.WorkItem{}).Where("active_claim = ?", operatorID).Count(&active).Error; err != nil {
		return nil, fmt.Errorf("queue: check active line for %s: %w", operatorID, err)
	}
	if active > 0 {
		return nil, ErrAlreadyActive
	}

	for attempt := 0; attempt < maxClaimAttempts; attempt++ {
		var candidate models.WorkItem
		q := tx.Where("claimed = ? AND completed = ?", false, false)
		if excludeID != 0 {
			q = q.Where("id <> ?", excludeID)
		}
		result := q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Order("id ASC").
			Limit(1).
			Find(&candidate)
		if result.Error != nil {
			return nil, fmt.Errorf("queue: find free line: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return nil, ErrNoneAvailable
		}

		now := time.Now()
		owner := operatorID
		update := tx.Model(&models.WorkItem{}).
			Where("id = ? AND claimed = ?", candidate.ID, false).
			Updates(map[string]interface{}{
				"claimed":         true,
				"claimed_by":      operatorID,
				"claimed_by_name": displayName,
				"claimed_at":      now,
				"active_claim":    owner,
			})
		if update.Error != nil {
			if db.IsDuplicateKey(update.Error) {
				return nil, ErrAlreadyActive
			}
			return nil, fmt.Errorf("queue: claim line %d: %w", candidate.ID, update.Error)
		}
		if update.RowsAffected == 0 {
			continue
		}

		candidate.Claimed = true
		candidate.ClaimedBy = operatorID
		candidate.ClaimedByName = displayName
		candidate.ClaimedAt = &now
		candidate.ActiveClaim = &owner
		return &candidate, nil
	}
	return nil, fmt.Errorf("queue: gave up after %d contended claims: %w", maxClaimAttempts, ErrNoneAvailable)
}

// lockActive loads the operator's active item inside a transaction, locking
// the row.
func lockActive(tx *gorm.DB, operatorID string) (*models.WorkItem, error) {
	var item models.WorkItem
	result := tx.Where("active_claim = ?", operatorID).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Limit(1).
		Find(&item)
	if result.Error != nil {
		return nil, fmt.Errorf("queue: load active line for %s: %w", operatorID, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrNoActiveItem
	}
	return &item, nil
}
