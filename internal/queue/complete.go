package queue

import (
	"fmt"
	"time"

	"github.com/zulandar/switchboard/internal/models"
	"gorm.io/gorm"
)

// Claimant identifies the operator recorded against a no-answer snapshot.
type Claimant struct {
	OperatorID string
	Username   string
	AgentName  string
	Reference  string
}

// SetStatus tags the operator's active item with a disposition status and
// returns the updated item. The claim is kept.
func SetStatus(gdb *gorm.DB, operatorID, status string) (*models.WorkItem, error) {
	var item *models.WorkItem
	err := gdb.Transaction(func(tx *gorm.DB) error {
		var err error
		item, err = lockActive(tx, operatorID)
		if err != nil {
			return err
		}
		if err := tx.Model(&models.WorkItem{}).Where("id = ?", item.ID).Update("status", status).Error; err != nil {
			return fmt.Errorf("queue: set status on line %d: %w", item.ID, err)
		}
		item.Status = status
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Complete marks the operator's active item completed and removes the
// operator's pending and approved line requests. A non-nil summary is stored
// with its timestamp; nil completes without one.
func Complete(gdb *gorm.DB, operatorID string, summary *string) (*models.WorkItem, error) {
	var item *models.WorkItem
	err := gdb.Transaction(func(tx *gorm.DB) error {
		var err error
		item, err = lockActive(tx, operatorID)
		if err != nil {
			return err
		}
		now := time.Now()
		updates := map[string]interface{}{
			"completed":    true,
			"completed_at": now,
			"active_claim": nil,
		}
		if summary != nil {
			updates["summary"] = *summary
			updates["summary_at"] = now
			item.Summary = *summary
			item.SummaryAt = &now
		}
		if err := completeTx(tx, item, operatorID, updates); err != nil {
			return err
		}
		item.CompletedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

// CompleteNoAnswer snapshots the operator's active item into the no-answer
// log, tags it "No Answer" and completes it, all in one transaction. The
// snapshot is read from the locked row before completion.
func CompleteNoAnswer(gdb *gorm.DB, who Claimant) (*models.WorkItem, *models.NoAnswerRecord, error) {
	var (
		item   *models.WorkItem
		record models.NoAnswerRecord
	)
	err := gdb.Transaction(func(tx *gorm.DB) error {
		var err error
		item, err = lockActive(tx, who.OperatorID)
		if err != nil {
			return err
		}

		record = models.NoAnswerRecord{
			WorkItemID: item.ID,
			OperatorID: who.OperatorID,
			Username:   who.Username,
			AgentName:  who.AgentName,
			Reference:  who.Reference,
			Number:     item.Number,
			Name:       item.Name,
			Address:    item.Address,
			Email:      item.Email,
		}
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("queue: snapshot line %d: %w", item.ID, err)
		}

		now := time.Now()
		if err := completeTx(tx, item, who.OperatorID, map[string]interface{}{
			"status":       models.StatusNoAnswer,
			"completed":    true,
			"completed_at": now,
			"active_claim": nil,
		}); err != nil {
			return err
		}
		item.Status = models.StatusNoAnswer
		item.CompletedAt = &now
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return item, &record, nil
}

func completeTx(tx *gorm.DB, item *models.WorkItem, operatorID string, updates map[string]interface{}) error {
	if err := tx.Model(&models.WorkItem{}).Where("id = ?", item.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("queue: complete line %d: %w", item.ID, err)
	}
	if err := tx.Where("operator_id = ? AND status IN ?", operatorID, []string{models.RequestPending, models.RequestApproved}).
		Delete(&models.LineRequest{}).Error; err != nil {
		return fmt.Errorf("queue: clean requests for %s: %w", operatorID, err)
	}
	item.Completed = true
	item.ActiveClaim = nil
	return nil
}
