package queue

import (
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/switchboard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RequestReason is the reason recorded for operator-initiated requests.
const RequestReason = "line_request"

// CreateRequest records a pending request from an operator to replace their
// active line. It returns ErrNoActiveItem if the operator holds no line and
// ErrRequestExists if a request is already pending.
func CreateRequest(gdb *gorm.DB, operatorID, username string) (*models.LineRequest, error) {
	var req models.LineRequest
	err := gdb.Transaction(func(tx *gorm.DB) error {
		item, err := lockActive(tx, operatorID)
		if err != nil {
			return err
		}

		var pending int64
		if err := tx.Model(&models.LineRequest{}).
			Where("operator_id = ? AND status = ?", operatorID, models.RequestPending).
			Count(&pending).Error; err != nil {
			return fmt.Errorf("queue: check requests for %s: %w", operatorID, err)
		}
		if pending > 0 {
			return ErrRequestExists
		}

		req = models.LineRequest{
			OperatorID:     operatorID,
			Username:       username,
			PreviousNumber: item.Number,
			Reason:         RequestReason,
			Status:         models.RequestPending,
			RequestedAt:    time.Now(),
		}
		if err := tx.Create(&req).Error; err != nil {
			return fmt.Errorf("queue: create request for %s: %w", operatorID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// GetRequest loads a line request by id.
func GetRequest(gdb *gorm.DB, id uint) (*models.LineRequest, error) {
	var req models.LineRequest
	if err := gdb.First(&req, id).Error; err != nil {
		return nil, fmt.Errorf("queue: get request %d: %w", id, err)
	}
	return &req, nil
}

// PendingRequests lists pending requests oldest first.
func PendingRequests(gdb *gorm.DB) ([]models.LineRequest, error) {
	var reqs []models.LineRequest
	if err := gdb.Where("status = ?", models.RequestPending).Order("id ASC").Find(&reqs).Error; err != nil {
		return nil, fmt.Errorf("queue: list pending requests: %w", err)
	}
	return reqs, nil
}

// ApproveRequest resolves a pending request by superseding the operator's
// line: the old line goes back to the pool and the next one is claimed for
// them. If no other line is available the request stays pending and
// ErrNoneAvailable is returned.
func ApproveRequest(gdb *gorm.DB, id uint) (*models.LineRequest, *models.WorkItem, error) {
	var (
		req  *models.LineRequest
		item *models.WorkItem
	)
	err := gdb.Transaction(func(tx *gorm.DB) error {
		var err error
		req, err = lockPending(tx, id)
		if err != nil {
			return err
		}
		item, err = supersede(tx, req.OperatorID, req.Username)
		if err != nil {
			return err
		}
		return processRequest(tx, req, models.RequestApproved)
	})
	if err != nil {
		return nil, nil, err
	}
	return req, item, nil
}

// DeclineRequest marks a pending request declined. The operator keeps
// their line.
func DeclineRequest(gdb *gorm.DB, id uint) (*models.LineRequest, error) {
	var req *models.LineRequest
	err := gdb.Transaction(func(tx *gorm.DB) error {
		var err error
		req, err = lockPending(tx, id)
		if err != nil {
			return err
		}
		return processRequest(tx, req, models.RequestDeclined)
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// ClearRequests deletes every pending and approved request.
func ClearRequests(gdb *gorm.DB) (int64, error) {
	result := gdb.Where("status IN ?", []string{models.RequestPending, models.RequestApproved}).Delete(&models.LineRequest{})
	if result.Error != nil {
		return 0, fmt.Errorf("queue: clear requests: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func lockPending(tx *gorm.DB, id uint) (*models.LineRequest, error) {
	var req models.LineRequest
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&req, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("queue: request %d: %w", id, ErrRequestNotPending)
	}
	if err != nil {
		return nil, fmt.Errorf("queue: load request %d: %w", id, err)
	}
	if req.Status != models.RequestPending {
		return nil, fmt.Errorf("queue: request %d is %s: %w", id, req.Status, ErrRequestNotPending)
	}
	return &req, nil
}

func processRequest(tx *gorm.DB, req *models.LineRequest, status string) error {
	now := time.Now()
	if err := tx.Model(&models.LineRequest{}).Where("id = ?", req.ID).Updates(map[string]interface{}{
		"status":       status,
		"processed_at": now,
	}).Error; err != nil {
		return fmt.Errorf("queue: mark request %d %s: %w", req.ID, status, err)
	}
	req.Status = status
	req.ProcessedAt = &now
	return nil
}
