// Package queue implements the work item store: import, atomic allocation,
// disposition updates, completion and the administrative bulk operations.
//
// Exclusivity never depends on an in-process lock. Every read-modify-write
// runs inside one database transaction, candidate rows are read with
// SELECT ... FOR UPDATE SKIP LOCKED, claims are conditional updates, and the
// unique index on work_items.active_claim rejects a second active item for
// the same operator.
package queue

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zulandar/switchboard/internal/models"
	"gorm.io/gorm"
)

var (
	// ErrNoneAvailable is returned when no unclaimed, non-completed item is left.
	ErrNoneAvailable = errors.New("queue: no lines available")
	// ErrAlreadyActive is returned when the operator already holds an active item.
	ErrAlreadyActive = errors.New("queue: operator already has an active line")
	// ErrNoActiveItem is returned when an operation needs an active item and
	// the operator holds none.
	ErrNoActiveItem = errors.New("queue: operator has no active line")
	// ErrRequestNotPending is returned when a line request was already processed.
	ErrRequestNotPending = errors.New("queue: request already processed")
	// ErrRequestExists is returned when the operator already has a pending request.
	ErrRequestExists = errors.New("queue: request already pending")
)

// importBatchSize bounds the number of rows per INSERT during import.
const importBatchSize = 200

// Record is one importable work item payload.
type Record struct {
	Number  string
	Name    string
	Address string
	Email   string
}

// Stats summarizes the queue.
type Stats struct {
	Remaining       int64 `json:"remaining"`
	Used            int64 `json:"used"`
	Active          int64 `json:"active"`
	Completed       int64 `json:"completed"`
	NoAnswer        int64 `json:"no_answer"`
	PendingRequests int64 `json:"pending_requests"`
}

// Total returns the number of rows currently in the queue.
func (s Stats) Total() int64 {
	return s.Remaining + s.Used
}

// Import inserts records as unclaimed items in order, so allocation hands
// them out in the same order. Records with an empty number are skipped.
func Import(db *gorm.DB, records []Record) (int, error) {
	items := make([]models.WorkItem, 0, len(records))
	for _, r := range records {
		number := strings.TrimSpace(r.Number)
		if number == "" {
			continue
		}
		items = append(items, models.WorkItem{
			Number:  number,
			Name:    strings.TrimSpace(r.Name),
			Address: strings.TrimSpace(r.Address),
			Email:   strings.TrimSpace(r.Email),
		})
	}
	if len(items) == 0 {
		return 0, nil
	}
	if err := db.CreateInBatches(&items, importBatchSize).Error; err != nil {
		return 0, fmt.Errorf("queue: import: %w", err)
	}
	return len(items), nil
}

// ParseRecords parses line-oriented input of the form
// number[,name[,address[,email]]]. Blank lines are skipped. Commas inside
// the address are not supported; anything after the fourth field is
// appended to the email column.
func ParseRecords(text string) []Record {
	var out []Record
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ",", 4)
		var r Record
		r.Number = strings.TrimSpace(parts[0])
		if len(parts) > 1 {
			r.Name = strings.TrimSpace(parts[1])
		}
		if len(parts) > 2 {
			r.Address = strings.TrimSpace(parts[2])
		}
		if len(parts) > 3 {
			r.Email = strings.TrimSpace(parts[3])
		}
		if r.Number == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}

// GetStats counts the queue by allocation state.
func GetStats(db *gorm.DB) (*Stats, error) {
	var s Stats
	counts := []struct {
		dst   *int64
		model interface{}
		where string
		args  []interface{}
	}{
		{&s.Remaining, &models.WorkItem{}, "claimed = ? AND completed = ?", []interface{}{false, false}},
		{&s.Used, &models.WorkItem{}, "claimed = ?", []interface{}{true}},
		{&s.Active, &models.WorkItem{}, "active_claim IS NOT NULL", nil},
		{&s.Completed, &models.WorkItem{}, "completed = ?", []interface{}{true}},
		{&s.NoAnswer, &models.NoAnswerRecord{}, "1 = 1", nil},
		{&s.PendingRequests, &models.LineRequest{}, "status = ?", []interface{}{models.RequestPending}},
	}
	for _, c := range counts {
		if err := db.Model(c.model).Where(c.where, c.args...).Count(c.dst).Error; err != nil {
			return nil, fmt.Errorf("queue: stats: %w", err)
		}
	}
	return &s, nil
}

// Reset returns every claimed, incomplete item to the pool, clearing its
// claim, status and summary. The count is the number of claims released;
// unclaimed and completed items are untouched.
func Reset(db *gorm.DB) (int64, error) {
	result := db.Model(&models.WorkItem{}).
		Where("claimed = ? AND completed = ?", true, false).
		Updates(releaseFields())
	if result.Error != nil {
		return 0, fmt.Errorf("queue: reset: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Clear deletes every item and every line request. It returns the number of
// items deleted.
func Clear(db *gorm.DB) (int64, error) {
	var deleted int64
	err := db.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("1 = 1").Delete(&models.WorkItem{})
		if result.Error != nil {
			return fmt.Errorf("queue: clear items: %w", result.Error)
		}
		deleted = result.RowsAffected
		if err := tx.Where("1 = 1").Delete(&models.LineRequest{}).Error; err != nil {
			return fmt.Errorf("queue: clear requests: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// releaseFields is the update that returns a claimed item to the pool.
func releaseFields() map[string]interface{} {
	return map[string]interface{}{
		"claimed":         false,
		"claimed_by":      "",
		"claimed_by_name": "",
		"claimed_at":      nil,
		"active_claim":    nil,
		"status":          "",
		"summary":         "",
		"summary_at":      nil,
	}
}
