package dashboard

import (
	"fmt"
	"time"

	"github.com/zulandar/switchboard/internal/models"
	"github.com/zulandar/switchboard/internal/queue"
	"gorm.io/gorm"
)

// StatsSnapshot is the desk summary served by /api/stats and the event
// stream.
type StatsSnapshot struct {
	Reference string      `json:"reference"`
	Desk      string      `json:"desk"`
	Total     int64       `json:"total"`
	Stats     queue.Stats `json:"stats"`
}

// LineRow is one line currently held by an operator.
type LineRow struct {
	ID        uint       `json:"id"`
	Number    string     `json:"number"`
	Operator  string     `json:"operator"`
	AgentName string     `json:"agent_name"`
	Status    string     `json:"status"`
	ClaimedAt *time.Time `json:"claimed_at"`
}

// UnclaimedRow is one line still waiting in the queue.
type UnclaimedRow struct {
	ID      uint   `json:"id"`
	Number  string `json:"number"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Email   string `json:"email"`
}

// Snapshot reads the queue counters and desk status.
func Snapshot(db *gorm.DB, reference string) (*StatsSnapshot, error) {
	stats, err := queue.GetStats(db)
	if err != nil {
		return nil, err
	}
	status, err := queue.DeskStatus(db)
	if err != nil {
		return nil, err
	}
	return &StatsSnapshot{
		Reference: reference,
		Desk:      status,
		Total:     stats.Total(),
		Stats:     *stats,
	}, nil
}

// ActiveLines returns claimed, incomplete items oldest claim first, with the
// registered agent name of each holder.
func ActiveLines(db *gorm.DB) ([]LineRow, error) {
	var items []models.WorkItem
	if err := db.Where("active_claim IS NOT NULL").
		Order("claimed_at ASC, id ASC").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("dashboard: active lines: %w", err)
	}
	if len(items) == 0 {
		return []LineRow{}, nil
	}

	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ClaimedBy)
	}
	var ops []models.Operator
	if err := db.Where("operator_id IN ?", ids).Find(&ops).Error; err != nil {
		return nil, fmt.Errorf("dashboard: operators: %w", err)
	}
	names := make(map[string]string, len(ops))
	for _, op := range ops {
		names[op.OperatorID] = op.AgentName
	}

	rows := make([]LineRow, len(items))
	for i, it := range items {
		operator := it.ClaimedByName
		if operator == "" {
			operator = it.ClaimedBy
		}
		rows[i] = LineRow{
			ID:        it.ID,
			Number:    it.Number,
			Operator:  operator,
			AgentName: names[it.ClaimedBy],
			Status:    it.Status,
			ClaimedAt: it.ClaimedAt,
		}
	}
	return rows, nil
}
