package desk

import (
	"fmt"
	"strings"

	"github.com/zulandar/switchboard/internal/queue"
	"gorm.io/gorm"
)

// BuildDigest renders the periodic queue summary for administrators. It
// returns "" when the desk holds no lines and no pending requests.
func BuildDigest(db *gorm.DB, reference string) (string, error) {
	stats, err := queue.GetStats(db)
	if err != nil {
		return "", fmt.Errorf("desk: digest: %w", err)
	}
	if stats.Total() == 0 && stats.PendingRequests == 0 && stats.NoAnswer == 0 {
		return "", nil
	}
	status, err := queue.DeskStatus(db)
	if err != nil {
		return "", fmt.Errorf("desk: digest: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🗓️ Desk %s digest\n\n", reference)
	b.WriteString(formatStats(stats, status))
	if stats.Remaining == 0 && stats.Total() > 0 {
		b.WriteString("\n\n⚠️ The queue is empty. Add numbers with /add.")
	}
	return b.String(), nil
}
