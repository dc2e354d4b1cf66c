package desk

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/zulandar/switchboard/internal/models"
	"gorm.io/gorm"
)

// DefaultLeaseTimeout is how long a lease survives without a heartbeat
// before another process may take it over.
const DefaultLeaseTimeout = 90 * time.Second

var (
	// ErrLeaseHeld is returned when another live process runs the desk.
	ErrLeaseHeld = errors.New("desk: lease held by another process")
	// ErrLeaseLost is returned when the lease row no longer names the holder.
	ErrLeaseLost = errors.New("desk: lease lost")
)

const leaseID = 1

// DefaultHolder names this process as host:pid.
func DefaultHolder() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("%s:%d", host, os.Getpid())
}

// AcquireLease claims the desk for holder. A lease already owned by holder
// is refreshed; one owned by someone else is taken over only when its
// heartbeat is older than timeout.
func AcquireLease(db *gorm.DB, holder string, timeout time.Duration) error {
	if holder == "" {
		return fmt.Errorf("desk: acquire lease: holder is required")
	}
	if timeout <= 0 {
		timeout = DefaultLeaseTimeout
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		var existing models.DeskLease
		result := tx.Where("id = ?", leaseID).Limit(1).Find(&existing)
		if result.Error != nil {
			return fmt.Errorf("load lease: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return tx.Create(&models.DeskLease{
				ID: leaseID, Holder: holder, AcquiredAt: now, Heartbeat: now,
			}).Error
		}
		cutoff := now.Add(-timeout)
		if existing.Holder != holder && existing.Heartbeat.After(cutoff) {
			return fmt.Errorf("%w: %s (last heartbeat %s ago)",
				ErrLeaseHeld, existing.Holder, now.Sub(existing.Heartbeat).Round(time.Second))
		}

		// A takeover only matches the stale row we read, so of two processes
		// racing for it only the first update lands.
		update := tx.Model(&models.DeskLease{}).Where("id = ? AND holder = ?", leaseID, existing.Holder)
		if existing.Holder != holder {
			update = update.Where("heartbeat < ?", cutoff)
		}
		update = update.Updates(map[string]interface{}{
			"holder":      holder,
			"acquired_at": now,
			"heartbeat":   now,
		})
		if update.Error != nil {
			return update.Error
		}
		if update.RowsAffected == 0 {
			return fmt.Errorf("%w: taken over concurrently", ErrLeaseHeld)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrLeaseHeld) {
			return err
		}
		return fmt.Errorf("desk: acquire lease: %w", err)
	}
	return nil
}

// HeartbeatLease refreshes the heartbeat of a lease owned by holder.
func HeartbeatLease(db *gorm.DB, holder string) error {
	result := db.Model(&models.DeskLease{}).
		Where("id = ? AND holder = ?", leaseID, holder).
		Update("heartbeat", time.Now())
	if result.Error != nil {
		return fmt.Errorf("desk: heartbeat lease: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrLeaseLost
	}
	return nil
}

// ReleaseLease drops the lease if holder still owns it. Releasing a lease
// that was taken over is not an error.
func ReleaseLease(db *gorm.DB, holder string) error {
	if err := db.Where("id = ? AND holder = ?", leaseID, holder).Delete(&models.DeskLease{}).Error; err != nil {
		return fmt.Errorf("desk: release lease: %w", err)
	}
	return nil
}
