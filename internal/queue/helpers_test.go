package queue

import (
	"path/filepath"
	"testing"

	"github.com/zulandar/switchboard/internal/db"
	"github.com/zulandar/switchboard/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// testDB opens a file-backed SQLite database limited to one connection, so
// concurrent transactions serialize the way row locks serialize them on MySQL.
func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "queue.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return gdb
}

func seed(t *testing.T, gdb *gorm.DB, numbers ...string) {
	t.Helper()
	recs := make([]Record, len(numbers))
	for i, n := range numbers {
		recs[i] = Record{Number: n}
	}
	if _, err := Import(gdb, recs); err != nil {
		t.Fatalf("import: %v", err)
	}
}

func loadItem(t *testing.T, gdb *gorm.DB, number string) models.WorkItem {
	t.Helper()
	var item models.WorkItem
	if err := gdb.Where("number = ?", number).First(&item).Error; err != nil {
		t.Fatalf("load item %s: %v", number, err)
	}
	return item
}
