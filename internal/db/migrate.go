package db

import (
	"fmt"

	"github.com/zulandar/switchboard/internal/config"
	"github.com/zulandar/switchboard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns every GORM model stored in a desk database.
func AllModels() []interface{} {
	return []interface{}{
		&models.WorkItem{},
		&models.Operator{},
		&models.AdminGrant{},
		&models.NoAnswerRecord{},
		&models.LineRequest{},
		&models.DeskState{},
		&models.DeskLease{},
	}
}

// AutoMigrate creates or updates all desk tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedDeskState inserts the singleton desk status row as running. An
// existing row is left untouched so a stopped desk stays stopped.
func SeedDeskState(db *gorm.DB) error {
	st := models.DeskState{ID: 1, Status: models.DeskRunning}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&st)
	if result.Error != nil {
		return fmt.Errorf("db: seed desk state: %w", result.Error)
	}
	return nil
}

// Init prepares a desk database: creates the schema on MySQL, migrates every
// table and seeds the desk status row. The returned connection is ready for
// use.
func Init(cfg config.DatabaseConfig, database string) (*gorm.DB, error) {
	if cfg.Driver != "sqlite" {
		admin, err := ConnectAdmin(cfg)
		if err != nil {
			return nil, err
		}
		err = CreateDatabase(admin, database)
		if sqlDB, dbErr := admin.DB(); dbErr == nil {
			sqlDB.Close()
		}
		if err != nil {
			return nil, err
		}
	}

	gdb, err := Connect(cfg, database)
	if err != nil {
		return nil, err
	}
	if err := AutoMigrate(gdb); err != nil {
		return nil, err
	}
	if err := SeedDeskState(gdb); err != nil {
		return nil, err
	}
	return gdb, nil
}
