package db

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/zulandar/switchboard/internal/config"
	"github.com/zulandar/switchboard/internal/models"
	"gorm.io/gorm"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.DatabaseConfig
		database string
		contains []string
	}{
		{
			name:     "default local",
			cfg:      config.DatabaseConfig{Host: "127.0.0.1", Port: 3306, User: "root"},
			database: "switchboard_lg1",
			contains: []string{"root@tcp(127.0.0.1:3306)/switchboard_lg1", "parseTime=true"},
		},
		{
			name:     "password and custom port",
			cfg:      config.DatabaseConfig{Host: "10.0.0.5", Port: 3307, User: "desk", Password: "pw"},
			database: "marlo_usa",
			contains: []string{"desk:pw@tcp(10.0.0.5:3307)/marlo_usa"},
		},
		{
			name:     "no database",
			cfg:      config.DatabaseConfig{Host: "db.internal", Port: 3306, User: "root"},
			database: "",
			contains: []string{"root@tcp(db.internal:3306)/?"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DSN(tt.cfg, tt.database)
			for _, c := range tt.contains {
				if !strings.Contains(got, c) {
					t.Errorf("DSN() = %q, missing %q", got, c)
				}
			}
		})
	}
}

func TestDSN_RoundTrip(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "h", Port: 1, User: "u", Password: "p@ss"}, "d")
	parsed, err := mysql.ParseDSN(dsn)
	if err != nil {
		t.Fatalf("ParseDSN(%q): %v", dsn, err)
	}
	if parsed.Passwd != "p@ss" {
		t.Errorf("Passwd = %q, want p@ss", parsed.Passwd)
	}
	if parsed.DBName != "d" {
		t.Errorf("DBName = %q, want d", parsed.DBName)
	}
	if !parsed.ParseTime {
		t.Error("ParseTime should be set")
	}
}

func TestSQLitePath(t *testing.T) {
	got := SQLitePath(config.DatabaseConfig{Dir: "/var/lib/sb"}, "switchboard_lg1")
	want := filepath.Join("/var/lib/sb", "switchboard_lg1.db")
	if got != want {
		t.Errorf("SQLitePath() = %q, want %q", got, want)
	}
}

func TestConnect_UnsupportedDriver(t *testing.T) {
	_, err := Connect(config.DatabaseConfig{Driver: "oracle"}, "x")
	if err == nil {
		t.Fatal("expected error for unsupported driver")
	}
	if !strings.Contains(err.Error(), "unsupported driver") {
		t.Errorf("error = %q", err)
	}
}

func TestConnectAdmin_Signature(t *testing.T) {
	// ConnectAdmin needs a running MySQL server; only the signature is checked here.
	var fn func(config.DatabaseConfig) (*gorm.DB, error) = ConnectAdmin
	if fn == nil {
		t.Fatal("ConnectAdmin function is nil")
	}
}

func TestInit_SQLite(t *testing.T) {
	cfg := config.DatabaseConfig{Driver: "sqlite", Dir: filepath.Join(t.TempDir(), "data")}
	gdb, err := Init(cfg, "switchboard_test")
	if err != nil {
		t.Fatalf("Init: %v", err)
	}

	for _, m := range AllModels() {
		if !gdb.Migrator().HasTable(m) {
			t.Errorf("table for %T not created", m)
		}
	}

	var st models.DeskState
	if err := gdb.First(&st, 1).Error; err != nil {
		t.Fatalf("load desk state: %v", err)
	}
	if st.Status != models.DeskRunning {
		t.Errorf("Status = %q, want running", st.Status)
	}
}

func TestSeedDeskState_KeepsExisting(t *testing.T) {
	cfg := config.DatabaseConfig{Driver: "sqlite", Dir: t.TempDir()}
	gdb, err := Init(cfg, "seed")
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := gdb.Model(&models.DeskState{}).Where("id = ?", 1).Update("status", models.DeskStopped).Error; err != nil {
		t.Fatalf("stop desk: %v", err)
	}
	if err := SeedDeskState(gdb); err != nil {
		t.Fatalf("SeedDeskState: %v", err)
	}

	var st models.DeskState
	gdb.First(&st, 1)
	if st.Status != models.DeskStopped {
		t.Errorf("Status = %q, seeding should not overwrite", st.Status)
	}
	var count int64
	gdb.Model(&models.DeskState{}).Count(&count)
	if count != 1 {
		t.Errorf("desk_states rows = %d, want 1", count)
	}
}

func TestAllModels_Count(t *testing.T) {
	if n := len(AllModels()); n != 7 {
		t.Errorf("AllModels() returned %d models, want 7", n)
	}
}

func TestIsDuplicateKey(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"mysql 1062", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, true},
		{"wrapped mysql 1062", fmt.Errorf("queue: claim: %w", &mysql.MySQLError{Number: 1062}), true},
		{"mysql other", &mysql.MySQLError{Number: 1213, Message: "Deadlock"}, false},
		{"gorm duplicated key", gorm.ErrDuplicatedKey, true},
		{"sqlite unique", errors.New("UNIQUE constraint failed: work_items.active_claim"), true},
		{"unrelated", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDuplicateKey(tt.err); got != tt.want {
				t.Errorf("IsDuplicateKey(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
