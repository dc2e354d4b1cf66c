package desk

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zulandar/switchboard/internal/admin"
	"github.com/zulandar/switchboard/internal/db"
	"github.com/zulandar/switchboard/internal/disposition"
	"github.com/zulandar/switchboard/internal/queue"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	owner = "OWNER"
	group = "GROUP"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "desk.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, _ := gdb.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	if err := db.SeedDeskState(gdb); err != nil {
		t.Fatalf("seed desk state: %v", err)
	}
	return gdb
}

type fixture struct {
	db      *gorm.DB
	gate    *admin.Gate
	engine  *disposition.Engine
	adapter *MockAdapter
	cmd     *CommandHandler
	router  *Router
	out     *bytes.Buffer
}

var fixedNow = time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb := testDB(t)
	gate, err := admin.NewGate(gdb, owner)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	engine, err := disposition.NewEngine(disposition.EngineOpts{DB: gdb, Auth: gate, Reference: "LG1"})
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	cmd, err := NewCommandHandler(CommandHandlerOpts{
		DB: gdb, Gate: gate, Engine: engine,
		Now: func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("NewCommandHandler: %v", err)
	}
	adapter := NewMockAdapter()
	adapter.Connect(context.Background())
	var out bytes.Buffer
	router, err := NewRouter(RouterOpts{
		Engine:     engine,
		CmdHandler: cmd,
		Notifier:   NewNotifier(adapter, gate, group),
		BotUserID:  "BOT",
		Out:        &out,
	})
	if err != nil {
		t.Fatalf("NewRouter: %v", err)
	}
	return &fixture{db: gdb, gate: gate, engine: engine, adapter: adapter, cmd: cmd, router: router, out: &out}
}

func (f *fixture) seed(t *testing.T, numbers ...string) {
	t.Helper()
	recs := make([]queue.Record, len(numbers))
	for i, n := range numbers {
		recs[i] = queue.Record{Number: n}
	}
	if _, err := queue.Import(f.db, recs); err != nil {
		t.Fatal(err)
	}
}

// dm simulates a direct message from user.
func (f *fixture) dm(user, text string) {
	f.router.Handle(context.Background(), InboundMessage{
		Platform: "mock", ChannelID: "dm-" + user, UserID: user, UserName: user, Text: text, Direct: true,
	})
}

// press simulates a button press by user.
func (f *fixture) press(user, actionID string) {
	f.router.Handle(context.Background(), InboundMessage{
		Platform: "mock", ChannelID: group, UserID: user, UserName: user, ActionID: actionID,
	})
}

// run executes a command through the handler directly.
func (f *fixture) run(user, text string, direct bool) Response {
	return f.cmd.Execute(context.Background(), InboundMessage{UserID: user, UserName: user, Text: text, Direct: direct})
}

func lastTextTo(t *testing.T, a *MockAdapter, user string) string {
	t.Helper()
	msgs := a.SentTo(user)
	if len(msgs) == 0 {
		t.Fatalf("nothing sent to %s", user)
	}
	return msgs[len(msgs)-1].Text
}

func sentToChannel(a *MockAdapter, channel string) []OutboundMessage {
	var out []OutboundMessage
	for _, m := range a.AllSent() {
		if m.UserID == "" && m.ChannelID == channel {
			out = append(out, m)
		}
	}
	return out
}

func containsAny(msgs []OutboundMessage, sub string) bool {
	for _, m := range msgs {
		if strings.Contains(m.Text, sub) {
			return true
		}
	}
	return false
}
