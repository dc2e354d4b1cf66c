package desk

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/zulandar/switchboard/internal/admin"
	"github.com/zulandar/switchboard/internal/archive"
	"github.com/zulandar/switchboard/internal/disposition"
	"github.com/zulandar/switchboard/internal/models"
	"github.com/zulandar/switchboard/internal/queue"
	"gorm.io/gorm"
)

// commandPrefix marks a chat command.
const commandPrefix = "/"

// Response is the result of a chat command. Commands driven by the engine
// return Notices; the rest return a Text reply (and possibly a File) for
// the channel the command came from.
type Response struct {
	Text    string
	File    *Attachment
	Notices []disposition.Notice
}

// CommandHandler processes slash commands from chat. Operator commands are
// forwarded to the Engine; everything else is administrator-only.
type CommandHandler struct {
	db     *gorm.DB
	gate   *admin.Gate
	engine *disposition.Engine
	now    func() time.Time
}

// CommandHandlerOpts holds parameters for creating a CommandHandler.
type CommandHandlerOpts struct {
	DB     *gorm.DB
	Gate   *admin.Gate
	Engine *disposition.Engine
	Now    func() time.Time // defaults to time.Now; used for export filenames
}

// NewCommandHandler creates a CommandHandler.
func NewCommandHandler(opts CommandHandlerOpts) (*CommandHandler, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("desk: command handler: db is required")
	}
	if opts.Gate == nil {
		return nil, fmt.Errorf("desk: command handler: gate is required")
	}
	if opts.Engine == nil {
		return nil, fmt.Errorf("desk: command handler: engine is required")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &CommandHandler{db: opts.DB, gate: opts.Gate, engine: opts.Engine, now: now}, nil
}

// operatorCommands map to engine events and are open to everyone.
var operatorCommands = map[string]disposition.Kind{
	"start":   disposition.KindStart,
	"line":    disposition.KindRequestAllocation,
	"newline": disposition.KindRequestReplacement,
	"cancel":  disposition.KindCancel,
}

// privateCommands may only be run in a direct conversation with the bot.
var privateCommands = map[string]bool{
	"reset": true,
	"clear": true,
}

// ownerCommands are reserved for the desk owner.
var ownerCommands = map[string]bool{
	"addadmin":    true,
	"removeadmin": true,
}

// Execute parses and runs a command string sent by msg.UserID.
func (ch *CommandHandler) Execute(ctx context.Context, msg InboundMessage) Response {
	name, args := parseCommand(msg.Text)
	if name == "" {
		return Response{}
	}

	if kind, ok := operatorCommands[name]; ok {
		out, _ := ch.engine.Handle(ctx, disposition.Event{
			OperatorID:  msg.UserID,
			DisplayName: msg.UserName,
			Kind:        kind,
		})
		return Response{Notices: out.Notices}
	}
	if name == "help" {
		return Response{Text: ch.helpText(msg.UserID)}
	}

	if ownerCommands[name] && !ch.gate.IsOwner(msg.UserID) {
		return Response{Text: "❌ Only the owner can manage admins."}
	}
	if err := ch.gate.RequireAdmin(msg.UserID); err != nil {
		if errors.Is(err, admin.ErrNotAdmin) {
			return Response{Text: "❌ Admin only!"}
		}
		log.Printf("desk: check access for %s: %v", msg.UserID, err)
		return Response{Text: "❌ Admin only!"}
	}
	if privateCommands[name] && !msg.Direct {
		return Response{Text: "⚠️ Use this in a private chat with the bot."}
	}

	switch name {
	case "stats":
		return ch.cmdStats()
	case "add":
		return ch.cmdAdd(args)
	case "reset":
		return ch.cmdReset()
	case "clear":
		return ch.cmdClear()
	case "clearrequests":
		return ch.cmdClearRequests()
	case "export_used":
		return ch.cmdExportUsed()
	case "export_unused":
		return ch.cmdExportUnused()
	case "export_all":
		return ch.cmdExportAll()
	case "export_no_answer":
		return ch.cmdExportNoAnswer()
	case "stop":
		return ch.cmdDeskStatus(models.DeskStopped)
	case "resume":
		return ch.cmdDeskStatus(models.DeskRunning)
	case "listadmins":
		return ch.cmdListAdmins()
	case "addadmin":
		return ch.cmdAddAdmin(msg.UserID, args)
	case "removeadmin":
		return ch.cmdRemoveAdmin(msg.UserID, args)
	}
	return Response{Text: fmt.Sprintf("Unknown command: `/%s`\n\n%s", name, ch.helpText(msg.UserID))}
}

// storeFailure logs err and returns the generic failure reply, so store
// internals never reach chat.
func storeFailure(what string, err error) Response {
	log.Printf("desk: %s: %v", what, err)
	return Response{Text: disposition.FailureText}
}

// isCommand returns true if the text starts with the command prefix.
func isCommand(text string) bool {
	return strings.HasPrefix(text, commandPrefix) && len(text) > len(commandPrefix)
}

// parseCommand splits "/name rest" into the lower-cased name and the raw
// remainder. Newlines in the remainder are kept for /add. A "@bot" suffix
// on the name is dropped.
func parseCommand(text string) (string, string) {
	text = strings.TrimSpace(text)
	if !isCommand(text) {
		return "", ""
	}
	text = strings.TrimPrefix(text, commandPrefix)
	name, rest := text, ""
	if i := strings.IndexAny(text, " \t\r\n"); i >= 0 {
		name, rest = text[:i], strings.TrimSpace(text[i+1:])
	}
	name, _, _ = strings.Cut(name, "@")
	return strings.ToLower(name), rest
}

func (ch *CommandHandler) cmdStats() Response {
	stats, err := queue.GetStats(ch.db)
	if err != nil {
		return storeFailure("getting stats", err)
	}
	status, err := queue.DeskStatus(ch.db)
	if err != nil {
		return storeFailure("getting desk status", err)
	}
	return Response{Text: formatStats(stats, status)}
}

func formatStats(s *queue.Stats, status string) string {
	var b strings.Builder
	b.WriteString("📊 Queue Stats:\n\n")
	fmt.Fprintf(&b, "Remaining: %d\n", s.Remaining)
	fmt.Fprintf(&b, "Used: %d\n", s.Used)
	fmt.Fprintf(&b, "  Active: %d\n", s.Active)
	fmt.Fprintf(&b, "  Completed: %d\n", s.Completed)
	fmt.Fprintf(&b, "No Answer log: %d\n", s.NoAnswer)
	fmt.Fprintf(&b, "Pending requests: %d\n", s.PendingRequests)
	fmt.Fprintf(&b, "Total: %d\n", s.Total())
	if status != "" {
		fmt.Fprintf(&b, "\nDesk: %s", status)
	}
	return b.String()
}

func (ch *CommandHandler) cmdAdd(args string) Response {
	records := queue.ParseRecords(args)
	if len(records) == 0 {
		return Response{Text: "📝 Send numbers on the lines after /add, one per line:\n\nNumber,Name,Address,Email"}
	}
	n, err := queue.Import(ch.db, records)
	if err != nil {
		return storeFailure("adding numbers", err)
	}
	if n == 0 {
		return Response{Text: "No records added."}
	}
	return Response{Text: fmt.Sprintf("✅ Added %d records!", n)}
}

func (ch *CommandHandler) cmdReset() Response {
	n, err := queue.Reset(ch.db)
	if err != nil {
		return storeFailure("resetting queue", err)
	}
	return Response{Text: fmt.Sprintf("🔄 Reset %d numbers.", n)}
}

func (ch *CommandHandler) cmdClear() Response {
	n, err := queue.Clear(ch.db)
	if err != nil {
		return storeFailure("clearing queue", err)
	}
	return Response{Text: fmt.Sprintf("🗑️ Deleted %d numbers.", n)}
}

func (ch *CommandHandler) cmdClearRequests() Response {
	n, err := queue.ClearRequests(ch.db)
	if err != nil {
		return storeFailure("clearing requests", err)
	}
	return Response{Text: fmt.Sprintf("Pending Requests Cleared\nDeleted: %d pending request(s)", n)}
}

func (ch *CommandHandler) cmdExportUsed() Response {
	items, deleted, err := archive.ExportCompleted(ch.db)
	if err != nil {
		return storeFailure("exporting used numbers", err)
	}
	if len(items) == 0 {
		return Response{Text: "No used numbers found."}
	}
	return ch.fileResponse(archive.CompletedTable(items), fmt.Sprintf("📊 Report\n✅ %d deleted", deleted))
}

func (ch *CommandHandler) cmdExportUnused() Response {
	items, err := archive.ExportUnclaimed(ch.db)
	if err != nil {
		return storeFailure("exporting unused numbers", err)
	}
	if len(items) == 0 {
		return Response{Text: "No unused numbers found."}
	}
	return ch.fileResponse(archive.UnclaimedTable(items), fmt.Sprintf("📝 Report\n✅ %d unused numbers", len(items)))
}

func (ch *CommandHandler) cmdExportAll() Response {
	items, deleted, err := archive.ExportAll(ch.db)
	if err != nil {
		return storeFailure("exporting all numbers", err)
	}
	if len(items) == 0 {
		return Response{Text: "No numbers found."}
	}
	return ch.fileResponse(archive.AllTable(items), fmt.Sprintf("📋 Report\n✅ %d deleted", deleted))
}

func (ch *CommandHandler) cmdExportNoAnswer() Response {
	recs, deleted, err := archive.ExportNoAnswerLog(ch.db)
	if err != nil {
		return storeFailure("exporting no-answer log", err)
	}
	if len(recs) == 0 {
		return Response{Text: "No 'No Answer' records found."}
	}
	return ch.fileResponse(archive.NoAnswerTable(recs), fmt.Sprintf("❌ No Answer Records\n✅ %d records exported", deleted))
}

// fileResponse renders tb as a CSV attachment. The rows are already gone
// from the store at this point, so a render failure is reported loudly.
func (ch *CommandHandler) fileResponse(tb archive.Table, caption string) Response {
	var buf bytes.Buffer
	if err := archive.WriteCSV(&buf, tb); err != nil {
		log.Printf("desk: render %s: %v", tb.Filename(ch.now()), err)
		return Response{Text: fmt.Sprintf("⚠️ Export of %d rows failed to render.", len(tb.Rows))}
	}
	return Response{
		Text: caption,
		File: &Attachment{Name: tb.Filename(ch.now()), Data: buf.Bytes()},
	}
}

func (ch *CommandHandler) cmdDeskStatus(status string) Response {
	if err := queue.SetDeskStatus(ch.db, status); err != nil {
		return storeFailure("updating desk", err)
	}
	if status == models.DeskStopped {
		return Response{Text: "⏸️ Desk stopped!\n\nUsers can't request lines now."}
	}
	return Response{Text: "▶️ Desk resumed!\n\nUsers can request lines again."}
}

func (ch *CommandHandler) cmdListAdmins() Response {
	grants, err := ch.gate.List()
	if err != nil {
		return storeFailure("listing admins", err)
	}
	var b strings.Builder
	b.WriteString("👑 Admin List\n\n")
	fmt.Fprintf(&b, "Owner:\n• ID: %s\n\n", ch.gate.Owner())
	if len(grants) == 0 {
		b.WriteString("No other admins")
		return Response{Text: b.String()}
	}
	b.WriteString("Other Admins:\n")
	for _, g := range grants {
		name := g.Username
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(&b, "• %s (ID: %s)\n", name, g.OperatorID)
	}
	return Response{Text: b.String()}
}

func (ch *CommandHandler) cmdAddAdmin(caller, args string) Response {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return Response{Text: "Usage: `/addadmin <user-id> [name]`"}
	}
	id := fields[0]
	if ch.gate.IsOwner(id) {
		return Response{Text: "❌ This user is already the owner."}
	}
	name := strings.Join(fields[1:], " ")
	if err := ch.gate.Grant(caller, id, name); err != nil {
		return storeFailure("adding admin", err)
	}
	return Response{Text: fmt.Sprintf("✅ %s is now an admin.", adminLabel(id, name))}
}

func (ch *CommandHandler) cmdRemoveAdmin(caller, args string) Response {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return Response{Text: "Usage: `/removeadmin <user-id>`"}
	}
	err := ch.gate.Revoke(caller, fields[0])
	if errors.Is(err, admin.ErrRevokeOwner) {
		return Response{Text: "❌ The owner cannot be removed."}
	}
	if err != nil {
		return storeFailure("removing admin", err)
	}
	return Response{Text: fmt.Sprintf("✅ %s is no longer an admin.", fields[0])}
}

func adminLabel(id, name string) string {
	if name == "" {
		return id
	}
	return fmt.Sprintf("%s (ID: %s)", name, id)
}

// helpText returns usage information for the commands the user may run.
func (ch *CommandHandler) helpText(userID string) string {
	var b strings.Builder
	b.WriteString("**Switchboard Commands**\n")
	b.WriteString("`/start` Register or show your agent\n")
	b.WriteString("`/line` Request a line\n")
	b.WriteString("`/newline` Ask an admin to replace your line\n")
	b.WriteString("`/cancel` Abort the current prompt\n")

	if ok, _ := ch.gate.IsAdmin(userID); !ok {
		b.WriteString("`/help` This message")
		return b.String()
	}
	b.WriteString("\n**Admin**\n")
	b.WriteString("`/stats` Queue statistics\n")
	b.WriteString("`/add` Add numbers (one per line after the command)\n")
	b.WriteString("`/reset` Return every unfinished line to the queue\n")
	b.WriteString("`/clear` Delete all numbers\n")
	b.WriteString("`/clearrequests` Drop pending line requests\n")
	b.WriteString("`/export_used` Export and delete finished lines\n")
	b.WriteString("`/export_unused` Export unclaimed lines\n")
	b.WriteString("`/export_all` Export and delete everything\n")
	b.WriteString("`/export_no_answer` Export and purge the no-answer log\n")
	b.WriteString("`/stop` `/resume` Pause or resume allocation\n")
	b.WriteString("`/listadmins` List admins\n")
	if ch.gate.IsOwner(userID) {
		b.WriteString("`/addadmin <id> [name]` `/removeadmin <id>` Manage admins\n")
	}
	b.WriteString("`/help` This message")
	return b.String()
}
