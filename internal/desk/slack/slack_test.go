package slack

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	slackapi "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
	"github.com/zulandar/switchboard/internal/desk"
)

// --- Mock Slack client ---

type mockSlackClient struct {
	mu        sync.Mutex
	authResp  *slackapi.AuthTestResponse
	authErr   error
	posted    []postedMessage
	postErrs  []error // consumed one per PostMessage call
	uploads   []uploadedFile
	uploadErr error
	opened    []string
	openErr   error
	users     map[string]*slackapi.User
	userCalls int
}

type postedMessage struct {
	channelID string
	options   []slackapi.MsgOption
}

type uploadedFile struct {
	channel  string
	filename string
	comment  string
	data     string
}

func newMockSlackClient() *mockSlackClient {
	return &mockSlackClient{
		authResp: &slackapi.AuthTestResponse{UserID: "U_BOT_123"},
		users:    make(map[string]*slackapi.User),
	}
}

func (m *mockSlackClient) AuthTest() (*slackapi.AuthTestResponse, error) {
	return m.authResp, m.authErr
}

func (m *mockSlackClient) PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.postErrs) > 0 {
		err := m.postErrs[0]
		m.postErrs = m.postErrs[1:]
		if err != nil {
			return "", "", err
		}
	}
	m.posted = append(m.posted, postedMessage{channelID: channelID, options: options})
	return channelID, "1234567890.123456", nil
}

func (m *mockSlackClient) OpenConversation(params *slackapi.OpenConversationParameters) (*slackapi.Channel, bool, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		return nil, false, false, m.openErr
	}
	m.opened = append(m.opened, params.Users...)
	ch := &slackapi.Channel{}
	ch.ID = "D_" + params.Users[0]
	return ch, false, false, nil
}

func (m *mockSlackClient) UploadFileContext(_ context.Context, params slackapi.UploadFileParameters) (*slackapi.FileSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploadErr != nil {
		return nil, m.uploadErr
	}
	data, _ := io.ReadAll(params.Reader)
	m.uploads = append(m.uploads, uploadedFile{
		channel:  params.Channel,
		filename: params.Filename,
		comment:  params.InitialComment,
		data:     string(data),
	})
	return &slackapi.FileSummary{ID: "F1"}, nil
}

func (m *mockSlackClient) GetUserInfo(userID string) (*slackapi.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userCalls++
	if u, ok := m.users[userID]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("user not found: %s", userID)
}

func (m *mockSlackClient) postedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.posted)
}

func (m *mockSlackClient) lastPosted() postedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.posted[len(m.posted)-1]
}

// --- Mock Socket Mode client ---

type mockSocketClient struct {
	events chan socketmode.Event
	acked  []socketmode.Request
	mu     sync.Mutex
	done   chan struct{}
}

func newMockSocketClient() *mockSocketClient {
	return &mockSocketClient{
		events: make(chan socketmode.Event, 100),
		done:   make(chan struct{}),
	}
}

func (m *mockSocketClient) Run() error {
	<-m.done
	return nil
}

func (m *mockSocketClient) EventsChan() chan socketmode.Event {
	return m.events
}

func (m *mockSocketClient) Ack(req socketmode.Request, payload ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acked = append(m.acked, req)
}

func (m *mockSocketClient) ackedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.acked)
}

// --- Helpers ---

func newTestAdapter(t *testing.T) (*Adapter, *mockSlackClient, *mockSocketClient) {
	t.Helper()
	client := newMockSlackClient()
	socket := newMockSocketClient()

	a, err := New(AdapterOpts{
		Client:    client,
		Socket:    socket,
		ChannelID: "C_GROUP",
	})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	a.baseBackoff = time.Millisecond
	a.maxBackoff = 10 * time.Millisecond

	if err := a.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() {
		a.Close()
		close(socket.done)
	})
	return a, client, socket
}

func messageEvent(ev *slackevents.MessageEvent, envelope string) socketmode.Event {
	return socketmode.Event{
		Type: socketmode.EventTypeEventsAPI,
		Data: slackevents.EventsAPIEvent{
			Type:       slackevents.CallbackEvent,
			InnerEvent: slackevents.EventsAPIInnerEvent{Data: ev},
		},
		Request: &socketmode.Request{EnvelopeID: envelope},
	}
}

func receive(t *testing.T, ch <-chan desk.InboundMessage) desk.InboundMessage {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for inbound message")
	}
	return desk.InboundMessage{}
}

// --- New / Connect ---

func TestNew_Validation(t *testing.T) {
	if _, err := New(AdapterOpts{AppToken: "xapp-test"}); err == nil {
		t.Error("expected error for missing bot token")
	}
	if _, err := New(AdapterOpts{BotToken: "xoxb-test"}); err == nil {
		t.Error("expected error for missing app token")
	}
	if _, err := New(AdapterOpts{Client: newMockSlackClient(), Socket: newMockSocketClient()}); err != nil {
		t.Errorf("mocks should satisfy New: %v", err)
	}
}

func TestConnect_Success(t *testing.T) {
	a, _, _ := newTestAdapter(t)
	if a.BotUserID() != "U_BOT_123" {
		t.Errorf("bot user ID = %q, want U_BOT_123", a.BotUserID())
	}
	if err := a.Connect(context.Background()); err != nil {
		t.Errorf("second connect should be a no-op: %v", err)
	}
}

func TestConnect_AuthError(t *testing.T) {
	client := newMockSlackClient()
	client.authErr = fmt.Errorf("invalid token")
	a, _ := New(AdapterOpts{Client: client, Socket: newMockSocketClient()})

	err := a.Connect(context.Background())
	if err == nil || !strings.Contains(err.Error(), "auth test") {
		t.Fatalf("err = %v, want auth test error", err)
	}
}

func TestConnect_AlreadyClosed(t *testing.T) {
	a, _ := New(AdapterOpts{Client: newMockSlackClient(), Socket: newMockSocketClient()})
	a.Close()
	if err := a.Connect(context.Background()); err == nil {
		t.Fatal("expected error for closed adapter")
	}
}

// --- Listen ---

func TestListen_NotConnected(t *testing.T) {
	a, _ := New(AdapterOpts{Client: newMockSlackClient(), Socket: newMockSocketClient()})
	if _, err := a.Listen(context.Background()); err == nil {
		t.Fatal("expected error for not connected")
	}
}

func TestListen_Messages(t *testing.T) {
	a, client, socket := newTestAdapter(t)
	client.users["U_ALICE"] = &slackapi.User{
		RealName: "Alice Smith",
		Profile:  slackapi.UserProfile{DisplayName: "alice"},
	}

	ch, err := a.Listen(t.Context())
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	socket.events <- messageEvent(&slackevents.MessageEvent{
		User: "U_BOT_123", Channel: "C1", Text: "self", TimeStamp: "1700000000.000001",
	}, "env-0")
	socket.events <- messageEvent(&slackevents.MessageEvent{
		User: "U_OTHER", BotID: "B1", Channel: "C1", Text: "other bot", TimeStamp: "1700000000.000002",
	}, "env-1")
	socket.events <- messageEvent(&slackevents.MessageEvent{
		User: "U_ALICE", SubType: "message_changed", Channel: "C1", Text: "edit", TimeStamp: "1700000000.000003",
	}, "env-2")
	socket.events <- messageEvent(&slackevents.MessageEvent{
		User: "U_ALICE", Channel: "D_ALICE", ChannelType: "im", Text: "Joanna", TimeStamp: "1700000001.000001",
	}, "env-3")

	msg := receive(t, ch)
	if msg.Text != "Joanna" {
		t.Fatalf("first delivered text = %q, want Joanna (filtered events leaked)", msg.Text)
	}
	if msg.Platform != "slack" || msg.UserID != "U_ALICE" || msg.ChannelID != "D_ALICE" {
		t.Errorf("msg = %+v", msg)
	}
	if !msg.Direct {
		t.Error("im channel type should be Direct")
	}
	if msg.UserName != "alice" {
		t.Errorf("UserName = %q, want alice", msg.UserName)
	}
	if !msg.Timestamp.Equal(time.Unix(1700000001, 0)) {
		t.Errorf("Timestamp = %v", msg.Timestamp)
	}
	if socket.ackedCount() != 4 {
		t.Errorf("acked = %d, want 4", socket.ackedCount())
	}
}

func TestListen_ButtonPress(t *testing.T) {
	a, _, socket := newTestAdapter(t)
	ch, _ := a.Listen(t.Context())

	cb := slackapi.InteractionCallback{
		Type: slackapi.InteractionTypeBlockActions,
		User: slackapi.User{ID: "U_BOB", Name: "bob"},
		ActionCallback: slackapi.ActionCallbacks{
			BlockActions: []*slackapi.BlockAction{{ActionID: "otp:17", Value: "otp:17"}},
		},
	}
	cb.Channel.ID = "D_BOB"
	socket.events <- socketmode.Event{
		Type:    socketmode.EventTypeInteractive,
		Data:    cb,
		Request: &socketmode.Request{EnvelopeID: "env-btn"},
	}

	msg := receive(t, ch)
	if msg.ActionID != "otp:17" {
		t.Errorf("ActionID = %q, want otp:17", msg.ActionID)
	}
	if msg.UserID != "U_BOB" || msg.UserName != "bob" {
		t.Errorf("user = %q/%q", msg.UserID, msg.UserName)
	}
	if !msg.Direct {
		t.Error("D-prefixed channel should be Direct")
	}
	if socket.ackedCount() != 1 {
		t.Errorf("acked = %d, want 1", socket.ackedCount())
	}
}

func TestHandleInteraction_Ignores(t *testing.T) {
	a, _, _ := newTestAdapter(t)

	a.handleInteraction(slackapi.InteractionCallback{Type: slackapi.InteractionTypeViewSubmission, User: slackapi.User{ID: "U1"}})
	a.handleInteraction(slackapi.InteractionCallback{Type: slackapi.InteractionTypeBlockActions, User: slackapi.User{ID: "U1"}})

	select {
	case msg := <-a.inbound:
		t.Errorf("unexpected inbound %+v", msg)
	default:
	}
}

func TestListen_SlashCommand(t *testing.T) {
	tests := []struct {
		name       string
		cmd        slackapi.SlashCommand
		wantText   string
		wantDirect bool
	}{
		{
			name:     "group command",
			cmd:      slackapi.SlashCommand{Command: "/line", UserID: "U1", UserName: "ann", ChannelID: "C_GROUP", ChannelName: "desk"},
			wantText: "/line",
		},
		{
			name:       "dm with args",
			cmd:        slackapi.SlashCommand{Command: "/add", Text: "+1 555 0100", UserID: "U1", UserName: "ann", ChannelID: "D1", ChannelName: "directmessage"},
			wantText:   "/add +1 555 0100",
			wantDirect: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _, socket := newTestAdapter(t)
			ch, _ := a.Listen(t.Context())

			socket.events <- socketmode.Event{
				Type:    socketmode.EventTypeSlashCommand,
				Data:    tt.cmd,
				Request: &socketmode.Request{EnvelopeID: "env-cmd"},
			}
			msg := receive(t, ch)
			if msg.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", msg.Text, tt.wantText)
			}
			if msg.Direct != tt.wantDirect {
				t.Errorf("Direct = %v, want %v", msg.Direct, tt.wantDirect)
			}
			if msg.UserName != "ann" {
				t.Errorf("UserName = %q", msg.UserName)
			}
		})
	}
}

func TestHandleSocketEvent_ConnectionEvents(t *testing.T) {
	a, _, _ := newTestAdapter(t)

	// These should not panic.
	a.handleSocketEvent(socketmode.Event{Type: socketmode.EventTypeConnecting})
	a.handleSocketEvent(socketmode.Event{Type: socketmode.EventTypeConnected})
	a.handleSocketEvent(socketmode.Event{Type: socketmode.EventTypeConnectionError, Data: "test error"})
	a.handleSocketEvent(socketmode.Event{Type: socketmode.EventTypeDisconnect})
	a.handleSocketEvent(socketmode.Event{Type: socketmode.EventTypeInteractive, Data: "not a callback"})
}

// --- Send ---

func TestSend_Channels(t *testing.T) {
	tests := []struct {
		name string
		msg  desk.OutboundMessage
		want string
	}{
		{"explicit channel", desk.OutboundMessage{ChannelID: "C1", Text: "hi"}, "C1"},
		{"default channel", desk.OutboundMessage{Text: "hi"}, "C_GROUP"},
		{"user wins", desk.OutboundMessage{ChannelID: "C1", UserID: "U_ANN", Text: "hi"}, "D_U_ANN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, client, _ := newTestAdapter(t)
			if err := a.Send(context.Background(), tt.msg); err != nil {
				t.Fatalf("Send: %v", err)
			}
			if got := client.lastPosted().channelID; got != tt.want {
				t.Errorf("channel = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSend_CachesIMChannel(t *testing.T) {
	a, client, _ := newTestAdapter(t)
	for i := 0; i < 3; i++ {
		if err := a.Send(context.Background(), desk.OutboundMessage{UserID: "U_ANN", Text: "x"}); err != nil {
			t.Fatal(err)
		}
	}
	if len(client.opened) != 1 {
		t.Errorf("OpenConversation calls = %d, want 1", len(client.opened))
	}
	if client.postedCount() != 3 {
		t.Errorf("posted = %d, want 3", client.postedCount())
	}
}

func TestSend_Errors(t *testing.T) {
	a, _ := New(AdapterOpts{Client: newMockSlackClient(), Socket: newMockSocketClient()})
	if err := a.Send(context.Background(), desk.OutboundMessage{ChannelID: "C1"}); err == nil {
		t.Error("expected not connected error")
	}

	a.Connect(context.Background())
	if err := a.Send(context.Background(), desk.OutboundMessage{Text: "x"}); err == nil || !strings.Contains(err.Error(), "no channel") {
		t.Errorf("err = %v, want no channel", err)
	}

	b, client, _ := newTestAdapter(t)
	client.openErr = fmt.Errorf("user_not_found")
	if err := b.Send(context.Background(), desk.OutboundMessage{UserID: "U_GONE", Text: "x"}); err == nil || !strings.Contains(err.Error(), "open im") {
		t.Errorf("err = %v, want open im error", err)
	}

	client.postErrs = []error{fmt.Errorf("channel_not_found")}
	if err := b.Send(context.Background(), desk.OutboundMessage{ChannelID: "C1", Text: "x"}); err == nil || !strings.Contains(err.Error(), "post message") {
		t.Errorf("err = %v, want post message error", err)
	}
}

func TestSend_UploadsFile(t *testing.T) {
	a, client, _ := newTestAdapter(t)
	err := a.Send(context.Background(), desk.OutboundMessage{
		UserID: "U_ADMIN",
		Text:   "📊 Report\n✅ 2 deleted",
		File:   &desk.Attachment{Name: "used_numbers.csv", Data: []byte("a,b\n")},
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if client.postedCount() != 0 {
		t.Errorf("file messages should not also post text, got %d posts", client.postedCount())
	}
	if len(client.uploads) != 1 {
		t.Fatalf("uploads = %d, want 1", len(client.uploads))
	}
	up := client.uploads[0]
	if up.channel != "D_U_ADMIN" || up.filename != "used_numbers.csv" || up.data != "a,b\n" {
		t.Errorf("upload = %+v", up)
	}
	if !strings.Contains(up.comment, "2 deleted") {
		t.Errorf("comment = %q", up.comment)
	}

	client.uploadErr = fmt.Errorf("too_large")
	err = a.Send(context.Background(), desk.OutboundMessage{
		ChannelID: "C1",
		File:      &desk.Attachment{Name: "x.csv"},
	})
	if err == nil || !strings.Contains(err.Error(), "upload x.csv") {
		t.Errorf("err = %v, want upload error", err)
	}
}

func TestSend_RetriesOnRateLimit(t *testing.T) {
	a, client, _ := newTestAdapter(t)
	client.postErrs = []error{
		&slackapi.RateLimitedError{RetryAfter: time.Millisecond},
		&slackapi.RateLimitedError{RetryAfter: time.Millisecond},
	}
	if err := a.Send(context.Background(), desk.OutboundMessage{ChannelID: "C1", Text: "hello"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.postedCount() != 1 {
		t.Errorf("posted = %d, want 1", client.postedCount())
	}
}

// --- Close ---

func TestClose_Idempotent(t *testing.T) {
	a, _, _ := newTestAdapter(t)
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second close should not error: %v", err)
	}
	if _, ok := <-a.inbound; ok {
		t.Error("inbound should be closed")
	}
	// Pushing after close must not panic.
	a.push(desk.InboundMessage{Text: "late"})
}

// --- Message building ---

func TestBuildMessageOptions(t *testing.T) {
	if got := len(buildMessageOptions(desk.OutboundMessage{Text: "hello"})); got != 1 {
		t.Errorf("text only: %d options, want 1", got)
	}
	withButtons := desk.OutboundMessage{Text: "pick", Buttons: []desk.Button{{ID: "ok:1", Label: "OK"}}}
	if got := len(buildMessageOptions(withButtons)); got != 2 {
		t.Errorf("with buttons: %d options, want 2", got)
	}
}

func TestBuildBlocks(t *testing.T) {
	if blocks := buildBlocks(desk.OutboundMessage{Text: "plain"}); blocks != nil {
		t.Errorf("plain text should have no blocks, got %d", len(blocks))
	}

	var buttons []desk.Button
	for i := 0; i < 7; i++ {
		buttons = append(buttons, desk.Button{ID: fmt.Sprintf("b:%d", i), Label: fmt.Sprintf("B%d", i)})
	}
	blocks := buildBlocks(desk.OutboundMessage{Text: strings.Repeat("x", 4000), Buttons: buttons})
	if len(blocks) != 3 {
		t.Fatalf("blocks = %d, want section + 2 action rows", len(blocks))
	}

	section, ok := blocks[0].(*slackapi.SectionBlock)
	if !ok {
		t.Fatalf("blocks[0] = %T, want *SectionBlock", blocks[0])
	}
	if n := len([]rune(section.Text.Text)); n != maxSectionText {
		t.Errorf("section text length = %d, want %d", n, maxSectionText)
	}

	row1 := blocks[1].(*slackapi.ActionBlock)
	row2 := blocks[2].(*slackapi.ActionBlock)
	if len(row1.Elements.ElementSet) != 5 || len(row2.Elements.ElementSet) != 2 {
		t.Errorf("rows = %d/%d, want 5/2", len(row1.Elements.ElementSet), len(row2.Elements.ElementSet))
	}
	btn, ok := row2.Elements.ElementSet[1].(*slackapi.ButtonBlockElement)
	if !ok {
		t.Fatalf("element = %T", row2.Elements.ElementSet[1])
	}
	if btn.ActionID != "b:6" || btn.Text.Text != "B6" {
		t.Errorf("button = %q/%q", btn.ActionID, btn.Text.Text)
	}
}

// --- Helpers ---

func TestParseSlackTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"1700000000.123456", time.Unix(1700000000, 0)},
		{"1700000000", time.Unix(1700000000, 0)},
		{"", time.Time{}},
		{"garbage", time.Time{}},
	}
	for _, tt := range tests {
		if got := parseSlackTimestamp(tt.in); !got.Equal(tt.want) {
			t.Errorf("parseSlackTimestamp(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestResolveUserName(t *testing.T) {
	a, client, _ := newTestAdapter(t)
	client.users["U1"] = &slackapi.User{RealName: "Real One"}
	client.users["U2"] = &slackapi.User{RealName: "Real Two", Profile: slackapi.UserProfile{DisplayName: "two"}}

	tests := []struct {
		id   string
		want string
	}{
		{"U1", "Real One"},
		{"U2", "two"},
		{"U_MISSING", "U_MISSING"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := a.resolveUserName(tt.id); got != tt.want {
			t.Errorf("resolveUserName(%q) = %q, want %q", tt.id, got, tt.want)
		}
	}

	calls := client.userCalls
	a.resolveUserName("U2")
	if client.userCalls != calls {
		t.Error("resolved names should be cached")
	}
}

func TestRetryOnRateLimit(t *testing.T) {
	a, _, _ := newTestAdapter(t)

	calls := 0
	err := a.retryOnRateLimit(context.Background(), func() error {
		calls++
		return fmt.Errorf("not rate limited")
	})
	if err == nil || calls != 1 {
		t.Errorf("non rate-limit error: calls = %d, err = %v", calls, err)
	}

	calls = 0
	err = a.retryOnRateLimit(context.Background(), func() error {
		calls++
		return &slackapi.RateLimitedError{RetryAfter: 0}
	})
	if err == nil || calls != maxRetries+1 {
		t.Errorf("exhausted: calls = %d, err = %v", calls, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = a.retryOnRateLimit(ctx, func() error {
		return &slackapi.RateLimitedError{RetryAfter: time.Second}
	})
	if err != context.Canceled {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

// --- runWithReconnect ---

// failingSocketClient fails Run() a specified number of times before succeeding.
type failingSocketClient struct {
	mu        sync.Mutex
	runCalls  int
	failCount int
	events    chan socketmode.Event
}

func (f *failingSocketClient) Run() error {
	f.mu.Lock()
	f.runCalls++
	n := f.runCalls
	f.mu.Unlock()
	if n <= f.failCount {
		return fmt.Errorf("connection failed (attempt %d)", n)
	}
	return nil
}

func (f *failingSocketClient) EventsChan() chan socketmode.Event { return f.events }

func (f *failingSocketClient) Ack(req socketmode.Request, payload ...interface{}) {}

func TestRunWithReconnect_RetriesOnError(t *testing.T) {
	socket := &failingSocketClient{failCount: 2, events: make(chan socketmode.Event)}
	a, _ := New(AdapterOpts{Client: newMockSlackClient(), Socket: socket})
	a.baseBackoff = time.Millisecond
	a.maxBackoff = 10 * time.Millisecond

	done := make(chan struct{})
	go func() {
		a.runWithReconnect(t.Context())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timeout: runWithReconnect should finish after retries succeed")
	}
	if socket.runCalls != 3 {
		t.Errorf("Run() calls = %d, want 3", socket.runCalls)
	}
}

func TestRunWithReconnect_StopsOnContextCancel(t *testing.T) {
	socket := &failingSocketClient{failCount: 100, events: make(chan socketmode.Event)}
	a, _ := New(AdapterOpts{Client: newMockSlackClient(), Socket: socket})
	a.baseBackoff = 50 * time.Millisecond
	a.maxBackoff = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.runWithReconnect(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timeout: runWithReconnect should stop on context cancel")
	}
}

var (
	_ desk.Adapter     = (*Adapter)(nil)
	_ desk.BotUserIDer = (*Adapter)(nil)
	_ slackClient      = (*slackapi.Client)(nil)
	_ slackClient      = (*mockSlackClient)(nil)
)
