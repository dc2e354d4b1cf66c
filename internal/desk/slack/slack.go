// Package slack implements the desk Adapter for Slack using Socket Mode.
package slack

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	slackapi "github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
	"github.com/zulandar/switchboard/internal/desk"
)

const (
	// maxRetries is the max number of retries for rate-limited API calls.
	maxRetries = 3
	// baseBackoff is the initial backoff duration for reconnection.
	baseBackoff = 2 * time.Second
	// maxBackoff caps the exponential backoff for reconnection.
	maxBackoff = 2 * time.Minute
	// maxReconnectAttempts limits reconnection retries before giving up.
	maxReconnectAttempts = 10
	// buttonsPerBlock keeps each actions block to one visual row.
	buttonsPerBlock = 5
	// maxSectionText is Slack's limit for a section block's text.
	maxSectionText = 3000
)

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	AuthTest() (*slackapi.AuthTestResponse, error)
	PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error)
	OpenConversation(params *slackapi.OpenConversationParameters) (*slackapi.Channel, bool, bool, error)
	UploadFileContext(ctx context.Context, params slackapi.UploadFileParameters) (*slackapi.FileSummary, error)
	GetUserInfo(userID string) (*slackapi.User, error)
}

// socketClient abstracts the Socket Mode client methods we use.
type socketClient interface {
	Run() error
	EventsChan() chan socketmode.Event
	Ack(req socketmode.Request, payload ...interface{})
}

// realSocketClient wraps *socketmode.Client to implement socketClient.
type realSocketClient struct {
	client *socketmode.Client
}

func (r *realSocketClient) Run() error                        { return r.client.Run() }
func (r *realSocketClient) EventsChan() chan socketmode.Event { return r.client.Events }
func (r *realSocketClient) Ack(req socketmode.Request, payload ...interface{}) {
	r.client.Ack(req, payload...)
}

// Adapter implements desk.Adapter for Slack Socket Mode.
type Adapter struct {
	client       slackClient
	socket       socketClient
	botUserID    string
	appToken     string
	botToken     string
	channelID    string // default channel for messages without explicit channel
	mu           sync.Mutex
	connected    bool
	closed       bool
	inbound      chan desk.InboundMessage
	done         chan struct{}
	pushMu       sync.RWMutex
	dmChannels   map[string]string // user ID -> IM channel ID
	userNames    map[string]string
	cancelFunc   context.CancelFunc
	baseBackoff  time.Duration
	maxBackoff   time.Duration
	maxReconnect int
}

// AdapterOpts holds parameters for creating a Slack Adapter.
type AdapterOpts struct {
	AppToken  string // xapp-... Slack app-level token for Socket Mode
	BotToken  string // xoxb-... Slack bot token
	ChannelID string // default channel to post to (the desk group)
	// For testing: inject mock clients instead of real Slack API.
	Client slackClient
	Socket socketClient
}

// New creates a Slack Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}
	if opts.Socket == nil && opts.AppToken == "" {
		return nil, fmt.Errorf("slack: app token is required for socket mode")
	}

	return &Adapter{
		client:       opts.Client,
		socket:       opts.Socket,
		appToken:     opts.AppToken,
		botToken:     opts.BotToken,
		channelID:    opts.ChannelID,
		inbound:      make(chan desk.InboundMessage, 100),
		done:         make(chan struct{}),
		dmChannels:   make(map[string]string),
		userNames:    make(map[string]string),
		baseBackoff:  baseBackoff,
		maxBackoff:   maxBackoff,
		maxReconnect: maxReconnectAttempts,
	}, nil
}

// Connect authenticates the bot and prepares the Socket Mode client.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("slack: adapter already closed")
	}
	if a.connected {
		return nil
	}

	if a.client == nil {
		api := slackapi.New(a.botToken, slackapi.OptionAppLevelToken(a.appToken))
		a.client = api
		a.socket = &realSocketClient{client: socketmode.New(api)}
	}

	auth, err := a.client.AuthTest()
	if err != nil {
		return fmt.Errorf("slack: auth test: %w", err)
	}
	a.botUserID = auth.UserID

	a.connected = true
	return nil
}

// Listen returns a channel of inbound messages, slash commands and button
// presses. Starts the Socket Mode event pump in a background goroutine.
// Must be called after Connect.
func (a *Adapter) Listen(ctx context.Context) (<-chan desk.InboundMessage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return nil, fmt.Errorf("slack: not connected")
	}

	listenCtx, cancel := context.WithCancel(ctx)
	a.cancelFunc = cancel

	go a.runWithReconnect(listenCtx)
	go a.pumpEvents(listenCtx)

	return a.inbound, nil
}

// Send delivers a message to Slack. A UserID is resolved to the user's IM
// channel; buttons become an actions block and a file is uploaded into the
// same conversation.
func (a *Adapter) Send(ctx context.Context, msg desk.OutboundMessage) error {
	a.mu.Lock()
	if !a.connected {
		a.mu.Unlock()
		return fmt.Errorf("slack: not connected")
	}
	a.mu.Unlock()

	channelID := msg.ChannelID
	if msg.UserID != "" {
		im, err := a.imChannel(ctx, msg.UserID)
		if err != nil {
			return err
		}
		channelID = im
	}
	if channelID == "" {
		channelID = a.channelID
	}
	if channelID == "" {
		return fmt.Errorf("slack: no channel specified")
	}

	if msg.File != nil {
		return a.upload(ctx, channelID, msg)
	}

	options := buildMessageOptions(msg)
	err := a.retryOnRateLimit(ctx, func() error {
		_, _, postErr := a.client.PostMessage(channelID, options...)
		return postErr
	})
	if err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}

// upload sends msg.File with msg.Text as its comment.
func (a *Adapter) upload(ctx context.Context, channelID string, msg desk.OutboundMessage) error {
	err := a.retryOnRateLimit(ctx, func() error {
		_, upErr := a.client.UploadFileContext(ctx, slackapi.UploadFileParameters{
			Reader:         bytes.NewReader(msg.File.Data),
			FileSize:       len(msg.File.Data),
			Filename:       msg.File.Name,
			Title:          msg.File.Name,
			InitialComment: msg.Text,
			Channel:        channelID,
		})
		return upErr
	})
	if err != nil {
		return fmt.Errorf("slack: upload %s: %w", msg.File.Name, err)
	}
	return nil
}

// imChannel returns the cached IM channel for a user, opening it on first use.
func (a *Adapter) imChannel(ctx context.Context, userID string) (string, error) {
	a.mu.Lock()
	id, ok := a.dmChannels[userID]
	a.mu.Unlock()
	if ok {
		return id, nil
	}

	var ch *slackapi.Channel
	err := a.retryOnRateLimit(ctx, func() error {
		var apiErr error
		ch, _, _, apiErr = a.client.OpenConversation(&slackapi.OpenConversationParameters{
			Users: []string{userID},
		})
		return apiErr
	})
	if err != nil {
		return "", fmt.Errorf("slack: open im with %s: %w", userID, err)
	}

	a.mu.Lock()
	a.dmChannels[userID] = ch.ID
	a.mu.Unlock()
	return ch.ID, nil
}

// Close shuts down the adapter and closes the inbound channel.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.connected = false
	if a.cancelFunc != nil {
		a.cancelFunc()
	}
	close(a.done)
	a.pushMu.Lock()
	close(a.inbound)
	a.pushMu.Unlock()
	return nil
}

// BotUserID returns the bot's Slack user ID (available after Connect).
func (a *Adapter) BotUserID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.botUserID
}

// runWithReconnect runs the Socket Mode client and retries with exponential
// backoff when Run() returns an error.
func (a *Adapter) runWithReconnect(ctx context.Context) {
	for attempt := 0; attempt < a.maxReconnect; attempt++ {
		err := a.socket.Run()
		if err == nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		default:
		}

		wait := time.Duration(math.Pow(2, float64(attempt))) * a.baseBackoff
		if wait > a.maxBackoff {
			wait = a.maxBackoff
		}

		log.Printf("slack: socket mode disconnected (attempt %d/%d): %v, reconnecting in %v",
			attempt+1, a.maxReconnect, err, wait)

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
	log.Printf("slack: socket mode exhausted %d reconnection attempts, giving up", a.maxReconnect)
}

// pumpEvents reads Socket Mode events and converts them to InboundMessages.
func (a *Adapter) pumpEvents(ctx context.Context) {
	events := a.socket.EventsChan()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			a.handleSocketEvent(evt)
		}
	}
}

// push forwards an inbound message unless the adapter is closed.
func (a *Adapter) push(msg desk.InboundMessage) {
	a.pushMu.RLock()
	defer a.pushMu.RUnlock()
	select {
	case <-a.done:
		return
	default:
	}
	select {
	case a.inbound <- msg:
	case <-a.done:
	}
}

// handleSocketEvent processes a single Socket Mode event.
func (a *Adapter) handleSocketEvent(evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeEventsAPI:
		eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			return
		}
		a.ack(evt)
		a.handleEventsAPI(eventsAPIEvent)

	case socketmode.EventTypeInteractive:
		callback, ok := evt.Data.(slackapi.InteractionCallback)
		if !ok {
			return
		}
		a.ack(evt)
		a.handleInteraction(callback)

	case socketmode.EventTypeSlashCommand:
		cmd, ok := evt.Data.(slackapi.SlashCommand)
		if !ok {
			return
		}
		a.ack(evt)
		a.handleSlashCommand(cmd)

	case socketmode.EventTypeConnecting:
		log.Printf("slack: connecting to Socket Mode...")

	case socketmode.EventTypeConnected:
		log.Printf("slack: connected to Socket Mode")

	case socketmode.EventTypeConnectionError:
		log.Printf("slack: connection error: %v", evt.Data)

	case socketmode.EventTypeDisconnect:
		log.Printf("slack: server requested disconnect, will reconnect")
	}
}

func (a *Adapter) ack(evt socketmode.Event) {
	if evt.Request != nil {
		a.socket.Ack(*evt.Request)
	}
}

// handleEventsAPI processes Events API callbacks.
func (a *Adapter) handleEventsAPI(event slackevents.EventsAPIEvent) {
	if event.Type != slackevents.CallbackEvent {
		return
	}
	if ev, ok := event.InnerEvent.Data.(*slackevents.MessageEvent); ok {
		a.handleMessage(ev)
	}
}

// handleMessage converts a Slack message event to an InboundMessage.
func (a *Adapter) handleMessage(ev *slackevents.MessageEvent) {
	if ev.User == a.BotUserID() {
		return
	}
	// Bot messages and subtypes (edits, deletes, joins).
	if ev.BotID != "" || ev.SubType != "" {
		return
	}

	a.push(desk.InboundMessage{
		Platform:  "slack",
		ChannelID: ev.Channel,
		UserID:    ev.User,
		UserName:  a.resolveUserName(ev.User),
		Text:      ev.Text,
		Direct:    ev.ChannelType == "im",
		Timestamp: parseSlackTimestamp(ev.TimeStamp),
	})
}

// handleInteraction forwards the first action of a block_actions callback.
func (a *Adapter) handleInteraction(cb slackapi.InteractionCallback) {
	if cb.Type != slackapi.InteractionTypeBlockActions {
		return
	}
	if len(cb.ActionCallback.BlockActions) == 0 || cb.User.ID == "" {
		return
	}
	action := cb.ActionCallback.BlockActions[0]

	name := cb.User.Name
	if name == "" {
		name = a.resolveUserName(cb.User.ID)
	}
	a.push(desk.InboundMessage{
		Platform:  "slack",
		ChannelID: cb.Channel.ID,
		UserID:    cb.User.ID,
		UserName:  name,
		ActionID:  action.ActionID,
		Direct:    isIMChannel(cb.Channel.ID),
		Timestamp: time.Now(),
	})
}

// handleSlashCommand turns "/line" with its text into command text
// understood by the router.
func (a *Adapter) handleSlashCommand(cmd slackapi.SlashCommand) {
	text := cmd.Command
	if cmd.Text != "" {
		text += " " + cmd.Text
	}
	name := cmd.UserName
	if name == "" {
		name = a.resolveUserName(cmd.UserID)
	}
	a.push(desk.InboundMessage{
		Platform:  "slack",
		ChannelID: cmd.ChannelID,
		UserID:    cmd.UserID,
		UserName:  name,
		Text:      text,
		Direct:    cmd.ChannelName == "directmessage" || isIMChannel(cmd.ChannelID),
		Timestamp: time.Now(),
	})
}

// isIMChannel reports whether a conversation ID names a direct message.
func isIMChannel(id string) bool {
	return strings.HasPrefix(id, "D")
}

// resolveUserName looks up a user's display name once and caches it. Falls
// back to the user ID.
func (a *Adapter) resolveUserName(userID string) string {
	if userID == "" {
		return ""
	}
	a.mu.Lock()
	name, ok := a.userNames[userID]
	a.mu.Unlock()
	if ok {
		return name
	}

	user, err := a.client.GetUserInfo(userID)
	if err != nil {
		return userID
	}
	name = user.Profile.DisplayName
	if name == "" {
		name = user.RealName
	}
	if name == "" {
		name = userID
	}
	a.mu.Lock()
	a.userNames[userID] = name
	a.mu.Unlock()
	return name
}

// buildMessageOptions translates an OutboundMessage into Slack MsgOptions.
// Text is always sent so notifications have a fallback.
func buildMessageOptions(msg desk.OutboundMessage) []slackapi.MsgOption {
	options := []slackapi.MsgOption{slackapi.MsgOptionText(msg.Text, false)}
	if blocks := buildBlocks(msg); len(blocks) > 0 {
		options = append(options, slackapi.MsgOptionBlocks(blocks...))
	}
	return options
}

// buildBlocks renders the text as a section followed by one actions block
// per row of buttons. Messages without buttons need no blocks.
func buildBlocks(msg desk.OutboundMessage) []slackapi.Block {
	if len(msg.Buttons) == 0 {
		return nil
	}
	text := msg.Text
	if r := []rune(text); len(r) > maxSectionText {
		text = string(r[:maxSectionText-3]) + "..."
	}
	blocks := []slackapi.Block{
		slackapi.NewSectionBlock(slackapi.NewTextBlockObject(slackapi.MarkdownType, text, false, false), nil, nil),
	}
	for start := 0; start < len(msg.Buttons); start += buttonsPerBlock {
		end := min(start+buttonsPerBlock, len(msg.Buttons))
		var elements []slackapi.BlockElement
		for _, b := range msg.Buttons[start:end] {
			label := slackapi.NewTextBlockObject(slackapi.PlainTextType, b.Label, true, false)
			elements = append(elements, slackapi.NewButtonBlockElement(b.ID, b.ID, label))
		}
		blocks = append(blocks, slackapi.NewActionBlock("", elements...))
	}
	return blocks
}

// retryOnRateLimit calls fn and retries with backoff on Slack rate limit errors.
// It respects context cancellation and the RetryAfter duration from Slack.
func (a *Adapter) retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		var rle *slackapi.RateLimitedError
		if !errors.As(err, &rle) {
			return err
		}
		if attempt == maxRetries {
			return err
		}

		wait := rle.RetryAfter
		if wait <= 0 {
			wait = time.Duration(math.Pow(2, float64(attempt))) * a.baseBackoff
		}
		if wait > a.maxBackoff {
			wait = a.maxBackoff
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil
}

// parseSlackTimestamp converts a Slack timestamp (e.g., "1234567890.123456")
// to a time.Time.
func parseSlackTimestamp(ts string) time.Time {
	sec, _, _ := strings.Cut(ts, ".")
	n, err := strconv.ParseInt(sec, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(n, 0)
}
