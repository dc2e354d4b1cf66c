// Package desk connects a disposition Engine to a chat platform (Discord,
// Slack). It turns inbound messages and button presses into engine events,
// runs the admin chat commands and delivers the resulting notices.
package desk

import (
	"context"
	"time"
)

// Adapter is the interface that platform-specific implementations must satisfy.
// Each adapter handles connection management and message sending/receiving
// for a single chat platform.
type Adapter interface {
	// Connect establishes a connection to the chat platform.
	Connect(ctx context.Context) error

	// Listen returns a channel of inbound messages from the platform.
	// The channel is closed when the context is cancelled or the adapter
	// is closed. Listen must only be called after Connect.
	Listen(ctx context.Context) (<-chan InboundMessage, error)

	// Send delivers an outbound message to the platform.
	Send(ctx context.Context, msg OutboundMessage) error

	// Close gracefully shuts down the adapter connection.
	Close() error
}

// InboundMessage represents a message or button press received from the
// chat platform.
type InboundMessage struct {
	Platform  string    // e.g. "slack", "discord"
	ChannelID string    // platform-specific channel identifier
	UserID    string    // platform-specific user identifier
	UserName  string    // human-readable username
	Text      string    // raw message text
	ActionID  string    // pressed button id; empty for text messages
	Direct    bool      // sent in a private conversation with the bot
	Timestamp time.Time // when the message was sent
}

// OutboundMessage represents a message to be sent to the chat platform.
// UserID selects a direct message and takes precedence over ChannelID.
type OutboundMessage struct {
	ChannelID string
	UserID    string
	Text      string     // message text (platform-native formatting)
	Buttons   []Button   // rendered as one row of buttons
	File      *Attachment
}

// Button is a clickable action attached to an outbound message. ID comes
// back verbatim as InboundMessage.ActionID.
type Button struct {
	ID    string
	Label string
}

// Attachment is a file uploaded alongside a message.
type Attachment struct {
	Name string
	Data []byte
}

// BotUserIDer is an optional interface that adapters can implement to
// expose the bot's own user ID. This enables self-message filtering.
type BotUserIDer interface {
	BotUserID() string
}
