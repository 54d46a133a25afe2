// Package notify provides the chat notification layer for ConnectID.
//
// It defines a pluggable Notifier abstraction over the Telegram Bot API,
// message templates for the distress lifecycle, and the inline-keyboard
// controls attached to bot messages.
package notify

import "context"

// Control is one inline button rendered under a bot message. Data is the
// callback payload routed back through the bot webhook when pressed.
type Control struct {
	Label string
	Data  string
}

// ControlRow is one row of inline buttons.
type ControlRow []Control

// Notifier defines the message delivery operations consumed by the
// dispatch controller and the onboarding flow.
type Notifier interface {
	// SendToResponder sends a message to a responder's chat and returns the
	// message id for later edits.
	SendToResponder(ctx context.Context, chatID int64, text string, controls []ControlRow) (int, error)

	// SendToDispatchChannel sends a message to the dispatcher group chat and
	// returns the message id.
	SendToDispatchChannel(ctx context.Context, text string, controls []ControlRow) (int, error)

	// EditMessage rewrites an existing message in place.
	EditMessage(ctx context.Context, chatID int64, messageID int, text string, controls []ControlRow) error

	// DeleteMessage removes a message from a chat.
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error

	// SendLocationRequest sends a message with a reply keyboard asking the
	// responder to share their location.
	SendLocationRequest(ctx context.Context, chatID int64, text string) (int, error)

	// DispatchChannelID returns the dispatcher group chat id.
	DispatchChannelID() int64
}
