package bot

import (
	"context"

	"nudge/internal/session"
)

// EntryCommand is the text command that (re)enters the conversation flow.
const EntryCommand = "/start"

// Button tags carried by menu options and echoed back in ButtonEvents.
const (
	TagCreate    = "create"
	TagList      = "list"
	TagDeleteAll = "delete-all"
	TagDeleteOne = "delete-one"
	TagBack      = "back"

	// TagDeleteSinglePrefix is followed by the reminder id to delete.
	TagDeleteSinglePrefix = "delete-single:"
)

// TextEvent is an inbound plain text message. Name is the sender's display
// name when the transport knows it; used only in the greeting.
type TextEvent struct {
	User session.UserID
	Name string
	Text string
}

// ButtonEvent is an inbound button press carrying the option's tag.
type ButtonEvent struct {
	User session.UserID
	Tag  string
}

// Option is one button in an outbound menu, in display order.
type Option struct {
	Label string
	Tag   string
}

// Responder is the outbound half of the transport boundary. Sends are
// fire-and-forget from the core's perspective: a failed send is logged and
// never rolls back state already committed.
type Responder interface {
	Notify(ctx context.Context, user session.UserID, text string) error
	NotifyWithOptions(ctx context.Context, user session.UserID, text string, options []Option) error
}
