// Package bot drives per-user reminder conversations: it interprets inbound
// text and button events against the session's conversation mode, converts
// local wall-clock times to base-clock instants and arms, lists and cancels
// reminders.
package bot

import (
	"context"
	"strings"
	"time"

	"nudge/internal/clockoffset"
	"nudge/internal/logging"
	"nudge/internal/observability"
	"nudge/internal/scheduler"
	"nudge/internal/session"
)

// Engine is the conversation state machine. One engine serves every user;
// all per-user state lives in the registry.
type Engine struct {
	registry  *session.Registry
	scheduler *scheduler.Engine
	responder Responder
	metrics   *observability.MetricsCollector
	logger    logging.Logger
	clock     func() time.Time
}

// New creates the engine. clock may be nil, in which case time.Now is used;
// the clock must produce instants in the base zone.
func New(registry *session.Registry, sched *scheduler.Engine, responder Responder, metrics *observability.MetricsCollector, logger logging.Logger, clock func() time.Time) *Engine {
	if clock == nil {
		clock = time.Now
	}
	return &Engine{
		registry:  registry,
		scheduler: sched,
		responder: responder,
		metrics:   metrics,
		logger:    logging.OrNop(logger),
		clock:     clock,
	}
}

// HandleText processes an inbound text message. The transport guarantees
// that no two events for the same user are handled concurrently.
func (e *Engine) HandleText(ctx context.Context, ev TextEvent) {
	sess := e.registry.Get(ev.User)
	text := strings.TrimSpace(ev.Text)

	// Entry command is evaluated before mode dispatch: it re-prompts for
	// the offset when none was ever set, otherwise just shows the menu and
	// leaves mode and offset untouched.
	if text == EntryCommand {
		if _, ok := sess.Offset(); ok {
			e.sendMainMenu(ctx, ev.User, sess)
			return
		}
		sess.SetMode(session.ModeAwaitingOffset)
		e.notify(ctx, ev.User, greeting(ev.Name))
		return
	}

	switch sess.Mode() {
	case session.ModeAwaitingOffset:
		offset, err := clockoffset.ParseOffset(text)
		if err != nil {
			e.notify(ctx, ev.User, msgOffsetFormatError)
			return
		}
		sess.SetOffset(offset)
		sess.SetMode(session.ModeIdle)
		e.notify(ctx, ev.User, msgOffsetSaved(offset))
		e.sendMainMenu(ctx, ev.User, sess)

	case session.ModeAwaitingText:
		if text == "" {
			e.notify(ctx, ev.User, msgEmptyReminderText)
			return
		}
		sess.SetDraft(text)
		sess.SetMode(session.ModeAwaitingTime)
		e.notify(ctx, ev.User, msgAskTime)

	case session.ModeAwaitingTime:
		e.createReminder(ctx, ev.User, sess, text)

	default:
		if _, ok := sess.Offset(); !ok {
			sess.SetMode(session.ModeAwaitingOffset)
			e.notify(ctx, ev.User, msgOffsetFirst)
			return
		}
		e.sendMainMenu(ctx, ev.User, sess)
	}
}

// HandleButton processes an inbound button press.
func (e *Engine) HandleButton(ctx context.Context, ev ButtonEvent) {
	sess := e.registry.Get(ev.User)

	// Nothing works until the offset is known; the menu action is dropped.
	if _, ok := sess.Offset(); !ok {
		sess.SetMode(session.ModeAwaitingOffset)
		e.notify(ctx, ev.User, msgOffsetFirst)
		return
	}

	switch {
	case ev.Tag == TagCreate:
		sess.SetMode(session.ModeAwaitingText)
		e.notify(ctx, ev.User, msgAskText)

	case ev.Tag == TagList:
		e.sendReminderList(ctx, ev.User, sess)
		e.sendMainMenu(ctx, ev.User, sess)

	case ev.Tag == TagDeleteAll:
		e.deleteAll(ctx, ev.User, sess)

	case ev.Tag == TagDeleteOne:
		e.sendDeleteMenu(ctx, ev.User, sess)

	case strings.HasPrefix(ev.Tag, TagDeleteSinglePrefix):
		id := strings.TrimPrefix(ev.Tag, TagDeleteSinglePrefix)
		e.deleteSingle(ctx, ev.User, sess, id)

	case ev.Tag == TagBack:
		e.sendMainMenu(ctx, ev.User, sess)

	default:
		e.logger.Debug("bot: unrecognized button tag %q from %s", ev.Tag, ev.User)
		e.sendMainMenu(ctx, ev.User, sess)
	}
}

// notify sends plain text, logging failures without unwinding anything.
func (e *Engine) notify(ctx context.Context, user session.UserID, text string) {
	if err := e.responder.Notify(ctx, user, text); err != nil {
		e.metrics.RecordNotifyFailure(ctx, string(user))
		e.logger.Warn("bot: send to %s failed: %v", user, err)
	}
}

func (e *Engine) notifyWithOptions(ctx context.Context, user session.UserID, text string, options []Option) {
	if err := e.responder.NotifyWithOptions(ctx, user, text, options); err != nil {
		e.metrics.RecordNotifyFailure(ctx, string(user))
		e.logger.Warn("bot: menu send to %s failed: %v", user, err)
	}
}
