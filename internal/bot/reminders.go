package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"nudge/internal/clockoffset"
	"nudge/internal/session"
)

// createReminder finishes the creation flow: parse the "HH:MM" input,
// compute the target base instant from a single now snapshot, arm the timer
// and append the reminder. A parse failure keeps the draft and the mode so
// the user can retry.
func (e *Engine) createReminder(ctx context.Context, user session.UserID, sess *session.Session, rawTime string) {
	hour, minute, err := clockoffset.ParseClock(rawTime)
	if err != nil {
		e.notify(ctx, user, msgTimeFormatError)
		return
	}

	offset, _ := sess.Offset()
	now := e.clock()
	target := clockoffset.NextOccurrence(hour, minute, offset, now)

	text := sess.TakeDraft()
	sess.SetMode(session.ModeIdle)

	rem := &session.Reminder{
		ID:   uuid.NewString(),
		Text: text,
		At:   target,
	}
	sess.Append(rem)

	// The timer does not exist until after the append, so the reminder is
	// never listed without being removable and never fires before it is
	// visible.
	id := rem.ID
	handle := e.scheduler.Arm(id, target, func() {
		e.fireReminder(user, sess, id)
	})
	rem.Arm(handle)

	e.metrics.RecordReminderArmed(ctx, string(user))
	e.notify(ctx, user, msgReminderSet(text, clockoffset.FormatLocal(target, offset)))
	e.sendMainMenu(ctx, user, sess)
}

// fireReminder is the onFire body, run on the reminder's timer goroutine.
// Removing the reminder from the session is the claim that makes delivery
// exactly-once: if the claim fails the reminder was already deleted and
// nothing must be sent.
func (e *Engine) fireReminder(user session.UserID, sess *session.Session, id string) {
	ctx := context.Background()
	rem, ok := sess.Remove(id)
	if !ok {
		e.logger.Debug("bot: reminder %s for %s already gone at fire time", id, user)
		return
	}
	e.metrics.RecordReminderFired(ctx, string(user))
	e.logger.Info("bot: firing reminder %s for %s", id, user)

	// Removal is authoritative; a failed send is logged, never retried and
	// never re-inserts the reminder.
	e.notify(ctx, user, msgReminderFired(rem.Text))
	e.sendMainMenu(ctx, user, sess)
}

// deleteAll cancels and drops every reminder in the session. Timers are
// stopped outside the session lock; a fire that already slipped past Stop
// finds its claim gone and delivers nothing.
func (e *Engine) deleteAll(ctx context.Context, user session.UserID, sess *session.Session) {
	removed := sess.RemoveAll()
	for _, rem := range removed {
		rem.StopTimer()
		e.metrics.RecordReminderCancelled(ctx, string(user))
	}
	e.notify(ctx, user, msgAllDeleted)
	e.sendMainMenu(ctx, user, sess)
}

// deleteSingle cancels and drops one reminder by id, then re-renders the
// delete menu. An id that is no longer present (already fired or already
// deleted) is reported, not an error.
func (e *Engine) deleteSingle(ctx context.Context, user session.UserID, sess *session.Session, id string) {
	rem, ok := sess.Remove(id)
	if !ok {
		e.notify(ctx, user, msgReminderNotFound(id))
		e.sendDeleteMenu(ctx, user, sess)
		return
	}
	rem.StopTimer()
	e.metrics.RecordReminderCancelled(ctx, string(user))
	e.notify(ctx, user, msgReminderDeleted(rem.Text))
	e.sendDeleteMenu(ctx, user, sess)
}

// sendMainMenu shows the pending count and the four fixed actions.
func (e *Engine) sendMainMenu(ctx context.Context, user session.UserID, sess *session.Session) {
	e.notifyWithOptions(ctx, user, msgMainMenu(sess.Len()), []Option{
		{Label: "📌 Create reminder", Tag: TagCreate},
		{Label: "🗂 List reminders", Tag: TagList},
		{Label: "🗑 Delete all reminders", Tag: TagDeleteAll},
		{Label: "🗑 Delete one reminder", Tag: TagDeleteOne},
	})
}

// sendReminderList renders the active reminders in the user's local time,
// in insertion order.
func (e *Engine) sendReminderList(ctx context.Context, user session.UserID, sess *session.Session) {
	reminders := sess.Snapshot()
	if len(reminders) == 0 {
		e.notify(ctx, user, msgNoReminders)
		return
	}
	offset, _ := sess.Offset()

	var sb strings.Builder
	sb.WriteString("💥 Your reminders:\n\n")
	for i, rem := range reminders {
		fmt.Fprintf(&sb, "%d) %s (%s)\n", i+1, rem.Text, clockoffset.FormatLocal(rem.At, offset))
	}
	e.notify(ctx, user, sb.String())
}

// sendDeleteMenu renders one button per active reminder plus a back button.
func (e *Engine) sendDeleteMenu(ctx context.Context, user session.UserID, sess *session.Session) {
	reminders := sess.Snapshot()
	if len(reminders) == 0 {
		e.notify(ctx, user, msgNothingToDelete)
		e.sendMainMenu(ctx, user, sess)
		return
	}

	options := make([]Option, 0, len(reminders)+1)
	for i, rem := range reminders {
		options = append(options, Option{
			Label: fmt.Sprintf("Delete #%d (%s)", i+1, truncate(rem.Text, 30)),
			Tag:   TagDeleteSinglePrefix + rem.ID,
		})
	}
	options = append(options, Option{Label: "Cancel / Back", Tag: TagBack})

	e.notifyWithOptions(ctx, user, msgPickDelete, options)
}

// truncate shortens text to max runes, appending an ellipsis when cut.
func truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}
