package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nudge/internal/clockoffset"
	"nudge/internal/observability"
	"nudge/internal/scheduler"
	"nudge/internal/session"
)

var baseZone = time.FixedZone("MSK", 3*3600)

// baseNow is 10:00:30 on the base clock in every test unless stated.
var baseNow = time.Date(2026, time.March, 10, 10, 0, 30, 0, baseZone)

type sentMenu struct {
	Text    string
	Options []Option
}

// recordingResponder is a mutex-guarded transport double.
type recordingResponder struct {
	mu    sync.Mutex
	texts []string
	menus []sentMenu
	fail  error
}

func (r *recordingResponder) Notify(_ context.Context, _ session.UserID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.texts = append(r.texts, text)
	return nil
}

func (r *recordingResponder) NotifyWithOptions(_ context.Context, _ session.UserID, text string, options []Option) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	r.menus = append(r.menus, sentMenu{Text: text, Options: options})
	return nil
}

func (r *recordingResponder) sentTexts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts...)
}

func (r *recordingResponder) sentMenus() []sentMenu {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sentMenu(nil), r.menus...)
}

func (r *recordingResponder) lastMenu(t *testing.T) sentMenu {
	t.Helper()
	menus := r.sentMenus()
	require.NotEmpty(t, menus, "no menu was sent")
	return menus[len(menus)-1]
}

func newTestEngine(t *testing.T) (*Engine, *recordingResponder, *session.Registry) {
	t.Helper()
	metrics, err := observability.NewMetricsCollector(observability.MetricsConfig{Enabled: false})
	require.NoError(t, err)

	registry := session.NewRegistry()
	responder := &recordingResponder{}
	clock := func() time.Time { return baseNow }
	eng := New(registry, scheduler.New(clock, nil), responder, metrics, nil, clock)
	return eng, responder, registry
}

const user = session.UserID("100500")

func TestEntryCommandWithoutOffsetPromptsForOffset(t *testing.T) {
	eng, responder, registry := newTestEngine(t)

	eng.HandleText(context.Background(), TextEvent{User: user, Name: "Lena", Text: "/start"})

	require.Equal(t, session.ModeAwaitingOffset, registry.Get(user).Mode())
	texts := responder.sentTexts()
	require.Len(t, texts, 1)
	require.Contains(t, texts[0], "Lena")
	require.Contains(t, texts[0], "offset")
	require.Empty(t, responder.sentMenus(), "menu must not be shown before the offset is set")
}

func TestEntryCommandWithOffsetShowsMenuAndKeepsMode(t *testing.T) {
	eng, responder, registry := newTestEngine(t)
	sess := registry.Get(user)
	sess.SetOffset(2)
	sess.SetMode(session.ModeAwaitingTime)

	eng.HandleText(context.Background(), TextEvent{User: user, Text: "/start"})

	require.Equal(t, session.ModeAwaitingTime, sess.Mode(), "entry command must not touch the mode")
	menus := responder.sentMenus()
	require.Len(t, menus, 1)
	require.Contains(t, menus[0].Text, "0")
}

func TestOffsetParsing(t *testing.T) {
	eng, responder, registry := newTestEngine(t)
	sess := registry.Get(user)
	sess.SetMode(session.ModeAwaitingOffset)

	eng.HandleText(context.Background(), TextEvent{User: user, Text: "kaliningrad"})
	require.Equal(t, session.ModeAwaitingOffset, sess.Mode(), "bad offset must not advance the mode")
	require.Contains(t, responder.sentTexts()[0], "whole number")

	eng.HandleText(context.Background(), TextEvent{User: user, Text: "+2"})
	require.Equal(t, session.ModeIdle, sess.Mode())
	offset, ok := sess.Offset()
	require.True(t, ok)
	require.Equal(t, 2, offset)
	require.Len(t, responder.sentMenus(), 1, "main menu after offset confirmation")
}

func TestButtonWithoutOffsetOnlyPrompts(t *testing.T) {
	eng, responder, registry := newTestEngine(t)

	for _, tag := range []string{TagCreate, TagList, TagDeleteAll, TagDeleteOne, TagBack, "bogus"} {
		eng.HandleButton(context.Background(), ButtonEvent{User: user, Tag: tag})
	}

	require.Equal(t, session.ModeAwaitingOffset, registry.Get(user).Mode())
	require.Empty(t, responder.sentMenus(), "menu actions must not run before the offset is set")
	for _, text := range responder.sentTexts() {
		require.Contains(t, text, "offset")
	}
}

func TestMainMenuLayout(t *testing.T) {
	eng, responder, registry := newTestEngine(t)
	registry.Get(user).SetOffset(0)

	eng.HandleButton(context.Background(), ButtonEvent{User: user, Tag: TagBack})

	menu := responder.lastMenu(t)
	require.Len(t, menu.Options, 4)
	tags := []string{menu.Options[0].Tag, menu.Options[1].Tag, menu.Options[2].Tag, menu.Options[3].Tag}
	require.Equal(t, []string{TagCreate, TagList, TagDeleteAll, TagDeleteOne}, tags)
}

func TestUnrecognizedTagFallsBackToMenu(t *testing.T) {
	eng, responder, registry := newTestEngine(t)
	registry.Get(user).SetOffset(0)

	eng.HandleButton(context.Background(), ButtonEvent{User: user, Tag: "???"})

	require.Len(t, responder.sentMenus(), 1)
}

// createViaFlow walks the full create conversation for the given local time.
func createViaFlow(t *testing.T, eng *Engine, text, clockText string) {
	t.Helper()
	ctx := context.Background()
	eng.HandleButton(ctx, ButtonEvent{User: user, Tag: TagCreate})
	eng.HandleText(ctx, TextEvent{User: user, Text: text})
	eng.HandleText(ctx, TextEvent{User: user, Text: clockText})
}

func TestCreateReminderFlow(t *testing.T) {
	eng, responder, registry := newTestEngine(t)
	sess := registry.Get(user)
	sess.SetOffset(2)

	createViaFlow(t, eng, "call grandma", "09:00")

	require.Equal(t, session.ModeIdle, sess.Mode())
	reminders := sess.Snapshot()
	require.Len(t, reminders, 1)
	require.Equal(t, "call grandma", reminders[0].Text)

	// Local 09:00 at +2 is base 07:00, already past base now 10:00, so the
	// reminder rolls to tomorrow and still confirms as 09:00 local.
	wantAt := time.Date(2026, time.March, 11, 7, 0, 0, 0, baseZone)
	require.True(t, reminders[0].At.Equal(wantAt), "At = %s, want %s", reminders[0].At, wantAt)

	var confirmed bool
	for _, text := range responder.sentTexts() {
		if strings.Contains(text, "09:00") && strings.Contains(text, "call grandma") {
			confirmed = true
		}
	}
	require.True(t, confirmed, "confirmation with the local time was not sent: %v", responder.sentTexts())
	require.Equal(t, "", sess.TakeDraft(), "draft must be cleared after creation")
}

func TestCreateReminderSameDayNegativeOffset(t *testing.T) {
	eng, _, registry := newTestEngine(t)
	sess := registry.Get(user)
	sess.SetOffset(-3)

	// Base now is 10:00; local now is 07:00. Local 20:00 is base 23:00
	// today, still ahead, so no day roll.
	createViaFlow(t, eng, "evening run", "20:00")

	reminders := sess.Snapshot()
	require.Len(t, reminders, 1)
	wantAt := time.Date(2026, time.March, 10, 23, 0, 0, 0, baseZone)
	require.True(t, reminders[0].At.Equal(wantAt), "At = %s, want %s", reminders[0].At, wantAt)
}

func TestCreateReminderBadTimeKeepsDraftAndMode(t *testing.T) {
	eng, responder, registry := newTestEngine(t)
	sess := registry.Get(user)
	sess.SetOffset(0)

	createViaFlow(t, eng, "stretch", "25:99")

	require.Equal(t, session.ModeAwaitingTime, sess.Mode())
	require.Empty(t, sess.Snapshot())
	require.Contains(t, responder.sentTexts()[len(responder.sentTexts())-1], "HH:MM")

	// Retry with a valid time; the draft survived the failed attempt.
	eng.HandleText(context.Background(), TextEvent{User: user, Text: "12:30"})
	reminders := sess.Snapshot()
	require.Len(t, reminders, 1)
	require.Equal(t, "stretch", reminders[0].Text)
}

func TestEmptyReminderTextReprompts(t *testing.T) {
	eng, _, registry := newTestEngine(t)
	sess := registry.Get(user)
	sess.SetOffset(0)

	eng.HandleButton(context.Background(), ButtonEvent{User: user, Tag: TagCreate})
	eng.HandleText(context.Background(), TextEvent{User: user, Text: "   "})

	require.Equal(t, session.ModeAwaitingText, sess.Mode())
}

func TestListReminders(t *testing.T) {
	eng, responder, registry := newTestEngine(t)
	sess := registry.Get(user)
	sess.SetOffset(2)

	eng.HandleButton(context.Background(), ButtonEvent{User: user, Tag: TagList})
	require.Contains(t, responder.sentTexts()[0], "don't have any")

	createViaFlow(t, eng, "first", "09:00")
	createViaFlow(t, eng, "second", "18:45")
	eng.HandleButton(context.Background(), ButtonEvent{User: user, Tag: TagList})

	texts := responder.sentTexts()
	listing := texts[len(texts)-1]
	require.Contains(t, listing, "1) first (09:00)")
	require.Contains(t, listing, "2) second (18:45)")
}

func TestDeleteAllCancelsEverything(t *testing.T) {
	eng, responder, registry := newTestEngine(t)
	sess := registry.Get(user)
	sess.SetOffset(0)

	createViaFlow(t, eng, "one", "11:00")
	createViaFlow(t, eng, "two", "12:00")
	removedIDs := []string{sess.Snapshot()[0].ID, sess.Snapshot()[1].ID}

	eng.HandleButton(context.Background(), ButtonEvent{User: user, Tag: TagDeleteAll})

	require.Zero(t, sess.Len())

	// A fire that slips in after delete-all must deliver nothing.
	before := len(responder.sentTexts())
	for _, id := range removedIDs {
		eng.fireReminder(user, sess, id)
	}
	require.Len(t, responder.sentTexts(), before, "fired after delete-all")
}

func TestDeleteMenuRendering(t *testing.T) {
	eng, responder, registry := newTestEngine(t)
	sess := registry.Get(user)
	sess.SetOffset(0)

	long := strings.Repeat("remember the thing ", 3) // 57 runes
	createViaFlow(t, eng, long, "11:00")
	createViaFlow(t, eng, "short", "12:00")

	eng.HandleButton(context.Background(), ButtonEvent{User: user, Tag: TagDeleteOne})

	menu := responder.lastMenu(t)
	require.Len(t, menu.Options, 3, "one per reminder plus back")

	require.Contains(t, menu.Options[0].Label, "#1")
	require.Contains(t, menu.Options[0].Label, "...")
	require.NotContains(t, menu.Options[0].Label, long, "label must be truncated")
	require.Equal(t, TagDeleteSinglePrefix+sess.Snapshot()[0].ID, menu.Options[0].Tag)

	require.Contains(t, menu.Options[1].Label, "#2")
	require.Contains(t, menu.Options[1].Label, "short")

	require.Equal(t, TagBack, menu.Options[2].Tag)
}

func TestDeleteSingleRemovesOnlyTarget(t *testing.T) {
	eng, responder, registry := newTestEngine(t)
	sess := registry.Get(user)
	sess.SetOffset(0)

	createViaFlow(t, eng, "first", "11:00")
	createViaFlow(t, eng, "second", "12:00")
	firstID := sess.Snapshot()[0].ID

	eng.HandleButton(context.Background(), ButtonEvent{User: user, Tag: TagDeleteSinglePrefix + firstID})

	reminders := sess.Snapshot()
	require.Len(t, reminders, 1)
	require.Equal(t, "second", reminders[0].Text)

	// The cancelled reminder's fire must be a no-op.
	before := len(responder.sentTexts())
	eng.fireReminder(user, sess, firstID)
	require.Len(t, responder.sentTexts(), before)
}

func TestDeleteSingleNotFound(t *testing.T) {
	eng, responder, registry := newTestEngine(t)
	sess := registry.Get(user)
	sess.SetOffset(0)
	createViaFlow(t, eng, "keep me", "11:00")

	eng.HandleButton(context.Background(), ButtonEvent{User: user, Tag: TagDeleteSinglePrefix + "no-such-id"})

	texts := responder.sentTexts()
	require.Contains(t, texts[len(texts)-1], "Couldn't find")
	require.Equal(t, 1, sess.Len())

	// The delete menu is re-rendered after the miss.
	menu := responder.lastMenu(t)
	require.Contains(t, menu.Text, "delete")
}

func TestFireDeliversOnceAndRemoves(t *testing.T) {
	eng, responder, registry := newTestEngine(t)
	sess := registry.Get(user)
	sess.SetOffset(0)
	createViaFlow(t, eng, "take out trash", "11:00")
	id := sess.Snapshot()[0].ID

	eng.fireReminder(user, sess, id)

	require.Zero(t, sess.Len(), "fired reminder must leave the list")
	texts := responder.sentTexts()
	require.Contains(t, texts[len(texts)-1], "take out trash")

	// A second fire for the same id delivers nothing.
	before := len(responder.sentTexts())
	eng.fireReminder(user, sess, id)
	require.Len(t, responder.sentTexts(), before)
}

func TestScheduledFireEndToEnd(t *testing.T) {
	metrics, err := observability.NewMetricsCollector(observability.MetricsConfig{Enabled: false})
	require.NoError(t, err)

	registry := session.NewRegistry()
	responder := &recordingResponder{}
	botClock := func() time.Time { return baseNow }

	// The scheduler's clock sits just short of the target so the armed
	// timer fires almost immediately in real time.
	target := clockoffset.NextOccurrence(11, 0, 0, baseNow)
	schedClock := func() time.Time { return target.Add(-20 * time.Millisecond) }

	eng := New(registry, scheduler.New(schedClock, nil), responder, metrics, nil, botClock)
	sess := registry.Get(user)
	sess.SetOffset(0)

	ctx := context.Background()
	eng.HandleButton(ctx, ButtonEvent{User: user, Tag: TagCreate})
	eng.HandleText(ctx, TextEvent{User: user, Text: "stand up"})
	eng.HandleText(ctx, TextEvent{User: user, Text: "11:00"})

	require.Eventually(t, func() bool {
		if sess.Len() != 0 {
			return false
		}
		for _, text := range responder.sentTexts() {
			if strings.Contains(text, "Don't forget") && strings.Contains(text, "stand up") {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond, "reminder was not delivered and reaped")
}

func TestNotifyFailureDoesNotRollBack(t *testing.T) {
	eng, responder, registry := newTestEngine(t)
	sess := registry.Get(user)
	sess.SetOffset(0)
	createViaFlow(t, eng, "doomed send", "11:00")
	id := sess.Snapshot()[0].ID

	responder.mu.Lock()
	responder.fail = context.DeadlineExceeded
	responder.mu.Unlock()

	eng.fireReminder(user, sess, id)

	require.Zero(t, sess.Len(), "removal is authoritative even when the send fails")
}

func TestDefaultTextShowsMenuWhenIdle(t *testing.T) {
	eng, responder, registry := newTestEngine(t)
	registry.Get(user).SetOffset(0)

	eng.HandleText(context.Background(), TextEvent{User: user, Text: "hello there"})

	require.Len(t, responder.sentMenus(), 1)
}

func TestDefaultTextPromptsWhenOffsetUnset(t *testing.T) {
	eng, responder, registry := newTestEngine(t)

	eng.HandleText(context.Background(), TextEvent{User: user, Text: "hello there"})

	require.Equal(t, session.ModeAwaitingOffset, registry.Get(user).Mode())
	require.Empty(t, responder.sentMenus())
	require.Contains(t, responder.sentTexts()[0], "offset")
}
