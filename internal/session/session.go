// Package session holds per-user conversational and scheduling state. A
// session lives for the whole process; nothing is persisted or evicted.
package session

import (
	"sync"
	"time"
)

// UserID is the opaque stable identifier for a conversation participant.
// The transport renders its own chat identifiers into it.
type UserID string

// Mode is the conversation mode a user is currently in. Exactly one mode is
// active per user at any time.
type Mode int

const (
	ModeIdle Mode = iota
	ModeAwaitingOffset
	ModeAwaitingText
	ModeAwaitingTime
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeAwaitingOffset:
		return "awaiting_offset"
	case ModeAwaitingText:
		return "awaiting_text"
	case ModeAwaitingTime:
		return "awaiting_time"
	default:
		return "unknown"
	}
}

// CancelHandle revokes a pending delayed execution. Stop reports whether the
// execution was prevented from starting; a false return means the fire won
// the race and is (or was) already running.
type CancelHandle interface {
	Stop() bool
}

// Reminder is one scheduled item. The armed handle is exclusively owned by
// the reminder and is nil once the reminder has fired or been cancelled;
// every reminder present in a session's list is pending.
type Reminder struct {
	ID    string
	Text  string
	At    time.Time // base-clock instant the reminder fires at
	armed CancelHandle
}

// Arm attaches the live delayed execution to the reminder.
func (r *Reminder) Arm(handle CancelHandle) {
	r.armed = handle
}

// StopTimer revokes the armed execution if one is still attached and reports
// whether a pending fire was actually prevented.
func (r *Reminder) StopTimer() bool {
	if r.armed == nil {
		return false
	}
	stopped := r.armed.Stop()
	r.armed = nil
	return stopped
}

// Session is the per-user state: conversation mode, clock offset, the
// in-progress reminder draft and the active reminder list.
//
// A timer firing for a user can race a conversation event for the same user,
// so every mutation goes through the session mutex. Different sessions are
// fully independent; no lock spans more than one session.
type Session struct {
	mu        sync.Mutex
	mode      Mode
	offset    int
	offsetSet bool
	draft     string
	reminders []*Reminder
}

// Mode returns the current conversation mode.
func (s *Session) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetMode transitions the conversation mode.
func (s *Session) SetMode(mode Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mode = mode
}

// Offset returns the user's clock offset and whether it has ever been set.
func (s *Session) Offset() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offset, s.offsetSet
}

// SetOffset stores the user's clock offset. The offset is treated as
// immutable for the user's lifetime; nothing in the flow resets it.
func (s *Session) SetOffset(hours int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offset = hours
	s.offsetSet = true
}

// SetDraft stores the reminder text held between the text and time prompts.
func (s *Session) SetDraft(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = text
}

// TakeDraft returns the draft text and clears it.
func (s *Session) TakeDraft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	draft := s.draft
	s.draft = ""
	return draft
}

// Append adds a reminder to the end of the active list. Insertion order is
// display order.
func (s *Session) Append(r *Reminder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reminders = append(s.reminders, r)
}

// Remove takes the reminder with the given id out of the active list. It is
// the single authority both the fire path and the cancel path go through:
// whichever caller gets the reminder back owns its one remaining effect, so
// a reminder can never be delivered twice or be delivered after deletion.
func (s *Session) Remove(id string) (*Reminder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.reminders {
		if r.ID == id {
			s.reminders = append(s.reminders[:i], s.reminders[i+1:]...)
			return r, true
		}
	}
	return nil, false
}

// RemoveAll empties the active list and returns what it held so the caller
// can stop every timer outside the lock.
func (s *Session) RemoveAll() []*Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := s.reminders
	s.reminders = nil
	return removed
}

// Snapshot returns a copy of the active list for rendering.
func (s *Session) Snapshot() []*Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Reminder, len(s.reminders))
	copy(out, s.reminders)
	return out
}

// Len returns the number of pending reminders.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reminders)
}
