package session

import "sync"

// Registry is the process-wide map of users to their sessions. Sessions are
// created lazily on first contact and never evicted; a process restart drops
// everything, which is the documented lifecycle.
type Registry struct {
	mu       sync.RWMutex
	sessions map[UserID]*Session

	// onCreate, when set, observes lazy session creation (metrics).
	onCreate func(UserID)
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[UserID]*Session),
	}
}

// OnCreate registers a hook invoked once per newly created session. Must be
// set before the registry is shared.
func (r *Registry) OnCreate(fn func(UserID)) {
	r.onCreate = fn
}

// Get returns the session for user, creating it on first contact.
func (r *Registry) Get(user UserID) *Session {
	r.mu.RLock()
	sess, ok := r.sessions[user]
	r.mu.RUnlock()
	if ok {
		return sess
	}

	r.mu.Lock()
	sess, ok = r.sessions[user]
	if !ok {
		sess = &Session{}
		r.sessions[user] = sess
		if r.onCreate != nil {
			r.onCreate(user)
		}
	}
	r.mu.Unlock()
	return sess
}

// Lookup returns the session for user without creating one.
func (r *Registry) Lookup(user UserID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sess, ok := r.sessions[user]
	return sess, ok
}

// Size returns the number of known sessions.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
