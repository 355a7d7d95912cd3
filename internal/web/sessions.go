package web

import (
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/bdelforge/verba-chat/internal/session"
)

const sessionCookie = "verba_chat_session"

// SessionRegistry maps browser cookies to their chat sessions. The registry
// itself is guarded; each session is only touched by one in-flight request at
// a time (one interaction per page, processed to completion).
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*session.Session
	welcome  string
}

// NewSessionRegistry creates a registry. welcome, when non-empty, seeds every
// new session with a transient greeting turn.
func NewSessionRegistry(welcome string) *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*session.Session),
		welcome:  welcome,
	}
}

// Get returns the session for the request's cookie, creating both when
// missing. The cookie is set on the response for new sessions.
func (r *SessionRegistry) Get(w http.ResponseWriter, req *http.Request) *session.Session {
	var id string
	if c, err := req.Cookie(sessionCookie); err == nil && c.Value != "" {
		id = c.Value
	} else {
		id = uuid.New().String()
		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookie,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
		})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		s = session.New()
		if r.welcome != "" {
			s.AppendTransient(session.RoleSystem, r.welcome)
		}
		r.sessions[id] = s
	}
	return s
}
