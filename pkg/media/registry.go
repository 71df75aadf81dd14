package media

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type MemoryRegistry struct {
	logger zerolog.Logger

	sessions   map[string]Session
	sessionsMu sync.RWMutex
}

func NewRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		logger:   log.With().Str("module", "media").Str("submodule", "registry").Logger(),
		sessions: map[string]Session{},
	}
}

func (r *MemoryRegistry) LookupSession(name string) (Session, bool) {
	r.sessionsMu.RLock()
	defer r.sessionsMu.RUnlock()

	session, ok := r.sessions[name]
	return session, ok
}

// Add registers session under its name, replacing and closing any previous one.
func (r *MemoryRegistry) Add(session Session) {
	r.sessionsMu.Lock()
	old, ok := r.sessions[session.Name()]
	r.sessions[session.Name()] = session
	r.sessionsMu.Unlock()

	if ok && old != session {
		r.closeSession(old)
	}

	r.logger.Info().Str("session", session.Name()).Msg("session registered")
}

func (r *MemoryRegistry) Remove(name string) {
	r.sessionsMu.Lock()
	session, ok := r.sessions[name]
	delete(r.sessions, name)
	r.sessionsMu.Unlock()

	if ok {
		r.closeSession(session)
		r.logger.Info().Str("session", name).Msg("session removed")
	}
}

func (r *MemoryRegistry) Names() []string {
	r.sessionsMu.RLock()
	defer r.sessionsMu.RUnlock()

	names := make([]string, 0, len(r.sessions))
	for name := range r.sessions {
		names = append(names, name)
	}

	sort.Strings(names)
	return names
}

// Close removes and closes all sessions.
func (r *MemoryRegistry) Close() {
	r.sessionsMu.Lock()
	sessions := r.sessions
	r.sessions = map[string]Session{}
	r.sessionsMu.Unlock()

	for _, session := range sessions {
		r.closeSession(session)
	}
}

func (r *MemoryRegistry) closeSession(session Session) {
	if err := session.Close(); err != nil {
		r.logger.Warn().Err(err).Str("session", session.Name()).Msg("unable to close session")
	}
}
