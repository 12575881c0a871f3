package session

import "sync"

// Store is the in-memory session history. Sessions are appended as soon as
// they are produced and may be read concurrently while a batch is running.
type Store struct {
	mu       sync.RWMutex
	sessions []*Session
	byID     map[string]*Session
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{byID: make(map[string]*Session)}
}

// Publish appends s to the history. A session with an id already present is ignored.
func (st *Store) Publish(s *Session) {
	if s == nil {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, exists := st.byID[s.ID]; exists {
		return
	}
	stored := s.Clone()
	st.sessions = append(st.sessions, stored)
	st.byID[stored.ID] = stored
}

// AttachAnalysis sets the analysis of the session with the given id. It
// reports false when the id is unknown, the text is empty or an analysis was
// already attached.
func (st *Store) AttachAnalysis(id, analysis string) bool {
	if analysis == "" {
		return false
	}
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.byID[id]
	if !ok || s.Analysis != "" {
		return false
	}
	s.Analysis = analysis
	return true
}

// Get returns a copy of the session with the given id.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	s, ok := st.byID[id]
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// List returns copies of all sessions, newest first.
func (st *Store) List() []*Session {
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := make([]*Session, 0, len(st.sessions))
	for i := len(st.sessions) - 1; i >= 0; i-- {
		out = append(out, st.sessions[i].Clone())
	}
	return out
}

// Delete removes a session from the history.
func (st *Store) Delete(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()

	if _, ok := st.byID[id]; !ok {
		return false
	}
	delete(st.byID, id)
	for i, s := range st.sessions {
		if s.ID == id {
			st.sessions = append(st.sessions[:i], st.sessions[i+1:]...)
			break
		}
	}
	return true
}

// Len returns the number of sessions held.
func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
