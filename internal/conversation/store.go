package conversation

import "sync"

type session struct {
	mu    sync.Mutex
	state State
}

// sessionStore keeps one session per user. The store lock only guards the
// map; each session has its own lock held for a whole event.
type sessionStore struct {
	mu       sync.Mutex
	sessions map[int64]*session
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[int64]*session)}
}

// lock returns the user's session locked; the caller must unlock it.
func (s *sessionStore) lock(userID int64) *session {
	s.mu.Lock()
	sess, ok := s.sessions[userID]
	if !ok {
		sess = &session{state: Idle{}}
		s.sessions[userID] = sess
	}
	s.mu.Unlock()

	sess.mu.Lock()
	return sess
}

// get returns the user's current state without creating a session.
func (s *sessionStore) get(userID int64) State {
	s.mu.Lock()
	sess, ok := s.sessions[userID]
	s.mu.Unlock()
	if !ok {
		return Idle{}
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.state
}
