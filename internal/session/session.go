package session

import "context"

type idKey struct{}

// WithID carries the session id of the request being processed.
func WithID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, idKey{}, sessionID)
}

// IDFrom returns the session id carried by ctx, or "" when absent.
func IDFrom(ctx context.Context) string {
	id, _ := ctx.Value(idKey{}).(string)
	return id
}

// Lock blocks until the session is free.
func (s *Session) Lock() {
	s.processing.Lock()
}

// TryAcquire attempts to acquire the processing lock.
// Returns true if acquired, false if already processing.
func (s *Session) TryAcquire() bool {
	return s.processing.TryLock()
}

// Release releases the processing lock.
func (s *Session) Release() {
	s.processing.Unlock()
}

func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

func (s *Store) Get(sessionID string) *Session {
	s.mu.RLock()

	sess, ok := s.sessions[sessionID]
	s.mu.RUnlock()

	if ok {
		return sess
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok = s.sessions[sessionID]; ok {
		return sess
	}

	sess = &Session{}
	s.sessions[sessionID] = sess

	return sess
}
