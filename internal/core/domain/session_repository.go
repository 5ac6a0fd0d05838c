package domain

import "context"

// SessionRepository persists the local history of coinjoin participations.
type SessionRepository interface {
	// AddSession inserts a new session.
	AddSession(ctx context.Context, session *Session) error
	// UpdateSession retrieves the session with the given id and commits the
	// result of the update closure in one transaction.
	UpdateSession(
		ctx context.Context, id string,
		updateFn func(s *Session) (*Session, error),
	) error
	// GetSession returns the session with the given id, or nil.
	GetSession(ctx context.Context, id string) (*Session, error)
	// GetAllSessions returns every recorded session.
	GetAllSessions(ctx context.Context) ([]Session, error)
}
