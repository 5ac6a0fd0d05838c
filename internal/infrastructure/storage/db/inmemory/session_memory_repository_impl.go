package inmemory

import (
	"context"
	"errors"
	"sync"

	"github.com/joinstr-network/joinstr-daemon/internal/core/domain"
)

// ErrSessionNotFound is returned when updating a session never inserted.
var ErrSessionNotFound = errors.New("session not found")

type sessionInmemoryStore struct {
	sessions map[string]*domain.Session
	order    []string
	locker   *sync.Mutex
}

type sessionRepositoryImpl struct {
	store *sessionInmemoryStore
}

// NewSessionRepositoryImpl returns a new inmemory SessionRepository
// implementation.
func NewSessionRepositoryImpl() domain.SessionRepository {
	return &sessionRepositoryImpl{
		store: &sessionInmemoryStore{
			sessions: map[string]*domain.Session{},
			locker:   &sync.Mutex{},
		},
	}
}

func (r sessionRepositoryImpl) AddSession(
	_ context.Context, session *domain.Session,
) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	if _, ok := r.store.sessions[session.ID]; ok {
		return errors.New("session already exists")
	}
	r.store.sessions[session.ID] = session
	r.store.order = append(r.store.order, session.ID)
	return nil
}

func (r sessionRepositoryImpl) UpdateSession(
	_ context.Context, id string,
	updateFn func(s *domain.Session) (*domain.Session, error),
) error {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	session, ok := r.store.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	updated, err := updateFn(session)
	if err != nil {
		return err
	}
	r.store.sessions[id] = updated
	return nil
}

func (r sessionRepositoryImpl) GetSession(
	_ context.Context, id string,
) (*domain.Session, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	session, ok := r.store.sessions[id]
	if !ok {
		return nil, nil
	}
	return session, nil
}

func (r sessionRepositoryImpl) GetAllSessions(
	_ context.Context,
) ([]domain.Session, error) {
	r.store.locker.Lock()
	defer r.store.locker.Unlock()

	sessions := make([]domain.Session, 0, len(r.store.order))
	for _, id := range r.store.order {
		sessions = append(sessions, *r.store.sessions[id])
	}
	return sessions, nil
}
