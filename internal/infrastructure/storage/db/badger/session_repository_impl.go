package dbbadger

import (
	"context"
	"errors"

	"github.com/timshannon/badgerhold/v4"

	"github.com/joinstr-network/joinstr-daemon/internal/core/domain"
)

// ErrSessionNotFound is returned when updating a session never inserted.
var ErrSessionNotFound = errors.New("session not found")

type sessionRepositoryImpl struct {
	db *DbManager
}

// NewSessionRepositoryImpl returns a badger-backed SessionRepository.
func NewSessionRepositoryImpl(db *DbManager) domain.SessionRepository {
	return sessionRepositoryImpl{db: db}
}

func (s sessionRepositoryImpl) AddSession(
	ctx context.Context, session *domain.Session,
) error {
	return s.db.SessionStore.Insert(session.ID, *session)
}

func (s sessionRepositoryImpl) UpdateSession(
	ctx context.Context, id string,
	updateFn func(session *domain.Session) (*domain.Session, error),
) error {
	var session domain.Session
	if err := s.db.SessionStore.Get(id, &session); err != nil {
		if err == badgerhold.ErrNotFound {
			return ErrSessionNotFound
		}
		return err
	}

	updated, err := updateFn(&session)
	if err != nil {
		return err
	}

	return s.db.SessionStore.Update(id, *updated)
}

func (s sessionRepositoryImpl) GetSession(
	ctx context.Context, id string,
) (*domain.Session, error) {
	var session domain.Session
	if err := s.db.SessionStore.Get(id, &session); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

func (s sessionRepositoryImpl) GetAllSessions(
	ctx context.Context,
) ([]domain.Session, error) {
	sessions := make([]domain.Session, 0)
	if err := s.db.SessionStore.Find(&sessions, nil); err != nil {
		return nil, err
	}
	return sessions, nil
}
