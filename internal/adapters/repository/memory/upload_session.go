package memory

import (
	"context"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"
	"tus-upload/internal/core/domain"
	"tus-upload/internal/core/port"
)

// Store holds upload sessions in process memory
type Store struct {
	mu       sync.RWMutex
	sessions map[string]domain.UploadSession
}

// NewStore creates an empty Store
func NewStore() *Store {
	return &Store{sessions: make(map[string]domain.UploadSession)}
}

type uploadSessionRepository struct {
	store *Store
	// journal records the value of every key before its first write inside a transaction
	journal map[string]*domain.UploadSession
}

// NewUploadSessionRepository creates a repository over store
func NewUploadSessionRepository(store *Store) port.UploadSessionRepository {
	return &uploadSessionRepository{store: store}
}

func clone(s domain.UploadSession) domain.UploadSession {
	s.Metadata = maps.Clone(s.Metadata)
	if s.DigestState != nil {
		s.DigestState = append([]byte(nil), s.DigestState...)
	}
	return s
}

func (r *uploadSessionRepository) remember(id string) {
	if r.journal == nil {
		return
	}
	if _, seen := r.journal[id]; seen {
		return
	}
	if prev, ok := r.store.sessions[id]; ok {
		prev = clone(prev)
		r.journal[id] = &prev
		return
	}
	r.journal[id] = nil
}

func (r *uploadSessionRepository) Create(_ context.Context, session domain.UploadSession) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, exists := r.store.sessions[session.ID]; exists {
		return fmt.Errorf("upload session %s: %w", session.ID, domain.ErrAlreadyExists)
	}
	r.remember(session.ID)
	r.store.sessions[session.ID] = clone(session)
	return nil
}

func (r *uploadSessionRepository) FindByID(_ context.Context, id string) (*domain.UploadSession, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	session, ok := r.store.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	session = clone(session)
	return &session, nil
}

func (r *uploadSessionRepository) Update(_ context.Context, session domain.UploadSession, expectedOffset int64) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	current, ok := r.store.sessions[session.ID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if current.Offset != expectedOffset || current.State != domain.UploadSessionStateOpen {
		return fmt.Errorf("%w: stored offset is %d", domain.ErrOffsetConflict, current.Offset)
	}
	r.remember(session.ID)
	r.store.sessions[session.ID] = clone(session)
	return nil
}

func (r *uploadSessionRepository) Delete(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, ok := r.store.sessions[id]; !ok {
		return nil
	}
	r.remember(id)
	delete(r.store.sessions, id)
	return nil
}

func (r *uploadSessionRepository) FindExpired(_ context.Context, now time.Time) ([]domain.UploadSession, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var sessions []domain.UploadSession
	for _, session := range r.store.sessions {
		if session.Expired(now) {
			sessions = append(sessions, clone(session))
		}
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ExpiresAt.Before(sessions[j].ExpiresAt) })
	return sessions, nil
}

// rollback restores every key touched through this repository
func (r *uploadSessionRepository) rollback() {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	for id, prev := range r.journal {
		if prev == nil {
			delete(r.store.sessions, id)
			continue
		}
		r.store.sessions[id] = *prev
	}
}
