package memory

import (
	"context"
	"sync"
	"tus-upload/internal/core/domain"
	"tus-upload/internal/core/port"
)

type unitOfWork struct {
	store *Store
	txMu  *sync.Mutex
	repo  *uploadSessionRepository
}

// NewUnitOfWork creates a unit of work over store. Transactions are serialized and rolled back
// by restoring the keys they wrote.
func NewUnitOfWork(store *Store) port.UnitOfWork {
	return &unitOfWork{store: store, txMu: &sync.Mutex{}, repo: &uploadSessionRepository{store: store}}
}

func (u *unitOfWork) UploadSessionRepo() port.UploadSessionRepository {
	return u.repo
}

func (u *unitOfWork) Execute(ctx context.Context, fn func(uow port.UnitOfWork) error) error {
	u.txMu.Lock()
	defer u.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	txRepo := &uploadSessionRepository{store: u.store, journal: make(map[string]*domain.UploadSession)}
	tx := &unitOfWork{store: u.store, txMu: u.txMu, repo: txRepo}

	defer func() {
		if r := recover(); r != nil {
			txRepo.rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		txRepo.rollback()
		return err
	}
	return nil
}
