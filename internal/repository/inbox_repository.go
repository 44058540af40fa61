package repository

import (
	"context"
	"errors"

	"github.com/shinyyama/rental-backend/internal/codec"
	"github.com/shinyyama/rental-backend/internal/docstore"
	"github.com/shinyyama/rental-backend/internal/model"
)

// InboxRepository reads and writes one recipient partition at a time.
type InboxRepository interface {
	Create(ctx context.Context, uid string, m model.InboxMessage) error
	Exists(ctx context.Context, uid, id string) (bool, error)
	MarkRead(ctx context.Context, uid, id string) error
	Subscribe(ctx context.Context, uid string) (*docstore.Subscription, error)
}

type inboxRepository struct {
	store docstore.Store
}

func NewInboxRepository(store docstore.Store) InboxRepository {
	return &inboxRepository{store: store}
}

func (r *inboxRepository) Create(ctx context.Context, uid string, m model.InboxMessage) error {
	if r.store == nil {
		return ErrStoreNotReady
	}
	if uid == "" || m.ID == "" {
		return errors.New("recipient and message id are required")
	}
	return r.store.Write(ctx, model.InboxMessagePath(uid, m.ID), codec.InboxMessageRecord(m))
}

func (r *inboxRepository) Exists(ctx context.Context, uid, id string) (bool, error) {
	if r.store == nil {
		return false, ErrStoreNotReady
	}
	_, err := r.store.ReadOnce(ctx, model.InboxMessagePath(uid, id))
	if errors.Is(err, docstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *inboxRepository) MarkRead(ctx context.Context, uid, id string) error {
	if r.store == nil {
		return ErrStoreNotReady
	}
	exists, err := r.Exists(ctx, uid, id)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return r.store.Write(ctx, model.InboxMessagePath(uid, id), map[string]any{"isRead": true})
}

func (r *inboxRepository) Subscribe(ctx context.Context, uid string) (*docstore.Subscription, error) {
	if r.store == nil {
		return nil, ErrStoreNotReady
	}
	return r.store.Subscribe(ctx, model.InboxPartition(uid), docstore.Predicate{})
}
