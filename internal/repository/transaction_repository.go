package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/shinyyama/rental-backend/internal/codec"
	"github.com/shinyyama/rental-backend/internal/docstore"
	"github.com/shinyyama/rental-backend/internal/model"
)

var ErrNotFound = docstore.ErrNotFound
var ErrStoreNotReady = errors.New("document store not initialized")

// ErrStatusConflict means the stored status changed since it was read.
var ErrStatusConflict = errors.New("transaction status changed concurrently")

type TransactionRepository interface {
	Create(ctx context.Context, tx model.Transaction) error
	FindByID(ctx context.Context, id string) (*model.Transaction, error)
	// UpdateStatus writes to only if the stored status is still from.
	UpdateStatus(ctx context.Context, id string, from, to model.RequestStatus) error
	SubscribeByOwner(ctx context.Context, uid string) (*docstore.Subscription, error)
	SubscribeByBorrower(ctx context.Context, uid string) (*docstore.Subscription, error)
}

type transactionRepository struct {
	store docstore.Store
}

func NewTransactionRepository(store docstore.Store) TransactionRepository {
	return &transactionRepository{store: store}
}

func (r *transactionRepository) Create(ctx context.Context, tx model.Transaction) error {
	if r.store == nil {
		return ErrStoreNotReady
	}
	return r.store.Write(ctx, model.TransactionPath(tx.ID), codec.TransactionRecord(tx))
}

func (r *transactionRepository) FindByID(ctx context.Context, id string) (*model.Transaction, error) {
	if r.store == nil {
		return nil, ErrStoreNotReady
	}
	rec, err := r.store.ReadOnce(ctx, model.TransactionPath(id))
	if err != nil {
		return nil, err
	}
	tx, err := codec.ParseTransaction(id, rec)
	if err != nil {
		return nil, fmt.Errorf("transaction %s: %w", id, err)
	}
	return &tx, nil
}

func (r *transactionRepository) UpdateStatus(ctx context.Context, id string, from, to model.RequestStatus) error {
	if r.store == nil {
		return ErrStoreNotReady
	}
	return r.store.Update(ctx, model.TransactionPath(id), func(cur map[string]any) (map[string]any, error) {
		if got, _ := cur["requestStatus"].(string); got != string(from) {
			return nil, fmt.Errorf("%w: %s is %q, expected %q", ErrStatusConflict, id, got, from)
		}
		return map[string]any{"requestStatus": string(to)}, nil
	})
}

func (r *transactionRepository) SubscribeByOwner(ctx context.Context, uid string) (*docstore.Subscription, error) {
	return r.subscribe(ctx, "ownerId", uid)
}

func (r *transactionRepository) SubscribeByBorrower(ctx context.Context, uid string) (*docstore.Subscription, error) {
	return r.subscribe(ctx, "borrowerId", uid)
}

func (r *transactionRepository) subscribe(ctx context.Context, field, uid string) (*docstore.Subscription, error) {
	if r.store == nil {
		return nil, ErrStoreNotReady
	}
	return r.store.Subscribe(ctx, model.CollectionTransactions, docstore.Predicate{Field: field, Value: uid})
}
