package docstore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Firestore adapts a Firestore client to Store. Snapshot listeners are run by
// one goroutine per subscription.
type Firestore struct {
	client *firestore.Client
}

func NewFirestore(client *firestore.Client) *Firestore {
	return &Firestore{client: client}
}

func (f *Firestore) Subscribe(ctx context.Context, collection string, p Predicate) (*Subscription, error) {
	coll := f.client.Collection(collection)
	if coll == nil {
		return nil, ErrInvalidPath
	}
	q := coll.Query
	if p.Field != "" {
		q = q.Where(p.Field, "==", p.Value)
	}

	ctx, cancel := context.WithCancel(ctx)
	it := q.Snapshots(ctx)
	ch := make(chan Snapshot, 1)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer close(ch)
		for {
			qs, err := it.Next()
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, iterator.Done) {
					return
				}
				offerLatest(ch, Snapshot{Err: err})
				return
			}
			refs, err := qs.Documents.GetAll()
			if err != nil {
				offerLatest(ch, Snapshot{Err: err})
				continue
			}
			docs := make([]Document, 0, len(refs))
			for _, d := range refs {
				docs = append(docs, Document{Key: d.Ref.ID, Data: d.Data()})
			}
			offerLatest(ch, Snapshot{Docs: docs})
		}
	}()

	return NewSubscription(ch, func() {
		cancel()
		it.Stop()
		<-done
	}), nil
}

func (f *Firestore) Write(ctx context.Context, path string, partial map[string]any) error {
	ref := f.client.Doc(path)
	if ref == nil {
		return ErrInvalidPath
	}
	_, err := ref.Set(ctx, partial, firestore.MergeAll)
	return err
}

func (f *Firestore) Update(ctx context.Context, path string, fn UpdateFunc) error {
	ref := f.client.Doc(path)
	if ref == nil {
		return ErrInvalidPath
	}
	return f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return ErrNotFound
			}
			return err
		}
		partial, err := fn(snap.Data())
		if err != nil {
			return err
		}
		return tx.Set(ref, partial, firestore.MergeAll)
	})
}

func (f *Firestore) ReadOnce(ctx context.Context, path string) (map[string]any, error) {
	ref := f.client.Doc(path)
	if ref == nil {
		return nil, ErrInvalidPath
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return snap.Data(), nil
}
