// Package docstore is the contract the rental core consumes from the
// document store: full-snapshot subscriptions, merge writes, and single reads.
//
// Paths are slash separated and alternate collection and document segments,
// e.g. "transactions/t1" or "inbox_messages/u1/messages/m1". A write to one
// path is never atomic with a write to another.
package docstore

import (
	"context"
	"errors"
	"strings"
	"sync"
)

var ErrNotFound = errors.New("document not found")
var ErrInvalidPath = errors.New("invalid document path")

// Predicate selects documents whose Field equals Value. A zero Predicate
// selects the whole collection.
type Predicate struct {
	Field string
	Value any
}

func (p Predicate) Match(data map[string]any) bool {
	if p.Field == "" {
		return true
	}
	v, ok := data[p.Field]
	return ok && v == p.Value
}

type Document struct {
	Key  string
	Data map[string]any
}

// Snapshot is the complete set of documents matching a subscription at one
// instant. It replaces every earlier snapshot of the same subscription.
type Snapshot struct {
	Docs []Document
	Err  error
}

// Subscription delivers snapshots on C. Only the latest undelivered snapshot
// is buffered. C is closed once Stop returns; a snapshot buffered before Stop
// can still be received, so consumers must discard it themselves.
type Subscription struct {
	C    <-chan Snapshot
	stop func()
	once sync.Once
}

func NewSubscription(c <-chan Snapshot, stop func()) *Subscription {
	return &Subscription{C: c, stop: stop}
}

func (s *Subscription) Stop() {
	s.once.Do(s.stop)
}

// UpdateFunc receives the current record and returns the fields to merge.
// Returning an error aborts the update without writing.
type UpdateFunc func(current map[string]any) (map[string]any, error)

type Store interface {
	Subscribe(ctx context.Context, collection string, p Predicate) (*Subscription, error)
	Write(ctx context.Context, path string, partial map[string]any) error
	ReadOnce(ctx context.Context, path string) (map[string]any, error)
	// Update reads and merge-writes one document atomically. A missing
	// document yields ErrNotFound.
	Update(ctx context.Context, path string, fn UpdateFunc) error
}

// SplitPath returns the collection and key of a document path.
func SplitPath(path string) (collection, key string, err error) {
	path = strings.Trim(path, "/")
	i := strings.LastIndex(path, "/")
	if i <= 0 || i == len(path)-1 {
		return "", "", ErrInvalidPath
	}
	if strings.Count(path, "/")%2 == 0 {
		return "", "", ErrInvalidPath
	}
	return path[:i], path[i+1:], nil
}

// offerLatest replaces any undelivered snapshot with snap. The caller must be
// the only sender on ch.
func offerLatest(ch chan Snapshot, snap Snapshot) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- snap
}
