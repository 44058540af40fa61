package docstore

import (
	"context"
	"sort"
	"sync"
)

// Memory is an in-process Store used for local development and tests. Every
// write to a collection pushes a fresh full snapshot to each matching
// subscription of that collection.
type Memory struct {
	mu        sync.Mutex
	docs      map[string]map[string]map[string]any
	watchers  map[*memoryWatcher]struct{}
	writeHook func(path string, partial map[string]any) error
}

type memoryWatcher struct {
	collection string
	pred       Predicate
	ch         chan Snapshot
}

func NewMemory() *Memory {
	return &Memory{
		docs:     make(map[string]map[string]map[string]any),
		watchers: make(map[*memoryWatcher]struct{}),
	}
}

// SetWriteHook installs a hook consulted before every write. A non-nil error
// from the hook fails the write without touching stored data.
func (m *Memory) SetWriteHook(hook func(path string, partial map[string]any) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeHook = hook
}

func (m *Memory) Subscribe(ctx context.Context, collection string, p Predicate) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	w := &memoryWatcher{collection: collection, pred: p, ch: make(chan Snapshot, 1)}

	m.mu.Lock()
	m.watchers[w] = struct{}{}
	offerLatest(w.ch, m.snapshotLocked(collection, p))
	m.mu.Unlock()

	return NewSubscription(w.ch, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.watchers, w)
		close(w.ch)
	}), nil
}

func (m *Memory) Write(ctx context.Context, path string, partial map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	collection, key, err := SplitPath(path)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mergeLocked(path, collection, key, partial)
}

func (m *Memory) mergeLocked(path, collection, key string, partial map[string]any) error {
	if m.writeHook != nil {
		if err := m.writeHook(path, partial); err != nil {
			return err
		}
	}
	coll, ok := m.docs[collection]
	if !ok {
		coll = make(map[string]map[string]any)
		m.docs[collection] = coll
	}
	doc, ok := coll[key]
	if !ok {
		doc = make(map[string]any, len(partial))
		coll[key] = doc
	}
	for k, v := range partial {
		doc[k] = v
	}
	for w := range m.watchers {
		if w.collection == collection {
			offerLatest(w.ch, m.snapshotLocked(collection, w.pred))
		}
	}
	return nil
}

func (m *Memory) Update(ctx context.Context, path string, fn UpdateFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	collection, key, err := SplitPath(path)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[collection][key]
	if !ok {
		return ErrNotFound
	}
	partial, err := fn(copyData(doc))
	if err != nil {
		return err
	}
	return m.mergeLocked(path, collection, key, partial)
}

func (m *Memory) ReadOnce(ctx context.Context, path string) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	collection, key, err := SplitPath(path)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[collection][key]
	if !ok {
		return nil, ErrNotFound
	}
	return copyData(doc), nil
}

func (m *Memory) snapshotLocked(collection string, p Predicate) Snapshot {
	coll := m.docs[collection]
	docs := make([]Document, 0, len(coll))
	for key, data := range coll {
		if p.Match(data) {
			docs = append(docs, Document{Key: key, Data: copyData(data)})
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Key < docs[j].Key })
	return Snapshot{Docs: docs}
}

func copyData(src map[string]any) map[string]any {
	dst := make(map[string]any, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
