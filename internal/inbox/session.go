package inbox

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shinyyama/rental-backend/internal/codec"
	"github.com/shinyyama/rental-backend/internal/docstore"
	"github.com/shinyyama/rental-backend/internal/model"
	"github.com/shinyyama/rental-backend/internal/namecache"
	"github.com/shinyyama/rental-backend/internal/reminder"
	"github.com/shinyyama/rental-backend/internal/repository"
	"github.com/shinyyama/rental-backend/internal/service"
)

var ErrNoIdentity = errors.New("inbox session has no user")

// View is what the presentation layer renders.
type View struct {
	UserID   string
	Messages []model.InboxMessage
	Loading  bool
	Err      string
}

// Unread counts the messages not yet read.
func (v View) Unread() int {
	n := 0
	for _, m := range v.Messages {
		if !m.IsRead {
			n++
		}
	}
	return n
}

type Deps struct {
	Transactions repository.TransactionRepository
	Inbox        repository.InboxRepository
	Users        repository.UserRepository
	Names        *namecache.Cache
	Service      service.TransactionService
	Log          *slog.Logger
	Now          func() time.Time
	// ReminderInterval re-evaluates reminders periodically so a rental
	// window that closes without any store change still yields a reminder.
	// Zero disables the timer.
	ReminderInterval time.Duration
}

// Session holds the inbox of one signed-in user. Every snapshot, lookup
// result and local mutation runs on a single lane goroutine, so the state
// below the lane marker is never touched concurrently.
type Session struct {
	deps Deps
	log  *slog.Logger

	lane chan func()
	quit chan struct{}
	once sync.Once

	mu      sync.RWMutex
	view    View
	changed chan struct{}

	// lane-owned
	uid            string
	subs           []*docstore.Subscription
	cancel         context.CancelFunc
	listenGen      uint64
	reminderGen    uint64
	owned          map[string]model.Transaction
	borrowed       map[string]model.Transaction
	server         []model.InboxMessage
	ownedLoaded    bool
	borrowedLoaded bool
	serverLoaded   bool
	reminders      map[string]model.InboxMessage
	readReminders  map[string]bool
	lastErr        error
}

func NewSession(deps Deps) *Session {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	s := &Session{
		deps:    deps,
		log:     deps.Log,
		lane:    make(chan func(), 16),
		quit:    make(chan struct{}),
		changed: make(chan struct{}, 1),
	}
	s.resetState()
	go s.run()
	return s
}

func (s *Session) run() {
	for {
		select {
		case fn := <-s.lane:
			fn()
		case <-s.quit:
			return
		}
	}
}

// post queues fn on the lane. It must not be called from the lane.
func (s *Session) post(fn func()) bool {
	select {
	case s.lane <- fn:
		return true
	case <-s.quit:
		return false
	}
}

// do runs fn on the lane and waits for it.
func (s *Session) do(fn func()) bool {
	done := make(chan struct{})
	if !s.post(func() {
		defer close(done)
		fn()
	}) {
		return false
	}
	select {
	case <-done:
		return true
	case <-s.quit:
		return false
	}
}

// View returns a copy of the current inbox.
func (s *Session) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v := s.view
	v.Messages = append([]model.InboxMessage(nil), s.view.Messages...)
	return v
}

// Changes signals after the view is republished. Signals coalesce.
func (s *Session) Changes() <-chan struct{} {
	return s.changed
}

func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view.UserID
}

// SetupListeners binds the session to uid. Calling it again for the same
// user is a no-op; for a different user every previous subscription is
// stopped before the new ones are opened.
func (s *Session) SetupListeners(ctx context.Context, uid string) error {
	if uid == "" {
		return ErrNoIdentity
	}
	var err error
	if !s.do(func() { err = s.setup(ctx, uid) }) {
		return errors.New("inbox session closed")
	}
	return err
}

// Teardown detaches all subscriptions synchronously. Results still in flight
// for the previous identity are discarded when they arrive.
func (s *Session) Teardown() {
	s.do(s.teardown)
}

// Close tears the session down and stops its lane.
func (s *Session) Close() {
	s.Teardown()
	s.once.Do(func() { close(s.quit) })
}

// Refresh re-runs reminder generation against the current clock.
func (s *Session) Refresh() {
	s.do(s.recompute)
}

func (s *Session) setup(ctx context.Context, uid string) error {
	if uid == s.uid && len(s.subs) > 0 {
		return nil
	}
	s.teardown()

	s.uid = uid
	s.listenGen++
	gen := s.listenGen
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	type listener struct {
		open   func(context.Context, string) (*docstore.Subscription, error)
		handle func(docstore.Snapshot)
	}
	listeners := []listener{
		{s.deps.Transactions.SubscribeByOwner, s.onOwned},
		{s.deps.Transactions.SubscribeByBorrower, s.onBorrowed},
		{s.deps.Inbox.Subscribe, s.onServerMessages},
	}
	for _, l := range listeners {
		sub, err := l.open(ctx, uid)
		if err != nil {
			s.log.Error("subscription setup failed", "uid", uid, "err", err)
			s.teardown()
			return err
		}
		s.subs = append(s.subs, sub)
		go s.pump(gen, sub, l.handle)
	}
	if s.deps.ReminderInterval > 0 {
		go s.tick(ctx, gen, s.deps.ReminderInterval)
	}
	s.publish()
	return nil
}

func (s *Session) teardown() {
	for _, sub := range s.subs {
		sub.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.listenGen++
	s.reminderGen++
	s.resetState()
	s.publish()
}

func (s *Session) resetState() {
	s.uid = ""
	s.subs = nil
	s.cancel = nil
	s.owned = map[string]model.Transaction{}
	s.borrowed = map[string]model.Transaction{}
	s.server = nil
	s.ownedLoaded, s.borrowedLoaded, s.serverLoaded = false, false, false
	s.reminders = map[string]model.InboxMessage{}
	s.readReminders = map[string]bool{}
	s.lastErr = nil
}

// pump forwards snapshots onto the lane until the subscription closes.
// Snapshots from an older identity are dropped on arrival.
func (s *Session) pump(gen uint64, sub *docstore.Subscription, handle func(docstore.Snapshot)) {
	for snap := range sub.C {
		snap := snap
		if !s.post(func() {
			if gen != s.listenGen {
				return
			}
			handle(snap)
		}) {
			return
		}
	}
}

func (s *Session) tick(ctx context.Context, gen uint64, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if !s.post(func() {
				if gen == s.listenGen {
					s.recompute()
				}
			}) {
				return
			}
		}
	}
}

func (s *Session) onOwned(snap docstore.Snapshot) {
	if s.snapshotFailed(snap) {
		return
	}
	s.owned = s.relevant(snap.Docs)
	s.ownedLoaded = true
	s.recompute()
}

func (s *Session) onBorrowed(snap docstore.Snapshot) {
	if s.snapshotFailed(snap) {
		return
	}
	s.borrowed = s.relevant(snap.Docs)
	s.borrowedLoaded = true
	s.recompute()
}

func (s *Session) onServerMessages(snap docstore.Snapshot) {
	if s.snapshotFailed(snap) {
		return
	}
	s.server = codec.ParseInboxMessages(s.log, snap.Docs)
	s.serverLoaded = true
	s.recompute()
}

func (s *Session) snapshotFailed(snap docstore.Snapshot) bool {
	if snap.Err == nil {
		return false
	}
	s.log.Error("subscription delivered an error", "uid", s.uid, "err", snap.Err)
	s.lastErr = snap.Err
	s.publish()
	return true
}

// relevant keeps transactions that are on loan or awaiting the lender's
// confirmation and involve the session user.
func (s *Session) relevant(docs []docstore.Document) map[string]model.Transaction {
	out := make(map[string]model.Transaction, len(docs))
	for _, tx := range codec.ParseTransactions(s.log, docs) {
		if tx.RequestStatus.Relevant() && tx.Involves(s.uid) {
			out[tx.ID] = tx
		}
	}
	return out
}

// recompute prunes reminders that no longer qualify, republishes, and starts
// name lookups for new candidates. Lookups started by an earlier call are
// discarded when they complete.
func (s *Session) recompute() {
	if s.uid == "" {
		return
	}
	s.reminderGen++
	gen, listenGen := s.reminderGen, s.listenGen
	now := s.deps.Now()

	existing := make(map[string]bool, len(s.server)+len(s.reminders))
	for _, m := range s.server {
		existing[m.ID] = true
	}
	for id, r := range s.reminders {
		tx, ok := s.borrowed[r.RelatedTransactionID]
		if !ok || !reminder.Qualifies(tx, s.uid, now) || existing[id] {
			delete(s.reminders, id)
			continue
		}
		existing[id] = true
	}
	s.publish()

	candidates := reminder.Candidates(s.borrowedList(), s.uid, now, existing)
	for _, tx := range candidates {
		tx := tx
		go s.resolveReminder(gen, listenGen, tx)
	}
}

func (s *Session) resolveReminder(gen, listenGen uint64, tx model.Transaction) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	itemName, err := s.deps.Names.Resolve(ctx, tx.RelatedItemID)
	lender := ""
	if err == nil && s.deps.Users != nil {
		if name, lerr := s.deps.Users.DisplayName(ctx, tx.OwnerID); lerr == nil {
			lender = name
		}
	}
	s.post(func() {
		if gen != s.reminderGen || listenGen != s.listenGen {
			return
		}
		if err != nil {
			s.log.Warn("skipping reminder, item name unavailable", "tx", tx.ID, "item", tx.RelatedItemID, "err", err)
			return
		}
		s.addReminder(tx.ID, itemName, lender)
	})
}

func (s *Session) addReminder(txID, itemName, lender string) {
	tx, ok := s.borrowed[txID]
	if !ok || !reminder.Qualifies(tx, s.uid, s.deps.Now()) {
		return
	}
	id := reminder.ID(txID)
	if _, dup := s.reminders[id]; dup || s.hasServerMessage(id) {
		return
	}
	m := reminder.Build(tx, itemName, lender)
	m.IsRead = s.readReminders[id]
	s.reminders[id] = m
	s.publish()
}

func (s *Session) hasServerMessage(id string) bool {
	for _, m := range s.server {
		if m.ID == id {
			return true
		}
	}
	return false
}

func (s *Session) borrowedList() []model.Transaction {
	out := make([]model.Transaction, 0, len(s.borrowed))
	for _, tx := range s.borrowed {
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Session) publish() {
	reminders := make([]model.InboxMessage, 0, len(s.reminders))
	for _, r := range s.reminders {
		reminders = append(reminders, r)
	}
	v := View{
		UserID:   s.uid,
		Messages: Merge(s.server, reminders),
		Loading:  s.uid != "" && !(s.ownedLoaded && s.borrowedLoaded && s.serverLoaded),
	}
	if s.lastErr != nil {
		v.Err = "could not load your inbox"
	}
	s.mu.Lock()
	s.view = v
	s.mu.Unlock()
	select {
	case s.changed <- struct{}{}:
	default:
	}
}
