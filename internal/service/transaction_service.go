package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shinyyama/rental-backend/internal/inflight"
	"github.com/shinyyama/rental-backend/internal/lifecycle"
	"github.com/shinyyama/rental-backend/internal/model"
	"github.com/shinyyama/rental-backend/internal/namecache"
	"github.com/shinyyama/rental-backend/internal/notify"
	"github.com/shinyyama/rental-backend/internal/repository"
)

type TransactionService interface {
	SubmitRequest(ctx context.Context, borrowerUID, itemID string, start, end time.Time) (*model.Transaction, error)
	AcceptRequest(ctx context.Context, ownerUID, txID string) (Outcome, error)
	RejectRequest(ctx context.Context, ownerUID, txID string) (Outcome, error)
	MarkReturned(ctx context.Context, borrowerUID, txID string, returned bool) (Outcome, error)
	ConfirmReceipt(ctx context.Context, ownerUID, txID string, received bool) (Outcome, error)
}

type transactionService struct {
	txRepo    repository.TransactionRepository
	itemRepo  repository.ItemRepository
	userRepo  repository.UserRepository
	inboxRepo repository.InboxRepository
	auditRepo repository.TransitionLogRepository

	guard    inflight.Guard
	composer *notify.Composer
	names    *namecache.Cache
	log      *slog.Logger
	now      func() time.Time
	newID    func() string
}

type Option func(*transactionService)

func WithGuard(g inflight.Guard) Option {
	return func(s *transactionService) { s.guard = g }
}

// WithAuditLog records applied transitions. Audit failures never fail an action.
func WithAuditLog(r repository.TransitionLogRepository) Option {
	return func(s *transactionService) { s.auditRepo = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *transactionService) { s.log = l }
}

func WithComposer(c *notify.Composer) Option {
	return func(s *transactionService) { s.composer = c }
}

func WithClock(now func() time.Time) Option {
	return func(s *transactionService) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *transactionService) { s.newID = newID }
}

func WithNameCache(c *namecache.Cache) Option {
	return func(s *transactionService) { s.names = c }
}

func NewTransactionService(txRepo repository.TransactionRepository, itemRepo repository.ItemRepository, userRepo repository.UserRepository, inboxRepo repository.InboxRepository, opts ...Option) TransactionService {
	s := &transactionService{
		txRepo:    txRepo,
		itemRepo:  itemRepo,
		userRepo:  userRepo,
		inboxRepo: inboxRepo,
		guard:     inflight.NewMemory(),
		composer:  notify.NewComposer(),
		log:       slog.Default(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.names == nil {
		s.names = namecache.New(itemRepo.Name)
	}
	return s
}

func (s *transactionService) SubmitRequest(ctx context.Context, borrowerUID, itemID string, start, end time.Time) (*model.Transaction, error) {
	itemID = strings.TrimSpace(itemID)
	if borrowerUID == "" {
		return nil, fmt.Errorf("%w: borrower is required", ErrInvalidRequest)
	}
	if itemID == "" {
		return nil, fmt.Errorf("%w: item is required", ErrInvalidRequest)
	}
	if end.Before(start) {
		return nil, ErrInvalidWindow
	}
	item, err := s.itemRepo.FindByID(ctx, itemID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("could not load item: %w", err)
	}
	if item.OwnerID == "" {
		return nil, fmt.Errorf("%w: item has no owner", ErrInvalidRequest)
	}
	if item.OwnerID == borrowerUID {
		return nil, ErrOwnItem
	}

	tx := model.Transaction{
		ID:              s.newID(),
		TransactionDate: s.now().UTC(),
		StartTime:       start.UTC(),
		EndTime:         end.UTC(),
		RelatedItemID:   itemID,
		OwnerID:         item.OwnerID,
		BorrowerID:      borrowerUID,
		RequestStatus:   lifecycle.InitialStatus(),
	}
	if err := s.txRepo.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("could not send request: %w", err)
	}
	s.audit(ctx, tx.ID, "", tx.RequestStatus, borrowerUID)
	s.notify(ctx, tx.OwnerID, model.MessageTypeRequestReceived, tx)
	return &tx, nil
}

func (s *transactionService) AcceptRequest(ctx context.Context, ownerUID, txID string) (Outcome, error) {
	return s.apply(ctx, ownerUID, txID, lifecycle.ActionAccept, func(ctx context.Context, tx model.Transaction) {
		s.setAvailability(ctx, tx, false)
		s.notify(ctx, tx.BorrowerID, model.MessageTypeRequestApproved, tx)
	})
}

// RejectRequest is reachable on a pending request but does not decline it:
// no status is written and the borrower is not notified.
// TODO: write declined and send request_declined once product settles on reject semantics.
func (s *transactionService) RejectRequest(ctx context.Context, ownerUID, txID string) (Outcome, error) {
	tx, err := s.authorize(ctx, ownerUID, txID, lifecycle.ActionReject)
	if err != nil {
		return 0, err
	}
	if tx.RequestStatus != model.RequestStatusPending {
		return OutcomeStale, nil
	}
	s.log.Info("reject leaves request pending", "tx", txID, "actor", ownerUID)
	return OutcomeIgnored, nil
}

// MarkReturned with returned=false dismisses the prompt without a transition.
func (s *transactionService) MarkReturned(ctx context.Context, borrowerUID, txID string, returned bool) (Outcome, error) {
	if !returned {
		if _, err := s.authorize(ctx, borrowerUID, txID, lifecycle.ActionMarkReturned); err != nil {
			return 0, err
		}
		return OutcomeIgnored, nil
	}
	return s.apply(ctx, borrowerUID, txID, lifecycle.ActionMarkReturned, func(ctx context.Context, tx model.Transaction) {
		s.notify(ctx, tx.OwnerID, model.MessageTypeLenderConfirmReceiptPrompt, tx)
	})
}

// ConfirmReceipt completes the rental when received is true and flags a
// disputed return otherwise. A dispute leaves item availability untouched.
func (s *transactionService) ConfirmReceipt(ctx context.Context, ownerUID, txID string, received bool) (Outcome, error) {
	if received {
		return s.apply(ctx, ownerUID, txID, lifecycle.ActionConfirmReceipt, func(ctx context.Context, tx model.Transaction) {
			s.setAvailability(ctx, tx, true)
			s.notify(ctx, tx.BorrowerID, model.MessageTypeItemReturnCompleted, tx)
		})
	}
	return s.apply(ctx, ownerUID, txID, lifecycle.ActionDisputeReturn, func(ctx context.Context, tx model.Transaction) {
		s.notify(ctx, tx.BorrowerID, model.MessageTypeLenderDisputedReturn, tx)
		s.notify(ctx, tx.OwnerID, model.MessageTypeReturnDisputeLoggedForLender, tx)
	})
}

// apply runs one table-driven transition. The status is re-read at apply
// time and written only if it is still the one read; only the status write
// can fail the action, later steps are logged.
func (s *transactionService) apply(ctx context.Context, actorUID, txID string, action lifecycle.Action, effects func(context.Context, model.Transaction)) (Outcome, error) {
	release, ok, err := s.guard.Acquire(ctx, inflight.Key(txID))
	if release == nil {
		release = func() {}
	}
	if err != nil {
		s.log.Warn("in-flight guard unavailable", "tx", txID, "action", action, "err", err)
	} else if !ok {
		s.log.Info("duplicate action dropped", "tx", txID, "action", action, "actor", actorUID)
		return OutcomeDuplicate, nil
	}
	defer release()

	tx, err := s.authorize(ctx, actorUID, txID, action)
	if err != nil {
		return 0, err
	}
	to, ok := lifecycle.Next(tx.RequestStatus, action)
	if !ok {
		s.log.Info("transition no longer applies", "tx", txID, "action", action, "status", tx.RequestStatus)
		return OutcomeStale, nil
	}
	from := tx.RequestStatus
	if err := s.txRepo.UpdateStatus(ctx, txID, from, to); err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			s.log.Info("status changed before write", "tx", txID, "action", action, "err", err)
			return OutcomeStale, nil
		}
		return 0, fmt.Errorf("could not update request: %w", err)
	}
	tx.RequestStatus = to
	s.audit(ctx, txID, from, to, actorUID)
	effects(ctx, *tx)
	return OutcomeApplied, nil
}

func (s *transactionService) authorize(ctx context.Context, actorUID, txID string, action lifecycle.Action) (*model.Transaction, error) {
	if actorUID == "" || txID == "" {
		return nil, ErrForbidden
	}
	tx, err := s.txRepo.FindByID(ctx, txID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("could not load request: %w", err)
	}
	role := lifecycle.RoleFor(action)
	if role.ActorID(*tx) != actorUID {
		s.log.Warn("refusing transition from wrong party", "tx", txID, "action", action, "actor", actorUID, "role", role)
		return nil, ErrForbidden
	}
	return tx, nil
}

// setAvailability is not rolled back when it fails after the status write.
func (s *transactionService) setAvailability(ctx context.Context, tx model.Transaction, available bool) {
	if err := s.itemRepo.SetAvailable(ctx, tx.RelatedItemID, available); err != nil {
		s.log.Error("item availability write failed after status change",
			"tx", tx.ID, "item", tx.RelatedItemID, "available", available, "status", tx.RequestStatus, "err", err)
	}
}

// notify is best-effort; it logs errors but does not return them to avoid breaking main flows.
func (s *transactionService) notify(ctx context.Context, recipient string, kind model.MessageType, tx model.Transaction) {
	if recipient == "" {
		return
	}
	names := notify.Names{
		Owner:    s.displayName(ctx, tx.OwnerID),
		Borrower: s.displayName(ctx, tx.BorrowerID),
	}
	itemName, err := s.names.Resolve(ctx, tx.RelatedItemID)
	if err != nil {
		s.log.Warn("item name lookup failed", "item", tx.RelatedItemID, "err", err)
		itemName = ""
	}
	msg, err := s.composer.Compose(kind, names, itemName, tx.ID)
	if err != nil {
		s.log.Error("compose notification", "type", kind, "tx", tx.ID, "err", err)
		return
	}
	if err := s.inboxRepo.Create(ctx, recipient, msg); err != nil {
		s.log.Error("notification write failed", "type", kind, "tx", tx.ID, "recipient", recipient, "err", err)
	}
}

func (s *transactionService) displayName(ctx context.Context, uid string) string {
	if s.userRepo == nil || uid == "" {
		return ""
	}
	name, err := s.userRepo.DisplayName(ctx, uid)
	if err != nil {
		s.log.Debug("display name lookup failed", "uid", uid, "err", err)
		return ""
	}
	return name
}

func (s *transactionService) audit(ctx context.Context, txID string, from, to model.RequestStatus, actorUID string) {
	if s.auditRepo == nil {
		return
	}
	ctx, cancel := withShortDeadline(ctx)
	defer cancel()
	if err := s.auditRepo.Create(ctx, &model.TransitionLog{
		TransactionID: txID,
		FromStatus:    from,
		ToStatus:      to,
		ActorUID:      actorUID,
	}); err != nil {
		s.log.Warn("transition audit failed", "tx", txID, "err", err)
	}
}

// withShortDeadline wraps context with a short deadline to avoid blocking main flow.
func withShortDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, 2*time.Second)
}
