package inbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shinyyama/rental-backend/internal/model"
	"github.com/shinyyama/rental-backend/internal/reminder"
	"github.com/shinyyama/rental-backend/internal/repository"
	"github.com/shinyyama/rental-backend/internal/service"
)

var ErrMessageNotFound = errors.New("message not found")

// MarkMessageRead flags one message as read. A reminder is synthetic only
// while its transaction is known to the session and no server message carries
// the same id; it is flagged locally. Every other id is written through to
// the recipient's partition. Marking an already-read message succeeds without
// change.
func (s *Session) MarkMessageRead(ctx context.Context, id string) error {
	uid := s.UserID()
	if uid == "" {
		return ErrNoIdentity
	}
	if txID, ok := reminder.TransactionID(id); ok {
		local := false
		s.do(func() {
			if s.uid != uid || s.hasServerMessage(id) {
				return
			}
			r, shown := s.reminders[id]
			tx, known := s.borrowed[txID]
			if !shown && !(known && reminder.Qualifies(tx, s.uid, s.deps.Now())) {
				return
			}
			local = true
			s.readReminders[id] = true
			if shown && !r.IsRead {
				r.IsRead = true
				s.reminders[id] = r
				s.publish()
			}
		})
		if local {
			return nil
		}
	}
	if m, ok := s.message(id); ok && m.IsRead {
		return nil
	}
	if err := s.deps.Inbox.MarkRead(ctx, uid, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrMessageNotFound
		}
		return fmt.Errorf("could not mark message read: %w", err)
	}
	return nil
}

// MarkAllRead marks every unread message in the current view. It keeps going
// past individual failures and reports how many messages it marked.
func (s *Session) MarkAllRead(ctx context.Context) (int, error) {
	if s.UserID() == "" {
		return 0, ErrNoIdentity
	}
	var errs []error
	n := 0
	for _, m := range s.View().Messages {
		if m.IsRead {
			continue
		}
		if err := s.MarkMessageRead(ctx, m.ID); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", m.ID, err))
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}

func (s *Session) message(id string) (model.InboxMessage, bool) {
	for _, m := range s.View().Messages {
		if m.ID == id {
			return m, true
		}
	}
	return model.InboxMessage{}, false
}

func (s *Session) SubmitRequest(ctx context.Context, itemID string, start, end time.Time) (*model.Transaction, error) {
	uid := s.UserID()
	if uid == "" {
		return nil, ErrNoIdentity
	}
	return s.deps.Service.SubmitRequest(ctx, uid, itemID, start, end)
}

func (s *Session) AcceptRequest(ctx context.Context, txID, messageID string) (service.Outcome, error) {
	return s.act(ctx, messageID, func(uid string) (service.Outcome, error) {
		return s.deps.Service.AcceptRequest(ctx, uid, txID)
	})
}

// RejectRequest leaves the triggering message unread.
func (s *Session) RejectRequest(ctx context.Context, txID string) (service.Outcome, error) {
	uid := s.UserID()
	if uid == "" {
		return 0, ErrNoIdentity
	}
	return s.deps.Service.RejectRequest(ctx, uid, txID)
}

func (s *Session) MarkReturned(ctx context.Context, txID, messageID string, returned bool) (service.Outcome, error) {
	return s.act(ctx, messageID, func(uid string) (service.Outcome, error) {
		return s.deps.Service.MarkReturned(ctx, uid, txID, returned)
	})
}

func (s *Session) ConfirmReceipt(ctx context.Context, txID, messageID string, received bool) (service.Outcome, error) {
	return s.act(ctx, messageID, func(uid string) (service.Outcome, error) {
		return s.deps.Service.ConfirmReceipt(ctx, uid, txID, received)
	})
}

// act runs an action for the session user and then marks the message that
// triggered it read. A duplicate submission leaves the message alone since
// the first one already handles it.
func (s *Session) act(ctx context.Context, messageID string, run func(uid string) (service.Outcome, error)) (service.Outcome, error) {
	uid := s.UserID()
	if uid == "" {
		return 0, ErrNoIdentity
	}
	outcome, err := run(uid)
	if err != nil || outcome == service.OutcomeDuplicate || messageID == "" {
		return outcome, err
	}
	if err := s.MarkMessageRead(ctx, messageID); err != nil {
		s.log.Warn("could not mark triggering message read", "uid", uid, "message", messageID, "err", err)
	}
	return outcome, nil
}
