// Package notify builds the inbox payload for each transaction transition.
// Nothing here performs I/O.
package notify

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shinyyama/rental-backend/internal/model"
)

const (
	placeholderPerson = "someone"
	placeholderLender = "the lender"
	placeholderItem   = "an item"
)

// Names are display names captured at composition time.
type Names struct {
	Owner    string
	Borrower string
}

type template struct {
	text       func(n Names, item string) string
	showReject bool
}

var templates = map[model.MessageType]template{
	model.MessageTypeRequestReceived: {
		text: func(n Names, item string) string {
			return fmt.Sprintf("%s wants to borrow your %s.", or(n.Borrower, placeholderPerson), item)
		},
		showReject: true,
	},
	model.MessageTypeRequestApproved: {
		text: func(n Names, item string) string {
			return fmt.Sprintf("%s approved your request to borrow %s.", or(n.Owner, placeholderLender), item)
		},
	},
	model.MessageTypeRequestDeclined: {
		text: func(n Names, item string) string {
			return fmt.Sprintf("%s declined your request to borrow %s.", or(n.Owner, placeholderLender), item)
		},
	},
	model.MessageTypeLocalBorrowerReturnPrompt: {
		text: func(n Names, item string) string {
			return fmt.Sprintf("Have you returned %s to %s?", item, or(n.Owner, placeholderLender))
		},
		showReject: true,
	},
	model.MessageTypeLenderConfirmReceiptPrompt: {
		text: func(n Names, item string) string {
			return fmt.Sprintf("%s says %s has been returned. Did you receive it?", or(n.Borrower, placeholderPerson), item)
		},
		showReject: true,
	},
	model.MessageTypeItemReturnCompleted: {
		text: func(n Names, item string) string {
			return fmt.Sprintf("%s confirmed receipt of %s. Rental complete.", or(n.Owner, placeholderLender), item)
		},
	},
	model.MessageTypeLenderDisputedReturn: {
		text: func(n Names, item string) string {
			return fmt.Sprintf("%s reported a problem with the return of %s.", or(n.Owner, placeholderLender), item)
		},
	},
	model.MessageTypeReturnDisputeLoggedForLender: {
		text: func(_ Names, item string) string {
			return fmt.Sprintf("Your dispute about the return of %s was logged.", item)
		},
	},
}

// Build composes a message with an explicit id and timestamp.
func Build(id string, ts float64, kind model.MessageType, names Names, itemName, txID string) (model.InboxMessage, error) {
	tpl, ok := templates[kind]
	if !ok {
		return model.InboxMessage{}, fmt.Errorf("no template for message type %q", kind)
	}
	return model.InboxMessage{
		ID:                   id,
		DateLine:             tpl.text(names, or(itemName, placeholderItem)),
		Type:                 kind,
		ShowsRejectButton:    tpl.showReject,
		RelatedTransactionID: txID,
		Timestamp:            ts,
		LenderName:           names.Owner,
		ItemName:             itemName,
	}, nil
}

// Composer stamps messages with fresh ids and the current time.
type Composer struct {
	NewID func() string
	Now   func() time.Time
}

func NewComposer() *Composer {
	return &Composer{NewID: uuid.NewString, Now: time.Now}
}

func (c *Composer) Compose(kind model.MessageType, names Names, itemName, txID string) (model.InboxMessage, error) {
	return Build(c.NewID(), EpochSeconds(c.Now()), kind, names, itemName, txID)
}

// EpochSeconds is the inbox sort key for t.
func EpochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func or(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
