package model

import "time"

type RequestStatus string

const (
	RequestStatusPending                   RequestStatus = "pending"
	RequestStatusApproved                  RequestStatus = "approved"
	RequestStatusDeclined                  RequestStatus = "declined"
	RequestStatusActiveRental              RequestStatus = "active_rental"
	RequestStatusPendingLenderConfirmation RequestStatus = "pending_lender_confirmation"
	RequestStatusDisputedReturn            RequestStatus = "disputed_return"
	RequestStatusCompleted                 RequestStatus = "completed"
)

var requestStatuses = map[RequestStatus]struct{}{
	RequestStatusPending:                   {},
	RequestStatusApproved:                  {},
	RequestStatusDeclined:                  {},
	RequestStatusActiveRental:              {},
	RequestStatusPendingLenderConfirmation: {},
	RequestStatusDisputedReturn:            {},
	RequestStatusCompleted:                 {},
}

// ParseRequestStatus rejects anything outside the closed status set.
func ParseRequestStatus(s string) (RequestStatus, bool) {
	st := RequestStatus(s)
	_, ok := requestStatuses[st]
	return st, ok
}

// Terminal reports whether no transition leaves the status.
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusCompleted || s == RequestStatusDeclined
}

// OnLoan is true while the borrower holds the item.
func (s RequestStatus) OnLoan() bool {
	return s == RequestStatusApproved || s == RequestStatusActiveRental
}

// Relevant statuses are the ones an open inbox session keeps locally.
func (s RequestStatus) Relevant() bool {
	return s.OnLoan() || s == RequestStatusPendingLenderConfirmation
}

type Transaction struct {
	ID              string
	TransactionDate time.Time
	StartTime       time.Time
	EndTime         time.Time
	RelatedItemID   string
	OwnerID         string
	BorrowerID      string
	RequestStatus   RequestStatus
}

// Involves reports whether uid is one of the two parties.
func (t Transaction) Involves(uid string) bool {
	return uid != "" && (t.OwnerID == uid || t.BorrowerID == uid)
}

const (
	CollectionTransactions  = "transactions"
	CollectionItems         = "items"
	CollectionUsers         = "users"
	CollectionInboxMessages = "inbox_messages"
)

func TransactionPath(id string) string {
	return CollectionTransactions + "/" + id
}
