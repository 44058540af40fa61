// Package lifecycle holds the transition table of a rental transaction.
package lifecycle

import "github.com/shinyyama/rental-backend/internal/model"

type Action string

const (
	ActionSubmit         Action = "submit"
	ActionAccept         Action = "accept"
	ActionReject         Action = "reject"
	ActionMarkReturned   Action = "mark_returned"
	ActionConfirmReceipt Action = "confirm_receipt"
	ActionDisputeReturn  Action = "dispute_return"
)

var Actions = []Action{
	ActionSubmit,
	ActionAccept,
	ActionReject,
	ActionMarkReturned,
	ActionConfirmReceipt,
	ActionDisputeReturn,
}

type Role int

const (
	RoleOwner Role = iota + 1
	RoleBorrower
)

func (r Role) String() string {
	switch r {
	case RoleOwner:
		return "owner"
	case RoleBorrower:
		return "borrower"
	}
	return "unknown"
}

// ActorID returns the user id that may perform an action of role r on tx.
func (r Role) ActorID(tx model.Transaction) string {
	switch r {
	case RoleOwner:
		return tx.OwnerID
	case RoleBorrower:
		return tx.BorrowerID
	}
	return ""
}

type rule struct {
	from []model.RequestStatus
	to   model.RequestStatus
	role Role
}

// Reject has no entry: it is reachable from a pending request but performs
// no mutation.
var table = map[Action]rule{
	ActionAccept: {
		from: []model.RequestStatus{model.RequestStatusPending},
		to:   model.RequestStatusApproved,
		role: RoleOwner,
	},
	ActionMarkReturned: {
		from: []model.RequestStatus{model.RequestStatusApproved, model.RequestStatusActiveRental},
		to:   model.RequestStatusPendingLenderConfirmation,
		role: RoleBorrower,
	},
	ActionConfirmReceipt: {
		from: []model.RequestStatus{model.RequestStatusPendingLenderConfirmation},
		to:   model.RequestStatusCompleted,
		role: RoleOwner,
	},
	ActionDisputeReturn: {
		from: []model.RequestStatus{model.RequestStatusPendingLenderConfirmation},
		to:   model.RequestStatusDisputedReturn,
		role: RoleOwner,
	},
}

// RoleFor reports which party performs a.
func RoleFor(a Action) Role {
	switch a {
	case ActionSubmit, ActionMarkReturned:
		return RoleBorrower
	case ActionAccept, ActionReject, ActionConfirmReceipt, ActionDisputeReturn:
		return RoleOwner
	}
	return 0
}

// InitialStatus is the status written when a borrower submits a request.
func InitialStatus() model.RequestStatus {
	return model.RequestStatusPending
}

// Next returns the status reached by applying a to from, and false when the
// pair is not in the table.
func Next(from model.RequestStatus, a Action) (model.RequestStatus, bool) {
	r, ok := table[a]
	if !ok {
		return "", false
	}
	for _, s := range r.from {
		if s == from {
			return r.to, true
		}
	}
	return "", false
}
