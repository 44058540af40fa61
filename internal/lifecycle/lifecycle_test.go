package lifecycle

import (
	"testing"

	"github.com/shinyyama/rental-backend/internal/model"
)

var allStatuses = []model.RequestStatus{
	model.RequestStatusPending,
	model.RequestStatusApproved,
	model.RequestStatusDeclined,
	model.RequestStatusActiveRental,
	model.RequestStatusPendingLenderConfirmation,
	model.RequestStatusDisputedReturn,
	model.RequestStatusCompleted,
}

func TestNextTable(t *testing.T) {
	want := map[model.RequestStatus]map[Action]model.RequestStatus{
		model.RequestStatusPending: {
			ActionAccept: model.RequestStatusApproved,
		},
		model.RequestStatusApproved: {
			ActionMarkReturned: model.RequestStatusPendingLenderConfirmation,
		},
		model.RequestStatusActiveRental: {
			ActionMarkReturned: model.RequestStatusPendingLenderConfirmation,
		},
		model.RequestStatusPendingLenderConfirmation: {
			ActionConfirmReceipt: model.RequestStatusCompleted,
			ActionDisputeReturn:  model.RequestStatusDisputedReturn,
		},
	}
	for _, from := range allStatuses {
		for _, a := range Actions {
			got, ok := Next(from, a)
			exp, expOK := want[from][a]
			if ok != expOK || got != exp {
				t.Errorf("Next(%s, %s) = (%q, %v), want (%q, %v)", from, a, got, ok, exp, expOK)
			}
		}
	}
}

func TestTerminalStatesHaveNoTransitions(t *testing.T) {
	for _, s := range allStatuses {
		if !s.Terminal() {
			continue
		}
		for _, a := range Actions {
			if _, ok := Next(s, a); ok {
				t.Errorf("terminal %s accepts %s", s, a)
			}
		}
	}
}

func TestRoles(t *testing.T) {
	tx := model.Transaction{OwnerID: "o", BorrowerID: "b"}
	tests := []struct {
		action Action
		actor  string
	}{
		{ActionSubmit, "b"},
		{ActionAccept, "o"},
		{ActionReject, "o"},
		{ActionMarkReturned, "b"},
		{ActionConfirmReceipt, "o"},
		{ActionDisputeReturn, "o"},
	}
	for _, tt := range tests {
		if got := RoleFor(tt.action).ActorID(tx); got != tt.actor {
			t.Errorf("%s actor=%q want %q", tt.action, got, tt.actor)
		}
	}
}
