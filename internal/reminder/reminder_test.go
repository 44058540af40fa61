package reminder

import (
	"math"
	"testing"
	"time"

	"github.com/shinyyama/rental-backend/internal/model"
)

func TestIDRoundTrip(t *testing.T) {
	id := ID("tx-9")
	if id != "borrower_return_prompt_tx-9" {
		t.Fatalf("id=%q", id)
	}
	if got, ok := TransactionID(id); !ok || got != "tx-9" {
		t.Fatalf("got %q ok=%v", got, ok)
	}
	for _, bad := range []string{"", "borrower_return_prompt_", "m-1", "xborrower_return_prompt_t"} {
		if _, ok := TransactionID(bad); ok {
			t.Errorf("%q should not parse", bad)
		}
	}
}

func TestCandidates(t *testing.T) {
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	txs := []model.Transaction{
		{ID: "c", BorrowerID: "me", RequestStatus: model.RequestStatusActiveRental, EndTime: past},
		{ID: "a", BorrowerID: "me", RequestStatus: model.RequestStatusApproved, EndTime: past},
		{ID: "exact", BorrowerID: "me", RequestStatus: model.RequestStatusApproved, EndTime: now},
		{ID: "future", BorrowerID: "me", RequestStatus: model.RequestStatusApproved, EndTime: future},
		{ID: "owner-side", OwnerID: "me", BorrowerID: "other", RequestStatus: model.RequestStatusApproved, EndTime: past},
		{ID: "returned", BorrowerID: "me", RequestStatus: model.RequestStatusPendingLenderConfirmation, EndTime: past},
		{ID: "pending", BorrowerID: "me", RequestStatus: model.RequestStatusPending, EndTime: past},
		{ID: "seen", BorrowerID: "me", RequestStatus: model.RequestStatusApproved, EndTime: past},
	}
	got := Candidates(txs, "me", now, map[string]bool{ID("seen"): true})
	var ids []string
	for _, tx := range got {
		ids = append(ids, tx.ID)
	}
	want := []string{"a", "c", "exact"}
	if len(ids) != len(want) {
		t.Fatalf("got %v want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("got %v want %v", ids, want)
		}
	}
}

func TestBuild(t *testing.T) {
	end := time.Date(2026, 10, 10, 18, 0, 0, 0, time.UTC)
	tx := model.Transaction{ID: "tx-1", BorrowerID: "me", OwnerID: "o", EndTime: end}
	m := Build(tx, "Ladder", "Olga")
	if m.ID != "borrower_return_prompt_tx-1" {
		t.Fatalf("id=%q", m.ID)
	}
	if m.Timestamp != float64(end.Unix()+1) {
		t.Fatalf("timestamp=%v", m.Timestamp)
	}

	// sub-second end times keep their fraction so the reminder sorts right
	// after server messages stamped in the same second
	tx.EndTime = end.Add(250 * time.Millisecond)
	if got, want := Build(tx, "Ladder", "Olga").Timestamp, float64(end.Unix())+1.25; math.Abs(got-want) > 1e-6 {
		t.Fatalf("fractional timestamp=%v want %v", got, want)
	}
	if m.Type != model.MessageTypeLocalBorrowerReturnPrompt || !m.ShowsRejectButton {
		t.Fatalf("unexpected message %+v", m)
	}
	if m.DateLine != "Have you returned Ladder to Olga?" || m.ItemName != "Ladder" || m.LenderName != "Olga" {
		t.Fatalf("unexpected text %+v", m)
	}
	if m.RelatedTransactionID != "tx-1" || m.IsRead {
		t.Fatalf("unexpected message %+v", m)
	}
}
