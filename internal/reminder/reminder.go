// Package reminder derives "have you returned this?" prompts from a
// borrower's transactions. Reminders are never written to the store; their
// ids are deterministic so at most one exists per transaction.
package reminder

import (
	"sort"
	"strings"
	"time"

	"github.com/shinyyama/rental-backend/internal/model"
	"github.com/shinyyama/rental-backend/internal/notify"
)

const IDPrefix = "borrower_return_prompt_"

func ID(txID string) string {
	return IDPrefix + txID
}

// TransactionID extracts the transaction id from a reminder id.
func TransactionID(id string) (string, bool) {
	if !strings.HasPrefix(id, IDPrefix) || len(id) == len(IDPrefix) {
		return "", false
	}
	return strings.TrimPrefix(id, IDPrefix), true
}

// Qualifies reports whether tx should currently carry a reminder for uid.
func Qualifies(tx model.Transaction, uid string, now time.Time) bool {
	return uid != "" &&
		tx.BorrowerID == uid &&
		tx.RequestStatus.OnLoan() &&
		!now.Before(tx.EndTime)
}

// Candidates returns the transactions that need a reminder and do not already
// have a message with the reminder id. The result is ordered by id.
func Candidates(txs []model.Transaction, uid string, now time.Time, existing map[string]bool) []model.Transaction {
	var out []model.Transaction
	for _, tx := range txs {
		if !Qualifies(tx, uid, now) || existing[ID(tx.ID)] {
			continue
		}
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Build composes the reminder for tx. It sorts one second after the end of
// the rental window.
func Build(tx model.Transaction, itemName, lenderName string) model.InboxMessage {
	m, _ := notify.Build(
		ID(tx.ID),
		notify.EpochSeconds(tx.EndTime)+1,
		model.MessageTypeLocalBorrowerReturnPrompt,
		notify.Names{Owner: lenderName},
		itemName,
		tx.ID,
	)
	return m
}
