package codec

import (
	"fmt"
	"log/slog"

	"github.com/shinyyama/rental-backend/internal/docstore"
	"github.com/shinyyama/rental-backend/internal/model"
)

var transactionSchema = schema{
	{name: "transactionDate", kind: kindTime, required: true},
	{name: "startTime", kind: kindTime, required: true},
	{name: "endTime", kind: kindTime, required: true},
	{name: "relatedItemId", kind: kindString, required: true},
	{name: "ownerId", kind: kindString, required: true},
	{name: "borrowerId", kind: kindString, required: true},
	{name: "requestStatus", kind: kindString, required: true},
}

// ParseTransaction validates one stored record. A missing requestStatus makes
// the record invalid; the pending default only applies when a request is created.
func ParseTransaction(key string, rec map[string]any) (model.Transaction, error) {
	if key == "" {
		return model.Transaction{}, fmt.Errorf("%w: empty key", ErrInvalidRecord)
	}
	if err := transactionSchema.validate(rec); err != nil {
		return model.Transaction{}, err
	}
	status, ok := model.ParseRequestStatus(getString(rec, "requestStatus"))
	if !ok {
		return model.Transaction{}, fmt.Errorf("%w: unknown requestStatus %q", ErrInvalidRecord, getString(rec, "requestStatus"))
	}
	return model.Transaction{
		ID:              key,
		TransactionDate: getTime(rec, "transactionDate"),
		StartTime:       getTime(rec, "startTime"),
		EndTime:         getTime(rec, "endTime"),
		RelatedItemID:   getString(rec, "relatedItemId"),
		OwnerID:         getString(rec, "ownerId"),
		BorrowerID:      getString(rec, "borrowerId"),
		RequestStatus:   status,
	}, nil
}

// ParseTransactions parses a snapshot, dropping malformed records with a
// logged diagnostic instead of failing the batch.
func ParseTransactions(log *slog.Logger, docs []docstore.Document) []model.Transaction {
	out := make([]model.Transaction, 0, len(docs))
	for _, d := range docs {
		tx, err := ParseTransaction(d.Key, d.Data)
		if err != nil {
			log.Warn("dropping malformed transaction", "key", d.Key, "err", err)
			continue
		}
		out = append(out, tx)
	}
	return out
}

func TransactionRecord(tx model.Transaction) map[string]any {
	return map[string]any{
		"transactionDate": FormatTime(tx.TransactionDate),
		"startTime":       FormatTime(tx.StartTime),
		"endTime":         FormatTime(tx.EndTime),
		"relatedItemId":   tx.RelatedItemID,
		"ownerId":         tx.OwnerID,
		"borrowerId":      tx.BorrowerID,
		"requestStatus":   string(tx.RequestStatus),
	}
}
