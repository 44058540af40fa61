package codec

import (
	"fmt"
	"log/slog"

	"github.com/shinyyama/rental-backend/internal/docstore"
	"github.com/shinyyama/rental-backend/internal/model"
)

var inboxMessageSchema = schema{
	{name: "dateLine", kind: kindString, required: true},
	{name: "type", kind: kindString, required: true},
	{name: "showsRejectButton", kind: kindBool, required: true},
	{name: "timestamp", kind: kindNumber, required: true},
	{name: "relatedTransactionId", kind: kindString},
	{name: "isRead", kind: kindBool},
	{name: "lenderName", kind: kindString},
	{name: "itemName", kind: kindString},
}

// ParseInboxMessage decodes a stored message. Absent optional fields take
// their zero value, so isRead defaults to false.
func ParseInboxMessage(key string, rec map[string]any) (model.InboxMessage, error) {
	if key == "" {
		return model.InboxMessage{}, fmt.Errorf("%w: empty key", ErrInvalidRecord)
	}
	if err := inboxMessageSchema.validate(rec); err != nil {
		return model.InboxMessage{}, err
	}
	typ, ok := model.ParseMessageType(getString(rec, "type"))
	if !ok {
		return model.InboxMessage{}, fmt.Errorf("%w: unknown message type %q", ErrInvalidRecord, getString(rec, "type"))
	}
	return model.InboxMessage{
		ID:                   key,
		DateLine:             getString(rec, "dateLine"),
		Type:                 typ,
		ShowsRejectButton:    getBool(rec, "showsRejectButton"),
		RelatedTransactionID: getString(rec, "relatedTransactionId"),
		Timestamp:            getNumber(rec, "timestamp"),
		IsRead:               getBool(rec, "isRead"),
		LenderName:           getString(rec, "lenderName"),
		ItemName:             getString(rec, "itemName"),
	}, nil
}

func ParseInboxMessages(log *slog.Logger, docs []docstore.Document) []model.InboxMessage {
	out := make([]model.InboxMessage, 0, len(docs))
	for _, d := range docs {
		m, err := ParseInboxMessage(d.Key, d.Data)
		if err != nil {
			log.Warn("dropping malformed inbox message", "key", d.Key, "err", err)
			continue
		}
		out = append(out, m)
	}
	return out
}

// InboxMessageRecord is the wire form of m. The id is the document key and
// is not repeated inside the record.
func InboxMessageRecord(m model.InboxMessage) map[string]any {
	rec := map[string]any{
		"dateLine":          m.DateLine,
		"type":              string(m.Type),
		"showsRejectButton": m.ShowsRejectButton,
		"timestamp":         m.Timestamp,
		"isRead":            m.IsRead,
		"lenderName":        m.LenderName,
		"itemName":          m.ItemName,
	}
	if m.RelatedTransactionID != "" {
		rec["relatedTransactionId"] = m.RelatedTransactionID
	}
	return rec
}
