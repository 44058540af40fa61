package model

type MessageType string

const (
	MessageTypeRequestReceived              MessageType = "request_received"
	MessageTypeRequestApproved              MessageType = "request_approved"
	MessageTypeRequestDeclined              MessageType = "request_declined"
	MessageTypeLocalBorrowerReturnPrompt    MessageType = "local_borrower_return_prompt"
	MessageTypeLenderConfirmReceiptPrompt   MessageType = "lender_confirm_receipt_prompt"
	MessageTypeItemReturnCompleted          MessageType = "item_return_completed"
	MessageTypeLenderDisputedReturn         MessageType = "lender_disputed_return"
	MessageTypeReturnDisputeLoggedForLender MessageType = "return_dispute_logged_for_lender"
)

var messageTypes = map[MessageType]struct{}{
	MessageTypeRequestReceived:              {},
	MessageTypeRequestApproved:              {},
	MessageTypeRequestDeclined:              {},
	MessageTypeLocalBorrowerReturnPrompt:    {},
	MessageTypeLenderConfirmReceiptPrompt:   {},
	MessageTypeItemReturnCompleted:          {},
	MessageTypeLenderDisputedReturn:         {},
	MessageTypeReturnDisputeLoggedForLender: {},
}

func ParseMessageType(s string) (MessageType, bool) {
	mt := MessageType(s)
	_, ok := messageTypes[mt]
	return mt, ok
}

// InboxMessage is one notification in a single recipient's inbox partition.
// LenderName and ItemName are captured when the message is composed and are
// never re-resolved.
type InboxMessage struct {
	ID                   string
	DateLine             string
	Type                 MessageType
	ShowsRejectButton    bool
	RelatedTransactionID string
	Timestamp            float64
	IsRead               bool
	LenderName           string
	ItemName             string
}

// InboxPartition is the collection path holding one user's messages.
func InboxPartition(uid string) string {
	return CollectionInboxMessages + "/" + uid + "/messages"
}

func InboxMessagePath(uid, id string) string {
	return InboxPartition(uid) + "/" + id
}
