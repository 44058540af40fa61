package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/rental-backend/internal/inbox"
	"github.com/shinyyama/rental-backend/internal/model"
	"github.com/shinyyama/rental-backend/internal/repository"
	"github.com/shinyyama/rental-backend/internal/service"
)

type TransactionHandler struct {
	sessions *inbox.Registry
	txRepo   repository.TransactionRepository
	audit    repository.TransitionLogRepository
}

// NewTransactionHandler serves the rental actions. audit may be nil, in
// which case the history endpoint reports it as unavailable.
func NewTransactionHandler(sessions *inbox.Registry, txRepo repository.TransactionRepository, audit repository.TransitionLogRepository) *TransactionHandler {
	return &TransactionHandler{sessions: sessions, txRepo: txRepo, audit: audit}
}

type TransactionResponse struct {
	ID              string `json:"id"`
	TransactionDate string `json:"transactionDate"`
	StartTime       string `json:"startTime"`
	EndTime         string `json:"endTime"`
	RelatedItemID   string `json:"relatedItemId"`
	OwnerID         string `json:"ownerId"`
	BorrowerID      string `json:"borrowerId"`
	RequestStatus   string `json:"requestStatus"`
}

func toTransactionResponse(tx *model.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:              tx.ID,
		TransactionDate: tx.TransactionDate.Format(time.RFC3339),
		StartTime:       tx.StartTime.Format(time.RFC3339),
		EndTime:         tx.EndTime.Format(time.RFC3339),
		RelatedItemID:   tx.RelatedItemID,
		OwnerID:         tx.OwnerID,
		BorrowerID:      tx.BorrowerID,
		RequestStatus:   string(tx.RequestStatus),
	}
}

type ActionResponse struct {
	TransactionID string `json:"transactionId"`
	Outcome       string `json:"outcome"`
}

type TransitionLogResponse struct {
	From      string `json:"from"`
	To        string `json:"to"`
	ActorUID  string `json:"actorUid"`
	CreatedAt string `json:"createdAt"`
}

func (h *TransactionHandler) Submit(c echo.Context) error {
	s, errResp := h.session(c)
	if errResp != nil {
		return errResp()
	}
	var body struct {
		ItemID    string    `json:"itemId"`
		StartTime time.Time `json:"startTime"`
		EndTime   time.Time `json:"endTime"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid body"))
	}
	if body.StartTime.IsZero() || body.EndTime.IsZero() {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "startTime and endTime are required"))
	}
	tx, err := s.SubmitRequest(c.Request().Context(), body.ItemID, body.StartTime, body.EndTime)
	if err != nil {
		return actionError(c, err, "item not found")
	}
	return c.JSON(http.StatusCreated, toTransactionResponse(tx))
}

type messageBody struct {
	MessageID string `json:"messageId"`
}

func (h *TransactionHandler) Accept(c echo.Context) error {
	s, errResp := h.session(c)
	if errResp != nil {
		return errResp()
	}
	var body messageBody
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid body"))
	}
	out, err := s.AcceptRequest(c.Request().Context(), c.Param("id"), body.MessageID)
	return h.respond(c, out, err)
}

func (h *TransactionHandler) Reject(c echo.Context) error {
	s, errResp := h.session(c)
	if errResp != nil {
		return errResp()
	}
	out, err := s.RejectRequest(c.Request().Context(), c.Param("id"))
	return h.respond(c, out, err)
}

func (h *TransactionHandler) MarkReturned(c echo.Context) error {
	s, errResp := h.session(c)
	if errResp != nil {
		return errResp()
	}
	var body struct {
		Returned  *bool  `json:"returned"`
		MessageID string `json:"messageId"`
	}
	if err := c.Bind(&body); err != nil || body.Returned == nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "returned is required"))
	}
	out, err := s.MarkReturned(c.Request().Context(), c.Param("id"), body.MessageID, *body.Returned)
	return h.respond(c, out, err)
}

func (h *TransactionHandler) ConfirmReceipt(c echo.Context) error {
	s, errResp := h.session(c)
	if errResp != nil {
		return errResp()
	}
	var body struct {
		Received  *bool  `json:"received"`
		MessageID string `json:"messageId"`
	}
	if err := c.Bind(&body); err != nil || body.Received == nil {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "received is required"))
	}
	out, err := s.ConfirmReceipt(c.Request().Context(), c.Param("id"), body.MessageID, *body.Received)
	return h.respond(c, out, err)
}

// History lists the recorded transitions of a transaction to either party.
func (h *TransactionHandler) History(c echo.Context) error {
	uid := callerUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	if h.audit == nil {
		return unavailable(c, "history is not enabled")
	}
	txID := c.Param("id")
	tx, err := h.txRepo.FindByID(c.Request().Context(), txID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusNotFound, NewErrorResponse("not_found", "transaction not found"))
		}
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", "failed to load transaction"))
	}
	if !tx.Involves(uid) {
		return c.JSON(http.StatusForbidden, NewErrorResponse("forbidden", "not allowed"))
	}
	list, err := h.audit.ListByTransaction(c.Request().Context(), txID, 50)
	if err != nil {
		if errors.Is(err, repository.ErrDBNotReady) {
			return unavailable(c, "history is not enabled")
		}
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", "failed to fetch history"))
	}
	resp := make([]TransitionLogResponse, 0, len(list))
	for _, l := range list {
		resp = append(resp, TransitionLogResponse{
			From:      string(l.FromStatus),
			To:        string(l.ToStatus),
			ActorUID:  l.ActorUID,
			CreatedAt: l.CreatedAt.Format(time.RFC3339),
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"transitions": resp})
}

func (h *TransactionHandler) session(c echo.Context) (*inbox.Session, func() error) {
	uid := callerUID(c)
	if uid == "" {
		return nil, func() error { return unauthorized(c) }
	}
	s, err := h.sessions.Session(c.Request().Context(), uid)
	if err != nil {
		return nil, func() error { return unavailable(c, "could not open inbox") }
	}
	return s, nil
}

func (h *TransactionHandler) respond(c echo.Context, out service.Outcome, err error) error {
	if err != nil {
		return actionError(c, err, "transaction not found")
	}
	return c.JSON(http.StatusOK, ActionResponse{TransactionID: c.Param("id"), Outcome: out.String()})
}

func actionError(c echo.Context, err error, notFound string) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, NewErrorResponse("not_found", notFound))
	case errors.Is(err, service.ErrForbidden):
		return c.JSON(http.StatusForbidden, NewErrorResponse("forbidden", "not allowed"))
	case errors.Is(err, service.ErrInvalidRequest):
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", err.Error()))
	case errors.Is(err, inbox.ErrNoIdentity):
		return unauthorized(c)
	default:
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", err.Error()))
	}
}
