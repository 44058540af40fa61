package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/rental-backend/internal/inbox"
	"github.com/shinyyama/rental-backend/internal/model"
)

type InboxHandler struct {
	sessions *inbox.Registry
}

func NewInboxHandler(sessions *inbox.Registry) *InboxHandler {
	return &InboxHandler{sessions: sessions}
}

type InboxMessageResponse struct {
	ID                   string  `json:"id"`
	DateLine             string  `json:"dateLine"`
	Type                 string  `json:"type"`
	ShowsRejectButton    bool    `json:"showsRejectButton"`
	RelatedTransactionID *string `json:"relatedTransactionId,omitempty"`
	Timestamp            float64 `json:"timestamp"`
	IsRead               bool    `json:"isRead"`
	LenderName           string  `json:"lenderName"`
	ItemName             string  `json:"itemName"`
}

func toInboxMessageResponse(m model.InboxMessage) InboxMessageResponse {
	var txID *string
	if m.RelatedTransactionID != "" {
		val := m.RelatedTransactionID
		txID = &val
	}
	return InboxMessageResponse{
		ID:                   m.ID,
		DateLine:             m.DateLine,
		Type:                 string(m.Type),
		ShowsRejectButton:    m.ShowsRejectButton,
		RelatedTransactionID: txID,
		Timestamp:            m.Timestamp,
		IsRead:               m.IsRead,
		LenderName:           m.LenderName,
		ItemName:             m.ItemName,
	}
}

type InboxResponse struct {
	Messages    []InboxMessageResponse `json:"messages"`
	UnreadCount int                    `json:"unreadCount"`
	Loading     bool                   `json:"loading"`
	Error       string                 `json:"error,omitempty"`
}

// Get returns the caller's inbox, newest first. unread_only=true drops
// messages already read; unreadCount always covers the whole inbox.
func (h *InboxHandler) Get(c echo.Context) error {
	uid := callerUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	unreadOnly := false
	if raw := c.QueryParam("unread_only"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid unread_only"))
		}
		unreadOnly = v
	}
	s, err := h.sessions.Session(c.Request().Context(), uid)
	if err != nil {
		return unavailable(c, "could not open inbox")
	}
	v := s.View()
	resp := InboxResponse{
		Messages:    make([]InboxMessageResponse, 0, len(v.Messages)),
		UnreadCount: v.Unread(),
		Loading:     v.Loading,
		Error:       v.Err,
	}
	for _, m := range v.Messages {
		if unreadOnly && m.IsRead {
			continue
		}
		resp.Messages = append(resp.Messages, toInboxMessageResponse(m))
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *InboxHandler) MarkRead(c echo.Context) error {
	uid := callerUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	id := c.Param("id")
	if id == "" {
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", "invalid message id"))
	}
	s, err := h.sessions.Session(c.Request().Context(), uid)
	if err != nil {
		return unavailable(c, "could not open inbox")
	}
	if err := s.MarkMessageRead(c.Request().Context(), id); err != nil {
		if errors.Is(err, inbox.ErrMessageNotFound) {
			return c.JSON(http.StatusNotFound, NewErrorResponse("not_found", "message not found"))
		}
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", "failed to mark read"))
	}
	return c.NoContent(http.StatusNoContent)
}

// MarkAllRead flags every message currently in the caller's inbox as read.
func (h *InboxHandler) MarkAllRead(c echo.Context) error {
	uid := callerUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	s, err := h.sessions.Session(c.Request().Context(), uid)
	if err != nil {
		return unavailable(c, "could not open inbox")
	}
	n, err := s.MarkAllRead(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", "failed to mark read"))
	}
	return c.JSON(http.StatusOK, map[string]int{"marked": n})
}

// SignOut drops the caller's live inbox session.
func (h *InboxHandler) SignOut(c echo.Context) error {
	uid := callerUID(c)
	if uid == "" {
		return unauthorized(c)
	}
	h.sessions.SignOut(uid)
	return c.NoContent(http.StatusNoContent)
}
