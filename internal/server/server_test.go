package server_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shinyyama/rental-backend/internal/docstore"
	"github.com/shinyyama/rental-backend/internal/handler"
	"github.com/shinyyama/rental-backend/internal/inbox"
	"github.com/shinyyama/rental-backend/internal/middleware"
	"github.com/shinyyama/rental-backend/internal/model"
	"github.com/shinyyama/rental-backend/internal/namecache"
	"github.com/shinyyama/rental-backend/internal/repository"
	"github.com/shinyyama/rental-backend/internal/server"
	"github.com/shinyyama/rental-backend/internal/service"
	"gorm.io/gorm"
)

type fakeAudit struct {
	CreateFn func(ctx context.Context, l *model.TransitionLog) error
	ListFn   func(ctx context.Context, txID string, limit int) ([]model.TransitionLog, error)
}

func (f *fakeAudit) Create(ctx context.Context, l *model.TransitionLog) error {
	return f.CreateFn(ctx, l)
}

func (f *fakeAudit) ListByTransaction(ctx context.Context, txID string, limit int) ([]model.TransitionLog, error) {
	return f.ListFn(ctx, txID, limit)
}

func (f *fakeAudit) SetDB(*gorm.DB) {}

// memoryAudit records transitions in a slice.
func memoryAudit() *fakeAudit {
	var mu sync.Mutex
	var rows []model.TransitionLog
	return &fakeAudit{
		CreateFn: func(_ context.Context, l *model.TransitionLog) error {
			mu.Lock()
			defer mu.Unlock()
			row := *l
			row.ID = uint64(len(rows) + 1)
			row.CreatedAt = time.Now()
			rows = append(rows, row)
			return nil
		},
		ListFn: func(_ context.Context, txID string, _ int) ([]model.TransitionLog, error) {
			mu.Lock()
			defer mu.Unlock()
			var out []model.TransitionLog
			for _, r := range rows {
				if r.TransactionID == txID {
					out = append(out, r)
				}
			}
			return out, nil
		},
	}
}

func newTestServer(t *testing.T) (*server.Server, *docstore.Memory) {
	t.Helper()
	return newTestServerWithAudit(t, nil)
}

func newTestServerWithAudit(t *testing.T, audit repository.TransitionLogRepository) (*server.Server, *docstore.Memory) {
	t.Helper()
	store := docstore.NewMemory()
	seed := map[string]map[string]any{
		"items/drill":  {"name": "Drill", "ownerId": "owner", "isAvailable": true},
		"users/owner":  {"displayName": "Olga"},
		"users/borrow": {"displayName": "Ben"},
	}
	for path, rec := range seed {
		if err := store.Write(context.Background(), path, rec); err != nil {
			t.Fatalf("seed %s: %v", path, err)
		}
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	txRepo := repository.NewTransactionRepository(store)
	itemRepo := repository.NewItemRepository(store)
	userRepo := repository.NewUserRepository(store)
	inboxRepo := repository.NewInboxRepository(store)
	names := namecache.New(itemRepo.Name)
	opts := []service.Option{service.WithLogger(log), service.WithNameCache(names)}
	if audit != nil {
		opts = append(opts, service.WithAuditLog(audit))
	}
	svc := service.NewTransactionService(txRepo, itemRepo, userRepo, inboxRepo, opts...)
	sessions := inbox.NewRegistry(inbox.Deps{
		Transactions: txRepo,
		Inbox:        inboxRepo,
		Users:        userRepo,
		Names:        names,
		Service:      svc,
		Log:          log,
	})
	srv := server.New(server.Deps{Sessions: sessions, Transactions: txRepo, AuditLog: audit})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, store
}

func do(t *testing.T, srv *server.Server, method, path, uid, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if uid != "" {
		req.Header.Set(middleware.DevUserHeader, uid)
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func waitInbox(t *testing.T, srv *server.Server, uid string, cond func(handler.InboxResponse) bool) handler.InboxResponse {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		rec := do(t, srv, http.MethodGet, "/api/inbox", uid, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("inbox status=%d body=%s", rec.Code, rec.Body.String())
		}
		var resp handler.InboxResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode inbox: %v", err)
		}
		if cond(resp) {
			return resp
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting on %s inbox: %+v", uid, resp)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func messageOfType(resp handler.InboxResponse, kind model.MessageType) (handler.InboxMessageResponse, bool) {
	for _, m := range resp.Messages {
		if m.Type == string(kind) {
			return m, true
		}
	}
	return handler.InboxMessageResponse{}, false
}

func TestRequestAcceptFlow(t *testing.T) {
	srv, store := newTestServer(t)
	start := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	end := time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339)

	rec := do(t, srv, http.MethodPost, "/api/transactions", "borrow",
		`{"itemId":"drill","startTime":"`+start+`","endTime":"`+end+`"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit status=%d body=%s", rec.Code, rec.Body.String())
	}
	var tx handler.TransactionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &tx); err != nil {
		t.Fatalf("decode tx: %v", err)
	}
	if tx.RequestStatus != string(model.RequestStatusPending) || tx.OwnerID != "owner" {
		t.Fatalf("unexpected transaction %+v", tx)
	}

	inboxResp := waitInbox(t, srv, "owner", func(r handler.InboxResponse) bool {
		_, ok := messageOfType(r, model.MessageTypeRequestReceived)
		return ok
	})
	msg, _ := messageOfType(inboxResp, model.MessageTypeRequestReceived)
	if !msg.ShowsRejectButton || msg.RelatedTransactionID == nil || *msg.RelatedTransactionID != tx.ID {
		t.Fatalf("unexpected request message %+v", msg)
	}

	if rec := do(t, srv, http.MethodPost, "/api/transactions/"+tx.ID+"/accept", "borrow", `{}`); rec.Code != http.StatusForbidden {
		t.Fatalf("borrower accept status=%d", rec.Code)
	}

	rec = do(t, srv, http.MethodPost, "/api/transactions/"+tx.ID+"/accept", "owner", `{"messageId":"`+msg.ID+`"}`)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"outcome":"applied"`) {
		t.Fatalf("accept status=%d body=%s", rec.Code, rec.Body.String())
	}
	rec = do(t, srv, http.MethodPost, "/api/transactions/"+tx.ID+"/accept", "owner", `{}`)
	if !strings.Contains(rec.Body.String(), `"outcome":"stale"`) {
		t.Fatalf("second accept body=%s", rec.Body.String())
	}

	waitInbox(t, srv, "owner", func(r handler.InboxResponse) bool {
		m, ok := messageOfType(r, model.MessageTypeRequestReceived)
		return ok && m.IsRead
	})
	waitInbox(t, srv, "borrow", func(r handler.InboxResponse) bool {
		_, ok := messageOfType(r, model.MessageTypeRequestApproved)
		return ok
	})

	item, err := store.ReadOnce(context.Background(), model.ItemPath("drill"))
	if err != nil {
		t.Fatalf("read item: %v", err)
	}
	if item["isAvailable"] != false {
		t.Fatalf("item should be unavailable after accept: %v", item)
	}
}

func TestErrorMapping(t *testing.T) {
	srv, _ := newTestServer(t)
	tests := []struct {
		name   string
		method string
		path   string
		uid    string
		body   string
		want   int
	}{
		{"no identity", http.MethodGet, "/api/inbox", "", "", http.StatusUnauthorized},
		{"unknown transaction", http.MethodPost, "/api/transactions/missing/accept", "owner", `{}`, http.StatusNotFound},
		{"return without flag", http.MethodPost, "/api/transactions/missing/return", "borrow", `{}`, http.StatusBadRequest},
		{"own item", http.MethodPost, "/api/transactions", "owner",
			`{"itemId":"drill","startTime":"2026-01-01T00:00:00Z","endTime":"2026-01-02T00:00:00Z"}`, http.StatusBadRequest},
		{"window reversed", http.MethodPost, "/api/transactions", "borrow",
			`{"itemId":"drill","startTime":"2026-01-02T00:00:00Z","endTime":"2026-01-01T00:00:00Z"}`, http.StatusBadRequest},
		{"unknown message", http.MethodPost, "/api/inbox/nope/read", "owner", "", http.StatusNotFound},
		{"malformed accept body", http.MethodPost, "/api/transactions/missing/accept", "owner", `{"messageId":`, http.StatusBadRequest},
		{"accept without body", http.MethodPost, "/api/transactions/missing/accept", "owner", "", http.StatusNotFound},
		{"bad unread filter", http.MethodGet, "/api/inbox?unread_only=maybe", "owner", "", http.StatusBadRequest},
		{"history disabled", http.MethodGet, "/api/transactions/missing/history", "owner", "", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, srv, tt.method, tt.path, tt.uid, tt.body); rec.Code != tt.want {
				t.Fatalf("status=%d want %d body=%s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestUnreadFilterAndMarkAllRead(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := do(t, srv, http.MethodPost, "/api/transactions", "borrow",
		`{"itemId":"drill","startTime":"2026-01-01T00:00:00Z","endTime":"2026-01-02T00:00:00Z"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit status=%d body=%s", rec.Code, rec.Body.String())
	}
	resp := waitInbox(t, srv, "owner", func(r handler.InboxResponse) bool {
		_, ok := messageOfType(r, model.MessageTypeRequestReceived)
		return ok
	})
	if resp.UnreadCount != len(resp.Messages) || resp.UnreadCount == 0 {
		t.Fatalf("unreadCount=%d messages=%d", resp.UnreadCount, len(resp.Messages))
	}

	rec = do(t, srv, http.MethodPost, "/api/inbox/read-all", "owner", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("read-all status=%d body=%s", rec.Code, rec.Body.String())
	}
	var marked struct {
		Marked int `json:"marked"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &marked); err != nil {
		t.Fatalf("decode read-all: %v", err)
	}
	if marked.Marked != resp.UnreadCount {
		t.Fatalf("marked=%d want %d", marked.Marked, resp.UnreadCount)
	}

	waitInbox(t, srv, "owner", func(r handler.InboxResponse) bool { return r.UnreadCount == 0 })
	rec = do(t, srv, http.MethodGet, "/api/inbox?unread_only=true", "owner", "")
	var filtered handler.InboxResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &filtered); err != nil {
		t.Fatalf("decode inbox: %v", err)
	}
	if rec.Code != http.StatusOK || len(filtered.Messages) != 0 {
		t.Fatalf("unread_only status=%d messages=%+v", rec.Code, filtered.Messages)
	}
	all := waitInbox(t, srv, "owner", func(r handler.InboxResponse) bool { return len(r.Messages) > 0 })
	if len(all.Messages) != len(resp.Messages) {
		t.Fatalf("full inbox shrank: %d want %d", len(all.Messages), len(resp.Messages))
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	if rec := do(t, srv, http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK {
		t.Fatalf("healthz status=%d", rec.Code)
	}
}

func TestHistoryVisibleToParties(t *testing.T) {
	srv, _ := newTestServerWithAudit(t, memoryAudit())
	rec := do(t, srv, http.MethodPost, "/api/transactions", "borrow",
		`{"itemId":"drill","startTime":"2026-01-01T00:00:00Z","endTime":"2026-01-02T00:00:00Z"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("submit status=%d body=%s", rec.Code, rec.Body.String())
	}
	var tx handler.TransactionResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &tx); err != nil {
		t.Fatalf("decode tx: %v", err)
	}
	if rec := do(t, srv, http.MethodPost, "/api/transactions/"+tx.ID+"/accept", "owner", `{}`); rec.Code != http.StatusOK {
		t.Fatalf("accept status=%d", rec.Code)
	}

	rec = do(t, srv, http.MethodGet, "/api/transactions/"+tx.ID+"/history", "borrow", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("history status=%d body=%s", rec.Code, rec.Body.String())
	}
	var body struct {
		Transitions []handler.TransitionLogResponse `json:"transitions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(body.Transitions) != 2 {
		t.Fatalf("want 2 transitions, got %+v", body.Transitions)
	}
	if body.Transitions[0].To != "pending" || body.Transitions[1].From != "pending" || body.Transitions[1].To != "approved" {
		t.Fatalf("unexpected transitions %+v", body.Transitions)
	}

	if rec := do(t, srv, http.MethodGet, "/api/transactions/"+tx.ID+"/history", "stranger", ""); rec.Code != http.StatusForbidden {
		t.Fatalf("stranger status=%d", rec.Code)
	}
}
