package server

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/shinyyama/rental-backend/internal/handler"
	"github.com/shinyyama/rental-backend/internal/inbox"
	appmw "github.com/shinyyama/rental-backend/internal/middleware"
	"github.com/shinyyama/rental-backend/internal/repository"
)

type Deps struct {
	Sessions     *inbox.Registry
	Transactions repository.TransactionRepository
	// AuditLog is optional.
	AuditLog repository.TransitionLogRepository
	Auth     *appmw.AuthMiddleware
	SHA      string
	Build    string
}

type Server struct {
	e        *echo.Echo
	sessions *inbox.Registry
}

func New(d Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Authorization", appmw.DevUserHeader},
		AllowCredentials: true,
		AllowOriginFunc:  allowOrigin,
	}))

	auth := d.Auth
	if auth == nil {
		auth = appmw.NewDevAuthMiddleware()
	}
	inboxHandler := handler.NewInboxHandler(d.Sessions)
	txHandler := handler.NewTransactionHandler(d.Sessions, d.Transactions, d.AuditLog)

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"ok":         "true",
			"git_sha":    d.SHA,
			"build_time": d.Build,
		})
	})

	api := e.Group("/api", auth.RequireAuth)
	api.GET("/inbox", inboxHandler.Get)
	api.POST("/inbox/read-all", inboxHandler.MarkAllRead)
	api.POST("/inbox/:id/read", inboxHandler.MarkRead)
	api.POST("/session/signout", inboxHandler.SignOut)
	api.POST("/transactions", txHandler.Submit)
	api.POST("/transactions/:id/accept", txHandler.Accept)
	api.POST("/transactions/:id/reject", txHandler.Reject)
	api.POST("/transactions/:id/return", txHandler.MarkReturned)
	api.POST("/transactions/:id/receipt", txHandler.ConfirmReceipt)
	api.GET("/transactions/:id/history", txHandler.History)

	return &Server{e: e, sessions: d.Sessions}
}

func allowOrigin(origin string) (bool, error) {
	low := strings.ToLower(origin)
	if strings.HasPrefix(low, "http://localhost:") || strings.HasPrefix(low, "http://127.0.0.1:") ||
		strings.HasPrefix(low, "https://localhost:") || strings.HasPrefix(low, "https://127.0.0.1:") {
		return true, nil
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false, nil
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false, nil
	}
	return strings.HasSuffix(u.Hostname(), "vercel.app"), nil
}

func (s *Server) Handler() http.Handler {
	return s.e
}

func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}

// Shutdown stops accepting requests and closes every live inbox session.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.e.Shutdown(ctx)
	if s.sessions != nil {
		s.sessions.Close()
	}
	return err
}
