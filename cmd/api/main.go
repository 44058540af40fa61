package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/shinyyama/rental-backend/internal/config"
	"github.com/shinyyama/rental-backend/internal/db"
	"github.com/shinyyama/rental-backend/internal/docstore"
	"github.com/shinyyama/rental-backend/internal/inbox"
	"github.com/shinyyama/rental-backend/internal/inflight"
	"github.com/shinyyama/rental-backend/internal/logging"
	appmw "github.com/shinyyama/rental-backend/internal/middleware"
	"github.com/shinyyama/rental-backend/internal/namecache"
	"github.com/shinyyama/rental-backend/internal/repository"
	"github.com/shinyyama/rental-backend/internal/server"
	"github.com/shinyyama/rental-backend/internal/service"
	"google.golang.org/api/option"
)

var (
	gitSHA    = "dev"
	buildTime = ""
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load error", "err", err)
		os.Exit(1)
	}
	log := logging.Init(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	var (
		app   *firebase.App
		store docstore.Store
		auth  *appmw.AuthMiddleware
	)
	if cfg.FirebaseProjectID != "" {
		var opts []option.ClientOption
		if cfg.FirebaseCredentialsFile != "" {
			opts = append(opts, option.WithCredentialsFile(cfg.FirebaseCredentialsFile))
		}
		var err error
		app, err = firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.FirebaseProjectID}, opts...)
		if err != nil {
			return fmt.Errorf("init firebase: %w", err)
		}
		if auth, err = appmw.NewAuthMiddleware(ctx, app); err != nil {
			return fmt.Errorf("init firebase auth: %w", err)
		}
	} else {
		log.Warn("FIREBASE_PROJECT_ID is not set; trusting the X-User-Id header")
	}

	if cfg.UseFirestore() {
		client, err := app.Firestore(ctx)
		if err != nil {
			return fmt.Errorf("init firestore: %w", err)
		}
		defer client.Close()
		store = docstore.NewFirestore(client)
		log.Info("using firestore document store", "project", cfg.FirebaseProjectID)
	} else {
		store = docstore.NewMemory()
		log.Warn("using in-memory document store; data is lost on restart")
	}

	txRepo := repository.NewTransactionRepository(store)
	itemRepo := repository.NewItemRepository(store)
	userRepo := repository.NewUserRepository(store)
	inboxRepo := repository.NewInboxRepository(store)
	names := namecache.New(itemRepo.Name)

	opts := []service.Option{
		service.WithLogger(log),
		service.WithNameCache(names),
	}
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer rdb.Close()
		opts = append(opts, service.WithGuard(inflight.NewRedis(rdb, cfg.InflightTTL)))
		log.Info("using redis in-flight guard", "addr", cfg.RedisAddr, "ttl", cfg.InflightTTL)
	}

	var audit repository.TransitionLogRepository
	if cfg.AuditLogEnabled() {
		audit = repository.NewTransitionLogRepository(nil)
		opts = append(opts, service.WithAuditLog(audit))
		go connectAuditLog(cfg, audit, log)
	}

	svc := service.NewTransactionService(txRepo, itemRepo, userRepo, inboxRepo, opts...)
	sessions := inbox.NewRegistry(inbox.Deps{
		Transactions:     txRepo,
		Inbox:            inboxRepo,
		Users:            userRepo,
		Names:            names,
		Service:          svc,
		Log:              log,
		ReminderInterval: cfg.ReminderInterval,
	}, inbox.WithIdleTimeout(cfg.SessionIdleTimeout))
	go sessions.Run(ctx, cfg.ReminderInterval)

	srv := server.New(server.Deps{
		Sessions:     sessions,
		Transactions: txRepo,
		AuditLog:     audit,
		Auth:         auth,
		SHA:          gitSHA,
		Build:        buildTime,
	})

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", addr)
		errCh <- srv.Start(addr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// connectAuditLog injects the database once it is reachable so a slow MySQL
// does not delay startup. Transitions before that are not audited.
func connectAuditLog(cfg *config.Config, audit repository.TransitionLogRepository, log *slog.Logger) {
	conn, err := db.Connect(cfg)
	if err != nil {
		log.Error("db connect error", "err", err)
		return
	}
	if err := db.Migrate(conn); err != nil {
		log.Error("auto migrate error", "err", err)
		return
	}
	audit.SetDB(conn)
	log.Info("transition audit log enabled")
}
