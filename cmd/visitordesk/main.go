package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/example/visitor-desk/internal/api"
	"github.com/example/visitor-desk/internal/application"
	"github.com/example/visitor-desk/internal/assistant"
	"github.com/example/visitor-desk/internal/config"
	"github.com/example/visitor-desk/internal/logging"
	"github.com/example/visitor-desk/internal/metrics"
	"github.com/example/visitor-desk/internal/notify"
	"github.com/example/visitor-desk/internal/persistence/sqlite"
	"github.com/example/visitor-desk/internal/qr"
	"github.com/example/visitor-desk/internal/session"
)

func main() {
	os.Exit(run())
}

func run() int {
	// A missing .env file is fine; the process environment still applies.
	_ = godotenv.Load()

	logger := logging.New(os.Stderr, logging.FormatText, slog.LevelInfo)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		return 1
	}
	logger = logging.New(os.Stderr, logging.FormatText, cfg.LogLevel)

	storage, err := sqlite.Open(cfg.SQLiteDSN)
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		return 1
	}
	defer func() {
		if cerr := storage.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := storage.Migrate(ctx); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		return 1
	}

	sealer, err := session.NewSealer(cfg.SessionSecret)
	if err != nil {
		logger.Error("failed to derive session key", "error", err)
		return 1
	}
	sess := session.New(storage, sealer,
		session.WithLogger(logger),
		session.WithForceLogout(cfg.ForceLogoutOnAuthFailure),
	)

	d := wire(cfg, sess, logger)
	root := newRootCommand(d)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render(application.UserMessage(err)))
		return 1
	}
	return 0
}

// principalStore is the session surface the desk needs: the route guard,
// login and logout, and the bearer token hooks used by the API client.
type principalStore interface {
	application.SessionManager
	api.TokenSource
	api.AuthFailureHandler
}

// desk holds the wired services shared by every command.
type desk struct {
	cfg       config.Config
	logger    *slog.Logger
	metrics   *metrics.Registry
	auth      *application.AuthService
	visitors  *application.VisitorService
	meetings  *application.MeetingService
	dashboard *application.DashboardService
	chat      *application.ChatService
}

func wire(cfg config.Config, sess principalStore, logger *slog.Logger) *desk {
	registry := metrics.NewRegistry()
	client := api.New(cfg.APIBaseURL,
		api.WithTimeout(cfg.APITimeout),
		api.WithTokenSource(sess),
		api.WithAuthFailureHandler(sess),
		api.WithMetrics(registry),
		api.WithLogger(logger),
		api.WithLocation(cfg.Location),
	)

	var notifier application.Notifier
	if cfg.EmailJS.Enabled() {
		notifier = notify.New(cfg.EmailJS.ServiceID, cfg.EmailJS.PublicKey, notify.Templates{
			Registered:  cfg.EmailJS.RegistrationTemplate,
			PreApproved: cfg.EmailJS.PreApprovalTemplate,
			Approved:    cfg.EmailJS.ApprovalTemplate,
			Rejected:    cfg.EmailJS.RejectionTemplate,
		}, notify.WithLocation(cfg.Location), notify.WithLogger(logger))
	}

	completion := assistant.New(assistant.Settings{
		APIKey:  cfg.Groq.APIKey,
		BaseURL: cfg.Groq.BaseURL,
		Model:   cfg.Groq.Model,
		Timeout: cfg.APITimeout,
		Logger:  logger,
	})

	return &desk{
		cfg:       cfg,
		logger:    logger,
		metrics:   registry,
		auth:      application.NewAuthServiceWithLogger(client, sess, logger),
		visitors:  application.NewVisitorServiceWithLogger(client, sess, notifier, qr.NewEncoder(), cfg.CheckInBaseURL, time.Now, logger),
		meetings:  application.NewMeetingServiceWithLogger(client, sess, application.CallJoinPolicy(cfg.CallJoinPolicy), cfg.Location, logger),
		dashboard: application.NewDashboardService(client, sess, logger),
		chat:      application.NewChatService(client, completion, sess, logger),
	}
}
