// Package main is the entry point for the API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/support-inbox/internal/authz"
	"github.com/capitalize-ai/support-inbox/internal/config"
	"github.com/capitalize-ai/support-inbox/internal/handler"
	natsclient "github.com/capitalize-ai/support-inbox/internal/nats"
	"github.com/capitalize-ai/support-inbox/internal/phone"
	"github.com/capitalize-ai/support-inbox/internal/service"
	"github.com/capitalize-ai/support-inbox/internal/store"
	"github.com/capitalize-ai/support-inbox/internal/whatsapp"
	"github.com/capitalize-ai/support-inbox/pkg/logger"
	"github.com/capitalize-ai/support-inbox/pkg/tracing"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize logger
	log, err := logger.NewForEnv(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting support inbox", zap.String("env", cfg.Env))

	// Initialize tracing if enabled
	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "support-inbox", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// Open the store
	var st store.Store
	if cfg.DatabaseURL != "" {
		db, err := store.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			log.Fatal("failed to open database", zap.Error(err))
		}
		if err := store.Migrate(ctx, db, log); err != nil {
			log.Fatal("failed to migrate database", zap.Error(err))
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}
		st = store.NewGormStore(db)
	} else {
		log.Warn("DATABASE_URL not set, using in-memory store")
		st = store.NewMemoryStore()
	}

	// Connect to NATS when configured
	var (
		natsClient *natsclient.Client
		journal    service.Journal
	)
	if cfg.NATSURL != "" {
		natsClient, err = natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Fatal("failed to connect to NATS", zap.Error(err))
		}
		defer natsClient.Close()

		// Ensure JetStream stream exists
		if err := natsclient.EnsureStream(ctx, natsClient.JetStream()); err != nil {
			log.Fatal("failed to ensure stream", zap.Error(err))
		}
		journal = natsclient.NewStreamManager(natsClient.JetStream())
	} else {
		log.Info("NATS_URL not set, journal disabled")
	}

	// Initialize services
	normalizer := phone.NewNormalizer(cfg.PhoneMinDigits)
	contactSvc := service.NewContactService(st.Contacts(), normalizer, log.Named("contacts"))
	conversationSvc := service.NewConversationService(st.Conversations(), journal, log.Named("conversations"))
	messageSvc := service.NewMessageService(st.Messages(), conversationSvc, journal, log.Named("messages"))
	roleSvc := service.NewRoleService(st.Roles(), log.Named("roles"))
	userSvc := service.NewUserService(st.Users(), st.Roles(), cfg.JWTSecret, cfg.JWTExpiration, log.Named("users"))

	ingestor := service.NewIngestor(service.IngestConfig{
		AccountID: cfg.TwilioAccountSID,
		Number:    cfg.TwilioWhatsAppNumber,
		Timeout:   cfg.IngestTimeout,
	}, normalizer, contactSvc, conversationSvc, messageSvc, log.Named("ingest"))

	provider := whatsapp.NewTwilioProvider(whatsapp.Config{
		AccountSID: cfg.TwilioAccountSID,
		AuthToken:  cfg.TwilioAuthToken,
		Timeout:    cfg.TwilioTimeout,
	}, log.Named("twilio"))
	dispatcher := service.NewDispatcher(service.DispatcherConfig{
		Channel:   "whatsapp",
		From:      cfg.TwilioWhatsAppNumber,
		Templates: cfg.WhatsAppTemplates,
	}, provider, normalizer, contactSvc, conversationSvc, messageSvc, log.Named("dispatch"))

	// Bootstrap roles and the admin account
	if cfg.SeedRoles {
		if n, err := roleSvc.Seed(ctx); err != nil {
			log.Error("failed to seed roles", zap.Error(err))
		} else if n > 0 {
			log.Info("seeded default roles", zap.Int("count", n))
		}
	}
	if created, err := userSvc.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		log.Error("failed to create admin user", zap.Error(err))
	} else if created {
		log.Info("created admin user", zap.String("email", cfg.AdminEmail))
	}

	var signature handler.SignatureChecker
	if cfg.TwilioValidateSignature {
		signature = whatsapp.NewSignatureValidator(cfg.TwilioAuthToken)
	}

	// Create router
	router := handler.NewRouter(handler.RouterConfig{
		JWTSecret:         cfg.JWTSecret,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
	}, handler.Handlers{
		Health:        handler.NewHealthHandler(st, natsClient),
		Webhook:       handler.NewWebhookHandler(ingestor, signature, cfg.WebhookPublicURL, log.Named("webhook")),
		Users:         handler.NewUserHandler(userSvc, roleSvc, log),
		Conversations: handler.NewConversationHandler(conversationSvc, log),
		Messages:      handler.NewMessageHandler(messageSvc, dispatcher, log),
		Contacts:      handler.NewContactHandler(contactSvc, log),
		WhatsApp:      handler.NewWhatsAppHandler(dispatcher, log),
	}, authz.NewGuard(st.Roles()), authz.DefaultPolicy(), log)

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  cfg.ServerReadTimeout,
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
