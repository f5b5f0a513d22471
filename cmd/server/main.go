package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"orbit/config"
	_ "orbit/docs"
	"orbit/internal/adapters/auth"
	"orbit/internal/adapters/email"
	delivery "orbit/internal/delivery/http"
	"orbit/internal/delivery/http/controllers"
	"orbit/internal/delivery/http/middleware"
	"orbit/internal/feed"
	"orbit/internal/repository/postgres"
	"orbit/internal/services"
)

// @title Orbit API
// @version 1.0
// @description Event discovery and live check-in backend.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Exit(1)
	}

	logger := config.NewLogger()

	db, err := sql.Open("postgres", cfg.DBUrl)
	if err != nil {
		logger.Error("failed to open database", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Error("failed to ping database", "err", err)
		os.Exit(1)
	}

	eventRepo := postgres.NewEventRepository(db)
	checkInRepo := postgres.NewCheckInRepository(db)
	userRepo := postgres.NewUserRepository(db)

	mailer, err := email.NewMailer(email.MailerConfig{
		Provider:    cfg.Email.Provider,
		FromAddress: cfg.Email.FromAddress,
		FromName:    cfg.Email.FromName,
		SES: email.SESConfig{
			Region:          cfg.Email.SESRegion,
			AccessKeyID:     cfg.Email.SESAccessKeyID,
			SecretAccessKey: cfg.Email.SESSecretAccessKey,
		},
	})
	if err != nil {
		logger.Error("failed to create mailer", "err", err)
		os.Exit(1)
	}
	renderer := email.NewTemplateRenderer()
	emailService := services.NewEmailService(mailer, renderer)

	hasher := auth.NewBcryptHasher(bcrypt.DefaultCost)
	issuer := auth.NewJWTIssuer(cfg.JWTSecret)
	verifier := auth.NewJWTVerifier(cfg.JWTSecret)

	eventService := services.NewEventService(eventRepo, checkInRepo, logger, 10*time.Second)
	checkInService := services.NewCheckInService(eventRepo, checkInRepo, userRepo, logger)
	userService := services.NewUserService(userRepo, eventRepo, hasher, issuer, cfg.TokenExpiry, emailService, logger)

	rosterFeed, err := feed.NewRosterFeed(cfg.DBUrl, checkInRepo, logger)
	if err != nil {
		logger.Error("failed to start roster feed", "err", err)
		os.Exit(1)
	}
	defer rosterFeed.Close()

	eventFeed, err := feed.NewEventFeed(cfg.DBUrl, eventRepo, logger)
	if err != nil {
		logger.Error("failed to start event feed", "err", err)
		os.Exit(1)
	}
	defer eventFeed.Close()

	authController := controllers.NewAuthController(logger, userService)
	eventController := controllers.NewEventController(logger, eventService, userService, checkInService, eventFeed)
	checkInController := controllers.NewCheckInController(logger, checkInService, rosterFeed)
	userController := controllers.NewUserController(logger, userService)

	mux := delivery.NewRouter(authController, eventController, checkInController, userController, verifier, userService)

	var handler http.Handler = mux
	handler = middleware.LoggingMiddleware(logger, handler)
	handler = middleware.CORS(cfg.CORSAllowedOrigins, handler)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  60 * time.Second,
		WriteTimeout: 0, // SSE responses stay open indefinitely
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "port", cfg.Port, "env", cfg.Environment)
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			os.Exit(1)
		}
	case sig := <-stop:
		logger.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Error("graceful shutdown failed", "err", err)
		}
	}
}
