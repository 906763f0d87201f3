package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/medvault-api/internal/config"
	appointmentHandler "github.com/jwalitptl/medvault-api/internal/handler/appointment"
	"github.com/jwalitptl/medvault-api/internal/handler/health"
	notificationHandler "github.com/jwalitptl/medvault-api/internal/handler/notification"
	"github.com/jwalitptl/medvault-api/internal/middleware"
	"github.com/jwalitptl/medvault-api/internal/repository/sqlstore"
	"github.com/jwalitptl/medvault-api/internal/router"
	appointmentService "github.com/jwalitptl/medvault-api/internal/service/appointment"
	eventService "github.com/jwalitptl/medvault-api/internal/service/event"
	notificationService "github.com/jwalitptl/medvault-api/internal/service/notification"
	"github.com/jwalitptl/medvault-api/internal/service/roster"
	"github.com/jwalitptl/medvault-api/pkg/auth"
	"github.com/jwalitptl/medvault-api/pkg/logger"
	"github.com/jwalitptl/medvault-api/pkg/metrics"
	"github.com/jwalitptl/medvault-api/pkg/validator"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("MEDVAULT_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.Setup(cfg.Log.Level, cfg.Log.Format)
	if cfg.JWT.Secret == "" {
		log.Fatal(errors.New("jwt.secret is empty"), "MEDVAULT_JWT_SECRET must be set")
	}
	if logger.ParseLevel(cfg.Log.Level) != logger.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := sqlstore.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatal(err, "failed to connect to database")
	}
	defer db.Close()

	loc, err := cfg.Appointments.Location()
	if err != nil {
		log.Fatal(err, "invalid clinic time zone")
	}
	m := metrics.New(cfg.Metrics.Namespace, prometheus.DefaultRegisterer)

	// Initialize repositories
	appointmentRepo := sqlstore.NewAppointmentRepository(db)
	rosterRepo := sqlstore.NewRosterRepository(db)
	outboxRepo := sqlstore.NewOutboxRepository(db)
	notificationRepo := sqlstore.NewNotificationRepository(db)

	// Initialize services
	defaults, err := roster.NewStatic(cfg.Appointments.DefaultSlots, cfg.Appointments.DoctorSlots)
	if err != nil {
		log.Fatal(err, "invalid slot roster configuration")
	}
	rosterSvc := roster.NewCached(rosterRepo, defaults, cfg.Appointments.RosterCacheTTL, log)
	eventSvc := eventService.NewEventService(outboxRepo, log)
	appointmentSvc := appointmentService.NewService(
		appointmentRepo,
		rosterSvc,
		eventSvc,
		m,
		log,
		appointmentService.WithLocation(loc),
	)
	// The API only reads notifications; the worker creates them.
	notificationSvc := notificationService.NewService(notificationRepo, nil, "", log)

	// Initialize middleware and handlers
	authMiddleware := middleware.NewAuthMiddleware(auth.NewVerifier(cfg.JWT.Secret, cfg.JWT.Issuer))
	healthHandler := health.NewHandler(prometheus.DefaultGatherer, map[string]health.Pinger{"database": db})

	r := router.NewRouter(
		authMiddleware,
		healthHandler,
		router.RouterConfig{
			Server:    cfg.Server,
			RateLimit: cfg.RateLimit,
			CORS:      cfg.CORS,
			Metrics:   m,
		},
		appointmentHandler.NewHandler(appointmentSvc, validator.New()),
		notificationHandler.NewHandler(notificationSvc),
	)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("starting server", "port", cfg.Server.Port, "driver", cfg.Database.Driver, "timezone", loc.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err, "failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "server forced to shutdown")
	}

	log.Info("server exited properly")
}
