package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/medvault-api/internal/config"
	"github.com/jwalitptl/medvault-api/internal/email"
	"github.com/jwalitptl/medvault-api/internal/handler/health"
	"github.com/jwalitptl/medvault-api/internal/repository/sqlstore"
	"github.com/jwalitptl/medvault-api/internal/service/notification"
	jobs "github.com/jwalitptl/medvault-api/internal/worker"
	"github.com/jwalitptl/medvault-api/pkg/logger"
	"github.com/jwalitptl/medvault-api/pkg/messaging"
	"github.com/jwalitptl/medvault-api/pkg/messaging/memory"
	"github.com/jwalitptl/medvault-api/pkg/messaging/redis"
	"github.com/jwalitptl/medvault-api/pkg/metrics"
	"github.com/jwalitptl/medvault-api/pkg/worker"
)

func main() {
	cfg, err := config.LoadConfig(os.Getenv("MEDVAULT_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.Setup(cfg.Log.Level, cfg.Log.Format)
	gin.SetMode(gin.ReleaseMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sqlstore.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatal(err, "Failed to connect to database")
	}
	defer db.Close()

	loc, err := cfg.Appointments.Location()
	if err != nil {
		log.Fatal(err, "Invalid clinic time zone")
	}
	m := metrics.New(cfg.Metrics.Namespace, prometheus.DefaultRegisterer)

	checks := map[string]health.Pinger{"database": db}

	// Without redis the processor and the notifier share an in-process broker.
	var broker messaging.Broker
	if cfg.Redis.URL != "" {
		rb, err := redis.NewRedisBroker(redis.Config{
			URL:              cfg.Redis.URL,
			BreakerThreshold: cfg.Outbox.BreakerThreshold,
			BreakerTimeout:   cfg.Outbox.BreakerTimeout,
		}, log, m)
		if err != nil {
			log.Fatal(err, "Failed to create Redis broker")
		}
		checks["redis"] = health.PingFunc(rb.Ping)
		broker = rb
	} else {
		log.Warn("redis.url is empty, using in-process broker")
		broker = memory.NewBroker(256)
	}
	defer broker.Close()

	outboxRepo := sqlstore.NewOutboxRepository(db)

	processor := worker.NewOutboxProcessor(
		outboxRepo,
		broker,
		worker.OutboxProcessorConfig{
			BatchSize:     cfg.Outbox.BatchSize,
			PollInterval:  cfg.Outbox.PollInterval,
			RetryAttempts: cfg.Outbox.MaxRetries,
			RetryDelay:    cfg.Outbox.RetryDelay,
			Channel:       cfg.Redis.Channel,
		},
		log,
		m,
	)

	var mailer email.Service
	if cfg.Notification.Enabled() {
		smtp := cfg.Notification.SMTP
		mailer = email.NewSMTPService(email.Config{
			Host:     smtp.Host,
			Port:     smtp.Port,
			Username: smtp.Username,
			Password: smtp.Password,
			From:     smtp.From,
		})
	}
	notifier := notification.NewService(
		sqlstore.NewNotificationRepository(db),
		mailer,
		cfg.Notification.FrontDeskEmail,
		log,
	)

	cleanup := jobs.NewOutboxCleanupWorker(outboxRepo, cfg.Outbox.Retention, cfg.Outbox.CleanupSchedule, log, m)

	healthSrv := startHealthServer(cfg.Server.HealthPort, checks, log)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		if err := messaging.Consume(ctx, broker, cfg.Redis.Channel, notifier.HandleMessage, log); err != nil {
			log.Error(err, "Notification consumer stopped")
			stop()
		}
	}()
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		if err := cleanup.Start(ctx, loc); err != nil {
			log.Error(err, "Outbox cleanup stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := healthSrv.Shutdown(shutdownCtx); err != nil {
		log.Error(err, "Health server forced to shutdown")
	}
	wg.Wait()
}

func startHealthServer(port int, checks map[string]health.Pinger, log *logger.Logger) *http.Server {
	engine := gin.New()
	engine.Use(gin.Recovery())
	health.NewHandler(prometheus.DefaultGatherer, checks).RegisterRoutes(engine)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: engine,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error(err, "Health check server failed")
		}
	}()
	return srv
}
