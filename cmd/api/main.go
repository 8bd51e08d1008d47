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

	"github.com/go-subtracker/internal/application/reminder"
	"github.com/go-subtracker/internal/config"
	"github.com/go-subtracker/internal/infrastructure/dynamo"
	jwtinfra "github.com/go-subtracker/internal/infrastructure/jwt"
	"github.com/go-subtracker/internal/infrastructure/logger"
	"github.com/go-subtracker/internal/infrastructure/metrics"
	s3infra "github.com/go-subtracker/internal/infrastructure/s3"
	"github.com/go-subtracker/internal/infrastructure/scheduler"
	"github.com/go-subtracker/internal/infrastructure/smtp"
	"github.com/go-subtracker/internal/infrastructure/sns"
	transporthttp "github.com/go-subtracker/internal/transport/http"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	log := logger.New(cfg)
	if envErr != nil {
		log.Info("no .env file found, reading from environment")
	}

	reminderLoc, err := cfg.Reminder.LoadLocation()
	if err != nil {
		log.WithError(err).WithField("timezone", cfg.Reminder.Timezone).Warn("invalid REMINDER_TIMEZONE, using UTC")
		reminderLoc = time.UTC
	}

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables, log)

	userRepo := dynamo.NewUserRepo(dynamoClient, cfg.DynamoTables.Users)
	subRepo := dynamo.NewSubscriptionRepo(dynamoClient, cfg.DynamoTables.Subscriptions)

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		log.WithError(err).Fatal("jwt provider not available")
	}

	var smsSender sns.SMSSender
	if cfg.SMSEnabled {
		if sender, err := sns.NewSender(cfg); err == nil {
			smsSender = sender
		} else {
			log.WithError(err).Warn("sns sender not available, sms reminders disabled")
		}
	}

	var objectStore transporthttp.ObjectStore
	if cfg.S3ExportBucket != "" {
		objectStore = s3infra.NewStore(s3infra.NewClient(cfg), cfg.S3ExportBucket)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	evaluator := reminder.NewEvaluator(reminder.Deps{
		Users:            userRepo,
		Subscriptions:    subRepo,
		Mailer:           smtp.NewMailer(cfg),
		SMS:              smsSender,
		Metrics:          metrics.NewReminder(reg),
		Log:              log.WithField("component", "reminder"),
		Location:         reminderLoc,
		MaxNotifications: cfg.Reminder.MaxNotifications,
		PassTimeout:      cfg.Reminder.PassTimeout,
		SweepTimeout:     cfg.Reminder.SweepTimeout,
	})

	deps := &transporthttp.Deps{
		UserRepo:         userRepo,
		SubscriptionRepo: subRepo,
		ListRepo:         dynamo.NewListRepo(dynamoClient, cfg.DynamoTables.Lists),
		PriceHistoryRepo: dynamo.NewPriceHistoryRepo(dynamoClient, cfg.DynamoTables.PriceHistory),
		ObjectStore:      objectStore,
		Reminder:         evaluator,
		JWTProvider:      jwtProvider,
		Log:              log,
	}
	if cfg.MetricsEnabled {
		deps.Metrics = reg
	}

	router := transporthttp.NewRouter(cfg, deps)

	sched := scheduler.New(evaluator, log, cfg.Reminder.CronSpec, reminderLoc, cfg.Reminder.SweepTimeout)
	if err := sched.Start(); err != nil {
		log.WithError(err).Fatal("reminder scheduler")
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.WithField("env", cfg.AppEnv).Infof("server starting on :%s", cfg.AppPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("forced shutdown")
	}
	sched.Stop()
	evaluator.Close()
	log.Info("server stopped")
}
