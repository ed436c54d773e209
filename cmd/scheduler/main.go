package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"marketplace_backend/internal/docstore/backend"
	"marketplace_backend/internal/email"
	"marketplace_backend/internal/events"
	jobsrepo "marketplace_backend/internal/jobs/repository"
	jobsservice "marketplace_backend/internal/jobs/service"
	"marketplace_backend/internal/notification"
	"marketplace_backend/internal/notification/contacts"
	quotesrepo "marketplace_backend/internal/quotes/repository"
	quotesservice "marketplace_backend/internal/quotes/service"
	"marketplace_backend/internal/scheduler"
	"marketplace_backend/internal/sms"
	"marketplace_backend/platform/config"
	"marketplace_backend/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env, "docstore", cfg.GetDocumentStoreBackend())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	docs, err := backend.Open(ctx, cfg, false, log)
	if err != nil {
		log.Error("failed to open document store", "error", err)
		panic("failed to open document store: " + err.Error())
	}
	defer docs.Close()

	eventBus := events.NewInMemoryBus(log)
	defer eventBus.Wait()

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	// Worker-side quote expiry (no HTTP handlers required).
	jobsSvc := jobsservice.New(jobsrepo.New(docs.Store), cfg, log)
	jobsSvc.SetEventBus(eventBus)
	quotesSvc := quotesservice.New(quotesrepo.New(docs.Store), jobsSvc, cfg, log)
	quotesSvc.SetEventBus(eventBus)

	// Expiry and retry events are delivered by the same notification module the API runs.
	notificationModule := notification.New(docs.Store, email.NewSender(cfg), cfg, log)
	notificationModule.SetContactDirectory(contacts.NewDirectory(docs.Store, log))
	notificationModule.SetRetryScheduler(client)
	if smsClient := sms.NewClient(cfg, log); smsClient != nil {
		notificationModule.SetSMSSender(smsClient)
	}
	notificationModule.RegisterHandlers(eventBus)

	sweeper := scheduler.NewQuoteExpirySweeper(cfg, client, log)
	go sweeper.Run(ctx)

	worker, err := scheduler.NewWorker(cfg, eventBus, quotesSvc, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}
