package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketplace_backend/internal/adapters/storage"
	"marketplace_backend/internal/docstore/backend"
	"marketplace_backend/internal/email"
	"marketplace_backend/internal/events"
	"marketplace_backend/internal/guest"
	apphttp "marketplace_backend/internal/http"
	"marketplace_backend/internal/http/router"
	"marketplace_backend/internal/jobs"
	"marketplace_backend/internal/messaging"
	"marketplace_backend/internal/notification"
	"marketplace_backend/internal/notification/contacts"
	"marketplace_backend/internal/notification/sse"
	"marketplace_backend/internal/quotes"
	"marketplace_backend/internal/ratelimit"
	"marketplace_backend/internal/scheduler"
	"marketplace_backend/internal/sms"
	"marketplace_backend/internal/vehicle"
	"marketplace_backend/platform/config"
	"marketplace_backend/platform/httpkit"
	"marketplace_backend/platform/logger"
	"marketplace_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

const storageBucketEnsureErrMsg = "failed to ensure storage bucket exists"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.GetHTTPAddr(), "docstore", cfg.GetDocumentStoreBackend())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	docs, err := backend.Open(ctx, cfg, true, log)
	if err != nil {
		log.Error("failed to open document store", "error", err)
		panic("failed to open document store: " + err.Error())
	}
	defer docs.Close()
	store := docs.Store

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	retryScheduler, closeScheduler := initRetryScheduler(cfg, log)
	if closeScheduler != nil {
		defer closeScheduler()
	}

	draftLimiter, vehicleLimiter, closeLimiters := initRateLimiters(ctx, cfg, log)
	defer closeLimiters()

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	guestModule := guest.NewModule(store, eventBus, cfg, log)
	jobsModule := jobs.NewModule(store, eventBus, val, guestModule.Cookies(), draftLimiter, cfg, log)
	quotesModule := quotes.NewModule(store, eventBus, val, jobsModule.Service(), cfg, log)
	quotesModule.RegisterHandlers(eventBus)

	// Guest linking and draft ownership run through the jobs service
	guestModule.SetJobLinker(jobsModule.Service())
	jobsModule.Service().SetGuestSessions(guestModule.Service())
	jobsModule.Service().SetPendingQuoteCounter(quotesModule.Service())

	messagingModule := messaging.NewModule(store, eventBus, val, jobsModule.Service(), quotesModule.Service(), log)
	messagingModule.RegisterHandlers(eventBus)

	vehicleModule := vehicle.NewModule(cfg, vehicleLimiter, cfg.GetGuestCookieName(), log)
	if prefill := vehicle.NewJobPrefill(vehicleModule.Service()); prefill != nil {
		jobsModule.Service().SetVehicleLookup(prefill)
	}

	// Storage service for photo and attachment uploads (MinIO)
	if cfg.IsMinIOEnabled() {
		storageSvc, err := storage.NewMinIOService(cfg)
		if err != nil {
			log.Error("failed to initialize storage service", "error", err)
			panic("failed to initialize storage service: " + err.Error())
		}
		ensureBucket(ctx, log, storageSvc, "job-photos", cfg.GetMinioBucketJobPhotos())
		ensureBucket(ctx, log, storageSvc, "message-attachments", cfg.GetMinioBucketMessageAttachments())
		jobsModule.Service().SetPhotoStorage(storageSvc, cfg)
		messagingModule.Service().SetStorage(storageSvc, cfg)
		log.Info(
			"storage service initialized",
			"jobPhotosBucket", cfg.GetMinioBucketJobPhotos(),
			"messageAttachmentsBucket", cfg.GetMinioBucketMessageAttachments(),
		)
	} else {
		log.Warn("MINIO_ENDPOINT not configured; photo and attachment uploads disabled")
	}

	// Notification module subscribes to domain events and serves the inbox
	contactDirectory := contacts.NewDirectory(store, log)
	streams := sse.New(log)
	defer streams.Close()
	notificationModule := notification.New(store, email.NewSender(cfg), cfg, log)
	notificationModule.SetSSE(streams)
	notificationModule.SetContactDirectory(contactDirectory)
	messagingModule.Service().SetRoleDirectory(contactDirectory)
	if smsClient := sms.NewClient(cfg, log); smsClient != nil {
		notificationModule.SetSMSSender(smsClient)
	}
	if retryScheduler != nil {
		notificationModule.SetRetryScheduler(retryScheduler)
	}
	notificationModule.RegisterHandlers(eventBus)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	modules := []apphttp.Module{
		guestModule,
		jobsModule,
		quotesModule,
		messagingModule,
		notificationModule,
	}
	if vehicleModule != nil {
		modules = append(modules, vehicleModule)
	}

	app := &apphttp.App{
		Config:     cfg,
		Logger:     log,
		Health:     docs,
		Actors:     httpkit.NewJWTActorResolver(cfg),
		EventBus:   eventBus,
		Middleware: []gin.HandlerFunc{
			httpkit.NewIPRateLimiter(rate.Limit(cfg.GetAPIRatePerSecond()), cfg.GetAPIRateBurst(), log).RateLimit(),
			contactDirectory.Track(),
		},
		Modules:    modules,
	}

	srv := &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.GetHTTPAddr())
		srvErr <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", "error", err)
		}
		eventBus.Wait()
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

// initRateLimiters shares quotas across instances through redis when it is
// configured, and falls back to per-process windows otherwise.
func initRateLimiters(ctx context.Context, cfg *config.Config, log *logger.Logger) (draft, vehicles ratelimit.Limiter, closeFn func()) {
	if cfg.IsRedisEnabled() {
		opt, err := redis.ParseURL(cfg.GetRedisURL())
		if err == nil {
			client := redis.NewClient(opt)
			draft = ratelimit.NewRedisLimiter(client, "ratelimit:drafts", cfg.GetDraftRateLimit(), cfg.GetDraftRateWindow())
			vehicles = ratelimit.NewRedisLimiter(client, "ratelimit:vehicles", cfg.GetVehicleRateLimit(), cfg.GetVehicleRateWindow())
			return draft, vehicles, func() { _ = client.Close() }
		}
		log.Error("invalid REDIS_URL; falling back to in-memory rate limits", "error", err)
	}

	memDraft := ratelimit.NewMemoryLimiter(cfg.GetDraftRateLimit(), cfg.GetDraftRateWindow())
	memVehicles := ratelimit.NewMemoryLimiter(cfg.GetVehicleRateLimit(), cfg.GetVehicleRateWindow())
	go memDraft.Run(ctx, time.Minute)
	go memVehicles.Run(ctx, time.Minute)
	return memDraft, memVehicles, func() {}
}

func initRetryScheduler(cfg config.SchedulerConfig, log *logger.Logger) (*scheduler.Client, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; notification email retries disabled")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

// ensureBucket wraps the retry logic for verifying a MinIO bucket exists.
func ensureBucket(ctx context.Context, log *logger.Logger, storageSvc storage.StorageService, name, bucket string) {
	if err := backend.WithRetry(ctx, log, "ensure "+name+" bucket", 5, 2*time.Second, func() error {
		return storageSvc.EnsureBucketExists(ctx, bucket)
	}); err != nil {
		log.Error(storageBucketEnsureErrMsg, "error", err, "bucket", bucket)
		panic(storageBucketEnsureErrMsg + ": " + err.Error())
	}
}
