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

	"techo_backend/internal/adapters"
	"techo_backend/internal/authz"
	"techo_backend/internal/conversion"
	"techo_backend/internal/dashboard"
	"techo_backend/internal/email"
	"techo_backend/internal/events"
	"techo_backend/internal/evidence"
	"techo_backend/internal/housing"
	apphttp "techo_backend/internal/http"
	"techo_backend/internal/http/router"
	"techo_backend/internal/incidences"
	incdomain "techo_backend/internal/incidences/domain"
	"techo_backend/internal/notification"
	"techo_backend/internal/notification/inapp"
	"techo_backend/internal/posventa"
	posventasvc "techo_backend/internal/posventa/service"
	"techo_backend/internal/ratings"
	"techo_backend/internal/scheduler"
	"techo_backend/platform/config"
	"techo_backend/platform/db"
	"techo_backend/platform/logger"
	"techo_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const (
	lockBackoff = 500 * time.Millisecond
	lockRetries = 240
)

// ensureBucket wraps the retry logic for verifying a MinIO bucket exists.
func ensureBucket(ctx context.Context, log *logger.Logger, store *evidence.MinIOStore) {
	if err := withRetry(ctx, log, "ensure "+store.Bucket()+" bucket", 5, 2*time.Second, func() error {
		return store.EnsureBucket(ctx)
	}); err != nil {
		log.Error("failed to ensure storage bucket exists", "error", err, "bucket", store.Bucket())
		panic("failed to ensure storage bucket exists: " + err.Error())
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, pool)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database ready")

	rdb := initRedis(ctx, cfg, log)
	if rdb != nil {
		defer func() { _ = rdb.Close() }()
	}

	minioClient, err := evidence.NewMinIOClient(cfg)
	if err != nil {
		log.Error("failed to initialize storage client", "error", err)
		panic("failed to initialize storage client: " + err.Error())
	}
	evidenceStore := evidence.NewMinIOStore(minioClient, cfg.GetMinioBucketEvidence(), evidence.EvidencePolicy(cfg.GetMinIOMaxFileSize()), log)
	planStore := evidence.NewMinIOStore(minioClient, cfg.GetMinioBucketPlans(), evidence.PlanPolicy(cfg.GetMinIOMaxFileSize()), log)
	ensureBucket(ctx, log, evidenceStore)
	ensureBucket(ctx, log, planStore)
	log.Info("storage initialized", "evidenceBucket", evidenceStore.Bucket(), "plansBucket", planStore.Bucket())

	converter := newConverter(cfg, rdb, planStore, log)

	var conversionQueue posventasvc.ConversionQueue
	queueClient := initQueueClient(cfg, log)
	if queueClient != nil {
		defer func() { _ = queueClient.Close() }()
		conversionQueue = queueClient
	}

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()
	users := authz.NewRepository(pool)

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	housingModule := housing.NewModule(pool, users, eventBus, log)

	incidencesModule := incidences.NewModule(incidences.Deps{
		Pool:        pool,
		Users:       users,
		Housing:     adapters.NewIncidenceHousing(housingModule.Service()),
		Store:       evidenceStore,
		Bus:         eventBus,
		Policy:      incdomain.Policy{AllowReopen: cfg.GetAllowReopen()},
		VisitWindow: cfg.GetSuggestedVisitWindow(),
		Validator:   val,
		Log:         log,
	})

	ratingsModule := ratings.NewModule(pool, users, adapters.NewRatingTargets(incidencesModule.Service()), eventBus, val, log)

	posventaModule := posventa.NewModule(posventa.Deps{
		Pool:      pool,
		Auth:      users,
		Housing:   adapters.NewPosventaHousing(housingModule.Service()),
		Plans:     planStore,
		Converter: converter,
		Queue:     conversionQueue,
		Bus:       eventBus,
		Validator: val,
		Log:       log,
	})

	dashboardModule := dashboard.NewModule(
		users,
		adapters.NewDashboardIncidences(incidencesModule.Service()),
		adapters.NewDashboardRatings(ratingsModule.Service()),
		adapters.NewDashboardHousing(housingModule.Service()),
		val,
		log,
	)

	// Notification module subscribes to domain events and serves the inbox.
	notificationModule := notification.New(
		inapp.NewRepository(pool),
		email.NewSender(cfg),
		users,
		adapters.NewNotificationIncidences(incidencesModule.Service()),
		cfg,
		log,
	)
	notificationModule.RegisterHandlers(eventBus)
	defer notificationModule.SSE().Close()

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			housingModule,
			incidencesModule,
			ratingsModule,
			posventaModule,
			dashboardModule,
			notificationModule,
		},
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router.New(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
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
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initRedis(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) *redis.Client {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; conversion cache is process-local and background jobs are disabled")
		return nil
	}
	var rdb *redis.Client
	if err := withRetry(ctx, log, "redis connection", 5, 2*time.Second, func() error {
		c, err := db.NewRedisClient(ctx, cfg)
		if err != nil {
			return err
		}
		rdb = c
		return nil
	}); err != nil {
		log.Error("failed to connect to redis", "error", err)
		panic("failed to connect to redis: " + err.Error())
	}
	return rdb
}

func newConverter(cfg *config.Config, rdb *redis.Client, plans *evidence.MinIOStore, log *logger.Logger) *conversion.Converter {
	if !cfg.IsGotenbergEnabled() {
		log.Warn("GOTENBERG_URL not configured; drawing plans cannot be converted")
	}
	client := conversion.NewGotenbergClient(cfg.GetGotenbergURL(), cfg.GetGotenbergUsername(), cfg.GetGotenbergPassword())
	opts := conversion.Options{Version: cfg.GetConverterVersion(), TTL: cfg.GetConversionCacheTTL()}
	if rdb == nil {
		return conversion.NewConverter(client, plans, conversion.NewMemoryCache(), nil, opts, log)
	}
	return conversion.NewConverter(client, plans, conversion.NewRedisCache(rdb), conversion.NewRedisLocker(rdb, lockBackoff, lockRetries), opts, log)
}

func initQueueClient(cfg config.SchedulerConfig, log *logger.Logger) *scheduler.Client {
	if cfg.GetRedisURL() == "" {
		return nil
	}
	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize task queue client", "error", err)
		return nil
	}
	return client
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
