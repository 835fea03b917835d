package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"techo_backend/internal/adapters"
	"techo_backend/internal/authz"
	"techo_backend/internal/conversion"
	"techo_backend/internal/email"
	"techo_backend/internal/events"
	"techo_backend/internal/evidence"
	"techo_backend/internal/housing"
	"techo_backend/internal/incidences"
	incdomain "techo_backend/internal/incidences/domain"
	"techo_backend/internal/notification"
	"techo_backend/internal/notification/inapp"
	"techo_backend/internal/posventa"
	"techo_backend/internal/scheduler"
	"techo_backend/platform/config"
	"techo_backend/platform/db"
	"techo_backend/platform/logger"
	"techo_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting worker", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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
	defer func() { _ = rdb.Close() }()

	minioClient, err := evidence.NewMinIOClient(cfg)
	if err != nil {
		log.Error("failed to initialize storage client", "error", err)
		panic("failed to initialize storage client: " + err.Error())
	}
	evidenceStore := evidence.NewMinIOStore(minioClient, cfg.GetMinioBucketEvidence(), evidence.EvidencePolicy(cfg.GetMinIOMaxFileSize()), log)
	planStore := evidence.NewMinIOStore(minioClient, cfg.GetMinioBucketPlans(), evidence.PlanPolicy(cfg.GetMinIOMaxFileSize()), log)

	converter := conversion.NewConverter(
		conversion.NewGotenbergClient(cfg.GetGotenbergURL(), cfg.GetGotenbergUsername(), cfg.GetGotenbergPassword()),
		planStore,
		conversion.NewRedisCache(rdb),
		conversion.NewRedisLocker(rdb, 500*time.Millisecond, 240),
		conversion.Options{Version: cfg.GetConverterVersion(), TTL: cfg.GetConversionCacheTTL()},
		log,
	)

	queue, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize task queue client", "error", err)
		panic("failed to initialize task queue client: " + err.Error())
	}
	defer func() { _ = queue.Close() }()

	// Worker-side module wiring (no HTTP handlers required).
	eventBus := events.NewInMemoryBus(log)
	val := validator.New()
	users := authz.NewRepository(pool)

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
	posventaModule := posventa.NewModule(posventa.Deps{
		Pool:      pool,
		Auth:      users,
		Housing:   adapters.NewPosventaHousing(housingModule.Service()),
		Plans:     planStore,
		Converter: converter,
		Queue:     queue,
		Bus:       eventBus,
		Validator: val,
		Log:       log,
	})
	notificationModule := notification.New(
		inapp.NewRepository(pool),
		email.NewSender(cfg),
		users,
		adapters.NewNotificationIncidences(incidencesModule.Service()),
		cfg,
		log,
	)

	projections := adapters.NewDashboardIncidences(incidencesModule.Service())
	sweep := scheduler.NewStaleSweep(projections, queue, log, cfg.GetStaleSweepInterval())
	go sweep.Run(ctx)

	worker, err := scheduler.NewWorker(
		cfg,
		posventaModule.Service(),
		adapters.NewVisitDigester(incidencesModule.Service(), notificationModule),
		log,
	)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
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
