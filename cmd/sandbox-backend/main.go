package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/retaildesk/api"
	"github.com/angelmondragon/retaildesk/api/controllers"
	"github.com/angelmondragon/retaildesk/api/routes"
	"github.com/angelmondragon/retaildesk/internal/auth"
	"github.com/angelmondragon/retaildesk/internal/cron"
	"github.com/angelmondragon/retaildesk/internal/customers"
	"github.com/angelmondragon/retaildesk/internal/products"
	"github.com/angelmondragon/retaildesk/internal/sales"
	"github.com/angelmondragon/retaildesk/internal/seed"
	"github.com/angelmondragon/retaildesk/internal/users"
	"github.com/angelmondragon/retaildesk/pkg/config"
	"github.com/angelmondragon/retaildesk/pkg/db"
	"github.com/angelmondragon/retaildesk/pkg/logger"
	"github.com/angelmondragon/retaildesk/pkg/metrics"
	"github.com/angelmondragon/retaildesk/pkg/migrate"
	"github.com/angelmondragon/retaildesk/pkg/redis"
	"github.com/angelmondragon/retaildesk/pkg/security"
)

const serviceName = "sandbox-backend"

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)
	requireResource(context.Background(), logg, "sandbox config", cfg.ValidateSandbox())

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "sandbox backend stopped", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	var closers []io.Closer
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i].Close())
		}
	}()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	closers = append(closers, dbClient)

	if err := migrate.MaybeRun(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	hasher := security.NewHasher(cfg.Password)
	if cfg.Sandbox.Seed {
		if _, err := seed.Run(ctx, dbClient, hasher, cfg.Sandbox.SeedPassword, logg); err != nil {
			return fmt.Errorf("seed sandbox: %w", err)
		}
	}

	ready := map[string]controllers.Pinger{"db": dbClient}
	deps := routes.Deps{Config: cfg, Logger: logg, Ready: ready}
	var jobLock cron.Lock

	if cfg.Redis.Configured() {
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return fmt.Errorf("bootstrap redis: %w", err)
		}
		closers = append(closers, redisClient)
		ready["redis"] = redisClient
		deps.Limiter = redisClient
		if jobLock, err = cron.NewRedisLock(redisClient, redisClient.LockKey("sandbox-jobs"), 0); err != nil {
			return err
		}
	} else {
		logg.Warn(ctx, "redis not configured, login rate limiting disabled")
	}

	userRepo := users.NewRepository(dbClient.DB())
	productRepo := products.NewRepository(dbClient.DB())
	salesRepo := sales.NewRepository(dbClient.DB())

	deps.Auth, err = auth.NewService(auth.ServiceParams{
		UserRepo:  userRepo,
		Passwords: hasher,
		JWTConfig: cfg.JWT,
	})
	if err != nil {
		return fmt.Errorf("auth service: %w", err)
	}

	deps.Sales, err = sales.NewService(sales.ServiceParams{
		Tx:       dbClient,
		Sales:    salesRepo,
		Products: productRepo,
		Merchant: cfg.Sandbox.QRMerchant,
		Logger:   logg,
	})
	if err != nil {
		return fmt.Errorf("sales service: %w", err)
	}

	deps.Products = productRepo
	deps.Customers = customers.NewRepository(dbClient.DB())
	deps.Users = userRepo

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	deps.Registry = reg

	scheduler, err := newScheduler(cfg, logg, salesRepo, jobLock, reg)
	if err != nil {
		return err
	}

	addr := ":" + cfg.Sandbox.Port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":    cfg.App.Env,
		"addr":   addr,
		"driver": dbClient.Dialect(),
	})
	logg.Info(ctx, "starting sandbox backend")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return api.Serve(gctx, api.NewServer(addr, routes.NewRouter(deps)), logg)
	})
	if scheduler != nil {
		g.Go(func() error {
			if err := scheduler.Run(gctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	return g.Wait()
}

// newScheduler returns nil when pending sales never expire.
func newScheduler(cfg *config.Config, logg *logger.Logger, salesRepo *sales.Repository, lock cron.Lock, reg *prometheus.Registry) (*cron.Service, error) {
	if cfg.Sandbox.PendingSaleTTL <= 0 {
		return nil, nil
	}
	job, err := cron.NewPendingSaleJob(cron.PendingSaleJobParams{
		Logger: logg,
		Sales:  salesRepo,
		TTL:    cfg.Sandbox.PendingSaleTTL,
	})
	if err != nil {
		return nil, err
	}
	return cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(job),
		Lock:     lock,
		Metrics:  metrics.NewJobMetrics(reg),
		Interval: cfg.Sandbox.SweepInterval,
	})
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
