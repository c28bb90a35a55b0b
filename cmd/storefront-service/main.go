package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/adilrza0/qusamba-sub001/internal/api"
	"github.com/adilrza0/qusamba-sub001/internal/cache"
	"github.com/adilrza0/qusamba-sub001/internal/cart"
	"github.com/adilrza0/qusamba-sub001/internal/config"
	"github.com/adilrza0/qusamba-sub001/internal/events"
	"github.com/adilrza0/qusamba-sub001/internal/metrics"
	"github.com/adilrza0/qusamba-sub001/internal/repository"
	"github.com/adilrza0/qusamba-sub001/internal/service"
	"github.com/adilrza0/qusamba-sub001/internal/tracing"
	"github.com/adilrza0/qusamba-sub001/pkg/db"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("service stopped with error", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrapf(err, "parse log level %q", level)
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	return zcfg.Build()
}

type storage struct {
	coupons service.CouponRepo
	usage   service.UsageRepo
	catalog service.PriceCatalog
	close   func()
}

// openStorage selects postgres when DB_HOST is set and in-memory storage
// otherwise. In memory mode there is no catalog and carts keep their own
// unit prices.
func openStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage, error) {
	if !cfg.Postgres.Enabled() {
		logger.Warn("DB_HOST not set, running on in-memory storage")
		mem := repository.NewMemoryStore()
		return storage{coupons: mem, usage: mem, close: func() {}}, nil
	}

	if cfg.Postgres.Migrate {
		if err := db.RunMigrations(cfg.Postgres, logger); err != nil {
			return storage{}, err
		}
	}

	conn, err := db.NewPostgresConnection(ctx, cfg.Postgres)
	if err != nil {
		return storage{}, err
	}
	logger.Info("connected to postgres", zap.String("host", cfg.Postgres.Host), zap.String("db", cfg.Postgres.DBName))

	return storage{
		coupons: repository.NewCouponRepo(conn),
		usage:   repository.NewUsageRepo(conn),
		catalog: repository.NewCatalogRepo(conn),
		close:   func() { _ = conn.Close() },
	}, nil
}

func openCartBackend(ctx context.Context, cfg *config.Config, logger *zap.Logger) (cache.KV, func(), error) {
	if cfg.RedisAddr == "" {
		logger.Warn("REDIS_ADDR not set, carts are kept in process memory")
		return cache.NewMemoryKV(), func() {}, nil
	}

	client, err := cache.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
	return cache.NewRedisKV(client), func() { _ = client.Close() }, nil
}

func newPublisher(cfg *config.Config, logger *zap.Logger) events.Publisher {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Warn("KAFKA_BROKERS not set, redemption events are only logged")
		return events.NewLogPublisher(logger)
	}
	logger.Info("publishing redemption events",
		zap.Strings("brokers", cfg.KafkaBrokers),
		zap.String("topic", cfg.KafkaTopic),
	)
	return events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	tp := tracing.NewProvider(cfg.ServiceName, cfg.TraceSampleRatio)
	tracing.Install(tp)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return errors.Wrap(err, "open storage")
	}
	defer store.close()

	kv, closeKV, err := openCartBackend(ctx, cfg, logger)
	if err != nil {
		return errors.Wrap(err, "open cart backend")
	}
	defer closeKV()

	publisher := newPublisher(cfg, logger)
	defer func() { _ = publisher.Close() }()

	m := metrics.New()
	carts := cart.NewStore(kv, cfg.CartTTL, logger, m)
	coupons := service.NewCouponService(store.coupons, store.usage, publisher, m, logger)
	checkout := service.NewCheckoutService(carts, store.catalog, coupons, logger)

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: api.NewRouter(api.Deps{
			Coupons:  coupons,
			Checkout: checkout,
			Carts:    carts,
			Metrics:  m,
			Log:      logger,
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting storefront-service", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
	}

	// we received an interrupt signal, shut down.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	return nil
}
