package main

import (
	"context"
	"fmt"
	"time"

	"github.com/BearBump/ParcelBox/config"
	"github.com/BearBump/ParcelBox/internal/broker/kafka"
	"github.com/BearBump/ParcelBox/internal/cache/rediscache"
	"github.com/BearBump/ParcelBox/internal/services/reconciler"
	"github.com/BearBump/ParcelBox/internal/storage/pgparcel"
)

type workerFactories struct {
	newStorage     func(cfg *config.Config) (repo reconciler.Repository, closeFn func(), err error)
	newProducer    func(cfg *config.Config) reconciler.Producer
	newRateLimiter func(cfg *config.Config) reconciler.RateLimiter
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (reconciler.Repository, func(), error) {
			sslMode := cfg.Database.SSLMode
			if sslMode == "" {
				sslMode = "disable"
			}
			connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
				cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
			st, err := pgparcel.New(connString)
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newProducer: func(cfg *config.Config) reconciler.Producer {
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			return kafka.NewProducer(brokers)
		},
		newRateLimiter: func(cfg *config.Config) reconciler.RateLimiter {
			redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			return rediscache.NewRateLimiter(redisAddr)
		},
	}
}

func RunParcelWorker(ctx context.Context, cfg *config.Config, f workerFactories) error {
	topic := cfg.Kafka.PaymentReconciledTopicName
	if topic == "" {
		topic = "payment.reconciled"
	}

	pollInterval := time.Duration(cfg.ParcelBox.WorkerPollIntervalSeconds) * time.Second
	if pollInterval <= 0 {
		pollInterval = 30 * time.Second
	}
	batchSize := cfg.ParcelBox.WorkerBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	rlPerMin := int64(cfg.ParcelBox.WorkerRateLimitPerMinute)
	if rlPerMin <= 0 {
		rlPerMin = 120
	}
	dedupWindow := time.Duration(cfg.ParcelBox.WorkerDedupWindowSeconds) * time.Second
	if dedupWindow <= 0 {
		dedupWindow = 5 * time.Minute
	}

	repo, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	producer := f.newProducer(cfg)
	rl := f.newRateLimiter(cfg)

	p := reconciler.New(repo, producer, rl, topic).
		WithSettings(pollInterval, batchSize, rlPerMin, dedupWindow)

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runWorkerHTTPServer(ctx, workerHTTPOpts{
			httpAddr: cfg.ParcelBox.WorkerHTTPAddr,
			poller:   p,
			cfg:      cfg,
		})
	}()

	pollErr := make(chan error, 1)
	go func() {
		pollErr <- p.Run(ctx)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-pollErr:
		return err
	case err := <-httpErr:
		return err
	}
}
