package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/BearBump/ParcelBox/config"
	"github.com/BearBump/ParcelBox/internal/api/parcelapi"
	"github.com/BearBump/ParcelBox/internal/broker/kafka"
	"github.com/BearBump/ParcelBox/internal/cache/rediscache"
	"github.com/BearBump/ParcelBox/internal/integrations/payprovider"
	"github.com/BearBump/ParcelBox/internal/integrations/payprovider/fake"
	"github.com/BearBump/ParcelBox/internal/integrations/payprovider/stripehttp"
	"github.com/BearBump/ParcelBox/internal/services/parcels"
	"github.com/BearBump/ParcelBox/internal/services/payments"
	"github.com/BearBump/ParcelBox/internal/services/trackings"
	"github.com/BearBump/ParcelBox/internal/services/users"
	"github.com/BearBump/ParcelBox/internal/storage/pgparcel"
)

type parcelAPIApp struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     parcelAPIOpts
	api      *parcelapi.API
	payments *payments.Service
	consumer *kafka.Consumer
	closeDB  func()
}

func mustBootstrapParcelAPI() *parcelAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("ошибка парсинга конфига, %v", err))
	}

	httpAddr := cfg.ParcelBox.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.ParcelBox.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "parcel-api"
	}
	topic := cfg.Kafka.PaymentReconciledTopicName
	if topic == "" {
		topic = "payment.reconciled"
	}
	cacheTTL := time.Duration(cfg.ParcelBox.ParcelCacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	intentLimit := int64(cfg.ParcelBox.IntentRateLimitPerMinute)
	if intentLimit <= 0 {
		intentLimit = 30
	}

	st := mustOpenPostgresWithRetry(connString(cfg), 60*time.Second)

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	rc := rediscache.New(redisAddr)
	rl := rediscache.NewRateLimiter(redisAddr)

	// Если base_url провайдера не задан — локальный fake (дев-режим).
	var provider payprovider.Client
	if cfg.ParcelBox.ProviderBaseURL != "" {
		provider = stripehttp.New(cfg.ParcelBox.ProviderBaseURL, cfg.ParcelBox.ProviderAPIKey)
	} else {
		provider = fake.New()
	}

	parcelsSvc := parcels.New(st, rc, cacheTTL)
	usersSvc := users.New(st)
	paymentsSvc := payments.New(st, provider, rc, rl, cfg.ParcelBox.ProviderCurrency, intentLimit)
	trackingsSvc := trackings.New(st)

	api := parcelapi.New(parcelsSvc, usersSvc, paymentsSvc, trackingsSvc)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	consumer := kafka.NewConsumer(brokers, topic, consumerGroup)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &parcelAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: parcelAPIOpts{
			httpAddr:      httpAddr,
			swaggerPath:   os.Getenv("swaggerPath"),
			topic:         topic,
			consumerGroup: consumerGroup,
		},
		api:      api,
		payments: paymentsSvc,
		consumer: consumer,
		closeDB:  st.Close,
	}
}

func connString(cfg *config.Config) string {
	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pgparcel.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pgparcel.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *parcelAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
}

func (a *parcelAPIApp) Run() error {
	return runParcelAPI(a.ctx, a.opts, a.api, a.payments, a.consumer)
}

func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}
