package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/your-org/podping-watcher/internal/accounts"
	"github.com/your-org/podping-watcher/internal/podping"
	"github.com/your-org/podping-watcher/internal/watcher"
	"github.com/your-org/podping-watcher/pkg/config"
	"github.com/your-org/podping-watcher/pkg/kafka"
	"github.com/your-org/podping-watcher/pkg/logger"
	"github.com/your-org/podping-watcher/pkg/metrics"
	"github.com/your-org/podping-watcher/pkg/storage/objectstore"
	"github.com/your-org/podping-watcher/pkg/tracing"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logr, err := logger.New(cfg.App.LogLevel, cfg.App.Environment)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck
	logr = logr.With(zap.String("service", cfg.App.Name), zap.String("version", cfg.App.Version))

	traceShutdown, err := tracing.Init(ctx, tracing.Config{
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		SampleRatio: cfg.Tracing.SampleRatio,
		Attributes:  parseResourceAttributes(cfg.Tracing.ResourceAttr),
		ServiceName: cfg.App.Name,
	})
	if err != nil {
		logr.Fatal("init tracing", zap.Error(err))
	}
	defer traceShutdown(context.Background()) //nolint:errcheck

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(promRegistry)

	resolver, closeResolver, err := buildResolver(cfg)
	if err != nil {
		logr.Fatal("init account resolver", zap.Error(err))
	}
	defer closeResolver()

	registry := accounts.NewRegistry(accounts.Params{
		Resolver: resolver,
		Anchors:  cfg.Accounts.Anchors,
		Logger:   logr,
		Metrics:  m,
	})
	if err := registry.Refresh(ctx); err != nil {
		logr.Warn("initial account refresh failed, trusting anchors only",
			zap.Strings("anchors", cfg.Accounts.Anchors), zap.Error(err))
	}
	go registry.Run(ctx, cfg.Accounts.RefreshInterval)

	producer := kafka.NewProducer(kafka.ProducerConfig{
		Brokers:      cfg.Kafka.Brokers,
		Topic:        cfg.Kafka.EventsTopic,
		BatchSize:    cfg.Kafka.BatchSize,
		BatchTimeout: cfg.Kafka.BatchTimeout,
		Compression:  kafka.CompressionFromString(cfg.Kafka.CompressionCodec),
		RequiredAcks: kafkago.RequireAll,
		MaxAttempts:  cfg.Kafka.Retries,
	})

	startOffset := kafkago.FirstOffset
	if cfg.Kafka.StartFromLatest {
		startOffset = kafkago.LastOffset
	}
	consumer := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:        cfg.Kafka.Brokers,
		Topic:          cfg.Kafka.OperationsTopic,
		GroupID:        cfg.Kafka.GroupID,
		StartOffset:    startOffset,
		HandlerTimeout: cfg.Kafka.HandlerTimeout,
		RetryBackoff:   cfg.Kafka.RetryBackoff,
	}, logr)

	service := watcher.NewService(watcher.Params{
		Decoder:  podping.NewDecoder(podping.Options{Livetest: cfg.Podping.Livetest}),
		Accounts: registry,
		Source:   consumer,
		Producer: producer,
		Metrics:  m,
		Logger:   logr,
	})

	handler := watcher.NewHTTPHandler(service, logr, cfg.HTTP.MaxBodyBytes)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      handler.Router(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", metrics.Handler(promRegistry))
	metricsServer := &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		service.Run(ctx)
	}()

	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Error("metrics server failed", zap.Error(err))
		}
	}()

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logr.Error("http server shutdown failed", zap.Error(err))
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logr.Error("metrics server shutdown failed", zap.Error(err))
		}
		<-consumerDone
		if err := service.Close(shutdownCtx); err != nil {
			logr.Error("service shutdown failed", zap.Error(err))
		}
	}()

	logr.Info("podping watcher starting",
		zap.String("addr", cfg.HTTP.Addr),
		zap.String("operations_topic", cfg.Kafka.OperationsTopic),
		zap.String("events_topic", cfg.Kafka.EventsTopic),
		zap.String("accounts_source", cfg.Accounts.Source),
		zap.Bool("livetest", cfg.Podping.Livetest),
	)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logr.Fatal("http server failed", zap.Error(err))
	}
	<-shutdownDone
}

// buildResolver opens only the backing client the configured source needs.
func buildResolver(cfg *config.Config) (accounts.Resolver, func(), error) {
	params := accounts.ResolverParams{
		Static:    cfg.Accounts.Static,
		RedisKey:  cfg.Accounts.RedisKey,
		ObjectKey: cfg.Accounts.ObjectKey,
	}
	closer := func() {}

	switch cfg.Accounts.Source {
	case accounts.SourceRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		params.Redis = rdb
		closer = func() { _ = rdb.Close() }
	case accounts.SourceObjectStore:
		store, err := objectstore.New(objectstore.Config{
			Provider:  cfg.Storage.Provider,
			Endpoint:  cfg.Storage.Endpoint,
			Region:    cfg.Storage.Region,
			Bucket:    cfg.Storage.Bucket,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			UseSSL:    cfg.Storage.UseSSL,
		})
		if err != nil {
			return nil, nil, err
		}
		params.Store = store
		closer = func() { _ = store.Close() }
	}

	resolver, err := accounts.NewResolver(cfg.Accounts.Source, params)
	if err != nil {
		closer()
		return nil, nil, err
	}
	return resolver, closer, nil
}

func parseResourceAttributes(raw string) map[string]string {
	attrs := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok {
			continue
		}
		attrs[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return attrs
}
