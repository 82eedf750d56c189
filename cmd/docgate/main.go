package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/your-org/docgate/internal/ingest"
	"github.com/your-org/docgate/internal/session"
	"github.com/your-org/docgate/pkg/config"
	"github.com/your-org/docgate/pkg/kafka"
	"github.com/your-org/docgate/pkg/logger"
	"github.com/your-org/docgate/pkg/storage/docstore"
	"github.com/your-org/docgate/pkg/tracing"
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

	store, err := docstore.New(docstore.Config{
		Provider:  cfg.Storage.Provider,
		Directory: cfg.Storage.Directory,
		Endpoint:  cfg.Storage.Endpoint,
		Region:    cfg.Storage.Region,
		Bucket:    cfg.Storage.Bucket,
		AccessKey: cfg.Storage.AccessKey,
		SecretKey: cfg.Storage.SecretKey,
		UseSSL:    cfg.Storage.UseSSL,
	})
	if err != nil {
		logr.Fatal("init document store", zap.Error(err))
	}

	var producer *kafka.Producer
	var publisher ingest.Publisher
	if cfg.Kafka.Enabled {
		producer = kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.DocumentTopic,
			BatchSize:    cfg.Kafka.BatchSize,
			BatchTimeout: cfg.Kafka.BatchTimeout,
			Compression:  kafka.CompressionFromString(cfg.Kafka.CompressionCodec),
			RequiredAcks: kafkago.RequireAll,
			MaxAttempts:  cfg.Kafka.Retries,
		})
		publisher = producer
	}

	authority := session.NewAuthority()
	registry := session.NewRegistry(authority)
	sessions := session.NewHandler(registry, session.PlaceholderAnswerer{}, logr, session.Options{
		WriteWait:      cfg.Session.WriteWait,
		PongWait:       cfg.Session.PongWait,
		MaxMessageSize: cfg.Session.MaxMessageSize,
	})

	service := ingest.NewService(ingest.Params{
		Store:     store,
		Issuer:    authority,
		Publisher: publisher,
		Validator: ingest.Validator{
			MaxSizeBytes: cfg.Upload.MaxSizeBytes,
			Extension:    cfg.Upload.AcceptedExtension,
			MIMEType:     cfg.Upload.AcceptedMIMEType,
		},
		Logger: logr,
	})

	handler := ingest.NewHTTPHandler(service, sessions, logr, cfg.Upload.MultipartMemBytes, cfg.HTTP.AllowedOrigins)

	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      handler.Router(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		registry.CloseAll()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logr.Error("http server shutdown failed", zap.Error(err))
		}
		if producer != nil {
			if err := producer.Close(shutdownCtx); err != nil {
				logr.Error("kafka producer shutdown failed", zap.Error(err))
			}
		}
		if err := store.Close(); err != nil {
			logr.Error("document store shutdown failed", zap.Error(err))
		}
	}()

	logr.Info("docgate starting", zap.String("addr", cfg.HTTP.Addr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logr.Fatal("http server failed", zap.Error(err))
	}
}

func parseResourceAttributes(raw string) map[string]string {
	attrs := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" || !strings.Contains(pair, "=") {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		attrs[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return attrs
}
