package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/NEMYSESx/sift/internal/analyzer"
	"github.com/NEMYSESx/sift/internal/config"
	"github.com/NEMYSESx/sift/internal/consumer"
	"github.com/NEMYSESx/sift/internal/embedders"
	"github.com/NEMYSESx/sift/internal/llm"
	"github.com/NEMYSESx/sift/internal/objectstore"
	"github.com/NEMYSESx/sift/internal/preprocess"
	"github.com/NEMYSESx/sift/internal/server"
	"github.com/NEMYSESx/sift/internal/vectorstore"
)

func main() {
	configPath := flag.String("config", "config.json", "path to config file")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := objectstore.New(ctx, cfg.ObjectStore)
	if err != nil {
		logger.Fatal("failed to create object store", zap.Error(err))
	}
	if err := store.EnsureBucket(ctx, cfg.ObjectStore.Bucket); err != nil {
		// The bucket may be provisioned out of band; requests will surface
		// storage errors if it truly is missing.
		logger.Warn("failed to ensure bucket", zap.String("bucket", cfg.ObjectStore.Bucket), zap.Error(err))
	}

	embedder := embedders.NewOllamaEmbedder(cfg.Embedding)
	coordinator := vectorstore.NewCoordinator(cfg.Qdrant, embedder, logger)
	llmClient := llm.NewClient(cfg.LLM)

	service := analyzer.NewService(store, coordinator, llmClient,
		llm.BuildAnalysisPrompt, logger, analyzer.Options{
			Bucket:           cfg.ObjectStore.Bucket,
			CollectionPrefix: cfg.Analyze.CollectionPrefix,
			TopK:             cfg.Analyze.TopK,
			ExtractConfig:    preprocess.DefaultExtractConfig(),
		})

	if cfg.Kafka.Enabled {
		kafkaConsumer, err := consumer.New(cfg.Kafka, cfg.ObjectStore.Bucket, store, logger)
		if err != nil {
			logger.Fatal("failed to create kafka consumer", zap.Error(err))
		}
		defer kafkaConsumer.Close()

		go func() {
			logger.Info("kafka consumer started",
				zap.Strings("brokers", cfg.Kafka.Brokers),
				zap.String("topic", cfg.Kafka.Topic))
			if err := kafkaConsumer.Run(ctx); err != nil {
				logger.Error("kafka consumer stopped", zap.Error(err))
			}
		}()
	}

	srv := server.New(service, store, logger, cfg.ObjectStore.Bucket, cfg.Server.AllowedOrigins)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Router(),
	}

	go func() {
		logger.Info("server listening", zap.Int("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
}
