// Package main wires together the log analyzer service.
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

	gcstorage "cloud.google.com/go/storage"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/sigmetapp/seohqs-sub000/internal/analyzer"
	"github.com/sigmetapp/seohqs-sub000/internal/api"
	"github.com/sigmetapp/seohqs-sub000/internal/botsig"
	"github.com/sigmetapp/seohqs-sub000/internal/clock/system"
	"github.com/sigmetapp/seohqs-sub000/internal/config"
	"github.com/sigmetapp/seohqs-sub000/internal/id/uuid"
	"github.com/sigmetapp/seohqs-sub000/internal/logging"
	"github.com/sigmetapp/seohqs-sub000/internal/logparse"
	"github.com/sigmetapp/seohqs-sub000/internal/metrics"
	"github.com/sigmetapp/seohqs-sub000/internal/progress"
	"github.com/sigmetapp/seohqs-sub000/internal/progress/sinks"
	"github.com/sigmetapp/seohqs-sub000/internal/publisher"
	publishermem "github.com/sigmetapp/seohqs-sub000/internal/publisher/memory"
	publisherps "github.com/sigmetapp/seohqs-sub000/internal/publisher/pubsub"
	queuemem "github.com/sigmetapp/seohqs-sub000/internal/queue/memory"
	"github.com/sigmetapp/seohqs-sub000/internal/storage"
	storagegcs "github.com/sigmetapp/seohqs-sub000/internal/storage/gcs"
	storagemem "github.com/sigmetapp/seohqs-sub000/internal/storage/memory"
	"github.com/sigmetapp/seohqs-sub000/internal/store"
	storemem "github.com/sigmetapp/seohqs-sub000/internal/store/memory"
	storepg "github.com/sigmetapp/seohqs-sub000/internal/store/postgres"
	"github.com/sigmetapp/seohqs-sub000/internal/worker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "analyzerd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(logging.Config{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
	})
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := buildRepo(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := repo.Close(context.Background()); err != nil {
			logger.Warn("run store close failed", zap.Error(err))
		}
	}()

	blobs, err := buildArchive(ctx, cfg)
	if err != nil {
		return err
	}

	pub, err := buildPublisher(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := pub.Close(); err != nil {
			logger.Warn("publisher close failed", zap.Error(err))
		}
	}()

	promSink, err := sinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("progress metrics: %w", err)
	}
	hub := progress.NewHub(progress.Config{Logger: logger.Named("progress")},
		sinks.NewLogSink(logger.Named("progress")),
		promSink,
		sinks.NewStoreSink(repo, logger.Named("progress")),
	)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := hub.Close(closeCtx); err != nil {
			logger.Warn("progress hub close failed", zap.Error(err))
		}
	}()

	an := analyzer.New(analyzer.Options{
		Matcher: botsig.NewMatcher(botsig.Config{
			MaxUserAgentLen: cfg.Analysis.MaxUABytes,
			IPPrefixes:      cfg.Analysis.VerifyPrefixes,
			RDNSSuffixes:    cfg.Analysis.VerifySuffixes,
		}),
		Extractor: logparse.NewExtractor(logparse.Config{
			ResponseTimeMin: cfg.Analysis.RTMinMs,
			ResponseTimeMax: cfg.Analysis.RTMaxMs,
		}),
		BotSampleCap:   cfg.Analysis.BotSampleCap,
		URLSampleCap:   cfg.Analysis.URLSampleCap,
		ErrorSampleCap: cfg.Analysis.ErrorSampleCap,
		SampleChars:    cfg.Analysis.SampleChars,
		ProgressEvery:  cfg.Analysis.ProgressEvery,
		Logger:         logger.Named("analyzer"),
	})

	clk := system.New()
	q := queuemem.New(cfg.Analysis.QueueDepth)
	w := worker.New(an, q, repo, blobs, pub, hub, clk, worker.Config{
		Workers:       cfg.Analysis.Workers,
		Topic:         cfg.PubSub.TopicName,
		ArchivePrefix: cfg.Archive.Prefix,
	}, logger.Named("worker"))

	apiServer := api.NewServer(repo, q, w, uuid.NewUUIDGenerator(), clk, cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	workerDone := make(chan struct{})
	go func() {
		logger.Info("workers started", zap.Int("count", cfg.Analysis.Workers))
		w.Run(ctx)
		close(workerDone)
	}()

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	if err := q.Close(); err != nil {
		logger.Warn("queue close failed", zap.Error(err))
	}
	<-workerDone
	return nil
}

func buildRepo(ctx context.Context, cfg config.Config) (store.RunRepository, error) {
	switch cfg.DB.Backend {
	case "postgres":
		repo, err := storepg.NewRunStore(ctx, storepg.RunStoreConfig{
			DSN:      cfg.DB.DSN,
			Table:    cfg.DB.Table,
			MaxConns: int32(cfg.DB.MaxOpenConns),
			MinConns: int32(cfg.DB.MinOpenConns),
		})
		if err != nil {
			return nil, fmt.Errorf("postgres run store: %w", err)
		}
		return repo, nil
	default:
		return storemem.NewRunStore(), nil
	}
}

func buildArchive(ctx context.Context, cfg config.Config) (storage.BlobStore, error) {
	switch cfg.Archive.Backend {
	case "gcs":
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client: %w", err)
		}
		blobs, err := storagegcs.New(client, storagegcs.Config{Bucket: cfg.Archive.GCSBucket})
		if err != nil {
			return nil, fmt.Errorf("gcs archive: %w", err)
		}
		return blobs, nil
	case "memory":
		return storagemem.New(), nil
	default:
		return nil, nil
	}
}

func buildPublisher(ctx context.Context, cfg config.Config) (publisher.Publisher, error) {
	if !cfg.PubSub.Enabled {
		return publishermem.New(), nil
	}
	pub, err := publisherps.New(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicName)
	if err != nil {
		return nil, fmt.Errorf("pubsub publisher: %w", err)
	}
	return pub, nil
}
