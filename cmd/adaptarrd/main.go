// Command adaptarrd starts the editing-process engine: the conversation
// gateway, the xref indexer and notification digest workers, and the
// illustrative HTTP surface that wires a running process together.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"adaptarr.dev/auth"
	"adaptarr.dev/config"
	"adaptarr.dev/conversation"
	adaptarrdb "adaptarr.dev/db"
	"adaptarr.dev/events"
	"adaptarr.dev/httpapi"
	"adaptarr.dev/logging"
	redisqueue "adaptarr.dev/queue/redis"
	"adaptarr.dev/storage"
	"adaptarr.dev/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Log.WithError(err).Fatal("invalid configuration")
	}

	log := logging.New(logging.Config{
		Level:      logging.Level(cfg.LogLevel),
		Format:     cfg.LogFormat,
		TimeFormat: time.RFC3339,
	})
	entry := logrus.NewEntry(log)

	gdb, err := adaptarrdb.Connect(cfg.PostgresDSN, adaptarrdb.DefaultPoolConfig())
	if err != nil {
		entry.WithError(err).Fatal("failed to connect to database")
	}

	store, err := storage.NewStore(cfg.StorageRoot)
	if err != nil {
		entry.WithError(err).Fatal("failed to open content store")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	xrefQueue, err := redisqueue.NewQueue(ctx, redisqueue.Config{RedisURL: cfg.RedisURL, KeyPrefix: "xref:"})
	if err != nil {
		entry.WithError(err).Fatal("failed to connect to redis")
	}
	defer xrefQueue.Close()

	if err := worker.RunStartupSweep(gdb, store, entry); err != nil {
		entry.WithError(err).Error("startup xref sweep failed")
	}

	xrefPool := worker.NewPool(
		worker.RedisQueue{Queue: xrefQueue},
		worker.XrefProcessor{DB: gdb, Store: store},
		cfg.XrefWorkers,
		entry.WithField("worker", "xref"),
	)
	xrefPool.Start()
	defer xrefPool.Stop()

	registry := events.NewRegistry()
	fanout := events.New(gdb, registry, entry.WithField("component", "events"))
	broker := conversation.New(gdb, fanout, entry.WithField("component", "conversation"))

	digestLog := entry.WithField("worker", "digest")
	digestStop := make(chan struct{})
	go worker.RunDigestLoop(gdb, events.LogMailSender{Log: digestLog}, cfg.NotificationDigestInterval, digestLog, digestStop)
	defer close(digestStop)

	tokens := auth.NewTokenService(cfg.SessionSecret, 24*time.Hour)
	e := httpapi.New(&httpapi.Server{
		DB:       gdb,
		Tokens:   tokens,
		Broker:   broker,
		Registry: registry,
		Log:      entry.WithField("component", "httpapi"),
	})

	addr := os.Getenv("ADAPTARR_LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	go func() {
		if err := e.Start(addr); err != nil {
			entry.WithError(err).Info("http server stopped")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	entry.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		entry.WithError(err).Error("error during http shutdown")
	}
}
