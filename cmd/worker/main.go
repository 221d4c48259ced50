// Background worker for the clinical entity pipeline. It consumes
// document.ingested events from Kafka and text files dropped into an inbox
// directory, runs each batch through the pipeline, and serves /metrics and
// /healthz.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/application/ingestion"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/application/pipeline"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/bootstrap"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/config"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/infrastructure/messaging/kafka"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/infrastructure/monitoring/logging"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/types/clinical"
)

const (
	defaultWorkerConfigPath = "configs/config.yaml"
	defaultHandlerTimeout   = 5 * time.Minute
	shutdownTimeout         = 30 * time.Second
)

func main() {
	configPath := flag.String("config", defaultWorkerConfigPath, "path to configuration file")
	inbox := flag.String("inbox", "", "directory to watch for .txt files (overrides output.inbox_dir)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *inbox != "" {
		cfg.Output.InboxDir = *inbox
	}

	logger, setLevel, err := logging.NewLeveledLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg, *configPath, logger, setLevel); err != nil {
		logger.Error("worker failed", logging.Err(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, configPath string, logger logging.Logger, setLevel func(string) error) error {
	if !cfg.Kafka.Enabled && cfg.Output.InboxDir == "" {
		return fmt.Errorf("nothing to consume: enable kafka or set output.inbox_dir")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rt, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer rt.Close()

	watchConfig(configPath, logger, setLevel)

	var wg sync.WaitGroup

	var consumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		consumer, err = startConsumer(ctx, rt, logger)
		if err != nil {
			return err
		}
	}

	if cfg.Output.InboxDir != "" {
		w := ingestion.NewInboxWatcher(cfg.Output.InboxDir, rt.Loader, func(ctx context.Context, path string) {
			runCtx, done := context.WithTimeout(ctx, defaultHandlerTimeout)
			defer done()
			state, err := rt.Orchestrator.Run(runCtx, []string{path})
			logRun(logger, "inbox", state, err)
		}, ingestion.WithInboxLogger(logger.Named("inbox")))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Run(ctx); err != nil {
				logger.Error("inbox watcher stopped", logging.Err(err))
				cancel()
			}
		}()
	}

	srv := startHTTPServer(cfg, rt, logger)

	logger.Info("clinical pipeline worker started",
		logging.Bool("kafka", cfg.Kafka.Enabled),
		logging.String("inbox", cfg.Output.InboxDir),
		logging.String("sink", cfg.Output.Sink))

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if consumer != nil {
		if err := consumer.Close(); err != nil {
			logger.Error("consumer close error", logging.Err(err))
		}
		stats := consumer.Stats()
		logger.Info("consumer stopped",
			logging.Int64("consumed", stats.Consumed),
			logging.Int64("processed", stats.Processed),
			logging.Int64("dead_lettered", stats.DeadLettered))
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout exceeded, forcing exit")
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", logging.Err(err))
	}
	logger.Info("clinical pipeline worker stopped")
	return nil
}

// startConsumer subscribes the document handler to every consumer topic.
// Exhausted messages go to the dead-letter topic through the runtime producer.
func startConsumer(ctx context.Context, rt *bootstrap.Runtime, logger logging.Logger) (*kafka.Consumer, error) {
	k := rt.Config.Kafka
	opts := []kafka.ConsumerOption{kafka.WithConsumerRecorder(rt.Metrics)}
	if rt.Producer != nil {
		opts = append(opts, kafka.WithDeadLetter(rt.Producer))
	}
	consumer, err := kafka.NewConsumer(k.Consumer, logger.Named("consumer"), opts...)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}

	handler := kafka.NewDocumentHandler(func(ctx context.Context, docs []clinical.Document) error {
		runCtx, done := context.WithTimeout(ctx, defaultHandlerTimeout)
		defer done()
		state, err := rt.Orchestrator.RunDocuments(runCtx, docs)
		logRun(logger, "kafka", state, err)
		return err
	}, logger.Named("documents"))
	for _, topic := range k.Consumer.Topics {
		consumer.Subscribe(topic, handler)
	}

	if err := consumer.Start(ctx); err != nil {
		_ = consumer.Close()
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

func logRun(logger logging.Logger, origin string, state *pipeline.PipelineState, err error) {
	fields := []logging.Field{logging.String("origin", origin)}
	if state != nil {
		fields = append(fields,
			logging.RunID(state.RunID),
			logging.Int("documents", len(state.Documents)),
			logging.Int("mentions", len(state.Mentions)),
			logging.Int("chunks", len(state.Chunks)),
			logging.Int("step_errors", len(state.Errors)))
	}
	if err != nil {
		logger.Error("pipeline run failed", append(fields, logging.Err(err))...)
		return
	}
	logger.Info("pipeline run finished", fields...)
}

// watchConfig applies log level changes from the config file. Other settings
// need a restart.
func watchConfig(path string, logger logging.Logger, setLevel func(string) error) {
	err := config.Watch(path, func(c *config.Config) {
		if err := setLevel(c.Log.Level); err != nil {
			logger.Warn("ignoring log level change", logging.Err(err))
			return
		}
		logger.Info("config reloaded", logging.String("log_level", c.Log.Level))
	}, func(err error) {
		logger.Warn("config reload failed", logging.Err(err))
	})
	if err != nil {
		logger.Warn("config watch disabled", logging.Err(err))
	}
}

// startHTTPServer serves /healthz and, when metrics are enabled, /metrics.
func startHTTPServer(cfg *config.Config, rt *bootstrap.Runtime, logger logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if cfg.Metrics.Enabled {
		mux.Handle("/metrics", rt.Collector.Handler())
	}

	srv := &http.Server{
		Addr:              cfg.Metrics.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("http server listening", logging.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", logging.Err(err))
		}
	}()
	return srv
}

//Personal.AI order the ending
