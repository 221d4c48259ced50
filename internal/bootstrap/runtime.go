// Package bootstrap assembles the pipeline components from a Config. The CLI
// and the stream worker share it so both run the same stack.
package bootstrap

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/application/ingestion"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/application/pipeline"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/config"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/infrastructure/database/redis"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/infrastructure/messaging/kafka"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/infrastructure/monitoring/logging"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/infrastructure/monitoring/prometheus"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/infrastructure/storage/minio"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/intelligence/clinical_nlp"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/intelligence/rag_prep"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/intelligence/temporal"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/errors"
)

// Runtime holds every constructed component. Fields for disabled
// integrations are nil.
type Runtime struct {
	Config *config.Config
	Logger logging.Logger

	Vocabulary   clinical_nlp.Vocabulary
	Extractor    clinical_nlp.Extractor
	Timeline     *temporal.Builder
	Assembler    *rag_prep.Assembler
	Loader       *ingestion.Loader
	Orchestrator *pipeline.Orchestrator

	Collector prometheus.MetricsCollector
	Metrics   *prometheus.PipelineMetrics

	Redis          *redis.Client
	Producer       *kafka.Producer
	ChunkPublisher *kafka.ChunkPublisher
	MinIO          *minio.MinIOClient
	Results        pipeline.ResultSink

	closers []func() error
}

type settings struct {
	sinks bool
}

// Option adjusts what New builds.
type Option func(*settings)

// WithoutSinks skips the result sink, Kafka and MinIO. Extraction, caching
// and metrics are still built.
func WithoutSinks() Option {
	return func(s *settings) { s.sinks = false }
}

// New builds a Runtime. On error every connection opened so far is closed.
func New(ctx context.Context, cfg *config.Config, logger logging.Logger, opts ...Option) (rt *Runtime, err error) {
	if cfg == nil {
		return nil, errors.New(errors.ErrCodeValidation, "bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	s := settings{sinks: true}
	for _, o := range opts {
		o(&s)
	}

	rt = &Runtime{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = rt.Close()
			rt = nil
		}
	}()

	if err = rt.initMetrics(); err != nil {
		return rt, err
	}
	if err = rt.initExtractor(); err != nil {
		return rt, err
	}
	rt.Timeline = temporal.NewBuilderFromOptions(cfg.Timeline, temporal.WithLogger(logging.NewKVLogger(logger.Named("timeline"))))
	if rt.Assembler, err = rag_prep.NewAssembler(cfg.Chunking); err != nil {
		return rt, err
	}
	rt.Loader = ingestion.NewLoader(
		ingestion.WithLogger(logger.Named("ingestion")),
		ingestion.WithSkipRecorder(rt.Metrics),
	)

	if s.sinks {
		if err = rt.initResultSink(ctx); err != nil {
			return rt, err
		}
		if err = rt.initKafka(ctx); err != nil {
			return rt, err
		}
	}

	orchOpts := []pipeline.Option{
		pipeline.WithConfig(cfg.Pipeline),
		pipeline.WithLoader(rt.Loader),
		pipeline.WithMetrics(rt.Metrics),
		pipeline.WithLogger(logger.Named("pipeline")),
	}
	if cfg.Validator.Enabled {
		v := pipeline.NewGuardedValidator(
			pipeline.NewDenyListValidator(cfg.Validator.DenyList),
			cfg.Validator.Guard,
			pipeline.WithValidatorRecorder(rt.Metrics),
			pipeline.WithValidatorLogger(logger.Named("validator")),
		)
		orchOpts = append(orchOpts, pipeline.WithValidator(v))
	}
	if rt.Results != nil {
		orchOpts = append(orchOpts, pipeline.WithResultSink(rt.Results))
	}
	if rt.ChunkPublisher != nil {
		orchOpts = append(orchOpts, pipeline.WithChunkSink(rt.ChunkPublisher))
	}
	rt.Orchestrator, err = pipeline.NewOrchestrator(rt.Extractor, rt.Timeline, rt.Assembler, orchOpts...)
	return rt, err
}

func (rt *Runtime) initMetrics() error {
	collector, err := prometheus.NewMetricsCollector(rt.Config.Metrics.CollectorConfig, rt.Logger)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeValidation, "bootstrap: metrics collector")
	}
	rt.Collector = collector
	rt.Metrics = prometheus.NewPipelineMetrics(collector)
	return nil
}

func (rt *Runtime) initExtractor() error {
	cfg := rt.Config
	vocab := clinical_nlp.DefaultVocabulary()
	if cfg.Extractor.VocabularyFile != "" {
		loaded, err := clinical_nlp.LoadVocabularyFile(cfg.Extractor.VocabularyFile)
		if err != nil {
			return err
		}
		vocab = loaded
	}
	rt.Vocabulary = vocab

	ecfg := clinical_nlp.ExtractorConfig{
		NegationWindow:    cfg.Extractor.NegationWindow,
		ContextWindow:     cfg.Extractor.ContextWindow,
		EnableLineMatcher: cfg.Extractor.EnableLineMatcher,
		BatchConcurrency:  cfg.Extractor.BatchConcurrency,
		Vocabulary:        vocab,
	}
	ext, err := clinical_nlp.NewExtractor(ecfg,
		clinical_nlp.WithLogger(logging.NewKVLogger(rt.Logger.Named("extractor"))),
		clinical_nlp.WithMetrics(rt.Metrics),
	)
	if err != nil {
		return err
	}
	rt.Extractor = ext

	if !cfg.Redis.Enabled {
		return nil
	}
	client, err := redis.NewClient(cfg.Redis, rt.Logger.Named("redis"))
	if err != nil {
		return err
	}
	rt.Redis = client
	rt.closers = append(rt.closers, client.Close)

	fp, err := Fingerprint(ecfg)
	if err != nil {
		return err
	}
	cache := redis.NewRedisCache(client, rt.Logger, redis.WithPrefix(cfg.Redis.KeyPrefix), redis.WithDefaultTTL(cfg.Redis.TTL))
	rt.Extractor = redis.NewCachedExtractor(ext, cache,
		redis.WithFingerprint(fp),
		redis.WithResultTTL(cfg.Redis.TTL),
		redis.WithCacheRecorder(rt.Metrics),
		redis.WithCacheLogger(rt.Logger.Named("extract_cache")),
		redis.WithBatchConcurrency(cfg.Extractor.BatchConcurrency),
	)
	return nil
}

func (rt *Runtime) initResultSink(ctx context.Context) error {
	cfg := rt.Config
	switch cfg.Output.Sink {
	case config.SinkFile:
		rt.Results = pipeline.NewFileResultSink(cfg.Output.ResultsDir)
	case config.SinkMinIO:
		client, err := minio.NewMinIOClient(cfg.MinIO, rt.Logger.Named("minio"))
		if err != nil {
			return err
		}
		rt.MinIO = client
		rt.closers = append(rt.closers, client.Close)
		rt.Results = minio.NewResultRepository(client, rt.Logger)
	case config.SinkNone:
	default:
		return errors.Newf(errors.ErrCodeValidation, "bootstrap: unknown output sink %q", cfg.Output.Sink)
	}
	return ctx.Err()
}

func (rt *Runtime) initKafka(ctx context.Context) error {
	k := rt.Config.Kafka
	if !k.Enabled {
		return nil
	}
	if k.CreateTopics {
		tm, err := kafka.NewTopicManager(k.Brokers, rt.Logger.Named("kafka"))
		if err != nil {
			return err
		}
		topics := kafka.DefaultTopics()
		topics[0].Name, topics[1].Name, topics[2].Name = k.DocumentTopic, k.ChunkTopic, k.DeadLetterTopic
		err = tm.EnsureTopics(ctx, topics)
		_ = tm.Close()
		if err != nil {
			return err
		}
	}
	producer, err := kafka.NewProducer(k.Producer, rt.Logger.Named("kafka"), kafka.WithProducerRecorder(rt.Metrics))
	if err != nil {
		return err
	}
	rt.Producer = producer
	rt.closers = append(rt.closers, producer.Close)
	rt.ChunkPublisher = kafka.NewChunkPublisher(producer, k.ChunkTopic)
	return nil
}

// Close releases connections in reverse order of creation and returns the
// first error.
func (rt *Runtime) Close() error {
	var first error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	rt.closers = nil
	return first
}

// Fingerprint hashes everything that changes extraction output, so cached
// results never outlive a vocabulary or window change.
func Fingerprint(cfg clinical_nlp.ExtractorConfig) (string, error) {
	cfg.BatchConcurrency = 0
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeSerialization, "bootstrap: fingerprint")
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("v1:%s", hex.EncodeToString(sum[:8])), nil
}

//Personal.AI order the ending
