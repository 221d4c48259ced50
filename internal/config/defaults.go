package config

import (
	"github.com/spf13/viper"

	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/application/pipeline"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/infrastructure/messaging/kafka"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/intelligence/clinical_nlp"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/intelligence/rag_prep"
)

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultContextWindow     = 40
	DefaultBatchConcurrency  = 4
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "json"
	DefaultMetricsNamespace  = "cdss"
	DefaultMetricsListenAddr = ":9090"
	DefaultKafkaBroker       = "localhost:9092"
	DefaultKafkaGroupID      = "cdss-worker"
	DefaultResultsDir        = "output"
)

// Default returns a Config with every default applied. Booleans that default
// to true are only set here, since ApplyDefaults cannot tell false from unset.
func Default() *Config {
	cfg := &Config{}
	cfg.Extractor.EnableLineMatcher = true
	cfg.Validator.Guard = pipeline.DefaultGuardConfig()
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-value fields of cfg. Explicit values are kept.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Extractor ────────────────────────────────────────────────────────────
	if cfg.Extractor.NegationWindow == 0 {
		cfg.Extractor.NegationWindow = clinical_nlp.DefaultNegationWindow
	}
	if cfg.Extractor.ContextWindow == 0 {
		cfg.Extractor.ContextWindow = DefaultContextWindow
	}
	if cfg.Extractor.BatchConcurrency == 0 {
		cfg.Extractor.BatchConcurrency = DefaultBatchConcurrency
	}

	// ── Chunking ─────────────────────────────────────────────────────────────
	if cfg.Chunking.MaxChars == 0 {
		cfg.Chunking.MaxChars = rag_prep.DefaultMaxChars
	}
	if cfg.Chunking.ChunkIDMode == "" {
		cfg.Chunking.ChunkIDMode = rag_prep.ChunkIDRandom
	}

	// ── Validator ────────────────────────────────────────────────────────────
	guard := pipeline.DefaultGuardConfig()
	if cfg.Validator.Guard.MaxFailures == 0 {
		cfg.Validator.Guard.MaxFailures = guard.MaxFailures
	}
	if cfg.Validator.Guard.OpenTimeout == 0 {
		cfg.Validator.Guard.OpenTimeout = guard.OpenTimeout
	}
	if cfg.Validator.Guard.HalfOpenRequests == 0 {
		cfg.Validator.Guard.HalfOpenRequests = guard.HalfOpenRequests
	}
	if cfg.Validator.Guard.CallTimeout == 0 {
		cfg.Validator.Guard.CallTimeout = guard.CallTimeout
	}

	// ── Pipeline ─────────────────────────────────────────────────────────────
	if cfg.Pipeline.Concurrency == 0 {
		cfg.Pipeline.Concurrency = cfg.Extractor.BatchConcurrency
	}

	// ── Log ──────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	// ── Metrics ──────────────────────────────────────────────────────────────
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Metrics.Subsystem == "" {
		cfg.Metrics.Subsystem = "pipeline"
	}
	if cfg.Metrics.ListenAddr == "" {
		cfg.Metrics.ListenAddr = DefaultMetricsListenAddr
	}

	// ── Redis ────────────────────────────────────────────────────────────────
	cfg.Redis.ApplyDefaults()

	// ── Kafka ────────────────────────────────────────────────────────────────
	k := &cfg.Kafka
	if len(k.Brokers) == 0 {
		k.Brokers = []string{DefaultKafkaBroker}
	}
	if k.DocumentTopic == "" {
		k.DocumentTopic = kafka.TopicDocumentIngested
	}
	if k.ChunkTopic == "" {
		k.ChunkTopic = kafka.TopicChunkReady
	}
	if k.DeadLetterTopic == "" {
		k.DeadLetterTopic = kafka.TopicDeadLetter
	}
	if len(k.Producer.Brokers) == 0 {
		k.Producer.Brokers = k.Brokers
	}
	if len(k.Consumer.Brokers) == 0 {
		k.Consumer.Brokers = k.Brokers
	}
	if k.Consumer.GroupID == "" {
		k.Consumer.GroupID = DefaultKafkaGroupID
	}
	if len(k.Consumer.Topics) == 0 {
		k.Consumer.Topics = []string{k.DocumentTopic}
	}
	if k.Consumer.Retry.DeadLetterTopic == "" {
		k.Consumer.Retry.DeadLetterTopic = k.DeadLetterTopic
	}

	// ── MinIO ────────────────────────────────────────────────────────────────
	cfg.MinIO.ApplyDefaults()

	// ── Output ───────────────────────────────────────────────────────────────
	if cfg.Output.Sink == "" {
		cfg.Output.Sink = SinkFile
	}
	if cfg.Output.ResultsDir == "" {
		cfg.Output.ResultsDir = DefaultResultsDir
	}
}

// registerDefaults makes every documented key known to v so that CDSS_*
// environment variables override it even without a config file.
func registerDefaults(v *viper.Viper) {
	d := Default()
	defaults := map[string]interface{}{
		"extractor.negation_window":     d.Extractor.NegationWindow,
		"extractor.context_window":      d.Extractor.ContextWindow,
		"extractor.enable_line_matcher": d.Extractor.EnableLineMatcher,
		"extractor.batch_concurrency":   d.Extractor.BatchConcurrency,
		"extractor.vocabulary_file":     "",

		"timeline.bucket_by_type": false,

		"chunking.max_chars":         d.Chunking.MaxChars,
		"chunking.chunk_id_mode":     string(d.Chunking.ChunkIDMode),
		"chunking.category_fallback": false,

		"validator.enabled":            false,
		"validator.deny_list":          []string{},
		"validator.rate_per_second":    d.Validator.Guard.RatePerSecond,
		"validator.burst":              d.Validator.Guard.Burst,
		"validator.max_failures":       d.Validator.Guard.MaxFailures,
		"validator.open_timeout":       d.Validator.Guard.OpenTimeout,
		"validator.half_open_requests": d.Validator.Guard.HalfOpenRequests,
		"validator.call_timeout":       d.Validator.Guard.CallTimeout,

		"pipeline.propagate_dates": false,
		"pipeline.concurrency":     0,

		"log.level":  d.Log.Level,
		"log.format": d.Log.Format,

		"metrics.enabled":     false,
		"metrics.listen_addr": d.Metrics.ListenAddr,
		"metrics.namespace":   d.Metrics.Namespace,
		"metrics.subsystem":   d.Metrics.Subsystem,

		"redis.enabled":    false,
		"redis.mode":       d.Redis.Mode,
		"redis.addr":       d.Redis.Addr,
		"redis.password":   "",
		"redis.db":         0,
		"redis.key_prefix": d.Redis.KeyPrefix,
		"redis.ttl":        d.Redis.TTL,

		"kafka.enabled":           false,
		"kafka.brokers":           d.Kafka.Brokers,
		"kafka.document_topic":    d.Kafka.DocumentTopic,
		"kafka.chunk_topic":       d.Kafka.ChunkTopic,
		"kafka.dead_letter_topic": d.Kafka.DeadLetterTopic,
		"kafka.create_topics":     false,
		"kafka.consumer.group_id": d.Kafka.Consumer.GroupID,

		"minio.enabled":           false,
		"minio.endpoint":          "",
		"minio.access_key_id":     "",
		"minio.secret_access_key": "",
		"minio.use_ssl":           false,
		"minio.bucket":            d.MinIO.Bucket,
		"minio.prefix":            d.MinIO.Prefix,
		"minio.retention_days":    0,
		"minio.presign_expiry":    d.MinIO.PresignExpiry,

		"output.sink":        d.Output.Sink,
		"output.results_dir": d.Output.ResultsDir,
		"output.inbox_dir":   "",
	}
	for key, val := range defaults {
		v.SetDefault(key, val)
	}
}

//Personal.AI order the ending
