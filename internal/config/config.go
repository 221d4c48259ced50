// Package config defines the configuration tree for the clinical pipeline,
// the CLI and the worker. Sections reuse the component config types where a
// component already declares one.
package config

import (
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/application/pipeline"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/infrastructure/database/redis"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/infrastructure/messaging/kafka"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/infrastructure/monitoring/logging"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/infrastructure/monitoring/prometheus"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/infrastructure/storage/minio"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/intelligence/rag_prep"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/intelligence/temporal"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sections
// ─────────────────────────────────────────────────────────────────────────────

// ExtractorConfig tunes entity extraction. An empty VocabularyFile means the
// built-in vocabulary.
type ExtractorConfig struct {
	NegationWindow    int    `mapstructure:"negation_window" yaml:"negation_window"`
	ContextWindow     int    `mapstructure:"context_window" yaml:"context_window"`
	EnableLineMatcher bool   `mapstructure:"enable_line_matcher" yaml:"enable_line_matcher"`
	BatchConcurrency  int    `mapstructure:"batch_concurrency" yaml:"batch_concurrency"`
	VocabularyFile    string `mapstructure:"vocabulary_file" yaml:"vocabulary_file"`
}

// ValidatorConfig enables the guarded deny-list validator.
type ValidatorConfig struct {
	Enabled  bool                 `mapstructure:"enabled" yaml:"enabled"`
	DenyList []string             `mapstructure:"deny_list" yaml:"deny_list"`
	Guard    pipeline.GuardConfig `mapstructure:",squash" yaml:",inline"`
}

// MetricsConfig configures the Prometheus registry and the worker listener.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	ListenAddr string `mapstructure:"listen_addr" yaml:"listen_addr"`

	prometheus.CollectorConfig `mapstructure:",squash" yaml:",inline"`
}

// KafkaConfig configures the document consumer and chunk publisher. Top-level
// Brokers fill the producer and consumer when they name none.
type KafkaConfig struct {
	Enabled         bool     `mapstructure:"enabled" yaml:"enabled"`
	Brokers         []string `mapstructure:"brokers" yaml:"brokers"`
	DocumentTopic   string   `mapstructure:"document_topic" yaml:"document_topic"`
	ChunkTopic      string   `mapstructure:"chunk_topic" yaml:"chunk_topic"`
	DeadLetterTopic string   `mapstructure:"dead_letter_topic" yaml:"dead_letter_topic"`
	CreateTopics    bool     `mapstructure:"create_topics" yaml:"create_topics"`

	Producer kafka.ProducerConfig `mapstructure:"producer" yaml:"producer"`
	Consumer kafka.ConsumerConfig `mapstructure:"consumer" yaml:"consumer"`
}

// Result sink kinds.
const (
	SinkFile  = "file"
	SinkMinIO = "minio"
	SinkNone  = "none"
)

// OutputConfig selects where per-document results go.
type OutputConfig struct {
	Sink       string `mapstructure:"sink" yaml:"sink"`
	ResultsDir string `mapstructure:"results_dir" yaml:"results_dir"`
	// InboxDir is watched by the worker for new text files.
	InboxDir string `mapstructure:"inbox_dir" yaml:"inbox_dir"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration.
type Config struct {
	Extractor ExtractorConfig   `mapstructure:"extractor" yaml:"extractor"`
	Timeline  temporal.Options  `mapstructure:"timeline" yaml:"timeline"`
	Chunking  rag_prep.Options  `mapstructure:"chunking" yaml:"chunking"`
	Validator ValidatorConfig   `mapstructure:"validator" yaml:"validator"`
	Pipeline  pipeline.Config   `mapstructure:"pipeline" yaml:"pipeline"`
	Log       logging.LogConfig `mapstructure:"log" yaml:"log"`
	Metrics   MetricsConfig     `mapstructure:"metrics" yaml:"metrics"`
	Redis     redis.RedisConfig `mapstructure:"redis" yaml:"redis"`
	Kafka     KafkaConfig       `mapstructure:"kafka" yaml:"kafka"`
	MinIO     minio.MinIOConfig `mapstructure:"minio" yaml:"minio"`
	Output    OutputConfig      `mapstructure:"output" yaml:"output"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

func invalid(format string, args ...interface{}) error {
	return errors.Newf(errors.ErrCodeValidation, "config: "+format, args...)
}

// Validate checks a defaulted Config and returns the first problem found.
func (c *Config) Validate() error {
	if c.Extractor.NegationWindow < 0 {
		return invalid("extractor.negation_window must be >= 0, got %d", c.Extractor.NegationWindow)
	}
	if c.Extractor.ContextWindow < 0 {
		return invalid("extractor.context_window must be >= 0, got %d", c.Extractor.ContextWindow)
	}
	if c.Extractor.BatchConcurrency < 1 {
		return invalid("extractor.batch_concurrency must be >= 1, got %d", c.Extractor.BatchConcurrency)
	}

	if c.Chunking.MaxChars < 1 {
		return invalid("chunking.max_chars must be >= 1, got %d", c.Chunking.MaxChars)
	}
	switch c.Chunking.ChunkIDMode {
	case rag_prep.ChunkIDRandom, rag_prep.ChunkIDContent:
	default:
		return invalid("chunking.chunk_id_mode %q is invalid; expected random|content", c.Chunking.ChunkIDMode)
	}

	if c.Validator.Guard.RatePerSecond < 0 {
		return invalid("validator.rate_per_second must be >= 0")
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return invalid("log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return invalid("log.format %q is invalid; expected json|console", c.Log.Format)
	}

	if c.Metrics.Enabled && c.Metrics.Namespace == "" {
		return invalid("metrics.namespace is required when metrics are enabled")
	}

	if c.Redis.Enabled {
		switch c.Redis.Mode {
		case redis.ModeStandalone, redis.ModeSentinel, redis.ModeCluster:
		default:
			return invalid("redis.mode %q is invalid; expected standalone|sentinel|cluster", c.Redis.Mode)
		}
		if c.Redis.Mode == redis.ModeSentinel && c.Redis.MasterName == "" {
			return invalid("redis.master_name is required in sentinel mode")
		}
	}

	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 {
			return invalid("kafka.brokers must contain at least one broker address")
		}
		if err := kafka.ValidateProducerConfig(c.Kafka.Producer); err != nil {
			return err
		}
		if err := kafka.ValidateConsumerConfig(c.Kafka.Consumer); err != nil {
			return err
		}
	}

	switch c.Output.Sink {
	case SinkFile:
		if c.Output.ResultsDir == "" {
			return invalid("output.results_dir is required for the file sink")
		}
	case SinkMinIO:
		if !c.MinIO.Enabled || c.MinIO.Endpoint == "" {
			return invalid("output.sink minio requires minio.enabled and minio.endpoint")
		}
	case SinkNone:
	default:
		return invalid("output.sink %q is invalid; expected file|minio|none", c.Output.Sink)
	}
	return nil
}

//Personal.AI order the ending
