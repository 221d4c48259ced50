package kafka

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	stderrors "errors"
	"os"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"

	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/infrastructure/monitoring/logging"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/errors"
)

// ErrProducerClosed is returned by publishes after Close.
var ErrProducerClosed = errors.New(errors.ErrCodeMessagingError, "producer closed")

// SecurityConfig holds the optional SASL and TLS settings shared by the
// producer and consumer.
type SecurityConfig struct {
	SASLEnabled   bool   `mapstructure:"sasl_enabled" yaml:"sasl_enabled"`
	SASLMechanism string `mapstructure:"sasl_mechanism" yaml:"sasl_mechanism"`
	SASLUsername  string `mapstructure:"sasl_username" yaml:"sasl_username"`
	SASLPassword  string `mapstructure:"sasl_password" yaml:"sasl_password"`
	TLSEnabled    bool   `mapstructure:"tls_enabled" yaml:"tls_enabled"`
	TLSCAPath     string `mapstructure:"tls_ca_path" yaml:"tls_ca_path"`
}

func (s SecurityConfig) mechanism() (sasl.Mechanism, error) {
	if !s.SASLEnabled {
		return nil, nil
	}
	switch s.SASLMechanism {
	case "PLAIN":
		return plain.Mechanism{Username: s.SASLUsername, Password: s.SASLPassword}, nil
	case "SCRAM-SHA-256":
		return scram.Mechanism(scram.SHA256, s.SASLUsername, s.SASLPassword)
	case "SCRAM-SHA-512":
		return scram.Mechanism(scram.SHA512, s.SASLUsername, s.SASLPassword)
	default:
		return nil, errors.New(errors.ErrCodeValidation, "unsupported SASL mechanism").WithDetail(s.SASLMechanism)
	}
}

func (s SecurityConfig) tlsConfig() (*tls.Config, error) {
	if !s.TLSEnabled {
		return nil, nil
	}
	tc := &tls.Config{MinVersion: tls.VersionTLS12}
	if s.TLSCAPath != "" {
		pem, err := os.ReadFile(s.TLSCAPath)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeMessagingError, "failed to read kafka CA file").WithDetail(s.TLSCAPath)
		}
		pool := x509.NewCertPool()
		pool.AppendCertsFromPEM(pem)
		tc.RootCAs = pool
	}
	return tc, nil
}

// ProducerConfig configures the Producer.
type ProducerConfig struct {
	Brokers         []string      `mapstructure:"brokers" yaml:"brokers"`
	Acks            string        `mapstructure:"acks" yaml:"acks"`
	MaxRetries      int           `mapstructure:"max_retries" yaml:"max_retries"`
	BatchSize       int           `mapstructure:"batch_size" yaml:"batch_size"`
	BatchTimeout    time.Duration `mapstructure:"batch_timeout" yaml:"batch_timeout"`
	MaxMessageBytes int           `mapstructure:"max_message_bytes" yaml:"max_message_bytes"`
	Compression     string        `mapstructure:"compression" yaml:"compression"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	Security SecurityConfig `mapstructure:"security" yaml:"security"`
}

func (c *ProducerConfig) applyDefaults() {
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.BatchSize == 0 {
		c.BatchSize = 100
	}
	if c.BatchTimeout == 0 {
		c.BatchTimeout = 50 * time.Millisecond
	}
	if c.MaxMessageBytes == 0 {
		c.MaxMessageBytes = 1 << 20
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
}

// ValidateProducerConfig checks required fields.
func ValidateProducerConfig(cfg ProducerConfig) error {
	if len(cfg.Brokers) == 0 {
		return errors.New(errors.ErrCodeValidation, "kafka brokers required")
	}
	if cfg.MaxRetries < 0 {
		return errors.New(errors.ErrCodeValidation, "max_retries must be >= 0")
	}
	return nil
}

// WriterInterface abstracts kafka.Writer for testing.
type WriterInterface interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
	Stats() kafka.WriterStats
}

// ProducerStats is a snapshot of producer counters.
type ProducerStats struct {
	MessagesSent   int64
	MessagesFailed int64
	BytesSent      int64
}

// BatchItemError describes one failed message in a batch.
type BatchItemError struct {
	Index int
	Topic string
	Err   error
}

// BatchPublishResult summarizes PublishBatch.
type BatchPublishResult struct {
	Succeeded int
	Failed    int
	Errors    []BatchItemError
}

// Producer writes messages through a kafka.Writer.
type Producer struct {
	writer   WriterInterface
	config   ProducerConfig
	logger   logging.Logger
	recorder MessageRecorder
	closed   atomic.Bool

	sent   atomic.Int64
	failed atomic.Int64
	bytes  atomic.Int64
}

// ProducerOption configures a Producer.
type ProducerOption func(*Producer)

// WithProducerRecorder sets the message observer.
func WithProducerRecorder(r MessageRecorder) ProducerOption {
	return func(p *Producer) { p.recorder = r }
}

// WithWriter replaces the kafka.Writer, typically with a fake.
func WithWriter(w WriterInterface) ProducerOption {
	return func(p *Producer) { p.writer = w }
}

// NewProducer builds a Producer over the configured brokers.
func NewProducer(cfg ProducerConfig, logger logging.Logger, opts ...ProducerOption) (*Producer, error) {
	if err := ValidateProducerConfig(cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	p := &Producer{config: cfg, logger: logger.Named("kafka.producer")}
	for _, o := range opts {
		o(p)
	}
	if p.writer != nil {
		return p, nil
	}

	mech, err := cfg.Security.mechanism()
	if err != nil {
		return nil, err
	}
	tc, err := cfg.Security.tlsConfig()
	if err != nil {
		return nil, err
	}

	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		MaxAttempts:  cfg.MaxRetries + 1,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: requiredAcks(cfg.Acks),
		Compression:  compression(cfg.Compression),
		Transport:    &kafka.Transport{DialTimeout: 10 * time.Second, TLS: tc, SASL: mech},
	}
	return p, nil
}

func requiredAcks(acks string) kafka.RequiredAcks {
	switch acks {
	case "none":
		return kafka.RequireNone
	case "all":
		return kafka.RequireAll
	default:
		return kafka.RequireOne
	}
}

func compression(codec string) kafka.Compression {
	switch codec {
	case "gzip":
		return kafka.Gzip
	case "snappy":
		return kafka.Snappy
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	default:
		return 0
	}
}

func (p *Producer) validate(msg *ProducerMessage) error {
	switch {
	case msg.Topic == "":
		return errors.New(errors.ErrCodeValidation, "topic required")
	case len(msg.Value) == 0:
		return errors.New(errors.ErrCodeValidation, "message value required").WithDetail(msg.Topic)
	case len(msg.Value) > p.config.MaxMessageBytes:
		return errors.New(errors.ErrCodeValidation, "message too large").WithDetail(msg.Topic)
	}
	return nil
}

// Publish writes one message.
func (p *Producer) Publish(ctx context.Context, msg *ProducerMessage) error {
	if p.closed.Load() {
		return ErrProducerClosed
	}
	if err := p.validate(msg); err != nil {
		return err
	}

	start := time.Now()
	err := p.writer.WriteMessages(ctx, toKafkaMessage(msg))
	p.record(msg.Topic, err)
	if err != nil {
		p.failed.Add(1)
		return errors.Wrap(err, errors.ErrCodeMessagingError, "publish failed").WithDetail(msg.Topic)
	}
	p.sent.Add(1)
	p.bytes.Add(int64(len(msg.Value)))
	p.logger.Debug("message published",
		logging.String("topic", msg.Topic),
		logging.Int64("latency_ms", time.Since(start).Milliseconds()))
	return nil
}

// PublishBatch writes msgs in one call. Per-message failures are reported in
// the result; the error is for rejected input or a closed producer.
func (p *Producer) PublishBatch(ctx context.Context, msgs []*ProducerMessage) (*BatchPublishResult, error) {
	if p.closed.Load() {
		return nil, ErrProducerClosed
	}
	if len(msgs) == 0 {
		return &BatchPublishResult{}, nil
	}
	kmsgs := make([]kafka.Message, len(msgs))
	for i, m := range msgs {
		if err := p.validate(m); err != nil {
			return nil, err
		}
		kmsgs[i] = toKafkaMessage(m)
	}

	res := &BatchPublishResult{}
	err := p.writer.WriteMessages(ctx, kmsgs...)
	var writeErrs kafka.WriteErrors
	switch {
	case err == nil:
		res.Succeeded = len(msgs)
	case stderrors.As(err, &writeErrs):
		for i, we := range writeErrs {
			if we == nil {
				res.Succeeded++
				continue
			}
			res.Failed++
			res.Errors = append(res.Errors, BatchItemError{Index: i, Topic: msgs[i].Topic, Err: we})
		}
	default:
		res.Failed = len(msgs)
		res.Errors = append(res.Errors, BatchItemError{Index: -1, Err: err})
	}

	for i, m := range msgs {
		var itemErr error
		if err != nil && (len(writeErrs) == 0 || writeErrs[i] != nil) {
			itemErr = err
		}
		p.record(m.Topic, itemErr)
	}
	p.sent.Add(int64(res.Succeeded))
	p.failed.Add(int64(res.Failed))
	p.logger.Debug("batch published",
		logging.Int("succeeded", res.Succeeded),
		logging.Int("failed", res.Failed))
	return res, nil
}

// Stats returns a counter snapshot.
func (p *Producer) Stats() ProducerStats {
	return ProducerStats{
		MessagesSent:   p.sent.Load(),
		MessagesFailed: p.failed.Load(),
		BytesSent:      p.bytes.Load(),
	}
}

// Close flushes and closes the writer once.
func (p *Producer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := p.writer.Close()
	p.logger.Info("kafka producer closed", logging.Int64("sent", p.sent.Load()))
	return err
}

func (p *Producer) record(topic string, err error) {
	if p.recorder != nil {
		p.recorder.RecordMessage(topic, DirectionPublish, err)
	}
}

func toKafkaMessage(msg *ProducerMessage) kafka.Message {
	headers := make([]kafka.Header, 0, len(msg.Headers))
	for k, v := range msg.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	ts := msg.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return kafka.Message{Topic: msg.Topic, Key: msg.Key, Value: msg.Value, Headers: headers, Time: ts}
}

//Personal.AI order the ending
