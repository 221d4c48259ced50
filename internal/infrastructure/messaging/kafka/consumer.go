package kafka

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/infrastructure/monitoring/logging"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/errors"
)

var (
	ErrAlreadyRunning = errors.New(errors.ErrCodeConflict, "consumer already running")
	ErrNoHandler      = errors.New(errors.ErrCodeMessagingError, "no handler for topic")
)

// RetryConfig controls handler retries and dead-lettering.
type RetryConfig struct {
	MaxRetries      int           `mapstructure:"max_retries" yaml:"max_retries"`
	Backoff         time.Duration `mapstructure:"backoff" yaml:"backoff"`
	MaxBackoff      time.Duration `mapstructure:"max_backoff" yaml:"max_backoff"`
	DeadLetterTopic string        `mapstructure:"dead_letter_topic" yaml:"dead_letter_topic"`
}

// ConsumerConfig configures the group consumer.
type ConsumerConfig struct {
	Brokers        []string      `mapstructure:"brokers" yaml:"brokers"`
	GroupID        string        `mapstructure:"group_id" yaml:"group_id"`
	Topics         []string      `mapstructure:"topics" yaml:"topics"`
	StartOffset    string        `mapstructure:"start_offset" yaml:"start_offset"`
	MinBytes       int           `mapstructure:"min_bytes" yaml:"min_bytes"`
	MaxBytes       int           `mapstructure:"max_bytes" yaml:"max_bytes"`
	MaxWait        time.Duration `mapstructure:"max_wait" yaml:"max_wait"`
	SessionTimeout time.Duration `mapstructure:"session_timeout" yaml:"session_timeout"`

	Retry    RetryConfig    `mapstructure:"retry" yaml:"retry"`
	Security SecurityConfig `mapstructure:"security" yaml:"security"`
}

func (c *ConsumerConfig) applyDefaults() {
	if c.StartOffset == "" {
		c.StartOffset = "earliest"
	}
	if c.MinBytes == 0 {
		c.MinBytes = 1
	}
	if c.MaxBytes == 0 {
		c.MaxBytes = 10 << 20
	}
	if c.MaxWait == 0 {
		c.MaxWait = time.Second
	}
	if c.SessionTimeout == 0 {
		c.SessionTimeout = 30 * time.Second
	}
	if c.Retry.MaxRetries == 0 {
		c.Retry.MaxRetries = 3
	}
	if c.Retry.Backoff == 0 {
		c.Retry.Backoff = time.Second
	}
	if c.Retry.MaxBackoff == 0 {
		c.Retry.MaxBackoff = 30 * time.Second
	}
}

// ValidateConsumerConfig checks required fields.
func ValidateConsumerConfig(cfg ConsumerConfig) error {
	switch {
	case len(cfg.Brokers) == 0:
		return errors.New(errors.ErrCodeValidation, "kafka brokers required")
	case cfg.GroupID == "":
		return errors.New(errors.ErrCodeValidation, "consumer group_id required")
	case len(cfg.Topics) == 0:
		return errors.New(errors.ErrCodeValidation, "consumer topics required")
	case cfg.StartOffset != "" && cfg.StartOffset != "earliest" && cfg.StartOffset != "latest":
		return errors.New(errors.ErrCodeValidation, "start_offset must be earliest or latest").WithDetail(cfg.StartOffset)
	case cfg.Retry.MaxRetries < 0:
		return errors.New(errors.ErrCodeValidation, "retry.max_retries must be >= 0")
	case cfg.Security.SASLEnabled && (cfg.Security.SASLUsername == "" || cfg.Security.SASLPassword == ""):
		return errors.New(errors.ErrCodeValidation, "SASL credentials required")
	}
	return nil
}

// ReaderInterface abstracts kafka.Reader for testing.
type ReaderInterface interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher is the part of Producer used for dead-lettering.
type Publisher interface {
	Publish(ctx context.Context, msg *ProducerMessage) error
}

// ConsumerStats is a snapshot of consumer counters.
type ConsumerStats struct {
	Consumed     int64
	Processed    int64
	Failed       int64
	Retried      int64
	DeadLettered int64
	Lag          int64
}

// Consumer fetches from a consumer group and dispatches by topic. Offsets
// are committed after the handler succeeds or the message is dead-lettered.
type Consumer struct {
	reader     ReaderInterface
	config     ConsumerConfig
	logger     logging.Logger
	recorder   MessageRecorder
	deadLetter Publisher

	mu       sync.RWMutex
	handlers map[string]MessageHandler

	running atomic.Bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	consumed, processed, failed, retried, deadLettered, lag atomic.Int64
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*Consumer)

// WithReader replaces the kafka.Reader, typically with a fake.
func WithReader(r ReaderInterface) ConsumerOption {
	return func(c *Consumer) { c.reader = r }
}

// WithDeadLetter sets where exhausted messages go. It is required for
// Retry.DeadLetterTopic to take effect.
func WithDeadLetter(p Publisher) ConsumerOption {
	return func(c *Consumer) { c.deadLetter = p }
}

// WithConsumerRecorder sets the message observer.
func WithConsumerRecorder(r MessageRecorder) ConsumerOption {
	return func(c *Consumer) { c.recorder = r }
}

// NewConsumer builds a group consumer over cfg.Topics.
func NewConsumer(cfg ConsumerConfig, logger logging.Logger, opts ...ConsumerOption) (*Consumer, error) {
	if err := ValidateConsumerConfig(cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	c := &Consumer{
		config:   cfg,
		logger:   logger.Named("kafka.consumer"),
		handlers: make(map[string]MessageHandler),
	}
	for _, o := range opts {
		o(c)
	}
	if c.reader != nil {
		return c, nil
	}

	mech, err := cfg.Security.mechanism()
	if err != nil {
		return nil, err
	}
	tc, err := cfg.Security.tlsConfig()
	if err != nil {
		return nil, err
	}
	start := kafka.FirstOffset
	if cfg.StartOffset == "latest" {
		start = kafka.LastOffset
	}
	c.reader = kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		GroupTopics:    cfg.Topics,
		MinBytes:       cfg.MinBytes,
		MaxBytes:       cfg.MaxBytes,
		MaxWait:        cfg.MaxWait,
		SessionTimeout: cfg.SessionTimeout,
		StartOffset:    start,
		Dialer:         &kafka.Dialer{Timeout: 10 * time.Second, DualStack: true, TLS: tc, SASLMechanism: mech},
	})
	return c, nil
}

// Subscribe routes topic to handler.
func (c *Consumer) Subscribe(topic string, handler MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[topic] = handler
	c.logger.Info("subscribed", logging.String("topic", topic))
}

// Start runs the fetch loop in the background until Close or ctx ends.
func (c *Consumer) Start(ctx context.Context) error {
	if c.running.Swap(true) {
		return ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.consumeLoop(ctx)
	}()
	c.logger.Info("kafka consumer started",
		logging.String("group", c.config.GroupID),
		logging.Any("topics", c.config.Topics))
	return nil
}

func (c *Consumer) consumeLoop(ctx context.Context) {
	for ctx.Err() == nil {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("fetch failed", logging.Err(err))
			if !sleep(ctx, c.config.Retry.Backoff) {
				return
			}
			continue
		}

		c.consumed.Add(1)
		if m.HighWaterMark > 0 {
			c.lag.Store(m.HighWaterMark - m.Offset - 1)
		}

		msg := fromKafkaMessage(m)
		herr := c.dispatch(ctx, msg)
		if ctx.Err() != nil {
			return
		}
		if herr == nil {
			c.processed.Add(1)
		} else {
			c.failed.Add(1)
		}
		if c.recorder != nil {
			c.recorder.RecordMessage(m.Topic, DirectionConsume, herr)
		}
		if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			c.logger.Error("commit failed", logging.String("topic", m.Topic), logging.Int64("offset", m.Offset), logging.Err(err))
		}
	}
}

// dispatch runs the handler with retries and dead-letters on exhaustion. It
// returns the last handler error.
func (c *Consumer) dispatch(ctx context.Context, msg *Message) error {
	c.mu.RLock()
	handler, ok := c.handlers[msg.Topic]
	c.mu.RUnlock()
	if !ok {
		c.logger.Warn("no handler for topic", logging.String("topic", msg.Topic))
		return ErrNoHandler.WithDetail(msg.Topic)
	}

	err := handler(ctx, msg)
	backoff := c.config.Retry.Backoff
	for i := 0; err != nil && i < c.config.Retry.MaxRetries; i++ {
		if errors.IsCode(err, errors.ErrCodeValidation) || errors.IsCode(err, errors.ErrCodeSerialization) {
			break
		}
		c.retried.Add(1)
		if !sleep(ctx, backoff) {
			return ctx.Err()
		}
		err = handler(ctx, msg)
		backoff *= 2
		if backoff > c.config.Retry.MaxBackoff {
			backoff = c.config.Retry.MaxBackoff
		}
	}
	if err == nil {
		return nil
	}

	c.logger.Error("message handling failed",
		logging.String("topic", msg.Topic),
		logging.Int64("offset", msg.Offset),
		logging.Err(err))
	c.sendDeadLetter(ctx, msg, err)
	return err
}

func (c *Consumer) sendDeadLetter(ctx context.Context, msg *Message, cause error) {
	if c.deadLetter == nil || c.config.Retry.DeadLetterTopic == "" {
		return
	}
	headers := make(map[string]string, len(msg.Headers)+2)
	for k, v := range msg.Headers {
		headers[k] = v
	}
	headers["original_topic"] = msg.Topic
	headers["error_message"] = cause.Error()

	dl := &ProducerMessage{Topic: c.config.Retry.DeadLetterTopic, Key: msg.Key, Value: msg.Value, Headers: headers}
	if err := c.deadLetter.Publish(ctx, dl); err != nil {
		c.logger.Error("dead-letter publish failed", logging.Err(err))
		return
	}
	c.deadLettered.Add(1)
}

// Stats returns a counter snapshot.
func (c *Consumer) Stats() ConsumerStats {
	return ConsumerStats{
		Consumed:     c.consumed.Load(),
		Processed:    c.processed.Load(),
		Failed:       c.failed.Load(),
		Retried:      c.retried.Load(),
		DeadLettered: c.deadLettered.Load(),
		Lag:          c.lag.Load(),
	}
}

// Close stops the loop and closes the reader. It is a no-op when not running.
func (c *Consumer) Close() error {
	if !c.running.CompareAndSwap(true, false) {
		return nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	err := c.reader.Close()
	c.logger.Info("kafka consumer closed", logging.Int64("consumed", c.consumed.Load()))
	return err
}

func fromKafkaMessage(m kafka.Message) *Message {
	msg := &Message{
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Key:       m.Key,
		Value:     m.Value,
		Timestamp: m.Time,
		Headers:   make(map[string]string, len(m.Headers)),
	}
	for _, h := range m.Headers {
		msg.Headers[h.Key] = string(h.Value)
	}
	return msg
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

//Personal.AI order the ending
