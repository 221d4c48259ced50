package pipeline

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/internal/infrastructure/monitoring/logging"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/errors"
	"github.com/ad23b1012/Agentic-Clinical-Decision-Support-System/pkg/types/clinical"
)

// Guarded validator outcomes, matching the metric label values.
const (
	outcomeOK          = "ok"
	outcomeError       = "error"
	outcomeBreakerOpen = "breaker_open"
	outcomeRateLimited = "rate_limited"
)

// GuardConfig bounds calls to an EntityValidator.
type GuardConfig struct {
	// RatePerSecond is the sustained call rate. Zero disables limiting.
	RatePerSecond float64 `mapstructure:"rate_per_second" yaml:"rate_per_second"`
	Burst         int     `mapstructure:"burst" yaml:"burst"`

	// MaxFailures consecutive failures open the breaker.
	MaxFailures uint32 `mapstructure:"max_failures" yaml:"max_failures"`
	// OpenTimeout is how long the breaker stays open before probing.
	OpenTimeout time.Duration `mapstructure:"open_timeout" yaml:"open_timeout"`
	// HalfOpenRequests is the number of probe calls allowed while half-open.
	HalfOpenRequests uint32 `mapstructure:"half_open_requests" yaml:"half_open_requests"`

	// CallTimeout bounds one Validate call, including the rate-limit wait.
	CallTimeout time.Duration `mapstructure:"call_timeout" yaml:"call_timeout"`
}

// DefaultGuardConfig returns the guard defaults.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		RatePerSecond:    5,
		Burst:            5,
		MaxFailures:      3,
		OpenTimeout:      30 * time.Second,
		HalfOpenRequests: 1,
		CallTimeout:      10 * time.Second,
	}
}

// GuardedValidator wraps an EntityValidator with a rate limiter and a circuit
// breaker. It fails open: whenever the inner call cannot complete, the input
// mentions come back unchanged together with a VAL_001 error describing why.
type GuardedValidator struct {
	inner    EntityValidator
	breaker  *gobreaker.CircuitBreaker
	limiter  *rate.Limiter
	timeout  time.Duration
	logger   logging.Logger
	recorder ValidatorRecorder
}

// GuardOption configures a GuardedValidator.
type GuardOption func(*GuardedValidator)

// WithValidatorRecorder sets the outcome observer.
func WithValidatorRecorder(r ValidatorRecorder) GuardOption {
	return func(g *GuardedValidator) { g.recorder = r }
}

// WithValidatorLogger sets the logger.
func WithValidatorLogger(l logging.Logger) GuardOption {
	return func(g *GuardedValidator) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGuardedValidator wraps inner. Zero fields in cfg take their defaults.
func NewGuardedValidator(inner EntityValidator, cfg GuardConfig, opts ...GuardOption) *GuardedValidator {
	def := DefaultGuardConfig()
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = def.MaxFailures
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = def.OpenTimeout
	}
	if cfg.HalfOpenRequests == 0 {
		cfg.HalfOpenRequests = def.HalfOpenRequests
	}
	if cfg.CallTimeout == 0 {
		cfg.CallTimeout = def.CallTimeout
	}

	g := &GuardedValidator{
		inner:   inner,
		timeout: cfg.CallTimeout,
		logger:  logging.NewNopLogger(),
	}
	for _, o := range opts {
		o(g)
	}

	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	maxFailures := cfg.MaxFailures
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "entity-validator",
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.logger.Warn("validator breaker state changed",
				logging.String("breaker", name),
				logging.String("from", from.String()),
				logging.String("to", to.String()))
		},
	})
	return g
}

// State reports the breaker state.
func (g *GuardedValidator) State() gobreaker.State { return g.breaker.State() }

// Validate runs the inner validator under the guards.
func (g *GuardedValidator) Validate(ctx context.Context, mentions []clinical.EntityMention) ([]clinical.EntityMention, error) {
	if len(mentions) == 0 {
		return mentions, nil
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if g.limiter != nil {
		if err := g.limiter.Wait(callCtx); err != nil {
			return g.failOpen(mentions, outcomeRateLimited, err)
		}
	}

	out, err := g.breaker.Execute(func() (interface{}, error) {
		return g.inner.Validate(callCtx, mentions)
	})
	if err != nil {
		if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
			return g.failOpen(mentions, outcomeBreakerOpen, err)
		}
		return g.failOpen(mentions, outcomeError, err)
	}

	g.record(outcomeOK)
	kept, _ := out.([]clinical.EntityMention)
	if kept == nil {
		kept = []clinical.EntityMention{}
	}
	return kept, nil
}

func (g *GuardedValidator) failOpen(mentions []clinical.EntityMention, outcome string, cause error) ([]clinical.EntityMention, error) {
	g.record(outcome)
	g.logger.Warn("entity validator failed open",
		logging.String("outcome", outcome),
		logging.Int("mentions", len(mentions)),
		logging.Err(cause))
	return mentions, errors.Wrap(cause, errors.ErrCodeValidatorUnavailable, "entity validator unavailable").WithDetail(outcome)
}

func (g *GuardedValidator) record(outcome string) {
	if g.recorder != nil {
		g.recorder.RecordValidatorCall(outcome)
	}
}

//Personal.AI order the ending
