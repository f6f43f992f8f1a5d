package generation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hugh/go-assess/internal/metrics"
)

const (
	DefaultMaxRetries = 4
	DefaultDelay      = 2 * time.Second
)

type Config struct {
	// MaxRetries is the total number of calls per task, the first included.
	MaxRetries int
	// Delay is the constant wait between attempts.
	Delay time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.Delay < 0 {
		c.Delay = DefaultDelay
	}
	return c
}

// DefaultConfig returns four attempts spaced two seconds apart.
func DefaultConfig() Config {
	return Config{MaxRetries: DefaultMaxRetries, Delay: DefaultDelay}
}

// Task is one generation stage: instructions, compiled context, a worked
// example and the contract the answer must satisfy.
type Task struct {
	Stage        string
	Instructions string
	Context      string
	Example      string
	Persona      string
	Contract     Contract
}

// Client drives a Generator through the retry-with-validation loop.
type Client struct {
	gen    Generator
	cfg    Config
	logger *slog.Logger
}

func NewClient(gen Generator, cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		gen:    gen,
		cfg:    cfg.withDefaults(),
		logger: logger,
	}
}

// Generate returns the first response that passes the task's contract, or
// ErrGenerationFailed once every attempt has been rejected.
func (c *Client) Generate(ctx context.Context, task Task) (string, error) {
	start := time.Now()
	log := c.logger.With("stage", task.Stage, "contract", task.Contract.Name())

	req := Request{
		Instructions: task.Instructions,
		Content:      task.Context + "\n" + task.Example,
		Persona:      task.Persona,
		Schema:       task.Contract.Schema(),
	}

	call := func(ctx context.Context) (string, error) {
		return c.gen.Generate(ctx, req)
	}

	notify := func(err *AttemptError, next time.Duration) {
		metrics.ObserveAttempt(task.Stage, string(err.Outcome))
		attrs := []any{"attempt", err.Attempt, "max_attempts", c.cfg.MaxRetries}
		switch err.Outcome {
		case OutcomeEmpty:
			log.Warn("model returned empty response", attrs...)
		case OutcomeInvalid:
			log.Warn("model response failed structural check", append(attrs, "error", err.Err)...)
		default:
			log.Warn("generation call failed", append(attrs, "error", err.Err)...)
		}
	}

	log.Debug("starting generation", "max_attempts", c.cfg.MaxRetries, "content_bytes", len(req.Content))

	text, attempts, err := Retry(ctx, Policy{MaxAttempts: c.cfg.MaxRetries, Delay: c.cfg.Delay}, call, task.Contract.Check, notify)
	metrics.ObserveGeneration(task.Stage, err == nil, time.Since(start))
	if err != nil {
		log.Error("generation exhausted", "attempts", attempts, "error", err)
		return "", fmt.Errorf("%w: %s stage: %w", ErrGenerationFailed, task.Stage, err)
	}

	metrics.ObserveAttempt(task.Stage, string(OutcomeOK))
	log.Info("generation succeeded", "attempts", attempts, "duration", time.Since(start).String())
	return text, nil
}
