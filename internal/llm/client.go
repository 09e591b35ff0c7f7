package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/NCDesigner/QG-Estrat-gico/internal/metrics"
)

// Fallback is returned whenever a reply could not be generated
const Fallback = "Nath, tive um erro técnico (429 ou conexão). Pode tentar de novo em alguns segundos?"

// Config controls the generation call and its retry policy
type Config struct {
	Model             string        `yaml:"model"`
	Temperature       float32       `yaml:"temperature"`
	MaxAttempts       int           `yaml:"max_attempts"`
	InitialDelay      time.Duration `yaml:"initial_delay"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	UserName          string        `yaml:"user_name"`
	GreetingNames     []string      `yaml:"greeting_names"`
}

// DefaultConfig returns the production defaults
func DefaultConfig() Config {
	return Config{
		Model:         "gemini-3-flash-preview",
		Temperature:   0.8,
		MaxAttempts:   3,
		InitialDelay:  2 * time.Second,
		UserName:      "Nath",
		GreetingNames: []string{"Nath", "Nata", "Natália"},
	}
}

// IsQuotaError reports whether err is a rate-limit failure worth retrying
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == 429 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}

// Sleeper waits between retries. It returns early with ctx.Err() on cancellation.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the real Sleeper
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Client wraps a Generator with prompt assembly, backoff and the fallback text
type Client struct {
	gen     Generator
	cfg     Config
	logger  *zap.Logger
	sleep   Sleeper
	limiter *rate.Limiter
	now     func() time.Time
}

// NewClient builds a Client. Zero config fields fall back to DefaultConfig.
func NewClient(gen Generator, cfg Config, logger *zap.Logger) *Client {
	def := DefaultConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = def.Temperature
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = def.InitialDelay
	}
	if cfg.UserName == "" {
		cfg.UserName = def.UserName
	}
	if len(cfg.GreetingNames) == 0 {
		cfg.GreetingNames = def.GreetingNames
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{gen: gen, cfg: cfg, logger: logger, sleep: Sleep, now: time.Now}
	if cfg.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}
	return c
}

// WithSleeper replaces the backoff sleeper; used by tests
func (c *Client) WithSleeper(s Sleeper) *Client {
	c.sleep = s
	return c
}

// Config returns the effective configuration
func (c *Client) Config() Config { return c.cfg }

// GenerateResponse asks one persona for a reply. It never fails: quota errors
// are retried with doubling backoff and any other outcome that is not a reply
// yields Fallback.
func (c *Client) GenerateResponse(ctx context.Context, p Prompt) string {
	log := c.logger.With(zap.String("persona", p.PersonaID))

	system, err := BuildSystemInstruction(p, c.cfg.UserName, c.cfg.GreetingNames)
	if err != nil {
		log.Warn("cannot build system instruction", zap.Error(err))
		metrics.Fallbacks.WithLabelValues(p.PersonaID, "prompt").Inc()
		return Fallback
	}
	contents, attErrs := BuildContents(p.History, p.UserText, p.Attachments)
	for _, e := range attErrs {
		log.Warn("skipping attachment", zap.Error(e))
	}
	if len(contents) == 0 {
		metrics.Fallbacks.WithLabelValues(p.PersonaID, "empty").Inc()
		return Fallback
	}

	req := Request{
		Model:       c.cfg.Model,
		System:      system,
		Contents:    contents,
		Temperature: c.cfg.Temperature,
	}

	delay := c.cfg.InitialDelay
	for attempt := 1; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				log.Debug("throttle wait aborted", zap.Error(err))
				metrics.Fallbacks.WithLabelValues(p.PersonaID, "canceled").Inc()
				return Fallback
			}
		}

		metrics.GenerationAttempts.WithLabelValues(p.PersonaID).Inc()
		start := c.now()
		text, err := c.gen.Generate(ctx, req)
		metrics.GenerationLatency.WithLabelValues(p.PersonaID).Observe(c.now().Sub(start).Seconds())

		if err == nil {
			log.Debug("generated reply", zap.Int("attempt", attempt), zap.Int("chars", len(text)))
			return text
		}

		if !IsQuotaError(err) {
			log.Warn("generation failed", zap.Int("attempt", attempt), zap.Error(err))
			metrics.Fallbacks.WithLabelValues(p.PersonaID, "error").Inc()
			return Fallback
		}
		if attempt >= c.cfg.MaxAttempts {
			log.Warn("quota retries exhausted", zap.Int("attempts", attempt), zap.Error(err))
			metrics.Fallbacks.WithLabelValues(p.PersonaID, "quota").Inc()
			return Fallback
		}

		log.Info("quota hit, backing off", zap.Int("attempt", attempt), zap.Duration("delay", delay))
		metrics.QuotaRetries.WithLabelValues(p.PersonaID).Inc()
		if err := c.sleep(ctx, delay); err != nil {
			metrics.Fallbacks.WithLabelValues(p.PersonaID, "canceled").Inc()
			return Fallback
		}
		delay *= 2
	}
}

// Embed forwards to the generator when it can embed
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e, ok := c.gen.(Embedder)
	if !ok {
		return nil, errors.New("generator does not support embeddings")
	}
	return e.Embed(ctx, texts)
}
