package llm

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"declutter/internal/config"
	"declutter/internal/logging"
	"declutter/internal/services"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	defaultBaseURL     = "https://openrouter.ai/api/v1/chat/completions"
)

// Config captures the runtime settings required to talk to the service.
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
}

// Client wraps an OpenAI-compatible chat completion API. It is safe for
// concurrent use.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
	retry      retryPolicy
	sleeper    func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithRetryMaxAttempts sets the total number of attempts per request,
// including the first one. Values below 1 mean a single attempt.
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retry.attempts = attempts
	}
}

// WithRetryBackoff sets the first retry delay and the cap for later ones.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retry.base = baseDelay
		c.retry.max = maxDelay
	}
}

// WithSleeper replaces the retry wait. Tests use it to skip real sleeps.
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// WithLogger attaches a logger used for retry diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "llm")
	}
}

// NewClient constructs a client. Options apply in order.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	c := &Client{
		cfg: Config{
			APIKey:         strings.TrimSpace(cfg.APIKey),
			BaseURL:        strings.TrimSpace(cfg.BaseURL),
			Model:          strings.TrimSpace(cfg.Model),
			Referer:        strings.TrimSpace(cfg.Referer),
			Title:          strings.TrimSpace(cfg.Title),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.NewNop(),
		retry:      defaultRetryPolicy(),
	}
	if c.cfg.BaseURL == "" {
		c.cfg.BaseURL = defaultBaseURL
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClientFrom builds a client from the resolved [llm] configuration
// section, including its retry policy. Extra options are applied last.
func NewClientFrom(cfg config.LLMConfig, opts ...Option) *Client {
	base := []Option{
		WithRetryMaxAttempts(cfg.RetryAttempts),
		WithRetryBackoff(
			time.Duration(cfg.RetryBaseMS)*time.Millisecond,
			time.Duration(cfg.RetryMaxMS)*time.Millisecond,
		),
	}
	return NewClient(Config{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		Model:          cfg.Model,
		Referer:        cfg.Referer,
		Title:          cfg.Title,
		TimeoutSeconds: cfg.TimeoutSeconds,
	}, append(base, opts...)...)
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// HealthCheck issues a tiny request to verify the key, endpoint and model.
func (c *Client) HealthCheck(ctx context.Context) error {
	var parsed struct {
		OK bool `json:"ok"`
	}
	_, err := c.completeJSON(ctx, "llm health",
		"You must respond with JSON only.",
		`Respond with {"ok":true}`,
		func(content string) error {
			return decodeObject(content, &parsed)
		})
	if err != nil {
		return err
	}
	if !parsed.OK {
		return services.Wrap(services.ErrExternalTool, "llm", "llm health", "unexpected response", nil)
	}
	return nil
}

// completeJSON sends a JSON-mode chat request. When decode is set it runs
// inside the retry loop, so content that fails to decode is retried.
func (c *Client) completeJSON(ctx context.Context, op, systemPrompt, userPrompt string, decode func(string) error) (string, error) {
	systemPrompt = strings.TrimSpace(systemPrompt)
	userPrompt = strings.TrimSpace(userPrompt)
	switch {
	case systemPrompt == "":
		return "", services.Wrap(services.ErrValidation, "llm", op, "system prompt required", nil)
	case userPrompt == "":
		return "", services.Wrap(services.ErrValidation, "llm", op, "user prompt required", nil)
	case c.cfg.APIKey == "":
		return "", services.Wrap(services.ErrConfiguration, "llm", op, "api key required", nil)
	}

	req := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		ResponseFormat: map[string]string{"type": "json_object"},
	}

	attempts := c.retry.maxAttempts()
	var (
		lastErr error
		tried   int
	)
	for tried < attempts {
		tried++
		content, err := c.roundTrip(ctx, req, op, decode)
		if err == nil {
			return content, nil
		}
		lastErr = err
		if tried >= attempts || ctx.Err() != nil {
			break
		}
		delay, ok := c.retry.delayFor(err, tried)
		if !ok {
			break
		}
		logging.WithContext(ctx, c.logger).Debug("retrying categorization service request",
			logging.String("op", op),
			logging.Int("attempt", tried),
			logging.Duration("delay", delay),
			logging.Error(err),
		)
		if err := c.wait(ctx, delay); err != nil {
			return "", err
		}
	}
	return "", classifyFailure(ctx, op, tried, lastErr)
}

// roundTrip performs one attempt: send, extract the answer, decode.
func (c *Client) roundTrip(ctx context.Context, req chatRequest, op string, decode func(string) error) (string, error) {
	resp, body, err := c.send(ctx, req)
	if err != nil {
		return "", err
	}
	content, finish := resp.answer()
	if content == "" {
		return "", &emptyContentError{
			Op:           op,
			FinishReason: finish,
			Refusal:      resp.refusal(),
			Snippet:      summarizePayloadSnippet(string(body)),
		}
	}
	if decode != nil {
		if err := decode(content); err != nil {
			return "", &malformedPayloadError{Op: op, Err: err}
		}
	}
	return content, nil
}

func (c *Client) wait(ctx context.Context, delay time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if delay <= 0 {
		return nil
	}
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
