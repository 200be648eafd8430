// Package genai wraps the external text-generation service with caching,
// credential rotation, and retry. Callers see a single Generate call; the
// client decides which credential carries each request and whether the
// network is touched at all.
package genai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/meridian-fmcg/rfp-cli/internal/keypool"
	"github.com/meridian-fmcg/rfp-cli/internal/store"
)

// Generation defaults applied when a call option does not override them.
const (
	DefaultTemperature = 0.7
	DefaultMaxTokens   = 4096

	// minAttempts floors the retry budget regardless of pool size.
	minAttempts = 12

	quotaBackoff = 1 * time.Second
	errorBackoff = 2 * time.Second
)

// Request is a single generation call as the backend sees it.
type Request struct {
	Model       string
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int64
}

// Backend issues one network call with one credential. Implementations
// must be safe for concurrent use.
type Backend interface {
	Complete(ctx context.Context, apiKey string, req Request) (string, error)
}

// Result is the outcome of an asynchronous generation.
type Result struct {
	Text string
	Err  error
}

// CallOption adjusts a single Generate call.
type CallOption func(*Request)

// WithTemperature overrides the sampling temperature for one call.
func WithTemperature(t float64) CallOption {
	return func(r *Request) { r.Temperature = t }
}

// WithMaxTokens overrides the output token cap for one call.
func WithMaxTokens(n int64) CallOption {
	return func(r *Request) { r.MaxTokens = n }
}

// Option adjusts client construction.
type Option func(*Client)

// WithLimiter installs a client-side request pacer shared by all
// concurrent batch workers.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithBackoffs overrides the fixed retry delays (used in tests).
func WithBackoffs(quota, other time.Duration) Option {
	return func(c *Client) {
		c.quotaDelay = quota
		c.errorDelay = other
	}
}

// Client is the resilient generation client. A cache hit short-circuits
// everything: no credential is consumed and no network call is made, even
// when the caller would prefer fresh output.
type Client struct {
	backend Backend
	pool    *keypool.Pool
	cache   store.Cache
	model   string
	limiter *rate.Limiter

	quotaDelay time.Duration
	errorDelay time.Duration
}

// New builds a generation client. The pool must be non-empty (enforced at
// pool construction); a single-credential pool behaves identically, just
// without effective rotation.
func New(backend Backend, pool *keypool.Pool, cache store.Cache, model string, opts ...Option) *Client {
	c := &Client{
		backend:    backend,
		pool:       pool,
		cache:      cache,
		model:      model,
		quotaDelay: quotaBackoff,
		errorDelay: errorBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the configured model identifier.
func (c *Client) Model() string {
	return c.model
}

// Fingerprint computes the deterministic cache key for a prompt pair.
func (c *Client) Fingerprint(system, prompt string) string {
	h := sha256.New()
	h.Write([]byte(c.model))
	h.Write([]byte{0})
	h.Write([]byte(system))
	h.Write([]byte{0})
	h.Write([]byte(prompt))
	return hex.EncodeToString(h.Sum(nil))
}

// Generate produces text for prompt, consulting the cache first and
// rotating credentials across retries on a miss. Successful responses are
// written through to the cache before returning.
func (c *Client) Generate(ctx context.Context, prompt, system string, opts ...CallOption) (string, error) {
	req := Request{
		Model:       c.model,
		System:      system,
		Prompt:      prompt,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
	}
	for _, opt := range opts {
		opt(&req)
	}

	fp := c.Fingerprint(system, prompt)
	if cached, ok, err := c.cache.Get(ctx, fp); err != nil {
		zap.L().Warn("genai: cache read failed", zap.Error(err))
	} else if ok {
		zap.L().Debug("genai: cache hit", zap.String("fingerprint", fp[:12]))
		return cached, nil
	}

	attempts := 3 * c.pool.Size()
	if attempts < minAttempts {
		attempts = minAttempts
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", eris.Wrap(err, "genai: rate limiter")
			}
		}

		key := c.pool.Next()
		text, err := c.backend.Complete(ctx, key, req)
		if err == nil {
			if putErr := c.cache.Put(ctx, fp, text); putErr != nil {
				zap.L().Warn("genai: cache write failed", zap.Error(putErr))
			}
			return text, nil
		}

		lastErr = err
		c.pool.MarkError(key)

		if attempt >= attempts-1 {
			break
		}

		delay := c.errorDelay
		if IsQuotaError(err) {
			delay = c.quotaDelay
			zap.L().Warn("genai: quota hit, rotating credential",
				zap.String("key_suffix", keySuffix(key)),
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
		} else {
			zap.L().Warn("genai: generation failed, retrying",
				zap.Int("attempt", attempt+1),
				zap.Error(err),
			)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", eris.Wrap(ctx.Err(), "genai: generate canceled")
		case <-timer.C:
		}
	}

	return "", eris.Wrapf(lastErr, "genai: failed after %d attempts", attempts)
}

// GenerateAsync runs Generate in a goroutine and delivers the outcome on
// the returned channel. Semantics are identical to the blocking form.
func (c *Client) GenerateAsync(ctx context.Context, prompt, system string, opts ...CallOption) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		text, err := c.Generate(ctx, prompt, system, opts...)
		out <- Result{Text: text, Err: err}
	}()
	return out
}

// IsQuotaError classifies an error as quota/rate-limit pressure.
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "quota") ||
		strings.Contains(msg, "rate") ||
		strings.Contains(msg, "429")
}

// keySuffix returns the last four characters of a credential for logging.
func keySuffix(key string) string {
	if len(key) <= 4 {
		return key
	}
	return key[len(key)-4:]
}
