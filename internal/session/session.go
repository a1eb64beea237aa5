// Package session manages the upstream HTTP session: a cookie-bootstrapped
// client with retry-on-transient-status behavior and a bounded lifetime.
package session

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Shamim-Fav/lvmh/internal/harvest"
)

// Config controls session construction.
type Config struct {
	// BootstrapURL is the public job-listings page fetched once per session
	// solely to acquire anonymous cookies. Also used as the Referer.
	BootstrapURL string
	Origin       string
	UserAgent    string

	// MaxAge bounds how long a session is reused before a fresh one is
	// bootstrapped. Default 30 minutes.
	MaxAge time.Duration

	// Retry knobs for the transport. Defaults: 5 attempts, 1s base backoff
	// doubling per attempt, capped at 30s.
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration

	// Timeout applies per request. Default 30s.
	Timeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAge <= 0 {
		c.MaxAge = 30 * time.Minute
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 30 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return c
}

// Session is an HTTP client plus the moment it was bootstrapped.
type Session struct {
	client  *http.Client
	created time.Time
}

// Client returns the underlying HTTP client.
func (s *Session) Client() *http.Client {
	return s.client
}

// CreatedAt returns the bootstrap timestamp.
func (s *Session) CreatedAt() time.Time {
	return s.created
}

// Expired reports whether the session has outlived maxAge at the given time.
func (s *Session) Expired(now time.Time, maxAge time.Duration) bool {
	return now.Sub(s.created) >= maxAge
}

// Provider hands out the single active Session, refreshing it once it
// expires. Creation and refresh are mutex-guarded so concurrent callers
// never race to bootstrap two sessions at once.
type Provider struct {
	mu      sync.Mutex
	cfg     Config
	clock   harvest.Clock
	logger  *zap.Logger
	current *Session
}

// NewProvider builds a Provider. The logger may be nil.
func NewProvider(cfg Config, clock harvest.Clock, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{cfg: cfg.withDefaults(), clock: clock, logger: logger}
}

// Get returns a live session, creating or refreshing one as needed. When the
// cookie bootstrap fails after retries the session is still returned together
// with a *harvest.BootstrapError; the caller should warn and continue.
func (p *Provider) Get(ctx context.Context) (*Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	if p.current != nil && !p.current.Expired(now, p.cfg.MaxAge) {
		return p.current, nil
	}

	sess, err := p.bootstrap(ctx, now)
	p.current = sess
	if err != nil {
		p.logger.Warn("session bootstrap degraded", zap.Error(err))
		return sess, &harvest.BootstrapError{Err: err}
	}
	p.logger.Debug("session bootstrapped", zap.Time("created", now))
	return sess, nil
}

func (p *Provider) bootstrap(ctx context.Context, now time.Time) (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	transport := &retryTransport{
		base: &headerTransport{
			base:      http.DefaultTransport,
			userAgent: p.cfg.UserAgent,
			origin:    p.cfg.Origin,
			referer:   p.cfg.BootstrapURL,
		},
		maxAttempts: p.cfg.MaxAttempts,
		backoffBase: p.cfg.BackoffBase,
		backoffMax:  p.cfg.BackoffMax,
	}
	sess := &Session{
		client: &http.Client{
			Jar:       jar,
			Transport: transport,
			Timeout:   p.cfg.Timeout,
		},
		created: now,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BootstrapURL, nil)
	if err != nil {
		return sess, fmt.Errorf("build bootstrap request: %w", err)
	}
	resp, err := sess.client.Do(req)
	if err != nil {
		return sess, fmt.Errorf("bootstrap %s: %w", p.cfg.BootstrapURL, err)
	}
	// Body discarded; only the cookies matter.
	drainAndClose(resp)
	return sess, nil
}
