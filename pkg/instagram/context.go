package instagram

import (
	"context"
	"net/http"
	"sync"
	"time"

	"igcrawler/pkg/config"
	errs "igcrawler/pkg/errors"
	"igcrawler/pkg/logger"
	"igcrawler/pkg/nodeiter"
	"igcrawler/pkg/ratelimit"
	"igcrawler/pkg/retry"
)

// Options configures a Context. Zero fields fall back to the configuration.
type Options struct {
	Config     *config.Config
	Transport  http.RoundTripper
	Controller *ratelimit.Controller
	Delay      DelayPolicy
	// Sleep waits between retry attempts; defaults to retry.Wait
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger logger.Logger
}

type twoFactorState struct {
	session    *Session
	username   string
	identifier string
}

// Context owns one session together with its rate controller and page length
// state. Its methods may be called from several goroutines, but iterators it
// creates must each be consumed by one goroutine.
type Context struct {
	cfg        *config.Config
	transport  http.RoundTripper
	controller *ratelimit.Controller
	delay      DelayPolicy
	sleep      func(ctx context.Context, d time.Duration) error
	pageLength *nodeiter.PageLength
	log        logger.Logger

	mu              sync.Mutex
	session         *Session
	username        string
	twoFactor       *twoFactorState
	signatureSecret string

	errMu    sync.Mutex
	errorLog []string
}

// NewContext creates an anonymous Context
func NewContext(opts Options) *Context {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}
	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport.(*http.Transport).Clone()
	}
	delay := opts.Delay
	if delay == nil {
		if cfg.Query.Sleep {
			delay = DefaultJitterDelay()
		} else {
			delay = NoDelay{}
		}
	}
	sleep := opts.Sleep
	if sleep == nil {
		sleep = retry.Wait
	}
	controller := opts.Controller
	if controller == nil {
		controller = newController(cfg, log, sleep)
	}

	c := &Context{
		cfg:             cfg,
		transport:       transport,
		controller:      controller,
		delay:           delay,
		sleep:           sleep,
		pageLength:      nodeiter.NewPageLength(cfg.Query.PageLength, cfg.Query.MinPageLength),
		log:             log,
		signatureSecret: cfg.Instagram.SignatureSecret,
	}
	c.session = c.anonymousSession()
	return c
}

func newController(cfg *config.Config, log logger.Logger, sleep func(context.Context, time.Duration) error) *ratelimit.Controller {
	return ratelimit.NewController(ratelimit.Options{
		Window:           cfg.RateLimit.Window,
		Margin:           cfg.RateLimit.Margin,
		QueriesPerWindow: cfg.RateLimit.QueriesPerWindow,
		Unthrottled:      cfg.RateLimit.UnthrottledQueries,
		Sleep:            sleep,
		Logger:           log,
	})
}

// anonymousSession returns a session without identity
func (c *Context) anonymousSession() *Session {
	s := newSession(c.transport, c.cfg.Instagram.RequestTimeout, false)
	s.SetCookies(anonymousCookies)
	s.SetHeaders(defaultHeaders(c.cfg.Instagram.UserAgent, true))
	return s
}

// AnonymousCopy returns a Context with a fresh anonymous session that shares
// this Context's rate controller and configuration.
func (c *Context) AnonymousCopy() *Context {
	clone := c.derive(c.controller)
	clone.session = clone.anonymousSession()
	return clone
}

// Clone returns an independent Context with a copy of the session. Unless the
// rate window is configured as shared, the clone owns a new rate controller.
func (c *Context) Clone() *Context {
	controller := c.controller
	if !c.cfg.RateLimit.SharedWindow {
		controller = newController(c.cfg, c.log, c.sleep)
	}
	clone := c.derive(controller)

	c.mu.Lock()
	clone.session = c.session.Copy()
	clone.username = c.username
	c.mu.Unlock()
	return clone
}

func (c *Context) derive(controller *ratelimit.Controller) *Context {
	c.mu.Lock()
	secret := c.signatureSecret
	c.mu.Unlock()
	return &Context{
		cfg:             c.cfg,
		transport:       c.transport,
		controller:      controller,
		delay:           c.delay,
		sleep:           c.sleep,
		pageLength:      nodeiter.NewPageLength(c.cfg.Query.PageLength, c.cfg.Query.MinPageLength),
		log:             c.log,
		signatureSecret: secret,
	}
}

// IsLoggedIn reports whether the session carries an identity
func (c *Context) IsLoggedIn() bool {
	return c.Username() != ""
}

// Username returns the logged-in user, or "" when anonymous
func (c *Context) Username() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.username
}

// RequireLogin fails with AuthenticationRequired when the Context is anonymous
func (c *Context) RequireLogin() error {
	if !c.IsLoggedIn() {
		return errs.New(errs.ErrorTypeAuthRequired, "login required")
	}
	return nil
}

// SetSignatureSecret sets the secret used to sign anonymous GraphQL queries
func (c *Context) SetSignatureSecret(secret string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signatureSecret = secret
}

// Controller returns the rate controller
func (c *Context) Controller() *ratelimit.Controller {
	return c.controller
}

// PageLength returns the page length state shared by this Context's iterators
func (c *Context) PageLength() *nodeiter.PageLength {
	return c.pageLength
}

// Config returns the configuration
func (c *Context) Config() *config.Config {
	return c.cfg
}

// Logger returns the logger
func (c *Context) Logger() logger.Logger {
	return c.log
}

func (c *Context) currentSession() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Context) setSession(s *Session, username string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
	c.username = username
}
