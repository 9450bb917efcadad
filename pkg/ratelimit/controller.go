package ratelimit

import (
	"context"
	"sync"
	"time"

	errs "igcrawler/pkg/errors"
	"igcrawler/pkg/logger"
	"igcrawler/pkg/metrics"
	"igcrawler/pkg/retry"
)

const (
	// QueryTypeOther is used for web host requests that are not GraphQL queries
	QueryTypeOther = "other"
	// QueryTypeIPhone is used for requests to the mobile API host
	QueryTypeIPhone = "iphone"

	DefaultWindow           = 660 * time.Second
	DefaultMargin           = 6 * time.Second
	DefaultQueriesPerWindow = 20

	// waits longer than this are reported to the log
	noticeThreshold = 15 * time.Second
)

// Options configures a Controller
type Options struct {
	Window           time.Duration
	Margin           time.Duration
	QueriesPerWindow int
	Unthrottled      []string
	Now              func() time.Time
	Sleep            func(ctx context.Context, d time.Duration) error
	Logger           logger.Logger
}

// Controller decides how long a caller must wait before a rate-limited query
type Controller struct {
	mu           sync.Mutex
	window       time.Duration
	margin       time.Duration
	quota        int
	unthrottled  map[string]bool
	timestamps   map[string][]time.Time
	earliestNext time.Time

	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	logger logger.Logger

	listeners    map[int]func(queryType string, wait time.Duration)
	nextListener int
}

// NewController creates a rate controller, filling unset options with defaults
func NewController(opts Options) *Controller {
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.Margin < 0 {
		opts.Margin = 0
	}
	if opts.QueriesPerWindow <= 0 {
		opts.QueriesPerWindow = DefaultQueriesPerWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Sleep == nil {
		opts.Sleep = retry.Wait
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}

	unthrottled := make(map[string]bool, len(opts.Unthrottled))
	for _, q := range opts.Unthrottled {
		unthrottled[q] = true
	}

	return &Controller{
		window:      opts.Window,
		margin:      opts.Margin,
		quota:       opts.QueriesPerWindow,
		unthrottled: unthrottled,
		timestamps:  make(map[string][]time.Time),
		listeners:   make(map[int]func(string, time.Duration)),
		now:         opts.Now,
		sleep:       opts.Sleep,
		logger:      opts.Logger,
	}
}

// IsUnthrottled reports whether queryType is exempt from window accounting
func (c *Controller) IsUnthrottled(queryType string) bool {
	return c.unthrottled[queryType]
}

// prune drops entries older than the window. Caller holds c.mu.
func (c *Controller) prune(queryType string, now time.Time) []time.Time {
	entries := c.timestamps[queryType]
	i := 0
	for i < len(entries) && now.Sub(entries[i]) >= c.window {
		i++
	}
	entries = entries[i:]
	if len(entries) == 0 {
		delete(c.timestamps, queryType)
		return nil
	}
	c.timestamps[queryType] = entries
	return entries
}

// waitTime computes the mandatory wait. untracked marks a query the provider
// rejected with 429: the window is treated as full and the result becomes the
// earliest next request instant. Caller holds c.mu.
func (c *Controller) waitTime(queryType string, now time.Time, untracked bool) time.Duration {
	entries := c.prune(queryType, now)
	earliest := c.earliestNext.Sub(now)

	if len(entries) < c.quota && !untracked {
		return max(earliest, 0)
	}

	wait := c.margin
	if len(entries) > 0 {
		wait = entries[0].Add(c.window).Sub(now).Round(time.Second) + c.margin
	}
	if untracked {
		c.earliestNext = now.Add(wait)
		earliest = wait
	}
	return max(wait, earliest, 0)
}

// QueryWaitTime returns how long a query of queryType would have to wait now
func (c *Controller) QueryWaitTime(queryType string) time.Duration {
	if c.IsUnthrottled(queryType) {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.waitTime(queryType, c.now(), false)
}

// WaitBeforeQuery blocks until a query of queryType may be issued, then records it
func (c *Controller) WaitBeforeQuery(ctx context.Context, queryType string) error {
	if c.IsUnthrottled(queryType) {
		return nil
	}

	c.mu.Lock()
	wait := c.waitTime(queryType, c.now(), false)
	c.mu.Unlock()

	if wait > 0 {
		metrics.RecordRateWait(queryType, wait)
		if wait > noticeThreshold {
			logger.LogRateLimit(c.logger, queryType, wait)
			c.notify(queryType, wait)
		}
		if err := c.sleep(ctx, wait); err != nil {
			return errs.Cancelled(err)
		}
	}

	c.mu.Lock()
	c.timestamps[queryType] = append(c.timestamps[queryType], c.now())
	c.mu.Unlock()
	return nil
}

// HandleTooManyRequests records a 429 for queryType and returns the wait the
// caller must observe before retrying.
func (c *Controller) HandleTooManyRequests(queryType string) time.Duration {
	c.mu.Lock()
	now := c.now()
	wait := c.waitTime(queryType, now, true)
	counts := c.countsLocked(now)
	c.mu.Unlock()

	c.logger.WarnWithFields("Instagram responded with HTTP error \"429 - Too Many Requests\"", map[string]interface{}{
		"query_type":   queryType,
		"window_count": counts,
		"wait":         wait,
	})
	metrics.RecordRateWait(queryType, wait)
	if wait > noticeThreshold {
		c.notify(queryType, wait)
	}
	return wait
}

// OnLongWait registers fn to be told about waits long enough to be noticed by a
// user. The returned func unregisters it.
func (c *Controller) OnLongWait(fn func(queryType string, wait time.Duration)) (remove func()) {
	c.mu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

func (c *Controller) notify(queryType string, wait time.Duration) {
	c.mu.Lock()
	fns := make([]func(string, time.Duration), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(queryType, wait)
	}
}

// Count returns the number of queries of queryType inside the current window
func (c *Controller) Count(queryType string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.prune(queryType, c.now()))
}

// countsLocked summarizes the window per query type. Caller holds c.mu.
func (c *Controller) countsLocked(now time.Time) map[string]int {
	counts := make(map[string]int, len(c.timestamps))
	for qt := range c.timestamps {
		if n := len(c.prune(qt, now)); n > 0 {
			counts[qt] = n
		}
	}
	return counts
}

// Reset forgets all recorded queries and any pending 429 wait
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timestamps = make(map[string][]time.Time)
	c.earliestNext = time.Time{}
}
