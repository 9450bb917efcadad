package instagram

import (
	errs "igcrawler/pkg/errors"
	"igcrawler/pkg/logger"
)

// Catch runs fn as one unit of a batch run. A crawler error returned by fn is
// logged with label, recorded in the error log and swallowed, unless
// crawl.raise_all_errors is set. Cancellation, aborts and errors outside the
// crawler's taxonomy are always returned.
func (c *Context) Catch(label string, fn func() error) error {
	err := fn()
	if err == nil || errs.IsFatal(err) || !errs.IsTaxonomy(err) {
		return err
	}

	msg := err.Error()
	if label != "" {
		msg = label + ": " + msg
	}
	logger.LogTargetFailure(c.log, label, err)
	c.recordError(msg)

	if c.cfg.Crawl.RaiseAllErrors {
		return err
	}
	return nil
}

// Error logs msg and keeps it for the summary printed by Close
func (c *Context) Error(msg string) {
	c.log.Error(msg)
	c.recordError(msg)
}

func (c *Context) recordError(msg string) {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	c.errorLog = append(c.errorLog, msg)
}

// ErrorLog returns the errors recorded so far
func (c *Context) ErrorLog() []string {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return append([]string(nil), c.errorLog...)
}

// Close repeats the recorded errors and releases idle connections
func (c *Context) Close() {
	if log := c.ErrorLog(); len(log) > 0 {
		c.log.WithField("count", len(log)).Warn("Errors or warnings occurred:")
		for _, msg := range log {
			c.log.Warn(msg)
		}
	}
	c.currentSession().CloseIdleConnections()
}

// Absorb appends the error log of other, typically a Clone that handled one
// target, and releases other's idle connections.
func (c *Context) Absorb(other *Context) {
	for _, msg := range other.ErrorLog() {
		c.recordError(msg)
	}
	other.currentSession().CloseIdleConnections()
}
