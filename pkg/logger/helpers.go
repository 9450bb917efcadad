package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogRateLimit reports a mandatory wait imposed by the rate controller
func LogRateLimit(l Logger, queryType string, wait time.Duration) {
	l.WithFields(map[string]interface{}{
		"query_type": queryType,
		"wait":       wait.Round(time.Second),
		"resume_at":  time.Now().Add(wait).Format("15:04"),
	}).Warn("Too many queries in the last time, waiting")
}

// LogResume reports a resume snapshot event (loaded, saved, deleted, rejected)
func LogResume(l Logger, action, path string) {
	l.WithFields(map[string]interface{}{
		"action": action,
		"path":   path,
	}).Info("Resume information " + action)
}

// LogTargetFailure reports a swallowed failure of one unit in a batch run
func LogTargetFailure(l Logger, label string, err error) {
	fields := map[string]interface{}{}
	if label != "" {
		fields["target"] = label
	}
	l.WithError(err).ErrorWithFields("Target failed, continuing with remaining targets", fields)
}

// NewNopLogger creates a no-operation logger
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                               { return nil }
