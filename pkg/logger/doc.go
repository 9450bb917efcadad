// Package logger provides the structured logging interface used throughout the
// crawler.
//
// It wraps zerolog with a coloured console writer and an optional file sink.
// Components receive a Logger at construction time; NewNopLogger is the
// default for library code and NewTestLogger captures messages in tests.
//
//	cfg := &config.LoggingConfig{Level: "info"}
//	if err := logger.Initialize(cfg); err != nil {
//		return err
//	}
//	logger.GetLogger().WithField("target", "instagram").Info("Crawl started")
package logger
