// Package logging provides structured logging for MedEdge Treatment Core.
//
// It wraps Go's standard log/slog package so every component logs with
// the same defaults: JSON output for production, text for development,
// service and version fields on every entry, and level-based filtering.
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("starting service", "port", 8080)
//	logger.Error("failed to connect", "error", err)
//
// Never log patient identifiers, credentials, or tokens.
package logging
