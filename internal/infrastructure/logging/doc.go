// Package logging provides structured logging for the Gray Logic cloud mapper.
//
// This package wraps Go's standard log/slog package so every component
// (bus client, converter, dispatcher, registrar) logs with the same shape.
//
// # Features
//
//   - JSON output for production, text output for development
//   - Default fields (service, version) on all log entries
//   - Per-component child loggers via Component
//   - Level-based filtering (debug, info, warn, error)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, version)
//	dispatcherLog := logger.Component("operations")
//	dispatcherLog.Warn("log upload failed", "cmd_id", cmdID, "error", err)
//
// # Security
//
// Never log broker or cloud credentials. Command payloads may carry
// signed URLs; log the topic and correlation id instead.
package logging
