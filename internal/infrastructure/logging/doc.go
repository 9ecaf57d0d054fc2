// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: colored console output for humans
//
// Components take a *Logger and derive a named child for their own output,
// so every line can be traced back to the part of the pipeline that wrote it:
//
//	logger, err := logging.New(logging.DefaultConfig())
//	renderLog := logger.Named("render")
//	renderLog.Info("render complete", logging.Document("index.masm"))
//
// Script diagnostics emitted through the host bridge are written under the
// "script" logger and never reach the HTTP response body.
package logging
