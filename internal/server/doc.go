// Package server wires the document renderer into an HTTP server.
//
// This package orchestrates all components:
//   - HTTP routing with Gin framework
//   - Middleware stack (recovery, tracing, metrics, CORS, rate limiting)
//   - Document loader, script engine and render pipeline
//   - Websocket broadcast hub
//
// Server Lifecycle:
//  1. Load configuration from file, environment and flags
//  2. Initialize logger, metrics and tracer
//  3. Open the document directory and optionally preload it
//  4. Build the render pipeline and broadcast hub
//  5. Setup HTTP routes and middleware
//  6. Serve until the context is cancelled
//  7. Graceful shutdown within the configured timeout
//
// Example Usage:
//
//	cfg, _ := config.Load("")
//	srv, err := server.New(cfg, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = srv.Run(ctx)
package server
