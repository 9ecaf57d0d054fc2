// Package monitoring provides Prometheus metrics for the render server.
//
// # Overview
//
// Every Metrics value owns its own registry, so independent servers (and tests)
// never collide on collector registration. The registry is exposed through
// Handler for the /metrics route.
//
// # Collected metrics
//
//   - HTTP requests (count, latency, response size)
//   - Renders by final status and render latency
//   - Script block executions by outcome and block latency
//   - Malformed (unterminated) script blocks
//   - Document cache hits and misses
//   - Broadcast channel connections and messages
//   - Process uptime
//
// # Usage
//
//	metrics := monitoring.NewMetrics()
//	router.Use(monitoring.Middleware(metrics))
//	router.GET("/metrics", gin.WrapH(metrics.Handler()))
//
//	timer := monitoring.NewTimer()
//	// ... run a block ...
//	metrics.RecordBlock("ok", timer.Elapsed())
package monitoring
