// Package main is the entry point for the netprop document server.
//
// The server renders .masm documents: script blocks embedded in a document
// run in a sandbox with access to a small host API, and their output is
// composed with the static markup of the document.
//
// Configuration:
//   - Defaults for development
//   - Optional TOML or YAML file (--config)
//   - Environment variables (12-factor)
//   - CLI flags (override everything else)
//
// Usage:
//
//	# Serve ./masm_files on :8080
//	./server
//
//	# Custom directory and port, development logging
//	./server --docs ./site --port 9000 --dev
//
//	# Script output only, no static markup
//	./server --policy buffer
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
