// Package sandbox executes script blocks in an isolated goja runtime.
//
// Every Execute call builds a fresh runtime, binds the render bridge under a
// namespace object and drops the runtime when the block finishes. Nothing
// compiled or bound survives between blocks or requests.
//
// Security:
//   - require, process, module and exports are undefined
//   - setTimeout and setInterval are inert
//   - call stack depth is capped
//   - a per-block timeout and the request context both interrupt execution
//
// Usage:
//
//	engine := sandbox.New(sandbox.DefaultConfig())
//	err := engine.Execute(ctx, `JavaFunctions.appendToPage(JavaFunctions.greet("World"))`, bridge)
package sandbox
