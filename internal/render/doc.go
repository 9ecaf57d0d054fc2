// Package render implements the document rendering pipeline.
//
// # Overview
//
// A render turns one document into one response body:
//
//	Loading → Extracting → Executing(0..n-1) → Composing → Done
//
// Any non-terminal stage may end in an error status instead.
//
//   - Extract splits the document into script blocks and residual markup using
//     a literal two-token scanner (no nesting, leftmost match, spans newlines).
//   - Each block runs through an Engine against a Bridge: the table of host
//     capabilities (log, greet, appendToPage, optionally broadcast) bound to
//     the render's Context.
//   - A Composer merges the residual markup with the Context's output buffer
//     under the configured Policy.
//
// # Isolation
//
// A Context belongs to exactly one render and is never stored anywhere that
// another render can reach. Engines must not retain state between Execute
// calls, so blocks share data only through the bridge's observable effects.
//
// A failing block is recorded in the Result and the next block still runs.
// Only loading, composition and the request deadline end a render early.
//
// # Usage
//
//	pipeline := render.NewPipeline(loader, sandbox.New(sandbox.DefaultConfig()), render.Config{
//		Delimiters: render.DefaultDelimiters(),
//		Policy:     render.PolicyResidual,
//	}, logger).WithMetrics(metrics)
//
//	result := pipeline.Render(ctx, "index.masm")
//	if result.Status != render.StatusSuccess {
//		return result.Status.HTTPStatus()
//	}
package render
