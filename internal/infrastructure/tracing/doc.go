// Package tracing provides lightweight request tracing.
//
// A trace covers one HTTP request. The HTTP middleware opens the root span and
// propagates X-Trace-ID / X-Span-ID; the render pipeline opens child spans for
// the render itself and for every script block it executes. Finished spans are
// handed to a buffered collector and written as structured zap log lines.
//
//	tracer := tracing.New("netprop", logger)
//	defer tracer.Close()
//
//	router.Use(tracing.HTTPMiddleware(tracer))
//
//	span, ctx := tracer.StartSpan(ctx, "render")
//	defer func() {
//		span.Finish()
//		tracer.Submit(span)
//	}()
package tracing
