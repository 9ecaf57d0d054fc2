package render

import (
	"strings"

	"github.com/charlie-sans/netprop/internal/infrastructure/logging"
	"github.com/charlie-sans/netprop/internal/shared/id"
)

// Context is the state of one in-flight render. It is owned by a single
// render and must not be shared across requests or goroutines.
type Context struct {
	ID       id.RenderID
	Document string

	residual string
	output   strings.Builder
	failures []*ExecutionError
	logger   *logging.Logger
}

// NewContext creates the state for one render of document.
func NewContext(renderID id.RenderID, document, residual string, logger *logging.Logger) *Context {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Context{
		ID:       renderID,
		Document: document,
		residual: residual,
		logger: logger.With(
			logging.RenderID(renderID),
			logging.Document(document),
		),
	}
}

// Append adds content to the output buffer.
func (c *Context) Append(content string) {
	c.output.WriteString(content)
}

// Output returns everything appended so far, in call order.
func (c *Context) Output() string {
	return c.output.String()
}

// Residual returns the document markup with all script blocks removed.
func (c *Context) Residual() string {
	return c.residual
}

// Failures returns the block failures recorded so far.
func (c *Context) Failures() []*ExecutionError {
	return c.failures
}

// Logger returns the render-scoped logger.
func (c *Context) Logger() *logging.Logger {
	return c.logger
}

func (c *Context) recordFailure(err *ExecutionError) {
	c.failures = append(c.failures, err)
}
