package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// documentRoute labels requests that fell through to the document handler,
// keeping arbitrary request paths out of the label set.
const documentRoute = "document"

// otherMethod labels any request method outside the standard set.
const otherMethod = "other"

// Middleware creates a Gin middleware for metrics collection
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := methodLabel(c.Request.Method)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = documentRoute
		}

		metrics.RecordHTTPRequest(
			method,
			route,
			strconv.Itoa(c.Writer.Status()),
			time.Since(start),
			int64(c.Writer.Size()),
		)
	}
}

func methodLabel(method string) string {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodConnect,
		http.MethodOptions, http.MethodTrace:
		return method
	}
	return otherMethod
}

// Timer measures operation duration
type Timer struct {
	start time.Time
}

// NewTimer starts a new timer
func NewTimer() Timer {
	return Timer{start: time.Now()}
}

// Elapsed returns the time since the timer started.
func (t Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}
