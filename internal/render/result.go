package render

import (
	"net/http"
	"time"

	"github.com/charlie-sans/netprop/internal/shared/id"
)

// ContentTypeHTML is the content type of every rendered body.
const ContentTypeHTML = "text/html; charset=UTF-8"

// Status classifies the outcome of a render.
type Status int

const (
	StatusSuccess Status = iota
	StatusNotFound
	StatusMethodNotAllowed
	StatusInternal
	StatusTimeout
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusNotFound:
		return "not_found"
	case StatusMethodNotAllowed:
		return "method_not_allowed"
	case StatusInternal:
		return "internal"
	case StatusTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// HTTPStatus maps the status to a response code.
func (s Status) HTTPStatus() int {
	switch s {
	case StatusSuccess:
		return http.StatusOK
	case StatusNotFound:
		return http.StatusNotFound
	case StatusMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case StatusTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// Stage is a step of the render state machine.
type Stage int

const (
	StageLoading Stage = iota
	StageExtracting
	StageExecuting
	StageComposing
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageLoading:
		return "loading"
	case StageExtracting:
		return "extracting"
	case StageExecuting:
		return "executing"
	case StageComposing:
		return "composing"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}

// Result is the outcome of one render. Body is only set on success.
type Result struct {
	RenderID    id.RenderID
	Document    string
	Status      Status
	Stage       Stage
	Body        string
	ContentType string
	Blocks      int
	Failures    []*ExecutionError
	Malformed   *MalformedBlock
	Err         error
	Duration    time.Duration
}

// OK reports whether the render succeeded.
func (r *Result) OK() bool {
	return r.Status == StatusSuccess
}
