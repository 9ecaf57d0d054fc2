package render

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// Errors returned by ParsePolicy and Compose.
var (
	ErrUnknownPolicy   = errors.New("unknown composition policy")
	ErrInvalidEncoding = errors.New("composed body is not valid UTF-8")
)

// Policy selects how residual markup and script output are combined.
type Policy string

const (
	// PolicyResidual emits the residual markup followed by script output.
	// A document without blocks is returned unchanged.
	PolicyResidual Policy = "residual"

	// PolicyBuffer emits script output only. A document without blocks
	// renders to an empty body.
	PolicyBuffer Policy = "buffer"
)

// ParsePolicy converts a configuration value to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyResidual, PolicyBuffer:
		return Policy(s), nil
	case "":
		return PolicyResidual, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
}

// Composer builds the final body from a finished render Context.
type Composer struct {
	policy    Policy
	sanitizer *bluemonday.Policy
}

// ComposerOption configures a Composer.
type ComposerOption func(*Composer)

// WithSanitizer filters script output (never the static markup) through p.
func WithSanitizer(p *bluemonday.Policy) ComposerOption {
	return func(c *Composer) {
		c.sanitizer = p
	}
}

// NewComposer creates a composer for the given policy.
func NewComposer(policy Policy, opts ...ComposerOption) *Composer {
	if policy == "" {
		policy = PolicyResidual
	}
	c := &Composer{policy: policy}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Policy returns the composer's policy.
func (c *Composer) Policy() Policy {
	return c.policy
}

// Compose returns the response body for rc.
func (c *Composer) Compose(rc *Context) (string, error) {
	output := rc.Output()
	if c.sanitizer != nil && output != "" {
		output = c.sanitizer.Sanitize(output)
	}

	var body string
	switch c.policy {
	case PolicyResidual:
		body = rc.Residual() + output
	case PolicyBuffer:
		body = output
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPolicy, c.policy)
	}

	if !utf8.ValidString(body) {
		return "", ErrInvalidEncoding
	}
	return body, nil
}
