// Package id provides ULID generation for renders and trace spans.
//
// IDs are lexicographically sortable and carry a short type prefix so that
// log lines stay readable:
//
//	rnd_01J9Z3M4X9K6Q2W8E5R7T1Y3U5   render
//	trc_01J9Z3M4XA0S8D6F4G2H1J3K5L   trace
//	spn_01J9Z3M4XB7N5M3B1V9C7X5Z3A   span
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// RenderID identifies one render of one document.
type RenderID string

// TraceID identifies a request trace.
type TraceID string

// SpanID identifies a single span within a trace.
type SpanID string

// Prefixes distinguishing the ID types in logs and headers.
const (
	RenderPrefix = "rnd"
	TracePrefix  = "trc"
	SpanPrefix   = "spn"
)

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator.
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand.
func NewGenerator() *Generator {
	return &Generator{entropy: rand.Reader}
}

// NewGeneratorWithEntropy creates a generator with a custom entropy source.
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: entropy}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateString creates a new ULID as a string
func (g *Generator) GenerateString() string {
	return g.Generate().String()
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.GenerateString())
}

// NewRenderID generates a new render ID
func NewRenderID() RenderID {
	return RenderID(Default().GenerateWithPrefix(RenderPrefix))
}

// NewTraceID generates a new trace ID
func NewTraceID() TraceID {
	return TraceID(Default().GenerateWithPrefix(TracePrefix))
}

// NewSpanID generates a new span ID
func NewSpanID() SpanID {
	return SpanID(Default().GenerateWithPrefix(SpanPrefix))
}

func (id RenderID) String() string { return string(id) }
func (id TraceID) String() string  { return string(id) }
func (id SpanID) String() string   { return string(id) }

// IsValid reports whether id is a ULID, with or without a type prefix.
func IsValid(id string) bool {
	_, err := ulid.Parse(StripPrefix(id))
	return err == nil
}

// StripPrefix removes a leading "prefix_" if present.
func StripPrefix(id string) string {
	if i := strings.IndexByte(id, '_'); i >= 0 {
		return id[i+1:]
	}
	return id
}

// Timestamp extracts the creation time from a (possibly prefixed) ULID.
func Timestamp(id string) (time.Time, error) {
	parsed, err := ulid.Parse(StripPrefix(id))
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
