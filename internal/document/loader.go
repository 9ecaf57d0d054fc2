package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"github.com/gabriel-vasile/mimetype"
	"github.com/saintfish/chardet"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"

	"github.com/charlie-sans/netprop/internal/infrastructure/logging"
	"github.com/charlie-sans/netprop/internal/infrastructure/monitoring"
)

// Config defines loader configuration.
type Config struct {
	Root     string
	Patterns []string
	Cache    bool
}

// Loader reads documents from a root directory.
type Loader struct {
	root     string
	patterns []string
	cache    bool
	logger   *logging.Logger
	metrics  *monitoring.Metrics

	mu      sync.RWMutex
	entries map[string]*Document
}

// NewLoader creates a loader. An empty pattern list allows every name.
func NewLoader(cfg Config, logger *logging.Logger) (*Loader, error) {
	if logger == nil {
		logger = logging.NewNop()
	}

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve document directory: %w", err)
	}

	patterns := cfg.Patterns
	if len(patterns) == 0 {
		patterns = []string{"*"}
	}
	for _, p := range patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidGlob, p)
		}
	}

	return &Loader{
		root:     root,
		patterns: patterns,
		cache:    cfg.Cache,
		logger:   logger.Named("loader"),
		entries:  make(map[string]*Document),
	}, nil
}

// WithMetrics attaches a metrics collector for cache lookups.
func (l *Loader) WithMetrics(m *monitoring.Metrics) *Loader {
	l.metrics = m
	return l
}

// Root returns the absolute document directory.
func (l *Loader) Root() string {
	return l.root
}

// Load returns the named document. Names that are not plain file names, do
// not match an allowed pattern, or do not exist yield ErrNotFound.
func (l *Loader) Load(ctx context.Context, name string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !validName(name) || !l.allowed(name) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	path := filepath.Join(l.root, name)
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to stat document %s: %w", name, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	if doc, ok := l.lookup(name, info); ok {
		return doc, nil
	}

	return l.read(name, path, info)
}

// Preload walks the root directory and caches every allowed document.
// Subdirectories are not visited since request paths resolve to base names.
func (l *Loader) Preload(ctx context.Context) (int, error) {
	if !l.cache {
		return 0, nil
	}
	if _, err := os.Stat(l.root); err != nil {
		return 0, fmt.Errorf("%w: %s", ErrRootNotFound, l.root)
	}

	var loaded atomic.Int64
	conf := fastwalk.Config{Follow: false}

	err := fastwalk.Walk(&conf, l.root, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return nil
		}

		rel, _ := filepath.Rel(l.root, path)
		if d.IsDir() {
			if rel == "." {
				return nil
			}
			return filepath.SkipDir
		}

		name := d.Name()
		if !d.Type().IsRegular() || !l.allowed(name) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		if _, err := l.read(name, path, info); err != nil {
			l.logger.Warn("Skipping document during preload", logging.Document(name), zap.Error(err))
			return nil
		}
		loaded.Add(1)
		return nil
	})
	if err != nil {
		return int(loaded.Load()), fmt.Errorf("preload failed: %w", err)
	}

	l.logger.Info("Documents preloaded", zap.Int64("count", loaded.Load()), zap.String("root", l.root))
	return int(loaded.Load()), nil
}

// Cached reports how many documents are currently cached.
func (l *Loader) Cached() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

func (l *Loader) allowed(name string) bool {
	for _, p := range l.patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}

func (l *Loader) lookup(name string, info fs.FileInfo) (*Document, bool) {
	if !l.cache {
		return nil, false
	}

	l.mu.RLock()
	doc, ok := l.entries[name]
	l.mu.RUnlock()

	hit := ok && doc.Size == info.Size() && doc.ModTime.Equal(info.ModTime())
	if l.metrics != nil {
		l.metrics.RecordCacheLookup(hit)
	}
	return doc, hit
}

func (l *Loader) read(name, path string, info fs.FileInfo) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("failed to read document %s: %w", name, err)
	}

	content, cs, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", name, err)
	}

	doc := &Document{
		Name:    name,
		Path:    path,
		Content: content,
		Charset: cs,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}

	if l.cache {
		l.mu.Lock()
		l.entries[name] = doc
		l.mu.Unlock()
	}

	l.logger.Debug("Document loaded",
		logging.Document(name),
		zap.Int64("size", doc.Size),
		zap.String("charset", cs),
	)
	return doc, nil
}

// decode returns data as UTF-8 text along with the charset it was read as.
// Valid UTF-8 is taken as is; content sniffing only separates binary files
// from legacy-charset text.
func decode(data []byte) (string, string, error) {
	if utf8.Valid(data) {
		if bytes.IndexByte(data, 0) >= 0 {
			return "", "", ErrNotText
		}
		return string(data), "utf-8", nil
	}
	if !isText(mimetype.Detect(data)) {
		return "", "", ErrNotText
	}

	detected, err := chardet.NewTextDetector().DetectBest(data)
	if err != nil || detected == nil {
		return "", "", ErrUndecodable
	}

	enc, name := charset.Lookup(detected.Charset)
	if enc == nil {
		return "", "", fmt.Errorf("%w: %s", ErrUndecodable, detected.Charset)
	}

	out, _, err := transform.Bytes(enc.NewDecoder(), data)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	return string(out), strings.ToLower(name), nil
}

func isText(m *mimetype.MIME) bool {
	for ; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "text/") {
			return true
		}
	}
	return false
}
