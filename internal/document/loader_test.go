package document

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charlie-sans/netprop/internal/infrastructure/monitoring"
)

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func newTestLoader(t *testing.T, cfg Config) *Loader {
	t.Helper()
	loader, err := NewLoader(cfg, nil)
	require.NoError(t, err)
	return loader
}

func TestLoadReturnsContentVerbatim(t *testing.T) {
	dir := t.TempDir()
	content := "<html>\n<body>héllo</body>\n</html>\n"
	writeFile(t, dir, "index.masm", []byte(content))

	loader := newTestLoader(t, Config{Root: dir})
	doc, err := loader.Load(context.Background(), "index.masm")
	require.NoError(t, err)

	assert.Equal(t, content, doc.Content)
	assert.Equal(t, "utf-8", doc.Charset)
	assert.Equal(t, "index.masm", doc.Name)
}

func TestLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	loader := newTestLoader(t, Config{Root: dir})

	for _, name := range []string{"missing.masm", "sub", "", "..", "a/b.masm"} {
		_, err := loader.Load(context.Background(), name)
		assert.ErrorIs(t, err, ErrNotFound, "name %q", name)
	}
}

func TestLoadRespectsPatterns(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "page.masm", []byte("ok"))
	writeFile(t, dir, "secret.env", []byte("TOKEN=1"))

	loader := newTestLoader(t, Config{Root: dir, Patterns: []string{"*.masm"}})

	_, err := loader.Load(context.Background(), "page.masm")
	require.NoError(t, err)

	_, err = loader.Load(context.Background(), "secret.env")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewLoaderRejectsBadPattern(t *testing.T) {
	_, err := NewLoader(Config{Root: t.TempDir(), Patterns: []string{"[unclosed"}}, nil)
	assert.ErrorIs(t, err, ErrInvalidGlob)
}

func TestLoadRejectsBinary(t *testing.T) {
	dir := t.TempDir()
	png := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0x00, 0x00, 0x00, 0x0d, 'I', 'H', 'D', 'R'}
	writeFile(t, dir, "image.masm", png)

	loader := newTestLoader(t, Config{Root: dir})
	_, err := loader.Load(context.Background(), "image.masm")
	assert.ErrorIs(t, err, ErrNotText)
}

func TestLoadAcceptsTextWithBinaryLookingPrefix(t *testing.T) {
	dir := t.TempDir()
	contents := map[string]string{
		"exe.masm": "MZ register notes <script>JavaFunctions.appendToPage('x')</script>",
		"gif.masm": "GIF89a is a format from 1989.",
		"id3.masm": "ID3 tag docs for the audio page",
		"pdf.masm": "%PDF-1.4 notes on the export format",
	}
	for name, content := range contents {
		writeFile(t, dir, name, []byte(content))
	}

	loader := newTestLoader(t, Config{Root: dir})
	for name, content := range contents {
		doc, err := loader.Load(context.Background(), name)
		require.NoError(t, err, name)
		assert.Equal(t, content, doc.Content, name)
		assert.Equal(t, "utf-8", doc.Charset, name)
	}
}

func TestLoadRejectsEmbeddedNUL(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "nul.masm", []byte("text\x00more"))

	loader := newTestLoader(t, Config{Root: dir})
	_, err := loader.Load(context.Background(), "nul.masm")
	assert.ErrorIs(t, err, ErrNotText)
}

func TestLoadTranscodesLegacyCharset(t *testing.T) {
	dir := t.TempDir()
	sentence := "Le caf\xe9 est tr\xe8s appr\xe9ci\xe9 par les \xe9l\xe8ves de l'\xe9cole pr\xe8s de la gare. "
	latin1 := []byte("<html><body><p>" + strings.Repeat(sentence, 20) + "</p></body></html>")
	require.False(t, utf8.Valid(latin1))
	writeFile(t, dir, "legacy.masm", latin1)

	loader := newTestLoader(t, Config{Root: dir})
	doc, err := loader.Load(context.Background(), "legacy.masm")
	require.NoError(t, err)

	assert.True(t, utf8.ValidString(doc.Content))
	assert.NotEqual(t, "utf-8", doc.Charset)
	assert.True(t, strings.HasPrefix(doc.Content, "<html><body><p>Le caf"))
}

func TestCacheInvalidatesOnChange(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "page.masm", []byte("first"))

	metrics := monitoring.NewMetrics()
	loader := newTestLoader(t, Config{Root: dir, Cache: true}).WithMetrics(metrics)

	doc, err := loader.Load(context.Background(), "page.masm")
	require.NoError(t, err)
	assert.Equal(t, "first", doc.Content)

	doc, err = loader.Load(context.Background(), "page.masm")
	require.NoError(t, err)
	assert.Equal(t, "first", doc.Content)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.DocumentCache.WithLabelValues("hit")))

	require.NoError(t, os.WriteFile(path, []byte("second version"), 0o644))
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))

	doc, err = loader.Load(context.Background(), "page.masm")
	require.NoError(t, err)
	assert.Equal(t, "second version", doc.Content)
}

func TestCacheDisabled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "page.masm", []byte("x"))

	loader := newTestLoader(t, Config{Root: dir, Cache: false})
	_, err := loader.Load(context.Background(), "page.masm")
	require.NoError(t, err)
	assert.Equal(t, 0, loader.Cached())

	n, err := loader.Preload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestPreload(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.masm", []byte("a"))
	writeFile(t, dir, "b.masm", []byte("b"))
	writeFile(t, dir, "notes.txt", []byte("skip"))
	sub := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(sub, 0o755))
	writeFile(t, sub, "c.masm", []byte("c"))

	loader := newTestLoader(t, Config{Root: dir, Patterns: []string{"*.masm"}, Cache: true})
	n, err := loader.Preload(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, n)
	assert.Equal(t, 2, loader.Cached())
}

func TestPreloadMissingRoot(t *testing.T) {
	loader := newTestLoader(t, Config{Root: filepath.Join(t.TempDir(), "nope"), Cache: true})
	_, err := loader.Preload(context.Background())
	assert.ErrorIs(t, err, ErrRootNotFound)
}

func TestLoadHonoursCancelledContext(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "page.masm", []byte("x"))
	loader := newTestLoader(t, Config{Root: dir})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := loader.Load(ctx, "page.masm")
	assert.ErrorIs(t, err, context.Canceled)
}
