package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/charlie-sans/netprop/internal/document"
	"github.com/charlie-sans/netprop/internal/infrastructure/monitoring"
	"github.com/charlie-sans/netprop/internal/render"
	"github.com/charlie-sans/netprop/internal/render/sandbox"
	"github.com/charlie-sans/netprop/internal/shared/id"
)

type stubRenderer struct {
	status render.Status
}

func (s stubRenderer) Render(ctx context.Context, name string) *render.Result {
	return &render.Result{RenderID: id.NewRenderID(), Document: name, Status: s.status}
}

func newRouter(h *Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/healthz", h.Health)
	router.NoRoute(h.Page)
	return router
}

func newDocumentRouter(t *testing.T, docs map[string]string) (*gin.Engine, *monitoring.Metrics) {
	t.Helper()

	dir := t.TempDir()
	for name, content := range docs {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	loader, err := document.NewLoader(document.Config{Root: dir, Cache: true}, nil)
	require.NoError(t, err)

	metrics := monitoring.NewMetrics()
	pipeline := render.NewPipeline(loader, sandbox.New(sandbox.DefaultConfig()), render.Config{}, nil).
		WithMetrics(metrics)

	h := NewHandlers(pipeline, "index.masm", nil).WithMetrics(metrics).WithCache(loader)
	return newRouter(h), metrics
}

func do(router http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestPageRendersScripts(t *testing.T) {
	router, _ := newDocumentRouter(t, map[string]string{
		"index.masm": `<h1>Hi</h1><script>JavaFunctions.appendToPage(JavaFunctions.greet("World"))</script>`,
	})

	w := do(router, http.MethodGet, "/index.masm")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, render.ContentTypeHTML, w.Header().Get("Content-Type"))
	assert.Equal(t, "<h1>Hi</h1>Hello, World", w.Body.String())
	assert.NotEmpty(t, w.Header().Get(HeaderRenderID))
}

func TestRootServesDefaultDocument(t *testing.T) {
	router, _ := newDocumentRouter(t, map[string]string{
		"index.masm": `<p>home</p><script>JavaFunctions.appendToPage("!")</script>`,
	})

	root := do(router, http.MethodGet, "/")
	explicit := do(router, http.MethodGet, "/index.masm")

	assert.Equal(t, http.StatusOK, root.Code)
	assert.Equal(t, explicit.Body.String(), root.Body.String())
	assert.Equal(t, "<p>home</p>!", root.Body.String())
}

func TestPageUsesBasename(t *testing.T) {
	router, _ := newDocumentRouter(t, map[string]string{"about.masm": "<p>about</p>"})

	w := do(router, http.MethodGet, "/some/nested/about.masm")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<p>about</p>", w.Body.String())
}

func TestPageNotFound(t *testing.T) {
	router, _ := newDocumentRouter(t, map[string]string{"index.masm": "x"})

	for _, path := range []string{"/missing.masm", "/docs/", "/.."} {
		w := do(router, http.MethodGet, path)
		assert.Equal(t, http.StatusNotFound, w.Code, path)
		assert.Empty(t, w.Body.String(), path)
	}
}

func TestPageMethodNotAllowed(t *testing.T) {
	router, _ := newDocumentRouter(t, map[string]string{"index.masm": "x"})

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodHead} {
		w := do(router, method, "/index.masm")
		assert.Equal(t, http.StatusMethodNotAllowed, w.Code, method)
		assert.Empty(t, w.Body.String(), method)
	}

	w := do(router, http.MethodPost, "/")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestPageKeepsUnterminatedScript(t *testing.T) {
	text := `<p>a</p><script>JavaFunctions.appendToPage("x")</script><p>b</p><script>never closed`
	router, metrics := newDocumentRouter(t, map[string]string{"index.masm": text})

	w := do(router, http.MethodGet, "/index.masm")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "<p>a</p><p>b</p><script>never closedx", w.Body.String())
	assert.Equal(t, int64(1), metrics.Snapshot().TotalRenders)
}

func TestPageFailingBlockStillRenders(t *testing.T) {
	router, _ := newDocumentRouter(t, map[string]string{
		"index.masm": `<script>throw new Error("boom")</script><script>JavaFunctions.appendToPage("ok")</script>`,
	})

	w := do(router, http.MethodGet, "/index.masm")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

func TestPageStatusMapping(t *testing.T) {
	tests := []struct {
		status render.Status
		want   int
	}{
		{render.StatusNotFound, http.StatusNotFound},
		{render.StatusInternal, http.StatusInternalServerError},
		{render.StatusTimeout, http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			router := newRouter(NewHandlers(stubRenderer{status: tt.status}, "index.masm", nil))
			w := do(router, http.MethodGet, "/index.masm")
			assert.Equal(t, tt.want, w.Code)
			assert.Empty(t, w.Body.String())
			assert.NotEmpty(t, w.Header().Get(HeaderRenderID))
		})
	}
}

type fixedPeers int

func (f fixedPeers) Count() int { return int(f) }

func TestHealth(t *testing.T) {
	router, _ := newDocumentRouter(t, map[string]string{"index.masm": "<p>x</p>"})
	require.Equal(t, http.StatusOK, do(router, http.MethodGet, "/").Code)

	w := do(router, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "application/json"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(1), body["cached_documents"])

	renders, ok := body["renders"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), renders["total"])

	router = newRouter(NewHandlers(stubRenderer{}, "index.masm", nil).WithPeers(fixedPeers(3)))
	w = do(router, http.MethodGet, "/healthz")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(3), body["broadcast_peers"])
}
