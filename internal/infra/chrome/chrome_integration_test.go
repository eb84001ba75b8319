package chrome

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"onepager/internal/domain"
	"onepager/internal/http/server"
)

const readyPage = `<!DOCTYPE html>
<html><head><style>body{margin:0;background:#0b3d91;color:#fff}</style></head>
<body><h1 id="title">...</h1>
<script>
var lang = new URLSearchParams(location.search).get('lang') || 'en';
var file = lang === 'en' ? 'labels.json' : 'labels_' + lang + '.json';
fetch(file).then(function (r) { return r.json(); }).then(function (labels) {
  document.getElementById('title').textContent = labels.title;
  console.log('labels loaded', lang);
  document.body.classList.add('content-loaded');
});
</script></body></html>`

const neverReadyPage = `<!DOCTYPE html><html><body><p>waiting forever</p></body></html>`

func requireChrome(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	p, ok := LookPath()
	if !ok {
		t.Skip("Chrome/Chromium not installed")
	}
	return p
}

func testSpec(u string) domain.CaptureSpec {
	return domain.CaptureSpec{
		URL:               u,
		RequestID:         "test",
		ReadySelector:     "body.content-loaded",
		ReadyTimeout:      2 * time.Second,
		NavigationTimeout: 15 * time.Second,
		NetworkIdle:       500 * time.Millisecond,
		PaperWidth:        8.27,
		PaperHeight:       11.69,
		PrintBackground:   true,
	}
}

func serveSite(t *testing.T) *server.Server {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"page.html":      readyPage,
		"never.html":     neverReadyPage,
		"labels.json":    `{"title":"Hello"}`,
		"labels_es.json": `{"title":"Hola"}`,
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(body), 0o644))
	}
	s, err := server.Start(context.Background(), server.Options{Root: root})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func TestRenderPDF_WaitsForReadinessMarker(t *testing.T) {
	bin := requireChrome(t)
	s := serveSite(t)
	e := New(Options{ChromePath: bin, NoSandbox: true})

	for _, lang := range []string{"en", "es"} {
		t.Run(lang, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()
			pdf, err := e.RenderPDF(ctx, testSpec(s.URL("localhost", "page.html", url.Values{"lang": {lang}})))
			require.NoError(t, err)
			if !bytes.HasPrefix(pdf, []byte("%PDF")) {
				t.Fatalf("expected PDF output, got %q", pdf[:min(len(pdf), 16)])
			}
		})
	}
}

func TestRenderPDF_MissingMarkerTimesOut(t *testing.T) {
	bin := requireChrome(t)
	s := serveSite(t)
	e := New(Options{ChromePath: bin, NoSandbox: true})

	spec := testSpec(s.URL("localhost", "never.html", nil))
	spec.ReadyTimeout = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	start := time.Now()
	_, err := e.RenderPDF(ctx, spec)
	if !errors.Is(err, domain.ErrReadyTimeout) {
		t.Fatalf("expected ErrReadyTimeout, got %v", err)
	}
	if ctx.Err() != nil {
		t.Fatalf("wait was not bounded by the readiness timeout (took %s)", time.Since(start))
	}
}
