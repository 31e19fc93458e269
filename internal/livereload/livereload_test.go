package livereload

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"

	"github.com/vk/sitegridgo/internal/ctxlog"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server, string) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "css"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte("<html><body><h1>hi</h1></body></html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "about.html"), []byte("<p>no body tag</p>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "css", "app.css"), []byte(".a{}"), 0o644))

	s := New(root)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		_ = s.Close(ctxlog.Discard(context.Background()))
		ts.Close()
	})
	return s, ts, root
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestFiles(t *testing.T) {
	_, ts, _ := newTestServer(t)

	code, body := get(t, ts.URL+"/")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, ClientScriptURL)
	assert.Less(t, strings.Index(body, ClientScriptURL), strings.Index(body, "</body>"))

	code, body = get(t, ts.URL+"/about.html")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, strings.HasPrefix(body, "<p>no body tag</p>"))
	assert.Contains(t, body, ClientScriptURL)

	code, body = get(t, ts.URL+"/css/app.css")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, ".a{}", body)

	code, _ = get(t, ts.URL+"/missing.html")
	assert.Equal(t, http.StatusNotFound, code)

	code, body = get(t, ts.URL+HealthPath)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OK\n", body)
}

func TestInject(t *testing.T) {
	out := Inject([]byte("<BODY>x</BODY>"))
	assert.True(t, strings.HasSuffix(string(out), "</BODY>"))
	assert.Contains(t, string(out), clientSnippet)
}

func connect(t *testing.T, url string) *socket.Socket {
	t.Helper()
	opts := socket.DefaultOptions()
	opts.SetPath(SocketPath)
	opts.SetTransports(types.NewSet(transports.WebSocket))

	manager := socket.NewManager(url, opts)
	client := manager.Socket("/", opts)
	connected := make(chan struct{}, 1)
	client.On(types.EventName("connect"), func(...any) {
		select {
		case connected <- struct{}{}:
		default:
		}
	})
	client.Connect()
	t.Cleanup(func() { client.Disconnect() })

	select {
	case <-connected:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out while waiting for socket.io connection")
	}
	return client
}

func TestNotifications(t *testing.T) {
	s, ts, _ := newTestServer(t)
	client := connect(t, ts.URL)
	ctx := ctxlog.Discard(context.Background())

	reloads := make(chan struct{}, 1)
	client.On(types.EventName(EventReload), func(...any) { reloads <- struct{}{} })
	css := make(chan []any, 1)
	client.On(types.EventName(EventCSS), func(args ...any) { css <- args })

	require.Eventually(t, func() bool { return s.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	s.Reload(ctx)
	select {
	case <-reloads:
	case <-time.After(2 * time.Second):
		t.Fatal("no reload event received")
	}

	s.InjectCSS(ctx, []string{"src/scss/app.scss"})
	select {
	case args := <-css:
		require.Len(t, args, 1)
		assert.Equal(t, []any{"src/scss/app.scss"}, args[0])
	case <-time.After(2 * time.Second):
		t.Fatal("no css event received")
	}
}

func TestStartAndClose(t *testing.T) {
	root := t.TempDir()
	s := New(root)
	ctx := ctxlog.Discard(context.Background())
	assert.Equal(t, "", s.Addr())

	require.NoError(t, s.Start(ctx, "127.0.0.1:0"))
	addr := s.Addr()
	require.NotEmpty(t, addr)

	code, body := get(t, "http://"+addr+HealthPath)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "OK\n", body)

	require.NoError(t, s.Close(ctx))
	_, err := http.Get("http://" + addr + HealthPath)
	assert.Error(t, err)
}
