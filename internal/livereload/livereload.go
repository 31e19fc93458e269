// Package livereload serves the intermediate build tree over HTTP and pushes
// reload notifications to connected browsers over socket.io.
//
// Every HTML page served gets a small client script injected before its
// closing body tag. The script reloads the page on a "reload" event and
// re-fetches linked stylesheets on a "css" event.
package livereload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/zishang520/socket.io/v2/socket"

	"github.com/vk/sitegridgo/internal/ctxlog"
)

const (
	// EventReload asks clients to reload the whole page.
	EventReload = "reload"
	// EventCSS asks clients to refresh stylesheets. The payload is the list
	// of changed files.
	EventCSS = "css"

	SocketPath = "/socket.io/"
	HealthPath = "/__health"

	// ClientScriptURL is the socket.io browser client loaded by injected pages.
	ClientScriptURL = "https://cdn.socket.io/4.8.1/socket.io.min.js"
)

const clientSnippet = `<script src="` + ClientScriptURL + `"></script>
<script>(function(){var s=io({path:"` + SocketPath + `"});` +
	`s.on("` + EventReload + `",function(){location.reload();});` +
	`s.on("` + EventCSS + `",function(){document.querySelectorAll('link[rel="stylesheet"]').forEach(function(l){` +
	`var u=new URL(l.href);u.searchParams.set("livereload",Date.now());l.href=u.toString();});});})();</script>
`

// Server is the development server.
type Server struct {
	root string
	io   *socket.Server
	mux  *http.ServeMux

	mu       sync.Mutex
	http     *http.Server
	listener net.Listener
	clients  int
}

// New creates a server for the files under root. It does not listen until
// Start is called.
func New(root string) *Server {
	s := &Server{
		root: root,
		io:   socket.NewServer(nil, nil),
		mux:  http.NewServeMux(),
	}
	s.io.On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)
		s.mu.Lock()
		s.clients++
		s.mu.Unlock()
		client.On("disconnect", func(...any) {
			s.mu.Lock()
			s.clients--
			s.mu.Unlock()
		})
	})

	s.mux.Handle(SocketPath, s.io.ServeHandler(nil))
	s.mux.HandleFunc(HealthPath, s.healthHandler)
	s.mux.HandleFunc("/", s.fileHandler)
	return s
}

// Handler returns the HTTP handler serving files, the socket.io endpoint and
// the health check.
func (s *Server) Handler() http.Handler { return s.mux }

// Start listens on addr and serves in the background.
func (s *Server) Start(ctx context.Context, addr string) error {
	logger := ctxlog.FromContext(ctx)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("dev server listen on %s: %w", addr, err)
	}
	srv := &http.Server{Handler: s.mux, ReadHeaderTimeout: 10 * time.Second}

	s.mu.Lock()
	s.listener = ln
	s.http = srv
	s.mu.Unlock()

	go func() {
		logger.Info("🌐 Dev server starting", "address", "http://"+ln.Addr().String(), "root", s.root)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Dev server failed unexpectedly", "error", err)
		}
	}()
	return nil
}

// Addr returns the listen address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Clients returns the number of connected browsers.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clients
}

// Reload tells every connected browser to reload the page.
func (s *Server) Reload(ctx context.Context) {
	ctxlog.FromContext(ctx).Info("🔁 Reloading browsers", "clients", s.Clients())
	s.io.Emit(EventReload)
}

// InjectCSS tells every connected browser to refresh its stylesheets.
func (s *Server) InjectCSS(ctx context.Context, changed []string) {
	ctxlog.FromContext(ctx).Info("🎨 Injecting stylesheets", "clients", s.Clients(), "files", len(changed))
	s.io.Emit(EventCSS, changed)
}

// Close disconnects every client and shuts the HTTP server down.
func (s *Server) Close(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	s.io.Close(nil)

	s.mu.Lock()
	srv := s.http
	s.mu.Unlock()
	if srv == nil {
		logger.Debug("Dev server was not running.")
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	logger.Info("🌐 Shutting down dev server...")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Dev server shutdown failed", "error", err)
		return err
	}
	return nil
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// fileHandler serves files from root. HTML pages, including directory
// indexes, get the client snippet injected.
func (s *Server) fileHandler(w http.ResponseWriter, r *http.Request) {
	name := path.Clean("/" + r.URL.Path)
	if strings.HasSuffix(r.URL.Path, "/") {
		name = path.Join(name, "index.html")
	}
	if path.Ext(name) != ".html" {
		http.FileServer(http.Dir(s.root)).ServeHTTP(w, r)
		return
	}

	f, err := http.Dir(s.root).Open(name)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}
	body, err := io.ReadAll(f)
	if err != nil {
		http.Error(w, "read failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, name, info.ModTime(), bytes.NewReader(Inject(body)))
}

// Inject inserts the client snippet before the last closing body tag, or
// appends it when the page has none.
func Inject(page []byte) []byte {
	i := bytes.LastIndex(bytes.ToLower(page), []byte("</body>"))
	if i < 0 {
		return append(append([]byte(nil), page...), clientSnippet...)
	}
	out := make([]byte, 0, len(page)+len(clientSnippet))
	out = append(out, page[:i]...)
	out = append(out, clientSnippet...)
	return append(out, page[i:]...)
}
