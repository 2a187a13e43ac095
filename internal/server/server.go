// Package server is the development HTTP server: it answers every request
// from the current site snapshot and pushes live-reload notifications over
// a WebSocket channel when the build task publishes a new one.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/norgolith/lith/internal/lerrors"
	"github.com/norgolith/lith/internal/logfields"
	"github.com/norgolith/lith/internal/metrics"
	"github.com/norgolith/lith/internal/site"
)

// ShutdownTimeout bounds draining in-flight requests on shutdown.
const ShutdownTimeout = 5 * time.Second

// livereloadScript is injected before </body> of every rendered page in
// dev mode so browsers reconnect-and-reload on snapshot swaps.
const livereloadScript = `<script>(() => {
  if (window.__LITH_LR__) return;
  window.__LITH_LR__ = true;
  function connect() {
    const ws = new WebSocket((location.protocol === "https:" ? "wss://" : "ws://") + location.host + "/__livereload");
    ws.onmessage = (e) => {
      try {
        const msg = JSON.parse(e.data);
        if (msg.type === "reload") location.reload();
        if (msg.type === "error") console.error("[lith] build error:", msg.message);
      } catch (_) {}
    };
    ws.onclose = () => setTimeout(connect, 2000);
  }
  connect();
})();</script>`

// SnapshotFunc returns the snapshot a request should be served from. Each
// request reads the pointer exactly once.
type SnapshotFunc func() *site.Snapshot

// Server answers requests from snapshots. It performs no mutation.
type Server struct {
	snapshot SnapshotFunc
	hub      *Hub
	metrics  *metrics.Recorder
	httpSrv  *http.Server
}

func New(snapshot SnapshotFunc, hub *Hub, rec *metrics.Recorder) *Server {
	return &Server{snapshot: snapshot, hub: hub, metrics: rec}
}

// Hub exposes the live-reload hub for the pipeline's broadcasts.
func (s *Server) Hub() *Hub { return s.hub }

// Handler builds the request router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/__livereload", s.hub)
	mux.Handle("/metrics", s.metrics.Handler())
	mux.HandleFunc("/rss.xml", s.handleRSS)
	mux.HandleFunc("/", s.handlePage)
	return s.logRequests(mux)
}

// Start serves on ln until Shutdown.
func (s *Server) Start(ln net.Listener) error {
	s.httpSrv = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	err := s.httpSrv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests within the deadline and closes every
// live-reload connection with code 1001.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Shutdown()
	if s.httpSrv == nil {
		return nil
	}
	dctx, cancel := context.WithTimeout(ctx, ShutdownTimeout)
	defer cancel()
	return s.httpSrv.Shutdown(dctx)
}

// statusRecorder captures the response code for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/__livereload" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.metrics.IncRequest(strconv.Itoa(rec.status))
		slog.Info(fmt.Sprintf("%s %s => %d", r.Method, r.URL.Path, rec.status),
			logfields.DurationMS(float64(time.Since(start).Microseconds())/1000))
	})
}

// handlePage serves documents and assets. Routes resolve with or without a
// trailing slash; index documents answer for their directory.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot()
	if snap == nil {
		http.Error(w, "site is still building", http.StatusServiceUnavailable)
		return
	}

	reqPath := r.URL.Path

	// Exact asset match first: assets are served bit-for-bit.
	if asset, ok := snap.Assets[reqPath]; ok {
		w.Header().Set("Content-Type", asset.MIME)
		w.Header().Set("Cache-Control", "no-cache")
		_, _ = w.Write(asset.Body)
		return
	}

	now := time.Now()
	route := normalizeRequestRoute(reqPath)
	html, err := snap.Render(route, now)
	switch {
	case err == nil:
		s.writeHTML(w, http.StatusOK, html)
	case errors.Is(err, site.ErrRouteNotFound):
		s.writeNotFound(w, snap, now)
	default:
		slog.Error("Render failed", logfields.Route(route), logfields.Error(err))
		s.writeHTML(w, http.StatusInternalServerError, errorPage(err))
	}
}

func (s *Server) handleRSS(w http.ResponseWriter, r *http.Request) {
	snap := s.snapshot()
	if snap == nil {
		http.Error(w, "site is still building", http.StatusServiceUnavailable)
		return
	}
	feed, err := snap.RenderRSS()
	if err != nil {
		slog.Error("RSS render failed", logfields.Error(err))
		http.Error(w, "failed to render feed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	_, _ = w.Write([]byte(feed))
}

func (s *Server) writeHTML(w http.ResponseWriter, status int, html string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(injectLiveReload(html)))
}

func (s *Server) writeNotFound(w http.ResponseWriter, snap *site.Snapshot, now time.Time) {
	if body, ok := snap.RenderNotFound(now); ok {
		s.writeHTML(w, http.StatusNotFound, body)
		return
	}
	s.writeHTML(w, http.StatusNotFound, "<!doctype html><title>404</title><h1>404 - not found</h1>")
}

// normalizeRequestRoute turns a request path into a canonical document
// route: trailing slash, index collapsed.
func normalizeRequestRoute(reqPath string) string {
	route := "/" + strings.Trim(reqPath, "/")
	if route == "/" {
		return route
	}
	route = strings.TrimSuffix(route, "/index")
	if route == "" || route == "/" {
		return "/"
	}
	return route + "/"
}

// injectLiveReload inserts the client script before </body>, or appends it
// when the page has no body close tag.
func injectLiveReload(html string) string {
	if idx := strings.LastIndex(html, "</body>"); idx >= 0 {
		return html[:idx] + livereloadScript + html[idx:]
	}
	return html + livereloadScript
}

func errorPage(err error) string {
	msg := err.Error()
	var le *lerrors.LithError
	if errors.As(err, &le) {
		msg = le.Error()
	}
	return fmt.Sprintf(
		"<!doctype html><title>500</title><h1>500 Internal Server Error</h1><pre>%s</pre>",
		htmlEscape(msg))
}

var htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

func htmlEscape(s string) string { return htmlEscaper.Replace(s) }
