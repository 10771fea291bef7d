// Package web serves the flybox status page and its JSON form.
package web

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/sweeney/flybox/internal/status"
)

// Server exposes a status.Tracker over HTTP:
//
//	/, /index.html  HTML status page
//	/index.json     status.FormatJSON
//	/healthz        200 while running, 503 while halted
type Server struct {
	srv     *http.Server
	tracker *status.Tracker
	log     zerolog.Logger
}

// New creates a Server for addr. It does not start listening.
func New(addr string, tracker *status.Tracker, log zerolog.Logger) *Server {
	s := &Server{tracker: tracker, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.index)
	mux.HandleFunc("/index.json", s.statusJSON)
	mux.HandleFunc("/healthz", s.health)

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// ListenAndServe blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

// Serve accepts connections on ln.
func (s *Server) Serve(ln net.Listener) error {
	return s.srv.Serve(ln)
}

// Shutdown stops accepting connections and waits for active requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) index(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/", "/index.html":
	default:
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, s.tracker.Snapshot()); err != nil {
		s.log.Warn().Err(err).Msg("render status page")
	}
}

func (s *Server) statusJSON(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(s.tracker.Snapshot()))
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if snap.Halted {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("halted: " + snap.HaltReason + "\n"))
		return
	}
	w.Write([]byte("ok\n"))
}
