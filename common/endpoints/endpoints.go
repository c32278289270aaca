// Package endpoints serves the scheduler's operator-facing HTTP surface:
// health, metrics, and the per-queue status report described in the
// external interfaces section of the spec ("Displayed status").
package endpoints

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/capshare/scheduler/common"
	"github.com/capshare/scheduler/common/stats"
)

// StatusProvider renders the human-readable per-queue report. The
// dispatcher implements this; endpoints only knows how to serve it.
type StatusProvider interface {
	StatusReport() string
}

func NewServer(addr string, stat stats.StatsReceiver, status StatusProvider) *Server {
	s := &Server{
		Addr:   addr,
		Stats:  stat,
		Status: status,
		router: mux.NewRouter(),
	}
	s.router.HandleFunc("/", helpHandler)
	s.router.HandleFunc("/health", healthHandler)
	s.router.HandleFunc("/metrics", s.statsHandler)
	s.router.HandleFunc("/status", s.statusHandler)
	return s
}

type Server struct {
	Addr   string
	Stats  stats.StatsReceiver
	Status StatusProvider
	router *mux.Router
}

// Handler returns the routed http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Serve() error {
	srv := &http.Server{
		Addr:         s.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  common.DefaultClientTimeout,
		WriteTimeout: common.DefaultClientTimeout,
	}
	return srv.ListenAndServe()
}

func helpHandler(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "Common paths: '/health', '/metrics', '/status'", 501)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprint(w, "ok")
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	pretty := r.URL.Query().Get("pretty") == "true"
	if _, err := w.Write(s.Stats.Render(pretty)); err != nil {
		http.Error(w, err.Error(), 500)
	}
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if s.Status == nil {
		http.Error(w, "status not available", 503)
		return
	}
	fmt.Fprint(w, s.Status.StatusReport())
}

type StatScope string

// MakeStatsReceiver builds a latched, Finagle-style stats receiver scoped to
// the given namespace, the way the teacher's endpoints package does.
func MakeStatsReceiver(scope StatScope) stats.StatsReceiver {
	s, _ := stats.NewCustomStatsReceiver(
		stats.NewFinagleStatsRegistry,
		15*time.Second)
	return s.Scope(string(scope))
}
