package serve

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/novos/internal/metrics"
)

// Server is the development HTTP server: static artifacts plus the live
// reload stream, a status endpoint, and Prometheus metrics.
type Server struct {
	addr       string
	outputDir  string
	hub        *LiveReloadHub
	reconciler *Reconciler
	recorder   *metrics.PrometheusRecorder
	logger     *slog.Logger

	httpServer *http.Server
}

func NewServer(port int, outputDir string, hub *LiveReloadHub, rec *Reconciler, recorder *metrics.PrometheusRecorder, logger *slog.Logger) *Server {
	return &Server{
		addr:       fmt.Sprintf("127.0.0.1:%d", port),
		outputDir:  outputDir,
		hub:        hub,
		reconciler: rec,
		recorder:   recorder,
		logger:     logger,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/novos/live", s.hub)
	mux.HandleFunc("/novos/status", s.handleStatus)
	if s.recorder != nil {
		mux.Handle("/metrics", s.recorder.Handler())
	}
	mux.Handle("/", s.fileHandler())

	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.logger.Info("serving site", "addr", "http://"+s.addr, "dir", s.outputDir)

	errCh := make(chan error, 1)
	go func() {
		if serr := s.httpServer.Serve(ln); serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			errCh <- serr
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case serr := <-errCh:
		if serr != nil {
			return serr
		}
	}

	s.hub.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}

// fileHandler serves artifacts with caching disabled so every reload picks
// up the freshest build.
func (s *Server) fileHandler() http.Handler {
	fs := http.FileServer(http.Dir(s.outputDir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		// Extensionless paths resolve as pretty URLs: /about tries
		// about.html before falling through to the file server.
		if p := strings.TrimPrefix(r.URL.Path, "/"); p != "" && filepath.Ext(p) == "" && !strings.HasSuffix(p, "/") {
			r2 := r.Clone(r.Context())
			r2.URL.Path = r.URL.Path + ".html"
			fs.ServeHTTP(w, r2)
			return
		}
		fs.ServeHTTP(w, r)
	})
}

type statusPayload struct {
	State       State  `json:"state"`
	Clients     int    `json:"live_reload_clients"`
	LastBuildID string `json:"last_build_id,omitempty"`
	LastOutcome string `json:"last_outcome,omitempty"`
	Rendered    int    `json:"rendered,omitempty"`
	Failed      int    `json:"failed,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	payload := statusPayload{
		State:   s.reconciler.State(),
		Clients: s.hub.ClientCount(),
	}
	if report := s.reconciler.LastReport(); report != nil {
		payload.LastBuildID = report.BuildID
		payload.LastOutcome = string(report.Outcome())
		rendered, _, failed, _ := report.Counts()
		payload.Rendered = rendered
		payload.Failed = failed
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Debug("status encode", "error", err)
	}
}
