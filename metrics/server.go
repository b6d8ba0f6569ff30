package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// shutdownGrace bounds in-flight scrapes when the run context ends first.
const shutdownGrace = 5 * time.Second

// Server exposes /metrics and /healthz for the lifetime of a run.
type Server struct {
	listener net.Listener
	server   *http.Server

	once        sync.Once
	shutdownErr error

	done     chan struct{}
	serveErr error
}

// Serve binds addr (e.g. ":9090", or ":0" for any free port) and serves the
// gatherer until ctx ends or Close is called. A nil gatherer serves the
// default registry. Bind failures are returned immediately.
//
// /healthz answers 200 while ctx is live and 503 once the run is stopping.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer) (*Server, error) {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics server: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if ctx.Err() != nil {
			http.Error(w, "stopping", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})

	s := &Server{
		listener: ln,
		server:   &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		done:     make(chan struct{}),
	}

	go func() {
		defer close(s.done)
		if err := s.server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			s.serveErr = err
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			s.shutdown(shutdownCtx)
		case <-s.done:
		}
	}()

	return s, nil
}

// Addr returns the bound address with the port resolved.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Close stops the server, waiting for in-flight scrapes until ctx ends, and
// reports the first serve or shutdown error. It is safe to call more than once.
func (s *Server) Close(ctx context.Context) error {
	s.shutdown(ctx)
	<-s.done
	if s.serveErr != nil {
		return s.serveErr
	}
	return s.shutdownErr
}

func (s *Server) shutdown(ctx context.Context) {
	s.once.Do(func() {
		s.shutdownErr = s.server.Shutdown(ctx)
	})
}
