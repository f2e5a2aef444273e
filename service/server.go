package service

import (
	"context"
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/ethereum-optimism/infra/pkg-acceptor/metrics"
)

// server is one HTTP endpoint. http is set at construction and never reassigned.
type server struct {
	name string
	http *http.Server
}

func newHealthzServer(addr string) *server {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handleHealthz)
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
	})
	return &server{
		name: "healthz",
		http: &http.Server{Addr: addr, Handler: c.Handler(mux)},
	}
}

func newMetricsServer(addr string) *server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &server{
		name: "metrics",
		http: &http.Server{Addr: addr, Handler: mux},
	}
}

func (s *server) serve() {
	log.Info("starting server", "server", s.name, "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server stopped unexpectedly", "server", s.name, "err", err)
		metrics.RecordErrorDetails("error starting "+s.name+" server", err)
	}
}

func (s *server) shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	log.Debug("Received health check request", "path", r.URL.Path)
	w.Write([]byte("OK")) //nolint:errcheck
}
