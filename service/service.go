package service

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/log"
)

const shutdownTimeout = 5 * time.Second

// Config selects which servers run. An empty address disables that server.
type Config struct {
	HealthzAddr string
	MetricsAddr string
}

type Service struct {
	servers []*server
}

func New(cfg Config) *Service {
	s := &Service{}
	if cfg.HealthzAddr != "" {
		s.servers = append(s.servers, newHealthzServer(cfg.HealthzAddr))
	}
	if cfg.MetricsAddr != "" {
		s.servers = append(s.servers, newMetricsServer(cfg.MetricsAddr))
	}
	return s
}

func (s *Service) Start() {
	log.Info("service starting", "servers", len(s.servers))
	for _, srv := range s.servers {
		go srv.serve()
	}
}

func (s *Service) Shutdown() {
	log.Info("service shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	for _, srv := range s.servers {
		if err := srv.shutdown(ctx); err != nil {
			log.Warn("failed to shut down server", "server", srv.name, "err", err)
		}
	}

	log.Info("service stopped")
}
