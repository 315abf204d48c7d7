package v1

import (
	"context"
	"net"
	"net/http"

	"github.com/eastgenomics/sc-wgs-monitoring/internal/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Server struct {
	httpServer *http.Server
}

func NewServer(cfg config.HTTP, samplesRepo SamplesRepository) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	h := NewSamplesHandler(samplesRepo)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/samples", h.GetSamples)
		r.Get("/samples/{referral_id}", h.GetSampleByReferralID)
	})

	return &Server{
		httpServer: &http.Server{
			Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
			Handler:      r,
		},
	}
}

func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
