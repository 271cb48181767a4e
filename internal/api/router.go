package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ShibagniBhattacharjee06/lifelinex/internal/api/handlers/http/account"
	"github.com/ShibagniBhattacharjee06/lifelinex/internal/api/handlers/http/analytics"
	"github.com/ShibagniBhattacharjee06/lifelinex/internal/api/handlers/http/sos"
	"github.com/ShibagniBhattacharjee06/lifelinex/internal/api/handlers/http/system"
	"github.com/ShibagniBhattacharjee06/lifelinex/internal/config"
	"github.com/ShibagniBhattacharjee06/lifelinex/internal/middleware"
	"github.com/ShibagniBhattacharjee06/lifelinex/internal/report"
	"github.com/ShibagniBhattacharjee06/lifelinex/internal/service"
	"github.com/ShibagniBhattacharjee06/lifelinex/internal/ws"
)

type Server struct {
	logger *slog.Logger
	router *chi.Mux
	cfg    config.Config
}

func NewServer(cfg *config.Config, logger *slog.Logger, svc *service.Service, hub *ws.Hub, reports *report.Generator) *Server {
	sosHandler := sos.NewHandler(logger, svc.Dispatch, reports)
	accountHandler := account.NewHandler(logger, svc.Auth)
	analyticsHandler := analytics.NewHandler(logger, svc.Analytics)
	systemHandler := system.NewHandler(logger)

	r := InitRouter(cfg, sosHandler, accountHandler, analyticsHandler, systemHandler, hub, logger)

	return &Server{
		logger: logger,
		router: r,
		cfg:    *cfg,
	}
}

func InitRouter(
	cfg *config.Config,
	sosHandler *sos.Handler,
	accountHandler *account.Handler,
	analyticsHandler *analytics.Handler,
	systemHandler *system.Handler,
	hub *ws.Hub,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewMux()

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Logger)

	auth := middleware.Auth(cfg.Auth.JWTSecret, logger)

	r.Route("/api/v1", func(api chi.Router) {
		api.Route("/auth", func(ar chi.Router) {
			ar.Use(middleware.Limit(5, 10, 10*time.Minute, logger))
			ar.Post("/register", accountHandler.Register)
			ar.Post("/login", accountHandler.Login)

			ar.Group(func(pr chi.Router) {
				pr.Use(auth)
				pr.Get("/me", accountHandler.Me)
				pr.Put("/profile", accountHandler.UpdateProfile)
			})
		})

		api.Route("/incidents", func(ir chi.Router) {
			ir.Use(auth)

			ir.Group(func(cr chi.Router) {
				// Tight limit on raising an SOS, panic double-taps aside.
				cr.Use(middleware.Limit(2, 5, 10*time.Minute, logger))
				cr.Post("/", sosHandler.SOSCreate)
			})

			ir.Get("/active", sosHandler.SOSActive)

			ir.Route("/{id}", func(rr chi.Router) {
				rr.Put("/respond", sosHandler.SOSRespond)
				rr.Put("/resolve", sosHandler.SOSResolve)
				rr.Put("/cancel", sosHandler.SOSCancel)
				rr.Get("/report", sosHandler.SOSReport)
			})
		})

		api.Route("/resources", func(rr chi.Router) {
			rr.Use(auth)
			rr.Use(middleware.Limit(10, 20, 5*time.Minute, logger))
			rr.Get("/responders", sosHandler.ResourceResponders)
		})

		api.Route("/analytics", func(anr chi.Router) {
			anr.Use(middleware.Limit(10, 20, 5*time.Minute, logger))
			anr.Get("/heatmap", analyticsHandler.Heatmap)

			anr.Group(func(pr chi.Router) {
				pr.Use(auth)
				pr.Get("/stats", analyticsHandler.Stats)
			})
		})

		api.Group(func(wr chi.Router) {
			wr.Use(auth)
			wr.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
				ws.ServeWS(hub, w, r, middleware.UserID(r.Context()).String())
			})
		})

		api.Get("/health", systemHandler.SystemHealth)
	})

	return r
}

func (s *Server) Run(ctx context.Context) error {
	port := s.cfg.Http.Port
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}

	srv := &http.Server{
		Addr:         port,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Http.ReadTimeout,
		WriteTimeout: s.cfg.Http.WriteTimeout,
		IdleTimeout:  30 * time.Second,
	}

	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("🚀 Starting HTTP server",
			slog.String("addr", srv.Addr),
			slog.Duration("read_timeout", s.cfg.Http.ReadTimeout),
			slog.Duration("write_timeout", s.cfg.Http.WriteTimeout),
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("ListenAndServe error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("🛑 Shutting down HTTP server", slog.String("reason", ctx.Err().Error()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Http.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Server shutdown failed", slog.Any("error", err))
			return err
		}
		return nil

	case err := <-errChan:
		return err
	}
}
