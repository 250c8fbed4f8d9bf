package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"nutrifit-payments/internal/infra/logging"
	"nutrifit-payments/internal/usecase"
)

// Server exposes the HTTP surface: public checkout and payment status, the
// webhook receivers, and the JWT-guarded admin API.
type Server struct {
	checkoutUC  usecase.CheckoutUseCase
	reconcileUC usecase.ReconcileUseCase
	provisionUC usecase.ProvisionUseCase
	planUC      usecase.PlanUseCase
	settingsUC  usecase.SettingsUseCase
	auth        *AuthManager
	adminAPIKey string
	log         *zerolog.Logger

	http *http.Server
}

func NewServer(
	checkoutUC usecase.CheckoutUseCase,
	reconcileUC usecase.ReconcileUseCase,
	provisionUC usecase.ProvisionUseCase,
	planUC usecase.PlanUseCase,
	settingsUC usecase.SettingsUseCase,
	auth *AuthManager,
	adminAPIKey string,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "WebServer").Logger()
	return &Server{
		checkoutUC:  checkoutUC,
		reconcileUC: reconcileUC,
		provisionUC: provisionUC,
		planUC:      planUC,
		settingsUC:  settingsUC,
		auth:        auth,
		adminAPIKey: adminAPIKey,
		log:         &l,
	}
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/auth/token", s.tokenHandler())

	// Public checkout surface
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/checkout", s.checkoutHandler())
		r.Get("/payments/{id}/status", s.paymentStatusHandler())
		r.Get("/plans", s.publicPlansHandler())

		// Admin surface, owner-scoped by the JWT subject
		r.Group(func(r chi.Router) {
			r.Use(s.adminMiddleware)
			r.Post("/plans", s.planCreateHandler())
			r.Get("/admin/plans", s.planListHandler())
			r.Put("/plans/{id}", s.planUpdateHandler())
			r.Delete("/plans/{id}", s.planDeleteHandler())
			r.Get("/settings", s.settingsGetHandler())
			r.Put("/settings", s.settingsSaveHandler())
			r.Put("/settings/credentials/{gateway}", s.credentialsHandler())
			r.Put("/settings/gateway/{gateway}", s.activateGatewayHandler())
			r.Post("/provision/repair", s.repairHandler())
		})
	})

	// Providers deliver asynchronous notifications here.
	r.Post("/webhooks/{gateway}", s.webhookHandler())

	return r
}

// Start blocks serving HTTP until the listener fails or Shutdown is called.
func (s *Server) Start(port int) error {
	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Info().Str("addr", s.http.Addr).Msg("http server listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

type ctxKey int

const ownerIDKey ctxKey = iota

// adminMiddleware validates the JWT and stashes the owner id in the request
// context.
func (s *Server) adminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.auth.ParseFromRequest(r)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if claims.Role != "admin" || claims.Subject == "" {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		ctx := context.WithValue(r.Context(), ownerIDKey, claims.Subject)
		ctx = logging.WithOwnerID(ctx, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func ownerFromRequest(r *http.Request) string {
	if v, ok := r.Context().Value(ownerIDKey).(string); ok {
		return v
	}
	return ""
}
