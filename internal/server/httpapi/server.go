// Package httpapi exposes the onboarding service over HTTP: magic-link
// request and redemption, the chat endpoint, and the operator-only
// rate-limit reset.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mkorchagin/onboardchat/internal/logging"
	"github.com/mkorchagin/onboardchat/internal/server/chat"
	"github.com/mkorchagin/onboardchat/internal/server/magiclink"
	"github.com/mkorchagin/onboardchat/internal/server/mail"
	"github.com/mkorchagin/onboardchat/internal/server/ratelimit"
)

type Server struct {
	address string
	logger  logging.Logger

	limiter *ratelimit.Service
	links   *magiclink.Service
	chat    *chat.Service
	mailer  mail.Mailer

	secretKey           []byte
	accessTokenValidity time.Duration
	baseURL             string
	adminToken          string
}

func NewServer(
	address string,
	logger logging.Logger,
	limiter *ratelimit.Service,
	links *magiclink.Service,
	chatService *chat.Service,
	mailer mail.Mailer,
	secretKey string,
	accessTokenValidity time.Duration,
	baseURL string,
	adminToken string,
) *Server {
	return &Server{
		address:             address,
		logger:              logger.With("module", "http_server"),
		limiter:             limiter,
		links:               links,
		chat:                chatService,
		mailer:              mailer,
		secretKey:           []byte(secretKey),
		accessTokenValidity: accessTokenValidity,
		baseURL:             baseURL,
		adminToken:          adminToken,
	}
}

// Router assembles the chi router. Split out from Run so tests can drive
// the handler stack without a listener.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/magic-link", s.handleRequestMagicLink)
			r.Post("/redeem", s.handleRedeem)
		})

		r.Route("/chat", func(r chi.Router) {
			r.Use(s.withSession)
			r.Post("/messages", s.handleChatMessage)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.withAdminToken)
			r.Post("/rate-limits/reset", s.handleRateLimitReset)
		})
	})

	return r
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.address,
		Handler: s.Router(),
	}

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
